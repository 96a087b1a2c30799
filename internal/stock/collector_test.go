package stock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCollectNormalizesEveryFamily(t *testing.T) {
	p := &Product{ID: "P1", Name: "Amoxicillin", Company: "Sun", Barcode: "8901", UnitsPerStrip: 6,
		Batches: []Batch{{BatchNumber: "A1", OpeningStock: 12}, {BatchNumber: "A2"}}}
	src := Sources{
		Purchases: []Purchase{
			{ID: "PUR-1", InvoiceDate: "2024-02-01", Items: []PurchaseItem{
				{Barcode: "89-01", BatchNumber: "A2", Quantity: 3},
				{Barcode: "89-01", BatchNumber: "A3", Quantity: 2, UnitsPerStrip: 10},
				{Barcode: "7777", Quantity: 9},
			}},
		},
		Sales: []Bill{{ID: "BILL-1", Date: "2024-02-03 11:00:00", Items: []BillItem{
			{ProductID: "P1", BatchNumber: "A1", Quantity: 4},
			{ProductID: "P2", Quantity: 100},
		}}},
		PurchaseReturns: []PurchaseReturn{{ID: "PR-1", Date: "2024-02-04", Items: []PurchaseReturnItem{
			{ProductID: "P1", BatchNumber: "A2", Quantity: 1},
		}}},
		SaleReturns: []SaleReturn{{ID: "SR-1", Date: "2024-02-05T09:00:00Z", Items: []SaleReturnItem{
			{ProductID: "P1", BatchNumber: "A1", Quantity: 2},
		}}},
	}

	got := Collect(p, src, time.UTC)

	require.Empty(t, got.Skipped)
	require.Len(t, got.Movements, 6)
	byKind := map[MovementKind][]Movement{}
	for _, m := range got.Movements {
		byKind[m.Kind] = append(byKind[m.Kind], m)
		require.True(t, (m.InQty == 0) != (m.OutQty == 0), "exactly one side set: %+v", m)
	}
	require.Equal(t, int64(12), byKind[KindOpening][0].InQty)
	require.Equal(t, OpeningInstant, byKind[KindOpening][0].Date)
	require.Equal(t, int64(18), byKind[KindPurchase][0].InQty)
	require.Equal(t, int64(20), byKind[KindPurchase][1].InQty)
	require.Equal(t, int64(4), byKind[KindSale][0].OutQty)
	require.Equal(t, int64(6), byKind[KindPurchaseReturn][0].OutQty)
	require.Equal(t, int64(2), byKind[KindSaleReturn][0].InQty)
	require.Equal(t, "PUR-1", byKind[KindPurchase][0].Reference)
}

func TestCollectSkipsOnlyRecordsWithBadDates(t *testing.T) {
	p := &Product{ID: "P1", UnitsPerStrip: 10}
	src := Sources{
		Sales: []Bill{
			{ID: "BILL-1", Date: "31/02/2024", Items: []BillItem{{ProductID: "P1", Quantity: 5}}},
			{ID: "BILL-2", Date: "2024-03-01", Items: []BillItem{{ProductID: "P1", Quantity: 2}}},
			{ID: "BILL-3", Date: "garbage", Items: []BillItem{{ProductID: "P9", Quantity: 2}}},
		},
	}

	got := Collect(p, src, time.UTC)

	require.Len(t, got.Movements, 1)
	require.Equal(t, "BILL-2", got.Movements[0].Reference)
	require.Len(t, got.Skipped, 1)
	require.Equal(t, "BILL-1", got.Skipped[0].RecordID)
	require.Equal(t, KindSale, got.Skipped[0].Kind)
}

func TestCollectSalesIgnoreFuzzyIdentity(t *testing.T) {
	p := &Product{ID: "P1", Name: "Dolo", Company: "Micro"}
	src := Sources{SaleReturns: []SaleReturn{{ID: "SR-1", Date: "2024-01-01", Items: []SaleReturnItem{{ProductID: "", Quantity: 3}}}}}
	require.Empty(t, Collect(p, src, nil).Movements)
}

func TestParseRecordDateUsesLocation(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	got, err := ParseRecordDate("2024-01-15", loc)
	require.NoError(t, err)
	require.Equal(t, loc, got.Location())

	_, err = ParseRecordDate("  ", loc)
	require.Error(t, err)
}
