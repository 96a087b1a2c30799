package stock

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestBatchValuationNegativeStock(t *testing.T) {
	p := &Product{ID: "P1", UnitsPerStrip: 10, Batches: []Batch{{BatchNumber: "X", Stock: 100, PurchasePrice: decimal.NewFromInt(500)}}}
	src := Sources{Sales: []Bill{{ID: "B", Date: "2024-01-02", Items: []BillItem{{ProductID: "P1", BatchNumber: "X", Quantity: 200}}}}}

	p.Batches[0].Stock -= Collect(p, src, time.UTC).Movements[0].OutQty
	require.Equal(t, int64(-100), p.Batches[0].Stock)

	value := BatchValuation(p.Batches[0], p.UnitsPerStrip)
	require.True(t, decimal.NewFromInt(-5000).Equal(value), "got %s", value)
}

func TestValuateProducts(t *testing.T) {
	products := []*Product{
		{ID: "P1", Name: "Azithral", Company: "Alembic", UnitsPerStrip: 5, Batches: []Batch{
			{BatchNumber: "A", Stock: 10, PurchasePrice: decimal.RequireFromString("100")},
			{BatchNumber: "B", Stock: -5, PurchasePrice: decimal.RequireFromString("50")},
		}},
		nil,
		{ID: "P2", Name: "Pan 40", Company: "Alkem", Barcode: "PAN-40", Batches: []Batch{
			{BatchNumber: "C", Stock: 3, PurchasePrice: decimal.RequireFromString("12.5")},
		}},
	}

	report := ValuateProducts(products, nil)
	require.Len(t, report.Rows, 2)
	require.True(t, decimal.RequireFromString("150").Equal(report.Rows[0].Value), "got %s", report.Rows[0].Value)
	require.Equal(t, "1 S", report.Rows[0].StockDisplay)
	require.True(t, decimal.RequireFromString("187.5").Equal(report.Total), "got %s", report.Total)

	alkem := ValuateProducts(products, ByCompany(" alkem"))
	require.Len(t, alkem.Rows, 1)
	require.True(t, decimal.RequireFromString("37.5").Equal(alkem.Total))

	search := PortfolioValuation(products, AllOf(BySearch("pan"), ByCompany("Alkem")))
	require.True(t, decimal.RequireFromString("37.5").Equal(search))

	none := ValuateProducts(products, BySearch("insulin"))
	require.Empty(t, none.Rows)
	require.True(t, none.Total.IsZero())
}

func TestProductValuationNil(t *testing.T) {
	require.True(t, ProductValuation(nil).IsZero())
}
