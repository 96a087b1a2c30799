package stock

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeRecordsSkipsMalformedDocuments(t *testing.T) {
	raws := []rawRecord{
		{ID: "PUR-1", Doc: []byte(`{"id":"PUR-1","invoiceDate":"2024-03-01","items":[{"productName":"Dolo","quantity":5}]}`)},
		{ID: "PUR-2", Doc: []byte(`{"items":[{"productName":"Other","quantity":"5"}]}`)},
		{ID: "PUR-3", Doc: []byte(`{"items":[{"productName":"Other","quantity":2.5}]}`)},
		{ID: "PUR-4", Doc: []byte(`null`)},
		{ID: "PUR-5", Doc: nil},
	}

	docs, skipped := decodeRecords[Purchase](KindPurchase, raws)
	require.Len(t, docs, 1)
	require.Equal(t, "PUR-1", docs[0].ID)
	require.Equal(t, int64(5), docs[0].Items[0].Quantity)

	require.Len(t, skipped, 2)
	require.Equal(t, "PUR-2", skipped[0].RecordID)
	require.Equal(t, KindPurchase, skipped[0].Kind)
	require.Contains(t, skipped[0].Reason, "decode record")
	require.Equal(t, "PUR-3", skipped[1].RecordID)
}

func TestMapStoreErrorPassesNil(t *testing.T) {
	require.NoError(t, mapStoreError(nil))
}
