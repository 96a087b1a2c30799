package stock

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMatches(t *testing.T) {
	barcoded := &Product{ID: "P1", Name: "Cetirizine", Company: "Cipla", Barcode: "AB-123 "}
	plain := &Product{ID: "P2", Name: "Cetirizine", Company: "Cipla"}

	cases := []struct {
		name    string
		product *Product
		ref     LineRef
		want    bool
	}{
		{"product id", barcoded, LineRef{ProductID: "P1"}, true},
		{"other product id falls through to barcode", barcoded, LineRef{ProductID: "P9", Barcode: "ab123"}, true},
		{"normalized barcode", barcoded, LineRef{Barcode: "ab123"}, true},
		{"barcode mismatch", barcoded, LineRef{Barcode: "ab124"}, false},
		{"name and company with different barcode", barcoded, LineRef{Barcode: "zz-9", ProductName: "Cetirizine", Company: "Cipla"}, false},
		{"name and company against barcoded product", barcoded, LineRef{ProductName: "Cetirizine", Company: "Cipla"}, false},
		{"barcoded line against plain product", plain, LineRef{Barcode: "X1", ProductName: "Cetirizine", Company: "Cipla"}, false},
		{"name and company without barcodes", plain, LineRef{ProductName: "  cetirizine ", Company: "CIPLA"}, true},
		{"punctuation-only barcode counts as empty", plain, LineRef{Barcode: "--", ProductName: "Cetirizine", Company: "Cipla"}, true},
		{"company differs", plain, LineRef{ProductName: "Cetirizine", Company: "Sun"}, false},
		{"nil product", nil, LineRef{ProductID: "P1"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Matches(tc.product, tc.ref))
		})
	}
}

func TestNormalizeCode(t *testing.T) {
	require.Equal(t, "ab123", NormalizeCode("AB-123 "))
	require.Equal(t, "890123", NormalizeCode(" 890.123\t"))
	require.Equal(t, "", NormalizeCode("—/ "))
}
