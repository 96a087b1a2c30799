package stock

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestFormatQuantity(t *testing.T) {
	cases := []struct {
		qty  int64
		pack int
		want string
	}{
		{0, 10, "0 U"},
		{25, 10, "2 S + 5 U"},
		{20, 10, "2 S"},
		{5, 10, "5 U"},
		{-5, 10, "-5 U"},
		{-25, 10, "-2 S + 5 U"},
		{-20, 10, "-2 S"},
		{5, 1, "5 U"},
		{-7, 0, "-7 U"},
		{0, 0, "0 U"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, FormatQuantity(tc.qty, tc.pack), "qty=%d pack=%d", tc.qty, tc.pack)
	}
}

func TestUnitCost(t *testing.T) {
	b := Batch{PurchasePrice: decimal.NewFromInt(500)}
	require.True(t, decimal.NewFromInt(50).Equal(UnitCost(b, 10)))
	require.True(t, decimal.NewFromInt(500).Equal(UnitCost(b, 0)))
	require.True(t, decimal.NewFromInt(500).Equal(UnitCost(b, -3)))
}

func TestPackSize(t *testing.T) {
	require.Equal(t, 1, PackSize(0))
	require.Equal(t, 1, PackSize(-4))
	require.Equal(t, 15, PackSize(15))
}
