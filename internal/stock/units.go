package stock

import (
	"strconv"

	"github.com/shopspring/decimal"
)

// PackSize coerces an unset or non-positive units-per-strip value to 1.
func PackSize(unitsPerStrip int) int {
	if unitsPerStrip < 1 {
		return 1
	}
	return unitsPerStrip
}

// FormatQuantity renders atomic units as strips and loose units, e.g. "2 S + 5 U".
// Negative quantities keep a leading minus on the whole rendering.
func FormatQuantity(qty int64, unitsPerStrip int) string {
	if unitsPerStrip <= 1 {
		return strconv.FormatInt(qty, 10) + " U"
	}
	if qty == 0 {
		return "0 U"
	}
	sign := ""
	abs := qty
	if qty < 0 {
		sign = "-"
		abs = -qty
	}
	size := int64(unitsPerStrip)
	strips, loose := abs/size, abs%size
	switch {
	case strips == 0:
		return sign + strconv.FormatInt(loose, 10) + " U"
	case loose == 0:
		return sign + strconv.FormatInt(strips, 10) + " S"
	default:
		return sign + strconv.FormatInt(strips, 10) + " S + " + strconv.FormatInt(loose, 10) + " U"
	}
}

// UnitCost is the purchase price of one atomic unit.
func UnitCost(b Batch, unitsPerStrip int) decimal.Decimal {
	return b.PurchasePrice.Div(decimal.NewFromInt(int64(PackSize(unitsPerStrip))))
}
