package stock

import "strings"

// Matches reports whether a line item refers to product. The rules are tried in
// order: resolved product id, normalized barcode, then name and company when
// neither side carries a barcode.
func Matches(p *Product, ref LineRef) bool {
	if p == nil {
		return false
	}
	if matchByID(p, ref) {
		return true
	}
	if matchByBarcode(p, ref) {
		return true
	}
	return matchByNameCompany(p, ref)
}

func matchByID(p *Product, ref LineRef) bool {
	id := strings.TrimSpace(ref.ProductID)
	return id != "" && id == p.ID
}

func matchByBarcode(p *Product, ref LineRef) bool {
	own := NormalizeCode(p.Barcode)
	other := NormalizeCode(ref.Barcode)
	return own != "" && own == other
}

// A barcode on either side disables name matching.
func matchByNameCompany(p *Product, ref LineRef) bool {
	if NormalizeCode(p.Barcode) != "" || NormalizeCode(ref.Barcode) != "" {
		return false
	}
	return sameText(p.Name, ref.ProductName) && sameText(p.Company, ref.Company)
}

// NormalizeCode lower-cases a barcode and drops everything outside [a-z0-9].
func NormalizeCode(code string) string {
	var b strings.Builder
	b.Grow(len(code))
	for _, r := range strings.ToLower(code) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func sameText(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
