package stock

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// SummaryRow is one line of the all-stock and company-wise views.
type SummaryRow struct {
	ProductID      string          `json:"productId"`
	Name           string          `json:"name"`
	Company        string          `json:"company"`
	Stock          int64           `json:"stock"`
	StockDisplay   string          `json:"stockDisplay"`
	BatchCount     int             `json:"batchCount"`
	EarliestExpiry time.Time       `json:"earliestExpiry"`
	Value          decimal.Decimal `json:"value"`
}

// Summarize lists live stock per product, sorted by company then name.
func Summarize(products []*Product, filter Filter) []SummaryRow {
	rows := []SummaryRow{}
	for _, p := range products {
		if p == nil || (filter != nil && !filter(p)) {
			continue
		}
		row := SummaryRow{
			ProductID:      p.ID,
			Name:           p.Name,
			Company:        p.Company,
			Stock:          p.TotalStock(),
			StockDisplay:   FormatQuantity(p.TotalStock(), p.UnitsPerStrip),
			BatchCount:     len(p.Batches),
			EarliestExpiry: neverExpires,
			Value:          ProductValuation(p),
		}
		for _, b := range p.Batches {
			if exp := b.ExpiresAt(); exp.Before(row.EarliestExpiry) {
				row.EarliestExpiry = exp
			}
		}
		rows = append(rows, row)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		ci, cj := strings.ToLower(rows[i].Company), strings.ToLower(rows[j].Company)
		if ci != cj {
			return ci < cj
		}
		return strings.ToLower(rows[i].Name) < strings.ToLower(rows[j].Name)
	})
	return rows
}

// ExpiringBatch is a batch with stock left that expires soon.
type ExpiringBatch struct {
	ProductID    string    `json:"productId"`
	Name         string    `json:"name"`
	Company      string    `json:"company"`
	BatchNumber  string    `json:"batchNumber"`
	ExpiresAt    time.Time `json:"expiresAt"`
	Stock        int64     `json:"stock"`
	StockDisplay string    `json:"stockDisplay"`
	Expired      bool      `json:"expired"`
}

// NearExpiry lists batches with positive stock expiring on or before asOf plus
// days, soonest first. Already expired batches are included and flagged.
func NearExpiry(products []*Product, asOf time.Time, days int) []ExpiringBatch {
	horizon := asOf.AddDate(0, 0, days)
	out := []ExpiringBatch{}
	for _, p := range products {
		if p == nil {
			continue
		}
		for _, b := range p.Batches {
			exp := b.ExpiresAt()
			if b.Stock <= 0 || exp.After(horizon) {
				continue
			}
			out = append(out, ExpiringBatch{
				ProductID:    p.ID,
				Name:         p.Name,
				Company:      p.Company,
				BatchNumber:  b.BatchNumber,
				ExpiresAt:    exp,
				Stock:        b.Stock,
				StockDisplay: FormatQuantity(b.Stock, p.UnitsPerStrip),
				Expired:      exp.Before(asOf),
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ExpiresAt.Before(out[j].ExpiresAt)
	})
	return out
}
