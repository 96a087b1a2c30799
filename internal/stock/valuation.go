package stock

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Filter selects products for valuation and summaries.
type Filter func(*Product) bool

// ByCompany keeps products of one company, compared case-insensitively.
func ByCompany(company string) Filter {
	return func(p *Product) bool {
		return sameText(p.Company, company)
	}
}

// BySearch keeps products whose name, company or barcode contains term.
func BySearch(term string) Filter {
	needle := strings.ToLower(strings.TrimSpace(term))
	return func(p *Product) bool {
		if needle == "" {
			return true
		}
		for _, field := range []string{p.Name, p.Company, p.Barcode} {
			if strings.Contains(strings.ToLower(field), needle) {
				return true
			}
		}
		return false
	}
}

// AllOf keeps products accepted by every non-nil filter.
func AllOf(filters ...Filter) Filter {
	return func(p *Product) bool {
		for _, f := range filters {
			if f != nil && !f(p) {
				return false
			}
		}
		return true
	}
}

// BatchValue is the valuation of one batch.
type BatchValue struct {
	BatchNumber string          `json:"batchNumber"`
	Stock       int64           `json:"stock"`
	UnitCost    decimal.Decimal `json:"unitCost"`
	Value       decimal.Decimal `json:"value"`
}

// ValuationRow is the valuation of one product.
type ValuationRow struct {
	ProductID    string          `json:"productId"`
	Name         string          `json:"name"`
	Company      string          `json:"company"`
	Stock        int64           `json:"stock"`
	StockDisplay string          `json:"stockDisplay"`
	Value        decimal.Decimal `json:"value"`
	Batches      []BatchValue    `json:"batches"`
}

// ValuationReport lists product valuations and their total.
type ValuationReport struct {
	Rows  []ValuationRow  `json:"rows"`
	Total decimal.Decimal `json:"total"`
}

// BatchValuation is stock times unit cost. Negative stock values negatively.
func BatchValuation(b Batch, unitsPerStrip int) decimal.Decimal {
	return decimal.NewFromInt(b.Stock).Mul(UnitCost(b, unitsPerStrip))
}

// ProductValuation sums the valuation of every batch of p.
func ProductValuation(p *Product) decimal.Decimal {
	total := decimal.Zero
	if p == nil {
		return total
	}
	for _, b := range p.Batches {
		total = total.Add(BatchValuation(b, p.UnitsPerStrip))
	}
	return total
}

// PortfolioValuation sums product valuations, skipping tombstones and products
// rejected by filter.
func PortfolioValuation(products []*Product, filter Filter) decimal.Decimal {
	return ValuateProducts(products, filter).Total
}

// ValuateProducts values every live product accepted by filter.
func ValuateProducts(products []*Product, filter Filter) ValuationReport {
	report := ValuationReport{Rows: []ValuationRow{}, Total: decimal.Zero}
	for _, p := range products {
		if p == nil || (filter != nil && !filter(p)) {
			continue
		}
		row := ValuationRow{
			ProductID:    p.ID,
			Name:         p.Name,
			Company:      p.Company,
			Stock:        p.TotalStock(),
			StockDisplay: FormatQuantity(p.TotalStock(), p.UnitsPerStrip),
			Value:        decimal.Zero,
			Batches:      make([]BatchValue, 0, len(p.Batches)),
		}
		for _, b := range p.Batches {
			value := BatchValuation(b, p.UnitsPerStrip)
			row.Batches = append(row.Batches, BatchValue{
				BatchNumber: b.BatchNumber,
				Stock:       b.Stock,
				UnitCost:    UnitCost(b, p.UnitsPerStrip),
				Value:       value,
			})
			row.Value = row.Value.Add(value)
		}
		report.Rows = append(report.Rows, row)
		report.Total = report.Total.Add(row.Value)
	}
	return report
}
