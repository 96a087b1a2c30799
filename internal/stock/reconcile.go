package stock

import (
	"strings"
	"time"
)

// DriftRow compares stored batch stock with the stock rebuilt from movements.
type DriftRow struct {
	BatchNumber string `json:"batchNumber"`
	Stored      int64  `json:"stored"`
	Recomputed  int64  `json:"recomputed"`
	Drift       int64  `json:"drift"`
	Known       bool   `json:"known"`
}

// ReconcileReport lists per-batch drift for one product.
type ReconcileReport struct {
	ProductID string          `json:"productId"`
	Rows      []DriftRow      `json:"rows"`
	Balanced  bool            `json:"balanced"`
	Skipped   []SkippedRecord `json:"skipped,omitempty"`
}

// Reconcile rebuilds every batch from its opening stock and movements and
// compares it with the stored stock. A negative opening stock counts toward the
// rebuilt figure although the statement shows no OPENING row for it. Movements whose batch label matches no
// batch are reported as unknown rows with zero stored stock.
func Reconcile(p *Product, src Sources, loc *time.Location) ReconcileReport {
	report := ReconcileReport{Rows: []DriftRow{}, Balanced: true}
	if p == nil {
		return report
	}
	report.ProductID = p.ID
	collected := Collect(p, src, loc)
	report.Skipped = collected.Skipped

	index := make(map[string]int, len(p.Batches))
	for _, b := range p.Batches {
		key := batchKey(b.BatchNumber)
		pos, dup := index[key]
		if !dup {
			pos = len(report.Rows)
			index[key] = pos
			report.Rows = append(report.Rows, DriftRow{BatchNumber: b.BatchNumber, Known: true})
		}
		report.Rows[pos].Stored += b.Stock
		// Collect emits OPENING only for positive opening stock.
		if b.OpeningStock < 0 {
			report.Rows[pos].Recomputed += b.OpeningStock
		}
	}
	for _, m := range collected.Movements {
		key := batchKey(m.BatchLabel)
		pos, ok := index[key]
		if !ok {
			pos = len(report.Rows)
			index[key] = pos
			report.Rows = append(report.Rows, DriftRow{BatchNumber: m.BatchLabel})
		}
		report.Rows[pos].Recomputed += m.Net()
	}
	for i := range report.Rows {
		row := &report.Rows[i]
		row.Drift = row.Stored - row.Recomputed
		if row.Drift != 0 {
			report.Balanced = false
		}
	}
	return report
}

func batchKey(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}
