package stock

import (
	"slices"
	"strings"
	"time"
)

// BuildCardex replays every movement of product and returns the running-balance
// statement for window.
func BuildCardex(p *Product, src Sources, w Window) Statement {
	if p == nil {
		return Statement{Rows: []StatementRow{}}
	}
	collected := Collect(p, src, w.location())
	st := BuildStatement(p.OpeningStock, collected.Movements, w)
	st.ProductID = p.ID
	st.UnitsPerStrip = p.PackSize()
	st.Skipped = collected.Skipped
	return st
}

// BuildBatchCardex is BuildCardex restricted to one batch. The product-wide
// opening stock belongs to no batch and is not carried in.
func BuildBatchCardex(p *Product, src Sources, batchNumber string, w Window) Statement {
	if p == nil {
		return Statement{Rows: []StatementRow{}}
	}
	collected := Collect(p, src, w.location())
	movements := make([]Movement, 0, len(collected.Movements))
	for _, m := range collected.Movements {
		if sameText(m.BatchLabel, batchNumber) {
			movements = append(movements, m)
		}
	}
	st := BuildStatement(0, movements, w)
	st.ProductID = p.ID
	st.BatchNumber = strings.TrimSpace(batchNumber)
	st.UnitsPerStrip = p.PackSize()
	st.Skipped = collected.Skipped
	return st
}

// SortMovements returns a copy ordered by date with OPENING movements first.
// Ties keep their input order.
func SortMovements(movements []Movement) []Movement {
	sorted := slices.Clone(movements)
	slices.SortStableFunc(sorted, func(a, b Movement) int {
		aOpen, bOpen := a.Kind == KindOpening, b.Kind == KindOpening
		switch {
		case aOpen && bOpen:
			return 0
		case aOpen:
			return -1
		case bOpen:
			return 1
		}
		return a.Date.Compare(b.Date)
	})
	return sorted
}

// BuildStatement folds movements into a statement. Movements before the window
// start are folded into the opening balance. OPENING movements are always listed
// as rows, and are also folded into the opening balance when the window has a start.
func BuildStatement(openingStock int64, movements []Movement, w Window) Statement {
	loc := w.location()
	hasFrom, hasTo := !w.From.IsZero(), !w.To.IsZero()
	var from, to time.Time
	if hasFrom {
		from = startOfDay(w.From, loc)
	}
	if hasTo {
		to = endOfDay(w.To, loc)
	}

	sorted := SortMovements(movements)

	opening := openingStock
	if hasFrom {
		for _, m := range sorted {
			if m.Kind == KindOpening || m.Date.Before(from) {
				opening += m.Net()
			}
		}
	}

	running := opening
	rows := make([]StatementRow, 0, len(sorted))
	for _, m := range sorted {
		inWindow := !hasFrom || !m.Date.Before(from) || m.Kind == KindOpening
		if !inWindow || (hasTo && m.Date.After(to)) {
			continue
		}
		running += m.Net()
		rows = append(rows, StatementRow{
			Date:         m.Date,
			Kind:         m.Kind,
			Label:        m.BatchLabel,
			Reference:    m.Reference,
			InQty:        m.InQty,
			OutQty:       m.OutQty,
			BalanceAfter: running,
		})
	}

	return Statement{OpeningBalance: opening, Rows: rows, ClosingBalance: running}
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

func endOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, loc).Add(-time.Nanosecond)
}
