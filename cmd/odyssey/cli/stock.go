package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/odyssey-erp/odyssey-pharmacy/internal/stock"
)

// StockReader is the part of stock.Service the operator commands need.
type StockReader interface {
	Cardex(ctx context.Context, q stock.CardexQuery) (stock.Statement, error)
	Reconcile(ctx context.Context, productID string) (stock.ReconcileReport, error)
}

// StockOpsCLI prints ledger views for operators.
type StockOpsCLI struct {
	service StockReader
	loc     *time.Location
}

// NewStockOpsCLI wires the helper. Dates given on the command line are read in loc.
func NewStockOpsCLI(service StockReader, loc *time.Location) (*StockOpsCLI, error) {
	if service == nil {
		return nil, errors.New("stock cli: service required")
	}
	if loc == nil {
		loc = time.UTC
	}
	return &StockOpsCLI{service: service, loc: loc}, nil
}

// CardexOptions defines available flags for the cardex command.
type CardexOptions struct {
	ProductID  string
	Batch      string
	From       string
	To         string
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// CardexCommand prints the running-balance statement of one product.
func (c *StockOpsCLI) CardexCommand(ctx context.Context, opts CardexOptions) int {
	stdout, stderr := streams(opts.Stdout, opts.Stderr)
	if strings.TrimSpace(opts.ProductID) == "" {
		_, _ = fmt.Fprintln(stderr, "cardex: --product is required")
		return 1
	}
	query := stock.CardexQuery{ProductID: opts.ProductID, BatchNumber: opts.Batch}
	var err error
	if query.From, err = c.parseDay(opts.From); err != nil {
		_, _ = fmt.Fprintf(stderr, "cardex: invalid --from %q (expected YYYY-MM-DD)\n", opts.From)
		return 1
	}
	if query.To, err = c.parseDay(opts.To); err != nil {
		_, _ = fmt.Fprintf(stderr, "cardex: invalid --to %q (expected YYYY-MM-DD)\n", opts.To)
		return 1
	}
	st, err := c.service.Cardex(ctx, query)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "cardex: %v\n", err)
		return 1
	}
	if opts.JSONOutput {
		if err := json.NewEncoder(stdout).Encode(st); err != nil {
			_, _ = fmt.Fprintf(stderr, "cardex: encode json: %v\n", err)
			return 1
		}
		return 0
	}
	renderCardexHuman(stdout, st, c.loc)
	return 0
}

// ReconcileOptions defines available flags for the reconcile command.
type ReconcileOptions struct {
	ProductID  string
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// ReconcileCommand compares stored batch stock with the rebuilt ledger. It
// exits 10 when any batch drifts.
func (c *StockOpsCLI) ReconcileCommand(ctx context.Context, opts ReconcileOptions) int {
	stdout, stderr := streams(opts.Stdout, opts.Stderr)
	if strings.TrimSpace(opts.ProductID) == "" {
		_, _ = fmt.Fprintln(stderr, "reconcile: --product is required")
		return 1
	}
	report, err := c.service.Reconcile(ctx, opts.ProductID)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "reconcile: %v\n", err)
		return 1
	}
	if opts.JSONOutput {
		if err := json.NewEncoder(stdout).Encode(report); err != nil {
			_, _ = fmt.Fprintf(stderr, "reconcile: encode json: %v\n", err)
			return 1
		}
	} else {
		renderReconcileHuman(stdout, report)
	}
	if !report.Balanced {
		return 10
	}
	return 0
}

func (c *StockOpsCLI) parseDay(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation("2006-01-02", raw, c.loc)
}

func streams(stdout, stderr io.Writer) (io.Writer, io.Writer) {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return stdout, stderr
}

func renderCardexHuman(out io.Writer, st stock.Statement, loc *time.Location) {
	title := st.ProductID
	if st.BatchNumber != "" {
		title += " batch " + st.BatchNumber
	}
	_, _ = fmt.Fprintf(out, "Cardex %s\n", title)
	_, _ = fmt.Fprintf(out, "Opening balance: %s\n", stock.FormatQuantity(st.OpeningBalance, st.UnitsPerStrip))
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "DATE\tTYPE\tBATCH\tREF\tIN\tOUT\tBALANCE")
	for _, row := range st.Rows {
		date := "-"
		if row.Kind != stock.KindOpening {
			date = row.Date.In(loc).Format("2006-01-02")
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			date, row.Kind, row.Label, row.Reference,
			quantityCell(row.InQty, st.UnitsPerStrip),
			quantityCell(row.OutQty, st.UnitsPerStrip),
			stock.FormatQuantity(row.BalanceAfter, st.UnitsPerStrip))
	}
	_ = tw.Flush()
	_, _ = fmt.Fprintf(out, "Closing balance: %s\n", stock.FormatQuantity(st.ClosingBalance, st.UnitsPerStrip))
	if len(st.Skipped) > 0 {
		_, _ = fmt.Fprintf(out, "%d record(s) skipped:\n", len(st.Skipped))
		for _, rec := range st.Skipped {
			if rec.RawDate == "" {
				_, _ = fmt.Fprintf(out, " - %s %s: %s\n", rec.Kind, rec.RecordID, rec.Reason)
				continue
			}
			_, _ = fmt.Fprintf(out, " - %s %s date %q: %s\n", rec.Kind, rec.RecordID, rec.RawDate, rec.Reason)
		}
	}
}

func quantityCell(qty int64, unitsPerStrip int) string {
	if qty == 0 {
		return ""
	}
	return stock.FormatQuantity(qty, unitsPerStrip)
}

func renderReconcileHuman(out io.Writer, report stock.ReconcileReport) {
	_, _ = fmt.Fprintf(out, "Reconcile %s\n", report.ProductID)
	if report.Balanced {
		_, _ = fmt.Fprintln(out, "Stored stock matches the ledger.")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "BATCH\tSTORED\tLEDGER\tDRIFT")
	for _, row := range report.Rows {
		if row.Drift == 0 {
			continue
		}
		label := row.BatchNumber
		if !row.Known {
			label += " (unknown)"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%d\t%d\t%+d\n", label, row.Stored, row.Recomputed, row.Drift)
	}
	_ = tw.Flush()
}
