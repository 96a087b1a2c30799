package stock

import (
	"fmt"
	"strings"
	"time"
)

// recordDateLayouts are tried in order when parsing source record dates.
var recordDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Collection is the unsorted movement list for one product.
type Collection struct {
	Movements []Movement
	Skipped   []SkippedRecord
}

// Collect gathers every movement of product from its batches and the four record
// families. Dates without a zone are read in loc. A record whose date cannot be
// parsed is skipped on its own and reported in Skipped.
func Collect(p *Product, src Sources, loc *time.Location) Collection {
	var out Collection
	if p == nil {
		return out
	}
	if loc == nil {
		loc = time.UTC
	}

	for _, b := range p.Batches {
		if b.OpeningStock <= 0 {
			continue
		}
		out.Movements = append(out.Movements, Movement{
			Date:       OpeningInstant,
			Kind:       KindOpening,
			BatchLabel: b.BatchNumber,
			InQty:      b.OpeningStock,
		})
	}

	for _, rec := range src.Purchases {
		var found []Movement
		for _, item := range rec.Items {
			if item.Quantity == 0 || !Matches(p, item.Ref()) {
				continue
			}
			found = append(found, Movement{
				Kind:       KindPurchase,
				BatchLabel: item.BatchNumber,
				Reference:  rec.ID,
				InQty:      item.Quantity * int64(packOf(item.UnitsPerStrip, p)),
			})
		}
		out.add(found, KindPurchase, rec.ID, rec.InvoiceDate, loc)
	}

	for _, rec := range src.Sales {
		var found []Movement
		for _, item := range rec.Items {
			if item.Quantity == 0 || !matchByID(p, LineRef{ProductID: item.ProductID}) {
				continue
			}
			found = append(found, Movement{
				Kind:       KindSale,
				BatchLabel: item.BatchNumber,
				Reference:  rec.ID,
				OutQty:     item.Quantity,
			})
		}
		out.add(found, KindSale, rec.ID, rec.Date, loc)
	}

	for _, rec := range src.PurchaseReturns {
		var found []Movement
		for _, item := range rec.Items {
			if item.Quantity == 0 || !matchByID(p, LineRef{ProductID: item.ProductID}) {
				continue
			}
			found = append(found, Movement{
				Kind:       KindPurchaseReturn,
				BatchLabel: item.BatchNumber,
				Reference:  rec.ID,
				OutQty:     item.Quantity * int64(packOf(item.UnitsPerStrip, p)),
			})
		}
		out.add(found, KindPurchaseReturn, rec.ID, rec.Date, loc)
	}

	for _, rec := range src.SaleReturns {
		var found []Movement
		for _, item := range rec.Items {
			if item.Quantity == 0 || !matchByID(p, LineRef{ProductID: item.ProductID}) {
				continue
			}
			found = append(found, Movement{
				Kind:       KindSaleReturn,
				BatchLabel: item.BatchNumber,
				Reference:  rec.ID,
				InQty:      item.Quantity,
			})
		}
		out.add(found, KindSaleReturn, rec.ID, rec.Date, loc)
	}

	return out
}

// add dates the movements of one record, or records the skip when the record
// date is unusable. Records that touch no line of the product are ignored.
func (c *Collection) add(found []Movement, kind MovementKind, recordID, rawDate string, loc *time.Location) {
	if len(found) == 0 {
		return
	}
	date, err := ParseRecordDate(rawDate, loc)
	if err != nil {
		c.Skipped = append(c.Skipped, SkippedRecord{
			Kind:     kind,
			RecordID: recordID,
			RawDate:  rawDate,
			Reason:   err.Error(),
		})
		return
	}
	for i := range found {
		found[i].Date = date
	}
	c.Movements = append(c.Movements, found...)
}

// ParseRecordDate reads a source record date. Layouts without a zone use loc.
func ParseRecordDate(raw string, loc *time.Location) (time.Time, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return time.Time{}, fmt.Errorf("stock: empty record date")
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range recordDateLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("stock: unparsable record date %q", raw)
}

// packOf prefers the line's own pack size and falls back to the product's.
func packOf(itemUnitsPerStrip int, p *Product) int {
	if itemUnitsPerStrip > 0 {
		return itemUnitsPerStrip
	}
	return p.PackSize()
}
