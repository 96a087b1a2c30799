package stock

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MovementKind enumerates the stock movements replayed into a cardex.
type MovementKind string

const (
	// KindOpening is the batch-level opening stock recorded at ledger start.
	KindOpening MovementKind = "OPENING"
	// KindPurchase is an inbound purchase invoice line.
	KindPurchase MovementKind = "PURCHASE"
	// KindSale is an outbound bill line.
	KindSale MovementKind = "SALE"
	// KindPurchaseReturn is stock sent back to a supplier.
	KindPurchaseReturn MovementKind = "PURCHASE_RETURN"
	// KindSaleReturn is stock returned by a customer.
	KindSaleReturn MovementKind = "SALE_RETURN"
)

// OpeningInstant dates OPENING movements; it precedes every real transaction date.
var OpeningInstant = time.Date(1, time.January, 1, 0, 0, 0, 0, time.UTC)

// neverExpires is used for batches without a usable expiry month.
var neverExpires = time.Date(9999, time.December, 31, 23, 59, 59, 0, time.UTC)

// Product is a sellable item together with the batches it owns.
type Product struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Company       string  `json:"company"`
	Barcode       string  `json:"barcode,omitempty"`
	UnitsPerStrip int     `json:"unitsPerStrip,omitempty"`
	OpeningStock  int64   `json:"openingStock,omitempty"`
	Batches       []Batch `json:"batches"`
}

// PackSize returns units per strip coerced to at least one.
func (p *Product) PackSize() int {
	if p == nil {
		return 1
	}
	return PackSize(p.UnitsPerStrip)
}

// TotalStock sums the live stock of every batch.
func (p *Product) TotalStock() int64 {
	if p == nil {
		return 0
	}
	var total int64
	for _, b := range p.Batches {
		total += b.Stock
	}
	return total
}

// Batch is a purchased lot of a product. Prices are per strip.
type Batch struct {
	ID            string          `json:"id"`
	BatchNumber   string          `json:"batchNumber"`
	ExpiryDate    string          `json:"expiryDate,omitempty"`
	Stock         int64           `json:"stock"`
	OpeningStock  int64           `json:"openingStock,omitempty"`
	MRP           decimal.Decimal `json:"mrp"`
	PurchasePrice decimal.Decimal `json:"purchasePrice"`
}

// ExpiresAt returns the last instant of the batch's expiry month. Batches with a
// missing or unparsable expiry never expire.
func (b Batch) ExpiresAt() time.Time {
	raw := strings.TrimSpace(b.ExpiryDate)
	if raw == "" {
		return neverExpires
	}
	month, err := time.Parse("2006-01", raw)
	if err != nil {
		return neverExpires
	}
	return month.AddDate(0, 1, 0).Add(-time.Nanosecond)
}

// LineRef carries the identity hints of an external line item.
type LineRef struct {
	ProductID   string
	Barcode     string
	ProductName string
	Company     string
}

// PurchaseItem is a purchase invoice line. Quantity is in packs.
type PurchaseItem struct {
	ProductID     string `json:"productId,omitempty"`
	Barcode       string `json:"barcode,omitempty"`
	ProductName   string `json:"productName"`
	Company       string `json:"company"`
	BatchNumber   string `json:"batchNumber,omitempty"`
	Quantity      int64  `json:"quantity"`
	UnitsPerStrip int    `json:"unitsPerStrip,omitempty"`
}

// Ref returns the identity hints used by the matcher.
func (i PurchaseItem) Ref() LineRef {
	return LineRef{ProductID: i.ProductID, Barcode: i.Barcode, ProductName: i.ProductName, Company: i.Company}
}

// Purchase is a supplier invoice.
type Purchase struct {
	ID          string         `json:"id"`
	InvoiceDate string         `json:"invoiceDate"`
	Items       []PurchaseItem `json:"items"`
}

// BillItem is a sale line. Quantity is in atomic units.
type BillItem struct {
	ProductID   string `json:"productId"`
	BatchNumber string `json:"batchNumber,omitempty"`
	Quantity    int64  `json:"quantity"`
}

// Bill is a customer sale.
type Bill struct {
	ID    string     `json:"id"`
	Date  string     `json:"date"`
	Items []BillItem `json:"items"`
}

// PurchaseReturnItem is a line sent back to a supplier. Quantity is in packs.
type PurchaseReturnItem struct {
	ProductID     string `json:"productId"`
	BatchNumber   string `json:"batchNumber,omitempty"`
	Quantity      int64  `json:"quantity"`
	UnitsPerStrip int    `json:"unitsPerStrip,omitempty"`
}

// PurchaseReturn is a return to a supplier.
type PurchaseReturn struct {
	ID    string               `json:"id"`
	Date  string               `json:"date"`
	Items []PurchaseReturnItem `json:"items"`
}

// SaleReturnItem is a line returned by a customer. Quantity is in atomic units.
type SaleReturnItem struct {
	ProductID   string `json:"productId"`
	BatchNumber string `json:"batchNumber,omitempty"`
	Quantity    int64  `json:"quantity"`
}

// SaleReturn is a customer return.
type SaleReturn struct {
	ID    string           `json:"id"`
	Date  string           `json:"date"`
	Items []SaleReturnItem `json:"items"`
}

// Sources groups the record collections a cardex is rebuilt from.
type Sources struct {
	Purchases       []Purchase
	Sales           []Bill
	PurchaseReturns []PurchaseReturn
	SaleReturns     []SaleReturn
}

// Movement is a normalized in/out event derived from a source record.
type Movement struct {
	Date       time.Time    `json:"date"`
	Kind       MovementKind `json:"kind"`
	BatchLabel string       `json:"batchLabel"`
	Reference  string       `json:"reference,omitempty"`
	InQty      int64        `json:"inQty"`
	OutQty     int64        `json:"outQty"`
}

// Net returns the signed stock change.
func (m Movement) Net() int64 {
	return m.InQty - m.OutQty
}

// SkippedRecord identifies a source record left out of a collection.
type SkippedRecord struct {
	Kind     MovementKind `json:"kind"`
	RecordID string       `json:"recordId"`
	RawDate  string       `json:"rawDate"`
	Reason   string       `json:"reason"`
}

// Window restricts a statement to whole days. Zero bounds are open.
type Window struct {
	From     time.Time
	To       time.Time
	Location *time.Location
}

func (w Window) location() *time.Location {
	if w.Location == nil {
		return time.UTC
	}
	return w.Location
}

// StatementRow is one cardex line.
type StatementRow struct {
	Date         time.Time    `json:"date"`
	Kind         MovementKind `json:"kind"`
	Label        string       `json:"label"`
	Reference    string       `json:"reference,omitempty"`
	InQty        int64        `json:"inQty"`
	OutQty       int64        `json:"outQty"`
	BalanceAfter int64        `json:"balanceAfter"`
}

// Statement is a running-balance cardex over a window.
type Statement struct {
	ProductID      string          `json:"productId"`
	BatchNumber    string          `json:"batchNumber,omitempty"`
	UnitsPerStrip  int             `json:"unitsPerStrip"`
	OpeningBalance int64           `json:"openingBalance"`
	Rows           []StatementRow  `json:"rows"`
	ClosingBalance int64           `json:"closingBalance"`
	Skipped        []SkippedRecord `json:"skipped,omitempty"`
}

var (
	// ErrProductNotFound indicates the product id is unknown or tombstoned.
	ErrProductNotFound = errors.New("stock: product not found")
	// ErrInvalidWindow indicates from is after to.
	ErrInvalidWindow = errors.New("stock: window start after end")
	// ErrStoreNotReady indicates the document tables are missing.
	ErrStoreNotReady = errors.New("stock: document store not initialised")
)
