package stock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-pharmacy/internal/platform/db"
)

// Snapshot is a consistent view of one product and the records that may move it.
// Skipped lists record documents that could not be decoded.
type Snapshot struct {
	Product *Product
	Sources Sources
	Skipped []SkippedRecord
}

// Repository reads the shop's JSON documents from PostgreSQL. Every table holds
// (id TEXT PRIMARY KEY, doc JSONB); a NULL or JSON null doc is a tombstone.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const (
	selectProduct   = `SELECT doc FROM products WHERE id = $1`
	selectProducts  = `SELECT doc FROM products ORDER BY id`
	selectPurchases = `SELECT id, doc FROM purchases WHERE doc IS NOT NULL ORDER BY id`
	// Sales and returns carry resolved product ids, so they can be narrowed in SQL.
	selectBills           = `SELECT id, doc FROM bills WHERE doc->'items' @> jsonb_build_array(jsonb_build_object('productId', $1::text)) ORDER BY id`
	selectPurchaseReturns = `SELECT id, doc FROM purchase_returns WHERE doc->'items' @> jsonb_build_array(jsonb_build_object('productId', $1::text)) ORDER BY id`
	selectSaleReturns     = `SELECT id, doc FROM sale_returns WHERE doc->'items' @> jsonb_build_array(jsonb_build_object('productId', $1::text)) ORDER BY id`
)

// ProductSnapshot loads the product and its candidate records in one read-only
// transaction.
func (r *Repository) ProductSnapshot(ctx context.Context, productID string) (Snapshot, error) {
	var snap Snapshot
	err := db.WithReadTx(ctx, r.pool, func(tx pgx.Tx) error {
		var raw []byte
		if err := tx.QueryRow(ctx, selectProduct, productID).Scan(&raw); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrProductNotFound
			}
			return err
		}
		product, err := decodeDoc[Product](raw)
		if err != nil {
			return fmt.Errorf("stock: decode product %s: %w", productID, err)
		}
		if product == nil {
			return ErrProductNotFound
		}
		snap.Product = product

		var skipped []SkippedRecord
		if snap.Sources.Purchases, skipped, err = queryDocs[Purchase](ctx, tx, KindPurchase, selectPurchases); err != nil {
			return err
		}
		snap.Skipped = append(snap.Skipped, skipped...)
		if snap.Sources.Sales, skipped, err = queryDocs[Bill](ctx, tx, KindSale, selectBills, productID); err != nil {
			return err
		}
		snap.Skipped = append(snap.Skipped, skipped...)
		if snap.Sources.PurchaseReturns, skipped, err = queryDocs[PurchaseReturn](ctx, tx, KindPurchaseReturn, selectPurchaseReturns, productID); err != nil {
			return err
		}
		snap.Skipped = append(snap.Skipped, skipped...)
		if snap.Sources.SaleReturns, skipped, err = queryDocs[SaleReturn](ctx, tx, KindSaleReturn, selectSaleReturns, productID); err != nil {
			return err
		}
		snap.Skipped = append(snap.Skipped, skipped...)
		return nil
	})
	if err != nil {
		return Snapshot{}, mapStoreError(err)
	}
	return snap, nil
}

// ListProducts returns every product document. Tombstones come back as nil entries.
func (r *Repository) ListProducts(ctx context.Context) ([]*Product, error) {
	var products []*Product
	err := db.WithReadTx(ctx, r.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, selectProducts)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var raw []byte
			if err := rows.Scan(&raw); err != nil {
				return err
			}
			p, err := decodeDoc[Product](raw)
			if err != nil {
				return fmt.Errorf("stock: decode product: %w", err)
			}
			products = append(products, p)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, mapStoreError(err)
	}
	return products, nil
}

const insertValuationSnapshot = `INSERT INTO valuation_snapshots (id, taken_at, total, doc) VALUES ($1, $2, $3::numeric, $4)`

// SaveValuationSnapshot stores a portfolio valuation taken at takenAt.
func (r *Repository) SaveValuationSnapshot(ctx context.Context, runID uuid.UUID, takenAt time.Time, report ValuationReport) error {
	doc, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("stock: encode valuation snapshot: %w", err)
	}
	err = db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, insertValuationSnapshot, runID, takenAt.UTC(), report.Total.String(), doc)
		return err
	})
	return mapStoreError(err)
}

// rawRecord is one (id, doc) row of a record table.
type rawRecord struct {
	ID  string
	Doc []byte
}

func queryDocs[T any](ctx context.Context, tx pgx.Tx, kind MovementKind, query string, args ...any) ([]T, []SkippedRecord, error) {
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()
	var raws []rawRecord
	for rows.Next() {
		var raw rawRecord
		if err := rows.Scan(&raw.ID, &raw.Doc); err != nil {
			return nil, nil, err
		}
		raws = append(raws, raw)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	docs, skipped := decodeRecords[T](kind, raws)
	return docs, skipped, nil
}

// decodeRecords decodes each document on its own. A document that does not
// decode is left out and reported; tombstones are dropped silently.
func decodeRecords[T any](kind MovementKind, raws []rawRecord) ([]T, []SkippedRecord) {
	var (
		out     []T
		skipped []SkippedRecord
	)
	for _, raw := range raws {
		doc, err := decodeDoc[T](raw.Doc)
		if err != nil {
			skipped = append(skipped, SkippedRecord{
				Kind:     kind,
				RecordID: raw.ID,
				Reason:   fmt.Sprintf("stock: decode record: %v", err),
			})
			continue
		}
		if doc != nil {
			out = append(out, *doc)
		}
	}
	return out, skipped
}

// decodeDoc returns nil for SQL NULL and JSON null documents.
func decodeDoc[T any](raw []byte) (*T, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var doc T
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func mapStoreError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "42P01" {
		return fmt.Errorf("%w: %s", ErrStoreNotReady, pgErr.Message)
	}
	return err
}
