package stock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
)

// RepositoryPort abstracts snapshot loading for the service.
type RepositoryPort interface {
	ProductSnapshot(ctx context.Context, productID string) (Snapshot, error)
	ListProducts(ctx context.Context) ([]*Product, error)
}

// MetricsRecorder receives ledger instrumentation.
type MetricsRecorder interface {
	ObserveCardexBuild(d time.Duration)
	AddSkippedRecords(kind string, n int)
	SetValuationTotal(v float64)
}

// Service serves cardex, valuation and expiry queries over loaded snapshots.
type Service struct {
	repo           RepositoryPort
	cache          *Cache
	logger         *slog.Logger
	metrics        MetricsRecorder
	loc            *time.Location
	nearExpiryDays int
	now            func() time.Time
	group          singleflight.Group
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	Location       *time.Location
	NearExpiryDays int
}

// NewService builds Service. cache, logger and metrics may be nil.
func NewService(repo RepositoryPort, cache *Cache, logger *slog.Logger, metrics MetricsRecorder, cfg ServiceConfig) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	days := cfg.NearExpiryDays
	if days <= 0 {
		days = 90
	}
	return &Service{repo: repo, cache: cache, logger: logger, metrics: metrics, loc: loc, nearExpiryDays: days, now: time.Now}
}

// CardexQuery selects a product (and optionally one batch) and a window. A zero
// To means today.
type CardexQuery struct {
	ProductID   string
	BatchNumber string
	From        time.Time
	To          time.Time
}

// ValuationQuery narrows valuation and summary views.
type ValuationQuery struct {
	Company string
	Search  string
}

func (q ValuationQuery) filter() Filter {
	var filters []Filter
	if strings.TrimSpace(q.Company) != "" {
		filters = append(filters, ByCompany(q.Company))
	}
	if strings.TrimSpace(q.Search) != "" {
		filters = append(filters, BySearch(q.Search))
	}
	return AllOf(filters...)
}

// Cardex returns the running-balance statement for the query.
func (s *Service) Cardex(ctx context.Context, q CardexQuery) (Statement, error) {
	q.ProductID = strings.TrimSpace(q.ProductID)
	if q.ProductID == "" {
		return Statement{}, ErrProductNotFound
	}
	if q.To.IsZero() {
		q.To = s.now()
	}
	if !q.From.IsZero() && startOfDay(q.From, s.loc).After(q.To) {
		return Statement{}, ErrInvalidWindow
	}
	key, err := s.cache.CardexKey(ctx, q.ProductID, strings.ToLower(strings.TrimSpace(q.BatchNumber)), dayToken(q.From, s.loc), dayToken(q.To, s.loc))
	if err != nil {
		return Statement{}, err
	}
	var st Statement
	err = s.shared(ctx, key, &st, func(ctx context.Context) (any, error) {
		return s.buildCardex(ctx, q)
	})
	if err != nil {
		return Statement{}, err
	}
	return st, nil
}

func (s *Service) buildCardex(ctx context.Context, q CardexQuery) (Statement, error) {
	snap, err := s.repo.ProductSnapshot(ctx, q.ProductID)
	if err != nil {
		return Statement{}, err
	}
	start := time.Now()
	w := Window{From: q.From, To: q.To, Location: s.loc}
	var st Statement
	if strings.TrimSpace(q.BatchNumber) != "" {
		st = BuildBatchCardex(snap.Product, snap.Sources, q.BatchNumber, w)
	} else {
		st = BuildCardex(snap.Product, snap.Sources, w)
	}
	st.Skipped = append(snap.Skipped, st.Skipped...)
	if s.metrics != nil {
		s.metrics.ObserveCardexBuild(time.Since(start))
	}
	s.reportSkipped(q.ProductID, st.Skipped)
	return st, nil
}

// Valuation values every live product matching q.
func (s *Service) Valuation(ctx context.Context, q ValuationQuery) (ValuationReport, error) {
	key, err := s.cache.BuildKey(ctx, PortfolioScope, "valuation", strings.ToLower(strings.TrimSpace(q.Company)), strings.ToLower(strings.TrimSpace(q.Search)))
	if err != nil {
		return ValuationReport{}, err
	}
	var report ValuationReport
	err = s.shared(ctx, key, &report, func(ctx context.Context) (any, error) {
		products, err := s.repo.ListProducts(ctx)
		if err != nil {
			return nil, err
		}
		return ValuateProducts(products, q.filter()), nil
	})
	if err != nil {
		return ValuationReport{}, err
	}
	return report, nil
}

// Snapshot computes the unfiltered portfolio valuation, bypassing the cache,
// and publishes the total to metrics.
func (s *Service) Snapshot(ctx context.Context) (ValuationReport, error) {
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return ValuationReport{}, err
	}
	report := ValuateProducts(products, nil)
	if s.metrics != nil {
		total, _ := report.Total.Float64()
		s.metrics.SetValuationTotal(total)
	}
	return report, nil
}

// Summary lists live stock per product for the all-stock and company views.
func (s *Service) Summary(ctx context.Context, q ValuationQuery) ([]SummaryRow, error) {
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	return Summarize(products, q.filter()), nil
}

// NearExpiry lists stocked batches expiring within days of today. Non-positive
// days use the configured default.
func (s *Service) NearExpiry(ctx context.Context, days int) ([]ExpiringBatch, error) {
	if days <= 0 {
		days = s.nearExpiryDays
	}
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	return NearExpiry(products, s.now().In(s.loc), days), nil
}

// Reconcile compares stored batch stock with stock rebuilt from movements.
func (s *Service) Reconcile(ctx context.Context, productID string) (ReconcileReport, error) {
	snap, err := s.repo.ProductSnapshot(ctx, strings.TrimSpace(productID))
	if err != nil {
		return ReconcileReport{}, err
	}
	report := Reconcile(snap.Product, snap.Sources, s.loc)
	report.Skipped = append(snap.Skipped, report.Skipped...)
	s.reportSkipped(productID, report.Skipped)
	if !report.Balanced {
		s.logger.Warn("stock drift detected", slog.String("product_id", productID), slog.Int("batches", len(report.Rows)))
	}
	return report, nil
}

// Invalidate drops cached statements of productID and the portfolio views. An
// empty productID drops every cached statement.
func (s *Service) Invalidate(ctx context.Context, productID string) error {
	if err := s.cache.Bump(ctx, strings.TrimSpace(productID)); err != nil {
		return fmt.Errorf("stock: invalidate %s: %w", productID, err)
	}
	return nil
}

// shared collapses concurrent loads of the same key.
func (s *Service) shared(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) error {
	resultChan := s.group.DoChan(key, func() (any, error) {
		var raw any
		err := s.cache.FetchJSON(ctx, key, &raw, loader)
		return raw, err
	})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-resultChan:
		if res.Err != nil {
			return res.Err
		}
		return roundTrip(res.Val, dest)
	}
}

func (s *Service) reportSkipped(productID string, skipped []SkippedRecord) {
	for _, rec := range skipped {
		s.logger.Warn("stock record skipped",
			slog.String("product_id", productID),
			slog.String("kind", string(rec.Kind)),
			slog.String("record_id", rec.RecordID),
			slog.String("raw_date", rec.RawDate),
			slog.String("reason", rec.Reason))
		if s.metrics != nil {
			s.metrics.AddSkippedRecords(string(rec.Kind), 1)
		}
	}
}

func dayToken(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return "open"
	}
	return t.In(loc).Format("2006-01-02")
}

// IsNotFound reports whether err means the product does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrProductNotFound)
}
