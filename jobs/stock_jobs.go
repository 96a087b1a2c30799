package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-pharmacy/internal/jobs"
	"github.com/odyssey-erp/odyssey-pharmacy/internal/stock"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// StockService is the part of stock.Service used by background jobs.
type StockService interface {
	Snapshot(ctx context.Context) (stock.ValuationReport, error)
	Summary(ctx context.Context, q stock.ValuationQuery) ([]stock.SummaryRow, error)
	Cardex(ctx context.Context, q stock.CardexQuery) (stock.Statement, error)
	Invalidate(ctx context.Context, productID string) error
}

// SnapshotStore persists valuation snapshots.
type SnapshotStore interface {
	SaveValuationSnapshot(ctx context.Context, runID uuid.UUID, takenAt time.Time, report stock.ValuationReport) error
}

// StockJobs handles the stock task family.
type StockJobs struct {
	Service StockService
	Store   SnapshotStore
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewStockJobs wires dependencies for the stock handlers. store may be nil.
func NewStockJobs(service StockService, store SnapshotStore, logger *slog.Logger, metrics *jobmetrics.Metrics) *StockJobs {
	return &StockJobs{
		Service: service,
		Store:   store,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handlers lists the task handlers for worker registration.
func (j *StockJobs) Handlers() []TaskHandler {
	return []TaskHandler{
		{Type: TaskStockValuationSnapshot, Handler: j.HandleValuationSnapshot},
		{Type: TaskStockCardexWarmup, Handler: j.HandleCardexWarmup},
		{Type: TaskStockInvalidate, Handler: j.HandleInvalidate},
	}
}

// HandleValuationSnapshot values the whole portfolio and stores the result.
func (j *StockJobs) HandleValuationSnapshot(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Service == nil {
		return errors.New("stock valuation snapshot: handler not configured")
	}
	var payload ValuationSnapshotPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
		}
	}
	tracker := j.metrics().Track(TaskStockValuationSnapshot)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	runID := uuid.New()
	logger := j.logger(TaskStockValuationSnapshot).With(slog.String("run_id", runID.String()))
	takenAt := j.now()

	report, err := j.Service.Snapshot(ctx)
	if err != nil {
		logger.Error("valuate portfolio", slog.Any("error", err))
		return err
	}
	if j.Store != nil {
		if err := j.Store.SaveValuationSnapshot(ctx, runID, takenAt, report); err != nil {
			logger.Error("store valuation snapshot", slog.Any("error", err))
			return err
		}
	}
	j.metrics().AddItems(TaskStockValuationSnapshot, len(report.Rows))
	logger.Info("stored valuation snapshot",
		slog.Int("products", len(report.Rows)),
		slog.String("total", report.Total.StringFixed(2)),
		slog.Duration("duration", j.now().Sub(takenAt)))
	return nil
}

// HandleCardexWarmup rebuilds and caches the current statement of each product.
func (j *StockJobs) HandleCardexWarmup(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Service == nil {
		return errors.New("stock cardex warmup: handler not configured")
	}
	var payload CardexWarmupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
		}
	}
	tracker := j.metrics().Track(TaskStockCardexWarmup)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()
	logger := j.logger(TaskStockCardexWarmup)

	ids := payload.ProductIDs
	if len(ids) == 0 {
		rows, err := j.Service.Summary(ctx, stock.ValuationQuery{})
		if err != nil {
			logger.Error("list products", slog.Any("error", err))
			return err
		}
		for _, row := range rows {
			ids = append(ids, row.ProductID)
		}
	}

	warmed := 0
	for _, id := range ids {
		if err := j.warmProduct(ctx, id); err != nil {
			if stock.IsNotFound(err) {
				logger.Warn("skip unknown product", slog.String("product_id", id))
				continue
			}
			logger.Error("warm product", slog.String("product_id", id), slog.Any("error", err))
			return err
		}
		warmed++
	}
	j.metrics().AddItems(TaskStockCardexWarmup, warmed)
	logger.Info("completed cardex warmup", slog.Int("products", warmed))
	return nil
}

func (j *StockJobs) warmProduct(ctx context.Context, productID string) error {
	productCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()
	_, err := j.Service.Cardex(productCtx, stock.CardexQuery{ProductID: productID})
	return err
}

// HandleInvalidate drops cached statements of the payload's product.
func (j *StockJobs) HandleInvalidate(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Service == nil {
		return errors.New("stock invalidate: handler not configured")
	}
	var payload InvalidatePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.ProductID == "" {
		return fmt.Errorf("invalid invalidate payload: %w", asynq.SkipRetry)
	}
	tracker := j.metrics().Track(TaskStockInvalidate)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()
	if err := j.Service.Invalidate(ctx, payload.ProductID); err != nil {
		j.logger(TaskStockInvalidate).Error("invalidate product", slog.String("product_id", payload.ProductID), slog.Any("error", err))
		return err
	}
	return nil
}

func (j *StockJobs) logger(job string) *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", job))
	}
	return slog.Default().With(slog.String("job", job))
}

func (j *StockJobs) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *StockJobs) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
