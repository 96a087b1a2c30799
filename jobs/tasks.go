package jobs

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskStockValuationSnapshot stores the nightly portfolio valuation.
	TaskStockValuationSnapshot = "stock:valuation_snapshot"
	// TaskStockCardexWarmup rebuilds cached cardex statements.
	TaskStockCardexWarmup = "stock:cardex_warmup"
	// TaskStockInvalidate drops cached statements of one product.
	TaskStockInvalidate = "stock:invalidate"
)

// ValuationSnapshotPayload carries scheduling metadata.
type ValuationSnapshotPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// CardexWarmupPayload lists the products to warm. Empty means every product.
type CardexWarmupPayload struct {
	ProductIDs []string `json:"product_ids,omitempty"`
}

// InvalidatePayload names the product whose records changed.
type InvalidatePayload struct {
	ProductID string `json:"product_id"`
}

// NewValuationSnapshotTask constructs the valuation snapshot task.
func NewValuationSnapshotTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(ValuationSnapshotPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStockValuationSnapshot, body, asynq.Queue(QueueDefault)), nil
}

// NewCardexWarmupTask constructs a warmup task for productIDs.
func NewCardexWarmupTask(productIDs ...string) (*asynq.Task, error) {
	ids := make([]string, 0, len(productIDs))
	for _, id := range productIDs {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	body, err := json.Marshal(CardexWarmupPayload{ProductIDs: ids})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStockCardexWarmup, body, asynq.Queue(QueueDefault)), nil
}

// NewInvalidateTask constructs an invalidation task for productID.
func NewInvalidateTask(productID string) (*asynq.Task, error) {
	body, err := json.Marshal(InvalidatePayload{ProductID: strings.TrimSpace(productID)})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStockInvalidate, body, asynq.Queue(QueueDefault), asynq.MaxRetry(5)), nil
}
