package stock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	versionKeyPrefix = "stock:version:"
	// PortfolioScope versions every cross-product view (valuation, summaries).
	PortfolioScope = "portfolio"
	// PurchasesScope versions every cardex. Purchase lines match by barcode or
	// name, so a purchase write cannot always name the products it moves.
	PurchasesScope = "purchases"
	// ChangedChannel carries product ids whose records were written. An empty
	// payload or PurchasesScope means the product is not known.
	ChangedChannel = "stock.changed"
)

// Cache stores rebuilt statements in Redis behind per-product version counters.
// Bumping a product's version orphans every key built for it.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache instantiates the cache helper.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Version returns the current version of scope, initialising it when missing.
func (c *Cache) Version(ctx context.Context, scope string) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	key := versionKeyPrefix + scope
	ver, err := c.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.SetNX(ctx, key, 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.client.Get(ctx, key).Int64()
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

// BuildKey composes a cache key stamped with the version of scope.
func (c *Cache) BuildKey(ctx context.Context, scope string, parts ...string) (string, error) {
	joined := strings.Join(append([]string{"stock", scope}, parts...), ":")
	if c == nil || c.client == nil {
		return joined, nil
	}
	ver, err := c.Version(ctx, scope)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:v%d", joined, ver), nil
}

// CardexKey is BuildKey for a product statement, additionally stamped with the
// purchases version.
func (c *Cache) CardexKey(ctx context.Context, productID string, parts ...string) (string, error) {
	key, err := c.BuildKey(ctx, productID, append([]string{"cardex"}, parts...)...)
	if err != nil || c == nil || c.client == nil {
		return key, err
	}
	ver, err := c.Version(ctx, PurchasesScope)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:p%d", key, ver), nil
}

// FetchJSON loads a cached value or populates it using the loader.
func (c *Cache) FetchJSON(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) error {
	if loader == nil {
		return errors.New("stock: cache loader required")
	}
	if c == nil || c.client == nil {
		value, err := loader(ctx)
		if err != nil {
			return err
		}
		return roundTrip(value, dest)
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		return json.Unmarshal(payload, dest)
	}
	if !errors.Is(err, redis.Nil) {
		return err
	}
	value, err := loader(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

// Bump invalidates everything cached for productID and for the portfolio views.
// An empty productID, or PurchasesScope, invalidates every cardex instead.
// Missing counters start at 1 before the increment, matching Version.
func (c *Cache) Bump(ctx context.Context, productID string) error {
	if c == nil || c.client == nil {
		return nil
	}
	scopes := []string{PortfolioScope}
	switch productID {
	case "", PurchasesScope, PortfolioScope:
		scopes = append(scopes, PurchasesScope)
	default:
		scopes = append(scopes, productID)
	}
	pipe := c.client.TxPipeline()
	for _, scope := range scopes {
		pipe.SetNX(ctx, versionKeyPrefix+scope, 1, 0)
		pipe.Incr(ctx, versionKeyPrefix+scope)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// ListenForChanges bumps versions for product ids published on channel by
// writers of purchases, bills and returns.
func (c *Cache) ListenForChanges(ctx context.Context, channel string, logger *slog.Logger) error {
	if c == nil || c.client == nil {
		return nil
	}
	if channel == "" {
		channel = ChangedChannel
	}
	pubsub := c.client.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return err
	}
	go func() {
		defer func() { _ = pubsub.Close() }()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if err := c.Bump(ctx, strings.TrimSpace(msg.Payload)); err != nil && logger != nil {
					logger.Warn("stock cache bump", slog.String("product_id", msg.Payload), slog.Any("error", err))
				}
			}
		}
	}()
	return nil
}

func roundTrip(value, dest any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}
