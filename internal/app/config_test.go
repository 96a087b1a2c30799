package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	_ "github.com/odyssey-erp/odyssey-pharmacy/testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("STOCK_TIMEZONE", "Asia/Kolkata")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, 10*time.Minute, cfg.StockCacheTTL)
	require.Equal(t, 90, cfg.StockNearExpiryDays)
	require.Equal(t, 120, cfg.RateLimitPerMinute)
	require.Equal(t, "Asia/Kolkata", cfg.Location().String())
	require.False(t, cfg.IsProduction())
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	t.Setenv("STOCK_TIMEZONE", "Mars/Olympus")
	_, err := LoadConfig()
	require.ErrorContains(t, err, "stock timezone")

	t.Setenv("STOCK_TIMEZONE", "UTC")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "0")
	_, err = LoadConfig()
	require.ErrorContains(t, err, "rate limit")
}

func TestTestModeDetected(t *testing.T) {
	RefreshTestMode()
	require.True(t, InTestMode())
}

func TestNilConfigLocation(t *testing.T) {
	var cfg *Config
	require.Equal(t, time.UTC, cfg.Location())
}
