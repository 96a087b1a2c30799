package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-pharmacy/cmd/odyssey/cli"
	"github.com/odyssey-erp/odyssey-pharmacy/internal/app"
	"github.com/odyssey-erp/odyssey-pharmacy/internal/observability"
	"github.com/odyssey-erp/odyssey-pharmacy/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-pharmacy/internal/platform/db"
	"github.com/odyssey-erp/odyssey-pharmacy/internal/stock"
	"github.com/odyssey-erp/odyssey-pharmacy/jobs"
)

const usage = `usage: odyssey [command]

commands:
  serve                                  run the HTTP server (default)
  cardex -product ID [-batch B] [-from YYYY-MM-DD] [-to YYYY-MM-DD] [-json]
  reconcile -product ID [-json]
  jobs trigger NAME [PRODUCT_ID...]      enqueue valuation, warmup or invalidate
  jobs stats                             print default queue counters
`

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	args := os.Args[1:]
	command := "serve"
	if len(args) > 0 {
		command, args = args[0], args[1:]
	}

	switch command {
	case "serve":
		if err := serve(ctx, stop, cfg, logger); err != nil {
			logger.Error("serve", slog.Any("error", err))
			os.Exit(1)
		}
	case "cardex", "reconcile":
		os.Exit(runStockCommand(ctx, cfg, logger, command, args))
	case "jobs":
		os.Exit(runJobsCommand(ctx, cfg, args))
	default:
		_, _ = fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
}

func serve(ctx context.Context, stop context.CancelFunc, cfg *app.Config, logger *slog.Logger) error {
	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		return err
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	stockCache := stock.NewCache(redisClient, cfg.StockCacheTTL)
	if err := stockCache.ListenForChanges(ctx, stock.ChangedChannel, logger); err != nil {
		logger.Warn("subscribe stock changes", slog.Any("error", err))
	}
	stockService := stock.NewService(stock.NewRepository(dbpool), stockCache, logger, metrics, stock.ServiceConfig{
		Location:       cfg.Location(),
		NearExpiryDays: cfg.StockNearExpiryDays,
	})
	stockHandler := stock.NewHandler(logger, stockService, cfg.Location())

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:       logger,
		Config:       cfg,
		StockHandler: stockHandler,
		JobHandler:   jobHandler,
		Metrics:      metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("timezone", cfg.Location().String()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func runStockCommand(ctx context.Context, cfg *app.Config, logger *slog.Logger, command string, args []string) int {
	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	productID := fs.String("product", "", "Required: product id")
	batch := fs.String("batch", "", "Optional: restrict the cardex to one batch number")
	from := fs.String("from", "", "Optional: first day (YYYY-MM-DD)")
	to := fs.String("to", "", "Optional: last day (YYYY-MM-DD), defaults to today")
	jsonOutput := fs.Bool("json", false, "Print JSON instead of a table")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "%s: %v\n", command, err)
		return 1
	}
	defer dbpool.Close()

	// Operator commands read straight from the database, without the cache.
	service := stock.NewService(stock.NewRepository(dbpool), nil, logger, nil, stock.ServiceConfig{
		Location:       cfg.Location(),
		NearExpiryDays: cfg.StockNearExpiryDays,
	})
	ops, err := cli.NewStockOpsCLI(service, cfg.Location())
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "%s: %v\n", command, err)
		return 1
	}
	if command == "reconcile" {
		return ops.ReconcileCommand(ctx, cli.ReconcileOptions{ProductID: *productID, JSONOutput: *jsonOutput})
	}
	return ops.CardexCommand(ctx, cli.CardexOptions{
		ProductID:  *productID,
		Batch:      *batch,
		From:       *from,
		To:         *to,
		JSONOutput: *jsonOutput,
	})
}

func runJobsCommand(ctx context.Context, cfg *app.Config, args []string) int {
	if len(args) == 0 {
		_, _ = fmt.Fprint(os.Stderr, usage)
		return 2
	}
	jobsCLI, err := cli.NewJobsCLI(cfg.RedisAddr)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "jobs: %v\n", err)
		return 1
	}
	defer func() { _ = jobsCLI.Close() }()

	switch args[0] {
	case "trigger":
		if len(args) < 2 {
			_, _ = fmt.Fprintln(os.Stderr, "jobs trigger: job name required")
			return 2
		}
		info, err := jobsCLI.Trigger(ctx, args[1], args[2:]...)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "jobs trigger: %v\n", err)
			return 1
		}
		_, _ = fmt.Printf("enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
		return 0
	case "stats":
		stats, err := jobsCLI.InspectQueue(ctx)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "jobs stats: %v\n", err)
			return 1
		}
		_, _ = fmt.Printf("queue=%s pending=%d active=%d scheduled=%d retry=%d\n", stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
		return 0
	default:
		_, _ = fmt.Fprint(os.Stderr, usage)
		return 2
	}
}
