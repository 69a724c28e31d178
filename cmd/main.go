package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/tapscore/internal/adapters/http/api"
	"github.com/okian/tapscore/internal/adapters/http/swagger"
	"github.com/okian/tapscore/internal/adapters/repository"
	"github.com/okian/tapscore/internal/adapters/scorestore"
	app "github.com/okian/tapscore/internal/app"
	"github.com/okian/tapscore/internal/config"
	"github.com/okian/tapscore/pkg/logger"
	"github.com/okian/tapscore/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 15 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	slotMetricsInterval       = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Disable default Go metrics collection to avoid duplicate metrics
	// We collect our own custom system metrics instead
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Initialize logging
	if err := logger.Init(); err != nil {
		// Use stderr for initialization errors since logger isn't available yet
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logger.Get().Error(ctx, "tapscore exited", logger.Error(err))
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	// Apply configured log format and level (fallback to info on invalid input)
	if err := logger.SetFormat(cfg.LogFormat); err != nil {
		return fmt.Errorf("log format: %w", err)
	}
	loggerInstance := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		loggerInstance.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	slot, err := openSlot(ctx, cfg)
	if err != nil {
		return err
	}
	store, err := openScoreStore(ctx, cfg)
	if err != nil {
		_ = slot.Close()
		return err
	}

	svc := app.New(
		app.WithLogger(loggerInstance),
		app.WithSlot(slot),
		app.WithScoreStore(store),
	)
	if err := svc.Start(ctx); err != nil {
		_ = slot.Close()
		_ = store.Close(context.Background())
		return fmt.Errorf("start service: %w", err)
	}
	defer svc.Stop()

	if err := svc.Health(ctx); err != nil {
		loggerInstance.Warn(ctx, "backing store not reachable at startup", logger.Error(err))
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newHandler(ctx, svc, loggerInstance),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	// Background metrics updaters
	g.Go(func() error {
		startSystemMetricsUpdater(gctx)
		return nil
	})
	g.Go(func() error {
		startSlotMetricsUpdater(gctx, svc)
		return nil
	})

	g.Go(func() error {
		loggerInstance.Info(ctx, "starting HTTP server",
			logger.String("addr", cfg.Addr),
			logger.String("slot_path", cfg.SlotPath),
			logger.String("score_store", cfg.ScoreStore),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	// Graceful shutdown on signal or listener failure
	g.Go(func() error {
		<-gctx.Done()
		loggerInstance.Info(ctx, "shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	loggerInstance.Info(ctx, "server stopped")
	return nil
}

// openSlot opens the SQLite-backed durable slot.
func openSlot(ctx context.Context, cfg *config.Config) (*repository.SQLiteSlot, error) {
	return repository.OpenSQLite(ctx, cfg.SlotPath,
		repository.WithBusyTimeout(time.Duration(cfg.SlotBusyTimeoutMS)*time.Millisecond))
}

// openScoreStore connects the configured remote score store.
func openScoreStore(ctx context.Context, cfg *config.Config) (scorestore.Store, error) {
	switch cfg.ScoreStore {
	case config.StoreMongo:
		return scorestore.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.ScoreCollection,
			scorestore.WithTimeout(time.Duration(cfg.RemoteTimeoutMS)*time.Millisecond))
	case config.StoreMemory:
		if cfg.SeedFile != "" {
			return scorestore.LoadSeed(cfg.SeedFile)
		}
		return scorestore.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: unknown score_store %q", config.ErrInvalidConfig, cfg.ScoreStore)
	}
}

// newHandler builds the full route table.
func newHandler(ctx context.Context, svc *app.Service, log logger.Logger) http.Handler {
	mux := http.NewServeMux()

	// Register API docs under /api-docs
	swagger.Register(ctx, mux)

	// Register business API routes with the service dependency.
	apiServer := api.NewServer(svc, svc, log)
	apiServer.Register(ctx, mux)

	return api.RequestIDMiddleware(mux)
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startSlotMetricsUpdater keeps the slot_held gauge in line with storage.
func startSlotMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(slotMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSlotMetrics(ctx, svc)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)

	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		// Calculate average GC pause time
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

// updateSlotMetrics refreshes slot and cooldown gauges.
func updateSlotMetrics(ctx context.Context, svc *app.Service) {
	held, err := svc.SlotHeld(ctx)
	if err == nil {
		metrics.UpdateSlotHeld(held)
	}
	if remaining, ok := svc.GetStats()["cooldownRemainingMs"].(int64); ok {
		metrics.RecordCooldownRemaining(float64(remaining) / 1000)
	}
}
