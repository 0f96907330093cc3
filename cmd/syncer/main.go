package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vldmrch/pharmsync/internal/cachetier"
	"github.com/vldmrch/pharmsync/internal/embedding"
	"github.com/vldmrch/pharmsync/internal/ingest"
	"github.com/vldmrch/pharmsync/internal/scheduler"
	"github.com/vldmrch/pharmsync/internal/store"
	"github.com/vldmrch/pharmsync/internal/syncer/handler"
	"github.com/vldmrch/pharmsync/internal/upstream"
	"github.com/vldmrch/pharmsync/pkg/config"
	"github.com/vldmrch/pharmsync/pkg/health"
	"github.com/vldmrch/pharmsync/pkg/kafka"
	"github.com/vldmrch/pharmsync/pkg/logger"
	"github.com/vldmrch/pharmsync/pkg/metrics"
	"github.com/vldmrch/pharmsync/pkg/middleware"
	"github.com/vldmrch/pharmsync/pkg/postgres"
	pkgredis "github.com/vldmrch/pharmsync/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting sync service", "port", cfg.Server.Port)

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	st := store.New(db)

	var redisClient *pkgredis.Client
	redisClient, err = pkgredis.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, hot cache disabled", "error", err)
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	m := metrics.New()
	upstreamClient := upstream.New(cfg.Upstream, m)
	resolver := cachetier.New(redisClient, st, upstreamClient, cfg.Redis.InventoryTTL, m)

	provider := embedding.NewHTTPProvider(cfg.Embedding)
	cachedEmbedder := embedding.NewCached(provider, redisClient, cfg.Redis.EmbeddingTTL, m)

	syncEvents := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.SyncEvents)
	defer syncEvents.Close()
	invalidate := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.CacheInvalidate)
	defer invalidate.Close()

	fullSyncer := ingest.NewFullSyncer(
		st, upstreamClient, cachedEmbedder, syncEvents, invalidate,
		cfg.Embedding.CallDelay, m,
	)
	stockSyncer := ingest.NewStockSyncer(
		st, upstreamClient, resolver, syncEvents, cfg.Sync.StockBatchSize, m,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sched := scheduler.New(fullSyncer, stockSyncer, st, cfg.Sync)
	sched.Start(ctx)
	defer sched.Stop()

	checker := health.NewChecker()
	checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
		if err := db.DB.PingContext(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if redisClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := redisClient.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	checker.Register("upstream", func(ctx context.Context) health.ComponentHealth {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := upstreamClient.Ping(pingCtx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	checker.Register("sync_freshness", func(ctx context.Context) health.ComponentHealth {
		h, err := scheduler.ClassifyHealth(ctx, st)
		if err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		switch h.Label {
		case scheduler.HealthHealthy, scheduler.HealthAging:
			return health.ComponentHealth{Status: health.StatusUp, Message: h.Label}
		default:
			return health.ComponentHealth{Status: health.StatusDegraded, Message: h.Label}
		}
	})

	h := handler.New(sched)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/sync", h.Trigger)
	mux.HandleFunc("GET /api/v1/sync/status", h.Status)
	mux.HandleFunc("POST /api/v1/scheduler/start", h.Start)
	mux.HandleFunc("POST /api/v1/scheduler/stop", h.Stop)
	mux.HandleFunc("POST /api/v1/scheduler/restart", h.Restart)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	if cfg.Metrics.Enabled {
		go serveMetrics(cfg.Metrics.Port)
	}

	var chain http.Handler = mux
	chain = middleware.Metrics(m)(chain)
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("sync service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("sync service stopped")
}

// serveMetrics exposes the Prometheus endpoint on its own listener so
// scrapes bypass the API middleware chain.
func serveMetrics(port int) {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metrics.Handler())
	addr := fmt.Sprintf(":%d", port)
	slog.Info("metrics listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		slog.Error("metrics server error", "error", err)
	}
}
