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

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/bookpipeline/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/bookpipeline/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/bookpipeline/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/bookpipeline/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/bookpipeline/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/bookpipeline/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/bookpipeline/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/bookpipeline/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/bookpipeline/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/bookpipeline/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/bookpipeline/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/bookpipeline/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	port := flag.Int("port", 0, "HTTP listen port (0 uses server.port from config)")
	metricsPort := flag.Int("metrics-port", 0, "metrics listen port (0 uses metrics.port from config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *port == 0 {
		*port = cfg.Server.Port
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search service", "port", *port)

	if !cfg.Postgres.Enabled {
		slog.Error("search service needs postgres; with postgres disabled the indexer serves search itself")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)
	if cfg.Metrics.Enabled {
		mp := cfg.Metrics.Port
		if *metricsPort != 0 {
			mp = *metricsPort
		}
		shutdownMetrics := metrics.StartServer(mp)
		defer shutdownMetrics(context.Background())
	}

	checker := health.NewChecker(cfg.Server.ReadTimeout)

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	store := index.NewPostgresStore(db)
	checker.Register("postgres", health.PingCheck(db.Ping, false))

	var queryCache *cache.QueryCache
	if cfg.Redis.Enabled {
		redisClient, err := pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			queryCache = cache.New(redisClient, cfg.Redis.CacheTTL, m)
			checker.Register("redis", health.PingCheck(redisClient.Ping, true))
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	if queryCache != nil && cfg.Kafka.Enabled {
		consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete, queryCache.InvalidationHandler())
		go func() {
			if err := consumer.Start(ctx); err != nil {
				slog.Error("index event consumer stopped", "error", err)
			}
		}()
		slog.Info("cache invalidation consumer started", "topic", cfg.Kafka.Topics.IndexComplete)
	}

	h := handler.New(executor.New(store), queryCache, m, cfg.Search.DefaultLimit, cfg.Search.MaxResults)

	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Metrics(m)(chain)
	chain = middleware.Timeout(cfg.Search.Timeout)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
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

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("search service stopped")
}
