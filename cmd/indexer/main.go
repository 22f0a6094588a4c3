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

	"github.com/Adithya-Monish-Kumar-K/bookpipeline/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/bookpipeline/internal/indexer/handler"
	"github.com/Adithya-Monish-Kumar-K/bookpipeline/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/bookpipeline/internal/indexer/locator"
	"github.com/Adithya-Monish-Kumar-K/bookpipeline/internal/searcher/executor"
	searchhandler "github.com/Adithya-Monish-Kumar-K/bookpipeline/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/bookpipeline/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/bookpipeline/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/bookpipeline/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/bookpipeline/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/bookpipeline/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/bookpipeline/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/bookpipeline/pkg/postgres"
)

const defaultPort = 8082

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	port := flag.Int("port", defaultPort, "HTTP listen port")
	metricsPort := flag.Int("metrics-port", 0, "metrics listen port (0 uses metrics.port from config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting indexer service",
		"port", *port,
		"weighting", cfg.Indexer.Weighting,
		"datalake_roots", cfg.Datalake.Roots,
	)

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
	for _, root := range cfg.Datalake.Roots {
		checker.Register("datalake:"+root, health.DirCheck(root))
	}

	var store index.Store
	var devSearch bool
	if cfg.Postgres.Enabled {
		db, err := postgres.New(cfg.Postgres)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		pgStore := index.NewPostgresStore(db)
		if err := pgStore.Migrate(ctx); err != nil {
			slog.Error("failed to migrate index schema", "error", err)
			os.Exit(1)
		}
		checker.Register("postgres", health.PingCheck(db.Ping, false))
		store = pgStore
		slog.Info("postgres index store ready", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	} else {
		store = index.NewMemoryIndex()
		devSearch = true
		slog.Warn("postgres disabled, using in-memory index; search is served by this process")
	}

	var publisher indexer.Publisher
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete)
		defer producer.Close()
		publisher = producer
		slog.Info("index events enabled", "topic", cfg.Kafka.Topics.IndexComplete)
	}

	lake := locator.New(cfg.Datalake.Roots, cfg.Datalake.MaxDepth)
	svc := indexer.NewService(lake, store, indexer.Weighting(cfg.Indexer.Weighting), publisher, m)

	mux := http.NewServeMux()
	handler.New(svc, store).Register(mux)
	if devSearch {
		searchhandler.New(executor.New(store), nil, m, cfg.Search.DefaultLimit, cfg.Search.MaxResults).Register(mux)
	}
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Metrics(m)(chain)
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
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

	slog.Info("indexer service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("indexer service stopped")
}
