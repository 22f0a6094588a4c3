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

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/bookpipeline/internal/acquisition"
	"github.com/Adithya-Monish-Kumar-K/bookpipeline/internal/indexer/locator"
	"github.com/Adithya-Monish-Kumar-K/bookpipeline/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/bookpipeline/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/bookpipeline/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/bookpipeline/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/bookpipeline/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/bookpipeline/pkg/ratelimit"
)

const defaultPort = 8081

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
	root := cfg.Datalake.Roots[0]
	slog.Info("starting acquisition service",
		"port", *port,
		"datalake_root", root,
		"source_url", cfg.Acquisition.SourceURL,
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

	if err := os.MkdirAll(root, 0o755); err != nil {
		slog.Error("failed to create datalake root", "root", root, "error", err)
		os.Exit(1)
	}

	tracker, err := acquisition.NewTracker(cfg.Acquisition.StatusCapacity)
	if err != nil {
		slog.Error("failed to create status tracker", "error", err)
		os.Exit(1)
	}
	downloader := acquisition.NewDownloader(cfg.Acquisition.SourceURL, root, cfg.Acquisition.RequestTimeout)
	lake := locator.New(cfg.Datalake.Roots, cfg.Datalake.MaxDepth)
	svc := acquisition.NewService(downloader, lake, tracker, m)
	defer svc.Close()

	checker := health.NewChecker(cfg.Server.ReadTimeout)
	checker.Register("datalake", health.DirCheck(root))

	mux := http.NewServeMux()
	acquisition.NewHandler(svc).Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	if cfg.Acquisition.RateLimit > 0 {
		limiter := ratelimit.New(cfg.Acquisition.RateLimit, time.Minute)
		defer limiter.Close()
		chain = middleware.RateLimit(limiter)(chain)
		slog.Info("acquire rate limit enabled", "per_minute", cfg.Acquisition.RateLimit)
	}
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

	slog.Info("acquisition service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("acquisition service stopped")
}
