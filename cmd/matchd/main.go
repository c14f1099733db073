package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"recommender/internal/config"
	"recommender/internal/logger"
	"recommender/internal/matcher"
	"recommender/internal/metrics"
	"recommender/internal/server"
	"recommender/internal/watcher"
)

func main() {
	_ = godotenv.Load()

	var cfgPath, addr string
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/recommender/config.yaml if not provided)")
	flag.StringVar(&addr, "addr", "", "Listen address (overrides config)")
	flag.Parse()

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}

	zlog, err := logger.NewLogger(cfg.Logging.Level, cfg.Logging.File)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()
	metrics.Register()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// A missing or broken catalog leaves the server up and answering 503
	// until the watcher installs a good one.
	m := matcher.New(zlog.Named("matcher"))
	opts := cfg.Catalog.Options()
	w := watcher.New(cfg.Catalog.Path, opts, m, watcher.WithLogger(zlog.Named("watcher")))
	if err := w.Reload(); err != nil && !cfg.Catalog.Watch {
		zlog.Fatal("Catalog load failed", zap.Error(err))
	}
	if cfg.Catalog.Watch {
		go func() {
			if err := w.Run(ctx); err != nil {
				zlog.Error("Catalog watcher stopped", zap.Error(err))
			}
		}()
	}

	srv := server.New(m, zlog.Named("http")).NewHTTPServer(
		cfg.Server.Addr,
		time.Duration(cfg.Server.ReadTimeoutSecs)*time.Second,
		time.Duration(cfg.Server.WriteTimeoutSecs)*time.Second,
	)

	go func() {
		zlog.Info("Starting HTTP server", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zlog.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownSecs)*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("Error during shutdown", zap.Error(err))
	}
	zlog.Info("Server stopped gracefully")
}
