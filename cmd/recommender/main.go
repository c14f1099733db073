package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"recommender/internal/config"
	"recommender/internal/logger"
	"recommender/internal/metrics"
	"recommender/internal/tui"
)

func main() {
	_ = godotenv.Load()

	var cfgPath, catalogPath, mode string
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/recommender/config.yaml if not provided)")
	flag.StringVar(&catalogPath, "catalog", "", "Catalog CSV path (overrides config)")
	flag.StringVar(&mode, "mode", "", "Assistant mode: perfume or gift (overrides config)")
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
	if catalogPath != "" {
		cfg.Catalog.Path = catalogPath
	}
	if mode != "" {
		cfg.Assistant.Mode = mode
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	// The terminal belongs to the TUI, so logs go to a file.
	logFile := cfg.Logging.File
	if logFile == "" {
		logFile = "recommender.log"
	}
	zlog, err := logger.NewLogger(cfg.Logging.Level, logFile)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()
	metrics.Register()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := setup(cfg, zlog)
	if err != nil {
		log.Fatal(err)
	}
	if a.watcher != nil {
		go func() {
			if err := a.watcher.Run(ctx); err != nil {
				zlog.Error("Catalog watcher stopped", zap.Error(err))
			}
		}()
	}
	zlog.Info("Recommender ready",
		zap.String("mode", cfg.Assistant.Mode),
		zap.String("model", a.chat.Name()),
		zap.Int("catalog_items", a.items),
	)

	timeout := 2 * time.Minute
	if cfg.Assistant.OpenAI != nil && cfg.Assistant.OpenAI.TimeoutSecs > 0 {
		// Leave room for retries.
		timeout = time.Duration(cfg.Assistant.OpenAI.TimeoutSecs*(cfg.Assistant.OpenAI.MaxRetries+1)) * time.Second
	}
	title := fmt.Sprintf("Gift recommender (%s, %s)", cfg.Assistant.Mode, a.chat.Name())
	if _, err := tea.NewProgram(tui.New(a.service, a.conv, title, timeout), tea.WithAltScreen()).Run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
