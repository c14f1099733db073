package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"recommender/internal/config"
	"recommender/internal/domain"
)

func loadConfig(t *testing.T, body string) *config.AppConfig {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return cfg
}

func TestSetup_GiftModeStartsWithoutCatalog(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "fra_raw_data.csv")
	cfg := loadConfig(t, fmt.Sprintf(`
catalog:
  path: %s
  watch: true
assistant:
  mode: gift
  provider: offline
`, missing))

	a, err := setup(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if a.watcher != nil {
		t.Error("gift mode must not watch the catalog")
	}
	if a.items != 0 {
		t.Errorf("items = %d", a.items)
	}

	res, err := a.service.Turn(context.Background(), a.conv, "a gift for my sister")
	if err != nil {
		t.Fatalf("Turn: %v", err)
	}
	if res.Ranking != nil {
		t.Error("gift mode must not produce catalog recommendations")
	}
	if len(a.conv.Messages) != 2 {
		t.Errorf("expected 2 messages, got %d", len(a.conv.Messages))
	}
}

func TestSetup_GiftModeWithOpenAIStartsWithoutCatalog(t *testing.T) {
	t.Setenv("RECO_TEST_KEY", "sk-test")
	cfg := loadConfig(t, `
catalog:
  path: /nonexistent/catalog.csv
assistant:
  mode: gift
  provider: openai
  openai:
    api_key_env: RECO_TEST_KEY
`)
	a, err := setup(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if a.chat.Name() != "openai:gpt-4" {
		t.Errorf("chat = %q", a.chat.Name())
	}
}

func TestSetup_PerfumeModeRequiresCatalog(t *testing.T) {
	cfg := loadConfig(t, fmt.Sprintf(`
catalog:
  path: %s
assistant:
  mode: perfume
  provider: offline
`, filepath.Join(t.TempDir(), "missing.csv")))

	_, err := setup(cfg, zap.NewNop())
	if !errors.Is(err, domain.ErrEmptyCatalog) {
		t.Fatalf("expected ErrEmptyCatalog, got %v", err)
	}
}

func TestSetup_PerfumeModeRecommends(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "catalog.csv")
	rows := "Perfume,Brand,url,mainaccord1,mainaccord2\n" +
		"Bloom,Petal,,floral,fresh\n" +
		"Campfire,Ember,,woody,smoky\n"
	if err := os.WriteFile(csvPath, []byte(rows), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := loadConfig(t, fmt.Sprintf(`
catalog:
  path: %s
  encoding: utf-8
  watch: true
assistant:
  mode: perfume
  provider: offline
history:
  enabled: true
  path: %s
`, csvPath, filepath.Join(dir, "history.csv")))

	a, err := setup(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if a.items != 2 || a.watcher == nil {
		t.Fatalf("items = %d, watcher = %v", a.items, a.watcher)
	}

	res, err := a.service.Turn(context.Background(), a.conv, "something woody")
	if err != nil {
		t.Fatalf("Turn: %v", err)
	}
	if res.Ranking == nil || !res.Ranking.HasMatch() {
		t.Fatalf("expected a recommendation, got %+v", res)
	}
	if got := res.Ranking.Matches[0].Item.Name; got != "Campfire" {
		t.Errorf("top match = %q", got)
	}
	if _, err := os.Stat(filepath.Join(dir, "history.csv")); err != nil {
		t.Errorf("history not written: %v", err)
	}
}
