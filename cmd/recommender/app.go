package main

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"recommender/internal/catalog"
	"recommender/internal/config"
	"recommender/internal/conversation"
	"recommender/internal/domain"
	"recommender/internal/extract"
	"recommender/internal/history"
	"recommender/internal/llm/offline"
	"recommender/internal/llm/openai"
	"recommender/internal/matcher"
	"recommender/internal/service"
	"recommender/internal/watcher"
)

// app holds the assembled components of one TUI session.
type app struct {
	service *service.Recommender
	conv    *conversation.Conversation
	chat    domain.ChatModel
	watcher *watcher.Watcher // nil unless perfume mode watches the catalog
	items   int
}

// setup assembles the components for cfg. Only perfume mode reads the
// catalog; gift mode is chat only and starts without one.
func setup(cfg *config.AppConfig, zlog *zap.Logger) (*app, error) {
	mode := conversation.Mode(cfg.Assistant.Mode)
	a := &app{}

	var m *matcher.Matcher
	if mode == conversation.ModePerfume {
		opts := cfg.Catalog.Options()
		items, err := catalog.Load(cfg.Catalog.Path, opts)
		if err != nil {
			return nil, fmt.Errorf("catalog load failed: %w", err)
		}
		m, err = matcher.NewFromCatalog(items, zlog.Named("matcher"))
		if err != nil {
			return nil, fmt.Errorf("catalog index failed: %w", err)
		}
		a.items = len(items)
		if cfg.Catalog.Watch {
			a.watcher = watcher.New(cfg.Catalog.Path, opts, m, watcher.WithLogger(zlog.Named("watcher")))
		}
	}

	var jsonModel extract.JSONCompleter
	switch cfg.Assistant.Provider {
	case "openai":
		temperature, topP := cfg.Assistant.Sampling()
		client, err := newOpenAI(cfg.Assistant.OpenAI, "", temperature, topP, zlog)
		if err != nil {
			return nil, fmt.Errorf("openai chat init failed: %w", err)
		}
		a.chat, jsonModel = client, client
		if mode == conversation.ModePerfume && cfg.Extractor.Model != "" && cfg.Extractor.Model != cfg.Assistant.OpenAI.Model {
			ext, err := newOpenAI(cfg.Assistant.OpenAI, cfg.Extractor.Model, nil, nil, zlog)
			if err != nil {
				return nil, fmt.Errorf("openai extractor init failed: %w", err)
			}
			jsonModel = ext
		}
	case "offline":
		a.chat = offline.New("")
	default:
		return nil, fmt.Errorf("unknown provider: %s", cfg.Assistant.Provider)
	}

	// Interfaces stay nil in gift mode; a typed nil *Matcher would not.
	var ext domain.TagExtractor
	var cm domain.CatalogMatcher
	if m != nil {
		cm = m
		switch cfg.Extractor.Type {
		case "llm":
			if jsonModel == nil {
				return nil, fmt.Errorf("extractor llm requires the openai provider")
			}
			ext = extract.NewLLM(jsonModel, m, zlog.Named("extract"))
		case "vocabulary":
			ext = extract.NewVocabulary(m)
		default:
			return nil, fmt.Errorf("unknown extractor: %s", cfg.Extractor.Type)
		}
	}

	var rec domain.HistoryRecorder
	if cfg.History.Enabled {
		h, err := history.NewCSVLog(cfg.History.Path)
		if err != nil {
			return nil, fmt.Errorf("history init failed: %w", err)
		}
		rec = h
	}

	a.service = service.NewRecommender(a.chat, ext, cm, rec, cfg.Matcher.TopK, zlog.Named("service"))
	a.conv = conversation.New(mode, cfg.Assistant.SystemPrompt)
	return a, nil
}

func newOpenAI(oc *config.OpenAIConfig, model string, temperature, topP *float32, zlog *zap.Logger) (*openai.Client, error) {
	if oc == nil {
		return nil, fmt.Errorf("openai config missing")
	}
	if model == "" {
		model = oc.Model
	}
	return openai.NewClient(openai.Config{
		BaseURL:     oc.BaseURL,
		APIKeyEnv:   oc.APIKeyEnv,
		Model:       model,
		Temperature: temperature,
		TopP:        topP,
		Timeout:     time.Duration(oc.TimeoutSecs) * time.Second,
		MaxRetries:  oc.MaxRetries,
		Logger:      zlog.Named("openai"),
	})
}
