package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"recommender/internal/catalog"
)

// ColumnsConfig maps catalog fields to CSV header names.
type ColumnsConfig struct {
	Name    string   `yaml:"name"`
	Brand   string   `yaml:"brand"`
	URL     string   `yaml:"url"`
	Accords []string `yaml:"accords"`
}

// CatalogConfig locates and describes the catalog CSV.
type CatalogConfig struct {
	Path     string        `yaml:"path"`
	Encoding string        `yaml:"encoding"`
	Columns  ColumnsConfig `yaml:"columns"`
	Watch    bool          `yaml:"watch"`
}

// Options converts the section into catalog loader options.
func (c CatalogConfig) Options() catalog.Options {
	return catalog.Options{
		Encoding: c.Encoding,
		Columns: catalog.Columns{
			Name:    c.Columns.Name,
			Brand:   c.Columns.Brand,
			URL:     c.Columns.URL,
			Accords: append([]string(nil), c.Columns.Accords...),
		},
	}
}

// MatcherConfig configures catalog ranking.
type MatcherConfig struct {
	TopK int `yaml:"top_k"`
}

// OpenAIConfig holds configuration for the OpenAI-compatible chat API.
type OpenAIConfig struct {
	BaseURL     string   `yaml:"base_url"`
	APIKeyEnv   string   `yaml:"api_key_env"`
	Model       string   `yaml:"model"`
	Temperature *float32 `yaml:"temperature,omitempty"`
	TopP        *float32 `yaml:"top_p,omitempty"`
	TimeoutSecs int      `yaml:"timeout_secs"`
	MaxRetries  int      `yaml:"max_retries"`
}

// AssistantConfig selects the conversation mode and the chat model provider.
type AssistantConfig struct {
	Mode         string        `yaml:"mode"`     // perfume | gift
	Provider     string        `yaml:"provider"` // openai | offline
	SystemPrompt string        `yaml:"system_prompt,omitempty"`
	OpenAI       *OpenAIConfig `yaml:"openai,omitempty"`
}

// giftSampling is the sampling used for the open-ended gift chat. The
// perfume chat keeps provider defaults.
const giftSampling float32 = 0.8

// Sampling returns the temperature and top_p to send. Explicit values win;
// otherwise gift mode uses 0.8 for both and perfume mode sends neither.
func (a AssistantConfig) Sampling() (temperature, topP *float32) {
	if a.OpenAI != nil {
		temperature, topP = a.OpenAI.Temperature, a.OpenAI.TopP
	}
	if a.Mode != "gift" {
		return temperature, topP
	}
	if temperature == nil {
		t := giftSampling
		temperature = &t
	}
	if topP == nil {
		p := giftSampling
		topP = &p
	}
	return temperature, topP
}

// ExtractorConfig selects how tags are extracted from assistant replies.
type ExtractorConfig struct {
	Type  string `yaml:"type"` // llm | vocabulary
	Model string `yaml:"model,omitempty"`
}

// HistoryConfig configures the interaction log.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file,omitempty"`
}

// ServerConfig configures the HTTP match API.
type ServerConfig struct {
	Addr             string `yaml:"addr"`
	ReadTimeoutSecs  int    `yaml:"read_timeout_secs"`
	WriteTimeoutSecs int    `yaml:"write_timeout_secs"`
	ShutdownSecs     int    `yaml:"shutdown_timeout_secs"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Catalog   CatalogConfig   `yaml:"catalog"`
	Matcher   MatcherConfig   `yaml:"matcher"`
	Assistant AssistantConfig `yaml:"assistant"`
	Extractor ExtractorConfig `yaml:"extractor"`
	History   HistoryConfig   `yaml:"history"`
	Logging   LoggingConfig   `yaml:"logging"`
	Server    ServerConfig    `yaml:"server"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	data = expandEnvVars(data)
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyConfigDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/recommender/config.yaml.
// If neither exists, it writes defaults to ~/.config/recommender/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks the configuration for correctness.
func (c *AppConfig) Validate() error {
	switch c.Assistant.Mode {
	case "perfume", "gift":
	default:
		return fmt.Errorf("assistant.mode must be \"perfume\" or \"gift\", got %q", c.Assistant.Mode)
	}
	switch c.Assistant.Provider {
	case "openai", "offline":
	default:
		return fmt.Errorf("assistant.provider must be \"openai\" or \"offline\", got %q", c.Assistant.Provider)
	}
	switch c.Extractor.Type {
	case "vocabulary":
	case "llm":
		if c.Assistant.Provider != "openai" {
			return fmt.Errorf("extractor.type \"llm\" requires assistant.provider \"openai\"")
		}
	default:
		return fmt.Errorf("extractor.type must be \"llm\" or \"vocabulary\", got %q", c.Extractor.Type)
	}
	if c.Matcher.TopK < 1 {
		return fmt.Errorf("matcher.top_k must be at least 1, got %d", c.Matcher.TopK)
	}
	if c.Catalog.Path == "" {
		return fmt.Errorf("catalog.path is required")
	}
	if c.History.Enabled && c.History.Path == "" {
		return fmt.Errorf("history.path is required when history is enabled")
	}
	return nil
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "recommender", "config.yaml"), nil
}

func defaultColumns() ColumnsConfig {
	return ColumnsConfig{
		Name:    "Perfume",
		Brand:   "Brand",
		URL:     "url",
		Accords: []string{"mainaccord1", "mainaccord2", "mainaccord3", "mainaccord4", "mainaccord5"},
	}
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Catalog:   CatalogConfig{Path: "fra_raw_data.csv", Encoding: "iso-8859-1", Columns: defaultColumns()},
		Matcher:   MatcherConfig{TopK: 5},
		Assistant: AssistantConfig{Mode: "perfume", Provider: "openai"},
		History:   HistoryConfig{Enabled: true, Path: "history.csv"},
		Logging:   LoggingConfig{Level: "info"},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Catalog.Path == "" {
		cfg.Catalog.Path = "fra_raw_data.csv"
		if cfg.Catalog.Encoding == "" {
			cfg.Catalog.Encoding = "iso-8859-1"
		}
	}
	if cfg.Catalog.Columns.Name == "" {
		cfg.Catalog.Columns = defaultColumns()
	}
	if cfg.History.Enabled && cfg.History.Path == "" {
		cfg.History.Path = "history.csv"
	}
	if cfg.Matcher.TopK == 0 {
		cfg.Matcher.TopK = 5
	}
	if cfg.Assistant.Mode == "" {
		cfg.Assistant.Mode = "perfume"
	}
	if cfg.Assistant.Provider == "" {
		cfg.Assistant.Provider = "openai"
	}
	if cfg.Assistant.Provider == "openai" {
		if cfg.Assistant.OpenAI == nil {
			cfg.Assistant.OpenAI = &OpenAIConfig{}
		}
		o := cfg.Assistant.OpenAI
		if o.BaseURL == "" {
			o.BaseURL = "https://api.openai.com/v1"
		}
		if o.APIKeyEnv == "" {
			o.APIKeyEnv = "OPENAI_API_KEY"
		}
		if o.Model == "" {
			o.Model = "gpt-4"
		}
		if o.TimeoutSecs == 0 {
			o.TimeoutSecs = 60
		}
		if o.MaxRetries == 0 {
			o.MaxRetries = 3
		}
	}
	if cfg.Extractor.Type == "" {
		if cfg.Assistant.Provider == "openai" {
			cfg.Extractor.Type = "llm"
		} else {
			cfg.Extractor.Type = "vocabulary"
		}
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.ReadTimeoutSecs <= 0 {
		cfg.Server.ReadTimeoutSecs = 10
	}
	if cfg.Server.WriteTimeoutSecs <= 0 {
		cfg.Server.WriteTimeoutSecs = 10
	}
	if cfg.Server.ShutdownSecs <= 0 {
		cfg.Server.ShutdownSecs = 10
	}
}

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		name, def, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(name)
		if val == "" && hasDefault {
			val = def
		}
		return []byte(val)
	})
}
