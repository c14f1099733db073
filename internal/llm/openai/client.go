package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"recommender/internal/domain"
	"recommender/internal/metrics"
)

// Client is an OpenAI-compatible chat completion client implementing domain.ChatModel.
type Client struct {
	client      *openai.Client
	model       string
	temperature *float32
	topP        *float32
	maxRetries  int
	backoff     func(attempt int) time.Duration
	logger      *zap.Logger
}

// Config configures the OpenAI-compatible chat client.
type Config struct {
	BaseURL     string
	APIKeyEnv   string
	Model       string
	Temperature *float32
	TopP        *float32
	Timeout     time.Duration
	MaxRetries  int
	Logger      *zap.Logger
}

// NewClient creates a new chat client using the provided configuration.
func NewClient(cfg Config) (*Client, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = openai.GPT4
	}
	t := cfg.Timeout
	if t == 0 {
		t = 60 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	clientCfg := openai.DefaultConfig(key)
	clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	clientCfg.HTTPClient = &http.Client{Timeout: t}

	return &Client{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		topP:        cfg.TopP,
		maxRetries:  cfg.MaxRetries,
		backoff:     retryDelay,
		logger:      logger,
	}, nil
}

// Name returns the identifier of this chat model.
func (c *Client) Name() string { return "openai:" + c.model }

// Complete returns the next assistant message for the transcript.
func (c *Client) Complete(ctx context.Context, transcript []domain.Message) (domain.Reply, error) {
	return c.complete(ctx, transcript, nil)
}

// CompleteJSON is Complete with the response constrained to a JSON object.
func (c *Client) CompleteJSON(ctx context.Context, transcript []domain.Message) (domain.Reply, error) {
	return c.complete(ctx, transcript, &openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatTypeJSONObject,
	})
}

func (c *Client) complete(
	ctx context.Context, transcript []domain.Message, format *openai.ChatCompletionResponseFormat,
) (domain.Reply, error) {
	req := openai.ChatCompletionRequest{
		Model:          c.model,
		Messages:       toMessages(transcript),
		ResponseFormat: format,
	}
	if c.temperature != nil {
		req.Temperature = *c.temperature
	}
	if c.topP != nil {
		req.TopP = *c.topP
	}

	for attempt := 0; ; attempt++ {
		start := time.Now()
		resp, err := c.client.CreateChatCompletion(ctx, req)
		duration := time.Since(start)

		if err == nil {
			return c.reply(resp, duration)
		}
		metrics.ChatRequestsTotal.WithLabelValues(c.model, "error").Inc()
		if attempt >= c.maxRetries || !retryable(ctx, err) {
			return domain.Reply{}, parseAPIError(err)
		}
		delay := c.backoff(attempt)
		c.logger.Warn("Chat completion failed, retrying",
			zap.String("model", c.model),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return domain.Reply{}, ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (c *Client) reply(resp openai.ChatCompletionResponse, duration time.Duration) (domain.Reply, error) {
	if len(resp.Choices) == 0 {
		metrics.ChatRequestsTotal.WithLabelValues(c.model, "empty").Inc()
		return domain.Reply{}, fmt.Errorf("empty chat completion: %w", domain.ErrChatProvider)
	}
	metrics.ChatRequestsTotal.WithLabelValues(c.model, "success").Inc()
	metrics.ChatRequestDuration.WithLabelValues(c.model).Observe(duration.Seconds())
	usage := domain.Usage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}
	if usage.TotalTokens > 0 {
		metrics.ChatTokensTotal.WithLabelValues(c.model, "prompt").Add(float64(usage.PromptTokens))
		metrics.ChatTokensTotal.WithLabelValues(c.model, "completion").Add(float64(usage.CompletionTokens))
	}
	c.logger.Debug("Chat completion",
		zap.String("model", c.model),
		zap.Duration("duration", duration),
		zap.Int("total_tokens", usage.TotalTokens),
	)
	return domain.Reply{
		Content: strings.TrimSpace(resp.Choices[0].Message.Content),
		Usage:   usage,
	}, nil
}

func toMessages(transcript []domain.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(transcript))
	for _, m := range transcript {
		role := openai.ChatMessageRoleUser
		switch m.Role {
		case domain.RoleSystem:
			role = openai.ChatMessageRoleSystem
		case domain.RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return out
}

// retryable reports whether err is a rate limit, a server error or a transport failure.
func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	default:
		return true
	}
	return status == http.StatusTooManyRequests || status >= 500
}

// parseAPIError extracts a human-readable error wrapped with domain.ErrChatProvider.
func parseAPIError(err error) error {
	wrap := domain.ErrChatProvider

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("chat API error %d: %s: %w", apiErr.HTTPStatusCode, apiErr.Message, wrap)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if detail := extractDetail(reqErr.Body); detail != "" {
			return fmt.Errorf("chat API error %d: %s: %w", reqErr.HTTPStatusCode, detail, wrap)
		}
		return fmt.Errorf("chat API error %d: %w", reqErr.HTTPStatusCode, wrap)
	}
	return fmt.Errorf("chat request failed: %v: %w", err, wrap)
}

// extractDetail reads the "detail" field some compatible providers return.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}

func retryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := 200 * time.Millisecond
	// exponential backoff capped at 5s
	d := base << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}
