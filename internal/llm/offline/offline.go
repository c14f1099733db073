// Package offline provides a deterministic chat model for running without an
// API key. It restates the latest user message so the vocabulary extractor
// can still pick up catalog terms.
package offline

import (
	"context"
	"fmt"
	"strings"

	"recommender/internal/domain"
)

// Model is a canned responder implementing domain.ChatModel.
type Model struct {
	followUp string
}

// New creates an offline model that closes every reply with followUp.
func New(followUp string) *Model {
	if followUp == "" {
		followUp = "Would you like to refine by gender, budget or longevity?"
	}
	return &Model{followUp: followUp}
}

// Name returns the identifier of this chat model.
func (m *Model) Name() string { return "offline" }

// Complete echoes the last user message.
func (m *Model) Complete(ctx context.Context, transcript []domain.Message) (domain.Reply, error) {
	if err := ctx.Err(); err != nil {
		return domain.Reply{}, err
	}
	for i := len(transcript) - 1; i >= 0; i-- {
		if transcript[i].Role != domain.RoleUser {
			continue
		}
		text := strings.TrimSpace(transcript[i].Content)
		return domain.Reply{Content: fmt.Sprintf("Looking for: %s. %s", text, m.followUp)}, nil
	}
	return domain.Reply{Content: "Tell me about the person you are shopping for."}, nil
}
