// Package conversation holds caller-owned chat state. Nothing here is
// global: every turn receives the conversation it works on.
package conversation

import (
	"strings"

	"github.com/google/uuid"

	"recommender/internal/domain"
)

// Mode selects the assistant persona.
type Mode string

const (
	// ModePerfume recommends catalog items from extracted accords.
	ModePerfume Mode = "perfume"
	// ModeGift only chats; no catalog matching.
	ModeGift Mode = "gift"
)

const perfumePrompt = "You are a friendly scent stylist helping someone choose a perfume as a gift. " +
	"Use each message to refine the suggestion and describe the scent profile you recommend in terms of " +
	"fragrance accords such as floral, woody, citrus or amber. Close with one useful follow-up question, " +
	"for example about gender, longevity, budget or a floral versus woody profile."

const giftPrompt = "You are an inventive, psychology-driven gift recommender. Decide whether you know enough " +
	"to recommend gifts. If not, ask at most five follow-up questions about what matters: occasion, " +
	"personality, relationship, budget, preferences. Infer at least three personality traits or values " +
	"from the description. Once ready, stop asking and give three to five gift ideas with a one-sentence " +
	"rationale each."

// SystemPrompt returns the built-in instructions for mode.
func SystemPrompt(mode Mode) string {
	if mode == ModeGift {
		return giftPrompt
	}
	return perfumePrompt
}

// FollowUp is a canned refinement the user can send with one key.
type FollowUp struct {
	Label   string
	Message string
}

// FollowUps are the refinements offered after a recommendation.
var FollowUps = []FollowUp{
	{Label: "Refine by gender", Message: "I'd like to refine by gender."},
	{Label: "Set price range", Message: "I'd like to filter by price range."},
	{Label: "Adjust longevity", Message: "I want to choose a long-lasting or subtle scent."},
}

// Conversation is the state of one chat session.
type Conversation struct {
	ID       string
	Mode     Mode
	System   string
	Messages []domain.Message
	Tags     []string
	Ranking  *domain.Ranking
}

// New starts a conversation. An empty system prompt selects the mode's built-in one.
func New(mode Mode, system string) *Conversation {
	if system == "" {
		system = SystemPrompt(mode)
	}
	return &Conversation{ID: uuid.NewString(), Mode: mode, System: system}
}

// Append adds a message to the history.
func (c *Conversation) Append(role domain.Role, content string) {
	c.Messages = append(c.Messages, domain.Message{Role: role, Content: content})
}

// Transcript returns the system prompt followed by the history.
func (c *Conversation) Transcript() []domain.Message {
	out := make([]domain.Message, 0, len(c.Messages)+1)
	out = append(out, domain.Message{Role: domain.RoleSystem, Content: c.System})
	return append(out, c.Messages...)
}

// LastAssistant returns the latest assistant message, if any.
func (c *Conversation) LastAssistant() (string, bool) {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].Role == domain.RoleAssistant {
			return c.Messages[i].Content, true
		}
	}
	return "", false
}

// AwaitingAnswer reports whether the conversation ends with an assistant question.
func (c *Conversation) AwaitingAnswer() bool {
	if len(c.Messages) == 0 {
		return false
	}
	last := c.Messages[len(c.Messages)-1]
	return last.Role == domain.RoleAssistant && strings.HasSuffix(strings.TrimSpace(last.Content), "?")
}

// Clone returns a deep copy safe to hand to another goroutine.
func (c *Conversation) Clone() *Conversation {
	cp := *c
	cp.Messages = append([]domain.Message(nil), c.Messages...)
	cp.Tags = append([]string(nil), c.Tags...)
	if c.Ranking != nil {
		r := *c.Ranking
		r.Matches = append([]domain.Match(nil), c.Ranking.Matches...)
		r.IgnoredTerms = append([]string(nil), c.Ranking.IgnoredTerms...)
		cp.Ranking = &r
	}
	return &cp
}

// Reset starts over with a fresh ID, keeping mode and system prompt.
func (c *Conversation) Reset() {
	c.ID = uuid.NewString()
	c.Messages = nil
	c.Tags = nil
	c.Ranking = nil
}
