package domain

import (
	"context"
	"strings"
)

// CatalogItem is a single recommendable product loaded from the catalog source.
type CatalogItem struct {
	Name         string
	Brand        string
	Accords      []string // ranked, empty strings kept for absent accords
	ProfileText  string
	ReferenceURL string
}

// NewCatalogItem builds an item whose profile text is the accords joined with single spaces.
func NewCatalogItem(name, brand, url string, accords []string) CatalogItem {
	a := make([]string, len(accords))
	copy(a, accords)
	return CatalogItem{
		Name:         name,
		Brand:        brand,
		Accords:      a,
		ProfileText:  strings.Join(a, " "),
		ReferenceURL: url,
	}
}

// AccordSummary lists the non-empty accords, comma separated.
func (c CatalogItem) AccordSummary() string {
	parts := make([]string, 0, len(c.Accords))
	for _, a := range c.Accords {
		if a != "" {
			parts = append(parts, a)
		}
	}
	return strings.Join(parts, ", ")
}

// Match is a catalog item paired with its similarity to a query.
type Match struct {
	Item  CatalogItem
	Score float64
}

// Ranking is the ordered result of a catalog query.
type Ranking struct {
	Matches []Match
	// IgnoredTerms are query terms absent from the index vocabulary.
	IgnoredTerms []string
}

// HasMatch reports whether any item scored above zero. An all-zero ranking
// is catalog order, not a real top-K.
func (r Ranking) HasMatch() bool {
	for _, m := range r.Matches {
		if m.Score > 0 {
			return true
		}
	}
	return false
}

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of a chat transcript.
type Message struct {
	Role    Role
	Content string
}

// Usage reports token consumption of a chat completion.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Reply is the assistant answer for a transcript.
type Reply struct {
	Content string
	Usage   Usage
}

// ChatModel produces the next assistant message for a transcript.
type ChatModel interface {
	Name() string
	Complete(ctx context.Context, transcript []Message) (Reply, error)
}

// TagExtractor turns free text into lower-cased keyword tags.
type TagExtractor interface {
	Extract(ctx context.Context, text string) ([]string, error)
}

// CatalogMatcher ranks catalog items against a set of tags.
type CatalogMatcher interface {
	Query(tags []string, k int) (Ranking, error)
}

// HistoryRecord is one logged interaction.
type HistoryRecord struct {
	ConversationID string
	UserPrompt     string
	Tags           []string
	Matches        []string
}

// HistoryRecorder persists interactions for later review.
type HistoryRecorder interface {
	Record(rec HistoryRecord) error
}
