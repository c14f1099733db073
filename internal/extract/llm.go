package extract

import (
	"context"
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"recommender/internal/domain"
)

// maxHintTerms bounds how much of the catalog vocabulary goes into the prompt.
const maxHintTerms = 120

// JSONCompleter is a chat model that can be constrained to JSON object output.
type JSONCompleter interface {
	CompleteJSON(ctx context.Context, transcript []domain.Message) (domain.Reply, error)
}

// LLM asks a chat model for the scent accords a text describes and decodes
// the typed {"accords": [...]} answer.
type LLM struct {
	model  JSONCompleter
	source IndexSource
	logger *zap.Logger
}

// NewLLM creates an LLM-backed extractor. source is optional; when present
// the catalog vocabulary is offered to the model as preferred wording.
func NewLLM(model JSONCompleter, source IndexSource, logger *zap.Logger) *LLM {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLM{model: model, source: source, logger: logger}
}

type accordsPayload struct {
	Accords []string `json:"accords"`
}

// Extract returns normalized accord tags for text.
func (e *LLM) Extract(ctx context.Context, text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	reply, err := e.model.CompleteJSON(ctx, []domain.Message{
		{Role: domain.RoleSystem, Content: e.instructions()},
		{Role: domain.RoleUser, Content: text},
	})
	if err != nil {
		return nil, fmt.Errorf("extract accords: %w", err)
	}
	var payload accordsPayload
	if err := json.Unmarshal([]byte(reply.Content), &payload); err != nil {
		return nil, fmt.Errorf("decode accords payload: %w", err)
	}
	tags := NormalizeTags(payload.Accords)
	e.logger.Debug("Accords extracted", zap.Strings("tags", tags), zap.Int("total_tokens", reply.Usage.TotalTokens))
	return tags, nil
}

func (e *LLM) instructions() string {
	var b strings.Builder
	b.WriteString("Identify the fragrance accords (scent families such as floral, woody, citrus) ")
	b.WriteString("that the following text recommends or implies. ")
	b.WriteString(`Answer with a JSON object of the form {"accords": ["..."]} using short lower-case names. `)
	b.WriteString("Use an empty list when the text suggests no scent profile.")
	if e.source == nil {
		return b.String()
	}
	ix := e.source.Index()
	if ix == nil {
		return b.String()
	}
	vocab := ix.Vocabulary()
	if len(vocab) > maxHintTerms {
		vocab = vocab[:maxHintTerms]
	}
	b.WriteString(" Prefer these catalog terms: ")
	b.WriteString(strings.Join(vocab, ", "))
	b.WriteString(".")
	return b.String()
}
