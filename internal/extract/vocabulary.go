package extract

import (
	"context"

	"recommender/internal/matcher"
)

// IndexSource exposes the currently served catalog index.
type IndexSource interface {
	Index() *matcher.Index
}

// Vocabulary keeps the words of a text that the catalog index knows about.
// It needs no network access and is deterministic.
type Vocabulary struct {
	source IndexSource
}

// NewVocabulary creates an extractor bound to the served index.
func NewVocabulary(source IndexSource) *Vocabulary {
	return &Vocabulary{source: source}
}

// Extract returns known index terms in first-seen order.
func (v *Vocabulary) Extract(_ context.Context, text string) ([]string, error) {
	ix := v.source.Index()
	if ix == nil {
		return nil, nil
	}
	var tags []string
	seen := make(map[string]struct{})
	for _, tok := range matcher.Tokenize(text) {
		if _, ok := seen[tok]; ok || !ix.Contains(tok) {
			continue
		}
		seen[tok] = struct{}{}
		tags = append(tags, tok)
	}
	return tags, nil
}
