package matcher

import (
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"recommender/internal/domain"
	"recommender/internal/metrics"
)

// Matcher serves queries from the currently installed Index. Installing a
// new index is an atomic pointer swap, so in-flight queries always see a
// fully built index.
type Matcher struct {
	current atomic.Pointer[Index]
	logger  *zap.Logger
}

// New creates a Matcher without an index.
func New(logger *zap.Logger) *Matcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Matcher{logger: logger}
}

// NewFromCatalog builds an index for items and installs it.
func NewFromCatalog(items []domain.CatalogItem, logger *zap.Logger) (*Matcher, error) {
	ix, err := Build(items)
	if err != nil {
		return nil, err
	}
	m := New(logger)
	m.Install(ix)
	return m, nil
}

// Install replaces the served index.
func (m *Matcher) Install(ix *Index) {
	if ix == nil {
		return
	}
	prev := m.current.Swap(ix)
	metrics.CatalogItems.Set(float64(ix.Len()))
	fields := []zap.Field{zap.Int("items", ix.Len()), zap.Int("terms", len(ix.terms))}
	if prev != nil {
		fields = append(fields, zap.Int("previous_items", prev.Len()))
	}
	m.logger.Info("Catalog index installed", fields...)
}

// Index returns the served index, or nil before the first Install.
func (m *Matcher) Index() *Index {
	return m.current.Load()
}

// Query ranks the installed catalog against tags.
func (m *Matcher) Query(tags []string, k int) (domain.Ranking, error) {
	ix := m.current.Load()
	if ix == nil {
		return domain.Ranking{}, domain.NewEmptyCatalog("no catalog index installed", nil)
	}
	start := time.Now()
	ranking, err := ix.Query(tags, k)
	metrics.MatcherQueryDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.MatcherQueriesTotal.WithLabelValues("invalid").Inc()
		return domain.Ranking{}, err
	}
	outcome := "match"
	if !ranking.HasMatch() {
		outcome = "no_match"
	}
	metrics.MatcherQueriesTotal.WithLabelValues(outcome).Inc()
	m.logger.Debug("Catalog query",
		zap.Strings("tags", tags),
		zap.Int("k", k),
		zap.String("outcome", outcome),
		zap.Strings("ignored_terms", ranking.IgnoredTerms),
	)
	return ranking, nil
}
