package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"recommender/internal/conversation"
	"recommender/internal/domain"
)

// TurnResult is the outcome of one chat turn.
type TurnResult struct {
	Reply   string
	Tags    []string
	Ranking *domain.Ranking // nil when no tags were extracted
	Usage   domain.Usage
}

// Recommender runs chat turns: ask the chat model, extract accords from its
// reply and rank the catalog against them.
type Recommender struct {
	chat      domain.ChatModel
	extractor domain.TagExtractor // nil disables catalog matching
	matcher   domain.CatalogMatcher
	history   domain.HistoryRecorder // optional
	topK      int
	logger    *zap.Logger
}

// NewRecommender wires the turn pipeline. extractor and history may be nil.
func NewRecommender(
	chat domain.ChatModel, extractor domain.TagExtractor, matcher domain.CatalogMatcher,
	history domain.HistoryRecorder, topK int, logger *zap.Logger,
) *Recommender {
	if topK <= 0 {
		topK = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recommender{
		chat:      chat,
		extractor: extractor,
		matcher:   matcher,
		history:   history,
		topK:      topK,
		logger:    logger,
	}
}

// Turn sends input on conv and updates conv with the exchange. conv is only
// modified when the chat model answered.
func (s *Recommender) Turn(ctx context.Context, conv *conversation.Conversation, input string) (TurnResult, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return TurnResult{}, domain.ErrEmptyInput
	}
	transcript := append(conv.Transcript(), domain.Message{Role: domain.RoleUser, Content: input})
	reply, err := s.chat.Complete(ctx, transcript)
	if err != nil {
		return TurnResult{}, fmt.Errorf("chat turn: %w", err)
	}
	conv.Append(domain.RoleUser, input)
	conv.Append(domain.RoleAssistant, reply.Content)

	res := TurnResult{Reply: reply.Content, Usage: reply.Usage}
	if conv.Mode == conversation.ModePerfume && s.extractor != nil && s.matcher != nil {
		res.Tags, res.Ranking = s.recommend(ctx, conv.ID, reply.Content)
		if res.Ranking != nil {
			conv.Tags = res.Tags
			conv.Ranking = res.Ranking
		}
	}

	s.record(conv.ID, input, res)
	s.logger.Info("Chat turn",
		zap.String("conversation_id", conv.ID),
		zap.String("model", s.chat.Name()),
		zap.Int("total_tokens", reply.Usage.TotalTokens),
		zap.Strings("tags", res.Tags),
		zap.Bool("recommended", res.Ranking != nil),
	)
	return res, nil
}

// Recommend ranks the catalog directly against tags.
func (s *Recommender) Recommend(tags []string, k int) (domain.Ranking, error) {
	if s.matcher == nil {
		return domain.Ranking{}, domain.NewEmptyCatalog("no catalog matcher configured", nil)
	}
	return s.matcher.Query(tags, k)
}

// recommend degrades to no recommendation on extraction or matching failure;
// the chat reply is still delivered.
func (s *Recommender) recommend(ctx context.Context, convID, reply string) ([]string, *domain.Ranking) {
	tags, err := s.extractor.Extract(ctx, reply)
	if err != nil {
		s.logger.Warn("Tag extraction failed", zap.String("conversation_id", convID), zap.Error(err))
		return nil, nil
	}
	if len(tags) == 0 {
		return nil, nil
	}
	ranking, err := s.matcher.Query(tags, s.topK)
	if err != nil {
		s.logger.Warn("Catalog query failed", zap.String("conversation_id", convID), zap.Error(err))
		return tags, nil
	}
	if !ranking.HasMatch() {
		s.logger.Info("No catalog item matches the extracted tags",
			zap.String("conversation_id", convID),
			zap.Strings("tags", tags),
			zap.Strings("ignored_terms", ranking.IgnoredTerms),
		)
	}
	return tags, &ranking
}

func (s *Recommender) record(convID, input string, res TurnResult) {
	if s.history == nil {
		return
	}
	rec := domain.HistoryRecord{ConversationID: convID, UserPrompt: input, Tags: res.Tags}
	if res.Ranking != nil && res.Ranking.HasMatch() {
		for _, m := range res.Ranking.Matches {
			rec.Matches = append(rec.Matches, m.Item.Name)
		}
	}
	if err := s.history.Record(rec); err != nil {
		s.logger.Warn("Failed to record history", zap.String("conversation_id", convID), zap.Error(err))
	}
}
