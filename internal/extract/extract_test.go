package extract

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"go.uber.org/zap"

	"recommender/internal/domain"
	"recommender/internal/matcher"
)

type staticSource struct{ ix *matcher.Index }

func (s staticSource) Index() *matcher.Index { return s.ix }

func testIndex(t *testing.T) *matcher.Index {
	t.Helper()
	ix, err := matcher.Build([]domain.CatalogItem{
		domain.NewCatalogItem("Bloom", "Gucci", "", []string{"floral", "white floral", "fresh"}),
		domain.NewCatalogItem("Campfire", "Acme", "", []string{"woody", "smoky"}),
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return ix
}

type fakeCompleter struct {
	content string
	err     error
	got     []domain.Message
}

func (f *fakeCompleter) CompleteJSON(_ context.Context, transcript []domain.Message) (domain.Reply, error) {
	f.got = transcript
	return domain.Reply{Content: f.content}, f.err
}

func TestNormalizeTags(t *testing.T) {
	got := NormalizeTags([]string{" Floral ", "WHITE  floral", "floral", "", "ｗｏｏｄｙ", "   "})
	want := []string{"floral", "white floral", "woody"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("NormalizeTags = %v, want %v", got, want)
	}
}

func TestVocabulary_Extract(t *testing.T) {
	v := NewVocabulary(staticSource{testIndex(t)})
	tags, err := v.Extract(context.Background(), "Something Woody, a bit smoky, maybe oud? Woody again.")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !reflect.DeepEqual(tags, []string{"woody", "smoky"}) {
		t.Errorf("tags = %v", tags)
	}
}

func TestVocabulary_NoIndex(t *testing.T) {
	tags, err := NewVocabulary(staticSource{}).Extract(context.Background(), "woody")
	if err != nil || tags != nil {
		t.Errorf("expected no tags and no error, got %v, %v", tags, err)
	}
}

func TestLLM_Extract(t *testing.T) {
	fc := &fakeCompleter{content: `{"accords": ["Floral", "fresh", "floral", " Citrus "]}`}
	e := NewLLM(fc, staticSource{testIndex(t)}, zap.NewNop())
	tags, err := e.Extract(context.Background(), "Try something floral and fresh with citrus.")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !reflect.DeepEqual(tags, []string{"floral", "fresh", "citrus"}) {
		t.Errorf("tags = %v", tags)
	}
	if len(fc.got) != 2 || fc.got[0].Role != domain.RoleSystem {
		t.Fatalf("unexpected transcript %+v", fc.got)
	}
	if !strings.Contains(fc.got[0].Content, "smoky") {
		t.Errorf("system prompt should offer catalog vocabulary: %q", fc.got[0].Content)
	}
}

func TestLLM_EmptyText(t *testing.T) {
	fc := &fakeCompleter{}
	tags, err := NewLLM(fc, nil, nil).Extract(context.Background(), "   ")
	if err != nil || tags != nil {
		t.Errorf("expected nothing, got %v, %v", tags, err)
	}
	if fc.got != nil {
		t.Error("model should not be called for empty text")
	}
}

func TestLLM_Errors(t *testing.T) {
	_, err := NewLLM(&fakeCompleter{err: domain.ErrChatProvider}, nil, nil).Extract(context.Background(), "x")
	if !errors.Is(err, domain.ErrChatProvider) {
		t.Errorf("expected wrapped provider error, got %v", err)
	}
	_, err = NewLLM(&fakeCompleter{content: "Accords: floral"}, nil, nil).Extract(context.Background(), "x")
	if err == nil || !strings.Contains(err.Error(), "decode accords payload") {
		t.Errorf("expected decode error, got %v", err)
	}
}
