package matcher

import (
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"

	"recommender/internal/domain"
)

func TestMatcher_QueryBeforeInstall(t *testing.T) {
	m := New(zap.NewNop())
	_, err := m.Query([]string{"floral"}, 1)
	if !errors.Is(err, domain.ErrEmptyCatalog) {
		t.Fatalf("expected ErrEmptyCatalog, got %v", err)
	}
}

func TestMatcher_InstallSwapsIndex(t *testing.T) {
	m, err := NewFromCatalog([]domain.CatalogItem{item("Old", "woody")}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewFromCatalog: %v", err)
	}
	r, _ := m.Query([]string{"woody"}, 5)
	if len(r.Matches) != 1 || r.Matches[0].Item.Name != "Old" {
		t.Fatalf("unexpected ranking %v", names(r))
	}

	next, err := Build(sampleCatalog())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	m.Install(next)
	r, _ = m.Query([]string{"woody"}, 5)
	if len(r.Matches) != 5 {
		t.Fatalf("expected new catalog, got %v", names(r))
	}
	m.Install(nil)
	if m.Index() != next {
		t.Error("installing nil must keep the current index")
	}
}

func TestMatcher_ConcurrentQueriesDuringSwap(t *testing.T) {
	m, err := NewFromCatalog(sampleCatalog(), zap.NewNop())
	if err != nil {
		t.Fatalf("NewFromCatalog: %v", err)
	}
	alt, err := Build(sampleCatalog()[:2])
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				r, err := m.Query([]string{"fresh"}, 5)
				if err != nil {
					t.Errorf("Query: %v", err)
					return
				}
				if n := len(r.Matches); n != 5 && n != 2 {
					t.Errorf("observed partial index with %d matches", n)
					return
				}
			}
		}()
	}
	for i := 0; i < 50; i++ {
		if i%2 == 0 {
			m.Install(alt)
		} else {
			idx, _ := Build(sampleCatalog())
			m.Install(idx)
		}
	}
	wg.Wait()
}
