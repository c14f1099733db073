package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"recommender/internal/domain"
	"recommender/internal/matcher"
	"recommender/internal/metrics"
)

func newTestServer(t *testing.T) (*Server, *matcher.Matcher) {
	t.Helper()
	metrics.Register()
	m, err := matcher.NewFromCatalog([]domain.CatalogItem{
		domain.NewCatalogItem("Bloom", "Petal", "https://example.com/bloom", []string{"floral", "fresh", ""}),
		domain.NewCatalogItem("Campfire", "Ember", "", []string{"woody", "smoky"}),
		domain.NewCatalogItem("Sea", "", "", []string{"aquatic", "fresh"}),
	}, nil)
	if err != nil {
		t.Fatalf("NewFromCatalog: %v", err)
	}
	return New(m, nil), m
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestMatch_RanksCatalog(t *testing.T) {
	s, _ := newTestServer(t)
	rr := do(t, s.Router(), http.MethodPost, "/v1/match", `{"tags":["woody","Smoky","leather"],"k":2}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp matchResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(resp.Matches))
	}
	if resp.Matches[0].Name != "Campfire" || resp.Matches[0].Score <= 0 {
		t.Errorf("unexpected top match %+v", resp.Matches[0])
	}
	if !resp.HasMatch {
		t.Error("expected has_match")
	}
	if len(resp.IgnoredTerms) != 1 || resp.IgnoredTerms[0] != "leather" {
		t.Errorf("ignored terms = %v", resp.IgnoredTerms)
	}
}

func TestMatch_DefaultK(t *testing.T) {
	s, _ := newTestServer(t)
	rr := do(t, s.Router(), http.MethodPost, "/v1/match", `{"tags":["fresh"]}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp matchResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Matches) != 3 {
		t.Fatalf("expected min(5, 3) matches, got %d", len(resp.Matches))
	}
	for _, m := range resp.Matches {
		for _, a := range m.Accords {
			if a == "" {
				t.Errorf("empty accord leaked for %s", m.Name)
			}
		}
	}
}

func TestMatch_BadRequests(t *testing.T) {
	s, _ := newTestServer(t)
	cases := map[string]string{
		"invalid json":  `{"tags":`,
		"trailing data": `{"tags":[]}garbage`,
		"two objects":   `{"tags":[]} {"tags":["woody"]}`,
		"zero k":        `{"tags":["woody"],"k":0}`,
		"negative k":    `{"tags":["woody"],"k":-3}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rr := do(t, s.Router(), http.MethodPost, "/v1/match", body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rr.Code)
			}
			var resp errorResponse
			if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil || resp.Code == "" {
				t.Fatalf("expected error body, got %q", rr.Body.String())
			}
		})
	}
}

func TestEndpoints_WithoutIndex(t *testing.T) {
	metrics.Register()
	s := New(matcher.New(nil), nil)
	h := s.Router()

	if rr := do(t, h, http.MethodPost, "/v1/match", `{"tags":["woody"]}`); rr.Code != http.StatusServiceUnavailable {
		t.Errorf("match: expected 503, got %d", rr.Code)
	}
	if rr := do(t, h, http.MethodGet, "/v1/catalog", ""); rr.Code != http.StatusServiceUnavailable {
		t.Errorf("catalog: expected 503, got %d", rr.Code)
	}
	if rr := do(t, h, http.MethodGet, "/healthz", ""); rr.Code != http.StatusServiceUnavailable {
		t.Errorf("healthz: expected 503, got %d", rr.Code)
	}
}

func TestCatalogAndHealth(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Router()

	rr := do(t, h, http.MethodGet, "/v1/catalog", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("catalog: expected 200, got %d", rr.Code)
	}
	var info catalogResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if info.Items != 3 || info.Vocabulary != 5 {
		t.Errorf("unexpected catalog info %+v", info)
	}

	rr = do(t, h, http.MethodGet, "/healthz", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"ok"`) {
		t.Errorf("healthz: %d %s", rr.Code, rr.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Router()
	do(t, h, http.MethodPost, "/v1/match", `{"tags":["woody"]}`)

	rr := do(t, h, http.MethodGet, "/metrics", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "recommender_matcher_queries_total") {
		t.Error("expected matcher metrics in exposition")
	}
}

func TestMatch_TrailingWhitespaceAccepted(t *testing.T) {
	s, _ := newTestServer(t)
	rr := do(t, s.Router(), http.MethodPost, "/v1/match", "{\"tags\":[\"woody\"]}\n  \n")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
}
