// Package matcher ranks catalog items against keyword tags using TF-IDF
// weighted bag-of-words vectors and cosine similarity.
package matcher

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"recommender/internal/domain"
)

// tokenPattern keeps runs of at least two word characters.
var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)

// Tokenize lower-cases text and splits it into index terms.
func Tokenize(text string) []string {
	return tokenPattern.FindAllString(strings.ToLower(text), -1)
}

type sparseVector struct {
	terms   []int // ascending vocabulary ids
	weights []float64
	norm    float64
}

// Index is an immutable TF-IDF index over a catalog. It is safe for
// concurrent queries.
type Index struct {
	items      []domain.CatalogItem
	vocabulary map[string]int
	terms      []string
	idf        []float64
	vectors    []sparseVector
}

// Build computes the vocabulary, smoothed IDF values and normalized item
// vectors for the catalog.
func Build(items []domain.CatalogItem) (*Index, error) {
	if len(items) == 0 {
		return nil, domain.NewEmptyCatalog("catalog has no items", nil)
	}
	docs := make([][]string, len(items))
	df := make(map[string]int)
	for i, item := range items {
		tokens := Tokenize(item.ProfileText)
		docs[i] = tokens
		seen := make(map[string]struct{}, len(tokens))
		for _, tok := range tokens {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			df[tok]++
		}
	}
	if len(df) == 0 {
		return nil, domain.NewEmptyCatalog("no indexable terms in item profiles", nil)
	}

	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	ix := &Index{
		items:      make([]domain.CatalogItem, len(items)),
		vocabulary: make(map[string]int, len(terms)),
		terms:      terms,
		idf:        make([]float64, len(terms)),
		vectors:    make([]sparseVector, len(items)),
	}
	copy(ix.items, items)
	n := float64(len(items))
	for i, term := range terms {
		ix.vocabulary[term] = i
		ix.idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1.0
	}
	for i, tokens := range docs {
		vec, _ := ix.weigh(tokens)
		vec.normalize()
		ix.vectors[i] = vec
	}
	return ix, nil
}

// Len returns the number of indexed items.
func (ix *Index) Len() int { return len(ix.items) }

// Items returns a copy of the indexed catalog in original order.
func (ix *Index) Items() []domain.CatalogItem {
	out := make([]domain.CatalogItem, len(ix.items))
	copy(out, ix.items)
	return out
}

// Vocabulary returns the sorted index terms.
func (ix *Index) Vocabulary() []string {
	out := make([]string, len(ix.terms))
	copy(out, ix.terms)
	return out
}

// Contains reports whether term is part of the vocabulary.
func (ix *Index) Contains(term string) bool {
	_, ok := ix.vocabulary[term]
	return ok
}

// Query returns the k items most similar to the tags. Unknown terms are
// ignored for scoring and reported in Ranking.IgnoredTerms. When nothing
// matches, the ranking is the first k items in catalog order with zero scores.
func (ix *Index) Query(tags []string, k int) (domain.Ranking, error) {
	if k < 1 {
		return domain.Ranking{}, &domain.InvalidQueryError{K: k}
	}
	q, ignored := ix.weigh(Tokenize(strings.Join(tags, " ")))
	q.norm = q.length()

	scores := make([]float64, len(ix.vectors))
	if q.norm > 0 {
		for i := range ix.vectors {
			scores[i] = cosine(q, ix.vectors[i])
		}
	}
	order := argsortDesc(scores)
	if k > len(order) {
		k = len(order)
	}
	matches := make([]domain.Match, 0, k)
	for _, idx := range order[:k] {
		matches = append(matches, domain.Match{Item: ix.items[idx], Score: scores[idx]})
	}
	return domain.Ranking{Matches: matches, IgnoredTerms: ignored}, nil
}

// weigh builds a raw tf*idf vector for tokens and collects out-of-vocabulary terms.
func (ix *Index) weigh(tokens []string) (sparseVector, []string) {
	tf := make(map[int]int)
	var unknown []string
	seenUnknown := make(map[string]struct{})
	for _, tok := range tokens {
		if idx, ok := ix.vocabulary[tok]; ok {
			tf[idx]++
			continue
		}
		if _, ok := seenUnknown[tok]; !ok {
			seenUnknown[tok] = struct{}{}
			unknown = append(unknown, tok)
		}
	}
	vec := sparseVector{terms: make([]int, 0, len(tf))}
	for idx := range tf {
		vec.terms = append(vec.terms, idx)
	}
	sort.Ints(vec.terms)
	vec.weights = make([]float64, len(vec.terms))
	for i, idx := range vec.terms {
		vec.weights[i] = float64(tf[idx]) * ix.idf[idx]
	}
	return vec, unknown
}

func (v *sparseVector) length() float64 {
	sum := 0.0
	for _, w := range v.weights {
		sum += w * w
	}
	return math.Sqrt(sum)
}

// normalize scales v to unit length. Empty vectors keep a zero norm.
func (v *sparseVector) normalize() {
	n := v.length()
	if n == 0 {
		return
	}
	for i := range v.weights {
		v.weights[i] /= n
	}
	v.norm = 1
}

// cosine merges two sorted sparse vectors. The result is clamped to [0,1]
// to absorb rounding on identical vectors.
func cosine(a, b sparseVector) float64 {
	if a.norm == 0 || b.norm == 0 {
		return 0
	}
	dot := 0.0
	i, j := 0, 0
	for i < len(a.terms) && j < len(b.terms) {
		switch {
		case a.terms[i] == b.terms[j]:
			dot += a.weights[i] * b.weights[j]
			i++
			j++
		case a.terms[i] < b.terms[j]:
			i++
		default:
			j++
		}
	}
	s := dot / (a.norm * b.norm)
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

// argsortDesc orders indexes by descending score; ties keep catalog order.
func argsortDesc(vals []float64) []int {
	idxs := make([]int, len(vals))
	for i := range vals {
		idxs[i] = i
	}
	sort.SliceStable(idxs, func(i, j int) bool { return vals[idxs[i]] > vals[idxs[j]] })
	return idxs
}
