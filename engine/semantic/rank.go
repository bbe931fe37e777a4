package semantic

import (
	"fmt"
	"math"
	"sort"

	"github.com/WessleyAI/hybrid-rag/engine/domain"
)

// Cosine returns the cosine similarity of a and b clamped to [0, 1].
// A zero-norm vector scores 0. a and b must have equal length.
func Cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	s := dot / (math.Sqrt(na) * math.Sqrt(nb))
	switch {
	case math.IsNaN(s), s < 0:
		return 0
	case s > 1:
		return 1
	}
	return s
}

// BruteForceRanker compares the query against every candidate. Cost is
// O(N*d) per query.
type BruteForceRanker struct{}

// Rank rejects the whole batch with domain.ErrDimensionMismatch if any
// candidate embedding length differs from the query's.
func (BruteForceRanker) Rank(query []float32, candidates []Candidate, threshold float64, topK int) ([]domain.VectorEvidenceItem, error) {
	for _, c := range candidates {
		if len(c.Embedding) != len(query) {
			return nil, fmt.Errorf("semantic: %w: candidate %q has %d dimensions, query has %d",
				domain.ErrDimensionMismatch, c.ID, len(c.Embedding), len(query))
		}
	}
	items := make([]domain.VectorEvidenceItem, 0, len(candidates))
	for _, c := range candidates {
		score := Cosine(query, c.Embedding)
		if score < threshold {
			continue
		}
		items = append(items, domain.VectorEvidenceItem{ID: c.ID, Text: c.Text, Score: score})
	}
	return Top(items, topK), nil
}

// Top sorts items by score descending, breaking ties by ID ascending, and
// truncates to k. Items are sorted in place.
func Top(items []domain.VectorEvidenceItem, k int) []domain.VectorEvidenceItem {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].ID < items[j].ID
	})
	if k > 0 && len(items) > k {
		items = items[:k]
	}
	return items
}
