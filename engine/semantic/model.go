// Package semantic retrieves passages by cosine similarity between the
// question embedding and precomputed passage embeddings.
package semantic

import (
	"context"

	"github.com/WessleyAI/hybrid-rag/engine/domain"
)

// Candidate is a stored passage with its precomputed embedding.
type Candidate struct {
	ID        string
	Text      string
	Embedding []float32
}

// CandidateSource bulk-loads every passage eligible for ranking.
type CandidateSource interface {
	Candidates(ctx context.Context) ([]Candidate, error)
}

// Searcher finds the passages most similar to an embedded query. Results
// are sorted by score descending then ID ascending, all scores are >=
// threshold and at most topK items are returned.
type Searcher interface {
	Search(ctx context.Context, query []float32, threshold float64, topK int) ([]domain.VectorEvidenceItem, error)
}

// Ranker scores candidates against a query vector.
type Ranker interface {
	Rank(query []float32, candidates []Candidate, threshold float64, topK int) ([]domain.VectorEvidenceItem, error)
}

// StaticSource serves a fixed in-memory candidate list.
type StaticSource []Candidate

// Candidates returns a copy of the list.
func (s StaticSource) Candidates(context.Context) ([]Candidate, error) {
	out := make([]Candidate, len(s))
	copy(out, s)
	return out, nil
}
