package semantic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/WessleyAI/hybrid-rag/engine/collab"
	"github.com/WessleyAI/hybrid-rag/engine/domain"
)

// ScanSearcher loads every candidate from Source and ranks them with Ranker.
type ScanSearcher struct {
	Source CandidateSource
	Ranker Ranker
}

// NewScanSearcher creates a ScanSearcher using the brute-force ranker.
func NewScanSearcher(src CandidateSource) *ScanSearcher {
	return &ScanSearcher{Source: src, Ranker: BruteForceRanker{}}
}

func (s *ScanSearcher) Search(ctx context.Context, query []float32, threshold float64, topK int) ([]domain.VectorEvidenceItem, error) {
	cands, err := s.Source.Candidates(ctx)
	if err != nil {
		return nil, fmt.Errorf("semantic: load candidates: %w", err)
	}
	ranker := s.Ranker
	if ranker == nil {
		ranker = BruteForceRanker{}
	}
	return ranker.Rank(query, cands, threshold, topK)
}

// Retriever embeds the question once and delegates ranking to a Searcher.
type Retriever struct {
	embedder collab.EmbeddingProvider
	searcher Searcher
	cfg      domain.Config
	logger   *slog.Logger
}

// NewRetriever creates a Retriever.
func NewRetriever(embedder collab.EmbeddingProvider, searcher Searcher, cfg domain.Config, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{embedder: embedder, searcher: searcher, cfg: cfg, logger: logger}
}

// Retrieve returns at most cfg.TopK passages scoring at least
// cfg.SimilarityThreshold. Any failure yields an empty list and a vector
// StageError.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]domain.VectorEvidenceItem, error) {
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return r.fail(fmt.Errorf("semantic: embed query: %w", err))
	}
	if len(vec) == 0 {
		return r.fail(errors.New("semantic: empty query embedding"))
	}
	if d := r.embedder.Dimensions(); d > 0 && len(vec) != d {
		return r.fail(fmt.Errorf("semantic: %w: query has %d dimensions, provider expects %d",
			domain.ErrDimensionMismatch, len(vec), d))
	}

	items, err := r.searcher.Search(ctx, vec, r.cfg.SimilarityThreshold, r.cfg.TopK)
	if err != nil {
		return r.fail(err)
	}
	if items == nil {
		items = []domain.VectorEvidenceItem{}
	}
	r.logger.Debug("vector retrieval done", "evidence", len(items))
	return items, nil
}

func (r *Retriever) fail(err error) ([]domain.VectorEvidenceItem, error) {
	if errors.Is(err, domain.ErrDimensionMismatch) {
		r.logger.Error("vector retrieval rejected", "err", err)
	} else {
		r.logger.Warn("vector retrieval failed", "err", err)
	}
	return []domain.VectorEvidenceItem{}, domain.NewStageError(domain.StageVector, err)
}
