package collab

import (
	"context"

	"github.com/WessleyAI/hybrid-rag/pkg/resilience"
)

type guardedGraphStore struct {
	next  GraphStore
	guard *resilience.Guard
}

// NewGuardedGraphStore routes every query through g.
func NewGuardedGraphStore(next GraphStore, g *resilience.Guard) GraphStore {
	return &guardedGraphStore{next: next, guard: g}
}

func (s *guardedGraphStore) ExecuteQuery(ctx context.Context, query string, params map[string]any) ([]Record, error) {
	return resilience.Do(ctx, s.guard, func(ctx context.Context) ([]Record, error) {
		return s.next.ExecuteQuery(ctx, query, params)
	})
}

type guardedEmbedder struct {
	next  EmbeddingProvider
	guard *resilience.Guard
}

// NewGuardedEmbedder routes every Embed call through g.
func NewGuardedEmbedder(next EmbeddingProvider, g *resilience.Guard) EmbeddingProvider {
	return &guardedEmbedder{next: next, guard: g}
}

func (e *guardedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return resilience.Do(ctx, e.guard, func(ctx context.Context) ([]float32, error) {
		return e.next.Embed(ctx, text)
	})
}

func (e *guardedEmbedder) Dimensions() int { return e.next.Dimensions() }

type guardedLLM struct {
	next  LLMClient
	guard *resilience.Guard
}

// NewGuardedLLM routes every Generate call through g.
func NewGuardedLLM(next LLMClient, g *resilience.Guard) LLMClient {
	return &guardedLLM{next: next, guard: g}
}

func (l *guardedLLM) Generate(ctx context.Context, req GenerateRequest) (Generation, error) {
	return resilience.Do(ctx, l.guard, func(ctx context.Context) (Generation, error) {
		return l.next.Generate(ctx, req)
	})
}
