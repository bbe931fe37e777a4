// Package synth turns graph and vector evidence into a natural-language
// answer with a single LLM call.
package synth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/WessleyAI/hybrid-rag/engine/collab"
	"github.com/WessleyAI/hybrid-rag/engine/domain"
)

// Placeholder sentences rendered in place of an empty evidence section.
const (
	NoGraphEvidence  = "No relevant graph relationships found."
	NoVectorEvidence = "No relevant text content found."
)

// SystemPrompt instructs the model to stay grounded in the evidence.
const SystemPrompt = `You answer questions using ONLY the evidence provided in the context.
The context has two sections: relationships from a knowledge graph and text passages.
If the evidence does not contain enough information to answer, say so plainly
instead of guessing. Never invent facts, names or relationships.`

// Synthesizer produces the final answer.
type Synthesizer struct {
	llm         collab.LLMClient
	temperature float32
	logger      *slog.Logger
}

// New creates a Synthesizer.
func New(llm collab.LLMClient, logger *slog.Logger) *Synthesizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synthesizer{llm: llm, temperature: 0.2, logger: logger}
}

// Synthesize answers query from the evidence. With no evidence at all it
// returns domain.InsufficientAnswer without calling the model. An LLM
// failure or empty completion is returned as a synthesis StageError.
func (s *Synthesizer) Synthesize(ctx context.Context, query string, graph []domain.GraphEvidenceItem, vector []domain.VectorEvidenceItem) (string, error) {
	if len(graph) == 0 && len(vector) == 0 {
		return domain.InsufficientAnswer, nil
	}

	gen, err := s.llm.Generate(ctx, collab.GenerateRequest{
		System:      SystemPrompt,
		Prompt:      BuildPrompt(query, graph, vector),
		Temperature: s.temperature,
	})
	if err != nil {
		s.logger.Error("answer synthesis failed", "err", err)
		return "", domain.NewStageError(domain.StageSynthesis, fmt.Errorf("synth: generate: %w", err))
	}
	answer := strings.TrimSpace(gen.Text)
	if answer == "" {
		s.logger.Error("answer synthesis returned empty completion", "kind", gen.Kind.String())
		return "", domain.NewStageError(domain.StageSynthesis, errors.New("synth: empty completion"))
	}
	s.logger.Debug("answer synthesized", "model", gen.Model, "tokens", gen.TokensUsed)
	return answer, nil
}

// BuildPrompt renders the question and both evidence sections. Empty
// sections are replaced by their placeholder sentence.
func BuildPrompt(query string, graph []domain.GraphEvidenceItem, vector []domain.VectorEvidenceItem) string {
	var b strings.Builder
	b.WriteString("Context:\n\nKnowledge graph relationships:\n")
	if len(graph) == 0 {
		b.WriteString(NoGraphEvidence + "\n")
	}
	for _, g := range graph {
		fmt.Fprintf(&b, "- %s", g.Label())
		if g.Source.Type != "" || g.Target.Type != "" {
			fmt.Fprintf(&b, " (%s -> %s)", orUnknown(g.Source.Type), orUnknown(g.Target.Type))
		}
		b.WriteString("\n")
	}

	b.WriteString("\nText passages:\n")
	if len(vector) == 0 {
		b.WriteString(NoVectorEvidence + "\n")
	}
	for _, v := range vector {
		fmt.Fprintf(&b, "[%s] (score: %.3f)\n%s\n", v.ID, v.Score, strings.TrimSpace(v.Text))
	}

	fmt.Fprintf(&b, "\nQuestion: %s\n", query)
	return b.String()
}

func orUnknown(s string) string {
	if s == "" {
		return "?"
	}
	return s
}
