// Package structure turns a raw question into entities and relationship
// hints using a schema-constrained LLM call.
package structure

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/WessleyAI/hybrid-rag/engine/collab"
	"github.com/WessleyAI/hybrid-rag/engine/domain"
)

// FunctionName is the name of the extraction function offered to the model.
const FunctionName = "extract_query_structure"

const systemPrompt = `You extract structure from questions about a knowledge graph.
Identify the named entities (with an entity type when one is evident) and the
relationship types the question asks about. Only report what the question mentions.
Call the extraction function with your result.`

// Schema is the extraction function offered to the model.
var Schema = collab.FunctionSchema{
	Name:        FunctionName,
	Description: "Record the entities and relationship types mentioned in a question.",
	Parameters: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"entities": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"name": map[string]any{"type": "string", "description": "Entity name as written in the question."},
						"type": map[string]any{"type": "string", "description": "Entity type such as Person, Company or Component."},
					},
					"required": []string{"name"},
				},
			},
			"relationships": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Relationship types the question asks about, e.g. WORKS_FOR.",
			},
		},
		"required": []string{"entities", "relationships"},
	},
}

// Structurer extracts a StructuredQuery from question text.
type Structurer struct {
	llm    collab.LLMClient
	cfg    domain.Config
	logger *slog.Logger
}

// New creates a Structurer.
func New(llm collab.LLMClient, cfg domain.Config, logger *slog.Logger) *Structurer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Structurer{llm: llm, cfg: cfg, logger: logger}
}

// Structure extracts entities and relationship hints from query. It always
// returns a usable (possibly empty) StructuredQuery; a non-nil error is a
// StageError describing an LLM failure and must not abort the request.
func (s *Structurer) Structure(ctx context.Context, query string) (domain.StructuredQuery, error) {
	empty := domain.StructuredQuery{}.Normalize()

	schema := Schema
	gen, err := s.llm.Generate(ctx, collab.GenerateRequest{
		System:         systemPrompt,
		Prompt:         "Question: " + query,
		Schema:         &schema,
		ThinkingBudget: s.cfg.ThinkingBudget,
	})
	if err != nil {
		s.logger.Warn("query structuring failed", "err", err)
		return empty, domain.NewStageError(domain.StageStructuring, fmt.Errorf("structure: generate: %w", err))
	}

	sq, ok := Normalize(gen)
	if !ok {
		s.logger.Debug("structuring output not parseable", "kind", gen.Kind.String())
		return empty, nil
	}
	if s.cfg.MaxEntities > 0 && len(sq.Entities) > s.cfg.MaxEntities {
		sq.Entities = sq.Entities[:s.cfg.MaxEntities]
	}
	s.logger.Debug("query structured", "entities", len(sq.Entities), "relationships", len(sq.Relationships))
	return sq, nil
}
