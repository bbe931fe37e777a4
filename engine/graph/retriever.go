package graph

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/WessleyAI/hybrid-rag/engine/collab"
	"github.com/WessleyAI/hybrid-rag/engine/domain"
)

// Retriever resolves a StructuredQuery into graph evidence with a single
// parameterized store call.
type Retriever struct {
	store  collab.GraphStore
	cfg    domain.Config
	logger *slog.Logger
}

// NewRetriever creates a Retriever.
func NewRetriever(store collab.GraphStore, cfg domain.Config, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{store: store, cfg: cfg, logger: logger}
}

// Retrieve returns at most cfg.GraphResultLimit evidence items. Empty
// entities return immediately without touching the store. A store failure
// yields empty evidence and a graph StageError.
func (r *Retriever) Retrieve(ctx context.Context, sq domain.StructuredQuery) ([]domain.GraphEvidenceItem, error) {
	if len(sq.Entities) == 0 {
		return []domain.GraphEvidenceItem{}, nil
	}

	q := BuildQuery(sq, r.cfg)
	r.logger.Debug("graph query", "tightened", q.Tightened, "params", q.paramNames(), "cypher", q.Inline())

	records, err := r.store.ExecuteQuery(ctx, q.Cypher, q.Params)
	if err != nil {
		r.logger.Warn("graph retrieval failed", "err", err)
		return []domain.GraphEvidenceItem{}, domain.NewStageError(domain.StageGraph, fmt.Errorf("graph: execute query: %w", err))
	}

	limit := q.Params["limit"].(int)
	items := make([]domain.GraphEvidenceItem, 0, len(records))
	for _, rec := range records {
		item, ok := decodeRecord(rec)
		if !ok {
			continue
		}
		items = append(items, item)
		if len(items) == limit {
			break
		}
	}
	r.logger.Debug("graph retrieval done", "records", len(records), "evidence", len(items))
	return items, nil
}

// decodeRecord maps one result row to evidence. Rows whose endpoints have
// no name are dropped.
func decodeRecord(rec collab.Record) (domain.GraphEvidenceItem, bool) {
	src := strVal(rec, "source_name")
	tgt := strVal(rec, "target_name")
	rel := strVal(rec, "relationship_type")
	if src == "" || tgt == "" || rel == "" {
		return domain.GraphEvidenceItem{}, false
	}
	return domain.GraphEvidenceItem{
		Source:            domain.Node{Name: src, Type: strVal(rec, "source_type"), Props: mapVal(rec, "source_props")},
		RelationshipType:  rel,
		RelationshipProps: mapVal(rec, "relationship_props"),
		Target:            domain.Node{Name: tgt, Type: strVal(rec, "target_type"), Props: mapVal(rec, "target_props")},
	}, true
}

func strVal(rec collab.Record, key string) string {
	switch v := rec[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func mapVal(rec collab.Record, key string) map[string]any {
	m, _ := rec[key].(map[string]any)
	if len(m) == 0 {
		return nil
	}
	return m
}
