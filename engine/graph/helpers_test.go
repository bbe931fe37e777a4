package graph

import "github.com/WessleyAI/hybrid-rag/engine/domain"

func testConfig() domain.Config { return domain.DefaultConfig() }

func aliceQuery() domain.StructuredQuery {
	return domain.StructuredQuery{Entities: []domain.EntityMention{{Name: "Alice", Type: "Person"}}}
}
