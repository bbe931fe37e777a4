// Package domain defines the per-request data model, configuration and error
// taxonomy shared by every stage of the hybrid search pipeline.
package domain

import (
	"strings"
	"time"
)

// EntityMention is an entity extracted from a natural-language question.
type EntityMention struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// StructuredQuery holds the entities and relationship hints of a question.
type StructuredQuery struct {
	Entities      []EntityMention `json:"entities"`
	Relationships []string        `json:"relationships"`
}

// IsEmpty reports whether no entities were extracted.
func (q StructuredQuery) IsEmpty() bool { return len(q.Entities) == 0 }

// Normalize trims all fields, drops mentions with neither name nor type and
// removes case-insensitive duplicates while preserving order.
func (q StructuredQuery) Normalize() StructuredQuery {
	out := StructuredQuery{
		Entities:      []EntityMention{},
		Relationships: []string{},
	}
	seen := make(map[string]struct{})
	for _, e := range q.Entities {
		e.Name = strings.TrimSpace(e.Name)
		e.Type = strings.TrimSpace(e.Type)
		if e.Name == "" && e.Type == "" {
			continue
		}
		key := strings.ToLower(e.Name) + "\x00" + strings.ToLower(e.Type)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out.Entities = append(out.Entities, e)
	}
	seenRel := make(map[string]struct{})
	for _, r := range q.Relationships {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		key := strings.ToLower(r)
		if _, ok := seenRel[key]; ok {
			continue
		}
		seenRel[key] = struct{}{}
		out.Relationships = append(out.Relationships, r)
	}
	return out
}

// Node is one endpoint of a graph relationship.
type Node struct {
	Name  string         `json:"name"`
	Type  string         `json:"type"`
	Props map[string]any `json:"props,omitempty"`
}

// GraphEvidenceItem is a single (source)-[relationship]->(target) fact.
type GraphEvidenceItem struct {
	Source            Node           `json:"source_entity"`
	RelationshipType  string         `json:"relationship_type"`
	RelationshipProps map[string]any `json:"relationship_props,omitempty"`
	Target            Node           `json:"target_entity"`
}

// Label renders the item as "source -[TYPE]-> target".
func (g GraphEvidenceItem) Label() string {
	return g.Source.Name + " -[" + g.RelationshipType + "]-> " + g.Target.Name
}

// VectorEvidenceItem is a passage matched by vector similarity.
// Score is a cosine similarity clamped to [0, 1].
type VectorEvidenceItem struct {
	ID    string  `json:"id"`
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// SourceKind identifies which retrieval path produced a source.
type SourceKind string

const (
	SourceGraph  SourceKind = "graph"
	SourceVector SourceKind = "vector"
)

// SourceRef is a citation backing the answer.
type SourceRef struct {
	Kind  SourceKind `json:"kind"`
	ID    string     `json:"id"`
	Label string     `json:"label"`
	Score float64    `json:"score,omitempty"`
}

// SearchResponse is the result of one hybrid search. Answer is always set;
// when Error is non-empty it holds a fallback text.
type SearchResponse struct {
	RequestID      string               `json:"request_id"`
	Query          string               `json:"query"`
	Answer         string               `json:"answer"`
	GraphEvidence  []GraphEvidenceItem  `json:"graph_evidence"`
	VectorEvidence []VectorEvidenceItem `json:"vector_evidence"`
	Sources        []SourceRef          `json:"sources"`
	Error          string               `json:"error,omitempty"`
	Notes          []string             `json:"notes,omitempty"`
	Duration       time.Duration        `json:"duration_ns"`
}

// Canned answers.
const (
	InsufficientAnswer = "I don't have enough information in the knowledge base to answer that question."
	FallbackAnswer     = "Sorry, an answer could not be generated right now. Please try again later."
)

// BuildSources derives citations from both evidence lists, graph first.
func BuildSources(graph []GraphEvidenceItem, vector []VectorEvidenceItem) []SourceRef {
	out := make([]SourceRef, 0, len(graph)+len(vector))
	for _, g := range graph {
		label := g.Label()
		out = append(out, SourceRef{Kind: SourceGraph, ID: label, Label: label})
	}
	for _, v := range vector {
		out = append(out, SourceRef{Kind: SourceVector, ID: v.ID, Label: snippet(v.Text, 80), Score: v.Score})
	}
	return out
}

func snippet(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n]) + "…"
}
