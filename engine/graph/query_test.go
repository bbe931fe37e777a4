package graph

import (
	"strings"
	"testing"

	"github.com/WessleyAI/hybrid-rag/engine/domain"
)

func TestBuildQueryLoose(t *testing.T) {
	sq := domain.StructuredQuery{
		Entities: []domain.EntityMention{{Name: "Alice", Type: "Person"}},
	}
	q := BuildQuery(sq, domain.DefaultConfig())

	if q.Tightened {
		t.Fatal("single entity should build the loose query")
	}
	if q.Params["e0_name"] != "alice" || q.Params["e0_type"] != "person" {
		t.Fatalf("unexpected params %v", q.Params)
	}
	if q.Params["limit"] != 10 {
		t.Fatalf("limit = %v, want 10", q.Params["limit"])
	}
	if strings.Contains(q.Cypher, "Alice") || strings.Contains(q.Cypher, "alice") {
		t.Fatal("entity text must not appear in the Cypher text")
	}
	for _, want := range []string{
		"toLower(a.name) CONTAINS $e0_name",
		"toLower(coalesce(a.type, head(labels(a)))) CONTAINS $e0_type",
		"toLower(b.name) CONTAINS $e0_name",
		"ORDER BY source_name, relationship_type, target_name",
		"LIMIT $limit",
	} {
		if !strings.Contains(q.Cypher, want) {
			t.Errorf("cypher missing %q:\n%s", want, q.Cypher)
		}
	}
	if strings.Contains(q.Cypher, "$rel_hints") {
		t.Error("loose query should not filter on relationship hints")
	}
}

func TestBuildQueryTightened(t *testing.T) {
	sq := domain.StructuredQuery{
		Entities:      []domain.EntityMention{{Name: "Alice"}, {Name: "Acme", Type: "Company"}},
		Relationships: []string{"works for", "employed-by", "WORKS_FOR"},
	}
	q := BuildQuery(sq, domain.DefaultConfig())

	if !q.Tightened {
		t.Fatal("expected tightened query")
	}
	hints, _ := q.Params["rel_hints"].([]string)
	if len(hints) != 2 || hints[0] != "WORKS_FOR" || hints[1] != "EMPLOYED_BY" {
		t.Fatalf("rel_hints = %v", hints)
	}
	for _, want := range []string{
		"(toLower(a.name) CONTAINS $e0_name AND (toLower(b.name) CONTAINS $e1_name",
		"(toLower(a.name) CONTAINS $e1_name",
		"any(h IN $rel_hints WHERE toUpper(type(r)) CONTAINS h)",
	} {
		if !strings.Contains(q.Cypher, want) {
			t.Errorf("cypher missing %q:\n%s", want, q.Cypher)
		}
	}
}

func TestBuildQueryTwoEntitiesNoHintsIsLoose(t *testing.T) {
	sq := domain.StructuredQuery{
		Entities:      []domain.EntityMention{{Name: "Alice"}, {Name: "Bob"}},
		Relationships: []string{"  "},
	}
	if q := BuildQuery(sq, domain.DefaultConfig()); q.Tightened {
		t.Fatal("blank hints should not tighten the query")
	}
}

func TestBuildQueryTypeOnlyEntity(t *testing.T) {
	sq := domain.StructuredQuery{Entities: []domain.EntityMention{{Type: "Company"}}}
	q := BuildQuery(sq, domain.DefaultConfig())
	if _, ok := q.Params["e0_name"]; ok {
		t.Fatal("type-only entity should not bind a name parameter")
	}
	if strings.Contains(q.Cypher, "$e0_name") {
		t.Fatal("type-only entity should not reference a name parameter")
	}
}

func TestBuildQueryStrategies(t *testing.T) {
	sq := domain.StructuredQuery{Entities: []domain.EntityMention{{Name: "Al"}}}
	tests := []struct {
		strategy domain.MatchStrategy
		want     string
	}{
		{domain.MatchSubstring, "toLower(a.name) CONTAINS $e0_name"},
		{domain.MatchExact, "toLower(a.name) = $e0_name"},
		{domain.MatchPrefix, "toLower(a.name) STARTS WITH $e0_name"},
		{domain.MatchFuzzy, "apoc.text.levenshteinSimilarity(toLower(coalesce(a.name, '')), $e0_name) >= $fuzzy_min"},
		{domain.MatchStrategy("bogus"), "toLower(a.name) CONTAINS $e0_name"},
	}
	for _, tt := range tests {
		t.Run(string(tt.strategy), func(t *testing.T) {
			cfg := domain.DefaultConfig()
			cfg.MatchStrategy = tt.strategy
			q := BuildQuery(sq, cfg)
			if !strings.Contains(q.Cypher, tt.want) {
				t.Fatalf("cypher missing %q:\n%s", tt.want, q.Cypher)
			}
			_, hasFuzzy := q.Params["fuzzy_min"]
			if hasFuzzy != (tt.strategy == domain.MatchFuzzy) {
				t.Fatalf("fuzzy_min bound = %v for %s", hasFuzzy, tt.strategy)
			}
		})
	}
}

func TestEscapeLiteral(t *testing.T) {
	tests := map[string]string{
		"plain":          "plain",
		"O'Brien":        `O\'Brien`,
		`say "hi"`:       `say \"hi\"`,
		`back\slash`:     `back\\slash`,
		`x' OR 1=1 //`:   `x\' OR 1=1 //`,
		`\'`:             `\\\'`,
	}
	for in, want := range tests {
		if got := EscapeLiteral(in); got != want {
			t.Errorf("EscapeLiteral(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestQueryInline(t *testing.T) {
	sq := domain.StructuredQuery{
		Entities:      []domain.EntityMention{{Name: "O'Brien"}, {Name: "Acme"}},
		Relationships: []string{"works for"},
	}
	cfg := domain.DefaultConfig()
	cfg.GraphResultLimit = 5
	inline := BuildQuery(sq, cfg).Inline()

	for _, want := range []string{`'o\'brien'`, `'acme'`, `['WORKS_FOR']`, "LIMIT 5"} {
		if !strings.Contains(inline, want) {
			t.Errorf("inline missing %q:\n%s", want, inline)
		}
	}
	if strings.Contains(inline, "$e") || strings.Contains(inline, "$limit") {
		t.Errorf("inline left parameter references:\n%s", inline)
	}
	if got := (Query{Cypher: "RETURN $missing"}).Inline(); got != "RETURN $missing" {
		t.Errorf("unknown parameter should stay untouched, got %q", got)
	}
}

func TestQueryInlineParamPrefixes(t *testing.T) {
	q := Query{Cypher: "$e1_name $e10_name", Params: map[string]any{"e1_name": "a", "e10_name": "b"}}
	if got := q.Inline(); got != "'a' 'b'" {
		t.Fatalf("Inline() = %q", got)
	}
}
