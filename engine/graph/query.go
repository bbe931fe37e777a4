package graph

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/WessleyAI/hybrid-rag/engine/domain"
)

// Query is a parameterized Cypher statement.
type Query struct {
	Cypher string
	Params map[string]any
	// Tightened is true when the query pins entities to both endpoints and
	// filters on relationship hints.
	Tightened bool
}

const returnClause = `
RETURN a.name AS source_name,
       coalesce(a.type, head(labels(a))) AS source_type,
       properties(a) AS source_props,
       type(r) AS relationship_type,
       properties(r) AS relationship_props,
       b.name AS target_name,
       coalesce(b.type, head(labels(b))) AS target_type,
       properties(b) AS target_props
ORDER BY source_name, relationship_type, target_name
LIMIT $limit`

// BuildQuery builds the single-hop match for sq. Entity text is always bound
// as a parameter. sq must contain at least one entity.
func BuildQuery(sq domain.StructuredQuery, cfg domain.Config) Query {
	limit := cfg.GraphResultLimit
	if limit <= 0 {
		limit = domain.DefaultConfig().GraphResultLimit
	}
	strategy := cfg.MatchStrategy
	if !strategy.Valid() {
		strategy = domain.MatchSubstring
	}

	params := map[string]any{"limit": limit}
	if strategy == domain.MatchFuzzy {
		params["fuzzy_min"] = cfg.FuzzyThreshold
	}
	m := matcher{strategy: strategy}
	for i, e := range sq.Entities {
		if e.Name != "" {
			params[fmt.Sprintf("e%d_name", i)] = strings.ToLower(e.Name)
		}
		if e.Type != "" {
			params[fmt.Sprintf("e%d_type", i)] = strings.ToLower(e.Type)
		}
	}

	hints := relationshipHints(sq.Relationships)
	var where string
	tightened := len(sq.Entities) >= 2 && len(hints) > 0
	if tightened {
		var pairs []string
		for i := range sq.Entities {
			for j := range sq.Entities {
				if i == j {
					continue
				}
				pairs = append(pairs, fmt.Sprintf("(%s AND %s)",
					m.entity(i, sq.Entities[i], "a"), m.entity(j, sq.Entities[j], "b")))
			}
		}
		params["rel_hints"] = hints
		where = "(" + strings.Join(pairs, "\n   OR ") + ")" +
			"\n  AND any(h IN $rel_hints WHERE toUpper(type(r)) CONTAINS h)"
	} else {
		var onA, onB []string
		for i, e := range sq.Entities {
			onA = append(onA, m.entity(i, e, "a"))
			onB = append(onB, m.entity(i, e, "b"))
		}
		where = "(" + strings.Join(onA, " OR ") + ")\n   OR (" + strings.Join(onB, " OR ") + ")"
	}

	return Query{
		Cypher:    "MATCH (a)-[r]->(b)\nWHERE " + where + returnClause,
		Params:    params,
		Tightened: tightened,
	}
}

type matcher struct {
	strategy domain.MatchStrategy
}

// entity renders the predicate for entity i against node variable v.
func (m matcher) entity(i int, e domain.EntityMention, v string) string {
	nameExpr := m.match(v+".name", fmt.Sprintf("$e%d_name", i))
	typeExpr := m.match("coalesce("+v+".type, head(labels("+v+")))", fmt.Sprintf("$e%d_type", i))
	switch {
	case e.Name != "" && e.Type != "":
		return "(" + nameExpr + " OR " + typeExpr + ")"
	case e.Name != "":
		return nameExpr
	default:
		return typeExpr
	}
}

func (m matcher) match(expr, param string) string {
	switch m.strategy {
	case domain.MatchExact:
		return "toLower(" + expr + ") = " + param
	case domain.MatchPrefix:
		return "toLower(" + expr + ") STARTS WITH " + param
	case domain.MatchFuzzy:
		return "apoc.text.levenshteinSimilarity(toLower(coalesce(" + expr + ", '')), " + param + ") >= $fuzzy_min"
	default:
		return "toLower(" + expr + ") CONTAINS " + param
	}
}

// relationshipHints upper-cases hints and maps spaces and hyphens to
// underscores so "works for" matches WORKS_FOR.
func relationshipHints(rels []string) []string {
	out := make([]string, 0, len(rels))
	seen := make(map[string]struct{}, len(rels))
	for _, r := range rels {
		h := strings.ToUpper(strings.TrimSpace(r))
		h = strings.Join(strings.FieldsFunc(h, func(c rune) bool { return c == ' ' || c == '-' || c == '_' }), "_")
		if h == "" {
			continue
		}
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}
	return out
}

// EscapeLiteral escapes backslashes and quote characters so s can be placed
// inside a quoted Cypher string literal.
func EscapeLiteral(s string) string {
	return literalEscaper.Replace(s)
}

var literalEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`, `"`, `\"`)

var paramRef = regexp.MustCompile(`\$[A-Za-z_][A-Za-z0-9_]*`)

// Inline renders the statement with every parameter substituted as an
// escaped literal. Unknown parameters are left untouched.
func (q Query) Inline() string {
	return paramRef.ReplaceAllStringFunc(q.Cypher, func(ref string) string {
		v, ok := q.Params[ref[1:]]
		if !ok {
			return ref
		}
		return literal(v)
	})
}

func literal(v any) string {
	switch x := v.(type) {
	case string:
		return "'" + EscapeLiteral(x) + "'"
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case []string:
		parts := make([]string, len(x))
		for i, s := range x {
			parts[i] = literal(s)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case nil:
		return "null"
	default:
		return "'" + EscapeLiteral(fmt.Sprint(x)) + "'"
	}
}

// paramNames returns the sorted parameter names of q.
func (q Query) paramNames() []string {
	names := make([]string, 0, len(q.Params))
	for k := range q.Params {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
