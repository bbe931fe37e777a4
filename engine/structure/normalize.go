package structure

import (
	"encoding/json"
	"strings"

	"github.com/WessleyAI/hybrid-rag/engine/collab"
	"github.com/WessleyAI/hybrid-rag/engine/domain"
)

// Normalize converts any shape of LLM output into a StructuredQuery.
// The boolean is false when no structure could be recovered, in which case
// the returned query is empty.
func Normalize(gen collab.Generation) (domain.StructuredQuery, bool) {
	var raw json.RawMessage
	switch gen.Kind {
	case collab.FunctionCall:
		raw = gen.Arguments
		if len(raw) == 0 && gen.Text != "" {
			raw = findJSONObject(gen.Text)
		}
	default:
		raw = findJSONObject(gen.Text)
	}
	if len(raw) == 0 {
		return domain.StructuredQuery{}.Normalize(), false
	}
	sq, ok := decodePayload(raw)
	if !ok {
		return domain.StructuredQuery{}.Normalize(), false
	}
	return sq.Normalize(), true
}

type payload struct {
	Entities      []json.RawMessage `json:"entities"`
	Relationships []json.RawMessage `json:"relationships"`
}

type entityObject struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	EntityType string `json:"entity_type"`
	Label      string `json:"label"`
}

type relationshipObject struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

func decodePayload(raw json.RawMessage) (domain.StructuredQuery, bool) {
	// Some models double-encode arguments as a JSON string.
	var inner string
	if err := json.Unmarshal(raw, &inner); err == nil {
		raw = findJSONObject(inner)
		if len(raw) == 0 {
			return domain.StructuredQuery{}, false
		}
	}

	var keys map[string]json.RawMessage
	if err := json.Unmarshal(raw, &keys); err != nil {
		return domain.StructuredQuery{}, false
	}
	_, hasEntities := keys["entities"]
	_, hasRels := keys["relationships"]
	if !hasEntities && !hasRels {
		return domain.StructuredQuery{}, false
	}

	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return domain.StructuredQuery{}, false
	}

	var sq domain.StructuredQuery
	for _, e := range p.Entities {
		if m, ok := decodeEntity(e); ok {
			sq.Entities = append(sq.Entities, m)
		}
	}
	for _, r := range p.Relationships {
		if rel, ok := decodeRelationship(r); ok {
			sq.Relationships = append(sq.Relationships, rel)
		}
	}
	return sq, true
}

func decodeEntity(raw json.RawMessage) (domain.EntityMention, bool) {
	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		return domain.EntityMention{Name: name}, true
	}
	var obj entityObject
	if err := json.Unmarshal(raw, &obj); err != nil {
		return domain.EntityMention{}, false
	}
	typ := obj.Type
	if typ == "" {
		typ = obj.EntityType
	}
	if typ == "" {
		typ = obj.Label
	}
	return domain.EntityMention{Name: obj.Name, Type: typ}, true
}

func decodeRelationship(raw json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	var obj relationshipObject
	if err := json.Unmarshal(raw, &obj); err != nil {
		return "", false
	}
	if obj.Type != "" {
		return obj.Type, true
	}
	return obj.Name, obj.Name != ""
}

// findJSONObject returns the first decodable JSON object in text, looking
// inside markdown code fences first.
func findJSONObject(text string) json.RawMessage {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if body, ok := fenced(text); ok {
		if raw := firstObject(body); raw != nil {
			return raw
		}
	}
	return firstObject(text)
}

func fenced(text string) (string, bool) {
	start := strings.Index(text, "```")
	if start < 0 {
		return "", false
	}
	rest := text[start+3:]
	// Skip an optional language tag on the opening fence line.
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 && !strings.Contains(rest[:nl], "{") {
		rest = rest[nl+1:]
	}
	end := strings.Index(rest, "```")
	if end < 0 {
		return rest, true
	}
	return rest[:end], true
}

func firstObject(text string) json.RawMessage {
	for i := 0; i < len(text); i++ {
		if text[i] != '{' {
			continue
		}
		var raw json.RawMessage
		if err := json.NewDecoder(strings.NewReader(text[i:])).Decode(&raw); err == nil {
			return raw
		}
	}
	return nil
}
