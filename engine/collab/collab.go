// Package collab defines the external capabilities the search engine depends
// on (graph store, embedding provider, LLM) and decorators that route every
// call through a resilience.Guard.
package collab

import (
	"context"
	"encoding/json"
)

// Record is one row returned by a graph query, keyed by RETURN alias.
type Record map[string]any

// GraphStore executes parameterized queries against a label/property graph.
type GraphStore interface {
	ExecuteQuery(ctx context.Context, query string, params map[string]any) ([]Record, error)
}

// EmbeddingProvider turns text into a fixed-dimension vector.
// Implementations must be safe for concurrent use.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	// Dimensions returns the configured dimensionality, or 0 when unknown.
	Dimensions() int
}

// LLMClient generates either free text or a schema-constrained result.
type LLMClient interface {
	Generate(ctx context.Context, req GenerateRequest) (Generation, error)
}

// FunctionSchema describes a function the model is asked to call.
// Parameters is a JSON schema object.
type FunctionSchema struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// GenerateRequest is a single LLM call.
type GenerateRequest struct {
	System string
	Prompt string
	// Schema requests a structured function call when non-nil.
	Schema *FunctionSchema
	// ThinkingBudget is a reasoning token budget hint; 0 disables thinking.
	// Clients without a numeric budget treat any positive value as "on";
	// the Ollama client only toggles its think flag.
	ThinkingBudget int
	Temperature    float32
}

// GenerationKind tags the shape of an LLM response.
type GenerationKind int

const (
	// PlainText is unstructured completion text.
	PlainText GenerationKind = iota
	// JSONText is completion text that is expected to hold a JSON document.
	JSONText
	// FunctionCall carries structured arguments of a tool/function call.
	FunctionCall
)

func (k GenerationKind) String() string {
	switch k {
	case PlainText:
		return "text"
	case JSONText:
		return "json"
	case FunctionCall:
		return "function_call"
	default:
		return "unknown"
	}
}

// Generation is the tagged result of an LLM call. Arguments is set for
// FunctionCall, Text for the other kinds.
type Generation struct {
	Kind         GenerationKind
	FunctionName string
	Arguments    json.RawMessage
	Text         string
	Model        string
	TokensUsed   int
}

// TextGeneration builds a PlainText generation.
func TextGeneration(text string) Generation {
	return Generation{Kind: PlainText, Text: text}
}

// JSONGeneration builds a JSONText generation.
func JSONGeneration(text string) Generation {
	return Generation{Kind: JSONText, Text: text}
}

// CallGeneration builds a FunctionCall generation.
func CallGeneration(name string, args json.RawMessage) Generation {
	return Generation{Kind: FunctionCall, FunctionName: name, Arguments: args}
}
