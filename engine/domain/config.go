package domain

import "fmt"

// MatchStrategy controls how extracted entity text is compared to graph nodes.
type MatchStrategy string

const (
	MatchSubstring MatchStrategy = "substring"
	MatchExact     MatchStrategy = "exact"
	MatchPrefix    MatchStrategy = "prefix"
	// MatchFuzzy needs the APOC plugin on the Neo4j server.
	MatchFuzzy MatchStrategy = "fuzzy"
)

// Valid reports whether s is a known strategy.
func (s MatchStrategy) Valid() bool {
	switch s {
	case MatchSubstring, MatchExact, MatchPrefix, MatchFuzzy:
		return true
	}
	return false
}

// Config is the read-only configuration handed to every pipeline component.
type Config struct {
	// SimilarityThreshold is the minimum cosine score for vector evidence.
	SimilarityThreshold float64 `mapstructure:"similarity_threshold" json:"similarity_threshold"`
	// TopK caps the number of vector evidence items.
	TopK int `mapstructure:"top_k" json:"top_k"`
	// ThinkingBudget is the token budget hint passed to the structuring LLM call.
	ThinkingBudget int `mapstructure:"thinking_budget" json:"thinking_budget"`
	// GraphResultLimit caps the number of graph evidence items.
	GraphResultLimit int `mapstructure:"graph_result_limit" json:"graph_result_limit"`
	// MatchStrategy selects entity-to-node matching semantics.
	MatchStrategy MatchStrategy `mapstructure:"match_strategy" json:"match_strategy"`
	// FuzzyThreshold is the minimum similarity for MatchFuzzy.
	FuzzyThreshold float64 `mapstructure:"fuzzy_threshold" json:"fuzzy_threshold"`
	// MaxEntities bounds how many extracted entities reach the graph query.
	MaxEntities int `mapstructure:"max_entities" json:"max_entities"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		SimilarityThreshold: 0.6,
		TopK:                3,
		ThinkingBudget:      1024,
		GraphResultLimit:    10,
		MatchStrategy:       MatchSubstring,
		FuzzyThreshold:      0.8,
		MaxEntities:         8,
	}
}

// Validate checks that every field is usable.
func (c Config) Validate() error {
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("%w: similarity_threshold %.3f not in [0,1]", ErrInvalidConfig, c.SimilarityThreshold)
	}
	if c.TopK < 1 {
		return fmt.Errorf("%w: top_k must be >= 1, got %d", ErrInvalidConfig, c.TopK)
	}
	if c.GraphResultLimit < 1 {
		return fmt.Errorf("%w: graph_result_limit must be >= 1, got %d", ErrInvalidConfig, c.GraphResultLimit)
	}
	if c.ThinkingBudget < 0 {
		return fmt.Errorf("%w: thinking_budget must be >= 0, got %d", ErrInvalidConfig, c.ThinkingBudget)
	}
	if !c.MatchStrategy.Valid() {
		return fmt.Errorf("%w: unknown match_strategy %q", ErrInvalidConfig, c.MatchStrategy)
	}
	if c.MatchStrategy == MatchFuzzy && (c.FuzzyThreshold <= 0 || c.FuzzyThreshold > 1) {
		return fmt.Errorf("%w: fuzzy_threshold %.3f not in (0,1]", ErrInvalidConfig, c.FuzzyThreshold)
	}
	if c.MaxEntities < 1 {
		return fmt.Errorf("%w: max_entities must be >= 1, got %d", ErrInvalidConfig, c.MaxEntities)
	}
	return nil
}
