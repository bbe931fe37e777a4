package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/WessleyAI/hybrid-rag/engine/domain"
)

// Vector sources.
const (
	sourceQdrantScan = "qdrant-scan"
	sourceQdrantANN  = "qdrant-ann"
	sourceSQLite     = "sqlite"
)

// Settings is the process configuration merged from flags, environment and
// config file.
type Settings struct {
	LogFormat string `mapstructure:"log-format"`
	LogLevel  string `mapstructure:"log-level"`

	Neo4jURL      string `mapstructure:"neo4j-url"`
	Neo4jUser     string `mapstructure:"neo4j-user"`
	Neo4jPassword string `mapstructure:"neo4j-password"`
	Neo4jDatabase string `mapstructure:"neo4j-database"`

	VectorSource     string `mapstructure:"vector-source"`
	QdrantAddr       string `mapstructure:"qdrant-addr"`
	QdrantCollection string `mapstructure:"qdrant-collection"`
	SQLitePath       string `mapstructure:"sqlite-path"`
	SQLiteTable      string `mapstructure:"sqlite-table"`

	OllamaURL   string `mapstructure:"ollama-url"`
	ChatModel   string `mapstructure:"chat-model"`
	EmbedModel  string `mapstructure:"embed-model"`
	EmbedDims   int    `mapstructure:"embed-dims"`
	QueryPrefix string `mapstructure:"query-prefix"`

	Threshold      float64 `mapstructure:"threshold"`
	TopK           int     `mapstructure:"top-k"`
	GraphLimit     int     `mapstructure:"graph-limit"`
	ThinkingBudget int     `mapstructure:"thinking-budget"`
	MatchStrategy  string  `mapstructure:"match-strategy"`
	FuzzyThreshold float64 `mapstructure:"fuzzy-threshold"`
	MaxEntities    int     `mapstructure:"max-entities"`

	RetryAttempts    int           `mapstructure:"retry-attempts"`
	CallTimeout      time.Duration `mapstructure:"call-timeout"`
	BreakerThreshold int           `mapstructure:"breaker-threshold"`
	RatePerSecond    float64       `mapstructure:"rate-limit"`

	NATSURL     string `mapstructure:"nats-url"`
	NATSSubject string `mapstructure:"nats-subject"`
	MetricsAddr string `mapstructure:"metrics-addr"`
}

func registerFlags(cmd *cobra.Command) {
	d := domain.DefaultConfig()
	f := cmd.PersistentFlags()

	f.String("log-format", "json", "log output format: json or text")
	f.String("log-level", "info", "minimum log level: debug, info, warn or error")

	f.String("neo4j-url", "neo4j://localhost:7687", "Neo4j bolt URL")
	f.String("neo4j-user", "neo4j", "Neo4j user (empty disables auth)")
	f.String("neo4j-password", "", "Neo4j password")
	f.String("neo4j-database", "", "Neo4j database (empty uses the server default)")

	f.String("vector-source", sourceQdrantScan, "passage store: qdrant-scan, qdrant-ann or sqlite")
	f.String("qdrant-addr", "localhost:6334", "Qdrant gRPC address")
	f.String("qdrant-collection", "documents", "Qdrant collection")
	f.String("sqlite-path", "passages.db", "SQLite database with embedded passages")
	f.String("sqlite-table", "passages", "SQLite table with id, content and embedding columns")

	f.String("ollama-url", "http://localhost:11434", "Ollama base URL")
	f.String("chat-model", "llama3.1", "Ollama model for structuring and synthesis")
	f.String("embed-model", "nomic-embed-text", "Ollama embedding model")
	f.Int("embed-dims", 768, "embedding dimensionality of the embedding model")
	f.String("query-prefix", "search_query: ", "task prefix prepended to the question before embedding")

	f.Float64("threshold", d.SimilarityThreshold, "minimum cosine similarity for passages")
	f.Int("top-k", d.TopK, "maximum number of passages")
	f.Int("graph-limit", d.GraphResultLimit, "maximum number of graph relationships")
	f.Int("thinking-budget", d.ThinkingBudget, "thinking budget for query structuring; Ollama only switches thinking on when > 0 (0 disables)")
	f.String("match-strategy", string(d.MatchStrategy), "entity matching: substring, exact, prefix or fuzzy")
	f.Float64("fuzzy-threshold", d.FuzzyThreshold, "minimum similarity for fuzzy matching")
	f.Int("max-entities", d.MaxEntities, "maximum extracted entities per question")

	f.Int("retry-attempts", 1, "attempts per collaborator call")
	f.Duration("call-timeout", 30*time.Second, "timeout per collaborator call attempt (0 disables)")
	f.Int("breaker-threshold", 5, "consecutive failures that open a collaborator's circuit breaker (0 disables)")
	f.Float64("rate-limit", 0, "collaborator calls per second (0 disables)")

	f.String("nats-url", "", "publish search events to this NATS server")
	f.String("nats-subject", "", "NATS subject for search events")
	f.String("metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
}

func loadSettings(v *viper.Viper) (Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	switch s.VectorSource {
	case sourceQdrantScan, sourceQdrantANN, sourceSQLite:
	default:
		return Settings{}, fmt.Errorf("unknown vector-source %q", s.VectorSource)
	}
	if s.RetryAttempts < 1 {
		return Settings{}, fmt.Errorf("retry-attempts must be >= 1, got %d", s.RetryAttempts)
	}
	if s.EmbedDims < 0 {
		return Settings{}, fmt.Errorf("embed-dims must be >= 0, got %d", s.EmbedDims)
	}
	if err := s.EngineConfig().Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// EngineConfig extracts the engine configuration.
func (s Settings) EngineConfig() domain.Config {
	return domain.Config{
		SimilarityThreshold: s.Threshold,
		TopK:                s.TopK,
		ThinkingBudget:      s.ThinkingBudget,
		GraphResultLimit:    s.GraphLimit,
		MatchStrategy:       domain.MatchStrategy(strings.ToLower(s.MatchStrategy)),
		FuzzyThreshold:      s.FuzzyThreshold,
		MaxEntities:         s.MaxEntities,
	}
}

func newLogger(w io.Writer, format, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log-level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "json", "":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log-format %q", format)
	}
}
