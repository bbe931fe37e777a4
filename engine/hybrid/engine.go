// Package hybrid orchestrates query structuring, concurrent graph and
// vector retrieval, and answer synthesis into a single Search call that
// always returns a usable response.
package hybrid

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/WessleyAI/hybrid-rag/engine/collab"
	"github.com/WessleyAI/hybrid-rag/engine/domain"
	"github.com/WessleyAI/hybrid-rag/engine/graph"
	"github.com/WessleyAI/hybrid-rag/engine/semantic"
	"github.com/WessleyAI/hybrid-rag/engine/structure"
	"github.com/WessleyAI/hybrid-rag/engine/synth"
	"github.com/WessleyAI/hybrid-rag/pkg/fn"
	"github.com/WessleyAI/hybrid-rag/pkg/metrics"
)

const tracerName = "github.com/WessleyAI/hybrid-rag/engine/hybrid"

// Structurer extracts entities and relationship hints from a question.
type Structurer interface {
	Structure(ctx context.Context, query string) (domain.StructuredQuery, error)
}

// GraphRetriever resolves a StructuredQuery into graph evidence.
type GraphRetriever interface {
	Retrieve(ctx context.Context, sq domain.StructuredQuery) ([]domain.GraphEvidenceItem, error)
}

// VectorRetriever finds passages similar to the question.
type VectorRetriever interface {
	Retrieve(ctx context.Context, query string) ([]domain.VectorEvidenceItem, error)
}

// Synthesizer writes the final answer from the evidence.
type Synthesizer interface {
	Synthesize(ctx context.Context, query string, graph []domain.GraphEvidenceItem, vector []domain.VectorEvidenceItem) (string, error)
}

// Stages are the four pipeline components.
type Stages struct {
	Structurer Structurer
	Graph      GraphRetriever
	Vector     VectorRetriever
	Synth      Synthesizer
}

// Deps are the external collaborators from which New builds the stages.
type Deps struct {
	GraphStore collab.GraphStore
	Embedder   collab.EmbeddingProvider
	// Searcher ranks passages for the embedded question.
	Searcher semantic.Searcher
	LLM      collab.LLMClient
}

// Engine runs hybrid searches. It holds no per-request state and is safe
// for concurrent use.
type Engine struct {
	stages    Stages
	logger    *slog.Logger
	metrics   metrics.Recorder
	observers []Observer
	newID     func() string
	now       func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(r metrics.Recorder) Option {
	return func(e *Engine) {
		if r != nil {
			e.metrics = r
		}
	}
}

// WithObserver registers an observer notified after every search.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observers = append(e.observers, o) }
}

// New validates cfg and builds the default stages from deps.
func New(deps Deps, cfg domain.Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("hybrid: %w", err)
	}
	if deps.GraphStore == nil || deps.Embedder == nil || deps.Searcher == nil || deps.LLM == nil {
		return nil, errors.New("hybrid: graph store, embedder, searcher and llm are required")
	}
	e := NewFromStages(Stages{}, opts...)
	e.stages = Stages{
		Structurer: structure.New(deps.LLM, cfg, e.logger.With("component", "structure")),
		Graph:      graph.NewRetriever(deps.GraphStore, cfg, e.logger.With("component", "graph")),
		Vector:     semantic.NewRetriever(deps.Embedder, deps.Searcher, cfg, e.logger.With("component", "semantic")),
		Synth:      synth.New(deps.LLM, e.logger.With("component", "synth")),
	}
	return e, nil
}

// NewFromStages creates an Engine over caller-supplied stages.
func NewFromStages(stages Stages, opts ...Option) *Engine {
	e := &Engine{
		stages:  stages,
		logger:  slog.Default(),
		metrics: metrics.Nop(),
		newID:   uuid.NewString,
		now:     time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

type retrieval struct {
	graph  []domain.GraphEvidenceItem
	vector []domain.VectorEvidenceItem
	ran    bool
	err    error
}

type synthInput struct {
	query  string
	graph  []domain.GraphEvidenceItem
	vector []domain.VectorEvidenceItem
}

// Search answers query. It never panics on collaborator failure and
// always returns a response with a non-empty Answer.
func (e *Engine) Search(ctx context.Context, query string) *domain.SearchResponse {
	start := e.now()
	resp := &domain.SearchResponse{
		RequestID:      e.newID(),
		Query:          query,
		GraphEvidence:  []domain.GraphEvidenceItem{},
		VectorEvidence: []domain.VectorEvidenceItem{},
		Sources:        []domain.SourceRef{},
	}
	log := e.logger.With("request_id", resp.RequestID)

	ctx, span := otel.Tracer(tracerName).Start(ctx, "hybrid.Search", trace.WithAttributes(
		attribute.String("hybrid.request_id", resp.RequestID),
		attribute.Int("hybrid.query_runes", utf8.RuneCountInString(query)),
	))
	defer span.End()

	outcome := metrics.OutcomeOK
	defer func() {
		resp.Duration = e.now().Sub(start)
		e.metrics.ObserveSearch(outcome, resp.Duration.Seconds())
		e.metrics.ObserveEvidence(string(domain.SourceGraph), len(resp.GraphEvidence))
		e.metrics.ObserveEvidence(string(domain.SourceVector), len(resp.VectorEvidence))
		span.SetAttributes(
			attribute.Int("hybrid.graph_evidence", len(resp.GraphEvidence)),
			attribute.Int("hybrid.vector_evidence", len(resp.VectorEvidence)),
			attribute.String("hybrid.outcome", outcome),
		)
		if outcome == metrics.OutcomeFailed {
			span.SetStatus(codes.Error, resp.Error)
		}
		log.Info("search done", "outcome", outcome, "graph", len(resp.GraphEvidence),
			"vector", len(resp.VectorEvidence), "duration", resp.Duration)
		for _, o := range e.observers {
			o.SearchCompleted(ctx, resp)
		}
	}()

	if err := domain.ValidateQuery(query); err != nil {
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			resp.Error = ve.Wrapped.Error()
		} else {
			resp.Error = err.Error()
		}
		resp.Answer = domain.FallbackAnswer
		outcome = metrics.OutcomeFailed
		log.Warn("search rejected", "err", err)
		return resp
	}

	// STRUCTURING
	sq, err := e.structure(ctx, query)
	if err != nil {
		resp.Notes = append(resp.Notes, note(err))
	}
	if ctx.Err() != nil {
		e.cancelled(ctx, resp, log)
		outcome = metrics.OutcomeFailed
		return resp
	}

	// GRAPH_RETRIEVAL and VECTOR_RETRIEVAL
	g, v := e.retrieve(ctx, query, sq)
	resp.GraphEvidence = g.graph
	resp.VectorEvidence = v.vector
	if ctx.Err() != nil {
		e.cancelled(ctx, resp, log)
		outcome = metrics.OutcomeFailed
		return resp
	}

	var graphNote, vectorNote string
	if g.err != nil {
		graphNote = note(g.err)
		resp.Notes = append(resp.Notes, graphNote)
	}
	if v.err != nil {
		vectorNote = note(v.err)
		resp.Notes = append(resp.Notes, vectorNote)
	}
	switch {
	case v.err != nil && (!g.ran || g.err != nil):
		parts := []string{vectorNote}
		if graphNote != "" {
			parts = []string{graphNote, vectorNote}
		} else if err != nil {
			parts = []string{note(err), vectorNote}
		}
		resp.Error = "all retrieval paths failed: " + strings.Join(parts, "; ")
		outcome = metrics.OutcomeFailed
	case g.err != nil:
		resp.Error = "non-fatal: " + graphNote
		outcome = metrics.OutcomeDegraded
	case v.err != nil:
		resp.Error = "non-fatal: " + vectorNote
		outcome = metrics.OutcomeDegraded
	}

	// SYNTHESIS
	answer, err := e.synthesize(ctx, synthInput{query: query, graph: resp.GraphEvidence, vector: resp.VectorEvidence})
	if err != nil {
		if resp.Error != "" {
			resp.Error += "; " + err.Error()
		} else {
			resp.Error = err.Error()
		}
		resp.Answer = domain.FallbackAnswer
		outcome = metrics.OutcomeFailed
	} else {
		resp.Answer = answer
	}
	resp.Sources = domain.BuildSources(resp.GraphEvidence, resp.VectorEvidence)
	return resp
}

func (e *Engine) cancelled(ctx context.Context, resp *domain.SearchResponse, log *slog.Logger) {
	resp.Error = "search cancelled: " + ctx.Err().Error()
	resp.Answer = domain.FallbackAnswer
	resp.Sources = domain.BuildSources(resp.GraphEvidence, resp.VectorEvidence)
	log.Warn("search cancelled before synthesis", "err", ctx.Err())
}

func (e *Engine) structure(ctx context.Context, query string) (domain.StructuredQuery, error) {
	done := metrics.TimeStage(e.metrics, string(domain.StageStructuring))
	stage := fn.TracedStage("hybrid.structure", fn.Lift(recovered(domain.StageStructuring, e.logger, e.stages.Structurer.Structure)))
	sq, err := stage(ctx, query).Unwrap()
	if err != nil {
		done(metrics.OutcomeError)
		return domain.StructuredQuery{}.Normalize(), err
	}
	done(metrics.OutcomeOK)
	return sq, nil
}

// retrieve runs both retrieval paths concurrently on a shared derived
// context and waits for both to settle.
func (e *Engine) retrieve(ctx context.Context, query string, sq domain.StructuredQuery) (retrieval, retrieval) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	graphStage := fn.TracedStage("hybrid.graph", fn.Lift(recovered(domain.StageGraph, e.logger, e.stages.Graph.Retrieve)),
		attribute.Int("hybrid.entities", len(sq.Entities)))
	vectorStage := fn.TracedStage("hybrid.vector", fn.Lift(recovered(domain.StageVector, e.logger, e.stages.Vector.Retrieve)))

	out := fn.FanOut(
		func() retrieval {
			r := retrieval{graph: []domain.GraphEvidenceItem{}}
			if sq.IsEmpty() {
				e.metrics.ObserveStage(string(domain.StageGraph), metrics.OutcomeSkipped, 0)
				return r
			}
			done := metrics.TimeStage(e.metrics, string(domain.StageGraph))
			r.ran = true
			items, err := graphStage(ctx, sq).Unwrap()
			if err != nil {
				done(metrics.OutcomeError)
				r.err = err
				return r
			}
			done(metrics.OutcomeOK)
			if items != nil {
				r.graph = items
			}
			return r
		},
		func() retrieval {
			r := retrieval{vector: []domain.VectorEvidenceItem{}, ran: true}
			done := metrics.TimeStage(e.metrics, string(domain.StageVector))
			items, err := vectorStage(ctx, query).Unwrap()
			if err != nil {
				done(metrics.OutcomeError)
				r.err = err
				return r
			}
			done(metrics.OutcomeOK)
			if items != nil {
				r.vector = items
			}
			return r
		},
	)
	return out[0], out[1]
}

func (e *Engine) synthesize(ctx context.Context, in synthInput) (string, error) {
	done := metrics.TimeStage(e.metrics, string(domain.StageSynthesis))
	stage := fn.TracedStage("hybrid.synthesize", fn.Lift(recovered(domain.StageSynthesis, e.logger, func(ctx context.Context, in synthInput) (string, error) {
		return e.stages.Synth.Synthesize(ctx, in.query, in.graph, in.vector)
	})))
	answer, err := stage(ctx, in).Unwrap()
	if err != nil {
		done(metrics.OutcomeError)
		return "", err
	}
	done(metrics.OutcomeOK)
	return answer, nil
}

// recovered turns a panic in f into a StageError for stage. Retrieval stages
// run on their own goroutines, out of reach of any caller recover.
func recovered[In, Out any](stage domain.Stage, logger *slog.Logger, f func(context.Context, In) (Out, error)) func(context.Context, In) (Out, error) {
	return func(ctx context.Context, in In) (out Out, err error) {
		defer func() {
			if v := recover(); v != nil {
				var zero Out
				out = zero
				err = domain.NewStageError(stage, fmt.Errorf("panic: %v", v))
				logger.Error("stage panicked", "stage", string(stage), "err", err, "stack", string(debug.Stack()))
			}
		}()
		return f(ctx, in)
	}
}

// note renders a stage failure for SearchResponse.Notes.
func note(err error) string {
	var se *domain.StageError
	if errors.As(err, &se) {
		return fmt.Sprintf("%s failed: %v", se.Stage, se.Err)
	}
	return err.Error()
}

