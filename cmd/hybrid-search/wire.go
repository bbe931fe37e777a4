package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/WessleyAI/hybrid-rag/engine/collab"
	"github.com/WessleyAI/hybrid-rag/engine/graph"
	"github.com/WessleyAI/hybrid-rag/engine/hybrid"
	"github.com/WessleyAI/hybrid-rag/engine/semantic"
	"github.com/WessleyAI/hybrid-rag/pkg/fn"
	"github.com/WessleyAI/hybrid-rag/pkg/metrics"
	"github.com/WessleyAI/hybrid-rag/pkg/mid"
	"github.com/WessleyAI/hybrid-rag/pkg/natsutil"
	"github.com/WessleyAI/hybrid-rag/pkg/ollama"
	"github.com/WessleyAI/hybrid-rag/pkg/resilience"
)

// app owns the engine and every connection it was built from.
type app struct {
	engine  *hybrid.Engine
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// guardOpts builds the per-collaborator resilience policy. The breaker
// reports its state to rec.
func guardOpts(s Settings, name string, rec metrics.Recorder) resilience.GuardOpts {
	opts := resilience.GuardOpts{
		Retry: fn.RetryOpts{
			MaxAttempts: s.RetryAttempts,
			InitialWait: 200 * time.Millisecond,
			MaxWait:     2 * time.Second,
			Jitter:      true,
		},
		RatePerSecond: s.RatePerSecond,
		Burst:         max(1, int(s.RatePerSecond)),
		CallTimeout:   s.CallTimeout,
	}
	if s.BreakerThreshold > 0 {
		bo := resilience.DefaultBreakerOpts
		bo.FailThreshold = s.BreakerThreshold
		bo.OnStateChange = func(_, to resilience.State) {
			rec.ObserveBreakerState(name, int(to))
		}
		opts.Breaker = &bo
	}
	return opts
}

func build(ctx context.Context, s Settings, rec metrics.Recorder, logger *slog.Logger) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()
	guard := func(name string) *resilience.Guard {
		return resilience.NewGuard(name, guardOpts(s, name, rec), logger.With("component", "guard"))
	}

	driver, err := graph.Dial(ctx, s.Neo4jURL, s.Neo4jUser, s.Neo4jPassword)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() { driver.Close(context.Background()) })
	store := collab.NewGuardedGraphStore(graph.NewNeo4jStore(driver, s.Neo4jDatabase), guard("neo4j"))

	searcher, err := openSearcher(s, a)
	if err != nil {
		return nil, err
	}

	embedder := collab.NewGuardedEmbedder(
		ollama.NewEmbedClient(s.OllamaURL, s.EmbedModel,
			ollama.WithDimensions(s.EmbedDims),
			ollama.WithQueryPrefix(s.QueryPrefix)),
		guard("ollama-embed"))
	llm := collab.NewGuardedLLM(ollama.NewChatClient(s.OllamaURL, s.ChatModel), guard("ollama-chat"))

	opts := []hybrid.Option{hybrid.WithLogger(logger), hybrid.WithMetrics(rec)}
	if s.NATSURL != "" {
		nc, err := natsutil.Connect(s.NATSURL, "hybrid-search")
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { nc.Drain() })
		opts = append(opts, hybrid.WithObserver(hybrid.NewNATSPublisher(nc, s.NATSSubject, logger.With("component", "events"))))
	}

	a.engine, err = hybrid.New(hybrid.Deps{
		GraphStore: store,
		Embedder:   embedder,
		Searcher:   searcher,
		LLM:        llm,
	}, s.EngineConfig(), opts...)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func openSearcher(s Settings, a *app) (semantic.Searcher, error) {
	switch s.VectorSource {
	case sourceSQLite:
		src, err := semantic.OpenSQLiteSource(s.SQLitePath, s.SQLiteTable)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { src.Close() })
		return semantic.NewScanSearcher(src), nil
	case sourceQdrantScan, sourceQdrantANN:
		q, err := semantic.DialQdrant(s.QdrantAddr)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { q.Close() })
		if s.VectorSource == sourceQdrantANN {
			return semantic.NewQdrantSearcher(q.Points, q.Collections, s.QdrantCollection), nil
		}
		return semantic.NewScanSearcher(semantic.NewQdrantSource(q.Points, s.QdrantCollection, 0)), nil
	}
	return nil, fmt.Errorf("unknown vector-source %q", s.VectorSource)
}

// newRecorder returns a Prometheus recorder and, when addr is set, a started
// metrics server.
func newRecorder(addr string, logger *slog.Logger) (metrics.Recorder, *http.Server, error) {
	if addr == "" {
		return metrics.Nop(), nil, nil
	}
	reg := prometheus.NewRegistry()
	rec, err := metrics.NewPrometheus(reg)
	if err != nil {
		return nil, nil, err
	}
	srv := &http.Server{
		Addr: addr,
		Handler: mid.Chain(metrics.Handler(reg),
			mid.Recover(logger),
			mid.AccessLog(logger),
			mid.ReadOnly(),
			mid.OTel("metrics"),
		),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("metrics server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "err", err)
		}
	}()
	return rec, srv, nil
}
