// Package metrics defines the instrumentation surface of the search engine
// with a no-op default and a Prometheus-backed implementation.
package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels.
const (
	OutcomeOK       = "ok"
	OutcomeError    = "error"
	OutcomeSkipped  = "skipped"
	OutcomeDegraded = "degraded"
	OutcomeFailed   = "failed"
)

// Recorder is the metrics surface used by the engine.
type Recorder interface {
	ObserveStage(stage, outcome string, seconds float64)
	ObserveSearch(outcome string, seconds float64)
	ObserveEvidence(kind string, n int)
	ObserveBreakerState(dependency string, state int)
}

type nopRecorder struct{}

func (nopRecorder) ObserveStage(string, string, float64) {}
func (nopRecorder) ObserveSearch(string, float64)        {}
func (nopRecorder) ObserveEvidence(string, int)          {}
func (nopRecorder) ObserveBreakerState(string, int)      {}

// Nop returns a Recorder that discards everything.
func Nop() Recorder { return nopRecorder{} }

// TimeStage starts a timer; the returned func records the stage outcome.
func TimeStage(r Recorder, stage string) func(outcome string) {
	start := time.Now()
	return func(outcome string) {
		r.ObserveStage(stage, outcome, time.Since(start).Seconds())
	}
}

// Prometheus records into client_golang collectors.
type Prometheus struct {
	stageTotal    *prom.CounterVec
	stageSeconds  *prom.HistogramVec
	searchTotal   *prom.CounterVec
	searchSeconds *prom.HistogramVec
	evidence      *prom.HistogramVec
	breakerState  *prom.GaugeVec
}

var _ Recorder = (*Prometheus)(nil)

// NewPrometheus creates the collectors and registers them with reg.
func NewPrometheus(reg prom.Registerer) (*Prometheus, error) {
	p := &Prometheus{
		stageTotal: prom.NewCounterVec(prom.CounterOpts{
			Name: "hybrid_stage_total",
			Help: "Pipeline stage executions by outcome.",
		}, []string{"stage", "outcome"}),
		stageSeconds: prom.NewHistogramVec(prom.HistogramOpts{
			Name:    "hybrid_stage_seconds",
			Help:    "Pipeline stage duration in seconds.",
			Buckets: prom.DefBuckets,
		}, []string{"stage", "outcome"}),
		searchTotal: prom.NewCounterVec(prom.CounterOpts{
			Name: "hybrid_search_total",
			Help: "Searches by outcome.",
		}, []string{"outcome"}),
		searchSeconds: prom.NewHistogramVec(prom.HistogramOpts{
			Name:    "hybrid_search_seconds",
			Help:    "End-to-end search duration in seconds.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"outcome"}),
		evidence: prom.NewHistogramVec(prom.HistogramOpts{
			Name:    "hybrid_evidence_items",
			Help:    "Evidence items returned per search.",
			Buckets: []float64{0, 1, 2, 3, 5, 10, 20},
		}, []string{"kind"}),
		breakerState: prom.NewGaugeVec(prom.GaugeOpts{
			Name: "hybrid_breaker_state",
			Help: "Circuit breaker state per dependency (0 closed, 1 open, 2 half-open).",
		}, []string{"dependency"}),
	}
	for _, c := range []prom.Collector{p.stageTotal, p.stageSeconds, p.searchTotal, p.searchSeconds, p.evidence, p.breakerState} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Prometheus) ObserveStage(stage, outcome string, seconds float64) {
	p.stageTotal.WithLabelValues(stage, outcome).Inc()
	p.stageSeconds.WithLabelValues(stage, outcome).Observe(seconds)
}

func (p *Prometheus) ObserveSearch(outcome string, seconds float64) {
	p.searchTotal.WithLabelValues(outcome).Inc()
	p.searchSeconds.WithLabelValues(outcome).Observe(seconds)
}

func (p *Prometheus) ObserveEvidence(kind string, n int) {
	p.evidence.WithLabelValues(kind).Observe(float64(n))
}

func (p *Prometheus) ObserveBreakerState(dependency string, state int) {
	p.breakerState.WithLabelValues(dependency).Set(float64(state))
}

// Handler serves /metrics from g and a /healthz liveness probe.
func Handler(g prom.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}
