package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	p, err := NewPrometheus(reg)
	require.NoError(t, err)

	p.ObserveStage("graph_retrieval", OutcomeOK, 0.02)
	p.ObserveStage("graph_retrieval", OutcomeOK, 0.03)
	p.ObserveStage("vector_retrieval", OutcomeError, 0.5)
	p.ObserveSearch(OutcomeDegraded, 1.2)
	p.ObserveEvidence("graph", 4)
	p.ObserveBreakerState("llm", 1)

	assert.Equal(t, 2.0, testutil.ToFloat64(p.stageTotal.WithLabelValues("graph_retrieval", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.stageTotal.WithLabelValues("vector_retrieval", OutcomeError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.searchTotal.WithLabelValues(OutcomeDegraded)))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.breakerState.WithLabelValues("llm")))
	assert.Equal(t, 1, testutil.CollectAndCount(p.evidence))
}

func TestNewPrometheusDuplicateRegistration(t *testing.T) {
	reg := prom.NewRegistry()
	_, err := NewPrometheus(reg)
	require.NoError(t, err)
	_, err = NewPrometheus(reg)
	assert.Error(t, err)
}

func TestTimeStage(t *testing.T) {
	rec := &captureRecorder{}
	done := TimeStage(rec, "synthesis")
	done(OutcomeOK)

	require.Len(t, rec.stages, 1)
	assert.Equal(t, "synthesis/ok", rec.stages[0])
	assert.GreaterOrEqual(t, rec.seconds, 0.0)
}

func TestNopRecorder(t *testing.T) {
	r := Nop()
	assert.NotPanics(t, func() {
		r.ObserveStage("x", OutcomeOK, 1)
		r.ObserveSearch(OutcomeOK, 1)
		r.ObserveEvidence("vector", 3)
		r.ObserveBreakerState("graph", 0)
	})
}

func TestHandler(t *testing.T) {
	reg := prom.NewRegistry()
	p, err := NewPrometheus(reg)
	require.NoError(t, err)
	p.ObserveSearch(OutcomeOK, 0.1)

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `hybrid_search_total{outcome="ok"} 1`)

	resp, err = http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "ok", string(body))
}

type captureRecorder struct {
	stages  []string
	seconds float64
}

func (c *captureRecorder) ObserveStage(stage, outcome string, seconds float64) {
	c.stages = append(c.stages, stage+"/"+outcome)
	c.seconds = seconds
}
func (c *captureRecorder) ObserveSearch(string, float64)   {}
func (c *captureRecorder) ObserveEvidence(string, int)     {}
func (c *captureRecorder) ObserveBreakerState(string, int) {}
