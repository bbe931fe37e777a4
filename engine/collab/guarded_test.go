package collab

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/WessleyAI/hybrid-rag/pkg/fn"
	"github.com/WessleyAI/hybrid-rag/pkg/resilience"
)

type flakyStore struct {
	failures int
	calls    int
}

func (s *flakyStore) ExecuteQuery(_ context.Context, _ string, _ map[string]any) ([]Record, error) {
	s.calls++
	if s.calls <= s.failures {
		return nil, errors.New("transient")
	}
	return []Record{{"source_name": "a"}}, nil
}

type flakyEmbedder struct {
	failures int
	calls    int
}

func (e *flakyEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	e.calls++
	if e.calls <= e.failures {
		return nil, errors.New("transient")
	}
	return []float32{1, 0}, nil
}

func (e *flakyEmbedder) Dimensions() int { return 2 }

type flakyLLM struct {
	failures int
	calls    int
}

func (l *flakyLLM) Generate(_ context.Context, _ GenerateRequest) (Generation, error) {
	l.calls++
	if l.calls <= l.failures {
		return Generation{}, errors.New("transient")
	}
	return TextGeneration("hi"), nil
}

func retryGuard(name string) *resilience.Guard {
	return resilience.NewGuard(name, resilience.GuardOpts{
		Retry: fn.RetryOpts{MaxAttempts: 3, InitialWait: time.Millisecond},
	}, nil)
}

func TestGuardedDecoratorsRetry(t *testing.T) {
	ctx := context.Background()

	store := &flakyStore{failures: 2}
	recs, err := NewGuardedGraphStore(store, retryGuard("graph")).ExecuteQuery(ctx, "MATCH (n) RETURN n", nil)
	if err != nil || len(recs) != 1 || store.calls != 3 {
		t.Fatalf("graph: recs=%v err=%v calls=%d", recs, err, store.calls)
	}

	emb := &flakyEmbedder{failures: 1}
	g := NewGuardedEmbedder(emb, retryGuard("embed"))
	vec, err := g.Embed(ctx, "q")
	if err != nil || len(vec) != 2 || emb.calls != 2 {
		t.Fatalf("embed: vec=%v err=%v calls=%d", vec, err, emb.calls)
	}
	if g.Dimensions() != 2 {
		t.Fatalf("expected dimensions passthrough, got %d", g.Dimensions())
	}

	llm := &flakyLLM{failures: 2}
	gen, err := NewGuardedLLM(llm, retryGuard("llm")).Generate(ctx, GenerateRequest{Prompt: "p"})
	if err != nil || gen.Text != "hi" || llm.calls != 3 {
		t.Fatalf("llm: gen=%+v err=%v calls=%d", gen, err, llm.calls)
	}
}

func TestGuardedDecoratorsNilGuard(t *testing.T) {
	llm := &flakyLLM{failures: 1}
	_, err := NewGuardedLLM(llm, nil).Generate(context.Background(), GenerateRequest{})
	if err == nil || llm.calls != 1 {
		t.Fatalf("expected single failing call, err=%v calls=%d", err, llm.calls)
	}
}

func TestGenerationKindString(t *testing.T) {
	for kind, want := range map[GenerationKind]string{
		PlainText:          "text",
		JSONText:           "json",
		FunctionCall:       "function_call",
		GenerationKind(42): "unknown",
	} {
		if got := kind.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", kind, got, want)
		}
	}
	if g := CallGeneration("f", []byte(`{}`)); g.Kind != FunctionCall || g.FunctionName != "f" {
		t.Errorf("unexpected call generation %+v", g)
	}
	if g := JSONGeneration(`{}`); g.Kind != JSONText {
		t.Errorf("unexpected json generation %+v", g)
	}
}
