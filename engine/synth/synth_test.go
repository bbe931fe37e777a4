package synth

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/WessleyAI/hybrid-rag/engine/collab"
	"github.com/WessleyAI/hybrid-rag/engine/domain"
)

type mockLLM struct {
	gen   collab.Generation
	err   error
	calls int
	req   collab.GenerateRequest
}

func (m *mockLLM) Generate(_ context.Context, req collab.GenerateRequest) (collab.Generation, error) {
	m.calls++
	m.req = req
	return m.gen, m.err
}

var (
	graphItem = domain.GraphEvidenceItem{
		Source:           domain.Node{Name: "Alice", Type: "Person"},
		RelationshipType: "WORKS_FOR",
		Target:           domain.Node{Name: "Acme", Type: "Company"},
	}
	vectorItem = domain.VectorEvidenceItem{ID: "p1", Text: "Alice joined Acme in 2020.", Score: 0.91}
)

func TestSynthesizeNoEvidenceSkipsLLM(t *testing.T) {
	llm := &mockLLM{}
	answer, err := New(llm, nil).Synthesize(context.Background(), "q", nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != domain.InsufficientAnswer {
		t.Fatalf("answer = %q", answer)
	}
	if llm.calls != 0 {
		t.Fatalf("expected no LLM call, got %d", llm.calls)
	}
}

func TestSynthesizeGraphOnlyUsesVectorPlaceholder(t *testing.T) {
	llm := &mockLLM{gen: collab.TextGeneration("  Alice works for Acme.  ")}
	answer, err := New(llm, nil).Synthesize(context.Background(), "Who does Alice work for?",
		[]domain.GraphEvidenceItem{graphItem}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != "Alice works for Acme." {
		t.Fatalf("answer = %q", answer)
	}
	if llm.calls != 1 {
		t.Fatalf("expected one LLM call, got %d", llm.calls)
	}
	if !strings.Contains(llm.req.Prompt, NoVectorEvidence) {
		t.Errorf("prompt missing vector placeholder:\n%s", llm.req.Prompt)
	}
	if strings.Contains(llm.req.Prompt, NoGraphEvidence) {
		t.Errorf("prompt should not contain graph placeholder")
	}
	if !strings.Contains(llm.req.Prompt, "Alice -[WORKS_FOR]-> Acme (Person -> Company)") {
		t.Errorf("prompt missing graph evidence:\n%s", llm.req.Prompt)
	}
	if llm.req.System != SystemPrompt || llm.req.Schema != nil {
		t.Errorf("unexpected request %+v", llm.req)
	}
}

func TestSynthesizeVectorOnlyUsesGraphPlaceholder(t *testing.T) {
	llm := &mockLLM{gen: collab.TextGeneration("ok")}
	if _, err := New(llm, nil).Synthesize(context.Background(), "q", nil, []domain.VectorEvidenceItem{vectorItem}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(llm.req.Prompt, NoGraphEvidence) {
		t.Errorf("prompt missing graph placeholder:\n%s", llm.req.Prompt)
	}
	if !strings.Contains(llm.req.Prompt, "[p1] (score: 0.910)\nAlice joined Acme in 2020.") {
		t.Errorf("prompt missing passage:\n%s", llm.req.Prompt)
	}
}

func TestSynthesizeFailures(t *testing.T) {
	tests := []struct {
		name string
		llm  *mockLLM
	}{
		{"llm error", &mockLLM{err: errors.New("rate limited")}},
		{"empty completion", &mockLLM{gen: collab.TextGeneration("   ")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			answer, err := New(tt.llm, nil).Synthesize(context.Background(), "q", []domain.GraphEvidenceItem{graphItem}, nil)
			if answer != "" {
				t.Errorf("answer = %q, want empty", answer)
			}
			if !errors.Is(err, domain.ErrSynthesis) {
				t.Fatalf("expected ErrSynthesis, got %v", err)
			}
		})
	}
}

func TestBuildPromptDeterministic(t *testing.T) {
	g := []domain.GraphEvidenceItem{graphItem}
	v := []domain.VectorEvidenceItem{vectorItem}
	if BuildPrompt("q", g, v) != BuildPrompt("q", g, v) {
		t.Fatal("prompt must be deterministic")
	}
	p := BuildPrompt("q", nil, nil)
	if !strings.Contains(p, NoGraphEvidence) || !strings.Contains(p, NoVectorEvidence) {
		t.Fatalf("both placeholders expected:\n%s", p)
	}
}
