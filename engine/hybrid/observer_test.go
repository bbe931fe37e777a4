package hybrid

import (
	"context"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"

	"github.com/WessleyAI/hybrid-rag/engine/domain"
	"github.com/WessleyAI/hybrid-rag/pkg/natsutil"
)

func startNATS(t *testing.T) *nats.Conn {
	t.Helper()
	srv, err := natsserver.NewServer(&natsserver.Options{Port: -1})
	if err != nil {
		t.Fatal(err)
	}
	srv.Start()
	if !srv.ReadyForConnections(3 * time.Second) {
		t.Fatal("nats not ready")
	}
	nc, err := natsutil.Connect(srv.ClientURL(), "hybrid-test")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		nc.Close()
		srv.Shutdown()
	})
	return nc
}

func TestNewSearchEvent(t *testing.T) {
	resp := &domain.SearchResponse{
		RequestID:      "req-1",
		Query:          "Who is Kevin Smith?",
		Answer:         "An engineer.",
		GraphEvidence:  []domain.GraphEvidenceItem{kevinEdge},
		VectorEvidence: []domain.VectorEvidenceItem{kevinPassage},
		Sources:        domain.BuildSources([]domain.GraphEvidenceItem{kevinEdge}, []domain.VectorEvidenceItem{kevinPassage}),
		Duration:       1500 * time.Millisecond,
	}
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.FixedZone("x", 3600))

	ev := NewSearchEvent(resp, at)
	if ev.RequestID != "req-1" || ev.GraphEvidence != 1 || ev.VectorEvidence != 1 {
		t.Fatalf("unexpected event %+v", ev)
	}
	if ev.DurationMS != 1500 {
		t.Errorf("duration = %d", ev.DurationMS)
	}
	if len(ev.Sources) != 2 || ev.Sources[1] != "doc-1" {
		t.Errorf("sources = %v", ev.Sources)
	}
	if ev.CompletedAt.Location() != time.UTC {
		t.Error("completion time should be UTC")
	}
}

func TestNATSPublisher(t *testing.T) {
	nc := startNATS(t)

	got := make(chan SearchEvent, 1)
	sub, err := natsutil.Subscribe(nc, DefaultEventSubject, func(_ context.Context, ev SearchEvent) {
		got <- ev
	})
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Unsubscribe()
	if err := nc.Flush(); err != nil {
		t.Fatal(err)
	}

	s, g, v, sy := newFakes()
	e := engineFor(s, g, v, sy, WithObserver(NewNATSPublisher(nc, "", nil)))
	resp := e.Search(context.Background(), "Who is Kevin Smith?")

	select {
	case ev := <-got:
		if ev.RequestID != resp.RequestID || ev.Answer != resp.Answer {
			t.Fatalf("event does not match response: %+v", ev)
		}
		if ev.GraphEvidence != 1 || ev.VectorEvidence != 1 {
			t.Fatalf("unexpected counts %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for search event")
	}
}

func TestNATSPublisherClosedConnection(t *testing.T) {
	nc := startNATS(t)
	nc.Close()

	s, g, v, sy := newFakes()
	e := engineFor(s, g, v, sy, WithObserver(NewNATSPublisher(nc, "custom.subject", nil)))
	resp := e.Search(context.Background(), "Who is Kevin Smith?")
	if resp.Error != "" || resp.Answer == "" {
		t.Fatalf("publish failure must not affect the response: %+v", resp)
	}
}
