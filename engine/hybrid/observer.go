package hybrid

import (
	"context"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/WessleyAI/hybrid-rag/engine/domain"
	"github.com/WessleyAI/hybrid-rag/pkg/natsutil"
)

// Observer is notified synchronously after every search with the final
// response. Implementations must not modify resp.
type Observer interface {
	SearchCompleted(ctx context.Context, resp *domain.SearchResponse)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, resp *domain.SearchResponse)

func (f ObserverFunc) SearchCompleted(ctx context.Context, resp *domain.SearchResponse) { f(ctx, resp) }

// DefaultEventSubject is the NATS subject search events are published on.
const DefaultEventSubject = "hybrid.search.completed"

// SearchEvent is the summary published for each finished search.
type SearchEvent struct {
	RequestID      string    `json:"request_id"`
	Query          string    `json:"query"`
	Answer         string    `json:"answer"`
	Error          string    `json:"error,omitempty"`
	Notes          []string  `json:"notes,omitempty"`
	GraphEvidence  int       `json:"graph_evidence"`
	VectorEvidence int       `json:"vector_evidence"`
	Sources        []string  `json:"sources"`
	DurationMS     int64     `json:"duration_ms"`
	CompletedAt    time.Time `json:"completed_at"`
}

// NewSearchEvent summarizes resp.
func NewSearchEvent(resp *domain.SearchResponse, at time.Time) SearchEvent {
	ids := make([]string, len(resp.Sources))
	for i, s := range resp.Sources {
		ids[i] = s.ID
	}
	return SearchEvent{
		RequestID:      resp.RequestID,
		Query:          resp.Query,
		Answer:         resp.Answer,
		Error:          resp.Error,
		Notes:          resp.Notes,
		GraphEvidence:  len(resp.GraphEvidence),
		VectorEvidence: len(resp.VectorEvidence),
		Sources:        ids,
		DurationMS:     resp.Duration.Milliseconds(),
		CompletedAt:    at.UTC(),
	}
}

// NATSPublisher publishes a SearchEvent for every search. Publish failures
// are logged and never affect the response.
type NATSPublisher struct {
	nc      *nats.Conn
	subject string
	logger  *slog.Logger
}

// NewNATSPublisher creates a publisher. An empty subject uses
// DefaultEventSubject.
func NewNATSPublisher(nc *nats.Conn, subject string, logger *slog.Logger) *NATSPublisher {
	if subject == "" {
		subject = DefaultEventSubject
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &NATSPublisher{nc: nc, subject: subject, logger: logger}
}

func (p *NATSPublisher) SearchCompleted(ctx context.Context, resp *domain.SearchResponse) {
	if err := natsutil.Publish(ctx, p.nc, p.subject, NewSearchEvent(resp, time.Now())); err != nil {
		p.logger.Warn("publish search event failed", "subject", p.subject, "request_id", resp.RequestID, "err", err)
	}
}
