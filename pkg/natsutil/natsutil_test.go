package natsutil

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func startTestNATS(t *testing.T) (*natsserver.Server, *nats.Conn) {
	t.Helper()
	opts := &natsserver.Options{Port: -1}
	srv, err := natsserver.NewServer(opts)
	if err != nil {
		t.Fatal(err)
	}
	srv.Start()
	if !srv.ReadyForConnections(3 * time.Second) {
		t.Fatal("nats not ready")
	}
	nc, err := Connect(srv.ClientURL(), "natsutil-test")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		nc.Close()
		srv.Shutdown()
	})
	return srv, nc
}

type payload struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

func TestPublish(t *testing.T) {
	_, nc := startTestNATS(t)

	ch := make(chan *nats.Msg, 1)
	sub, err := nc.ChanSubscribe("test.pub", ch)
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Unsubscribe()

	if err := Publish(context.Background(), nc, "test.pub", payload{Name: "hello", Value: 1}); err != nil {
		t.Fatal(err)
	}

	select {
	case msg := <-ch:
		var p payload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			t.Fatal(err)
		}
		if p.Name != "hello" || p.Value != 1 {
			t.Fatalf("unexpected payload: %+v", p)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestPublishEncodeError(t *testing.T) {
	_, nc := startTestNATS(t)
	if err := Publish(context.Background(), nc, "test.bad", make(chan int)); err == nil {
		t.Fatal("expected encode error")
	}
}

func TestSubscribeDropsMalformed(t *testing.T) {
	_, nc := startTestNATS(t)

	ch := make(chan payload, 2)
	sub, err := Subscribe(nc, "test.sub", func(ctx context.Context, p payload) {
		ch <- p
	})
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Unsubscribe()

	if err := nc.Publish("test.sub", []byte("not json")); err != nil {
		t.Fatal(err)
	}
	if err := Publish(context.Background(), nc, "test.sub", payload{Name: "ok", Value: 2}); err != nil {
		t.Fatal(err)
	}

	select {
	case p := <-ch:
		if p.Name != "ok" {
			t.Fatalf("unexpected payload: %+v", p)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for message")
	}
	select {
	case p := <-ch:
		t.Fatalf("malformed message should be dropped, got %+v", p)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestTracePropagation(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	_, nc := startTestNATS(t)

	traceID, _ := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	spanID, _ := trace.SpanIDFromHex("0102030405060708")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	got := make(chan trace.SpanContext, 1)
	sub, err := Subscribe(nc, "test.trace", func(ctx context.Context, _ payload) {
		got <- trace.SpanContextFromContext(ctx)
	})
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Unsubscribe()

	if err := Publish(ctx, nc, "test.trace", payload{}); err != nil {
		t.Fatal(err)
	}
	select {
	case remote := <-got:
		if remote.TraceID() != traceID {
			t.Fatalf("trace id = %s, want %s", remote.TraceID(), traceID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestConnectFailure(t *testing.T) {
	if _, err := Connect("nats://127.0.0.1:1", "x"); err == nil {
		t.Fatal("expected connect error")
	}
}
