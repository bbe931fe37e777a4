// Package ollama implements the embedding and LLM collaborators on top of
// Ollama's HTTP API.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Option configures a client.
type Option func(*settings)

type settings struct {
	httpClient  *http.Client
	dims        int
	queryPrefix string
}

// WithHTTPClient overrides the HTTP client. Its transport is used as-is.
func WithHTTPClient(c *http.Client) Option {
	return func(s *settings) { s.httpClient = c }
}

// WithDimensions declares the embedding dimensionality of the model.
func WithDimensions(n int) Option {
	return func(s *settings) { s.dims = n }
}

// WithQueryPrefix sets the task prefix prepended to query text before
// embedding, e.g. "search_query: " for nomic-embed-text.
func WithQueryPrefix(p string) Option {
	return func(s *settings) { s.queryPrefix = p }
}

func newSettings(opts []Option) settings {
	var s settings
	for _, o := range opts {
		o(&s)
	}
	if s.httpClient == nil {
		s.httpClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	return s
}

// postJSON sends in as JSON to baseURL+path and decodes the response into out.
func postJSON(ctx context.Context, hc *http.Client, baseURL, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(baseURL, "/")+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
