package ollama

import (
	"context"
	"errors"
	"fmt"

	"github.com/WessleyAI/hybrid-rag/engine/collab"
)

// EmbedClient implements collab.EmbeddingProvider using POST /api/embed.
type EmbedClient struct {
	baseURL string
	model   string
	s       settings
}

var _ collab.EmbeddingProvider = (*EmbedClient)(nil)

// NewEmbedClient creates an Ollama embedding client.
func NewEmbedClient(baseURL, model string, opts ...Option) *EmbedClient {
	return &EmbedClient{baseURL: baseURL, model: model, s: newSettings(opts)}
}

type embedReq struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embedResp struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed embeds text as a query, prepending the configured task prefix.
func (c *EmbedClient) Embed(ctx context.Context, text string) ([]float32, error) {
	var out embedResp
	if err := postJSON(ctx, c.s.httpClient, c.baseURL, "/api/embed", embedReq{Model: c.model, Input: c.s.queryPrefix + text}, &out); err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	if len(out.Embeddings) == 0 || len(out.Embeddings[0]) == 0 {
		return nil, errors.New("ollama embed: no embedding returned")
	}
	return out.Embeddings[0], nil
}

// Dimensions returns the configured dimensionality, 0 if unset.
func (c *EmbedClient) Dimensions() int { return c.s.dims }
