package ollama

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/WessleyAI/hybrid-rag/engine/collab"
)

// ChatClient implements collab.LLMClient using POST /api/chat.
type ChatClient struct {
	baseURL string
	model   string
	s       settings
}

var _ collab.LLMClient = (*ChatClient)(nil)

// NewChatClient creates an Ollama chat client.
func NewChatClient(baseURL, model string, opts ...Option) *ChatClient {
	return &ChatClient{baseURL: baseURL, model: model, s: newSettings(opts)}
}

type chatMessage struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	Thinking  string     `json:"thinking,omitempty"`
	ToolCalls []toolCall `json:"tool_calls,omitempty"`
}

type toolCall struct {
	Function struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	} `json:"function"`
}

type tool struct {
	Type     string                `json:"type"`
	Function collab.FunctionSchema `json:"function"`
}

type chatReq struct {
	Model    string         `json:"model"`
	Messages []chatMessage  `json:"messages"`
	Stream   bool           `json:"stream"`
	Tools    []tool         `json:"tools,omitempty"`
	Think    bool           `json:"think,omitempty"`
	Options  map[string]any `json:"options,omitempty"`
}

type chatResp struct {
	Model           string      `json:"model"`
	Message         chatMessage `json:"message"`
	Done            bool        `json:"done"`
	PromptEvalCount int         `json:"prompt_eval_count"`
	EvalCount       int         `json:"eval_count"`
}

// Generate issues one non-streaming chat completion. A schema is offered to
// the model as a tool; a tool call comes back as a FunctionCall generation.
func (c *ChatClient) Generate(ctx context.Context, in collab.GenerateRequest) (collab.Generation, error) {
	// Ollama has no thinking budget, only an on/off switch.
	req := chatReq{Model: c.model, Stream: false, Think: in.ThinkingBudget > 0}
	if in.System != "" {
		req.Messages = append(req.Messages, chatMessage{Role: "system", Content: in.System})
	}
	req.Messages = append(req.Messages, chatMessage{Role: "user", Content: in.Prompt})
	if in.Schema != nil {
		req.Tools = []tool{{Type: "function", Function: *in.Schema}}
	}
	if in.Temperature > 0 {
		req.Options = map[string]any{"temperature": in.Temperature}
	}

	var out chatResp
	if err := postJSON(ctx, c.s.httpClient, c.baseURL, "/api/chat", req, &out); err != nil {
		return collab.Generation{}, fmt.Errorf("ollama chat: %w", err)
	}

	var gen collab.Generation
	switch {
	case len(out.Message.ToolCalls) > 0:
		call := out.Message.ToolCalls[0].Function
		gen = collab.CallGeneration(call.Name, call.Arguments)
	case in.Schema != nil:
		gen = collab.JSONGeneration(out.Message.Content)
	default:
		gen = collab.TextGeneration(out.Message.Content)
	}
	gen.Model = out.Model
	gen.TokensUsed = out.PromptEvalCount + out.EvalCount
	return gen, nil
}
