// Package transport defines the wire boundary between the agent loop and
// the model backend: the message shape sent upstream and the streaming
// interface backends implement.
package transport

import "context"

// Message is one chat message in a turn request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TurnRequest is everything a backend needs to produce one model response.
type TurnRequest struct {
	Messages    []Message `json:"messages"`
	Model       string    `json:"model,omitempty"`
	AgentID     string    `json:"agent_id,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// LastUserContent returns the content of the most recent user message, or
// the empty string when the request has none.
func (r TurnRequest) LastUserContent() string {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == "user" {
			return r.Messages[i].Content
		}
	}

	return ""
}

// StreamTransport streams a model response chunk by chunk. Implementations
// must call onChunk in arrival order and stop when it returns an error or
// the context is cancelled.
type StreamTransport interface {
	Stream(ctx context.Context, req TurnRequest, onChunk func(chunk string) error) error
}
