// Package messages assembles transport message slices in the orderings the
// turn loop needs.
package messages

import (
	"github.com/xraph/agentloop/transport"
)

// Build constructs a request message slice: system prompt first (when
// non-empty), then history, then the user prompt (when non-empty).
func Build(systemPrompt string, history []transport.Message, userPrompt string) []transport.Message {
	out := make([]transport.Message, 0, len(history)+2)

	if systemPrompt != "" {
		out = append(out, transport.Message{Role: "system", Content: systemPrompt})
	}

	out = append(out, history...)

	if userPrompt != "" {
		out = append(out, transport.Message{Role: "user", Content: userPrompt})
	}

	return out
}

