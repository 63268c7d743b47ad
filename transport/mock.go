package transport

import (
	"context"
	"regexp"
	"strings"
	"time"
)

// MockScenario is one canned multi-round exchange. Steps[0] answers the
// user message, Steps[1] answers after the first tool result, and so on.
// The last step repeats if the conversation outruns the script.
type MockScenario struct {
	Keywords []string
	Steps    []string
}

// MockTransport streams scripted responses token by token, for demos and
// tests that need a model-shaped backend without a model.
type MockTransport struct {
	Scenarios []MockScenario

	// Fallback answers requests no scenario matches.
	Fallback []string

	// TokenDelay paces the stream. Zero streams as fast as the consumer
	// accepts.
	TokenDelay time.Duration
}

// tokenRe matches whitespace runs and angle-bracket tags so protocol
// markers arrive as whole tokens rather than split across chunks.
var tokenRe = regexp.MustCompile(`\s+|<[^>]+>`)

// Stream implements StreamTransport.
func (t *MockTransport) Stream(ctx context.Context, req TurnRequest, onChunk func(string) error) error {
	response := t.pick(req)

	for _, token := range SplitTokens(response) {
		if t.TokenDelay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(t.TokenDelay):
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		if err := onChunk(token); err != nil {
			return err
		}
	}

	return nil
}

func (t *MockTransport) pick(req TurnRequest) string {
	step := toolRounds(req.Messages)

	userContent := strings.ToLower(req.LastUserContent())
	for _, scenario := range t.Scenarios {
		for _, keyword := range scenario.Keywords {
			if strings.Contains(userContent, strings.ToLower(keyword)) {
				return stepAt(scenario.Steps, step)
			}
		}
	}

	if len(t.Fallback) > 0 {
		return stepAt(t.Fallback, step)
	}

	return "I'm not sure how to help with that yet."
}

// toolRounds counts the system messages appended after the last user
// message, which is how many tool rounds this turn has already run.
func toolRounds(messages []Message) int {
	rounds := 0
	for i := len(messages) - 1; i >= 0; i-- {
		switch messages[i].Role {
		case "user":
			return rounds
		case "system":
			rounds++
		}
	}

	return rounds
}

func stepAt(steps []string, step int) string {
	if len(steps) == 0 {
		return ""
	}
	if step >= len(steps) {
		step = len(steps) - 1
	}

	return steps[step]
}

// SplitTokens splits a response into chunk-sized tokens, keeping whitespace
// runs and tags intact as their own tokens.
func SplitTokens(s string) []string {
	if s == "" {
		return nil
	}

	var tokens []string

	last := 0
	for _, m := range tokenRe.FindAllStringIndex(s, -1) {
		if m[0] > last {
			tokens = append(tokens, s[last:m[0]])
		}
		tokens = append(tokens, s[m[0]:m[1]])
		last = m[1]
	}
	if last < len(s) {
		tokens = append(tokens, s[last:])
	}

	return tokens
}
