package testhelpers

import (
	"context"
	"sync"

	logger "github.com/xraph/go-utils/log"
	"github.com/xraph/go-utils/metrics"

	"github.com/xraph/agentloop/transport"
)

// ScriptedTransport replays a fixed sequence of responses, one per Stream
// call, streaming each as a single chunk by default.
type ScriptedTransport struct {
	// Responses are served in order; calls past the end repeat the last
	// response.
	Responses []string

	// StreamFunc, when set, overrides the scripted behavior entirely.
	StreamFunc func(ctx context.Context, req transport.TurnRequest, onChunk func(string) error) error

	// ChunkSplit, when set, splits each response into chunks before
	// streaming.
	ChunkSplit func(string) []string

	mu    sync.Mutex
	calls int

	// Requests records every TurnRequest seen, for assertions.
	Requests []transport.TurnRequest
}

func (s *ScriptedTransport) Stream(ctx context.Context, req transport.TurnRequest, onChunk func(string) error) error {
	if s.StreamFunc != nil {
		return s.StreamFunc(ctx, req, onChunk)
	}

	s.mu.Lock()
	s.Requests = append(s.Requests, req)
	call := s.calls
	s.calls++
	s.mu.Unlock()

	if len(s.Responses) == 0 {
		return nil
	}
	if call >= len(s.Responses) {
		call = len(s.Responses) - 1
	}

	response := s.Responses[call]

	chunks := []string{response}
	if s.ChunkSplit != nil {
		chunks = s.ChunkSplit(response)
	}

	for _, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := onChunk(chunk); err != nil {
			return err
		}
	}

	return nil
}

// Calls returns how many times Stream has been invoked.
func (s *ScriptedTransport) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.calls
}

// NewMockLogger returns a new mock logger for testing.
func NewMockLogger() logger.Logger {
	return logger.NewTestLogger()
}

// NewMockMetrics returns a mock metrics instance for testing.
func NewMockMetrics() metrics.Metrics {
	return metrics.NewMockMetrics()
}
