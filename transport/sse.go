package transport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	logger "github.com/xraph/go-utils/log"
	"github.com/xraph/go-utils/metrics"
)

const sseDataPrefix = "data: "

// SSEConfig configures an SSETransport.
type SSEConfig struct {
	// Endpoint is the chat completions URL.
	Endpoint string

	// APIKey, when set, is sent as a bearer token.
	APIKey string

	// Model is the default model for requests that do not name one.
	Model string

	// HTTPClient defaults to a client with a 120s timeout.
	HTTPClient *http.Client

	Logger  logger.Logger
	Metrics metrics.Metrics
}

// SSETransport streams completions from an OpenAI-compatible
// server-sent-events endpoint.
type SSETransport struct {
	endpoint string
	apiKey   string
	model    string
	client   *http.Client
	logger   logger.Logger
	metrics  metrics.Metrics
}

// NewSSETransport builds an SSE transport.
func NewSSETransport(cfg SSEConfig) (*SSETransport, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("sse transport: endpoint is required")
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}

	return &SSETransport{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		client:   client,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
	}, nil
}

type sseRequestBody struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Stream      bool      `json:"stream"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type sseChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Stream implements StreamTransport.
func (t *SSETransport) Stream(ctx context.Context, req TurnRequest, onChunk func(string) error) error {
	start := time.Now()

	model := req.Model
	if model == "" {
		model = t.model
	}

	body, err := json.Marshal(sseRequestBody{
		Model:       model,
		Messages:    req.Messages,
		Stream:      true,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if t.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+t.apiKey)
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		// The http client wraps context cancellation; surface it plainly
		// so callers can tell an abort from a transport failure.
		if ctx.Err() != nil {
			return ctx.Err()
		}

		t.countStream("transport_error")

		return fmt.Errorf("stream request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.countStream("http_error")

		return fmt.Errorf("stream request: unexpected status %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, sseDataPrefix) {
			continue
		}

		payload := strings.TrimPrefix(line, sseDataPrefix)
		if payload == "[DONE]" {
			break
		}

		var chunk sseChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			if t.logger != nil {
				t.logger.Warn("skipping malformed stream chunk", logger.Error(err))
			}

			continue
		}

		if chunk.Error != nil {
			t.countStream("server_error")

			return fmt.Errorf("stream error: %s", chunk.Error.Message)
		}

		if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
			continue
		}

		if err := onChunk(chunk.Choices[0].Delta.Content); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		t.countStream("read_error")

		return fmt.Errorf("read stream: %w", err)
	}

	t.countStream("success")
	if t.metrics != nil {
		t.metrics.Histogram("agentloop.transport.sse.duration").Observe(time.Since(start).Seconds())
	}

	return nil
}

func (t *SSETransport) countStream(status string) {
	if t.metrics == nil {
		return
	}

	t.metrics.Counter("agentloop.transport.sse.streams",
		metrics.WithLabel("status", status),
	).Inc()
}
