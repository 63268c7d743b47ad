package agentloop

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	logger "github.com/xraph/go-utils/log"
	"github.com/xraph/go-utils/metrics"

	"github.com/xraph/agentloop/internal/messages"
	"github.com/xraph/agentloop/transport"
)

// DefaultMaxRounds bounds how many tool rounds a single turn may run.
const DefaultMaxRounds = 5

// streamErrorMarker replaces the assistant message content when the
// transport fails mid-stream.
const streamErrorMarker = "*Error: Failed to generate response.*"

var (
	// errPaused signals that the stream emitted the pause token and the
	// round should finalize with what has arrived so far.
	errPaused = errors.New("agentloop: pause token received")

	// ErrTurnInProgress is returned when a turn is started while another
	// one is still running on the same controller.
	ErrTurnInProgress = errors.New("agentloop: turn already in progress")
)

// TurnResult reports how a turn ended.
type TurnResult struct {
	// Rounds is the number of model rounds the turn ran.
	Rounds int

	// AwaitingInput is true when the turn stopped on an ask_user inquiry.
	AwaitingInput bool

	// Stopped is true when the user cancelled the turn mid-stream.
	Stopped bool

	// LimitReached is true when the turn exhausted its round budget with
	// the model still requesting tools.
	LimitReached bool

	// FinalMessageID is the last assistant message of the turn.
	FinalMessageID string
}

// TurnControllerConfig configures a TurnController.
type TurnControllerConfig struct {
	Store     *Store
	Transport transport.StreamTransport
	Tools     *ToolRegistry
	Agents    *AgentRegistry

	// Parser defaults to NewParser().
	Parser *Parser

	// MaxRounds defaults to DefaultMaxRounds.
	MaxRounds int

	// UserID is recorded on decisions submitted through this controller.
	UserID string

	Logger  logger.Logger
	Metrics metrics.Metrics
}

// TurnController drives the agent loop: it streams model responses into
// the store, executes tool commands, and feeds results back until the
// model answers without requesting a tool.
type TurnController struct {
	store     *Store
	transport transport.StreamTransport
	tools     *ToolRegistry
	agents    *AgentRegistry
	parser    *Parser
	maxRounds int
	userID    string
	logger    logger.Logger
	metrics   metrics.Metrics

	mu         sync.Mutex
	cancelTurn context.CancelFunc
}

// NewTurnController builds a turn controller.
func NewTurnController(cfg TurnControllerConfig) (*TurnController, error) {
	if cfg.Store == nil {
		return nil, errors.New("agentloop: store is required")
	}
	if cfg.Transport == nil {
		return nil, errors.New("agentloop: transport is required")
	}
	if cfg.Tools == nil {
		return nil, errors.New("agentloop: tool registry is required")
	}
	if cfg.Agents == nil {
		return nil, errors.New("agentloop: agent registry is required")
	}

	parser := cfg.Parser
	if parser == nil {
		parser = NewParser()
	}

	maxRounds := cfg.MaxRounds
	if maxRounds <= 0 {
		maxRounds = DefaultMaxRounds
	}

	return &TurnController{
		store:     cfg.Store,
		transport: cfg.Transport,
		tools:     cfg.Tools,
		agents:    cfg.Agents,
		parser:    parser,
		maxRounds: maxRounds,
		userID:    cfg.UserID,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
	}, nil
}

// SendMessage appends a user message to the active thread and runs a turn.
func (c *TurnController) SendMessage(ctx context.Context, content string) (*TurnResult, error) {
	state := c.store.State()

	msg := NewMessage(RoleUser, content, state.CurrentLeafID)
	c.store.Dispatch(AppendMessage{Message: msg})

	return c.runTurn(ctx)
}

// EditUserMessage creates a sibling branch: a new user message sharing the
// edited message's parent, then runs a turn on the new branch. The original
// branch is preserved and reachable through NavigateBranch.
func (c *TurnController) EditUserMessage(ctx context.Context, messageID, content string) (*TurnResult, error) {
	state := c.store.State()

	original, ok := state.Messages[messageID]
	if !ok {
		return nil, fmt.Errorf("agentloop: message %s not found", messageID)
	}
	if original.Role != RoleUser {
		return nil, fmt.Errorf("agentloop: message %s is not a user message", messageID)
	}

	msg := NewMessage(RoleUser, content, original.ParentID)
	c.store.Dispatch(AppendMessage{Message: msg})

	return c.runTurn(ctx)
}

// SubmitDecision answers a pending inquiry and resumes the turn. The
// decision is recorded on the inquiry's message and forwarded to the model
// as a system message.
func (c *TurnController) SubmitDecision(ctx context.Context, inquiryID string, value any) (*TurnResult, error) {
	c.store.Dispatch(SubmitDecision{
		InquiryID: inquiryID,
		Value:     value,
		UserID:    c.userID,
		Timestamp: time.Now(),
	})

	payload, err := json.Marshal(value)
	if err != nil {
		payload = []byte(fmt.Sprintf("%q", fmt.Sprint(value)))
	}

	state := c.store.State()
	sys := NewMessage(RoleSystem,
		fmt.Sprintf("User decision for inquiry %s: %s", inquiryID, payload),
		state.CurrentLeafID)
	c.store.Dispatch(AppendMessage{Message: sys})

	return c.runTurn(ctx)
}

// SubmitCodeResult feeds the outcome of a user-executed code widget back
// into the conversation and resumes the turn.
func (c *TurnController) SubmitCodeResult(ctx context.Context, widgetID string, result ToolResult) (*TurnResult, error) {
	payload, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("agentloop: encode code result: %w", err)
	}

	state := c.store.State()
	sys := NewMessage(RoleSystem,
		fmt.Sprintf("Execution result for widget %s: %s", widgetID, payload),
		state.CurrentLeafID)
	c.store.Dispatch(AppendMessage{Message: sys})

	return c.runTurn(ctx)
}

// Stop cancels the in-flight turn, if any. The partial assistant content
// streamed so far is kept.
func (c *TurnController) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancelTurn != nil {
		c.cancelTurn()
	}
}

func (c *TurnController) runTurn(ctx context.Context) (*TurnResult, error) {
	turnCtx, cancel, err := c.beginTurn(ctx)
	if err != nil {
		return nil, err
	}
	defer c.endTurn(cancel)

	start := time.Now()

	result, err := c.loop(turnCtx)

	if c.metrics != nil {
		c.metrics.Histogram("agentloop.turns.duration").Observe(time.Since(start).Seconds())
		status := "completed"
		switch {
		case err != nil:
			status = "failed"
		case result.Stopped:
			status = "stopped"
		case result.AwaitingInput:
			status = "awaiting_input"
		case result.LimitReached:
			status = "round_limit"
		}
		c.metrics.Counter("agentloop.turns.total", metrics.WithLabel("status", status)).Inc()
	}

	return result, err
}

func (c *TurnController) beginTurn(ctx context.Context) (context.Context, context.CancelFunc, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancelTurn != nil {
		return nil, nil, ErrTurnInProgress
	}

	turnCtx, cancel := context.WithCancel(ctx)
	c.cancelTurn = cancel

	return turnCtx, cancel, nil
}

func (c *TurnController) endTurn(cancel context.CancelFunc) {
	cancel()

	c.mu.Lock()
	c.cancelTurn = nil
	c.mu.Unlock()
}

// loop runs bounded model rounds until the response carries no command.
func (c *TurnController) loop(turnCtx context.Context) (*TurnResult, error) {
	agent := c.activeAgent()
	systemPrompt := BuildSystemPrompt(agent, c.agentTools(agent))
	history := messages.Build(systemPrompt, c.threadHistory(), "")

	result := &TurnResult{}

	for round := 0; round < c.maxRounds; round++ {
		result.Rounds = round + 1

		assistant := NewMessage(RoleAssistant, "", c.store.State().CurrentLeafID)
		c.store.Dispatch(AppendMessage{Message: assistant})
		result.FinalMessageID = assistant.ID

		content, streamErr := c.streamRound(turnCtx, assistant.ID, history)
		final := StripPause(content)
		c.store.Dispatch(ReplaceContent{MessageID: assistant.ID, Content: final})

		if streamErr != nil && !errors.Is(streamErr, errPaused) {
			if turnCtx.Err() != nil {
				// User stop or parent cancellation. Keep the partial
				// content already finalized above.
				c.store.Dispatch(SetStatus{Status: StatusIdle})
				result.Stopped = true

				return result, nil
			}

			c.store.Dispatch(ReplaceContent{
				MessageID: assistant.ID,
				Content:   streamErrorMarker,
			})
			c.store.Dispatch(SetStatus{Status: StatusIdle})

			if c.logger != nil {
				c.logger.Error("stream failed", logger.Error(streamErr))
			}

			return result, streamErr
		}

		parsed := c.parser.Parse(content)
		if parsed.Thought != "" {
			c.store.Dispatch(SetReasoning{MessageID: assistant.ID, Reasoning: parsed.Thought})
		}

		if parsed.Command == nil {
			c.store.Dispatch(SetStatus{Status: StatusIdle})

			return result, nil
		}

		cmd := *parsed.Command

		if cmd.Tool == AskUserToolName {
			if inquiry, ok := decodeInquiry(cmd.Params); ok {
				c.store.Dispatch(SetInquiry{MessageID: assistant.ID, Inquiry: inquiry})
				result.AwaitingInput = true

				return result, nil
			}
			// Malformed inquiry payloads fall through to plain execution,
			// which reports the tool as pending.
		}

		toolCall := ToolCall{
			ID:         uuid.NewString(),
			Name:       cmd.Tool,
			Parameters: cmd.Params,
			Status:     ToolCallPending,
		}
		c.store.Dispatch(StartToolCall{MessageID: assistant.ID, ToolCall: toolCall})

		toolResult := c.tools.Execute(turnCtx, cmd.Tool, cmd.Params)

		c.store.Dispatch(CompleteToolCall{MessageID: assistant.ID, ToolCallID: toolCall.ID})

		resultPayload, err := json.Marshal(toolResult)
		if err != nil {
			resultPayload = []byte(`{"status":"error","error":"unencodable tool result"}`)
		}

		sysContent := fmt.Sprintf("Tool result for %s: %s", cmd.Tool, resultPayload)
		sys := NewMessage(RoleSystem, sysContent, c.store.State().CurrentLeafID)
		c.store.Dispatch(AppendMessage{Message: sys})

		history = append(history,
			transport.Message{Role: "assistant", Content: final},
			transport.Message{Role: "system", Content: sysContent},
		)
	}

	if c.logger != nil {
		c.logger.Warn("turn hit round limit", logger.Int("max_rounds", c.maxRounds))
	}

	c.store.Dispatch(SetStatus{Status: StatusIdle})
	result.LimitReached = true

	return result, nil
}

// streamRound streams one model response into the given assistant message,
// re-parsing the accumulated content on every chunk so reasoning surfaces
// while the stream is still open. Returns the full accumulated content and
// errPaused when the pause token arrived.
func (c *TurnController) streamRound(turnCtx context.Context, messageID string, history []transport.Message) (string, error) {
	roundCtx, cancelRound := context.WithCancel(turnCtx)
	defer cancelRound()

	var acc strings.Builder

	err := c.transport.Stream(roundCtx, transport.TurnRequest{
		Messages: history,
		AgentID:  c.store.State().ActiveAgentID,
	}, func(chunk string) error {
		acc.WriteString(chunk)
		c.store.Dispatch(ReceiveToken{MessageID: messageID, Chunk: chunk})

		content := acc.String()
		if parsed := c.parser.Parse(content); parsed.Thought != "" {
			c.store.Dispatch(SetReasoning{MessageID: messageID, Reasoning: parsed.Thought})
		}

		if ContainsPause(content) {
			return errPaused
		}

		return nil
	})

	return acc.String(), err
}

func (c *TurnController) activeAgent() AgentDefinition {
	if agent, ok := c.agents.Get(c.store.State().ActiveAgentID); ok {
		return agent
	}

	agent, _ := c.agents.Default()

	return agent
}

// agentTools resolves the agent's default tool names against the registry,
// skipping names no tool is registered under.
func (c *TurnController) agentTools(agent AgentDefinition) []Tool {
	if len(agent.DefaultTools) == 0 {
		return c.tools.Definitions()
	}

	tools := make([]Tool, 0, len(agent.DefaultTools))
	for _, name := range agent.DefaultTools {
		if tool, ok := c.tools.Get(name); ok {
			tool.Handler = nil
			tools = append(tools, tool)
		}
	}

	return tools
}

// threadHistory converts the active thread into transport messages.
func (c *TurnController) threadHistory() []transport.Message {
	thread := c.store.Thread()

	out := make([]transport.Message, 0, len(thread))
	for _, msg := range thread {
		if msg.Content == "" {
			continue
		}

		out = append(out, transport.Message{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}

	return out
}

func decodeInquiry(rawParams string) (StructuredInquiry, bool) {
	var inquiry StructuredInquiry
	if err := json.Unmarshal([]byte(rawParams), &inquiry); err != nil {
		return StructuredInquiry{}, false
	}
	if inquiry.Type == "" || inquiry.Question == "" {
		return StructuredInquiry{}, false
	}

	if inquiry.ID == "" {
		inquiry.ID = uuid.NewString()
	}

	return inquiry, true
}
