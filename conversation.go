package agentloop

import (
	"sync"
	"time"
)

// Status is the conversation state machine's current phase.
type Status string

const (
	StatusIdle              Status = "idle"
	StatusThinking          Status = "thinking"
	StatusExecutingTool     Status = "executing_tool"
	StatusStreamingResponse Status = "streaming_response"
	StatusAwaitingInput     Status = "awaiting_input"
)

// ConversationState is the full conversation tree plus the active-thread
// pointer. Messages are never deleted, only superseded by new branches; the
// active thread is the parentID walk from CurrentLeafID to a root.
type ConversationState struct {
	Messages         map[string]Message `json:"messageMap"`
	CurrentLeafID    string             `json:"currentLeafId,omitempty"`
	Status           Status             `json:"status"`
	ActiveToolCallID string             `json:"activeToolCallId,omitempty"`
	ActiveAgentID    string             `json:"activeAgentId,omitempty"`
}

// NewConversationState returns an empty idle conversation for the given agent.
func NewConversationState(agentID string) ConversationState {
	return ConversationState{
		Messages:      make(map[string]Message),
		Status:        StatusIdle,
		ActiveAgentID: agentID,
	}
}

// Thread returns the active linear thread: the path from root to
// CurrentLeafID, oldest first. The walk is bounded by the map size, so a
// corrupted parent link can never loop forever.
func (s ConversationState) Thread() []Message {
	return s.ThreadFrom(s.CurrentLeafID)
}

// ThreadFrom returns the linear thread ending at the given leaf.
func (s ConversationState) ThreadFrom(leafID string) []Message {
	if leafID == "" {
		return nil
	}

	thread := make([]Message, 0, len(s.Messages))

	id := leafID
	for steps := 0; steps <= len(s.Messages); steps++ {
		msg, ok := s.Messages[id]
		if !ok {
			break
		}

		thread = append(thread, msg)

		if msg.ParentID == "" {
			break
		}
		id = msg.ParentID
	}

	// Reverse into chronological order.
	for i, j := 0, len(thread)-1; i < j; i, j = i+1, j-1 {
		thread[i], thread[j] = thread[j], thread[i]
	}

	return thread
}

// Action is a conversation state transition. The reducer is the only writer
// of conversation state; every event in the system is expressed as one of
// these.
type Action interface {
	isAction()
}

// AppendMessage inserts a message into the tree, links it under its parent,
// and moves the leaf pointer to it. A user message moves the status to
// thinking, an assistant message to streaming_response; a system message
// leaves the status alone.
type AppendMessage struct{ Message Message }

// ReceiveToken concatenates a streamed chunk onto a message's content.
// Unknown IDs are ignored (race safety after a clear).
type ReceiveToken struct {
	MessageID string
	Chunk     string
}

// ReplaceContent overwrites a message's content, used to finalize a streamed
// message with the pause token stripped or to surface a stream error.
type ReplaceContent struct {
	MessageID string
	Content   string
}

// SetReasoning updates the reasoning span attached to a streaming assistant
// message.
type SetReasoning struct {
	MessageID string
	Reasoning string
}

// SetStatus forces the conversation status.
type SetStatus struct{ Status Status }

// StartToolCall attaches a pending tool call to a message and moves the
// status to executing_tool.
type StartToolCall struct {
	MessageID string
	ToolCall  ToolCall
}

// CompleteToolCall marks a tool call completed and returns the status to
// streaming_response.
type CompleteToolCall struct {
	MessageID  string
	ToolCallID string
}

// SetInquiry attaches a structured inquiry to a message and moves the status
// to awaiting_input.
type SetInquiry struct {
	MessageID string
	Inquiry   StructuredInquiry
}

// SubmitDecision records the user's answer on the message in the active
// thread carrying the matching inquiry.
type SubmitDecision struct {
	InquiryID string
	Value     any
	UserID    string
	Timestamp time.Time
}

// NavigateBranch points the leaf at an arbitrary existing message, switching
// the visible thread without mutating any branch.
type NavigateBranch struct{ LeafID string }

// SwitchAgent changes the active agent for subsequent turns.
type SwitchAgent struct{ AgentID string }

// Clear resets the conversation to an empty idle state, keeping the agent.
type Clear struct{}

// RestoreSession replaces the tree with a saved session snapshot.
type RestoreSession struct{ Session Session }

func (AppendMessage) isAction()    {}
func (ReceiveToken) isAction()     {}
func (ReplaceContent) isAction()   {}
func (SetReasoning) isAction()     {}
func (SetStatus) isAction()        {}
func (StartToolCall) isAction()    {}
func (CompleteToolCall) isAction() {}
func (SetInquiry) isAction()       {}
func (SubmitDecision) isAction()   {}
func (NavigateBranch) isAction()   {}
func (SwitchAgent) isAction()      {}
func (Clear) isAction()            {}
func (RestoreSession) isAction()   {}

// Reduce applies an action to a conversation state and returns the next
// state. It is pure: the input state is never mutated, maps and slices are
// copied on write.
func Reduce(s ConversationState, a Action) ConversationState {
	switch act := a.(type) {
	case AppendMessage:
		msg := act.Message
		next := s
		next.Messages = cloneMessages(s.Messages)
		next.Messages[msg.ID] = msg
		next.CurrentLeafID = msg.ID

		if parent, ok := next.Messages[msg.ParentID]; msg.ParentID != "" && ok {
			children := make([]string, 0, len(parent.ChildrenIDs)+1)
			children = append(children, parent.ChildrenIDs...)
			parent.ChildrenIDs = append(children, msg.ID)
			next.Messages[msg.ParentID] = parent
		}

		switch msg.Role {
		case RoleUser:
			next.Status = StatusThinking
		case RoleAssistant:
			next.Status = StatusStreamingResponse
		}

		return next

	case ReceiveToken:
		msg, ok := s.Messages[act.MessageID]
		if !ok {
			return s
		}

		next := s
		next.Messages = cloneMessages(s.Messages)
		msg.Content += act.Chunk
		next.Messages[act.MessageID] = msg

		return next

	case ReplaceContent:
		msg, ok := s.Messages[act.MessageID]
		if !ok {
			return s
		}

		next := s
		next.Messages = cloneMessages(s.Messages)
		msg.Content = act.Content
		next.Messages[act.MessageID] = msg

		return next

	case SetReasoning:
		msg, ok := s.Messages[act.MessageID]
		if !ok {
			return s
		}

		next := s
		next.Messages = cloneMessages(s.Messages)
		msg.Reasoning = act.Reasoning
		next.Messages[act.MessageID] = msg

		return next

	case SetStatus:
		next := s
		next.Status = act.Status

		return next

	case StartToolCall:
		msg, ok := s.Messages[act.MessageID]
		if !ok {
			return s
		}

		next := s
		next.Messages = cloneMessages(s.Messages)

		calls := make([]ToolCall, 0, len(msg.ToolCalls)+1)
		calls = append(calls, msg.ToolCalls...)
		msg.ToolCalls = append(calls, act.ToolCall)
		next.Messages[act.MessageID] = msg

		next.Status = StatusExecutingTool
		next.ActiveToolCallID = act.ToolCall.ID

		return next

	case CompleteToolCall:
		msg, ok := s.Messages[act.MessageID]
		if !ok {
			return s
		}

		next := s
		next.Messages = cloneMessages(s.Messages)

		calls := make([]ToolCall, len(msg.ToolCalls))
		copy(calls, msg.ToolCalls)
		for i := range calls {
			if calls[i].ID == act.ToolCallID {
				calls[i].Status = ToolCallCompleted
			}
		}
		msg.ToolCalls = calls
		next.Messages[act.MessageID] = msg

		next.Status = StatusStreamingResponse
		next.ActiveToolCallID = ""

		return next

	case SetInquiry:
		msg, ok := s.Messages[act.MessageID]
		if !ok {
			return s
		}

		next := s
		next.Messages = cloneMessages(s.Messages)
		inquiry := act.Inquiry
		msg.Inquiry = &inquiry
		next.Messages[act.MessageID] = msg
		next.Status = StatusAwaitingInput

		return next

	case SubmitDecision:
		target := ""
		for _, msg := range s.Thread() {
			if msg.Inquiry != nil && msg.Inquiry.ID == act.InquiryID {
				target = msg.ID
				break
			}
		}
		if target == "" {
			return s
		}

		ts := act.Timestamp
		if ts.IsZero() {
			ts = time.Now()
		}

		next := s
		next.Messages = cloneMessages(s.Messages)
		msg := next.Messages[target]
		msg.Decision = &Decision{
			InquiryID: act.InquiryID,
			Value:     act.Value,
			UserID:    act.UserID,
			Timestamp: ts,
		}
		next.Messages[target] = msg
		next.Status = StatusThinking

		return next

	case NavigateBranch:
		if _, ok := s.Messages[act.LeafID]; !ok {
			return s
		}

		next := s
		next.CurrentLeafID = act.LeafID

		return next

	case SwitchAgent:
		next := s
		next.ActiveAgentID = act.AgentID

		return next

	case Clear:
		return NewConversationState(s.ActiveAgentID)

	case RestoreSession:
		next := NewConversationState(s.ActiveAgentID)
		if act.Session.AgentID != "" {
			next.ActiveAgentID = act.Session.AgentID
		}
		next.Messages = cloneMessages(act.Session.Messages)
		next.CurrentLeafID = act.Session.CurrentLeafID

		return next
	}

	return s
}

func cloneMessages(m map[string]Message) map[string]Message {
	out := make(map[string]Message, len(m)+1)
	for k, v := range m {
		out[k] = v
	}

	return out
}

// Store serializes reducer dispatches and hands out state snapshots. It is
// the only owner of the message map; components never mutate conversation
// state directly.
type Store struct {
	mu       sync.RWMutex
	state    ConversationState
	onChange func(ConversationState)
}

// NewStore creates a store seeded with the given state.
func NewStore(initial ConversationState) *Store {
	if initial.Messages == nil {
		initial.Messages = make(map[string]Message)
	}

	return &Store{state: initial}
}

// OnChange registers a listener invoked with the new state after every
// dispatch. Intended for UI subscriptions; the listener runs on the
// dispatching goroutine.
func (st *Store) OnChange(fn func(ConversationState)) {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.onChange = fn
}

// Dispatch applies an action through the reducer.
func (st *Store) Dispatch(a Action) {
	st.mu.Lock()
	st.state = Reduce(st.state, a)
	next := st.state
	fn := st.onChange
	st.mu.Unlock()

	if fn != nil {
		fn(next)
	}
}

// State returns the current state snapshot.
func (st *Store) State() ConversationState {
	st.mu.RLock()
	defer st.mu.RUnlock()

	return st.state
}

// Thread returns the active linear thread.
func (st *Store) Thread() []Message {
	return st.State().Thread()
}
