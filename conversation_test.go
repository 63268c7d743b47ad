package agentloop

import (
	"testing"
)

func TestAppendMessage_LinksParentAndMovesLeaf(t *testing.T) {
	s := NewConversationState("data-analyst")

	user := NewMessage(RoleUser, "hi", "")
	s = Reduce(s, AppendMessage{Message: user})

	assistant := NewMessage(RoleAssistant, "", user.ID)
	s = Reduce(s, AppendMessage{Message: assistant})

	if s.CurrentLeafID != assistant.ID {
		t.Errorf("leaf = %q, want %q", s.CurrentLeafID, assistant.ID)
	}

	parent := s.Messages[user.ID]
	if len(parent.ChildrenIDs) != 1 || parent.ChildrenIDs[0] != assistant.ID {
		t.Errorf("parent children = %v", parent.ChildrenIDs)
	}
}

func TestAppendMessage_StatusByRole(t *testing.T) {
	s := NewConversationState("a")

	s = Reduce(s, AppendMessage{Message: NewMessage(RoleUser, "q", "")})
	if s.Status != StatusThinking {
		t.Errorf("after user: status = %q", s.Status)
	}

	s = Reduce(s, AppendMessage{Message: NewMessage(RoleAssistant, "", s.CurrentLeafID)})
	if s.Status != StatusStreamingResponse {
		t.Errorf("after assistant: status = %q", s.Status)
	}

	s = Reduce(s, AppendMessage{Message: NewMessage(RoleSystem, "tool result", s.CurrentLeafID)})
	if s.Status != StatusStreamingResponse {
		t.Errorf("system message changed status to %q", s.Status)
	}
}

func TestThread_ChronologicalOrder(t *testing.T) {
	s := NewConversationState("a")

	ids := make([]string, 0, 4)
	parent := ""
	for _, content := range []string{"one", "two", "three", "four"} {
		msg := NewMessage(RoleUser, content, parent)
		s = Reduce(s, AppendMessage{Message: msg})
		ids = append(ids, msg.ID)
		parent = msg.ID
	}

	thread := s.Thread()
	if len(thread) != 4 {
		t.Fatalf("thread length = %d", len(thread))
	}
	for i, msg := range thread {
		if msg.ID != ids[i] {
			t.Errorf("thread[%d] = %s, want %s", i, msg.ID, ids[i])
		}
	}
}

// Walking parentID from the leaf must terminate at a parentless root within
// the map size, after any sequence of actions.
func TestTreeAcyclicity(t *testing.T) {
	s := NewConversationState("a")

	u1 := NewMessage(RoleUser, "first", "")
	s = Reduce(s, AppendMessage{Message: u1})
	a1 := NewMessage(RoleAssistant, "reply", u1.ID)
	s = Reduce(s, AppendMessage{Message: a1})

	// Sibling branch off the same root.
	u2 := NewMessage(RoleUser, "edited", u1.ParentID)
	s = Reduce(s, AppendMessage{Message: u2})

	s = Reduce(s, NavigateBranch{LeafID: a1.ID})
	s = Reduce(s, AppendMessage{Message: NewMessage(RoleUser, "followup", a1.ID)})

	steps := 0
	id := s.CurrentLeafID
	for id != "" {
		if steps > len(s.Messages) {
			t.Fatalf("parent walk exceeded %d steps", len(s.Messages))
		}

		msg, ok := s.Messages[id]
		if !ok {
			t.Fatalf("walk reached unknown message %q", id)
		}

		id = msg.ParentID
		steps++
	}
}

func TestBranchIsolation_EditPreservesOriginal(t *testing.T) {
	s := NewConversationState("a")

	original := NewMessage(RoleUser, "original question", "")
	s = Reduce(s, AppendMessage{Message: original})
	reply := NewMessage(RoleAssistant, "original answer", original.ID)
	s = Reduce(s, AppendMessage{Message: reply})

	// Editing creates a sibling sharing the original's parent.
	edited := NewMessage(RoleUser, "edited question", original.ParentID)
	s = Reduce(s, AppendMessage{Message: edited})

	if got := s.Messages[original.ID].Content; got != "original question" {
		t.Errorf("original mutated: %q", got)
	}

	// The original branch stays reachable.
	s = Reduce(s, NavigateBranch{LeafID: reply.ID})
	thread := s.Thread()
	if len(thread) != 2 || thread[0].ID != original.ID || thread[1].ID != reply.ID {
		t.Errorf("original branch not reachable: %v", thread)
	}
}

func TestReceiveToken_AppendsAndIgnoresUnknown(t *testing.T) {
	s := NewConversationState("a")

	msg := NewMessage(RoleAssistant, "Hel", "")
	s = Reduce(s, AppendMessage{Message: msg})
	s = Reduce(s, ReceiveToken{MessageID: msg.ID, Chunk: "lo"})

	if got := s.Messages[msg.ID].Content; got != "Hello" {
		t.Errorf("content = %q", got)
	}

	before := s
	after := Reduce(s, ReceiveToken{MessageID: "no-such-id", Chunk: "x"})
	if len(after.Messages) != len(before.Messages) {
		t.Error("unknown message ID should be a no-op")
	}
}

func TestReduce_DoesNotMutateInput(t *testing.T) {
	s := NewConversationState("a")
	msg := NewMessage(RoleAssistant, "start", "")
	s = Reduce(s, AppendMessage{Message: msg})

	_ = Reduce(s, ReplaceContent{MessageID: msg.ID, Content: "changed"})

	if got := s.Messages[msg.ID].Content; got != "start" {
		t.Errorf("input state mutated: %q", got)
	}
}

func TestToolCallLifecycle(t *testing.T) {
	s := NewConversationState("a")
	msg := NewMessage(RoleAssistant, "", "")
	s = Reduce(s, AppendMessage{Message: msg})

	call := ToolCall{ID: "tc-1", Name: "search_data", Status: ToolCallPending}
	s = Reduce(s, StartToolCall{MessageID: msg.ID, ToolCall: call})

	if s.Status != StatusExecutingTool {
		t.Errorf("status = %q, want executing_tool", s.Status)
	}
	if s.ActiveToolCallID != "tc-1" {
		t.Errorf("active tool call = %q", s.ActiveToolCallID)
	}

	s = Reduce(s, CompleteToolCall{MessageID: msg.ID, ToolCallID: "tc-1"})

	if s.Status != StatusStreamingResponse {
		t.Errorf("status = %q, want streaming_response", s.Status)
	}
	if s.ActiveToolCallID != "" {
		t.Errorf("active tool call not cleared: %q", s.ActiveToolCallID)
	}
	if got := s.Messages[msg.ID].ToolCalls[0].Status; got != ToolCallCompleted {
		t.Errorf("tool call status = %q", got)
	}
}

func TestSubmitDecision(t *testing.T) {
	s := NewConversationState("a")
	msg := NewMessage(RoleAssistant, "confirm?", "")
	s = Reduce(s, AppendMessage{Message: msg})
	s = Reduce(s, SetInquiry{MessageID: msg.ID, Inquiry: StructuredInquiry{
		ID:       "inq-1",
		Type:     InquiryConfirmation,
		Question: "Proceed?",
	}})

	if s.Status != StatusAwaitingInput {
		t.Fatalf("status = %q, want awaiting_input", s.Status)
	}

	s = Reduce(s, SubmitDecision{InquiryID: "inq-1", Value: true, UserID: "u1"})

	decided := s.Messages[msg.ID]
	if decided.Decision == nil {
		t.Fatal("decision not recorded")
	}
	if decided.Decision.Value != true || decided.Decision.UserID != "u1" {
		t.Errorf("decision = %#v", decided.Decision)
	}
	if s.Status != StatusThinking {
		t.Errorf("status = %q, want thinking", s.Status)
	}

	// Unknown inquiry IDs are a no-op.
	unchanged := Reduce(s, SubmitDecision{InquiryID: "nope", Value: 1})
	if unchanged.Status != s.Status {
		t.Error("unknown inquiry should not change state")
	}
}

func TestNavigateBranch_UnknownIgnored(t *testing.T) {
	s := NewConversationState("a")
	msg := NewMessage(RoleUser, "hi", "")
	s = Reduce(s, AppendMessage{Message: msg})

	s = Reduce(s, NavigateBranch{LeafID: "missing"})
	if s.CurrentLeafID != msg.ID {
		t.Errorf("leaf moved to %q", s.CurrentLeafID)
	}
}

func TestClear_KeepsAgent(t *testing.T) {
	s := NewConversationState("data-engineer")
	s = Reduce(s, AppendMessage{Message: NewMessage(RoleUser, "hi", "")})

	s = Reduce(s, Clear{})

	if len(s.Messages) != 0 || s.CurrentLeafID != "" {
		t.Error("clear did not empty the tree")
	}
	if s.ActiveAgentID != "data-engineer" {
		t.Errorf("agent = %q", s.ActiveAgentID)
	}
	if s.Status != StatusIdle {
		t.Errorf("status = %q", s.Status)
	}
}

func TestRestoreSession(t *testing.T) {
	s := NewConversationState("a")
	msg := NewMessage(RoleUser, "restored", "")

	session := Session{
		ID:            "sess-1",
		AgentID:       "creative-explorer",
		Messages:      map[string]Message{msg.ID: msg},
		CurrentLeafID: msg.ID,
	}

	s = Reduce(s, RestoreSession{Session: session})

	if s.ActiveAgentID != "creative-explorer" {
		t.Errorf("agent = %q", s.ActiveAgentID)
	}
	if s.CurrentLeafID != msg.ID {
		t.Errorf("leaf = %q", s.CurrentLeafID)
	}
	if s.Messages[msg.ID].Content != "restored" {
		t.Error("messages not restored")
	}
}

func TestStore_DispatchNotifiesListener(t *testing.T) {
	store := NewStore(NewConversationState("a"))

	var seen []Status
	store.OnChange(func(state ConversationState) {
		seen = append(seen, state.Status)
	})

	store.Dispatch(AppendMessage{Message: NewMessage(RoleUser, "hi", "")})
	store.Dispatch(SetStatus{Status: StatusIdle})

	if len(seen) != 2 || seen[0] != StatusThinking || seen[1] != StatusIdle {
		t.Errorf("listener saw %v", seen)
	}
}
