package agentloop

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies who produced a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ToolCallStatus tracks a tool call's lifecycle. The transition is
// pending -> completed exactly once, never reversed.
type ToolCallStatus string

const (
	ToolCallPending   ToolCallStatus = "pending"
	ToolCallCompleted ToolCallStatus = "completed"
)

// ToolCall records a tool invocation attached to an assistant message.
// Parameters holds the raw parameter string as streamed, not yet parsed.
type ToolCall struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Parameters string         `json:"parameters"`
	Status     ToolCallStatus `json:"status"`
}

// InquiryType is the kind of input a structured inquiry requests.
type InquiryType string

const (
	InquiryConfirmation InquiryType = "confirmation"
	InquirySelection    InquiryType = "selection"
	InquiryTextInput    InquiryType = "text_input"
)

// InquiryOption is one selectable answer for a selection inquiry.
type InquiryOption struct {
	Label string `json:"label"`
	Value any    `json:"value"`
	Style string `json:"style,omitempty"`
}

// StructuredInquiry is a model-issued request for explicit user input before
// the turn can continue.
type StructuredInquiry struct {
	ID           string          `json:"id"`
	Type         InquiryType     `json:"type"`
	Question     string          `json:"question"`
	Description  string          `json:"description,omitempty"`
	Options      []InquiryOption `json:"options,omitempty"`
	DefaultValue any             `json:"defaultValue,omitempty"`
}

// Decision is the user's recorded answer to a structured inquiry.
type Decision struct {
	InquiryID string    `json:"inquiryId"`
	Value     any       `json:"value"`
	UserID    string    `json:"userId"`
	Timestamp time.Time `json:"timestamp"`
}

// Message is a node in the conversation tree. ParentID is empty for a thread
// root; ChildrenIDs is append-only. Content grows while an assistant message
// streams.
type Message struct {
	ID          string   `json:"id"`
	Role        Role     `json:"role"`
	Content     string   `json:"content"`
	Timestamp   time.Time `json:"timestamp"`
	ParentID    string   `json:"parentId,omitempty"`
	ChildrenIDs []string `json:"childrenIds,omitempty"`

	// Assistant-only extras.
	Reasoning string             `json:"reasoning,omitempty"`
	ToolCalls []ToolCall         `json:"toolCalls,omitempty"`
	Inquiry   *StructuredInquiry `json:"structuredInquiry,omitempty"`
	Decision  *Decision          `json:"decision,omitempty"`
}

// NewMessage creates a message with a fresh ID and timestamp. parentID may be
// empty for a thread root.
func NewMessage(role Role, content, parentID string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
		ParentID:  parentID,
	}
}
