package agentloop

import (
	"encoding/json"
)

// PartType discriminates the display parts a parsed stream produces.
type PartType string

const (
	PartTypeText   PartType = "text"
	PartTypeWidget PartType = "widget"
)

// ContentPart is one ordered display unit of an assistant message: either a
// free-text span or an embedded widget configuration.
type ContentPart interface {
	PartType() PartType
}

// TextPart is a plain text span.
type TextPart struct {
	Content string `json:"content"`
}

func (TextPart) PartType() PartType { return PartTypeText }

// WidgetPart is a structurally extracted widget configuration.
type WidgetPart struct {
	Config WidgetConfig `json:"config"`

	// Raw is the JSON payload the config was decoded from, kept verbatim so
	// renderers can reach fields the typed config does not model.
	Raw json.RawMessage `json:"raw,omitempty"`
}

func (WidgetPart) PartType() PartType { return PartTypeWidget }

// Widget kinds the chat protocol emits. The Type field is an open string so
// unknown kinds pass through to the renderer untouched.
const (
	WidgetTypeBar          = "bar"
	WidgetTypeLine         = "line"
	WidgetTypePie          = "pie"
	WidgetTypeKPI          = "kpi"
	WidgetTypeTable        = "table"
	WidgetTypeMarkdown     = "markdown"
	WidgetTypeScatter      = "scatter"
	WidgetTypeCodeExecutor = "code-executor"
)

// WidgetConfig is the discriminated union (keyed by Type) describing an
// embedded widget. It carries the fields shared by the chart kinds plus the
// code-executor fields; kind-specific extras stay available via WidgetPart.Raw.
type WidgetConfig struct {
	Type        string `json:"type"`
	ID          string `json:"id,omitempty"`
	DataSource  string `json:"dataSource,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`

	// Chart mapping
	CategoryColumn string `json:"categoryColumn,omitempty"`
	ValueColumn    string `json:"valueColumn,omitempty"`
	Aggregation    string `json:"aggregation,omitempty"`

	// Markdown
	Content string `json:"content,omitempty"`

	// Code executor
	Language    string `json:"language,omitempty"`
	Code        string `json:"code,omitempty"`
	IsEditable  bool   `json:"isEditable,omitempty"`
	AutoExecute bool   `json:"autoExecute,omitempty"`

	GridWidth int `json:"gridWidth,omitempty"`
}

// decodeWidgetConfig parses a widget JSON payload. A payload without a type
// discriminator is rejected so garbage that happens to be valid JSON still
// degrades to text.
func decodeWidgetConfig(payload string) (WidgetConfig, bool) {
	var cfg WidgetConfig
	if err := json.Unmarshal([]byte(payload), &cfg); err != nil {
		return WidgetConfig{}, false
	}

	if cfg.Type == "" {
		return WidgetConfig{}, false
	}

	return cfg, true
}
