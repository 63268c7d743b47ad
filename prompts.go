package agentloop

import (
	"encoding/json"
	"strings"

	"github.com/xraph/agentloop/internal/prompt"
)

// protocolInstructions teaches the model the streamed-response protocol the
// parser understands. Rendered with the pause token so the constant stays
// the single source of truth.
const protocolInstructions = `## Response Protocol

You must structure every response using the following protocol:

1. **Reasoning**: Wrap your private reasoning in <thought>...</thought>. The user sees it as a collapsible "thinking" section, so keep it concise.

2. **Tool calls**: To use a tool, emit exactly one <command tool="TOOL_NAME">JSON_PARAMETERS</command> block, then stop your response with {{.pause}} on its own. The tool result arrives as a system message and you will be asked to continue. Never fabricate a tool result.

3. **Asking the user**: To ask the user a question mid-task, call the ask_user tool with a JSON body of the form {"type": "confirmation"|"selection"|"text_input", "question": "...", "options": [...]}. The conversation pauses until the user answers.

4. **Widgets**: To render a chart, table, or KPI, emit a widget block:
%%%WIDGET_START%%%
{"type": "bar", "id": "...", "dataSource": "...", "title": "...", "categoryColumn": "...", "valueColumn": "...", "aggregation": "sum"}
%%%WIDGET_END%%%
Valid types: bar, line, pie, scatter, kpi, table, markdown, code-executor.

5. **SQL**: Fenced sql code blocks are rendered as an editable query editor the user can run. Use them for queries you want the user to review before execution.

6. Everything outside these blocks is rendered as markdown prose.`

// BuildSystemPrompt assembles the full system prompt for an agent: persona
// prompt, protocol instructions, and the tool manifest.
func BuildSystemPrompt(agent AgentDefinition, tools []Tool) string {
	var b strings.Builder

	b.WriteString(strings.TrimSpace(agent.SystemPrompt))
	b.WriteString("\n\n")
	b.WriteString(prompt.Render(protocolInstructions, map[string]any{
		"pause": PauseToken,
	}))

	if manifest := toolManifest(tools); manifest != "" {
		b.WriteString("\n")
		b.WriteString(prompt.Section("Available Tools", manifest))
	}

	if !agent.Capabilities.CanGenerateCharts {
		b.WriteString("\nDo not emit chart widgets; present results as tables or prose.\n")
	}

	return b.String()
}

func toolManifest(tools []Tool) string {
	if len(tools) == 0 {
		return ""
	}

	items := make(map[string]string, len(tools))
	for _, tool := range tools {
		desc := tool.Description
		if schema, err := json.Marshal(tool.Parameters); err == nil && len(tool.Parameters) > 0 {
			desc += " Parameters: " + string(schema)
		}
		items[tool.Name] = desc
	}

	return prompt.BulletList(items)
}
