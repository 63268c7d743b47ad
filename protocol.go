package agentloop

import (
	"regexp"
	"strings"
)

// Wire-format markers the model embeds in its streamed text. The parser
// extracts thought and command spans structurally and treats the pause
// token as end of input; the turn controller additionally checks the raw
// accumulated text for it to cut the stream early.
const (
	ThoughtOpenMarker  = "<thought>"
	ThoughtCloseMarker = "</thought>"

	CommandCloseMarker = "</command>"

	// WidgetStartToken and WidgetEndToken delimit an embedded widget
	// configuration (JSON) inside free text.
	WidgetStartToken = "%%%WIDGET_START%%%"
	WidgetEndToken   = "%%%WIDGET_END%%%"

	// Legacy tag form kept for backward compatibility with older prompts.
	WidgetTagOpen  = "<widget>"
	WidgetTagClose = "</widget>"

	// PauseToken signals the model wants to stop generating and wait for a
	// tool result. Emitted immediately after a command.
	PauseToken = "<<<WAIT>>>"
)

var (
	// commandOpenRe matches the command open tag and captures the tool name.
	commandOpenRe = regexp.MustCompile(`<command\s+tool="([^"]+)">`)

	// sqlFenceOpenRe matches the start of a fenced SQL code block. The
	// trailing whitespace requirement keeps a bare "```sql" suffix (still
	// streaming) from being consumed early.
	sqlFenceOpenRe = regexp.MustCompile("```sql\\s")

	// codeFenceTrimRe strips an optional markdown fence wrapping widget JSON,
	// which some models add despite instructions.
	codeFenceTrimRe = regexp.MustCompile("(?i)^```[a-z]*\\s*")
)

// ContainsPause reports whether the accumulated stream text carries the
// cooperative pause token.
func ContainsPause(text string) bool {
	return strings.Contains(text, PauseToken)
}

// StripPause removes every pause token from text and trims surrounding
// whitespace. Finalized assistant messages are stored pause-free so the
// token never leaks back into model context on the next round.
func StripPause(text string) string {
	return strings.TrimSpace(strings.ReplaceAll(text, PauseToken, ""))
}

// trimCodeFence removes a wrapping markdown fence from a widget JSON payload.
func trimCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = codeFenceTrimRe.ReplaceAllString(s, "")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")

	return strings.TrimSpace(s)
}
