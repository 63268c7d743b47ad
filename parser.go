package agentloop

import (
	"fmt"
	"strings"
)

// Command is a fully closed tool invocation extracted from the stream.
// Params is the raw parameter string; the tool registry parses it as JSON at
// execution time.
type Command struct {
	Tool   string `json:"tool"`
	Params string `json:"params"`
}

// ParsedStream is the derived view of one assistant message's accumulated
// text: ordered display parts, the last reasoning span, and the last fully
// closed command. It is recomputed from scratch after every chunk.
type ParsedStream struct {
	Parts   []ContentPart
	Thought string
	Command *Command
}

// Parser separates an LLM text stream into interleaved reasoning, tool
// commands, and embedded widget blocks. Parse is a pure function of the
// accumulated text, so it can be re-run after every chunk without state;
// incomplete markers buffer silently and are never shown as raw syntax.
type Parser struct {
	widgetStart string
	widgetEnd   string
}

// NewParser creates a parser using the default widget tokens.
func NewParser() *Parser {
	return &Parser{
		widgetStart: WidgetStartToken,
		widgetEnd:   WidgetEndToken,
	}
}

// NewParserWithTokens creates a parser with custom widget delimiters, for
// prompts that define their own token pair.
func NewParserWithTokens(start, end string) *Parser {
	return &Parser{widgetStart: start, widgetEnd: end}
}

type markerKind int

const (
	markerThought markerKind = iota
	markerCommand
	markerWidgetToken
	markerWidgetTag
	markerSQLFence
)

type markerHit struct {
	kind   markerKind
	offset int
}

// Parse scans content left to right and returns the parsed structure.
// Same input always yields the same output.
func (p *Parser) Parse(content string) ParsedStream {
	result := ParsedStream{}

	// The pause token cuts the stream; nothing after it is meaningful.
	if idx := strings.Index(content, PauseToken); idx >= 0 {
		content = content[:idx]
	}

	cursor := 0
	length := len(content)

	for cursor < length {
		remaining := content[cursor:]

		hit, ok := p.nextMarker(remaining)
		if !ok {
			// No more markers; the rest is text.
			result.Parts = append(result.Parts, TextPart{Content: remaining})
			break
		}

		// Text preceding the marker is emitted as-is, whitespace included.
		if hit.offset > 0 {
			result.Parts = append(result.Parts, TextPart{Content: remaining[:hit.offset]})
		}

		cursor += hit.offset
		current := content[cursor:]

		switch hit.kind {
		case markerThought:
			consumed, thought, done := parseThought(current)
			result.Thought = thought
			if !done {
				return result
			}
			cursor += consumed

		case markerCommand:
			consumed, cmd, done := parseCommand(current)
			if !done {
				// Incomplete command: never leaks as visible text.
				return result
			}
			if cmd != nil {
				// Last fully closed command wins.
				result.Command = cmd
			}
			cursor += consumed

		case markerWidgetToken:
			consumed, part, done := p.parseWidgetBlock(current, p.widgetStart, p.widgetEnd, true)
			if !done {
				return result
			}
			result.Parts = append(result.Parts, part)
			cursor += consumed

		case markerWidgetTag:
			consumed, part, done := p.parseWidgetBlock(current, WidgetTagOpen, WidgetTagClose, false)
			if !done {
				return result
			}
			result.Parts = append(result.Parts, part)
			cursor += consumed

		case markerSQLFence:
			consumed, part, done := parseSQLFence(current, cursor, len(result.Parts))
			result.Parts = append(result.Parts, part)
			if !done {
				return result
			}
			cursor += consumed
		}
	}

	return result
}

// nextMarker finds the earliest recognized marker in the remaining text.
// Ties cannot occur since the markers are textually distinct.
func (p *Parser) nextMarker(remaining string) (markerHit, bool) {
	best := markerHit{offset: -1}

	consider := func(kind markerKind, offset int) {
		if offset < 0 {
			return
		}
		if best.offset < 0 || offset < best.offset {
			best = markerHit{kind: kind, offset: offset}
		}
	}

	consider(markerThought, strings.Index(remaining, ThoughtOpenMarker))

	if loc := commandOpenRe.FindStringIndex(remaining); loc != nil {
		consider(markerCommand, loc[0])
	}

	consider(markerWidgetToken, strings.Index(remaining, p.widgetStart))
	consider(markerWidgetTag, strings.Index(remaining, WidgetTagOpen))

	if loc := sqlFenceOpenRe.FindStringIndex(remaining); loc != nil {
		consider(markerSQLFence, loc[0])
	}

	if best.offset < 0 {
		return markerHit{}, false
	}

	return best, true
}

// parseThought handles a reasoning span starting at the beginning of text.
// A missing close marker still records the partial interior so reasoning is
// visible while the stream is arriving, but stops the scan.
func parseThought(text string) (consumed int, thought string, done bool) {
	interior := text[len(ThoughtOpenMarker):]

	end := strings.Index(interior, ThoughtCloseMarker)
	if end < 0 {
		return 0, strings.TrimSpace(interior), false
	}

	consumed = len(ThoughtOpenMarker) + end + len(ThoughtCloseMarker)

	return consumed, strings.TrimSpace(interior[:end]), true
}

// parseCommand handles a command tag starting at the beginning of text.
func parseCommand(text string) (consumed int, cmd *Command, done bool) {
	m := commandOpenRe.FindStringSubmatchIndex(text)
	if m == nil || m[0] != 0 {
		// The open tag matched during marker search, so this should not
		// happen. Skip one byte so the scan cannot loop forever.
		return 1, nil, true
	}

	openLen := m[1]
	tool := text[m[2]:m[3]]

	end := strings.Index(text, CommandCloseMarker)
	if end < 0 {
		return 0, nil, false
	}

	params := strings.TrimSpace(text[openLen:end])

	return end + len(CommandCloseMarker), &Command{Tool: tool, Params: params}, true
}

// parseWidgetBlock handles a widget span delimited by the given token pair.
// Malformed JSON degrades to a raw text part covering the whole span,
// delimiters included, so the user sees exactly what was received.
func (p *Parser) parseWidgetBlock(text, open, closeTok string, stripFence bool) (consumed int, part ContentPart, done bool) {
	interior := text[len(open):]

	end := strings.Index(interior, closeTok)
	if end < 0 {
		return 0, nil, false
	}

	consumed = len(open) + end + len(closeTok)

	payload := strings.TrimSpace(interior[:end])
	if stripFence {
		payload = trimCodeFence(payload)
	}

	cfg, ok := decodeWidgetConfig(payload)
	if !ok {
		return consumed, TextPart{Content: text[:consumed]}, true
	}

	return consumed, WidgetPart{Config: cfg, Raw: []byte(payload)}, true
}

// parseSQLFence promotes a fenced SQL block into an editable, non-auto-run
// code-executor widget. An unclosed fence stays visible as text so partial
// code renders while streaming, then the scan stops.
func parseSQLFence(text string, absOffset, partIndex int) (consumed int, part ContentPart, done bool) {
	m := sqlFenceOpenRe.FindStringIndex(text)
	if m == nil || m[0] != 0 {
		return 0, TextPart{Content: text}, false
	}

	openLen := m[1]

	end := strings.Index(text[openLen:], "```")
	if end < 0 {
		return 0, TextPart{Content: text}, false
	}

	code := strings.TrimSpace(text[openLen : openLen+end])

	cfg := WidgetConfig{
		Type: WidgetTypeCodeExecutor,
		// Position-derived identity stays stable across re-parses of the
		// same stream.
		ID:          fmt.Sprintf("code-%d-%d", absOffset, partIndex),
		DataSource:  "warehouse",
		Title:       "Generated SQL",
		Description: "Review and execute this query",
		Language:    "sql",
		Code:        code,
		IsEditable:  true,
		AutoExecute: false,
		GridWidth:   12,
	}

	return openLen + end + 3, WidgetPart{Config: cfg}, true
}
