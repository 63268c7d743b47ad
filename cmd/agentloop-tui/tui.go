package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	logger "github.com/xraph/go-utils/log"
	"github.com/xraph/go-utils/metrics"

	"github.com/xraph/agentloop"
)

var (
	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	agentStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	thoughtStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
	widgetStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Border(lipgloss.RoundedBorder()).Padding(0, 1)
	toolStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	inquiryStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Border(lipgloss.NormalBorder(), false, false, false, true).PaddingLeft(1)
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	statusBarStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

type stateChangedMsg struct{ state agentloop.ConversationState }

type turnDoneMsg struct {
	result *agentloop.TurnResult
	err    error
}

type tuiModel struct {
	store      *agentloop.Store
	controller *agentloop.TurnController
	agents     *agentloop.AgentRegistry
	parser     *agentloop.Parser

	ctx      context.Context
	input    textinput.Model
	view     viewport.Model
	spin     spinner.Model
	ready    bool
	state    agentloop.ConversationState
	turnBusy bool
	lastErr  error
}

func runTUI(
	ctx context.Context,
	store *agentloop.Store,
	controller *agentloop.TurnController,
	agents *agentloop.AgentRegistry,
	sessions agentloop.SessionStore,
	log logger.Logger,
	mets metrics.Metrics,
) error {
	var program *tea.Program

	_, err := agentloop.NewSessionManager(agentloop.SessionManagerConfig{
		Store:    store,
		Sessions: sessions,
		Logger:   log,
		Metrics:  mets,
		Notify: func(state agentloop.ConversationState) {
			if program != nil {
				program.Send(stateChangedMsg{state: state})
			}
		},
	})
	if err != nil {
		return err
	}

	input := textinput.New()
	input.Placeholder = "Ask about your data..."
	input.Focus()
	input.CharLimit = 2000

	spin := spinner.New(spinner.WithSpinner(spinner.Dot))

	model := tuiModel{
		store:      store,
		controller: controller,
		agents:     agents,
		parser:     agentloop.NewParser(),
		ctx:        ctx,
		input:      input,
		spin:       spin,
		state:      store.State(),
	}

	program = tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	_, err = program.Run()

	return err
}

func (m tuiModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spin.Tick)
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.view = viewport.New(msg.Width, msg.Height-4)
			m.ready = true
		} else {
			m.view.Width = msg.Width
			m.view.Height = msg.Height - 4
		}
		m.refresh()

		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.controller.Stop()

			return m, tea.Quit

		case "esc":
			if m.turnBusy {
				m.controller.Stop()
			}

			return m, nil

		case "ctrl+a":
			if !m.turnBusy {
				m.store.Dispatch(agentloop.SwitchAgent{AgentID: m.nextAgentID()})
			}

			return m, nil

		case "enter":
			return m.handleSubmit()
		}

	case stateChangedMsg:
		m.state = msg.state
		m.refresh()
		m.view.GotoBottom()

		return m, nil

	case turnDoneMsg:
		m.turnBusy = false
		m.lastErr = msg.err
		m.refresh()

		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)

		return m, cmd
	}

	var cmds []tea.Cmd

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)

	m.view, cmd = m.view.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m tuiModel) handleSubmit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" || m.turnBusy {
		return m, nil
	}

	m.input.SetValue("")

	// A pending inquiry consumes the input as its answer.
	if inquiry := m.pendingInquiry(); inquiry != nil {
		value := inquiryValue(inquiry, text)
		m.turnBusy = true

		return m, m.runTurn(func() (*agentloop.TurnResult, error) {
			return m.controller.SubmitDecision(m.ctx, inquiry.ID, value)
		})
	}

	m.turnBusy = true

	return m, m.runTurn(func() (*agentloop.TurnResult, error) {
		return m.controller.SendMessage(m.ctx, text)
	})
}

// nextAgentID cycles through the registered agents.
func (m tuiModel) nextAgentID() string {
	agents := m.agents.List()
	current := m.store.State().ActiveAgentID

	for i, agent := range agents {
		if agent.ID == current {
			return agents[(i+1)%len(agents)].ID
		}
	}

	if len(agents) > 0 {
		return agents[0].ID
	}

	return current
}

func (m tuiModel) runTurn(fn func() (*agentloop.TurnResult, error)) tea.Cmd {
	return func() tea.Msg {
		result, err := fn()

		return turnDoneMsg{result: result, err: err}
	}
}

// pendingInquiry returns the unanswered inquiry on the current leaf, if any.
func (m tuiModel) pendingInquiry() *agentloop.StructuredInquiry {
	if m.state.Status != agentloop.StatusAwaitingInput {
		return nil
	}

	for _, msg := range m.store.Thread() {
		if msg.Inquiry != nil && msg.Decision == nil {
			return msg.Inquiry
		}
	}

	return nil
}

// inquiryValue maps typed input onto the inquiry's options: a bare number
// selects that option, anything else is passed through as text.
func inquiryValue(inquiry *agentloop.StructuredInquiry, text string) any {
	if n, err := strconv.Atoi(text); err == nil && n >= 1 && n <= len(inquiry.Options) {
		return inquiry.Options[n-1].Value
	}

	switch strings.ToLower(text) {
	case "y", "yes":
		return true
	case "n", "no":
		return false
	}

	return text
}

func (m *tuiModel) refresh() {
	if !m.ready {
		return
	}

	m.view.SetContent(m.renderThread())
}

func (m tuiModel) renderThread() string {
	var b strings.Builder

	for _, msg := range m.store.Thread() {
		switch msg.Role {
		case agentloop.RoleUser:
			b.WriteString(userStyle.Render("You"))
			b.WriteString("\n")
			b.WriteString(msg.Content)
			b.WriteString("\n\n")

		case agentloop.RoleAssistant:
			b.WriteString(agentStyle.Render("Agent"))
			b.WriteString("\n")
			b.WriteString(m.renderAssistant(msg))
			b.WriteString("\n")
		}
		// System messages carry tool plumbing and stay hidden.
	}

	if m.lastErr != nil {
		b.WriteString(errorStyle.Render("error: " + m.lastErr.Error()))
		b.WriteString("\n")
	}

	return b.String()
}

func (m tuiModel) renderAssistant(msg agentloop.Message) string {
	var b strings.Builder

	if msg.Reasoning != "" {
		b.WriteString(thoughtStyle.Render("thinking: " + msg.Reasoning))
		b.WriteString("\n")
	}

	for _, call := range msg.ToolCalls {
		label := fmt.Sprintf("tool %s [%s]", call.Name, call.Status)
		b.WriteString(toolStyle.Render(label))
		b.WriteString("\n")
	}

	parsed := m.parser.Parse(msg.Content)
	for _, part := range parsed.Parts {
		switch p := part.(type) {
		case agentloop.TextPart:
			b.WriteString(p.Content)
		case agentloop.WidgetPart:
			b.WriteString("\n")
			b.WriteString(widgetStyle.Render(describeWidget(p.Config)))
			b.WriteString("\n")
		}
	}
	b.WriteString("\n")

	if msg.Inquiry != nil {
		b.WriteString(renderInquiry(msg))
	}

	return b.String()
}

func describeWidget(cfg agentloop.WidgetConfig) string {
	switch cfg.Type {
	case agentloop.WidgetTypeCodeExecutor:
		return fmt.Sprintf("%s (%s)\n%s", cfg.Title, cfg.Language, cfg.Code)
	default:
		return fmt.Sprintf("%s widget: %s (source: %s)", cfg.Type, cfg.Title, cfg.DataSource)
	}
}

func renderInquiry(msg agentloop.Message) string {
	var b strings.Builder

	b.WriteString(inquiryStyle.Render(msg.Inquiry.Question))
	b.WriteString("\n")

	for i, opt := range msg.Inquiry.Options {
		b.WriteString(fmt.Sprintf("  %d. %s\n", i+1, opt.Label))
	}

	if msg.Decision != nil {
		b.WriteString(fmt.Sprintf("  answered: %v\n", msg.Decision.Value))
	} else {
		b.WriteString("  (type a number or an answer and press enter)\n")
	}

	return b.String()
}

func (m tuiModel) View() string {
	if !m.ready {
		return "loading..."
	}

	status := string(m.state.Status) + "  agent: " + m.state.ActiveAgentID
	if m.turnBusy {
		status = m.spin.View() + " " + status + "  (esc to stop)"
	}

	return m.view.View() + "\n" +
		statusBarStyle.Render(status) + "\n" +
		m.input.View()
}
