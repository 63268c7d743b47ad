package agentloop

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultAgents_HaveRequiredFields(t *testing.T) {
	registry, err := NewAgentRegistry(DefaultAgents()...)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}

	for _, agent := range registry.List() {
		if agent.ID == "" || agent.Name == "" || agent.SystemPrompt == "" {
			t.Errorf("agent %+v missing required fields", agent)
		}
	}

	def, ok := registry.Default()
	if !ok {
		t.Fatal("no default agent")
	}
	if !def.SystemDefault {
		t.Errorf("default agent %q not flagged as system default", def.ID)
	}
}

func TestAgentRegistry_RejectsInvalid(t *testing.T) {
	registry, err := NewAgentRegistry()
	if err != nil {
		t.Fatalf("registry: %v", err)
	}

	if err := registry.Register(AgentDefinition{Name: "no id", SystemPrompt: "p"}); err == nil {
		t.Error("expected error for missing ID")
	}
	if err := registry.Register(AgentDefinition{ID: "x"}); err == nil {
		t.Error("expected error for missing system prompt")
	}
}

func TestAgentRegistry_LoadFile(t *testing.T) {
	content := `agents:
  - id: sql-tutor
    name: SQL Tutor
    role: Teaching Assistant
    system_prompt: You teach SQL by example.
    default_tools:
      - search_data
    capabilities:
      can_execute_code: true
    style:
      tone: friendly
`

	path := filepath.Join(t.TempDir(), "agents.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	registry, err := NewAgentRegistry(DefaultAgents()...)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}

	if err := registry.LoadFile(path); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	agent, ok := registry.Get("sql-tutor")
	if !ok {
		t.Fatal("loaded agent not found")
	}
	if agent.Name != "SQL Tutor" || !agent.Capabilities.CanExecuteCode {
		t.Errorf("agent = %+v", agent)
	}
	if agent.Style.Tone != "friendly" {
		t.Errorf("tone = %q", agent.Style.Tone)
	}
}

func TestBuildSystemPrompt_IncludesProtocolAndTools(t *testing.T) {
	agent := DefaultAgents()[0]

	tools := []Tool{{
		Name:        "search_data",
		Description: "Search data.",
		Parameters:  map[string]any{"type": "object"},
	}}

	prompt := BuildSystemPrompt(agent, tools)

	for _, want := range []string{
		agent.SystemPrompt,
		"<thought>",
		PauseToken,
		"search_data",
		WidgetStartToken,
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}
