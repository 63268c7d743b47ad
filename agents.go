package agentloop

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// AgentCapabilities gates optional behaviors of an agent persona.
type AgentCapabilities struct {
	CanGenerateCharts bool `json:"canGenerateCharts" yaml:"can_generate_charts"`
	CanExecuteCode    bool `json:"canExecuteCode" yaml:"can_execute_code"`
	CanBrowseInternet bool `json:"canBrowseInternet" yaml:"can_browse_internet"`
}

// AgentStyle tunes the persona's response register.
type AgentStyle struct {
	Tone             string `json:"tone" yaml:"tone"`
	VerboseReasoning bool   `json:"verboseReasoning" yaml:"verbose_reasoning"`
}

// AgentDefinition is a declarative agent persona: its prompt, default tool
// set, and behavioral flags. Definitions are plain data so they can be
// loaded from YAML files as well as registered in code.
type AgentDefinition struct {
	ID            string            `json:"id" yaml:"id"`
	Name          string            `json:"name" yaml:"name"`
	Role          string            `json:"role" yaml:"role"`
	Description   string            `json:"description" yaml:"description"`
	SystemPrompt  string            `json:"systemPrompt" yaml:"system_prompt"`
	DefaultTools  []string          `json:"defaultTools" yaml:"default_tools"`
	Capabilities  AgentCapabilities `json:"capabilities" yaml:"capabilities"`
	Style         AgentStyle        `json:"style" yaml:"style"`
	SystemDefault bool              `json:"systemDefault" yaml:"system_default"`
}

// AgentRegistry holds the available agent personas.
type AgentRegistry struct {
	mu     sync.RWMutex
	agents map[string]AgentDefinition
}

// NewAgentRegistry builds a registry pre-populated with the given agents.
func NewAgentRegistry(agents ...AgentDefinition) (*AgentRegistry, error) {
	r := &AgentRegistry{agents: make(map[string]AgentDefinition, len(agents))}

	for _, agent := range agents {
		if err := r.Register(agent); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// Register adds or replaces an agent definition.
func (r *AgentRegistry) Register(agent AgentDefinition) error {
	if agent.ID == "" {
		return fmt.Errorf("agent id is required")
	}
	if agent.SystemPrompt == "" {
		return fmt.Errorf("agent %s: system prompt is required", agent.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.agents[agent.ID] = agent

	return nil
}

// Get returns an agent definition by ID.
func (r *AgentRegistry) Get(id string) (AgentDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	agent, ok := r.agents[id]

	return agent, ok
}

// Default returns the agent flagged as the system default, falling back to
// the first agent by ID order.
func (r *AgentRegistry) Default() (AgentDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var (
		fallback    AgentDefinition
		hasFallback bool
	)

	for _, id := range sortedIDs(r.agents) {
		agent := r.agents[id]
		if agent.SystemDefault {
			return agent, true
		}

		if !hasFallback {
			fallback = agent
			hasFallback = true
		}
	}

	return fallback, hasFallback
}

// List returns all agents sorted by ID.
func (r *AgentRegistry) List() []AgentDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]AgentDefinition, 0, len(r.agents))
	for _, id := range sortedIDs(r.agents) {
		out = append(out, r.agents[id])
	}

	return out
}

// LoadFile reads one or more agent definitions from a YAML file and
// registers them.
func (r *AgentRegistry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read agent file: %w", err)
	}

	var doc struct {
		Agents []AgentDefinition `yaml:"agents"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse agent file %s: %w", path, err)
	}

	for _, agent := range doc.Agents {
		if err := r.Register(agent); err != nil {
			return fmt.Errorf("agent file %s: %w", path, err)
		}
	}

	return nil
}

func sortedIDs(agents map[string]AgentDefinition) []string {
	ids := make([]string, 0, len(agents))
	for id := range agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return ids
}

// DefaultAgents returns the built-in personas.
func DefaultAgents() []AgentDefinition {
	return []AgentDefinition{
		{
			ID:           "data-analyst",
			Name:         "Data Analyst",
			Role:         "Senior Data Analyst",
			Description:  "Precise, numbers-driven analysis with visualization support.",
			SystemPrompt: "You are a senior data analyst. You answer questions with precise figures, cite the datasets you used, and prefer visualizing trends over describing them. When the user asks about data you have not seen, explore the catalog before answering.",
			DefaultTools: []string{"search_data", "list_catalogs", "list_schemas", "list_tables", "get_table_schema", "inspect_table", AskUserToolName},
			Capabilities: AgentCapabilities{
				CanGenerateCharts: true,
				CanExecuteCode:    true,
			},
			Style:         AgentStyle{Tone: "professional", VerboseReasoning: false},
			SystemDefault: true,
		},
		{
			ID:           "data-engineer",
			Name:         "Data Engineer",
			Role:         "Data Platform Engineer",
			Description:  "Schema-focused assistant for pipelines and table design.",
			SystemPrompt: "You are a data platform engineer. You focus on table schemas, data quality, and SQL correctness. Always inspect a table's schema before writing queries against it, and confirm with the user before proposing anything destructive.",
			DefaultTools: []string{"search_data", "list_catalogs", "list_schemas", "list_tables", "get_table_schema", "inspect_table", AskUserToolName},
			Capabilities: AgentCapabilities{
				CanGenerateCharts: false,
				CanExecuteCode:    true,
			},
			Style: AgentStyle{Tone: "technical", VerboseReasoning: true},
		},
		{
			ID:           "creative-explorer",
			Name:         "Creative Explorer",
			Role:         "Exploratory Analyst",
			Description:  "Curious, hypothesis-driven exploration of unfamiliar data.",
			SystemPrompt: "You are a curious exploratory analyst. You form hypotheses about the data, test them quickly, and surface surprising findings. Favor breadth over depth and suggest follow-up questions the user might not have considered.",
			DefaultTools: []string{"search_data", "list_catalogs", "list_tables", "inspect_table", AskUserToolName},
			Capabilities: AgentCapabilities{
				CanGenerateCharts: true,
			},
			Style: AgentStyle{Tone: "enthusiastic", VerboseReasoning: true},
		},
	}
}
