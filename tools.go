package agentloop

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	logger "github.com/xraph/go-utils/log"
	"github.com/xraph/go-utils/metrics"
)

// AskUserToolName is the special tool that pauses the turn for user input
// instead of executing in the background.
const AskUserToolName = "ask_user"

// ToolResultStatus classifies a tool execution outcome.
type ToolResultStatus string

const (
	ToolResultSuccess ToolResultStatus = "success"
	ToolResultError   ToolResultStatus = "error"
	ToolResultPending ToolResultStatus = "pending"
)

// ToolResult is the structured outcome fed back into the conversation as a
// system message. Failures are data, not Go errors, so the model can react
// to them.
type ToolResult struct {
	Status  ToolResultStatus `json:"status"`
	Data    any              `json:"data,omitempty"`
	Summary string           `json:"summary,omitempty"`
	Error   string           `json:"error,omitempty"`
}

// ToolHandler executes one tool call with already-decoded parameters.
type ToolHandler func(ctx context.Context, params map[string]any) (ToolResult, error)

// Tool is one registered agent tool: its calling schema plus its handler.
type Tool struct {
	Name        string
	Description string

	// Parameters is a JSON-schema-shaped description used for prompt
	// assembly; it is not validated against at execution time.
	Parameters map[string]any

	Handler ToolHandler
}

// ToolRegistry is an immutable name -> Tool lookup table, constructed
// explicitly and injected into the turn controller.
type ToolRegistry struct {
	tools   map[string]Tool
	logger  logger.Logger
	metrics metrics.Metrics
}

// ToolRegistryConfig configures a tool registry.
type ToolRegistryConfig struct {
	Logger  logger.Logger
	Metrics metrics.Metrics
}

// NewToolRegistry builds a registry from the given tools. Duplicate names
// are rejected.
func NewToolRegistry(cfg ToolRegistryConfig, tools ...Tool) (*ToolRegistry, error) {
	byName := make(map[string]Tool, len(tools))

	for _, tool := range tools {
		if tool.Name == "" {
			return nil, fmt.Errorf("tool name is required")
		}
		if _, exists := byName[tool.Name]; exists {
			return nil, fmt.Errorf("duplicate tool %q", tool.Name)
		}

		byName[tool.Name] = tool
	}

	return &ToolRegistry{
		tools:   byName,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}, nil
}

// Get returns a tool by name.
func (r *ToolRegistry) Get(name string) (Tool, bool) {
	tool, ok := r.tools[name]

	return tool, ok
}

// Names returns the registered tool names.
func (r *ToolRegistry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}

	return names
}

// Definitions returns the registered tools without handlers, for prompt
// assembly.
func (r *ToolRegistry) Definitions() []Tool {
	defs := make([]Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		tool.Handler = nil
		defs = append(defs, tool)
	}

	return defs
}

// Execute decodes rawParams as JSON and runs the named tool. It never
// returns a Go error: unknown tools, malformed parameters, handler errors,
// and handler panics all come back as error-status results.
func (r *ToolRegistry) Execute(ctx context.Context, name, rawParams string) (result ToolResult) {
	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			result = ToolResult{
				Status: ToolResultError,
				Error:  fmt.Sprintf("tool %s panicked: %v", name, rec),
			}
		}

		if r.metrics != nil {
			r.metrics.Counter("agentloop.tools.executions",
				metrics.WithLabel("tool", name),
				metrics.WithLabel("status", string(result.Status)),
			).Inc()
			r.metrics.Histogram("agentloop.tools.duration").Observe(time.Since(start).Seconds())
		}
	}()

	tool, ok := r.tools[name]
	if !ok {
		return ToolResult{
			Status: ToolResultError,
			Error:  fmt.Sprintf("Unknown tool: %s", name),
		}
	}

	params := make(map[string]any)
	if rawParams != "" {
		if err := json.Unmarshal([]byte(rawParams), &params); err != nil {
			return ToolResult{
				Status: ToolResultError,
				Error:  fmt.Sprintf("invalid tool parameters: %v", err),
			}
		}
	}

	if r.logger != nil {
		r.logger.Debug("executing tool",
			logger.String("tool", name),
			logger.Int("param_count", len(params)),
		)
	}

	res, err := tool.Handler(ctx, params)
	if err != nil {
		return ToolResult{Status: ToolResultError, Error: err.Error()}
	}

	if res.Status == "" {
		res.Status = ToolResultSuccess
	}

	return res
}

// Rows is tabular data returned by the data collaborators.
type Rows []map[string]any

// TableSummary is one table listing entry.
type TableSummary struct {
	Name    string `json:"name"`
	Catalog string `json:"catalog,omitempty"`
	Schema  string `json:"schema,omitempty"`
	Comment string `json:"comment,omitempty"`
}

// ColumnInfo describes one table column.
type ColumnInfo struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Comment string `json:"comment,omitempty"`
}

// TableDetails is a table's schema plus a small data sample.
type TableDetails struct {
	FullName string       `json:"full_table_name"`
	Columns  []ColumnInfo `json:"columns"`
	Sample   Rows         `json:"sample,omitempty"`
}

// DataSource is the opaque data collaborator: named datasets plus raw query
// execution.
type DataSource interface {
	Fetch(ctx context.Context, name string) (Rows, error)
	Query(ctx context.Context, query, language string) (Rows, error)
}

// CatalogExplorer is the schema-introspection collaborator.
type CatalogExplorer interface {
	ListCatalogs(ctx context.Context) ([]string, error)
	ListSchemas(ctx context.Context, catalog string) ([]string, error)
	ListTables(ctx context.Context, catalog, schema string) ([]TableSummary, error)
	DescribeTable(ctx context.Context, fullName string) (TableDetails, error)
	InspectTable(ctx context.Context, fullName string) (TableDetails, error)
}

// BuiltinTools binds the standard tool set to the given collaborators.
func BuiltinTools(data DataSource, explorer CatalogExplorer) []Tool {
	return []Tool{
		{
			Name:        "search_data",
			Description: "Search and retrieve data from a specified data source using a query.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"dataSource": map[string]any{"type": "string", "description": "The name of the data source to query"},
					"query":      map[string]any{"type": "string", "description": "A SQL-like query describing what data to retrieve"},
				},
				"required": []string{"dataSource", "query"},
			},
			Handler: searchDataHandler(data),
		},
		{
			Name:        "list_catalogs",
			Description: "List all available catalogs in the metastore.",
			Parameters:  map[string]any{"type": "object", "properties": map[string]any{}},
			Handler: func(ctx context.Context, _ map[string]any) (ToolResult, error) {
				catalogs, err := explorer.ListCatalogs(ctx)
				if err != nil {
					return ToolResult{}, err
				}

				return ToolResult{
					Status:  ToolResultSuccess,
					Data:    catalogs,
					Summary: fmt.Sprintf("Found %d catalogs.", len(catalogs)),
				}, nil
			},
		},
		{
			Name:        "list_schemas",
			Description: "List schemas within a specific catalog.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"catalog_name": map[string]any{"type": "string", "description": "Name of the catalog"},
				},
				"required": []string{"catalog_name"},
			},
			Handler: func(ctx context.Context, params map[string]any) (ToolResult, error) {
				catalog := stringParam(params, "catalog_name")

				schemas, err := explorer.ListSchemas(ctx, catalog)
				if err != nil {
					return ToolResult{}, err
				}

				return ToolResult{
					Status:  ToolResultSuccess,
					Data:    schemas,
					Summary: fmt.Sprintf("Found %d schemas in %s.", len(schemas), catalog),
				}, nil
			},
		},
		{
			Name:        "list_tables",
			Description: "List tables within a specific schema.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"catalog_name": map[string]any{"type": "string", "description": "Name of the catalog"},
					"schema_name":  map[string]any{"type": "string", "description": "Name of the schema"},
				},
				"required": []string{"catalog_name", "schema_name"},
			},
			Handler: func(ctx context.Context, params map[string]any) (ToolResult, error) {
				catalog := stringParam(params, "catalog_name")
				schema := stringParam(params, "schema_name")

				tables, err := explorer.ListTables(ctx, catalog, schema)
				if err != nil {
					return ToolResult{}, err
				}

				return ToolResult{
					Status:  ToolResultSuccess,
					Data:    tables,
					Summary: fmt.Sprintf("Found %d tables in %s.%s.", len(tables), catalog, schema),
				}, nil
			},
		},
		{
			Name:        "get_table_schema",
			Description: "Get detailed schema information (columns, types, comments) for a table.",
			Parameters:  fullTableNameParams(),
			Handler: func(ctx context.Context, params map[string]any) (ToolResult, error) {
				fullName := stringParam(params, "full_table_name")

				details, err := explorer.DescribeTable(ctx, fullName)
				if err != nil {
					return ToolResult{}, err
				}

				return ToolResult{
					Status:  ToolResultSuccess,
					Data:    details,
					Summary: fmt.Sprintf("Retrieved schema for %s with %d columns.", fullName, len(details.Columns)),
				}, nil
			},
		},
		{
			Name:        "inspect_table",
			Description: "Get schema and a sample of data for a table. Use this to understand data content.",
			Parameters:  fullTableNameParams(),
			Handler: func(ctx context.Context, params map[string]any) (ToolResult, error) {
				fullName := stringParam(params, "full_table_name")

				details, err := explorer.InspectTable(ctx, fullName)
				if err != nil {
					return ToolResult{}, err
				}

				return ToolResult{
					Status:  ToolResultSuccess,
					Data:    details,
					Summary: fmt.Sprintf("Retrieved schema for %s with %d columns.", fullName, len(details.Columns)),
				}, nil
			},
		},
		{
			Name:        AskUserToolName,
			Description: "Ask the user for confirmation, selection, or input. Required for destructive actions.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"type":     map[string]any{"type": "string", "enum": []string{"confirmation", "selection", "text_input"}},
					"question": map[string]any{"type": "string", "description": "The question to ask the user"},
					"options":  map[string]any{"type": "array", "description": "Options for selection type"},
				},
				"required": []string{"type", "question"},
			},
			// The controller intercepts ask_user before execution; this
			// handler only runs if something calls it directly.
			Handler: func(ctx context.Context, _ map[string]any) (ToolResult, error) {
				return ToolResult{
					Status:  ToolResultPending,
					Summary: "Waiting for user input",
				}, nil
			},
		},
	}
}

// searchDataHandler fetches a named dataset, falling back to raw query
// execution when the static source is empty and a query was supplied.
func searchDataHandler(data DataSource) ToolHandler {
	return func(ctx context.Context, params map[string]any) (ToolResult, error) {
		source := stringParam(params, "dataSource")
		query := stringParam(params, "query")

		rows, err := data.Fetch(ctx, source)
		if err != nil {
			return ToolResult{Status: ToolResultError, Error: err.Error()}, nil
		}

		if len(rows) == 0 && query != "" {
			rows, err = data.Query(ctx, query, "sql")
			if err != nil {
				return ToolResult{Status: ToolResultError, Error: err.Error()}, nil
			}
		}

		if rows == nil {
			rows = Rows{}
		}

		return ToolResult{
			Status:  ToolResultSuccess,
			Data:    rows,
			Summary: fmt.Sprintf("Successfully fetched %d rows from %s", len(rows), source),
		}, nil
	}
}

func fullTableNameParams() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"full_table_name": map[string]any{"type": "string", "description": "Full name of the table (catalog.schema.table)"},
		},
		"required": []string{"full_table_name"},
	}
}

func stringParam(params map[string]any, key string) string {
	v, _ := params[key].(string)

	return v
}
