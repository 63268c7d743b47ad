package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xraph/agentloop"
	"github.com/xraph/agentloop/transport"
)

// demoWarehouse is a small static catalog so the mock scenarios have real
// data behind their tool calls.
type demoWarehouse struct {
	datasets map[string]agentloop.Rows
	tables   map[string]agentloop.TableDetails
}

func newDemoWarehouse() (agentloop.DataSource, agentloop.CatalogExplorer) {
	w := &demoWarehouse{
		datasets: map[string]agentloop.Rows{
			"monthly_sales": {
				{"month": "2026-05", "revenue": 48210.50, "orders": 612},
				{"month": "2026-06", "revenue": 51877.25, "orders": 655},
				{"month": "2026-07", "revenue": 46930.00, "orders": 598},
				{"month": "2026-08", "revenue": 55402.75, "orders": 701},
			},
			"top_customers": {
				{"customer": "Acme Corp", "revenue": 18230.00},
				{"customer": "Globex", "revenue": 15110.40},
				{"customer": "Initech", "revenue": 9870.25},
			},
		},
		tables: map[string]agentloop.TableDetails{
			"main.sales.orders": {
				FullName: "main.sales.orders",
				Columns: []agentloop.ColumnInfo{
					{Name: "order_id", Type: "bigint"},
					{Name: "customer_id", Type: "bigint"},
					{Name: "ordered_at", Type: "timestamp"},
					{Name: "total", Type: "decimal(12,2)"},
				},
				Sample: agentloop.Rows{
					{"order_id": 1001, "customer_id": 7, "ordered_at": "2026-08-14T10:22:00Z", "total": 219.99},
					{"order_id": 1002, "customer_id": 3, "ordered_at": "2026-08-14T11:07:00Z", "total": 54.50},
				},
			},
			"main.sales.customers": {
				FullName: "main.sales.customers",
				Columns: []agentloop.ColumnInfo{
					{Name: "customer_id", Type: "bigint"},
					{Name: "name", Type: "string"},
					{Name: "segment", Type: "string"},
				},
			},
		},
	}

	return w, w
}

func (w *demoWarehouse) Fetch(ctx context.Context, name string) (agentloop.Rows, error) {
	return w.datasets[name], nil
}

func (w *demoWarehouse) Query(ctx context.Context, query, language string) (agentloop.Rows, error) {
	q := strings.ToLower(query)
	for name, rows := range w.datasets {
		if strings.Contains(q, name) {
			return rows, nil
		}
	}

	return agentloop.Rows{}, nil
}

func (w *demoWarehouse) ListCatalogs(ctx context.Context) ([]string, error) {
	return []string{"main", "samples"}, nil
}

func (w *demoWarehouse) ListSchemas(ctx context.Context, catalog string) ([]string, error) {
	if catalog != "main" {
		return []string{}, nil
	}

	return []string{"sales", "marketing"}, nil
}

func (w *demoWarehouse) ListTables(ctx context.Context, catalog, schema string) ([]agentloop.TableSummary, error) {
	prefix := catalog + "." + schema + "."

	var out []agentloop.TableSummary
	for name := range w.tables {
		if strings.HasPrefix(name, prefix) {
			out = append(out, agentloop.TableSummary{
				Name:    strings.TrimPrefix(name, prefix),
				Catalog: catalog,
				Schema:  schema,
			})
		}
	}

	return out, nil
}

func (w *demoWarehouse) DescribeTable(ctx context.Context, fullName string) (agentloop.TableDetails, error) {
	details, ok := w.tables[fullName]
	if !ok {
		return agentloop.TableDetails{}, fmt.Errorf("table %s not found", fullName)
	}

	details.Sample = nil

	return details, nil
}

func (w *demoWarehouse) InspectTable(ctx context.Context, fullName string) (agentloop.TableDetails, error) {
	details, ok := w.tables[fullName]
	if !ok {
		return agentloop.TableDetails{}, fmt.Errorf("table %s not found", fullName)
	}

	return details, nil
}

// newDemoTransport scripts multi-round exchanges that exercise thoughts,
// tool calls, widgets, and inquiries.
func newDemoTransport(tokenDelay time.Duration) *transport.MockTransport {
	return &transport.MockTransport{
		TokenDelay: tokenDelay,
		Scenarios: []transport.MockScenario{
			{
				Keywords: []string{"sales", "revenue"},
				Steps: []string{
					"<thought>The user wants sales figures. I should pull the monthly_sales dataset first.</thought>" +
						"Let me fetch the latest sales data." +
						`<command tool="search_data">{"dataSource": "monthly_sales", "query": "SELECT * FROM monthly_sales"}</command>` +
						"<<<WAIT>>>",
					"<thought>Four months of data came back. Revenue peaked in August. A bar chart shows this best.</thought>" +
						"Revenue has been climbing since June, peaking at $55,402 in August.\n\n" +
						"%%%WIDGET_START%%%\n" +
						`{"type": "bar", "id": "rev-by-month", "dataSource": "monthly_sales", "title": "Monthly Revenue", "categoryColumn": "month", "valueColumn": "revenue", "aggregation": "sum"}` +
						"\n%%%WIDGET_END%%%\n" +
						"July dipped slightly, likely seasonal. Want me to break this down by customer?",
				},
			},
			{
				Keywords: []string{"tables", "schema", "catalog"},
				Steps: []string{
					"<thought>They are asking about the warehouse layout. I will list tables in main.sales.</thought>" +
						`<command tool="list_tables">{"catalog_name": "main", "schema_name": "sales"}</command>` +
						"<<<WAIT>>>",
					"The `main.sales` schema has two tables: `orders` and `customers`. " +
						"Here is a query to join them:\n\n" +
						"```sql\nSELECT c.name, SUM(o.total) AS revenue\nFROM main.sales.orders o\nJOIN main.sales.customers c USING (customer_id)\nGROUP BY c.name\nORDER BY revenue DESC\n```\n" +
						"Run it when you're ready and I'll interpret the results.",
				},
			},
			{
				Keywords: []string{"delete", "drop", "truncate"},
				Steps: []string{
					"<thought>Destructive request. I must confirm before proceeding.</thought>" +
						`<command tool="ask_user">{"type": "confirmation", "question": "This will permanently remove data. Are you sure you want to proceed?", "options": [{"label": "Yes, proceed", "value": true, "style": "danger"}, {"label": "Cancel", "value": false}]}</command>` +
						"<<<WAIT>>>",
					"Understood. I have recorded your decision and will not touch the data without another explicit request.",
				},
			},
		},
		Fallback: []string{
			"<thought>No dataset obviously matches. I will answer directly and offer options.</thought>" +
				"I can help you explore the warehouse. Try asking about **sales trends**, the available **tables**, or a specific dataset.",
		},
	}
}
