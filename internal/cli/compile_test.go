package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ataft/lightdash/internal/compiler"
	"github.com/ataft/lightdash/internal/ir"
)

const taxQuery = `
dimensions: [orders_status]
metrics: [orders_amount]
table_calculations:
  - name: total_plus_tax
    display_name: Total plus tax
    sql: "${orders.amount} * 1.1"
additional_metrics:
  - name: average_value
    table: customers
    type: average
    sql: "${customers.lifetime_value}"
`

func writeQuery(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "query.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestCompileQuery(t *testing.T) {
	out, err := execute(t, "compile", exploresDir, writeQuery(t, taxQuery), "--explore", "orders")
	require.NoError(t, err)

	assert.Contains(t, out, "✓ Compiled query against explore orders")
	assert.Contains(t, out, "1 dimension(s), 1 metric(s)")
	assert.Contains(t, out, `total_plus_tax: "orders_amount" * 1.1`)
	assert.Contains(t, out, `customers_average_value: AVG("customers_lifetime_value")`)
	assert.Contains(t, out, "Fingerprint: ")
}

func TestCompileQueryJSON(t *testing.T) {
	out, err := execute(t, "--format", "json", "compile", exploresDir, writeQuery(t, taxQuery), "-e", "orders")
	require.NoError(t, err)

	var resp struct {
		Status string            `json:"status"`
		Data   CompilationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "orders", resp.Data.Explore)
	assert.Len(t, resp.Data.Fingerprint, 64)

	q := resp.Data.Query
	require.NotNil(t, q)
	require.Len(t, q.CompiledTableCalculations, 1)
	assert.Equal(t, `"orders_amount" * 1.1`, q.CompiledTableCalculations[0].CompiledSQL)
	require.Len(t, q.CompiledAdditionalMetrics, 1)
	assert.Equal(t, ir.FieldID("customers_average_value"), q.CompiledAdditionalMetrics[0].FieldID())
}

func TestCompileQueryDeterministic(t *testing.T) {
	query := writeQuery(t, taxQuery)
	first, err := execute(t, "--format", "json", "compile", exploresDir, query, "-e", "orders")
	require.NoError(t, err)
	second, err := execute(t, "--format", "json", "compile", exploresDir, query, "-e", "orders")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCompileOutputToFile(t *testing.T) {
	outputFile := filepath.Join(t.TempDir(), "compiled.json")

	out, err := execute(t, "compile", exploresDir, writeQuery(t, taxQuery), "-e", "orders", "-o", outputFile)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote compiled query to "+outputFile)

	data, err := os.ReadFile(outputFile)
	require.NoError(t, err)
	var result CompilationResult
	require.NoError(t, json.Unmarshal(data, &result))
	assert.Equal(t, "orders", result.Explore)
	require.NotNil(t, result.Query)
	assert.Len(t, result.Query.CompiledTableCalculations, 1)
}

func TestCompileBigQueryQuoting(t *testing.T) {
	query := writeQuery(t, `
dimensions: [events_event_name]
metrics: [events_event_count]
table_calculations:
  - name: share
    display_name: Share
    sql: "${events.event_count} / SUM(${events.event_count}) OVER ()"
`)
	out, err := execute(t, "compile", exploresDir, query, "-e", "events")
	require.NoError(t, err)
	assert.Contains(t, out, "share: `events_event_count` / SUM(`events_event_count`) OVER ()")
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		kind compiler.ErrorKind
		code string
	}{
		{
			name: "malformed_reference",
			body: `
dimensions: []
metrics: [orders_amount]
table_calculations:
  - {name: y, display_name: Y, sql: "${amount}"}
`,
			kind: compiler.KindMalformedReference,
			code: compiler.ErrInvalidMetricSQL,
		},
		{
			name: "duplicate_name",
			body: `
dimensions: []
metrics: [orders_amount]
table_calculations:
  - {name: orders_amount, display_name: Amount, sql: "1"}
`,
			kind: compiler.KindDuplicateName,
			code: compiler.ErrDuplicateCalculation,
		},
		{
			name: "unresolved_reference",
			body: `
dimensions: []
metrics: [orders_amount]
table_calculations:
  - {name: x, display_name: X, sql: "${orders.total}"}
`,
			kind: compiler.KindUnresolvedReference,
			code: compiler.ErrInvalidMetricSQL,
		},
		{
			name: "unknown_table",
			body: `
dimensions: []
metrics: []
additional_metrics:
  - {name: m1, table: missing_table, type: sum}
`,
			kind: compiler.KindUnknownTable,
			code: compiler.ErrCodeGeneric,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, "--format", "json", "compile", exploresDir, writeQuery(t, tt.body), "-e", "orders")
			require.Error(t, err)
			assert.Equal(t, ExitFailure, GetExitCode(err))
			assert.True(t, compiler.IsKind(err, tt.kind))

			var resp CLIResponse
			require.NoError(t, json.Unmarshal([]byte(out), &resp))
			assert.Equal(t, "error", resp.Status)
			require.NotNil(t, resp.Error)
			assert.Equal(t, string(tt.kind), resp.Error.Kind)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestCompileUnknownExplore(t *testing.T) {
	out, err := execute(t, "compile", exploresDir, writeQuery(t, taxQuery), "-e", "nope")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E010]")
	assert.Contains(t, out, `explore "nope" not found`)
}

func TestCompileMissingExploresDir(t *testing.T) {
	out, err := execute(t, "compile", filepath.Join(t.TempDir(), "none"), writeQuery(t, taxQuery), "-e", "orders")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E005]")
}

func TestCompileBadQueryFile(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"unknown_key", "dimensions: []\nmetricz: []\n", "failed to parse query"},
		{"empty", "", "query file is empty"},
		{"duplicate_calculation", `
dimensions: []
metrics: []
table_calculations:
  - {name: a, display_name: A, sql: "1"}
  - {name: a, display_name: A, sql: "2"}
`, "invalid query"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, "compile", exploresDir, writeQuery(t, tt.body), "-e", "orders")
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, out, "Error [E008]")
			assert.Contains(t, out, tt.want)
		})
	}
}

func TestCompileRequiresExploreFlag(t *testing.T) {
	_, err := execute(t, "compile", exploresDir, writeQuery(t, taxQuery))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"explore" not set`)
}

func TestParseQueryDefaults(t *testing.T) {
	q, err := ParseQuery([]byte("limit: 10\n"))
	require.NoError(t, err)
	assert.Equal(t, []ir.FieldID{}, q.Dimensions)
	assert.Equal(t, []ir.FieldID{}, q.Metrics)
	assert.Equal(t, 10, q.Limit)
}

func TestParseQueryNegativeLimit(t *testing.T) {
	_, err := ParseQuery([]byte("limit: -1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid query")
}
