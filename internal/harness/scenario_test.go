package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ataft/lightdash/internal/compiler"
	"github.com/ataft/lightdash/internal/ir"
)

func writeScenario(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "explores"), 0o755))
	path := filepath.Join(dir, "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadScenario_Valid(t *testing.T) {
	path := writeScenario(t, `
name: valid
description: A valid scenario
explores: explores
explore: orders
flow:
  - name: step
    query:
      dimensions: [orders_status]
      metrics: [orders_amount]
      limit: 500
      sorts:
        - field_id: orders_amount
          descending: true
      table_calculations:
        - name: double
          display_name: Double
          sql: "${orders.amount} * 2"
    expect:
      table_calculations:
        double: '"orders_amount" * 2'
  - name: broken
    save_chart: Broken chart
    query:
      dimensions: []
      metrics: []
      additional_metrics:
        - name: m1
          table: missing
          type: sum
    expect:
      error: unknown_table
      contains: missing
assertions:
  - type: outcome_count
    outcome: error
    count: 1
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "valid", scenario.Name)
	assert.Equal(t, DefaultProject, scenario.Project)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "explores"), scenario.Explores)
	require.Len(t, scenario.Flow, 2)

	q := scenario.Flow[0].Query
	assert.Equal(t, []ir.FieldID{"orders_status"}, q.Dimensions)
	assert.Equal(t, 500, q.Limit)
	assert.Equal(t, []ir.SortField{{FieldID: "orders_amount", Descending: true}}, q.Sorts)
	assert.Equal(t, "${orders.amount} * 2", q.TableCalculations[0].SQL)

	broken := scenario.Flow[1]
	assert.Equal(t, "Broken chart", broken.SaveChart)
	assert.Equal(t, ir.MetricSum, broken.Query.AdditionalMetrics[0].Type)
	assert.Equal(t, compiler.KindUnknownTable, broken.Expect.Error)
}

func TestLoadScenario_UnknownField(t *testing.T) {
	path := writeScenario(t, `
name: typo
description: Typo in a key
explores: explores
explore: orders
flow:
  - name: step
    querry: {}
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_MissingExploresDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: no_dir
description: Explores directory is missing
explores: gone
explore: orders
flow:
  - name: step
    query: {}
`), 0o644))

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "explores directory not found")
}

func TestLoadScenarioWithBasePath(t *testing.T) {
	path := writeScenario(t, `
name: based
description: Explores resolve against the base path
explores: ../explores
explore: orders
flow:
  - name: step
    query: {}
`)
	base := filepath.Join(filepath.Dir(path), "sub")
	require.NoError(t, os.Mkdir(base, 0o755))

	scenario, err := LoadScenarioWithBasePath(path, base)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "explores"), scenario.Explores)
}

func TestLoadScenarioWithExplores(t *testing.T) {
	path := writeScenario(t, `
name: overridden
description: Explores directory comes from the caller
explores: does-not-exist
explore: orders
flow:
  - name: step
    query: {}
`)
	override := t.TempDir()

	scenario, err := LoadScenarioWithExplores(path, override)
	require.NoError(t, err)
	assert.Equal(t, override, scenario.Explores)

	_, err = LoadScenarioWithExplores(path, filepath.Join(override, "gone"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "explores directory not found")
}

func TestValidateScenario(t *testing.T) {
	valid := func() *Scenario {
		return &Scenario{
			Name:        "s",
			Description: "d",
			Explores:    "dir",
			Explore:     "orders",
			Flow:        []FlowStep{{Name: "a"}, {Name: "b"}},
		}
	}

	tests := []struct {
		name    string
		mutate  func(s *Scenario)
		wantErr string
	}{
		{"valid", func(s *Scenario) {}, ""},
		{"no name", func(s *Scenario) { s.Name = "" }, "name is required"},
		{"no description", func(s *Scenario) { s.Description = "" }, "description is required"},
		{"no explores", func(s *Scenario) { s.Explores = "" }, "explores directory is required"},
		{"no explore", func(s *Scenario) { s.Explore = "" }, "explore is required"},
		{"no flow", func(s *Scenario) { s.Flow = nil }, "flow list is required"},
		{"unnamed step", func(s *Scenario) { s.Flow[1].Name = "" }, "flow[1]: name is required"},
		{"duplicate step", func(s *Scenario) { s.Flow[1].Name = "a" }, `flow[1]: duplicate step name "a"`},
		{
			"contains without error",
			func(s *Scenario) { s.Flow[0].Expect = &ExpectClause{Contains: "x"} },
			"flow[0].expect: contains requires error",
		},
		{
			"assertion without type",
			func(s *Scenario) { s.Assertions = []Assertion{{}} },
			"assertions[0]: type is required",
		},
		{
			"unknown assertion",
			func(s *Scenario) { s.Assertions = []Assertion{{Type: "trace_contains"}} },
			`unknown assertion type "trace_contains"`,
		},
		{
			"step_outcome unknown step",
			func(s *Scenario) {
				s.Assertions = []Assertion{{Type: AssertStepOutcome, Step: "z", Outcome: OutcomeOK}}
			},
			`unknown step "z"`,
		},
		{
			"step_outcome bad outcome",
			func(s *Scenario) { s.Assertions = []Assertion{{Type: AssertStepOutcome, Step: "a", Outcome: "maybe"}} },
			"outcome must be",
		},
		{
			"outcome_count negative",
			func(s *Scenario) {
				s.Assertions = []Assertion{{Type: AssertOutcomeCount, Outcome: OutcomeError, Count: -1}}
			},
			"count must be non-negative",
		},
		{
			"same_fingerprint one step",
			func(s *Scenario) { s.Assertions = []Assertion{{Type: AssertSameFingerprint, Steps: []string{"a"}}} },
			"at least two steps",
		},
		{
			"same_fingerprint unknown step",
			func(s *Scenario) {
				s.Assertions = []Assertion{{Type: AssertSameFingerprint, Steps: []string{"a", "z"}}}
			},
			`unknown step "z"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid()
			tt.mutate(s)
			err := validateScenario(s)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
