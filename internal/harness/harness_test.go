package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ataft/lightdash/internal/compiler"
	"github.com/ataft/lightdash/internal/ir"
)

const exploresDir = "../../testdata/explores"

func amountQuery(calcs ...ir.TableCalculation) ir.MetricQuery {
	return ir.MetricQuery{
		Dimensions:        []ir.FieldID{},
		Metrics:           []ir.FieldID{"orders_amount"},
		TableCalculations: calcs,
	}
}

func calc(name, sql string) ir.TableCalculation {
	return ir.TableCalculation{Name: name, DisplayName: name, SQL: sql}
}

func TestRun_MinimalScenario(t *testing.T) {
	scenario := &Scenario{
		Name:        "minimal",
		Description: "Minimal test scenario",
		Explores:    exploresDir,
		Explore:     "orders",
		Flow: []FlowStep{
			{Name: "plain", Query: amountQuery()},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.True(t, result.Pass)
	assert.Empty(t, result.Errors)

	require.Len(t, result.Trace, 1)
	ev := result.Trace[0]
	assert.Equal(t, "plain", ev.Step)
	assert.Equal(t, int64(1), ev.Seq)
	assert.Equal(t, OutcomeOK, ev.Outcome)
	assert.Len(t, ev.Fingerprint, 64)
	assert.Nil(t, ev.TableCalculations)
}

func TestRun_RecordsCompiledSQL(t *testing.T) {
	scenario := &Scenario{
		Name:        "compiled",
		Description: "Compiled SQL is recorded per step",
		Explores:    exploresDir,
		Explore:     "orders",
		Flow: []FlowStep{
			{
				Name:  "tax",
				Query: amountQuery(calc("tax", "${orders.amount} * 0.2")),
				Expect: &ExpectClause{
					TableCalculations: map[string]string{"tax": `"orders_amount" * 0.2`},
				},
			},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, map[string]string{"tax": `"orders_amount" * 0.2`}, result.Trace[0].TableCalculations)
}

func TestRun_ExpectedErrorPasses(t *testing.T) {
	scenario := &Scenario{
		Name:        "expected_error",
		Description: "An expected compile error is a passing step",
		Explores:    exploresDir,
		Explore:     "orders",
		Flow: []FlowStep{
			{
				Name:  "collision",
				Query: amountQuery(calc("orders_amount", "1")),
				Expect: &ExpectClause{
					Error:    compiler.KindDuplicateName,
					Contains: "orders_amount",
				},
			},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	ev := result.Trace[0]
	assert.Equal(t, OutcomeError, ev.Outcome)
	assert.Equal(t, string(compiler.KindDuplicateName), ev.ErrorKind)
	assert.Empty(t, ev.Fingerprint)
}

func TestRun_UnexpectedErrorFails(t *testing.T) {
	scenario := &Scenario{
		Name:        "unexpected_error",
		Description: "A compile error without an expect clause fails the scenario",
		Explores:    exploresDir,
		Explore:     "orders",
		Flow: []FlowStep{
			{Name: "bad", Query: amountQuery(calc("bad", "${orders.missing}"))},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "flow[0] bad: expected success")
	assert.Contains(t, result.Errors[0], "unresolved_reference")
}

func TestRun_WrongErrorKindFails(t *testing.T) {
	scenario := &Scenario{
		Name:        "wrong_kind",
		Description: "The error kind must match",
		Explores:    exploresDir,
		Explore:     "orders",
		Flow: []FlowStep{
			{
				Name:   "bad",
				Query:  amountQuery(calc("bad", "${orders.missing}")),
				Expect: &ExpectClause{Error: compiler.KindMalformedReference},
			},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "expected malformed_reference error, got unresolved_reference")
}

func TestRun_SQLMismatchFails(t *testing.T) {
	scenario := &Scenario{
		Name:        "sql_mismatch",
		Description: "Compiled SQL is compared exactly",
		Explores:    exploresDir,
		Explore:     "orders",
		Flow: []FlowStep{
			{
				Name:  "tax",
				Query: amountQuery(calc("tax", "${orders.amount} * 0.2")),
				Expect: &ExpectClause{
					TableCalculations: map[string]string{
						"tax":     "orders_amount * 0.2",
						"missing": "1",
					},
				},
			},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], `table calculation "missing" not compiled`)
	assert.Contains(t, result.Errors[1], `table calculation "tax": expected`)
}

func TestRun_SaveChart(t *testing.T) {
	q := amountQuery(calc("tax", "${orders.amount} * 0.2"))
	scenario := &Scenario{
		Name:        "save_chart",
		Description: "Saved charts compile like the raw query",
		Explores:    exploresDir,
		Explore:     "orders",
		Flow: []FlowStep{
			{Name: "raw", Query: q},
			{Name: "chart", Query: q, SaveChart: "Tax"},
			{Name: "second_chart", Query: q, SaveChart: "Tax again"},
		},
		Assertions: []Assertion{
			{Type: AssertSameFingerprint, Steps: []string{"raw", "chart", "second_chart"}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	assert.Empty(t, result.Trace[0].Chart)
	assert.Equal(t, "00000000-0000-7000-8000-000000000001", result.Trace[1].Chart)
	assert.Equal(t, "00000000-0000-7000-8000-000000000002", result.Trace[2].Chart)
}

func TestRun_UnknownExploreAborts(t *testing.T) {
	scenario := &Scenario{
		Name:        "unknown_explore",
		Description: "A missing explore is not a compile outcome",
		Explores:    exploresDir,
		Explore:     "nope",
		Flow:        []FlowStep{{Name: "plain", Query: amountQuery()}},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "flow step 0")
}

func TestRun_BadExploresDir(t *testing.T) {
	scenario := &Scenario{
		Name:        "bad_dir",
		Description: "Explores must load",
		Explores:    t.TempDir(),
		Explore:     "orders",
		Flow:        []FlowStep{{Name: "plain", Query: amountQuery()}},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load explores")
	assert.Contains(t, err.Error(), compiler.ErrCodeNoFiles)
}

func TestRun_ProjectIsolation(t *testing.T) {
	scenario := &Scenario{
		Name:        "project",
		Description: "Explores are cached under the scenario project",
		Explores:    exploresDir,
		Explore:     "events",
		Project:     "analytics",
		Flow: []FlowStep{
			{
				Name: "bq",
				Query: ir.MetricQuery{
					Dimensions:        []ir.FieldID{"events_user_id"},
					Metrics:           []ir.FieldID{},
					TableCalculations: []ir.TableCalculation{calc("u", "${events.user_id}")},
				},
				Expect: &ExpectClause{TableCalculations: map[string]string{"u": "`events_user_id`"}},
			},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestResultEvent(t *testing.T) {
	r := NewResult()
	r.AddTrace(TraceEvent{Step: "a", Seq: 1, Outcome: OutcomeOK})

	ev, ok := r.Event("a")
	assert.True(t, ok)
	assert.Equal(t, int64(1), ev.Seq)

	_, ok = r.Event("b")
	assert.False(t, ok)
}
