package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/ataft/lightdash/internal/compiler"
	"github.com/ataft/lightdash/internal/ir"
	"github.com/ataft/lightdash/internal/project"
	"github.com/ataft/lightdash/internal/store"
	"github.com/ataft/lightdash/internal/testutil"
)

// Harness runs the flow of one scenario.
type Harness struct {
	store   *store.Store
	service *project.Service
	clock   *testutil.SeqClock
	logger  *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Deterministic helpers ensure reproducible results.
//
// Execution flow:
// 1. Create fresh in-memory database
// 2. Load and compile the CUE explores, then cache them in the store
// 3. Compile each flow step and check its expect clause
// 4. Evaluate assertions over the trace
//
// An error is returned only when the scenario itself cannot run. Failed
// expectations are reported in Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:",
		store.WithClock(testutil.NewSeqClock(0)),
		store.WithIDGenerator(testutil.NewFixedIDGenerator()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	loaded, errs := compiler.LoadExplores(scenario.Explores, compiler.LoadModeFailFast)
	if len(errs) > 0 {
		return nil, fmt.Errorf("failed to load explores: %w", errs[0])
	}

	projectName := scenario.Project
	if projectName == "" {
		projectName = DefaultProject
	}
	for _, e := range loaded.Explores {
		if _, err := st.SaveExplore(ctx, projectName, e); err != nil {
			return nil, fmt.Errorf("failed to cache explore %s: %w", e.Name, err)
		}
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // suppress logs in tests
	h := &Harness{
		store:   st,
		service: newService(st, logger),
		clock:   testutil.NewSeqClock(0),
		logger:  logger,
	}

	result := NewResult()
	if err := h.executeFlow(ctx, scenario, projectName, result); err != nil {
		return nil, fmt.Errorf("failed to execute flow: %w", err)
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}

	return result, nil
}

// executeFlow compiles every step and validates expect clauses.
func (h *Harness) executeFlow(ctx context.Context, scenario *Scenario, projectName string, result *Result) error {
	for i, step := range scenario.Flow {
		ev := TraceEvent{Step: step.Name, Seq: h.clock.Next()}

		var (
			res *compileResult
			err error
		)
		if step.SaveChart != "" {
			chart, saveErr := h.store.CreateChart(ctx, projectName, step.SaveChart, scenario.Explore, step.Query)
			if saveErr != nil {
				return fmt.Errorf("flow step %d: save chart: %w", i, saveErr)
			}
			ev.Chart = chart.UUID
			res, err = h.compileChart(ctx, chart.UUID)
		} else {
			res, err = h.compileQuery(ctx, projectName, scenario.Explore, step.Query)
		}

		if err != nil {
			var ce *compiler.CompileError
			if !errors.As(err, &ce) {
				// Only compile errors are step outcomes; anything else
				// (missing explore, store failure) aborts the scenario.
				return fmt.Errorf("flow step %d: %w", i, err)
			}
			ev.Outcome = OutcomeError
			ev.ErrorKind = string(ce.Kind)
			ev.Error = ce.Error()
		} else {
			ev.Outcome = OutcomeOK
			ev.Fingerprint = res.fingerprint
			ev.TableCalculations = res.tableCalculations
			ev.AdditionalMetrics = res.additionalMetrics
		}

		for _, msg := range checkExpect(step, ev) {
			result.AddError(fmt.Sprintf("flow[%d] %s: %s", i, step.Name, msg))
		}
		result.AddTrace(ev)

		h.logger.Info("flow step completed",
			"step", i,
			"name", step.Name,
			"outcome", ev.Outcome,
			"error_kind", ev.ErrorKind,
		)
	}
	return nil
}

// compileResult is the part of a compiled query the trace records.
type compileResult struct {
	fingerprint       string
	tableCalculations map[string]string
	additionalMetrics map[string]string
}

func (h *Harness) compileQuery(ctx context.Context, projectName, explore string, q ir.MetricQuery) (*compileResult, error) {
	res, err := h.service.CompileQuery(ctx, projectName, explore, q)
	if err != nil {
		return nil, err
	}
	return newCompileResult(res), nil
}

func (h *Harness) compileChart(ctx context.Context, chartUUID string) (*compileResult, error) {
	res, err := h.service.CompileChart(ctx, chartUUID)
	if err != nil {
		return nil, err
	}
	return newCompileResult(res), nil
}

func newCompileResult(res *project.Result) *compileResult {
	out := &compileResult{fingerprint: res.Fingerprint}
	if calcs := res.Query.CompiledTableCalculations; len(calcs) > 0 {
		out.tableCalculations = make(map[string]string, len(calcs))
		for _, c := range calcs {
			out.tableCalculations[c.Name] = c.CompiledSQL
		}
	}
	if metrics := res.Query.CompiledAdditionalMetrics; len(metrics) > 0 {
		out.additionalMetrics = make(map[string]string, len(metrics))
		for _, m := range metrics {
			out.additionalMetrics[string(m.FieldID())] = m.CompiledSQL
		}
	}
	return out
}

func newService(st *store.Store, logger *slog.Logger) *project.Service {
	return project.NewService(st, project.WithLogger(logger))
}

// checkExpect compares a step's outcome with its expect clause.
func checkExpect(step FlowStep, ev TraceEvent) []string {
	expect := step.Expect
	if expect == nil {
		expect = &ExpectClause{}
	}

	var msgs []string
	if expect.Error != "" {
		if ev.Outcome != OutcomeError {
			return []string{fmt.Sprintf("expected %s error, compile succeeded", expect.Error)}
		}
		if ev.ErrorKind != string(expect.Error) {
			msgs = append(msgs, fmt.Sprintf("expected %s error, got %s: %s", expect.Error, ev.ErrorKind, ev.Error))
		}
		if expect.Contains != "" && !strings.Contains(ev.Error, expect.Contains) {
			msgs = append(msgs, fmt.Sprintf("error %q does not contain %q", ev.Error, expect.Contains))
		}
		return msgs
	}

	if ev.Outcome != OutcomeOK {
		return []string{fmt.Sprintf("expected success, got %s error: %s", ev.ErrorKind, ev.Error)}
	}
	msgs = append(msgs, compareSQL("table calculation", expect.TableCalculations, ev.TableCalculations)...)
	msgs = append(msgs, compareSQL("additional metric", expect.AdditionalMetrics, ev.AdditionalMetrics)...)
	return msgs
}

// compareSQL checks expected compiled SQL by key, in key order.
func compareSQL(what string, expected, actual map[string]string) []string {
	keys := make([]string, 0, len(expected))
	for k := range expected {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var msgs []string
	for _, k := range keys {
		got, ok := actual[k]
		if !ok {
			msgs = append(msgs, fmt.Sprintf("%s %q not compiled", what, k))
			continue
		}
		if got != expected[k] {
			msgs = append(msgs, fmt.Sprintf("%s %q: expected %q, got %q", what, k, expected[k], got))
		}
	}
	return msgs
}
