package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/ataft/lightdash/internal/compiler"
	"github.com/ataft/lightdash/internal/ir"
)

// DefaultProject is the project explores are stored under when a scenario
// does not name one.
const DefaultProject = "default"

// Scenario defines a compile scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Explores is the directory of CUE explore definitions to load.
	// Relative paths are resolved against the scenario file location.
	Explores string `yaml:"explores"`

	// Explore is the explore every flow step queries.
	Explore string `yaml:"explore"`

	// Project is the project the explores are stored under.
	Project string `yaml:"project,omitempty"`

	// Flow is the sequence of queries to compile.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the trace as a whole.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// FlowStep compiles one metric query.
type FlowStep struct {
	// Name identifies the step in the trace and in assertions.
	Name string `yaml:"name"`

	// Query is the metric query to compile.
	Query ir.MetricQuery `yaml:"query"`

	// SaveChart, if set, saves the query as a chart with this name and
	// compiles the saved chart instead of the raw query.
	SaveChart string `yaml:"save_chart,omitempty"`

	// Expect specifies the expected outcome. If nil, the step must succeed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected compile outcome.
type ExpectClause struct {
	// Error is the expected compile error kind. Empty means success.
	Error compiler.ErrorKind `yaml:"error,omitempty"`

	// Contains is a substring the error message must contain.
	Contains string `yaml:"contains,omitempty"`

	// TableCalculations maps calculation name to expected compiled SQL.
	// Subset match: unlisted calculations are not checked.
	TableCalculations map[string]string `yaml:"table_calculations,omitempty"`

	// AdditionalMetrics maps additional metric field id to expected
	// compiled SQL. Subset match.
	AdditionalMetrics map[string]string `yaml:"additional_metrics,omitempty"`
}

// Assertion validates the final trace.
type Assertion struct {
	// Type specifies the assertion type:
	// - "step_outcome": Check a step finished with Outcome
	// - "outcome_count": Check exactly Count steps finished with Outcome
	// - "same_fingerprint": Check Steps compiled to identical output
	Type string `yaml:"type"`

	// Step is the step name (used by step_outcome).
	Step string `yaml:"step,omitempty"`

	// Outcome is "ok" or "error" (used by step_outcome, outcome_count).
	Outcome string `yaml:"outcome,omitempty"`

	// Count is the expected number of steps (used by outcome_count).
	Count int `yaml:"count,omitempty"`

	// Steps lists step names (used by same_fingerprint).
	Steps []string `yaml:"steps,omitempty"`
}

// Assertion type constants.
const (
	AssertStepOutcome     = "step_outcome"
	AssertOutcomeCount    = "outcome_count"
	AssertSameFingerprint = "same_fingerprint"
)

// LoadScenario reads and parses a scenario YAML file.
// The explores directory is resolved relative to the file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving the explores directory relative to basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	return loadScenario(path, func(s *Scenario) {
		if s.Explores != "" && !filepath.IsAbs(s.Explores) && basePath != "" {
			s.Explores = filepath.Join(basePath, s.Explores)
		}
	})
}

// LoadScenarioWithExplores reads a scenario YAML file and replaces its
// explores directory with exploresDir.
func LoadScenarioWithExplores(path, exploresDir string) (*Scenario, error) {
	return loadScenario(path, func(s *Scenario) {
		s.Explores = exploresDir
	})
}

func loadScenario(path string, resolve func(*Scenario)) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	resolve(scenario)

	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	if _, err := os.Stat(scenario.Explores); os.IsNotExist(err) {
		return nil, fmt.Errorf("invalid scenario: explores directory not found: %s", scenario.Explores)
	}

	return scenario, nil
}

// ParseScenario decodes scenario YAML without resolving paths or
// validating.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if scenario.Project == "" {
		scenario.Project = DefaultProject
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Explores == "" {
		return fmt.Errorf("explores directory is required")
	}
	if s.Explore == "" {
		return fmt.Errorf("explore is required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	seen := make(map[string]bool, len(s.Flow))
	for i, step := range s.Flow {
		if step.Name == "" {
			return fmt.Errorf("flow[%d]: name is required", i)
		}
		if seen[step.Name] {
			return fmt.Errorf("flow[%d]: duplicate step name %q", i, step.Name)
		}
		seen[step.Name] = true
		if step.Expect != nil && step.Expect.Error == "" && step.Expect.Contains != "" {
			return fmt.Errorf("flow[%d].expect: contains requires error", i)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion, seen); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, steps map[string]bool) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertStepOutcome:
		if !steps[a.Step] {
			return fmt.Errorf("assertions[%d]: unknown step %q for step_outcome", index, a.Step)
		}
		if err := validateOutcome(index, a.Outcome); err != nil {
			return err
		}
	case AssertOutcomeCount:
		if err := validateOutcome(index, a.Outcome); err != nil {
			return err
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for outcome_count", index)
		}
	case AssertSameFingerprint:
		if len(a.Steps) < 2 {
			return fmt.Errorf("assertions[%d]: same_fingerprint needs at least two steps", index)
		}
		for _, name := range a.Steps {
			if !steps[name] {
				return fmt.Errorf("assertions[%d]: unknown step %q for same_fingerprint", index, name)
			}
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}

func validateOutcome(index int, outcome string) error {
	if outcome != OutcomeOK && outcome != OutcomeError {
		return fmt.Errorf("assertions[%d]: outcome must be %q or %q, got %q", index, OutcomeOK, OutcomeError, outcome)
	}
	return nil
}
