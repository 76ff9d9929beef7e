package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ataft/lightdash/internal/compiler"
	"github.com/ataft/lightdash/internal/ir"
	"github.com/ataft/lightdash/internal/store"
)

// LoadQuery reads a metric query from a YAML (or JSON) file.
// Unknown keys are rejected so a misspelt field is never silently dropped.
func LoadQuery(path string) (ir.MetricQuery, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ir.MetricQuery{}, fmt.Errorf("failed to read query file: %w", err)
	}
	return ParseQuery(data)
}

// ParseQuery decodes a metric query document and checks its structure.
func ParseQuery(data []byte) (ir.MetricQuery, error) {
	var q ir.MetricQuery
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&q); err != nil {
		if errors.Is(err, io.EOF) {
			return ir.MetricQuery{}, fmt.Errorf("query file is empty")
		}
		return ir.MetricQuery{}, fmt.Errorf("failed to parse query: %w", err)
	}
	if q.Dimensions == nil {
		q.Dimensions = []ir.FieldID{}
	}
	if q.Metrics == nil {
		q.Metrics = []ir.FieldID{}
	}

	if errs := compiler.Validate(&q); len(errs) > 0 {
		return ir.MetricQuery{}, fmt.Errorf("invalid query: %w", errs[0])
	}
	return q, nil
}

// loadExplore loads the explores directory and returns the named explore.
func loadExplore(dir, name string) (*ir.Explore, error) {
	result, errs := compiler.LoadExplores(dir, compiler.LoadModeFailFast)
	if len(errs) > 0 {
		return nil, errs[0]
	}
	explore := result.Explore(name)
	if explore == nil {
		return nil, &compiler.LoadError{
			Code:    ErrCodeNotFound,
			Message: fmt.Sprintf("explore %q not found in %s (have %v)", name, dir, result.Names()),
		}
	}
	return explore, nil
}

// openStore opens the database named by --db.
func openStore(opts *RootOptions) (*store.Store, error) {
	st, err := store.Open(opts.Database)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", opts.Database, err)
	}
	return st, nil
}
