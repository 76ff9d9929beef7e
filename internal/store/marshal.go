package store

import (
	"encoding/json"
	"fmt"

	"github.com/ataft/lightdash/internal/ir"
)

// marshalExplore converts an explore to canonical JSON TEXT for storage.
func marshalExplore(e *ir.Explore) (string, error) {
	data, err := ir.MarshalCanonical(e)
	if err != nil {
		return "", fmt.Errorf("marshal explore: %w", err)
	}
	return string(data), nil
}

// unmarshalExplore parses stored explore JSON.
func unmarshalExplore(data string) (*ir.Explore, error) {
	var e ir.Explore
	if err := json.Unmarshal([]byte(data), &e); err != nil {
		return nil, fmt.Errorf("unmarshal explore: %w", err)
	}
	return &e, nil
}

// marshalQuery converts a metric query to canonical JSON TEXT for storage.
// Canonical form keeps chart version fingerprints stable.
func marshalQuery(q ir.MetricQuery) (string, error) {
	data, err := ir.MarshalCanonical(q)
	if err != nil {
		return "", fmt.Errorf("marshal metric query: %w", err)
	}
	return string(data), nil
}

// unmarshalQuery parses stored metric query JSON.
func unmarshalQuery(data string) (ir.MetricQuery, error) {
	var q ir.MetricQuery
	if err := json.Unmarshal([]byte(data), &q); err != nil {
		return ir.MetricQuery{}, fmt.Errorf("unmarshal metric query: %w", err)
	}
	return q, nil
}
