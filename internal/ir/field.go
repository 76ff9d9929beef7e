package ir

// FieldID identifies a dimension or metric within an explore.
// Format: "{table}_{field}".
type FieldID string

// FieldIDFor builds the canonical id for a table.field reference.
// No normalisation is applied: case and characters are kept as given.
func FieldIDFor(table, field string) FieldID {
	return FieldID(table + "_" + field)
}

// FieldKind tags the variant behind a Field.
type FieldKind string

const (
	KindDimension        FieldKind = "dimension"
	KindMetric           FieldKind = "metric"
	KindTableCalculation FieldKind = "table_calculation"
	KindAdditionalMetric FieldKind = "additional_metric"
)

// Field is a sealed interface over everything a query can select.
// Only Dimension, Metric, TableCalculation and AdditionalMetric implement it.
//
//	switch f := field.(type) {
//	case Dimension:
//	case Metric:
//	case TableCalculation:
//	case AdditionalMetric:
//	}
type Field interface {
	FieldID() FieldID
	FieldLabel() string
	Kind() FieldKind
	field() // seals the interface to this package
}

// FieldSet is an ordered, duplicate-free set of field ids.
// Membership is O(1); Ordered() preserves first-insertion order.
type FieldSet struct {
	order []FieldID
	index map[FieldID]struct{}
}

// NewFieldSet builds a set from one or more id lists, dropping duplicates.
func NewFieldSet(lists ...[]FieldID) *FieldSet {
	s := &FieldSet{index: make(map[FieldID]struct{})}
	for _, list := range lists {
		for _, id := range list {
			s.Add(id)
		}
	}
	return s
}

// Add inserts id if it is not already present.
func (s *FieldSet) Add(id FieldID) {
	if s.index == nil {
		s.index = make(map[FieldID]struct{})
	}
	if _, ok := s.index[id]; ok {
		return
	}
	s.index[id] = struct{}{}
	s.order = append(s.order, id)
}

// Contains reports whether id is in the set.
func (s *FieldSet) Contains(id FieldID) bool {
	if s == nil {
		return false
	}
	_, ok := s.index[id]
	return ok
}

// Len returns the number of ids in the set.
func (s *FieldSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

// Ordered returns a copy of the ids in insertion order.
func (s *FieldSet) Ordered() []FieldID {
	if s == nil {
		return nil
	}
	out := make([]FieldID, len(s.order))
	copy(out, s.order)
	return out
}
