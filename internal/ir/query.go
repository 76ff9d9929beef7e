package ir

// SortField orders results by a field.
type SortField struct {
	FieldID    FieldID `json:"field_id" yaml:"field_id"`
	Descending bool    `json:"descending" yaml:"descending"`
}

// TableCalculation is a query-scoped SQL expression over selected fields.
// References use the ${table.field} placeholder syntax.
type TableCalculation struct {
	Index       *int   `json:"index,omitempty" yaml:"index,omitempty"`
	Name        string `json:"name" yaml:"name"`
	DisplayName string `json:"display_name" yaml:"display_name"`
	SQL         string `json:"sql" yaml:"sql"`
}

func (t TableCalculation) FieldID() FieldID   { return FieldID(t.Name) }
func (t TableCalculation) FieldLabel() string { return t.DisplayName }
func (TableCalculation) Kind() FieldKind      { return KindTableCalculation }
func (TableCalculation) field()               {}

// CompiledTableCalculation is a table calculation with its references
// substituted. Immutable once produced.
type CompiledTableCalculation struct {
	TableCalculation
	CompiledSQL string `json:"compiled_sql"`
}

// AdditionalMetric is an ad-hoc metric attached to a single query.
// It has the shape of a metric column definition plus the table it targets.
type AdditionalMetric struct {
	Table       string     `json:"table" yaml:"table"`
	Name        string     `json:"name" yaml:"name"`
	Type        MetricType `json:"type" yaml:"type"`
	Label       string     `json:"label,omitempty" yaml:"label,omitempty"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
	SQL         string     `json:"sql,omitempty" yaml:"sql,omitempty"`
	Hidden      bool       `json:"hidden,omitempty" yaml:"hidden,omitempty"`
	Round       *int       `json:"round,omitempty" yaml:"round,omitempty"`
	Format      string     `json:"format,omitempty" yaml:"format,omitempty"`
}

func (a AdditionalMetric) FieldID() FieldID   { return FieldIDFor(a.Table, a.Name) }
func (a AdditionalMetric) FieldLabel() string { return a.Label }
func (AdditionalMetric) Kind() FieldKind      { return KindAdditionalMetric }
func (AdditionalMetric) field()               {}

// MetricQuery is the request object for querying a single explore.
type MetricQuery struct {
	Dimensions        []FieldID          `json:"dimensions" yaml:"dimensions"`
	Metrics           []FieldID          `json:"metrics" yaml:"metrics"`
	Filters           Filters            `json:"filters" yaml:"filters"`
	Sorts             []SortField        `json:"sorts" yaml:"sorts"`
	Limit             int                `json:"limit" yaml:"limit"`
	TableCalculations []TableCalculation `json:"table_calculations" yaml:"table_calculations"`
	AdditionalMetrics []AdditionalMetric `json:"additional_metrics,omitempty" yaml:"additional_metrics,omitempty"`
}

// CompiledMetricQuery is a metric query with compiled table calculations and
// additional metrics appended. The embedded query is kept unchanged.
type CompiledMetricQuery struct {
	MetricQuery
	CompiledTableCalculations []CompiledTableCalculation `json:"compiled_table_calculations"`
	CompiledAdditionalMetrics []CompiledMetric           `json:"compiled_additional_metrics"`
}

// SelectedFieldIDs returns dimensions then metrics without duplicates.
// These are the only ids a table calculation may reference.
func (q *MetricQuery) SelectedFieldIDs() *FieldSet {
	return NewFieldSet(q.Dimensions, q.Metrics)
}
