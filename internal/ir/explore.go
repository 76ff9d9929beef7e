package ir

import "sort"

// WarehouseType identifies the target SQL dialect of an explore.
type WarehouseType string

const (
	WarehousePostgres   WarehouseType = "postgres"
	WarehouseRedshift   WarehouseType = "redshift"
	WarehouseBigQuery   WarehouseType = "bigquery"
	WarehouseSnowflake  WarehouseType = "snowflake"
	WarehouseDatabricks WarehouseType = "databricks"
	WarehouseTrino      WarehouseType = "trino"
	WarehouseDuckDB     WarehouseType = "duckdb"
	WarehouseSQLite     WarehouseType = "sqlite"
	WarehouseMySQL      WarehouseType = "mysql"
	WarehouseClickHouse WarehouseType = "clickhouse"
)

// DimensionType is the value type of a dimension.
type DimensionType string

const (
	DimensionString    DimensionType = "string"
	DimensionNumber    DimensionType = "number"
	DimensionTimestamp DimensionType = "timestamp"
	DimensionDate      DimensionType = "date"
	DimensionBoolean   DimensionType = "boolean"
)

// ValidDimensionTypes defines allowed dimension types.
var ValidDimensionTypes = map[DimensionType]bool{
	DimensionString:    true,
	DimensionNumber:    true,
	DimensionTimestamp: true,
	DimensionDate:      true,
	DimensionBoolean:   true,
}

// MetricType is the aggregation (or non-aggregate result type) of a metric.
type MetricType string

const (
	MetricAverage       MetricType = "average"
	MetricCount         MetricType = "count"
	MetricCountDistinct MetricType = "count_distinct"
	MetricSum           MetricType = "sum"
	MetricMin           MetricType = "min"
	MetricMax           MetricType = "max"
	MetricNumber        MetricType = "number"
	MetricString        MetricType = "string"
	MetricDate          MetricType = "date"
	MetricBoolean       MetricType = "boolean"
)

// ValidMetricTypes defines allowed metric types.
var ValidMetricTypes = map[MetricType]bool{
	MetricAverage:       true,
	MetricCount:         true,
	MetricCountDistinct: true,
	MetricSum:           true,
	MetricMin:           true,
	MetricMax:           true,
	MetricNumber:        true,
	MetricString:        true,
	MetricDate:          true,
	MetricBoolean:       true,
}

// IsAggregate reports whether the metric type wraps its SQL in an aggregate.
func (t MetricType) IsAggregate() bool {
	switch t {
	case MetricAverage, MetricCount, MetricCountDistinct, MetricSum, MetricMin, MetricMax:
		return true
	default:
		return false
	}
}

// Explore is the static semantic model a query runs against.
// Built once per project compile and shared read-only between queries.
type Explore struct {
	Name           string            `json:"name"`
	Label          string            `json:"label"`
	Tags           []string          `json:"tags,omitempty"`
	BaseTable      string            `json:"base_table"`
	TargetDatabase WarehouseType     `json:"target_database"`
	Tables         map[string]*Table `json:"tables"`
}

// Table is one table of an explore with its field catalog.
type Table struct {
	Name        string               `json:"name"`
	Label       string               `json:"label"`
	Database    string               `json:"database,omitempty"`
	Schema      string               `json:"schema,omitempty"`
	SQLTable    string               `json:"sql_table"`
	Description string               `json:"description,omitempty"`
	Dimensions  map[string]Dimension `json:"dimensions"`
	Metrics     map[string]Metric    `json:"metrics"`
}

// Dimension is a group-by field defined on a table.
type Dimension struct {
	Type        DimensionType `json:"type"`
	Name        string        `json:"name"`
	Label       string        `json:"label"`
	Table       string        `json:"table"`
	TableLabel  string        `json:"table_label"`
	SQL         string        `json:"sql"`
	Description string        `json:"description,omitempty"`
	Hidden      bool          `json:"hidden,omitempty"`
}

func (d Dimension) FieldID() FieldID   { return FieldIDFor(d.Table, d.Name) }
func (d Dimension) FieldLabel() string { return d.Label }
func (Dimension) Kind() FieldKind      { return KindDimension }
func (Dimension) field()               {}

// Metric is an aggregate (or derived) field defined on a table.
type Metric struct {
	Type        MetricType `json:"type"`
	Name        string     `json:"name"`
	Label       string     `json:"label"`
	Table       string     `json:"table"`
	TableLabel  string     `json:"table_label"`
	SQL         string     `json:"sql"`
	Description string     `json:"description,omitempty"`
	Hidden      bool       `json:"hidden,omitempty"`
	Round       *int       `json:"round,omitempty"`
	Format      string     `json:"format,omitempty"`
}

func (m Metric) FieldID() FieldID   { return FieldIDFor(m.Table, m.Name) }
func (m Metric) FieldLabel() string { return m.Label }
func (Metric) Kind() FieldKind      { return KindMetric }
func (Metric) field()               {}

// CompiledMetric is a metric plus its compiled SQL fragment.
type CompiledMetric struct {
	Metric
	CompiledSQL string `json:"compiled_sql"`
}

// TableNames returns the explore's table names in sorted order.
func (e *Explore) TableNames() []string {
	names := make([]string, 0, len(e.Tables))
	for name := range e.Tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FieldIDs returns every dimension and metric id in the explore.
// Tables are visited by name; within a table dimensions precede metrics and
// both are sorted by name, so the result is deterministic. Nil tables
// contribute no fields.
func (e *Explore) FieldIDs() *FieldSet {
	set := NewFieldSet()
	for _, tableName := range e.TableNames() {
		table := e.Tables[tableName]
		if table == nil {
			continue
		}
		for _, name := range sortedKeys(table.Dimensions) {
			set.Add(table.Dimensions[name].FieldID())
		}
		for _, name := range sortedKeys(table.Metrics) {
			set.Add(table.Metrics[name].FieldID())
		}
	}
	return set
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
