package compiler

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/ataft/lightdash/internal/dialect"
	"github.com/ataft/lightdash/internal/ir"
)

// tableRef is the reserved reference that resolves to the metric's own table.
const tableRef = "TABLE"

// MetricDefinition is a raw metric as declared on a model column.
type MetricDefinition struct {
	Type        ir.MetricType
	SQL         string
	Label       string
	Description string
	Hidden      bool
	Round       *int
	Format      string
}

// ConvertMetricArgs carries everything ConvertMetric needs.
// ColumnName may be empty, in which case the metric has no base column.
type ConvertMetricArgs struct {
	ModelName  string
	ColumnName string
	Name       string
	TableLabel string
	Metric     MetricDefinition
}

// ConvertMetric builds a typed metric from a raw definition.
//
// The base SQL is the definition's own SQL if set, else ${TABLE}.<column>
// when a column is given, else empty. Labels default to the title-cased
// metric name.
func ConvertMetric(args ConvertMetricArgs) (ir.Metric, error) {
	field := args.ModelName + "." + args.Name
	if args.Name == "" {
		return ir.Metric{}, &CompileError{
			Kind:    KindInvalidMetric,
			Field:   field,
			Message: "metric name is required",
		}
	}
	if !ir.ValidMetricTypes[args.Metric.Type] {
		return ir.Metric{}, &CompileError{
			Kind:    KindInvalidMetric,
			Field:   field,
			Message: fmt.Sprintf("Metric %q has invalid type %q", args.Name, string(args.Metric.Type)),
		}
	}

	def := args.Metric
	m := ir.Metric{
		Type:        def.Type,
		Name:        args.Name,
		Label:       def.Label,
		Table:       args.ModelName,
		TableLabel:  args.TableLabel,
		SQL:         def.SQL,
		Description: def.Description,
		Hidden:      def.Hidden,
		Round:       def.Round,
		Format:      def.Format,
	}
	if m.Label == "" {
		m.Label = FriendlyName(args.Name)
	}
	if m.SQL == "" && args.ColumnName != "" {
		m.SQL = "${" + tableRef + "}." + args.ColumnName
	}
	if m.Description == "" && args.ColumnName != "" {
		m.Description = fmt.Sprintf("%s of %s", FriendlyName(string(def.Type)), FriendlyName(args.ColumnName))
	}
	return m, nil
}

// CompileMetricSQL compiles a metric's SQL against the full explore field
// set. ${TABLE} resolves to the metric's quoted table name; aggregate types
// wrap the compiled base expression.
func CompileMetricSQL(metric ir.Metric, fields *ir.FieldSet, quoteChar string) (string, error) {
	scope := exprScope{
		field:   metric.Table + "." + metric.Name,
		subject: fmt.Sprintf("Metric %q", metric.Name),
		missing: "doesn't exist in the explore",
	}
	return compileMetricSQL(metric, fields, &dialect.Dialect{IdentQuoteChar: quoteChar}, scope)
}

func compileMetricSQL(metric ir.Metric, fields *ir.FieldSet, d *dialect.Dialect, scope exprScope) (string, error) {
	fieldRefs := fieldResolver(fields, d.IdentQuoteChar)
	resolve := func(ref string) (string, ErrorKind) {
		if ref == tableRef {
			return d.QuoteIdent(metric.Table), ""
		}
		return fieldRefs(ref)
	}

	base, err := compileTemplate(metric.SQL, scope, resolve)
	if err != nil {
		return "", err
	}

	if strings.TrimSpace(base) == "" {
		if metric.Type == ir.MetricCount {
			return "COUNT(*)", nil
		}
		return "", &CompileError{
			Kind:    KindInvalidMetric,
			Field:   scope.field,
			Message: fmt.Sprintf("%s of type %s requires sql or a column", scope.subject, string(metric.Type)),
		}
	}
	if !metric.Type.IsAggregate() {
		return base, nil
	}
	return aggregateOpen[metric.Type] + base + ")", nil
}

// aggregateOpen holds the opening of the wrapper for each aggregate type.
var aggregateOpen = map[ir.MetricType]string{
	ir.MetricSum:           "SUM(",
	ir.MetricAverage:       "AVG(",
	ir.MetricCount:         "COUNT(",
	ir.MetricCountDistinct: "COUNT(DISTINCT ",
	ir.MetricMin:           "MIN(",
	ir.MetricMax:           "MAX(",
}

// FriendlyName turns an identifier like "total_order_amount" into
// "Total Order Amount".
func FriendlyName(name string) string {
	words := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-' || r == ' ' || r == '.'
	})
	return cases.Title(language.English).String(strings.Join(words, " "))
}
