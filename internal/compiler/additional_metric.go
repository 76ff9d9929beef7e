package compiler

import (
	"fmt"

	"github.com/ataft/lightdash/internal/dialect"
	"github.com/ataft/lightdash/internal/ir"
)

// CompileAdditionalMetric derives a full metric from a query-scoped
// additional metric and compiles it against every field of the explore.
func CompileAdditionalMetric(am ir.AdditionalMetric, explore *ir.Explore) (ir.CompiledMetric, error) {
	if explore == nil {
		return ir.CompiledMetric{}, &CompileError{
			Kind:    KindInvalidExplore,
			Field:   "additional_metrics." + am.Name,
			Message: "cannot compile a custom metric without an explore",
		}
	}
	d, err := exploreDialect(explore)
	if err != nil {
		return ir.CompiledMetric{}, err
	}
	return compileAdditionalMetric(am, explore, explore.FieldIDs(), d)
}

func compileAdditionalMetric(am ir.AdditionalMetric, explore *ir.Explore, fields *ir.FieldSet, d *dialect.Dialect) (ir.CompiledMetric, error) {
	field := "additional_metrics." + am.Name
	table, ok := explore.Tables[am.Table]
	if !ok || table == nil {
		return ir.CompiledMetric{}, &CompileError{
			Kind:    KindUnknownTable,
			Field:   field,
			Message: fmt.Sprintf("Custom metric %q references a table that doesn't exist %q", am.Name, am.Table),
			Ref:     am.Table,
		}
	}

	modelName := table.Name
	if modelName == "" {
		modelName = am.Table
	}
	metric, err := ConvertMetric(ConvertMetricArgs{
		ModelName:  modelName,
		ColumnName: "",
		Name:       am.Name,
		TableLabel: table.Label,
		Metric: MetricDefinition{
			Type:        am.Type,
			SQL:         am.SQL,
			Label:       am.Label,
			Description: am.Description,
			Hidden:      am.Hidden,
			Round:       am.Round,
			Format:      am.Format,
		},
	})
	if err != nil {
		return ir.CompiledMetric{}, err
	}

	scope := exprScope{
		field:   field,
		subject: fmt.Sprintf("Custom metric %q", am.Name),
		missing: "doesn't exist in the explore",
	}
	sql, err := compileMetricSQL(metric, fields, d, scope)
	if err != nil {
		return ir.CompiledMetric{}, err
	}
	return ir.CompiledMetric{Metric: metric, CompiledSQL: sql}, nil
}
