package compiler

import (
	"fmt"
	"slices"

	"github.com/ataft/lightdash/internal/dialect"
	"github.com/ataft/lightdash/internal/ir"
)

// CompileMetricQuery compiles every table calculation and additional metric
// of q against explore.
//
// Table calculations are compiled first, then additional metrics, each in
// input order. The first error aborts the compile and no partial result is
// returned. The input query is not modified.
func CompileMetricQuery(explore *ir.Explore, q ir.MetricQuery) (*ir.CompiledMetricQuery, error) {
	if explore == nil {
		return nil, &CompileError{
			Kind:    KindInvalidExplore,
			Message: "cannot compile a metric query without an explore",
		}
	}

	d, err := exploreDialect(explore)
	if err != nil {
		return nil, err
	}
	quoteChar := d.IdentQuoteChar

	valid := q.SelectedFieldIDs()
	calcs := make([]ir.CompiledTableCalculation, 0, len(q.TableCalculations))
	for _, calc := range q.TableCalculations {
		compiled, err := CompileTableCalculation(calc, valid, quoteChar)
		if err != nil {
			return nil, err
		}
		calcs = append(calcs, compiled)
	}

	metrics := make([]ir.CompiledMetric, 0, len(q.AdditionalMetrics))
	if len(q.AdditionalMetrics) > 0 {
		fields := explore.FieldIDs()
		for _, am := range q.AdditionalMetrics {
			compiled, err := compileAdditionalMetric(am, explore, fields, d)
			if err != nil {
				return nil, err
			}
			metrics = append(metrics, compiled)
		}
	}

	return &ir.CompiledMetricQuery{
		MetricQuery:               cloneQuery(q),
		CompiledTableCalculations: calcs,
		CompiledAdditionalMetrics: metrics,
	}, nil
}

// exploreDialect looks up the dialect of the explore's warehouse.
func exploreDialect(explore *ir.Explore) (*dialect.Dialect, error) {
	d, err := dialect.Lookup(explore.TargetDatabase)
	if err != nil {
		return nil, &CompileError{
			Kind:    KindUnsupportedWarehouse,
			Field:   "target_database",
			Message: fmt.Sprintf("explore %q: %v", explore.Name, err),
		}
	}
	return d, nil
}

// cloneQuery copies the query's slices so the compiled result does not
// alias the caller's backing arrays. Filters are shared read-only.
func cloneQuery(q ir.MetricQuery) ir.MetricQuery {
	q.Dimensions = slices.Clone(q.Dimensions)
	q.Metrics = slices.Clone(q.Metrics)
	q.Sorts = slices.Clone(q.Sorts)
	q.TableCalculations = slices.Clone(q.TableCalculations)
	q.AdditionalMetrics = slices.Clone(q.AdditionalMetrics)
	return q
}
