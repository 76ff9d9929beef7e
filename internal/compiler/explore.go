package compiler

import (
	"errors"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/token"

	"github.com/ataft/lightdash/internal/ir"
)

// CompileExplore parses a CUE value into an Explore.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the explore struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`explore: orders: { ... }`)
//	explore, err := CompileExplore(v.LookupPath(cue.ParsePath("explore.orders")))
//
// Every static metric's SQL is compiled against the loaded explore, so a
// definition with a bad reference fails here rather than at query time.
func CompileExplore(v cue.Value) (*ir.Explore, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	explore := &ir.Explore{Tables: make(map[string]*ir.Table)}

	labels := v.Path().Selectors()
	if len(labels) > 0 {
		explore.Name = labels[len(labels)-1].String()
	}

	var err error
	if explore.Label, err = optionalString(v, "label"); err != nil {
		return nil, err
	}
	if explore.Label == "" {
		explore.Label = FriendlyName(explore.Name)
	}
	warehouse, err := optionalString(v, "target_database")
	if err != nil {
		return nil, err
	}
	explore.TargetDatabase = ir.WarehouseType(warehouse)
	if explore.Tags, err = optionalStrings(v, "tags"); err != nil {
		return nil, err
	}

	baseVal := v.LookupPath(cue.ParsePath("base_table"))
	if !baseVal.Exists() {
		return nil, &CompileError{
			Kind:    KindCUE,
			Field:   "base_table",
			Message: "base_table is required",
			Pos:     v.Pos(),
		}
	}
	if explore.BaseTable, err = baseVal.String(); err != nil {
		return nil, formatCUEError(err)
	}

	// Metric definitions are converted after all tables are known so that
	// their SQL can reference fields of any table.
	pending, err := parseTables(v, explore)
	if err != nil {
		return nil, err
	}
	if len(explore.Tables) == 0 {
		return nil, &CompileError{
			Kind:    KindCUE,
			Field:   "tables",
			Message: "at least one table is required",
			Pos:     v.Pos(),
		}
	}

	d, err := exploreDialect(explore)
	if err != nil {
		var ce *CompileError
		if errors.As(err, &ce) {
			ce.Pos = v.LookupPath(cue.ParsePath("target_database")).Pos()
		}
		return nil, err
	}

	// Metrics keep their raw SQL on the model. Compiling here only rejects
	// broken definitions at load time; the fragment is discarded.
	fields := explore.FieldIDs()
	for _, pm := range pending {
		if _, err := CompileMetricSQL(pm.metric, fields, d.IdentQuoteChar); err != nil {
			var ce *CompileError
			if errors.As(err, &ce) {
				ce.Pos = pm.pos
			}
			return nil, err
		}
	}

	return explore, nil
}

// pendingMetric is a converted metric awaiting SQL compilation.
type pendingMetric struct {
	metric ir.Metric
	pos    token.Pos
}

func parseTables(v cue.Value, explore *ir.Explore) ([]pendingMetric, error) {
	tablesVal := v.LookupPath(cue.ParsePath("tables"))
	if !tablesVal.Exists() {
		return nil, nil
	}

	iter, err := tablesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var pending []pendingMetric
	for iter.Next() {
		tableName := iter.Label()
		tableVal := iter.Value()

		table := &ir.Table{
			Name:       tableName,
			Dimensions: make(map[string]ir.Dimension),
			Metrics:    make(map[string]ir.Metric),
		}
		for _, f := range []stringField{
			{"label", &table.Label},
			{"database", &table.Database},
			{"schema", &table.Schema},
			{"sql_table", &table.SQLTable},
			{"description", &table.Description},
		} {
			if *f.dst, err = optionalString(tableVal, f.path); err != nil {
				return nil, err
			}
		}
		if table.Label == "" {
			table.Label = FriendlyName(tableName)
		}

		if err := parseDimensions(tableVal, table); err != nil {
			return nil, err
		}
		metrics, err := parseMetrics(tableVal, table)
		if err != nil {
			return nil, err
		}
		pending = append(pending, metrics...)

		explore.Tables[tableName] = table
	}

	return pending, nil
}

func parseDimensions(tableVal cue.Value, table *ir.Table) error {
	dimsVal := tableVal.LookupPath(cue.ParsePath("dimensions"))
	if !dimsVal.Exists() {
		return nil
	}

	iter, err := dimsVal.Fields()
	if err != nil {
		return formatCUEError(err)
	}

	for iter.Next() {
		name := iter.Label()
		dv := iter.Value()

		dim := ir.Dimension{
			Name:       name,
			Table:      table.Name,
			TableLabel: table.Label,
			Type:       ir.DimensionString,
		}
		typ, err := optionalString(dv, "type")
		if err != nil {
			return err
		}
		if typ != "" {
			dim.Type = ir.DimensionType(typ)
		}
		if !ir.ValidDimensionTypes[dim.Type] {
			return &CompileError{
				Kind:    KindCUE,
				Field:   fmt.Sprintf("tables.%s.dimensions.%s.type", table.Name, name),
				Message: fmt.Sprintf("invalid dimension type %q", typ),
				Pos:     dv.LookupPath(cue.ParsePath("type")).Pos(),
			}
		}
		if dim.SQL, err = optionalString(dv, "sql"); err != nil {
			return err
		}
		if dim.SQL == "" {
			dim.SQL = "${" + tableRef + "}." + name
		}
		if dim.Label, err = optionalString(dv, "label"); err != nil {
			return err
		}
		if dim.Label == "" {
			dim.Label = FriendlyName(name)
		}
		if dim.Description, err = optionalString(dv, "description"); err != nil {
			return err
		}
		if dim.Hidden, err = optionalBool(dv, "hidden"); err != nil {
			return err
		}

		table.Dimensions[name] = dim
	}
	return nil
}

func parseMetrics(tableVal cue.Value, table *ir.Table) ([]pendingMetric, error) {
	metricsVal := tableVal.LookupPath(cue.ParsePath("metrics"))
	if !metricsVal.Exists() {
		return nil, nil
	}

	iter, err := metricsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var pending []pendingMetric
	for iter.Next() {
		name := iter.Label()
		mv := iter.Value()

		var def MetricDefinition
		typ, err := optionalString(mv, "type")
		if err != nil {
			return nil, err
		}
		def.Type = ir.MetricType(typ)
		for _, f := range []stringField{
			{"sql", &def.SQL},
			{"label", &def.Label},
			{"description", &def.Description},
			{"format", &def.Format},
		} {
			if *f.dst, err = optionalString(mv, f.path); err != nil {
				return nil, err
			}
		}
		if def.Hidden, err = optionalBool(mv, "hidden"); err != nil {
			return nil, err
		}
		if def.Round, err = optionalInt(mv, "round"); err != nil {
			return nil, err
		}
		column, err := optionalString(mv, "column")
		if err != nil {
			return nil, err
		}

		metric, err := ConvertMetric(ConvertMetricArgs{
			ModelName:  table.Name,
			ColumnName: column,
			Name:       name,
			TableLabel: table.Label,
			Metric:     def,
		})
		if err != nil {
			var ce *CompileError
			if errors.As(err, &ce) {
				ce.Pos = mv.Pos()
			}
			return nil, err
		}

		table.Metrics[name] = metric
		pending = append(pending, pendingMetric{metric: metric, pos: mv.Pos()})
	}
	return pending, nil
}

// stringField binds an optional CUE string field to its destination.
type stringField struct {
	path string
	dst  *string
}

// optionalString returns the string at path, or "" if it is absent.
func optionalString(v cue.Value, path string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(path))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalBool(v cue.Value, path string) (bool, error) {
	fv := v.LookupPath(cue.ParsePath(path))
	if !fv.Exists() {
		return false, nil
	}
	b, err := fv.Bool()
	if err != nil {
		return false, formatCUEError(err)
	}
	return b, nil
}

func optionalInt(v cue.Value, path string) (*int, error) {
	fv := v.LookupPath(cue.ParsePath(path))
	if !fv.Exists() {
		return nil, nil
	}
	n, err := fv.Int64()
	if err != nil {
		return nil, formatCUEError(err)
	}
	i := int(n)
	return &i, nil
}

func optionalStrings(v cue.Value, path string) ([]string, error) {
	fv := v.LookupPath(cue.ParsePath(path))
	if !fv.Exists() {
		return nil, nil
	}
	iter, err := fv.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}
