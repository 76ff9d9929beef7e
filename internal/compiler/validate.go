package compiler

import (
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"

	"github.com/ataft/lightdash/internal/dialect"
	"github.com/ataft/lightdash/internal/ir"
)

// Validation error codes (E200-E299)
const (
	// General validation errors (E200)
	ErrUnsupportedType = "E200" // unsupported type for validation

	// Explore errors (E201-E219)
	ErrExploreNameEmpty     = "E201" // explore name is required
	ErrNoTables             = "E202" // at least one table required
	ErrBaseTableMissing     = "E203" // base_table must name a table
	ErrInvalidDimensionType = "E204" // invalid dimension type
	ErrInvalidMetricType    = "E205" // invalid metric type
	ErrDuplicateFieldID     = "E206" // two fields resolve to the same id
	ErrUnsupportedWarehouse = "E207" // unknown target_database
	ErrInvalidMetricSQL     = "E208" // metric SQL does not compile
	ErrNameMismatch         = "E209" // map key differs from declared name
	ErrInvalidIdentifier    = "E210" // name not addressable as table.field

	// Metric query errors (E220-E239)
	ErrCalculationNameEmpty  = "E220" // table calculation name is required
	ErrDuplicateCalculation  = "E221" // two table calculations share a name
	ErrNegativeLimit         = "E222" // limit must be >= 0
	ErrAdditionalMetricEmpty = "E223" // additional metric needs name and table
)

// identifierPattern matches names that can appear in a ${table.field} reference.
var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks an Explore or MetricQuery against structural rules.
// Returns all errors found (does not fail-fast), in a deterministic order.
func Validate(v any) []ValidationError {
	switch x := v.(type) {
	case *ir.Explore:
		return validateExplore(x)
	case ir.Explore:
		return validateExplore(&x)
	case *ir.MetricQuery:
		return validateMetricQuery(x)
	case ir.MetricQuery:
		return validateMetricQuery(&x)
	default:
		return []ValidationError{{
			Field:   "type",
			Message: fmt.Sprintf("unsupported type: %T", v),
			Code:    ErrUnsupportedType,
		}}
	}
}

func validateExplore(explore *ir.Explore) []ValidationError {
	var errs []ValidationError

	// E201: name is required
	if strings.TrimSpace(explore.Name) == "" {
		errs = append(errs, ValidationError{
			Field:   "name",
			Message: "explore name is required and must be non-empty",
			Code:    ErrExploreNameEmpty,
		})
	}

	// E202: at least one table
	if len(explore.Tables) == 0 {
		errs = append(errs, ValidationError{
			Field:   "tables",
			Message: "at least one table is required",
			Code:    ErrNoTables,
		})
	}

	// E203: base table must exist
	if _, ok := explore.Tables[explore.BaseTable]; !ok {
		errs = append(errs, ValidationError{
			Field:   "base_table",
			Message: fmt.Sprintf("base table %q is not one of the explore's tables", explore.BaseTable),
			Code:    ErrBaseTableMissing,
		})
	}

	// E207: warehouse must be known
	quoteChar, err := dialect.QuoteChar(explore.TargetDatabase)
	if err != nil {
		errs = append(errs, ValidationError{
			Field:   "target_database",
			Message: err.Error(),
			Code:    ErrUnsupportedWarehouse,
		})
	}

	// owners maps each field id to the first table.field that produced it.
	owners := make(map[ir.FieldID]string)
	claim := func(path string, id ir.FieldID, ref string) {
		// E206: ids must be unique across tables
		if prev, ok := owners[id]; ok {
			errs = append(errs, ValidationError{
				Field:   path,
				Message: fmt.Sprintf("field %s resolves to id %q already used by %s", ref, id, prev),
				Code:    ErrDuplicateFieldID,
			})
			return
		}
		owners[id] = ref
	}

	for _, tableName := range explore.TableNames() {
		table := explore.Tables[tableName]
		tablePath := "tables." + tableName
		if table == nil {
			continue
		}
		errs = append(errs, checkName(tablePath, tableName, table.Name)...)

		for _, name := range slices.Sorted(maps.Keys(table.Dimensions)) {
			dim := table.Dimensions[name]
			path := tablePath + ".dimensions." + name
			errs = append(errs, checkName(path, name, dim.Name)...)

			// E204: dimension type
			if !ir.ValidDimensionTypes[dim.Type] {
				errs = append(errs, ValidationError{
					Field:   path + ".type",
					Message: fmt.Sprintf("invalid dimension type %q for field %q", dim.Type, name),
					Code:    ErrInvalidDimensionType,
				})
			}
			claim(path, ir.FieldIDFor(tableName, name), tableName+"."+name)
		}

		for _, name := range slices.Sorted(maps.Keys(table.Metrics)) {
			path := tablePath + ".metrics." + name
			errs = append(errs, checkName(path, name, table.Metrics[name].Name)...)
			claim(path, ir.FieldIDFor(tableName, name), tableName+"."+name)
		}
	}

	// Metric SQL is checked last so it sees the complete field catalog.
	fields := explore.FieldIDs()
	for _, tableName := range explore.TableNames() {
		table := explore.Tables[tableName]
		if table == nil {
			continue
		}
		for _, name := range slices.Sorted(maps.Keys(table.Metrics)) {
			metric := table.Metrics[name]
			path := "tables." + tableName + ".metrics." + name

			// E205: metric type
			if !ir.ValidMetricTypes[metric.Type] {
				errs = append(errs, ValidationError{
					Field:   path + ".type",
					Message: fmt.Sprintf("invalid metric type %q for field %q", metric.Type, name),
					Code:    ErrInvalidMetricType,
				})
				continue
			}
			if err != nil {
				continue
			}

			// E208: metric SQL must compile
			if _, sqlErr := CompileMetricSQL(metric, fields, quoteChar); sqlErr != nil {
				msg := sqlErr.Error()
				if ce, ok := sqlErr.(*CompileError); ok {
					msg = ce.Message
				}
				errs = append(errs, ValidationError{
					Field:   path + ".sql",
					Message: msg,
					Code:    ErrInvalidMetricSQL,
				})
			}
		}
	}

	return errs
}

// checkName validates a catalog key against the name stored under it.
func checkName(path, key, declared string) []ValidationError {
	var errs []ValidationError

	// E209: declared name must match its key
	if declared != key {
		errs = append(errs, ValidationError{
			Field:   path + ".name",
			Message: fmt.Sprintf("declared name %q does not match key %q", declared, key),
			Code:    ErrNameMismatch,
		})
	}

	// E210: key must be usable inside ${table.field}
	if !identifierPattern.MatchString(key) {
		errs = append(errs, ValidationError{
			Field:   path,
			Message: fmt.Sprintf("name %q must contain only letters, digits and underscores", key),
			Code:    ErrInvalidIdentifier,
		})
	}

	return errs
}

func validateMetricQuery(q *ir.MetricQuery) []ValidationError {
	var errs []ValidationError

	// E222: limit
	if q.Limit < 0 {
		errs = append(errs, ValidationError{
			Field:   "limit",
			Message: fmt.Sprintf("limit must be non-negative, got %d", q.Limit),
			Code:    ErrNegativeLimit,
		})
	}

	calcNames := make(map[string]bool)
	for i, calc := range q.TableCalculations {
		path := fmt.Sprintf("table_calculations[%d].name", i)

		// E220: name required
		if strings.TrimSpace(calc.Name) == "" {
			errs = append(errs, ValidationError{
				Field:   path,
				Message: "table calculation name is required",
				Code:    ErrCalculationNameEmpty,
			})
			continue
		}

		// E221: calculation names are unique
		if calcNames[calc.Name] {
			errs = append(errs, ValidationError{
				Field:   path,
				Message: fmt.Sprintf("duplicate table calculation name: %q", calc.Name),
				Code:    ErrDuplicateCalculation,
			})
		}
		calcNames[calc.Name] = true
	}

	for i, am := range q.AdditionalMetrics {
		// E223: additional metric identity
		if strings.TrimSpace(am.Name) == "" || strings.TrimSpace(am.Table) == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("additional_metrics[%d]", i),
				Message: "additional metric requires both name and table",
				Code:    ErrAdditionalMetricEmpty,
			})
		}
	}

	return errs
}
