package compiler

import (
	"fmt"

	"github.com/ataft/lightdash/internal/ir"
)

// CompileTableCalculation compiles a table calculation against the ids
// selected by its query.
//
// The calculation's name must not already be a selected id; that check
// runs before any substitution. References to other table calculations or
// to additional metrics are unresolved.
func CompileTableCalculation(calc ir.TableCalculation, valid *ir.FieldSet, quoteChar string) (ir.CompiledTableCalculation, error) {
	field := "table_calculations." + calc.Name
	if valid.Contains(ir.FieldID(calc.Name)) {
		return ir.CompiledTableCalculation{}, &CompileError{
			Kind:    KindDuplicateName,
			Field:   field,
			Message: fmt.Sprintf("Table calculation has a name that already exists in the query: %s", calc.Name),
			Ref:     calc.Name,
		}
	}

	scope := exprScope{
		field:   field,
		subject: "Table calculation",
		missing: "isn't included in the query.",
	}
	sql, err := compileTemplate(calc.SQL, scope, fieldResolver(valid, quoteChar))
	if err != nil {
		return ir.CompiledTableCalculation{}, err
	}
	return ir.CompiledTableCalculation{TableCalculation: calc, CompiledSQL: sql}, nil
}
