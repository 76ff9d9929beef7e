package compiler

import (
	"fmt"
	"strings"

	"github.com/ataft/lightdash/internal/ir"
)

// exprScope names the expression being compiled in error messages.
type exprScope struct {
	field   string
	subject string
	missing string
}

// refResolver returns the SQL for a raw reference, or the kind of failure.
type refResolver func(ref string) (string, ErrorKind)

// compileTemplate substitutes every placeholder of template left to right.
// The first reference that fails to resolve aborts the compile.
func compileTemplate(template string, scope exprScope, resolve refResolver) (string, error) {
	var b strings.Builder
	b.Grow(len(template))
	for _, seg := range ParseTemplate(template) {
		if !seg.IsRef {
			b.WriteString(seg.Text)
			continue
		}
		sql, kind := resolve(seg.Text)
		switch kind {
		case "":
			b.WriteString(sql)
		case KindMalformedReference:
			return "", &CompileError{
				Kind:  kind,
				Field: scope.field,
				Message: fmt.Sprintf(
					"%s contains an invalid reference: %s. References must be of the format \"table.field\"",
					scope.subject, seg.Text),
				Ref:    seg.Text,
				Offset: seg.Offset,
			}
		default:
			return "", &CompileError{
				Kind:    kind,
				Field:   scope.field,
				Message: fmt.Sprintf("%s contains a reference %s to a field that %s", scope.subject, seg.Text, scope.missing),
				Ref:     seg.Text,
				Offset:  seg.Offset,
			}
		}
	}
	return b.String(), nil
}

// fieldResolver resolves table.field references against valid, wrapping
// the field id in quoteChar.
func fieldResolver(valid *ir.FieldSet, quoteChar string) refResolver {
	return func(ref string) (string, ErrorKind) {
		id, err := ResolveReference(ref)
		if err != nil {
			return "", KindMalformedReference
		}
		if !valid.Contains(id) {
			return "", KindUnresolvedReference
		}
		return quoteChar + string(id) + quoteChar, ""
	}
}

// CompileExpression replaces every ${table.field} placeholder in template
// with the quoted field id. Each id must be in valid.
// A template with no placeholders is returned unchanged.
func CompileExpression(template string, valid *ir.FieldSet, quoteChar string) (string, error) {
	scope := exprScope{
		subject: "Expression",
		missing: "isn't in the set of valid fields",
	}
	return compileTemplate(template, scope, fieldResolver(valid, quoteChar))
}
