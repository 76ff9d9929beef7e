package compiler

import (
	"errors"
	"fmt"

	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// ErrorKind distinguishes the failure conditions a compile can surface.
type ErrorKind string

const (
	KindMalformedReference   ErrorKind = "malformed_reference"
	KindDuplicateName        ErrorKind = "duplicate_name"
	KindUnresolvedReference  ErrorKind = "unresolved_reference"
	KindUnknownTable         ErrorKind = "unknown_table"
	KindUnsupportedWarehouse ErrorKind = "unsupported_warehouse"
	KindInvalidMetric        ErrorKind = "invalid_metric"
	KindInvalidExplore       ErrorKind = "invalid_explore"
	KindCUE                  ErrorKind = "cue"
)

// CompileError is the single error type returned by the compiler.
//
// Ref and Offset are set for reference errors: Ref is the raw text between
// "${" and "}" and Offset is the byte offset of the "$" in the template.
// Pos is set only for errors raised while loading CUE explore definitions.
type CompileError struct {
	Kind    ErrorKind
	Field   string
	Message string
	Ref     string
	Offset  int
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// IsKind reports whether err is (or wraps) a CompileError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var ce *CompileError
	if !errors.As(err, &ce) {
		return false
	}
	return ce.Kind == kind
}

// KindOf returns the kind of a CompileError in err's chain, or "".
func KindOf(err error) ErrorKind {
	var ce *CompileError
	if !errors.As(err, &ce) {
		return ""
	}
	return ce.Kind
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Only the first error is reported; the loader is fail-fast.
	first := errs[0]
	ce := &CompileError{
		Kind:    KindCUE,
		Field:   "cue",
		Message: first.Error(),
	}
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		ce.Pos = positions[0]
	}
	return ce
}
