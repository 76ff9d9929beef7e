package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ataft/lightdash/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool                       `json:"valid"`
	Explores []string                   `json:"explores,omitempty"`
	Errors   []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <explores-dir>",
		Short: "Validate explores without compiling a query",
		Long: `Validate the CUE explore definitions in a directory.

Every explore is compiled and checked. All problems are reported at once
rather than stopping at the first broken explore.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, exploresDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	result, validationErrs, err := ValidateExploresDir(exploresDir)
	if err != nil {
		// Directory problems are command errors, not validation failures.
		return formatter.Fail(ExitCommandError, compiler.ErrCodeGeneric, err)
	}
	formatter.VerboseLog("Found %d CUE file(s) in %s", result.FileCount, exploresDir)

	if len(validationErrs) > 0 {
		return outputValidationErrors(formatter, result.Names(), validationErrs)
	}

	names := result.Names()
	if formatter.IsJSON() {
		return formatter.Success(ValidationResult{Valid: true, Explores: names}, "")
	}
	return formatter.Success(nil, fmt.Sprintf("✓ All explores valid (%s)", strings.Join(names, ", ")))
}

// ValidateExploresDir loads every explore in dir and validates each one.
// The returned error is set only when the directory itself could not be
// loaded; per-explore problems are returned as validation errors.
func ValidateExploresDir(dir string) (*compiler.LoadResult, []compiler.ValidationError, error) {
	result, loadErrs := compiler.LoadExplores(dir, compiler.LoadModeCollectAll)
	if result == nil {
		return nil, nil, loadErrs[0]
	}

	var errs []compiler.ValidationError
	for _, err := range loadErrs {
		errs = append(errs, loadValidationError(err))
	}
	for _, explore := range result.Explores {
		errs = append(errs, compiler.Validate(explore)...)
	}
	return result, errs, nil
}

// loadValidationError converts an explore load error to a validation error.
func loadValidationError(err error) compiler.ValidationError {
	var le *compiler.LoadError
	if !errors.As(err, &le) {
		return compiler.ValidationError{Field: "load", Message: err.Error(), Code: compiler.ErrCodeGeneric}
	}
	ve := compiler.ValidationError{Field: "load", Message: le.Message, Code: le.Code}
	if le.Pos.IsValid() {
		ve.Line = le.Pos.Line()
	}
	return ve
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, names []string, errs []compiler.ValidationError) error {
	exitErr := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	exitErr.reported = true

	if formatter.IsJSON() {
		err := formatter.encode(CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Explores: names, Errors: errs},
			Error:  &CLIError{Code: errs[0].Code, Message: errs[0].Message},
		})
		if err != nil {
			return err
		}
		return exitErr
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}
	return exitErr
}
