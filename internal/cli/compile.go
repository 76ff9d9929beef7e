package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ataft/lightdash/internal/compiler"
	"github.com/ataft/lightdash/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Explore string // explore to compile against
	Output  string // output file path
}

// CompilationResult is the compiled query together with its fingerprint.
type CompilationResult struct {
	Explore     string                  `json:"explore"`
	Fingerprint string                  `json:"fingerprint"`
	Query       *ir.CompiledMetricQuery `json:"query"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <explores-dir> <query-file>",
		Short: "Compile a metric query against an explore",
		Long: `Compile the table calculations and additional metrics of a metric query.

Explores are loaded from the CUE files in <explores-dir>. The query file is
YAML (or JSON) with dimensions, metrics, filters, sorts, limit,
table_calculations and additional_metrics. Compilation stops at the first
invalid table calculation or additional metric.

Examples:
  lightdash compile ./explores query.yaml --explore orders
  lightdash compile ./explores query.yaml --explore orders --format json -o compiled.json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Explore, "explore", "e", "", "explore name (required)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")
	_ = cmd.MarkFlagRequired("explore")

	return cmd
}

func runCompile(opts *CompileOptions, exploresDir, queryFile string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	explore, err := loadExplore(exploresDir, opts.Explore)
	if err != nil {
		return formatter.Fail(ExitCommandError, compiler.ErrCodeGeneric, err)
	}
	formatter.VerboseLog("Loaded explore %s (%d tables)", explore.Name, len(explore.Tables))

	q, err := LoadQuery(queryFile)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeQueryFile, err)
	}

	compiled, err := compiler.CompileMetricQuery(explore, q)
	if err != nil {
		slog.Debug("compile failed", "explore", explore.Name, "kind", compiler.KindOf(err), "error", err)
		return formatter.Fail(ExitFailure, compiler.ErrCodeGeneric, err)
	}

	fp, err := ir.CompiledQueryFingerprint(compiled)
	if err != nil {
		return formatter.Fail(ExitCommandError, compiler.ErrCodeGeneric, err)
	}
	result := &CompilationResult{Explore: explore.Name, Fingerprint: fp, Query: compiled}

	if opts.Output != "" {
		if err := writeJSONFile(result, opts.Output); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, err)
		}
	}

	return formatter.Success(result, formatCompilation(result, opts.Output))
}

// formatCompilation renders a compiled query for text output.
func formatCompilation(result *CompilationResult, outputFile string) string {
	var b strings.Builder
	q := result.Query
	fmt.Fprintf(&b, "✓ Compiled query against explore %s\n", result.Explore)
	fmt.Fprintf(&b, "  %d dimension(s), %d metric(s)\n",
		len(q.Dimensions), len(q.Metrics))

	if len(q.CompiledTableCalculations) > 0 {
		fmt.Fprintln(&b, "\nTable calculations:")
		for _, tc := range q.CompiledTableCalculations {
			fmt.Fprintf(&b, "  %s: %s\n", tc.Name, tc.CompiledSQL)
		}
	}
	if len(q.CompiledAdditionalMetrics) > 0 {
		fmt.Fprintln(&b, "\nAdditional metrics:")
		for _, m := range q.CompiledAdditionalMetrics {
			fmt.Fprintf(&b, "  %s: %s\n", m.FieldID(), m.CompiledSQL)
		}
	}

	fmt.Fprintf(&b, "\nFingerprint: %s", result.Fingerprint)
	if outputFile != "" {
		fmt.Fprintf(&b, "\nWrote compiled query to %s", outputFile)
	}
	return b.String()
}

// writeJSONFile writes v to filename as indented JSON.
func writeJSONFile(v any, filename string) error {
	// Canonical JSON is used only for hashing; files are indented for reading.
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling output: %w", err)
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}
