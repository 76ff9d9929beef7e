package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ataft/lightdash/internal/compiler"
	"github.com/ataft/lightdash/internal/store"
)

// SyncOptions holds flags for the explores sync command.
type SyncOptions struct {
	*RootOptions
	Prune bool // delete cached explores that are no longer defined
}

// SyncResult reports what explores sync changed.
type SyncResult struct {
	Project   string   `json:"project"`
	Written   []string `json:"written"`
	Unchanged []string `json:"unchanged"`
	Pruned    []string `json:"pruned,omitempty"`
}

// ExploreSummary is one row of explores list.
type ExploreSummary struct {
	Name           string `json:"name"`
	Label          string `json:"label"`
	BaseTable      string `json:"base_table"`
	TargetDatabase string `json:"target_database"`
	Tables         int    `json:"tables"`
	Fingerprint    string `json:"fingerprint"`
}

// NewExploresCommand creates the explores command group.
func NewExploresCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "explores",
		Short: "Manage the cached explores of a project",
	}
	cmd.AddCommand(newExploresSyncCommand(rootOpts))
	cmd.AddCommand(newExploresListCommand(rootOpts))
	return cmd
}

func newExploresSyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sync <explores-dir>",
		Short: "Compile explores from CUE and cache them in the database",
		Long: `Compile every explore in <explores-dir> and store it under --project.

Nothing is written unless every explore compiles and validates. Explores
whose content is unchanged keep their stored revision.

Examples:
  lightdash explores sync ./explores --db lightdash.db
  lightdash explores sync ./explores --project analytics --prune`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExploresSync(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Prune, "prune", false, "delete cached explores missing from the directory")
	return cmd
}

func runExploresSync(opts *SyncOptions, exploresDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	result, validationErrs, err := ValidateExploresDir(exploresDir)
	if err != nil {
		return formatter.Fail(ExitCommandError, compiler.ErrCodeGeneric, err)
	}
	if len(validationErrs) > 0 {
		return outputValidationErrors(formatter, result.Names(), validationErrs)
	}

	st, err := openStore(opts.RootOptions)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, err)
	}
	defer st.Close()

	ctx := cmd.Context()
	res := SyncResult{Project: opts.Project, Written: []string{}, Unchanged: []string{}}
	defined := make(map[string]bool, len(result.Explores))
	for _, explore := range result.Explores {
		defined[explore.Name] = true
		written, err := st.SaveExplore(ctx, opts.Project, explore)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, err)
		}
		if written {
			res.Written = append(res.Written, explore.Name)
		} else {
			res.Unchanged = append(res.Unchanged, explore.Name)
		}
	}

	if opts.Prune {
		cached, err := st.ListExplores(ctx, opts.Project)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, err)
		}
		for _, rec := range cached {
			if defined[rec.Name] {
				continue
			}
			if err := st.DeleteExplore(ctx, opts.Project, rec.Name); err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeStore, err)
			}
			res.Pruned = append(res.Pruned, rec.Name)
		}
	}

	slog.Info("explores synced",
		"project", opts.Project,
		"written", len(res.Written),
		"unchanged", len(res.Unchanged),
		"pruned", len(res.Pruned),
	)
	return formatter.Success(res, formatSync(res))
}

func formatSync(r SyncResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "✓ Synced explores for project %s", r.Project)
	for _, name := range r.Written {
		fmt.Fprintf(&b, "\n  + %s", name)
	}
	for _, name := range r.Unchanged {
		fmt.Fprintf(&b, "\n  = %s", name)
	}
	for _, name := range r.Pruned {
		fmt.Fprintf(&b, "\n  - %s", name)
	}
	return b.String()
}

func newExploresListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List the cached explores of a project",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExploresList(rootOpts, cmd)
		},
	}
}

func runExploresList(opts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	st, err := openStore(opts)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, err)
	}
	defer st.Close()

	records, err := st.ListExplores(cmd.Context(), opts.Project)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, err)
	}

	summaries := make([]ExploreSummary, 0, len(records))
	for _, rec := range records {
		summaries = append(summaries, ExploreSummary{
			Name:           rec.Name,
			Label:          rec.Explore.Label,
			BaseTable:      rec.Explore.BaseTable,
			TargetDatabase: string(rec.Explore.TargetDatabase),
			Tables:         len(rec.Explore.Tables),
			Fingerprint:    rec.Fingerprint,
		})
	}

	if len(summaries) == 0 {
		return formatter.Success(summaries, fmt.Sprintf("No explores cached for project %s.", opts.Project))
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Explores in project %s:", opts.Project)
	for _, s := range summaries {
		fmt.Fprintf(&b, "\n  %s (%s, base table %s, %d table(s))", s.Name, s.TargetDatabase, s.BaseTable, s.Tables)
	}
	return formatter.Success(summaries, b.String())
}

// storeCode picks the error code for a store failure.
func storeCode(err error) string {
	if errors.Is(err, store.ErrNotFound) {
		return ErrCodeNotFound
	}
	return ErrCodeStore
}
