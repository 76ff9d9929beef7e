package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ataft/lightdash/internal/compiler"
	"github.com/ataft/lightdash/internal/project"
	"github.com/ataft/lightdash/internal/store"
)

// ChartSaveOptions holds flags for chart save.
type ChartSaveOptions struct {
	*RootOptions
	Name    string // chart name (new charts only)
	Explore string // explore the chart queries (new charts only)
	Chart   string // existing chart uuid; adds a version instead of creating
}

// ChartSummary describes one version of a saved chart.
type ChartSummary struct {
	UUID        string `json:"uuid"`
	Name        string `json:"name"`
	Explore     string `json:"explore"`
	Version     int    `json:"version"`
	Fingerprint string `json:"fingerprint"`
}

func summarizeChart(c store.Chart) ChartSummary {
	return ChartSummary{
		UUID:        c.UUID,
		Name:        c.Name,
		Explore:     c.ExploreName,
		Version:     c.Version,
		Fingerprint: c.Fingerprint,
	}
}

// NewChartCommand creates the chart command group.
func NewChartCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chart",
		Short: "Save, list and compile saved charts",
	}
	cmd.AddCommand(newChartSaveCommand(rootOpts))
	cmd.AddCommand(newChartListCommand(rootOpts))
	cmd.AddCommand(newChartCompileCommand(rootOpts))
	return cmd
}

func newChartSaveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ChartSaveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "save <query-file>",
		Short: "Save a metric query as a chart",
		Long: `Save a metric query as a new chart, or as the next version of an
existing chart when --chart is given.

The query is stored as written. It is compiled when the chart is compiled,
against whatever explore is cached at that time.

Examples:
  lightdash chart save query.yaml --name "Revenue by status" --explore orders
  lightdash chart save query.yaml --chart 0190c7e2-...`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChartSave(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "", "chart name")
	cmd.Flags().StringVarP(&opts.Explore, "explore", "e", "", "explore name")
	cmd.Flags().StringVar(&opts.Chart, "chart", "", "existing chart uuid to add a version to")
	cmd.MarkFlagsMutuallyExclusive("chart", "name")
	cmd.MarkFlagsMutuallyExclusive("chart", "explore")
	return cmd
}

func runChartSave(opts *ChartSaveOptions, queryFile string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	if opts.Chart == "" && (opts.Name == "" || opts.Explore == "") {
		return formatter.Fail(ExitCommandError, ErrCodeQueryFile,
			fmt.Errorf("--name and --explore are required when creating a chart"))
	}

	q, err := LoadQuery(queryFile)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeQueryFile, err)
	}

	st, err := openStore(opts.RootOptions)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, err)
	}
	defer st.Close()

	ctx := cmd.Context()
	var chart store.Chart
	if opts.Chart != "" {
		chart, err = st.AddChartVersion(ctx, opts.Chart, q)
	} else {
		chart, err = st.CreateChart(ctx, opts.Project, opts.Name, opts.Explore, q)
	}
	if err != nil {
		return formatter.Fail(ExitCommandError, storeCode(err), err)
	}

	summary := summarizeChart(chart)
	return formatter.Success(summary,
		fmt.Sprintf("✓ Saved chart %q version %d\n  uuid: %s", summary.Name, summary.Version, summary.UUID))
}

func newChartListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List the saved charts of a project",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChartList(rootOpts, cmd)
		},
	}
}

func runChartList(opts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	st, err := openStore(opts)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, err)
	}
	defer st.Close()

	charts, err := st.ListCharts(cmd.Context(), opts.Project)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, err)
	}

	summaries := make([]ChartSummary, 0, len(charts))
	for _, c := range charts {
		summaries = append(summaries, summarizeChart(c))
	}
	if len(summaries) == 0 {
		return formatter.Success(summaries, fmt.Sprintf("No charts saved in project %s.", opts.Project))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Charts in project %s:", opts.Project)
	for _, s := range summaries {
		fmt.Fprintf(&b, "\n  %s  %s (explore %s, v%d)", s.UUID, s.Name, s.Explore, s.Version)
	}
	return formatter.Success(summaries, b.String())
}

func newChartCompileCommand(rootOpts *RootOptions) *cobra.Command {
	var version int
	cmd := &cobra.Command{
		Use:   "compile <chart-uuid>",
		Short: "Compile a saved chart",
		Long: `Compile the latest version of a saved chart, or the version given by
--version, against the explore cached for its project. Run "explores sync"
first to refresh the cache.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChartCompile(rootOpts, args[0], version, cmd)
		},
	}
	cmd.Flags().IntVar(&version, "version", 0, "chart version to compile (default latest)")
	return cmd
}

func runChartCompile(opts *RootOptions, chartUUID string, version int, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	if version < 0 {
		return formatter.Fail(ExitCommandError, compiler.ErrCodeGeneric,
			fmt.Errorf("--version must be positive, got %d", version))
	}

	st, err := openStore(opts)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, err)
	}
	defer st.Close()

	svc := project.NewService(st)
	var res *project.Result
	if version > 0 {
		res, err = svc.CompileChartVersion(cmd.Context(), chartUUID, version)
	} else {
		res, err = svc.CompileChart(cmd.Context(), chartUUID)
	}
	if err != nil {
		if compiler.KindOf(err) != "" {
			return formatter.Fail(ExitFailure, compiler.ErrCodeGeneric, err)
		}
		return formatter.Fail(ExitCommandError, storeCode(err), err)
	}

	formatter.VerboseLog("Compiled against explore fingerprint %s", res.ExploreFingerprint)
	text := formatCompilation(&CompilationResult{
		Explore:     res.Explore,
		Fingerprint: res.Fingerprint,
		Query:       res.Query,
	}, "")
	text = fmt.Sprintf("Chart %s version %d\n%s", res.ChartUUID, res.ChartVersion, text)
	return formatter.Success(res, text)
}
