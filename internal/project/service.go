// Package project compiles metric queries for a project's cached explores
// and saved charts.
//
// The service is the only layer that logs or touches storage around a
// compile. The compiler itself stays a pure function of (explore, query).
package project

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ataft/lightdash/internal/compiler"
	"github.com/ataft/lightdash/internal/ir"
	"github.com/ataft/lightdash/internal/store"
)

// Repository is the storage the service reads from.
// Implemented by *store.Store.
type Repository interface {
	GetExplore(ctx context.Context, project, name string) (store.ExploreRecord, error)
	GetChart(ctx context.Context, chartUUID string) (store.Chart, error)
	GetChartVersion(ctx context.Context, chartUUID string, version int) (store.Chart, error)
}

// QueryBuilder turns a compiled query into a dialect-specific SQL string.
// Filters, sorts and limit are its concern, not the compiler's.
type QueryBuilder interface {
	BuildQuery(explore *ir.Explore, q *ir.CompiledMetricQuery) (string, error)
}

// Warehouse executes SQL against a project's warehouse connection.
type Warehouse interface {
	RunQuery(ctx context.Context, sql string) ([]map[string]any, error)
}

// ErrNoWarehouse is returned by Run when no builder or warehouse is configured.
var ErrNoWarehouse = errors.New("no query builder or warehouse configured")

// Result is a compiled query together with what it was compiled against.
type Result struct {
	Project            string                  `json:"project"`
	Explore            string                  `json:"explore"`
	ExploreFingerprint string                  `json:"explore_fingerprint"`
	ChartUUID          string                  `json:"chart_uuid,omitempty"`
	ChartVersion       int                     `json:"chart_version,omitempty"`
	Fingerprint        string                  `json:"fingerprint"`
	Query              *ir.CompiledMetricQuery `json:"query"`
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithWarehouse wires the SQL builder and warehouse used by Run.
func WithWarehouse(b QueryBuilder, w Warehouse) Option {
	return func(s *Service) {
		s.builder = b
		s.warehouse = w
	}
}

// Service compiles queries against stored explores.
// Safe for concurrent use if the Repository is.
type Service struct {
	repo      Repository
	logger    *slog.Logger
	builder   QueryBuilder
	warehouse Warehouse
}

// NewService creates a Service over repo.
func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{repo: repo, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CompileQuery compiles q against the named explore of a project.
// Compile errors are returned wrapped; compiler.IsKind still matches them.
func (s *Service) CompileQuery(ctx context.Context, project, exploreName string, q ir.MetricQuery) (*Result, error) {
	res, _, err := s.compile(ctx, project, exploreName, q)
	return res, err
}

func (s *Service) compile(ctx context.Context, project, exploreName string, q ir.MetricQuery) (*Result, *ir.Explore, error) {
	rec, err := s.repo.GetExplore(ctx, project, exploreName)
	if err != nil {
		return nil, nil, fmt.Errorf("load explore: %w", err)
	}

	compiled, err := compiler.CompileMetricQuery(rec.Explore, q)
	if err != nil {
		s.logger.Warn("metric query compile failed",
			"project", project,
			"explore", exploreName,
			"kind", compiler.KindOf(err),
			"error", err,
		)
		return nil, nil, fmt.Errorf("compile %s/%s: %w", project, exploreName, err)
	}

	fp, err := ir.CompiledQueryFingerprint(compiled)
	if err != nil {
		return nil, nil, fmt.Errorf("fingerprint compiled query: %w", err)
	}

	s.logger.Info("metric query compiled",
		"project", project,
		"explore", exploreName,
		"dimensions", len(q.Dimensions),
		"metrics", len(q.Metrics),
		"table_calculations", len(compiled.CompiledTableCalculations),
		"additional_metrics", len(compiled.CompiledAdditionalMetrics),
		"fingerprint", fp,
	)

	return &Result{
		Project:            project,
		Explore:            exploreName,
		ExploreFingerprint: rec.Fingerprint,
		Fingerprint:        fp,
		Query:              compiled,
	}, rec.Explore, nil
}

// CompileChart compiles the latest version of a saved chart.
func (s *Service) CompileChart(ctx context.Context, chartUUID string) (*Result, error) {
	chart, err := s.repo.GetChart(ctx, chartUUID)
	if err != nil {
		return nil, fmt.Errorf("load chart: %w", err)
	}
	return s.compileChart(ctx, chart)
}

// CompileChartVersion compiles one specific version of a saved chart.
func (s *Service) CompileChartVersion(ctx context.Context, chartUUID string, version int) (*Result, error) {
	chart, err := s.repo.GetChartVersion(ctx, chartUUID, version)
	if err != nil {
		return nil, fmt.Errorf("load chart version %d: %w", version, err)
	}
	return s.compileChart(ctx, chart)
}

func (s *Service) compileChart(ctx context.Context, chart store.Chart) (*Result, error) {
	s.logger.Debug("compiling saved chart",
		"chart", chart.UUID,
		"version", chart.Version,
		"explore", chart.ExploreName,
	)

	res, err := s.CompileQuery(ctx, chart.Project, chart.ExploreName, chart.Query)
	if err != nil {
		return nil, fmt.Errorf("chart %s: %w", chart.UUID, err)
	}
	res.ChartUUID = chart.UUID
	res.ChartVersion = chart.Version
	return res, nil
}

// Run compiles q, builds SQL for it and executes it on the warehouse.
func (s *Service) Run(ctx context.Context, project, exploreName string, q ir.MetricQuery) ([]map[string]any, error) {
	if s.builder == nil || s.warehouse == nil {
		return nil, ErrNoWarehouse
	}

	res, explore, err := s.compile(ctx, project, exploreName, q)
	if err != nil {
		return nil, err
	}

	sql, err := s.builder.BuildQuery(explore, res.Query)
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.warehouse.RunQuery(ctx, sql)
	if err != nil {
		s.logger.Error("warehouse query failed",
			"project", project,
			"explore", exploreName,
			"fingerprint", res.Fingerprint,
			"error", err,
		)
		return nil, fmt.Errorf("run query: %w", err)
	}

	s.logger.Info("warehouse query finished",
		"project", project,
		"explore", exploreName,
		"rows", len(rows),
	)
	return rows, nil
}
