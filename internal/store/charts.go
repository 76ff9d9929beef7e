package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ataft/lightdash/internal/ir"
)

// Chart is a saved chart at one of its versions.
type Chart struct {
	UUID        string
	Project     string
	Name        string
	ExploreName string
	Version     int
	// Fingerprint identifies the raw query of this version.
	Fingerprint string
	CreatedSeq  int64
	Query       ir.MetricQuery
}

// CreateChart saves a new chart with q as version 1.
func (s *Store) CreateChart(ctx context.Context, project, name, exploreName string, q ir.MetricQuery) (Chart, error) {
	chart := Chart{
		UUID:        s.ids.NewID(),
		Project:     project,
		Name:        name,
		ExploreName: exploreName,
		Version:     1,
		Query:       q,
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		seq := s.clock.Next()
		_, err := tx.ExecContext(ctx, `
			INSERT INTO saved_charts (uuid, project, name, explore_name, created_seq)
			VALUES (?, ?, ?, ?, ?)
		`, chart.UUID, project, name, exploreName, seq)
		if err != nil {
			return fmt.Errorf("insert chart: %w", err)
		}
		chart.Fingerprint, chart.CreatedSeq, err = s.insertVersion(ctx, tx, chart.UUID, 1, q)
		return err
	})
	if err != nil {
		return Chart{}, fmt.Errorf("create chart %q: %w", name, err)
	}
	return chart, nil
}

// AddChartVersion appends q as the next version of a chart.
// Returns ErrNotFound if the chart does not exist.
func (s *Store) AddChartVersion(ctx context.Context, chartUUID string, q ir.MetricQuery) (Chart, error) {
	var chart Chart
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			SELECT uuid, project, name, explore_name
			FROM saved_charts WHERE uuid = ?
		`, chartUUID)
		if err := row.Scan(&chart.UUID, &chart.Project, &chart.Name, &chart.ExploreName); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("chart %q: %w", chartUUID, ErrNotFound)
			}
			return fmt.Errorf("read chart: %w", err)
		}

		var latest int
		if err := tx.QueryRowContext(ctx, `
			SELECT COALESCE(MAX(version), 0) FROM saved_chart_versions WHERE chart_uuid = ?
		`, chartUUID).Scan(&latest); err != nil {
			return fmt.Errorf("read latest version: %w", err)
		}

		chart.Version = latest + 1
		chart.Query = q
		var err error
		chart.Fingerprint, chart.CreatedSeq, err = s.insertVersion(ctx, tx, chartUUID, chart.Version, q)
		return err
	})
	if err != nil {
		return Chart{}, fmt.Errorf("add chart version: %w", err)
	}
	return chart, nil
}

func (s *Store) insertVersion(ctx context.Context, tx *sql.Tx, chartUUID string, version int, q ir.MetricQuery) (string, int64, error) {
	body, err := marshalQuery(q)
	if err != nil {
		return "", 0, err
	}
	fp, err := ir.QueryFingerprint(q)
	if err != nil {
		return "", 0, err
	}
	seq := s.clock.Next()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO saved_chart_versions (chart_uuid, version, metric_query, fingerprint, created_seq)
		VALUES (?, ?, ?, ?, ?)
	`, chartUUID, version, body, fp, seq)
	if err != nil {
		return "", 0, fmt.Errorf("insert chart version: %w", err)
	}
	return fp, seq, nil
}

// GetChart returns the latest version of a chart, or ErrNotFound.
func (s *Store) GetChart(ctx context.Context, chartUUID string) (Chart, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT c.uuid, c.project, c.name, c.explore_name,
		       v.version, v.fingerprint, v.created_seq, v.metric_query
		FROM saved_charts c
		JOIN saved_chart_versions v ON v.chart_uuid = c.uuid
		WHERE c.uuid = ?
		ORDER BY v.version DESC
		LIMIT 1
	`, chartUUID)
	return chartOrNotFound(row, chartUUID)
}

// GetChartVersion returns one specific version of a chart, or ErrNotFound.
func (s *Store) GetChartVersion(ctx context.Context, chartUUID string, version int) (Chart, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT c.uuid, c.project, c.name, c.explore_name,
		       v.version, v.fingerprint, v.created_seq, v.metric_query
		FROM saved_charts c
		JOIN saved_chart_versions v ON v.chart_uuid = c.uuid
		WHERE c.uuid = ? AND v.version = ?
	`, chartUUID, version)
	return chartOrNotFound(row, fmt.Sprintf("%s@%d", chartUUID, version))
}

// ListCharts returns the latest version of every chart in a project,
// ordered by name then uuid.
// Returns an empty slice (not nil) if the project has none.
func (s *Store) ListCharts(ctx context.Context, project string) ([]Chart, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.uuid, c.project, c.name, c.explore_name,
		       v.version, v.fingerprint, v.created_seq, v.metric_query
		FROM saved_charts c
		JOIN saved_chart_versions v ON v.chart_uuid = c.uuid
		WHERE c.project = ?
		  AND v.version = (
			SELECT MAX(version) FROM saved_chart_versions WHERE chart_uuid = c.uuid
		  )
		ORDER BY c.name COLLATE BINARY ASC, c.uuid COLLATE BINARY ASC
	`, project)
	if err != nil {
		return nil, fmt.Errorf("query charts: %w", err)
	}
	defer rows.Close()

	charts := []Chart{}
	for rows.Next() {
		chart, err := scanChart(rows)
		if err != nil {
			return nil, err
		}
		charts = append(charts, chart)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate charts: %w", err)
	}
	return charts, nil
}

func chartOrNotFound(row *sql.Row, what string) (Chart, error) {
	chart, err := scanChart(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Chart{}, fmt.Errorf("chart %q: %w", what, ErrNotFound)
	}
	return chart, err
}

func scanChart(sc scanner) (Chart, error) {
	var c Chart
	var body string
	err := sc.Scan(&c.UUID, &c.Project, &c.Name, &c.ExploreName,
		&c.Version, &c.Fingerprint, &c.CreatedSeq, &body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Chart{}, err
		}
		return Chart{}, fmt.Errorf("scan chart: %w", err)
	}
	q, err := unmarshalQuery(body)
	if err != nil {
		return Chart{}, err
	}
	c.Query = q
	return c, nil
}
