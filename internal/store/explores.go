package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ataft/lightdash/internal/ir"
)

// ExploreRecord is a cached explore with its bookkeeping columns.
type ExploreRecord struct {
	Project     string
	Name        string
	Fingerprint string
	Seq         int64
	Explore     *ir.Explore
}

// SaveExplore inserts or replaces the cached explore for a project.
// Saving an explore whose fingerprint matches the stored one is a no-op;
// the returned bool reports whether a row was written.
func (s *Store) SaveExplore(ctx context.Context, project string, e *ir.Explore) (bool, error) {
	body, err := marshalExplore(e)
	if err != nil {
		return false, fmt.Errorf("save explore: %w", err)
	}
	fp, err := ir.ExploreFingerprint(e)
	if err != nil {
		return false, fmt.Errorf("save explore: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO explores (project, name, body, fingerprint, seq)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(project, name) DO UPDATE SET
			body = excluded.body,
			fingerprint = excluded.fingerprint,
			seq = excluded.seq
		WHERE explores.fingerprint <> excluded.fingerprint
	`, project, e.Name, body, fp, s.clock.Next())
	if err != nil {
		return false, fmt.Errorf("save explore %q: %w", e.Name, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("save explore %q: %w", e.Name, err)
	}
	return n > 0, nil
}

// GetExplore returns the cached explore, or ErrNotFound.
func (s *Store) GetExplore(ctx context.Context, project, name string) (ExploreRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT project, name, body, fingerprint, seq
		FROM explores
		WHERE project = ? AND name = ?
	`, project, name)

	rec, err := scanExplore(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ExploreRecord{}, fmt.Errorf("explore %q in project %q: %w", name, project, ErrNotFound)
	}
	return rec, err
}

// ListExplores returns a project's explores ordered by name.
// Returns an empty slice (not nil) if the project has none.
func (s *Store) ListExplores(ctx context.Context, project string) ([]ExploreRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT project, name, body, fingerprint, seq
		FROM explores
		WHERE project = ?
		ORDER BY name COLLATE BINARY ASC
	`, project)
	if err != nil {
		return nil, fmt.Errorf("query explores: %w", err)
	}
	defer rows.Close()

	records := []ExploreRecord{}
	for rows.Next() {
		rec, err := scanExplore(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate explores: %w", err)
	}
	return records, nil
}

// DeleteExplore removes a cached explore. Deleting a missing explore
// returns ErrNotFound.
func (s *Store) DeleteExplore(ctx context.Context, project, name string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM explores WHERE project = ? AND name = ?
	`, project, name)
	if err != nil {
		return fmt.Errorf("delete explore %q: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete explore %q: %w", name, err)
	}
	if n == 0 {
		return fmt.Errorf("explore %q in project %q: %w", name, project, ErrNotFound)
	}
	return nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanExplore(sc scanner) (ExploreRecord, error) {
	var rec ExploreRecord
	var body string
	if err := sc.Scan(&rec.Project, &rec.Name, &body, &rec.Fingerprint, &rec.Seq); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ExploreRecord{}, err
		}
		return ExploreRecord{}, fmt.Errorf("scan explore: %w", err)
	}
	e, err := unmarshalExplore(body)
	if err != nil {
		return ExploreRecord{}, err
	}
	rec.Explore = e
	return rec, nil
}
