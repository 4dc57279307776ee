package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/lexcodex/codebase/framework"
)

// RunRecord summarizes one finished inspection.
type RunRecord struct {
	ID         string               `json:"id"`
	StartedAt  time.Time            `json:"started_at"`
	FinishedAt time.Time            `json:"finished_at"`
	Projects   int                  `json:"projects"`
	Volume     framework.CodeVolume `json:"volume"`
	Errors     int                  `json:"errors"`
}

// ProjectSnapshot is a project's statistics as recorded by one run.
type ProjectSnapshot struct {
	RunID      string                          `json:"run_id"`
	Title      string                          `json:"title"`
	IsPublic   bool                            `json:"is_public"`
	ScannedAt  time.Time                       `json:"scanned_at"`
	Volume     framework.CodeVolume            `json:"volume"`
	Errors     int                             `json:"errors"`
	Extensions map[string]framework.CodeVolume `json:"extensions,omitempty"`
}

// HistoryStore records every run in SQLite so volume can be compared over
// time.
type HistoryStore struct {
	db *sql.DB
}

// NewHistoryStore opens or creates the database at dbPath. ":memory:" is
// accepted for tests.
func NewHistoryStore(dbPath string) (*HistoryStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	// A single connection keeps ":memory:" databases shared and serializes
	// writers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, err
	}
	store := &HistoryStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *HistoryStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP NOT NULL,
		projects INTEGER NOT NULL,
		lines INTEGER NOT NULL,
		bytes INTEGER NOT NULL,
		files INTEGER NOT NULL,
		errors INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS project_stats (
		run_id TEXT NOT NULL,
		title TEXT NOT NULL,
		is_public BOOLEAN NOT NULL,
		scanned_at TIMESTAMP,
		lines INTEGER NOT NULL,
		bytes INTEGER NOT NULL,
		files INTEGER NOT NULL,
		errors INTEGER NOT NULL,
		PRIMARY KEY (run_id, title),
		FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
	);
	CREATE TABLE IF NOT EXISTS extension_stats (
		run_id TEXT NOT NULL,
		title TEXT NOT NULL,
		extension TEXT NOT NULL,
		lines INTEGER NOT NULL,
		bytes INTEGER NOT NULL,
		files INTEGER NOT NULL,
		PRIMARY KEY (run_id, title, extension),
		FOREIGN KEY(run_id, title) REFERENCES project_stats(run_id, title) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_project_stats_title ON project_stats(title);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close releases the database.
func (s *HistoryStore) Close() error {
	return s.db.Close()
}

// Record stores a finished run and the per-project statistics it produced.
// Recording the same run twice replaces the earlier rows.
func (s *HistoryStore) Record(ctx context.Context, runID string, startedAt, finishedAt time.Time, projects []framework.Project) error {
	if runID == "" {
		return errors.New("run id required")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	total := framework.Summarize(projects).All
	if _, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, runID); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, finished_at, projects, lines, bytes, files, errors)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, startedAt.UTC(), finishedAt.UTC(), len(projects),
		total.Volume.Lines, total.Volume.Bytes, total.Volume.Files, len(total.Errors))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	projectStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO project_stats (run_id, title, is_public, scanned_at, lines, bytes, files, errors)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer projectStmt.Close()
	extStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO extension_stats (run_id, title, extension, lines, bytes, files)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer extStmt.Close()

	for _, p := range projects {
		vol := p.Info.Volume
		if _, err := projectStmt.ExecContext(ctx, runID, p.Title, p.IsPublic, p.LastEdit.UTC(),
			vol.Lines, vol.Bytes, vol.Files, len(p.Info.Errors)); err != nil {
			return fmt.Errorf("insert project %s: %w", p.Title, err)
		}
		for ext, ev := range p.Info.ExtensionsVolume {
			if _, err := extStmt.ExecContext(ctx, runID, p.Title, ext, ev.Lines, ev.Bytes, ev.Files); err != nil {
				return fmt.Errorf("insert extension %s/%s: %w", p.Title, ext, err)
			}
		}
	}
	return tx.Commit()
}

// Runs returns the most recent runs, newest first. limit <= 0 returns all.
func (s *HistoryStore) Runs(ctx context.Context, limit int) ([]RunRecord, error) {
	query := `SELECT id, started_at, finished_at, projects, lines, bytes, files, errors
		FROM runs ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []RunRecord
	for rows.Next() {
		var r RunRecord
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Projects,
			&r.Volume.Lines, &r.Volume.Bytes, &r.Volume.Files, &r.Errors); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ProjectHistory returns a project's recorded snapshots, newest first,
// including per-extension volume.
func (s *HistoryStore) ProjectHistory(ctx context.Context, title string, limit int) ([]ProjectSnapshot, error) {
	query := `SELECT p.run_id, p.title, p.is_public, p.scanned_at, p.lines, p.bytes, p.files, p.errors
		FROM project_stats p JOIN runs r ON r.id = p.run_id
		WHERE p.title = ? ORDER BY r.started_at DESC`
	args := []any{title}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	var out []ProjectSnapshot
	for rows.Next() {
		var snap ProjectSnapshot
		var scanned sql.NullTime
		if err := rows.Scan(&snap.RunID, &snap.Title, &snap.IsPublic, &scanned,
			&snap.Volume.Lines, &snap.Volume.Bytes, &snap.Volume.Files, &snap.Errors); err != nil {
			rows.Close()
			return nil, err
		}
		if scanned.Valid {
			snap.ScannedAt = scanned.Time
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	// Extensions are loaded after the cursor closes; the pool has one
	// connection.
	for i := range out {
		ext, err := s.extensions(ctx, out[i].RunID, title)
		if err != nil {
			return nil, err
		}
		out[i].Extensions = ext
	}
	return out, nil
}

func (s *HistoryStore) extensions(ctx context.Context, runID, title string) (map[string]framework.CodeVolume, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT extension, lines, bytes, files FROM extension_stats
		WHERE run_id = ? AND title = ?`, runID, title)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]framework.CodeVolume)
	for rows.Next() {
		var ext string
		var vol framework.CodeVolume
		if err := rows.Scan(&ext, &vol.Lines, &vol.Bytes, &vol.Files); err != nil {
			return nil, err
		}
		out[ext] = vol
	}
	return out, rows.Err()
}

// Prune deletes all but the keep most recent runs and returns how many were
// removed.
func (s *HistoryStore) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM runs WHERE id NOT IN (
			SELECT id FROM runs ORDER BY started_at DESC LIMIT ?
		)`, keep)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
