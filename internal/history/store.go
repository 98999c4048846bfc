// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package history persists pipeline run records in a SQLite database so that
// past runs can be listed, inspected, exported, and resumed.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/content-engine/pkg/types"
)

const (
	dbFile       = "history.db"
	defaultLimit = 20
)

// ErrNotFound is returned by Get for an unknown run id.
var ErrNotFound = errors.New("run not found")

// Store manages the run history database.
type Store struct {
	db  *sql.DB
	dir string
}

// Open opens or creates dir/history.db and its schema.
func Open(cfg types.HistoryConfig) (*Store, error) {
	if cfg.Dir == "" {
		return nil, errors.New("history directory not configured")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}

	dbPath := filepath.Join(cfg.Dir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, dir: cfg.Dir}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return filepath.Join(s.dir, dbFile)
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			pipeline TEXT NOT NULL,
			topic TEXT NOT NULL,
			backend TEXT,
			model TEXT,
			status TEXT NOT NULL,
			failed_stage TEXT,
			error TEXT,
			started_at TEXT NOT NULL,
			duration_ms INTEGER,
			state TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS stage_runs (
			run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			idx INTEGER NOT NULL,
			name TEXT NOT NULL,
			status TEXT NOT NULL,
			duration_ms INTEGER,
			error TEXT,
			PRIMARY KEY (run_id, idx)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Record stores rec and its stage log in one transaction and returns the new
// run id.
func (s *Store) Record(ctx context.Context, rec types.RunRecord) (int64, error) {
	state, err := json.Marshal(rec.State)
	if err != nil {
		return 0, fmt.Errorf("marshaling state: %w", err)
	}
	started := rec.StartedAt
	if started.IsZero() {
		started = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO runs (pipeline, topic, backend, model, status, failed_stage, error, started_at, duration_ms, state)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Pipeline, rec.Topic, rec.Backend, rec.Model, string(rec.Status),
		rec.FailedStage, rec.Error, started.UTC().Format(time.RFC3339Nano), rec.DurationMS, string(state),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading run id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO stage_runs (run_id, idx, name, status, duration_ms, error) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("preparing stage insert: %w", err)
	}
	defer stmt.Close()

	for _, st := range rec.Stages {
		if _, err := stmt.ExecContext(ctx, id, st.Index, st.Name, st.Status, st.DurationMS, st.Error); err != nil {
			return 0, fmt.Errorf("inserting stage %s: %w", st.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing run: %w", err)
	}
	return id, nil
}

// ListOptions filters List results.
type ListOptions struct {
	// Limit caps the number of runs returned (default 20, negative for all).
	Limit int
	// Status keeps only runs with this outcome.
	Status types.RunStatus
	// Topic keeps runs whose topic contains this substring (case-insensitive).
	Topic string
}

// List returns run summaries, newest first. State and stage logs are not
// loaded; use Get for a single run's details.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]types.RunRecord, error) {
	var (
		where []string
		args  []any
	)
	if opts.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(opts.Status))
	}
	if opts.Topic != "" {
		where = append(where, "topic LIKE ? ESCAPE '\\'")
		args = append(args, "%"+escapeLike(opts.Topic)+"%")
	}

	query := `SELECT id, pipeline, topic, backend, model, status, failed_stage, error, started_at, duration_ms FROM runs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id DESC"

	limit := opts.Limit
	if limit == 0 {
		limit = defaultLimit
	}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var out []types.RunRecord
	for rows.Next() {
		rec, err := scanRun(rows, false)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Get returns one run with its state and stage log.
func (s *Store) Get(ctx context.Context, id int64) (*types.RunRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, pipeline, topic, backend, model, status, failed_stage, error, started_at, duration_ms, state
		FROM runs WHERE id = ?`, id)
	rec, err := scanRun(row, true)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	stages, err := s.stages(ctx, id)
	if err != nil {
		return nil, err
	}
	rec.Stages = stages
	return &rec, nil
}

func (s *Store) stages(ctx context.Context, runID int64) ([]types.StageRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT idx, name, status, duration_ms, error FROM stage_runs WHERE run_id = ? ORDER BY idx`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying stages: %w", err)
	}
	defer rows.Close()

	var out []types.StageRecord
	for rows.Next() {
		var (
			st      types.StageRecord
			errText sql.NullString
		)
		if err := rows.Scan(&st.Index, &st.Name, &st.Status, &st.DurationMS, &errText); err != nil {
			return nil, fmt.Errorf("scanning stage: %w", err)
		}
		st.Error = errText.String
		out = append(out, st)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner, withState bool) (types.RunRecord, error) {
	var (
		rec                               types.RunRecord
		status, started                   string
		backend, model, failedStage, errS sql.NullString
		state                             sql.NullString
	)
	dest := []any{&rec.ID, &rec.Pipeline, &rec.Topic, &backend, &model, &status, &failedStage, &errS, &started, &rec.DurationMS}
	if withState {
		dest = append(dest, &state)
	}
	if err := sc.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rec, err
		}
		return rec, fmt.Errorf("scanning run: %w", err)
	}

	rec.Backend = backend.String
	rec.Model = model.String
	rec.Status = types.RunStatus(status)
	rec.FailedStage = failedStage.String
	rec.Error = errS.String
	if t, err := time.Parse(time.RFC3339Nano, started); err == nil {
		rec.StartedAt = t
	}
	if withState && state.Valid && state.String != "" {
		if err := json.Unmarshal([]byte(state.String), &rec.State); err != nil {
			return rec, fmt.Errorf("decoding state of run %d: %w", rec.ID, err)
		}
	}
	return rec, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
