// Package history keeps a SQLite record of task runs and their state changes.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/msageha/conductor/internal/events"
	"github.com/msageha/conductor/internal/logging"
	"github.com/msageha/conductor/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id     TEXT PRIMARY KEY,
	task       TEXT NOT NULL,
	urn        TEXT NOT NULL DEFAULT '',
	mode       TEXT NOT NULL DEFAULT '',
	timeslot   TEXT NOT NULL DEFAULT '',
	state      TEXT NOT NULL,
	progress   INTEGER NOT NULL DEFAULT 0,
	details    TEXT NOT NULL DEFAULT '',
	started_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS run_events (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id   TEXT NOT NULL,
	type     TEXT NOT NULL,
	state    TEXT NOT NULL,
	progress INTEGER NOT NULL,
	details  TEXT NOT NULL DEFAULT '',
	at       TEXT NOT NULL,
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);

CREATE INDEX IF NOT EXISTS idx_runs_task ON runs(task, started_at);
CREATE INDEX IF NOT EXISTS idx_run_events_run_id ON run_events(run_id);
`

// timeLayout has a fixed width so stored stamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Run is the latest known snapshot of one task run.
type Run struct {
	RunID     string
	Task      string
	URN       string
	Mode      string
	Timeslot  string
	State     string
	Progress  int
	Details   string
	StartedAt time.Time
	UpdatedAt time.Time
}

// Event is one recorded notification of a run.
type Event struct {
	Type     string
	State    string
	Progress int
	Details  string
	At       time.Time
}

// RunInfo describes the run being recorded beyond what events carry.
type RunInfo struct {
	URN      string
	Mode     string
	Timeslot string
}

// Store persists run history in a SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at dbPath and ensures the schema.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Record stores e and updates the run's snapshot.
func (s *Store) Record(ctx context.Context, info RunInfo, e events.Event) error {
	at := e.Timestamp
	if at.IsZero() {
		at = time.Now().UTC()
	}
	stamp := at.UTC().Format(timeLayout)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (run_id, task, urn, mode, timeslot, state, progress, details, started_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			urn = excluded.urn,
			mode = excluded.mode,
			timeslot = excluded.timeslot,
			state = excluded.state,
			progress = excluded.progress,
			details = excluded.details,
			updated_at = excluded.updated_at`,
		e.RunID, e.Task, info.URN, info.Mode, info.Timeslot, e.State, e.Progress, e.Details, stamp, stamp)
	if err != nil {
		return fmt.Errorf("upsert run %s: %w", e.RunID, err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO run_events (run_id, type, state, progress, details, at) VALUES (?, ?, ?, ?, ?, ?)`,
		e.RunID, string(e.Type), e.State, e.Progress, e.Details, stamp)
	if err != nil {
		return fmt.Errorf("insert event for %s: %w", e.RunID, err)
	}
	return tx.Commit()
}

// Observer records every event it receives. Failures are logged, never
// raised into the run.
func (s *Store) Observer(info RunInfo, logger *logging.Logger) events.Subscriber {
	logger = logger.With("history")
	return func(e events.Event) {
		if err := s.Record(context.Background(), info, e); err != nil {
			logger.Warnf("%v", err)
		}
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var r Run
	var started, updated string
	if err := row.Scan(&r.RunID, &r.Task, &r.URN, &r.Mode, &r.Timeslot, &r.State, &r.Progress, &r.Details, &started, &updated); err != nil {
		return Run{}, err
	}
	var err error
	if r.StartedAt, err = time.Parse(timeLayout, started); err != nil {
		return Run{}, fmt.Errorf("run %s started_at: %w", r.RunID, err)
	}
	if r.UpdatedAt, err = time.Parse(timeLayout, updated); err != nil {
		return Run{}, fmt.Errorf("run %s updated_at: %w", r.RunID, err)
	}
	return r, nil
}

const runColumns = `run_id, task, urn, mode, timeslot, state, progress, details, started_at, updated_at`

// Get returns the run with the given ID.
func (s *Store) Get(ctx context.Context, runID string) (Run, error) {
	r, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, model.Errorf(model.KindNotDefined, "run %s", runID)
	}
	return r, err
}

// Filter narrows List. Zero values match everything.
type Filter struct {
	Task  string
	State string
	Limit int
}

// List returns matching runs, most recent first.
func (s *Store) List(ctx context.Context, f Filter) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE (? = '' OR task = ?) AND (? = '' OR state = ?)
		ORDER BY started_at DESC, run_id DESC`
	args := []any{f.Task, f.Task, f.State, f.State}
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Events returns the recorded events of a run in order.
func (s *Store) Events(ctx context.Context, runID string) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT type, state, progress, details, at FROM run_events WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("list events of %s: %w", runID, err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var at string
		if err := rows.Scan(&e.Type, &e.State, &e.Progress, &e.Details, &at); err != nil {
			return nil, err
		}
		if e.At, err = time.Parse(timeLayout, at); err != nil {
			return nil, fmt.Errorf("event of %s: %w", runID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Prune deletes runs last updated before cutoff, with their events, and
// returns how many runs went.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	stamp := cutoff.UTC().Format(timeLayout)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM run_events WHERE run_id IN (SELECT run_id FROM runs WHERE updated_at < ?)`, stamp); err != nil {
		return 0, fmt.Errorf("prune events: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE updated_at < ?`, stamp)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, tx.Commit()
}
