package trace

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ErrRunNotFound is returned when a run id is not in the store.
var ErrRunNotFound = errors.New("trace run not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    run_id     TEXT PRIMARY KEY,
    level      TEXT NOT NULL,
    started_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS job_records (
    run_id TEXT NOT NULL,
    seq    INTEGER NOT NULL,
    job_id INTEGER NOT NULL,
    name   TEXT NOT NULL,
    kind   TEXT NOT NULL,
    worker INTEGER NOT NULL,
    at     INTEGER NOT NULL,
    PRIMARY KEY (run_id, seq),
    FOREIGN KEY (run_id) REFERENCES runs(run_id)
);
`

// RunInfo describes one stored run.
type RunInfo struct {
	RunID   string
	Level   Level
	Started time.Time
	Records int
}

// Store persists job traces in a SQLite database.
type Store struct {
	db *sql.DB
}

// OpenStore opens (and if needed creates) the trace database at path.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening trace store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating trace schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveTrace writes the run and all of its records in one transaction.
func (s *Store) SaveTrace(ctx context.Context, jt *JobTrace) error {
	if jt == nil {
		return errors.New("saving trace: nil trace")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("saving trace %s: %w", jt.RunID, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO runs (run_id, level, started_at) VALUES (?, ?, ?)",
		jt.RunID, string(jt.Config.Level), jt.Started.UnixNano()); err != nil {
		return fmt.Errorf("saving trace %s: %w", jt.RunID, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO job_records (run_id, seq, job_id, name, kind, worker, at) VALUES (?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("saving trace %s: %w", jt.RunID, err)
	}
	defer stmt.Close()

	for _, r := range jt.Records {
		if _, err := stmt.ExecContext(ctx,
			jt.RunID, r.Seq, r.JobID, r.Name, string(r.Kind), r.Worker, r.At.UnixNano()); err != nil {
			return fmt.Errorf("saving trace %s record %d: %w", jt.RunID, r.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("saving trace %s: %w", jt.RunID, err)
	}
	return nil
}

// ListRuns returns all stored runs, oldest first.
func (s *Store) ListRuns(ctx context.Context) ([]RunInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT r.run_id, r.level, r.started_at, COUNT(j.seq)
FROM runs r LEFT JOIN job_records j ON j.run_id = r.run_id
GROUP BY r.run_id, r.level, r.started_at
ORDER BY r.started_at, r.run_id`)
	if err != nil {
		return nil, fmt.Errorf("listing trace runs: %w", err)
	}
	defer rows.Close()

	var runs []RunInfo
	for rows.Next() {
		var (
			info    RunInfo
			level   string
			started int64
		)
		if err := rows.Scan(&info.RunID, &level, &started, &info.Records); err != nil {
			return nil, fmt.Errorf("listing trace runs: %w", err)
		}
		info.Level = Level(level)
		info.Started = time.Unix(0, started)
		runs = append(runs, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing trace runs: %w", err)
	}
	return runs, nil
}

// LoadTrace reads a stored run back into a JobTrace.
func (s *Store) LoadTrace(ctx context.Context, runID string) (*JobTrace, error) {
	var (
		level   string
		started int64
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT level, started_at FROM runs WHERE run_id = ?", runID).Scan(&level, &started)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("loading trace %s: %w", runID, ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading trace %s: %w", runID, err)
	}

	jt := &JobTrace{
		Config:  Config{Level: Level(level)},
		RunID:   runID,
		Started: time.Unix(0, started),
		Records: make([]JobRecord, 0),
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT seq, job_id, name, kind, worker, at FROM job_records WHERE run_id = ? ORDER BY seq", runID)
	if err != nil {
		return nil, fmt.Errorf("loading trace %s: %w", runID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			r    JobRecord
			kind string
			at   int64
		)
		if err := rows.Scan(&r.Seq, &r.JobID, &r.Name, &kind, &r.Worker, &at); err != nil {
			return nil, fmt.Errorf("loading trace %s: %w", runID, err)
		}
		r.Kind = EventKind(kind)
		r.At = time.Unix(0, at)
		jt.Records = append(jt.Records, r)
		jt.nextSeq = r.Seq
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("loading trace %s: %w", runID, err)
	}
	return jt, nil
}
