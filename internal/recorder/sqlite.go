package recorder

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

// SQLiteRecorder journals runs to a SQLite database.
type SQLiteRecorder struct {
	db     *sql.DB
	mu     sync.Mutex
	logger *logrus.Logger
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, logger *logrus.Logger) (*SQLiteRecorder, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets dashboards read while a run writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, logger: logger}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	logger.WithField("path", dbPath).Info("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id          TEXT PRIMARY KEY,
			mode        TEXT NOT NULL,
			dry_run     INTEGER NOT NULL,
			started_at  INTEGER NOT NULL,
			finished_at INTEGER NOT NULL,
			pages       INTEGER,
			failures    INTEGER,
			fetched     INTEGER,
			new_records INTEGER,
			dropped     INTEGER,
			stop_reason TEXT,
			base_total  INTEGER,
			first_date  TEXT,
			last_date   TEXT,
			error       TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_finished ON runs(finished_at)`,

		`CREATE TABLE IF NOT EXISTS run_warnings (
			id      INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id  TEXT NOT NULL REFERENCES runs(id),
			code    TEXT NOT NULL,
			message TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_run_warnings_run ON run_warnings(run_id)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// RecordRun stores evt and its warnings in one transaction. An empty ID is
// filled with a new UUID.
func (r *SQLiteRecorder) RecordRun(evt *RunEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	if evt.FinishedAt.IsZero() {
		evt.FinishedAt = time.Now()
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT INTO runs
		(id, mode, dry_run, started_at, finished_at, pages, failures, fetched,
		 new_records, dropped, stop_reason, base_total, first_date, last_date, error)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		evt.ID, evt.Mode, evt.DryRun, evt.StartedAt.Unix(), evt.FinishedAt.Unix(),
		evt.Pages, evt.Failures, evt.Fetched, evt.New, evt.Dropped, evt.StopReason,
		evt.BaseTotal, evt.FirstDate, evt.LastDate, evt.Err,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	for _, w := range evt.Warnings {
		if _, err := tx.Exec(`INSERT INTO run_warnings (run_id, code, message) VALUES (?,?,?)`,
			evt.ID, string(w.Code), w.Message); err != nil {
			return fmt.Errorf("insert warning: %w", err)
		}
	}
	return tx.Commit()
}

// LastRun returns the most recently finished run, or nil when none exists.
func (r *SQLiteRecorder) LastRun() (*RunInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		info     RunInfo
		finished int64
	)
	err := r.db.QueryRow(`SELECT r.id, r.mode, r.finished_at, r.new_records, r.base_total,
			r.last_date, r.error,
			(SELECT COUNT(*) FROM run_warnings w WHERE w.run_id = r.id)
		FROM runs r ORDER BY r.finished_at DESC, r.rowid DESC LIMIT 1`).
		Scan(&info.ID, &info.Mode, &finished, &info.New, &info.BaseTotal, &info.LastDate, &info.Err, &info.Warnings)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query last run: %w", err)
	}
	info.FinishedAt = time.Unix(finished, 0)
	return &info, nil
}

func (r *SQLiteRecorder) Close() error {
	r.logger.Info("closing sqlite recorder")
	return r.db.Close()
}
