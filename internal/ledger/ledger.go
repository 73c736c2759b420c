// Package ledger keeps a SQLite record of engine runs and of the formula
// version that wrote every derived date column.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"stockmatrix/pkg/contracts/domain"
)

// Run statuses.
const (
	RunRunning   = "running"
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)

const timeLayout = time.RFC3339Nano

// Ledger wraps the SQLite connection.
type Ledger struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (or creates) the ledger database at path and runs migrations.
// The special path ":memory:" opens a private in-memory database.
func Open(path string, logger *slog.Logger) (*Ledger, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create ledger dir: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	// In-memory databases are per connection.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping ledger: %w", err)
	}

	l := &Ledger{db: db, logger: logger.With(slog.String("component", "ledger"))}
	if err := l.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate ledger: %w", err)
	}
	l.logger.Debug("ledger opened", slog.String("path", path))
	return l, nil
}

// Close closes the database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) migrate() error {
	version := 0
	l.db.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)

	if version < 1 {
		_, err := l.db.Exec(`
			CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY);

			CREATE TABLE IF NOT EXISTS runs (
				id          INTEGER PRIMARY KEY AUTOINCREMENT,
				run_id      TEXT NOT NULL UNIQUE,
				op          TEXT NOT NULL,
				store       TEXT NOT NULL,
				started_at  TEXT NOT NULL,
				finished_at TEXT,
				status      TEXT NOT NULL,
				detail      TEXT NOT NULL DEFAULT ''
			);
			CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

			CREATE TABLE IF NOT EXISTS columns (
				sheet           TEXT NOT NULL,
				date            TEXT NOT NULL,
				formula_version TEXT NOT NULL,
				run_id          TEXT NOT NULL,
				written_at      TEXT NOT NULL,
				PRIMARY KEY (sheet, date)
			);

			INSERT OR IGNORE INTO schema_version (version) VALUES (1);
		`)
		if err != nil {
			return fmt.Errorf("migration v1: %w", err)
		}
		l.logger.Debug("applied ledger migration", slog.Int("version", 1))
	}

	if version < 2 {
		_, err := l.db.Exec(`
			CREATE INDEX IF NOT EXISTS idx_columns_run ON columns(run_id);
			INSERT OR IGNORE INTO schema_version (version) VALUES (2);
		`)
		if err != nil {
			return fmt.Errorf("migration v2: %w", err)
		}
		l.logger.Debug("applied ledger migration", slog.Int("version", 2))
	}

	return nil
}

// BeginRun records the start of an engine call.
func (l *Ledger) BeginRun(ctx context.Context, runID, op, store string) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, op, store, started_at, status) VALUES (?, ?, ?, ?, ?)`,
		runID, op, store, time.Now().UTC().Format(timeLayout), RunRunning)
	if err != nil {
		return fmt.Errorf("begin run %s: %w", runID, err)
	}
	return nil
}

// FinishRun stamps the outcome of a run.
func (l *Ledger) FinishRun(ctx context.Context, runID, status, detail string) error {
	res, err := l.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, status = ?, detail = ? WHERE run_id = ?`,
		time.Now().UTC().Format(timeLayout), status, detail, runID)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run %s: no such run", runID)
	}
	return nil
}

// RecordColumns stores the formula version for each written date column.
// A column written again (after a rollback) replaces the older entry.
func (l *Ledger) RecordColumns(ctx context.Context, runID, sheet, formulaVersion string, dates []string) error {
	if len(dates) == 0 {
		return nil
	}
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record columns: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO columns (sheet, date, formula_version, run_id, written_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("record columns: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(timeLayout)
	for _, date := range dates {
		if _, err := stmt.ExecContext(ctx, sheet, date, formulaVersion, runID, now); err != nil {
			return fmt.Errorf("record column %s/%s: %w", sheet, date, err)
		}
	}
	return tx.Commit()
}

// ForgetColumns drops the entries of deleted date columns and returns how
// many rows were removed.
func (l *Ledger) ForgetColumns(ctx context.Context, sheet string, dates []string) (int, error) {
	if len(dates) == 0 {
		return 0, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(dates)), ",")
	args := make([]interface{}, 0, len(dates)+1)
	args = append(args, sheet)
	for _, d := range dates {
		args = append(args, d)
	}
	res, err := l.db.ExecContext(ctx,
		`DELETE FROM columns WHERE sheet = ? AND date IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("forget columns of %s: %w", sheet, err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// ForgetRange drops every entry of sheet dated within [start, end]. Dates
// are YYYYMMDD labels, so string order is date order.
func (l *Ledger) ForgetRange(ctx context.Context, sheet, start, end string) (int, error) {
	res, err := l.db.ExecContext(ctx,
		`DELETE FROM columns WHERE sheet = ? AND date BETWEEN ? AND ?`, sheet, start, end)
	if err != nil {
		return 0, fmt.Errorf("forget range of %s: %w", sheet, err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Runs returns the most recent runs, newest first.
func (l *Ledger) Runs(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT run_id, op, store, started_at, finished_at, status, detail
		 FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []domain.RunRecord
	for rows.Next() {
		var (
			rec      domain.RunRecord
			started  string
			finished sql.NullString
		)
		if err := rows.Scan(&rec.RunID, &rec.Operation, &rec.Store, &started, &finished, &rec.Status, &rec.Detail); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		rec.StartedAt, _ = time.Parse(timeLayout, started)
		if finished.Valid {
			if t, err := time.Parse(timeLayout, finished.String); err == nil {
				rec.FinishedAt = &t
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Columns returns the provenance of every recorded column of sheet in date order.
func (l *Ledger) Columns(ctx context.Context, sheet string) ([]domain.ColumnRecord, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT sheet, date, formula_version, run_id, written_at
		 FROM columns WHERE sheet = ? ORDER BY date`, sheet)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	var out []domain.ColumnRecord
	for rows.Next() {
		var (
			rec     domain.ColumnRecord
			written string
		)
		if err := rows.Scan(&rec.Sheet, &rec.Date, &rec.FormulaVersion, &rec.RunID, &written); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		rec.WrittenAt, _ = time.Parse(timeLayout, written)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Versions returns the distinct formula versions recorded for sheet.
// More than one entry means the sheet mixes columns from different formulas.
func (l *Ledger) Versions(ctx context.Context, sheet string) ([]string, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT DISTINCT formula_version FROM columns WHERE sheet = ? ORDER BY formula_version`, sheet)
	if err != nil {
		return nil, fmt.Errorf("query versions: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
