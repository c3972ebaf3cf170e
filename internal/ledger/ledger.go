// Package ledger is the local journal of reconciliation runs. It records
// when each run happened, how it ended, and the identifiers of every
// credential it minted, so operators can find and revoke old credentials.
// Secrets are never written.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"time"

	// Pure-Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

// SQL statements for journal operations.
const (
	sqlInsertRun = `INSERT INTO runs (id, org, host, started_at, status)
		VALUES (?, ?, ?, ?, 'running')`

	sqlFinishRun = `UPDATE runs SET
		 finished_at = ?,
		 status = ?,
		 failed_phase = ?,
		 error = ?,
		 buckets_created = ?,
		 tasks_replaced = ?,
		 tasks_created = ?
		WHERE id = ?`

	sqlInsertToken = `INSERT INTO issued_tokens (id, run_id, kind, description, issued_at)
		VALUES (?, ?, ?, ?, ?)`

	sqlListRuns = `SELECT id, org, host, started_at, finished_at, status,
		failed_phase, error, buckets_created, tasks_replaced, tasks_created
		FROM runs ORDER BY started_at DESC, id LIMIT ?`

	sqlListTokens = `SELECT t.id, t.run_id, t.kind, t.description, t.issued_at, r.org
		FROM issued_tokens t JOIN runs r ON r.id = t.run_id
		ORDER BY t.issued_at DESC, t.id`

	sqlCountTokensExcept = `SELECT COUNT(*)
		FROM issued_tokens t JOIN runs r ON r.id = t.run_id
		WHERE r.org = ? AND r.host = ? AND t.run_id <> ?`
)

// Run status values.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// ErrUnknownRun is returned when finishing a run that was never begun.
var ErrUnknownRun = errors.New("ledger: unknown run")

// Run is one journal row.
type Run struct {
	ID             string    `json:"id"`
	Org            string    `json:"org"`
	Host           string    `json:"host"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at,omitzero"`
	Status         string    `json:"status"`
	FailedPhase    string    `json:"failed_phase,omitempty"`
	Error          string    `json:"error,omitempty"`
	BucketsCreated int       `json:"buckets_created"`
	TasksReplaced  int       `json:"tasks_replaced"`
	TasksCreated   int       `json:"tasks_created"`
}

// Outcome is what FinishRun records about a run's end.
type Outcome struct {
	FinishedAt     time.Time
	FailedPhase    string
	Err            error
	BucketsCreated int
	TasksReplaced  int
	TasksCreated   int
}

// IssuedToken identifies a minted credential.
type IssuedToken struct {
	ID          string    `json:"id"`
	RunID       string    `json:"run_id"`
	Kind        string    `json:"kind"`
	Description string    `json:"description"`
	IssuedAt    time.Time `json:"issued_at"`
	Org         string    `json:"org"`
}

// Ledger owns the journal database.
type Ledger struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the journal at dbPath and applies pending
// migrations.
func Open(ctx context.Context, dbPath string, logger *slog.Logger) (*Ledger, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("ledger: creating directory for %s: %w", dbPath, err)
	}

	dsn, err := buildDSN(dbPath)
	if err != nil {
		return nil, fmt.Errorf("ledger: resolving %s: %w", dbPath, err)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("ledger: opening database %s: %w", dbPath, err)
	}

	db.SetMaxOpenConns(1)

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()

		return nil, err
	}

	logger.Debug("ledger opened", slog.String("db_path", dbPath))

	return &Ledger{db: db, logger: logger}, nil
}

// buildDSN returns a SQLite URI for dbPath. The path is escaped so that
// '?', '#' and '%' in it cannot cut off the pragmas, which apply to every
// connection from the pool.
func buildDSN(dbPath string) (string, error) {
	abs, err := filepath.Abs(dbPath)
	if err != nil {
		return "", err
	}

	return "file:" + (&url.URL{Path: filepath.ToSlash(abs)}).EscapedPath() +
		"?_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)" +
		"&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", nil
}

// Close closes the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// BeginRun records the start of a run.
func (l *Ledger) BeginRun(ctx context.Context, id, org, host string, startedAt time.Time) error {
	if _, err := l.db.ExecContext(ctx, sqlInsertRun, id, org, host, startedAt.UnixNano()); err != nil {
		return fmt.Errorf("ledger: recording start of run %s: %w", id, err)
	}

	return nil
}

// FinishRun records how a run ended.
func (l *Ledger) FinishRun(ctx context.Context, id string, o Outcome) error {
	status := StatusSucceeded

	var failedPhase, errText sql.NullString
	if o.Err != nil {
		status = StatusFailed
		errText = sql.NullString{String: o.Err.Error(), Valid: true}
	}

	if o.FailedPhase != "" {
		failedPhase = sql.NullString{String: o.FailedPhase, Valid: true}
	}

	res, err := l.db.ExecContext(ctx, sqlFinishRun,
		o.FinishedAt.UnixNano(), status, failedPhase, errText,
		o.BucketsCreated, o.TasksReplaced, o.TasksCreated, id,
	)
	if err != nil {
		return fmt.Errorf("ledger: recording end of run %s: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ledger: recording end of run %s: %w", id, err)
	}

	if n == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownRun, id)
	}

	return nil
}

// RecordToken records a credential minted by run runID.
func (l *Ledger) RecordToken(ctx context.Context, runID, id, kind, description string, issuedAt time.Time) error {
	if _, err := l.db.ExecContext(ctx, sqlInsertToken, id, runID, kind, description, issuedAt.UnixNano()); err != nil {
		return fmt.Errorf("ledger: recording credential %s: %w", id, err)
	}

	return nil
}

// ListRuns returns up to limit runs, newest first.
func (l *Ledger) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := l.db.QueryContext(ctx, sqlListRuns, limit)
	if err != nil {
		return nil, fmt.Errorf("ledger: listing runs: %w", err)
	}
	defer rows.Close()

	var runs []Run

	for rows.Next() {
		var (
			r           Run
			started     int64
			finished    sql.NullInt64
			failedPhase sql.NullString
			errText     sql.NullString
		)

		if err := rows.Scan(&r.ID, &r.Org, &r.Host, &started, &finished, &r.Status,
			&failedPhase, &errText, &r.BucketsCreated, &r.TasksReplaced, &r.TasksCreated); err != nil {
			return nil, fmt.Errorf("ledger: scanning run: %w", err)
		}

		r.StartedAt = time.Unix(0, started)
		if finished.Valid {
			r.FinishedAt = time.Unix(0, finished.Int64)
		}

		r.FailedPhase = failedPhase.String
		r.Error = errText.String

		runs = append(runs, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: iterating runs: %w", err)
	}

	return runs, nil
}

// ListTokens returns every recorded credential, newest first.
func (l *Ledger) ListTokens(ctx context.Context) ([]IssuedToken, error) {
	rows, err := l.db.QueryContext(ctx, sqlListTokens)
	if err != nil {
		return nil, fmt.Errorf("ledger: listing credentials: %w", err)
	}
	defer rows.Close()

	var tokens []IssuedToken

	for rows.Next() {
		var (
			t      IssuedToken
			issued int64
		)

		if err := rows.Scan(&t.ID, &t.RunID, &t.Kind, &t.Description, &issued, &t.Org); err != nil {
			return nil, fmt.Errorf("ledger: scanning credential: %w", err)
		}

		t.IssuedAt = time.Unix(0, issued)
		tokens = append(tokens, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: iterating credentials: %w", err)
	}

	return tokens, nil
}

// CountEarlierTokens returns how many credentials runs other than runID
// minted for org on host. All of them remain valid until revoked by hand.
func (l *Ledger) CountEarlierTokens(ctx context.Context, org, host, runID string) (int, error) {
	var n int
	if err := l.db.QueryRowContext(ctx, sqlCountTokensExcept, org, host, runID).Scan(&n); err != nil {
		return 0, fmt.Errorf("ledger: counting credentials: %w", err)
	}

	return n, nil
}
