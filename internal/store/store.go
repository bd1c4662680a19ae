// File: internal/store/store.go
// Description: SQLite-backed persistence for execution records. Every plan
// run is written here after the fact; the CLI's history and stats views read
// from it.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/xkilldash9x/handsfree/api/schemas"
	"github.com/xkilldash9x/handsfree/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrNotFound is returned when an execution id does not exist.
var ErrNotFound = errors.New("execution not found")

const schemaSQL = `
CREATE TABLE IF NOT EXISTS executions (
	id             TEXT PRIMARY KEY,
	raw_command    TEXT NOT NULL,
	intent         TEXT NOT NULL,
	strategy       TEXT NOT NULL,
	reasoning      TEXT NOT NULL,
	window_title   TEXT NOT NULL,
	variables      TEXT NOT NULL,
	success        INTEGER NOT NULL,
	failure_reason TEXT NOT NULL,
	started_at     TIMESTAMP NOT NULL,
	duration_ms    REAL NOT NULL,
	created_at     TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS execution_steps (
	execution_id TEXT NOT NULL REFERENCES executions(id) ON DELETE CASCADE,
	idx          INTEGER NOT NULL,
	action       TEXT NOT NULL,
	status       TEXT NOT NULL,
	error        TEXT NOT NULL,
	duration_ms  REAL NOT NULL,
	verified     INTEGER NOT NULL,
	method_used  TEXT NOT NULL,
	PRIMARY KEY (execution_id, idx)
);

CREATE INDEX IF NOT EXISTS idx_executions_started_at ON executions(started_at);
CREATE INDEX IF NOT EXISTS idx_steps_action ON execution_steps(action);
`

// ActionStat aggregates outcomes per action kind.
type ActionStat struct {
	Action        string  `json:"action"`
	Runs          int     `json:"runs"`
	Failures      int     `json:"failures"`
	AvgDurationMS float64 `json:"avg_duration_ms"`
}

// Store persists execution records in a local SQLite database.
type Store struct {
	db         *sql.DB
	logger     *zap.Logger
	maxHistory int
}

// Open creates or opens the database at the configured path and applies the
// schema.
func Open(cfg config.StoreConfig, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("store path is empty")
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// modernc/sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent access.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA foreign_keys = ON;",
		"PRAGMA busy_timeout = 5000;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	logger = logger.Named("store")
	logger.Info("execution store ready", zap.String("path", cfg.Path))
	return &Store{
		db:         db,
		logger:     logger,
		maxHistory: cfg.MaxHistory,
	}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record persists one execution record with its steps in a transaction.
func (s *Store) Record(ctx context.Context, rec *schemas.ExecutionRecord) error {
	if rec == nil {
		return fmt.Errorf("record cannot be nil")
	}
	if rec.ID == "" {
		return fmt.Errorf("record id is empty")
	}

	intentJSON, err := json.Marshal(rec.Intent)
	if err != nil {
		return fmt.Errorf("failed to marshal intent: %w", err)
	}
	varsJSON, err := json.Marshal(rec.Variables)
	if err != nil {
		return fmt.Errorf("failed to marshal variables: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			s.logger.Error("failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO executions
			(id, raw_command, intent, strategy, reasoning, window_title,
			 variables, success, failure_reason, started_at, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.RawCommand, string(intentJSON), rec.Strategy, rec.Reasoning,
		rec.WindowTitle, string(varsJSON), boolToInt(rec.Success), rec.FailureReason,
		rec.StartedAt.UTC(), rec.DurationMS, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert execution: %w", err)
	}

	for _, step := range rec.Steps {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO execution_steps
				(execution_id, idx, action, status, error, duration_ms, verified, method_used)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, step.Index, step.Action, string(step.Status), step.Error,
			step.DurationMS, boolToInt(step.Verified), step.MethodUsed,
		)
		if err != nil {
			return fmt.Errorf("failed to insert step %d: %w", step.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.prune(ctx)
	return nil
}

// prune drops the oldest executions beyond the retention cap.
func (s *Store) prune(ctx context.Context) {
	if s.maxHistory <= 0 {
		return
	}
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM executions WHERE id IN (
			SELECT id FROM executions
			ORDER BY started_at DESC
			LIMIT -1 OFFSET ?
		)`, s.maxHistory)
	if err != nil {
		s.logger.Warn("failed to prune old executions", zap.Error(err))
	}
}

// Execution loads one record by id, including its steps.
func (s *Store) Execution(ctx context.Context, id string) (*schemas.ExecutionRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, raw_command, intent, strategy, reasoning, window_title,
		       variables, success, failure_reason, started_at, duration_ms
		FROM executions WHERE id = ?`, id)

	rec, err := scanExecution(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT idx, action, status, error, duration_ms, verified, method_used
		FROM execution_steps WHERE execution_id = ? ORDER BY idx`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query steps: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var step schemas.StepRecord
		var status string
		var verified int
		if err := rows.Scan(&step.Index, &step.Action, &status, &step.Error,
			&step.DurationMS, &verified, &step.MethodUsed); err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}
		step.Status = schemas.StepStatus(status)
		step.Verified = verified != 0
		rec.Steps = append(rec.Steps, step)
	}
	return rec, rows.Err()
}

// RecentExecutions returns the newest records first, without their steps.
func (s *Store) RecentExecutions(ctx context.Context, limit int) ([]*schemas.ExecutionRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, raw_command, intent, strategy, reasoning, window_title,
		       variables, success, failure_reason, started_at, duration_ms
		FROM executions ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}
	defer rows.Close()

	var out []*schemas.ExecutionRecord
	for rows.Next() {
		rec, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ActionStats aggregates step outcomes per action kind across all retained
// executions.
func (s *Store) ActionStats(ctx context.Context) ([]ActionStat, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT action,
		       COUNT(*) AS runs,
		       SUM(CASE WHEN status = 'FAILED' THEN 1 ELSE 0 END) AS failures,
		       AVG(duration_ms) AS avg_duration_ms
		FROM execution_steps
		GROUP BY action
		ORDER BY runs DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query action stats: %w", err)
	}
	defer rows.Close()

	var out []ActionStat
	for rows.Next() {
		var stat ActionStat
		if err := rows.Scan(&stat.Action, &stat.Runs, &stat.Failures, &stat.AvgDurationMS); err != nil {
			return nil, fmt.Errorf("failed to scan action stat: %w", err)
		}
		out = append(out, stat)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExecution(row rowScanner) (*schemas.ExecutionRecord, error) {
	var rec schemas.ExecutionRecord
	var intentJSON, varsJSON string
	var success int
	if err := row.Scan(&rec.ID, &rec.RawCommand, &intentJSON, &rec.Strategy,
		&rec.Reasoning, &rec.WindowTitle, &varsJSON, &success,
		&rec.FailureReason, &rec.StartedAt, &rec.DurationMS); err != nil {
		return nil, err
	}
	rec.Success = success != 0
	if err := json.UnmarshalFromString(intentJSON, &rec.Intent); err != nil {
		return nil, fmt.Errorf("failed to unmarshal intent: %w", err)
	}
	if err := json.UnmarshalFromString(varsJSON, &rec.Variables); err != nil {
		return nil, fmt.Errorf("failed to unmarshal variables: %w", err)
	}
	return &rec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
