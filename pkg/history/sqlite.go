package history

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/twinsync/twinsync/pkg/engine"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Archive stores runs and executions in a SQLite database.
type Archive struct {
	db   *sql.DB
	path string
	cfg  Config
}

// Config holds connection settings for the archive database.
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// New creates an archive handle for the database at cfg.Path. Call Init
// before use.
func New(cfg Config) (*Archive, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 4
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 2
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}
	return &Archive{path: cfg.Path, cfg: cfg}, nil
}

// Open is New, Init, and Migrate in one call.
func Open(ctx context.Context, path string) (*Archive, error) {
	a, err := New(Config{Path: path})
	if err != nil {
		return nil, err
	}
	if err := a.Init(ctx); err != nil {
		return nil, err
	}
	if err := a.Migrate(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

// Init opens the database in WAL mode and verifies the connection.
func (a *Archive) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_time_format=sqlite&_txlock=immediate", a.path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(a.cfg.MaxOpenConns)
	db.SetMaxIdleConns(a.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(a.cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	a.db = db
	return nil
}

// Close closes the database connection.
func (a *Archive) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// Migrate brings the schema up to date from the embedded migrations.
func (a *Archive) Migrate(_ context.Context) error {
	if a.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(a.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (a *Archive) HealthCheck(ctx context.Context) error {
	if a.db == nil {
		return fmt.Errorf("database not initialized")
	}
	return a.db.PingContext(ctx)
}

// RecordRun inserts a run summary. It satisfies engine.Archiver.
func (a *Archive) RecordRun(ctx context.Context, rec engine.RunRecord) error {
	query := `
		INSERT INTO runs (id, operation, status, started_at, finished_at, detail)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := a.db.ExecContext(ctx, query,
		rec.ID,
		rec.Operation,
		rec.Status,
		rec.StartedAt.UTC(),
		rec.FinishedAt.UTC(),
		rec.Detail,
	)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}

	return nil
}

// RecordExecution inserts one provider dispatch. The run summary
// arrives only after the run finishes, so executions may precede their
// run row.
func (a *Archive) RecordExecution(ctx context.Context, runID string, rec engine.ExecutionRecord, results []engine.ActionResult) error {
	actions := rec.Actions
	if actions == nil {
		actions = []engine.Action{}
	}
	actionsJSON, err := json.Marshal(actions)
	if err != nil {
		return fmt.Errorf("failed to encode actions: %w", err)
	}

	if results == nil {
		results = []engine.ActionResult{}
	}
	resultsJSON, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}

	query := `
		INSERT INTO executions (run_id, provider, actions, results, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err = a.db.ExecContext(ctx, query,
		runID,
		rec.Provider,
		string(actionsJSON),
		string(resultsJSON),
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record execution: %w", err)
	}

	return nil
}

// GetRun retrieves a run by ID.
func (a *Archive) GetRun(ctx context.Context, id string) (*Run, error) {
	query := `
		SELECT id, operation, status, started_at, finished_at, detail
		FROM runs
		WHERE id = ?
	`

	run := &Run{}
	err := a.db.QueryRowContext(ctx, query, id).Scan(
		&run.ID,
		&run.Operation,
		&run.Status,
		&run.StartedAt,
		&run.FinishedAt,
		&run.Detail,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	return run, nil
}

// ListRuns lists archived runs, newest first. A limit of 0 or less
// returns every run.
func (a *Archive) ListRuns(ctx context.Context, limit, offset int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	query := `
		SELECT id, operation, status, started_at, finished_at, detail
		FROM runs
		ORDER BY started_at DESC
		LIMIT ? OFFSET ?
	`

	rows, err := a.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var run Run
		if err := rows.Scan(
			&run.ID,
			&run.Operation,
			&run.Status,
			&run.StartedAt,
			&run.FinishedAt,
			&run.Detail,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

// ListExecutions lists the provider dispatches of one run in dispatch
// order.
func (a *Archive) ListExecutions(ctx context.Context, runID string) ([]Execution, error) {
	query := `
		SELECT id, run_id, provider, actions, results, created_at
		FROM executions
		WHERE run_id = ?
		ORDER BY id ASC
	`

	rows, err := a.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}
	defer rows.Close()

	executions := []Execution{}
	for rows.Next() {
		var (
			ex          Execution
			actionsJSON string
			resultsJSON string
		)
		if err := rows.Scan(
			&ex.ID,
			&ex.RunID,
			&ex.Provider,
			&actionsJSON,
			&resultsJSON,
			&ex.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}
		if err := json.Unmarshal([]byte(actionsJSON), &ex.Actions); err != nil {
			return nil, fmt.Errorf("failed to decode actions: %w", err)
		}
		if err := json.Unmarshal([]byte(resultsJSON), &ex.Results); err != nil {
			return nil, fmt.Errorf("failed to decode results: %w", err)
		}
		executions = append(executions, ex)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating executions: %w", err)
	}

	return executions, nil
}
