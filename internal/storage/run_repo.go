package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_run_store.go -package=mocks policy-manual-ai/internal/storage RunStore

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// RunStore defines the interface for ingestion run registry operations.
type RunStore interface {
	// GetOrCreate returns the run with the given ID, registering it if it does not exist.
	GetOrCreate(ctx context.Context, id, logPath string) (*RunRecord, error)
	// Get gets a run by ID. Returns ErrNotFound if not found.
	Get(ctx context.Context, id string) (*RunRecord, error)
	// MarkImported records that an import of the run completed.
	MarkImported(ctx context.Context, id string, at time.Time) error
	// Latest returns the most recently imported run. Returns ErrNotFound if no run was imported.
	Latest(ctx context.Context) (*RunRecord, error)
	// ListAll returns all runs, newest first.
	ListAll(ctx context.Context) ([]RunRecord, error)
}

// RunRepo provides methods for run operations.
// It implements the RunStore interface.
type RunRepo struct {
	db *sql.DB
}

// NewRunRepo creates a new RunRepo.
func NewRunRepo(db *sql.DB) *RunRepo {
	return &RunRepo{db: db}
}

const runColumns = "id, log_path, created_at, imported_at"

// GetOrCreate returns the run with the given ID, registering it if it does not exist.
// An existing run keeps its original log path.
func (r *RunRepo) GetOrCreate(ctx context.Context, id, logPath string) (*RunRecord, error) {
	_, err := r.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO runs (id, log_path) VALUES (?, ?)",
		id, logPath,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert run: %w", err)
	}
	return r.Get(ctx, id)
}

// Get gets a run by ID. Returns ErrNotFound if not found.
func (r *RunRepo) Get(ctx context.Context, id string) (*RunRecord, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs WHERE id = ?", id)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	return run, nil
}

// MarkImported records that an import of the run completed.
func (r *RunRepo) MarkImported(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE runs SET imported_at = ? WHERE id = ?",
		at.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark run imported: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Latest returns the most recently imported run.
// Run IDs sort chronologically, so the greatest imported ID wins.
func (r *RunRepo) Latest(ctx context.Context) (*RunRecord, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+runColumns+" FROM runs WHERE imported_at IS NOT NULL ORDER BY id DESC LIMIT 1",
	)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest run: %w", err)
	}
	return run, nil
}

// ListAll returns all runs, newest first.
func (r *RunRepo) ListAll(ctx context.Context) ([]RunRecord, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+runColumns+" FROM runs ORDER BY id DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var runs []RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return runs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*RunRecord, error) {
	var (
		run      RunRecord
		imported sql.NullTime
	)
	if err := row.Scan(&run.ID, &run.LogPath, &run.CreatedAt, &imported); err != nil {
		return nil, err
	}
	if imported.Valid {
		t := imported.Time
		run.ImportedAt = &t
	}
	return &run, nil
}
