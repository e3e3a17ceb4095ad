package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_passage_store.go -package=mocks policy-manual-ai/internal/storage PassageStore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PassageStore defines the interface for passage storage operations.
type PassageStore interface {
	// Insert stores a passage. Re-inserting an existing ID is a no-op and
	// reports false.
	Insert(ctx context.Context, passage *PassageRecord) (bool, error)
	// GetByID gets a passage by its ID. Returns ErrNotFound if not found.
	GetByID(ctx context.Context, id string) (*PassageRecord, error)
	// GetByIDs returns the passages with the given IDs keyed by ID.
	// Unknown IDs are omitted.
	GetByIDs(ctx context.Context, ids []string) (map[string]*PassageRecord, error)
	// GetCurrentByIDs is GetByIDs restricted to current passages: those
	// stored by the newest imported run that holds their page.
	GetCurrentByIDs(ctx context.Context, ids []string) (map[string]*PassageRecord, error)
	// ListSuperseded returns the IDs of older passages of the pages that
	// runID holds, now replaced by a newer imported run.
	ListSuperseded(ctx context.Context, runID string) ([]string, error)
	// ListIDsByRun returns all passage IDs of a run in log order.
	ListIDsByRun(ctx context.Context, runID string) ([]string, error)
	// CountByRun returns the number of passages stored for a run.
	CountByRun(ctx context.Context, runID string) (int, error)
}

// PassageRepo provides methods for passage operations.
// It implements the PassageStore interface.
type PassageRepo struct {
	db *sql.DB
}

// NewPassageRepo creates a new PassageRepo.
func NewPassageRepo(db *sql.DB) *PassageRepo {
	return &PassageRepo{db: db}
}

const passageColumns = "id, run_id, position, url, title, volume_number, part_letter, chapter_number, last_updated, section_header, subsection_header, content"

// currentRunOf selects the newest imported run holding page p.url. A partial
// run replaces only the pages it scraped.
const currentRunOf = `(SELECT MAX(c.run_id) FROM passages c JOIN runs r ON r.id = c.run_id
	WHERE c.url = p.url AND r.imported_at IS NOT NULL)`

// Insert stores a passage. The passage.ID must be set before calling this method.
func (r *PassageRepo) Insert(ctx context.Context, p *PassageRecord) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO passages ("+passageColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		p.ID, p.RunID, p.Position, p.URL, p.Title, p.VolumeNumber, p.PartLetter, p.ChapterNumber,
		p.LastUpdated, p.SectionHeader, nullString(p.SubsectionHeader), p.Content,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert passage: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

// GetByID gets a passage by its ID. Returns ErrNotFound if not found.
func (r *PassageRepo) GetByID(ctx context.Context, id string) (*PassageRecord, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+passageColumns+" FROM passages WHERE id = ?", id)
	p, err := scanPassage(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query passage: %w", err)
	}
	return p, nil
}

// GetByIDs returns the passages with the given IDs keyed by ID.
func (r *PassageRepo) GetByIDs(ctx context.Context, ids []string) (map[string]*PassageRecord, error) {
	return r.queryByIDs(ctx, ids, "")
}

// GetCurrentByIDs returns the current passages among ids keyed by ID.
func (r *PassageRepo) GetCurrentByIDs(ctx context.Context, ids []string) (map[string]*PassageRecord, error) {
	return r.queryByIDs(ctx, ids, " AND p.run_id = "+currentRunOf)
}

func (r *PassageRepo) queryByIDs(ctx context.Context, ids []string, cond string) (map[string]*PassageRecord, error) {
	out := make(map[string]*PassageRecord, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT "+passageColumns+" FROM passages p WHERE p.id IN ("+placeholders+")"+cond,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query passages: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	for rows.Next() {
		p, err := scanPassage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan passage: %w", err)
		}
		out[p.ID] = p
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return out, nil
}

// ListSuperseded returns the IDs of passages from runs older than the
// current run of each page runID holds. Passages of newer runs that were
// never marked imported are left alone.
func (r *PassageRepo) ListSuperseded(ctx context.Context, runID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT p.id FROM passages p
		WHERE p.url IN (SELECT url FROM passages WHERE run_id = ?)
		AND p.run_id < `+currentRunOf+`
		ORDER BY p.run_id, p.position`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query superseded passages: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan passage ID: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return ids, nil
}

// ListIDsByRun returns all passage IDs of a run in log order.
// Returns an empty slice if the run has no passages (not an error).
func (r *PassageRepo) ListIDsByRun(ctx context.Context, runID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id FROM passages WHERE run_id = ? ORDER BY position",
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query passage IDs: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan passage ID: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return ids, nil
}

// CountByRun returns the number of passages stored for a run.
func (r *PassageRepo) CountByRun(ctx context.Context, runID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM passages WHERE run_id = ?", runID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count passages: %w", err)
	}
	return n, nil
}

func scanPassage(row rowScanner) (*PassageRecord, error) {
	var (
		p   PassageRecord
		sub sql.NullString
	)
	err := row.Scan(&p.ID, &p.RunID, &p.Position, &p.URL, &p.Title, &p.VolumeNumber, &p.PartLetter,
		&p.ChapterNumber, &p.LastUpdated, &p.SectionHeader, &sub, &p.Content)
	if err != nil {
		return nil, err
	}
	if sub.Valid {
		s := sub.String
		p.SubsectionHeader = &s
	}
	return &p, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
