package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/beaconchat/beacon/internal/tenant"
)

const sourceColumns = `id, org_id, widget_id, user_id, kind, name, url, filename,
	status, crawl_cache, pages_scanned, pages_changed, created_at, updated_at`

// Store provides access to the knowledge_sources table.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore creates a source store on an already migrated database.
func NewStore(db *sql.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger.With("component", "source")}
}

// Create inserts the source and fills in its ID and timestamps.
func (s *Store) Create(ctx context.Context, src *Source) error {
	if !src.Scope.Valid() {
		return fmt.Errorf("invalid scope: org id is required")
	}
	if src.Status == "" {
		src.Status = StatusActive
	}

	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO knowledge_sources
			(org_id, widget_id, user_id, kind, name, url, filename, status,
			 crawl_cache, pages_scanned, pages_changed, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		src.Scope.OrgID, src.Scope.WidgetID, src.Scope.UserID,
		string(src.Kind), src.Name, src.URL, src.Filename, string(src.Status),
		string(src.CrawlCache), src.PagesScanned, src.PagesChanged, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create source: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get source id: %w", err)
	}

	src.ID = id
	src.CreatedAt = now
	src.UpdatedAt = now
	return nil
}

// GetByID returns the source with the given id, deleted ones included.
func (s *Store) GetByID(ctx context.Context, id int64) (*Source, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sourceColumns+` FROM knowledge_sources WHERE id = ?`, id)

	src, err := scanSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("source %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get source %d: %w", id, err)
	}
	return src, nil
}

// FindWebSource looks up the active web source registered for the scope's
// organization and widget under the normalized URL. Re-ingestion of the
// same site reuses this source instead of creating a new one.
func (s *Store) FindWebSource(ctx context.Context, scope tenant.Scope, url string) (*Source, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sourceColumns+` FROM knowledge_sources
		 WHERE org_id = ? AND widget_id = ? AND url = ? AND kind = 'web' AND status = 'active'
		 ORDER BY id LIMIT 1`,
		scope.OrgID, scope.WidgetID, url)

	src, err := scanSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("web source %q: %w", url, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find web source %q: %w", url, err)
	}
	return src, nil
}

// UpdateCrawlState stores the page cache and counters from a finished crawl.
func (s *Store) UpdateCrawlState(ctx context.Context, id int64, cache []byte, scanned, changed int) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE knowledge_sources
		 SET crawl_cache = ?, pages_scanned = ?, pages_changed = ?, updated_at = ?
		 WHERE id = ?`,
		string(cache), scanned, changed, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update crawl state for source %d: %w", id, err)
	}
	return requireRow(result, id)
}

// MarkDeleted flips the source to deleted. Callers remove the source's
// vectors first so a crash never leaves orphaned vectors behind an
// active-looking source.
func (s *Store) MarkDeleted(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE knowledge_sources SET status = 'deleted', updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to mark source %d deleted: %w", id, err)
	}
	return requireRow(result, id)
}

// ListByOrg returns the organization's active sources, newest first.
func (s *Store) ListByOrg(ctx context.Context, orgID int64) ([]*Source, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sourceColumns+` FROM knowledge_sources
		 WHERE org_id = ? AND status = 'active'
		 ORDER BY created_at DESC, id DESC`, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources for org %d: %w", orgID, err)
	}
	defer rows.Close()

	var sources []*Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		sources = append(sources, src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list sources for org %d: %w", orgID, err)
	}
	return sources, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSource(row scanner) (*Source, error) {
	var (
		src   Source
		kind  string
		state string
		cache string
	)
	err := row.Scan(
		&src.ID, &src.Scope.OrgID, &src.Scope.WidgetID, &src.Scope.UserID,
		&kind, &src.Name, &src.URL, &src.Filename, &state, &cache,
		&src.PagesScanned, &src.PagesChanged, &src.CreatedAt, &src.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	src.Kind = Kind(kind)
	src.Status = Status(state)
	if cache != "" {
		src.CrawlCache = []byte(cache)
	}
	return &src, nil
}

func requireRow(result sql.Result, id int64) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("source %d: %w", id, ErrNotFound)
	}
	return nil
}
