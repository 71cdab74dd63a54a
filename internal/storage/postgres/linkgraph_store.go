// Package postgres provides the Postgres-backed link graph store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/linkgraph-crawler/internal/crawler"
)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// pool is the subset of *pgxpool.Pool the store uses.
type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

var pageColumns = []string{
	"id", "url", "title", "content_hash", "content", "first_seen", "last_fetched",
	"crawl_depth", "status_code", "error", "content_type", "collection_id",
	"is_seed", "is_indexed", "indexed_at", "created_by", "updated_by", "api_key_name",
}

func columns(prefix string) string {
	out := make([]string, len(pageColumns))
	for i, c := range pageColumns {
		out[i] = prefix + c
	}
	return strings.Join(out, ", ")
}

// LinkGraphStore implements crawler.LinkGraphStore on Postgres.
type LinkGraphStore struct {
	pool pool
}

// NewLinkGraphStore connects a pool using cfg.
func NewLinkGraphStore(ctx context.Context, cfg Config) (*LinkGraphStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("store.postgres.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &LinkGraphStore{pool: p}, nil
}

// NewLinkGraphStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewLinkGraphStoreWithPool(p pool) (*LinkGraphStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &LinkGraphStore{pool: p}, nil
}

// Close releases the underlying pool resources.
func (s *LinkGraphStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Migrate applies Schema.
func (s *LinkGraphStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// GetOrCreatePage inserts the page unless its URL exists, then returns the stored row.
func (s *LinkGraphStore) GetOrCreatePage(ctx context.Context, page crawler.NewPage) (crawler.Page, error) {
	insert := `
INSERT INTO webpages (url, first_seen, crawl_depth, is_seed, collection_id, created_by, updated_by, api_key_name)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (url) DO NOTHING
RETURNING ` + columns("")

	row := s.pool.QueryRow(ctx, insert,
		page.URL,
		page.FirstSeen,
		page.Depth,
		page.IsSeed,
		page.CollectionID,
		page.CreatedBy,
		page.CreatedBy,
		page.APIKeyName,
	)
	stored, err := scanPage(row)
	if err == nil {
		return stored, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return crawler.Page{}, fmt.Errorf("insert page: %w", err)
	}
	stored, err = s.PageByURL(ctx, page.URL)
	if err != nil {
		return crawler.Page{}, fmt.Errorf("load existing page: %w", err)
	}
	return stored, nil
}

// UpdatePageContent records a successful fetch.
func (s *LinkGraphStore) UpdatePageContent(ctx context.Context, pageID int64, update crawler.ContentUpdate) error {
	query := `
UPDATE webpages
SET title = $2, content_hash = $3, content = $4, status_code = $5,
	content_type = $6, last_fetched = $7, updated_by = $8
WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query,
		pageID,
		update.Title,
		update.ContentHash,
		update.Content,
		update.StatusCode,
		update.ContentType,
		update.FetchedAt,
		update.UpdatedBy,
	)
	if err != nil {
		return fmt.Errorf("update page content: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("page %d: %w", pageID, crawler.ErrPageNotFound)
	}
	return nil
}

// UpdatePageError records a failed fetch. Existing content is left intact.
func (s *LinkGraphStore) UpdatePageError(ctx context.Context, pageID int64, update crawler.ErrorUpdate) error {
	query := `UPDATE webpages SET error = $2, last_fetched = $3, updated_by = $4 WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query, pageID, update.Message, update.FetchedAt, update.UpdatedBy)
	if err != nil {
		return fmt.Errorf("update page error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("page %d: %w", pageID, crawler.ErrPageNotFound)
	}
	return nil
}

// AddLink inserts an edge row.
func (s *LinkGraphStore) AddLink(ctx context.Context, link crawler.Link) error {
	query := `INSERT INTO webpage_links (source_id, target_id, text, rel, created_at) VALUES ($1, $2, $3, $4, $5)`
	if _, err := s.pool.Exec(ctx, query, link.SourceID, link.TargetID, link.Text, link.Rel, link.CreatedAt); err != nil {
		return fmt.Errorf("insert link: %w", err)
	}
	return nil
}

// OutgoingLinks returns the target pages of pageID in link insertion order.
func (s *LinkGraphStore) OutgoingLinks(ctx context.Context, pageID int64) ([]crawler.Page, error) {
	query := `SELECT ` + columns("p.") + `
FROM webpage_links l
JOIN webpages p ON p.id = l.target_id
WHERE l.source_id = $1
ORDER BY l.id`
	rows, err := s.pool.Query(ctx, query, pageID)
	if err != nil {
		return nil, fmt.Errorf("query outgoing links: %w", err)
	}
	defer rows.Close()

	var pages []crawler.Page
	for rows.Next() {
		page, err := scanPage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan outgoing link: %w", err)
		}
		pages = append(pages, page)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outgoing links: %w", err)
	}
	return pages, nil
}

// PageByURL loads a page by URL.
func (s *LinkGraphStore) PageByURL(ctx context.Context, url string) (crawler.Page, error) {
	query := `SELECT ` + columns("") + ` FROM webpages WHERE url = $1`
	page, err := scanPage(s.pool.QueryRow(ctx, query, url))
	if errors.Is(err, pgx.ErrNoRows) {
		return crawler.Page{}, crawler.ErrPageNotFound
	}
	if err != nil {
		return crawler.Page{}, fmt.Errorf("select page: %w", err)
	}
	return page, nil
}

func scanPage(row pgx.Row) (crawler.Page, error) {
	var p crawler.Page
	err := row.Scan(
		&p.ID,
		&p.URL,
		&p.Title,
		&p.ContentHash,
		&p.Content,
		&p.FirstSeen,
		&p.LastFetched,
		&p.CrawlDepth,
		&p.StatusCode,
		&p.Error,
		&p.ContentType,
		&p.CollectionID,
		&p.IsSeed,
		&p.IsIndexed,
		&p.IndexedAt,
		&p.CreatedBy,
		&p.UpdatedBy,
		&p.APIKeyName,
	)
	if err != nil {
		return crawler.Page{}, err //nolint:wrapcheck // callers wrap with context
	}
	return p, nil
}
