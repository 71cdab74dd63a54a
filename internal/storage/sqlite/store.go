// Package sqlite provides a single-file link graph store on modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/JakeFAU/linkgraph-crawler/internal/crawler"
)

const timeLayout = time.RFC3339Nano

const schema = `
CREATE TABLE IF NOT EXISTS webpages (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	url           TEXT NOT NULL UNIQUE,
	title         TEXT NOT NULL DEFAULT '',
	content_hash  TEXT NOT NULL DEFAULT '',
	content       TEXT NOT NULL DEFAULT '',
	first_seen    TEXT NOT NULL,
	last_fetched  TEXT,
	crawl_depth   INTEGER NOT NULL DEFAULT 0,
	status_code   INTEGER NOT NULL DEFAULT 0,
	error         TEXT NOT NULL DEFAULT '',
	content_type  TEXT NOT NULL DEFAULT '',
	collection_id TEXT NOT NULL DEFAULT '',
	is_seed       INTEGER NOT NULL DEFAULT 0,
	is_indexed    INTEGER NOT NULL DEFAULT 0,
	indexed_at    TEXT,
	created_by    TEXT NOT NULL DEFAULT '',
	updated_by    TEXT NOT NULL DEFAULT '',
	api_key_name  TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_webpages_collection ON webpages(collection_id);

CREATE TABLE IF NOT EXISTS webpage_links (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	source_id  INTEGER NOT NULL REFERENCES webpages(id) ON DELETE CASCADE,
	target_id  INTEGER NOT NULL REFERENCES webpages(id) ON DELETE CASCADE,
	text       TEXT NOT NULL DEFAULT '',
	rel        TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_webpage_links_source ON webpage_links(source_id);
`

const pageColumns = `id, url, title, content_hash, content, first_seen, last_fetched,
	crawl_depth, status_code, error, content_type, collection_id,
	is_seed, is_indexed, indexed_at, created_by, updated_by, api_key_name`

// Store implements crawler.LinkGraphStore on a SQLite file.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("store.sqlite.path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path+"?mode=rwc&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	s := &Store{db: db, path: path}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// Migrate creates the schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}

// GetOrCreatePage inserts the page unless its URL exists, then returns the stored row.
func (s *Store) GetOrCreatePage(ctx context.Context, page crawler.NewPage) (crawler.Page, error) {
	_, err := s.db.ExecContext(ctx, `
INSERT OR IGNORE INTO webpages (url, first_seen, crawl_depth, is_seed, collection_id, created_by, updated_by, api_key_name)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		page.URL,
		formatTime(page.FirstSeen),
		page.Depth,
		page.IsSeed,
		page.CollectionID,
		page.CreatedBy,
		page.CreatedBy,
		page.APIKeyName,
	)
	if err != nil {
		return crawler.Page{}, fmt.Errorf("insert page: %w", err)
	}
	return s.PageByURL(ctx, page.URL)
}

// UpdatePageContent records a successful fetch.
func (s *Store) UpdatePageContent(ctx context.Context, pageID int64, update crawler.ContentUpdate) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE webpages
SET title = ?, content_hash = ?, content = ?, status_code = ?, content_type = ?, last_fetched = ?, updated_by = ?
WHERE id = ?`,
		update.Title,
		update.ContentHash,
		update.Content,
		update.StatusCode,
		update.ContentType,
		formatTime(update.FetchedAt),
		update.UpdatedBy,
		pageID,
	)
	if err != nil {
		return fmt.Errorf("update page content: %w", err)
	}
	return requireRow(res, pageID)
}

// UpdatePageError records a failed fetch. Existing content is left intact.
func (s *Store) UpdatePageError(ctx context.Context, pageID int64, update crawler.ErrorUpdate) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE webpages SET error = ?, last_fetched = ?, updated_by = ? WHERE id = ?`,
		update.Message, formatTime(update.FetchedAt), update.UpdatedBy, pageID)
	if err != nil {
		return fmt.Errorf("update page error: %w", err)
	}
	return requireRow(res, pageID)
}

// AddLink inserts an edge row.
func (s *Store) AddLink(ctx context.Context, link crawler.Link) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO webpage_links (source_id, target_id, text, rel, created_at) VALUES (?, ?, ?, ?, ?)`,
		link.SourceID, link.TargetID, link.Text, link.Rel, formatTime(link.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert link: %w", err)
	}
	return nil
}

// OutgoingLinks returns the target pages of pageID in link insertion order.
func (s *Store) OutgoingLinks(ctx context.Context, pageID int64) ([]crawler.Page, error) {
	query := `SELECT ` + qualified("p.") + `
FROM webpage_links l
JOIN webpages p ON p.id = l.target_id
WHERE l.source_id = ?
ORDER BY l.id`
	rows, err := s.db.QueryContext(ctx, query, pageID)
	if err != nil {
		return nil, fmt.Errorf("query outgoing links: %w", err)
	}
	defer func() { _ = rows.Close() }()

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
func (s *Store) PageByURL(ctx context.Context, url string) (crawler.Page, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+pageColumns+` FROM webpages WHERE url = ?`, url)
	page, err := scanPage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return crawler.Page{}, crawler.ErrPageNotFound
	}
	if err != nil {
		return crawler.Page{}, fmt.Errorf("select page: %w", err)
	}
	return page, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPage(row scanner) (crawler.Page, error) {
	var (
		p                    crawler.Page
		firstSeen            string
		lastFetched, indexed sql.NullString
	)
	err := row.Scan(
		&p.ID,
		&p.URL,
		&p.Title,
		&p.ContentHash,
		&p.Content,
		&firstSeen,
		&lastFetched,
		&p.CrawlDepth,
		&p.StatusCode,
		&p.Error,
		&p.ContentType,
		&p.CollectionID,
		&p.IsSeed,
		&p.IsIndexed,
		&indexed,
		&p.CreatedBy,
		&p.UpdatedBy,
		&p.APIKeyName,
	)
	if err != nil {
		return crawler.Page{}, err //nolint:wrapcheck // callers wrap with context
	}
	if p.FirstSeen, err = time.Parse(timeLayout, firstSeen); err != nil {
		return crawler.Page{}, fmt.Errorf("parse first_seen: %w", err)
	}
	if p.LastFetched, err = parseNullTime(lastFetched); err != nil {
		return crawler.Page{}, fmt.Errorf("parse last_fetched: %w", err)
	}
	if p.IndexedAt, err = parseNullTime(indexed); err != nil {
		return crawler.Page{}, fmt.Errorf("parse indexed_at: %w", err)
	}
	return p, nil
}

func qualified(prefix string) string {
	cols := strings.Split(pageColumns, ",")
	for i, c := range cols {
		cols[i] = prefix + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}

func requireRow(res sql.Result, pageID int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("page %d: %w", pageID, crawler.ErrPageNotFound)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseNullTime(v sql.NullString) (*time.Time, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	t, err := time.Parse(timeLayout, v.String)
	if err != nil {
		return nil, err //nolint:wrapcheck // wrapped by scanPage
	}
	return &t, nil
}
