// Package storage persists extracted page records in SQLite and serves
// the keyword-search, listing, and maintenance operations over them.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/mcardoso/go-ragcrawl/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS scraped_content (
	id          TEXT PRIMARY KEY,
	url         TEXT NOT NULL,
	title       TEXT,
	content     TEXT,
	metadata    TEXT,
	timestamp   TEXT,
	website_url TEXT
);
CREATE INDEX IF NOT EXISTS idx_scraped_content_url ON scraped_content(url);
CREATE INDEX IF NOT EXISTS idx_scraped_content_website ON scraped_content(website_url);
`

// Store is a SQLite-backed document store keyed by URL-derived ids.
// Re-adding a document for the same URL replaces the previous row.
type Store struct {
	db   *sql.DB
	path string
}

// Document is one stored page record.
type Document struct {
	ID         string
	URL        string
	Title      string
	Content    string
	Metadata   map[string]any
	Timestamp  string
	WebsiteURL string
}

// SearchResult is one keyword-search hit.
type SearchResult struct {
	URL      string
	Title    string
	Content  string
	Metadata map[string]any
}

// Stats summarizes store contents.
type Stats struct {
	TotalDocuments int
	UniqueWebsites int
	Path           string
}

// Open opens or creates the store at path, creating parent directories
// as needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite supports a single writer; a second connection buys nothing.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DocumentID derives the stable row id for a URL.
func DocumentID(url string) string {
	id := make([]byte, 0, len(url))
	for i := 0; i < len(url); i++ {
		switch url[i] {
		case '/', ':', '.':
			id = append(id, '_')
		default:
			id = append(id, url[i])
		}
	}
	return string(id)
}

// AddDocuments stores one row per page. urls, titles, contents, and
// metadatas must be equal length; websiteURL groups the batch under its
// originating site. The store assigns ids and its own timestamps.
func (s *Store) AddDocuments(ctx context.Context, urls, titles, contents []string, metadatas []models.Metadata, websiteURL string) error {
	if len(urls) == 0 {
		return nil
	}
	if len(titles) != len(urls) || len(contents) != len(urls) {
		return fmt.Errorf("urls, titles, and contents must have the same length")
	}
	if metadatas != nil && len(metadatas) != len(urls) {
		return fmt.Errorf("metadatas must match urls in length")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO scraped_content
		(id, url, title, content, metadata, timestamp, website_url)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Format(time.RFC3339)
	for i, url := range urls {
		var md models.Metadata
		if metadatas != nil {
			md = metadatas[i]
		}
		metadataJSON, err := json.Marshal(SanitizeMetadata(md))
		if err != nil {
			return fmt.Errorf("marshal metadata for %s: %w", url, err)
		}

		if _, err := stmt.ExecContext(ctx,
			DocumentID(url), url, titles[i], contents[i],
			string(metadataJSON), now, websiteURL,
		); err != nil {
			return fmt.Errorf("insert %s: %w", url, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// SanitizeMetadata flattens page metadata to scalar-only values. The
// heading outline is serialized to a JSON string under "headings".
func SanitizeMetadata(md models.Metadata) map[string]any {
	sanitized := make(map[string]any, len(md.Tags)+1)
	for key, value := range md.Tags {
		sanitized[key] = value
	}
	if len(md.Headings) > 0 {
		if encoded, err := json.Marshal(md.Headings); err == nil {
			sanitized["headings"] = string(encoded)
		}
	}
	return sanitized
}

// Search returns up to n documents whose content matches query,
// optionally restricted to one website. Matching is plain substring
// search; ranking belongs to the vector layer this store backs up.
func (s *Store) Search(ctx context.Context, query string, n int, websiteURL string) ([]SearchResult, error) {
	if n <= 0 {
		n = 5
	}

	q := `SELECT url, title, content, metadata FROM scraped_content WHERE content LIKE ?`
	args := []any{"%" + query + "%"}
	if websiteURL != "" {
		q += ` AND website_url = ?`
		args = append(args, websiteURL)
	}
	q += ` LIMIT ?`
	args = append(args, n)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		var metadataJSON string
		if err := rows.Scan(&r.URL, &r.Title, &r.Content, &metadataJSON); err != nil {
			return nil, fmt.Errorf("scan search row: %w", err)
		}
		r.Metadata = decodeMetadata(metadataJSON)
		results = append(results, r)
	}
	return results, rows.Err()
}

// Documents lists stored documents, optionally filtered by website.
func (s *Store) Documents(ctx context.Context, websiteURL string) ([]Document, error) {
	q := `SELECT id, url, title, content, metadata, timestamp, website_url FROM scraped_content`
	var args []any
	if websiteURL != "" {
		q += ` WHERE website_url = ?`
		args = append(args, websiteURL)
	}
	q += ` ORDER BY timestamp`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		var metadataJSON string
		if err := rows.Scan(&d.ID, &d.URL, &d.Title, &d.Content, &metadataJSON, &d.Timestamp, &d.WebsiteURL); err != nil {
			return nil, fmt.Errorf("scan document row: %w", err)
		}
		d.Metadata = decodeMetadata(metadataJSON)
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// ClearWebsite removes all documents stored for one website.
func (s *Store) ClearWebsite(ctx context.Context, websiteURL string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM scraped_content WHERE website_url = ?`, websiteURL); err != nil {
		return fmt.Errorf("clear website %s: %w", websiteURL, err)
	}
	return nil
}

// Clear removes every stored document.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM scraped_content`); err != nil {
		return fmt.Errorf("clear store: %w", err)
	}
	return nil
}

// Stats reports document and website counts.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{Path: s.path}
	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(DISTINCT website_url) FROM scraped_content`)
	if err := row.Scan(&stats.TotalDocuments, &stats.UniqueWebsites); err != nil {
		return Stats{}, fmt.Errorf("stats: %w", err)
	}
	return stats, nil
}

func decodeMetadata(raw string) map[string]any {
	if raw == "" {
		return map[string]any{}
	}
	var md map[string]any
	if err := json.Unmarshal([]byte(raw), &md); err != nil {
		return map[string]any{}
	}
	return md
}
