package index

import (
	"context"
	"fmt"
	"time"

	"github.com/starford/jdt/internal/models"
)

// SearchResult represents one search hit.
type SearchResult struct {
	Key      string      `json:"key"`
	Kind     models.Kind `json:"kind"`
	Name     string      `json:"name"`
	Date     time.Time   `json:"date"`
	Duration int         `json:"duration"`
	Repo     string      `json:"repo"`
	Snippet  string      `json:"snippet"`
}

// UpsertEntries inserts or replaces entries within a transaction. An empty
// repo keeps the repo already recorded for the entry.
func (db *DB) UpsertEntries(ctx context.Context, repo string, entries []models.JournalEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO entries (key, kind, exception_id, name, description, date, duration, status, author, url, repo)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			kind         = excluded.kind,
			exception_id = excluded.exception_id,
			name         = excluded.name,
			description  = excluded.description,
			date         = excluded.date,
			duration     = excluded.duration,
			status       = excluded.status,
			author       = excluded.author,
			url          = excluded.url,
			repo         = CASE WHEN excluded.repo = '' THEN entries.repo ELSE excluded.repo END
	`)
	if err != nil {
		return fmt.Errorf("index: prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx,
			e.Key, string(e.Kind), e.ExceptionID, e.Name, e.Description,
			e.Date.UTC(), e.Duration, e.Status, e.Author, e.URL, repo,
		); err != nil {
			return fmt.Errorf("index: upsert entry %s: %w", e.Key, err)
		}
		if err := ftsUpsert(tx, e); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Count returns the number of indexed entries.
func (db *DB) Count(ctx context.Context) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT count(*) FROM entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("index: count: %w", err)
	}
	return n, nil
}
