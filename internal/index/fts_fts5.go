//go:build sqlite_fts5

package index

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/starford/jdt/internal/models"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS entries_fts USING fts5(
			key UNINDEXED,
			name,
			description,
			status,
			author,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, e models.JournalEntry) error {
	_, _ = tx.Exec(`DELETE FROM entries_fts WHERE key = ?`, e.Key)
	_, err := tx.Exec(`INSERT INTO entries_fts (key, name, description, status, author) VALUES (?, ?, ?, ?, ?)`,
		e.Key, e.Name, e.Description, e.Status, e.Author)
	if err != nil {
		return fmt.Errorf("index: upsert fts: %w", err)
	}
	return nil
}

// Search performs an FTS5 full-text search and returns matching entries with snippets.
func (db *DB) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT e.key, e.kind, e.name, e.date, e.duration, e.repo,
		       snippet(entries_fts, 2, '<b>', '</b>', '...', 32)
		FROM entries_fts
		JOIN entries e ON e.key = entries_fts.key
		WHERE entries_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Key, &r.Kind, &r.Name, &r.Date, &r.Duration, &r.Repo, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
