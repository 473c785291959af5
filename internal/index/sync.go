package index

import (
	"context"
	"log/slog"

	"github.com/starford/jdt/internal/models"
)

// RecordSource supplies the current exception records.
type RecordSource interface {
	Load() ([]models.ExceptionRecord, error)
}

// SyncExceptions brings the indexed copy of every exception record up to
// date. Records are indexed under their journal key, so a commit patch
// overwrites the row of the commit it replaces.
func SyncExceptions(ctx context.Context, db *DB, src RecordSource, logger *slog.Logger) error {
	records, err := src.Load()
	if err != nil {
		return err
	}
	entries := make([]models.JournalEntry, 0, len(records))
	for _, r := range records {
		entries = append(entries, r.Entry())
	}
	if err := db.UpsertEntries(ctx, "", entries); err != nil {
		return err
	}
	logger.Debug("sync: exceptions indexed", slog.Int("count", len(entries)))
	return nil
}
