package index

import (
	"context"

	"github.com/starford/jdt/internal/models"
)

// EntryIndex defines the journal index operations.
// Consumers should depend on this interface rather than the concrete *DB type.
type EntryIndex interface {
	UpsertEntries(ctx context.Context, repo string, entries []models.JournalEntry) error
	Search(ctx context.Context, query string, limit int) ([]SearchResult, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

// Verify *DB satisfies EntryIndex at compile time.
var _ EntryIndex = (*DB)(nil)
