// Package journal turns commits and exception records into a day-grouped
// work journal.
package journal

import (
	"github.com/starford/jdt/internal/models"
	"github.com/starford/jdt/internal/parser"
)

// UnknownAuthor is shown when a commit carries no usable author.
const UnknownAuthor = "?"

// FromCommit maps a raw commit to a commit-derived journal entry.
func FromCommit(c models.RawCommit) models.JournalEntry {
	res := parser.Parse(c.Commit.Message)
	return models.JournalEntry{
		Key:         c.SHA,
		Kind:        models.KindCommit,
		Name:        res.Title,
		Description: res.Description,
		Date:        c.Commit.Author.Date,
		Duration:    res.Duration,
		Status:      res.Status,
		Author:      commitAuthor(c),
		URL:         c.HTMLURL,
	}
}

// FromCommits maps every commit, keeping order.
func FromCommits(commits []models.RawCommit) []models.JournalEntry {
	out := make([]models.JournalEntry, 0, len(commits))
	for _, c := range commits {
		out = append(out, FromCommit(c))
	}
	return out
}

func commitAuthor(c models.RawCommit) string {
	if c.Author != nil && c.Author.Login != "" {
		return c.Author.Login
	}
	if c.Commit.Author.Name != "" {
		return c.Commit.Author.Name
	}
	return UnknownAuthor
}

// DropUnjournaled removes commit-derived entries without a duration.
// Such commits carry no meta tag. User-authored entries are always kept.
func DropUnjournaled(entries []models.JournalEntry) []models.JournalEntry {
	out := make([]models.JournalEntry, 0, len(entries))
	for _, e := range entries {
		if e.Kind == models.KindCommit && e.Duration == 0 {
			continue
		}
		out = append(out, e)
	}
	return out
}
