package journal

import (
	"sort"

	"github.com/starford/jdt/internal/models"
)

const (
	dayKeyLayout   = "2006-01-02"
	dayLabelLayout = "Monday 2 January 2006"
)

// DayKey is the UTC calendar date of the entry.
func DayKey(e models.JournalEntry) string {
	return e.Date.UTC().Format(dayKeyLayout)
}

// GroupByDay sorts entries chronologically and groups them by UTC calendar
// day. Groups come out in chronological order.
func GroupByDay(entries []models.JournalEntry) []models.DayGroup {
	sorted := make([]models.JournalEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	var groups []models.DayGroup
	index := make(map[string]int)
	for _, e := range sorted {
		key := DayKey(e)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, models.DayGroup{
				Day:   key,
				Label: e.Date.UTC().Format(dayLabelLayout),
			})
		}
		groups[i].Entries = append(groups[i].Entries, e)
	}
	for i := range groups {
		groups[i].Totals = Total(groups[i].Entries)
	}
	return groups
}

// Total sums entry durations.
func Total(entries []models.JournalEntry) models.Totals {
	minutes := 0
	for _, e := range entries {
		minutes += e.Duration
	}
	return Split(minutes)
}

// Split decomposes minutes into whole hours and remaining minutes.
func Split(minutes int) models.Totals {
	return models.Totals{
		Minutes:   minutes,
		Hours:     minutes / 60,
		Remainder: minutes % 60,
	}
}

// Journal is the assembled, report-ready journal.
type Journal struct {
	Entries []models.JournalEntry
	Groups  []models.DayGroup
	Totals  models.Totals
	Orphans []models.ExceptionRecord
}

// Assemble runs the whole derivation: normalize, reconcile, drop untagged
// commits, group and total. The grand total covers the final merged set, so
// it always equals the sum of the day totals.
func Assemble(commits []models.RawCommit, records []models.ExceptionRecord) Journal {
	rec := Reconcile(FromCommits(commits), records)
	entries := DropUnjournaled(rec.Entries)
	return Journal{
		Entries: entries,
		Groups:  GroupByDay(entries),
		Totals:  Total(entries),
		Orphans: rec.Orphans,
	}
}
