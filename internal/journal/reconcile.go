package journal

import (
	"strings"

	"github.com/starford/jdt/internal/models"
)

// Reconciled is the output of Reconcile.
type Reconciled struct {
	Entries []models.JournalEntry
	// Orphans are commit patches whose commit is not among the derived entries.
	Orphans []models.ExceptionRecord
}

// NormalizeKey is the form under which shas and ids are compared.
func NormalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// Reconcile applies exception records over derived entries. A matching
// commit patch replaces the derived entry as a whole. Commitless records are
// appended once each, in store order. When several patches target the same
// commit the last one in the store wins.
func Reconcile(derived []models.JournalEntry, records []models.ExceptionRecord) Reconciled {
	patches := make(map[string]models.ExceptionRecord)
	var patchOrder []string
	var commitless []models.ExceptionRecord

	for _, r := range records {
		switch r.Type {
		case models.KindCommitPatch:
			key := r.SHA
			if key == "" {
				key = r.ID
			}
			key = NormalizeKey(key)
			if _, seen := patches[key]; !seen {
				patchOrder = append(patchOrder, key)
			}
			patches[key] = r
		case models.KindCommitless:
			commitless = append(commitless, r)
		}
	}

	used := make(map[string]struct{}, len(patches))
	out := make([]models.JournalEntry, 0, len(derived)+len(commitless))
	for _, e := range derived {
		key := NormalizeKey(e.Key)
		if p, ok := patches[key]; ok {
			used[key] = struct{}{}
			out = append(out, p.Entry())
			continue
		}
		out = append(out, e)
	}
	for _, r := range commitless {
		out = append(out, r.Entry())
	}

	var orphans []models.ExceptionRecord
	for _, key := range patchOrder {
		if _, ok := used[key]; !ok {
			orphans = append(orphans, patches[key])
		}
	}

	return Reconciled{Entries: out, Orphans: orphans}
}
