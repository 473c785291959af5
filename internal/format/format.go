// Package format renders a journal report for the terminal.
package format

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/starford/jdt/internal/journal"
	"github.com/starford/jdt/internal/journalservice"
)

// Formats understood by Write.
const (
	Text = "text"
	TSV  = "tsv"
	JSON = "json"
)

// Names lists the supported formats.
var Names = []string{Text, TSV, JSON}

// Write renders rep to w in the named format.
func Write(w io.Writer, name string, rep *journalservice.Report) error {
	switch name {
	case Text, "":
		return WriteText(w, rep)
	case TSV:
		return WriteTSV(w, rep)
	case JSON:
		return WriteJSON(w, rep)
	default:
		return fmt.Errorf("format: unknown format %q (want one of %s)", name, strings.Join(Names, ", "))
	}
}

// Duration renders minutes as "1h05".
func Duration(minutes int) string {
	t := journal.Split(minutes)
	return fmt.Sprintf("%dh%02d", t.Hours, t.Remainder)
}

// WriteText prints one block per day followed by the grand total.
func WriteText(w io.Writer, rep *journalservice.Report) error {
	if !rep.Configured {
		_, err := fmt.Fprintln(w, "no repository configured")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	header := fmt.Sprintf("%s/%s [branch: %s]", rep.Owner, rep.Repo, rep.SelectedBranch)
	if rep.SinceDisplay != "" {
		header += " since " + rep.SinceDisplay
	}
	fmt.Fprintln(tw, header)

	for _, g := range rep.Groups {
		fmt.Fprintf(tw, "\n%s\t\t%s\t\n", g.Label, Duration(g.Totals.Minutes))
		for _, e := range g.Entries {
			status := ""
			if e.Status != "" {
				status = "[" + e.Status + "]"
			}
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\n",
				e.Date.UTC().Format("15:04"), e.Name, Duration(e.Duration), status, e.Author)
		}
	}

	fmt.Fprintf(tw, "\nTotal\t\t%s\t(%d min)\n", Duration(rep.Totals.Minutes), rep.Totals.Minutes)
	for _, o := range rep.Orphans {
		fmt.Fprintf(tw, "warning: patch %s targets commit %s outside the range\n", o.ID, o.SHA)
	}
	return tw.Flush()
}

var tsvHeader = []string{"day", "time", "kind", "key", "name", "minutes", "status", "author", "url"}

// WriteTSV prints one line per entry, suitable for a spreadsheet.
func WriteTSV(w io.Writer, rep *journalservice.Report) error {
	if _, err := fmt.Fprintln(w, strings.Join(tsvHeader, "\t")); err != nil {
		return err
	}
	for _, g := range rep.Groups {
		for _, e := range g.Entries {
			row := []string{
				g.Day,
				e.Date.UTC().Format("15:04"),
				string(e.Kind),
				e.Key,
				e.Name,
				fmt.Sprint(e.Duration),
				e.Status,
				e.Author,
				e.URL,
			}
			for i := range row {
				row[i] = tsvField(row[i])
			}
			if _, err := fmt.Fprintln(w, strings.Join(row, "\t")); err != nil {
				return err
			}
		}
	}
	return nil
}

func tsvField(s string) string {
	return strings.NewReplacer("\t", " ", "\r", " ", "\n", " ").Replace(s)
}

// WriteJSON prints the render context as indented JSON.
func WriteJSON(w io.Writer, rep *journalservice.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}
