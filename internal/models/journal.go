// Package models defines the domain types for the work journal.
package models

import "time"

// Kind tells where a journal entry comes from.
type Kind string

const (
	// KindCommit is an entry derived from a commit message.
	KindCommit Kind = "commit"
	// KindCommitPatch is a user-authored entry replacing a derived one.
	KindCommitPatch Kind = "commitpatch"
	// KindCommitless is a user-authored entry with no commit behind it.
	KindCommitless Kind = "commitless"
)

// RawCommit is a commit as returned by the hosting API.
type RawCommit struct {
	SHA     string       `json:"sha"`
	HTMLURL string       `json:"html_url"`
	Commit  CommitDetail `json:"commit"`
	Author  *Account     `json:"author"`
}

// CommitDetail is the git-level part of a RawCommit.
type CommitDetail struct {
	Message string       `json:"message"`
	Author  CommitPerson `json:"author"`
}

// CommitPerson is the author recorded in commit metadata.
type CommitPerson struct {
	Name string    `json:"name"`
	Date time.Time `json:"date"`
}

// Account is the hosting-platform account linked to a commit, if any.
type Account struct {
	Login string `json:"login"`
}

// JournalEntry is one row of worked time.
type JournalEntry struct {
	Key         string    `json:"key"`
	Kind        Kind      `json:"kind"`
	ExceptionID string    `json:"exception_id,omitempty"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Date        time.Time `json:"date"`
	Duration    int       `json:"duration"` // minutes
	Status      string    `json:"status"`
	Author      string    `json:"author"`
	URL         string    `json:"url,omitempty"`
}

// ExceptionRecord is the persisted form of a user-authored entry.
type ExceptionRecord struct {
	ID          string    `json:"id"`
	Type        Kind      `json:"type"`
	SHA         string    `json:"sha,omitempty"`
	URL         string    `json:"url,omitempty"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Date        time.Time `json:"date"`
	Duration    int       `json:"duration"`
	Status      string    `json:"status"`
	Author      string    `json:"author"`
}

// Entry converts the record into the journal entry it stands for.
// A commit patch keeps the commit sha as its key.
func (r ExceptionRecord) Entry() JournalEntry {
	key := r.ID
	if r.Type == KindCommitPatch && r.SHA != "" {
		key = r.SHA
	}
	return JournalEntry{
		Key:         key,
		Kind:        r.Type,
		ExceptionID: r.ID,
		Name:        r.Name,
		Description: r.Description,
		Date:        r.Date,
		Duration:    r.Duration,
		Status:      r.Status,
		Author:      r.Author,
		URL:         r.URL,
	}
}

// Totals is a duration split into whole hours and remaining minutes.
type Totals struct {
	Minutes   int `json:"minutes"`
	Hours     int `json:"hours"`
	Remainder int `json:"remainder"`
}

// DayGroup is the set of entries falling on one calendar day.
type DayGroup struct {
	Day     string         `json:"day"` // 2006-01-02
	Label   string         `json:"label"`
	Entries []JournalEntry `json:"entries"`
	Totals  Totals         `json:"totals"`
}
