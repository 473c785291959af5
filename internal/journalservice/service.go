// Package journalservice turns a repository's commit history plus the
// exception store into a grouped, totalled work journal.
package journalservice

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/starford/jdt/internal/apperr"
	"github.com/starford/jdt/internal/exceptions"
	"github.com/starford/jdt/internal/github"
	"github.com/starford/jdt/internal/index"
	"github.com/starford/jdt/internal/journal"
	"github.com/starford/jdt/internal/models"
)

// FallbackBranch is used when the repository lists no branches at all.
const FallbackBranch = "main"

const sinceDisplayLayout = "2 January 2006"

// CommitSource lists branches and commits of a hosted repository.
// *github.Client implements it.
type CommitSource interface {
	ListBranches(ctx context.Context, owner, repo string) ([]string, error)
	ListCommits(ctx context.Context, owner, repo, branch string, since time.Time) ([]models.RawCommit, error)
}

var _ CommitSource = (*github.Client)(nil)

// Publisher is notified of exception writes.
type Publisher interface {
	PublishExceptionEvent(kind, id string)
}

// Defaults fill in query fields left empty.
type Defaults struct {
	RepoURL string
	Branch  string
	Since   string
}

// Query selects the journal to build.
type Query struct {
	RepoURL string
	Branch  string
	Since   string
	// StrictBranch fails on an unknown branch instead of falling back.
	StrictBranch bool
}

// Report is the render context of one journal.
type Report struct {
	RepoURL        string                   `json:"repoUrl"`
	Owner          string                   `json:"owner"`
	Repo           string                   `json:"repo"`
	Branches       []string                 `json:"branches"`
	SelectedBranch string                   `json:"selectedBranch"`
	Since          string                   `json:"since"`
	SinceDisplay   string                   `json:"sinceDisplay"`
	Groups         []models.DayGroup        `json:"groups"`
	Totals         models.Totals            `json:"totals"`
	Orphans        []models.ExceptionRecord `json:"orphans"`
	Configured     bool                     `json:"configured"`
}

// Service coordinates the commit source, the exception store and the index.
type Service struct {
	commits  CommitSource
	store    *exceptions.Store
	idx      index.EntryIndex
	defaults Defaults
	pub      Publisher
	log      *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithIndex enables indexing of built journals and search.
func WithIndex(idx index.EntryIndex) Option {
	return func(s *Service) { s.idx = idx }
}

// WithDefaults sets the query defaults.
func WithDefaults(d Defaults) Option {
	return func(s *Service) { s.defaults = d }
}

// WithPublisher sets the receiver of exception write events.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.pub = p }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// NewService creates a journal service.
func NewService(commits CommitSource, store *exceptions.Store, opts ...Option) *Service {
	s := &Service{
		commits:  commits,
		store:    store,
		defaults: Defaults{Branch: FallbackBranch},
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Report builds the journal for q.
func (s *Service) Report(ctx context.Context, q Query) (*Report, error) {
	q = s.withDefaults(q)

	since, err := ParseSince(q.Since)
	if err != nil {
		return nil, err
	}

	rep := &Report{
		RepoURL:        q.RepoURL,
		Branches:       []string{},
		SelectedBranch: q.Branch,
		Since:          q.Since,
		SinceDisplay:   DisplaySince(since),
		Groups:         []models.DayGroup{},
		Orphans:        []models.ExceptionRecord{},
	}

	owner, repo, ok := github.ParseRepoURL(q.RepoURL)
	if !ok {
		return rep, nil
	}
	rep.Owner, rep.Repo, rep.Configured = owner, repo, true

	branches, err := s.commits.ListBranches(ctx, owner, repo)
	if err != nil {
		return nil, err
	}
	if branches != nil {
		rep.Branches = branches
	}
	branch, err := SelectBranch(q.Branch, branches, q.StrictBranch)
	if err != nil {
		return nil, err
	}
	rep.SelectedBranch = branch

	commits, err := s.commits.ListCommits(ctx, owner, repo, branch, since)
	if err != nil {
		return nil, err
	}
	records, err := s.store.Load()
	if err != nil {
		return nil, err
	}

	j := journal.Assemble(commits, records)
	if j.Groups != nil {
		rep.Groups = j.Groups
	}
	if j.Orphans != nil {
		rep.Orphans = j.Orphans
	}
	rep.Totals = j.Totals

	for _, o := range j.Orphans {
		s.log.Warn("journal: patch targets a commit outside the range",
			slog.String("exception_id", o.ID),
			slog.String("sha", o.SHA),
			slog.String("repo", owner+"/"+repo),
			slog.String("branch", branch))
	}

	if s.idx != nil {
		if err := s.idx.UpsertEntries(ctx, owner+"/"+repo, j.Entries); err != nil {
			s.log.Error("journal: index entries", slog.String("error", err.Error()))
		}
	}

	s.log.Info("journal: report built",
		slog.String("repo", owner+"/"+repo),
		slog.String("branch", branch),
		slog.Int("commits", len(commits)),
		slog.Int("entries", len(j.Entries)),
		slog.Int("minutes", j.Totals.Minutes))
	return rep, nil
}

// Exceptions returns the stored records and the store version.
func (s *Service) Exceptions(_ context.Context) ([]models.ExceptionRecord, string, error) {
	return s.store.Snapshot()
}

// Submit applies a write request to the store, indexes the resulting record
// and notifies the publisher.
func (s *Service) Submit(ctx context.Context, sub exceptions.Submission) (models.ExceptionRecord, bool, error) {
	rec, created, err := s.store.Apply(sub)
	if err != nil {
		return models.ExceptionRecord{}, false, err
	}

	if s.idx != nil {
		if err := s.idx.UpsertEntries(ctx, "", []models.JournalEntry{rec.Entry()}); err != nil {
			s.log.Error("journal: index exception", slog.String("id", rec.ID), slog.String("error", err.Error()))
		}
	}

	kind := "exception.updated"
	if created {
		kind = "exception.created"
	}
	if s.pub != nil {
		s.pub.PublishExceptionEvent(kind, rec.ID)
	}
	s.log.Info("journal: exception saved",
		slog.String("id", rec.ID),
		slog.String("type", string(rec.Type)),
		slog.Bool("created", created))
	return rec, created, nil
}

// Search looks entries up in the index.
func (s *Service) Search(ctx context.Context, q string, limit int) ([]index.SearchResult, error) {
	if strings.TrimSpace(q) == "" {
		return nil, fmt.Errorf("%w: q: cannot be blank", apperr.ErrInvalid)
	}
	if s.idx == nil {
		return []index.SearchResult{}, nil
	}
	results, err := s.idx.Search(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	if results == nil {
		results = []index.SearchResult{}
	}
	return results, nil
}

func (s *Service) withDefaults(q Query) Query {
	if q.RepoURL == "" {
		q.RepoURL = s.defaults.RepoURL
	}
	if q.Branch == "" {
		q.Branch = s.defaults.Branch
	}
	if q.Branch == "" {
		q.Branch = FallbackBranch
	}
	if q.Since == "" {
		q.Since = s.defaults.Since
	}
	return q
}

// SelectBranch picks requested when the repository has it. Otherwise the
// first listed branch is used, or FallbackBranch when there is none. In
// strict mode an unknown branch is an error naming the available ones.
func SelectBranch(requested string, branches []string, strict bool) (string, error) {
	if slices.Contains(branches, requested) {
		return requested, nil
	}
	if strict {
		return "", fmt.Errorf("%w: branch %q not found, available: %s",
			apperr.ErrInvalid, requested, strings.Join(branches, ", "))
	}
	if len(branches) > 0 {
		return branches[0], nil
	}
	return FallbackBranch, nil
}

// ParseSince accepts a calendar date or any timestamp the exception store
// accepts. Blank means no lower bound.
func ParseSince(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := exceptions.ParseDate(raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: since: %v", apperr.ErrInvalid, err)
	}
	return t, nil
}

// DisplaySince formats since for humans; the zero time renders empty.
func DisplaySince(since time.Time) string {
	if since.IsZero() {
		return ""
	}
	return since.UTC().Format(sinceDisplayLayout)
}
