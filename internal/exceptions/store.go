// Package exceptions persists user-authored journal entries: patches that
// replace a commit-derived entry and commitless additions.
package exceptions

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/starford/jdt/internal/apperr"
	"github.com/starford/jdt/internal/checksum"
	"github.com/starford/jdt/internal/journal"
	"github.com/starford/jdt/internal/models"
	"github.com/starford/jdt/internal/storage"
)

// DefaultPatchStatus is applied to commit patches submitted without a status.
const DefaultPatchStatus = "Done"

// Store is the exception collection kept in one JSON file.
//
// Every write is a whole-file rewrite. Writers inside the process are
// serialised by mu; writers in other processes are detected through the
// file checksum (see SaveIfMatch).
type Store struct {
	files    storage.Provider
	path     string
	operator string
	newID    func() string
	mu       sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithOperator sets the author used for entries submitted without one.
func WithOperator(name string) Option {
	return func(s *Store) {
		s.operator = name
	}
}

// WithIDGenerator replaces the uuid-based id generator.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) {
		s.newID = fn
	}
}

// NewStore creates a store for the file at path inside files.
func NewStore(files storage.Provider, path string, opts ...Option) *Store {
	s := &Store{
		files:    files,
		path:     path,
		operator: journal.UnknownAuthor,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the absolute location of the backing file.
func (s *Store) Path() (string, error) {
	return s.files.Abs(s.path)
}

// Load returns the full collection, creating an empty one on first access.
func (s *Store) Load() ([]models.ExceptionRecord, error) {
	records, _, err := s.Snapshot()
	return records, err
}

// Snapshot returns the collection together with its version tag.
func (s *Store) Snapshot() ([]models.ExceptionRecord, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

// Save replaces the stored collection.
func (s *Store) Save(records []models.ExceptionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(records)
}

// SaveIfMatch replaces the stored collection only if it is still at version.
// A stale version fails with apperr.ErrConflict.
func (s *Store) SaveIfMatch(records []models.ExceptionRecord, version string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, current, err := s.read(); err != nil {
		return err
	} else if current != version {
		return apperr.ErrConflict
	}
	return s.write(records)
}

// CreateCommitPatch appends a record replacing the entry of commit f.SHA.
func (s *Store) CreateCommitPatch(f Fields) (models.ExceptionRecord, error) {
	return s.create(models.KindCommitPatch, f)
}

// CreateCommitless appends a record with no commit behind it.
func (s *Store) CreateCommitless(f Fields) (models.ExceptionRecord, error) {
	return s.create(models.KindCommitless, f)
}

// UpdatePatch overwrites the mutable fields of record id. A non-empty
// ifMatch must equal the current store version. Unknown ids fail with
// apperr.ErrNotFound and leave the file untouched.
func (s *Store) UpdatePatch(id string, f Fields, ifMatch string) (models.ExceptionRecord, error) {
	if err := Validate(f); err != nil {
		return models.ExceptionRecord{}, err
	}
	f = f.trimmed()

	s.mu.Lock()
	defer s.mu.Unlock()

	records, version, err := s.read()
	if err != nil {
		return models.ExceptionRecord{}, err
	}
	if ifMatch != "" && ifMatch != version {
		return models.ExceptionRecord{}, apperr.ErrConflict
	}

	key := journal.NormalizeKey(id)
	for i := range records {
		if journal.NormalizeKey(records[i].ID) != key {
			continue
		}
		rec := &records[i]
		rec.Name = f.Name
		rec.Description = f.Description
		rec.Date, _ = ParseDate(f.Date)
		rec.Duration, _ = ParseMinutes(string(f.Duration))
		rec.Author = s.authorOrOperator(f.Author)
		rec.Status = f.Status
		if err := s.write(records); err != nil {
			return models.ExceptionRecord{}, err
		}
		return *rec, nil
	}
	return models.ExceptionRecord{}, fmt.Errorf("exception %q: %w", id, apperr.ErrNotFound)
}

// Apply dispatches a decoded submission. created reports whether a new
// record was appended.
func (s *Store) Apply(sub Submission) (rec models.ExceptionRecord, created bool, err error) {
	if err := sub.Check(); err != nil {
		return models.ExceptionRecord{}, false, err
	}
	switch sub.Kind {
	case SubmitCommitless:
		rec, err = s.CreateCommitless(sub.Fields)
		return rec, err == nil, err
	case SubmitPatch:
		rec, err = s.CreateCommitPatch(sub.Fields)
		return rec, err == nil, err
	default:
		rec, err = s.UpdatePatch(sub.ID, sub.Fields, sub.IfMatch)
		return rec, false, err
	}
}

func (s *Store) create(kind models.Kind, f Fields) (models.ExceptionRecord, error) {
	if err := Validate(f); err != nil {
		return models.ExceptionRecord{}, err
	}
	f = f.trimmed()
	if kind == models.KindCommitPatch && f.SHA == "" {
		return models.ExceptionRecord{}, fmt.Errorf("%w: sha: cannot be blank", apperr.ErrInvalid)
	}

	date, _ := ParseDate(f.Date)
	minutes, _ := ParseMinutes(string(f.Duration))
	rec := models.ExceptionRecord{
		ID:          s.newID(),
		Type:        kind,
		Name:        f.Name,
		Description: f.Description,
		Date:        date,
		Duration:    minutes,
		Status:      f.Status,
		Author:      s.authorOrOperator(f.Author),
	}
	if kind == models.KindCommitPatch {
		rec.SHA = f.SHA
		rec.URL = f.URL
		if rec.Status == "" {
			rec.Status = DefaultPatchStatus
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, _, err := s.read()
	if err != nil {
		return models.ExceptionRecord{}, err
	}
	records = append(records, rec)
	if err := s.write(records); err != nil {
		return models.ExceptionRecord{}, err
	}
	return rec, nil
}

func (s *Store) authorOrOperator(author string) string {
	if author != "" {
		return author
	}
	return s.operator
}

// read must be called with mu held.
func (s *Store) read() ([]models.ExceptionRecord, string, error) {
	data, err := s.files.Read(s.path)
	if errors.Is(err, os.ErrNotExist) {
		data = encode(nil)
		if err := s.files.Write(s.path, data); err != nil {
			return nil, "", fmt.Errorf("exceptions: initialise store: %w", err)
		}
	} else if err != nil {
		return nil, "", fmt.Errorf("exceptions: load: %w", err)
	}

	var records []models.ExceptionRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, "", fmt.Errorf("exceptions: corrupt store %s: %w", s.path, err)
	}
	if records == nil {
		records = []models.ExceptionRecord{}
	}
	return records, checksum.Sum(data), nil
}

// write must be called with mu held.
func (s *Store) write(records []models.ExceptionRecord) error {
	if err := s.files.Write(s.path, encode(records)); err != nil {
		return fmt.Errorf("exceptions: save: %w", err)
	}
	return nil
}

func encode(records []models.ExceptionRecord) []byte {
	if records == nil {
		records = []models.ExceptionRecord{}
	}
	// Marshalling plain records cannot fail.
	data, _ := json.MarshalIndent(records, "", "  ")
	return append(data, '\n')
}
