package exceptions

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/starford/jdt/internal/apperr"
	"github.com/starford/jdt/internal/models"
	"github.com/starford/jdt/internal/storage"
)

func testStore(t *testing.T) (*Store, *storage.FS) {
	t.Helper()
	fs, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	n := 0
	s := NewStore(fs, "exceptions.json",
		WithOperator("operator"),
		WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		}),
	)
	return s, fs
}

func validFields() Fields {
	return Fields{
		Name:     "Team meeting",
		Date:     "2025-01-10T09:00:00Z",
		Duration: "45",
	}
}

func TestLoad_InitialisesEmptyStore(t *testing.T) {
	s, fs := testStore(t)
	records, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("len = %d, want 0", len(records))
	}
	data, err := fs.Read("exceptions.json")
	if err != nil {
		t.Fatalf("store file not created: %v", err)
	}
	if strings.TrimSpace(string(data)) != "[]" {
		t.Errorf("initial content = %q", data)
	}
}

func TestLoad_CorruptFileIsError(t *testing.T) {
	s, fs := testStore(t)
	_ = fs.Write("exceptions.json", []byte("{not json"))
	if _, err := s.Load(); err == nil {
		t.Fatal("expected error on corrupt store")
	}
	data, _ := fs.Read("exceptions.json")
	if string(data) != "{not json" {
		t.Errorf("corrupt store overwritten: %q", data)
	}
}

func TestCreateCommitless(t *testing.T) {
	s, _ := testStore(t)
	rec, err := s.CreateCommitless(validFields())
	if err != nil {
		t.Fatalf("CreateCommitless: %v", err)
	}
	if rec.ID != "id-1" || rec.Type != models.KindCommitless {
		t.Errorf("id/type = %q/%q", rec.ID, rec.Type)
	}
	if rec.SHA != "" || rec.URL != "" {
		t.Errorf("commitless record has sha/url: %+v", rec)
	}
	if rec.Author != "operator" {
		t.Errorf("author = %q, want operator", rec.Author)
	}
	if rec.Duration != 45 || !rec.Date.Equal(time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)) {
		t.Errorf("record = %+v", rec)
	}

	records, _ := s.Load()
	if len(records) != 1 || records[0].ID != "id-1" {
		t.Errorf("stored = %+v", records)
	}
}

func TestCreateCommitPatch_DefaultStatus(t *testing.T) {
	s, _ := testStore(t)
	f := validFields()
	f.SHA = "abc123"
	f.URL = "https://github.com/o/r/commit/abc123"
	f.Author = "jdoe"
	rec, err := s.CreateCommitPatch(f)
	if err != nil {
		t.Fatalf("CreateCommitPatch: %v", err)
	}
	if rec.Type != models.KindCommitPatch || rec.SHA != "abc123" || rec.URL != f.URL {
		t.Errorf("record = %+v", rec)
	}
	if rec.Status != DefaultPatchStatus {
		t.Errorf("status = %q, want %q", rec.Status, DefaultPatchStatus)
	}
	if rec.Author != "jdoe" {
		t.Errorf("author = %q", rec.Author)
	}
}

func TestCreateCommitPatch_RequiresSHA(t *testing.T) {
	s, _ := testStore(t)
	_, err := s.CreateCommitPatch(validFields())
	if !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("err = %v, want ErrInvalid", err)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Fields)
		field  string
	}{
		{"missing name", func(f *Fields) { f.Name = "  " }, "name"},
		{"bad date", func(f *Fields) { f.Date = "yesterday" }, "date"},
		{"missing date", func(f *Fields) { f.Date = "" }, "date"},
		{"bad duration", func(f *Fields) { f.Duration = "1h" }, "duration"},
		{"negative duration", func(f *Fields) { f.Duration = "-5" }, "duration"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := validFields()
			tc.mutate(&f)
			err := Validate(f)
			if !errors.Is(err, apperr.ErrInvalid) {
				t.Fatalf("err = %v, want ErrInvalid", err)
			}
			if !strings.Contains(err.Error(), tc.field) {
				t.Errorf("error %q does not name %q", err, tc.field)
			}
		})
	}
}

func TestValidate_AcceptedInputs(t *testing.T) {
	for _, date := range []string{"2025-01-10T09:00:00Z", "2025-01-10T09:00:00+02:00", "2025-01-10T09:00", "2025-01-10"} {
		f := validFields()
		f.Date = date
		if err := Validate(f); err != nil {
			t.Errorf("date %q rejected: %v", date, err)
		}
	}
	for _, d := range []string{"0", "90", " 15 ", "1.5"} {
		f := validFields()
		f.Duration = Minutes(d)
		if err := Validate(f); err != nil {
			t.Errorf("duration %q rejected: %v", d, err)
		}
	}
}

func TestInvalidSubmissionDoesNotWrite(t *testing.T) {
	s, fs := testStore(t)
	_, _ = s.CreateCommitless(validFields())
	before, _ := fs.Read("exceptions.json")

	f := validFields()
	f.Name = ""
	if _, err := s.CreateCommitless(f); err == nil {
		t.Fatal("expected validation error")
	}
	after, _ := fs.Read("exceptions.json")
	if string(before) != string(after) {
		t.Error("store changed after rejected submission")
	}
}

func TestUpdatePatch(t *testing.T) {
	s, _ := testStore(t)
	f := validFields()
	f.SHA = "abc"
	rec, _ := s.CreateCommitPatch(f)

	upd := Fields{Name: "Renamed", Description: "more", Date: "2025-01-11", Duration: "30", Status: "wip", Author: "someone"}
	got, err := s.UpdatePatch(rec.ID, upd, "")
	if err != nil {
		t.Fatalf("UpdatePatch: %v", err)
	}
	if got.Name != "Renamed" || got.Description != "more" || got.Duration != 30 || got.Status != "wip" || got.Author != "someone" {
		t.Errorf("updated = %+v", got)
	}
	if got.SHA != "abc" || got.Type != models.KindCommitPatch || got.ID != rec.ID {
		t.Errorf("immutable fields changed: %+v", got)
	}

	records, _ := s.Load()
	if len(records) != 1 || records[0].Name != "Renamed" {
		t.Errorf("stored = %+v", records)
	}
}

func TestUpdatePatch_NotFoundLeavesStoreUnchanged(t *testing.T) {
	s, fs := testStore(t)
	_, _ = s.CreateCommitless(validFields())
	before, _ := fs.Read("exceptions.json")
	prior, _ := s.Load()

	_, err := s.UpdatePatch("does-not-exist", validFields(), "")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	after, _ := fs.Read("exceptions.json")
	if string(before) != string(after) {
		t.Error("store file changed")
	}
	records, _ := s.Load()
	if len(records) != len(prior) || records[0] != prior[0] {
		t.Errorf("records = %+v, want %+v", records, prior)
	}
}

func TestUpdatePatch_StaleVersionConflicts(t *testing.T) {
	s, _ := testStore(t)
	rec, _ := s.CreateCommitless(validFields())
	_, version, err := s.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	// Another writer changes the file.
	if _, err := s.CreateCommitless(validFields()); err != nil {
		t.Fatalf("CreateCommitless: %v", err)
	}

	_, err = s.UpdatePatch(rec.ID, validFields(), version)
	if !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("err = %v, want ErrConflict", err)
	}
}

func TestSaveIfMatch(t *testing.T) {
	s, _ := testStore(t)
	records, version, err := s.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	records = append(records, models.ExceptionRecord{ID: "x", Type: models.KindCommitless, Name: "n"})
	if err := s.SaveIfMatch(records, version); err != nil {
		t.Fatalf("SaveIfMatch: %v", err)
	}
	if err := s.SaveIfMatch(records, version); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("second SaveIfMatch err = %v, want ErrConflict", err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s, fs := testStore(t)
	f := validFields()
	f.SHA = "abc"
	_, _ = s.CreateCommitPatch(f)
	_, _ = s.CreateCommitless(validFields())
	before, _ := fs.Read("exceptions.json")

	records, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := s.Save(records); err != nil {
		t.Fatalf("Save: %v", err)
	}
	after, _ := fs.Read("exceptions.json")
	if string(before) != string(after) {
		t.Errorf("round trip changed content:\n%s\n---\n%s", before, after)
	}
}

func TestPersistedLayout(t *testing.T) {
	s, fs := testStore(t)
	f := validFields()
	f.SHA = "abc"
	_, _ = s.CreateCommitPatch(f)
	data, _ := fs.Read("exceptions.json")
	for _, key := range []string{`"id"`, `"type": "commitpatch"`, `"sha": "abc"`, `"date": "2025-01-10T09:00:00Z"`, `"duration": 45`} {
		if !strings.Contains(string(data), key) {
			t.Errorf("persisted record missing %s:\n%s", key, data)
		}
	}
}

func TestConcurrentCreatesDoNotLoseUpdates(t *testing.T) {
	fs, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	s := NewStore(fs, "exceptions.json")
	const n = 20
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			_, err := s.CreateCommitless(validFields())
			errs <- err
		}()
	}
	for i := 0; i < n; i++ {
		if err := <-errs; err != nil {
			t.Fatalf("CreateCommitless: %v", err)
		}
	}
	records, _ := s.Load()
	if len(records) != n {
		t.Errorf("len = %d, want %d", len(records), n)
	}
}

func TestApply(t *testing.T) {
	s, _ := testStore(t)

	rec, created, err := s.Apply(Submission{Kind: SubmitCommitless, Fields: validFields()})
	if err != nil || !created || rec.Type != models.KindCommitless {
		t.Fatalf("commitless: rec=%+v created=%v err=%v", rec, created, err)
	}

	f := validFields()
	f.SHA = "abc"
	rec, created, err = s.Apply(Submission{Kind: SubmitPatch, Fields: f})
	if err != nil || !created || rec.Type != models.KindCommitPatch {
		t.Fatalf("patch: rec=%+v created=%v err=%v", rec, created, err)
	}

	f.Name = "edited"
	rec, created, err = s.Apply(Submission{Kind: SubmitEdit, ID: rec.ID, Fields: f})
	if err != nil || created || rec.Name != "edited" {
		t.Fatalf("edit: rec=%+v created=%v err=%v", rec, created, err)
	}

	if _, _, err := s.Apply(Submission{Kind: "bogus", Fields: f}); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("bogus kind err = %v", err)
	}
	if _, _, err := s.Apply(Submission{Kind: SubmitEdit, Fields: f}); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("edit without id err = %v", err)
	}
}

func TestDecodeLegacyForm(t *testing.T) {
	base := url.Values{"name": {"n"}, "date": {"2025-01-10"}, "duration": {"5"}}
	with := func(kv ...string) url.Values {
		v := url.Values{}
		for k, vs := range base {
			v[k] = vs
		}
		for i := 0; i < len(kv); i += 2 {
			v.Set(kv[i], kv[i+1])
		}
		return v
	}

	sub := DecodeLegacyForm(with("exceptionId", "-", "sha", "-"))
	if sub.Kind != SubmitCommitless || sub.SHA != "" {
		t.Errorf("commitless: %+v", sub)
	}
	sub = DecodeLegacyForm(with("exceptionId", "-", "sha", "abc", "url", "u"))
	if sub.Kind != SubmitPatch || sub.SHA != "abc" || sub.URL != "u" {
		t.Errorf("patch: %+v", sub)
	}
	sub = DecodeLegacyForm(with("exceptionId", "id-7", "sha", "abc"))
	if sub.Kind != SubmitEdit || sub.ID != "id-7" {
		t.Errorf("edit: %+v", sub)
	}
	sub = DecodeLegacyForm(base)
	if sub.Kind != SubmitCommitless {
		t.Errorf("missing sentinels: %+v", sub)
	}
}

func TestPath(t *testing.T) {
	s, fs := testStore(t)
	p, err := s.Path()
	if err != nil {
		t.Fatalf("Path: %v", err)
	}
	if p != filepath.Join(fs.Root(), "exceptions.json") {
		t.Errorf("path = %q", p)
	}
	if _, err := os.Stat(filepath.Dir(p)); err != nil {
		t.Errorf("stat dir: %v", err)
	}
}

func TestSubmissionJSON_DurationNumberOrString(t *testing.T) {
	cases := map[string]Minutes{
		`{"kind":"new_commitless","id":"x","name":"n","date":"2025-01-10","duration":90}`:   "90",
		`{"kind":"new_commitless","id":"x","name":"n","date":"2025-01-10","duration":"45"}`: "45",
		`{"kind":"new_commitless","id":"x","name":"n","date":"2025-01-10","duration":1.5}`:  "1.5",
		`{"kind":"new_commitless","id":"x","name":"n","date":"2025-01-10","duration":"1h"}`: "1h",
	}
	for body, want := range cases {
		var sub Submission
		if err := json.Unmarshal([]byte(body), &sub); err != nil {
			t.Errorf("%s: %v", body, err)
			continue
		}
		if sub.Duration != want {
			t.Errorf("%s: duration = %q, want %q", body, sub.Duration, want)
		}
		if sub.Kind != SubmitCommitless || sub.ID != "x" || sub.Name != "n" {
			t.Errorf("%s: other fields lost: %+v", body, sub)
		}
	}

	var sub Submission
	if err := json.Unmarshal([]byte(`{"duration":true}`), &sub); err == nil {
		t.Error("boolean duration should be rejected")
	}
}
