package exceptions

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/starford/jdt/internal/apperr"
)

// SubmissionKind discriminates the three write requests.
type SubmissionKind string

const (
	SubmitCommitless SubmissionKind = "new_commitless"
	SubmitPatch      SubmissionKind = "new_patch"
	SubmitEdit       SubmissionKind = "edit"
)

// legacySentinel marks an unset field in the flat form payload.
const legacySentinel = "-"

// Submission is a decoded write request against the store.
type Submission struct {
	Kind SubmissionKind `json:"kind"`
	// ID targets an existing record; only meaningful for SubmitEdit.
	ID string `json:"id,omitempty"`
	// IfMatch, when set, is the store version the edit was based on.
	IfMatch string `json:"-"`
	Fields
}

// Check rejects submissions whose discriminant and payload disagree.
func (s Submission) Check() error {
	switch s.Kind {
	case SubmitCommitless:
	case SubmitPatch:
		if strings.TrimSpace(s.SHA) == "" {
			return fmt.Errorf("%w: sha: cannot be blank", apperr.ErrInvalid)
		}
	case SubmitEdit:
		if strings.TrimSpace(s.ID) == "" {
			return fmt.Errorf("%w: id: cannot be blank", apperr.ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: kind: must be one of %s, %s, %s",
			apperr.ErrInvalid, SubmitCommitless, SubmitPatch, SubmitEdit)
	}
	return nil
}

// DecodeLegacyForm maps the flat form of the journal page, where
// exceptionId "-" means "not an edit" and sha "-" means "no commit", to a
// Submission.
func DecodeLegacyForm(form url.Values) Submission {
	field := func(name string) string {
		v := strings.TrimSpace(form.Get(name))
		if v == legacySentinel {
			return ""
		}
		return v
	}

	sub := Submission{
		Fields: Fields{
			SHA:         field("sha"),
			URL:         field("url"),
			Name:        form.Get("name"),
			Description: form.Get("description"),
			Date:        form.Get("date"),
			Duration:    Minutes(form.Get("duration")),
			Status:      form.Get("status"),
			Author:      form.Get("author"),
		},
	}
	switch {
	case field("exceptionId") != "":
		sub.Kind = SubmitEdit
		sub.ID = field("exceptionId")
	case sub.SHA == "":
		sub.Kind = SubmitCommitless
	default:
		sub.Kind = SubmitPatch
	}
	return sub
}
