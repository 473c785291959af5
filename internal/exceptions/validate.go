package exceptions

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/jdt/internal/apperr"
)

// Fields is a user-submitted exception before validation.
// Values arrive as text, the way an HTML form posts them.
type Fields struct {
	SHA         string  `json:"sha"`
	URL         string  `json:"url"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Date        string  `json:"date"`
	Duration    Minutes `json:"duration"`
	Status      string  `json:"status"`
	Author      string  `json:"author"`
}

// Minutes is a submitted duration in minutes. JSON clients may send it as a
// number or as the text a form would post.
type Minutes string

// UnmarshalJSON accepts a JSON number or string.
func (m *Minutes) UnmarshalJSON(data []byte) error {
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*m = Minutes(n.String())
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return errors.New("duration: must be a number or a string")
	}
	*m = Minutes(s)
	return nil
}

// dateLayouts are the accepted date inputs. Layouts without an offset are UTC.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

func (f Fields) trimmed() Fields {
	return Fields{
		SHA:         strings.TrimSpace(f.SHA),
		URL:         strings.TrimSpace(f.URL),
		Name:        strings.TrimSpace(f.Name),
		Description: strings.TrimSpace(f.Description),
		Date:        strings.TrimSpace(f.Date),
		Duration:    Minutes(strings.TrimSpace(string(f.Duration))),
		Status:      strings.TrimSpace(f.Status),
		Author:      strings.TrimSpace(f.Author),
	}
}

// Validate reports whether f can become an exception record: a name, a
// parseable date and a non-negative numeric duration are required.
// The returned error matches apperr.ErrInvalid.
func Validate(f Fields) error {
	f = f.trimmed()
	err := validation.ValidateStruct(&f,
		validation.Field(&f.Name, validation.Required),
		validation.Field(&f.Date, validation.Required, validation.By(isTimestamp)),
		validation.Field(&f.Duration, validation.Required, validation.By(isMinutes)),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrInvalid, err)
	}
	return nil
}

func isTimestamp(value interface{}) error {
	s, _ := value.(string)
	if _, err := ParseDate(s); err != nil {
		return errors.New("must be a valid date")
	}
	return nil
}

func isMinutes(value interface{}) error {
	m, _ := value.(Minutes)
	if _, err := ParseMinutes(string(m)); err != nil {
		return err
	}
	return nil
}

// ParseDate parses a submitted date into a UTC instant.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

// ParseMinutes parses a submitted duration, rounding to whole minutes.
func ParseMinutes(s string) (int, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.New("must be a number")
	}
	if v < 0 {
		return 0, errors.New("must be no less than 0")
	}
	if v > math.MaxInt32 {
		return 0, errors.New("is too large")
	}
	return int(math.Round(v)), nil
}
