package criteria

import (
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// Field names, used verbatim as query-string parameter names
const (
	FieldCategory = "category"
	FieldLocation = "location"
	FieldStatus   = "status"
	FieldDateFrom = "dateFrom"
	FieldDateTo   = "dateTo"
	FieldSortBy   = "sortBy"
	FieldSortDir  = "sortDir"
	FieldView     = "view"
	FieldPage     = "page"
)

// DateLayout is the layout of date fields
const DateLayout = "2006-01-02"

const (
	maxLocationLength = 100
	maxPage           = 10000
)

// field describes the shape and default of a single criteria field.
// normalize returns the canonical form of a non-empty value or a reason
// the value was rejected.
type field struct {
	def       string
	normalize func(string) (string, error)
}

var fields = map[string]field{
	FieldCategory: {normalize: enum("Classical", "Rapid", "Blitz", "Bullet", "Chess960")},
	FieldLocation: {normalize: text(maxLocationLength)},
	FieldStatus:   {normalize: enum("upcoming", "ongoing", "finished")},
	FieldDateFrom: {normalize: date},
	FieldDateTo:   {normalize: date},
	FieldSortBy:   {def: "start_date", normalize: enum("start_date", "name", "location", "category")},
	FieldSortDir:  {def: "asc", normalize: enum("asc", "desc")},
	FieldView:     {def: "grid", normalize: enum("grid", "list")},
	FieldPage:     {def: "1", normalize: page},
}

// Fields returns all known field names in canonical (sorted) order
func Fields() []string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Default returns the default value of a field and whether the field exists
func Default(name string) (string, bool) {
	f, ok := fields[name]
	return f.def, ok
}

// validate returns the canonical value for name, or "" when the value
// resets the field to its default.
func validate(name, value string) (string, error) {
	f, ok := fields[name]
	if !ok {
		return "", &ValidationError{Field: name, Value: value, Reason: "unknown field"}
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", nil
	}
	v, err := f.normalize(value)
	if err != nil {
		return "", &ValidationError{Field: name, Value: value, Reason: err.Error()}
	}
	if v == f.def {
		return "", nil
	}
	return v, nil
}

func enum(allowed ...string) func(string) (string, error) {
	return func(v string) (string, error) {
		for _, a := range allowed {
			if strings.EqualFold(a, v) {
				return a, nil
			}
		}
		return "", errors.Errorf("must be one of %s", strings.Join(allowed, ", "))
	}
}

func text(limit int) func(string) (string, error) {
	return func(v string) (string, error) {
		for _, r := range v {
			if unicode.IsControl(r) && !unicode.IsSpace(r) {
				return "", errors.New("contains control characters")
			}
		}
		v = strings.Join(strings.Fields(v), " ")
		if utf8.RuneCountInString(v) > limit {
			return "", errors.Errorf("must be at most %d characters", limit)
		}
		return v, nil
	}
}

func date(v string) (string, error) {
	t, err := time.Parse(DateLayout, v)
	if err != nil {
		return "", errors.New("must be a date formatted as YYYY-MM-DD")
	}
	return t.Format(DateLayout), nil
}

func page(v string) (string, error) {
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 || n > maxPage {
		return "", errors.Errorf("must be a number between 1 and %d", maxPage)
	}
	return strconv.Itoa(n), nil
}
