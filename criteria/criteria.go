package criteria

import (
	"net/url"
	"sort"
)

// Criteria represents an immutable set of filter, sort and view fields.
// Only fields that differ from their default are stored; the zero value
// is the default criteria.
type Criteria struct {
	values map[string]string
}

// Defaults returns criteria with every field at its default
func Defaults() Criteria {
	return Criteria{}
}

// Get returns the effective value of a field, falling back to its default
func (c Criteria) Get(name string) string {
	if v, ok := c.values[name]; ok {
		return v
	}
	def, _ := Default(name)
	return def
}

// IsSet reports whether a field holds a non-default value
func (c Criteria) IsSet(name string) bool {
	_, ok := c.values[name]
	return ok
}

// IsDefault reports whether every field is at its default
func (c Criteria) IsDefault() bool {
	return len(c.values) == 0
}

// With returns a copy of c with the field set to value.
// An empty value, or one equal to the field default, unsets the field.
func (c Criteria) With(name, value string) (Criteria, error) {
	v, err := validate(name, value)
	if err != nil {
		return c, err
	}
	n := c.copy()
	if v == "" {
		delete(n, name)
	} else {
		n[name] = v
	}
	return Criteria{values: n}, nil
}

// Without returns a copy of c with the field reset to its default
func (c Criteria) Without(name string) Criteria {
	if !c.IsSet(name) {
		return c
	}
	n := c.copy()
	delete(n, name)
	return Criteria{values: n}
}

// Map returns the non-default fields as a new map
func (c Criteria) Map() map[string]string {
	return c.copy()
}

// Values returns the non-default fields as url values
func (c Criteria) Values() url.Values {
	v := make(url.Values, len(c.values))
	for name, value := range c.values {
		v.Set(name, value)
	}
	return v
}

// Key returns the canonical key: non-default fields sorted by name and
// encoded as a query string. Equal criteria always share a key.
func (c Criteria) Key() string {
	return c.Values().Encode()
}

// Equal reports whether both criteria filter the same way
func (c Criteria) Equal(o Criteria) bool {
	return c.Key() == o.Key()
}

func (c Criteria) String() string {
	if c.IsDefault() {
		return "(defaults)"
	}
	return c.Key()
}

func (c Criteria) copy() map[string]string {
	n := make(map[string]string, len(c.values)+1)
	for k, v := range c.values {
		n[k] = v
	}
	return n
}

// FromMap builds criteria from a field map, keeping every valid field.
// Invalid fields are dropped and reported; unknown fields are ignored.
func FromMap(m map[string]string) (Criteria, []error) {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	c := Defaults()
	var errs []error
	for _, name := range names {
		if _, ok := fields[name]; !ok {
			continue
		}
		n, err := c.With(name, m[name])
		if err != nil {
			errs = append(errs, err)
			continue
		}
		c = n
	}
	return c, errs
}

// FromValues builds criteria from url values the same way FromMap does.
// Only the first value of each parameter is considered.
func FromValues(v url.Values) (Criteria, []error) {
	m := make(map[string]string, len(v))
	for name := range v {
		m[name] = v.Get(name)
	}
	return FromMap(m)
}

// Parse builds criteria from url values, failing on the first invalid field.
// Unknown parameters are ignored.
func Parse(v url.Values) (Criteria, error) {
	c, errs := FromValues(v)
	if len(errs) > 0 {
		return Defaults(), errs[0]
	}
	return c, nil
}
