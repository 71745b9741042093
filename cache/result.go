package cache

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// NewResultSet returns a result set holding copies of records.
// total is the number of matches the records were taken from; a total
// smaller than the number of records is raised to it.
func NewResultSet(records []json.RawMessage, total int, partial bool) *ResultSet {
	rs := &ResultSet{
		records: make([]json.RawMessage, len(records)),
		total:   total,
		partial: partial,
	}
	for i, r := range records {
		rs.records[i] = copyRecord(r)
	}
	if rs.total < len(rs.records) {
		rs.total = len(rs.records)
	}

	return rs
}

// ResultSet represents an ordered, read-only sequence of opaque JSON records
type ResultSet struct {
	records []json.RawMessage
	total   int
	partial bool
}

type resultSetJSON struct {
	Records []json.RawMessage `json:"records"`
	Total   int               `json:"total"`
	Partial bool              `json:"partial"`
}

// Len returns the number of records in the set
func (r *ResultSet) Len() int {
	if r == nil {
		return 0
	}
	return len(r.records)
}

// Total returns the number of matches the set was taken from
func (r *ResultSet) Total() int {
	if r == nil {
		return 0
	}
	return r.total
}

// Partial reports whether the set holds fewer records than matched
func (r *ResultSet) Partial() bool {
	if r == nil {
		return false
	}
	return r.partial
}

// Record returns a copy of the i-th record, or nil when i is out of range
func (r *ResultSet) Record(i int) json.RawMessage {
	if i < 0 || i >= r.Len() {
		return nil
	}
	return copyRecord(r.records[i])
}

// Records returns copies of all records
func (r *ResultSet) Records() []json.RawMessage {
	if r == nil {
		return nil
	}
	out := make([]json.RawMessage, len(r.records))
	for i, rec := range r.records {
		out[i] = copyRecord(rec)
	}
	return out
}

// Decode unmarshals the i-th record into v
func (r *ResultSet) Decode(i int, v interface{}) error {
	if i < 0 || i >= r.Len() {
		return errors.Errorf("record %d out of range", i)
	}
	err := json.Unmarshal(r.records[i], v)
	if err != nil {
		return errors.Wrapf(err, "failed to decode record %d", i)
	}
	return nil
}

// MarshalJSON encodes the set as {"records":[...],"total":N,"partial":bool}
func (r *ResultSet) MarshalJSON() ([]byte, error) {
	out := resultSetJSON{Records: []json.RawMessage{}}
	if r != nil {
		out.Records = r.records
		out.Total = r.total
		out.Partial = r.partial
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a set produced by MarshalJSON
func (r *ResultSet) UnmarshalJSON(data []byte) error {
	var in resultSetJSON
	err := json.Unmarshal(data, &in)
	if err != nil {
		return errors.Wrap(err, "failed to parse result set")
	}
	*r = *NewResultSet(in.Records, in.Total, in.Partial)
	return nil
}

func copyRecord(r json.RawMessage) json.RawMessage {
	if r == nil {
		return nil
	}
	c := make(json.RawMessage, len(r))
	copy(c, r)
	return c
}
