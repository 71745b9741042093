package cache

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultSetIsReadOnly(t *testing.T) {
	assert := assert.New(t)

	records := []json.RawMessage{json.RawMessage(`{"name":"Aeroflot Open"}`)}
	rs := NewResultSet(records, 10, true)
	records[0][2] = 'X'

	assert.Equal(`{"name":"Aeroflot Open"}`, string(rs.Record(0)))
	out := rs.Records()
	out[0][2] = 'Y'
	assert.Equal(`{"name":"Aeroflot Open"}`, string(rs.Record(0)))
	assert.Equal(10, rs.Total())
	assert.True(rs.Partial())
	assert.Equal(1, rs.Len())
}

func TestResultSetTotalNeverBelowLen(t *testing.T) {
	rs := NewResultSet([]json.RawMessage{json.RawMessage(`1`), json.RawMessage(`2`)}, 0, false)
	assert.Equal(t, 2, rs.Total())
}

func TestResultSetRecordOutOfRange(t *testing.T) {
	assert := assert.New(t)

	rs := NewResultSet([]json.RawMessage{json.RawMessage(`1`)}, 1, false)
	assert.Nil(rs.Record(-1))
	assert.Nil(rs.Record(1))

	var empty *ResultSet
	assert.Nil(empty.Record(0))
	assert.Nil(empty.Records())
	assert.Error(empty.Decode(0, &struct{}{}))
}

func TestResultSetDecode(t *testing.T) {
	assert := assert.New(t)

	rs := NewResultSet([]json.RawMessage{json.RawMessage(`{"name":"Tal Memorial"}`)}, 1, false)
	var v struct {
		Name string `json:"name"`
	}
	assert.NoError(rs.Decode(0, &v))
	assert.Equal("Tal Memorial", v.Name)
	assert.Error(rs.Decode(1, &v))
	assert.Error(rs.Decode(-1, &v))
}

func TestResultSetJSON(t *testing.T) {
	assert := assert.New(t)

	rs := NewResultSet([]json.RawMessage{json.RawMessage(`{"id":"t1"}`)}, 4, true)
	data, err := json.Marshal(rs)
	require.NoError(t, err)
	assert.JSONEq(`{"records":[{"id":"t1"}],"total":4,"partial":true}`, string(data))

	var decoded ResultSet
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(4, decoded.Total())
	assert.True(decoded.Partial())
	assert.JSONEq(`{"id":"t1"}`, string(decoded.Record(0)))

	var empty *ResultSet
	data, err = json.Marshal(empty)
	assert.NoError(err)
	assert.Equal("null", string(data))
	assert.Zero(empty.Len())
}
