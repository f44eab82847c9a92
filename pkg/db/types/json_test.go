package dbtypes

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONScanAndValue(t *testing.T) {
	var j JSON
	require.NoError(t, j.Scan([]byte(`{"a":1}`)))
	assert.JSONEq(t, `{"a":1}`, string(j))

	v, err := j.Value()
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, v)

	require.NoError(t, j.Scan(`[1,2]`))
	assert.Equal(t, `[1,2]`, string(j))

	require.NoError(t, j.Scan(nil))
	v, err = j.Value()
	require.NoError(t, err)
	assert.Nil(t, v)

	assert.Error(t, j.Scan(42))
}

func TestJSONRejectsInvalidDocument(t *testing.T) {
	_, err := JSON(`{oops`).Value()
	assert.Error(t, err)
}

func TestJSONInlineMarshal(t *testing.T) {
	out, err := json.Marshal(struct {
		Payload JSON `json:"payload"`
	}{Payload: JSON(`{"id":"x"}`)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"payload":{"id":"x"}}`, string(out))
}
