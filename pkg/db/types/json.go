package dbtypes

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSON stores raw JSON in a jsonb (Postgres) or text (sqlite) column. Values are sent as
// strings so the simple query protocol never encodes them as bytea.
type JSON json.RawMessage

func (j *JSON) Scan(src any) error {
	if src == nil {
		*j = nil
		return nil
	}
	switch v := src.(type) {
	case string:
		*j = append((*j)[:0], v...)
	case []byte:
		*j = append((*j)[:0], v...)
	default:
		return fmt.Errorf("JSON: unsupported Scan type %T", src)
	}
	return nil
}

func (j JSON) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	if !json.Valid(j) {
		return nil, fmt.Errorf("JSON: invalid document")
	}
	return string(j), nil
}

// MarshalJSON keeps the document inline when the owning struct is encoded.
func (j JSON) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return j, nil
}

func (j *JSON) UnmarshalJSON(data []byte) error {
	*j = append((*j)[:0], data...)
	return nil
}

// RawMessage exposes the document for json.Unmarshal.
func (j JSON) RawMessage() json.RawMessage {
	return json.RawMessage(j)
}
