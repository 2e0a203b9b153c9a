package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// StringList maps a JSONB array column onto a Go string slice.
type StringList []string

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner.
func (l *StringList) Scan(src any) error {
	if src == nil {
		*l = nil
		return nil
	}
	data, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("unexpected type %T for StringList", src)
	}
	return json.Unmarshal(data, l)
}

// JSONMap maps a JSONB object column onto a generic Go map.
type JSONMap map[string]any

// Value implements driver.Valuer.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner.
func (m *JSONMap) Scan(src any) error {
	if src == nil {
		*m = nil
		return nil
	}
	data, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("unexpected type %T for JSONMap", src)
	}
	return json.Unmarshal(data, m)
}

// JSONValue maps a JSONB column holding an arbitrary document.
type JSONValue struct {
	V     any
	Valid bool
}

// Value implements driver.Valuer.
func (j JSONValue) Value() (driver.Value, error) {
	if !j.Valid {
		return nil, nil
	}
	return json.Marshal(j.V)
}

// Scan implements sql.Scanner.
func (j *JSONValue) Scan(src any) error {
	if src == nil {
		j.V, j.Valid = nil, false
		return nil
	}
	data, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("unexpected type %T for JSONValue", src)
	}
	j.Valid = true
	return json.Unmarshal(data, &j.V)
}

// MarshalJSON renders the wrapped value (null when unset).
func (j JSONValue) MarshalJSON() ([]byte, error) {
	if !j.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(j.V)
}

// UnmarshalJSON wraps an arbitrary JSON document.
func (j *JSONValue) UnmarshalJSON(data []byte) error {
	j.Valid = true
	return json.Unmarshal(data, &j.V)
}
