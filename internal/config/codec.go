package config

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// jsonColumn stores a structured value as a JSON blob. It is the only place
// the serialized form of forms and daily-limit overrides is visible; rows
// carry it and models get the decoded value.
type jsonColumn[T any] struct {
	V     T
	Valid bool
}

func jsonOf[T any](v T, valid bool) jsonColumn[T] {
	return jsonColumn[T]{V: v, Valid: valid}
}

// Value implements driver.Valuer.
func (c jsonColumn[T]) Value() (driver.Value, error) {
	if !c.Valid {
		return nil, nil
	}
	b, err := json.Marshal(c.V)
	if err != nil {
		return nil, fmt.Errorf("encode json column: %w", err)
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (c *jsonColumn[T]) Scan(src any) error {
	var zero T
	c.V, c.Valid = zero, false

	var raw []byte
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("decode json column: unsupported source type %T", src)
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, &c.V); err != nil {
		return fmt.Errorf("decode json column: %w", err)
	}
	c.Valid = true
	return nil
}
