package store

import (
	"database/sql"
	"fmt"

	"github.com/roach88/slotbind/internal/ir"
)

// marshalValue converts a slot value to canonical JSON TEXT (RFC 8785), so
// equal values are stored as equal strings.
func marshalValue(field string, v ir.IRValue) (string, error) {
	if v == nil {
		return "", fmt.Errorf("marshal %s: value is nil", field)
	}
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("marshal %s: %w", field, err)
	}
	return string(data), nil
}

// marshalOptional is marshalValue for old and committed, which are NULL
// while a late slot has no value.
func marshalOptional(field string, v ir.IRValue) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	s, err := marshalValue(field, v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: s, Valid: true}, nil
}

// unmarshalOptional reverses marshalOptional.
func unmarshalOptional(field string, data sql.NullString) (ir.IRValue, error) {
	if !data.Valid {
		return nil, nil
	}
	return unmarshalValue(field, data.String)
}

// unmarshalValue parses canonical JSON TEXT back to an IR value. Integers
// are decoded via json.Number so values past 2^53 survive.
func unmarshalValue(field, data string) (ir.IRValue, error) {
	v, err := ir.UnmarshalIRValue([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", field, err)
	}
	return v, nil
}
