package storage

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Kind is the SQL type a parameter is bound as. The values double as the
// single-character type tags accepted by Bind.
type Kind byte

const (
	KindInteger Kind = 'i'
	KindDouble  Kind = 'd'
	KindString  Kind = 's'
	KindBlob    Kind = 'b'
)

// String returns the kind's name.
func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindDouble:
		return "double"
	case KindString:
		return "string"
	case KindBlob:
		return "blob"
	default:
		return fmt.Sprintf("kind(%q)", rune(k))
	}
}

// Valid reports whether k is one of the four supported kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindInteger, KindDouble, KindString, KindBlob:
		return true
	}
	return false
}

// Param is a single positional value with an explicit SQL kind.
// A nil Value binds SQL NULL regardless of kind.
type Param struct {
	Kind  Kind
	Value any
}

// Int binds v as an integer.
func Int(v int64) Param { return Param{Kind: KindInteger, Value: v} }

// Double binds v as a double.
func Double(v float64) Param { return Param{Kind: KindDouble, Value: v} }

// String binds v as a string.
func String(v string) Param { return Param{Kind: KindString, Value: v} }

// Blob binds v as binary data.
func Blob(v []byte) Param { return Param{Kind: KindBlob, Value: v} }

// Null binds SQL NULL with the given kind.
func Null(kind Kind) Param { return Param{Kind: kind} }

// Bind builds params from a type-tag string such as "si" and the matching
// values. Every tag must be a known kind and there must be exactly one
// value per tag; values are checked against their kind when the statement
// is bound.
func Bind(types string, values ...any) ([]Param, error) {
	if len(types) != len(values) {
		return nil, fmt.Errorf("%w: %d tags for %d values", ErrTypeTagMismatch, len(types), len(values))
	}

	params := make([]Param, len(values))
	for i := 0; i < len(types); i++ {
		kind := Kind(types[i])
		if !kind.Valid() {
			return nil, fmt.Errorf("%w: %q at position %d", ErrUnknownKind, types[i], i)
		}
		params[i] = Param{Kind: kind, Value: values[i]}
	}
	return params, nil
}

// Types returns the type-tag string describing params.
func Types(params []Param) string {
	var b strings.Builder
	b.Grow(len(params))
	for _, p := range params {
		b.WriteByte(byte(p.Kind))
	}
	return b.String()
}

// driverValue converts the param into the value handed to database/sql.
func (p Param) driverValue() (any, error) {
	if p.Value == nil {
		if !p.Kind.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownKind, rune(p.Kind))
		}
		return nil, nil
	}

	switch p.Kind {
	case KindInteger:
		return toInt64(p.Value)
	case KindDouble:
		return toFloat64(p.Value)
	case KindString:
		switch v := p.Value.(type) {
		case string:
			return v, nil
		case []byte:
			return string(v), nil
		}
	case KindBlob:
		switch v := p.Value.(type) {
		case []byte:
			return v, nil
		case string:
			return []byte(v), nil
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, rune(p.Kind))
	}

	return nil, invalidParam(p.Kind, p.Value)
}

func toInt64(value any) (int64, error) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint:
		if uint64(v) <= math.MaxInt64 {
			return int64(v), nil
		}
	case uint64:
		if v <= math.MaxInt64 {
			return int64(v), nil
		}
	case float32:
		return integralFloat(float64(v), value)
	case float64:
		return integralFloat(v, value)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n, nil
		}
	}
	return 0, invalidParam(KindInteger, value)
}

// integralFloat accepts whole floats in [-2^63, 2^63). float64(math.MaxInt64)
// rounds up to 2^63, so the upper bound is exclusive.
func integralFloat(f float64, original any) (int64, error) {
	if f != math.Trunc(f) || f >= 1<<63 || f < math.MinInt64 {
		return 0, invalidParam(KindInteger, original)
	}
	return int64(f), nil
}

func toFloat64(value any) (float64, error) {
	switch v := value.(type) {
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int8:
		return float64(v), nil
	case int16:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint8:
		return float64(v), nil
	case uint16:
		return float64(v), nil
	case uint32:
		return float64(v), nil
	case uint:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f, nil
		}
	}
	return 0, invalidParam(KindDouble, value)
}

func invalidParam(kind Kind, value any) error {
	return fmt.Errorf("%w: %T cannot be bound as %s", ErrInvalidParam, value, kind)
}
