package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// ErrMalformedAttribute reports an attribute that is present but carries a
// value of the wrong type.
var ErrMalformedAttribute = errors.New("malformed attribute")

// Attributes holds heterogeneous sensor or configuration values keyed by name.
// Values arrive as int/int64/float64/json.Number/bool depending on the decoder.
type Attributes map[string]any

func (a Attributes) Has(key string) bool {
	if a == nil {
		return false
	}
	v, ok := a[key]
	return ok && v != nil
}

// Float returns the numeric value under key. ok is false when the key is
// absent; err is non-nil when the value is present but not numeric.
func (a Attributes) Float(key string) (v float64, ok bool, err error) {
	if !a.Has(key) {
		return 0, false, nil
	}
	switch n := a[key].(type) {
	case float64:
		return n, true, nil
	case float32:
		return float64(n), true, nil
	case int:
		return float64(n), true, nil
	case int32:
		return float64(n), true, nil
	case int64:
		return float64(n), true, nil
	case uint64:
		return float64(n), true, nil
	case json.Number:
		f, perr := n.Float64()
		if perr != nil {
			return 0, false, malformed(key, a[key])
		}
		return f, true, nil
	default:
		return 0, false, malformed(key, a[key])
	}
}

// Int is Float restricted to whole numbers. Fractional values are malformed.
func (a Attributes) Int(key string) (int64, bool, error) {
	f, ok, err := a.Float(key)
	if err != nil || !ok {
		return 0, ok, err
	}
	if f != math.Trunc(f) {
		return 0, false, malformed(key, a[key])
	}
	return int64(f), true, nil
}

// Bool accepts booleans and the numeric encodings 0 and 1.
func (a Attributes) Bool(key string) (v bool, ok bool, err error) {
	if !a.Has(key) {
		return false, false, nil
	}
	if b, isBool := a[key].(bool); isBool {
		return b, true, nil
	}
	f, ok, err := a.Float(key)
	if err != nil {
		return false, false, err
	}
	switch f {
	case 0:
		return false, ok, nil
	case 1:
		return true, ok, nil
	default:
		return false, false, malformed(key, a[key])
	}
}

// FloatOr returns the numeric value under key, or fallback when it is absent
// or malformed.
func (a Attributes) FloatOr(key string, fallback float64) float64 {
	v, ok, err := a.Float(key)
	if !ok || err != nil {
		return fallback
	}
	return v
}

func (a Attributes) BoolOr(key string, fallback bool) bool {
	v, ok, err := a.Bool(key)
	if !ok || err != nil {
		return fallback
	}
	return v
}

func malformed(key string, v any) error {
	return fmt.Errorf("%w: %s=%v (%T)", ErrMalformedAttribute, key, v, v)
}
