// Package metadata models loosely-typed document metadata as a tagged union
// so range comparisons can never be applied to non-numeric fields without an
// explicit kind check.
package metadata

import (
	"encoding/json"
	"fmt"
)

// Kind discriminates the metadata value union.
type Kind int

// Value kinds.
const (
	KindString Kind = iota
	KindNumber
	KindBool
	KindRange
)

// Value is a metadata value: a scalar (string, number, bool) or a numeric
// range expression. Scalars appear in document metadata; a Range appears on
// the filter side of a query and means "numeric field within bounds".
type Value struct {
	kind    Kind
	str     string
	num     float64
	boolean bool
	rng     *Range
}

// String creates a string value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Number creates a numeric value.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// Bool creates a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, boolean: b} }

// RangeValue creates a range value.
func RangeValue(r Range) Value { return Value{kind: KindRange, rng: &r} }

// Kind returns the value discriminator.
func (v Value) Kind() Kind { return v.kind }

// Str returns the string payload (valid when Kind == KindString).
func (v Value) Str() string { return v.str }

// Num returns the numeric payload (valid when Kind == KindNumber).
func (v Value) Num() float64 { return v.num }

// Boolean returns the bool payload (valid when Kind == KindBool).
func (v Value) Boolean() bool { return v.boolean }

// Range returns the range payload (nil unless Kind == KindRange).
func (v Value) Range() *Range { return v.rng }

// Equal reports scalar equality. Range values are never equal to anything:
// a range is a constraint, not a comparable datum.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind || v.kind == KindRange {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == other.str
	case KindNumber:
		return v.num == other.num
	case KindBool:
		return v.boolean == other.boolean
	}
	return false
}

// MarshalJSON encodes the value as its natural JSON form.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		return json.Marshal(v.num)
	case KindBool:
		return json.Marshal(v.boolean)
	case KindRange:
		return json.Marshal(v.rng.bounds())
	}
	return nil, fmt.Errorf("unknown metadata value kind %d", v.kind)
}

// UnmarshalJSON decodes a scalar or a {gt,gte,lt,lte} range object.
// Arrays, null, and objects with other keys are rejected.
func (v *Value) UnmarshalJSON(data []byte) error {
	i := 0
	for i < len(data) && isSpace(data[i]) {
		i++
	}
	if i == len(data) {
		return fmt.Errorf("empty metadata value")
	}

	switch data[i] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("parse string value: %w", err)
		}
		*v = String(s)
		return nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return fmt.Errorf("parse bool value: %w", err)
		}
		*v = Bool(b)
		return nil
	case '{':
		r, err := parseRange(data)
		if err != nil {
			return err
		}
		*v = RangeValue(r)
		return nil
	case '[':
		return fmt.Errorf("array metadata values are not supported")
	case 'n':
		return fmt.Errorf("null metadata values are not supported")
	default:
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			return fmt.Errorf("parse numeric value: %w", err)
		}
		*v = Number(f)
		return nil
	}
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// Range is a numeric range with gt/gte/lt/lte boundaries. All present bounds
// apply conjunctively; contradictory bounds (e.g. gte > lte) simply match
// nothing.
type Range struct {
	gt  *float64
	gte *float64
	lt  *float64
	lte *float64
}

// NewRange validates and creates a Range. At least one boundary is required.
func NewRange(gt, gte, lt, lte *float64) (Range, error) {
	if gt == nil && gte == nil && lt == nil && lte == nil {
		return Range{}, fmt.Errorf("at least one range boundary is required")
	}
	return Range{gt: gt, gte: gte, lt: lt, lte: lte}, nil
}

// GT returns the lower exclusive bound.
func (r Range) GT() *float64 { return r.gt }

// GTE returns the lower inclusive bound.
func (r Range) GTE() *float64 { return r.gte }

// LT returns the upper exclusive bound.
func (r Range) LT() *float64 { return r.lt }

// LTE returns the upper inclusive bound.
func (r Range) LTE() *float64 { return r.lte }

// Contains reports whether f satisfies every present bound.
func (r Range) Contains(f float64) bool {
	if r.gt != nil && !(f > *r.gt) {
		return false
	}
	if r.gte != nil && !(f >= *r.gte) {
		return false
	}
	if r.lt != nil && !(f < *r.lt) {
		return false
	}
	if r.lte != nil && !(f <= *r.lte) {
		return false
	}
	return true
}

func (r *Range) bounds() map[string]float64 {
	m := make(map[string]float64, 2)
	if r.gt != nil {
		m["gt"] = *r.gt
	}
	if r.gte != nil {
		m["gte"] = *r.gte
	}
	if r.lt != nil {
		m["lt"] = *r.lt
	}
	if r.lte != nil {
		m["lte"] = *r.lte
	}
	return m
}

func parseRange(data []byte) (Range, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Range{}, fmt.Errorf("parse range object: %w", err)
	}

	bounds := make(map[string]*float64, len(raw))
	for key, val := range raw {
		switch key {
		case "gt", "gte", "lt", "lte":
			var f float64
			if err := json.Unmarshal(val, &f); err != nil {
				return Range{}, fmt.Errorf("range bound %q must be numeric: %w", key, err)
			}
			bounds[key] = &f
		default:
			return Range{}, fmt.Errorf("unknown range operator %q (want gt, gte, lt, lte)", key)
		}
	}

	return NewRange(bounds["gt"], bounds["gte"], bounds["lt"], bounds["lte"])
}

// Map is document metadata: field name to scalar value.
type Map map[string]Value

// Filter is a query-side constraint set: field name to an equality scalar or
// a numeric Range.
type Filter map[string]Value

// Matches reports whether meta satisfies every constraint in the filter.
// An empty filter matches everything, including documents with no metadata.
// A missing key, a scalar mismatch, or a range operator applied to a
// non-numeric field all disqualify the document; evaluation short-circuits
// on the first unmet constraint.
func Matches(meta Map, f Filter) bool {
	for key, want := range f {
		got, ok := meta[key]
		if !ok {
			return false
		}
		if want.Kind() == KindRange {
			if got.Kind() != KindNumber {
				return false
			}
			if !want.Range().Contains(got.Num()) {
				return false
			}
			continue
		}
		if !want.Equal(got) {
			return false
		}
	}
	return true
}

// Clone returns a shallow copy of the map (values are immutable).
func (m Map) Clone() Map {
	if m == nil {
		return nil
	}
	c := make(Map, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}
