// Package record defines the typed, ordered records that flow from extraction
// through the intermediate sink into the warehouse, and the schema they are checked against
package record

import (
	"encoding/json"
	"math"
	"strconv"
	"time"
)

// Kind is the scalar type of a Value
type Kind uint8

// Supported kinds
const (
	KindInvalid Kind = iota
	KindString
	KindFloat
	KindInt
	KindBool
	KindDate
	KindTimestamp
)

var kindNames = [...]string{"INVALID", "STRING", "FLOAT", "INTEGER", "BOOLEAN", "DATE", "TIMESTAMP"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// DateLayout is the canonical wire form for KindDate values
const DateLayout = "2006-01-02"

// Value is a tagged scalar. The zero Value is invalid; use the constructors
type Value struct {
	kind Kind
	null bool
	s    string
	f    float64
	i    int64
	b    bool
	t    time.Time
}

// String returns a non-null string value
func String(s string) Value { return Value{kind: KindString, s: s} }

// Float returns a non-null float value
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// Int returns a non-null integer value
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Bool returns a non-null boolean value
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Date returns a non-null calendar date (time of day and zone are dropped)
func Date(t time.Time) Value {
	y, m, d := t.Date()
	return Value{kind: KindDate, t: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// Timestamp returns a non-null instant normalized to UTC
func Timestamp(t time.Time) Value { return Value{kind: KindTimestamp, t: t.UTC()} }

// Null returns a null of the given kind
func Null(k Kind) Value { return Value{kind: k, null: true} }

// Kind returns the value's kind
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value is null
func (v Value) IsNull() bool { return v.null }

// Valid reports whether the value was built by a constructor
func (v Value) Valid() bool { return v.kind != KindInvalid }

// Str returns the string payload
func (v Value) Str() string { return v.s }

// Float returns the float payload
func (v Value) Float() float64 { return v.f }

// Int returns the integer payload
func (v Value) Int() int64 { return v.i }

// Bool returns the boolean payload
func (v Value) Bool() bool { return v.b }

// Time returns the date or timestamp payload
func (v Value) Time() time.Time { return v.t }

// Any returns the payload as a driver-friendly Go value; nil for null
func (v Value) Any() any {
	if v.null {
		return nil
	}
	switch v.kind {
	case KindString:
		return v.s
	case KindFloat:
		return v.f
	case KindInt:
		return v.i
	case KindBool:
		return v.b
	case KindDate, KindTimestamp:
		return v.t
	}
	return nil
}

// Canonical renders the value as a stable string used for identity keys and digests
func (v Value) Canonical() string {
	if v.null {
		return "\x00"
	}
	switch v.kind {
	case KindString:
		return v.s
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindDate:
		return v.t.Format(DateLayout)
	case KindTimestamp:
		return v.t.Format(time.RFC3339Nano)
	}
	return ""
}

// Equal reports whether two values have the same kind, nullness and payload
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind || v.null != o.null {
		return false
	}
	if v.null {
		return true
	}
	switch v.kind {
	case KindDate, KindTimestamp:
		return v.t.Equal(o.t)
	case KindFloat:
		return v.f == o.f
	}
	return v.Canonical() == o.Canonical()
}

// MarshalJSON encodes the payload as a plain JSON scalar
func (v Value) MarshalJSON() ([]byte, error) {
	if v.null || v.kind == KindInvalid {
		return []byte("null"), nil
	}
	switch v.kind {
	case KindFloat:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return []byte("null"), nil
		}
		return strconv.AppendFloat(nil, v.f, 'g', -1, 64), nil
	case KindInt:
		return strconv.AppendInt(nil, v.i, 10), nil
	case KindBool:
		return strconv.AppendBool(nil, v.b), nil
	case KindString:
		return json.Marshal(v.s)
	}
	return json.Marshal(v.Canonical())
}
