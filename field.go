package fixgate

import (
	"math"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// TimestampFormat is the wire layout of UTCTimestamp fields.
const TimestampFormat = "20060102-15:04:05.000"

// Tag is a FIX field number.
type Tag int

// Kind is the declared type of a tag.
type Kind uint8

const (
	KindString Kind = iota + 1
	KindInt
	KindFloat
	KindChar
	KindTimestamp
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindChar:
		return "char"
	case KindTimestamp:
		return "timestamp"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is a typed field value. The zero Value is invalid and is rejected by
// the codec.
//
// Floats are fixed-point decimals with an explicit scale so that a value
// always encodes to the same string it was decoded from ("755.930" stays
// "755.930").
type Value struct {
	kind  Kind
	str   string
	num   int64
	dec   decimal.Decimal
	scale int32
	char  byte
	ts    time.Time
}

// Field is a tag paired with its value.
type Field struct {
	Tag   Tag
	Value Value
}

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Int returns an integer value.
func Int(n int64) Value { return Value{kind: KindInt, num: n} }

// Float returns a float value whose scale is the number of fractional digits
// carried by d.
func Float(d decimal.Decimal) Value {
	scale := -d.Exponent()
	if scale < 0 {
		scale = 0
	}
	return Value{kind: KindFloat, dec: d, scale: scale}
}

// FloatFixed returns a float value rendered with exactly scale fractional
// digits.
func FloatFixed(d decimal.Decimal, scale int32) Value {
	if scale < 0 {
		scale = 0
	}
	return Value{kind: KindFloat, dec: d.Round(scale), scale: scale}
}

// FloatOf converts a binary float. NaN and infinities cannot be represented.
func FloatOf(f float64) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}, &FieldError{Reason: "float " + strconv.FormatFloat(f, 'g', -1, 64) + " is not representable"}
	}
	return Float(decimal.NewFromFloat(f)), nil
}

// MustFloat parses a decimal literal and panics if it is not one. Intended
// for template literals.
func MustFloat(s string) Value {
	v, err := parseFloat(0, s)
	if err != nil {
		panic(err)
	}
	return v
}

// Char returns a single-character value.
func Char(c byte) Value { return Value{kind: KindChar, char: c} }

// Timestamp returns a UTC timestamp value truncated to milliseconds.
func Timestamp(t time.Time) Value {
	return Value{kind: KindTimestamp, ts: t.UTC().Truncate(time.Millisecond)}
}

// Kind returns the value's kind, or 0 for the zero Value.
func (v Value) Kind() Kind { return v.kind }

// IsZero reports whether v is the zero Value.
func (v Value) IsZero() bool { return v.kind == 0 }

// Decimal returns the decimal of a float value.
func (v Value) Decimal() (decimal.Decimal, bool) { return v.dec, v.kind == KindFloat }

// Scale returns the number of fractional digits a float value renders with.
func (v Value) Scale() int32 { return v.scale }

// Int64 returns the integer of an int value.
func (v Value) Int64() (int64, bool) { return v.num, v.kind == KindInt }

// Time returns the time of a timestamp value.
func (v Value) Time() (time.Time, bool) { return v.ts, v.kind == KindTimestamp }

// String returns the wire form of v without validation.
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindInt:
		return strconv.FormatInt(v.num, 10)
	case KindFloat:
		return v.dec.StringFixed(v.scale)
	case KindChar:
		return string([]byte{v.char})
	case KindTimestamp:
		return v.ts.Format(TimestampFormat)
	default:
		return ""
	}
}

// Equal reports whether two values have the same kind and wire form.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindFloat:
		return v.scale == o.scale && v.dec.Equal(o.dec)
	case KindTimestamp:
		return v.ts.Equal(o.ts)
	default:
		return v.String() == o.String()
	}
}
