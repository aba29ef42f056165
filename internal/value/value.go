// Package value implements the typed values stored in settings and status
// attributes.
package value

import (
	"fmt"
	"strconv"
)

// Kind identifies which member of the union a Value holds
type Kind int

const (
	KindNone Kind = iota
	KindInt
	KindString
	KindBool
)

// String returns the name used for the kind in persisted files
func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	default:
		return "none"
	}
}

// ParseKind parses a kind name as written by Kind.String
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "int":
		return KindInt, true
	case "string":
		return KindString, true
	case "bool":
		return KindBool, true
	default:
		return KindNone, false
	}
}

// Value is an int, string or bool. The zero Value holds nothing.
type Value struct {
	kind Kind
	i    int
	s    string
	b    bool
}

// MismatchError is the panic value raised when a Value is read as the
// wrong kind.
type MismatchError struct {
	Want Kind
	Got  Kind
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("value: read as %s, holds %s", e.Want, e.Got)
}

// Int returns an int Value
func Int(v int) Value { return Value{kind: KindInt, i: v} }

// String returns a string Value
func String(v string) Value { return Value{kind: KindString, s: v} }

// Bool returns a bool Value
func Bool(v bool) Value { return Value{kind: KindBool, b: v} }

// Kind returns the kind held by v
func (v Value) Kind() Kind { return v.kind }

// IsZero reports whether v holds nothing
func (v Value) IsZero() bool { return v.kind == KindNone }

func (v Value) must(k Kind) {
	if v.kind != k {
		panic(&MismatchError{Want: k, Got: v.kind})
	}
}

// AsInt returns the int held by v. It panics if v is not an int.
func (v Value) AsInt() int {
	v.must(KindInt)
	return v.i
}

// AsString returns the string held by v. It panics if v is not a string.
func (v Value) AsString() string {
	v.must(KindString)
	return v.s
}

// AsBool returns the bool held by v. It panics if v is not a bool.
func (v Value) AsBool() bool {
	v.must(KindBool)
	return v.b
}

// Equal reports whether both values have the same kind and content
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindInt:
		return v.i == o.i
	case KindString:
		return v.s == o.s
	case KindBool:
		return v.b == o.b
	default:
		return true
	}
}

// Text renders v the way it is written to disk. Bools are "1" or "0".
func (v Value) Text() string {
	switch v.kind {
	case KindInt:
		return strconv.Itoa(v.i)
	case KindString:
		return v.s
	case KindBool:
		if v.b {
			return "1"
		}
		return "0"
	default:
		return ""
	}
}

// String implements fmt.Stringer for debugging output
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return strconv.Quote(v.s)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindNone:
		return "<none>"
	default:
		return v.Text()
	}
}

// Parse converts text into a Value of the given kind. Ints must parse as
// base-10 integers. A bool is false only when the text starts with '0' or
// is empty.
func Parse(k Kind, text string) (Value, error) {
	switch k {
	case KindInt:
		n, err := strconv.Atoi(text)
		if err != nil {
			return Value{}, fmt.Errorf("invalid int %q: %w", text, err)
		}
		return Int(n), nil
	case KindString:
		return String(text), nil
	case KindBool:
		return Bool(text != "" && text[0] != '0'), nil
	default:
		return Value{}, fmt.Errorf("unknown value kind %d", k)
	}
}
