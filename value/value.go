// Package value implements the dynamic value model consumed by the dnxvm
// bytecode machine: a tagged union of undefined, 32-bit int, float64,
// string, and array, with total arithmetic, comparison, and truthiness
// operators.
package value

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/loomtale/dnxvm/vmerr"
)

// Tag identifies which variant of Value is active.
type Tag byte

const (
	Undefined Tag = iota
	Int
	Double
	String
	Array
)

func (t Tag) String() string {
	switch t {
	case Undefined:
		return "undefined"
	case Int:
		return "int"
	case Double:
		return "double"
	case String:
		return "string"
	case Array:
		return "array"
	default:
		return "?unknown?"
	}
}

// Value is a tagged dynamic value. The zero Value is Undefined.
//
// Only one payload field is meaningful at a time, selected by Tag. Array
// values hold a pointer to a shared, mutable handle (*arrayData) so that
// copies of a Value aliasing the same array observe each other's mutations,
// per the stack-based SetArrayIndex contract.
type Value struct {
	tag Tag
	i   int32
	f   float64
	s   string
	a   *arrayData
}

// arrayData is the shared mutable backing store for an Array value. Pushing
// a Value of tag Array onto the stack pushes a handle, not a copy.
type arrayData struct {
	elems []Value
}

// Undef is the single canonical Undefined value.
var Undef = Value{tag: Undefined}

// NewInt returns an Int value.
func NewInt(i int32) Value { return Value{tag: Int, i: i} }

// NewDouble returns a Double value.
func NewDouble(f float64) Value { return Value{tag: Double, f: f} }

// NewString returns a String value.
func NewString(s string) Value { return Value{tag: String, s: s} }

// NewArray returns an Array value wrapping elems. The caller should not
// retain elems for mutation outside of the returned Value's array handle.
func NewArray(elems []Value) Value {
	return Value{tag: Array, a: &arrayData{elems: elems}}
}

// Tag returns the value's active tag.
func (v Value) Tag() Tag { return v.tag }

// IsUndefined reports whether v is the Undefined value.
func (v Value) IsUndefined() bool { return v.tag == Undefined }

// Int32 returns the payload of an Int value. Panics if v is not an Int;
// callers must check Tag first, as with all typed accessors here.
func (v Value) Int32() int32 {
	if v.tag != Int {
		panic(fmt.Sprintf("value: Int32 called on %s", v.tag))
	}
	return v.i
}

// Float64 returns the payload of a Double value.
func (v Value) Float64() float64 {
	if v.tag != Double {
		panic(fmt.Sprintf("value: Float64 called on %s", v.tag))
	}
	return v.f
}

// Str returns the payload of a String value.
func (v Value) Str() string {
	if v.tag != String {
		panic(fmt.Sprintf("value: Str called on %s", v.tag))
	}
	return v.s
}

// Len returns the number of elements in an Array value.
func (v Value) Len() int {
	if v.tag != Array {
		panic(fmt.Sprintf("value: Len called on %s", v.tag))
	}
	return len(v.a.elems)
}

// Index returns the element at i in an Array value.
func (v Value) Index(i int) (Value, error) {
	if v.tag != Array {
		return Undef, vmerr.Type("", -1, "cannot index %s", v.tag)
	}
	if i < 0 || i >= len(v.a.elems) {
		return Undef, vmerr.Bounds("", -1, "array index %d out of range [0,%d)", i, len(v.a.elems))
	}
	return v.a.elems[i], nil
}

// SetIndex mutates the element at i in an Array value in place, affecting
// every Value that aliases the same array handle.
func (v Value) SetIndex(i int, elem Value) error {
	if v.tag != Array {
		return vmerr.Type("", -1, "cannot index %s", v.tag)
	}
	if i < 0 || i >= len(v.a.elems) {
		return vmerr.Bounds("", -1, "array index %d out of range [0,%d)", i, len(v.a.elems))
	}
	v.a.elems[i] = elem
	return nil
}

// String renders v for debug/log/interpolation output.
func (v Value) String() string {
	switch v.tag {
	case Undefined:
		return ""
	case Int:
		return strconv.FormatInt(int64(v.i), 10)
	case Double:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case String:
		return v.s
	case Array:
		parts := make([]string, len(v.a.elems))
		for i, e := range v.a.elems {
			parts[i] = e.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return "?unknown?"
	}
}

// Truth reports the truthiness of v: numerics are truthy iff > 0, strings
// and arrays are truthy iff non-empty, Undefined is always falsey.
func (v Value) Truth() bool {
	switch v.tag {
	case Undefined:
		return false
	case Int:
		return v.i > 0
	case Double:
		return v.f > 0
	case String:
		return len(v.s) > 0
	case Array:
		return len(v.a.elems) > 0
	default:
		return false
	}
}

// Equal implements equality: equal payload for two Ints or two Doubles,
// byte-equal strings, same array handle or elementwise-equal arrays; any
// tag mismatch, including Int against Double, is unequal (spec: "==
// across differing tags yields Int(0)").
func Equal(x, y Value) bool {
	switch {
	case x.tag == Int && y.tag == Int:
		return x.i == y.i
	case x.tag == Double && y.tag == Double:
		return x.f == y.f
	case x.tag == String && y.tag == String:
		return x.s == y.s
	case x.tag == Array && y.tag == Array:
		if x.a == y.a {
			return true
		}
		if len(x.a.elems) != len(y.a.elems) {
			return false
		}
		for i := range x.a.elems {
			if !Equal(x.a.elems[i], y.a.elems[i]) {
				return false
			}
		}
		return true
	case x.tag == Undefined && y.tag == Undefined:
		return true
	default:
		return false
	}
}

func isNumeric(t Tag) bool { return t == Int || t == Double }

func asFloat(v Value) float64 {
	if v.tag == Int {
		return float64(v.i)
	}
	return v.f
}
