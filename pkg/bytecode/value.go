package bytecode

import "fmt"

// ValueKind tags a constant pool entry.
type ValueKind uint8

const (
	ValueNull   ValueKind = 0
	ValueBool   ValueKind = 1
	ValueInt    ValueKind = 2
	ValueFloat  ValueKind = 3
	ValueString ValueKind = 4
	ValueArray  ValueKind = 5
)

// String returns the type name of the kind.
func (k ValueKind) String() string {
	switch k {
	case ValueNull:
		return "null"
	case ValueBool:
		return "bool"
	case ValueInt:
		return "int"
	case ValueFloat:
		return "float"
	case ValueString:
		return "string"
	case ValueArray:
		return "array"
	default:
		return fmt.Sprintf("ValueKind(%d)", k)
	}
}

// Value is a typed literal from a unit's constant pool. Only the field that
// matches Kind is meaningful.
type Value struct {
	Kind  ValueKind `cbor:"1,keyasint"`
	Bool  bool      `cbor:"2,keyasint,omitempty"`
	Int   int64     `cbor:"3,keyasint,omitempty"`
	Float float64   `cbor:"4,keyasint,omitempty"`
	Str   string    `cbor:"5,keyasint,omitempty"`
	Elems []Element `cbor:"6,keyasint,omitempty"`
}

// Element is one key/value pair of an array constant. Keys are either
// integers or strings, as in the VM's ordered hash arrays.
type Element struct {
	Key   Value `cbor:"1,keyasint"`
	Value Value `cbor:"2,keyasint"`
}

// Null returns the null constant.
func Null() Value { return Value{Kind: ValueNull} }

// Bool returns a boolean constant.
func Bool(b bool) Value { return Value{Kind: ValueBool, Bool: b} }

// Int returns an integer constant.
func Int(i int64) Value { return Value{Kind: ValueInt, Int: i} }

// Float returns a floating-point constant.
func Float(f float64) Value { return Value{Kind: ValueFloat, Float: f} }

// String returns a string constant.
func String(s string) Value { return Value{Kind: ValueString, Str: s} }

// List returns an array constant with implicit 0..n-1 integer keys.
func List(values ...Value) Value {
	elems := make([]Element, len(values))
	for i, v := range values {
		elems[i] = Element{Key: Int(int64(i)), Value: v}
	}
	return Value{Kind: ValueArray, Elems: elems}
}

// Map returns an array constant with the given key/value pairs.
func Map(elems ...Element) Value {
	return Value{Kind: ValueArray, Elems: elems}
}
