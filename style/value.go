package style

import (
	"fmt"
	"math"
	"sync/atomic"
)

// ValueType is the type of the data stored in a value slot.
type ValueType uint8

// Value types.
const (
	TypeBoolean ValueType = iota
	TypeInteger
	TypeFloat
	TypeString
	TypeColor
)

var valueTypeNames = [...]string{
	TypeBoolean: "boolean",
	TypeInteger: "integer",
	TypeFloat:   "float",
	TypeString:  "string",
	TypeColor:   "color",
}

// String returns the type name.
func (t ValueType) String() string {
	if int(t) < len(valueTypeNames) {
		return valueTypeNames[t]
	}
	return fmt.Sprintf("ValueType(%d)", uint8(t))
}

// DefinitionKind tells whether a value definition is matched against
// (Input) or assigned by (Output) a rule.
type DefinitionKind uint8

// Definition kinds.
const (
	Input DefinitionKind = iota
	Output
)

// String returns "input" or "output".
func (k DefinitionKind) String() string {
	if k == Output {
		return "output"
	}
	return "input"
}

var lastDefinitionID atomic.Uint32

// ValueDefinition is a named, typed attribute slot. Definitions are
// immutable and compared by identity.
type ValueDefinition struct {
	id   uint32
	kind DefinitionKind
	typ  ValueType
	name string
}

// NewValueDefinition creates a definition with a process-wide unique ID.
func NewValueDefinition(kind DefinitionKind, typ ValueType, name string) *ValueDefinition {
	return &ValueDefinition{
		id:   lastDefinitionID.Add(1),
		kind: kind,
		typ:  typ,
		name: name,
	}
}

// ID returns the process-wide unique definition ID.
func (d *ValueDefinition) ID() uint32 { return d.id }

// Kind returns whether rules match against or assign the definition.
func (d *ValueDefinition) Kind() DefinitionKind { return d.kind }

// Type returns the type of the values stored in the slot.
func (d *ValueDefinition) Type() ValueType { return d.typ }

// Name returns the attribute name used by style rules.
func (d *ValueDefinition) Name() string { return d.name }

// String returns "name(kind type)".
func (d *ValueDefinition) String() string {
	return fmt.Sprintf("%s(%s %s)", d.name, d.kind, d.typ)
}

// Value is 32 bits of storage interpreted according to the definition type:
// booleans as 0/1, integers as int32, floats as float32, strings as string
// table IDs and colors as packed ARGB.
type Value struct {
	bits uint32
}

// BoolValue returns a boolean value.
func BoolValue(b bool) Value {
	if b {
		return Value{bits: 1}
	}
	return Value{}
}

// IntValue returns an integer value.
func IntValue(i int32) Value { return Value{bits: uint32(i)} }

// UintValue returns an unsigned value (string IDs, colors).
func UintValue(u uint32) Value { return Value{bits: u} }

// FloatValue returns a float value.
func FloatValue(f float32) Value { return Value{bits: math.Float32bits(f)} }

// Bool reports whether the value holds 1.
func (v Value) Bool() bool { return v.bits == 1 }

// Int returns the bits as a signed integer.
func (v Value) Int() int32 { return int32(v.bits) }

// Uint returns the raw bits, used for string IDs and colors.
func (v Value) Uint() uint32 { return v.bits }

// Float returns the bits as an IEEE 754 float32.
func (v Value) Float() float32 { return math.Float32frombits(v.bits) }

// fuzzyEqual compares floats with a relative tolerance of 1e-5.
func fuzzyEqual(a, b float32) bool {
	if a == b {
		return true
	}
	diff := math.Abs(float64(a) - float64(b))
	return diff*100000 <= math.Min(math.Abs(float64(a)), math.Abs(float64(b)))
}
