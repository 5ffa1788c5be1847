package bytecode

import "fmt"

// UnitKind classifies a compiled routine.
type UnitKind uint8

const (
	// KindScript is the top-level code of a compilation unit.
	KindScript UnitKind = 0

	// KindFunction is a named, free-standing function.
	KindFunction UnitKind = 1

	// KindMethod is a function declared inside a class.
	KindMethod UnitKind = 2

	// KindClosure is an anonymous function.
	KindClosure UnitKind = 3
)

// String returns the lower-case name used in disassembly headers.
func (k UnitKind) String() string {
	switch k {
	case KindScript:
		return "script"
	case KindFunction:
		return "function"
	case KindMethod:
		return "method"
	case KindClosure:
		return "closure"
	default:
		return fmt.Sprintf("UnitKind(%d)", k)
	}
}

// UnitFlags carries compilation-mode bits that change how operands decode.
type UnitFlags uint16

const (
	// FlagRelativeJumps means jump operands hold an offset relative to the
	// instruction that carries them instead of an absolute index.
	FlagRelativeJumps UnitFlags = 1 << 0

	// FlagGenerator marks a routine compiled as a generator.
	FlagGenerator UnitFlags = 1 << 1

	// FlagVariadic marks a routine whose last parameter collects extra args.
	FlagVariadic UnitFlags = 1 << 2
)

// OperandType is the tag the compiler stores next to every operand slot.
type OperandType uint8

const (
	OperandUnused OperandType = 0 // Slot not used by this instruction
	OperandConst  OperandType = 1 // Index into the constant pool
	OperandTemp   OperandType = 2 // Compiler-internal temporary slot
	OperandCV     OperandType = 3 // Compiled (named) variable slot
)

// String returns a short name for the operand type.
func (t OperandType) String() string {
	switch t {
	case OperandUnused:
		return "unused"
	case OperandConst:
		return "const"
	case OperandTemp:
		return "temp"
	case OperandCV:
		return "cv"
	default:
		return fmt.Sprintf("OperandType(%d)", t)
	}
}

// Operand is one raw operand slot as produced by the compiler. How Num is
// interpreted (pool index, slot, jump target, argument number, literal)
// depends on the opcode's signature; see Lookup.
type Operand struct {
	Type OperandType `cbor:"1,keyasint,omitempty"`
	Num  int32       `cbor:"2,keyasint,omitempty"`
	Name string      `cbor:"3,keyasint,omitempty"` // literal class/function name, if embedded
}

// Instruction is one entry of a routine's opcode array.
type Instruction struct {
	Opcode Opcode  `cbor:"1,keyasint"`
	Ext    uint32  `cbor:"2,keyasint,omitempty"` // extended opcode / extended value
	Op1    Operand `cbor:"3,keyasint"`
	Op2    Operand `cbor:"4,keyasint"`
	Result Operand `cbor:"5,keyasint"`
	Line   uint32  `cbor:"6,keyasint,omitempty"` // source line hint
}

// Unit is the compiled form of one routine: its opcode array, constant pool
// and compiled-variable table. Units are immutable once produced.
type Unit struct {
	Name     string    `cbor:"1,keyasint"`
	Kind     UnitKind  `cbor:"2,keyasint"`
	Scope    string    `cbor:"3,keyasint,omitempty"` // owning class for methods
	Filename string    `cbor:"4,keyasint,omitempty"`
	Flags    UnitFlags `cbor:"5,keyasint,omitempty"`

	// Internal marks a host builtin: it has no user opcodes to show.
	Internal bool `cbor:"6,keyasint,omitempty"`

	ArgCount uint32 `cbor:"7,keyasint,omitempty"`
	NumVars  uint32 `cbor:"8,keyasint,omitempty"` // 0 means len(Vars)
	NumTemps uint32 `cbor:"9,keyasint,omitempty"`

	Instructions []Instruction `cbor:"10,keyasint"`
	Constants    []Value       `cbor:"11,keyasint,omitempty"`
	Vars         []string      `cbor:"12,keyasint,omitempty"`

	LineStart uint32 `cbor:"13,keyasint,omitempty"`
	LineEnd   uint32 `cbor:"14,keyasint,omitempty"`
}

// DisplayName returns the name shown in headers, qualified with the scope
// for methods.
func (u *Unit) DisplayName() string {
	name := u.Name
	if name == "" {
		if u.Kind == KindScript {
			name = "(main)"
		} else {
			name = "{closure}"
		}
	}
	if u.Scope != "" {
		return u.Scope + "::" + name
	}
	return name
}

// VarCount returns the declared number of compiled variables.
func (u *Unit) VarCount() int {
	if u.NumVars > 0 {
		return int(u.NumVars)
	}
	return len(u.Vars)
}

// VarName returns the declared name for a compiled-variable slot.
func (u *Unit) VarName(slot int) (string, bool) {
	if slot < 0 || slot >= len(u.Vars) {
		return "", false
	}
	return u.Vars[slot], true
}

// Constant returns the constant pool entry at index.
func (u *Unit) Constant(index int) (Value, bool) {
	if index < 0 || index >= len(u.Constants) {
		return Value{}, false
	}
	return u.Constants[index], true
}

// Len returns the number of instructions.
func (u *Unit) Len() int {
	return len(u.Instructions)
}

// LineRange returns the source line span covered by the unit. When the
// compiler did not record one it is derived from the instruction line hints.
func (u *Unit) LineRange() (start, end uint32) {
	start, end = u.LineStart, u.LineEnd
	if start != 0 || end != 0 {
		return start, end
	}
	for _, ins := range u.Instructions {
		if ins.Line == 0 {
			continue
		}
		if start == 0 || ins.Line < start {
			start = ins.Line
		}
		if ins.Line > end {
			end = ins.Line
		}
	}
	return start, end
}

// ClassConstant is a named constant declared on a class.
type ClassConstant struct {
	Name  string `cbor:"1,keyasint"`
	Value Value  `cbor:"2,keyasint"`
}

// Class groups the methods, properties and constants of one class.
type Class struct {
	Name       string          `cbor:"1,keyasint"`
	Internal   bool            `cbor:"2,keyasint,omitempty"`
	Methods    []*Unit         `cbor:"3,keyasint,omitempty"`
	Properties []string        `cbor:"4,keyasint,omitempty"`
	Constants  []ClassConstant `cbor:"5,keyasint,omitempty"`
}

// HasUserMethods reports whether any method carries user opcodes.
func (c *Class) HasUserMethods() bool {
	for _, m := range c.Methods {
		if m != nil && !m.Internal {
			return true
		}
	}
	return false
}

// Program is everything one compilation produced: the top-level script plus
// the functions and classes it declared, in declaration order.
type Program struct {
	Filename  string   `cbor:"1,keyasint,omitempty"`
	Main      *Unit    `cbor:"2,keyasint,omitempty"`
	Functions []*Unit  `cbor:"3,keyasint,omitempty"`
	Classes   []*Class `cbor:"4,keyasint,omitempty"`
}

// Units returns every routine of the program in dump order: the main
// script, free functions, then class methods. Nil entries left by a
// malformed program file are dropped.
func (p *Program) Units() []*Unit {
	var units []*Unit
	add := func(u *Unit) {
		if u != nil {
			units = append(units, u)
		}
	}
	add(p.Main)
	for _, f := range p.Functions {
		add(f)
	}
	for _, c := range p.Classes {
		if c == nil {
			continue
		}
		for _, m := range c.Methods {
			add(m)
		}
	}
	return units
}
