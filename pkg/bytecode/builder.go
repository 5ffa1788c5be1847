package bytecode

import "fmt"

// Operand constructors.

// ConstOperand references constant pool entry index.
func ConstOperand(index int32) Operand { return Operand{Type: OperandConst, Num: index} }

// TempOperand references temporary slot n.
func TempOperand(n int32) Operand { return Operand{Type: OperandTemp, Num: n} }

// CVOperand references compiled-variable slot n.
func CVOperand(n int32) Operand { return Operand{Type: OperandCV, Num: n} }

// NumOperand is an untagged number: jump target, argument position or
// literal immediate.
func NumOperand(n int32) Operand { return Operand{Num: n} }

// NameOperand is an untagged literal carrying an embedded name.
func NameOperand(name string) Operand { return Operand{Name: name} }

// Builder assembles a Unit instruction by instruction. It plays the role a
// compiler back end would: it interns constants and variable names, hands
// out temporaries and patches jumps once their destination is known.
type Builder struct {
	unit   *Unit
	consts map[scalarKey]int32
	vars   map[string]int32
	line   uint32
}

// scalarKey is the comparable part of a Value.
type scalarKey struct {
	kind ValueKind
	b    bool
	i    int64
	f    float64
	s    string
}

// NewBuilder creates a builder for a unit of the given name and kind.
func NewBuilder(name string, kind UnitKind) *Builder {
	return &Builder{
		unit: &Unit{
			Name:         name,
			Kind:         kind,
			Instructions: make([]Instruction, 0, 16),
		},
		consts: make(map[scalarKey]int32),
		vars:   make(map[string]int32),
	}
}

// Scope sets the owning class.
func (b *Builder) Scope(class string) *Builder {
	b.unit.Scope = class
	return b
}

// File sets the source file name.
func (b *Builder) File(name string) *Builder {
	b.unit.Filename = name
	return b
}

// Args sets the declared argument count.
func (b *Builder) Args(n uint32) *Builder {
	b.unit.ArgCount = n
	return b
}

// Relative makes the builder store jump targets as offsets from the
// jumping instruction.
func (b *Builder) Relative() *Builder {
	b.unit.Flags |= FlagRelativeJumps
	return b
}

// Line sets the source line recorded on subsequently emitted instructions.
func (b *Builder) Line(n uint32) *Builder {
	b.line = n
	return b
}

// Const adds a constant to the pool and returns an operand referencing it.
// Scalar constants that already exist are reused.
func (b *Builder) Const(v Value) Operand {
	return ConstOperand(b.AddConstant(v))
}

// AddConstant adds a constant to the pool and returns its index.
// If an equal scalar constant already exists, returns the existing index.
func (b *Builder) AddConstant(v Value) int32 {
	key := scalarKey{v.Kind, v.Bool, v.Int, v.Float, v.Str}
	if v.Kind != ValueArray {
		if idx, ok := b.consts[key]; ok {
			return idx
		}
	}
	idx := int32(len(b.unit.Constants))
	b.unit.Constants = append(b.unit.Constants, v)
	if v.Kind != ValueArray {
		b.consts[key] = idx
	}
	return idx
}

// Var returns the compiled-variable operand for name, declaring it on
// first use.
func (b *Builder) Var(name string) Operand {
	if slot, ok := b.vars[name]; ok {
		return CVOperand(slot)
	}
	slot := int32(len(b.unit.Vars))
	b.unit.Vars = append(b.unit.Vars, name)
	b.vars[name] = slot
	return CVOperand(slot)
}

// Temp allocates a fresh temporary.
func (b *Builder) Temp() Operand {
	n := int32(b.unit.NumTemps)
	b.unit.NumTemps++
	return TempOperand(n)
}

// Emit appends an instruction and returns its index.
func (b *Builder) Emit(op Opcode, result, op1, op2 Operand) int {
	return b.EmitExt(op, 0, result, op1, op2)
}

// EmitExt appends an instruction with an extended value.
func (b *Builder) EmitExt(op Opcode, ext uint32, result, op1, op2 Operand) int {
	at := len(b.unit.Instructions)
	b.unit.Instructions = append(b.unit.Instructions, Instruction{
		Opcode: op,
		Ext:    ext,
		Op1:    op1,
		Op2:    op2,
		Result: result,
		Line:   b.line,
	})
	return at
}

// EmitJump emits a jump instruction with a placeholder destination in
// whichever operand slot the opcode keeps its target. cond fills the other
// operand of conditional jumps. Returns the index for later patching.
func (b *Builder) EmitJump(op Opcode, result, cond Operand) int {
	s := GetOpcodeInfo(op).Sig
	switch {
	case s.Op1.Kind == SlotJump:
		return b.Emit(op, result, NumOperand(-1), Operand{})
	case s.Op2.Kind == SlotJump:
		return b.Emit(op, result, cond, NumOperand(-1))
	default:
		panic(fmt.Sprintf("bytecode: %s has no jump operand", op))
	}
}

// PatchJump patches a jump instruction to go to the current position.
func (b *Builder) PatchJump(at int) {
	b.PatchJumpTo(at, len(b.unit.Instructions))
}

// PatchJumpTo patches a jump to go to a specific instruction index.
func (b *Builder) PatchJumpTo(at, target int) {
	ins := &b.unit.Instructions[at]
	n := int32(target)
	if b.unit.Flags&FlagRelativeJumps != 0 {
		n = int32(target - at)
	}
	s := GetOpcodeInfo(ins.Opcode).Sig
	if s.Op1.Kind == SlotJump {
		ins.Op1.Num = n
	} else {
		ins.Op2.Num = n
	}
}

// CurrentOffset returns the index the next instruction will get.
func (b *Builder) CurrentOffset() int {
	return len(b.unit.Instructions)
}

// Unit returns the assembled unit. The builder must not be used afterwards.
func (b *Builder) Unit() *Unit {
	b.unit.NumVars = uint32(len(b.unit.Vars))
	return b.unit
}
