package bytecode

import "fmt"

// SlotKind says how one operand slot of an instruction is to be read.
type SlotKind uint8

const (
	// SlotUnused means the instruction never carries anything in the slot.
	SlotUnused SlotKind = iota

	// SlotVar reads the slot through its operand type tag: constant pool
	// index, temporary or compiled variable. Allow restricts the tags the
	// compiler may produce; an unused tag is always legal.
	SlotVar

	// SlotJump holds a branch destination.
	SlotJump

	// SlotArg holds a 0-based argument position.
	SlotArg

	// SlotLiteral holds an immediate interpreted according to Lit.
	SlotLiteral

	// SlotInfer is polymorphic: the tag on the instruction decides, as for
	// SlotVar, but an unused tag decodes as Fallback instead of nothing.
	SlotInfer

	// SlotRaw is used for opcodes the table does not know. The number is
	// shown as-is.
	SlotRaw
)

var slotKindNames = [...]string{"unused", "var", "jump", "arg", "literal", "infer", "raw"}

func (k SlotKind) String() string {
	if int(k) < len(slotKindNames) {
		return slotKindNames[k]
	}
	return fmt.Sprintf("SlotKind(%d)", k)
}

// TypeMask is a set of operand type tags.
type TypeMask uint8

const (
	MaskConst TypeMask = 1 << iota
	MaskTemp
	MaskCV

	MaskAny = MaskConst | MaskTemp | MaskCV
)

// Allows reports whether t is a legal tag under the mask. OperandUnused is
// always allowed.
func (m TypeMask) Allows(t OperandType) bool {
	switch t {
	case OperandUnused:
		return true
	case OperandConst:
		return m&MaskConst != 0
	case OperandTemp:
		return m&MaskTemp != 0
	case OperandCV:
		return m&MaskCV != 0
	}
	return false
}

// LiteralKind selects how a literal immediate is rendered.
type LiteralKind uint8

const (
	LitInt        LiteralKind = iota // plain integer
	LitClassFetch                    // self/parent/static, or the embedded class name
)

// Class fetch modes carried by LitClassFetch literals.
const (
	ClassFetchDefault int32 = 0
	ClassFetchSelf    int32 = 1
	ClassFetchParent  int32 = 2
	ClassFetchStatic  int32 = 3
)

// Slot describes one operand position of an opcode.
type Slot struct {
	Kind     SlotKind
	Allow    TypeMask    // SlotVar and SlotInfer
	Lit      LiteralKind // SlotLiteral, or SlotInfer falling back to a literal
	Fallback SlotKind    // SlotInfer only

	// Opt lets a Jump, Arg or Literal slot be absent: an all-zero operand
	// then decodes as nothing.
	Opt bool
}

// ExtKind says what the instruction's extended value means.
type ExtKind uint8

const (
	ExtNone     ExtKind = iota
	ExtFamily           // selects the mnemonic within an opcode family
	ExtFetch            // variable fetch scope
	ExtCast             // target type of a cast
	ExtArgCount         // number of arguments of a call being set up
	ExtJump             // a second jump destination
	ExtRaw              // shown as a plain number
)

// Signature declares the operand layout of an opcode.
type Signature struct {
	Result Slot
	Op1    Slot
	Op2    Slot
	Ext    ExtKind

	// KillsOp1 marks opcodes that end the lifetime of the compiled
	// variable in operand 1.
	KillsOp1 bool
}

func sig(result, op1, op2 Slot) Signature {
	return Signature{Result: result, Op1: op1, Op2: op2}
}

func (s Signature) ext(k ExtKind) Signature {
	s.Ext = k
	return s
}

func (s Signature) killsOp1() Signature {
	s.KillsOp1 = true
	return s
}

// Slot shapes shared by the opcode table.
var (
	unused   = Slot{}
	anyVal   = Slot{Kind: SlotVar, Allow: MaskAny}
	tmpVal   = Slot{Kind: SlotVar, Allow: MaskTemp}
	cvVal    = Slot{Kind: SlotVar, Allow: MaskCV}
	tmpCV    = Slot{Kind: SlotVar, Allow: MaskTemp | MaskCV}
	constVal = Slot{Kind: SlotVar, Allow: MaskConst}
	constTmp = Slot{Kind: SlotVar, Allow: MaskConst | MaskTemp}
	jump     = Slot{Kind: SlotJump}
	optJump  = Slot{Kind: SlotJump, Opt: true}
	argNum   = Slot{Kind: SlotArg}
	intLit   = Slot{Kind: SlotLiteral, Lit: LitInt}
	rawVal   = Slot{Kind: SlotRaw}

	// classRef names a class either through an operand or, when unused,
	// through a self/parent/static fetch mode.
	classRef = Slot{Kind: SlotInfer, Allow: MaskConst | MaskTemp, Fallback: SlotLiteral, Lit: LitClassFetch}

	// sendArg is the target position of a SEND: a constant names the
	// parameter, otherwise the number is the position.
	sendArg = Slot{Kind: SlotInfer, Allow: MaskConst, Fallback: SlotArg}
)

// Variable fetch scopes carried by ExtFetch.
const (
	FetchLocal      uint32 = 0
	FetchGlobal     uint32 = 1
	FetchGlobalLock uint32 = 2
	FetchStatic     uint32 = 3
)

var fetchNames = map[uint32]string{
	FetchLocal:      "local",
	FetchGlobal:     "global",
	FetchGlobalLock: "global lock",
	FetchStatic:     "static member",
}

// FetchName returns the display name of a fetch scope.
func FetchName(ext uint32) (string, bool) {
	name, ok := fetchNames[ext]
	return name, ok
}

// Cast targets carried by ExtCast. The numbering follows the VM's type tags.
const (
	CastNull   uint32 = 1
	CastInt    uint32 = 4
	CastFloat  uint32 = 5
	CastString uint32 = 6
	CastArray  uint32 = 7
	CastObject uint32 = 8
	CastBool   uint32 = 17
)

var castNames = map[uint32]string{
	CastNull:   "(null)",
	CastInt:    "(int)",
	CastFloat:  "(float)",
	CastString: "(string)",
	CastArray:  "(array)",
	CastObject: "(object)",
	CastBool:   "(bool)",
}

// CastName returns the display name of a cast target.
func CastName(ext uint32) (string, bool) {
	name, ok := castNames[ext]
	return name, ok
}
