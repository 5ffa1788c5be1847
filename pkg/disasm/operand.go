package disasm

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"

	"github.com/chazu/opdump/pkg/bytecode"
)

// Kind is the decoded meaning of one operand slot.
type Kind uint8

const (
	Unused      Kind = iota // nothing in the slot
	Constant                // constant pool reference
	CompiledVar             // named local variable
	Temporary               // compiler temporary
	JumpTarget              // absolute instruction index
	ArgIndex                // 1-based argument ordinal
	Literal                 // immediate value
	Raw                     // number of an unknown opcode or operand type
)

var kindNames = [...]string{"unused", "const", "cv", "temp", "jump", "arg", "literal", "raw"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// maxConstWidth bounds the display width of a string constant.
const maxConstWidth = 40

// Operand is a decoded operand: exactly one Kind, with the fields that kind
// uses filled in. Operands with a Problem could not be resolved against the
// unit and render as sentinel text where the reference is unusable.
type Operand struct {
	Kind  Kind
	Num   int32          // slot, pool index, target, ordinal or literal
	Value bytecode.Value // Constant
	Name  string         // CompiledVar or Literal
	Lit   bytecode.LiteralKind

	// Problem is non-empty when the raw operand did not fit the unit.
	Problem string

	unresolved bool
}

// Valid reports whether the operand decoded without problems.
func (o Operand) Valid() bool { return o.Problem == "" }

// Decode interprets the raw operand found at instruction index at according
// to the slot's declared kind. It never fails: references that do not
// resolve produce an Operand with Problem set.
func Decode(u *bytecode.Unit, at int, raw bytecode.Operand, slot bytecode.Slot) Operand {
	switch slot.Kind {
	case bytecode.SlotUnused:
		return Operand{}
	case bytecode.SlotVar:
		return decodeTagged(u, raw, slot.Allow)
	case bytecode.SlotInfer:
		if raw.Type == bytecode.OperandUnused {
			return decodeUntagged(u, at, raw, slot.Fallback, slot.Lit)
		}
		return decodeTagged(u, raw, slot.Allow)
	case bytecode.SlotJump, bytecode.SlotArg, bytecode.SlotLiteral:
		if slot.Opt && raw == (bytecode.Operand{}) {
			return Operand{}
		}
		return decodeUntagged(u, at, raw, slot.Kind, slot.Lit)
	default:
		if raw == (bytecode.Operand{}) {
			return Operand{}
		}
		return Operand{Kind: Raw, Num: raw.Num}
	}
}

func decodeTagged(u *bytecode.Unit, raw bytecode.Operand, allow bytecode.TypeMask) Operand {
	var o Operand
	switch raw.Type {
	case bytecode.OperandUnused:
		return Operand{}
	case bytecode.OperandConst:
		o = Operand{Kind: Constant, Num: raw.Num}
		if v, ok := u.Constant(int(raw.Num)); ok {
			o.Value = v
		} else {
			o.Problem = fmt.Sprintf("constant index %d out of range", raw.Num)
			o.unresolved = true
		}
	case bytecode.OperandTemp:
		o = Operand{Kind: Temporary, Num: raw.Num}
		if raw.Num < 0 {
			o.Problem = fmt.Sprintf("negative temporary %d", raw.Num)
			o.unresolved = true
		}
	case bytecode.OperandCV:
		o = Operand{Kind: CompiledVar, Num: raw.Num}
		if name, ok := u.VarName(int(raw.Num)); ok {
			o.Name = name
		} else if raw.Num < 0 || int(raw.Num) >= u.VarCount() {
			o.Problem = fmt.Sprintf("variable slot %d out of range", raw.Num)
		}
	default:
		return Operand{
			Kind:    Raw,
			Num:     raw.Num,
			Problem: fmt.Sprintf("unknown operand type %d", raw.Type),
		}
	}
	if o.Problem == "" && !allow.Allows(raw.Type) {
		o.Problem = fmt.Sprintf("%s operand not allowed here", raw.Type)
	}
	return o
}

func decodeUntagged(u *bytecode.Unit, at int, raw bytecode.Operand, kind bytecode.SlotKind, lit bytecode.LiteralKind) Operand {
	switch kind {
	case bytecode.SlotJump:
		return jumpOperand(u, at, int64(raw.Num))
	case bytecode.SlotArg:
		o := Operand{Kind: ArgIndex, Num: raw.Num}
		if raw.Num < 0 {
			o.Problem = fmt.Sprintf("negative argument position %d", raw.Num)
		}
		return o
	case bytecode.SlotLiteral:
		return Operand{Kind: Literal, Num: raw.Num, Name: raw.Name, Lit: lit}
	case bytecode.SlotUnused:
		return Operand{}
	default:
		return Operand{Kind: Raw, Num: raw.Num}
	}
}

// jumpOperand resolves a stored jump to an absolute index, undoing the
// relative encoding when the unit uses it.
func jumpOperand(u *bytecode.Unit, at int, stored int64) Operand {
	target := stored
	if u.Flags&bytecode.FlagRelativeJumps != 0 {
		target += int64(at)
	}
	o := Operand{Kind: JumpTarget, Num: int32(target)}
	if target < 0 || target >= int64(len(u.Instructions)) || target > math.MaxInt32 {
		o.Problem = fmt.Sprintf("jump target %d out of range", target)
		o.unresolved = true
	}
	return o
}

// Render returns the display text of the operand. Unused operands render
// as the empty string.
func (o Operand) Render() string {
	switch o.Kind {
	case Unused:
		return ""
	case Constant:
		if o.unresolved {
			return "<invalid const>"
		}
		return FormatValue(o.Value)
	case CompiledVar:
		if o.Name == "" {
			return fmt.Sprintf("$slot%d", o.Num)
		}
		return "$" + EscapeName(o.Name)
	case Temporary:
		if o.unresolved {
			return "<invalid temp>"
		}
		return fmt.Sprintf("~%d", o.Num)
	case JumpTarget:
		if o.unresolved {
			return fmt.Sprintf("<invalid jump %d>", o.Num)
		}
		return strconv.Itoa(int(o.Num))
	case ArgIndex:
		return strconv.Itoa(int(o.Num) + 1)
	case Literal:
		return o.renderLiteral()
	default:
		return strconv.Itoa(int(o.Num))
	}
}

func (o Operand) renderLiteral() string {
	if o.Lit != bytecode.LitClassFetch {
		return strconv.Itoa(int(o.Num))
	}
	if o.Name != "" {
		return EscapeName(o.Name)
	}
	switch o.Num {
	case bytecode.ClassFetchSelf:
		return "self"
	case bytecode.ClassFetchParent:
		return "parent"
	case bytecode.ClassFetchStatic:
		return "static"
	}
	return strconv.Itoa(int(o.Num))
}

// FormatValue renders a constant: strings single-quoted with control
// characters escaped and long strings truncated, arrays summarized, numbers
// in their natural form.
func FormatValue(v bytecode.Value) string {
	switch v.Kind {
	case bytecode.ValueNull:
		return "null"
	case bytecode.ValueBool:
		return strconv.FormatBool(v.Bool)
	case bytecode.ValueInt:
		return strconv.FormatInt(v.Int, 10)
	case bytecode.ValueFloat:
		return formatFloat(v.Float)
	case bytecode.ValueString:
		s := escapeString(v.Str)
		if runewidth.StringWidth(s) > maxConstWidth {
			s = runewidth.Truncate(s, maxConstWidth, "...")
		}
		return "'" + s + "'"
	case bytecode.ValueArray:
		return fmt.Sprintf("<array(%d)>", len(v.Elems))
	default:
		return fmt.Sprintf("<%s>", v.Kind)
	}
}

func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if strings.ContainsAny(s, ".eIN") {
		return s
	}
	return s + ".0"
}

func escapeString(s string) string {
	return escape(s, true)
}

// EscapeName makes a name from unit data safe to print on one line: control
// characters and bytes that are not valid UTF-8 are written as escapes.
func EscapeName(s string) string {
	return escape(s, false)
}

// escape writes control characters and invalid UTF-8 as backslash escapes.
// Quoted text also escapes backslashes and single quotes.
func escape(s string, quoted bool) string {
	var b strings.Builder
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		switch {
		case r == utf8.RuneError && size == 1:
			fmt.Fprintf(&b, `\x%02x`, s[i])
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\t':
			b.WriteString(`\t`)
		case r == '\r':
			b.WriteString(`\r`)
		case quoted && r == '\\':
			b.WriteString(`\\`)
		case quoted && r == '\'':
			b.WriteString(`\'`)
		case r < 0x20 || r == 0x7f:
			fmt.Fprintf(&b, `\x%02x`, r)
		default:
			b.WriteRune(r)
		}
		i += size
	}
	return b.String()
}
