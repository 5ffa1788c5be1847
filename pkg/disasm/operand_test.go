package disasm

import (
	"strings"
	"testing"

	"github.com/chazu/opdump/pkg/bytecode"
)

var (
	anySlot   = bytecode.Slot{Kind: bytecode.SlotVar, Allow: bytecode.MaskAny}
	tempSlot  = bytecode.Slot{Kind: bytecode.SlotVar, Allow: bytecode.MaskTemp}
	jumpSlot  = bytecode.Slot{Kind: bytecode.SlotJump}
	argSlot   = bytecode.Slot{Kind: bytecode.SlotArg}
	classSlot = bytecode.Slot{Kind: bytecode.SlotInfer, Allow: bytecode.MaskConst | bytecode.MaskTemp, Fallback: bytecode.SlotLiteral, Lit: bytecode.LitClassFetch}
)

func testUnit() *bytecode.Unit {
	return &bytecode.Unit{
		Vars:         []string{"x", "y"},
		Constants:    []bytecode.Value{bytecode.Int(10), bytecode.String("hi")},
		Instructions: make([]bytecode.Instruction, 6),
	}
}

func TestOperandRender(t *testing.T) {
	u := testUnit()
	tests := []struct {
		name string
		raw  bytecode.Operand
		slot bytecode.Slot
		want string
		ok   bool
	}{
		{"unused", bytecode.Operand{}, anySlot, "", true},
		{"const", bytecode.ConstOperand(0), anySlot, "10", true},
		{"string const", bytecode.ConstOperand(1), anySlot, "'hi'", true},
		{"invalid const", bytecode.ConstOperand(5), anySlot, "<invalid const>", false},
		{"cv", bytecode.CVOperand(1), anySlot, "$y", true},
		{"cv out of range", bytecode.CVOperand(7), anySlot, "$slot7", false},
		{"temp", bytecode.TempOperand(4), anySlot, "~4", true},
		{"disallowed tag", bytecode.CVOperand(0), tempSlot, "$x", false},
		{"jump forward", bytecode.NumOperand(5), jumpSlot, "5", true},
		{"jump back", bytecode.NumOperand(0), jumpSlot, "0", true},
		{"jump out of range", bytecode.NumOperand(6), jumpSlot, "<invalid jump 6>", false},
		{"arg", bytecode.NumOperand(0), argSlot, "1", true},
		{"class name", bytecode.NameOperand("Point"), classSlot, "Point", true},
		{"class self", bytecode.NumOperand(bytecode.ClassFetchSelf), classSlot, "self", true},
		{"class static", bytecode.NumOperand(bytecode.ClassFetchStatic), classSlot, "static", true},
		{"class from temp", bytecode.TempOperand(2), classSlot, "~2", true},
		{"unknown type", bytecode.Operand{Type: 9, Num: 3}, anySlot, "3", false},
		{"raw", bytecode.NumOperand(42), bytecode.Slot{Kind: bytecode.SlotRaw}, "42", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := Decode(u, 2, tt.raw, tt.slot)
			if got := o.Render(); got != tt.want {
				t.Errorf("Render() = %q, want %q", got, tt.want)
			}
			if o.Valid() != tt.ok {
				t.Errorf("Valid() = %v (problem %q), want %v", o.Valid(), o.Problem, tt.ok)
			}
		})
	}
}

func TestCVWithoutName(t *testing.T) {
	u := &bytecode.Unit{NumVars: 3, Vars: []string{"a"}}
	o := Decode(u, 0, bytecode.CVOperand(2), anySlot)
	if o.Render() != "$slot2" || !o.Valid() {
		t.Errorf("got %q valid=%v", o.Render(), o.Valid())
	}
}

func TestRelativeJumpDecode(t *testing.T) {
	u := testUnit()
	u.Flags = bytecode.FlagRelativeJumps
	if got := Decode(u, 3, bytecode.NumOperand(-3), jumpSlot).Render(); got != "0" {
		t.Errorf("relative back jump = %q, want 0", got)
	}
	if got := Decode(u, 3, bytecode.NumOperand(0), jumpSlot).Render(); got != "3" {
		t.Errorf("relative self jump = %q, want 3", got)
	}
	if got := Decode(u, 3, bytecode.NumOperand(-4), jumpSlot).Render(); got != "<invalid jump -1>" {
		t.Errorf("relative jump before start = %q", got)
	}
}

func TestOptionalJump(t *testing.T) {
	u := testUnit()
	slot := bytecode.Slot{Kind: bytecode.SlotJump, Opt: true}
	if got := Decode(u, 1, bytecode.Operand{}, slot); got.Kind != Unused {
		t.Errorf("absent optional jump decoded as %s", got.Kind)
	}
	if got := Decode(u, 1, bytecode.NumOperand(4), slot).Render(); got != "4" {
		t.Errorf("optional jump = %q", got)
	}
}

func TestSendArgInference(t *testing.T) {
	u := testUnit()
	slot := bytecode.Slot{Kind: bytecode.SlotInfer, Allow: bytecode.MaskConst, Fallback: bytecode.SlotArg}
	if got := Decode(u, 0, bytecode.NumOperand(1), slot).Render(); got != "2" {
		t.Errorf("positional send = %q, want 2", got)
	}
	if got := Decode(u, 0, bytecode.ConstOperand(1), slot).Render(); got != "'hi'" {
		t.Errorf("named send = %q", got)
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		v    bytecode.Value
		want string
	}{
		{bytecode.Null(), "null"},
		{bytecode.Bool(true), "true"},
		{bytecode.Int(-7), "-7"},
		{bytecode.Float(1.5), "1.5"},
		{bytecode.Float(2), "2.0"},
		{bytecode.Float(1e21), "1e+21"},
		{bytecode.String("a\nb\tc"), `'a\nb\tc'`},
		{bytecode.String("it's"), `'it\'s'`},
		{bytecode.String("\x01"), `'\x01'`},
		{bytecode.List(bytecode.Int(1), bytecode.Int(2)), "<array(2)>"},
	}
	for _, tt := range tests {
		if got := FormatValue(tt.v); got != tt.want {
			t.Errorf("FormatValue(%+v) = %q, want %q", tt.v, got, tt.want)
		}
	}
}

func TestFormatValueTruncates(t *testing.T) {
	got := FormatValue(bytecode.String(strings.Repeat("x", 100)))
	if len(got) > maxConstWidth+2 || !strings.HasSuffix(got, "...'") {
		t.Errorf("long string not truncated: %q", got)
	}
}

func TestDecodeInstructionExt(t *testing.T) {
	b := bytecode.NewBuilder("f", bytecode.KindFunction)
	x := b.Var("x")
	b.EmitExt(bytecode.OpCast, bytecode.CastInt, b.Temp(), x, bytecode.Operand{})
	b.EmitExt(bytecode.OpFetchR, bytecode.FetchGlobal, b.Temp(), b.Const(bytecode.String("g")), bytecode.Operand{})
	b.EmitExt(bytecode.OpInitFcall, 2, bytecode.Operand{}, bytecode.NumOperand(96), b.Const(bytecode.String("strlen")))
	b.EmitExt(bytecode.OpAssignOp, uint32(bytecode.OpAdd), b.Temp(), x, b.Const(bytecode.Int(1)))
	b.EmitExt(bytecode.OpAssignOp, 77, b.Temp(), x, b.Const(bytecode.Int(1)))
	b.EmitExt(bytecode.OpIncludeOrEval, bytecode.IncludeRequireOnce, b.Temp(), b.Const(bytecode.String("a.x")), bytecode.Operand{})
	b.EmitExt(bytecode.OpJmpznz, 0, bytecode.Operand{}, x, bytecode.NumOperand(7))
	b.EmitExt(bytecode.OpJmpznz, 99, bytecode.Operand{}, x, bytecode.NumOperand(0))
	u := b.Unit()

	tests := []struct {
		mnemonic string
		ext      string
	}{
		{"CAST", "(int)"},
		{"FETCH_R", "global"},
		{"INIT_FCALL", "args=2"},
		{"ASSIGN_ADD", ""},
		{"ASSIGN_OP", "ext=77"},
		{"REQUIRE_ONCE", ""},
		{"JMPZNZ", "->0"},
		{"JMPZNZ", "<invalid jump 99>"},
	}
	for i, tt := range tests {
		row, diags := DecodeInstruction(u, i)
		if row.Mnemonic != tt.mnemonic || row.Ext != tt.ext {
			t.Errorf("%d: got %s %q, want %s %q", i, row.Mnemonic, row.Ext, tt.mnemonic, tt.ext)
		}
		if i == 6 && row.Op2.Render() != "7" {
			t.Errorf("JMPZNZ op2 = %q", row.Op2.Render())
		}
		if i < 7 && len(diags) != 0 {
			t.Errorf("%d: unexpected diagnostics %v", i, diags)
		}
	}
	if _, diags := DecodeInstruction(u, 7); len(diags) != 1 || diags[0].Slot != "ext" {
		t.Errorf("bad ext jump diagnostics = %v", diags)
	}
}

func TestEscapeName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"a\nb", `a\nb`},
		{"tab\there", `tab\there`},
		{"c\xffd", `c\xffd`},
		{"bell\x07", `bell\x07`},
		{`back\slash 'q'`, `back\slash 'q'`},
		{"日本", "日本"},
	}
	for _, tt := range tests {
		if got := EscapeName(tt.in); got != tt.want {
			t.Errorf("EscapeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if got := FormatValue(bytecode.String("x\xfe'")); got != `'x\xfe\''` {
		t.Errorf("FormatValue = %q", got)
	}
}
