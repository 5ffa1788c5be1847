package disasm

import (
	"testing"

	"github.com/chazu/opdump/pkg/bytecode"
)

func TestLiveRangeSimple(t *testing.T) {
	ranges := ComputeLiveRanges(addUnit())
	if len(ranges) != 1 {
		t.Fatalf("got %d ranges, want 1", len(ranges))
	}
	r := ranges[0]
	if r.Name != "$x" || r.Start != 0 || r.End != 3 {
		t.Errorf("range = %s, want $x [0, 3)", r)
	}
}

func TestLiveRangeKillAndReassign(t *testing.T) {
	b := bytecode.NewBuilder("f", bytecode.KindFunction)
	x := b.Var("x")
	none := bytecode.Operand{}
	b.Emit(bytecode.OpAssign, x, b.Const(bytecode.Int(1)), none) // 0
	b.Emit(bytecode.OpEcho, none, x, none)                       // 1
	b.Emit(bytecode.OpUnsetCv, none, x, none)                    // 2
	b.Emit(bytecode.OpNop, none, none, none)                     // 3
	b.Emit(bytecode.OpAssign, x, b.Const(bytecode.Int(2)), none) // 4
	b.Emit(bytecode.OpReturn, none, x, none)                     // 5

	ranges := ComputeLiveRanges(b.Unit())
	if len(ranges) != 2 {
		t.Fatalf("got %v, want two ranges", ranges)
	}
	if ranges[0].Start != 0 || ranges[0].End != 2 {
		t.Errorf("first range = %s, want [0, 2)", ranges[0])
	}
	if ranges[1].Start != 4 || ranges[1].End != 6 {
		t.Errorf("second range = %s, want [4, 6)", ranges[1])
	}
}

func TestLiveRangeKillWithoutOpenRange(t *testing.T) {
	b := bytecode.NewBuilder("f", bytecode.KindFunction)
	none := bytecode.Operand{}
	b.Emit(bytecode.OpUnsetCv, none, b.Var("x"), none)
	b.Emit(bytecode.OpReturn, none, b.Const(bytecode.Null()), none)
	if ranges := ComputeLiveRanges(b.Unit()); len(ranges) != 0 {
		t.Errorf("kill opened a range: %v", ranges)
	}
}

func TestLiveRangesNonOverlapping(t *testing.T) {
	b := bytecode.NewBuilder("f", bytecode.KindFunction)
	none := bytecode.Operand{}
	x, y := b.Var("x"), b.Var("y")
	b.Emit(bytecode.OpAssign, y, b.Const(bytecode.Int(1)), none)
	b.Emit(bytecode.OpAssign, x, y, none)
	b.Emit(bytecode.OpUnsetCv, none, x, none)
	b.Emit(bytecode.OpUnsetCv, none, y, none)
	b.Emit(bytecode.OpAssign, x, b.Const(bytecode.Int(2)), none)
	b.Emit(bytecode.OpReturn, none, x, none)
	u := b.Unit()

	ranges := ComputeLiveRanges(u)
	sortByVariable(ranges)
	last := map[int32]int{}
	for _, r := range ranges {
		if r.Start >= r.End {
			t.Errorf("empty range %s", r)
		}
		if end, ok := last[r.Slot]; ok && r.Start < end {
			t.Errorf("%s overlaps previous range ending at %d", r, end)
		}
		last[r.Slot] = r.End
	}
	if len(ranges) != 3 || ranges[0].Name != "$x" || ranges[2].Name != "$y" {
		t.Errorf("grouping wrong: %v", ranges)
	}
}

func TestLiveRangesIgnoreUntaggedSlots(t *testing.T) {
	// A jump whose stored number happens to equal a CV slot is not a
	// variable reference.
	u := &bytecode.Unit{
		Vars: []string{"x"},
		Instructions: []bytecode.Instruction{
			{Opcode: bytecode.OpJmp, Op1: bytecode.Operand{Type: bytecode.OperandCV, Num: 1}},
			{Opcode: bytecode.OpReturn, Op1: bytecode.ConstOperand(0)},
		},
		Constants: []bytecode.Value{bytecode.Null()},
	}
	if ranges := ComputeLiveRanges(u); len(ranges) != 0 {
		t.Errorf("got %v", ranges)
	}
}
