package disasm

import (
	"fmt"
	"sort"

	"github.com/chazu/opdump/pkg/bytecode"
)

// LiveRange is a half-open span [Start, End) of instruction indices during
// which a compiled variable is live.
type LiveRange struct {
	Slot  int32
	Name  string // display name, "$x"
	Start int
	End   int
}

func (r LiveRange) String() string {
	return fmt.Sprintf("%s [%d, %d)", r.Name, r.Start, r.End)
}

// ComputeLiveRanges walks the unit's instructions in order. A reference to
// a compiled variable with no open range opens one; an instruction the
// table marks as killing its first operand closes that variable's range at
// the kill; the end of the unit closes whatever is still open. A variable
// may have several disjoint ranges. Ranges are returned in start order.
func ComputeLiveRanges(u *bytecode.Unit) []LiveRange {
	rows := make([]Row, len(u.Instructions))
	for i := range u.Instructions {
		rows[i], _ = DecodeInstruction(u, i)
	}
	return liveRanges(u, rows)
}

func liveRanges(u *bytecode.Unit, rows []Row) []LiveRange {
	var ranges []LiveRange
	open := make(map[int32]int) // slot -> index into ranges

	for _, row := range rows {
		if row.Kills && row.Op1.Kind == CompiledVar {
			if i, ok := open[row.Op1.Num]; ok {
				ranges[i].End = row.Index
				delete(open, row.Op1.Num)
			}
			continue
		}
		for _, o := range row.Operands() {
			if o.Kind != CompiledVar {
				continue
			}
			if _, ok := open[o.Num]; ok {
				continue
			}
			open[o.Num] = len(ranges)
			ranges = append(ranges, LiveRange{
				Slot:  o.Num,
				Name:  o.Render(),
				Start: row.Index,
				End:   -1,
			})
		}
	}
	for _, i := range open {
		ranges[i].End = len(u.Instructions)
	}
	return ranges
}

// sortByVariable orders ranges by variable slot, keeping start order within
// a variable.
func sortByVariable(ranges []LiveRange) {
	sort.SliceStable(ranges, func(i, j int) bool {
		return ranges[i].Slot < ranges[j].Slot
	})
}
