package disasm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/chazu/opdump/pkg/bytecode"
)

// Column order of a rendered instruction.
const (
	colIndex = iota
	colMnemonic
	colResult
	colOp1
	colOp2
	colExt
	numCols
)

// Row is one decoded instruction.
type Row struct {
	Index    int
	Mnemonic string
	Known    bool // opcode found in the instruction table
	Result   Operand
	Op1      Operand
	Op2      Operand
	Ext      string
	ExtJump  int  // second jump destination, -1 when absent
	Kills    bool // the instruction ends the lifetime of Op1
}

// DecodeInstruction decodes instruction at of u through the instruction
// table. Problems are returned as diagnostics; the row is always usable.
func DecodeInstruction(u *bytecode.Unit, at int) (Row, []Diagnostic) {
	ins := u.Instructions[at]
	info, known := bytecode.Lookup(ins.Opcode, ins.Ext)
	s := info.Sig

	row := Row{
		Index:    at,
		Mnemonic: info.Name,
		Known:    known,
		Result:   Decode(u, at, ins.Result, s.Result),
		Op1:      Decode(u, at, ins.Op1, s.Op1),
		Op2:      Decode(u, at, ins.Op2, s.Op2),
		ExtJump:  -1,
		Kills:    s.KillsOp1,
	}

	var diags []Diagnostic
	if !known {
		diags = append(diags, Diagnostic{Index: at, Slot: "opcode", Message: fmt.Sprintf("unknown opcode %d", uint8(ins.Opcode))})
	}
	for _, o := range []struct {
		slot string
		op   Operand
	}{{"result", row.Result}, {"op1", row.Op1}, {"op2", row.Op2}} {
		if !o.op.Valid() {
			diags = append(diags, Diagnostic{Index: at, Slot: o.slot, Message: o.op.Problem})
		}
	}

	ext, problem := renderExt(u, at, ins.Ext, s.Ext, &row)
	row.Ext = ext
	if problem != "" {
		diags = append(diags, Diagnostic{Index: at, Slot: "ext", Message: problem})
	}
	return row, diags
}

func renderExt(u *bytecode.Unit, at int, ext uint32, kind bytecode.ExtKind, row *Row) (string, string) {
	switch kind {
	case bytecode.ExtNone:
		return "", ""
	case bytecode.ExtFetch:
		if name, ok := bytecode.FetchName(ext); ok {
			return name, ""
		}
	case bytecode.ExtCast:
		if name, ok := bytecode.CastName(ext); ok {
			return name, ""
		}
	case bytecode.ExtArgCount:
		return "args=" + strconv.FormatUint(uint64(ext), 10), ""
	case bytecode.ExtJump:
		// The extended value is stored unsigned; relative offsets wrap.
		o := jumpOperand(u, at, int64(int32(ext)))
		if !o.Valid() {
			return o.Render(), o.Problem
		}
		row.ExtJump = int(o.Num)
		return "->" + o.Render(), ""
	}
	return "ext=" + strconv.FormatUint(uint64(ext), 10), ""
}

// Cells returns the six display fields of the row.
func (r Row) Cells() [numCols]string {
	return [numCols]string{
		strconv.Itoa(r.Index),
		r.Mnemonic,
		r.Result.Render(),
		r.Op1.Render(),
		r.Op2.Render(),
		r.Ext,
	}
}

// Operands returns result, op1 and op2 in display order.
func (r Row) Operands() [3]Operand {
	return [3]Operand{r.Result, r.Op1, r.Op2}
}

// columnGap is the space after each column; the index column is tighter.
func columnGap(col int) int {
	if col == colIndex {
		return 2
	}
	return 3
}

// layout computes free-form column widths for a set of rows. A column that
// is empty in every row takes no space.
func layout(cells [][numCols]string) [numCols]int {
	var widths [numCols]int
	for _, row := range cells {
		for col, cell := range row {
			if w := runewidth.StringWidth(cell); w > widths[col] {
				widths[col] = w
			}
		}
	}
	for col := range widths {
		if widths[col] > 0 {
			widths[col] += columnGap(col)
		}
	}
	return widths
}

// formatFree pads each cell to its column width. The line carries no
// trailing whitespace.
func formatFree(row [numCols]string, widths [numCols]int) string {
	var b strings.Builder
	for col, cell := range row {
		if widths[col] == 0 {
			continue
		}
		b.WriteString(runewidth.FillRight(cell, widths[col]))
	}
	return strings.TrimRight(b.String(), " ")
}

// formatTabular joins the fields with sep, trimming each.
func formatTabular(fields []string, sep string) string {
	trimmed := make([]string, len(fields))
	for i, f := range fields {
		trimmed[i] = strings.TrimSpace(f)
	}
	return strings.Join(trimmed, sep)
}
