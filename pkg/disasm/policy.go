package disasm

import (
	"fmt"
	"io"
)

// Policy controls how much a dump shows and in which shape. It is passed to
// every call; nothing about output is global.
type Policy struct {
	// Verbosity 0 prints one summary line per unit, 1 the header, the
	// instructions, live ranges and footer, 2 and above additionally the
	// constant pool, variable table, jump targets and diagnostics.
	Verbosity int

	// Tabular switches from padded columns to separator-joined fields.
	Tabular bool

	// ColumnSeparator joins tabular fields. Empty means a tab.
	ColumnSeparator string

	Out io.Writer
}

// DefaultPolicy returns the policy used when nothing is configured:
// verbosity 1, free-form, writing to w.
func DefaultPolicy(w io.Writer) Policy {
	return Policy{Verbosity: 1, ColumnSeparator: "\t", Out: w}
}

func (p Policy) separator() string {
	if p.ColumnSeparator == "" {
		return "\t"
	}
	return p.ColumnSeparator
}

// Record joins fields the way tabular instruction rows are joined: each
// field trimmed, then separated by the column separator.
func (p Policy) Record(fields ...string) string {
	return formatTabular(fields, p.separator())
}

// Diagnostic records a data problem found while dumping. Diagnostics never
// stop a dump.
type Diagnostic struct {
	Index   int    // instruction index
	Slot    string // opcode, result, op1, op2 or ext
	Message string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%d %s: %s", d.Index, d.Slot, d.Message)
}

// Report summarizes one dump.
type Report struct {
	Unit           string
	Instructions   int
	InvalidRefs    int
	UnknownOpcodes int
	LiveRanges     int
	Diagnostics    []Diagnostic
}

// Clean reports whether the unit decoded without any diagnostics.
func (r Report) Clean() bool {
	return len(r.Diagnostics) == 0
}

func (r *Report) add(d Diagnostic) {
	r.Diagnostics = append(r.Diagnostics, d)
	if d.Slot == "opcode" {
		r.UnknownOpcodes++
	} else {
		r.InvalidRefs++
	}
}
