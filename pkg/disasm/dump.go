package disasm

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/tliron/commonlog"

	"github.com/chazu/opdump/pkg/bytecode"
)

var log = commonlog.GetLogger("opdump.disasm")

// ErrNilUnit is returned by Dump when there is no unit to dump.
var ErrNilUnit = errors.New("disasm: nil unit")

// headerKeyWidth aligns free-form header values.
const headerKeyWidth = 16

// Dump writes the disassembly of u to p.Out and reports what it found.
// Malformed data never fails a dump: it shows up as sentinel text and as
// diagnostics in the report. The only error is a failing sink, after which
// nothing more is written.
func Dump(u *bytecode.Unit, p Policy) (Report, error) {
	if u == nil {
		return Report{}, ErrNilUnit
	}
	if p.Out == nil {
		return Report{}, errors.New("disasm: policy has no output writer")
	}

	d := &dumper{
		unit:   u,
		policy: p,
		sep:    p.separator(),
		w:      &stickyWriter{w: p.Out},
	}
	d.decode()
	d.dump()

	if d.w.err != nil {
		return d.report, fmt.Errorf("disasm: write %s: %w", u.DisplayName(), d.w.err)
	}
	return d.report, nil
}

// stickyWriter remembers the first write error and drops all output after
// it.
type stickyWriter struct {
	w   io.Writer
	err error
}

func (s *stickyWriter) line(text string) {
	if s.err != nil {
		return
	}
	_, s.err = io.WriteString(s.w, text+"\n")
}

type dumper struct {
	unit   *bytecode.Unit
	policy Policy
	sep    string
	w      *stickyWriter

	rows   []Row
	report Report
	name   string // escaped display name
}

// decode runs every instruction through the table once.
func (d *dumper) decode() {
	u := d.unit
	d.report.Unit = u.DisplayName()
	d.name = EscapeName(d.report.Unit)
	d.report.Instructions = len(u.Instructions)
	d.rows = make([]Row, len(u.Instructions))
	for i := range u.Instructions {
		row, diags := DecodeInstruction(u, i)
		d.rows[i] = row
		for _, diag := range diags {
			log.Debugf("%s: %s", d.name, diag)
			d.report.add(diag)
		}
	}
}

func (d *dumper) dump() {
	u := d.unit
	v := d.policy.Verbosity

	if v <= 0 {
		if d.policy.Tabular {
			d.fields(u.Kind.String(), d.name, strconv.Itoa(len(d.rows)))
		} else {
			d.w.line(fmt.Sprintf("%s %s: %d ops", u.Kind, d.name, len(d.rows)))
		}
		return
	}

	d.header()
	d.instructions()

	ranges := liveRanges(u, d.rows)
	d.report.LiveRanges = len(ranges)
	sortByVariable(ranges)
	d.liveRanges(ranges)

	if v >= 2 {
		d.diagnostics()
	}
	if d.policy.Tabular {
		d.fields("end", d.name)
	} else {
		d.w.line(fmt.Sprintf("end of %s %s", u.Kind, d.name))
	}
}

func (d *dumper) fields(fields ...string) {
	d.w.line(formatTabular(fields, d.sep))
}

func (d *dumper) keyValue(key, value string) {
	if d.policy.Tabular {
		d.fields(key, value)
		return
	}
	d.w.line(strings.TrimRight(fmt.Sprintf("%-*s%s", headerKeyWidth, key+":", value), " "))
}

func (d *dumper) header() {
	u := d.unit
	d.keyValue("function name", d.name)
	d.keyValue("kind", u.Kind.String())
	if u.Filename != "" {
		d.keyValue("filename", EscapeName(u.Filename))
	}
	if start, end := u.LineRange(); start != 0 || end != 0 {
		d.keyValue("line range", fmt.Sprintf("%d-%d", start, end))
	}
	d.keyValue("number of ops", strconv.Itoa(len(u.Instructions)))
	d.keyValue("number of args", strconv.FormatUint(uint64(u.ArgCount), 10))
	d.keyValue("compiled vars", d.compiledVars())

	if d.policy.Verbosity < 2 {
		return
	}
	d.keyValue("temporaries", strconv.FormatUint(uint64(u.NumTemps), 10))
	d.keyValue("constants", strconv.Itoa(len(u.Constants)))
	for i, c := range u.Constants {
		d.entry("constant", "#"+strconv.Itoa(i), FormatValue(c))
	}
	d.keyValue("vars", strconv.Itoa(u.VarCount()))
	for i := 0; i < u.VarCount(); i++ {
		d.entry("var", "!"+strconv.Itoa(i), d.varName(i))
	}
	d.keyValue("jump targets", d.jumpTargets())
}

// entry writes one indented listing line, or a three-field tabular record.
func (d *dumper) entry(kind, key, value string) {
	if d.policy.Tabular {
		d.fields(kind, strings.TrimLeft(key, "#!"), value)
		return
	}
	d.w.line("  " + key + "  " + value)
}

func (d *dumper) varName(slot int) string {
	if name, ok := d.unit.VarName(slot); ok {
		return "$" + EscapeName(name)
	}
	return fmt.Sprintf("$slot%d", slot)
}

func (d *dumper) compiledVars() string {
	n := d.unit.VarCount()
	if n == 0 {
		return "0"
	}
	names := make([]string, n)
	for i := range names {
		names[i] = d.varName(i)
	}
	return fmt.Sprintf("%d (%s)", n, strings.Join(names, ", "))
}

// jumpTargets lists the distinct valid destinations of all jumps, sorted.
func (d *dumper) jumpTargets() string {
	seen := make(map[int]bool)
	for _, row := range d.rows {
		for _, o := range row.Operands() {
			if o.Kind == JumpTarget && o.Valid() {
				seen[int(o.Num)] = true
			}
		}
		if row.ExtJump >= 0 {
			seen[row.ExtJump] = true
		}
	}
	if len(seen) == 0 {
		return "none"
	}
	targets := make([]int, 0, len(seen))
	for t := range seen {
		targets = append(targets, t)
	}
	sort.Ints(targets)
	strs := make([]string, len(targets))
	for i, t := range targets {
		strs[i] = strconv.Itoa(t)
	}
	return strings.Join(strs, ", ")
}

func (d *dumper) instructions() {
	cells := make([][numCols]string, len(d.rows))
	for i, row := range d.rows {
		cells[i] = row.Cells()
	}
	if d.policy.Tabular {
		for _, c := range cells {
			d.fields(c[:]...)
		}
		return
	}
	widths := layout(cells)
	for _, c := range cells {
		d.w.line(formatFree(c, widths))
	}
}

func (d *dumper) liveRanges(ranges []LiveRange) {
	if len(ranges) == 0 {
		return
	}
	if d.policy.Tabular {
		for _, r := range ranges {
			d.fields("live", r.Name, strconv.Itoa(r.Start), strconv.Itoa(r.End))
		}
		return
	}
	width := 0
	for _, r := range ranges {
		if w := runewidth.StringWidth(r.Name); w > width {
			width = w
		}
	}
	d.w.line("live ranges:")
	for _, r := range ranges {
		d.w.line(fmt.Sprintf("  %s  [%d, %d)", runewidth.FillRight(r.Name, width), r.Start, r.End))
	}
}

func (d *dumper) diagnostics() {
	diags := d.report.Diagnostics
	d.keyValue("diagnostics", strconv.Itoa(len(diags)))
	for _, diag := range diags {
		if d.policy.Tabular {
			d.fields("diagnostic", strconv.Itoa(diag.Index), diag.Slot, diag.Message)
		} else {
			d.w.line("  " + diag.String())
		}
	}
}
