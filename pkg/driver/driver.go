// Package driver walks programs and unit lists and hands each routine to the
// disassembler, adding the per-function and per-class framing.
package driver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"

	"github.com/tliron/commonlog"
	"golang.org/x/sync/errgroup"

	"github.com/chazu/opdump/pkg/bytecode"
	"github.com/chazu/opdump/pkg/disasm"
)

var log = commonlog.GetLogger("opdump.driver")

var errNoOutput = errors.New("driver: policy has no output writer")

// Options controls a driver run.
type Options struct {
	Policy disasm.Policy

	// Skip reports names that should not be dumped. It is consulted with
	// the display name of every unit and the name of every class.
	Skip func(name string) bool

	// IncludeInternal dumps host builtins too. They carry no opcodes.
	IncludeInternal bool

	// Workers is the number of units rendered concurrently. Values below
	// 2 render sequentially.
	Workers int
}

func (o Options) skipped(u *bytecode.Unit) bool {
	if u == nil {
		return true
	}
	if u.Internal && !o.IncludeInternal {
		log.Debugf("skipping internal unit %s", u.DisplayName())
		return true
	}
	if o.Skip != nil && o.Skip(u.DisplayName()) {
		log.Debugf("skipping filtered unit %s", u.DisplayName())
		return true
	}
	return false
}

// Summary aggregates the reports of every dumped unit.
type Summary struct {
	Units          int
	Skipped        int
	Instructions   int
	InvalidRefs    int
	UnknownOpcodes int
	Reports        []disasm.Report
}

// Add folds one unit's report into the summary.
func (s *Summary) Add(r disasm.Report) {
	s.Units++
	s.Instructions += r.Instructions
	s.InvalidRefs += r.InvalidRefs
	s.UnknownOpcodes += r.UnknownOpcodes
	s.Reports = append(s.Reports, r)
}

// Clean reports whether no unit produced diagnostics.
func (s Summary) Clean() bool {
	return s.InvalidRefs == 0 && s.UnknownOpcodes == 0
}

// rendered is the output of one unit, produced off the shared sink.
type rendered struct {
	text   bytes.Buffer
	report disasm.Report
}

// render dumps every unit into its own buffer. With more than one worker
// the units are rendered concurrently; each unit still goes through exactly
// one Dump call.
func render(ctx context.Context, units []*bytecode.Unit, policy disasm.Policy, workers int) ([]*rendered, error) {
	out := make([]*rendered, len(units))
	one := func(i int) error {
		r := &rendered{}
		p := policy
		p.Out = &r.text
		report, err := disasm.Dump(units[i], p)
		if err != nil {
			return err
		}
		r.report = report
		out[i] = r
		return nil
	}

	if workers < 2 {
		for i := range units {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if err := one(i); err != nil {
				return nil, err
			}
		}
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range units {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return one(i)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// sink serializes everything written to the caller's writer and keeps the
// first error.
type sink struct {
	w   io.Writer
	err error
}

func (s *sink) printf(format string, args ...any) {
	if s.err != nil {
		return
	}
	_, s.err = fmt.Fprintf(s.w, format, args...)
}

func (s *sink) copy(r *rendered) {
	if s.err != nil {
		return
	}
	_, s.err = r.text.WriteTo(s.w)
}

// DumpUnits dumps units in order. Units are rendered on up to
// opts.Workers goroutines and written to opts.Policy.Out in input order.
func DumpUnits(ctx context.Context, units []*bytecode.Unit, opts Options) (Summary, error) {
	var sum Summary
	if opts.Policy.Out == nil {
		return sum, errNoOutput
	}
	var keep []*bytecode.Unit
	for _, u := range units {
		if opts.skipped(u) {
			sum.Skipped++
			continue
		}
		keep = append(keep, u)
	}

	out, err := render(ctx, keep, opts.Policy, opts.Workers)
	if err != nil {
		return sum, fmt.Errorf("driver: %w", err)
	}
	s := &sink{w: opts.Policy.Out}
	for _, r := range out {
		s.copy(r)
		sum.Add(r.report)
	}
	if s.err != nil {
		return sum, fmt.Errorf("driver: write: %w", s.err)
	}
	return sum, nil
}

// DumpProgram dumps a whole program: the main script, then every user
// function framed by "Function name:" and "End of function name", then
// every class framed by "Class name:" and "End of class name.". Framing is
// left out at verbosity 0. At verbosity 2 and above class blocks also list
// declared properties and class constants. In tabular mode each framing
// line is a separator-joined record such as "class<sep>Shape".
func DumpProgram(ctx context.Context, prog *bytecode.Program, opts Options) (Summary, error) {
	var sum Summary
	if prog == nil {
		return sum, fmt.Errorf("driver: nil program")
	}
	if opts.Policy.Out == nil {
		return sum, errNoOutput
	}

	// Collect the units to render, remembering where each one goes.
	var units []*bytecode.Unit
	var functions []*bytecode.Unit
	type classPlan struct {
		class   *bytecode.Class
		methods []*bytecode.Unit
	}
	var classes []classPlan

	if prog.Main != nil {
		units = append(units, prog.Main)
	}
	for _, f := range prog.Functions {
		if opts.skipped(f) {
			sum.Skipped++
			continue
		}
		functions = append(functions, f)
		units = append(units, f)
	}
	for _, c := range prog.Classes {
		if c == nil || c.Internal || (opts.Skip != nil && opts.Skip(c.Name)) {
			sum.Skipped++
			continue
		}
		plan := classPlan{class: c}
		for _, m := range c.Methods {
			if opts.skipped(m) {
				sum.Skipped++
				continue
			}
			plan.methods = append(plan.methods, m)
			units = append(units, m)
		}
		classes = append(classes, plan)
	}

	out, err := render(ctx, units, opts.Policy, opts.Workers)
	if err != nil {
		return sum, fmt.Errorf("driver: %s: %w", prog.Filename, err)
	}
	byUnit := make(map[*bytecode.Unit]*rendered, len(units))
	for i, u := range units {
		byUnit[u] = out[i]
	}

	p := opts.Policy
	framed := p.Verbosity > 0
	s := &sink{w: p.Out}
	f := framer{s: s, p: p}
	emit := func(u *bytecode.Unit) {
		r := byUnit[u]
		if framed {
			f.line(fmt.Sprintf("Function %s:", url.QueryEscape(u.Name)), "function", disasm.EscapeName(u.Name))
		}
		s.copy(r)
		if framed {
			f.line(fmt.Sprintf("End of function %s", url.QueryEscape(u.Name)), "end-function", disasm.EscapeName(u.Name))
			f.blank()
		}
		sum.Add(r.report)
	}

	if prog.Main != nil {
		s.copy(byUnit[prog.Main])
		sum.Add(byUnit[prog.Main].report)
		if framed {
			f.blank()
		}
	}
	for _, fn := range functions {
		emit(fn)
	}
	for _, plan := range classes {
		c := plan.class
		name := disasm.EscapeName(c.Name)
		if !c.HasUserMethods() && len(plan.methods) == 0 {
			if framed {
				f.line(fmt.Sprintf("Class %s: [no user functions]", name), "class", name, "no-user-functions")
			}
			continue
		}
		if framed {
			f.line(fmt.Sprintf("Class %s:", name), "class", name)
			if p.Verbosity >= 2 {
				classDetails(f, c)
			}
		}
		for _, m := range plan.methods {
			emit(m)
		}
		if framed {
			f.line(fmt.Sprintf("End of class %s.", name), "end-class", name)
			f.blank()
		}
	}

	if s.err != nil {
		return sum, fmt.Errorf("driver: write: %w", s.err)
	}
	return sum, nil
}

func classDetails(f framer, c *bytecode.Class) {
	for _, prop := range c.Properties {
		prop = disasm.EscapeName(prop)
		f.line("property: $"+prop, "property", "$"+prop)
	}
	for _, k := range c.Constants {
		name, value := disasm.EscapeName(k.Name), disasm.FormatValue(k.Value)
		f.line(fmt.Sprintf("constant: %s = %s", name, value), "constant", name, value)
	}
}

// framer writes the driver's own lines. Free-form output gets the text
// as is; tabular output gets the fields as one separator-joined record and
// no blank lines.
type framer struct {
	s *sink
	p disasm.Policy
}

func (f framer) line(text string, fields ...string) {
	if f.p.Tabular {
		f.s.printf("%s\n", f.p.Record(fields...))
		return
	}
	f.s.printf("%s\n", text)
}

func (f framer) blank() {
	if !f.p.Tabular {
		f.s.printf("\n")
	}
}
