// opdump CLI - dumps compiled units as annotated opcode listings
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/opdump/config"
	"github.com/chazu/opdump/pkg/bytecode"
	"github.com/chazu/opdump/pkg/driver"
	"github.com/chazu/opdump/server"
	"github.com/chazu/opdump/store"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// stringList collects a repeatable flag.
type stringList []string

func (l *stringList) String() string { return strings.Join(*l, ",") }

func (l *stringList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

type options struct {
	cfg         *config.Config
	importMode  bool
	name        string
	serve       bool
	interactive bool
	files       []string
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("opdump", flag.ContinueOnError)
	fs.SetOutput(stderr)

	verbosity := fs.Int("v", 1, "Verbosity: 0 summary, 1 listing, 2 constants, variables and diagnostics")
	format := fs.String("format", "text", "Output format: text or tabular")
	colSep := fs.String("col-sep", "\t", "Field separator for tabular output")
	configPath := fs.String("config", "", "Configuration file (default: nearest opdump.toml)")
	var skip stringList
	fs.Var(&skip, "skip", "Skip routines whose name matches this pattern (repeatable)")
	var skipNames stringList
	fs.Var(&skipNames, "skip-name", "Skip the routine or class with this exact name (repeatable)")
	workers := fs.Int("j", 1, "Number of units rendered concurrently")
	logVerbosity := fs.Int("log-verbosity", 0, "Log verbosity (-4 none ... 2 debug)")
	logFile := fs.String("log-file", "", "Log to this file instead of stderr")
	storePath := fs.String("store", "", "Unit database")
	importMode := fs.Bool("import", false, "Import the given program files into the store")
	name := fs.String("name", "", "Dump only stored units with this name")
	serveMode := fs.Bool("serve", false, "Start the disassembly service (Connect + gRPC)")
	port := fs.Int("port", 4567, "Service port (used with -serve)")
	interactive := fs.Bool("i", false, "Start interactive shell over the store")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: opdump [options] [files...]\n\n")
		fmt.Fprintf(stderr, "Dumps the opcode arrays of compiled program files.\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  opdump prog.opc                   # Dump a program file\n")
		fmt.Fprintf(stderr, "  opdump -v 2 -skip '^test' prog.opc\n")
		fmt.Fprintf(stderr, "  opdump -store units.db -import prog.opc\n")
		fmt.Fprintf(stderr, "  opdump -store units.db -name add  # Dump stored units named add\n")
		fmt.Fprintf(stderr, "  opdump -store units.db -serve     # Serve on :4567\n")
		fmt.Fprintf(stderr, "  opdump -store units.db -i         # Interactive shell\n")
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFile(*configPath)
	} else {
		cfg, err = config.FindAndLoad(".")
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	// Flags given explicitly override the configuration file.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "v":
			cfg.Output.Verbosity = *verbosity
		case "format":
			cfg.Output.Format = *format
		case "col-sep":
			cfg.Output.ColSep = *colSep
		case "skip":
			cfg.Filter.Skip = append(cfg.Filter.Skip, skip...)
		case "skip-name":
			cfg.Filter.Names = append(cfg.Filter.Names, skipNames...)
		case "j":
			cfg.Dump.Workers = *workers
		case "log-verbosity":
			cfg.Log.Verbosity = *logVerbosity
		case "log-file":
			cfg.Log.File = *logFile
		case "store":
			cfg.Store.Path = *storePath
			cfg.Dir = ""
		case "port":
			cfg.Server.Addr = fmt.Sprintf(":%d", *port)
		}
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if cfg.Log.File != "" {
		commonlog.Configure(cfg.Log.Verbosity, &cfg.Log.File)
	} else {
		commonlog.Configure(cfg.Log.Verbosity, nil)
	}

	opts := options{
		cfg:         cfg,
		importMode:  *importMode,
		name:        *name,
		serve:       *serveMode,
		interactive: *interactive,
		files:       fs.Args(),
	}
	storeSet := *storePath != ""

	ctx := context.Background()
	switch {
	case opts.importMode:
		err = runImport(ctx, opts, stdout)
	case opts.serve:
		err = runServe(opts, storeSet)
	case opts.interactive:
		err = runShell(ctx, opts, stdout)
	case len(opts.files) > 0:
		err = runFiles(ctx, opts, stdout, stderr)
	case storeSet:
		err = runStored(ctx, opts, stdout, stderr)
	default:
		fs.Usage()
		return 2
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// readProgram loads one CBOR program file.
func readProgram(path string) (*bytecode.Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	prog, err := bytecode.UnmarshalProgram(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if prog.Filename == "" {
		prog.Filename = path
	}
	return prog, nil
}

func runFiles(ctx context.Context, opts options, stdout, stderr io.Writer) error {
	dopts, err := opts.cfg.DriverOptions(stdout)
	if err != nil {
		return err
	}
	var total driver.Summary
	for _, path := range opts.files {
		prog, err := readProgram(path)
		if err != nil {
			return err
		}
		sum, err := driver.DumpProgram(ctx, prog, dopts)
		if err != nil {
			return err
		}
		merge(&total, sum)
	}
	printSummary(stderr, opts.cfg.Output.Verbosity, total)
	return nil
}

func runStored(ctx context.Context, opts options, stdout, stderr io.Writer) error {
	st, err := store.Open(opts.cfg.StorePath())
	if err != nil {
		return err
	}
	defer st.Close()

	var units []*bytecode.Unit
	if opts.name != "" {
		entries, err := st.FindByName(ctx, opts.name)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return fmt.Errorf("no stored unit named %q", opts.name)
		}
		ids := make([]string, len(entries))
		for i, e := range entries {
			ids[i] = e.ID
		}
		units, err = st.Units(ctx, ids...)
		if err != nil {
			return err
		}
	} else {
		units, err = st.Units(ctx)
		if err != nil {
			return err
		}
	}

	dopts, err := opts.cfg.DriverOptions(stdout)
	if err != nil {
		return err
	}
	sum, err := driver.DumpUnits(ctx, units, dopts)
	if err != nil {
		return err
	}
	printSummary(stderr, opts.cfg.Output.Verbosity, sum)
	return nil
}

func runImport(ctx context.Context, opts options, stdout io.Writer) error {
	if len(opts.files) == 0 {
		return errors.New("-import needs at least one program file")
	}
	st, err := store.Open(opts.cfg.StorePath())
	if err != nil {
		return err
	}
	defer st.Close()

	for _, path := range opts.files {
		prog, err := readProgram(path)
		if err != nil {
			return err
		}
		entries, err := st.PutProgram(ctx, prog)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Imported %s units from %s\n", humanize.Comma(int64(len(entries))), path)
	}
	return nil
}

func runServe(opts options, storeSet bool) error {
	var sopts []server.ServerOption
	sopts = append(sopts,
		server.WithVerbosity(opts.cfg.Output.Verbosity),
		server.WithWorkers(opts.cfg.Dump.Workers),
	)
	if storeSet || opts.cfg.Dir != "" {
		st, err := store.Open(opts.cfg.StorePath())
		if err != nil {
			return err
		}
		defer st.Close()
		sopts = append(sopts, server.WithStore(st))
	}
	srv := server.New(sopts...)
	return srv.ListenAndServe(opts.cfg.Server.Addr)
}

func merge(total *driver.Summary, s driver.Summary) {
	total.Units += s.Units
	total.Skipped += s.Skipped
	total.Instructions += s.Instructions
	total.InvalidRefs += s.InvalidRefs
	total.UnknownOpcodes += s.UnknownOpcodes
	total.Reports = append(total.Reports, s.Reports...)
}

// printSummary reports totals on stderr. Invalid references are reported,
// never treated as failures.
func printSummary(w io.Writer, verbosity int, s driver.Summary) {
	if verbosity <= 0 && s.Clean() {
		return
	}
	fmt.Fprintf(w, "%s units, %s instructions, %s skipped",
		humanize.Comma(int64(s.Units)),
		humanize.Comma(int64(s.Instructions)),
		humanize.Comma(int64(s.Skipped)))
	if !s.Clean() {
		fmt.Fprintf(w, ", %s invalid references, %s unknown opcodes",
			humanize.Comma(int64(s.InvalidRefs)),
			humanize.Comma(int64(s.UnknownOpcodes)))
	}
	fmt.Fprintln(w)
}
