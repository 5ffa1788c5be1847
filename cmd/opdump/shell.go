package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/peterh/liner"

	"github.com/chazu/opdump/config"
	"github.com/chazu/opdump/pkg/bytecode"
	"github.com/chazu/opdump/pkg/driver"
	"github.com/chazu/opdump/store"
)

const historyFile = ".opdump_history"

var shellCommands = []string{"ls", "dump", "set", "help", "quit"}

// shell is the interactive command loop over a unit store.
type shell struct {
	store *store.Store
	cfg   *config.Config
	out   io.Writer
}

func runShell(ctx context.Context, opts options, stdout io.Writer) error {
	st, err := store.Open(opts.cfg.StorePath())
	if err != nil {
		return err
	}
	defer st.Close()
	sh := &shell{store: st, cfg: opts.cfg, out: stdout}

	fmt.Fprintf(stdout, "opdump shell on %s (type 'help' for commands)\n", st.Path())

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)
	ln.SetCompleter(func(line string) []string {
		var c []string
		for _, cmd := range shellCommands {
			if strings.HasPrefix(cmd, strings.ToLower(line)) {
				c = append(c, cmd)
			}
		}
		return c
	})

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	for {
		line, err := ln.Prompt("opdump> ")
		if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
			fmt.Fprintln(stdout)
			return nil
		}
		if err != nil {
			return err
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		ln.AppendHistory(line)

		quit, err := sh.exec(ctx, line)
		if err != nil {
			fmt.Fprintf(stdout, "error: %v\n", err)
		}
		if quit {
			return nil
		}
	}
}

// exec runs one shell command line.
func (sh *shell) exec(ctx context.Context, line string) (quit bool, err error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	args := fields[1:]

	switch strings.ToLower(fields[0]) {
	case "quit", "exit", ":q":
		return true, nil
	case "help", "?":
		sh.help()
	case "ls":
		return false, sh.list(ctx, args)
	case "dump":
		return false, sh.dump(ctx, args)
	case "set":
		return false, sh.set(args)
	default:
		return false, fmt.Errorf("unknown command %q", fields[0])
	}
	return false, nil
}

func (sh *shell) help() {
	fmt.Fprintln(sh.out, "Commands:")
	fmt.Fprintln(sh.out, "  ls [name]                list stored units")
	fmt.Fprintln(sh.out, "  dump <id|name>           dump stored units")
	fmt.Fprintln(sh.out, "  set verbosity <n>        0, 1, 2 or 3")
	fmt.Fprintln(sh.out, "  set format <text|tabular>")
	fmt.Fprintln(sh.out, "  set col-sep <sep>")
	fmt.Fprintln(sh.out, "  quit                     leave the shell")
}

func (sh *shell) list(ctx context.Context, args []string) error {
	var entries []store.Entry
	var err error
	if len(args) > 0 {
		entries, err = sh.store.FindByName(ctx, args[0])
	} else {
		entries, err = sh.store.List(ctx)
	}
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(sh.out, "no units")
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(sh.out, "%s  %-8s %s (%s ops, %s)\n",
			e.ID, e.Kind, e.Name, humanize.Comma(int64(e.Instructions)), humanize.Time(e.Created))
	}
	return nil
}

func (sh *shell) dump(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: dump <id|name>")
	}
	var units []*bytecode.Unit
	if strings.HasPrefix(args[0], "unit_") {
		u, _, err := sh.store.Get(ctx, args[0])
		if err != nil {
			return err
		}
		units = append(units, u)
	} else {
		entries, err := sh.store.FindByName(ctx, args[0])
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return fmt.Errorf("no stored unit named %q", args[0])
		}
		for _, e := range entries {
			u, _, err := sh.store.Get(ctx, e.ID)
			if err != nil {
				return err
			}
			units = append(units, u)
		}
	}

	opts, err := sh.cfg.DriverOptions(sh.out)
	if err != nil {
		return err
	}
	// Asking for a unit by hand overrides the skip filters.
	opts.Skip = nil
	opts.IncludeInternal = true
	_, err = driver.DumpUnits(ctx, units, opts)
	return err
}

func (sh *shell) set(args []string) error {
	if len(args) != 2 {
		return errors.New("usage: set <verbosity|format|col-sep> <value>")
	}
	saved := sh.cfg.Output
	switch args[0] {
	case "verbosity", "v":
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("verbosity: %w", err)
		}
		sh.cfg.Output.Verbosity = n
	case "format":
		sh.cfg.Output.Format = args[1]
	case "col-sep", "sep":
		sh.cfg.Output.ColSep = args[1]
	default:
		return fmt.Errorf("unknown setting %q", args[0])
	}
	if err := sh.cfg.Validate(); err != nil {
		sh.cfg.Output = saved
		return err
	}
	return nil
}
