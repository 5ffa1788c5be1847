// Package config handles opdump.toml configuration.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/chazu/opdump/pkg/disasm"
	"github.com/chazu/opdump/pkg/driver"
)

// FileName is the configuration file looked up by Load and FindAndLoad.
const FileName = "opdump.toml"

// Config represents an opdump.toml configuration.
type Config struct {
	Output Output `toml:"output" json:"output"`
	Filter Filter `toml:"filter" json:"filter"`
	Dump   Dump   `toml:"dump" json:"dump"`
	Store  Store  `toml:"store" json:"store"`
	Server Server `toml:"server" json:"server"`
	Log    Log    `toml:"log" json:"log"`

	// Dir is the directory containing the opdump.toml file (set at load time).
	Dir string `toml:"-" json:"-"`
}

// Output configures the listing.
type Output struct {
	Verbosity int    `toml:"verbosity" json:"verbosity"`
	Format    string `toml:"format" json:"format"` // "text" or "tabular"
	ColSep    string `toml:"col-sep" json:"col-sep"`
}

// Filter selects which routines are dumped. Skip holds regular
// expressions; Names holds exact names, compared case-insensitively.
type Filter struct {
	SkipInternal bool     `toml:"skip-internal" json:"skip-internal"`
	Skip         []string `toml:"skip" json:"skip"`
	Names        []string `toml:"names" json:"names"`
}

// Dump configures the driver.
type Dump struct {
	Workers int `toml:"workers" json:"workers"`
}

// Store locates the unit database.
type Store struct {
	Path string `toml:"path" json:"path"`
}

// Server configures the disassembly service.
type Server struct {
	Addr string `toml:"addr" json:"addr"`
}

// Log configures commonlog.
type Log struct {
	Verbosity int    `toml:"verbosity" json:"verbosity"`
	File      string `toml:"file" json:"file"`
}

// Default returns the configuration used when no opdump.toml exists.
func Default() *Config {
	return &Config{
		Output: Output{Verbosity: 1, Format: "text", ColSep: "\t"},
		Filter: Filter{SkipInternal: true, Skip: []string{}, Names: []string{}},
		Dump:   Dump{Workers: 1},
		Store:  Store{Path: "opdump.db"},
		Server: Server{Addr: "localhost:4567"},
	}
}

// Load parses an opdump.toml file from the given directory. Keys missing
// from the file keep their defaults.
func Load(dir string) (*Config, error) {
	c, err := LoadFile(filepath.Join(dir, FileName))
	if err != nil {
		return nil, err
	}
	c.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("config: cannot resolve path %s: %w", dir, err)
	}
	return c, nil
}

// LoadFile parses a configuration file at an explicit path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: cannot read %s: %w", path, err)
	}

	c := Default()
	if err := toml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("config: parse error in %s: %w", path, err)
	}
	if c.Filter.Skip == nil {
		c.Filter.Skip = []string{}
	}
	if c.Filter.Names == nil {
		c.Filter.Names = []string{}
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	if abs, err := filepath.Abs(filepath.Dir(path)); err == nil {
		c.Dir = abs
	}
	return c, nil
}

// FindAndLoad walks up from startDir to find an opdump.toml file, then loads
// and returns it. Returns Default() if no file is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return Default(), nil
		}
		dir = parent
	}
}

// Tabular reports whether the output format is tabular.
func (c *Config) Tabular() bool {
	return c.Output.Format == "tabular"
}

// Policy builds the output policy for writing to w.
func (c *Config) Policy(w io.Writer) disasm.Policy {
	return disasm.Policy{
		Verbosity:       c.Output.Verbosity,
		Tabular:         c.Tabular(),
		ColumnSeparator: c.Output.ColSep,
		Out:             w,
	}
}

// DriverOptions builds the driver options for writing to w. A routine is
// skipped when a skip pattern matches it or its name is listed in names.
func (c *Config) DriverOptions(w io.Writer) (driver.Options, error) {
	opts := driver.Options{
		Policy:          c.Policy(w),
		IncludeInternal: !c.Filter.SkipInternal,
		Workers:         c.Dump.Workers,
	}
	var patterns, names func(string) bool
	if len(c.Filter.Skip) > 0 {
		var err error
		patterns, err = driver.NameFilter(c.Filter.Skip...)
		if err != nil {
			return opts, fmt.Errorf("config: %w", err)
		}
	}
	if len(c.Filter.Names) > 0 {
		names = driver.ExactNames(c.Filter.Names...)
	}
	if patterns != nil || names != nil {
		opts.Skip = driver.AnyOf(patterns, names)
	}
	return opts, nil
}

// StorePath returns the store path, resolved against Dir when relative.
func (c *Config) StorePath() string {
	if c.Store.Path == "" || filepath.IsAbs(c.Store.Path) || c.Dir == "" {
		return c.Store.Path
	}
	return filepath.Join(c.Dir, c.Store.Path)
}
