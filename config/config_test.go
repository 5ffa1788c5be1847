package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
[output]
verbosity = 2
format = "tabular"
col-sep = "|"

[filter]
skip-internal = false
skip = ["^str", "_internal$"]

[dump]
workers = 4

[store]
path = "units.db"

[server]
addr = "0.0.0.0:9000"

[log]
verbosity = 1
file = "opdump.log"
`)

	c, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if c.Output.Verbosity != 2 || !c.Tabular() || c.Output.ColSep != "|" {
		t.Errorf("output = %+v", c.Output)
	}
	if c.Filter.SkipInternal || len(c.Filter.Skip) != 2 {
		t.Errorf("filter = %+v", c.Filter)
	}
	if c.Dump.Workers != 4 {
		t.Errorf("workers = %d, want 4", c.Dump.Workers)
	}
	if c.Server.Addr != "0.0.0.0:9000" {
		t.Errorf("server addr = %q", c.Server.Addr)
	}
	if c.Log.Verbosity != 1 || c.Log.File != "opdump.log" {
		t.Errorf("log = %+v", c.Log)
	}
	abs, _ := filepath.Abs(dir)
	if c.Dir != abs {
		t.Errorf("Dir = %q, want %q", c.Dir, abs)
	}
	if c.StorePath() != filepath.Join(abs, "units.db") {
		t.Errorf("StorePath() = %q", c.StorePath())
	}
}

func TestLoadKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "[output]\nverbosity = 0\n")

	c, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if c.Output.Verbosity != 0 {
		t.Errorf("verbosity = %d, want 0", c.Output.Verbosity)
	}
	if c.Output.ColSep != "\t" || c.Dump.Workers != 1 || !c.Filter.SkipInternal {
		t.Errorf("defaults lost: %+v", c)
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Error("expected error for missing opdump.toml")
	}
}

func TestLoadParseError(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "[output\nverbosity = ")
	_, err := Load(dir)
	if err == nil || !strings.Contains(err.Error(), "parse error") {
		t.Errorf("err = %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		config string
	}{
		{"negative verbosity", "[output]\nverbosity = -1\n"},
		{"unknown format", "[output]\nformat = \"html\"\n"},
		{"empty tabular separator", "[output]\nformat = \"tabular\"\ncol-sep = \"\"\n"},
		{"zero workers", "[dump]\nworkers = 0\n"},
		{"log verbosity", "[log]\nverbosity = 9\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeConfig(t, dir, tt.config)
			_, err := Load(dir)
			if err == nil || !strings.Contains(err.Error(), "invalid configuration") {
				t.Errorf("err = %v, want validation failure", err)
			}
		})
	}
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("Default().Validate() = %v", err)
	}
}

func TestFindAndLoad(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "[dump]\nworkers = 3\n")
	sub := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}

	c, err := FindAndLoad(sub)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if c.Dump.Workers != 3 {
		t.Errorf("workers = %d, want 3", c.Dump.Workers)
	}
}

func TestFindAndLoadNotFound(t *testing.T) {
	c, err := FindAndLoad(t.TempDir())
	if err != nil {
		t.Fatalf("FindAndLoad: %v", err)
	}
	if c == nil || c.Output.Verbosity != 1 {
		t.Errorf("expected defaults, got %+v", c)
	}
}

func TestPolicyAndDriverOptions(t *testing.T) {
	c := Default()
	c.Output.Format = "tabular"
	c.Output.ColSep = ";"
	c.Filter.Skip = []string{"^hidden"}
	c.Dump.Workers = 2

	var buf bytes.Buffer
	p := c.Policy(&buf)
	if !p.Tabular || p.ColumnSeparator != ";" || p.Verbosity != 1 || p.Out != &buf {
		t.Errorf("policy = %+v", p)
	}

	opts, err := c.DriverOptions(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if opts.Workers != 2 || opts.IncludeInternal {
		t.Errorf("options = %+v", opts)
	}
	if opts.Skip == nil || !opts.Skip("hidden_fn") || opts.Skip("shown") {
		t.Error("skip patterns not applied")
	}

	c.Filter.Skip = []string{"("}
	if _, err := c.DriverOptions(&buf); err == nil {
		t.Error("bad skip pattern accepted")
	}
}

func TestDriverOptionsExactNames(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
[filter]
skip = ["^tmp_"]
names = ["StrLen", "Helper::run"]
`)
	c, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}

	opts, err := c.DriverOptions(&bytes.Buffer{})
	if err != nil {
		t.Fatal(err)
	}
	for name, want := range map[string]bool{
		"strlen":      true,
		"helper::RUN": true,
		"tmp_cache":   true,
		"strlen2":     false,
		"main":        false,
	} {
		if got := opts.Skip(name); got != want {
			t.Errorf("Skip(%q) = %v, want %v", name, got, want)
		}
	}

	c = Default()
	c.Filter.Names = []string{"only"}
	opts, err = c.DriverOptions(&bytes.Buffer{})
	if err != nil {
		t.Fatal(err)
	}
	if opts.Skip == nil || !opts.Skip("ONLY") || opts.Skip("other") {
		t.Error("names without patterns not applied")
	}

	opts, err = Default().DriverOptions(&bytes.Buffer{})
	if err != nil {
		t.Fatal(err)
	}
	if opts.Skip != nil {
		t.Error("default config installs a skip predicate")
	}
}
