package server

import (
	"github.com/chazu/opdump/pkg/bytecode"
	"github.com/chazu/opdump/pkg/disasm"
	"github.com/chazu/opdump/store"
)

// Procedure paths of the disassembly service.
const (
	ServiceName   = "opdump.v1.DisassemblyService"
	DumpProcedure = "/" + ServiceName + "/Dump"
	ListProcedure = "/" + ServiceName + "/List"
)

// DumpRequest selects what to disassemble and how. Exactly one of Unit, ID
// and Name should be set; Unit wins, then ID.
type DumpRequest struct {
	Unit *bytecode.Unit `cbor:"1,keyasint,omitempty"`
	ID   string         `cbor:"2,keyasint,omitempty"`
	Name string         `cbor:"3,keyasint,omitempty"`

	// Verbosity overrides the server default when set.
	Verbosity       *int   `cbor:"4,keyasint,omitempty"`
	Tabular         bool   `cbor:"5,keyasint,omitempty"`
	ColumnSeparator string `cbor:"6,keyasint,omitempty"`
}

// DumpResponse carries the rendered text and one report per dumped unit.
type DumpResponse struct {
	Text    string          `cbor:"1,keyasint"`
	Reports []disasm.Report `cbor:"2,keyasint,omitempty"`
}

// ListRequest optionally restricts the listing to one display name.
type ListRequest struct {
	Name string `cbor:"1,keyasint,omitempty"`
}

// ListResponse lists stored units in insertion order.
type ListResponse struct {
	Entries []store.Entry `cbor:"1,keyasint,omitempty"`
}
