package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"connectrpc.com/connect"

	"github.com/chazu/opdump/pkg/bytecode"
	"github.com/chazu/opdump/pkg/disasm"
	"github.com/chazu/opdump/pkg/driver"
	"github.com/chazu/opdump/store"
)

// DumpService implements the DisassemblyService handlers.
type DumpService struct {
	store     *store.Store
	verbosity int
	workers   int
}

// NewDumpService creates a DumpService. st may be nil, in which case only
// inline units can be dumped.
func NewDumpService(st *store.Store, verbosity, workers int) *DumpService {
	return &DumpService{store: st, verbosity: verbosity, workers: workers}
}

// Dump renders an inline unit, a stored unit by ID, or every stored unit
// with a given display name.
func (s *DumpService) Dump(
	ctx context.Context,
	req *connect.Request[DumpRequest],
) (*connect.Response[DumpResponse], error) {
	msg := req.Msg
	if msg.Unit == nil && msg.ID == "" && msg.Name == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("one of unit, id or name is required"))
	}
	if msg.Verbosity != nil && *msg.Verbosity < 0 {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("verbosity must not be negative"))
	}

	units, err := s.resolve(ctx, msg)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	policy := disasm.Policy{
		Verbosity:       s.verbosity,
		Tabular:         msg.Tabular,
		ColumnSeparator: msg.ColumnSeparator,
		Out:             &buf,
	}
	if msg.Verbosity != nil {
		policy.Verbosity = *msg.Verbosity
	}
	sum, err := driver.DumpUnits(ctx, units, driver.Options{
		Policy:          policy,
		IncludeInternal: true,
		Workers:         s.workers,
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	log.Infof("dumped %d units (%d instructions, %d invalid references)",
		sum.Units, sum.Instructions, sum.InvalidRefs)

	return connect.NewResponse(&DumpResponse{
		Text:    buf.String(),
		Reports: sum.Reports,
	}), nil
}

func (s *DumpService) resolve(ctx context.Context, msg *DumpRequest) ([]*bytecode.Unit, error) {
	if msg.Unit != nil {
		return []*bytecode.Unit{msg.Unit}, nil
	}
	if s.store == nil {
		return nil, connect.NewError(connect.CodeFailedPrecondition, fmt.Errorf("server has no unit store"))
	}

	if msg.ID != "" {
		u, _, err := s.store.Get(ctx, msg.ID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("unit %q not found", msg.ID))
		}
		if err != nil {
			return nil, connect.NewError(connect.CodeInternal, err)
		}
		return []*bytecode.Unit{u}, nil
	}

	entries, err := s.store.FindByName(ctx, msg.Name)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	if len(entries) == 0 {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("no unit named %q", msg.Name))
	}
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	units, err := s.store.Units(ctx, ids...)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return units, nil
}

// List returns the stored entries, optionally filtered by display name.
func (s *DumpService) List(
	ctx context.Context,
	req *connect.Request[ListRequest],
) (*connect.Response[ListResponse], error) {
	if s.store == nil {
		return nil, connect.NewError(connect.CodeFailedPrecondition, fmt.Errorf("server has no unit store"))
	}
	var entries []store.Entry
	var err error
	if req.Msg.Name != "" {
		entries, err = s.store.FindByName(ctx, req.Msg.Name)
	} else {
		entries, err = s.store.List(ctx)
	}
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(&ListResponse{Entries: entries}), nil
}
