package server

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"connectrpc.com/connect"

	"github.com/chazu/opdump/pkg/bytecode"
	"github.com/chazu/opdump/store"
)

func bg() context.Context { return context.Background() }

func connectReq[T any](msg *T) *connect.Request[T] {
	return connect.NewRequest(msg)
}

func intPtr(n int) *int { return &n }

// addUnit builds the three-instruction "add" function used across tests.
func addUnit(name string, n int64) *bytecode.Unit {
	b := bytecode.NewBuilder(name, bytecode.KindFunction)
	x := b.Var("x")
	b.Emit(bytecode.OpAssign, x, b.Const(bytecode.Int(n)), bytecode.Operand{})
	tmp := b.Temp()
	b.Emit(bytecode.OpAdd, tmp, x, b.Const(bytecode.Int(1)))
	b.Emit(bytecode.OpReturn, bytecode.Operand{}, tmp, bytecode.Operand{})
	return b.Unit()
}

// newTestStore opens a store in a temp dir holding add and sub.
func newTestStore(t *testing.T) (*store.Store, store.Entry) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "units.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	add, err := st.Put(bg(), addUnit("add", 10))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := st.Put(bg(), addUnit("sub", 10)); err != nil {
		t.Fatal(err)
	}
	return st, add
}

// newTestClient serves a Server over httptest and returns a Connect client.
func newTestClient(t *testing.T, opts ...ServerOption) *Client {
	t.Helper()
	srv := httptest.NewServer(New(opts...).Handler())
	t.Cleanup(srv.Close)
	return NewClient(srv.URL)
}
