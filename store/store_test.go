package store

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/opdump/pkg/bytecode"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "units.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func addUnit(name string, n int64) *bytecode.Unit {
	b := bytecode.NewBuilder(name, bytecode.KindFunction).File("/src/math.x")
	x := b.Var("x")
	b.Emit(bytecode.OpAssign, x, b.Const(bytecode.Int(n)), bytecode.Operand{})
	tmp := b.Temp()
	b.Emit(bytecode.OpAdd, tmp, x, b.Const(bytecode.Int(1)))
	b.Emit(bytecode.OpReturn, bytecode.Operand{}, tmp, bytecode.Operand{})
	return b.Unit()
}

func TestPutAndGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	e, err := s.Put(ctx, addUnit("add", 10))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if !strings.HasPrefix(e.ID, "unit_") {
		t.Errorf("ID = %q, want unit_ prefix", e.ID)
	}
	if len(e.Hash) != 64 {
		t.Errorf("Hash = %q, want 64 hex digits", e.Hash)
	}
	if e.Name != "add" || e.Kind != "function" || e.Instructions != 3 {
		t.Errorf("entry = %+v", e)
	}

	u, got, err := s.Get(ctx, e.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.ID != e.ID || got.Hash != e.Hash {
		t.Errorf("Get entry = %+v, want %+v", got, e)
	}
	if u.Name != "add" || len(u.Instructions) != 3 || u.Filename != "/src/math.x" {
		t.Errorf("decoded unit = %+v", u)
	}
	if name, ok := u.VarName(0); !ok || name != "x" {
		t.Errorf("VarName(0) = %q, %v", name, ok)
	}
}

func TestPutDeduplicates(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first, err := s.Put(ctx, addUnit("add", 10))
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.Put(ctx, addUnit("add", 10))
	if err != nil {
		t.Fatal(err)
	}
	if first.ID != second.ID {
		t.Errorf("identical units stored twice: %s, %s", first.ID, second.ID)
	}

	third, err := s.Put(ctx, addUnit("add", 11))
	if err != nil {
		t.Fatal(err)
	}
	if third.ID == first.ID || third.Hash == first.Hash {
		t.Error("different units share an entry")
	}

	entries, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Errorf("List returned %d entries, want 2", len(entries))
	}
}

func TestGetNotFound(t *testing.T) {
	s := openTestStore(t)
	_, _, err := s.Get(context.Background(), "unit_missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestPutNil(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.Put(context.Background(), nil); err == nil {
		t.Error("expected error for nil unit")
	}
	if _, err := s.PutProgram(context.Background(), nil); err == nil {
		t.Error("expected error for nil program")
	}
}

func TestPutProgramOrder(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	main := addUnit("", 1)
	main.Kind = bytecode.KindScript
	method := addUnit("area", 3)
	method.Kind = bytecode.KindMethod
	method.Scope = "Circle"
	prog := &bytecode.Program{
		Filename:  "/src/math.x",
		Main:      main,
		Functions: []*bytecode.Unit{addUnit("add", 2)},
		Classes: []*bytecode.Class{
			{Name: "Circle", Methods: []*bytecode.Unit{method}},
		},
	}

	entries, err := s.PutProgram(ctx, prog)
	if err != nil {
		t.Fatalf("PutProgram failed: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name)
	}
	want := "(main),add,Circle::area"
	if got := strings.Join(names, ","); got != want {
		t.Errorf("entries = %s, want %s", got, want)
	}

	units, err := s.Units(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(units) != 3 || units[2].DisplayName() != "Circle::area" {
		t.Errorf("Units returned %d units", len(units))
	}

	picked, err := s.Units(ctx, entries[1].ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(picked) != 1 || picked[0].Name != "add" {
		t.Errorf("Units(id) = %v", picked)
	}
}

func TestPutProgramNilEntries(t *testing.T) {
	s := openTestStore(t)
	prog := &bytecode.Program{
		Main:      addUnit("", 1),
		Functions: []*bytecode.Unit{nil, addUnit("add", 2)},
		Classes:   []*bytecode.Class{nil, {Name: "Empty", Methods: []*bytecode.Unit{nil}}},
	}
	prog.Main.Kind = bytecode.KindScript

	entries, err := s.PutProgram(context.Background(), prog)
	if err != nil {
		t.Fatalf("PutProgram failed: %v", err)
	}
	if len(entries) != 2 || entries[1].Name != "add" {
		t.Errorf("entries = %+v", entries)
	}
}

func TestFindByName(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, n := range []int64{1, 2} {
		if _, err := s.Put(ctx, addUnit("add", n)); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := s.Put(ctx, addUnit("sub", 1)); err != nil {
		t.Fatal(err)
	}

	found, err := s.FindByName(ctx, "add")
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 2 {
		t.Fatalf("FindByName returned %d entries, want 2", len(found))
	}
	if !found[0].Created.Before(found[1].Created) && !found[0].Created.Equal(found[1].Created) {
		t.Error("entries not in insertion order")
	}

	none, err := s.FindByName(ctx, "mul")
	if err != nil {
		t.Fatal(err)
	}
	if len(none) != 0 {
		t.Errorf("FindByName(mul) = %v", none)
	}
}

func TestReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "units.db")
	ctx := context.Background()

	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	e, err := s.Put(ctx, addUnit("add", 10))
	if err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if s.Path() != path {
		t.Errorf("Path() = %q", s.Path())
	}
	if _, _, err := s.Get(ctx, e.ID); err != nil {
		t.Errorf("Get after reopen: %v", err)
	}
}
