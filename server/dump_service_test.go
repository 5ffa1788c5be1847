package server

import (
	"strings"
	"testing"

	"connectrpc.com/connect"
)

// ---------------------------------------------------------------------------
// Dump: direct handler calls
// ---------------------------------------------------------------------------

func TestDump_InlineUnit(t *testing.T) {
	svc := NewDumpService(nil, 1, 1)

	resp, err := svc.Dump(bg(), connectReq(&DumpRequest{Unit: addUnit("add", 10)}))
	if err != nil {
		t.Fatalf("Dump returned error: %v", err)
	}
	for _, want := range []string{"function name:  add", "1  ADD", "end of function add"} {
		if !strings.Contains(resp.Msg.Text, want) {
			t.Errorf("output missing %q:\n%s", want, resp.Msg.Text)
		}
	}
	if len(resp.Msg.Reports) != 1 || resp.Msg.Reports[0].Instructions != 3 {
		t.Errorf("Reports = %+v", resp.Msg.Reports)
	}
}

func TestDump_VerbosityOverride(t *testing.T) {
	svc := NewDumpService(nil, 1, 1)

	resp, err := svc.Dump(bg(), connectReq(&DumpRequest{
		Unit:      addUnit("add", 10),
		Verbosity: intPtr(0),
	}))
	if err != nil {
		t.Fatal(err)
	}
	if resp.Msg.Text != "function add: 3 ops\n" {
		t.Errorf("Text = %q", resp.Msg.Text)
	}
}

func TestDump_Tabular(t *testing.T) {
	svc := NewDumpService(nil, 1, 1)

	resp, err := svc.Dump(bg(), connectReq(&DumpRequest{
		Unit:            addUnit("add", 10),
		Tabular:         true,
		ColumnSeparator: "|",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(resp.Msg.Text, "1|ADD|~0|$x|1|\n") {
		t.Errorf("tabular row missing:\n%s", resp.Msg.Text)
	}
}

func TestDump_EmptyRequest(t *testing.T) {
	svc := NewDumpService(nil, 1, 1)

	_, err := svc.Dump(bg(), connectReq(&DumpRequest{}))
	if connect.CodeOf(err) != connect.CodeInvalidArgument {
		t.Errorf("code = %v, want InvalidArgument", connect.CodeOf(err))
	}
}

func TestDump_NegativeVerbosity(t *testing.T) {
	svc := NewDumpService(nil, 1, 1)

	_, err := svc.Dump(bg(), connectReq(&DumpRequest{Unit: addUnit("add", 1), Verbosity: intPtr(-1)}))
	if connect.CodeOf(err) != connect.CodeInvalidArgument {
		t.Errorf("code = %v, want InvalidArgument", connect.CodeOf(err))
	}
}

func TestDump_NoStore(t *testing.T) {
	svc := NewDumpService(nil, 1, 1)

	_, err := svc.Dump(bg(), connectReq(&DumpRequest{ID: "unit_x"}))
	if connect.CodeOf(err) != connect.CodeFailedPrecondition {
		t.Errorf("code = %v, want FailedPrecondition", connect.CodeOf(err))
	}
	_, err = svc.List(bg(), connectReq(&ListRequest{}))
	if connect.CodeOf(err) != connect.CodeFailedPrecondition {
		t.Errorf("List code = %v, want FailedPrecondition", connect.CodeOf(err))
	}
}

// ---------------------------------------------------------------------------
// Dump: stored units
// ---------------------------------------------------------------------------

func TestDump_ByID(t *testing.T) {
	st, add := newTestStore(t)
	svc := NewDumpService(st, 1, 1)

	resp, err := svc.Dump(bg(), connectReq(&DumpRequest{ID: add.ID}))
	if err != nil {
		t.Fatalf("Dump returned error: %v", err)
	}
	if !strings.Contains(resp.Msg.Text, "end of function add") {
		t.Errorf("unexpected output:\n%s", resp.Msg.Text)
	}
}

func TestDump_ByName(t *testing.T) {
	st, _ := newTestStore(t)
	if _, err := st.Put(bg(), addUnit("sub", 20)); err != nil {
		t.Fatal(err)
	}
	svc := NewDumpService(st, 0, 2)

	resp, err := svc.Dump(bg(), connectReq(&DumpRequest{Name: "sub"}))
	if err != nil {
		t.Fatal(err)
	}
	want := "function sub: 3 ops\nfunction sub: 3 ops\n"
	if resp.Msg.Text != want {
		t.Errorf("Text = %q, want %q", resp.Msg.Text, want)
	}
}

func TestDump_NotFound(t *testing.T) {
	st, _ := newTestStore(t)
	svc := NewDumpService(st, 1, 1)

	_, err := svc.Dump(bg(), connectReq(&DumpRequest{ID: "unit_missing"}))
	if connect.CodeOf(err) != connect.CodeNotFound {
		t.Errorf("ID: code = %v, want NotFound", connect.CodeOf(err))
	}
	_, err = svc.Dump(bg(), connectReq(&DumpRequest{Name: "mul"}))
	if connect.CodeOf(err) != connect.CodeNotFound {
		t.Errorf("Name: code = %v, want NotFound", connect.CodeOf(err))
	}
}

func TestList(t *testing.T) {
	st, add := newTestStore(t)
	svc := NewDumpService(st, 1, 1)

	resp, err := svc.List(bg(), connectReq(&ListRequest{}))
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Msg.Entries) != 2 || resp.Msg.Entries[0].ID != add.ID {
		t.Errorf("Entries = %+v", resp.Msg.Entries)
	}

	resp, err = svc.List(bg(), connectReq(&ListRequest{Name: "sub"}))
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Msg.Entries) != 1 || resp.Msg.Entries[0].Name != "sub" {
		t.Errorf("filtered Entries = %+v", resp.Msg.Entries)
	}
}
