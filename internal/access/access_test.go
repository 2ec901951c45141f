package access

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type fakeDocs struct {
	text string
	err  error
}

func (f fakeDocs) ExportText(ctx context.Context, id string) (string, error) { return f.text, f.err }

type fakeSheet struct {
	rows   [][]string
	writes map[string]string
}

func (f *fakeSheet) ReadRows(ctx context.Context, id, rng string) ([][]string, error) {
	return f.rows, nil
}

func (f *fakeSheet) WriteCell(ctx context.Context, id, cell, value string) error {
	if f.writes == nil {
		f.writes = map[string]string{}
	}
	f.writes[cell] = value
	return nil
}

func TestIsAuthorized(t *testing.T) {
	t.Parallel()

	g := NewGate([]string{"@Alice", " @bob "})
	cases := []struct {
		handle string
		want   bool
	}{
		{"Alice", true},
		{"alice", false}, // case-sensitive
		{"bob", true},
		{"@bob", false}, // raw handles only
		{"", false},
		{"carol", false},
	}
	for _, tc := range cases {
		if got := g.IsAuthorized(tc.handle); got != tc.want {
			t.Fatalf("IsAuthorized(%q)=%v want %v", tc.handle, got, tc.want)
		}
	}
}

func TestLoadFailsClosed(t *testing.T) {
	t.Parallel()

	boom := errors.New("drive down")
	g, err := Load(context.Background(), DocSource{Reader: fakeDocs{err: boom}, DocID: "d"})
	if !errors.Is(err, boom) || !errors.Is(err, ErrClosed) {
		t.Fatalf("err=%v", err)
	}
	if g == nil || g.IsAuthorized("alice") {
		t.Fatalf("closed gate must reject")
	}
	var nilGate *Gate
	if nilGate.IsAuthorized("alice") {
		t.Fatalf("nil gate must reject")
	}
}

func TestDocSourceParsesLines(t *testing.T) {
	t.Parallel()

	g, err := Load(context.Background(), DocSource{Reader: fakeDocs{text: "\ufeff@alice\r\n\n  @bob\n"}, DocID: "d"})
	if err != nil {
		t.Fatal(err)
	}
	if g.Len() != 2 || !g.IsAuthorized("alice") || !g.IsAuthorized("bob") {
		t.Fatalf("len=%d", g.Len())
	}
}

func TestFileSource(t *testing.T) {
	t.Parallel()

	p := filepath.Join(t.TempDir(), "users.txt")
	if err := os.WriteFile(p, []byte("@x\n@y\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	g, err := Load(context.Background(), FileSource{Path: p})
	if err != nil || g.Len() != 2 {
		t.Fatalf("len=%d err=%v", g.Len(), err)
	}
	if _, err := Load(context.Background(), FileSource{Path: p + ".missing"}); err == nil {
		t.Fatalf("missing file should fail")
	}
}

func TestSheetSourceSkipsHeader(t *testing.T) {
	t.Parallel()

	sh := &fakeSheet{rows: [][]string{{"handle"}, {"@a"}, {}, {" @b", "123"}}}
	handles, err := SheetSource{Reader: sh, SheetID: "s", Range: "A:B", HeaderRow: true}.Handles(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(handles) != 2 || handles[0] != "@a" || handles[1] != "@b" {
		t.Fatalf("handles=%v", handles)
	}
}

func TestRegistryWritesOnce(t *testing.T) {
	t.Parallel()

	sh := &fakeSheet{rows: [][]string{{"handle"}, {"@a"}, {"@b"}}}
	r := &Registry{Sheet: sh, SheetID: "s", Range: "A:A", Column: "B"}
	ctx := context.Background()

	ok, err := r.Register(ctx, "b", 77)
	if err != nil || !ok {
		t.Fatalf("register: %v %v", ok, err)
	}
	if sh.writes["B3"] != "77" {
		t.Fatalf("writes=%v", sh.writes)
	}
	ok, _ = r.Register(ctx, "b", 77)
	if ok {
		t.Fatalf("second register should be skipped")
	}
	ok, _ = r.Register(ctx, "zed", 5)
	if ok {
		t.Fatalf("unknown handle should not write")
	}
}

func TestOwners(t *testing.T) {
	t.Parallel()

	o := NewOwners([]int64{1, 2})
	if !o.IsOwner(2) || o.IsOwner(3) {
		t.Fatalf("owners=%v", o)
	}
}
