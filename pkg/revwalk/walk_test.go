package revwalk

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/keelvc/keel/pkg/object"
)

type graph struct {
	store *object.Store
	tree  object.Hash
}

func newGraph(t *testing.T) *graph {
	t.Helper()
	s := object.NewStore(object.NewMemBackend())
	blob, err := s.WriteBlob(&object.Blob{Data: []byte("content")})
	if err != nil {
		t.Fatalf("WriteBlob: %v", err)
	}
	tree, err := s.WriteTree(&object.Tree{Entries: []object.TreeEntry{
		{Name: "f", Mode: object.ModeFile, Hash: blob},
	}})
	if err != nil {
		t.Fatalf("WriteTree: %v", err)
	}
	return &graph{store: s, tree: tree}
}

func (g *graph) commit(t *testing.T, msg string, when int64, parents ...object.Hash) object.Hash {
	t.Helper()
	h, err := g.store.WriteCommit(&object.Commit{
		TreeHash:      g.tree,
		Parents:       parents,
		Author:        "T <t@e>",
		AuthorTime:    when,
		Committer:     "T <t@e>",
		CommitterTime: when,
		Message:       msg,
	})
	if err != nil {
		t.Fatalf("WriteCommit %s: %v", msg, err)
	}
	return h
}

func collect(t *testing.T, w *Walker) []object.Hash {
	t.Helper()
	var out []object.Hash
	for {
		item, err := w.Next(context.Background())
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		out = append(out, item.Hash)
	}
}

func sameOrder(a, b []object.Hash) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Diamond: d merges b and c, both children of a.
func diamond(t *testing.T) (*graph, [4]object.Hash) {
	g := newGraph(t)
	a := g.commit(t, "a", 100)
	b := g.commit(t, "b", 200, a)
	c := g.commit(t, "c", 300, a)
	d := g.commit(t, "d", 400, b, c)
	return g, [4]object.Hash{a, b, c, d}
}

func TestDateDescending(t *testing.T) {
	g, n := diamond(t)
	w := New(g.store, []object.Hash{n[3]}, Options{Order: DateDescending})
	got := collect(t, w)
	want := []object.Hash{n[3], n[2], n[1], n[0]}
	if !sameOrder(got, want) {
		t.Errorf("order: got %v, want %v", got, want)
	}
}

func TestDateDescendingDedupe(t *testing.T) {
	g, n := diamond(t)
	w := New(g.store, []object.Hash{n[3]}, Options{Order: DateDescending})
	got := collect(t, w)
	seen := make(map[object.Hash]int)
	for _, h := range got {
		seen[h]++
	}
	if seen[n[0]] != 1 {
		t.Errorf("diamond base yielded %d times, want 1", seen[n[0]])
	}
	if len(got) != 4 {
		t.Errorf("yielded %d commits, want 4", len(got))
	}
}

func TestDateDescendingTieBreak(t *testing.T) {
	g := newGraph(t)
	a := g.commit(t, "first", 100)
	b := g.commit(t, "second", 100)

	w := New(g.store, []object.Hash{a, b}, Options{Order: DateDescending})
	got := collect(t, w)
	if len(got) != 2 {
		t.Fatalf("yielded %d, want 2", len(got))
	}
	// Equal times break by hash ascending.
	if !(got[0] < got[1]) {
		t.Errorf("tie-break order: got %v then %v", got[0].Short(), got[1].Short())
	}
}

func TestTopologicalChildBeforeParent(t *testing.T) {
	g, n := diamond(t)
	w := New(g.store, []object.Hash{n[3]}, Options{Order: Topological})
	got := collect(t, w)
	if len(got) != 4 {
		t.Fatalf("yielded %d, want 4", len(got))
	}

	pos := make(map[object.Hash]int)
	for i, h := range got {
		pos[h] = i
	}
	edges := [][2]object.Hash{
		{n[3], n[1]}, // d before b
		{n[3], n[2]}, // d before c
		{n[1], n[0]}, // b before a
		{n[2], n[0]}, // c before a
	}
	for _, e := range edges {
		if pos[e[0]] >= pos[e[1]] {
			t.Errorf("child %s yielded after parent %s", e[0].Short(), e[1].Short())
		}
	}
}

func TestTopologicalHoldsMergeBase(t *testing.T) {
	// Even though the merge base is newer than one branch tip, it must not
	// be yielded until both children are out.
	g := newGraph(t)
	a := g.commit(t, "base", 500)
	b := g.commit(t, "old branch", 100, a)
	c := g.commit(t, "new branch", 600, a)
	d := g.commit(t, "merge", 700, b, c)

	w := New(g.store, []object.Hash{d}, Options{Order: Topological})
	got := collect(t, w)
	pos := make(map[object.Hash]int)
	for i, h := range got {
		pos[h] = i
	}
	if pos[a] < pos[b] || pos[a] < pos[c] {
		t.Errorf("base yielded before a child: %v", got)
	}
}

func TestReverse(t *testing.T) {
	g, n := diamond(t)
	w := New(g.store, []object.Hash{n[3]}, Options{Order: Reverse})
	got := collect(t, w)
	want := []object.Hash{n[0], n[1], n[2], n[3]}
	if !sameOrder(got, want) {
		t.Errorf("order: got %v, want %v", got, want)
	}
}

func TestBoundaryExcludes(t *testing.T) {
	g, n := diamond(t)
	for _, order := range []Order{DateDescending, Topological, Reverse} {
		w := New(g.store, []object.Hash{n[3]}, Options{Order: order, Boundary: []object.Hash{n[0]}})
		got := collect(t, w)
		if len(got) != 3 {
			t.Errorf("order %d: yielded %d, want 3", order, len(got))
		}
		for _, h := range got {
			if h == n[0] {
				t.Errorf("order %d: boundary commit yielded", order)
			}
		}
	}
}

func TestBoundaryOnStart(t *testing.T) {
	g, n := diamond(t)
	w := New(g.store, []object.Hash{n[3]}, Options{
		Order:    DateDescending,
		Boundary: []object.Hash{n[3]},
	})
	got := collect(t, w)
	if len(got) != 0 {
		t.Errorf("start inside boundary: yielded %v", got)
	}
}

func TestMissingParent(t *testing.T) {
	g := newGraph(t)
	ghost := object.HashBytes([]byte("never written"))
	child := g.commit(t, "child", 100, ghost)

	w := New(g.store, []object.Hash{child}, Options{Order: DateDescending})
	item, err := w.Next(context.Background())
	if err != nil {
		t.Fatalf("first Next: %v", err)
	}
	if item.Hash != child {
		t.Errorf("first item: got %s", item.Hash.Short())
	}
	// The dangling parent is reported when it would be loaded.
	for {
		_, err = w.Next(context.Background())
		if err != nil {
			break
		}
	}
	if !errors.Is(err, ErrMissingParent) {
		t.Errorf("got %v, want ErrMissingParent", err)
	}

	w = New(g.store, []object.Hash{child}, Options{Order: Topological})
	if _, err := w.Next(context.Background()); !errors.Is(err, ErrMissingParent) {
		t.Errorf("topological: got %v, want ErrMissingParent", err)
	}
}

func TestMissingStart(t *testing.T) {
	g := newGraph(t)
	ghost := object.HashBytes([]byte("no such commit"))
	w := New(g.store, []object.Hash{ghost}, Options{Order: DateDescending})
	if _, err := w.Next(context.Background()); err == nil {
		t.Error("missing start commit should fail")
	}
}

func TestWalkerCancellation(t *testing.T) {
	g, n := diamond(t)
	w := New(g.store, []object.Hash{n[3]}, Options{Order: DateDescending})

	ctx, cancel := context.WithCancel(context.Background())
	if _, err := w.Next(ctx); err != nil {
		t.Fatalf("Next: %v", err)
	}
	cancel()
	if _, err := w.Next(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
}

func TestWalkerExhaustedStaysEOF(t *testing.T) {
	g := newGraph(t)
	a := g.commit(t, "only", 1)
	w := New(g.store, []object.Hash{a}, Options{Order: DateDescending})
	collect(t, w)
	for i := 0; i < 3; i++ {
		if _, err := w.Next(context.Background()); !errors.Is(err, io.EOF) {
			t.Fatalf("Next after exhaustion: got %v, want io.EOF", err)
		}
	}
}

func TestMultipleStarts(t *testing.T) {
	g := newGraph(t)
	a := g.commit(t, "a", 100)
	b := g.commit(t, "b", 200, a)
	c := g.commit(t, "c", 300, a)

	w := New(g.store, []object.Hash{b, c}, Options{Order: DateDescending})
	got := collect(t, w)
	want := []object.Hash{c, b, a}
	if !sameOrder(got, want) {
		t.Errorf("order: got %v, want %v", got, want)
	}
}
