// Package revwalk traverses the commit graph from a set of starting
// points, following parent links. The graph is a DAG by construction
// (hashes are content-derived, so a commit cannot reference itself as an
// ancestor); the walker therefore only deduplicates diamond-shaped
// ancestries instead of detecting cycles.
package revwalk

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/keelvc/keel/pkg/object"
)

// ErrMissingParent indicates that a commit references a parent hash absent
// from the store. This is surfaced rather than skipped because it means
// the store is corrupt or incomplete.
var ErrMissingParent = errors.New("revwalk: missing parent commit")

// Order selects the yield order of a walk.
type Order int

const (
	// Topological yields every commit before any of its parents; ties are
	// broken by committer time, newest first.
	Topological Order = iota
	// DateDescending yields commits by committer time, newest first, with
	// ties broken by hash for determinism.
	DateDescending
	// Reverse yields the exact reverse of DateDescending: oldest first.
	Reverse
)

// Options configure a walk.
type Options struct {
	Order Order
	// Boundary is an optional exclusive stop set: boundary commits and
	// everything beyond them are never yielded.
	Boundary []object.Hash
}

// Item is one yielded commit.
type Item struct {
	Hash   object.Hash
	Commit *object.Commit
}

// Walker enumerates commits lazily. It owns all iteration state; distinct
// walkers never share a frontier, so concurrent walks over one store are
// safe. A walker is not restartable mid-iteration; create a fresh one to
// walk again.
type Walker struct {
	store    *object.Store
	starts   []object.Hash
	order    Order
	boundary map[object.Hash]struct{}

	started bool

	// Date-order state: lazily expanded frontier.
	frontier *commitHeap
	seen     map[object.Hash]struct{}

	// Topological / reverse state: precomputed yield sequence.
	queued []*Item
	pos    int
}

// New creates a walker from the given start set. The walk begins on the
// first call to Next.
func New(store *object.Store, starts []object.Hash, opts Options) *Walker {
	boundary := make(map[object.Hash]struct{}, len(opts.Boundary))
	for _, h := range opts.Boundary {
		if !h.IsZero() {
			boundary[h] = struct{}{}
		}
	}
	return &Walker{
		store:    store,
		starts:   starts,
		order:    opts.Order,
		boundary: boundary,
	}
}

// Next returns the next commit in the selected order, or io.EOF when the
// walk is exhausted. The context is checked at every commit boundary; a
// cancelled walk returns the context error and releases its state.
func (w *Walker) Next(ctx context.Context) (*Item, error) {
	if err := ctx.Err(); err != nil {
		w.release()
		return nil, fmt.Errorf("revwalk: %w", err)
	}

	if !w.started {
		w.started = true
		if err := w.prepare(ctx); err != nil {
			w.release()
			return nil, err
		}
	}

	if w.order == DateDescending {
		return w.nextByDate(ctx)
	}

	if w.pos >= len(w.queued) {
		return nil, io.EOF
	}
	item := w.queued[w.pos]
	w.pos++
	return item, nil
}

func (w *Walker) release() {
	w.frontier = nil
	w.seen = nil
	w.queued = nil
}

func (w *Walker) prepare(ctx context.Context) error {
	switch w.order {
	case DateDescending:
		w.frontier = &commitHeap{}
		w.seen = make(map[object.Hash]struct{})
		for _, h := range w.starts {
			if err := w.pushDate(h, false); err != nil {
				return err
			}
		}
		return nil
	case Topological:
		items, err := w.topoOrder(ctx)
		if err != nil {
			return err
		}
		w.queued = items
		return nil
	case Reverse:
		items, err := w.dateOrderAll(ctx)
		if err != nil {
			return err
		}
		for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
			items[i], items[j] = items[j], items[i]
		}
		w.queued = items
		return nil
	default:
		return fmt.Errorf("revwalk: unknown order %d", w.order)
	}
}

// ---------------------------------------------------------------------------
// Date order (lazy)
// ---------------------------------------------------------------------------

func (w *Walker) pushDate(h object.Hash, parent bool) error {
	if h.IsZero() {
		return nil
	}
	if _, excluded := w.boundary[h]; excluded {
		return nil
	}
	if _, ok := w.seen[h]; ok {
		return nil
	}
	commit, err := w.store.ReadCommit(h)
	if err != nil {
		if parent && errors.Is(err, object.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrMissingParent, h)
		}
		return fmt.Errorf("revwalk: read commit %s: %w", h, err)
	}
	w.seen[h] = struct{}{}
	heap.Push(w.frontier, &Item{Hash: h, Commit: commit})
	return nil
}

func (w *Walker) nextByDate(ctx context.Context) (*Item, error) {
	if w.frontier == nil || w.frontier.Len() == 0 {
		return nil, io.EOF
	}
	if err := ctx.Err(); err != nil {
		w.release()
		return nil, fmt.Errorf("revwalk: %w", err)
	}
	item := heap.Pop(w.frontier).(*Item)
	for _, p := range item.Commit.Parents {
		if err := w.pushDate(p, true); err != nil {
			w.release()
			return nil, err
		}
	}
	return item, nil
}

func (w *Walker) dateOrderAll(ctx context.Context) ([]*Item, error) {
	w.frontier = &commitHeap{}
	w.seen = make(map[object.Hash]struct{})
	for _, h := range w.starts {
		if err := w.pushDate(h, false); err != nil {
			return nil, err
		}
	}
	var all []*Item
	for w.frontier.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("revwalk: %w", err)
		}
		item := heap.Pop(w.frontier).(*Item)
		for _, p := range item.Commit.Parents {
			if err := w.pushDate(p, true); err != nil {
				return nil, err
			}
		}
		all = append(all, item)
	}
	w.frontier = nil
	w.seen = nil
	return all, nil
}

// ---------------------------------------------------------------------------
// Topological order
// ---------------------------------------------------------------------------

// topoOrder loads the reachable subgraph and runs Kahn's algorithm over
// child counts: a commit becomes ready only once every child of it inside
// the walk set has been yielded. Ready commits are popped newest first.
func (w *Walker) topoOrder(ctx context.Context) ([]*Item, error) {
	commits := make(map[object.Hash]*object.Commit)
	childCount := make(map[object.Hash]int)

	stack := make([]object.Hash, 0, len(w.starts))
	for _, h := range w.starts {
		if h.IsZero() {
			continue
		}
		if _, excluded := w.boundary[h]; excluded {
			continue
		}
		stack = append(stack, h)
	}

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("revwalk: %w", err)
		}
		h := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := commits[h]; ok {
			continue
		}
		isStart := false
		for _, s := range w.starts {
			if s == h {
				isStart = true
				break
			}
		}
		commit, err := w.store.ReadCommit(h)
		if err != nil {
			if !isStart && errors.Is(err, object.ErrNotFound) {
				return nil, fmt.Errorf("%w: %s", ErrMissingParent, h)
			}
			return nil, fmt.Errorf("revwalk: read commit %s: %w", h, err)
		}
		commits[h] = commit
		for _, p := range commit.Parents {
			if p.IsZero() {
				continue
			}
			if _, excluded := w.boundary[p]; excluded {
				continue
			}
			childCount[p]++
			stack = append(stack, p)
		}
	}

	ready := &commitHeap{}
	for h, c := range commits {
		if childCount[h] == 0 {
			heap.Push(ready, &Item{Hash: h, Commit: c})
		}
	}

	out := make([]*Item, 0, len(commits))
	for ready.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("revwalk: %w", err)
		}
		item := heap.Pop(ready).(*Item)
		out = append(out, item)
		for _, p := range item.Commit.Parents {
			commit, ok := commits[p]
			if !ok {
				continue
			}
			childCount[p]--
			if childCount[p] == 0 {
				heap.Push(ready, &Item{Hash: p, Commit: commit})
			}
		}
	}

	if len(out) != len(commits) {
		return nil, fmt.Errorf("revwalk: graph order incomplete: yielded %d of %d", len(out), len(commits))
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Heap
// ---------------------------------------------------------------------------

// commitHeap orders items by committer time, newest first, breaking ties
// by hash so iteration order is deterministic.
type commitHeap []*Item

func (h commitHeap) Len() int { return len(h) }

func (h commitHeap) Less(i, j int) bool {
	if h[i].Commit.CommitterTime != h[j].Commit.CommitterTime {
		return h[i].Commit.CommitterTime > h[j].Commit.CommitterTime
	}
	return h[i].Hash < h[j].Hash
}

func (h commitHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *commitHeap) Push(x any) { *h = append(*h, x.(*Item)) }

func (h *commitHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}
