package object

import (
	"context"
	"fmt"
	"hash/crc32"
	"io"
	"runtime"
	"sort"
	"sync"
)

// BuilderState tracks the pack builder lifecycle. Objects can only be
// added while the builder is Created or Populating; once Finalize begins
// the object set is frozen.
type BuilderState int

const (
	StateCreated BuilderState = iota
	StatePopulating
	StateFinalizing
	StateDone
)

func (s BuilderState) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StatePopulating:
		return "populating"
	case StateFinalizing:
		return "finalizing"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Progress receives a notification after each entry is written during
// finalize. Implementations must be cheap; the writer blocks on them.
type Progress interface {
	ObjectWritten(written, total int)
}

// BuildOptions control pack finalization.
type BuildOptions struct {
	// Deltas enables delta compression against similarity-matched prior
	// objects in the same pack.
	Deltas bool
	// Workers bounds the delta-search worker pool. Zero means GOMAXPROCS.
	Workers int
	// Progress, if non-nil, is notified per written entry.
	Progress Progress
}

// BuildResult summarizes a finalized pack.
type BuildResult struct {
	PackChecksum  Hash
	IndexChecksum Hash
	Objects       int
	Deltas        int
}

// Builder assembles a pack from a caller-chosen set of object hashes. It
// does not chase references on Add; AddRecursive exists for callers that
// want the closure. A Builder is single-use and must not be shared across
// goroutines without external synchronization.
type Builder struct {
	store *Store
	state BuilderState
	seen  map[Hash]struct{}
	order []Hash
}

// NewBuilder creates a Builder over the given store.
func NewBuilder(store *Store) *Builder {
	return &Builder{
		store: store,
		state: StateCreated,
		seen:  make(map[Hash]struct{}),
	}
}

// State returns the current lifecycle state.
func (b *Builder) State() BuilderState { return b.state }

// Count returns the number of distinct objects added so far.
func (b *Builder) Count() int { return len(b.order) }

// Add registers a single object hash. Duplicates are ignored. Existence
// in the store is not checked until finalize.
func (b *Builder) Add(h Hash) error {
	if err := b.checkPopulating(); err != nil {
		return err
	}
	if h.IsZero() {
		return fmt.Errorf("pack add: zero hash")
	}
	if _, ok := b.seen[h]; ok {
		return nil
	}
	b.seen[h] = struct{}{}
	b.order = append(b.order, h)
	return nil
}

// AddRecursive registers root and every object reachable from it.
func (b *Builder) AddRecursive(root Hash) error {
	if err := b.checkPopulating(); err != nil {
		return err
	}
	if !b.store.Has(root) {
		return fmt.Errorf("pack add %s: %w", root, ErrObjectMissing)
	}
	reachable, err := b.store.ReachableSet([]Hash{root})
	if err != nil {
		return fmt.Errorf("pack add %s: %w", root, err)
	}
	sorted := make([]Hash, 0, len(reachable))
	for h := range reachable {
		sorted = append(sorted, h)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	for _, h := range sorted {
		if err := b.Add(h); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) checkPopulating() error {
	switch b.state {
	case StateCreated:
		b.state = StatePopulating
		return nil
	case StatePopulating:
		return nil
	default:
		return fmt.Errorf("pack builder is %s: cannot add objects", b.state)
	}
}

type packObject struct {
	hash     Hash
	objType  Type
	packType PackObjectType
	data     []byte

	deltaBase int    // index into the build list, -1 for full entries
	delta     []byte // delta stream when deltaBase >= 0
}

// Finalize loads every added object from the store, optionally computes
// deltas, writes the pack stream to packW and the idx to idxW, and moves
// the builder to Done. The context is checked between objects; a
// cancelled build leaves the builder unusable but writes no store state.
func (b *Builder) Finalize(ctx context.Context, packW, idxW io.Writer, opts BuildOptions) (*BuildResult, error) {
	switch b.state {
	case StateCreated, StatePopulating:
		b.state = StateFinalizing
	default:
		return nil, fmt.Errorf("pack builder is %s: cannot finalize", b.state)
	}

	objects := make([]*packObject, 0, len(b.order))
	for _, h := range b.order {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("pack finalize: %w", err)
		}
		objType, data, err := b.store.Read(h)
		if err != nil {
			return nil, fmt.Errorf("pack finalize %s: %w: %v", h, ErrObjectMissing, err)
		}
		packType, ok := typeToPackType(objType)
		if !ok {
			return nil, fmt.Errorf("pack finalize %s: unsupported object type %q", h, objType)
		}
		objects = append(objects, &packObject{
			hash:      h,
			objType:   objType,
			packType:  packType,
			data:      data,
			deltaBase: -1,
		})
	}

	// Group by type, largest first, so similar objects sit next to each
	// other and deltas stay within their kind.
	sort.SliceStable(objects, func(i, j int) bool {
		if objects[i].packType != objects[j].packType {
			return objects[i].packType < objects[j].packType
		}
		if len(objects[i].data) != len(objects[j].data) {
			return len(objects[i].data) > len(objects[j].data)
		}
		return objects[i].hash < objects[j].hash
	})

	deltas := 0
	if opts.Deltas {
		if err := computeDeltas(ctx, objects, opts.Workers); err != nil {
			return nil, err
		}
		for _, o := range objects {
			if o.deltaBase >= 0 {
				deltas++
			}
		}
	}

	pw, err := NewPackWriter(packW, uint32(len(objects)))
	if err != nil {
		return nil, fmt.Errorf("pack finalize: %w", err)
	}

	offsets := make([]uint64, len(objects))
	indexEntries := make([]PackIndexEntry, 0, len(objects))
	for i, o := range objects {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("pack finalize: %w", err)
		}
		offsets[i] = pw.CurrentOffset()
		if o.deltaBase >= 0 {
			err = pw.WriteOfsDelta(offsets[o.deltaBase], o.delta)
		} else {
			err = pw.WriteEntry(o.packType, o.data)
		}
		if err != nil {
			return nil, fmt.Errorf("pack finalize %s: %w", o.hash, err)
		}
		indexEntries = append(indexEntries, PackIndexEntry{
			Hash:   o.hash,
			Offset: offsets[i],
			CRC32:  crc32.ChecksumIEEE(o.data),
		})
		if opts.Progress != nil {
			opts.Progress.ObjectWritten(i+1, len(objects))
		}
	}

	packChecksum, err := pw.Finish()
	if err != nil {
		return nil, fmt.Errorf("pack finalize: %w", err)
	}
	indexChecksum, err := WritePackIndex(idxW, indexEntries, packChecksum)
	if err != nil {
		return nil, fmt.Errorf("pack finalize: %w", err)
	}

	b.state = StateDone
	return &BuildResult{
		PackChecksum:  packChecksum,
		IndexChecksum: indexChecksum,
		Objects:       len(objects),
		Deltas:        deltas,
	}, nil
}

// computeDeltas tries to delta each object against its predecessor in the
// sorted list, keeping the result only when it saves real space. Bases are
// always full entries (depth-1 chains), so a delta candidate whose
// predecessor was itself deltified is skipped. Candidates are evaluated in
// parallel; each worker owns its slice index so no locking is needed
// beyond the wait group.
func computeDeltas(ctx context.Context, objects []*packObject, workers int) error {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	type candidate struct{ target, base int }
	candidates := make([]candidate, 0, len(objects))
	for i := 1; i < len(objects); i += 2 {
		prev, cur := objects[i-1], objects[i]
		if prev.packType != cur.packType {
			continue
		}
		if len(cur.data) < deltaMinCopyLen || len(prev.data) < deltaMinCopyLen {
			continue
		}
		candidates = append(candidates, candidate{target: i, base: i - 1})
	}
	if len(candidates) == 0 {
		return nil
	}

	jobs := make(chan candidate)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range jobs {
				target := objects[c.target]
				base := objects[c.base]
				delta := BuildDelta(base.data, target.data)
				// A delta only pays off when it beats the full entry by a
				// clear margin; marginal wins cost reconstruction time.
				if len(delta) < len(target.data)/2 {
					target.delta = delta
					target.deltaBase = c.base
				}
			}
		}()
	}

	var cancelErr error
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			cancelErr = err
			break
		}
		jobs <- c
	}
	close(jobs)
	wg.Wait()

	if cancelErr != nil {
		return fmt.Errorf("pack delta search: %w", cancelErr)
	}
	return nil
}

// InstallPack stores a finalized pack and its index in the backend so the
// store's read-through path can serve the packed objects.
func (s *Store) InstallPack(packChecksum Hash, packData, idxData []byte) error {
	if _, err := hashHexToBytes(packChecksum); err != nil {
		return fmt.Errorf("install pack: %w", err)
	}
	base := packKeyPrefix + "pack-" + string(packChecksum)
	if err := s.backend.Write(base+".pack", packData); err != nil {
		return fmt.Errorf("install pack: %w", err)
	}
	if err := s.backend.Write(base+".idx", idxData); err != nil {
		return fmt.Errorf("install pack index: %w", err)
	}
	return nil
}
