package blame

import (
	"fmt"

	"github.com/keelvc/keel/pkg/diff"
	"github.com/keelvc/keel/pkg/object"
)

// Buffer updates a prior blame result against an edited in-memory buffer
// without walking history: one diff between the committed content and the
// buffer decides everything. Lines carried over from the committed
// version keep their attribution; lines the buffer changed or added get
// the zero-hash sentinel marking them uncommitted. This is cheap enough
// to rerun on every buffer edit.
func Buffer(prev *Result, buffer []byte, ignoreWS bool) (*Result, error) {
	if prev == nil {
		return nil, fmt.Errorf("blame buffer: nil base result")
	}

	committed, err := expandOrigins(prev)
	if err != nil {
		return nil, err
	}

	bufferLines := diff.SplitLines(string(buffer))
	attrib := make([]lineOrigin, len(bufferLines))

	for _, op := range diff.Texts(prev.FinalText, buffer, ignoreWS) {
		switch op.Type {
		case diff.Keep:
			attrib[op.NewLine-1] = committed[op.OldLine-1]
		case diff.Add:
			// Zero-value origin: the uncommitted sentinel.
			attrib[op.NewLine-1] = lineOrigin{path: prev.Path}
		}
	}

	return &Result{
		Path:        prev.Path,
		FinalCommit: prev.FinalCommit,
		FinalText:   buffer,
		Hunks:       coalesce(attrib, prev.FinalCommit, 1),
	}, nil
}

// expandOrigins flattens a result's hunks back into per-line origins. The
// base result must cover its content from line 1 with no gaps; windowed
// results cannot seed a buffer blame.
func expandOrigins(prev *Result) ([]lineOrigin, error) {
	total := len(diff.SplitLines(string(prev.FinalText)))
	origins := make([]lineOrigin, 0, total)

	next := 1
	for _, h := range prev.Hunks {
		if h.FinalStartLine != next {
			return nil, fmt.Errorf("blame buffer: base result has a gap at line %d", next)
		}
		for i := 0; i < h.Lines; i++ {
			origins = append(origins, lineOrigin{
				commit:   h.OrigCommit,
				path:     h.OrigPath,
				line:     h.OrigStartLine + i,
				boundary: h.Boundary,
			})
		}
		next += h.Lines
	}
	if len(origins) != total {
		return nil, fmt.Errorf("blame buffer: base result covers %d of %d lines", len(origins), total)
	}
	return origins, nil
}

// Uncommitted reports whether a hunk carries the zero-hash sentinel
// produced by Buffer for lines not yet committed.
func (h Hunk) Uncommitted() bool { return h.OrigCommit == object.Hash("") }
