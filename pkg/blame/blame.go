// Package blame attributes every line of a file at some revision to the
// commit that most recently introduced it.
//
// The engine walks history backward from the starting revision, carrying
// a frontier of still-unattributed lines. Commits that did not change the
// file's blob are skipped without diffing; for the rest, a line diff
// against each parent decides which frontier lines pass through
// unchanged and which were introduced by the commit under inspection.
package blame

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/keelvc/keel/pkg/diff"
	"github.com/keelvc/keel/pkg/object"
	"github.com/keelvc/keel/pkg/revwalk"
)

var (
	// ErrPathNotFound indicates the blamed path does not exist at the
	// starting revision.
	ErrPathNotFound = errors.New("blame: path not found at revision")
	// ErrInvalidRange indicates a requested line window falls outside the
	// file's line count.
	ErrInvalidRange = errors.New("blame: line range outside file")
)

// Options configure a blame run.
type Options struct {
	// IgnoreWhitespace normalizes lines before diffing so whitespace-only
	// edits do not claim attribution.
	IgnoreWhitespace bool
	// MinLine/MaxLine restrict attribution to a 1-based inclusive window.
	// Zero means unbounded on that side.
	MinLine int
	MaxLine int
	// Boundary stops the history walk at these commits (exclusive):
	// lines still unattributed there are force-attributed to the boundary
	// commit and flagged.
	Boundary []object.Hash
}

// Hunk is a maximal run of consecutive final lines attributed to the same
// origin commit and path.
type Hunk struct {
	// Lines is the number of lines in the hunk.
	Lines int
	// FinalCommit is the revision blame started from.
	FinalCommit object.Hash
	// FinalStartLine is the 1-based first line of the hunk in the final
	// content.
	FinalStartLine int
	// OrigCommit introduced the lines. The zero hash marks uncommitted
	// lines in buffer blame results.
	OrigCommit object.Hash
	// OrigPath is the path the lines were introduced under.
	OrigPath string
	// OrigStartLine is the 1-based first line of the hunk in the origin
	// commit's version of the file.
	OrigStartLine int
	// Boundary is set when the walk was cut off before the true origin
	// and the hunk was force-attributed to the oldest commit reached.
	Boundary bool
}

// Result is an ordered hunk set covering every line of the blamed window.
type Result struct {
	Path        string
	FinalCommit object.Hash
	// FinalText is the file content at FinalCommit; buffer blame diffs an
	// edited buffer against it.
	FinalText []byte
	Hunks     []Hunk
}

// lineOrigin is the resolved attribution of one final line.
type lineOrigin struct {
	commit   object.Hash
	path     string
	line     int
	boundary bool
}

// pendingLines maps line numbers in one commit's version of the file to
// indexes into the final attribution window.
type pendingLines struct {
	path  string
	lines map[int]int
}

// File attributes every line of path at the start commit.
func File(ctx context.Context, store *object.Store, path string, start object.Hash, opts Options) (*Result, error) {
	startCommit, err := store.ReadCommit(start)
	if err != nil {
		return nil, fmt.Errorf("blame: read start commit %s: %w", start, err)
	}

	startBlob, ok, err := store.PathBlob(startCommit.TreeHash, path)
	if err != nil {
		return nil, fmt.Errorf("blame: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %q at %s", ErrPathNotFound, path, start.Short())
	}
	blob, err := store.ReadBlob(startBlob)
	if err != nil {
		return nil, fmt.Errorf("blame: read blob %s: %w", startBlob, err)
	}

	finalLines := diff.SplitLines(string(blob.Data))
	total := len(finalLines)

	// An empty file has nothing to attribute; only an explicit window can
	// be out of range.
	if total == 0 && opts.MinLine == 0 && opts.MaxLine == 0 {
		return &Result{Path: path, FinalCommit: start, FinalText: blob.Data}, nil
	}

	minLine, maxLine := opts.MinLine, opts.MaxLine
	if minLine == 0 {
		minLine = 1
	}
	if maxLine == 0 {
		maxLine = total
	}
	if minLine < 1 || maxLine > total || minLine > maxLine {
		return nil, fmt.Errorf("%w: [%d,%d] of %d lines", ErrInvalidRange, opts.MinLine, opts.MaxLine, total)
	}

	window := maxLine - minLine + 1
	attrib := make([]lineOrigin, window)
	unresolved := window

	pending := map[object.Hash]*pendingLines{
		start: newPending(path, minLine, maxLine),
	}

	walker := revwalk.New(store, []object.Hash{start}, revwalk.Options{
		Order:    revwalk.Topological,
		Boundary: opts.Boundary,
	})

	for unresolved > 0 {
		item, err := walker.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("blame: %w", err)
		}

		p := pending[item.Hash]
		if p == nil || len(p.lines) == 0 {
			continue
		}
		delete(pending, item.Hash)

		resolved, err := attributeCommit(store, item, p, pending, attrib, opts.IgnoreWhitespace)
		if err != nil {
			return nil, err
		}
		unresolved -= resolved
	}

	// Whatever is still pending belongs to commits beyond the walk: the
	// boundary case. Force-attribute those lines to the commit they were
	// carried toward.
	for h, p := range pending {
		for line, idx := range p.lines {
			if attrib[idx].commit.IsZero() {
				attrib[idx] = lineOrigin{commit: h, path: p.path, line: line, boundary: true}
				unresolved--
			}
		}
	}
	if unresolved != 0 {
		return nil, fmt.Errorf("blame: %d lines left unattributed", unresolved)
	}

	return &Result{
		Path:        path,
		FinalCommit: start,
		FinalText:   blob.Data,
		Hunks:       coalesce(attrib, start, minLine),
	}, nil
}

func newPending(path string, minLine, maxLine int) *pendingLines {
	p := &pendingLines{path: path, lines: make(map[int]int, maxLine-minLine+1)}
	for line := minLine; line <= maxLine; line++ {
		p.lines[line] = line - minLine
	}
	return p
}

// attributeCommit processes one commit from the walk: frontier lines
// that map to unchanged lines in some parent are handed to that parent's
// pending set, and only lines no parent accounts for are attributed to
// the commit itself. Parents are tried in order; a line passing through
// several parents unchanged follows the first. Returns how many lines
// were resolved here.
func attributeCommit(
	store *object.Store,
	item *revwalk.Item,
	p *pendingLines,
	pending map[object.Hash]*pendingLines,
	attrib []lineOrigin,
	ignoreWS bool,
) (int, error) {
	curBlob, ok, err := store.PathBlob(item.Commit.TreeHash, p.path)
	if err != nil {
		return 0, fmt.Errorf("blame: %w", err)
	}
	if !ok {
		// The frontier is only ever passed toward commits that contain
		// the path, so this indicates a store inconsistency.
		return 0, fmt.Errorf("blame: path %q vanished at %s", p.path, item.Hash.Short())
	}

	var curData *object.Blob

	remaining := make(map[int]int, len(p.lines))
	for line, idx := range p.lines {
		remaining[line] = idx
	}

	for _, parentHash := range item.Commit.Parents {
		if len(remaining) == 0 {
			break
		}
		parent, err := store.ReadCommit(parentHash)
		if err != nil {
			return 0, fmt.Errorf("blame: read parent %s: %w", parentHash, err)
		}
		parentBlob, ok, err := store.PathBlob(parent.TreeHash, p.path)
		if err != nil {
			return 0, fmt.Errorf("blame: %w", err)
		}
		if !ok {
			continue
		}
		// A parent with an identical blob did not touch the file; hand
		// the rest of the frontier over without diffing.
		if parentBlob == curBlob {
			mergePending(pending, parentHash, p.path, remaining)
			return 0, nil
		}
		pb, err := store.ReadBlob(parentBlob)
		if err != nil {
			return 0, fmt.Errorf("blame: read blob %s: %w", parentBlob, err)
		}
		if curData == nil {
			curData, err = store.ReadBlob(curBlob)
			if err != nil {
				return 0, fmt.Errorf("blame: read blob %s: %w", curBlob, err)
			}
		}
		passed := make(map[int]int)
		for _, op := range diff.Texts(pb.Data, curData.Data, ignoreWS) {
			if op.Type != diff.Keep {
				continue
			}
			if idx, ok := remaining[op.NewLine]; ok {
				passed[op.OldLine] = idx
				delete(remaining, op.NewLine)
			}
		}
		if len(passed) > 0 {
			mergePending(pending, parentHash, p.path, passed)
		}
	}

	// Lines no parent version contains were introduced here. A root
	// commit, or a commit that introduced the path, claims everything.
	resolved := 0
	for line, idx := range remaining {
		attrib[idx] = lineOrigin{commit: item.Hash, path: p.path, line: line}
		resolved++
	}
	return resolved, nil
}

func mergePending(pending map[object.Hash]*pendingLines, target object.Hash, path string, lines map[int]int) {
	dst := pending[target]
	if dst == nil {
		dst = &pendingLines{path: path, lines: make(map[int]int, len(lines))}
		pending[target] = dst
	}
	for line, idx := range lines {
		dst.lines[line] = idx
	}
}

// coalesce folds per-line origins into maximal hunks of consecutive lines
// sharing (commit, path, boundary), ordered by final start line.
func coalesce(attrib []lineOrigin, finalCommit object.Hash, minLine int) []Hunk {
	var hunks []Hunk
	for i := 0; i < len(attrib); i++ {
		o := attrib[i]
		h := Hunk{
			Lines:          1,
			FinalCommit:    finalCommit,
			FinalStartLine: minLine + i,
			OrigCommit:     o.commit,
			OrigPath:       o.path,
			OrigStartLine:  o.line,
			Boundary:       o.boundary,
		}
		for i+1 < len(attrib) {
			next := attrib[i+1]
			if next.commit != o.commit || next.path != o.path || next.boundary != o.boundary {
				break
			}
			h.Lines++
			i++
		}
		hunks = append(hunks, h)
	}
	return hunks
}
