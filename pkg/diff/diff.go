// Package diff computes deterministic line-level diffs. It is the diff
// provider for blame: identical inputs always produce the identical edit
// script, so attribution results are reproducible.
package diff

import "strings"

// OpType classifies a line in an edit script.
type OpType int

const (
	Keep   OpType = iota // Line is unchanged between old and new.
	Add                  // Line was inserted (present in new only).
	Remove               // Line was deleted (present in old only).
)

// Op is a single operation in an edit script. OldLine and NewLine are
// 1-based line numbers in the old and new texts; a line number is 0 when
// the op has no position on that side (Add has no OldLine, Remove has no
// NewLine).
type Op struct {
	Type    OpType
	OldLine int
	NewLine int
	Text    string
}

// SplitLines splits text into lines. A trailing newline does not produce
// an extra empty element, matching standard text file conventions.
func SplitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// NormalizeWhitespace collapses runs of spaces and tabs to a single space
// and trims the ends, so whitespace-only edits compare equal.
func NormalizeWhitespace(line string) string {
	var b strings.Builder
	b.Grow(len(line))
	inWS := false
	for _, r := range line {
		if r == ' ' || r == '\t' {
			inWS = true
			continue
		}
		if inWS && b.Len() > 0 {
			b.WriteByte(' ')
		}
		inWS = false
		b.WriteRune(r)
	}
	return b.String()
}

// Lines computes the edit script transforming oldLines into newLines.
// When ignoreWhitespace is set, lines are compared after whitespace
// normalization but the emitted Text carries the original content.
func Lines(oldLines, newLines []string, ignoreWhitespace bool) []Op {
	cmpOld, cmpNew := oldLines, newLines
	if ignoreWhitespace {
		cmpOld = make([]string, len(oldLines))
		for i, l := range oldLines {
			cmpOld[i] = NormalizeWhitespace(l)
		}
		cmpNew = make([]string, len(newLines))
		for i, l := range newLines {
			cmpNew[i] = NormalizeWhitespace(l)
		}
	}

	script := myers(cmpOld, cmpNew)

	// Attach original text and 1-based line numbers.
	out := make([]Op, len(script))
	oldIdx, newIdx := 0, 0
	for i, op := range script {
		switch op {
		case Keep:
			out[i] = Op{Type: Keep, OldLine: oldIdx + 1, NewLine: newIdx + 1, Text: oldLines[oldIdx]}
			oldIdx++
			newIdx++
		case Remove:
			out[i] = Op{Type: Remove, OldLine: oldIdx + 1, Text: oldLines[oldIdx]}
			oldIdx++
		case Add:
			out[i] = Op{Type: Add, NewLine: newIdx + 1, Text: newLines[newIdx]}
			newIdx++
		}
	}
	return out
}

// Texts is a convenience wrapper over Lines for raw byte content.
func Texts(oldText, newText []byte, ignoreWhitespace bool) []Op {
	return Lines(SplitLines(string(oldText)), SplitLines(string(newText)), ignoreWhitespace)
}

// myers computes the shortest edit script to transform a into b using the
// Myers diff algorithm on whole lines, returning only op types in order.
//
// Runs in O((N+M)*D) time where D is the size of the minimum edit script.
func myers(a, b []string) []OpType {
	n := len(a)
	m := len(b)

	if n == 0 && m == 0 {
		return nil
	}
	if n == 0 {
		ops := make([]OpType, m)
		for i := range ops {
			ops[i] = Add
		}
		return ops
	}
	if m == 0 {
		ops := make([]OpType, n)
		for i := range ops {
			ops[i] = Remove
		}
		return ops
	}

	max := n + m
	size := 2*max + 1
	v := make([]int, size)

	// trace[d] holds a snapshot of v after processing edit distance d.
	var trace [][]int

	for d := 0; d <= max; d++ {
		for k := -d; k <= d; k += 2 {
			idx := k + max
			var x int
			if k == -d || (k != d && v[idx-1] < v[idx+1]) {
				x = v[idx+1] // move down (insert)
			} else {
				x = v[idx-1] + 1 // move right (delete)
			}
			y := x - k

			// Follow the diagonal through equal lines.
			for x < n && y < m && a[x] == b[y] {
				x++
				y++
			}

			v[idx] = x

			if x >= n && y >= m {
				snap := make([]int, size)
				copy(snap, v)
				trace = append(trace, snap)
				return backtrack(trace, a, b, d)
			}
		}

		snap := make([]int, size)
		copy(snap, v)
		trace = append(trace, snap)
	}

	// Unreachable for valid inputs.
	return nil
}

// backtrack reconstructs the edit script from the trace of v snapshots.
func backtrack(trace [][]int, a, b []string, dFinal int) []OpType {
	n := len(a)
	m := len(b)
	max := n + m

	x := n
	y := m

	var ops []OpType

	for d := dFinal; d > 0; d-- {
		k := x - y
		idx := k + max

		vPrev := trace[d-1]

		var prevK int
		if k == -d || (k != d && vPrev[idx-1] < vPrev[idx+1]) {
			prevK = k + 1 // came from an insert (down move)
		} else {
			prevK = k - 1 // came from a delete (right move)
		}

		prevX := vPrev[prevK+max]
		prevY := prevX - prevK

		// Trace back along the diagonal through equal lines.
		for x > prevX && y > prevY {
			x--
			y--
			ops = append(ops, Keep)
		}

		if k == prevK+1 {
			x--
			ops = append(ops, Remove)
		} else {
			y--
			ops = append(ops, Add)
		}
	}

	// Remaining diagonal at d=0.
	for x > 0 && y > 0 {
		x--
		y--
		ops = append(ops, Keep)
	}

	// Reverse into forward order.
	for i, j := 0, len(ops)-1; i < j; i, j = i+1, j-1 {
		ops[i], ops[j] = ops[j], ops[i]
	}

	return ops
}
