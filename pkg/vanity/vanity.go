// Package vanity mines commit hashes that start with a chosen hex prefix
// by nudging the author and committer timestamps around their original
// values.
package vanity

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"strings"
	"sync"

	"github.com/keelvc/keel/pkg/object"
)

var (
	ErrBadPrefix = errors.New("vanity prefix must be lowercase hex")
	ErrNoMatch   = errors.New("no matching hash within the search window")
)

// Options tunes the search. Zero values pick sane defaults.
type Options struct {
	// Workers is the number of concurrent searchers. Defaults to GOMAXPROCS.
	Workers int
	// MaxDelta bounds how far (in seconds) each timestamp may drift from
	// its original value. Defaults to 3600.
	MaxDelta int
}

// Result holds the mined commit and its hash, plus how far each
// timestamp moved.
type Result struct {
	Commit         *object.Commit
	Hash           object.Hash
	AuthorDelta    int
	CommitterDelta int
	Attempts       int64
}

// Mine searches for a variant of c whose hash starts with prefix. The
// candidate commits differ from c only in author and committer time. The
// search walks a square spiral over (authorDelta, committerDelta) so small
// perturbations are tried first.
func Mine(ctx context.Context, c *object.Commit, prefix string, opts Options) (*Result, error) {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if prefix == "" || !allHex(prefix) {
		return nil, fmt.Errorf("%w: %q", ErrBadPrefix, prefix)
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	maxDelta := opts.MaxDelta
	if maxDelta <= 0 {
		maxDelta = 3600
	}
	max := spiralMax(maxDelta)

	// Spiral index 0 is the unperturbed commit. Test it up front: the
	// workers start past the origin, where spiralPair is undefined, and a
	// head that already matches must keep its timestamps.
	if hash := object.HashObject(object.TypeCommit, object.MarshalCommit(c)); strings.HasPrefix(string(hash), prefix) {
		found := *c
		return &Result{Commit: &found, Hash: hash, Attempts: 1}, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan *Result, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(start int) {
			defer wg.Done()
			cand := *c
			var attempts int64
			for n := start; n < max; n += workers {
				if n%4096 == start%4096 {
					select {
					case <-ctx.Done():
						return
					default:
					}
				}
				attempts++
				da, dc := spiralPair(n)
				cand.AuthorTime = c.AuthorTime + int64(da)
				cand.CommitterTime = c.CommitterTime + int64(dc)
				hash := object.HashObject(object.TypeCommit, object.MarshalCommit(&cand))
				if strings.HasPrefix(string(hash), prefix) {
					found := cand
					results <- &Result{
						Commit:         &found,
						Hash:           hash,
						AuthorDelta:    da,
						CommitterDelta: dc,
						Attempts:       attempts,
					}
					cancel()
					return
				}
			}
		}(w + 1)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	res, ok := <-results
	if !ok {
		// cancel() is only called on success, so a drained channel with a
		// dead context means the caller gave up.
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: prefix %q, delta %ds", ErrNoMatch, prefix, maxDelta)
	}
	// Drain any racing winners so the worker goroutines can exit.
	go func() {
		for range results {
		}
	}()
	return res, nil
}

func allHex(s string) bool {
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// spiralPair maps a spiral index to a coordinate pair, covering the
// integer grid outward from the origin ring by ring.
func spiralPair(n int) (x, y int) {
	s := (int(math.Sqrt(float64(n))) + 1) / 2
	lt := n - (2*s-1)*(2*s-1)
	l := lt / (2 * s)
	e := lt - 2*s*l - s + 1
	switch l {
	case 0:
		return s, e
	case 1:
		return -e, s
	case 2:
		return -s, -e
	default:
		return e, -s
	}
}

func spiralMax(side int) int {
	return (side*2+1)*(side*2+1) - 1
}
