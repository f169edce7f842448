package vanity

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/keelvc/keel/pkg/object"
)

func testCommit() *object.Commit {
	return &object.Commit{
		TreeHash:          object.HashBytes([]byte("tree")),
		Author:            "A <a@e>",
		AuthorTime:        1700000000,
		AuthorTimezone:    "+0000",
		Committer:         "A <a@e>",
		CommitterTime:     1700000000,
		CommitterTimezone: "+0000",
		Message:           "vanity target",
	}
}

func TestMineFindsPrefix(t *testing.T) {
	c := testCommit()
	res, err := Mine(context.Background(), c, "a", Options{Workers: 4})
	if err != nil {
		t.Fatalf("Mine: %v", err)
	}
	if !strings.HasPrefix(string(res.Hash), "a") {
		t.Errorf("hash %s does not start with prefix", res.Hash)
	}
	// The mined commit's hash must actually be the hash of its serialized
	// form.
	want := object.HashObject(object.TypeCommit, object.MarshalCommit(res.Commit))
	if res.Hash != want {
		t.Errorf("hash mismatch: got %s, want %s", res.Hash, want)
	}
}

func TestMineVariesOnlyTimestamps(t *testing.T) {
	c := testCommit()
	res, err := Mine(context.Background(), c, "7", Options{Workers: 2})
	if err != nil {
		t.Fatalf("Mine: %v", err)
	}
	got := res.Commit
	if got.TreeHash != c.TreeHash || got.Author != c.Author || got.Message != c.Message {
		t.Error("mining changed a field other than the timestamps")
	}
	if got.AuthorTime != c.AuthorTime+int64(res.AuthorDelta) {
		t.Errorf("AuthorTime: got %d, delta %d", got.AuthorTime, res.AuthorDelta)
	}
	if got.CommitterTime != c.CommitterTime+int64(res.CommitterDelta) {
		t.Errorf("CommitterTime: got %d, delta %d", got.CommitterTime, res.CommitterDelta)
	}
	if res.AuthorDelta > 3600 || res.AuthorDelta < -3600 ||
		res.CommitterDelta > 3600 || res.CommitterDelta < -3600 {
		t.Errorf("deltas outside window: %d/%d", res.AuthorDelta, res.CommitterDelta)
	}
	// Input commit untouched.
	if c.AuthorTime != 1700000000 || c.CommitterTime != 1700000000 {
		t.Error("Mine mutated its input commit")
	}
}

func TestMineAlreadyMatchingCommitUnchanged(t *testing.T) {
	c := testCommit()
	hash := object.HashObject(object.TypeCommit, object.MarshalCommit(c))

	// Use the commit's own hash as the prefix so only deltas (0,0) match.
	res, err := Mine(context.Background(), c, string(hash[:8]), Options{Workers: 2})
	if err != nil {
		t.Fatalf("Mine: %v", err)
	}
	if res.Hash != hash {
		t.Errorf("hash: got %s, want %s", res.Hash, hash)
	}
	if res.AuthorDelta != 0 || res.CommitterDelta != 0 {
		t.Errorf("deltas: got %d/%d, want 0/0", res.AuthorDelta, res.CommitterDelta)
	}
	if res.Commit.AuthorTime != c.AuthorTime || res.Commit.CommitterTime != c.CommitterTime {
		t.Error("a matching head must keep its timestamps")
	}
}

func TestMineRejectsBadPrefix(t *testing.T) {
	for _, p := range []string{"", "xyz", "ABC!", "g0"} {
		if _, err := Mine(context.Background(), testCommit(), p, Options{}); !errors.Is(err, ErrBadPrefix) {
			t.Errorf("prefix %q: got %v, want ErrBadPrefix", p, err)
		}
	}
}

func TestMineUppercaseHexNormalized(t *testing.T) {
	res, err := Mine(context.Background(), testCommit(), "B", Options{Workers: 2})
	if err != nil {
		t.Fatalf("Mine: %v", err)
	}
	if !strings.HasPrefix(string(res.Hash), "b") {
		t.Errorf("hash %s does not start with normalized prefix", res.Hash)
	}
}

func TestMineNoMatchInTinyWindow(t *testing.T) {
	// A 12-hex-char prefix is unreachable inside a 1-second window.
	_, err := Mine(context.Background(), testCommit(), "abcdefabcdef", Options{MaxDelta: 1, Workers: 2})
	if !errors.Is(err, ErrNoMatch) {
		t.Errorf("got %v, want ErrNoMatch", err)
	}
}

func TestMineCancellation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	// An 16-hex-char prefix will not be found; the search must stop with
	// the context instead of running the window out.
	start := time.Now()
	_, err := Mine(ctx, testCommit(), "0123456789abcdef", Options{Workers: 2})
	if err == nil {
		t.Fatal("expected an error from a cancelled search")
	}
	if time.Since(start) > 5*time.Second {
		t.Error("cancellation did not stop the search promptly")
	}
}
