package repo

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/keelvc/keel/pkg/object"
)

var ErrNoIdentity = errors.New("no committer identity configured")

// CommitOptions describe a commit to create. Author defaults to the
// configured identity; When defaults to the current time.
type CommitOptions struct {
	TreeHash object.Hash
	Parents  []object.Hash
	Message  string
	Author   string
	When     time.Time
	Signer   Signer
}

// CreateCommit writes a commit object for opts and returns its hash.
// It does not move any ref; see Commit for the ref-updating variant.
func (r *Repo) CreateCommit(opts CommitOptions) (object.Hash, error) {
	ident := opts.Author
	if ident == "" {
		cfg, err := r.ReadConfig()
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(cfg.UserName) == "" {
			return "", ErrNoIdentity
		}
		ident = cfg.Ident()
	}
	when := opts.When
	if when.IsZero() {
		when = time.Now()
	}

	c := &object.Commit{
		TreeHash:          opts.TreeHash,
		Parents:           opts.Parents,
		Author:            ident,
		AuthorTime:        when.Unix(),
		AuthorTimezone:    when.Format("-0700"),
		Committer:         ident,
		CommitterTime:     when.Unix(),
		CommitterTimezone: when.Format("-0700"),
		Message:           opts.Message,
	}

	if opts.Signer != nil {
		sig, err := opts.Signer.Sign(object.MarshalCommit(c))
		if err != nil {
			return "", fmt.Errorf("sign commit: %w", err)
		}
		c.Signature = sig
	}

	return r.Store.WriteCommit(c)
}

// Commit snapshots paths, creates a commit on top of the current branch
// head, and advances the branch ref to it.
func (r *Repo) Commit(paths []string, message string, signer Signer) (object.Hash, error) {
	treeHash, err := r.SnapshotPaths(paths)
	if err != nil {
		return "", err
	}

	branch, err := r.CurrentBranchRef()
	if err != nil {
		return "", err
	}
	if branch == "" {
		return "", ErrDetachedHead
	}

	var parents []object.Hash
	if head, err := r.ResolveRef("HEAD"); err == nil {
		parents = append(parents, head)
	} else if !errors.Is(err, ErrRefNotFound) {
		return "", err
	}

	hash, err := r.CreateCommit(CommitOptions{
		TreeHash: treeHash,
		Parents:  parents,
		Message:  message,
		Signer:   signer,
	})
	if err != nil {
		return "", err
	}

	if err := r.UpdateRef(branch, hash); err != nil {
		return "", err
	}
	return hash, nil
}
