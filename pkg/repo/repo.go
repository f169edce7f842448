// Package repo ties the object store to on-disk repository state: refs,
// configuration, and commit creation. It deliberately stops short of
// working-tree machinery; blame and walking consume resolved hashes.
package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/keelvc/keel/pkg/object"
)

// KeelDirName is the repository metadata directory.
const KeelDirName = ".keel"

// ErrNotARepository indicates that no repository was found at or above
// the given directory.
var ErrNotARepository = errors.New("not a keel repository")

// Repo represents an opened repository.
type Repo struct {
	RootDir string        // working directory root
	KeelDir string        // .keel/ directory
	Store   *object.Store // content-addressed object store
}

// Init creates the minimal repository scaffold under dir: the metadata
// directory, an empty object area, and HEAD pointing at the default
// branch. It fails if a repository already exists there.
func Init(dir string) (*Repo, error) {
	keelDir := filepath.Join(dir, KeelDirName)
	if _, err := os.Stat(keelDir); err == nil {
		return nil, fmt.Errorf("init: repository already exists at %s", keelDir)
	}

	for _, sub := range []string{"objects", filepath.Join("refs", "heads"), filepath.Join("refs", "tags")} {
		if err := os.MkdirAll(filepath.Join(keelDir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("init: %w", err)
		}
	}
	if err := os.WriteFile(filepath.Join(keelDir, "HEAD"), []byte("ref: refs/heads/main\n"), 0o644); err != nil {
		return nil, fmt.Errorf("init: write HEAD: %w", err)
	}

	return &Repo{
		RootDir: dir,
		KeelDir: keelDir,
		Store:   object.NewFSStore(keelDir),
	}, nil
}

// Open locates a repository at dir or any parent of it.
func Open(dir string) (*Repo, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}

	for current := abs; ; current = filepath.Dir(current) {
		keelDir := filepath.Join(current, KeelDirName)
		if st, err := os.Stat(keelDir); err == nil && st.IsDir() {
			return &Repo{
				RootDir: current,
				KeelDir: keelDir,
				Store:   object.NewFSStore(keelDir),
			}, nil
		}
		if filepath.Dir(current) == current {
			return nil, fmt.Errorf("%w: searched from %s", ErrNotARepository, abs)
		}
	}
}
