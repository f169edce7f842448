package object

import (
	"fmt"
	"strings"
)

// LookupPath resolves a slash-separated path against the tree with the
// given hash, descending through subtrees. It returns the entry for the
// final path component, or ok=false when any component is absent or a
// non-directory appears mid-path.
func (s *Store) LookupPath(treeHash Hash, path string) (TreeEntry, bool, error) {
	path = strings.Trim(path, "/")
	if path == "" {
		return TreeEntry{}, false, fmt.Errorf("lookup path: empty path")
	}

	parts := strings.Split(path, "/")
	current := treeHash
	for i, part := range parts {
		tree, err := s.ReadTree(current)
		if err != nil {
			return TreeEntry{}, false, fmt.Errorf("lookup path %q: read tree %s: %w", path, current, err)
		}
		entry, found := tree.Find(part)
		if !found {
			return TreeEntry{}, false, nil
		}

		if i == len(parts)-1 {
			return entry, true, nil
		}
		if !entry.IsDir() {
			return TreeEntry{}, false, nil
		}
		current = entry.Hash
	}
	return TreeEntry{}, false, nil
}

// PathBlob returns the blob hash for a file path under the given tree, or
// ok=false when the path does not resolve to a file.
func (s *Store) PathBlob(treeHash Hash, path string) (Hash, bool, error) {
	entry, ok, err := s.LookupPath(treeHash, path)
	if err != nil || !ok {
		return "", false, err
	}
	if entry.IsDir() {
		return "", false, nil
	}
	return entry.Hash, true, nil
}
