package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/keelvc/keel/pkg/object"
)

// BuildTree writes blobs for every file in files (keyed by slash-separated
// repo-relative path) and assembles the nested tree objects bottom-up,
// returning the root tree hash.
func (r *Repo) BuildTree(files map[string][]byte) (object.Hash, error) {
	return buildTree(r.Store, files)
}

func buildTree(store *object.Store, files map[string][]byte) (object.Hash, error) {
	type dirNode struct {
		entries map[string]object.TreeEntry
		subdirs map[string]*dirNode
	}
	newDir := func() *dirNode {
		return &dirNode{
			entries: make(map[string]object.TreeEntry),
			subdirs: make(map[string]*dirNode),
		}
	}
	root := newDir()

	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		clean := strings.Trim(filepath.ToSlash(p), "/")
		if clean == "" || strings.HasPrefix(clean, "../") {
			return "", fmt.Errorf("build tree: invalid path %q", p)
		}
		blobHash, err := store.WriteBlob(&object.Blob{Data: files[p]})
		if err != nil {
			return "", fmt.Errorf("build tree: %w", err)
		}

		parts := strings.Split(clean, "/")
		dir := root
		for _, part := range parts[:len(parts)-1] {
			sub, ok := dir.subdirs[part]
			if !ok {
				sub = newDir()
				dir.subdirs[part] = sub
			}
			dir = sub
		}
		name := parts[len(parts)-1]
		dir.entries[name] = object.TreeEntry{Name: name, Mode: object.ModeFile, Hash: blobHash}
	}

	var writeDir func(d *dirNode) (object.Hash, error)
	writeDir = func(d *dirNode) (object.Hash, error) {
		tree := &object.Tree{}
		for _, e := range d.entries {
			tree.Entries = append(tree.Entries, e)
		}
		for name, sub := range d.subdirs {
			subHash, err := writeDir(sub)
			if err != nil {
				return "", err
			}
			tree.Entries = append(tree.Entries, object.TreeEntry{
				Name: name,
				Mode: object.ModeDir,
				Hash: subHash,
			})
		}
		sort.Slice(tree.Entries, func(i, j int) bool {
			return tree.Entries[i].Name < tree.Entries[j].Name
		})
		return store.WriteTree(tree)
	}

	return writeDir(root)
}

// SnapshotPaths reads the given working-directory paths and builds a tree
// from their current content.
func (r *Repo) SnapshotPaths(paths []string) (object.Hash, error) {
	files := make(map[string][]byte, len(paths))
	for _, p := range paths {
		abs := p
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(r.RootDir, p)
		}
		rel, err := filepath.Rel(r.RootDir, abs)
		if err != nil || strings.HasPrefix(rel, "..") {
			return "", fmt.Errorf("snapshot: path %q is outside repository", p)
		}
		data, err := os.ReadFile(abs)
		if err != nil {
			return "", fmt.Errorf("snapshot: %w", err)
		}
		files[filepath.ToSlash(rel)] = data
	}
	return r.BuildTree(files)
}
