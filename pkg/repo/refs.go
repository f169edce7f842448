package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/keelvc/keel/pkg/object"
)

var (
	// ErrRefNotFound indicates a symbolic name that resolves to nothing.
	ErrRefNotFound = errors.New("ref not found")
	// ErrDetachedHead indicates HEAD holds a bare hash, so there is no
	// branch ref to advance.
	ErrDetachedHead = errors.New("HEAD is detached, not on a branch")
)

// ResolveRef maps a symbolic name to an object hash. Accepted forms:
// "HEAD" (following one level of "ref: ..." indirection), a full ref path
// such as "refs/heads/main", a bare branch or tag name, or a full hex
// hash.
func (r *Repo) ResolveRef(name string) (object.Hash, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: empty name", ErrRefNotFound)
	}

	if name == "HEAD" {
		data, err := os.ReadFile(filepath.Join(r.KeelDir, "HEAD"))
		if err != nil {
			return "", fmt.Errorf("resolve HEAD: %w", err)
		}
		content := strings.TrimSpace(string(data))
		if target, ok := strings.CutPrefix(content, "ref: "); ok {
			return r.ResolveRef(target)
		}
		return object.ParseHash(content)
	}

	candidates := []string{name}
	if !strings.HasPrefix(name, "refs/") {
		candidates = append(candidates, "refs/heads/"+name, "refs/tags/"+name)
	}
	for _, c := range candidates {
		data, err := os.ReadFile(filepath.Join(r.KeelDir, filepath.FromSlash(c)))
		if err != nil {
			continue
		}
		return object.ParseHash(strings.TrimSpace(string(data)))
	}

	// Last resort: the name may already be a hash.
	if h, err := object.ParseHash(name); err == nil && r.Store.Has(h) {
		return h, nil
	}
	return "", fmt.Errorf("%w: %q", ErrRefNotFound, name)
}

// UpdateRef writes a ref to point at the given hash. The write is atomic
// so concurrent readers never see a torn ref.
func (r *Repo) UpdateRef(name string, h object.Hash) error {
	name = strings.TrimSpace(name)
	if !strings.HasPrefix(name, "refs/") {
		return fmt.Errorf("update ref: name must start with refs/, got %q", name)
	}
	if _, err := object.ParseHash(string(h)); err != nil {
		return fmt.Errorf("update ref %s: %w", name, err)
	}

	dest := filepath.Join(r.KeelDir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("update ref %s: %w", name, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".ref-tmp-*")
	if err != nil {
		return fmt.Errorf("update ref %s: %w", name, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(string(h) + "\n"); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("update ref %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("update ref %s: %w", name, err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("update ref %s: %w", name, err)
	}
	return nil
}

// CurrentBranchRef returns the ref path HEAD points at, or "" for a
// detached HEAD.
func (r *Repo) CurrentBranchRef() (string, error) {
	data, err := os.ReadFile(filepath.Join(r.KeelDir, "HEAD"))
	if err != nil {
		return "", fmt.Errorf("read HEAD: %w", err)
	}
	content := strings.TrimSpace(string(data))
	if target, ok := strings.CutPrefix(content, "ref: "); ok {
		return target, nil
	}
	return "", nil
}

// ListRefs lists references under .keel/refs, keyed relative to the refs
// root, e.g. "heads/main".
func (r *Repo) ListRefs(prefix string) (map[string]object.Hash, error) {
	root := filepath.Join(r.KeelDir, "refs")
	dir := root
	if strings.TrimSpace(prefix) != "" {
		dir = filepath.Join(root, filepath.FromSlash(prefix))
	}

	refs := make(map[string]object.Hash)
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		refs[filepath.ToSlash(rel)] = object.Hash(strings.TrimSpace(string(data)))
		return nil
	})
	if os.IsNotExist(err) {
		return refs, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list refs: %w", err)
	}
	return refs, nil
}
