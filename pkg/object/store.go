package object

import (
	"bytes"
	"errors"
	"fmt"
	"hash/fnv"
	"io/fs"
	"strconv"
	"strings"
	"sync"
)

const storeLockStripes = 64

// Store is a content-addressed object store layered over a Backend. Loose
// objects use a 2-character fan-out key layout (objects/ab/cdef0123...);
// finalized packs under objects/pack/ are consulted as a read-through
// fallback.
//
// A Store is safe for concurrent use. Writes of distinct objects contend
// only on a per-object lock stripe, never on a store-wide lock.
type Store struct {
	backend Backend
	locks   [storeLockStripes]sync.Mutex
}

// NewStore creates a Store over the given backend.
func NewStore(backend Backend) *Store {
	return &Store{backend: backend}
}

// NewFSStore creates a Store backed by the filesystem rooted at dir.
func NewFSStore(dir string) *Store {
	return NewStore(NewFSBackend(dir))
}

// looseKey returns the backend key for a loose object.
func looseKey(h Hash) string {
	return "objects/" + string(h[:2]) + "/" + string(h[2:])
}

func (s *Store) lockFor(h Hash) *sync.Mutex {
	f := fnv.New32a()
	f.Write([]byte(h))
	return &s.locks[f.Sum32()%storeLockStripes]
}

// Has reports whether the store contains an object with the given hash,
// loose or packed.
func (s *Store) Has(h Hash) bool {
	if h.IsZero() {
		return false
	}
	if s.backend.Exists(looseKey(h)) {
		return true
	}
	packed, err := s.packedHashSet()
	if err != nil {
		return false
	}
	_, ok := packed[h]
	return ok
}

// Write stores an object and returns its content hash. The on-disk format
// is "type len\0content". Writing identical content twice is a no-op the
// second time and returns the same hash.
func (s *Store) Write(objType Type, data []byte) (Hash, error) {
	h := HashObject(objType, data)

	// Fast path: already exists.
	if s.backend.Exists(looseKey(h)) {
		return h, nil
	}

	mu := s.lockFor(h)
	mu.Lock()
	defer mu.Unlock()
	if s.backend.Exists(looseKey(h)) {
		return h, nil
	}

	if err := s.backend.Write(looseKey(h), makeObjectEnvelope(objType, data)); err != nil {
		return "", fmt.Errorf("object write %s: %w", h, err)
	}
	return h, nil
}

// Read retrieves an object by hash, returning its type and raw content.
// Stored bytes are re-hashed before being returned; a mismatch reports
// ErrCorrupt rather than handing back untrustworthy data.
func (s *Store) Read(h Hash) (Type, []byte, error) {
	raw, err := s.backend.Read(looseKey(h))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return s.readFromPacks(h)
		}
		return "", nil, fmt.Errorf("object read %s: %w", h, err)
	}

	objType, content, err := parseObjectEnvelope(raw, h)
	if err != nil {
		return "", nil, fmt.Errorf("object read %s: %w: %v", h, ErrCorrupt, err)
	}
	if actual := HashObject(objType, content); actual != h {
		return "", nil, fmt.Errorf("object read %s: %w: content hashes to %s", h, ErrCorrupt, actual)
	}
	return objType, content, nil
}

// makeObjectEnvelope prepends the canonical "type len\0" header.
func makeObjectEnvelope(objType Type, data []byte) []byte {
	header := fmt.Sprintf("%s %d\x00", objType, len(data))
	out := make([]byte, 0, len(header)+len(data))
	out = append(out, header...)
	out = append(out, data...)
	return out
}

// parseObjectEnvelope splits "type len\0content" and validates the
// declared length.
func parseObjectEnvelope(raw []byte, h Hash) (Type, []byte, error) {
	nulIdx := bytes.IndexByte(raw, 0)
	if nulIdx < 0 {
		return "", nil, fmt.Errorf("invalid envelope for %s (no NUL)", h)
	}
	header := string(raw[:nulIdx])
	content := raw[nulIdx+1:]

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return "", nil, fmt.Errorf("invalid envelope header %q", header)
	}
	objType := Type(parts[0])
	length, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", nil, fmt.Errorf("invalid envelope length %q: %w", parts[1], err)
	}
	if len(content) != length {
		return "", nil, fmt.Errorf("envelope length mismatch (header=%d, actual=%d)", length, len(content))
	}
	return objType, content, nil
}

// ---------------------------------------------------------------------------
// Typed convenience methods
// ---------------------------------------------------------------------------

// WriteBlob serializes and stores a Blob.
func (s *Store) WriteBlob(b *Blob) (Hash, error) {
	return s.Write(TypeBlob, MarshalBlob(b))
}

// ReadBlob reads and deserializes a Blob.
func (s *Store) ReadBlob(h Hash) (*Blob, error) {
	data, err := s.readTyped(h, TypeBlob)
	if err != nil {
		return nil, err
	}
	return UnmarshalBlob(data)
}

// WriteTree serializes and stores a Tree.
func (s *Store) WriteTree(tr *Tree) (Hash, error) {
	data, err := MarshalTree(tr)
	if err != nil {
		return "", err
	}
	return s.Write(TypeTree, data)
}

// ReadTree reads and deserializes a Tree.
func (s *Store) ReadTree(h Hash) (*Tree, error) {
	data, err := s.readTyped(h, TypeTree)
	if err != nil {
		return nil, err
	}
	return UnmarshalTree(data)
}

// WriteCommit serializes and stores a Commit.
func (s *Store) WriteCommit(c *Commit) (Hash, error) {
	return s.Write(TypeCommit, MarshalCommit(c))
}

// ReadCommit reads and deserializes a Commit.
func (s *Store) ReadCommit(h Hash) (*Commit, error) {
	data, err := s.readTyped(h, TypeCommit)
	if err != nil {
		return nil, err
	}
	return UnmarshalCommit(data)
}

// WriteTag serializes and stores a Tag.
func (s *Store) WriteTag(t *Tag) (Hash, error) {
	return s.Write(TypeTag, MarshalTag(t))
}

// ReadTag reads and deserializes a Tag.
func (s *Store) ReadTag(h Hash) (*Tag, error) {
	data, err := s.readTyped(h, TypeTag)
	if err != nil {
		return nil, err
	}
	return UnmarshalTag(data)
}

func (s *Store) readTyped(h Hash, want Type) ([]byte, error) {
	objType, data, err := s.Read(h)
	if err != nil {
		return nil, err
	}
	if objType != want {
		return nil, fmt.Errorf("object %s: %w: got %q, want %q", h, ErrTypeMismatch, objType, want)
	}
	return data, nil
}
