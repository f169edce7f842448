package object

import (
	"fmt"
	"strings"
)

const packKeyPrefix = "objects/pack/"

// VerifySummary reports the outcome of Store.Verify.
type VerifySummary struct {
	LooseObjects int
	PackFiles    int
	PackObjects  int
}

func (s *Store) listPackIndexKeys() ([]string, error) {
	keys, err := s.backend.List(packKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("list pack dir: %w", err)
	}
	idxKeys := keys[:0]
	for _, k := range keys {
		if strings.HasSuffix(k, ".idx") {
			idxKeys = append(idxKeys, k)
		}
	}
	return idxKeys, nil
}

func packKeyForIndex(idxKey string) string {
	return strings.TrimSuffix(idxKey, ".idx") + ".pack"
}

// readFromPacks searches every finalized pack for h. The pack checksum in
// the idx must match the pack trailer before any entry is trusted.
func (s *Store) readFromPacks(h Hash) (Type, []byte, error) {
	idxKeys, err := s.listPackIndexKeys()
	if err != nil {
		return "", nil, err
	}
	for _, idxKey := range idxKeys {
		idxData, err := s.backend.Read(idxKey)
		if err != nil {
			return "", nil, fmt.Errorf("object read %s: read pack index %s: %w", h, idxKey, err)
		}
		idx, err := ReadPackIndex(idxData)
		if err != nil {
			return "", nil, fmt.Errorf("object read %s: parse pack index %s: %w", h, idxKey, err)
		}
		indexEntry, ok := idx.Find(h)
		if !ok {
			continue
		}

		packKey := packKeyForIndex(idxKey)
		packData, err := s.backend.Read(packKey)
		if err != nil {
			return "", nil, fmt.Errorf("object read %s: read pack %s: %w", h, packKey, err)
		}
		pf, err := ReadPackResolved(packData)
		if err != nil {
			return "", nil, fmt.Errorf("object read %s: parse pack %s: %w", h, packKey, err)
		}
		if pf.Checksum != idx.PackChecksum {
			return "", nil, fmt.Errorf(
				"object read %s: %w: checksum mismatch between idx %s and pack %s",
				h, ErrCorrupt, idxKey, packKey,
			)
		}

		entry, ok := findPackEntryByOffset(pf.Entries, indexEntry.Offset)
		if !ok {
			return "", nil, fmt.Errorf(
				"object read %s: %w: pack %s missing entry at offset %d",
				h, ErrCorrupt, packKey, indexEntry.Offset,
			)
		}
		return decodeIndexedPackEntry(h, entry)
	}

	return "", nil, fmt.Errorf("object read %s: %w", h, ErrNotFound)
}

// decodeIndexedPackEntry validates a resolved pack entry against the hash
// the index claims for it.
func decodeIndexedPackEntry(expected Hash, entry PackEntry) (Type, []byte, error) {
	objType, ok := packTypeToType(entry.Type)
	if !ok {
		return "", nil, fmt.Errorf("object read %s: %w: unsupported packed type %d", expected, ErrCorrupt, entry.Type)
	}
	if computed := HashObject(objType, entry.Data); computed != expected {
		return "", nil, fmt.Errorf(
			"object read %s: %w: packed content hashes to %s",
			expected, ErrCorrupt, computed,
		)
	}
	return objType, entry.Data, nil
}

func findPackEntryByOffset(entries []PackEntry, offset uint64) (PackEntry, bool) {
	for _, entry := range entries {
		if entry.Offset == offset {
			return entry, true
		}
	}
	return PackEntry{}, false
}

func (s *Store) packedHashSet() (map[Hash]struct{}, error) {
	idxKeys, err := s.listPackIndexKeys()
	if err != nil {
		return nil, err
	}

	out := make(map[Hash]struct{})
	for _, idxKey := range idxKeys {
		if !s.backend.Exists(packKeyForIndex(idxKey)) {
			return nil, fmt.Errorf("pack for index %s is missing", idxKey)
		}

		idxData, err := s.backend.Read(idxKey)
		if err != nil {
			return nil, fmt.Errorf("read pack index %s: %w", idxKey, err)
		}
		idx, err := ReadPackIndex(idxData)
		if err != nil {
			return nil, fmt.Errorf("parse pack index %s: %w", idxKey, err)
		}
		for _, entry := range idx.Entries() {
			out[entry.Hash] = struct{}{}
		}
	}
	return out, nil
}

func (s *Store) listLooseObjectHashes() ([]Hash, error) {
	keys, err := s.backend.List("objects/")
	if err != nil {
		return nil, fmt.Errorf("list objects: %w", err)
	}
	hashes := make([]Hash, 0, len(keys))
	for _, k := range keys {
		rest, ok := strings.CutPrefix(k, "objects/")
		if !ok || strings.HasPrefix(rest, "pack/") {
			continue
		}
		prefix, suffix, ok := strings.Cut(rest, "/")
		if !ok || len(prefix) != 2 || len(suffix) != 62 {
			continue
		}
		h, err := ParseHash(prefix + suffix)
		if err != nil {
			continue
		}
		hashes = append(hashes, h)
	}
	return hashes, nil
}

// Verify checks object integrity across loose objects and pack/index
// entries: every stored object must re-hash to its claimed hash, and every
// idx must agree with its pack's content and trailer checksum.
func (s *Store) Verify() (*VerifySummary, error) {
	report := &VerifySummary{}

	looseHashes, err := s.listLooseObjectHashes()
	if err != nil {
		return nil, err
	}
	for _, h := range looseHashes {
		raw, err := s.backend.Read(looseKey(h))
		if err != nil {
			return nil, fmt.Errorf("verify loose %s: %w", h, err)
		}
		objType, content, err := parseObjectEnvelope(raw, h)
		if err != nil {
			return nil, fmt.Errorf("verify loose %s: %w: %v", h, ErrCorrupt, err)
		}
		if actual := HashObject(objType, content); actual != h {
			return nil, fmt.Errorf("verify loose %s: %w: content hashes to %s", h, ErrCorrupt, actual)
		}
		report.LooseObjects++
	}

	idxKeys, err := s.listPackIndexKeys()
	if err != nil {
		return nil, err
	}
	for _, idxKey := range idxKeys {
		idxData, err := s.backend.Read(idxKey)
		if err != nil {
			return nil, fmt.Errorf("verify pack index %s: %w", idxKey, err)
		}
		idx, err := ReadPackIndex(idxData)
		if err != nil {
			return nil, fmt.Errorf("verify pack index %s: %w", idxKey, err)
		}

		packKey := packKeyForIndex(idxKey)
		packData, err := s.backend.Read(packKey)
		if err != nil {
			return nil, fmt.Errorf("verify pack %s: %w", packKey, err)
		}
		pf, err := ReadPackResolved(packData)
		if err != nil {
			return nil, fmt.Errorf("verify pack %s: %w", packKey, err)
		}
		if pf.Checksum != idx.PackChecksum {
			return nil, fmt.Errorf(
				"verify pack %s: %w: checksum mismatch between idx (%s) and pack (%s)",
				packKey, ErrCorrupt, idx.PackChecksum, pf.Checksum,
			)
		}

		entries := idx.Entries()
		if len(entries) != len(pf.Entries) {
			return nil, fmt.Errorf(
				"verify pack %s: %w: idx entry count %d does not match pack entry count %d",
				packKey, ErrCorrupt, len(entries), len(pf.Entries),
			)
		}
		for _, indexEntry := range entries {
			packEntry, ok := findPackEntryByOffset(pf.Entries, indexEntry.Offset)
			if !ok {
				return nil, fmt.Errorf(
					"verify pack %s: %w: missing entry for hash %s at offset %d",
					packKey, ErrCorrupt, indexEntry.Hash, indexEntry.Offset,
				)
			}
			if _, _, err := decodeIndexedPackEntry(indexEntry.Hash, packEntry); err != nil {
				return nil, fmt.Errorf("verify pack %s: %w", packKey, err)
			}
			report.PackObjects++
		}
		report.PackFiles++
	}

	return report, nil
}
