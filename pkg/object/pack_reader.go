package object

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// PackEntry is one decoded object entry in a pack stream. For OFS_DELTA
// entries in a raw read, Data holds the delta stream and BaseOffset the
// absolute offset of the base entry; a resolved read replaces Data with
// the reconstructed object and rewrites Type to the base's type.
type PackEntry struct {
	Type       PackObjectType
	Size       uint64
	Offset     uint64
	BaseOffset uint64
	Data       []byte
}

// PackFile is the decoded content of a full pack stream.
type PackFile struct {
	Header   PackHeader
	Entries  []PackEntry
	Checksum Hash
}

// ReadPack parses a full pack byte slice, verifies the trailer checksum,
// and returns decoded entries with delta streams left unresolved.
func ReadPack(data []byte) (*PackFile, error) {
	if len(data) < packHeaderSize+sha256.Size {
		return nil, fmt.Errorf("pack too short: %d", len(data))
	}

	payload := data[:len(data)-sha256.Size]
	trailer := data[len(data)-sha256.Size:]

	sum := sha256.Sum256(payload)
	if !bytes.Equal(sum[:], trailer) {
		return nil, fmt.Errorf("pack checksum mismatch")
	}

	header, err := UnmarshalPackHeader(payload[:packHeaderSize])
	if err != nil {
		return nil, err
	}

	offset := packHeaderSize
	entries := make([]PackEntry, 0, header.NumObjects)
	for i := uint32(0); i < header.NumObjects; i++ {
		entryStart := uint64(offset)
		objType, size, n, err := decodePackEntryHeader(payload[offset:])
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		offset += n

		var baseOffset uint64
		if objType == PackOfsDelta {
			distance, n, err := decodeOfsDeltaDistance(payload[offset:])
			if err != nil {
				return nil, fmt.Errorf("entry %d: %w", i, err)
			}
			offset += n
			if distance > entryStart {
				return nil, fmt.Errorf("entry %d: ofs-delta distance %d before pack start", i, distance)
			}
			baseOffset = entryStart - distance
		}

		if offset >= len(payload) {
			return nil, fmt.Errorf("entry %d: missing compressed payload", i)
		}
		sub := bytes.NewReader(payload[offset:])
		zr, err := zlib.NewReader(sub)
		if err != nil {
			return nil, fmt.Errorf("entry %d: zlib reader: %w", i, err)
		}
		raw, err := io.ReadAll(zr)
		if err != nil {
			_ = zr.Close()
			return nil, fmt.Errorf("entry %d: decompress: %w", i, err)
		}
		if err := zr.Close(); err != nil {
			return nil, fmt.Errorf("entry %d: close zlib stream: %w", i, err)
		}
		if uint64(len(raw)) != size {
			return nil, fmt.Errorf("entry %d: size mismatch header=%d decoded=%d", i, size, len(raw))
		}

		consumed := len(payload[offset:]) - sub.Len()
		offset += consumed

		entries = append(entries, PackEntry{
			Type:       objType,
			Size:       size,
			Offset:     entryStart,
			BaseOffset: baseOffset,
			Data:       raw,
		})
	}

	if offset != len(payload) {
		return nil, fmt.Errorf("pack has trailing undecoded bytes: %d", len(payload)-offset)
	}

	return &PackFile{
		Header:   *header,
		Entries:  entries,
		Checksum: Hash(hex.EncodeToString(trailer)),
	}, nil
}

// ReadPackResolved parses a pack and resolves all OFS_DELTA entries
// against their bases, so every returned entry carries full object bytes.
// Delta chains are followed transitively.
func ReadPackResolved(data []byte) (*PackFile, error) {
	pf, err := ReadPack(data)
	if err != nil {
		return nil, err
	}

	byOffset := make(map[uint64]int, len(pf.Entries))
	for i, e := range pf.Entries {
		byOffset[e.Offset] = i
	}

	resolved := make([]bool, len(pf.Entries))
	var resolve func(i int, depth int) error
	resolve = func(i int, depth int) error {
		if resolved[i] {
			return nil
		}
		if depth > len(pf.Entries) {
			return fmt.Errorf("delta chain cycle at offset %d", pf.Entries[i].Offset)
		}
		e := &pf.Entries[i]
		if e.Type != PackOfsDelta {
			resolved[i] = true
			return nil
		}

		baseIdx, ok := byOffset[e.BaseOffset]
		if !ok {
			return fmt.Errorf("ofs-delta at offset %d: no base entry at offset %d", e.Offset, e.BaseOffset)
		}
		if err := resolve(baseIdx, depth+1); err != nil {
			return err
		}
		base := pf.Entries[baseIdx]

		full, err := ApplyDelta(base.Data, e.Data)
		if err != nil {
			return fmt.Errorf("ofs-delta at offset %d: %w", e.Offset, err)
		}
		e.Type = base.Type
		e.Data = full
		e.Size = uint64(len(full))
		resolved[i] = true
		return nil
	}

	for i := range pf.Entries {
		if err := resolve(i, 0); err != nil {
			return nil, err
		}
	}
	return pf, nil
}

// ReadPackFromReader reads a complete pack stream from r and delegates to
// ReadPack.
func ReadPackFromReader(r io.Reader) (*PackFile, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read pack stream: %w", err)
	}
	return ReadPack(data)
}
