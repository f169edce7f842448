package object

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

func encodeDeltaVarint(v uint64) []byte {
	if v == 0 {
		return []byte{0}
	}
	out := make([]byte, 0, 10)
	for v > 0 {
		b := byte(v & 0x7f)
		v >>= 7
		if v > 0 {
			b |= 0x80
		}
		out = append(out, b)
	}
	return out
}

func decodeDeltaVarint(r io.ByteReader) (uint64, error) {
	var (
		value uint64
		shift uint
	)
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		value |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return value, nil
		}
		shift += 7
		if shift > 63 {
			return 0, fmt.Errorf("delta varint too large")
		}
	}
}

// encodeOfsDeltaDistance encodes a backward distance for OFS_DELTA entries.
func encodeOfsDeltaDistance(distance uint64) []byte {
	if distance == 0 {
		return []byte{0}
	}
	b := []byte{byte(distance & 0x7f)}
	for distance >>= 7; distance > 0; distance >>= 7 {
		distance--
		b = append([]byte{byte((distance & 0x7f) | 0x80)}, b...)
	}
	return b
}

func decodeOfsDeltaDistance(data []byte) (uint64, int, error) {
	if len(data) == 0 {
		return 0, 0, fmt.Errorf("ofs-delta distance truncated")
	}
	i := 0
	c := data[i]
	i++
	offset := uint64(c & 0x7f)
	for c&0x80 != 0 {
		if i >= len(data) {
			return 0, 0, fmt.Errorf("ofs-delta distance truncated")
		}
		c = data[i]
		i++
		offset = ((offset + 1) << 7) | uint64(c&0x7f)
	}
	return offset, i, nil
}

const (
	deltaBlockSize  = 16
	deltaMaxInsert  = 127
	deltaMaxCopy    = 0xffffff
	deltaMinCopyLen = deltaBlockSize
)

// BuildDelta computes a Git delta stream transforming base into target.
// Matching runs are located through a block-hash table over base and
// extended greedily in both directions; unmatched target bytes become
// literal inserts. The output is always a valid delta; in the worst case
// (nothing matches) it degenerates to pure inserts.
func BuildDelta(base, target []byte) []byte {
	var out bytes.Buffer
	out.Write(encodeDeltaVarint(uint64(len(base))))
	out.Write(encodeDeltaVarint(uint64(len(target))))

	blocks := indexBaseBlocks(base)

	var pending []byte
	flushInsert := func() {
		for len(pending) > 0 {
			chunk := len(pending)
			if chunk > deltaMaxInsert {
				chunk = deltaMaxInsert
			}
			out.WriteByte(byte(chunk))
			out.Write(pending[:chunk])
			pending = pending[chunk:]
		}
	}

	pos := 0
	for pos < len(target) {
		baseOff, matchLen := findBaseMatch(base, target, pos, blocks)
		if matchLen < deltaMinCopyLen {
			pending = append(pending, target[pos])
			pos++
			continue
		}

		// Extend the match backward into pending literal bytes; those
		// bytes precede pos in the target, so they do not advance it.
		backExt := 0
		for len(pending) > 0 && baseOff > 0 && base[baseOff-1] == pending[len(pending)-1] {
			pending = pending[:len(pending)-1]
			baseOff--
			matchLen++
			backExt++
		}

		flushInsert()
		pos += matchLen - backExt
		for matchLen > 0 {
			n := matchLen
			if n > deltaMaxCopy {
				n = deltaMaxCopy
			}
			writeCopyOp(&out, uint32(baseOff), uint32(n))
			baseOff += n
			matchLen -= n
		}
	}
	flushInsert()

	return out.Bytes()
}

func indexBaseBlocks(base []byte) map[uint64][]int {
	if len(base) < deltaBlockSize {
		return nil
	}
	blocks := make(map[uint64][]int, len(base)/deltaBlockSize)
	for off := 0; off+deltaBlockSize <= len(base); off += deltaBlockSize {
		key := blockKey(base[off : off+deltaBlockSize])
		blocks[key] = append(blocks[key], off)
	}
	return blocks
}

func blockKey(b []byte) uint64 {
	// FNV-1a over one block; cheap and collision-checked by byte compare.
	var h uint64 = 14695981039346656037
	for _, c := range b {
		h ^= uint64(c)
		h *= 1099511628211
	}
	return h
}

// findBaseMatch returns the longest match in base for the target suffix at
// pos, considering block-aligned candidates.
func findBaseMatch(base, target []byte, pos int, blocks map[uint64][]int) (int, int) {
	if blocks == nil || pos+deltaBlockSize > len(target) {
		return 0, 0
	}
	key := blockKey(target[pos : pos+deltaBlockSize])
	bestOff, bestLen := 0, 0
	for _, off := range blocks[key] {
		if !bytes.Equal(base[off:off+deltaBlockSize], target[pos:pos+deltaBlockSize]) {
			continue
		}
		n := deltaBlockSize
		for off+n < len(base) && pos+n < len(target) && base[off+n] == target[pos+n] {
			n++
		}
		if n > bestLen {
			bestOff, bestLen = off, n
		}
	}
	return bestOff, bestLen
}

// writeCopyOp emits a copy instruction: command byte with flag bits for
// each present offset/size byte, little-endian payload bytes following.
func writeCopyOp(out *bytes.Buffer, offset, size uint32) {
	var offBytes, sizeBytes [4]byte
	binary.LittleEndian.PutUint32(offBytes[:], offset)
	binary.LittleEndian.PutUint32(sizeBytes[:], size)

	cmd := byte(0x80)
	var payload []byte
	for i := 0; i < 4; i++ {
		if offBytes[i] != 0 {
			cmd |= 1 << uint(i)
			payload = append(payload, offBytes[i])
		}
	}
	for i := 0; i < 3; i++ {
		if sizeBytes[i] != 0 {
			cmd |= 0x10 << uint(i)
			payload = append(payload, sizeBytes[i])
		}
	}
	out.WriteByte(cmd)
	out.Write(payload)
}

// ApplyDelta applies Git delta instructions to base and returns the
// reconstructed target.
func ApplyDelta(base, delta []byte) ([]byte, error) {
	dr := bytes.NewReader(delta)

	baseSize, err := decodeDeltaVarint(dr)
	if err != nil {
		return nil, fmt.Errorf("read base size: %w", err)
	}
	if int(baseSize) != len(base) {
		return nil, fmt.Errorf("delta base size mismatch: got %d want %d", baseSize, len(base))
	}
	resultSize, err := decodeDeltaVarint(dr)
	if err != nil {
		return nil, fmt.Errorf("read result size: %w", err)
	}

	out := make([]byte, 0, resultSize)
	for dr.Len() > 0 {
		cmd, err := dr.ReadByte()
		if err != nil {
			return nil, err
		}
		if cmd&0x80 != 0 {
			offset, size, err := readCopyArgs(dr, cmd)
			if err != nil {
				return nil, err
			}
			if offset+size > int64(len(base)) {
				return nil, fmt.Errorf("delta copy out of bounds")
			}
			out = append(out, base[offset:offset+size]...)
			continue
		}

		if cmd == 0 {
			return nil, fmt.Errorf("invalid delta command: 0")
		}
		insert := make([]byte, int(cmd))
		if _, err := io.ReadFull(dr, insert); err != nil {
			return nil, fmt.Errorf("delta insert: %w", err)
		}
		out = append(out, insert...)
	}

	if uint64(len(out)) != resultSize {
		return nil, fmt.Errorf("delta result size mismatch: got %d expected %d", len(out), resultSize)
	}
	return out, nil
}

func readCopyArgs(r io.ByteReader, cmd byte) (offset, size int64, err error) {
	for i := 0; i < 4; i++ {
		if cmd&(1<<uint(i)) == 0 {
			continue
		}
		b, err := r.ReadByte()
		if err != nil {
			return 0, 0, fmt.Errorf("delta copy offset byte %d: %w", i, err)
		}
		offset |= int64(b) << (8 * uint(i))
	}
	for i := 0; i < 3; i++ {
		if cmd&(0x10<<uint(i)) == 0 {
			continue
		}
		b, err := r.ReadByte()
		if err != nil {
			return 0, 0, fmt.Errorf("delta copy size byte %d: %w", i, err)
		}
		size |= int64(b) << (8 * uint(i))
	}
	if size == 0 {
		size = 0x10000
	}
	return offset, size, nil
}
