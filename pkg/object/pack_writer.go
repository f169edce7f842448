package object

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"

	"github.com/klauspost/compress/zlib"
)

type countedWriter struct {
	w io.Writer
	n uint64
}

func (cw *countedWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += uint64(n)
	return n, err
}

func compressPackPayload(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		_ = zw.Close()
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// PackWriter writes Git-format pack streams with zlib-compressed object
// entries. The trailer checksum is SHA-256 over all bytes preceding the
// trailer. A PackWriter is single-use and not safe for concurrent use;
// callers serialize entry writes.
type PackWriter struct {
	out      io.Writer
	hasher   hash.Hash
	hashedW  io.Writer
	counter  *countedWriter
	expected uint32
	written  uint32
	finished bool
}

// NewPackWriter initializes a writer and emits the fixed pack header.
func NewPackWriter(out io.Writer, numObjects uint32) (*PackWriter, error) {
	hasher := sha256.New()
	counter := &countedWriter{w: out}
	pw := &PackWriter{
		out:      out,
		hasher:   hasher,
		hashedW:  io.MultiWriter(counter, hasher),
		counter:  counter,
		expected: numObjects,
	}

	header := PackHeader{
		Version:    supportedPackVersion,
		NumObjects: numObjects,
	}
	if _, err := pw.hashedW.Write(header.Marshal()); err != nil {
		return nil, fmt.Errorf("write pack header: %w", err)
	}
	return pw, nil
}

// CurrentOffset returns the current byte offset from pack start, excluding
// the trailing checksum written by Finish.
func (p *PackWriter) CurrentOffset() uint64 {
	return p.counter.n
}

// WriteEntry appends one full (non-delta) object entry.
func (p *PackWriter) WriteEntry(objType PackObjectType, data []byte) error {
	if err := p.checkWritable(); err != nil {
		return err
	}

	header := encodePackEntryHeader(objType, uint64(len(data)))
	if _, err := p.hashedW.Write(header); err != nil {
		return fmt.Errorf("write pack entry header: %w", err)
	}

	compressed, err := compressPackPayload(data)
	if err != nil {
		return fmt.Errorf("compress pack entry: %w", err)
	}
	if _, err := p.hashedW.Write(compressed); err != nil {
		return fmt.Errorf("write compressed pack entry: %w", err)
	}

	p.written++
	return nil
}

// WriteOfsDelta writes an OFS_DELTA entry carrying a precomputed delta
// stream against the entry at baseOffset.
func (p *PackWriter) WriteOfsDelta(baseOffset uint64, delta []byte) error {
	if err := p.checkWritable(); err != nil {
		return err
	}
	current := p.CurrentOffset()
	if baseOffset >= current {
		return fmt.Errorf("base offset %d must be before current offset %d", baseOffset, current)
	}

	header := encodePackEntryHeader(PackOfsDelta, uint64(len(delta)))
	ofs := encodeOfsDeltaDistance(current - baseOffset)
	compressed, err := compressPackPayload(delta)
	if err != nil {
		return fmt.Errorf("compress delta payload: %w", err)
	}

	if _, err := p.hashedW.Write(header); err != nil {
		return fmt.Errorf("write ofs-delta header: %w", err)
	}
	if _, err := p.hashedW.Write(ofs); err != nil {
		return fmt.Errorf("write ofs-delta base distance: %w", err)
	}
	if _, err := p.hashedW.Write(compressed); err != nil {
		return fmt.Errorf("write ofs-delta payload: %w", err)
	}

	p.written++
	return nil
}

func (p *PackWriter) checkWritable() error {
	if p.finished {
		return fmt.Errorf("pack writer already finished")
	}
	if p.written >= p.expected {
		return fmt.Errorf("pack object count exceeded: expected %d", p.expected)
	}
	return nil
}

// Finish validates the object count, writes the trailing pack checksum,
// and returns that checksum as a hex digest.
func (p *PackWriter) Finish() (Hash, error) {
	if p.finished {
		return "", fmt.Errorf("pack writer already finished")
	}
	if p.written != p.expected {
		return "", fmt.Errorf("pack object count mismatch: wrote %d, expected %d", p.written, p.expected)
	}

	sum := p.hasher.Sum(nil)
	if _, err := p.out.Write(sum); err != nil {
		return "", fmt.Errorf("write pack trailer checksum: %w", err)
	}

	p.finished = true
	return Hash(hex.EncodeToString(sum)), nil
}
