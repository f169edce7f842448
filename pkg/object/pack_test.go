package object

import (
	"bytes"
	"context"
	"fmt"
	"hash/crc32"
	"os"
	"testing"
)

func TestDeltaRoundTrip(t *testing.T) {
	base := []byte("the quick brown fox jumps over the lazy dog\nand again\nline three\n")
	target := []byte("the quick brown fox leaps over the lazy dog\nand again\nline three\nnew tail\n")

	delta := BuildDelta(base, target)
	got, err := ApplyDelta(base, delta)
	if err != nil {
		t.Fatalf("ApplyDelta: %v", err)
	}
	if !bytes.Equal(got, target) {
		t.Errorf("Delta round-trip: got %q, want %q", got, target)
	}
}

func TestDeltaCompresses(t *testing.T) {
	base := bytes.Repeat([]byte("0123456789abcdef"), 256)
	target := append(append([]byte("prefix "), base...), []byte(" suffix")...)

	delta := BuildDelta(base, target)
	if len(delta) >= len(target)/2 {
		t.Errorf("Delta not compact: %d bytes for %d-byte target", len(delta), len(target))
	}
	got, err := ApplyDelta(base, delta)
	if err != nil {
		t.Fatalf("ApplyDelta: %v", err)
	}
	if !bytes.Equal(got, target) {
		t.Error("Delta round-trip mismatch")
	}
}

func TestDeltaEmptyAndDisjoint(t *testing.T) {
	// No shared content: the delta degenerates to inserts but must still apply.
	base := []byte("aaaaaaaaaaaaaaaaaaaaaaaa")
	target := []byte("zzzzzzzzzzzzzzzzzzzzzzzzzz")
	got, err := ApplyDelta(base, BuildDelta(base, target))
	if err != nil {
		t.Fatalf("ApplyDelta: %v", err)
	}
	if !bytes.Equal(got, target) {
		t.Error("Disjoint delta mismatch")
	}

	got, err = ApplyDelta(nil, BuildDelta(nil, target))
	if err != nil {
		t.Fatalf("ApplyDelta empty base: %v", err)
	}
	if !bytes.Equal(got, target) {
		t.Error("Empty-base delta mismatch")
	}
}

func TestApplyDeltaRejectsWrongBase(t *testing.T) {
	base := []byte("some base content for the delta")
	delta := BuildDelta(base, []byte("some base content for the delta plus"))
	if _, err := ApplyDelta([]byte("short"), delta); err == nil {
		t.Error("ApplyDelta with wrong base size should fail")
	}
}

func TestOfsDeltaDistanceRoundTrip(t *testing.T) {
	for _, d := range []uint64{1, 127, 128, 255, 256, 1 << 14, 1 << 20, 1 << 31} {
		enc := encodeOfsDeltaDistance(d)
		got, n, err := decodeOfsDeltaDistance(enc)
		if err != nil {
			t.Fatalf("decode %d: %v", d, err)
		}
		if got != d || n != len(enc) {
			t.Errorf("Distance %d: got %d (n=%d, len=%d)", d, got, n, len(enc))
		}
	}
}

func TestPackEntryHeaderRoundTrip(t *testing.T) {
	for _, tc := range []struct {
		pt   PackObjectType
		size uint64
	}{
		{PackCommit, 0},
		{PackBlob, 15},
		{PackBlob, 16},
		{PackTree, 1 << 20},
		{PackOfsDelta, 12345},
	} {
		enc := encodePackEntryHeader(tc.pt, tc.size)
		pt, size, n, err := decodePackEntryHeader(enc)
		if err != nil {
			t.Fatalf("decode %v/%d: %v", tc.pt, tc.size, err)
		}
		if pt != tc.pt || size != tc.size || n != len(enc) {
			t.Errorf("Header %v/%d: got %v/%d (n=%d)", tc.pt, tc.size, pt, size, n)
		}
	}
}

func TestPackWriterReaderRoundTrip(t *testing.T) {
	entries := [][]byte{
		[]byte("first object payload"),
		[]byte("second payload, rather longer than the first one"),
		[]byte(""),
	}

	var buf bytes.Buffer
	pw, err := NewPackWriter(&buf, uint32(len(entries)))
	if err != nil {
		t.Fatalf("NewPackWriter: %v", err)
	}
	for _, e := range entries {
		if err := pw.WriteEntry(PackBlob, e); err != nil {
			t.Fatalf("WriteEntry: %v", err)
		}
	}
	checksum, err := pw.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if len(checksum) != 64 {
		t.Errorf("Checksum length: got %d, want 64", len(checksum))
	}

	pf, err := ReadPack(buf.Bytes())
	if err != nil {
		t.Fatalf("ReadPack: %v", err)
	}
	if pf.Checksum != checksum {
		t.Errorf("Checksum: got %s, want %s", pf.Checksum, checksum)
	}
	if len(pf.Entries) != len(entries) {
		t.Fatalf("Entries: got %d, want %d", len(pf.Entries), len(entries))
	}
	for i, e := range pf.Entries {
		if e.Type != PackBlob {
			t.Errorf("Entry %d type: got %v", i, e.Type)
		}
		if !bytes.Equal(e.Data, entries[i]) {
			t.Errorf("Entry %d data: got %q, want %q", i, e.Data, entries[i])
		}
	}
}

func TestPackWriterCountMismatch(t *testing.T) {
	var buf bytes.Buffer
	pw, err := NewPackWriter(&buf, 2)
	if err != nil {
		t.Fatalf("NewPackWriter: %v", err)
	}
	if err := pw.WriteEntry(PackBlob, []byte("only one")); err != nil {
		t.Fatalf("WriteEntry: %v", err)
	}
	if _, err := pw.Finish(); err == nil {
		t.Error("Finish with missing entries should fail")
	}
}

func TestPackOfsDeltaResolution(t *testing.T) {
	base := []byte("shared shared shared shared payload body")
	target := append([]byte("prefix! "), base...)
	delta := BuildDelta(base, target)

	var buf bytes.Buffer
	pw, err := NewPackWriter(&buf, 2)
	if err != nil {
		t.Fatalf("NewPackWriter: %v", err)
	}
	baseOffset := pw.CurrentOffset()
	if err := pw.WriteEntry(PackBlob, base); err != nil {
		t.Fatalf("WriteEntry: %v", err)
	}
	if err := pw.WriteOfsDelta(baseOffset, delta); err != nil {
		t.Fatalf("WriteOfsDelta: %v", err)
	}
	if _, err := pw.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	pf, err := ReadPackResolved(buf.Bytes())
	if err != nil {
		t.Fatalf("ReadPackResolved: %v", err)
	}
	if len(pf.Entries) != 2 {
		t.Fatalf("Entries: got %d, want 2", len(pf.Entries))
	}
	resolved := pf.Entries[1]
	if resolved.Type != PackBlob {
		t.Errorf("Resolved type: got %v, want PackBlob", resolved.Type)
	}
	if !bytes.Equal(resolved.Data, target) {
		t.Errorf("Resolved data: got %q, want %q", resolved.Data, target)
	}
}

func TestPackIndexRoundTripAndFind(t *testing.T) {
	var entries []PackIndexEntry
	for i := 0; i < 300; i++ {
		data := []byte(fmt.Sprintf("object %d", i))
		entries = append(entries, PackIndexEntry{
			Hash:   HashObject(TypeBlob, data),
			Offset: uint64(12 + i*40),
			CRC32:  crc32.ChecksumIEEE(data),
		})
	}
	packChecksum := HashBytes([]byte("pack"))

	var buf bytes.Buffer
	idxChecksum, err := WritePackIndex(&buf, entries, packChecksum)
	if err != nil {
		t.Fatalf("WritePackIndex: %v", err)
	}

	idx, err := ReadPackIndex(buf.Bytes())
	if err != nil {
		t.Fatalf("ReadPackIndex: %v", err)
	}
	if idx.PackChecksum != packChecksum {
		t.Errorf("PackChecksum: got %s, want %s", idx.PackChecksum, packChecksum)
	}
	if idx.IndexChecksum != idxChecksum {
		t.Errorf("IndexChecksum: got %s, want %s", idx.IndexChecksum, idxChecksum)
	}
	if len(idx.Entries()) != len(entries) {
		t.Fatalf("Entries: got %d, want %d", len(idx.Entries()), len(entries))
	}

	for _, want := range entries {
		got, ok := idx.Find(want.Hash)
		if !ok {
			t.Fatalf("Find(%s): not found", want.Hash.Short())
		}
		if got.Offset != want.Offset || got.CRC32 != want.CRC32 {
			t.Errorf("Find(%s): got %+v, want %+v", want.Hash.Short(), got, want)
		}
	}
	if _, ok := idx.Find(HashBytes([]byte("absent"))); ok {
		t.Error("Find returned an entry for an absent hash")
	}
}

func TestPackIndexRejectsDuplicates(t *testing.T) {
	h := HashBytes([]byte("dup"))
	entries := []PackIndexEntry{
		{Hash: h, Offset: 12},
		{Hash: h, Offset: 52},
	}
	var buf bytes.Buffer
	if _, err := WritePackIndex(&buf, entries, HashBytes([]byte("pack"))); err == nil {
		t.Error("WritePackIndex should reject duplicate hashes")
	}
}

func TestBuilderLifecycle(t *testing.T) {
	s, _ := tempStore(t)
	b := NewBuilder(s)
	if b.State() != StateCreated {
		t.Errorf("State: got %v, want StateCreated", b.State())
	}

	h, err := s.Write(TypeBlob, []byte("payload"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := b.Add(h); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := b.Add(h); err != nil {
		t.Fatalf("Add duplicate: %v", err)
	}
	if b.Count() != 1 {
		t.Errorf("Count after duplicate add: got %d, want 1", b.Count())
	}
	if b.State() != StatePopulating {
		t.Errorf("State: got %v, want StatePopulating", b.State())
	}

	var packBuf, idxBuf bytes.Buffer
	if _, err := b.Finalize(context.Background(), &packBuf, &idxBuf, BuildOptions{}); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if b.State() != StateDone {
		t.Errorf("State: got %v, want StateDone", b.State())
	}
	if err := b.Add(h); err == nil {
		t.Error("Add after Finalize should fail")
	}
}

func TestBuilderAddRecursiveMissing(t *testing.T) {
	s, _ := tempStore(t)
	b := NewBuilder(s)
	if err := b.AddRecursive(HashBytes([]byte("nope"))); err == nil {
		t.Error("AddRecursive of a missing root should fail")
	}
}

type countingProgress struct {
	calls int
	last  int
	total int
}

func (p *countingProgress) ObjectWritten(written, total int) {
	p.calls++
	p.last = written
	p.total = total
}

func TestBuilderEndToEnd(t *testing.T) {
	s, _ := tempStore(t)
	b := NewBuilder(s)

	// >100 objects; consecutive blobs share long runs so delta search
	// has material to work with.
	common := bytes.Repeat([]byte("shared line of considerable length\n"), 40)
	var hashes []Hash
	for i := 0; i < 120; i++ {
		data := append([]byte(fmt.Sprintf("header %d\n", i)), common...)
		h, err := s.Write(TypeBlob, data)
		if err != nil {
			t.Fatalf("Write %d: %v", i, err)
		}
		hashes = append(hashes, h)
		if err := b.Add(h); err != nil {
			t.Fatalf("Add %d: %v", i, err)
		}
	}

	progress := &countingProgress{}
	var packBuf, idxBuf bytes.Buffer
	result, err := b.Finalize(context.Background(), &packBuf, &idxBuf, BuildOptions{
		Deltas:   true,
		Progress: progress,
	})
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if result.Objects != 120 {
		t.Errorf("Objects: got %d, want 120", result.Objects)
	}
	if result.Deltas == 0 {
		t.Error("Expected at least one delta among similar blobs")
	}
	if progress.calls != 120 || progress.last != 120 || progress.total != 120 {
		t.Errorf("Progress: calls=%d last=%d total=%d", progress.calls, progress.last, progress.total)
	}

	// The pack must resolve back to exactly the stored objects.
	pf, err := ReadPackResolved(packBuf.Bytes())
	if err != nil {
		t.Fatalf("ReadPackResolved: %v", err)
	}
	if pf.Checksum != result.PackChecksum {
		t.Errorf("Pack checksum: got %s, want %s", pf.Checksum, result.PackChecksum)
	}
	seen := make(map[Hash]bool)
	for _, e := range pf.Entries {
		objType, ok := packTypeToType(e.Type)
		if !ok {
			t.Fatalf("Unresolved entry type %v", e.Type)
		}
		seen[HashObject(objType, e.Data)] = true
	}
	for _, h := range hashes {
		if !seen[h] {
			t.Errorf("Pack missing object %s", h.Short())
		}
	}

	// And the index must locate every object.
	idx, err := ReadPackIndex(idxBuf.Bytes())
	if err != nil {
		t.Fatalf("ReadPackIndex: %v", err)
	}
	if idx.PackChecksum != result.PackChecksum {
		t.Errorf("Index pack checksum mismatch")
	}
	for _, h := range hashes {
		if _, ok := idx.Find(h); !ok {
			t.Errorf("Index missing %s", h.Short())
		}
	}
}

func TestBuilderFinalizeCancelled(t *testing.T) {
	s, _ := tempStore(t)
	b := NewBuilder(s)
	for i := 0; i < 10; i++ {
		h, err := s.Write(TypeBlob, []byte(fmt.Sprintf("obj %d", i)))
		if err != nil {
			t.Fatalf("Write: %v", err)
		}
		if err := b.Add(h); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var packBuf, idxBuf bytes.Buffer
	if _, err := b.Finalize(ctx, &packBuf, &idxBuf, BuildOptions{}); err == nil {
		t.Error("Finalize with cancelled context should fail")
	}
}

func TestInstallPackReadThrough(t *testing.T) {
	src, _ := tempStore(t)
	b := NewBuilder(src)

	var hashes []Hash
	for i := 0; i < 20; i++ {
		h, err := src.Write(TypeBlob, []byte(fmt.Sprintf("packed object %d", i)))
		if err != nil {
			t.Fatalf("Write: %v", err)
		}
		hashes = append(hashes, h)
		if err := b.Add(h); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	var packBuf, idxBuf bytes.Buffer
	result, err := b.Finalize(context.Background(), &packBuf, &idxBuf, BuildOptions{Deltas: true})
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	// Install into a fresh store holding no loose copies.
	dst, _ := tempStore(t)
	if err := dst.InstallPack(result.PackChecksum, packBuf.Bytes(), idxBuf.Bytes()); err != nil {
		t.Fatalf("InstallPack: %v", err)
	}
	for i, h := range hashes {
		if !dst.Has(h) {
			t.Errorf("Has(%s) false after install", h.Short())
		}
		objType, data, err := dst.Read(h)
		if err != nil {
			t.Fatalf("Read packed %d: %v", i, err)
		}
		if objType != TypeBlob {
			t.Errorf("Type: got %v", objType)
		}
		if string(data) != fmt.Sprintf("packed object %d", i) {
			t.Errorf("Data: got %q", data)
		}
	}
}

func TestVerify(t *testing.T) {
	s, _ := tempStore(t)
	b := NewBuilder(s)
	for i := 0; i < 15; i++ {
		h, err := s.Write(TypeBlob, []byte(fmt.Sprintf("verified %d", i)))
		if err != nil {
			t.Fatalf("Write: %v", err)
		}
		if err := b.Add(h); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	var packBuf, idxBuf bytes.Buffer
	result, err := b.Finalize(context.Background(), &packBuf, &idxBuf, BuildOptions{})
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if err := s.InstallPack(result.PackChecksum, packBuf.Bytes(), idxBuf.Bytes()); err != nil {
		t.Fatalf("InstallPack: %v", err)
	}

	summary, err := s.Verify()
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if summary.LooseObjects != 15 {
		t.Errorf("LooseObjects: got %d, want 15", summary.LooseObjects)
	}
	if summary.PackFiles != 1 {
		t.Errorf("PackFiles: got %d, want 1", summary.PackFiles)
	}
	if summary.PackObjects != 15 {
		t.Errorf("PackObjects: got %d, want 15", summary.PackObjects)
	}
}

func BenchmarkBuildDelta(b *testing.B) {
	base := bytes.Repeat([]byte("a reasonably long line of content that repeats\n"), 200)
	target := append([]byte("new preamble\n"), base...)
	target = append(target, []byte("appended trailer\n")...)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		BuildDelta(base, target)
	}
}

func BenchmarkApplyDelta(b *testing.B) {
	base := bytes.Repeat([]byte("a reasonably long line of content that repeats\n"), 200)
	target := append([]byte("new preamble\n"), base...)
	delta := BuildDelta(base, target)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := ApplyDelta(base, delta); err != nil {
			b.Fatal(err)
		}
	}
}

func TestVerifyDetectsTamperedLoose(t *testing.T) {
	s, dir := tempStore(t)
	h, err := s.Write(TypeBlob, []byte("will be tampered"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	path := loosePath(dir, h)
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	raw[len(raw)-1] ^= 1
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := s.Verify(); err == nil {
		t.Error("Verify should report the tampered object")
	}
}
