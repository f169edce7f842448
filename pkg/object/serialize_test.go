package object

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestMarshalTreeCanonicalOrder(t *testing.T) {
	h := HashBytes([]byte("x"))
	a := &Tree{Entries: []TreeEntry{
		{Name: "b.go", Mode: ModeFile, Hash: h},
		{Name: "a.go", Mode: ModeFile, Hash: h},
	}}
	b := &Tree{Entries: []TreeEntry{
		{Name: "a.go", Mode: ModeFile, Hash: h},
		{Name: "b.go", Mode: ModeFile, Hash: h},
	}}
	da, err := MarshalTree(a)
	if err != nil {
		t.Fatalf("MarshalTree a: %v", err)
	}
	db, err := MarshalTree(b)
	if err != nil {
		t.Fatalf("MarshalTree b: %v", err)
	}
	if !bytes.Equal(da, db) {
		t.Error("Entry order changed the serialized form")
	}
	if HashObject(TypeTree, da) != HashObject(TypeTree, db) {
		t.Error("Entry order changed the tree hash")
	}
}

func TestMarshalTreeNameWithSpaces(t *testing.T) {
	h := HashBytes([]byte("x"))
	tr := &Tree{Entries: []TreeEntry{
		{Name: "read me.txt", Mode: ModeFile, Hash: h},
	}}
	data, err := MarshalTree(tr)
	if err != nil {
		t.Fatalf("MarshalTree: %v", err)
	}
	got, err := UnmarshalTree(data)
	if err != nil {
		t.Fatalf("UnmarshalTree: %v", err)
	}
	if len(got.Entries) != 1 || got.Entries[0].Name != "read me.txt" {
		t.Errorf("Name with spaces lost: %v", got.Entries)
	}
}

func TestMarshalTreeRejectsBadEntries(t *testing.T) {
	h := HashBytes([]byte("x"))
	cases := []struct {
		name    string
		entries []TreeEntry
	}{
		{"empty name", []TreeEntry{{Name: "", Mode: ModeFile, Hash: h}}},
		{"slash in name", []TreeEntry{{Name: "a/b", Mode: ModeFile, Hash: h}}},
		{"newline in name", []TreeEntry{{Name: "a\nb", Mode: ModeFile, Hash: h}}},
		{"duplicate names", []TreeEntry{
			{Name: "a", Mode: ModeFile, Hash: h},
			{Name: "a", Mode: ModeDir, Hash: h},
		}},
		{"unknown mode", []TreeEntry{{Name: "a", Mode: "777", Hash: h}}},
		{"zero hash", []TreeEntry{{Name: "a", Mode: ModeFile, Hash: ""}}},
	}
	for _, tc := range cases {
		if _, err := MarshalTree(&Tree{Entries: tc.entries}); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
}

func TestUnmarshalTreeRejectsUnsorted(t *testing.T) {
	h := string(HashBytes([]byte("x")))
	data := []byte(ModeFile + " " + h + " b\n" + ModeFile + " " + h + " a\n")
	_, err := UnmarshalTree(data)
	if !errors.Is(err, ErrMalformed) {
		t.Errorf("Unsorted tree: got %v, want ErrMalformed", err)
	}
}

func TestCommitRoundTripWithSignature(t *testing.T) {
	orig := &Commit{
		TreeHash:          HashBytes([]byte("tree")),
		Parents:           []Hash{HashBytes([]byte("p1")), HashBytes([]byte("p2"))},
		Author:            "Ada <ada@example.com>",
		AuthorTime:        1700000000,
		AuthorTimezone:    "+0100",
		Committer:         "Bob <bob@example.com>",
		CommitterTime:     1700000500,
		CommitterTimezone: "-0500",
		Signature:         "sshsig-v1:ssh-ed25519:cHVi:c2ln",
		Message:           "merge things\n\nbody text\n",
	}
	got, err := UnmarshalCommit(MarshalCommit(orig))
	if err != nil {
		t.Fatalf("UnmarshalCommit: %v", err)
	}
	if got.Signature != orig.Signature {
		t.Errorf("Signature: got %q, want %q", got.Signature, orig.Signature)
	}
	if len(got.Parents) != 2 || got.Parents[0] != orig.Parents[0] || got.Parents[1] != orig.Parents[1] {
		t.Errorf("Parents mismatch: %v", got.Parents)
	}
	if got.Author != orig.Author || got.Committer != orig.Committer {
		t.Errorf("Identity mismatch")
	}
	if got.Message != orig.Message {
		t.Errorf("Message: got %q, want %q", got.Message, orig.Message)
	}
}

func TestCommitDefaultTimezone(t *testing.T) {
	c := &Commit{
		TreeHash:      HashBytes([]byte("tree")),
		Author:        "A <a@e>",
		AuthorTime:    1,
		Committer:     "A <a@e>",
		CommitterTime: 1,
		Message:       "m",
	}
	got, err := UnmarshalCommit(MarshalCommit(c))
	if err != nil {
		t.Fatalf("UnmarshalCommit: %v", err)
	}
	if got.AuthorTimezone != "+0000" || got.CommitterTimezone != "+0000" {
		t.Errorf("Timezone default: got %q/%q, want +0000", got.AuthorTimezone, got.CommitterTimezone)
	}
}

func TestUnmarshalCommitUnknownHeader(t *testing.T) {
	c := &Commit{
		TreeHash:      HashBytes([]byte("tree")),
		Author:        "A <a@e>",
		AuthorTime:    1,
		Committer:     "A <a@e>",
		CommitterTime: 1,
		Message:       "m",
	}
	data := string(MarshalCommit(c))
	data = strings.Replace(data, "\n\n", "\nfrobnicate yes\n\n", 1)
	_, err := UnmarshalCommit([]byte(data))
	if !errors.Is(err, ErrMalformed) {
		t.Errorf("Unknown header: got %v, want ErrMalformed", err)
	}
}

func TestUnmarshalCommitMissingTree(t *testing.T) {
	data := []byte("author A <a@e>\nauthor-time 1\ncommitter A <a@e>\ncommitter-time 1\n\nm")
	if _, err := UnmarshalCommit(data); !errors.Is(err, ErrMalformed) {
		t.Errorf("Missing tree: got %v, want ErrMalformed", err)
	}
}

func TestTagRoundTrip(t *testing.T) {
	orig := &Tag{
		TargetHash:     HashBytes([]byte("commit")),
		TargetType:     TypeCommit,
		Name:           "v2.1.0",
		Tagger:         "Rel <rel@e>",
		TaggerTime:     1700000000,
		TaggerTimezone: "+0900",
		Message:        "release notes\n",
	}
	got, err := UnmarshalTag(MarshalTag(orig))
	if err != nil {
		t.Fatalf("UnmarshalTag: %v", err)
	}
	if *got != *orig {
		t.Errorf("Tag round-trip: got %+v, want %+v", got, orig)
	}
}

func TestBlobRoundTrip(t *testing.T) {
	orig := &Blob{Data: []byte("binary \x00 data \xff")}
	got, err := UnmarshalBlob(MarshalBlob(orig))
	if err != nil {
		t.Fatalf("UnmarshalBlob: %v", err)
	}
	if !bytes.Equal(got.Data, orig.Data) {
		t.Errorf("Blob round-trip mismatch")
	}
}
