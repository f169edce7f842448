package object

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Canonical serialization for the four object kinds. The byte layout is
// part of the hashing contract: any change to field ordering or
// separators changes every object hash, so formats here are append-only.

// ---------------------------------------------------------------------------
// Blob
// ---------------------------------------------------------------------------

// MarshalBlob serializes a Blob to raw bytes (identity).
func MarshalBlob(b *Blob) []byte {
	out := make([]byte, len(b.Data))
	copy(out, b.Data)
	return out
}

// UnmarshalBlob deserializes raw bytes into a Blob.
func UnmarshalBlob(data []byte) (*Blob, error) {
	out := make([]byte, len(data))
	copy(out, data)
	return &Blob{Data: out}, nil
}

// ---------------------------------------------------------------------------
// Tree
// ---------------------------------------------------------------------------

// MarshalTree serializes a Tree. Entries are sorted by Name; each entry is
// one line:
//
//	mode hash name
//
// The name comes last so it may contain spaces. Names may not contain
// newlines or slashes, and duplicates are rejected, since the sorted
// entry list feeds directly into the tree hash.
func MarshalTree(tr *Tree) ([]byte, error) {
	sorted := make([]TreeEntry, len(tr.Entries))
	copy(sorted, tr.Entries)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Name < sorted[j].Name
	})

	var buf bytes.Buffer
	prev := ""
	for i, e := range sorted {
		if e.Name == "" {
			return nil, fmt.Errorf("marshal tree: entry %d has empty name", i)
		}
		if strings.ContainsAny(e.Name, "/\n") {
			return nil, fmt.Errorf("marshal tree: invalid entry name %q", e.Name)
		}
		if i > 0 && e.Name == prev {
			return nil, fmt.Errorf("marshal tree: duplicate entry name %q", e.Name)
		}
		prev = e.Name

		mode := e.Mode
		if mode == "" {
			mode = ModeFile
		}
		switch mode {
		case ModeDir, ModeFile, ModeExecutable, ModeSymlink:
		default:
			return nil, fmt.Errorf("marshal tree: unknown mode %q for %q", mode, e.Name)
		}
		if e.Hash.IsZero() {
			return nil, fmt.Errorf("marshal tree: entry %q has zero hash", e.Name)
		}
		fmt.Fprintf(&buf, "%s %s %s\n", mode, string(e.Hash), e.Name)
	}
	return buf.Bytes(), nil
}

// UnmarshalTree parses a Tree from its serialized form.
func UnmarshalTree(data []byte) (*Tree, error) {
	tr := &Tree{}
	text := strings.TrimRight(string(data), "\n")
	if text == "" {
		return tr, nil
	}
	prev := ""
	for _, line := range strings.Split(text, "\n") {
		parts := strings.SplitN(line, " ", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("unmarshal tree: %w: entry %q", ErrMalformed, line)
		}
		mode := parts[0]
		switch mode {
		case ModeDir, ModeFile, ModeExecutable, ModeSymlink:
		default:
			return nil, fmt.Errorf("unmarshal tree: %w: unknown mode %q", ErrMalformed, mode)
		}
		h, err := ParseHash(parts[1])
		if err != nil {
			return nil, fmt.Errorf("unmarshal tree: %w: %v", ErrMalformed, err)
		}
		name := parts[2]
		if name == "" {
			return nil, fmt.Errorf("unmarshal tree: %w: empty entry name", ErrMalformed)
		}
		if prev != "" && name <= prev {
			return nil, fmt.Errorf("unmarshal tree: %w: entries not sorted (%q after %q)", ErrMalformed, name, prev)
		}
		prev = name
		tr.Entries = append(tr.Entries, TreeEntry{Name: name, Mode: mode, Hash: h})
	}
	return tr, nil
}

// ---------------------------------------------------------------------------
// Commit
// ---------------------------------------------------------------------------

// MarshalCommit serializes a Commit:
//
//	tree H
//	parent H          (zero or more, in recorded order)
//	author A
//	author-time T
//	author-tz +0000
//	committer C
//	committer-time T
//	committer-tz +0000
//	signature S       (optional)
//
//	message
func MarshalCommit(c *Commit) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "tree %s\n", string(c.TreeHash))
	for _, p := range c.Parents {
		fmt.Fprintf(&buf, "parent %s\n", string(p))
	}
	fmt.Fprintf(&buf, "author %s\n", c.Author)
	fmt.Fprintf(&buf, "author-time %d\n", c.AuthorTime)
	fmt.Fprintf(&buf, "author-tz %s\n", tzOrUTC(c.AuthorTimezone))
	fmt.Fprintf(&buf, "committer %s\n", c.Committer)
	fmt.Fprintf(&buf, "committer-time %d\n", c.CommitterTime)
	fmt.Fprintf(&buf, "committer-tz %s\n", tzOrUTC(c.CommitterTimezone))
	if strings.TrimSpace(c.Signature) != "" {
		fmt.Fprintf(&buf, "signature %s\n", c.Signature)
	}
	buf.WriteByte('\n')
	buf.WriteString(c.Message)
	return buf.Bytes()
}

func tzOrUTC(tz string) string {
	if strings.TrimSpace(tz) == "" {
		return "+0000"
	}
	return tz
}

// UnmarshalCommit parses a Commit from its serialized form.
func UnmarshalCommit(data []byte) (*Commit, error) {
	idx := bytes.Index(data, []byte("\n\n"))
	if idx < 0 {
		return nil, fmt.Errorf("unmarshal commit: %w: missing header/message separator", ErrMalformed)
	}
	header := string(data[:idx])
	message := string(data[idx+2:])

	c := &Commit{Message: message}
	for _, line := range strings.Split(header, "\n") {
		key, val, ok := strings.Cut(line, " ")
		if !ok {
			return nil, fmt.Errorf("unmarshal commit: %w: malformed header line %q", ErrMalformed, line)
		}
		switch key {
		case "tree":
			h, err := ParseHash(val)
			if err != nil {
				return nil, fmt.Errorf("unmarshal commit: %w: bad tree hash: %v", ErrMalformed, err)
			}
			c.TreeHash = h
		case "parent":
			h, err := ParseHash(val)
			if err != nil {
				return nil, fmt.Errorf("unmarshal commit: %w: bad parent hash: %v", ErrMalformed, err)
			}
			c.Parents = append(c.Parents, h)
		case "author":
			c.Author = val
		case "author-time":
			ts, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("unmarshal commit: %w: bad author-time %q", ErrMalformed, val)
			}
			c.AuthorTime = ts
		case "author-tz":
			c.AuthorTimezone = val
		case "committer":
			c.Committer = val
		case "committer-time":
			ts, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("unmarshal commit: %w: bad committer-time %q", ErrMalformed, val)
			}
			c.CommitterTime = ts
		case "committer-tz":
			c.CommitterTimezone = val
		case "signature":
			c.Signature = val
		default:
			return nil, fmt.Errorf("unmarshal commit: %w: unknown header key %q", ErrMalformed, key)
		}
	}
	if c.TreeHash.IsZero() {
		return nil, fmt.Errorf("unmarshal commit: %w: missing tree header", ErrMalformed)
	}
	return c, nil
}

// ---------------------------------------------------------------------------
// Tag
// ---------------------------------------------------------------------------

// MarshalTag serializes a Tag:
//
//	object H
//	type commit
//	tag name
//	tagger T
//	tagger-time T
//	tagger-tz +0000
//
//	message
func MarshalTag(t *Tag) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "object %s\n", string(t.TargetHash))
	fmt.Fprintf(&buf, "type %s\n", string(t.TargetType))
	fmt.Fprintf(&buf, "tag %s\n", t.Name)
	fmt.Fprintf(&buf, "tagger %s\n", t.Tagger)
	fmt.Fprintf(&buf, "tagger-time %d\n", t.TaggerTime)
	fmt.Fprintf(&buf, "tagger-tz %s\n", tzOrUTC(t.TaggerTimezone))
	buf.WriteByte('\n')
	buf.WriteString(t.Message)
	return buf.Bytes()
}

// UnmarshalTag parses a Tag from its serialized form.
func UnmarshalTag(data []byte) (*Tag, error) {
	idx := bytes.Index(data, []byte("\n\n"))
	if idx < 0 {
		return nil, fmt.Errorf("unmarshal tag: %w: missing header/message separator", ErrMalformed)
	}
	header := string(data[:idx])
	message := string(data[idx+2:])

	t := &Tag{Message: message}
	for _, line := range strings.Split(header, "\n") {
		key, val, ok := strings.Cut(line, " ")
		if !ok {
			return nil, fmt.Errorf("unmarshal tag: %w: malformed header line %q", ErrMalformed, line)
		}
		switch key {
		case "object":
			h, err := ParseHash(val)
			if err != nil {
				return nil, fmt.Errorf("unmarshal tag: %w: bad object hash: %v", ErrMalformed, err)
			}
			t.TargetHash = h
		case "type":
			switch Type(val) {
			case TypeBlob, TypeTree, TypeCommit, TypeTag:
				t.TargetType = Type(val)
			default:
				return nil, fmt.Errorf("unmarshal tag: %w: unknown target type %q", ErrMalformed, val)
			}
		case "tag":
			t.Name = val
		case "tagger":
			t.Tagger = val
		case "tagger-time":
			ts, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("unmarshal tag: %w: bad tagger-time %q", ErrMalformed, val)
			}
			t.TaggerTime = ts
		case "tagger-tz":
			t.TaggerTimezone = val
		default:
			return nil, fmt.Errorf("unmarshal tag: %w: unknown header key %q", ErrMalformed, key)
		}
	}
	if t.TargetHash.IsZero() {
		return nil, fmt.Errorf("unmarshal tag: %w: missing object header", ErrMalformed)
	}
	return t, nil
}
