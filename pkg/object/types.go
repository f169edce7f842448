package object

// Hash is a 64-character hex-encoded SHA-256 digest identifying an object
// by its content. The empty string is the zero hash and never resolves to
// a stored object.
type Hash string

// IsZero reports whether h is the zero hash.
func (h Hash) IsZero() bool { return h == "" }

// Short returns an abbreviated form of the hash for display.
func (h Hash) Short() string {
	if len(h) < 12 {
		return string(h)
	}
	return string(h[:12])
}

// Type identifies the kind of object stored.
type Type string

const (
	TypeBlob   Type = "blob"
	TypeTree   Type = "tree"
	TypeCommit Type = "commit"
	TypeTag    Type = "tag"
)

const (
	// Tree mode constants compatible with Git's canonical mode strings.
	ModeDir        = "40000"
	ModeFile       = "100644"
	ModeExecutable = "100755"
	ModeSymlink    = "120000"
)

// Blob holds raw file data.
type Blob struct {
	Data []byte
}

// TreeEntry is one entry in a tree object. The kind of the referenced
// child is derived from Mode: a ModeDir entry points at a subtree,
// anything else at a blob.
type TreeEntry struct {
	Name string
	Mode string
	Hash Hash
}

// IsDir reports whether the entry refers to a subtree.
func (e TreeEntry) IsDir() bool { return e.Mode == ModeDir }

// Kind returns the object type the entry's hash refers to.
func (e TreeEntry) Kind() Type {
	if e.IsDir() {
		return TypeTree
	}
	return TypeBlob
}

// Tree holds a list of entries sorted by Name. The sorted order
// participates in the tree's own hash, so it is part of the format, not a
// presentation choice.
type Tree struct {
	Entries []TreeEntry // sorted by Name
}

// Find returns the entry with the given name, if present.
func (t *Tree) Find(name string) (TreeEntry, bool) {
	for _, e := range t.Entries {
		if e.Name == name {
			return e, true
		}
	}
	return TreeEntry{}, false
}

// Commit represents a commit pointing at a tree with metadata. The parent
// list is empty only for a root commit; more than one parent signifies a
// merge. Timezones are recorded as fixed offsets such as "+0200".
type Commit struct {
	TreeHash          Hash
	Parents           []Hash
	Author            string
	AuthorTime        int64
	AuthorTimezone    string
	Committer         string
	CommitterTime     int64
	CommitterTimezone string
	Signature         string
	Message           string
}

// FirstParent returns the first parent hash, or the zero hash for a root
// commit.
func (c *Commit) FirstParent() Hash {
	if c == nil || len(c.Parents) == 0 {
		return ""
	}
	return c.Parents[0]
}

// Tag is an annotated pointer at another object.
type Tag struct {
	TargetHash     Hash
	TargetType     Type
	Name           string
	Tagger         string
	TaggerTime     int64
	TaggerTimezone string
	Message        string
}
