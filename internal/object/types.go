// internal/object/types.go
package object

import (
	"encoding/binary"
	"sort"

	"github.com/sbalabanov/vx/internal/digest"
)

// EntryKind distinguishes file and directory children of a tree.
type EntryKind string

const (
	KindBlob EntryKind = "blob"
	KindTree EntryKind = "tree"
)

func (k EntryKind) Digest() digest.Kind {
	if k == KindTree {
		return digest.KindTree
	}
	return digest.KindBlob
}

// Entry is one named child of a tree. For blobs Size is the file length and
// ModTime the last observed modification time in unix nanoseconds. For trees
// Size and Files are the subtree aggregates. Only Name, Kind and Hash
// contribute to the parent's hash.
type Entry struct {
	Name    string        `json:"name"`
	Kind    EntryKind     `json:"kind"`
	Hash    digest.Digest `json:"hash"`
	Size    int64         `json:"size"`
	ModTime int64         `json:"mtime,omitempty"`
	Files   int64         `json:"files,omitempty"`
}

func (e Entry) IsTree() bool {
	return e.Kind == KindTree
}

// Tree is a directory snapshot. Entries are sorted by name.
type Tree struct {
	Hash      digest.Digest `json:"-"`
	Entries   []Entry       `json:"entries"`
	FileCount int64         `json:"files"`
	ByteSize  int64         `json:"size"`
}

// NewTree sorts entries, sums aggregates and computes the tree hash.
func NewTree(entries []Entry) *Tree {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	t := &Tree{Entries: sorted}
	for _, e := range sorted {
		t.ByteSize += e.Size
		if e.IsTree() {
			t.FileCount += e.Files
		} else {
			t.FileCount++
		}
	}
	t.Hash = HashEntries(sorted)
	return t
}

// EmptyTree is the zero-child tree, the state of a branch with no commits.
func EmptyTree() *Tree {
	return NewTree(nil)
}

// HashEntries hashes the canonical encoding of already sorted entries:
// per child, kind byte, uvarint name length, name, 8-byte big-endian hash.
func HashEntries(entries []Entry) digest.Digest {
	h := digest.New(digest.KindTree)
	var lenBuf [binary.MaxVarintLen64]byte
	for _, e := range entries {
		h.Write([]byte{byte(e.Kind.Digest())})
		n := binary.PutUvarint(lenBuf[:], uint64(len(e.Name)))
		h.Write(lenBuf[:n])
		h.Write([]byte(e.Name))
		h.Write(e.Hash.Bytes())
	}
	return h.Sum()
}

// Lookup finds a child by name.
func (t *Tree) Lookup(name string) (Entry, bool) {
	if t == nil {
		return Entry{}, false
	}
	i := sort.Search(len(t.Entries), func(i int) bool { return t.Entries[i].Name >= name })
	if i < len(t.Entries) && t.Entries[i].Name == name {
		return t.Entries[i], true
	}
	return Entry{}, false
}
