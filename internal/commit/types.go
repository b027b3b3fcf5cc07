package commit

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sbalabanov/vx/internal/digest"
)

// ID names a commit by branch and branch-local sequence number.
type ID struct {
	Branch string `json:"branch"`
	Seq    uint64 `json:"seq"`
}

func (id ID) String() string {
	return fmt.Sprintf("%s:%d", id.Branch, id.Seq)
}

// ParseID parses the "branch:seq" form.
func ParseID(s string) (ID, error) {
	i := strings.LastIndexByte(s, ':')
	if i <= 0 || i == len(s)-1 {
		return ID{}, fmt.Errorf("invalid commit id %q: want branch:seq", s)
	}
	seq, err := strconv.ParseUint(s[i+1:], 10, 64)
	if err != nil {
		return ID{}, fmt.Errorf("invalid commit id %q: %w", s, err)
	}
	return ID{Branch: s[:i], Seq: seq}, nil
}

type Commit struct {
	Branch    string        `json:"branch"`
	Seq       uint64        `json:"seq"`
	Tree      digest.Digest `json:"tree"`
	Parent    *ID           `json:"parent,omitempty"`
	Message   string        `json:"message"`
	Timestamp time.Time     `json:"timestamp"`
}

func (c *Commit) ID() ID {
	return ID{Branch: c.Branch, Seq: c.Seq}
}

// Lineage is what the log needs to know about a branch: its name and the
// commit it forked from, nil for the foundational branch.
type Lineage interface {
	BranchName() string
	ForkPoint() *ID
}

// Getter looks up existing commits.
type Getter interface {
	Get(branch string, seq uint64) (*Commit, error)
}

// Log defines the interface for commit storage operations
type Log interface {
	Getter
	NewCommit(lineage Lineage, tree digest.Digest, message string) (*Commit, error)
	Append(lineage Lineage, expectedHead uint64, tree digest.Digest, message string) (*Commit, error)
	Head(branch string) (uint64, error)
	List(branch string) ([]*Commit, error)
}
