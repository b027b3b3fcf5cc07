package branch

import (
	"regexp"
	"time"

	"github.com/sbalabanov/vx/internal/commit"
	vxerrors "github.com/sbalabanov/vx/internal/errors"
)

// Main is the foundational branch every repository starts with.
const Main = "main"

var namePattern = regexp.MustCompile(`^[a-z0-9./-]+$`)

// Branch is a named line of commits. Parent is the commit it forked from
// and never changes; the foundational branch has none.
type Branch struct {
	Name      string     `json:"name"`
	Parent    *commit.ID `json:"parent,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func (b *Branch) BranchName() string {
	return b.Name
}

func (b *Branch) ForkPoint() *commit.ID {
	return b.Parent
}

func (b *Branch) IsFoundational() bool {
	return b.Parent == nil
}

// ValidateName allows lowercase letters, digits, '.', '/' and '-'.
func ValidateName(name string) error {
	if !namePattern.MatchString(name) {
		return vxerrors.Validation("branch.validate", name, "branch names may only contain a-z, 0-9, '.', '/' and '-'")
	}
	return nil
}

// Registry defines the interface for branch storage operations
type Registry interface {
	NewBranch(name, fromBranch string, fromSeq uint64) (*Branch, error)
	CreateFoundational(name string) (*Branch, error)
	Resolve(name string) (*Branch, error)
	List() ([]*Branch, error)
}
