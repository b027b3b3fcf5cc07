package repo

import (
	"github.com/sbalabanov/vx/internal/commit"
	vxerrors "github.com/sbalabanov/vx/internal/errors"
)

const headKey = "HEAD"

// Head is the checked-out position. Seq 0 is the branch's fork point, or
// the empty tree on the foundational branch.
type Head struct {
	Branch string `json:"branch"`
	Seq    uint64 `json:"seq"`
}

func (h Head) ID() commit.ID {
	return commit.ID{Branch: h.Branch, Seq: h.Seq}
}

func (h Head) String() string {
	return h.ID().String()
}

// Head reloads the HEAD record.
func (r *Repository) Head() (Head, error) {
	var h Head
	if err := r.head.GetJSON(headKey, &h); err != nil {
		return Head{}, vxerrors.Wrap("repo.head", headKey, err)
	}
	return h, nil
}

func (r *Repository) setHead(h Head) error {
	if err := r.head.SetJSON(headKey, h); err != nil {
		return vxerrors.Wrap("repo.set_head", h.String(), err)
	}
	return nil
}
