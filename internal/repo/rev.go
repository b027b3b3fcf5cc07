package repo

import (
	"strconv"
	"strings"

	"github.com/sbalabanov/vx/internal/commit"
	vxerrors "github.com/sbalabanov/vx/internal/errors"
	"github.com/sbalabanov/vx/internal/object"
)

// ResolveRev turns a revision into an id. Accepted forms are
// "branch:seq", a bare seq on the current branch, and a bare branch name
// meaning that branch's head. An empty rev is HEAD.
func (r *Repository) ResolveRev(rev string) (commit.ID, error) {
	rev = strings.TrimSpace(rev)

	if rev == "" {
		h, err := r.Head()
		if err != nil {
			return commit.ID{}, err
		}
		return h.ID(), nil
	}

	if strings.Contains(rev, ":") {
		id, err := commit.ParseID(rev)
		if err != nil {
			return commit.ID{}, vxerrors.Validation("repo.resolve", rev, err.Error())
		}
		if _, err := r.Branches.Resolve(id.Branch); err != nil {
			return commit.ID{}, vxerrors.Wrap("repo.resolve", rev, err)
		}
		return id, nil
	}

	if seq, err := strconv.ParseUint(rev, 10, 64); err == nil {
		h, err := r.Head()
		if err != nil {
			return commit.ID{}, err
		}
		return commit.ID{Branch: h.Branch, Seq: seq}, nil
	}

	b, err := r.Branches.Resolve(rev)
	if err != nil {
		return commit.ID{}, vxerrors.Wrap("repo.resolve", rev, err)
	}
	head, err := r.Commits.Head(b.Name)
	if err != nil {
		return commit.ID{}, vxerrors.Wrap("repo.resolve", rev, err)
	}
	return commit.ID{Branch: b.Name, Seq: head}, nil
}

// TreeAt returns the tree recorded at id. Seq 0 resolves through the
// branch's fork point.
func (r *Repository) TreeAt(id commit.ID) (*object.Tree, error) {
	if id.Seq == 0 {
		b, err := r.Branches.Resolve(id.Branch)
		if err != nil {
			return nil, vxerrors.Wrap("repo.tree", id.String(), err)
		}
		if b.Parent == nil {
			return object.EmptyTree(), nil
		}
		return r.TreeAt(*b.Parent)
	}

	c, err := r.Commits.Get(id.Branch, id.Seq)
	if err != nil {
		return nil, vxerrors.Wrap("repo.tree", id.String(), err)
	}
	t, err := r.Objects.GetTree(c.Tree)
	if err != nil {
		return nil, vxerrors.Wrap("repo.tree", id.String(), err)
	}
	return t, nil
}
