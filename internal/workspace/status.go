package workspace

import (
	"context"
	"path"

	"github.com/sbalabanov/vx/internal/digest"
	"github.com/sbalabanov/vx/internal/object"
	"github.com/sbalabanov/vx/internal/tree"
)

type ChangeKind string

const (
	Added     ChangeKind = "added"
	Removed   ChangeKind = "removed"
	Modified  ChangeKind = "modified"
	Unchanged ChangeKind = "unchanged"
)

// Change classifies one path of the working directory against a tree.
// Hash is the tree side's hash, None for added paths.
type Change struct {
	Path  string        `json:"path"`
	Kind  ChangeKind    `json:"kind"`
	IsDir bool          `json:"is_dir,omitempty"`
	Hash  digest.Digest `json:"hash,omitempty"`
}

type StatusOptions struct {
	IncludeUnchanged bool
}

// Status compares the working directory with t. Paths come back in
// depth-first name order. A directory that exists on one side only is
// reported once, not per descendant.
func (w *LocalWorkspace) Status(ctx context.Context, t *object.Tree, opts StatusOptions) ([]Change, error) {
	var changes []Change
	err := w.statusDir(ctx, "", t, opts, func(c Change) {
		changes = append(changes, c)
	})
	if err != nil {
		return nil, err
	}
	return changes, nil
}

func (w *LocalWorkspace) statusDir(ctx context.Context, rel string, t *object.Tree, opts StatusOptions, emit func(Change)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	disk, err := w.readDir(rel)
	if err != nil {
		return err
	}

	var stored []object.Entry
	if t != nil {
		stored = t.Entries
	}

	return mergeEntries(disk, stored, func(d *tree.DirEntry, e *object.Entry) error {
		switch {
		case e == nil:
			emit(Change{Path: path.Join(rel, d.Name), Kind: Added, IsDir: d.IsDir})
			return nil
		case d == nil:
			emit(Change{Path: path.Join(rel, e.Name), Kind: Removed, IsDir: e.IsTree(), Hash: e.Hash})
			return nil
		}

		childRel := path.Join(rel, d.Name)
		switch {
		case d.IsDir && e.IsTree():
			sub, err := w.subtree(childRel, *e)
			if err != nil {
				return err
			}
			return w.statusDir(ctx, childRel, sub, opts, emit)

		case !d.IsDir && !e.IsTree():
			same, err := w.sameFile(childRel, *d, *e)
			if err != nil {
				return err
			}
			if !same {
				emit(Change{Path: childRel, Kind: Modified, Hash: e.Hash})
			} else if opts.IncludeUnchanged {
				emit(Change{Path: childRel, Kind: Unchanged, Hash: e.Hash})
			}
			return nil

		default:
			// file replaced by a directory or the other way round
			emit(Change{Path: childRel, Kind: Removed, IsDir: e.IsTree(), Hash: e.Hash})
			emit(Change{Path: childRel, Kind: Added, IsDir: d.IsDir})
			return nil
		}
	})
}

// mergeEntries walks two name-sorted listings in lock step. Exactly one of
// the arguments to fn is nil when a name exists on one side only.
func mergeEntries(disk []tree.DirEntry, stored []object.Entry, fn func(d *tree.DirEntry, e *object.Entry) error) error {
	i, j := 0, 0
	for i < len(disk) || j < len(stored) {
		var err error
		switch {
		case j == len(stored) || (i < len(disk) && disk[i].Name < stored[j].Name):
			err = fn(&disk[i], nil)
			i++
		case i == len(disk) || stored[j].Name < disk[i].Name:
			err = fn(nil, &stored[j])
			j++
		default:
			err = fn(&disk[i], &stored[j])
			i++
			j++
		}
		if err != nil {
			return err
		}
	}
	return nil
}
