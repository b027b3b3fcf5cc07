package workspace

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/sbalabanov/vx/internal/digest"
	vxerrors "github.com/sbalabanov/vx/internal/errors"
	"github.com/sbalabanov/vx/internal/object"
	"github.com/sbalabanov/vx/internal/tree"
)

type OpKind string

const (
	OpRemove OpKind = "remove"
	OpMkdir  OpKind = "mkdir"
	OpWrite  OpKind = "write"
)

// Op is one filesystem step of a checkout.
type Op struct {
	Kind  OpKind        `json:"kind"`
	Path  string        `json:"path"`
	IsDir bool          `json:"is_dir,omitempty"`
	Hash  digest.Digest `json:"hash,omitempty"`
}

// IncompleteError reports a checkout that stopped part way. Pending lists
// the paths whose operations were not applied, in plan order.
type IncompleteError struct {
	Pending []string
	Err     error
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("checkout incomplete, %d paths pending: %v", len(e.Pending), e.Err)
}

func (e *IncompleteError) Unwrap() error {
	return e.Err
}

// Plan lists the operations that make the working directory match t.
// Paths already matching t produce no operations.
func (w *LocalWorkspace) Plan(ctx context.Context, t *object.Tree) ([]Op, error) {
	if t == nil {
		t = object.EmptyTree()
	}
	var ops []Op
	if err := w.planDir(ctx, "", t, true, &ops); err != nil {
		return nil, err
	}
	return ops, nil
}

func (w *LocalWorkspace) planDir(ctx context.Context, rel string, t *object.Tree, onDisk bool, ops *[]Op) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var disk []tree.DirEntry
	if onDisk {
		var skipped []string
		var err error
		if disk, skipped, err = w.scanDir(rel); err != nil {
			return err
		}
		// A symlink where t has an entry would be written through.
		for _, name := range skipped {
			if _, ok := t.Lookup(name); ok {
				*ops = append(*ops, Op{Kind: OpRemove, Path: path.Join(rel, name)})
			}
		}
	}

	return mergeEntries(disk, t.Entries, func(d *tree.DirEntry, e *object.Entry) error {
		if e == nil {
			*ops = append(*ops, Op{Kind: OpRemove, Path: path.Join(rel, d.Name), IsDir: d.IsDir})
			return nil
		}

		childRel := path.Join(rel, e.Name)
		if d != nil {
			switch {
			case d.IsDir && e.IsTree():
				sub, err := w.subtree(childRel, *e)
				if err != nil {
					return err
				}
				return w.planDir(ctx, childRel, sub, true, ops)

			case !d.IsDir && !e.IsTree():
				same, err := w.sameFile(childRel, *d, *e)
				if err != nil {
					return err
				}
				if !same {
					*ops = append(*ops, Op{Kind: OpWrite, Path: childRel, Hash: e.Hash})
				}
				return nil

			default:
				*ops = append(*ops, Op{Kind: OpRemove, Path: childRel, IsDir: d.IsDir})
			}
		}

		if !e.IsTree() {
			*ops = append(*ops, Op{Kind: OpWrite, Path: childRel, Hash: e.Hash})
			return nil
		}
		sub, err := w.subtree(childRel, *e)
		if err != nil {
			return err
		}
		*ops = append(*ops, Op{Kind: OpMkdir, Path: childRel, IsDir: true, Hash: e.Hash})
		return w.planDir(ctx, childRel, sub, false, ops)
	})
}

// Checkout applies Plan(t). On failure it returns an *IncompleteError;
// operations applied before the failure stay applied.
func (w *LocalWorkspace) Checkout(ctx context.Context, t *object.Tree) error {
	if t == nil {
		t = object.EmptyTree()
	}
	ops, err := w.Plan(ctx, t)
	if err != nil {
		return vxerrors.Wrap("workspace.checkout", t.Hash.String(), err)
	}
	return w.Apply(ops)
}

// Apply runs ops in order, stopping at the first failure.
func (w *LocalWorkspace) Apply(ops []Op) error {
	for i, op := range ops {
		if err := w.apply(op); err != nil {
			w.Logger.Warn("checkout stopped",
				zap.String("path", op.Path),
				zap.String("op", string(op.Kind)),
				zap.Int("pending", len(ops)-i),
				zap.Error(err))
			return &IncompleteError{Pending: pendingPaths(ops[i:]), Err: err}
		}
		w.Logger.Debug("applied", zap.String("op", string(op.Kind)), zap.String("path", op.Path))
	}
	return nil
}

func (w *LocalWorkspace) apply(op Op) error {
	abs := w.abs(op.Path)
	switch op.Kind {
	case OpRemove:
		if err := os.RemoveAll(abs); err != nil {
			return vxerrors.IOFailure("workspace.remove", op.Path, err)
		}
	case OpMkdir:
		err := os.Mkdir(abs, 0755)
		if errors.Is(err, fs.ErrExist) {
			info, lerr := os.Lstat(abs)
			if lerr != nil {
				return vxerrors.IOFailure("workspace.mkdir", op.Path, lerr)
			}
			if info.IsDir() {
				return nil
			}
			return vxerrors.IOFailure("workspace.mkdir", op.Path,
				fmt.Errorf("%s exists and is not a directory", op.Path))
		}
		if err != nil {
			return vxerrors.IOFailure("workspace.mkdir", op.Path, err)
		}
	case OpWrite:
		data, err := w.Store.GetBlob(op.Hash)
		if err != nil {
			return vxerrors.Wrap("workspace.write", op.Path, err)
		}
		if err := writeFileAtomic(abs, data); err != nil {
			return vxerrors.IOFailure("workspace.write", op.Path, err)
		}
	default:
		return vxerrors.Validation("workspace.apply", op.Path, fmt.Sprintf("unknown op %q", op.Kind))
	}
	return nil
}

// writeFileAtomic replaces abs with data through a temp file in the same
// directory, so readers see the old or the new content, never a mix.
func writeFileAtomic(abs string, data []byte) error {
	f, err := os.CreateTemp(filepath.Dir(abs), tree.TempPrefix+"*")
	if err != nil {
		return err
	}
	tmp := f.Name()

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Chmod(tmp, 0644); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, abs); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func pendingPaths(ops []Op) []string {
	seen := make(map[string]bool, len(ops))
	paths := make([]string, 0, len(ops))
	for _, op := range ops {
		if !seen[op.Path] {
			seen[op.Path] = true
			paths = append(paths, op.Path)
		}
	}
	return paths
}
