// internal/workspace/local.go
package workspace

import (
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"go.uber.org/zap"

	vxerrors "github.com/sbalabanov/vx/internal/errors"
	"github.com/sbalabanov/vx/internal/object"
	"github.com/sbalabanov/vx/internal/tree"
)

// FindRoot searches startDir and its ancestors for the ".vx" directory.
func FindRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", vxerrors.IOFailure("workspace.find_root", startDir, err)
	}

	for {
		if info, err := os.Stat(filepath.Join(dir, tree.DataDir)); err == nil && info.IsDir() {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", vxerrors.NotFound("workspace.find_root", startDir)
}

// Options configures a Workspace
type Options struct {
	Ignore []string
	Logger *zap.Logger
}

// LocalWorkspace reconciles a directory on disk with stored trees.
type LocalWorkspace struct {
	Root   string
	Store  *object.Store
	Ignore tree.Ignore
	Logger *zap.Logger
}

func New(root string, store *object.Store, opts Options) *LocalWorkspace {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &LocalWorkspace{
		Root:   root,
		Store:  store,
		Ignore: tree.NewIgnore(opts.Ignore),
		Logger: opts.Logger,
	}
}

func (w *LocalWorkspace) abs(rel string) string {
	return filepath.Join(w.Root, filepath.FromSlash(rel))
}

// readDir lists a directory; a missing directory reads as empty.
func (w *LocalWorkspace) readDir(rel string) ([]tree.DirEntry, error) {
	entries, skipped, err := w.scanDir(rel)
	if err != nil {
		return nil, err
	}
	for _, name := range skipped {
		w.Logger.Warn("skipping non-regular file", zap.String("path", path.Join(rel, name)))
	}
	return entries, nil
}

// scanDir is readDir that also returns the names of symlinks and special
// files, which are never part of a tree.
func (w *LocalWorkspace) scanDir(rel string) ([]tree.DirEntry, []string, error) {
	entries, skipped, err := tree.ReadDir(w.abs(rel), w.Ignore)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, nil
		}
		return nil, nil, vxerrors.IOFailure("workspace.read_dir", displayPath(rel), err)
	}
	return entries, skipped, nil
}

// subtree loads the stored tree a directory entry points at.
func (w *LocalWorkspace) subtree(rel string, e object.Entry) (*object.Tree, error) {
	t, err := w.Store.GetTree(e.Hash)
	if err != nil {
		return nil, vxerrors.Wrap("workspace.load_tree", rel, err)
	}
	return t, nil
}

// sameFile reports whether the file at rel holds the content of e, using
// size and modification time before falling back to hashing.
func (w *LocalWorkspace) sameFile(rel string, disk tree.DirEntry, e object.Entry) (bool, error) {
	if disk.Size != e.Size {
		return false, nil
	}
	if disk.ModTime == e.ModTime {
		return true, nil
	}
	hashed, err := tree.HashFile(w.abs(rel))
	if err != nil {
		return false, vxerrors.IOFailure("workspace.hash", rel, err)
	}
	return hashed.Hash == e.Hash, nil
}

func displayPath(rel string) string {
	if rel == "" {
		return "."
	}
	return rel
}
