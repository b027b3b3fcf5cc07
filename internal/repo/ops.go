package repo

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/sbalabanov/vx/internal/branch"
	"github.com/sbalabanov/vx/internal/commit"
	"github.com/sbalabanov/vx/internal/diff"
	vxerrors "github.com/sbalabanov/vx/internal/errors"
	"github.com/sbalabanov/vx/internal/object"
	"github.com/sbalabanov/vx/internal/watch"
	"github.com/sbalabanov/vx/internal/workspace"
)

// DiffContext is the number of unchanged lines shown around each hunk.
const DiffContext = 3

// Status compares the working directory with HEAD's tree.
func (r *Repository) Status(ctx context.Context) ([]workspace.Change, error) {
	var changes []workspace.Change
	err := r.run(ctx, "status", func(ctx context.Context) error {
		var err error
		changes, err = r.status(ctx)
		return err
	})
	return changes, err
}

func (r *Repository) status(ctx context.Context) ([]workspace.Change, error) {
	h, err := r.Head()
	if err != nil {
		return nil, err
	}
	t, err := r.TreeAt(h.ID())
	if err != nil {
		return nil, err
	}
	return r.workspace.Status(ctx, t, workspace.StatusOptions{})
}

// pendingCommit is a snapshot taken against a branch head that has not
// been appended yet.
type pendingCommit struct {
	head       Head
	branch     *branch.Branch
	branchHead uint64
	tree       *object.Tree
}

// Commit snapshots the working directory onto HEAD's branch and moves HEAD
// to the new commit. If another commit lands on the branch in the meantime
// it fails with ConcurrentModification and nothing is written.
func (r *Repository) Commit(ctx context.Context, message string) (*commit.Commit, error) {
	var c *commit.Commit
	err := r.run(ctx, "commit", func(ctx context.Context) error {
		p, err := r.prepareCommit(ctx, message)
		if err != nil {
			return err
		}
		c, err = r.finishCommit(ctx, p, message)
		return err
	})
	return c, err
}

func (r *Repository) prepareCommit(ctx context.Context, message string) (*pendingCommit, error) {
	if strings.TrimSpace(message) == "" {
		return nil, vxerrors.Validation("repo.commit", "message", "commit message is empty")
	}

	h, err := r.Head()
	if err != nil {
		return nil, err
	}
	b, err := r.Branches.Resolve(h.Branch)
	if err != nil {
		return nil, vxerrors.Wrap("repo.commit", h.String(), err)
	}
	branchHead, err := r.Commits.Head(b.Name)
	if err != nil {
		return nil, vxerrors.Wrap("repo.commit", h.String(), err)
	}

	base, err := r.TreeAt(h.ID())
	if err != nil {
		return nil, err
	}
	t, err := r.builder.Build(ctx, r.Root, base)
	if err != nil {
		return nil, vxerrors.Wrap("repo.commit", h.String(), err)
	}
	if t.Hash == base.Hash {
		return nil, vxerrors.Validation("repo.commit", h.String(), "nothing to commit")
	}

	return &pendingCommit{head: h, branch: b, branchHead: branchHead, tree: t}, nil
}

func (r *Repository) finishCommit(ctx context.Context, p *pendingCommit, message string) (*commit.Commit, error) {
	c, err := r.Commits.Append(p.branch, p.branchHead, p.tree.Hash, message)
	if err != nil {
		return nil, err
	}
	if err := r.setHead(Head{Branch: c.Branch, Seq: c.Seq}); err != nil {
		return nil, err
	}

	r.Logger.For(ctx).Info("committed",
		zap.String("branch", c.Branch),
		zap.Uint64("seq", c.Seq),
		zap.Stringer("hash", c.Tree),
		zap.Int64("files", p.tree.FileCount))
	return c, nil
}

// Checkout materializes id in the working directory. HEAD moves only when
// every file was written; an unknown id leaves both untouched.
func (r *Repository) Checkout(ctx context.Context, id commit.ID) error {
	return r.run(ctx, "checkout", func(ctx context.Context) error {
		return r.checkout(ctx, id)
	})
}

func (r *Repository) checkout(ctx context.Context, id commit.ID) error {
	t, err := r.TreeAt(id)
	if err != nil {
		return err
	}
	if err := r.workspace.Checkout(ctx, t); err != nil {
		return err
	}
	if err := r.setHead(Head{Branch: id.Branch, Seq: id.Seq}); err != nil {
		return err
	}
	r.Logger.For(ctx).Info("checked out", zap.Stringer("commit", id), zap.Stringer("hash", t.Hash))
	return nil
}

// CheckoutRev resolves a revision and checks it out.
func (r *Repository) CheckoutRev(ctx context.Context, rev string) (commit.ID, error) {
	var id commit.ID
	err := r.run(ctx, "checkout", func(ctx context.Context) error {
		var err error
		if id, err = r.ResolveRev(rev); err != nil {
			return err
		}
		return r.checkout(ctx, id)
	})
	return id, err
}

// Export writes the tree at id into dir without touching HEAD or the
// repository's own working directory.
func (r *Repository) Export(ctx context.Context, id commit.ID, dir string) error {
	return r.run(ctx, "export", func(ctx context.Context) error {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return vxerrors.IOFailure("repo.export", dir, err)
		}
		t, err := r.TreeAt(id)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(abs, 0755); err != nil {
			return vxerrors.IOFailure("repo.export", abs, err)
		}
		ws := workspace.New(abs, r.Objects, workspace.Options{
			Ignore: r.Config.Ignore,
			Logger: r.Logger.Named("export"),
		})
		return ws.Checkout(ctx, t)
	})
}

// CreateBranch forks name from HEAD and moves HEAD onto it. The working
// directory is left alone since the new branch starts at the same tree.
func (r *Repository) CreateBranch(ctx context.Context, name string) (*branch.Branch, error) {
	var b *branch.Branch
	err := r.run(ctx, "branch", func(ctx context.Context) error {
		h, err := r.Head()
		if err != nil {
			return err
		}

		from := h.ID()
		if from.Seq == 0 {
			cur, err := r.Branches.Resolve(h.Branch)
			if err != nil {
				return vxerrors.Wrap("repo.branch", name, err)
			}
			if cur.Parent == nil {
				return vxerrors.Validation("repo.branch", name, "cannot branch before the first commit")
			}
			from = *cur.Parent
		}

		if b, err = r.Branches.NewBranch(name, from.Branch, from.Seq); err != nil {
			return err
		}
		if err := r.setHead(Head{Branch: b.Name}); err != nil {
			return err
		}
		r.Logger.For(ctx).Info("created branch", zap.String("branch", b.Name), zap.Stringer("from", from))
		return nil
	})
	return b, err
}

// Log lists the commits of branchName, HEAD's branch when empty, oldest first.
func (r *Repository) Log(branchName string) ([]*commit.Commit, error) {
	if branchName == "" {
		h, err := r.Head()
		if err != nil {
			return nil, err
		}
		branchName = h.Branch
	}
	if _, err := r.Branches.Resolve(branchName); err != nil {
		return nil, vxerrors.Wrap("repo.log", branchName, err)
	}
	return r.Commits.List(branchName)
}

// Show returns the commit at id and its tree.
func (r *Repository) Show(id commit.ID) (*commit.Commit, *object.Tree, error) {
	c, err := r.Commits.Get(id.Branch, id.Seq)
	if err != nil {
		return nil, nil, vxerrors.Wrap("repo.show", id.String(), err)
	}
	t, err := r.Objects.GetTree(c.Tree)
	if err != nil {
		return nil, nil, vxerrors.Wrap("repo.show", id.String(), err)
	}
	return c, t, nil
}

// BranchInfo is a branch and its current head sequence.
type BranchInfo struct {
	*branch.Branch
	Head uint64
}

// BranchList lists every branch with its head, in name order.
func (r *Repository) BranchList() ([]BranchInfo, error) {
	branches, err := r.Branches.List()
	if err != nil {
		return nil, err
	}
	out := make([]BranchInfo, 0, len(branches))
	for _, b := range branches {
		head, err := r.Commits.Head(b.Name)
		if err != nil {
			return nil, err
		}
		out = append(out, BranchInfo{Branch: b, Head: head})
	}
	return out, nil
}

// FileDiff is the content difference of one changed path against HEAD.
// Result is nil for directories.
type FileDiff struct {
	Path   string
	Kind   workspace.ChangeKind
	IsDir  bool
	Result *diff.DiffResult
}

// Diff compares changed files with HEAD's tree. When paths is non-empty
// only changes at or below one of them are reported.
func (r *Repository) Diff(ctx context.Context, paths []string) ([]FileDiff, error) {
	var out []FileDiff
	err := r.run(ctx, "diff", func(ctx context.Context) error {
		changes, err := r.status(ctx)
		if err != nil {
			return err
		}

		engine := diff.NewEngine(DiffContext)
		for _, c := range changes {
			if !selected(c.Path, paths) {
				continue
			}
			fd := FileDiff{Path: c.Path, Kind: c.Kind, IsDir: c.IsDir}
			if !c.IsDir {
				if fd.Result, err = r.diffFile(engine, c); err != nil {
					return err
				}
			}
			out = append(out, fd)
		}
		return nil
	})
	return out, err
}

func (r *Repository) diffFile(engine *diff.Engine, c workspace.Change) (*diff.DiffResult, error) {
	var old, cur []byte
	var err error

	if c.Kind != workspace.Added {
		if old, err = r.Objects.GetBlob(c.Hash); err != nil {
			return nil, vxerrors.Wrap("repo.diff", c.Path, err)
		}
	}
	if c.Kind != workspace.Removed {
		cur, err = os.ReadFile(filepath.Join(r.Root, filepath.FromSlash(c.Path)))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, vxerrors.IOFailure("repo.diff", c.Path, err)
		}
	}
	return engine.Diff(old, cur)
}

func selected(p string, filters []string) bool {
	if len(filters) == 0 {
		return true
	}
	for _, f := range filters {
		f = strings.Trim(filepath.ToSlash(filepath.Clean(f)), "/")
		if f == "." || f == "" || p == f || strings.HasPrefix(p, f+"/") {
			return true
		}
	}
	return false
}

// Watch calls fn with the current status, then again after every burst of
// changes in the working directory, until ctx is done.
func (r *Repository) Watch(ctx context.Context, fn func(context.Context, []workspace.Change) error) error {
	w, err := watch.New(r.Root, r.Ignore(), watch.DefaultDebounce, r.Logger.Named("watch"))
	if err != nil {
		return vxerrors.IOFailure("repo.watch", r.Root, err)
	}
	return w.Run(ctx, func(ctx context.Context) error {
		changes, err := r.Status(ctx)
		if err != nil {
			return err
		}
		return fn(ctx, changes)
	})
}
