// Package tree snapshots a directory into content-addressed trees.
package tree

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sbalabanov/vx/internal/digest"
	vxerrors "github.com/sbalabanov/vx/internal/errors"
	"github.com/sbalabanov/vx/internal/object"
)

// Options configures a Builder.
type Options struct {
	// Upper bound on goroutines hashing subtrees at once, including the caller.
	// Values below 1 default to GOMAXPROCS.
	Workers int
	Ignore  []string
	Logger  *zap.Logger
}

// Builder turns directories into trees. It is safe for concurrent use.
type Builder struct {
	store  *object.Store
	ignore Ignore
	logger *zap.Logger
	// extra goroutine slots shared by every Build; nil when Workers is 1
	sem chan struct{}
}

func NewBuilder(store *object.Store, opts Options) *Builder {
	if opts.Workers < 1 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	b := &Builder{
		store:  store,
		ignore: NewIgnore(opts.Ignore),
		logger: opts.Logger,
	}
	if opts.Workers > 1 {
		b.sem = make(chan struct{}, opts.Workers-1)
	}
	return b
}

func (b *Builder) Ignore() Ignore {
	return b.ignore
}

type build struct {
	*Builder
	root   string
	hashed atomic.Int64
	reused atomic.Int64
}

// Build snapshots dir and stores every blob and tree it finds. Files whose
// size and modification time match their entry in previous are not reread.
func (b *Builder) Build(ctx context.Context, dir string, previous *object.Tree) (*object.Tree, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, vxerrors.IOFailure("tree.build", dir, err)
	}

	start := time.Now()
	run := &build{Builder: b, root: abs}
	t, err := run.dir(ctx, "", previous)
	if err != nil {
		return nil, err
	}

	b.logger.Debug("built tree",
		zap.Stringer("hash", t.Hash),
		zap.Int64("files", t.FileCount),
		zap.Int64("bytes", t.ByteSize),
		zap.Int64("hashed", run.hashed.Load()),
		zap.Int64("reused", run.reused.Load()),
		zap.Duration("took", time.Since(start)))
	return t, nil
}

func (r *build) dir(ctx context.Context, rel string, previous *object.Tree) (*object.Tree, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	abs := filepath.Join(r.root, filepath.FromSlash(rel))
	dirEntries, skipped, err := ReadDir(abs, r.ignore)
	if err != nil {
		return nil, vxerrors.IOFailure("tree.build", displayPath(rel), err)
	}
	for _, name := range skipped {
		r.logger.Warn("skipping non-regular file", zap.String("path", path.Join(rel, name)))
	}

	entries := make([]object.Entry, len(dirEntries))
	g, gctx := errgroup.WithContext(ctx)

	for i, de := range dirEntries {
		childRel := path.Join(rel, de.Name)
		prev, _ := previous.Lookup(de.Name)

		if !de.IsDir {
			e, err := r.file(childRel, de, prev)
			if err != nil {
				g.Wait()
				return nil, err
			}
			entries[i] = e
			continue
		}

		buildSub := func() error {
			var prevSub *object.Tree
			if prev.IsTree() {
				var err error
				if prevSub, err = r.store.GetTree(prev.Hash); err != nil {
					return vxerrors.Wrap("tree.build", childRel, err)
				}
			}
			sub, err := r.dir(gctx, childRel, prevSub)
			if err != nil {
				return err
			}
			entries[i] = object.Entry{
				Name:  de.Name,
				Kind:  object.KindTree,
				Hash:  sub.Hash,
				Size:  sub.ByteSize,
				Files: sub.FileCount,
			}
			return nil
		}

		// take a free slot or do the work here; waiting for a slot while
		// holding one could starve the children this goroutine joins on
		select {
		case r.sem <- struct{}{}:
			g.Go(func() error {
				defer func() { <-r.sem }()
				return buildSub()
			})
		default:
			if err := buildSub(); err != nil {
				g.Wait()
				return nil, err
			}
		}
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	t := object.NewTree(entries)
	if err := r.store.PutTree(t); err != nil {
		return nil, vxerrors.Wrap("tree.build", displayPath(rel), err)
	}
	return t, nil
}

func (r *build) file(rel string, de DirEntry, prev object.Entry) (object.Entry, error) {
	if prev.Kind == object.KindBlob && prev.Size == de.Size && prev.ModTime == de.ModTime {
		r.reused.Add(1)
		return prev, nil
	}

	data, err := os.ReadFile(filepath.Join(r.root, filepath.FromSlash(rel)))
	if err != nil {
		return object.Entry{}, vxerrors.IOFailure("tree.build", rel, err)
	}
	hash, err := r.store.PutBlob(data)
	if err != nil {
		return object.Entry{}, vxerrors.Wrap("tree.build", rel, err)
	}
	r.hashed.Add(1)

	return object.Entry{
		Name:    de.Name,
		Kind:    object.KindBlob,
		Hash:    hash,
		Size:    int64(len(data)),
		ModTime: de.ModTime,
	}, nil
}

func displayPath(rel string) string {
	if rel == "" {
		return "."
	}
	return rel
}

// HashFile returns the blob digest of a file without storing it.
func HashFile(abs string) (object.Entry, error) {
	f, err := os.Open(abs)
	if err != nil {
		return object.Entry{}, err
	}
	defer f.Close()

	h := digest.New(digest.KindBlob)
	n, err := io.Copy(h, f)
	if err != nil {
		return object.Entry{}, fmt.Errorf("hashing %s: %w", abs, err)
	}
	return object.Entry{Name: filepath.Base(abs), Kind: object.KindBlob, Hash: h.Sum(), Size: n}, nil
}
