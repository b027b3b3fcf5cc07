// Package repo is the version-control engine a working directory runs on.
package repo

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/sbalabanov/vx/internal/branch"
	branchstorage "github.com/sbalabanov/vx/internal/branch/storage"
	commitstorage "github.com/sbalabanov/vx/internal/commit/storage"
	"github.com/sbalabanov/vx/internal/config"
	vxerrors "github.com/sbalabanov/vx/internal/errors"
	"github.com/sbalabanov/vx/internal/logging"
	"github.com/sbalabanov/vx/internal/middleware"
	"github.com/sbalabanov/vx/internal/object"
	"github.com/sbalabanov/vx/internal/storage"
	"github.com/sbalabanov/vx/internal/tree"
	"github.com/sbalabanov/vx/internal/workspace"
)

// Options configures how a repository is opened
type Options struct {
	// Logger overrides the logger built from config
	Logger *logging.Logger
	// LogLevel overrides log_level from config when Logger is nil
	LogLevel string
}

// Repository aggregates the stores of one working directory and its HEAD.
type Repository struct {
	Root   string
	Config *config.Config
	Logger *logging.Logger

	Objects  *object.Store
	Commits  *commitstorage.Store
	Branches *branchstorage.Store

	engine    *storage.Engine
	builder   *tree.Builder
	workspace *workspace.LocalWorkspace
	head      *storage.Keyspace
}

func dataDir(root string) string {
	return filepath.Join(root, tree.DataDir)
}

// Initialize creates an empty repository at root: default config, empty
// stores, the foundational branch and HEAD at main:0.
func Initialize(root string, opts Options) (*Repository, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, vxerrors.IOFailure("repo.init", root, err)
	}

	if _, err := os.Stat(dataDir(abs)); err == nil {
		return nil, vxerrors.Validation("repo.init", abs, "repository already initialized")
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, vxerrors.IOFailure("repo.init", abs, err)
	}

	if err := os.MkdirAll(dataDir(abs), 0755); err != nil {
		return nil, vxerrors.IOFailure("repo.init", abs, err)
	}
	if err := config.Default().Save(filepath.Join(dataDir(abs), config.FileName)); err != nil {
		return nil, vxerrors.Wrap("repo.init", abs, err)
	}

	r, err := open(abs, opts)
	if err != nil {
		return nil, err
	}

	err = r.run(context.Background(), "init", func(ctx context.Context) error {
		main, err := r.Branches.CreateFoundational(branch.Main)
		if err != nil {
			return vxerrors.Wrap("repo.init", abs, err)
		}
		if err := r.setHead(Head{Branch: main.Name}); err != nil {
			return err
		}
		r.Logger.For(ctx).Info("initialized repository", zap.String("path", abs))
		return nil
	})
	if err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

// Open finds the repository containing dir, searching upwards.
func Open(dir string, opts Options) (*Repository, error) {
	root, err := workspace.FindRoot(dir)
	if err != nil {
		return nil, vxerrors.Wrap("repo.open", dir, err)
	}
	return open(root, opts)
}

func open(root string, opts Options) (*Repository, error) {
	cfg, err := config.Load(filepath.Join(dataDir(root), config.FileName))
	if err != nil {
		return nil, vxerrors.Wrap("repo.open", root, err)
	}

	logger := opts.Logger
	if logger == nil {
		level := cfg.LogLevel
		if opts.LogLevel != "" {
			level = opts.LogLevel
		}
		if logger, err = logging.NewLogger(level); err != nil {
			return nil, vxerrors.Validation("repo.open", "log_level", err.Error())
		}
	}

	engine, err := storage.Open(storage.Options{
		Path:       filepath.Join(dataDir(root), "db"),
		SyncWrites: cfg.Storage.SyncWrites,
		Logger:     logger.Logger,
	})
	if err != nil {
		return nil, vxerrors.Wrap("repo.open", root, err)
	}

	objects, err := object.NewStore(engine, object.Options{
		CacheSize: cfg.Objects.CacheSize,
		Compression: object.CompressionOptions{
			MinSize: cfg.Objects.Compression.MinSize,
			Level:   cfg.Objects.Compression.Level,
		},
		Logger: logger.Named("objects"),
	})
	if err != nil {
		engine.Close()
		return nil, vxerrors.Wrap("repo.open", root, err)
	}

	commits := commitstorage.NewStore(engine)
	return &Repository{
		Root:     root,
		Config:   cfg,
		Logger:   logger,
		Objects:  objects,
		Commits:  commits,
		Branches: branchstorage.NewStore(engine, commits),
		engine:   engine,
		builder: tree.NewBuilder(objects, tree.Options{
			Workers: cfg.Workers,
			Ignore:  cfg.Ignore,
			Logger:  logger.Named("tree"),
		}),
		workspace: workspace.New(root, objects, workspace.Options{
			Ignore: cfg.Ignore,
			Logger: logger.Named("workspace"),
		}),
		head: engine.Keyspace(""),
	}, nil
}

func (r *Repository) Close() error {
	r.Objects.Close()
	err := r.engine.Close()
	r.Logger.Sync()
	return err
}

// Ignore is the name filter applied to the working directory.
func (r *Repository) Ignore() tree.Ignore {
	return r.builder.Ignore()
}

func (r *Repository) run(ctx context.Context, name string, h middleware.Handler) error {
	return middleware.Run(ctx, r.Logger, name, h)
}
