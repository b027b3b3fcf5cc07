package storage

import (
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	vxerrors "github.com/sbalabanov/vx/internal/errors"
)

// Options configures the badger database behind an Engine.
type Options struct {
	Path       string
	InMemory   bool
	SyncWrites bool
	// Logger receives badger's own warnings and errors. Nil silences them.
	Logger *zap.Logger
}

// Engine owns the single badger database a repository persists into.
type Engine struct {
	db *badger.DB
}

func getDBOptions(opts Options) badger.Options {
	path := opts.Path
	if opts.InMemory {
		path = ""
	}

	dbOpts := badger.DefaultOptions(path).
		WithInMemory(opts.InMemory).
		WithSyncWrites(opts.SyncWrites).
		WithNumVersionsToKeep(1).
		WithLoggingLevel(badger.WARNING)

	if opts.Logger == nil {
		dbOpts.Logger = nil
	} else {
		dbOpts.Logger = &badgerLogger{opts.Logger.Named("badger").Sugar()}
	}
	return dbOpts
}

// Open creates the database directory if needed and opens badger on it.
func Open(opts Options) (*Engine, error) {
	if !opts.InMemory {
		if opts.Path == "" {
			return nil, vxerrors.Validation("storage.open", "", "database path is required")
		}
		if err := os.MkdirAll(opts.Path, 0755); err != nil {
			return nil, vxerrors.IOFailure("storage.open", opts.Path, fmt.Errorf("creating database directory: %w", err))
		}
	}

	db, err := badger.Open(getDBOptions(opts))
	if err != nil {
		return nil, vxerrors.IOFailure("storage.open", opts.Path, fmt.Errorf("opening database: %w", err))
	}
	return &Engine{db: db}, nil
}

// DB exposes the raw handle for multi-keyspace transactions.
func (e *Engine) DB() *badger.DB {
	return e.db
}

func (e *Engine) Close() error {
	return e.db.Close()
}

func (e *Engine) Keyspace(prefix string) *Keyspace {
	return &Keyspace{engine: e, prefix: prefix}
}

// Update runs fn in a read-write transaction. A commit that loses to a
// concurrent writer surfaces as ConcurrentModification on key; errors
// outside the taxonomy become IO failures.
func (e *Engine) Update(op, key string, fn func(txn *badger.Txn) error) error {
	err := e.db.Update(fn)
	if err == nil {
		return nil
	}
	if errors.Is(err, badger.ErrConflict) {
		return vxerrors.ConcurrentModification(op, key)
	}
	var vxErr *vxerrors.Error
	if errors.As(err, &vxErr) {
		return err
	}
	return vxerrors.IOFailure(op, key, err)
}

func (e *Engine) View(fn func(txn *badger.Txn) error) error {
	return e.db.View(fn)
}

// badgerLogger routes badger's log output through zap.
type badgerLogger struct {
	s *zap.SugaredLogger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.s.Errorf(format, args...)
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.s.Warnf(format, args...)
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.s.Infof(format, args...)
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.s.Debugf(format, args...)
}
