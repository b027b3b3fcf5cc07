// internal/branch/storage/store.go
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/sbalabanov/vx/internal/branch"
	"github.com/sbalabanov/vx/internal/commit"
	vxerrors "github.com/sbalabanov/vx/internal/errors"
	"github.com/sbalabanov/vx/internal/storage"
)

// Store keeps branch records under branches:<name>.
type Store struct {
	engine   *storage.Engine
	branches *storage.Keyspace
	commits  commit.Getter
	now      func() time.Time
}

// NewStore creates a new branch store. commits validates fork points.
func NewStore(engine *storage.Engine, commits commit.Getter) *Store {
	return &Store{
		engine:   engine,
		branches: engine.Keyspace("branches"),
		commits:  commits,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

var _ branch.Registry = (*Store)(nil)

// NewBranch registers name forked at fromBranch:fromSeq.
func (s *Store) NewBranch(name, fromBranch string, fromSeq uint64) (*branch.Branch, error) {
	if err := branch.ValidateName(name); err != nil {
		return nil, err
	}
	// A taken name wins over a bad fork point; create still guards the race.
	taken, err := s.branches.Has(name)
	if err != nil {
		return nil, vxerrors.Wrap("branch.new", name, err)
	}
	if taken {
		return nil, vxerrors.DuplicateName("branch.new", name)
	}
	if _, err := s.commits.Get(fromBranch, fromSeq); err != nil {
		return nil, vxerrors.Wrap("branch.new", name, err)
	}

	b := &branch.Branch{
		Name:      name,
		Parent:    &commit.ID{Branch: fromBranch, Seq: fromSeq},
		CreatedAt: s.now(),
	}
	if err := s.create(b); err != nil {
		return nil, err
	}
	return b, nil
}

// CreateFoundational registers a branch with no parent.
func (s *Store) CreateFoundational(name string) (*branch.Branch, error) {
	if err := branch.ValidateName(name); err != nil {
		return nil, err
	}
	b := &branch.Branch{Name: name, CreatedAt: s.now()}
	if err := s.create(b); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Store) create(b *branch.Branch) error {
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("marshaling branch: %w", err)
	}

	err = s.engine.Update("branch.new", b.Name, func(txn *badger.Txn) error {
		_, err := s.branches.GetTxn(txn, b.Name)
		if err == nil {
			return vxerrors.DuplicateName("branch.new", b.Name)
		}
		if !vxerrors.Is(err, vxerrors.ErrorTypeNotFound) {
			return err
		}
		return s.branches.SetTxn(txn, b.Name, data)
	})
	if err != nil {
		var vxErr *vxerrors.Error
		if errors.As(err, &vxErr) && vxErr.Op == "branch.new" {
			return err
		}
		return vxerrors.Wrap("branch.new", b.Name, err)
	}
	return nil
}

func (s *Store) Resolve(name string) (*branch.Branch, error) {
	var b branch.Branch
	if err := s.branches.GetJSON(name, &b); err != nil {
		if vxerrors.Is(err, vxerrors.ErrorTypeNotFound) {
			return nil, vxerrors.NotFound("branch.resolve", name)
		}
		return nil, vxerrors.Wrap("branch.resolve", name, err)
	}
	return &b, nil
}

// List returns all branches ordered by name.
func (s *Store) List() ([]*branch.Branch, error) {
	var branches []*branch.Branch
	err := s.branches.List("", func(id string, val []byte) error {
		var b branch.Branch
		if err := json.Unmarshal(val, &b); err != nil {
			return vxerrors.Corruption("branch.list", id, err)
		}
		branches = append(branches, &b)
		return nil
	})
	if err != nil {
		return nil, vxerrors.Wrap("branch.list", "", err)
	}
	return branches, nil
}
