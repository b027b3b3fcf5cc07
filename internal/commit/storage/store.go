// internal/commit/storage/store.go
package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/sbalabanov/vx/internal/commit"
	"github.com/sbalabanov/vx/internal/digest"
	vxerrors "github.com/sbalabanov/vx/internal/errors"
	"github.com/sbalabanov/vx/internal/storage"
)

// Store keeps commits under commits:<branch>:<seq> and one counter per
// branch under seq:<branch>. A counter and the commit it numbers are
// written in one transaction.
type Store struct {
	engine   *storage.Engine
	commits  *storage.Keyspace
	counters *storage.Keyspace
	now      func() time.Time
}

func NewStore(engine *storage.Engine) *Store {
	return &Store{
		engine:   engine,
		commits:  engine.Keyspace("commits"),
		counters: engine.Keyspace("seq"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

var _ commit.Log = (*Store)(nil)

func commitKey(branch string, seq uint64) string {
	return fmt.Sprintf("%s:%020d", branch, seq)
}

func decodeSeq(branch string, val []byte) (uint64, error) {
	if len(val) != 8 {
		return 0, vxerrors.Corruption("commit.head", branch, fmt.Errorf("counter is %d bytes", len(val)))
	}
	return binary.BigEndian.Uint64(val), nil
}

func encodeSeq(seq uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, seq)
	return b
}

func (s *Store) headTxn(txn *badger.Txn, branch string) (uint64, error) {
	val, err := s.counters.GetTxn(txn, branch)
	if vxerrors.Is(err, vxerrors.ErrorTypeNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return decodeSeq(branch, val)
}

// Head returns the latest sequence number on branch, 0 if it has no commits.
func (s *Store) Head(branch string) (uint64, error) {
	var head uint64
	err := s.engine.View(func(txn *badger.Txn) error {
		var err error
		head, err = s.headTxn(txn, branch)
		return err
	})
	if err != nil {
		return 0, vxerrors.Wrap("commit.head", branch, err)
	}
	return head, nil
}

// NewCommit appends to whatever the branch head currently is. Racing
// writers on the same branch still get distinct sequence numbers; the loser
// sees ConcurrentModification.
func (s *Store) NewCommit(lineage commit.Lineage, tree digest.Digest, message string) (*commit.Commit, error) {
	head, err := s.Head(lineage.BranchName())
	if err != nil {
		return nil, err
	}
	return s.Append(lineage, head, tree, message)
}

// Append writes commit expectedHead+1, failing with ConcurrentModification
// if the branch head has moved on.
func (s *Store) Append(lineage commit.Lineage, expectedHead uint64, tree digest.Digest, message string) (*commit.Commit, error) {
	branch := lineage.BranchName()

	var c *commit.Commit
	err := s.engine.Update("commit.append", branch, func(txn *badger.Txn) error {
		head, err := s.headTxn(txn, branch)
		if err != nil {
			return err
		}
		if head != expectedHead {
			return vxerrors.ConcurrentModification("commit.append", branch)
		}

		c = &commit.Commit{
			Branch:    branch,
			Seq:       head + 1,
			Tree:      tree,
			Message:   message,
			Timestamp: s.now(),
		}
		if c.Seq > 1 {
			c.Parent = &commit.ID{Branch: branch, Seq: head}
		} else if fork := lineage.ForkPoint(); fork != nil {
			p := *fork
			c.Parent = &p
		}

		data, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("marshaling commit: %w", err)
		}
		if err := s.commits.SetTxn(txn, commitKey(branch, c.Seq), data); err != nil {
			return err
		}
		return s.counters.SetTxn(txn, branch, encodeSeq(c.Seq))
	})
	if err != nil {
		return nil, vxerrors.Wrap("commit.append", branch, err)
	}
	return c, nil
}

func (s *Store) Get(branch string, seq uint64) (*commit.Commit, error) {
	id := commit.ID{Branch: branch, Seq: seq}.String()
	if seq == 0 {
		return nil, vxerrors.NotFound("commit.get", id)
	}

	var c commit.Commit
	if err := s.commits.GetJSON(commitKey(branch, seq), &c); err != nil {
		if vxerrors.Is(err, vxerrors.ErrorTypeNotFound) {
			return nil, vxerrors.NotFound("commit.get", id)
		}
		return nil, vxerrors.Wrap("commit.get", id, err)
	}
	return &c, nil
}

// List returns the commits of branch in sequence order.
func (s *Store) List(branch string) ([]*commit.Commit, error) {
	var commits []*commit.Commit
	err := s.commits.List(branch+":", func(id string, val []byte) error {
		var c commit.Commit
		if err := json.Unmarshal(val, &c); err != nil {
			return vxerrors.Corruption("commit.list", id, err)
		}
		commits = append(commits, &c)
		return nil
	})
	if err != nil {
		return nil, vxerrors.Wrap("commit.list", branch, err)
	}
	return commits, nil
}
