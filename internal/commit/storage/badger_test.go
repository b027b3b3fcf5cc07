// internal/commit/storage/badger_test.go
package storage

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbalabanov/vx/internal/commit"
	"github.com/sbalabanov/vx/internal/digest"
	vxerrors "github.com/sbalabanov/vx/internal/errors"
	"github.com/sbalabanov/vx/internal/storage"
)

func setupTestStore(t *testing.T) *Store {
	engine, err := storage.Open(storage.Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })
	return NewStore(engine)
}

type testLineage struct {
	name string
	fork *commit.ID
}

func (l testLineage) BranchName() string { return l.name }
func (l testLineage) ForkPoint() *commit.ID { return l.fork }

func treeHash(s string) digest.Digest {
	return digest.Sum(digest.KindTree, []byte(s))
}

func TestNewCommitSequence(t *testing.T) {
	s := setupTestStore(t)
	main := testLineage{name: "main"}

	head, err := s.Head("main")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), head)

	first, err := s.NewCommit(main, treeHash("1"), "first")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), first.Seq)
	assert.Nil(t, first.Parent)

	second, err := s.NewCommit(main, treeHash("2"), "second")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), second.Seq)
	assert.Equal(t, &commit.ID{Branch: "main", Seq: 1}, second.Parent)

	got, err := s.Get("main", 2)
	require.NoError(t, err)
	assert.Equal(t, "second", got.Message)
	assert.Equal(t, treeHash("2"), got.Tree)
	assert.True(t, second.Timestamp.Equal(got.Timestamp))

	head, err = s.Head("main")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), head)
}

func TestFirstCommitParentIsForkPoint(t *testing.T) {
	s := setupTestStore(t)
	fork := &commit.ID{Branch: "main", Seq: 5}
	feature := testLineage{name: "feature/x", fork: fork}

	c, err := s.NewCommit(feature, treeHash("f"), "on feature")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), c.Seq)
	assert.Equal(t, fork, c.Parent)

	c2, err := s.NewCommit(feature, treeHash("g"), "again")
	require.NoError(t, err)
	assert.Equal(t, &commit.ID{Branch: "feature/x", Seq: 1}, c2.Parent)
}

func TestBranchesHaveIndependentCounters(t *testing.T) {
	s := setupTestStore(t)

	for i := 0; i < 3; i++ {
		_, err := s.NewCommit(testLineage{name: "main"}, treeHash("m"), "m")
		require.NoError(t, err)
	}
	c, err := s.NewCommit(testLineage{name: "other"}, treeHash("o"), "o")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), c.Seq)

	_, err = s.Get("other", 2)
	assert.True(t, vxerrors.Is(err, vxerrors.ErrorTypeNotFound))
}

func TestAppendStaleHead(t *testing.T) {
	s := setupTestStore(t)
	main := testLineage{name: "main"}

	for i := 0; i < 2; i++ {
		_, err := s.NewCommit(main, treeHash("x"), "x")
		require.NoError(t, err)
	}

	// two writers both observed head 2; the first wins
	winner, err := s.Append(main, 2, treeHash("a"), "a")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), winner.Seq)

	_, err = s.Append(main, 2, treeHash("b"), "b")
	assert.True(t, vxerrors.Is(err, vxerrors.ErrorTypeConcurrentModification))
	assert.Equal(t, "main", vxerrors.KeyOf(err))

	// retry with the recomputed head
	retried, err := s.Append(main, 3, treeHash("b"), "b")
	require.NoError(t, err)
	assert.Equal(t, uint64(4), retried.Seq)
}

func TestConcurrentCommitsNoGapsOrDuplicates(t *testing.T) {
	s := setupTestStore(t)
	main := testLineage{name: "main"}
	const writers = 8

	var wg sync.WaitGroup
	seqs := make(chan uint64, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			msg := uuid.NewString()
			for {
				c, err := s.NewCommit(main, treeHash(msg), msg)
				if vxerrors.Is(err, vxerrors.ErrorTypeConcurrentModification) {
					continue
				}
				if !assert.NoError(t, err) {
					return
				}
				seqs <- c.Seq
				return
			}
		}()
	}
	wg.Wait()
	close(seqs)

	seen := map[uint64]bool{}
	for seq := range seqs {
		assert.False(t, seen[seq], "duplicate seq %d", seq)
		seen[seq] = true
	}
	for seq := uint64(1); seq <= writers; seq++ {
		assert.True(t, seen[seq], "missing seq %d", seq)
	}

	list, err := s.List("main")
	require.NoError(t, err)
	require.Len(t, list, writers)
	for i, c := range list {
		assert.Equal(t, uint64(i+1), c.Seq)
	}
}

func TestGetMissing(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.Get("main", 1)
	assert.True(t, vxerrors.Is(err, vxerrors.ErrorTypeNotFound))
	assert.Equal(t, "main:1", vxerrors.KeyOf(err))

	_, err = s.Get("main", 0)
	assert.True(t, vxerrors.Is(err, vxerrors.ErrorTypeNotFound))
}

func TestListOrdersPastTen(t *testing.T) {
	s := setupTestStore(t)
	main := testLineage{name: "main"}
	for i := 0; i < 12; i++ {
		_, err := s.NewCommit(main, treeHash("x"), "x")
		require.NoError(t, err)
	}
	_, err := s.NewCommit(testLineage{name: "main2"}, treeHash("y"), "y")
	require.NoError(t, err)

	list, err := s.List("main")
	require.NoError(t, err)
	require.Len(t, list, 12)
	assert.Equal(t, uint64(10), list[9].Seq)
	assert.Equal(t, uint64(12), list[11].Seq)
}

func TestParseID(t *testing.T) {
	id, err := commit.ParseID("feature/a:12")
	require.NoError(t, err)
	assert.Equal(t, commit.ID{Branch: "feature/a", Seq: 12}, id)
	assert.Equal(t, "feature/a:12", id.String())

	for _, bad := range []string{"main", ":1", "main:", "main:x"} {
		_, err := commit.ParseID(bad)
		assert.Error(t, err, bad)
	}
}
