package object

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbalabanov/vx/internal/digest"
	vxerrors "github.com/sbalabanov/vx/internal/errors"
	"github.com/sbalabanov/vx/internal/storage"
)

func setupTestStore(t *testing.T, opts Options) *Store {
	engine, err := storage.Open(storage.Options{InMemory: true})
	require.NoError(t, err)

	s, err := NewStore(engine, opts)
	require.NoError(t, err)

	t.Cleanup(func() {
		s.Close()
		engine.Close()
	})
	return s
}

func TestBlobRoundTrip(t *testing.T) {
	s := setupTestStore(t, Options{Compression: DefaultCompressionOptions()})

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", []byte{}},
		{"small", []byte("hello\n")},
		{"compressible", bytes.Repeat([]byte("abcdefgh"), 8192)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := s.PutBlob(tt.data)
			require.NoError(t, err)
			assert.Equal(t, digest.Sum(digest.KindBlob, tt.data), hash)

			got, err := s.GetBlob(hash)
			require.NoError(t, err)
			assert.Equal(t, tt.data, got)

			ok, err := s.Exists(hash)
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}
}

func TestCompressedRecordIsSmaller(t *testing.T) {
	s := setupTestStore(t, Options{Compression: CompressionOptions{MinSize: 16, Level: 2}})
	data := bytes.Repeat([]byte("zstd "), 10000)

	hash, err := s.PutBlob(data)
	require.NoError(t, err)

	raw, err := s.ks.Get(hash.String())
	require.NoError(t, err)
	assert.Equal(t, byte(digest.KindBlob), raw[0])
	assert.Equal(t, flagCompressed, raw[1]&flagCompressed)
	assert.Less(t, len(raw), len(data))
}

func TestPutIdempotent(t *testing.T) {
	s := setupTestStore(t, Options{})

	h1, err := s.PutBlob([]byte("same"))
	require.NoError(t, err)
	h2, err := s.PutBlob([]byte("same"))
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	count := 0
	require.NoError(t, s.ks.List("", func(id string, val []byte) error {
		count++
		return nil
	}))
	assert.Equal(t, 1, count)
}

func TestGetMissing(t *testing.T) {
	s := setupTestStore(t, Options{})
	hash := digest.Sum(digest.KindBlob, []byte("never stored"))

	_, _, err := s.Get(hash)
	assert.True(t, vxerrors.Is(err, vxerrors.ErrorTypeNotFound))

	ok, err := s.Exists(hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCorruptedObjects(t *testing.T) {
	s := setupTestStore(t, Options{})
	hash := digest.Sum(digest.KindBlob, []byte("original"))

	tests := []struct {
		name   string
		record []byte
	}{
		{"truncated", []byte{byte(digest.KindBlob)}},
		{"content mismatch", append([]byte{byte(digest.KindBlob), 0}, []byte("tampered")...)},
		{"bad compression", append([]byte{byte(digest.KindBlob), flagCompressed}, []byte("not zstd")...)},
		{"unknown kind", append([]byte{0x7f, 0}, []byte("original")...)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, s.ks.Set(hash.String(), tt.record))

			_, _, err := s.Get(hash)
			assert.True(t, vxerrors.Is(err, vxerrors.ErrorTypeCorruption))
			assert.Equal(t, hash.String(), vxerrors.KeyOf(err))
		})
	}
}

func TestTreeRoundTrip(t *testing.T) {
	s := setupTestStore(t, Options{})

	blob, err := s.PutBlob([]byte("content"))
	require.NoError(t, err)
	sub := NewTree(nil)
	require.NoError(t, s.PutTree(sub))

	tree := NewTree([]Entry{
		{Name: "z.txt", Kind: KindBlob, Hash: blob, Size: 7, ModTime: 42},
		{Name: "empty", Kind: KindTree, Hash: sub.Hash},
		{Name: "a.txt", Kind: KindBlob, Hash: blob, Size: 7},
	})
	require.NoError(t, s.PutTree(tree))

	// bypass the cache so the decode path runs
	s.trees.Purge()
	got, err := s.GetTree(tree.Hash)
	require.NoError(t, err)
	assert.Equal(t, tree.Hash, got.Hash)
	assert.Equal(t, tree.Entries, got.Entries)
	assert.Equal(t, int64(2), got.FileCount)
	assert.Equal(t, int64(14), got.ByteSize)

	_, err = s.GetBlob(tree.Hash)
	assert.True(t, vxerrors.Is(err, vxerrors.ErrorTypeCorruption))
	_, err = s.GetTree(blob)
	assert.True(t, vxerrors.Is(err, vxerrors.ErrorTypeCorruption))
}

func TestTreeHashIgnoresMetadataAndOrder(t *testing.T) {
	h := digest.Sum(digest.KindBlob, []byte("x"))

	a := NewTree([]Entry{
		{Name: "b", Kind: KindBlob, Hash: h, Size: 1, ModTime: 1},
		{Name: "a", Kind: KindBlob, Hash: h, Size: 1, ModTime: 1},
	})
	b := NewTree([]Entry{
		{Name: "a", Kind: KindBlob, Hash: h, Size: 99, ModTime: 2},
		{Name: "b", Kind: KindBlob, Hash: h, Size: 1, ModTime: 3},
	})
	assert.Equal(t, a.Hash, b.Hash)

	renamed := NewTree([]Entry{
		{Name: "a", Kind: KindBlob, Hash: h},
		{Name: "c", Kind: KindBlob, Hash: h},
	})
	assert.NotEqual(t, a.Hash, renamed.Hash)

	asTree := NewTree([]Entry{
		{Name: "a", Kind: KindTree, Hash: h},
		{Name: "b", Kind: KindBlob, Hash: h},
	})
	assert.NotEqual(t, a.Hash, asTree.Hash)
}

func TestLookup(t *testing.T) {
	tree := NewTree([]Entry{{Name: "b"}, {Name: "a"}, {Name: "c"}})

	e, ok := tree.Lookup("b")
	assert.True(t, ok)
	assert.Equal(t, "b", e.Name)

	_, ok = tree.Lookup("d")
	assert.False(t, ok)

	var nilTree *Tree
	_, ok = nilTree.Lookup("a")
	assert.False(t, ok)
}
