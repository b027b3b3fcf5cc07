// internal/object/store.go
package object

import (
	"encoding/json"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/sbalabanov/vx/internal/digest"
	vxerrors "github.com/sbalabanov/vx/internal/errors"
	"github.com/sbalabanov/vx/internal/storage"
)

const flagCompressed byte = 1 << 0

// Options configures Store behavior
type Options struct {
	// Number of decoded trees and known hashes to cache
	CacheSize   int
	Compression CompressionOptions
	Logger      *zap.Logger
}

// Store is the content-addressed object keyspace. Records are
// kind byte, flags byte, payload.
type Store struct {
	ks     *storage.Keyspace
	comp   *compressor
	trees  *lru.Cache[digest.Digest, *Tree]
	known  *lru.Cache[digest.Digest, struct{}]
	logger *zap.Logger
}

func NewStore(engine *storage.Engine, opts Options) (*Store, error) {
	if opts.CacheSize <= 0 {
		opts.CacheSize = 4096
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	trees, err := lru.New[digest.Digest, *Tree](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating tree cache: %w", err)
	}
	known, err := lru.New[digest.Digest, struct{}](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating hash cache: %w", err)
	}
	comp, err := newCompressor(opts.Compression)
	if err != nil {
		return nil, err
	}

	return &Store{
		ks:     engine.Keyspace("objects"),
		comp:   comp,
		trees:  trees,
		known:  known,
		logger: opts.Logger,
	}, nil
}

func (s *Store) Close() {
	s.comp.close()
}

// Put stores payload under hash unless it is already present.
func (s *Store) Put(hash digest.Digest, kind digest.Kind, payload []byte) error {
	if s.known.Contains(hash) {
		return nil
	}

	var flags byte
	body := payload
	if kind == digest.KindBlob {
		var compressed bool
		if body, compressed = s.comp.compress(payload); compressed {
			flags |= flagCompressed
		}
	}

	record := make([]byte, 0, len(body)+2)
	record = append(record, byte(kind), flags)
	record = append(record, body...)

	created, err := s.ks.PutIfAbsent(hash.String(), record)
	if err != nil {
		return vxerrors.Wrap("object.put", hash.String(), err)
	}
	if created {
		s.logger.Debug("stored object",
			zap.Stringer("hash", hash),
			zap.Stringer("kind", kind),
			zap.Int("size", len(payload)),
			zap.Int("stored", len(body)))
	}
	s.known.Add(hash, struct{}{})
	return nil
}

// Get returns the kind and verified payload stored under hash.
func (s *Store) Get(hash digest.Digest) (digest.Kind, []byte, error) {
	key := hash.String()
	record, err := s.ks.Get(key)
	if err != nil {
		return 0, nil, vxerrors.Wrap("object.get", key, err)
	}
	if len(record) < 2 {
		return 0, nil, vxerrors.Corruption("object.get", key, fmt.Errorf("record too short: %d bytes", len(record)))
	}

	kind, flags, payload := digest.Kind(record[0]), record[1], record[2:]
	if flags&flagCompressed != 0 {
		if payload, err = s.comp.decompress(payload); err != nil {
			return 0, nil, vxerrors.Corruption("object.get", key, err)
		}
	}

	switch kind {
	case digest.KindBlob:
		if got := digest.Sum(kind, payload); got != hash {
			return 0, nil, vxerrors.Corruption("object.get", key, fmt.Errorf("content hash mismatch: got %s", got))
		}
	case digest.KindTree:
		if _, err := decodeTree(hash, payload); err != nil {
			return 0, nil, err
		}
	default:
		return 0, nil, vxerrors.Corruption("object.get", key, fmt.Errorf("unknown object kind %d", record[0]))
	}

	s.known.Add(hash, struct{}{})
	return kind, payload, nil
}

func (s *Store) Exists(hash digest.Digest) (bool, error) {
	if s.known.Contains(hash) {
		return true, nil
	}
	ok, err := s.ks.Has(hash.String())
	if err != nil {
		return false, vxerrors.Wrap("object.exists", hash.String(), err)
	}
	if ok {
		s.known.Add(hash, struct{}{})
	}
	return ok, nil
}

// PutBlob hashes and stores file content.
func (s *Store) PutBlob(data []byte) (digest.Digest, error) {
	hash := digest.Sum(digest.KindBlob, data)
	return hash, s.Put(hash, digest.KindBlob, data)
}

func (s *Store) GetBlob(hash digest.Digest) ([]byte, error) {
	kind, payload, err := s.Get(hash)
	if err != nil {
		return nil, err
	}
	if kind != digest.KindBlob {
		return nil, vxerrors.Corruption("object.blob", hash.String(), fmt.Errorf("expected blob, found %s", kind))
	}
	return payload, nil
}

func (s *Store) PutTree(t *Tree) error {
	if t.Hash == digest.None {
		t.Hash = HashEntries(t.Entries)
	}
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshaling tree %s: %w", t.Hash, err)
	}
	if err := s.Put(t.Hash, digest.KindTree, data); err != nil {
		return err
	}
	s.trees.Add(t.Hash, t)
	return nil
}

// GetTree returns a decoded tree. Callers must not modify the result.
func (s *Store) GetTree(hash digest.Digest) (*Tree, error) {
	if t, ok := s.trees.Get(hash); ok {
		return t, nil
	}

	kind, payload, err := s.Get(hash)
	if err != nil {
		return nil, err
	}
	if kind != digest.KindTree {
		return nil, vxerrors.Corruption("object.tree", hash.String(), fmt.Errorf("expected tree, found %s", kind))
	}
	t, err := decodeTree(hash, payload)
	if err != nil {
		return nil, err
	}
	s.trees.Add(hash, t)
	return t, nil
}

func decodeTree(hash digest.Digest, payload []byte) (*Tree, error) {
	var t Tree
	if err := json.Unmarshal(payload, &t); err != nil {
		return nil, vxerrors.Corruption("object.tree", hash.String(), err)
	}
	if got := HashEntries(t.Entries); got != hash {
		return nil, vxerrors.Corruption("object.tree", hash.String(), fmt.Errorf("tree hash mismatch: got %s", got))
	}
	t.Hash = hash
	return &t, nil
}
