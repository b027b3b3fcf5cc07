// internal/storage/badger_store.go
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"

	vxerrors "github.com/sbalabanov/vx/internal/errors"
)

// Keyspace is a prefixed slice of the engine's key space. An empty prefix
// maps ids to keys verbatim.
type Keyspace struct {
	engine *Engine
	prefix string
}

func (s *Keyspace) Prefix() string {
	return s.prefix
}

func (s *Keyspace) makeKey(id string) []byte {
	if s.prefix == "" {
		return []byte(id)
	}
	return []byte(fmt.Sprintf("%s:%s", s.prefix, id))
}

func (s *Keyspace) stripPrefix(key []byte) string {
	if s.prefix == "" {
		return string(key)
	}
	return strings.TrimPrefix(string(key), s.prefix+":")
}

func (s *Keyspace) name(id string) string {
	return string(s.makeKey(id))
}

// Get returns a copy of the value stored under id.
func (s *Keyspace) Get(id string) ([]byte, error) {
	var val []byte
	err := s.engine.db.View(func(txn *badger.Txn) error {
		var err error
		val, err = s.GetTxn(txn, id)
		return err
	})
	return val, err
}

// GetTxn reads id inside an existing transaction.
func (s *Keyspace) GetTxn(txn *badger.Txn, id string) ([]byte, error) {
	item, err := txn.Get(s.makeKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, vxerrors.NotFound("storage.get", s.name(id))
	}
	if err != nil {
		return nil, vxerrors.IOFailure("storage.get", s.name(id), err)
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return nil, vxerrors.IOFailure("storage.get", s.name(id), err)
	}
	return val, nil
}

func (s *Keyspace) Has(id string) (bool, error) {
	_, err := s.Get(id)
	if vxerrors.Is(err, vxerrors.ErrorTypeNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Set overwrites id unconditionally.
func (s *Keyspace) Set(id string, val []byte) error {
	return s.engine.Update("storage.set", s.name(id), func(txn *badger.Txn) error {
		return s.SetTxn(txn, id, val)
	})
}

func (s *Keyspace) SetTxn(txn *badger.Txn, id string, val []byte) error {
	if err := txn.Set(s.makeKey(id), val); err != nil {
		return vxerrors.IOFailure("storage.set", s.name(id), err)
	}
	return nil
}

// PutIfAbsent stores val unless id already exists. It reports whether a
// write happened.
func (s *Keyspace) PutIfAbsent(id string, val []byte) (bool, error) {
	created := false
	err := s.engine.Update("storage.put", s.name(id), func(txn *badger.Txn) error {
		_, err := txn.Get(s.makeKey(id))
		if err == nil {
			return nil
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return vxerrors.IOFailure("storage.put", s.name(id), err)
		}
		created = true
		return s.SetTxn(txn, id, val)
	})
	if err != nil {
		// a racing writer stored the same id first
		if vxerrors.Is(err, vxerrors.ErrorTypeConcurrentModification) {
			if ok, herr := s.Has(id); herr == nil && ok {
				return false, nil
			}
		}
		return false, err
	}
	return created, nil
}

func (s *Keyspace) GetJSON(id string, v any) error {
	val, err := s.Get(id)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(val, v); err != nil {
		return vxerrors.Corruption("storage.decode", s.name(id), err)
	}
	return nil
}

func (s *Keyspace) SetJSON(id string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", s.name(id), err)
	}
	return s.Set(id, data)
}

// List calls fn for every id under sub, in key order. Values are only valid
// for the duration of the call.
func (s *Keyspace) List(sub string, fn func(id string, val []byte) error) error {
	prefix := s.makeKey(sub)
	err := s.engine.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			id := s.stripPrefix(item.KeyCopy(nil))
			err := item.Value(func(val []byte) error {
				return fn(id, val)
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return vxerrors.Wrap("storage.list", string(prefix), err)
}
