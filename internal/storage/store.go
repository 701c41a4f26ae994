// Package storage provides a small Badger-backed key/value store used to
// persist the vector index and repository overview index to disk between
// runs, with crash-safe atomic writes via BadgerDB's transactions.
package storage

import (
	"github.com/dgraph-io/badger/v4"
)

// Store is a namespaced key/value store backed by a single BadgerDB instance.
type Store struct {
	db     *badger.DB
	closed bool
}

// Open opens (creating if necessary) a Badger store rooted at dir. Pass
// dir == "" for an in-memory store, useful for tests and for repositories
// indexed without a configured persist_directory.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying BadgerDB handle.
func (s *Store) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// Put atomically writes one key/value pair.
func (s *Store) Put(key string, value []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
}

// PutBatch atomically writes every key/value pair in a single transaction,
// so a crash mid-write never leaves a partially-indexed repo visible.
func (s *Store) PutBatch(kv map[string][]byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		for k, v := range kv {
			if err := txn.Set([]byte(k), v); err != nil {
				return err
			}
		}
		return nil
	})
}

// Get returns the value for key, or (nil, false) if it doesn't exist.
func (s *Store) Get(key string) ([]byte, bool) {
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			out = append([]byte(nil), val...)
			return nil
		})
	})
	if err != nil {
		return nil, false
	}
	return out, true
}

// Delete removes a key. Deleting a missing key is not an error.
func (s *Store) Delete(key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(key))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		return err
	})
}

// DeletePrefix removes every key under prefix.
func (s *Store) DeletePrefix(prefix string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		var keys [][]byte
		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			keys = append(keys, append([]byte(nil), it.Item().Key()...))
		}
		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

// ScanPrefix calls fn for every key/value pair whose key starts with prefix,
// in key order. fn's value slice is only valid for the duration of the call.
func (s *Store) ScanPrefix(prefix string, fn func(key string, value []byte) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			item := it.Item()
			if err := item.Value(func(val []byte) error {
				return fn(string(item.Key()), val)
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

// HasPrefix reports whether any key under prefix exists.
func (s *Store) HasPrefix(prefix string) bool {
	found := false
	_ = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		p := []byte(prefix)
		it.Seek(p)
		found = it.ValidForPrefix(p)
		return nil
	})
	return found
}
