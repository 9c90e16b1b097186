// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/poiesic/chunkit/core"
	"github.com/poiesic/chunkit/storage"
)

// CacheStoreImpl implements storage.CacheStore on BadgerDB. Entry TTLs
// are delegated to badger's native expiry so expired entries vanish
// without a sweeper.
type CacheStoreImpl struct {
	backend    *Backend
	ownBackend bool
}

var _ storage.CacheStore = (*CacheStoreImpl)(nil)

// NewCacheStore opens a cache store at the given path.
func NewCacheStore(path string) (storage.CacheStore, error) {
	backend, err := OpenBackend(path, false)
	if err != nil {
		return nil, err
	}
	return &CacheStoreImpl{backend: backend, ownBackend: true}, nil
}

// NewCacheStoreWithBackend wraps an existing backend. The caller keeps
// ownership of the backend's lifecycle.
func NewCacheStoreWithBackend(backend *Backend) storage.CacheStore {
	return &CacheStoreImpl{backend: backend}
}

// Get retrieves an entry by fingerprint.
func (s *CacheStoreImpl) Get(ctx context.Context, key core.Fingerprint) (*core.CacheEntry, error) {
	if s.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}

	var entry *core.CacheEntry
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeEntryKey(key))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return storage.ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			var unmarshalErr error
			entry, unmarshalErr = storage.UnmarshalCacheEntry(val)
			return unmarshalErr
		})
	}, false)
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Put stores an entry, replacing any previous one for the fingerprint.
// The entry and its document index row are written in one transaction.
func (s *CacheStoreImpl) Put(ctx context.Context, entry *core.CacheEntry) error {
	if s.backend.IsClosed() {
		return storage.ErrStorageClosed
	}

	return s.backend.WithTx(func(tx *badger.Txn) error {
		value := storage.MarshalCacheEntry(entry)

		be := badger.NewEntry(makeEntryKey(entry.Key), value)
		idx := badger.NewEntry(makeDocumentKey(entry.DocumentID, entry.Key), nil)
		if entry.TTL > 0 {
			be = be.WithTTL(entry.TTL)
			idx = idx.WithTTL(entry.TTL)
		}
		if err := tx.SetEntry(be); err != nil {
			return err
		}
		if err := tx.SetEntry(idx); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// Touch bumps the access count and timestamp of an existing entry.
func (s *CacheStoreImpl) Touch(ctx context.Context, key core.Fingerprint) error {
	if s.backend.IsClosed() {
		return storage.ErrStorageClosed
	}

	return s.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeEntryKey(key))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return nil
			}
			return err
		}

		var entry *core.CacheEntry
		if err := item.Value(func(val []byte) error {
			var unmarshalErr error
			entry, unmarshalErr = storage.UnmarshalCacheEntry(val)
			return unmarshalErr
		}); err != nil {
			return err
		}

		entry.AccessCount++
		entry.LastAccessed = time.Now().UTC()

		be := badger.NewEntry(makeEntryKey(key), storage.MarshalCacheEntry(entry))
		if entry.TTL > 0 {
			be = be.WithTTL(entry.TTL)
		}
		if err := tx.SetEntry(be); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// Delete removes an entry and its document index row.
func (s *CacheStoreImpl) Delete(ctx context.Context, key core.Fingerprint) error {
	if s.backend.IsClosed() {
		return storage.ErrStorageClosed
	}

	return s.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeEntryKey(key))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return nil
			}
			return err
		}

		var entry *core.CacheEntry
		if err := item.Value(func(val []byte) error {
			var unmarshalErr error
			entry, unmarshalErr = storage.UnmarshalCacheEntry(val)
			return unmarshalErr
		}); err != nil {
			return err
		}

		if err := tx.Delete(makeEntryKey(key)); err != nil {
			return err
		}
		if err := tx.Delete(makeDocumentKey(entry.DocumentID, key)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// DeleteByDocument removes every entry cached for a document.
func (s *CacheStoreImpl) DeleteByDocument(ctx context.Context, documentID string) (int, error) {
	if s.backend.IsClosed() {
		return 0, storage.ErrStorageClosed
	}

	removed := 0
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makePartialDocumentKey(documentID)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)

		var keys []core.Fingerprint
		for iter.Rewind(); iter.Valid(); iter.Next() {
			keys = append(keys, fingerprintFromDocumentKey(iter.Item().Key()))
		}
		iter.Close()

		for _, key := range keys {
			if err := tx.Delete(makeEntryKey(key)); err != nil {
				return err
			}
			if err := tx.Delete(makeDocumentKey(documentID, key)); err != nil {
				return err
			}
			removed++
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// Len returns the number of live entries.
func (s *CacheStoreImpl) Len(ctx context.Context) (int, error) {
	if s.backend.IsClosed() {
		return 0, storage.ErrStorageClosed
	}

	count := 0
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(cacheEntryPrefix + ":")
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Close closes the store and, when it owns it, the backend.
func (s *CacheStoreImpl) Close() error {
	if s.ownBackend {
		return s.backend.Close()
	}
	return nil
}
