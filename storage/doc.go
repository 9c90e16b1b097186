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


// Package storage defines the persistence abstraction for the cache's
// second tier.
//
// The CacheStore interface decouples the cache from its backing store
// so different backends (BadgerDB, in-memory) can be used
// interchangeably. Public constructors in backend packages return the
// interface, not the concrete type:
//
//	store, err := badger.NewCacheStore(path)  // returns storage.CacheStore
//
// Use in tests with in-memory storage:
//
//	store, err := badger.NewMemoryCacheStore()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
// All implementations must be thread-safe, and every method accepts a
// context.Context for cancellation.
package storage
