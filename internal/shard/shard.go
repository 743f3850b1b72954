// Package shard provides a 64-way sharded concurrent map, the idiomatic Go
// substitute for a lock-free DashMap: fine-grained per-key mutation under a
// per-shard mutex instead of one coarse lock over the whole map.
package shard

import (
	"hash/fnv"
	"sync"
)

const numShards = 64

// Map is a generic sharded map safe for concurrent use. The zero value is
// not usable; construct with New.
type Map[V any] struct {
	shards [numShards]*shardEntry[V]
}

type shardEntry[V any] struct {
	mu sync.Mutex
	m  map[string]V
}

// New constructs an empty sharded map.
func New[V any]() *Map[V] {
	sm := &Map[V]{}
	for i := range sm.shards {
		sm.shards[i] = &shardEntry[V]{m: make(map[string]V)}
	}
	return sm
}

func (sm *Map[V]) shardFor(key string) *shardEntry[V] {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return sm.shards[h.Sum32()%numShards]
}

// Get returns the value for key and whether it was present.
func (sm *Map[V]) Get(key string) (V, bool) {
	s := sm.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[key]
	return v, ok
}

// Set stores value under key.
func (sm *Map[V]) Set(key string, value V) {
	s := sm.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = value
}

// Delete removes key.
func (sm *Map[V]) Delete(key string) {
	s := sm.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
}

// GetOrCreate returns the existing value for key, or calls create, stores,
// and returns its result if absent. create is invoked with the shard's lock
// held, so it must not re-enter the same Map.
func (sm *Map[V]) GetOrCreate(key string, create func() V) V {
	s := sm.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.m[key]; ok {
		return v
	}
	v := create()
	s.m[key] = v
	return v
}

// Update atomically loads (or zero-values) the entry for key, lets fn mutate
// a pointer to it, and stores the result back, all under the shard's lock.
func (sm *Map[V]) Update(key string, fn func(v *V)) {
	s := sm.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.m[key]
	fn(&v)
	s.m[key] = v
}
