package shardedmap

import (
	"sync"

	"github.com/huynhanx03/go-cqueue/pkg/utils"
)

const defaultShards = 256

// Map is a thread-safe map that spreads keys over independently locked
// shards to keep contention low under many concurrent writers.
type Map[K comparable, V any] struct {
	shards []*lockedShard[K, V]
	mask   uint64
	hasher func(K) uint64
}

type lockedShard[K comparable, V any] struct {
	sync.RWMutex
	data map[K]V

	_ [64]byte // keep neighbouring shards off the same cache line
}

// New creates a Map with shards rounded up to a power of 2.
// shards <= 0 selects the default of 256.
func New[K comparable, V any](shards int, hashFn func(K) uint64) *Map[K, V] {
	if hashFn == nil {
		panic("shardedmap: nil hash function")
	}
	if shards <= 0 {
		shards = defaultShards
	}
	n := utils.CeilToPowerOfTwo(shards)

	m := &Map[K, V]{
		shards: make([]*lockedShard[K, V], n),
		mask:   uint64(n - 1),
		hasher: hashFn,
	}
	for i := range m.shards {
		m.shards[i] = &lockedShard[K, V]{data: make(map[K]V)}
	}
	return m
}

func (m *Map[K, V]) shard(key K) *lockedShard[K, V] {
	return m.shards[m.hasher(key)&m.mask]
}

// Get retrieves a value from the map.
func (m *Map[K, V]) Get(key K) (V, bool) {
	s := m.shard(key)
	s.RLock()
	v, ok := s.data[key]
	s.RUnlock()
	return v, ok
}

// Set stores value under key.
func (m *Map[K, V]) Set(key K, value V) {
	s := m.shard(key)
	s.Lock()
	s.data[key] = value
	s.Unlock()
}

// Update replaces the value under key with fn(old, found) atomically with
// respect to other writers of the same key, and returns the new value.
func (m *Map[K, V]) Update(key K, fn func(old V, found bool) V) V {
	s := m.shard(key)
	s.Lock()
	old, found := s.data[key]
	v := fn(old, found)
	s.data[key] = v
	s.Unlock()
	return v
}

// Len returns the total number of keys.
// Shards are locked one at a time, so the result is not atomic across the map.
func (m *Map[K, V]) Len() int {
	total := 0
	for _, s := range m.shards {
		s.RLock()
		total += len(s.data)
		s.RUnlock()
	}
	return total
}

// Do calls fn for every entry, holding one shard's read lock at a time.
func (m *Map[K, V]) Do(fn func(K, V)) {
	for _, s := range m.shards {
		s.RLock()
		for k, v := range s.data {
			fn(k, v)
		}
		s.RUnlock()
	}
}
