package fixmap

import (
	"errors"
	"sync"
	"sync/atomic"
	"unsafe"
)

// ErrInvalidCapacity is returned by New when capacity is not positive.
var ErrInvalidCapacity = errors.New("fixmap: capacity must be positive")

// Map is a fixed-capacity, thread-safe hash map from int32 keys to int32
// values, built on per-bucket locking.
//
// Concurrency model:
//   - Each bucket owns a singly-linked collision chain guarded by its own
//     mutex; operations on different buckets never contend. The bucket
//     index is uint32(key) % capacity.
//   - Two aggregate counters (live entry count, lifetime operation count)
//     live under their own SpinLocks, decoupled from the bucket locks:
//     a counter update happens strictly after the owning bucket lock has
//     been released. A freshly inserted entry is therefore visible to
//     other readers of its bucket for a brief window before Size reflects
//     it; Size and Ops are exact once writers quiesce.
//   - Operations on the same key are linearized by that key's bucket lock.
//     No operation ever holds two bucket locks, or a bucket lock and a
//     counter lock at the same time, so no lock-ordering cycle exists.
//
// Notes:
//   - Capacity is fixed at construction. There is no rehashing; chains grow
//     unboundedly under adversarial key distributions, degrading bucket
//     operations to O(chain length).
//   - A Map must not be copied after first use, and must not be used after
//     Close.
type Map struct {
	_       noCopy
	buckets []bucket
	closed  atomic.Bool
	size    counter
	ops     counter
}

// entry is a node in a bucket's collision chain. A node is owned by its
// predecessor (or by the bucket head); unlinking it releases the node to
// the garbage collector.
type entry struct {
	key   int32
	value int32
	next  *entry
}

type bucketNoPad struct {
	mu   sync.Mutex
	head *entry
}

const bucketPadSize = (cacheLineSize -
	unsafe.Sizeof(bucketNoPad{})%cacheLineSize) % cacheLineSize

// bucket pairs a chain head with its lock, padded out to a cache line so
// that neighboring bucket locks do not false-share.
type bucket struct {
	mu   sync.Mutex
	head *entry
	_    [bucketPadSize]byte
}

type counterNoPad struct {
	lock SpinLock
	n    int64
}

const counterPadSize = (cacheLineSize -
	unsafe.Sizeof(counterNoPad{})%cacheLineSize) % cacheLineSize

// counter is an int64 under its own SpinLock, padded to a cache line so
// the size and ops counters do not false-share with each other.
type counter struct {
	lock SpinLock
	n    int64
	_    [counterPadSize]byte
}

func (c *counter) add(delta int64) {
	c.lock.Lock()
	c.n += delta
	c.lock.Unlock()
}

func (c *counter) load() int64 {
	c.lock.Lock()
	n := c.n
	c.lock.Unlock()
	return n
}

// New creates a Map with the given number of buckets. All buckets and locks
// are allocated before New returns; no background goroutines are started.
// Returns ErrInvalidCapacity if capacity <= 0.
func New(capacity int) (*Map, error) {
	if capacity <= 0 {
		return nil, ErrInvalidCapacity
	}
	return &Map{buckets: make([]bucket, capacity)}, nil
}

func (m *Map) checkOpen() {
	if m.closed.Load() {
		panic("fixmap: use of closed Map")
	}
}

//go:nosplit
func (m *Map) bucketFor(key int32) *bucket {
	return &m.buckets[uint32(key)%uint32(len(m.buckets))]
}

// Load retrieves the value for a key.
// The ok result reports whether the key was present.
func (m *Map) Load(key int32) (value int32, ok bool) {
	m.checkOpen()
	m.ops.add(1)
	b := m.bucketFor(key)
	b.mu.Lock()
	for e := b.head; e != nil; e = e.next {
		if e.key == key {
			value = e.value
			b.mu.Unlock()
			return value, true
		}
	}
	b.mu.Unlock()
	return 0, false
}

// Swap stores value for key and returns the previous value if any.
// The loaded result reports whether the key was present.
func (m *Map) Swap(key, value int32) (previous int32, loaded bool) {
	m.checkOpen()
	m.ops.add(1)
	b := m.bucketFor(key)
	b.mu.Lock()
	for e := b.head; e != nil; e = e.next {
		if e.key == key {
			previous = e.value
			e.value = value
			b.mu.Unlock()
			return previous, true
		}
	}
	// New key: prepend, so the most recently inserted entry heads the chain.
	b.head = &entry{key: key, value: value, next: b.head}
	b.mu.Unlock()
	m.size.add(1)
	return 0, false
}

// Store sets the value for a key.
func (m *Map) Store(key, value int32) {
	m.Swap(key, value)
}

// LoadOrStore returns the existing value for the key if present.
// Otherwise, it stores and returns the given value.
// The loaded result is true if the value was loaded, false if stored.
func (m *Map) LoadOrStore(key, value int32) (actual int32, loaded bool) {
	m.checkOpen()
	m.ops.add(1)
	b := m.bucketFor(key)
	b.mu.Lock()
	for e := b.head; e != nil; e = e.next {
		if e.key == key {
			actual = e.value
			b.mu.Unlock()
			return actual, true
		}
	}
	b.head = &entry{key: key, value: value, next: b.head}
	b.mu.Unlock()
	m.size.add(1)
	return value, false
}

// LoadAndDelete deletes the value for a key, returning the previous value.
// The loaded result reports whether the key was present.
func (m *Map) LoadAndDelete(key int32) (previous int32, loaded bool) {
	m.checkOpen()
	m.ops.add(1)
	b := m.bucketFor(key)
	b.mu.Lock()
	var prev *entry
	for e := b.head; e != nil; e = e.next {
		if e.key == key {
			if prev == nil {
				b.head = e.next
			} else {
				prev.next = e.next
			}
			b.mu.Unlock()
			m.size.add(-1)
			return e.value, true
		}
		prev = e
	}
	b.mu.Unlock()
	return 0, false
}

// Delete deletes the value for a key.
func (m *Map) Delete(key int32) {
	m.LoadAndDelete(key)
}

// Range iterates all entries. Each bucket's chain is copied under that
// bucket's lock and yielded outside it, so the view is consistent per
// bucket but not across buckets. Returning false from the callback stops
// iteration early. Range does not count toward Ops.
func (m *Map) Range(yield func(key, value int32) bool) {
	m.checkOpen()
	var cache []entry
	for i := range m.buckets {
		b := &m.buckets[i]
		cache = cache[:0]
		b.mu.Lock()
		for e := b.head; e != nil; e = e.next {
			cache = append(cache, entry{key: e.key, value: e.value})
		}
		b.mu.Unlock()
		for j := range cache {
			if !yield(cache[j].key, cache[j].value) {
				return
			}
		}
	}
}

// Size returns the number of entries in the map. It is exact when no
// writers are in flight; under concurrent mutation it may lag a structural
// change by one counter update (see the Map concurrency model).
func (m *Map) Size() int {
	m.checkOpen()
	return int(m.size.load())
}

// Ops returns the lifetime operation count: every Load, Swap, Store,
// LoadOrStore, LoadAndDelete and Delete call counts exactly once,
// regardless of outcome.
func (m *Map) Ops() uint64 {
	m.checkOpen()
	return uint64(m.ops.load())
}

// Capacity returns the fixed bucket count.
func (m *Map) Capacity() int {
	return len(m.buckets)
}

// Close tears the map down: every chain is emptied and the entry count is
// reset. It must be called exactly once, after all concurrent operations
// have quiesced. Any operation after Close, or a second Close, panics.
func (m *Map) Close() {
	if !m.closed.CompareAndSwap(false, true) {
		panic("fixmap: Close of closed Map")
	}
	for i := range m.buckets {
		b := &m.buckets[i]
		b.mu.Lock()
		b.head = nil
		b.mu.Unlock()
	}
	m.size.lock.Lock()
	m.size.n = 0
	m.size.lock.Unlock()
}
