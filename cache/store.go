package cache

import (
	"fmt"
	"iter"
	"sync"

	"github.com/IvanBrykalov/ringcache/internal/util"
	"github.com/IvanBrykalov/ringcache/policy"
)

// Store is one node's bounded key/value store as seen by replication and
// redistribution. A multi-process deployment puts an RPC client behind this
// interface (see Transport); the engine never reaches into another node's
// data except through it.
//
// Implementations are not synchronized: the caller holds the store's lock.
type Store[V any] interface {
	// Put inserts or overwrites key and makes it most recently used.
	// If the insert pushes the store over capacity, the least recently used
	// entry is evicted and returned with evicted == true.
	Put(key string, v V) (ev Eviction[V], evicted bool)
	// Get returns the value and makes it most recently used,
	// or ErrKeyNotFound.
	Get(key string) (V, error)
	// Remove deletes key regardless of its recency position.
	Remove(key string) bool
	// Entries yields every (key, value) pair. The sequence is finite and may
	// be ranged over again; its order is unspecified.
	Entries() iter.Seq2[string, V]
	// Len returns the number of resident entries.
	Len() int
}

// nodeStore is a bounded LRU store with an intrusive doubly linked list
// (head=MRU, tail=LRU) and a key->entry map. All operations are O(1)
// expected, except Entries.
type nodeStore[V any] struct {
	// ---- guarded by mu ----
	mu   sync.Mutex
	m    map[string]*entry[V]
	head *entry[V] // MRU
	tail *entry[V] // LRU
	len  int
	cap  int
	pol  policy.Recency

	node string
	role Role

	// ---- read without mu by Stats ----
	hits   util.Counter
	misses util.Counter
	evicts util.Counter
}

var _ Store[int] = (*nodeStore[int])(nil)

func newNodeStore[V any](node string, role Role, capacity int, pol policy.Policy) *nodeStore[V] {
	s := &nodeStore[V]{
		m:    make(map[string]*entry[V], capacity),
		cap:  capacity,
		node: node,
		role: role,
	}
	s.pol = pol.New(storeHooks[V]{s: s})
	return s
}

// Put implements Store (mu held).
func (s *nodeStore[V]) Put(k string, v V) (Eviction[V], bool) {
	if e, ok := s.m[k]; ok {
		e.val = v
		s.pol.Touch(e)
		return Eviction[V]{}, false
	}

	e := &entry[V]{key: k, val: v}
	s.m[k] = e
	s.pol.Admit(e)

	var ev Eviction[V]
	evicted := false
	if s.len > s.cap {
		victim := s.pol.Victim().(*entry[V])
		s.unlink(victim)
		s.evicts.Add(1)
		ev = Eviction[V]{
			Node:   s.node,
			Role:   s.role,
			Key:    victim.key,
			Value:  victim.val,
			Reason: EvictCapacity,
		}
		evicted = true
	}
	s.checkLocked()
	return ev, evicted
}

// Get implements Store (mu held).
func (s *nodeStore[V]) Get(k string) (V, error) {
	e, ok := s.m[k]
	if !ok {
		s.misses.Add(1)
		var zero V
		return zero, ErrKeyNotFound
	}
	s.pol.Touch(e)
	s.hits.Add(1)
	return e.val, nil
}

// Remove implements Store (mu held). Removal is not counted as an eviction.
func (s *nodeStore[V]) Remove(k string) bool {
	e, ok := s.m[k]
	if !ok {
		return false
	}
	s.unlink(e)
	return true
}

// Entries implements Store (mu held for the whole iteration).
// It walks LRU -> MRU; removing the yielded key inside the loop is allowed.
func (s *nodeStore[V]) Entries() iter.Seq2[string, V] {
	return func(yield func(string, V) bool) {
		for e := s.tail; e != nil; {
			prev := e.prev
			if !yield(e.key, e.val) {
				return
			}
			e = prev
		}
	}
}

// Len implements Store (mu held).
func (s *nodeStore[V]) Len() int { return s.len }

// Keys returns resident keys from MRU to LRU (mu held).
func (s *nodeStore[V]) Keys() []string {
	out := make([]string, 0, s.len)
	for e := s.head; e != nil; e = e.next {
		out = append(out, e.key)
	}
	return out
}

// -------------------- internals (mu held) --------------------

// checkLocked panics if the store broke its bound or its map and list diverged.
// Either means the store logic itself is wrong.
func (s *nodeStore[V]) checkLocked() {
	if s.len > s.cap {
		panic(fmt.Sprintf("cache: %s store of node %q holds %d entries, limit %d", s.role, s.node, s.len, s.cap))
	}
	if s.len != len(s.m) {
		panic(fmt.Sprintf("cache: %s store of node %q list has %d entries, map has %d", s.role, s.node, s.len, len(s.m)))
	}
}

// unlink drops e from policy, list and map.
func (s *nodeStore[V]) unlink(e *entry[V]) {
	s.pol.Forget(e)
	s.removeEntry(e)
	delete(s.m, e.key)
}

// insertFront links e at MRU in O(1).
func (s *nodeStore[V]) insertFront(e *entry[V]) {
	e.prev = nil
	e.next = s.head
	if s.head != nil {
		s.head.prev = e
	}
	s.head = e
	if s.tail == nil {
		s.tail = e
	}
	s.len++
}

// moveToFront promotes e to MRU in O(1).
func (s *nodeStore[V]) moveToFront(e *entry[V]) {
	if e == s.head {
		return
	}
	// detach
	if e.prev != nil {
		e.prev.next = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	}
	if s.tail == e {
		s.tail = e.prev
	}
	// insert at head
	e.prev = nil
	e.next = s.head
	if s.head != nil {
		s.head.prev = e
	}
	s.head = e
	if s.tail == nil {
		s.tail = e
	}
}

// removeEntry detaches e from the list in O(1).
func (s *nodeStore[V]) removeEntry(e *entry[V]) {
	if e.prev != nil {
		e.prev.next = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	}
	if s.head == e {
		s.head = e.next
	}
	if s.tail == e {
		s.tail = e.prev
	}
	e.prev, e.next = nil, nil
	s.len--
}

// -------------------- policy hooks --------------------

// storeHooks adapts the store's list operations to policy.Hooks.
type storeHooks[V any] struct{ s *nodeStore[V] }

func (h storeHooks[V]) PushFront(x policy.Entry)   { h.s.insertFront(x.(*entry[V])) }
func (h storeHooks[V]) MoveToFront(x policy.Entry) { h.s.moveToFront(x.(*entry[V])) }
func (h storeHooks[V]) Len() int                   { return h.s.len }

// Back returns the LRU entry; an empty list yields a nil interface, not a
// typed nil pointer.
func (h storeHooks[V]) Back() policy.Entry {
	if h.s.tail == nil {
		return nil
	}
	return h.s.tail
}
