package cache

// entry is an intrusive doubly linked list element owned by a node store.
type entry[V any] struct {
	key string
	val V

	// Intrusive list links: head is MRU, tail is LRU.
	prev *entry[V]
	next *entry[V]
}

// Key returns the entry key (part of policy.Entry interface).
func (e *entry[V]) Key() string { return e.key }
