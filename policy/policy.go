// Package policy defines the recency seam of a node store.
//
// A node store owns a key->entry map and an intrusive MRU↔LRU list. A policy
// decides where entries go in that list and which one leaves when the store
// is over capacity. Policies only see keys; values stay with the store.
package policy

// Entry is a resident store entry as seen by a policy.
type Entry interface {
	Key() string
}

// Hooks expose O(1) list operations that a policy uses to order the store.
// Implementations are provided by the store and are called under its lock.
// Hooks manage only the list; the store owns the key->entry map.
type Hooks interface {
	// PushFront links a newly admitted entry at MRU.
	PushFront(Entry)
	// MoveToFront promotes a resident entry to MRU.
	MoveToFront(Entry)
	// Back returns the LRU entry, or nil if the list is empty.
	Back() Entry
	// Len returns the number of linked entries.
	Len() int
}

// Recency is a per-store policy instance bound to that store's hooks.
// All methods are invoked under the store lock.
//
// Semantics:
//   - Admit places a new entry; Touch records a read or an overwrite.
//   - Forget is a notification that the store unlinked the entry
//     (explicit removal, migration, or eviction).
//   - Victim names the entry to evict when the store is over capacity.
//     It must be deterministic for a given access history.
type Recency interface {
	Admit(Entry)
	Touch(Entry)
	Forget(Entry)
	Victim() Entry
}

// Policy is a factory creating store-local Recency instances.
type Policy interface {
	New(Hooks) Recency
}
