// Package lru implements strict least-recently-used recency for node stores.
package lru

import "github.com/IvanBrykalov/ringcache/policy"

// lru keeps the store list in access order: every admit and touch moves the
// entry to MRU, so the tail is always the entry with the oldest last access.
// Entries never touched since insertion keep insertion order, which breaks
// ties between equally unused entries in favour of the earlier insert.
type lru struct {
	h policy.Hooks
}

type lruPolicy struct{}

// New returns a Policy factory that constructs per-store LRU instances.
func New() policy.Policy { return lruPolicy{} }

// New implements policy.Policy.
func (lruPolicy) New(h policy.Hooks) policy.Recency { return &lru{h: h} }

// Admit links the new entry at MRU.
func (p *lru) Admit(e policy.Entry) { p.h.PushFront(e) }

// Touch promotes the entry to MRU (reads and overwrites are both recent use).
func (p *lru) Touch(e policy.Entry) { p.h.MoveToFront(e) }

// Forget is a no-op: LRU keeps no state outside the store list.
func (p *lru) Forget(policy.Entry) {}

// Victim returns the LRU tail.
func (p *lru) Victim() policy.Entry { return p.h.Back() }
