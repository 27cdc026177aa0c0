package cache

import (
	"fmt"
	"slices"
	"time"
)

// ChangeKind names a membership change.
type ChangeKind int

const (
	NodeAdded ChangeKind = iota
	NodeRemoved
)

func (k ChangeKind) String() string {
	if k == NodeRemoved {
		return "removed"
	}
	return "added"
}

// Redistribution summarizes one membership change.
type Redistribution struct {
	Kind ChangeKind
	Node string

	Moved   int // primary entries now held by their new owner
	Evicted int // entries pushed out of a full store while receiving
	Failed  int // entries dropped after the Transport kept failing
	Lost    int // entries of the last node removed; no owner remains
	// Replicated counts replica copies written or re-homed.
	Replicated int

	Duration time.Duration
}

// redistribution is one in-flight membership change. Every store it locks
// stays locked until finish, so callers routed by the new topology wait for
// the data to land instead of seeing a partially migrated store.
//
// Callers hold at most one store lock at a time and never wait on another
// lock while holding one, so taking further locks here as needed is safe.
type redistribution[V any] struct {
	c          *engine[V]
	prev, next *topology
	start      time.Time

	locked []*nodeStore[V]
	held   map[*nodeStore[V]]struct{}
	// mirrored holds keys whose replica was written from the fresh primary
	// copy; stale replicas of them are dropped rather than moved.
	mirrored map[string]struct{}

	sum Redistribution
}

func (c *engine[V]) begin(kind ChangeKind, id string, prev, next *topology) *redistribution[V] {
	return &redistribution[V]{
		c:        c,
		prev:     prev,
		next:     next,
		start:    time.Now(),
		held:     make(map[*nodeStore[V]]struct{}),
		mirrored: make(map[string]struct{}),
		sum:      Redistribution{Kind: kind, Node: id},
	}
}

// AddNode joins id and pulls onto it exactly the keys it now owns.
func (c *engine[V]) AddNode(id string) error {
	if c.closed.Load() {
		return ErrClosed
	}
	c.memberMu.Lock()
	defer c.memberMu.Unlock()

	prev := c.topo.Load()
	nr := prev.ring.Clone()
	if err := nr.AddNode(id); err != nil {
		return err
	}
	next := newTopology(nr)
	r := c.begin(NodeAdded, id, prev, next)

	nm := newMember[V](id, c.opt.MaxCacheSize, c.opt.Policy)
	r.lock(nm.primary)
	r.lock(nm.secondary)
	donors := nr.Heirs(id)
	for _, d := range donors {
		r.lock(c.member(d).primary)
	}

	// Replica holders whose contents change: the old secondaries of every
	// donor and of the new node's predecessor.
	var holders []string
	pred, hasPred := next.predecessor(id)
	if c.opt.ReplicationEnabled {
		for _, d := range append(slices.Clone(donors), pred) {
			if h, ok := prev.successor(d); ok {
				holders = append(holders, h)
			}
		}
		slices.Sort(holders)
		holders = slices.Compact(holders)
		for _, h := range holders {
			r.lock(c.member(h).secondary)
		}
		if s, ok := next.successor(id); ok {
			r.lock(c.member(s).secondary)
		}
	}

	c.members.Store(id, nm)
	c.topo.Store(next)

	for _, d := range donors {
		r.pull(c.member(d), nm)
	}
	if c.opt.ReplicationEnabled {
		for _, h := range holders {
			r.rehome(c.member(h))
		}
		if hasPred {
			if _, ok := prev.successor(pred); !ok {
				// pred was alone: its keys never had a replica.
				r.backfill(c.member(pred), nm)
			}
		}
	}
	r.finish()
	return nil
}

// RemoveNode takes id off the ring and hands its keys to their new owners.
func (c *engine[V]) RemoveNode(id string) error {
	if c.closed.Load() {
		return ErrClosed
	}
	c.memberMu.Lock()
	defer c.memberMu.Unlock()

	prev := c.topo.Load()
	nr := prev.ring.Clone()
	if err := nr.RemoveNode(id); err != nil {
		return err
	}
	next := newTopology(nr)
	r := c.begin(NodeRemoved, id, prev, next)

	gone := c.member(id)
	r.lock(gone.primary)
	r.lock(gone.secondary)
	heirs := prev.ring.Heirs(id)
	for _, h := range heirs {
		r.lock(c.member(h).primary)
	}
	holder, hasHolder := prev.successor(id)
	if c.opt.ReplicationEnabled {
		for _, h := range heirs {
			if s, ok := next.successor(h); ok {
				r.lock(c.member(s).secondary)
			}
		}
		if hasHolder {
			r.lock(c.member(holder).secondary)
		}
	}

	c.topo.Store(next)

	r.drain(gone)
	if c.opt.ReplicationEnabled {
		r.rehome(gone)
		if hasHolder {
			r.rehome(c.member(holder))
		}
	}
	c.members.Delete(id)
	r.finish()
	return nil
}

// lock takes s.mu once per redistribution.
func (r *redistribution[V]) lock(s *nodeStore[V]) {
	if _, ok := r.held[s]; ok {
		return
	}
	s.mu.Lock()
	r.held[s] = struct{}{}
	r.locked = append(r.locked, s)
}

// drain hands every primary entry of a leaving node to its new owner,
// least recently used first so that recency survives the move.
func (r *redistribution[V]) drain(src *member[V]) {
	for key, v := range src.primary.Entries() {
		owner, err := r.next.owner(key)
		if err != nil {
			r.sum.Lost++
			continue
		}
		if owner == src.id {
			panic(fmt.Sprintf("cache: ring still maps %q to removed node %q", key, src.id))
		}
		r.move(src.id, r.c.member(owner), key, v)
	}
}

// pull moves from donor to dst the primary entries dst now owns.
func (r *redistribution[V]) pull(donor, dst *member[V]) {
	for key, v := range donor.primary.Entries() {
		if owner, _ := r.next.owner(key); owner != dst.id {
			continue
		}
		donor.primary.Remove(key)
		r.move(donor.id, dst, key, v)
	}
}

// move sends one primary entry to dst. A persistent Transport failure drops
// the entry; the rest of the redistribution carries on.
func (r *redistribution[V]) move(from string, dst *member[V], key string, v V) {
	r.lock(dst.primary)
	ev, evicted, err := r.c.send(from, dst.id, dst.primary, key, v)
	if err != nil {
		r.sum.Failed++
		r.c.opt.Metrics.MigrationFailed(from, dst.id)
		r.c.log.Errorf("redistribute: %v", err)
		return
	}
	r.sum.Moved++
	r.c.opt.Metrics.Migrated(from, dst.id)
	if evicted {
		r.evicted(ev)
	}
	if !r.c.opt.ReplicationEnabled {
		return
	}
	if sec, ok := r.next.successor(dst.id); ok {
		r.place(dst.id, r.c.member(sec), key, v)
		r.mirrored[key] = struct{}{}
	}
}

// rehome walks holder's replicas and moves every one whose expected holder
// under the new topology is some other node. Replicas of keys that no longer
// have a secondary are dropped.
func (r *redistribution[V]) rehome(holder *member[V]) {
	s := holder.secondary
	r.lock(s)
	for key, v := range s.Entries() {
		want, ok := "", false
		if owner, err := r.next.owner(key); err == nil {
			want, ok = r.next.successor(owner)
		}
		if ok && want == holder.id {
			continue
		}
		s.Remove(key)
		if !ok {
			continue
		}
		if _, done := r.mirrored[key]; done {
			continue
		}
		r.place(holder.id, r.c.member(want), key, v)
	}
}

// backfill replicates every primary entry of src into dst's secondary store.
func (r *redistribution[V]) backfill(src, dst *member[V]) {
	for key, v := range src.primary.Entries() {
		r.place(src.id, dst, key, v)
	}
}

// place writes one replica into dst's secondary store.
func (r *redistribution[V]) place(from string, dst *member[V], key string, v V) {
	r.lock(dst.secondary)
	ev, evicted, err := r.c.send(from, dst.id, dst.secondary, key, v)
	if err != nil {
		r.sum.Failed++
		r.c.opt.Metrics.MigrationFailed(from, dst.id)
		r.c.log.Errorf("redistribute replica: %v", err)
		return
	}
	r.sum.Replicated++
	if evicted {
		r.evicted(ev)
	}
}

func (r *redistribution[V]) evicted(ev Eviction[V]) {
	ev.Reason = EvictMigration
	r.sum.Evicted++
	r.c.evicted(ev)
}

// finish reports store sizes, releases every lock and records the summary.
func (r *redistribution[V]) finish() {
	c := r.c
	for _, s := range r.locked {
		n := s.Len()
		if r.sum.Kind == NodeRemoved && s.node == r.sum.Node {
			n = 0
		}
		c.opt.Metrics.Size(s.node, s.role, n)
		s.mu.Unlock()
	}
	r.sum.Duration = time.Since(r.start)
	sum := r.sum
	c.last.Store(&sum)
	c.opt.Metrics.Members(len(r.next.members))
	c.log.Infof("node %s %s: %d members, moved %d, evicted %d, failed %d, lost %d, replicated %d in %s",
		sum.Node, sum.Kind, len(r.next.members), sum.Moved, sum.Evicted, sum.Failed, sum.Lost, sum.Replicated, sum.Duration)
}
