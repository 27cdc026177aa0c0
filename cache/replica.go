package cache

// The secondary of a node is the next member in ascending node-id order,
// wrapping. It holds a copy of every key the node owns, in its secondary
// store. With a single member there is no secondary.

// replicate mirrors key->v from owner into the owner's secondary. The primary
// store is already unlocked; the secondary is locked on its own, so no caller
// ever holds two store locks.
func (c *engine[V]) replicate(owner, key string, v V) {
	m, ok := c.lockReplica(key)
	if !ok {
		return
	}
	defer m.secondary.mu.Unlock()

	ev, evicted, err := c.send(owner, m.id, m.secondary, key, v)
	if err != nil {
		c.log.Errorf("replicate %q: %v", key, err)
		return
	}
	if evicted {
		c.evicted(ev)
	}
	c.opt.Metrics.Size(m.id, RoleSecondary, m.secondary.Len())
}

// readReplica reads key from the secondary store of its current owner.
func (c *engine[V]) readReplica(key string) (V, string, bool) {
	var zero V
	m, ok := c.lockReplica(key)
	if !ok {
		return zero, "", false
	}
	v, err := m.secondary.Get(key)
	m.secondary.mu.Unlock()
	if err != nil {
		return zero, "", false
	}
	return v, m.id, true
}

// lockReplica returns the member holding key's replica with its secondary
// store locked, re-resolving if the topology changes meanwhile.
// It is false when key has no secondary (fewer than two members).
func (c *engine[V]) lockReplica(key string) (*member[V], bool) {
	for {
		t := c.topo.Load()
		owner, err := t.owner(key)
		if err != nil {
			return nil, false
		}
		id, ok := t.successor(owner)
		if !ok {
			return nil, false
		}
		m, ok := c.members.Load(id)
		if !ok {
			continue
		}
		m.secondary.mu.Lock()
		if c.topo.Load() == t {
			return m, true
		}
		m.secondary.mu.Unlock()
	}
}
