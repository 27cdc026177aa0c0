package cache

// NodeStats is a point-in-time view of one node's stores.
type NodeStats struct {
	Node      string
	Primary   int // resident primary entries
	Secondary int // resident replicas
	Hits      uint64
	Misses    uint64
	Evictions uint64 // primary and secondary, all reasons
}

// Stats is a point-in-time view of the whole cache. Nodes are sorted by id.
type Stats struct {
	Nodes     []NodeStats
	Primary   int
	Secondary int
}

// Stats returns per-node store sizes and counters. Each store is locked
// briefly on its own, so the snapshot is not atomic across nodes.
func (c *engine[V]) Stats() Stats {
	t := c.topo.Load()
	out := Stats{Nodes: make([]NodeStats, 0, len(t.members))}
	for _, id := range t.members {
		m, ok := c.members.Load(id)
		if !ok {
			continue
		}
		ns := NodeStats{
			Node:      id,
			Hits:      m.primary.hits.Load(),
			Misses:    m.primary.misses.Load(),
			Evictions: m.primary.evicts.Load() + m.secondary.evicts.Load(),
		}
		m.primary.mu.Lock()
		ns.Primary = m.primary.Len()
		m.primary.mu.Unlock()
		m.secondary.mu.Lock()
		ns.Secondary = m.secondary.Len()
		m.secondary.mu.Unlock()

		out.Primary += ns.Primary
		out.Secondary += ns.Secondary
		out.Nodes = append(out.Nodes, ns)
	}
	return out
}
