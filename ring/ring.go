package ring

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/IvanBrykalov/ringcache/internal/util"
)

// DefaultVirtualNodes is used when New is given a non-positive count.
const DefaultVirtualNodes = 64

var (
	// ErrDuplicateNode is returned by AddNode for a node that is already present.
	ErrDuplicateNode = errors.New("ring: duplicate node")
	// ErrUnknownNode is returned by RemoveNode for a node that is not present.
	ErrUnknownNode = errors.New("ring: unknown node")
	// ErrNoNodes is returned by GetNode when the ring has no points.
	ErrNoNodes = errors.New("ring: no nodes available")
)

// point is one virtual node: a ring position and the node that owns it.
type point struct {
	hash uint64
	node string
}

// Ring maps keys to node ids by consistent hashing.
type Ring struct {
	mu     sync.RWMutex
	vnodes int
	points []point            // sorted by hash, hashes unique
	nodes  map[string][]uint64 // node id -> its point hashes
}

// New creates an empty ring placing vnodes points per node.
// A non-positive vnodes selects DefaultVirtualNodes.
func New(vnodes int) *Ring {
	if vnodes <= 0 {
		vnodes = DefaultVirtualNodes
	}
	return &Ring{
		vnodes: vnodes,
		nodes:  make(map[string][]uint64),
	}
}

// VirtualNodes returns the number of points placed per node.
func (r *Ring) VirtualNodes() int { return r.vnodes }

// AddNode inserts the node's points into the ring.
//
// Point i of node id sits at util.PointHash(id, i). If that position is
// already taken by another point, the next free position is used instead, so
// no two points ever share a hash.
func (r *Ring) AddNode(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.nodes[id]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateNode, id)
	}

	hashes := make([]uint64, 0, r.vnodes)
	for i := 0; i < r.vnodes; i++ {
		h := util.PointHash(id, i)
		idx := r.search(h)
		for idx < len(r.points) && r.points[idx].hash == h {
			h++ // linear probe; wraps at 2^64
			idx = r.search(h)
		}
		r.points = slices.Insert(r.points, idx, point{hash: h, node: id})
		hashes = append(hashes, h)
	}
	slices.Sort(hashes)
	r.nodes[id] = hashes
	return nil
}

// RemoveNode deletes all points of the node.
func (r *Ring) RemoveNode(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.nodes[id]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownNode, id)
	}
	delete(r.nodes, id)
	r.points = slices.DeleteFunc(r.points, func(p point) bool { return p.node == id })
	return nil
}

// GetNode returns the node owning the first point clockwise from the key's hash.
func (r *Ring) GetNode(key string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.points) == 0 {
		return "", ErrNoNodes
	}
	idx := r.search(util.KeyHash(key))
	if idx == len(r.points) {
		idx = 0 // wrap around
	}
	return r.points[idx].node, nil
}

// Heirs returns, sorted, the distinct nodes that own the first foreign point
// clockwise after each point of id.
//
// For a node about to leave, these are the nodes that inherit its keys.
// For a node that just joined, these are the nodes whose ranges it took over.
// Returns nil if id is unknown or is the only node.
func (r *Ring) Heirs(id string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	own, ok := r.nodes[id]
	if !ok || len(r.nodes) < 2 {
		return nil
	}

	seen := make(map[string]struct{}, len(r.nodes))
	for _, h := range own {
		idx := r.search(h)
		for j := 1; j <= len(r.points); j++ {
			p := r.points[(idx+j)%len(r.points)]
			if p.node != id {
				seen[p.node] = struct{}{}
				break
			}
		}
	}

	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}

// Has reports whether the node is a member of the ring.
func (r *Ring) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.nodes[id]
	return ok
}

// Nodes returns the member ids in ascending order.
func (r *Ring) Nodes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.nodes))
	for id := range r.nodes {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// Len returns the number of member nodes.
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nodes)
}

// Points returns a sorted copy of the node's point hashes (nil if unknown).
func (r *Ring) Points(id string) []uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.nodes[id])
}

// Clone returns an independent copy of the ring.
func (r *Ring) Clone() *Ring {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c := &Ring{
		vnodes: r.vnodes,
		points: slices.Clone(r.points),
		nodes:  make(map[string][]uint64, len(r.nodes)),
	}
	for id, hs := range r.nodes {
		c.nodes[id] = slices.Clone(hs)
	}
	return c
}

// search returns the index of the first point with hash >= h (mu held).
func (r *Ring) search(h uint64) int {
	return sort.Search(len(r.points), func(i int) bool {
		return r.points[i].hash >= h
	})
}
