package cache

import (
	"slices"

	"github.com/IvanBrykalov/ringcache/policy"
	"github.com/IvanBrykalov/ringcache/ring"
)

// topology is an immutable membership snapshot. Membership changes build a
// new one and publish it atomically; nothing mutates a published topology.
type topology struct {
	ring    *ring.Ring
	members []string // sorted
}

func newTopology(r *ring.Ring) *topology {
	return &topology{ring: r, members: r.Nodes()}
}

// owner resolves key to its primary node.
func (t *topology) owner(key string) (string, error) {
	return t.ring.GetNode(key)
}

// successor returns the member after id in sorted order, wrapping.
// It is false when id is not a member or is the only one.
func (t *topology) successor(id string) (string, bool) {
	if len(t.members) < 2 {
		return "", false
	}
	i, ok := slices.BinarySearch(t.members, id)
	if !ok {
		return "", false
	}
	return t.members[(i+1)%len(t.members)], true
}

// predecessor returns the member before id in sorted order, wrapping.
func (t *topology) predecessor(id string) (string, bool) {
	if len(t.members) < 2 {
		return "", false
	}
	i, ok := slices.BinarySearch(t.members, id)
	if !ok {
		return "", false
	}
	return t.members[(i-1+len(t.members))%len(t.members)], true
}

// member is one node's pair of stores.
type member[V any] struct {
	id        string
	primary   *nodeStore[V]
	secondary *nodeStore[V]
}

func newMember[V any](id string, capacity int, pol policy.Policy) *member[V] {
	return &member[V]{
		id:        id,
		primary:   newNodeStore[V](id, RolePrimary, capacity, pol),
		secondary: newNodeStore[V](id, RoleSecondary, capacity, pol),
	}
}
