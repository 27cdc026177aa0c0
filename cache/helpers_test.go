package cache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// recMetrics records every Metrics signal for assertions.
type recMetrics struct {
	mu        sync.Mutex
	hits      map[string]int
	misses    map[string]int
	fallbacks map[string]int
	evicts    map[EvictReason]int
	migrated  int
	failed    int
	members   int
	sizes     map[string]int // "node/role" -> last reported size
}

func newRecMetrics() *recMetrics {
	return &recMetrics{
		hits:      map[string]int{},
		misses:    map[string]int{},
		fallbacks: map[string]int{},
		evicts:    map[EvictReason]int{},
		sizes:     map[string]int{},
	}
}

func (m *recMetrics) Hit(n string) {
	m.mu.Lock()
	m.hits[n]++
	m.mu.Unlock()
}
func (m *recMetrics) Miss(n string) {
	m.mu.Lock()
	m.misses[n]++
	m.mu.Unlock()
}
func (m *recMetrics) FallbackHit(n string) {
	m.mu.Lock()
	m.fallbacks[n]++
	m.mu.Unlock()
}
func (m *recMetrics) Evict(_ string, _ Role, r EvictReason) {
	m.mu.Lock()
	m.evicts[r]++
	m.mu.Unlock()
}
func (m *recMetrics) Size(n string, r Role, entries int) {
	m.mu.Lock()
	m.sizes[n+"/"+r.String()] = entries
	m.mu.Unlock()
}
func (m *recMetrics) Migrated(string, string) {
	m.mu.Lock()
	m.migrated++
	m.mu.Unlock()
}
func (m *recMetrics) MigrationFailed(string, string) {
	m.mu.Lock()
	m.failed++
	m.mu.Unlock()
}
func (m *recMetrics) Members(n int) {
	m.mu.Lock()
	m.members = n
	m.mu.Unlock()
}

func asEngine[V any](t testing.TB, c Cache[V]) *engine[V] {
	t.Helper()
	e, ok := c.(*engine[V])
	require.True(t, ok)
	return e
}

// newCluster builds a cache with the given nodes joined in order.
func newCluster[V any](t testing.TB, opt Options[V], nodes ...string) *engine[V] {
	t.Helper()
	c := New[V](opt)
	t.Cleanup(func() { _ = c.Close() })
	for _, n := range nodes {
		require.NoError(t, c.AddNode(n))
	}
	return asEngine(t, c)
}

func keys(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("key-%d", i)
	}
	return out
}

// ownerOf resolves key against the published topology.
func ownerOf[V any](t testing.TB, e *engine[V], key string) string {
	t.Helper()
	id, err := e.topo.Load().owner(key)
	require.NoError(t, err)
	return id
}

// primaryKeys returns the keys resident in node's primary store.
func primaryKeys[V any](e *engine[V], node string) []string {
	m, ok := e.members.Load(node)
	if !ok {
		return nil
	}
	m.primary.mu.Lock()
	defer m.primary.mu.Unlock()
	return m.primary.Keys()
}

func secondaryKeys[V any](e *engine[V], node string) []string {
	m, ok := e.members.Load(node)
	if !ok {
		return nil
	}
	m.secondary.mu.Lock()
	defer m.secondary.mu.Unlock()
	return m.secondary.Keys()
}

// requirePlacement checks that every primary entry sits on its owner and,
// with replication, that secondaries hold exactly the replicas they should.
// Stores must be large enough that nothing was evicted.
func requirePlacement[V any](t testing.TB, e *engine[V]) {
	t.Helper()
	topo := e.topo.Load()
	for _, id := range topo.members {
		for _, k := range primaryKeys(e, id) {
			require.Equal(t, id, ownerOf(t, e, k), "primary %s holds foreign key %q", id, k)
			if !e.opt.ReplicationEnabled {
				continue
			}
			sec, ok := topo.successor(id)
			if !ok {
				continue
			}
			require.Contains(t, secondaryKeys(e, sec), k, "replica of %q missing on %s", k, sec)
		}
		for _, k := range secondaryKeys(e, id) {
			require.True(t, e.opt.ReplicationEnabled, "replica %q without replication", k)
			want, ok := topo.successor(ownerOf(t, e, k))
			require.True(t, ok, "replica %q kept without a secondary", k)
			require.Equal(t, want, id, "replica %q on %s, want %s", k, id, want)
		}
	}
}
