package cache

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/IvanBrykalov/ringcache/ring"
)

func TestCache_EmptyRing(t *testing.T) {
	t.Parallel()

	c := New[string](Options[string]{})
	t.Cleanup(func() { _ = c.Close() })

	require.ErrorIs(t, c.Set("k", "v"), ErrNoNodesAvailable)
	_, err := c.Get("k")
	require.ErrorIs(t, err, ErrNoNodesAvailable)
	assert.Empty(t, c.Nodes())
	assert.Zero(t, c.Len())
	_, ok := c.LastRedistribution()
	assert.False(t, ok)
}

func TestCache_Membership(t *testing.T) {
	t.Parallel()

	c := newCluster(t, Options[string]{}, "b", "a")
	assert.Equal(t, []string{"a", "b"}, c.Nodes())

	require.ErrorIs(t, c.AddNode("a"), ErrDuplicateNode)
	assert.Equal(t, []string{"a", "b"}, c.Nodes(), "failed add leaves membership unchanged")

	require.ErrorIs(t, c.RemoveNode("zzz"), ErrUnknownNode)
	assert.Equal(t, []string{"a", "b"}, c.Nodes())

	require.NoError(t, c.RemoveNode("a"))
	assert.Equal(t, []string{"b"}, c.Nodes())
}

// Set then Get returns the value; overwrite returns the latest.
func TestCache_SetGet(t *testing.T) {
	t.Parallel()

	c := newCluster(t, Options[int]{MaxCacheSize: 1000}, "a", "b", "c")
	for i, k := range keys(300) {
		require.NoError(t, c.Set(k, i))
	}
	for i, k := range keys(300) {
		v, err := c.Get(k)
		require.NoError(t, err)
		require.Equal(t, i, v)
	}
	assert.Equal(t, 300, c.Len())

	require.NoError(t, c.Set("key-7", -7))
	v, err := c.Get("key-7")
	require.NoError(t, err)
	assert.Equal(t, -7, v)
	assert.Equal(t, 300, c.Len())

	_, err = c.Get("missing")
	require.ErrorIs(t, err, ErrKeyNotFound)
	requirePlacement(t, c)
}

// Three nodes, one point each, two entries per store: the Set that
// overflows a store evicts that store's least recently touched key, and
// the other stores keep everything.
func TestCache_EvictionPerNodeLRU(t *testing.T) {
	t.Parallel()

	var evicted []Eviction[string]
	c := newCluster(t, Options[string]{
		MaxCacheSize:        2,
		VirtualNodesPerNode: 1,
		OnEvict:             func(ev Eviction[string]) { evicted = append(evicted, ev) },
	}, "A", "B", "C")

	// Independent model of the same placement: find three keys sharing a
	// node and two keys that live elsewhere.
	r := ring.New(1)
	for _, n := range []string{"A", "B", "C"} {
		require.NoError(t, r.AddNode(n))
	}
	byNode := map[string][]string{}
	for i := 1; i <= 1000; i++ {
		k := fmt.Sprintf("k%d", i)
		owner, err := r.GetNode(k)
		require.NoError(t, err)
		byNode[owner] = append(byNode[owner], k)
	}
	hot := "A"
	for _, n := range []string{"B", "C"} {
		if len(byNode[n]) > len(byNode[hot]) {
			hot = n
		}
	}
	require.GreaterOrEqual(t, len(byNode[hot]), 3)
	var cold []string
	for _, n := range []string{"A", "B", "C"} {
		if n != hot {
			cold = append(cold, byNode[n]...)
		}
	}
	require.GreaterOrEqual(t, len(cold), 2, "keys never left node %s", hot)
	h := byNode[hot][:3]
	cold = cold[:2]

	for _, k := range []string{cold[0], h[0], cold[1], h[1]} {
		require.NoError(t, c.Set(k, k))
	}
	require.Empty(t, evicted)

	// Touch the oldest key on the hot node; the second one becomes LRU.
	v, err := c.Get(h[0])
	require.NoError(t, err)
	require.Equal(t, h[0], v)

	require.NoError(t, c.Set(h[2], h[2]))

	require.Len(t, evicted, 1)
	ev := evicted[0]
	assert.Equal(t, hot, ev.Node)
	assert.Equal(t, h[1], ev.Key)
	assert.Equal(t, h[1], ev.Value)
	assert.Equal(t, EvictCapacity, ev.Reason)
	assert.Equal(t, RolePrimary, ev.Role)

	assert.Equal(t, []string{h[2], h[0]}, primaryKeys(c, hot))
	for _, n := range c.Nodes() {
		assert.LessOrEqual(t, len(primaryKeys(c, n)), 2)
	}
	for _, k := range cold {
		v, err := c.Get(k)
		require.NoError(t, err)
		assert.Equal(t, k, v)
	}
	_, err = c.Get(h[1])
	require.ErrorIs(t, err, ErrKeyNotFound)
}

// Single node, capacity two: reading a promotes it, so the next insert evicts b.
func TestCache_EvictionLRU(t *testing.T) {
	t.Parallel()

	m := newRecMetrics()
	c := newCluster(t, Options[int]{MaxCacheSize: 2, Metrics: m}, "solo")

	require.NoError(t, c.Set("a", 1)) // LRU = a
	require.NoError(t, c.Set("b", 2)) // MRU = b
	_, err := c.Get("a")              // promote a -> MRU
	require.NoError(t, err)
	require.NoError(t, c.Set("c", 3)) // overflow -> evict LRU (b)

	_, err = c.Get("b")
	require.ErrorIs(t, err, ErrKeyNotFound, "b must be evicted")
	v, err := c.Get("a")
	require.NoError(t, err, "a must survive (promoted)")
	assert.Equal(t, 1, v)

	assert.Equal(t, 1, m.evicts[EvictCapacity])
	assert.Equal(t, 2, m.hits["solo"])
	assert.Equal(t, 1, m.misses["solo"])
	assert.Equal(t, 2, m.sizes["solo/primary"])
	assert.Equal(t, 1, m.members)
}

func TestCache_Stats(t *testing.T) {
	t.Parallel()

	c := newCluster(t, Options[int]{MaxCacheSize: 1000, ReplicationEnabled: true}, "a", "b", "c")
	for i, k := range keys(90) {
		require.NoError(t, c.Set(k, i))
	}
	_, _ = c.Get("key-1")
	_, _ = c.Get("nope")

	st := c.Stats()
	require.Len(t, st.Nodes, 3)
	assert.Equal(t, 90, st.Primary)
	assert.Equal(t, 90, st.Secondary)
	assert.True(t, slices.IsSortedFunc(st.Nodes, func(a, b NodeStats) int {
		if a.Node < b.Node {
			return -1
		}
		return 1
	}))
	var hits, misses uint64
	for _, ns := range st.Nodes {
		hits += ns.Hits
		misses += ns.Misses
	}
	assert.EqualValues(t, 1, hits)
	assert.EqualValues(t, 1, misses)
}

func TestCache_Close(t *testing.T) {
	t.Parallel()

	c := New[int](Options[int]{})
	require.NoError(t, c.AddNode("a"))
	require.NoError(t, c.Set("k", 1))
	require.NoError(t, c.Close())

	require.ErrorIs(t, c.Set("k", 2), ErrClosed)
	_, err := c.Get("k")
	require.ErrorIs(t, err, ErrClosed)
	require.ErrorIs(t, c.AddNode("b"), ErrClosed)
	require.ErrorIs(t, c.RemoveNode("a"), ErrClosed)
	_, err = c.GetOrLoad(context.Background(), "k")
	require.ErrorIs(t, err, ErrClosed)
}

func TestNew_PanicsOnNegativeSizes(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { New[int](Options[int]{MaxCacheSize: -1}) })
	assert.Panics(t, func() { New[int](Options[int]{VirtualNodesPerNode: -1}) })
}

func TestNew_Defaults(t *testing.T) {
	t.Parallel()

	e := asEngine(t, New[int](Options[int]{}))
	assert.Equal(t, DefaultMaxCacheSize, e.opt.MaxCacheSize)
	assert.Equal(t, DefaultVirtualNodes, e.opt.VirtualNodesPerNode)
	assert.Equal(t, DefaultMigrationRetries, e.opt.MigrationRetries)
	assert.Equal(t, DefaultVirtualNodes, e.topo.Load().ring.VirtualNodes())

	e = asEngine(t, New[int](Options[int]{MigrationRetries: -1}))
	assert.Zero(t, e.opt.MigrationRetries)
}

// Concurrent GetOrLoad calls for the same key trigger the Loader at most
// once; subsequent calls are cache hits.
func TestCache_GetOrLoad_Singleflight(t *testing.T) {
	var calls int64

	c := newCluster(t, Options[string]{
		MaxCacheSize: 64,
		Loader: func(_ context.Context, k string) (string, error) {
			atomic.AddInt64(&calls, 1)
			time.Sleep(5 * time.Millisecond) // simulate I/O
			return "v:" + k, nil
		},
	}, "a", "b")

	const N = 64
	var g errgroup.Group
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for i := 0; i < N; i++ {
		g.Go(func() error {
			v, err := c.GetOrLoad(ctx, "k")
			if err != nil {
				return err
			}
			if v != "v:k" {
				return fmt.Errorf("got %q", v)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	require.EqualValues(t, 1, atomic.LoadInt64(&calls), "loader must run exactly once")

	v, err := c.GetOrLoad(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "v:k", v)
}

func TestCache_GetOrLoad_Errors(t *testing.T) {
	t.Parallel()

	c := newCluster(t, Options[string]{}, "a")
	_, err := c.GetOrLoad(context.Background(), "k")
	require.ErrorIs(t, err, ErrNoLoader)

	boom := errors.New("boom")
	c = newCluster(t, Options[string]{
		Loader: func(context.Context, string) (string, error) { return "", boom },
	}, "a")
	_, err = c.GetOrLoad(context.Background(), "k")
	require.ErrorIs(t, err, boom)
	_, err = c.Get("k")
	require.ErrorIs(t, err, ErrKeyNotFound, "failed load must not populate")

	// No nodes: the miss path never reaches the loader.
	empty := New[string](Options[string]{
		Loader: func(context.Context, string) (string, error) { return "v", nil },
	})
	_, err = empty.GetOrLoad(context.Background(), "k")
	require.ErrorIs(t, err, ErrNoNodesAvailable)
}

// A waiting caller gives up when its context ends, even if the load is slow.
func TestCache_GetOrLoad_ContextCancel(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	c := newCluster(t, Options[string]{
		Loader: func(context.Context, string) (string, error) {
			<-release
			return "late", nil
		},
	}, "a")
	t.Cleanup(func() { close(release) })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.GetOrLoad(ctx, "k")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
