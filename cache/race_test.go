package cache

import (
	"context"
	"math/rand"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"
)

// A mixed workload of concurrent Set/Get on random keys while nodes join and
// leave. Should pass under `-race` without detector reports; the store bound
// check panics if any store ever overflows.
func TestRace_SetGetWithChurn(t *testing.T) {
	c := New[[]byte](Options[[]byte]{
		MaxCacheSize:            512,
		VirtualNodesPerNode:     32,
		ReplicationEnabled:      true,
		ReadFallbackToSecondary: true,
	})
	t.Cleanup(func() { _ = c.Close() })
	for _, n := range []string{"n0", "n1", "n2"} {
		if err := c.AddNode(n); err != nil {
			t.Fatal(err)
		}
	}

	workers := 4 * runtime.GOMAXPROCS(0)
	keyspace := 20_000
	deadline := time.Now().Add(1500 * time.Millisecond)

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(id int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(id)*9973))
			for time.Now().Before(deadline) {
				k := "k:" + strconv.Itoa(r.Intn(keyspace))
				if r.Intn(100) < 20 { // ~20% Set
					_ = c.Set(k, []byte("x"))
				} else { // ~80% Get
					_, _ = c.Get(k)
				}
			}
		}(w)
	}

	// Churn: one extra node keeps joining and leaving.
	var g errgroup.Group
	g.Go(func() error {
		for time.Now().Before(deadline) {
			if err := c.AddNode("n3"); err != nil {
				return err
			}
			if err := c.RemoveNode("n3"); err != nil {
				return err
			}
		}
		return nil
	})
	wg.Wait()
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}

	st := c.Stats()
	for _, ns := range st.Nodes {
		if ns.Primary > 512 || ns.Secondary > 512 {
			t.Fatalf("node %s over bound: %+v", ns.Node, ns)
		}
	}
}

// Keys written before a concurrent membership change stay readable: no read
// is ever served from a half-migrated store.
func TestRace_ReadsDuringRedistribution(t *testing.T) {
	c := New[int](Options[int]{MaxCacheSize: 100_000})
	t.Cleanup(func() { _ = c.Close() })
	for _, n := range []string{"a", "b", "c"} {
		if err := c.AddNode(n); err != nil {
			t.Fatal(err)
		}
	}
	const n = 5000
	for i := 0; i < n; i++ {
		if err := c.Set("k:"+strconv.Itoa(i), i); err != nil {
			t.Fatal(err)
		}
	}

	var stop atomic.Bool
	var misses atomic.Int64
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := w; !stop.Load(); i = (i + 7) % n {
				v, err := c.Get("k:" + strconv.Itoa(i))
				if err != nil || v != i {
					misses.Add(1)
				}
			}
		}(w)
	}

	for i := 0; i < 10; i++ {
		if err := c.AddNode("d"); err != nil {
			t.Fatal(err)
		}
		if err := c.RemoveNode("d"); err != nil {
			t.Fatal(err)
		}
	}
	stop.Store(true)
	wg.Wait()

	if got := misses.Load(); got != 0 {
		t.Fatalf("%d reads missed during redistribution", got)
	}
}

// One hundred goroutines call GetOrLoad on the same key concurrently.
// The Loader should run at most once.
func TestRace_GetOrLoad(t *testing.T) {
	var calls int64

	c := New[string](Options[string]{
		MaxCacheSize: 1024,
		Loader: func(_ context.Context, k string) (string, error) {
			atomic.AddInt64(&calls, 1)
			time.Sleep(2 * time.Millisecond) // simulate I/O
			return "v:" + k, nil
		},
	})
	t.Cleanup(func() { _ = c.Close() })
	if err := c.AddNode("a"); err != nil {
		t.Fatal(err)
	}

	const goroutines = 100
	key := "same-key"

	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(goroutines)

	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			<-start
			v, err := c.GetOrLoad(context.Background(), key)
			if err != nil {
				t.Errorf("GetOrLoad error: %v", err)
				return
			}
			if v != "v:"+key {
				t.Errorf("unexpected value: %q", v)
			}
		}()
	}

	close(start)
	wg.Wait()

	if got := atomic.LoadInt64(&calls); got > 1 {
		t.Fatalf("loader should run at most once, got %d", got)
	}

	// Subsequent call should be a pure cache hit.
	if v, err := c.GetOrLoad(context.Background(), key); err != nil || v != "v:"+key {
		t.Fatalf("second GetOrLoad failed: v=%q err=%v", v, err)
	}
}
