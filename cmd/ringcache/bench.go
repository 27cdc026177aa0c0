package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof/* on DefaultServeMux
	"runtime"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/IvanBrykalov/ringcache/cache"
	pmet "github.com/IvanBrykalov/ringcache/metrics/prom"
	vmet "github.com/IvanBrykalov/ringcache/metrics/vm"
)

var (
	plog = logger.GetLogger("bench")

	benchCmd = &cobra.Command{
		Use:   "bench",
		Short: "Run a synthetic workload against a multi-node cache",
		Long: `Run a Zipf-distributed read/write workload against an in-process cache
with the configured nodes. With --churn a node repeatedly joins and leaves
while the workload runs. Metrics are exposed at /metrics and pprof optionally.`,
		RunE: runBench,
	}
)

// benchConfig is the workload part of the bench configuration.
type benchConfig struct {
	Workers  int
	Duration time.Duration
	ReadPct  int
	Keys     int
	ZipfS    float64
	ZipfV    float64
	Seed     int64
	Preload  int
	Churn    time.Duration

	PprofAddr   string
	MetricsAddr string
	Metrics     string
}

func init() {
	key := "workers"
	benchCmd.Flags().Int(key, 2*runtime.GOMAXPROCS(0), wrapString("Number of worker goroutines"))
	key = "duration"
	benchCmd.Flags().Duration(key, 10*time.Second, wrapString("Benchmark duration"))
	key = "reads"
	benchCmd.Flags().Int(key, 80, wrapString("Read percentage [0..100]"))
	key = "keys"
	benchCmd.Flags().Int(key, 1_000_000, wrapString("Keyspace size"))
	key = "zipf-s"
	benchCmd.Flags().Float64(key, 1.1, wrapString("Zipf s > 1 (skew)"))
	key = "zipf-v"
	benchCmd.Flags().Float64(key, 1.0, wrapString("Zipf v >= 1"))
	key = "seed"
	benchCmd.Flags().Int64(key, 0, wrapString("Random seed (0 = time based)"))
	key = "preload"
	benchCmd.Flags().Int(key, 0, wrapString("Preload entries (0 = half of the total capacity)"))
	key = "churn"
	benchCmd.Flags().Duration(key, 0, wrapString("Interval at which an extra node joins or leaves (0 = no churn)"))
	key = "pprof"
	benchCmd.Flags().String(key, "", wrapString("Serve pprof at addr (e.g. :6060); empty = disabled"))
	key = "http"
	benchCmd.Flags().String(key, ":8080", wrapString("Serve metrics at addr; empty = disabled"))
	key = "metrics"
	benchCmd.Flags().String(key, "prom", wrapString("Metrics backend (prom, vm, none)"))
}

func readBenchConfig() (*benchConfig, error) {
	bc := &benchConfig{
		Workers:     viper.GetInt("workers"),
		Duration:    viper.GetDuration("duration"),
		ReadPct:     viper.GetInt("reads"),
		Keys:        viper.GetInt("keys"),
		ZipfS:       viper.GetFloat64("zipf-s"),
		ZipfV:       viper.GetFloat64("zipf-v"),
		Seed:        viper.GetInt64("seed"),
		Preload:     viper.GetInt("preload"),
		Churn:       viper.GetDuration("churn"),
		PprofAddr:   viper.GetString("pprof"),
		MetricsAddr: viper.GetString("http"),
		Metrics:     viper.GetString("metrics"),
	}
	if bc.Workers <= 0 {
		bc.Workers = 1
	}
	if bc.ReadPct < 0 || bc.ReadPct > 100 {
		return nil, fmt.Errorf("reads must be in [0,100], got %d", bc.ReadPct)
	}
	if bc.Keys <= 0 {
		return nil, fmt.Errorf("keys must be > 0, got %d", bc.Keys)
	}
	if bc.ZipfS <= 1 || bc.ZipfV < 1 {
		return nil, fmt.Errorf("zipf parameters need s > 1 and v >= 1, got s=%g v=%g", bc.ZipfS, bc.ZipfV)
	}
	if bc.Seed == 0 {
		bc.Seed = time.Now().UnixNano()
	}
	return bc, nil
}

// metricsHandler builds the cache metrics backend and its HTTP handler.
func metricsHandler(backend string) (cache.Metrics, http.Handler, error) {
	switch backend {
	case "prom":
		return pmet.New(nil, "ringcache", "bench", nil), promhttp.Handler(), nil
	case "vm":
		a := vmet.New("ringcache_bench")
		return a, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			a.WritePrometheus(w)
		}), nil
	case "none":
		return cache.NoopMetrics{}, nil, nil
	default:
		return nil, nil, fmt.Errorf("invalid metrics backend %s", backend)
	}
}

func runBench(cmd *cobra.Command, _ []string) error {
	conf, err := processConfig(cmd)
	if err != nil {
		return err
	}
	bc, err := readBenchConfig()
	if err != nil {
		return err
	}
	if err := initLoggers(conf.LogLevel); err != nil {
		return err
	}
	if len(conf.Nodes) == 0 {
		return errors.New("bench needs at least one node")
	}
	fmt.Println(conf.String())

	// ---- pprof server (on DefaultServeMux) ----
	if bc.PprofAddr != "" {
		go func() {
			plog.Infof("pprof: serving at %s", bc.PprofAddr)
			plog.Errorf("pprof: %v", http.ListenAndServe(bc.PprofAddr, nil))
		}()
	}

	// ---- metrics (on DefaultServeMux) ----
	m, handler, err := metricsHandler(bc.Metrics)
	if err != nil {
		return err
	}
	if handler != nil && bc.MetricsAddr != "" {
		http.Handle("/metrics", handler)
		go func() {
			plog.Infof("metrics: serving at %s", bc.MetricsAddr)
			plog.Errorf("metrics: %v", http.ListenAndServe(bc.MetricsAddr, nil))
		}()
	}

	// ---- build cache ----
	opt := conf.Options()
	opt.Metrics = m
	c := cache.New[string](opt)
	defer func() { _ = c.Close() }()
	for _, n := range conf.Nodes {
		if err := c.AddNode(n); err != nil {
			return err
		}
	}

	// ---- preload half capacity to get a realistic hit-rate ----
	pl := bc.Preload
	if pl == 0 {
		pl = conf.MaxCacheSize * len(conf.Nodes) / 2
	}
	for i := 0; i < pl; i++ {
		k := "k:" + strconv.Itoa(i)
		_ = c.Set(k, "v"+strconv.Itoa(i))
	}

	res := runWorkload(c, bc, churnNodeID(conf.Nodes))

	fmt.Printf("nodes=%d cap=%d vnodes=%d replication=%t workers=%d keys=%d dur=%v seed=%d\n",
		len(conf.Nodes), conf.MaxCacheSize, conf.VirtualNodes, conf.Replication, bc.Workers, bc.Keys, res.elapsed, bc.Seed)
	res.print()
	st := c.Stats()
	fmt.Printf("Len()=%d replicas=%d\n", st.Primary, st.Secondary)
	for _, ns := range st.Nodes {
		fmt.Printf("  %-12s primary=%-8d secondary=%-8d hits=%-10d misses=%-10d evictions=%d\n",
			ns.Node, ns.Primary, ns.Secondary, ns.Hits, ns.Misses, ns.Evictions)
	}
	return nil
}

// benchResult aggregates what the workload observed.
type benchResult struct {
	elapsed time.Duration
	reg     gometrics.Registry
	gets    gometrics.Timer
	sets    gometrics.Timer
	ops     gometrics.Meter
	hits    atomic.Uint64
	misses  atomic.Uint64

	// churn totals
	changes  int
	moved    int
	evicted  int
	failed   int
	replicas int
}

func runWorkload(c cache.Cache[string], bc *benchConfig, churnID string) *benchResult {
	reg := gometrics.NewRegistry()
	res := &benchResult{
		reg:  reg,
		gets: gometrics.NewRegisteredTimer("get", reg),
		sets: gometrics.NewRegisteredTimer("set", reg),
		ops:  gometrics.NewRegisteredMeter("ops", reg),
	}

	ctx, cancel := context.WithTimeout(context.Background(), bc.Duration)
	defer cancel()

	keysMax := uint64(bc.Keys - 1)
	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(bc.Workers)
	for w := 0; w < bc.Workers; w++ {
		go func(id int) {
			defer wg.Done()

			// Each worker gets its own RNG + Zipf (rand.Rand is NOT goroutine-safe).
			localR := rand.New(rand.NewSource(bc.Seed + int64(id)*9973))
			localZipf := rand.NewZipf(localR, bc.ZipfS, bc.ZipfV, keysMax)

			for {
				select {
				case <-ctx.Done():
					return
				default:
				}

				k := "k:" + strconv.FormatUint(localZipf.Uint64(), 10)
				t0 := time.Now()
				if int(localR.Int31n(100)) < bc.ReadPct {
					_, err := c.Get(k)
					res.gets.UpdateSince(t0)
					if err == nil {
						res.hits.Add(1)
					} else {
						res.misses.Add(1)
					}
				} else {
					_ = c.Set(k, "v"+strconv.Itoa(localR.Int()))
					res.sets.UpdateSince(t0)
				}
				res.ops.Mark(1)
			}
		}(w)
	}

	if bc.Churn > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res.churn(ctx, c, churnID, bc.Churn)
		}()
	}
	wg.Wait()
	res.elapsed = time.Since(start)
	return res
}

// churnNodeID names the extra node used by churn, avoiding configured ids.
func churnNodeID(nodes []string) string {
	id := "churn-node"
	for i := 1; slices.Contains(nodes, id); i++ {
		id = "churn-node-" + strconv.Itoa(i)
	}
	return id
}

// churn makes node id join and leave every interval until ctx ends.
func (r *benchResult) churn(ctx context.Context, c cache.Cache[string], id string, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	joined := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		var err error
		if joined {
			err = c.RemoveNode(id)
		} else {
			err = c.AddNode(id)
		}
		if err != nil {
			plog.Errorf("churn: %v", err)
			continue
		}
		joined = !joined
		if sum, ok := c.LastRedistribution(); ok {
			r.changes++
			r.moved += sum.Moved
			r.evicted += sum.Evicted
			r.failed += sum.Failed
			r.replicas += sum.Replicated
		}
	}
}

func (r *benchResult) print() {
	reads := r.gets.Count()
	writes := r.sets.Count()
	ops := r.ops.Count()
	hits, misses := r.hits.Load(), r.misses.Load()
	hitRate := 0.0
	if reads > 0 {
		hitRate = float64(hits) / float64(reads) * 100
	}

	fmt.Printf("ops=%d (%.0f ops/s)  reads=%d  writes=%d\n",
		ops, float64(ops)/r.elapsed.Seconds(), reads, writes)
	fmt.Printf("hits=%d  misses=%d  hit-rate=%.2f%%\n", hits, misses, hitRate)

	ps := []float64{0.5, 0.99, 0.999}
	for _, t := range []struct {
		name  string
		timer gometrics.Timer
	}{{"get", r.gets}, {"set", r.sets}} {
		if t.timer.Count() == 0 {
			continue
		}
		q := t.timer.Percentiles(ps)
		fmt.Printf("%s latency: p50=%v p99=%v p99.9=%v max=%v\n", t.name,
			time.Duration(q[0]), time.Duration(q[1]), time.Duration(q[2]), time.Duration(t.timer.Max()))
	}
	if r.changes > 0 {
		fmt.Printf("membership changes=%d moved=%d evicted=%d failed=%d replicated=%d\n",
			r.changes, r.moved, r.evicted, r.failed, r.replicas)
	}
}
