// Package vm exports cache metrics in Prometheus text format through a
// VictoriaMetrics metrics.Set. It is a lighter alternative to package prom
// for processes that do not run a Prometheus registry.
package vm

import (
	"fmt"
	"io"
	"sync/atomic"

	"github.com/VictoriaMetrics/metrics"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/IvanBrykalov/ringcache/cache"
)

// Adapter implements cache.Metrics on top of a private metrics.Set.
// Safe for concurrent use.
type Adapter struct {
	set    *metrics.Set
	prefix string

	// Gauges in this metrics version are callback based; the callbacks read
	// these values.
	sizes   *xsync.MapOf[string, *atomic.Int64]
	members atomic.Int64
}

// New returns an adapter whose metric names start with prefix (e.g. "ringcache").
func New(prefix string) *Adapter {
	a := &Adapter{
		set:    metrics.NewSet(),
		prefix: prefix,
		sizes:  xsync.NewMapOf[string, *atomic.Int64](),
	}
	a.set.GetOrCreateGauge(prefix+"_members", func() float64 {
		return float64(a.members.Load())
	})
	return a
}

// WritePrometheus writes every metric in Prometheus text exposition format.
func (a *Adapter) WritePrometheus(w io.Writer) { a.set.WritePrometheus(w) }

func (a *Adapter) Hit(node string) {
	a.set.GetOrCreateCounter(fmt.Sprintf(`%s_hits_total{node=%q}`, a.prefix, node)).Inc()
}

func (a *Adapter) Miss(node string) {
	a.set.GetOrCreateCounter(fmt.Sprintf(`%s_misses_total{node=%q}`, a.prefix, node)).Inc()
}

func (a *Adapter) FallbackHit(node string) {
	a.set.GetOrCreateCounter(fmt.Sprintf(`%s_fallback_hits_total{node=%q}`, a.prefix, node)).Inc()
}

func (a *Adapter) Evict(node string, role cache.Role, r cache.EvictReason) {
	a.set.GetOrCreateCounter(fmt.Sprintf(`%s_evictions_total{node=%q,role=%q,reason=%q}`,
		a.prefix, node, role.String(), r.String())).Inc()
}

// Size records the entry count of one store. The gauge is registered on
// first use and reads the latest value on every scrape.
func (a *Adapter) Size(node string, role cache.Role, entries int) {
	name := fmt.Sprintf(`%s_size_entries{node=%q,role=%q}`, a.prefix, node, role.String())
	v, loaded := a.sizes.LoadOrCompute(name, func() *atomic.Int64 { return new(atomic.Int64) })
	v.Store(int64(entries))
	if !loaded {
		a.set.GetOrCreateGauge(name, func() float64 { return float64(v.Load()) })
	}
}

func (a *Adapter) Migrated(from, to string) {
	a.set.GetOrCreateCounter(fmt.Sprintf(`%s_migrated_total{from=%q,to=%q}`, a.prefix, from, to)).Inc()
}

func (a *Adapter) MigrationFailed(from, to string) {
	a.set.GetOrCreateCounter(fmt.Sprintf(`%s_migration_failures_total{from=%q,to=%q}`, a.prefix, from, to)).Inc()
}

func (a *Adapter) Members(n int) { a.members.Store(int64(n)) }

var _ cache.Metrics = (*Adapter)(nil)
