package prom

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/IvanBrykalov/ringcache/cache"
)

// Adapter implements cache.Metrics and exports Prometheus counters/gauges
// labelled by node. Safe for concurrent use; all Prometheus metric types are
// goroutine-safe.
type Adapter struct {
	hits      *prometheus.CounterVec
	misses    *prometheus.CounterVec
	fallbacks *prometheus.CounterVec
	evicts    *prometheus.CounterVec
	size      *prometheus.GaugeVec
	migrated  *prometheus.CounterVec
	failed    *prometheus.CounterVec
	members   prometheus.Gauge
}

// New constructs a Prometheus metrics adapter.
//   - reg:          registry to register metrics with (nil => prometheus.DefaultRegisterer)
//   - ns, sub:      Prometheus namespace and subsystem
//   - constLabels:  static labels applied to all metrics (may be nil)
func New(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *Adapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        name,
			Help:        help,
			ConstLabels: constLabels,
		}, labels)
	}
	a := &Adapter{
		hits:      counter("hits_total", "Primary store hits", "node"),
		misses:    counter("misses_total", "Primary store misses", "node"),
		fallbacks: counter("fallback_hits_total", "Primary misses served by the secondary store", "node"),
		evicts:    counter("evictions_total", "Store evictions by role and reason", "node", "role", "reason"),
		migrated:  counter("migrated_total", "Entries moved during redistribution", "from", "to"),
		failed:    counter("migration_failures_total", "Entries dropped after transport retries", "from", "to"),
		size: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "size_entries",
			Help:        "Number of resident entries per store",
			ConstLabels: constLabels,
		}, []string{"node", "role"}),
		members: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "members",
			Help:        "Number of nodes on the ring",
			ConstLabels: constLabels,
		}),
	}
	reg.MustRegister(a.hits, a.misses, a.fallbacks, a.evicts, a.size, a.migrated, a.failed, a.members)
	return a
}

// Hit increments the hit counter of node.
func (a *Adapter) Hit(node string) { a.hits.WithLabelValues(node).Inc() }

// Miss increments the miss counter of node.
func (a *Adapter) Miss(node string) { a.misses.WithLabelValues(node).Inc() }

// FallbackHit increments the secondary-read counter of node.
func (a *Adapter) FallbackHit(node string) { a.fallbacks.WithLabelValues(node).Inc() }

// Evict increments the eviction counter with role and reason labels.
func (a *Adapter) Evict(node string, role cache.Role, r cache.EvictReason) {
	a.evicts.WithLabelValues(node, role.String(), r.String()).Inc()
}

// Size updates the entry gauge of one store.
func (a *Adapter) Size(node string, role cache.Role, entries int) {
	a.size.WithLabelValues(node, role.String()).Set(float64(entries))
}

func (a *Adapter) Migrated(from, to string) { a.migrated.WithLabelValues(from, to).Inc() }

func (a *Adapter) MigrationFailed(from, to string) { a.failed.WithLabelValues(from, to).Inc() }

// Members sets the ring membership gauge.
func (a *Adapter) Members(n int) { a.members.Set(float64(n)) }

// Compile-time check: ensure Adapter implements cache.Metrics.
var _ cache.Metrics = (*Adapter)(nil)
