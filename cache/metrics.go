package cache

// NoopMetrics is a drop-in Metrics implementation that does nothing.
// It is safe for concurrent use and intended as the default when
// no observability backend is configured.
type NoopMetrics struct{}

func (NoopMetrics) Hit(string)                      {}
func (NoopMetrics) Miss(string)                     {}
func (NoopMetrics) FallbackHit(string)              {}
func (NoopMetrics) Evict(string, Role, EvictReason) {}
func (NoopMetrics) Size(string, Role, int)          {}
func (NoopMetrics) Migrated(string, string)         {}
func (NoopMetrics) MigrationFailed(string, string)  {}
func (NoopMetrics) Members(int)                     {}

// Ensure NoopMetrics implements the Metrics interface at compile time.
var _ Metrics = NoopMetrics{}
