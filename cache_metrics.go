package goserde

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricsNamespace = "goserde"
	cacheSubsystem   = "program_cache"
)

// CacheMetrics counts Program Cache events.
type CacheMetrics struct {
	Hits          prometheus.Counter
	Misses        prometheus.Counter
	Compiles      prometheus.Counter
	CompileErrors prometheus.Counter
	StoreHits     prometheus.Counter
	StoreRejects  prometheus.Counter
}

func cacheCounter(name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: cacheSubsystem,
		Name:      name,
		Help:      help,
	})
}

// NewCacheMetrics creates the cache counters and registers them with reg when
// it is not nil.
func NewCacheMetrics(reg prometheus.Registerer) *CacheMetrics {
	m := &CacheMetrics{
		Hits:          cacheCounter("hits_total", "Lookups served from memory."),
		Misses:        cacheCounter("misses_total", "Lookups not found in memory."),
		Compiles:      cacheCounter("compiles_total", "Successful program compilations."),
		CompileErrors: cacheCounter("compile_errors_total", "Failed program compilations."),
		StoreHits:     cacheCounter("store_hits_total", "Programs restored from the persistent store."),
		StoreRejects:  cacheCounter("store_rejects_total", "Persisted programs discarded as corrupt or stale."),
	}
	if reg != nil {
		reg.MustRegister(m.Hits, m.Misses, m.Compiles, m.CompileErrors, m.StoreHits, m.StoreRejects)
	}
	return m
}

type cacheEvent int

const (
	eventHit cacheEvent = iota
	eventMiss
	eventCompile
	eventCompileError
	eventStoreHit
	eventStoreReject
)

func (m *CacheMetrics) observe(e cacheEvent) {
	if m == nil {
		return
	}
	switch e {
	case eventHit:
		m.Hits.Inc()
	case eventMiss:
		m.Misses.Inc()
	case eventCompile:
		m.Compiles.Inc()
	case eventCompileError:
		m.CompileErrors.Inc()
	case eventStoreHit:
		m.StoreHits.Inc()
	case eventStoreReject:
		m.StoreRejects.Inc()
	}
}
