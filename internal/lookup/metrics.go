package lookup

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	rerrors "github.com/swatzat-oss/cs2-dumper/internal/errors"
)

// Metrics are the façade's Prometheus collectors.
type Metrics struct {
	CacheHits     prometheus.Counter
	CacheMisses   prometheus.Counter
	Resolutions   *prometheus.CounterVec
	Invalidations *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cs2_dumper_lookup_cache_hits_total",
			Help: "Total number of lookups served from the cache",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cs2_dumper_lookup_cache_misses_total",
			Help: "Total number of lookups that had to resolve",
		}),
		Resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cs2_dumper_lookup_resolutions_total",
			Help: "Total number of resolutions by outcome",
		}, []string{"outcome"}),
		Invalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cs2_dumper_lookup_invalidations_total",
			Help: "Total number of cached interfaces invalidated by module reloads",
		}, []string{"module"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.CacheHits,
			m.CacheMisses,
			m.Resolutions,
			m.Invalidations,
		)
	}

	return m
}

// outcome labels a resolution result.
func outcome(err error) string {
	switch rerrors.KindOf(err) {
	case 0:
		if err != nil {
			return "error"
		}
		return "ok"
	case rerrors.UnknownInterface:
		return "unknown_interface"
	case rerrors.ModuleNotLoaded:
		return "module_not_loaded"
	case rerrors.OffsetOutOfRange:
		return "offset_out_of_range"
	case rerrors.SuspectStale:
		return "suspect_stale"
	default:
		return "error"
	}
}

// Stats is a snapshot of façade activity.
type Stats struct {
	Hits          uint64
	Misses        uint64
	Resolutions   uint64
	Failures      uint64
	Invalidations uint64
}

type counters struct {
	hits          atomic.Uint64
	misses        atomic.Uint64
	resolutions   atomic.Uint64
	failures      atomic.Uint64
	invalidations atomic.Uint64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Hits:          c.hits.Load(),
		Misses:        c.misses.Load(),
		Resolutions:   c.resolutions.Load(),
		Failures:      c.failures.Load(),
		Invalidations: c.invalidations.Load(),
	}
}
