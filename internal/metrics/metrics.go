// Package metrics exposes the engine's running counters as Prometheus
// collectors. It is purely observational: nothing here feeds back into
// insertion, paging, or routing decisions.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/entwine-go/entwine/internal/registry"
)

const namespace = "entwine"

// Collectors bundles every metric the engine reports. Construct one with
// NewCollectors per process; every insertion/paging goroutine shares it.
type Collectors struct {
	registry *prometheus.Registry

	PointsInserted   prometheus.Counter
	PointsDropped    *prometheus.CounterVec
	PoolExhaustions  *prometheus.CounterVec
	ColdChunkLoads    prometheus.Counter
	ColdChunkEvicted  prometheus.Counter
	ColdChunksResident prometheus.Gauge
	HierarchyNodes    prometheus.Gauge
}

// NewCollectors builds and registers every collector against a fresh
// Prometheus registry (not the global DefaultRegisterer, so multiple
// engines in one test binary never collide).
func NewCollectors() *Collectors {
	reg := prometheus.NewRegistry()

	c := &Collectors{
		registry: reg,
		PointsInserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "points_inserted_total",
			Help:      "Points that won a cell and were published into the tree.",
		}),
		PointsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "points_dropped_total",
			Help:      "Points that did not win a cell, broken down by reason.",
		}, []string{"reason"}),
		PoolExhaustions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pool_exhaustions_total",
			Help:      "AcquireOne calls that failed because a bounded pool was full.",
		}, []string{"pool"}),
		ColdChunkLoads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cold_chunk_loads_total",
			Help:      "Cold chunks loaded from the chunk store (cache misses).",
		}),
		ColdChunkEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cold_chunk_evictions_total",
			Help:      "Cold chunks evicted back to the chunk store.",
		}),
		HierarchyNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "hierarchy_nodes",
			Help:      "Resident (non-paged) hierarchy node count at last sample.",
		}),
		ColdChunksResident: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cold_chunks_resident",
			Help:      "Cold chunks currently loaded in memory, at last sample.",
		}),
	}

	reg.MustRegister(
		c.PointsInserted,
		c.PointsDropped,
		c.PoolExhaustions,
		c.ColdChunkLoads,
		c.ColdChunkEvicted,
		c.HierarchyNodes,
		c.ColdChunksResident,
	)
	return c
}

// Handler serves the registered collectors in the Prometheus text format.
func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveAddPoint records one Registry.AddPoint outcome.
func (c *Collectors) ObserveAddPoint(ok bool, reason registry.DropReason) {
	if ok {
		c.PointsInserted.Inc()
		return
	}
	label := string(reason)
	if label == "" {
		label = "unknown"
	}
	c.PointsDropped.WithLabelValues(label).Inc()
}

// ObservePoolExhaustion records one failed AcquireOne against a bounded
// pool identified by name (e.g. "info", "data").
func (c *Collectors) ObservePoolExhaustion(poolName string) {
	c.PoolExhaustions.WithLabelValues(poolName).Inc()
}
