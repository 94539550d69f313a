// ============================================================================
// zwalfs Metrics - Prometheus Monitoring
// ============================================================================
//
// Package: internal/metrics
// File: metrics.go
// Purpose: Collect and expose Prometheus metrics for the WAL append/recover
// path: zone lifecycle, barrier crossings, append throughput, and recovery
// duration.
//
// HTTP Endpoint:
//   Exposed via /metrics, scraped by Prometheus. Default port 9090.
// ============================================================================

package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector collects Prometheus metrics for one zwalfs instance.
type Collector struct {
	zonesAllocated prometheus.Counter
	zonesReset     prometheus.Counter
	zonesFull      prometheus.Counter

	walSyncs        prometheus.Counter
	walWrites       prometheus.Counter
	barrierCrossings prometheus.Counter
	bytesAppended   prometheus.Counter

	appendLatency   prometheus.Histogram
	recoveryTime    prometheus.Gauge
	walLiveBlocks   prometheus.Gauge
	padBytesTotal   prometheus.Counter
}

// NewCollector creates and registers a new metrics collector.
func NewCollector() *Collector {
	c := &Collector{
		zonesAllocated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "zwalfs_zones_allocated_total",
			Help: "Total number of zones handed out by the allocator",
		}),
		zonesReset: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "zwalfs_zones_reset_total",
			Help: "Total number of zones reclaimed via Reset",
		}),
		zonesFull: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "zwalfs_zones_full_total",
			Help: "Total number of zones that reached capacity",
		}),
		walSyncs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "zwalfs_wal_syncs_total",
			Help: "Total number of WAL barrier syncs issued",
		}),
		walWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "zwalfs_wal_writes_total",
			Help: "Total number of WAL sparse-append iterations",
		}),
		barrierCrossings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "zwalfs_barrier_crossings_total",
			Help: "Total number of WAL_BARRIER_SIZE thresholds crossed",
		}),
		bytesAppended: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "zwalfs_bytes_appended_total",
			Help: "Total payload bytes appended across all files",
		}),
		appendLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "zwalfs_append_latency_seconds",
			Help:    "SparseAppend/Append call latency in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		recoveryTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "zwalfs_recovery_time_seconds",
			Help: "Duration of the last Recover()/TryRecoverWAL() pass",
		}),
		walLiveBlocks: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "zwalfs_wal_live_blocks",
			Help: "Current WAL live size (write_head - write_tail) in blocks",
		}),
		padBytesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "zwalfs_pad_bytes_total",
			Help: "Cumulative block-alignment padding bytes written",
		}),
	}

	prometheus.MustRegister(
		c.zonesAllocated, c.zonesReset, c.zonesFull,
		c.walSyncs, c.walWrites, c.barrierCrossings, c.bytesAppended,
		c.appendLatency, c.recoveryTime, c.walLiveBlocks, c.padBytesTotal,
	)
	return c
}

// RecordZoneAllocated records a zone handed out by the allocator.
func (c *Collector) RecordZoneAllocated() { c.zonesAllocated.Inc() }

// RecordZoneReset records a zone reclaimed via Reset.
func (c *Collector) RecordZoneReset() { c.zonesReset.Inc() }

// RecordZoneFull records a zone reaching capacity.
func (c *Collector) RecordZoneFull() { c.zonesFull.Inc() }

// RecordWALSync records one barrier or forced WAL sync.
func (c *Collector) RecordWALSync() { c.walSyncs.Inc() }

// RecordWALWrite records one SparseAppend iteration on a WAL file.
func (c *Collector) RecordWALWrite(payloadBytes int) {
	c.walWrites.Inc()
	c.bytesAppended.Add(float64(payloadBytes))
}

// RecordBarrierCrossing records append_bytes_since_barrier crossing the
// configured WAL_BARRIER_SIZE threshold.
func (c *Collector) RecordBarrierCrossing() { c.barrierCrossings.Inc() }

// ObserveAppendLatency records how long one Append/SparseAppend call took.
func (c *Collector) ObserveAppendLatency(seconds float64) { c.appendLatency.Observe(seconds) }

// SetRecoveryTime records how long the last recovery pass took.
func (c *Collector) SetRecoveryTime(seconds float64) { c.recoveryTime.Set(seconds) }

// SetWALLiveBlocks updates the live-WAL-size gauge.
func (c *Collector) SetWALLiveBlocks(blocks uint64) { c.walLiveBlocks.Set(float64(blocks)) }

// AddPadBytes accumulates block-alignment padding reported by DecodeFrom.
func (c *Collector) AddPadBytes(n uint64) { c.padBytesTotal.Add(float64(n)) }

// StartServer starts the Prometheus metrics HTTP server on the given port.
func StartServer(port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	addr := fmt.Sprintf(":%d", port)
	return http.ListenAndServe(addr, mux)
}
