// Package metrics exposes the replay engine's Prometheus instruments.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds the engine metrics. A nil *Collector is valid and records nothing.
type Collector struct {
	recordsIngested  prometheus.Counter
	recordsDropped   *prometheus.CounterVec
	transfersDropped *prometheus.CounterVec
	flushes          prometheus.Counter
	renormalizations prometheus.Counter
	storeEvents      prometheus.Gauge
	totalFrames      prometheus.Gauge
	viewDuration     *prometheus.HistogramVec
	exportErrors     *prometheus.CounterVec
}

// NewCollector creates the engine metrics and registers them on reg.
func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	c := &Collector{
		recordsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_ingested_total",
			Help:      "Raw records received for normalization.",
		}),
		recordsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_dropped_total",
			Help:      "Raw records dropped during normalization.",
		}, []string{"reason"}),
		transfersDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfers_dropped_total",
			Help:      "Transfers dropped during normalization.",
		}, []string{"reason"}),
		flushes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_flushes_total",
			Help:      "Coalesced batches merged into the store.",
		}),
		renormalizations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_renormalizations_total",
			Help:      "Store rebuilds caused by an earlier frame origin.",
		}),
		storeEvents: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "store_events",
			Help:      "Events currently in the store.",
		}),
		totalFrames: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "timeline_total_frames",
			Help:      "Length of the session timeline in frames.",
		}),
		viewDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "derivation_duration_seconds",
			Help:      "Time spent deriving views and aggregates.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"kind"}),
		exportErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "export_errors_total",
			Help:      "Failed overview snapshot writes.",
		}, []string{"writer"}),
	}
	reg.MustRegister(
		c.recordsIngested,
		c.recordsDropped,
		c.transfersDropped,
		c.flushes,
		c.renormalizations,
		c.storeEvents,
		c.totalFrames,
		c.viewDuration,
		c.exportErrors,
	)
	return c
}

// IngestResult is what one store merge did.
type IngestResult struct {
	Records          int
	DroppedRecords   map[string]int
	DroppedTransfers map[string]int
	Renormalized     bool
	StoreSize        int
}

// ObserveIngest records one store merge.
func (c *Collector) ObserveIngest(r IngestResult) {
	if c == nil {
		return
	}
	c.recordsIngested.Add(float64(r.Records))
	for reason, n := range r.DroppedRecords {
		c.recordsDropped.WithLabelValues(reason).Add(float64(n))
	}
	for reason, n := range r.DroppedTransfers {
		c.transfersDropped.WithLabelValues(reason).Add(float64(n))
	}
	if r.Renormalized {
		c.renormalizations.Inc()
	}
	c.storeEvents.Set(float64(r.StoreSize))
}

// ObserveFlush counts one coalesced flush.
func (c *Collector) ObserveFlush() {
	if c == nil {
		return
	}
	c.flushes.Inc()
}

// SetTotalFrames records the timeline length.
func (c *Collector) SetTotalFrames(frames int) {
	if c == nil {
		return
	}
	c.totalFrames.Set(float64(frames))
}

// ObserveDerivation records how long a derivation of kind took since start.
func (c *Collector) ObserveDerivation(kind string, start time.Time) {
	if c == nil {
		return
	}
	c.viewDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}

// ExportFailed counts a failed snapshot write.
func (c *Collector) ExportFailed(writer string) {
	if c == nil {
		return
	}
	c.exportErrors.WithLabelValues(writer).Inc()
}

// StoreSize resets the store gauge, e.g. after a session reset.
func (c *Collector) StoreSize(n int) {
	if c == nil {
		return
	}
	c.storeEvents.Set(float64(n))
}
