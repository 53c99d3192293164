package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Quorum I/O metrics
	QuorumWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "objectcore_quorum_writes_total",
			Help: "Total number of quorum writes by outcome",
		},
		[]string{"outcome"}, // committed, quorum_unavailable
	)

	QuorumReadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "objectcore_quorum_reads_total",
			Help: "Total number of quorum reads by outcome",
		},
		[]string{"outcome"}, // ok, healed, insufficient_chunks
	)

	QuorumWriteDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "objectcore_quorum_write_duration_seconds",
			Help:    "Time taken to commit a quorum write",
			Buckets: prometheus.DefBuckets,
		},
	)

	QuorumReadDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "objectcore_quorum_read_duration_seconds",
			Help:    "Time taken to complete a quorum read",
			Buckets: prometheus.DefBuckets,
		},
	)

	SidecarHealsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "objectcore_sidecar_heals_total",
			Help: "Total number of sidecar self-heal propagations",
		},
	)

	QuorumDeletesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "objectcore_quorum_deletes_total",
			Help: "Total number of quorum deletes by outcome",
		},
		[]string{"outcome"}, // committed, quorum_unavailable
	)

	// Erasure codec metrics
	ErasureEncodesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "objectcore_erasure_encodes_total",
			Help: "Total number of erasure encode operations",
		},
	)

	ErasureReconstructsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "objectcore_erasure_reconstructs_total",
			Help: "Total number of erasure reconstruct operations",
		},
	)

	ChecksumMismatchesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "objectcore_checksum_mismatches_total",
			Help: "Total number of chunk checksum mismatches detected on read",
		},
	)

	// Registry metrics
	RegistryCacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "objectcore_registry_cache_hits_total",
			Help: "Total number of registry cache hits",
		},
	)

	RegistryCacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "objectcore_registry_cache_misses_total",
			Help: "Total number of registry cache misses",
		},
	)

	RegistryCacheEvictions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "objectcore_registry_cache_evictions_total",
			Help: "Total number of registry cache evictions (capacity or explicit invalidation)",
		},
	)

	RegistryCacheEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "objectcore_registry_cache_entries",
			Help: "Current number of entries in the registry cache",
		},
	)

	// Topology metrics
	TopologyGeneration = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "objectcore_topology_generation",
			Help: "Current topology generation",
		},
	)

	TopologyMutationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "objectcore_topology_mutations_total",
			Help: "Total number of topology mutations applied",
		},
	)

	// Migration metrics
	MigrationBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "objectcore_migration_bytes_total",
			Help: "Total bytes migrated",
		},
	)

	MigrationTasksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "objectcore_migration_tasks_total",
			Help: "Total migration tasks by outcome",
		},
		[]string{"outcome"}, // completed, failed, retried
	)

	MigrationQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "objectcore_migration_queue_depth",
			Help: "Current depth of the migration task queue",
		},
	)

	MigrationJobDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "objectcore_migration_job_duration_seconds",
			Help:    "Time taken for a migration job to complete",
			Buckets: []float64{1, 5, 30, 60, 300, 1800, 3600, 21600},
		},
	)
)

func init() {
	prometheus.MustRegister(
		QuorumWritesTotal,
		QuorumReadsTotal,
		QuorumWriteDuration,
		QuorumReadDuration,
		SidecarHealsTotal,
		QuorumDeletesTotal,
		ErasureEncodesTotal,
		ErasureReconstructsTotal,
		ChecksumMismatchesTotal,
		RegistryCacheHits,
		RegistryCacheMisses,
		RegistryCacheEvictions,
		RegistryCacheEntries,
		TopologyGeneration,
		TopologyMutationsTotal,
		MigrationBytesTotal,
		MigrationTasksTotal,
		MigrationQueueDepth,
		MigrationJobDuration,
	)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the elapsed duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
