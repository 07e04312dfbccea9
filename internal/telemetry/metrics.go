// Package telemetry exposes Prometheus collectors for the scan, integrity,
// and duplicate pipelines.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles every collector the application registers. Construct once
// at startup and share by reference.
type Metrics struct {
	Registry *prometheus.Registry

	FilesScanned       prometheus.Counter
	FilesFailed        prometheus.Counter
	ProbeFailures      *prometheus.CounterVec
	ProbeDuration      prometheus.Histogram
	BatchesFlushed     prometheus.Counter
	CheckpointsWritten prometheus.Counter
	ActiveWorkers      prometheus.Gauge

	IntegrityChecked   prometheus.Counter
	IntegrityCorrupted prometheus.Counter

	DuplicateGroups prometheus.Counter
	BytesHashed     prometheus.Counter
}

// New creates the metric set on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		FilesScanned: factory.NewCounter(prometheus.CounterOpts{
			Name: "videoanalyzer_files_scanned_total",
			Help: "Number of files the scan pipeline has taken responsibility for.",
		}),
		FilesFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "videoanalyzer_files_failed_total",
			Help: "Number of files that failed after retry exhaustion.",
		}),
		ProbeFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "videoanalyzer_probe_failures_total",
			Help: "Probe subprocess failures by kind.",
		}, []string{"kind"}),
		ProbeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "videoanalyzer_probe_duration_seconds",
			Help:    "Wall-clock duration of probe invocations.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		BatchesFlushed: factory.NewCounter(prometheus.CounterOpts{
			Name: "videoanalyzer_batches_flushed_total",
			Help: "Number of batched catalog writes.",
		}),
		CheckpointsWritten: factory.NewCounter(prometheus.CounterOpts{
			Name: "videoanalyzer_checkpoints_written_total",
			Help: "Number of checkpoint files written.",
		}),
		ActiveWorkers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "videoanalyzer_active_workers",
			Help: "Probe workers currently in flight.",
		}),
		IntegrityChecked: factory.NewCounter(prometheus.CounterOpts{
			Name: "videoanalyzer_integrity_checked_total",
			Help: "Files run through the integrity decoder.",
		}),
		IntegrityCorrupted: factory.NewCounter(prometheus.CounterOpts{
			Name: "videoanalyzer_integrity_corrupted_total",
			Help: "Files the integrity decoder reported corrupted.",
		}),
		DuplicateGroups: factory.NewCounter(prometheus.CounterOpts{
			Name: "videoanalyzer_duplicate_groups_total",
			Help: "Duplicate groups produced across detection runs.",
		}),
		BytesHashed: factory.NewCounter(prometheus.CounterOpts{
			Name: "videoanalyzer_bytes_hashed_total",
			Help: "Bytes read while hashing for duplicate detection.",
		}),
	}
}

// Nop returns a metric set on a throwaway registry, for tests and for
// components constructed without telemetry.
func Nop() *Metrics {
	return New()
}
