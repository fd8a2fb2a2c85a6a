package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the theme discovery service.
// Metrics are organized by subsystem: triggers, documents, embedding,
// clustering, and labeling. All counters and histograms are registered via
// promauto for automatic registration with the default Prometheus registry.
type Metrics struct {
	// TriggersReceived counts trigger messages received, labeled by topic.
	TriggersReceived *prometheus.CounterVec

	// TriggersDropped counts malformed trigger payloads dropped, labeled by topic.
	TriggersDropped *prometheus.CounterVec

	// TriggersPublished counts next-stage triggers published, labeled by topic.
	TriggersPublished *prometheus.CounterVec

	// DocumentsEnriched counts documents that reached the enriched state.
	DocumentsEnriched prometheus.Counter

	// DocumentsExcluded counts documents filtered out by inclusion rules.
	DocumentsExcluded prometheus.Counter

	// DocumentsDuplicate counts documents linked to an existing original.
	DocumentsDuplicate prometheus.Counter

	// DocumentsFailed counts documents that hit a terminal processing error.
	DocumentsFailed prometheus.Counter

	// SectionsEmbedded counts section embeddings written.
	SectionsEmbedded prometheus.Counter

	// ClusterRuns counts clustering runs, labeled by outcome (completed, skipped, failed).
	ClusterRuns *prometheus.CounterVec

	// ClusterRunDuration observes clustering run duration in seconds.
	ClusterRunDuration prometheus.Histogram

	// ClusterK observes the chosen cluster count per completed run.
	ClusterK prometheus.Histogram

	// ThemesCreated counts themes written across all clustering runs.
	ThemesCreated prometheus.Counter

	// ThemesLabeled counts themes labeled, labeled by outcome (completed, skipped, failed).
	ThemesLabeled *prometheus.CounterVec

	// LabelRunDuration observes per-theme labeling duration in seconds.
	LabelRunDuration prometheus.Histogram
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		TriggersReceived: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "triggers_received_total",
			Help:      "Total number of trigger messages received",
		}, []string{"topic"}),
		TriggersDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "triggers_dropped_total",
			Help:      "Total number of malformed trigger payloads dropped",
		}, []string{"topic"}),
		TriggersPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "triggers_published_total",
			Help:      "Total number of next-stage triggers published",
		}, []string{"topic"}),

		DocumentsEnriched: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_enriched_total",
			Help:      "Total number of documents enriched successfully",
		}),
		DocumentsExcluded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_excluded_total",
			Help:      "Total number of documents excluded by inclusion filters",
		}),
		DocumentsDuplicate: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_duplicate_total",
			Help:      "Total number of documents detected as duplicates",
		}),
		DocumentsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_failed_total",
			Help:      "Total number of documents that failed processing",
		}),

		SectionsEmbedded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sections_embedded_total",
			Help:      "Total number of section embeddings written",
		}),

		ClusterRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cluster_runs_total",
			Help:      "Total number of clustering runs by outcome",
		}, []string{"outcome"}),
		ClusterRunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cluster_run_duration_seconds",
			Help:      "Duration of clustering runs in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		}),
		ClusterK: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cluster_k",
			Help:      "Chosen cluster count per completed clustering run",
			Buckets:   []float64{3, 5, 8, 10, 12, 15, 20},
		}),
		ThemesCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "themes_created_total",
			Help:      "Total number of themes created across clustering runs",
		}),

		ThemesLabeled: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "themes_labeled_total",
			Help:      "Total number of theme labeling passes by outcome",
		}, []string{"outcome"}),
		LabelRunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "label_run_duration_seconds",
			Help:      "Duration of per-theme labeling in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		}),
	}
}
