package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"RegulationScanner/internal/ports"
)

const namespace = "regulation_scanner"

// Recorder implements ports.Metrics on a private Prometheus registry.
type Recorder struct {
	registry *prometheus.Registry

	articlesInserted    *prometheus.CounterVec
	candidatesExtracted *prometheus.CounterVec
	extractionFailures  *prometheus.CounterVec
	candidatesMerged    *prometheus.CounterVec
	updatesRecorded     *prometheus.CounterVec
	topicRuns           *prometheus.CounterVec
	topicRunDuration    *prometheus.HistogramVec
}

var _ ports.Metrics = (*Recorder)(nil)

// NewRecorder registers every pipeline collector plus Go runtime collectors.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		articlesInserted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "articles_inserted_total",
			Help:      "New articles persisted after URL deduplication.",
		}, []string{"topic"}),
		candidatesExtracted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_extracted_total",
			Help:      "Candidates parsed from LLM extraction responses.",
		}, []string{"topic"}),
		extractionFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extraction_failures_total",
			Help:      "Extraction calls that failed or returned malformed output.",
		}, []string{"topic", "reason"}),
		candidatesMerged: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_merged_total",
			Help:      "Merged candidates produced by anchor consensus.",
		}, []string{"topic"}),
		updatesRecorded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verified_updates_recorded_total",
			Help:      "Verified updates written, split by whether they became latest.",
		}, []string{"topic", "promoted"}),
		topicRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "topic_runs_total",
			Help:      "Pipeline runs per topic and final status.",
		}, []string{"topic", "status"}),
		topicRunDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "topic_run_duration_seconds",
			Help:      "Wall time of one topic pipeline run.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}, []string{"topic"}),
	}
}

// Handler exposes the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func (r *Recorder) ArticlesInserted(topicID string, n int) {
	r.articlesInserted.WithLabelValues(topicID).Add(float64(n))
}

func (r *Recorder) CandidatesExtracted(topicID string, n int) {
	r.candidatesExtracted.WithLabelValues(topicID).Add(float64(n))
}

func (r *Recorder) ExtractionFailed(topicID, reason string) {
	r.extractionFailures.WithLabelValues(topicID, reason).Inc()
}

func (r *Recorder) CandidatesMerged(topicID string, n int) {
	r.candidatesMerged.WithLabelValues(topicID).Add(float64(n))
}

func (r *Recorder) UpdateRecorded(topicID string, promoted bool) {
	label := "false"
	if promoted {
		label = "true"
	}
	r.updatesRecorded.WithLabelValues(topicID, label).Inc()
}

func (r *Recorder) TopicRun(topicID, status string, elapsed time.Duration) {
	r.topicRuns.WithLabelValues(topicID, status).Inc()
	r.topicRunDuration.WithLabelValues(topicID).Observe(elapsed.Seconds())
}

// Nop discards every observation.
type Nop struct{}

var _ ports.Metrics = Nop{}

func (Nop) ArticlesInserted(string, int)           {}
func (Nop) CandidatesExtracted(string, int)        {}
func (Nop) ExtractionFailed(string, string)        {}
func (Nop) CandidatesMerged(string, int)           {}
func (Nop) UpdateRecorded(string, bool)            {}
func (Nop) TopicRun(string, string, time.Duration) {}
