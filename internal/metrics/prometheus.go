package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pipeline stage labels
const (
	StageNormalize  = "normalize"
	StageTranscribe = "transcribe"
	StageSummarize  = "summarize"
	StageActions    = "action_items"
	StagePersist    = "persist"
	StageArchive    = "archive"
)

// Metrics contains all Prometheus metrics for the meeting summarizer
type Metrics struct {
	registry *prometheus.Registry

	// Request metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration prometheus.Histogram
	InFlight        prometheus.Gauge
	UploadSizeBytes prometheus.Histogram
	AudioDuration   prometheus.Histogram

	// Stage metrics
	StageDuration *prometheus.HistogramVec
	StageFailures *prometheus.CounterVec
	StageDegraded *prometheus.CounterVec

	// Store metrics
	MeetingsSaved   prometheus.Counter
	MeetingsDeleted prometheus.Counter

	// Sweeper metrics
	TempFilesRemoved prometheus.Counter
}

// New creates all metrics on a private registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "meeting_requests_total",
			Help: "Total number of transcription requests by outcome",
		}, []string{"outcome"}),
		RequestDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "meeting_request_duration_seconds",
			Help:    "End-to-end processing time of transcription requests",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~1 hour
		}),
		InFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "meeting_pipelines_in_flight",
			Help: "Current number of running pipelines",
		}),
		UploadSizeBytes: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "meeting_upload_size_bytes",
			Help:    "Size of uploaded recordings",
			Buckets: prometheus.ExponentialBuckets(64*1024, 2, 11), // 64KB to ~64MB
		}),
		AudioDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "meeting_audio_duration_seconds",
			Help:    "Duration of normalized recordings",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10), // 10s to ~85 minutes
		}),

		StageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "meeting_stage_duration_seconds",
			Help:    "Time spent in each pipeline stage",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 16), // 10ms to ~5 minutes
		}, []string{"stage"}),
		StageFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "meeting_stage_failures_total",
			Help: "Pipeline stages that ended the request with an error",
		}, []string{"stage"}),
		StageDegraded: f.NewCounterVec(prometheus.CounterOpts{
			Name: "meeting_stage_degraded_total",
			Help: "Pipeline stages that failed but let the request continue",
		}, []string{"stage"}),

		MeetingsSaved: f.NewCounter(prometheus.CounterOpts{
			Name: "meeting_records_saved_total",
			Help: "Total number of meetings persisted",
		}),
		MeetingsDeleted: f.NewCounter(prometheus.CounterOpts{
			Name: "meeting_records_deleted_total",
			Help: "Total number of meetings deleted",
		}),

		TempFilesRemoved: f.NewCounter(prometheus.CounterOpts{
			Name: "meeting_temp_files_removed_total",
			Help: "Total number of orphaned temp files removed by the sweeper",
		}),
	}
}

// Registry exposes the underlying registry for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
