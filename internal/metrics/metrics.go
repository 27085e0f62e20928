// Package metrics exposes Prometheus instrumentation for the pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the monitoring service
type Metrics struct {
	// Audio ingest metrics
	ChunksProduced prometheus.Counter
	BytesIngested  prometheus.Counter
	ChunksDropped  prometheus.Counter
	QueueDepth     prometheus.Gauge

	// Transcription metrics
	TranscriptionRequests prometheus.Counter
	TranscriptionFailures prometheus.Counter
	TranscriptionEmpty    prometheus.Counter
	TranscriptionDuration prometheus.Histogram

	// Context metrics
	AudioObservations    prometheus.Counter
	LanguageObservations prometheus.Counter
	TrackedCallsigns     prometheus.Gauge

	// Escalation metrics
	EmergencyCandidates prometheus.Gauge
	IncidentsOpened     prometheus.Counter
	IncidentsEscalated  prometheus.Counter

	// Call dispatch metrics
	CallsTriggered prometheus.Counter
	CallsCompleted prometheus.Counter
	CallsFailed    prometheus.Counter
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		ChunksProduced: promauto.NewCounter(prometheus.CounterOpts{
			Name: "skywatch_audio_chunks_produced_total",
			Help: "Total number of fixed-size audio chunks produced",
		}),
		BytesIngested: promauto.NewCounter(prometheus.CounterOpts{
			Name: "skywatch_audio_bytes_ingested_total",
			Help: "Total number of PCM bytes read from the audio source",
		}),
		ChunksDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "skywatch_audio_chunks_dropped_total",
			Help: "Total number of chunks dropped due to a full processing queue",
		}),
		QueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "skywatch_chunk_queue_depth",
			Help: "Current number of chunks waiting for transcription",
		}),
		TranscriptionRequests: promauto.NewCounter(prometheus.CounterOpts{
			Name: "skywatch_transcription_requests_total",
			Help: "Total number of transcription requests sent",
		}),
		TranscriptionFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "skywatch_transcription_failures_total",
			Help: "Total number of failed transcription requests",
		}),
		TranscriptionEmpty: promauto.NewCounter(prometheus.CounterOpts{
			Name: "skywatch_transcription_empty_total",
			Help: "Total number of chunks with no speech content",
		}),
		TranscriptionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "skywatch_transcription_duration_seconds",
			Help:    "Duration of transcription requests",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		AudioObservations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "skywatch_audio_observations_total",
			Help: "Total number of audio observations filed",
		}),
		LanguageObservations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "skywatch_language_observations_total",
			Help: "Total number of language observations filed",
		}),
		TrackedCallsigns: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "skywatch_tracked_callsigns",
			Help: "Current number of callsigns with retained context",
		}),
		EmergencyCandidates: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "skywatch_emergency_candidates",
			Help: "Current number of emergency candidate callsigns",
		}),
		IncidentsOpened: promauto.NewCounter(prometheus.CounterOpts{
			Name: "skywatch_incidents_opened_total",
			Help: "Total number of incidents opened",
		}),
		IncidentsEscalated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "skywatch_incidents_escalated_total",
			Help: "Total number of incidents escalated",
		}),
		CallsTriggered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "skywatch_calls_triggered_total",
			Help: "Total number of emergency calls triggered",
		}),
		CallsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "skywatch_calls_completed_total",
			Help: "Total number of emergency calls completed",
		}),
		CallsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "skywatch_calls_failed_total",
			Help: "Total number of emergency calls that failed",
		}),
	}
}
