package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for meetings and archives.
const (
	StatusImported = "imported"
	StatusSkipped  = "skipped"
	StatusFailed   = "failed"
)

// Cache lookup results.
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)

// ImportMetrics holds all Prometheus metrics for meeting imports.
type ImportMetrics struct {
	ArchivesTotal *prometheus.CounterVec
	MeetingsTotal *prometheus.CounterVec
	ErrorsTotal   *prometheus.CounterVec

	StageSeconds    *prometheus.HistogramVec
	TranscriptBytes prometheus.Histogram
	StreamedTotal   *prometheus.CounterVec

	CacheLookupsTotal *prometheus.CounterVec
	ParticipantsCount prometheus.Histogram
}

// DefaultImportMetrics registers metrics with the default registerer.
func DefaultImportMetrics() *ImportMetrics {
	return NewImportMetrics(prometheus.DefaultRegisterer)
}

// NewImportMetrics creates and registers a new set of import metrics.
func NewImportMetrics(reg prometheus.Registerer) *ImportMetrics {
	factory := promauto.With(reg)

	return &ImportMetrics{
		ArchivesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "krisp_import_archives_total",
				Help: "Archives and folders processed",
			},
			[]string{"status"},
		),
		MeetingsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "krisp_import_meetings_total",
				Help: "Meetings processed by outcome",
			},
			[]string{"status"},
		),
		ErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "krisp_import_errors_total",
				Help: "Import errors by code and stage",
			},
			[]string{"code", "stage"},
		),
		StageSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "krisp_import_stage_seconds",
				Help:    "Time spent in each import stage",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
			},
			[]string{"stage"},
		),
		TranscriptBytes: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "krisp_import_transcript_bytes",
				Help:    "Size of transcripts parsed",
				Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
			},
		),
		StreamedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "krisp_import_streamed_transcripts_total",
				Help: "Transcripts parsed in streaming mode",
			},
			[]string{"truncated"},
		),
		CacheLookupsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "krisp_import_analytics_cache_lookups_total",
				Help: "Analytics cache lookups by result",
			},
			[]string{"result"},
		),
		ParticipantsCount: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "krisp_import_participants",
				Help:    "Participants per meeting",
				Buckets: []float64{1, 2, 3, 5, 8, 13, 21},
			},
		),
	}
}

// A nil *ImportMetrics records nothing, so callers never need to check.

// RecordArchive records a processed archive.
func (m *ImportMetrics) RecordArchive(status string) {
	if m == nil {
		return
	}
	m.ArchivesTotal.WithLabelValues(status).Inc()
}

// RecordMeeting records a meeting outcome.
func (m *ImportMetrics) RecordMeeting(status string) {
	if m == nil {
		return
	}
	m.MeetingsTotal.WithLabelValues(status).Inc()
}

// RecordError records a classified import error.
func (m *ImportMetrics) RecordError(code, stage string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(code, stage).Inc()
}

// RecordStage records the latency of an import stage.
func (m *ImportMetrics) RecordStage(stage string, seconds float64) {
	if m == nil {
		return
	}
	m.StageSeconds.WithLabelValues(stage).Observe(seconds)
}

// RecordTranscript records a parsed transcript's size and mode.
func (m *ImportMetrics) RecordTranscript(bytes int64, streamed, truncated bool) {
	if m == nil {
		return
	}
	m.TranscriptBytes.Observe(float64(bytes))
	if streamed {
		label := "false"
		if truncated {
			label = "true"
		}
		m.StreamedTotal.WithLabelValues(label).Inc()
	}
}

// RecordCacheLookup records an analytics cache lookup.
func (m *ImportMetrics) RecordCacheLookup(result string) {
	if m == nil {
		return
	}
	m.CacheLookupsTotal.WithLabelValues(result).Inc()
}

// RecordParticipants records the participant count of a meeting.
func (m *ImportMetrics) RecordParticipants(n int) {
	if m == nil {
		return
	}
	m.ParticipantsCount.Observe(float64(n))
}
