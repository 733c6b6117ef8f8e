package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// IngestMetrics records ingestion and token lifecycle outcomes.
type IngestMetrics struct {
	appendDuration *prometheus.HistogramVec
	ingested       *prometheus.CounterVec
	dropped        *prometheus.CounterVec
	deduped        *prometheus.CounterVec
	evicted        prometheus.Counter
	silent         prometheus.Counter
	tokenEvents    *prometheus.CounterVec
}

// NewIngestMetrics registers the ingest metrics on the provided registerer.
// A nil registerer yields a no-op recorder, which keeps tests and the
// minimal background process free of a registry.
func NewIngestMetrics(reg prometheus.Registerer) *IngestMetrics {
	if reg == nil {
		return &IngestMetrics{}
	}
	appendDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "notification_append_duration_seconds",
		Help:    "Duration of durable notification appends in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"context"})
	ingested := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_ingested_total",
		Help: "Notifications appended to the durable store.",
	}, []string{"context", "type"})
	dropped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_dropped_total",
		Help: "Malformed push payloads dropped at ingestion.",
	}, []string{"context"})
	deduped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_deduplicated_total",
		Help: "Appends skipped because the notification id was already stored.",
	}, []string{"context"})
	evicted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notifications_evicted_total",
		Help: "Records evicted by the retention cap.",
	})
	silent := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notifications_silent_skipped_total",
		Help: "Data-only pushes skipped without creating a record.",
	})
	tokenEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "push_token_events_total",
		Help: "Push token lifecycle transitions by outcome.",
	}, []string{"event"})
	reg.MustRegister(appendDuration, ingested, dropped, deduped, evicted, silent, tokenEvents)
	return &IngestMetrics{
		appendDuration: appendDuration,
		ingested:       ingested,
		dropped:        dropped,
		deduped:        deduped,
		evicted:        evicted,
		silent:         silent,
		tokenEvents:    tokenEvents,
	}
}

// ObserveAppend records the duration of one durable append.
func (m *IngestMetrics) ObserveAppend(context string, duration time.Duration) {
	if m == nil || m.appendDuration == nil {
		return
	}
	m.appendDuration.WithLabelValues(normalizeLabel(context)).Observe(duration.Seconds())
}

// IncIngested counts a successful append.
func (m *IngestMetrics) IncIngested(context, notificationType string) {
	if m == nil || m.ingested == nil {
		return
	}
	m.ingested.WithLabelValues(normalizeLabel(context), normalizeLabel(notificationType)).Inc()
}

// IncDropped counts a malformed payload dropped at decode time.
func (m *IngestMetrics) IncDropped(context string) {
	if m == nil || m.dropped == nil {
		return
	}
	m.dropped.WithLabelValues(normalizeLabel(context)).Inc()
}

// IncDeduped counts an append skipped for a duplicate id.
func (m *IngestMetrics) IncDeduped(context string) {
	if m == nil || m.deduped == nil {
		return
	}
	m.deduped.WithLabelValues(normalizeLabel(context)).Inc()
}

// AddEvicted counts records removed by the retention cap.
func (m *IngestMetrics) AddEvicted(n int) {
	if m == nil || m.evicted == nil || n <= 0 {
		return
	}
	m.evicted.Add(float64(n))
}

// IncSilentSkipped counts a data-only push that produced no record.
func (m *IngestMetrics) IncSilentSkipped() {
	if m == nil || m.silent == nil {
		return
	}
	m.silent.Inc()
}

// IncTokenEvent counts a push token lifecycle event.
func (m *IngestMetrics) IncTokenEvent(event string) {
	if m == nil || m.tokenEvents == nil {
		return
	}
	m.tokenEvents.WithLabelValues(normalizeLabel(event)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
