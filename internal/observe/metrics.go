// Package observe provides application-wide observability primitives for
// Voxtype: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Voxtype metrics.
const meterName = "github.com/voxtype/voxtype"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// TranscriptionDuration tracks per-segment transcription latency. Use
	// with attribute.String("provider", ...).
	TranscriptionDuration metric.Float64Histogram

	// SegmentDuration tracks the audio duration of dispatched segments in
	// seconds.
	SegmentDuration metric.Float64Histogram

	// HTTPRequestDuration tracks HTTP request processing time. Use with
	// attributes: attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram

	// --- Counters ---

	// SegmentFlushes counts buffer flushes by trigger. Use with attribute:
	//   attribute.String("reason", ...)
	SegmentFlushes metric.Int64Counter

	// DroppedChunks counts audio chunks dropped on ingestion queue overflow.
	DroppedChunks metric.Int64Counter

	// DroppedSegments counts flushed segments that never reached the sink.
	// Use with attribute: attribute.String("reason", ...), one of
	// "below_min", "empty_text", "no_usable_text", or "transcriber_error".
	DroppedSegments metric.Int64Counter

	// TranscriberErrors counts transcription failures. Use with attribute:
	//   attribute.String("provider", ...)
	TranscriberErrors metric.Int64Counter

	// --- Gauges ---

	// QueueDepth tracks the number of audio chunks waiting in the ingestion
	// queue.
	QueueDepth metric.Int64UpDownCounter

	// ActiveSessions tracks the number of live dictation sessions.
	ActiveSessions metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for transcription latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.TranscriptionDuration, err = m.Float64Histogram("voxtype.transcription.duration",
		metric.WithDescription("Latency of per-segment transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SegmentDuration, err = m.Float64Histogram("voxtype.segment.duration",
		metric.WithDescription("Audio duration of dispatched segments."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("voxtype.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.SegmentFlushes, err = m.Int64Counter("voxtype.segment.flushes",
		metric.WithDescription("Total buffer flushes by trigger reason."),
	); err != nil {
		return nil, err
	}
	if met.DroppedChunks, err = m.Int64Counter("voxtype.chunks.dropped",
		metric.WithDescription("Total audio chunks dropped on queue overflow."),
	); err != nil {
		return nil, err
	}
	if met.DroppedSegments, err = m.Int64Counter("voxtype.segments.dropped",
		metric.WithDescription("Total flushed segments discarded before reaching the sink."),
	); err != nil {
		return nil, err
	}
	if met.TranscriberErrors, err = m.Int64Counter("voxtype.transcriber.errors",
		metric.WithDescription("Total transcription failures by provider."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.QueueDepth, err = m.Int64UpDownCounter("voxtype.queue.depth",
		metric.WithDescription("Audio chunks currently waiting in the ingestion queue."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("voxtype.active_sessions",
		metric.WithDescription("Number of live dictation sessions."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordFlush records a segment flush with its trigger reason.
func (m *Metrics) RecordFlush(ctx context.Context, reason string) {
	m.SegmentFlushes.Add(ctx, 1,
		metric.WithAttributes(attribute.String("reason", reason)),
	)
}

// RecordDroppedSegment records a flushed segment that was discarded before
// reaching the sink.
func (m *Metrics) RecordDroppedSegment(ctx context.Context, reason string) {
	m.DroppedSegments.Add(ctx, 1,
		metric.WithAttributes(attribute.String("reason", reason)),
	)
}

// RecordTranscriberError records a transcription failure.
func (m *Metrics) RecordTranscriberError(ctx context.Context, provider string) {
	m.TranscriberErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("provider", provider)),
	)
}
