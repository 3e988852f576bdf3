// Package observe provides observability primitives for opusctl:
// OpenTelemetry metrics, tracing, trace-aware logging, and HTTP middleware.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all codec metrics.
const meterName = "github.com/MrWong99/opuscodec"

// Operation attribute values.
const (
	OpEncode = "encode"
	OpDecode = "decode"
)

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// FrameDuration tracks the latency of a single encode or decode call.
	// Use with attribute.String("op", ...).
	FrameDuration metric.Float64Histogram

	// JobDuration tracks the wall time of one transcode job. Use with
	// attributes op and status.
	JobDuration metric.Float64Histogram

	// Frames counts frames processed by op.
	Frames metric.Int64Counter

	// PCMBytes counts PCM bytes consumed (encode) or produced (decode).
	PCMBytes metric.Int64Counter

	// PacketBytes counts compressed bytes produced (encode) or consumed
	// (decode).
	PacketBytes metric.Int64Counter

	// CodecErrors counts codec failures. Use with attributes op and kind.
	CodecErrors metric.Int64Counter

	// ActiveSessions tracks the number of open codec sessions.
	ActiveSessions metric.Int64UpDownCounter

	// HTTPRequestDuration tracks HTTP request processing time. Recorded by
	// [Middleware] with attributes method, route and status_class.
	HTTPRequestDuration metric.Float64Histogram
}

// frameBuckets are histogram boundaries (in seconds) for one codec call.
var frameBuckets = []float64{
	0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025,
}

// jobBuckets are histogram boundaries (in seconds) for whole jobs.
var jobBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.FrameDuration, err = m.Float64Histogram("opus.frame.duration",
		metric.WithDescription("Latency of a single encode or decode call."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(frameBuckets...),
	); err != nil {
		return nil, err
	}
	if met.JobDuration, err = m.Float64Histogram("opus.job.duration",
		metric.WithDescription("Wall time of one transcode job by operation and status."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(jobBuckets...),
	); err != nil {
		return nil, err
	}

	if met.Frames, err = m.Int64Counter("opus.frames",
		metric.WithDescription("Total frames processed by operation."),
	); err != nil {
		return nil, err
	}
	if met.PCMBytes, err = m.Int64Counter("opus.pcm.bytes",
		metric.WithDescription("Total PCM bytes consumed or produced by operation."),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	if met.PacketBytes, err = m.Int64Counter("opus.packet.bytes",
		metric.WithDescription("Total compressed bytes produced or consumed by operation."),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	if met.CodecErrors, err = m.Int64Counter("opus.errors",
		metric.WithDescription("Total codec errors by operation and kind."),
	); err != nil {
		return nil, err
	}

	if met.ActiveSessions, err = m.Int64UpDownCounter("opus.active_sessions",
		metric.WithDescription("Number of open codec sessions."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("opus.http.request.duration",
		metric.WithDescription("HTTP request latency by method, route and status class."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Panics if instrument creation
// fails.
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

// Attr is a convenience alias for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordFrame records one successful codec call.
func (m *Metrics) RecordFrame(ctx context.Context, op string, d time.Duration, pcmBytes, packetBytes int) {
	attrs := metric.WithAttributes(attribute.String("op", op))
	m.FrameDuration.Record(ctx, d.Seconds(), attrs)
	m.Frames.Add(ctx, 1, attrs)
	m.PCMBytes.Add(ctx, int64(pcmBytes), attrs)
	m.PacketBytes.Add(ctx, int64(packetBytes), attrs)
}

// RecordCodecError records one failed codec call.
func (m *Metrics) RecordCodecError(ctx context.Context, op, kind string) {
	m.CodecErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("op", op),
			attribute.String("kind", kind),
		),
	)
}

// RecordJob records the completion of a transcode job.
func (m *Metrics) RecordJob(ctx context.Context, op, status string, d time.Duration) {
	m.JobDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(
			attribute.String("op", op),
			attribute.String("status", status),
		),
	)
}
