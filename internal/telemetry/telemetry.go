// Package telemetry provides the logging/tracing/metrics facade shared by
// every compiler pass and by the runtime. It is adapted from the teacher's
// runtime/agent/telemetry.go: the same Logger/Metrics/Tracer interface
// split, the same Clue-backed default implementation, generalized from
// per-agent-run spans to per-compiler-pass spans and GC/task gauges.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"goa.design/clue/log"
)

type (
	// Logger emits structured log lines scoped to a context.
	Logger interface {
		Debug(ctx context.Context, msg string, keyvals ...any)
		Info(ctx context.Context, msg string, keyvals ...any)
		Warn(ctx context.Context, msg string, keyvals ...any)
		Error(ctx context.Context, msg string, keyvals ...any)
	}

	// Tracer starts spans around units of compiler or runtime work.
	Tracer interface {
		StartSpan(ctx context.Context, name string) (context.Context, Span)
	}

	// Span is an in-flight trace span.
	Span interface {
		SetAttribute(key string, value any)
		RecordError(err error)
		End()
	}

	// Metrics records counters and gauges.
	Metrics interface {
		IncCounter(ctx context.Context, name string, keyvals ...any)
		RecordGauge(ctx context.Context, name string, value float64, keyvals ...any)
	}
)

// ClueLogger delegates to goa.design/clue/log.
type ClueLogger struct{}

// NewClueLogger constructs the default Logger.
func NewClueLogger() Logger { return ClueLogger{} }

func (ClueLogger) Debug(ctx context.Context, msg string, keyvals ...any) {
	log.Debug(ctx, fielders(msg, keyvals)...)
}

func (ClueLogger) Info(ctx context.Context, msg string, keyvals ...any) {
	log.Info(ctx, fielders(msg, keyvals)...)
}

func (ClueLogger) Warn(ctx context.Context, msg string, keyvals ...any) {
	fs := fielders(msg, keyvals)
	fs = append(fs, log.KV{K: "severity", V: "warning"})
	log.Warn(ctx, fs...)
}

func (ClueLogger) Error(ctx context.Context, msg string, keyvals ...any) {
	log.Error(ctx, fielders(msg, keyvals)...)
}

func fielders(msg string, keyvals []any) []log.Fielder {
	fs := []log.Fielder{log.KV{K: "msg", V: msg}}
	for i := 0; i+1 < len(keyvals); i += 2 {
		k, ok := keyvals[i].(string)
		if !ok {
			continue
		}
		fs = append(fs, log.KV{K: k, V: keyvals[i+1]})
	}
	return fs
}

// ClueTracer delegates to go.opentelemetry.io/otel tracing.
type ClueTracer struct {
	tracer trace.Tracer
}

// NewClueTracer constructs the default Tracer, scoped under the given
// instrumentation name (e.g. "github.com/plutolang/pluto/compiler").
func NewClueTracer(scope string) Tracer {
	return ClueTracer{tracer: otel.Tracer(scope)}
}

func (t ClueTracer) StartSpan(ctx context.Context, name string) (context.Context, Span) {
	ctx, span := t.tracer.Start(ctx, name)
	return ctx, clueSpan{span: span}
}

type clueSpan struct{ span trace.Span }

func (s clueSpan) SetAttribute(key string, value any) {
	s.span.SetAttributes(attribute.String(key, toString(value)))
}

func (s clueSpan) RecordError(err error) {
	if err == nil {
		return
	}
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}

func (s clueSpan) End() { s.span.End() }

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprintf("%v", t)
	}
}

// ClueMetrics delegates to go.opentelemetry.io/otel metrics.
type ClueMetrics struct {
	meter metric.Meter
}

// NewClueMetrics constructs the default Metrics recorder.
func NewClueMetrics(scope string) Metrics {
	return &ClueMetrics{meter: otel.Meter(scope)}
}

func (m *ClueMetrics) IncCounter(ctx context.Context, name string, keyvals ...any) {
	ctr, err := m.meter.Int64Counter(name)
	if err != nil {
		return
	}
	ctr.Add(ctx, 1, metric.WithAttributes(attrsFromKV(keyvals)...))
}

func (m *ClueMetrics) RecordGauge(ctx context.Context, name string, value float64, keyvals ...any) {
	g, err := m.meter.Float64Gauge(name)
	if err != nil {
		return
	}
	g.Record(ctx, value, metric.WithAttributes(attrsFromKV(keyvals)...))
}

func attrsFromKV(keyvals []any) []attribute.KeyValue {
	var out []attribute.KeyValue
	for i := 0; i+1 < len(keyvals); i += 2 {
		k, ok := keyvals[i].(string)
		if !ok {
			continue
		}
		out = append(out, attribute.String(k, toString(keyvals[i+1])))
	}
	return out
}

// PassSpan wraps fn in a span named "pass.<name>", recording any returned
// error on the span before returning it. Every front-end and transform pass
// uses this helper so pass timing is uniformly observable (SPEC_FULL.md §1.1).
func PassSpan(ctx context.Context, tracer Tracer, name string, fn func(context.Context) error) error {
	ctx, span := tracer.StartSpan(ctx, "pass."+name)
	defer span.End()
	err := fn(ctx)
	if err != nil {
		span.RecordError(err)
	}
	return err
}
