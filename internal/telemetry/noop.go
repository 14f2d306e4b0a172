package telemetry

import "context"

// Noop is a Logger, Tracer, and Metrics implementation that discards
// everything. Used by tests and by any embedding that has not configured an
// OTEL/Clue exporter.
type Noop struct{}

func (Noop) Debug(context.Context, string, ...any) {}
func (Noop) Info(context.Context, string, ...any)  {}
func (Noop) Warn(context.Context, string, ...any)  {}
func (Noop) Error(context.Context, string, ...any) {}

func (Noop) StartSpan(ctx context.Context, _ string) (context.Context, Span) {
	return ctx, noopSpan{}
}

func (Noop) IncCounter(context.Context, string, ...any)            {}
func (Noop) RecordGauge(context.Context, string, float64, ...any) {}

type noopSpan struct{}

func (noopSpan) SetAttribute(string, any) {}
func (noopSpan) RecordError(error)        {}
func (noopSpan) End()                     {}

var (
	_ Logger  = Noop{}
	_ Tracer  = Noop{}
	_ Metrics = Noop{}
)
