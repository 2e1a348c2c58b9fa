// Package telemetry records engine and interpreter activity as OpenTelemetry
// metrics, and each interpreted command as a span.
//
// Instruments come from a metric.MeterProvider and a trace.TracerProvider
// (the global ones unless supplied), so the package costs nothing when the
// host never installs an SDK.
package telemetry

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName = "miniredis"

	MetricCommands    = "miniredis.commands"
	MetricEvictions   = "miniredis.evictions"
	MetricExpirations = "miniredis.expirations"
	MetricKeyspace    = "miniredis.keyspace"
)

// Command outcome values for the "status" attribute.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Option configures a Recorder.
type Option func(*options)

type options struct {
	provider metric.MeterProvider
	tracers  trace.TracerProvider
}

// WithMeterProvider sets the MeterProvider. nil keeps the global provider.
func WithMeterProvider(p metric.MeterProvider) Option {
	return func(o *options) {
		if p != nil {
			o.provider = p
		}
	}
}

// WithTracerProvider sets the TracerProvider. nil keeps the global provider.
func WithTracerProvider(p trace.TracerProvider) Option {
	return func(o *options) {
		if p != nil {
			o.tracers = p
		}
	}
}

// Recorder owns the instruments. The zero value is not usable; a nil
// *Recorder is, and records nothing.
type Recorder struct {
	tracer      trace.Tracer
	commands    metric.Int64Counter
	evictions   metric.Int64Counter
	expirations metric.Int64Counter
	keyspace    metric.Int64Counter
}

// New creates the instruments.
func New(opts ...Option) (*Recorder, error) {
	o := &options{
		provider: otel.GetMeterProvider(),
		tracers:  otel.GetTracerProvider(),
	}
	for _, opt := range opts {
		opt(o)
	}
	meter := o.provider.Meter(instrumentationName)

	var errs []error
	counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit("1"))
		if err != nil {
			errs = append(errs, fmt.Errorf("telemetry: create %s: %w", name, err))
		}
		return c
	}

	r := &Recorder{
		tracer:      o.tracers.Tracer(instrumentationName),
		commands:    counter(MetricCommands, "commands executed"),
		evictions:   counter(MetricEvictions, "keys evicted by capacity pressure"),
		expirations: counter(MetricExpirations, "keys removed by lazy expiry"),
		keyspace:    counter(MetricKeyspace, "GET lookups by result"),
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return r, nil
}

// Command counts one executed command.
func (r *Recorder) Command(ctx context.Context, name, status string) {
	if r == nil {
		return
	}
	r.commands.Add(ctx, 1, metric.WithAttributes(
		attribute.String("command", name),
		attribute.String("status", status),
	))
}

// CommandSpan covers one command from dispatch to reply.
type CommandSpan struct {
	r    *Recorder
	ctx  context.Context
	span trace.Span
	name string
}

// StartCommand opens a span named after the command. End must be called
// exactly once.
func (r *Recorder) StartCommand(ctx context.Context, name string) (context.Context, *CommandSpan) {
	if r == nil {
		return ctx, nil
	}
	ctx, span := r.tracer.Start(ctx, "miniredis."+name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("command", name)),
	)
	return ctx, &CommandSpan{r: r, ctx: ctx, span: span, name: name}
}

// End counts the command and closes the span. A non-nil err marks both as
// failed.
func (s *CommandSpan) End(err error) {
	if s == nil {
		return
	}
	status := StatusOK
	if err != nil {
		status = StatusError
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	} else {
		s.span.SetStatus(codes.Ok, "")
	}
	s.r.Command(s.ctx, s.name, status)
	s.span.End()
}

// Lookup counts a GET hit or miss.
func (r *Recorder) Lookup(ctx context.Context, hit bool) {
	if r == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	r.keyspace.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// Evicted is shaped to plug into cache.Config.OnEvict.
func (r *Recorder) Evicted(string) {
	if r == nil {
		return
	}
	r.evictions.Add(context.Background(), 1)
}

// Expired is shaped to plug into cache.Config.OnExpire.
func (r *Recorder) Expired(string) {
	if r == nil {
		return
	}
	r.expirations.Add(context.Background(), 1)
}
