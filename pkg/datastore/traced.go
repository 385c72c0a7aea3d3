package datastore

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/DrSkyle/bridgestore/pkg/datastore"

// instrumented decorates a Driver with spans and metrics.
type instrumented struct {
	next    Driver
	backend string
	tracer  trace.Tracer
	meter   metric.Meter

	ops      metric.Int64Counter
	bytes    metric.Int64Counter
	duration metric.Float64Histogram
}

// InstrumentOption configures Instrument.
type InstrumentOption func(*instrumented)

// WithTracer overrides the global tracer.
func WithTracer(t trace.Tracer) InstrumentOption {
	return func(d *instrumented) { d.tracer = t }
}

// WithMeter overrides the global meter.
func WithMeter(m metric.Meter) InstrumentOption {
	return func(d *instrumented) { d.meter = m }
}

// WithBackendName sets the backend attribute when next is not a *Store.
func WithBackendName(name string) InstrumentOption {
	return func(d *instrumented) { d.backend = name }
}

// Instrument wraps next so every operation is traced and counted.
func Instrument(next Driver, opts ...InstrumentOption) Driver {
	d := &instrumented{
		next:   next,
		tracer: otel.Tracer(instrumentationName),
		meter:  otel.Meter(instrumentationName),
	}
	if s, ok := next.(*Store); ok {
		d.backend = s.Name()
	}
	for _, opt := range opts {
		opt(d)
	}

	fallback := noop.NewMeterProvider().Meter(instrumentationName)
	var err error
	if d.ops, err = d.meter.Int64Counter("datastore.operations",
		metric.WithDescription("Driver operations by outcome kind")); err != nil {
		d.ops, _ = fallback.Int64Counter("datastore.operations")
	}
	if d.bytes, err = d.meter.Int64Counter("datastore.bytes",
		metric.WithDescription("Bytes moved over the wire"), metric.WithUnit("By")); err != nil {
		d.bytes, _ = fallback.Int64Counter("datastore.bytes")
	}
	if d.duration, err = d.meter.Float64Histogram("datastore.duration",
		metric.WithDescription("Driver operation latency"), metric.WithUnit("ms")); err != nil {
		d.duration, _ = fallback.Float64Histogram("datastore.duration")
	}
	return d
}

// observe runs fn inside a span and records its outcome. fn reports the
// number of wire bytes it moved.
func (d *instrumented) observe(ctx context.Context, op, keyAttr, key string, fn func(context.Context) (int, error)) {
	ctx, span := d.tracer.Start(ctx, "datastore."+op, trace.WithAttributes(
		attribute.String("datastore.backend", d.backend),
		attribute.String(keyAttr, key),
	))
	defer span.End()

	start := time.Now()
	n, err := fn(ctx)
	elapsed := float64(time.Since(start).Microseconds()) / 1000

	outcome := "ok"
	if err != nil {
		outcome = KindOf(err).String()
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		span.SetAttributes(attribute.String("datastore.error.kind", outcome))
		if code := CodeOf(err); code != "" {
			span.SetAttributes(attribute.String("datastore.error.code", code))
		}
	} else {
		span.SetAttributes(attribute.Int("datastore.bytes", n))
		d.bytes.Add(ctx, int64(n), metric.WithAttributes(attribute.String("op", op)))
	}

	attrs := metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("backend", d.backend),
		attribute.String("outcome", outcome),
	)
	d.ops.Add(ctx, 1, attrs)
	d.duration.Record(ctx, elapsed, attrs)
}

func (d *instrumented) ListObjects(ctx context.Context, path string) (keys []string, err error) {
	d.observe(ctx, OpListObjects, "datastore.prefix", ListPrefix(path), func(ctx context.Context) (int, error) {
		keys, err = d.next.ListObjects(ctx, path)
		return 0, err
	})
	return keys, err
}

func (d *instrumented) FetchObject(ctx context.Context, name, path string) (out string, err error) {
	d.observe(ctx, OpFetchObject, "datastore.key", DeriveKey(path, name), func(ctx context.Context) (int, error) {
		out, err = d.next.FetchObject(ctx, name, path)
		return len(out), err
	})
	return out, err
}

func (d *instrumented) UploadObject(ctx context.Context, name, contents, path string) (n int, err error) {
	d.observe(ctx, OpUploadObject, "datastore.key", DeriveKey(path, name), func(ctx context.Context) (int, error) {
		n, err = d.next.UploadObject(ctx, name, contents, path)
		return n, err
	})
	return n, err
}

func (d *instrumented) FetchCompressedObject(ctx context.Context, name, path string) (out []byte, n int, err error) {
	d.observe(ctx, OpFetchCompressedObject, "datastore.key", DeriveKey(path, name), func(ctx context.Context) (int, error) {
		out, n, err = d.next.FetchCompressedObject(ctx, name, path)
		return n, err
	})
	return out, n, err
}

func (d *instrumented) UploadCompressedObject(ctx context.Context, name string, contents []byte, path string) (n int, err error) {
	d.observe(ctx, OpUploadCompressedObject, "datastore.key", DeriveKey(path, name), func(ctx context.Context) (int, error) {
		n, err = d.next.UploadCompressedObject(ctx, name, contents, path)
		return n, err
	})
	return n, err
}
