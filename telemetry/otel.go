package telemetry

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// OTelExporter forwards captured records to a downstream OpenTelemetry
// collector. It implements all three capability interfaces: metrics become
// float64 counters, events become a counter tagged with name and severity,
// and completed spans are replayed with their original start and end
// timestamps.
type OTelExporter struct {
	tracer        trace.Tracer
	meter         metric.Meter
	traceProvider *sdktrace.TracerProvider
	meterProvider *sdkmetric.MeterProvider

	// counter cache, double-checked to keep the read path lock-free
	mu       sync.RWMutex
	counters map[string]metric.Float64Counter
	events   metric.Int64Counter
}

// OTelOptions configures the forwarding exporter.
type OTelOptions struct {
	ServiceName string
	// Endpoint is the OTLP/HTTP endpoint, e.g. "localhost:4318".
	Endpoint string
	// Stdout replaces the OTLP trace exporter with a stdout exporter.
	// Intended for local development and the verification command.
	Stdout bool
}

// NewOTelExporter creates the forwarding exporter. The returned exporter
// owns its providers; call Shutdown to flush and release them.
func NewOTelExporter(opts OTelOptions) (*OTelExporter, error) {
	if opts.ServiceName == "" {
		opts.ServiceName = "telemetrykit"
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(opts.ServiceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	ctx := context.Background()

	var spanExporter sdktrace.SpanExporter
	if opts.Stdout {
		spanExporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	} else {
		spanExporter, err = otlptracehttp.New(ctx,
			otlptracehttp.WithEndpoint(opts.Endpoint),
			otlptracehttp.WithInsecure(),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(spanExporter),
		sdktrace.WithResource(res),
	)

	meterOpts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	if !opts.Stdout {
		metricExporter, err := otlpmetrichttp.New(ctx,
			otlpmetrichttp.WithEndpoint(opts.Endpoint),
			otlpmetrichttp.WithInsecure(),
		)
		if err != nil {
			_ = traceProvider.Shutdown(ctx)
			return nil, fmt.Errorf("failed to create metric exporter: %w", err)
		}
		meterOpts = append(meterOpts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)))
	}
	meterProvider := sdkmetric.NewMeterProvider(meterOpts...)

	return &OTelExporter{
		tracer:        traceProvider.Tracer("telemetrykit"),
		meter:         meterProvider.Meter("telemetrykit"),
		traceProvider: traceProvider,
		meterProvider: meterProvider,
		counters:      make(map[string]metric.Float64Counter),
	}, nil
}

// ExportMetric forwards a metric as a float64 counter add.
func (o *OTelExporter) ExportMetric(rec MetricRecord) error {
	counter, err := o.counter(rec.Name)
	if err != nil {
		return err
	}
	counter.Add(context.Background(), rec.Value, metric.WithAttributes(tagAttributes(rec.Tags)...))
	return nil
}

// ExportEvent forwards an event as a count tagged with name and severity.
func (o *OTelExporter) ExportEvent(rec EventRecord) error {
	o.mu.RLock()
	counter := o.events
	o.mu.RUnlock()

	if counter == nil {
		o.mu.Lock()
		if counter = o.events; counter == nil {
			var err error
			counter, err = o.meter.Int64Counter("telemetry.events")
			if err != nil {
				o.mu.Unlock()
				return fmt.Errorf("failed to create event counter: %w", err)
			}
			o.events = counter
		}
		o.mu.Unlock()
	}

	attrs := append(tagAttributes(rec.Tags),
		attribute.String("event", rec.Name),
		attribute.String("severity", string(rec.Severity)),
	)
	counter.Add(context.Background(), 1, metric.WithAttributes(attrs...))
	return nil
}

// ExportSpan replays a completed span with its original timestamps.
func (o *OTelExporter) ExportSpan(rec SpanRecord) error {
	_, span := o.tracer.Start(context.Background(), rec.Name,
		trace.WithTimestamp(rec.StartTime),
		trace.WithAttributes(tagAttributes(rec.Tags)...),
	)
	if rec.Status == StatusError {
		span.SetStatus(codes.Error, rec.Error)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.SetAttributes(attribute.String("telemetry.span_id", rec.SpanID))
	span.End(trace.WithTimestamp(rec.EndTime))
	return nil
}

// Shutdown flushes and releases the underlying providers.
func (o *OTelExporter) Shutdown(ctx context.Context) error {
	traceErr := o.traceProvider.Shutdown(ctx)
	meterErr := o.meterProvider.Shutdown(ctx)
	if traceErr != nil {
		return traceErr
	}
	return meterErr
}

// counter returns the cached counter for name, creating it on first use.
func (o *OTelExporter) counter(name string) (metric.Float64Counter, error) {
	o.mu.RLock()
	counter, exists := o.counters[name]
	o.mu.RUnlock()
	if exists {
		return counter, nil
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if counter, exists = o.counters[name]; exists {
		return counter, nil
	}
	counter, err := o.meter.Float64Counter(name)
	if err != nil {
		return nil, fmt.Errorf("failed to create counter %s: %w", name, err)
	}
	o.counters[name] = counter
	return counter, nil
}

func tagAttributes(tags map[string]string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(tags))
	for k, v := range tags {
		attrs = append(attrs, attribute.String(k, v))
	}
	return attrs
}

// Bootstrap wires the default forwarding exporter into the client when
// forwarding is enabled. Registration fails soft: when the downstream
// collector cannot be set up the failure is logged and the client continues
// with whatever exporters it already has. Returns the exporter, or nil when
// forwarding is disabled or setup failed.
func Bootstrap(c *Client, cfg Config, logger *Logger) *OTelExporter {
	if !cfg.Forwarding {
		return nil
	}

	exporter, err := NewOTelExporter(OTelOptions{
		ServiceName: cfg.ServiceName,
		Endpoint:    cfg.Endpoint,
	})
	if err != nil {
		if logger != nil {
			logger.Error("Forwarding exporter unavailable, continuing without it", map[string]interface{}{
				"error":    err.Error(),
				"endpoint": cfg.Endpoint,
			})
		}
		return nil
	}

	c.RegisterExporter(exporter)
	if logger != nil {
		logger.Info("Forwarding exporter registered", map[string]interface{}{
			"endpoint": cfg.Endpoint,
			"service":  cfg.ServiceName,
		})
	}
	return exporter
}
