/*
Package telemetry provides an embeddable, process-wide telemetry collector
that unifies metrics, events, and tracing spans behind one thread-safe API.

Architecture Overview:

The package is built around three pieces:

 1. Record types - immutable value objects (MetricRecord, EventRecord,
    SpanRecord) produced by the client.
 2. Client - the single rendezvous point for capture and query. All state
    lives in five tables (metrics, events, completed spans, active spans,
    task mappings) guarded by one mutex.
 3. Exporters - pluggable sinks notified after each record is captured.
    Exporters implement any subset of MetricExporter, EventExporter, and
    SpanExporter; each call is individually fault-isolated.

Thread Safety:

All Client methods are safe for concurrent use. Mutation is serialized
through one coarse-grained mutex; only O(1) map and slice operations happen
under the lock. Exporter notification always runs after the lock is
released, so a slow or failing exporter never stalls other producers.

Failure Semantics:

Telemetry must never become a source of application failure. The only error
the collector raises synchronously is ErrInvalidMetricValue from
RecordMetric. Operations on unknown span or task ids are silent no-ops, and
exporter errors and panics are logged and swallowed.

Usage:

Construct one Client at process start and pass it to the integration
points (dependency injection, no package-level global):

	logger := telemetry.NewLogger("my-service")
	obs := telemetry.New(telemetry.DefaultConfig(), logger)

	// Optional: forward records to an OTLP collector. Registration fails
	// soft - on error the client simply runs with zero exporters.
	telemetry.Bootstrap(obs, cfg, logger)

Record telemetry from anywhere:

	obs.RecordMetric("cache.hits", 1, map[string]string{"pool": "sessions"})
	obs.RecordEvent("user.login", "login ok", telemetry.SeverityInfo, nil)

Time a unit of work with a scoped span:

	err := obs.Span("checkout", nil).Do(func() error {
	    return processOrder(ctx, order)
	})

The span completes exactly once on every exit path: "ok" on normal return,
"error" with the error text when the function returns an error or panics.
A panic is re-raised unchanged after the span is recorded.
*/
package telemetry
