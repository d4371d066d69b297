package telemetry

import "fmt"

// Exporter is a pluggable sink for captured records. Implementations satisfy
// any subset of MetricExporter, EventExporter, and SpanExporter; the client
// checks capabilities at notification time, so a spans-only exporter is
// valid. Exporters should be registered as pointers - de-duplication on
// RegisterExporter is identity-based.
type Exporter interface{}

// MetricExporter receives a copy of each captured metric.
type MetricExporter interface {
	ExportMetric(rec MetricRecord) error
}

// EventExporter receives a copy of each captured event.
type EventExporter interface {
	ExportEvent(rec EventRecord) error
}

// SpanExporter receives a copy of each completed span.
type SpanExporter interface {
	ExportSpan(rec SpanRecord) error
}

// snapshotExporters copies the exporter list under the lock so notification
// can run outside the critical path.
func (c *Client) snapshotExporters() []Exporter {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.exporters) == 0 {
		return nil
	}
	out := make([]Exporter, len(c.exporters))
	copy(out, c.exporters)
	return out
}

// notifyMetric fans a metric out to every exporter that accepts metrics.
func (c *Client) notifyMetric(rec MetricRecord) {
	for _, exp := range c.snapshotExporters() {
		e, ok := exp.(MetricExporter)
		if !ok {
			continue
		}
		c.guardExport(exp, "ExportMetric", func() error { return e.ExportMetric(rec) })
	}
}

func (c *Client) notifyEvent(rec EventRecord) {
	for _, exp := range c.snapshotExporters() {
		e, ok := exp.(EventExporter)
		if !ok {
			continue
		}
		c.guardExport(exp, "ExportEvent", func() error { return e.ExportEvent(rec) })
	}
}

func (c *Client) notifySpan(rec SpanRecord) {
	for _, exp := range c.snapshotExporters() {
		e, ok := exp.(SpanExporter)
		if !ok {
			continue
		}
		c.guardExport(exp, "ExportSpan", func() error { return e.ExportSpan(rec) })
	}
}

// guardExport runs one exporter call with full fault isolation. A returned
// error or a panic is logged with the exporter identity and hook name and
// never reaches the caller or the other exporters. Error logging is
// rate-limited so a dead backend cannot flood the logs.
func (c *Client) guardExport(exp Exporter, hook string, call func() error) {
	defer func() {
		if r := recover(); r != nil {
			c.logExportFailure(exp, hook, fmt.Sprintf("panic: %v", r))
		}
	}()
	if err := call(); err != nil {
		c.logExportFailure(exp, hook, err.Error())
	}
}

func (c *Client) logExportFailure(exp Exporter, hook, reason string) {
	if c.logger == nil || !c.errorLimiter.Allow() {
		return
	}
	c.logger.Error("Exporter call failed", map[string]interface{}{
		"exporter": fmt.Sprintf("%T", exp),
		"hook":     hook,
		"error":    reason,
	})
}
