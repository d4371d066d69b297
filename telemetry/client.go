package telemetry

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Client is the single rendezvous point for all telemetry capture and
// query. Construct one with New at process start and pass it by reference
// to the request pipeline and task integration points.
//
// All mutation is serialized through one mutex. Only O(1) map and slice
// operations happen under the lock - exporter notification and logging
// always run after it is released.
type Client struct {
	mu sync.Mutex

	cfg    Config
	logger *Logger

	metrics []MetricRecord
	events  []EventRecord
	spans   []SpanRecord

	active map[string]*activeSpan
	tasks  map[string]string // task id -> span id

	exporters []Exporter

	// errorLimiter bounds exporter-failure log volume.
	errorLimiter *RateLimiter
}

// New creates a collector with the given configuration. The logger may be
// nil, in which case the collector is silent.
func New(cfg Config, logger *Logger) *Client {
	return &Client{
		cfg:          cfg,
		logger:       logger,
		active:       make(map[string]*activeSpan),
		tasks:        make(map[string]string),
		errorLimiter: NewRateLimiter(1 * time.Second),
	}
}

// RecordMetric captures a named numeric observation. The value must be
// numeric-coercible (bool, any integer or float kind, json.Number); anything
// else is rejected with ErrInvalidMetricValue before any state changes.
func (c *Client) RecordMetric(name string, value interface{}, tags map[string]string) (MetricRecord, error) {
	v, err := coerceValue(value)
	if err != nil {
		return MetricRecord{}, err
	}

	rec := MetricRecord{
		Name:      name,
		Value:     v,
		Tags:      copyTags(tags),
		Timestamp: time.Now(),
	}

	c.mu.Lock()
	c.metrics = appendBounded(c.metrics, rec, c.cfg.MaxRecords)
	c.mu.Unlock()

	c.debugLog("Metric recorded", map[string]interface{}{
		"name":  name,
		"value": v,
	})
	c.notifyMetric(rec)
	return rec, nil
}

// Metrics returns a snapshot of captured metrics, optionally filtered by
// exact name (empty name matches all). The returned slice is a copy and is
// safe to iterate without coordination.
func (c *Client) Metrics(name string) []MetricRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]MetricRecord, 0, len(c.metrics))
	for _, m := range c.metrics {
		if name == "" || m.Name == name {
			out = append(out, m)
		}
	}
	return out
}

// RecordEvent captures a discrete named occurrence. Severity controls log
// verbosity only; the record is stored and exported regardless.
func (c *Client) RecordEvent(name, message string, severity Severity, tags map[string]string) EventRecord {
	if severity == "" {
		severity = SeverityInfo
	}

	rec := EventRecord{
		Name:      name,
		Message:   message,
		Severity:  severity,
		Tags:      copyTags(tags),
		Timestamp: time.Now(),
	}

	c.mu.Lock()
	c.events = appendBounded(c.events, rec, c.cfg.MaxRecords)
	c.mu.Unlock()

	c.logEvent(rec)
	c.notifyEvent(rec)
	return rec
}

// Events returns a snapshot of captured events, optionally filtered by name.
func (c *Client) Events(name string) []EventRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]EventRecord, 0, len(c.events))
	for _, e := range c.events {
		if name == "" || e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

// StartSpan opens a span with status "in_progress" under a freshly generated
// unique id and returns the id.
func (c *Client) StartSpan(name string, tags map[string]string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.startSpanLocked(name, tags)
}

func (c *Client) startSpanLocked(name string, tags map[string]string) string {
	id := uuid.NewString()
	c.active[id] = &activeSpan{
		id:      id,
		name:    name,
		started: time.Now(),
		tags:    copyTags(tags),
		status:  StatusInProgress,
	}
	return id
}

// AddSpanTag attaches a tag to an in-flight span. The value is normalized to
// a string. Unknown span ids are a silent no-op.
func (c *Client) AddSpanTag(spanID, key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.active[spanID]; ok {
		s.tags[key] = stringify(value)
	}
}

// SetSpanStatus updates the status of an in-flight span. Unknown span ids
// are a silent no-op.
func (c *Client) SetSpanStatus(spanID, status string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.active[spanID]; ok {
		s.status = status
	}
}

// setSpanError marks an in-flight span as failed and records the error text.
func (c *Client) setSpanError(spanID, errText string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.active[spanID]; ok {
		s.status = StatusError
		s.errText = errText
	}
}

// SpanStatus reports the status of an in-flight span. The second return is
// false when the span is unknown (never started, or already completed).
func (c *Client) SpanStatus(spanID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.active[spanID]
	if !ok {
		return "", false
	}
	return s.status, true
}

// CompleteSpan finishes an in-flight span: duration comes from the monotonic
// clock, the end timestamp from the wall clock. Completion is idempotent - a
// second call for the same id returns (zero, false) without error.
//
// status overrides the span's current status when non-empty. A span still in
// "in_progress" completes as "ok".
func (c *Client) CompleteSpan(spanID, status, errText string) (SpanRecord, bool) {
	c.mu.Lock()
	rec, ok := c.completeSpanLocked(spanID, status, errText)
	c.mu.Unlock()
	if !ok {
		return SpanRecord{}, false
	}

	c.debugLog("Span completed", map[string]interface{}{
		"span_id":     rec.SpanID,
		"name":        rec.Name,
		"status":      rec.Status,
		"duration_ms": rec.DurationMillis,
	})
	c.notifySpan(rec)
	return rec, true
}

func (c *Client) completeSpanLocked(spanID, status, errText string) (SpanRecord, bool) {
	s, ok := c.active[spanID]
	if !ok {
		return SpanRecord{}, false
	}
	delete(c.active, spanID)

	end := time.Now()
	duration := end.Sub(s.started)

	if status == "" {
		status = s.status
	}
	if status == StatusInProgress {
		status = StatusOK
	}
	if errText == "" {
		errText = s.errText
	}

	rec := SpanRecord{
		SpanID:         s.id,
		Name:           s.name,
		Status:         status,
		DurationMillis: float64(duration) / float64(time.Millisecond),
		StartTime:      s.started,
		EndTime:        end,
		Tags:           s.tags,
		Error:          errText,
	}
	c.spans = appendBounded(c.spans, rec, c.cfg.MaxRecords)
	return rec, true
}

// CompletedSpans returns a snapshot of completed spans, optionally filtered
// by name.
func (c *Client) CompletedSpans(name string) []SpanRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]SpanRecord, 0, len(c.spans))
	for _, s := range c.spans {
		if name == "" || s.Name == name {
			out = append(out, s)
		}
	}
	return out
}

// Reset clears metrics, events, completed spans, in-flight spans, and task
// mappings. Registered exporters survive a reset.
func (c *Client) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics = nil
	c.events = nil
	c.spans = nil
	c.active = make(map[string]*activeSpan)
	c.tasks = make(map[string]string)
}

// RegisterExporter appends an exporter. Registration is identity-based
// idempotent: registering the same instance twice results in a single
// registration.
func (c *Client) RegisterExporter(exp Exporter) {
	if exp == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, existing := range c.exporters {
		if existing == exp {
			return
		}
	}
	c.exporters = append(c.exporters, exp)
}

// ClearExporters empties the exporter list.
func (c *Client) ClearExporters() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.exporters = nil
}

// appendBounded appends rec, dropping the oldest entry once the configured
// cap is reached. max <= 0 means unbounded.
func appendBounded[T any](list []T, rec T, max int) []T {
	if max > 0 && len(list) >= max {
		n := copy(list, list[len(list)-max+1:])
		list = list[:n]
	}
	return append(list, rec)
}

func (c *Client) debugLog(msg string, fields map[string]interface{}) {
	if c.logger != nil {
		c.logger.Debug(msg, fields)
	}
}

// logEvent mirrors an event into the log at a level matching its severity.
func (c *Client) logEvent(rec EventRecord) {
	if c.logger == nil {
		return
	}
	fields := map[string]interface{}{
		"event":    rec.Name,
		"severity": string(rec.Severity),
	}
	switch rec.Severity {
	case SeverityWarning:
		c.logger.Warn(rec.Message, fields)
	case SeverityError, SeverityCritical:
		c.logger.Error(rec.Message, fields)
	default:
		c.logger.Debug(rec.Message, fields)
	}
}
