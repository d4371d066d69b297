package telemetry

import (
	"encoding/json"
	"fmt"
	"time"
)

// Severity classifies an event. Severity only affects log verbosity when the
// event is recorded; it does not change how the event is stored or exported.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Span status values. Status is an open string; these are the conventional
// values produced by the collector itself.
const (
	StatusInProgress = "in_progress"
	StatusOK         = "ok"
	StatusError      = "error"
)

// MetricRecord is a named numeric observation. Immutable once captured.
type MetricRecord struct {
	Name      string            `json:"name"`
	Value     float64           `json:"value"`
	Tags      map[string]string `json:"tags"`
	Timestamp time.Time         `json:"timestamp"`
}

// EventRecord is a discrete named occurrence with a message and severity.
// Immutable once captured.
type EventRecord struct {
	Name      string            `json:"name"`
	Message   string            `json:"message"`
	Severity  Severity          `json:"severity"`
	Tags      map[string]string `json:"tags"`
	Timestamp time.Time         `json:"timestamp"`
}

// SpanRecord is a completed span. Immutable once captured; only the internal
// active span is mutable, and exactly one active span transitions to exactly
// one SpanRecord.
type SpanRecord struct {
	SpanID         string            `json:"span_id"`
	Name           string            `json:"name"`
	Status         string            `json:"status"`
	DurationMillis float64           `json:"duration_ms"`
	StartTime      time.Time         `json:"start_time"`
	EndTime        time.Time         `json:"end_time"`
	Tags           map[string]string `json:"tags"`
	Error          string            `json:"error,omitempty"`
}

// activeSpan is the internal bookkeeping entry for a span that has started
// but not yet completed. It is owned by the Client and only touched under
// the Client's lock.
type activeSpan struct {
	id   string
	name string
	// started carries Go's monotonic clock reading and is the source of
	// truth for duration. StartTime on the resulting SpanRecord is the
	// wall-clock part of the same instant.
	started time.Time
	tags    map[string]string
	status  string
	errText string
}

// coerceValue converts a metric value to float64. Booleans map to 1/0, all
// integer and float kinds convert directly, and json.Number carries
// fixed-point decimals. Anything else is rejected with ErrInvalidMetricValue.
func coerceValue(value interface{}) (float64, error) {
	switch v := value.(type) {
	case bool:
		if v {
			return 1.0, nil
		}
		return 0.0, nil
	case int:
		return float64(v), nil
	case int8:
		return float64(v), nil
	case int16:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint:
		return float64(v), nil
	case uint8:
		return float64(v), nil
	case uint16:
		return float64(v), nil
	case uint32:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidMetricValue, v.String())
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%w: unsupported type %T", ErrInvalidMetricValue, value)
	}
}

// copyTags normalizes a tag map into an owned string-to-string copy so that
// records stay immutable even if the caller mutates its map afterwards.
func copyTags(tags map[string]string) map[string]string {
	out := make(map[string]string, len(tags))
	for k, v := range tags {
		out[k] = v
	}
	return out
}

// stringify renders an arbitrary tag value as a string.
func stringify(value interface{}) string {
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", value)
}
