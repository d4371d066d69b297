package telemetry

import "errors"

// Standard sentinel errors for comparison using errors.Is().
// These are generic errors that can be wrapped with additional context.
var (
	// ErrInvalidMetricValue is returned by RecordMetric when the value is
	// not numeric-coercible. This is the only error the collector raises
	// synchronously to a caller.
	ErrInvalidMetricValue = errors.New("metric value is not numeric")

	// Configuration errors
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrMissingConfiguration = errors.New("missing required configuration")

	// Network errors
	ErrConnectionFailed = errors.New("connection failed")
)
