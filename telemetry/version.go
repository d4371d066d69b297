package telemetry

// Version information for the telemetry collector.
const (
	// Version is the current collector version
	Version = "development"

	// APIVersion is the current API version
	APIVersion = "v1"
)
