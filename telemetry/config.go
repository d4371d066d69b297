package telemetry

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config configures the collector and its default forwarding exporter.
type Config struct {
	// ServiceName identifies this process in forwarded telemetry.
	ServiceName string `yaml:"service_name"`

	// Forwarding enables the default OTLP forwarding exporter at bootstrap.
	// When the downstream collector is unavailable, bootstrap fails soft
	// and the client runs with zero exporters.
	Forwarding bool `yaml:"forwarding"`

	// Endpoint is the OTLP/HTTP endpoint of the downstream collector.
	Endpoint string `yaml:"endpoint"`

	// MaxRecords bounds each in-memory table (metrics, events, completed
	// spans). Once the cap is reached the oldest record is dropped. Zero
	// means unbounded, which is acceptable for a short-lived buffer drained
	// by a summary tool but should be set for long-running services.
	MaxRecords int `yaml:"max_records"`
}

// DefaultConfig returns the configuration used when nothing is specified:
// unbounded buffering, no forwarding. Environment variables override the
// endpoint and service name (TELEMETRYKIT_OTLP_ENDPOINT,
// TELEMETRYKIT_SERVICE_NAME, TELEMETRYKIT_MAX_RECORDS).
func DefaultConfig() Config {
	cfg := Config{
		ServiceName: "telemetrykit",
		Endpoint:    "localhost:4318",
	}
	return cfg.withEnvOverrides()
}

// Profile selects a pre-configured setup.
type Profile string

const (
	ProfileDevelopment Profile = "development"
	ProfileProduction  Profile = "production"
)

// Profiles contains the pre-configured setups. Development buffers without
// bound and does not forward; production forwards and caps each table.
var Profiles = map[Profile]Config{
	ProfileDevelopment: {
		ServiceName: "telemetrykit",
		Forwarding:  false,
		Endpoint:    "localhost:4318",
		MaxRecords:  0,
	},
	ProfileProduction: {
		ServiceName: "telemetrykit",
		Forwarding:  true,
		Endpoint:    "otel-collector:4318",
		MaxRecords:  10000,
	},
}

// UseProfile returns the configuration for a profile, falling back to
// development for unknown names. Environment overrides apply on top.
func UseProfile(profile Profile) Config {
	cfg, ok := Profiles[profile]
	if !ok {
		cfg = Profiles[ProfileDevelopment]
	}
	return cfg.withEnvOverrides()
}

// LoadConfig reads a YAML configuration file and applies environment
// overrides on top of it.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config %s: %w", path, ErrInvalidConfiguration)
	}
	cfg = cfg.withEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks configuration invariants.
func (c Config) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("service_name is required: %w", ErrMissingConfiguration)
	}
	if c.MaxRecords < 0 {
		return fmt.Errorf("max_records must be >= 0: %w", ErrInvalidConfiguration)
	}
	if c.Forwarding && c.Endpoint == "" {
		return fmt.Errorf("endpoint is required when forwarding is enabled: %w", ErrMissingConfiguration)
	}
	return nil
}

func (c Config) withEnvOverrides() Config {
	if v := os.Getenv("TELEMETRYKIT_SERVICE_NAME"); v != "" {
		c.ServiceName = v
	}
	if v := os.Getenv("TELEMETRYKIT_OTLP_ENDPOINT"); v != "" {
		c.Endpoint = v
	}
	if v := os.Getenv("TELEMETRYKIT_MAX_RECORDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.MaxRecords = n
		}
	}
	return c
}
