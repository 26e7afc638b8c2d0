// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(...) initializer to build a Config with defaults.
// - Load layers defaults, an optional YAML file, an optional .env file and the environment.
// - External errors are wrapped with this package's sentinel kinds.
package config

import (
	"context"
	"runtime"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogJSON switches logs to JSON lines.
	LogJSON bool `koanf:"log_json"`

	// Addr configures the HTTP listen address, e.g. ":8000".
	Addr string `koanf:"addr"`

	// CORSOrigins lists allowed origins; "*" allows any.
	CORSOrigins []string `koanf:"cors_origins"`

	// RosterPath points at the CSV roster loaded once at startup.
	RosterPath string `koanf:"roster_path"`

	// TemplatePath is the optional certificate background image.
	TemplatePath string `koanf:"template_path"`

	// FontPath is the optional bundled bold TrueType font.
	FontPath string `koanf:"font_path"`

	// OutputDir receives generated certificates.
	OutputDir string `koanf:"output_dir"`

	// StoreURL and StoreKey configure the REST feedback store.
	StoreURL string `koanf:"store_url"`
	StoreKey string `koanf:"store_key"`

	// StoreTimeoutMS bounds a single feedback store request.
	StoreTimeoutMS int `koanf:"store_timeout_ms"`

	// SMTP settings for certificate delivery. Delivery is skipped when
	// host, user or password is empty.
	SMTPHost     string `koanf:"smtp_host"`
	SMTPPort     int    `koanf:"smtp_port"`
	SMTPUser     string `koanf:"smtp_user"`
	SMTPPassword string `koanf:"smtp_password"`
	SMTPFrom     string `koanf:"smtp_from"`

	// DeliveryQueueSize bounds pending background deliveries.
	DeliveryQueueSize int `koanf:"delivery_queue_size"`

	// DeliveryWorkers sets the number of delivery goroutines.
	DeliveryWorkers int `koanf:"delivery_workers"`

	// AdminUsername and AdminPassword gate the admin login endpoint.
	AdminUsername string `koanf:"admin_username"`
	AdminPassword string `koanf:"admin_password"`
	AdminToken    string `koanf:"admin_token"`

	// MetricsEnabled turns Prometheus recording on or off.
	MetricsEnabled bool `koanf:"metrics_enabled"`

	// MetricsNamespace and MetricsSubsystem prefix every metric name.
	MetricsNamespace string `koanf:"metrics_namespace"`
	MetricsSubsystem string `koanf:"metrics_subsystem"`

	// MetricsLabels are constant labels added to every series. From the
	// environment they are written as "k=v,k2=v2".
	MetricsLabels map[string]string `koanf:"metrics_labels"`

	// MetricsBucketsMS overrides the latency histogram buckets, in milliseconds.
	MetricsBucketsMS []float64 `koanf:"metrics_buckets_ms"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		Addr:              ":8000",
		CORSOrigins:       []string{"*"},
		RosterPath:        "data/data.csv",
		TemplatePath:      "templates/certificate_template.png",
		FontPath:          "fonts/Poppins-Bold.ttf",
		OutputDir:         "generated",
		StoreTimeoutMS:    10_000,
		SMTPPort:          587,
		DeliveryQueueSize: 1_000,
		DeliveryWorkers:   runtime.NumCPU(),
		AdminUsername:     "admin",
		AdminPassword:     "admin123",
		AdminToken:        "fake-jwt-token",
		MetricsEnabled:    true,
		MetricsNamespace:  "certify",
		MetricsSubsystem:  "service",
	}
}

// Validate rejects values that would leave the service unusable.
func (c *Config) Validate(_ context.Context) error {
	switch {
	case c.Addr == "":
		return wrapInvalid("addr must not be empty")
	case c.OutputDir == "":
		return wrapInvalid("output_dir must not be empty")
	case c.SMTPPort <= 0:
		return wrapInvalid("smtp_port must be positive")
	case c.DeliveryQueueSize <= 0:
		return wrapInvalid("delivery_queue_size must be positive")
	case c.DeliveryWorkers <= 0:
		return wrapInvalid("delivery_workers must be positive")
	case c.MetricsEnabled && c.MetricsNamespace == "":
		return wrapInvalid("metrics_namespace must not be empty")
	}
	for i, b := range c.MetricsBucketsMS {
		if b <= 0 || (i > 0 && b <= c.MetricsBucketsMS[i-1]) {
			return wrapInvalid("metrics_buckets_ms must be positive and increasing")
		}
	}
	return nil
}

// StoreConfigured reports whether the feedback store can be reached.
func (c *Config) StoreConfigured() bool {
	return c.StoreURL != "" && c.StoreKey != ""
}

// SMTPConfigured reports whether outbound mail credentials are present.
func (c *Config) SMTPConfigured() bool {
	return c.SMTPHost != "" && c.SMTPUser != "" && c.SMTPPassword != ""
}
