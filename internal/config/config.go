// Package config defines the global configuration structure for the mailroom
// service. Configuration is loaded once at process initialization (Lambda cold
// start) and is immutable thereafter. It follows 12-Factor App principles by
// strictly separating code from configuration.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File (Lowest)
//
// Any missing required value or invalid format causes the application to fail
// immediately on startup.
package config

import (
	"time"
)

// Config is the top-level configuration struct for the mailroom service.
// It is populated once during process initialization and never modified.
// Sub-components receive only the specific config subsets they require.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"OTEL_SERVICE_NAME" default:"mailroom"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Domain Configurations
	Server        ServerConfig
	AWS           AWSConfig
	Email         EmailConfig
	Dispatch      DispatchConfig
	Observability ObservabilityConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// ServerConfig holds HTTP server configuration for the admin API.
type ServerConfig struct {
	Port           string        `envconfig:"PORT" default:"8080"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"10s"`
}

// AWSConfig holds AWS resource identifiers and regional configuration.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"eu-west-1"`

	// Resource Identifiers
	TemplateBucket string `envconfig:"TEMPLATE_BUCKET" validate:"required"`
	BlacklistTable string `envconfig:"BLACKLIST_TABLE" default:"Notification.BlackList"`
	EmailTopicARN  string `envconfig:"EMAIL_TOPIC_ARN"`

	// LocalStack Support (Empty in Prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// EmailConfig holds email delivery configuration.
type EmailConfig struct {
	// ConfigSetName is the SES configuration set used for delivery tracking.
	// Optional; if empty, no configuration set is attached to sends.
	ConfigSetName string `envconfig:"SES_CONFIG_SET"`
}

// DispatchConfig holds tuning parameters for the delivery worker.
type DispatchConfig struct {
	// FanOut bounds how many records of a batch are processed concurrently.
	FanOut int `envconfig:"DISPATCH_FAN_OUT" default:"4" validate:"min=1"`
	// LookupConcurrency bounds concurrent blacklist lookups per message.
	LookupConcurrency int `envconfig:"BLACKLIST_LOOKUP_CONCURRENCY" default:"8" validate:"min=1"`
}

// ObservabilityConfig holds telemetry and monitoring settings.
type ObservabilityConfig struct {
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"Mailroom"`
	EnableMetrics   bool   `envconfig:"ENABLE_METRICS" default:"true"`
}

// BuildInfo holds build-time metadata injected via ldflags.
// These values are NOT populated from environment variables.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrMissingEnv indicates a required environment variable was not found.
	ErrMissingEnv ConfigErrorType = "MISSING_ENV"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)

// IsLocal reports whether the service is running in local development mode.
// Local mode swaps AWS-backed dependencies for stubs.
func (c *Config) IsLocal() bool {
	return c.Environment == "local"
}
