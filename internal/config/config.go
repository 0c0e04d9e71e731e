// Package config loads service configuration from the environment.
package config

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/windforecast/windforecast/internal/database"
)

// Config is the configuration shared by the api and worker binaries.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"development" validate:"required,oneof=development test staging production"`
	Port        string `envconfig:"APP_PORT" default:"8080" validate:"required,numeric"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=trace debug info warn error"`

	Database  database.Config
	AEMET     AEMETConfig
	Ingest    IngestConfig
	Schedule  ScheduleConfig
	PubSub    PubSubConfig
	MQTT      MQTTConfig
	Auth      AuthConfig
	Telemetry TelemetryConfig
	RateLimit RateLimitConfig
}

// AEMETConfig configures the upstream client.
type AEMETConfig struct {
	BaseURL          string        `envconfig:"AEMET_BASE_URL" default:"https://opendata.aemet.es/opendata/api/prediccion/especifica/municipio" validate:"required,url"`
	Timeout          time.Duration `envconfig:"AEMET_TIMEOUT" default:"30s" validate:"gt=0"`
	MaxRetries       int           `envconfig:"AEMET_MAX_RETRIES" default:"2" validate:"min=0,max=10"`
	RateLimitWait    time.Duration `envconfig:"AEMET_RATE_LIMIT_WAIT" default:"5m" validate:"gte=0"`
	NetworkErrorWait time.Duration `envconfig:"AEMET_NETWORK_ERROR_WAIT" default:"5s" validate:"gte=0"`
	HourlyLimit      int           `envconfig:"AEMET_HOURLY_LIMIT" default:"72" validate:"min=1,max=168"`
	Timezone         string        `envconfig:"AEMET_TIMEZONE" default:"Europe/Madrid" validate:"required,timezone"`
}

// Location returns the zone AEMET hour labels are interpreted in.
func (c AEMETConfig) Location() *time.Location {
	return mustLocation(c.Timezone)
}

// IngestConfig configures ingestion runs.
type IngestConfig struct {
	Cooldown   time.Duration `envconfig:"INGEST_COOLDOWN" default:"61s" validate:"gte=0"`
	RunTimeout time.Duration `envconfig:"INGEST_RUN_TIMEOUT" default:"9m" validate:"gt=0"`
}

// ScheduleConfig configures the worker's cron trigger.
type ScheduleConfig struct {
	Enabled  bool   `envconfig:"SCHEDULE_ENABLED" default:"true"`
	Cron     string `envconfig:"SCHEDULE_CRON" default:"0 */6 * * *" validate:"required_if=Enabled true"`
	Timezone string `envconfig:"SCHEDULE_TIMEZONE" default:"Europe/Madrid" validate:"required,timezone"`
}

// Location returns the schedule's time zone.
func (c ScheduleConfig) Location() *time.Location {
	return mustLocation(c.Timezone)
}

// PubSubConfig configures the Pub/Sub trigger. Empty ProjectID disables it.
type PubSubConfig struct {
	ProjectID    string `envconfig:"PUBSUB_PROJECT_ID"`
	Subscription string `envconfig:"PUBSUB_SUBSCRIPTION" validate:"required_with=ProjectID"`
}

// Enabled reports whether a subscription is configured.
func (c PubSubConfig) Enabled() bool {
	return c.ProjectID != "" && c.Subscription != ""
}

// MQTTConfig configures change notifications. Empty BrokerURL disables them.
type MQTTConfig struct {
	BrokerURL   string `envconfig:"MQTT_BROKER_URL" validate:"omitempty,url"`
	ClientID    string `envconfig:"MQTT_CLIENT_ID" default:"windforecast-worker"`
	Username    string `envconfig:"MQTT_USERNAME"`
	Password    string `envconfig:"MQTT_PASSWORD"`
	TopicPrefix string `envconfig:"MQTT_TOPIC_PREFIX" default:"windforecast/stations" validate:"required"`
}

// Enabled reports whether a broker is configured.
func (c MQTTConfig) Enabled() bool {
	return c.BrokerURL != ""
}

// AuthConfig configures operator authentication for the refresh endpoint.
// An empty secret leaves the endpoint open.
type AuthConfig struct {
	OperatorJWTSecret string `envconfig:"OPERATOR_JWT_SECRET" validate:"omitempty,min=32"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled      bool    `envconfig:"OTEL_ENABLED" default:"false"`
	OTLPEndpoint string  `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT" default:"localhost:4317"`
	SampleRatio  float64 `envconfig:"OTEL_TRACES_SAMPLE_RATIO" default:"1" validate:"gte=0,lte=1"`
	Insecure     bool    `envconfig:"OTEL_EXPORTER_OTLP_INSECURE" default:"true"`

	// MetricInterval is how often metrics are pushed. Ingestion runs are
	// minutes apart, so the default is coarser than the SDK's.
	MetricInterval time.Duration `envconfig:"OTEL_METRIC_EXPORT_INTERVAL" default:"30s" validate:"gte=1s"`
}

// RateLimitConfig configures per-IP limits on the refresh endpoint.
type RateLimitConfig struct {
	RequestsPerMinute int `envconfig:"RATE_LIMIT_RPM" default:"10" validate:"min=1"`
}

// Level returns the zerolog level for LogLevel, defaulting to info.
func (c *Config) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || c.LogLevel == "" {
		return zerolog.InfoLevel
	}
	return level
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func mustLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}
