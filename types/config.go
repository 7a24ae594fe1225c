package types

import (
	"time"
)

type ConfigManager interface {
	Load() error
	GetConfig() *ServiceConfig
}

type ServiceConfig struct {
	Name           string                `yaml:"name" json:"name" validate:"required"`
	Version        string                `yaml:"version" json:"version" validate:"required"`
	Environment    string                `yaml:"environment" json:"environment" validate:"omitempty,oneof=development production test"`
	Server         *ServerConfig         `yaml:"server" json:"server" validate:"required"`
	Logger         *LoggerConfig         `yaml:"logger" json:"logger" validate:"required"`
	Metrics        *MetricsConfig        `yaml:"metrics" json:"metrics"`
	Health         *HealthConfig         `yaml:"health" json:"health"`
	Cron           *CronConfig           `yaml:"cron" json:"cron"`
	Cache          *CacheConfig          `yaml:"cache" json:"cache" validate:"required"`
	PersistedCache *PersistedCacheConfig `yaml:"persisted_cache" json:"persisted_cache"`
	RateLimit      *RateLimitConfig      `yaml:"rate_limit" json:"rate_limit" validate:"required"`
	Database       *DatabaseConfig       `yaml:"database" json:"database" validate:"required"`
	Notify         *NotifyConfig         `yaml:"notify" json:"notify"`
	Admin          *AdminConfig          `yaml:"admin" json:"admin"`
	Middlewares    *MiddlewaresConfig    `yaml:"middlewares" json:"middlewares"`
}

type ServerConfig struct {
	HTTP *HTTPConfig `yaml:"http" json:"http" validate:"required"`
	TLS  *TLSConfig  `yaml:"tls" json:"tls"`
}

type TLSConfig struct {
	Enabled       bool     `yaml:"enabled" json:"enabled"`
	CertFile      string   `yaml:"cert_file" json:"cert_file"`
	KeyFile       string   `yaml:"key_file" json:"key_file"`
	AutoCert      bool     `yaml:"auto_cert" json:"auto_cert"`
	Domains       []string `yaml:"domains" json:"domains"`
	Email         string   `yaml:"email" json:"email" validate:"omitempty,email"`
	CacheDir      string   `yaml:"cache_dir" json:"cache_dir"`
	ACMEDirectory string   `yaml:"acme_directory" json:"acme_directory" validate:"omitempty,url"`
}

type HTTPConfig struct {
	Host            string `yaml:"host" json:"host"`
	Port            int    `yaml:"port" json:"port" validate:"min=1,max=65535"`
	ReadTimeout     int    `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout    int    `yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout     int    `yaml:"idle_timeout" json:"idle_timeout"`
	ShutdownTimeout int    `yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

type LoggerConfig struct {
	Level  string `yaml:"level" json:"level" validate:"required"`
	Format string `yaml:"format" json:"format" validate:"omitempty,oneof=console json"`
	Output string `yaml:"output" json:"output" validate:"omitempty,oneof=stdout stderr file"`
	File   string `yaml:"file" json:"file"`
}

type CacheConfig struct {
	Enabled         bool          `yaml:"enabled" json:"enabled"`
	Type            string        `yaml:"type" json:"type" validate:"required_if=Enabled true"`
	Config          interface{}   `yaml:"config" json:"config"`
	DefaultTTL      time.Duration `yaml:"default_ttl" json:"default_ttl" validate:"min=0"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" json:"cleanup_interval" validate:"min=0"`
}

type PersistedCacheConfig struct {
	Enabled bool         `yaml:"enabled" json:"enabled"`
	Prefix  string       `yaml:"prefix" json:"prefix"`
	Store   *StoreConfig `yaml:"store" json:"store"`
}

type StoreConfig struct {
	Type   string      `yaml:"type" json:"type" validate:"omitempty,oneof=none memory sqlite redis"`
	Config interface{} `yaml:"config" json:"config"`
}

type RateLimitConfig struct {
	Enabled        bool                     `yaml:"enabled" json:"enabled"`
	SweepInterval  time.Duration            `yaml:"sweep_interval" json:"sweep_interval" validate:"min=0"`
	TrustedProxies []string                 `yaml:"trusted_proxies" json:"trusted_proxies" validate:"dive,cidr|ip"`
	Limiters       map[string]LimiterConfig `yaml:"limiters" json:"limiters" validate:"dive"`
}

type LimiterConfig struct {
	Window      time.Duration `yaml:"window" json:"window" validate:"gt=0"`
	MaxRequests int           `yaml:"max_requests" json:"max_requests" validate:"min=1"`
}

type DatabaseConfig struct {
	Type string `yaml:"type" json:"type" validate:"required,oneof=clover"`
	Path string `yaml:"path" json:"path" validate:"required"`
	Seed bool   `yaml:"seed" json:"seed"`
}

type NotifyConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port" validate:"omitempty,min=1,max=65535"`
	User     string `yaml:"user" json:"user"`
	Password string `yaml:"password" json:"password"`
	From     string `yaml:"from" json:"from" validate:"omitempty,email"`
	AdminTo  string `yaml:"admin_to" json:"admin_to" validate:"omitempty,email"`
	SiteName string `yaml:"site_name" json:"site_name"`

	Webhooks       []WebhookConfig `yaml:"webhooks" json:"webhooks" validate:"dive"`
	WebhookTimeout time.Duration   `yaml:"webhook_timeout" json:"webhook_timeout" validate:"min=0"`
	WebhookRetries int             `yaml:"webhook_retries" json:"webhook_retries" validate:"min=0,max=5"`
	CircuitBreaker *BreakerConfig  `yaml:"circuit_breaker" json:"circuit_breaker"`
}

type WebhookConfig struct {
	URL     string            `yaml:"url" json:"url" validate:"required,url"`
	Secret  string            `yaml:"secret" json:"secret"`
	Headers map[string]string `yaml:"headers" json:"headers"`
}

type BreakerConfig struct {
	Enabled          bool          `yaml:"enabled" json:"enabled"`
	FailureThreshold int           `yaml:"failure_threshold" json:"failure_threshold" validate:"min=0"`
	RecoveryTimeout  time.Duration `yaml:"recovery_timeout" json:"recovery_timeout" validate:"min=0"`
	HalfOpenRequests int           `yaml:"half_open_requests" json:"half_open_requests" validate:"min=0"`
}

type AdminConfig struct {
	TokenHash string `yaml:"token_hash" json:"token_hash"`
}

type CronConfig struct {
	Enabled  bool              `yaml:"enabled" json:"enabled"`
	Timezone string            `yaml:"timezone" json:"timezone" validate:"required_if=Enabled true"`
	Jobs     map[string]string `yaml:"jobs" json:"jobs"`
}

type MetricsConfig struct {
	Enabled bool              `yaml:"enabled" json:"enabled"`
	Type    string            `yaml:"type" json:"type" validate:"required_if=Enabled true"`
	Path    string            `yaml:"path" json:"path"`
	Config  interface{}       `yaml:"config" json:"config"`
	Labels  map[string]string `yaml:"labels" json:"labels"`
}

type HealthConfig struct {
	Enabled bool          `yaml:"enabled" json:"enabled"`
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

type MiddlewaresConfig struct {
	Enabled     bool                  `yaml:"enabled" json:"enabled"`
	Recovery    *MiddlewareItemConfig `yaml:"recovery" json:"recovery"`
	RequestID   *MiddlewareItemConfig `yaml:"request_id" json:"request_id"`
	Logging     *MiddlewareItemConfig `yaml:"logging" json:"logging"`
	Security    *MiddlewareItemConfig `yaml:"security" json:"security"`
	CORS        *MiddlewareItemConfig `yaml:"cors" json:"cors"`
	BodyLimit   *MiddlewareItemConfig `yaml:"body_limit" json:"body_limit"`
	RateLimit   *MiddlewareItemConfig `yaml:"rate_limit" json:"rate_limit"`
	Compression *MiddlewareItemConfig `yaml:"compression" json:"compression"`
	Auth        *MiddlewareItemConfig `yaml:"auth" json:"auth"`
	Cache       *MiddlewareItemConfig `yaml:"cache" json:"cache"`
}

type MiddlewareItemConfig struct {
	Enabled bool                   `yaml:"enabled" json:"enabled"`
	Weight  int                    `yaml:"weight" json:"weight" validate:"min=0"`
	Params  map[string]interface{} `yaml:"params" json:"params"`
}
