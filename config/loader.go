package config

import (
	"context"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/saiset-co/catalog-service/types"
)

type Loader struct {
	validator *validator.Validate
}

func NewLoader() *Loader {
	return &Loader{
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// LoadFromFile reads configPath, expands ${VAR} references from the
// environment, applies it over Defaults and validates the result.
func (l *Loader) LoadFromFile(ctx context.Context, configPath string) (*types.ServiceConfig, error) {
	if configPath == "" {
		return nil, types.ErrConfigNotFound
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, types.Errorf(types.ErrConfigInvalidPath, "file not found: %s", configPath)
	}

	data, err := l.ReadFileWithTimeout(ctx, configPath)
	if err != nil {
		return nil, types.WrapError(err, "failed to read config file")
	}

	return l.Parse(data)
}

func (l *Loader) Parse(data []byte) (*types.ServiceConfig, error) {
	config := l.Defaults()

	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), config); err != nil {
		return nil, types.Errorf(types.ErrConfigParseFailed, "%v", err)
	}

	if err := l.validator.Struct(config); err != nil {
		return nil, types.Errorf(types.ErrConfigValidateFailed, "%v", err)
	}

	return config, nil
}

func (l *Loader) ReadFileWithTimeout(ctx context.Context, filepath string) ([]byte, error) {
	type result struct {
		data []byte
		err  error
	}

	resultChan := make(chan result, 1)

	go func() {
		data, err := os.ReadFile(filepath)
		resultChan <- result{data: data, err: err}
	}()

	select {
	case res := <-resultChan:
		return res.data, res.err
	case <-ctx.Done():
		return nil, types.WrapError(ctx.Err(), "file read timeout")
	}
}

func (l *Loader) Defaults() *types.ServiceConfig {
	return &types.ServiceConfig{
		Name:        "catalog-service",
		Version:     "1.0.0",
		Environment: "development",
		Server: &types.ServerConfig{
			HTTP: &types.HTTPConfig{
				Host:            "localhost",
				Port:            8080,
				ReadTimeout:     30,
				WriteTimeout:    30,
				IdleTimeout:     120,
				ShutdownTimeout: 10,
			},
		},
		Logger: &types.LoggerConfig{
			Level:  "info",
			Format: "console",
			Output: "stdout",
		},
		Metrics: &types.MetricsConfig{
			Enabled: false,
			Type:    "prometheus",
			Path:    "/metrics",
		},
		Health: &types.HealthConfig{
			Enabled: true,
			Timeout: 5 * time.Second,
		},
		Cron: &types.CronConfig{
			Enabled:  true,
			Timezone: "UTC",
			Jobs: map[string]string{
				"cache_cleanup":   "0 */10 * * * *",
				"ratelimit_sweep": "0 */5 * * * *",
			},
		},
		Cache: &types.CacheConfig{
			Enabled:         true,
			Type:            "memory",
			DefaultTTL:      5 * time.Minute,
			CleanupInterval: 10 * time.Minute,
		},
		PersistedCache: &types.PersistedCacheConfig{
			Enabled: false,
			Prefix:  "catalog:",
			Store: &types.StoreConfig{
				Type: "none",
			},
		},
		RateLimit: &types.RateLimitConfig{
			Enabled:       true,
			SweepInterval: 5 * time.Minute,
		},
		Database: &types.DatabaseConfig{
			Type: "clover",
			Path: "./data/catalog",
		},
		Notify: &types.NotifyConfig{
			Enabled:  false,
			Port:     587,
			SiteName: "Catalog",
		},
		Admin: &types.AdminConfig{},
		Middlewares: &types.MiddlewaresConfig{
			Enabled: true,
			Recovery: &types.MiddlewareItemConfig{
				Enabled: true,
				Weight:  1,
				Params: map[string]interface{}{
					"stack_trace": true,
				},
			},
			RequestID: &types.MiddlewareItemConfig{
				Enabled: true,
				Weight:  3,
			},
			Logging: &types.MiddlewareItemConfig{
				Enabled: true,
				Weight:  5,
				Params: map[string]interface{}{
					"log_level":   "info",
					"log_headers": false,
					"log_body":    false,
				},
			},
			Security: &types.MiddlewareItemConfig{
				Enabled: true,
				Weight:  10,
			},
			CORS: &types.MiddlewareItemConfig{
				Enabled: true,
				Weight:  20,
				Params: map[string]interface{}{
					"allowed_origins": []string{"*"},
					"allowed_methods": []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
					"allowed_headers": []string{"Content-Type", "Authorization", "X-Request-ID"},
					"max_age":         86400,
				},
			},
			BodyLimit: &types.MiddlewareItemConfig{
				Enabled: true,
				Weight:  30,
				Params: map[string]interface{}{
					"max_body_size": 1048576,
				},
			},
			RateLimit: &types.MiddlewareItemConfig{
				Enabled: true,
				Weight:  40,
				Params: map[string]interface{}{
					"limiter": "api",
				},
			},
			Compression: &types.MiddlewareItemConfig{
				Enabled: true,
				Weight:  50,
				Params: map[string]interface{}{
					"threshold": 1024,
					"level":     6,
				},
			},
			Auth: &types.MiddlewareItemConfig{
				Enabled: true,
				Weight:  60,
			},
			Cache: &types.MiddlewareItemConfig{
				Enabled: true,
				Weight:  70,
			},
		},
	}
}
