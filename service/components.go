package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/saiset-co/catalog-service/api"
	"github.com/saiset-co/catalog-service/cache"
	"github.com/saiset-co/catalog-service/catalog"
	"github.com/saiset-co/catalog-service/config"
	"github.com/saiset-co/catalog-service/cron"
	"github.com/saiset-co/catalog-service/database"
	"github.com/saiset-co/catalog-service/health"
	"github.com/saiset-co/catalog-service/kvstore"
	"github.com/saiset-co/catalog-service/logger"
	"github.com/saiset-co/catalog-service/metrics"
	"github.com/saiset-co/catalog-service/middleware"
	"github.com/saiset-co/catalog-service/notify"
	"github.com/saiset-co/catalog-service/ratelimit"
	"github.com/saiset-co/catalog-service/server"
	"github.com/saiset-co/catalog-service/types"
)

// components holds every constructed dependency. Optional ones are nil when
// disabled in the configuration.
type components struct {
	config      *config.ConfigurationManager
	logger      *logger.Manager
	metrics     types.MetricsManager
	prometheus  *metrics.Manager
	database    types.DatabaseManager
	cache       types.CacheManager
	store       types.KeyValueStoreManager
	persisted   *cache.PersistedCache
	limiters    *ratelimit.Manager
	products    *catalog.ProductService
	inquiries   *catalog.InquiryService
	middlewares *middleware.Manager
	router      *server.Router
	health      types.HealthManager
	cron        types.CronManager
	http        *server.FastHTTPServer
}

func buildComponents(ctx context.Context, configManager *config.ConfigurationManager) (*components, error) {
	c := &components{config: configManager}
	_config := configManager.GetConfig()

	loggerManager, err := logger.NewManager(configManager)
	if err != nil {
		return nil, types.WrapError(err, "failed to register logger")
	}
	c.logger = loggerManager

	c.metrics = metrics.NewNoop()
	if _config.Metrics != nil && _config.Metrics.Enabled {
		c.prometheus, err = metrics.NewManager(ctx, configManager, loggerManager)
		if err != nil {
			return nil, types.WrapError(err, "failed to register metrics manager")
		}
		c.metrics = c.prometheus
	}

	c.database, err = database.NewManager(ctx, configManager, loggerManager, c.metrics)
	if err != nil {
		return nil, types.WrapError(err, "failed to register database")
	}

	c.cache, err = cache.NewCacheManager(ctx, configManager, loggerManager, c.metrics)
	switch {
	case types.IsError(err, types.ErrCacheIsDisabled):
		loggerManager.Warn("Cache is disabled, every read goes to the database")
		c.cache = cache.NewNoopCache()
	case err != nil:
		return nil, types.WrapError(err, "failed to register cache manager")
	}

	c.store, err = kvstore.NewStore(ctx, configManager, loggerManager)
	if err != nil {
		return nil, types.WrapError(err, "failed to register key-value store")
	}

	var persistedOpts []cache.PersistedOption
	if pc := _config.PersistedCache; pc != nil && pc.Prefix != "" {
		persistedOpts = append(persistedOpts, cache.WithPrefix(pc.Prefix))
	}
	c.persisted = cache.NewPersistedCache(c.store, loggerManager, persistedOpts...)

	c.limiters, err = ratelimit.NewManager(ctx, configManager, loggerManager, c.metrics)
	if err != nil {
		return nil, types.WrapError(err, "failed to register rate limiters")
	}

	validator := catalog.NewValidator()
	mailer := notify.NewMailer(_config.Notify, loggerManager)
	if !mailer.Enabled() {
		loggerManager.Info("Email notifications disabled")
	}
	webhooks := notify.NewWebhooks(_config.Notify, loggerManager)
	notifier := notify.NewChain(mailer, webhooks)

	c.products = catalog.NewProductService(c.database, c.cache, c.persisted, validator, loggerManager)
	c.inquiries = catalog.NewInquiryService(c.database, c.cache, notifier, validator, loggerManager)

	c.middlewares, err = middleware.NewManager(ctx, configManager, loggerManager, c.metrics, c.limiters)
	if err != nil {
		return nil, types.WrapError(err, "failed to register middleware manager")
	}
	if err := c.middlewares.RegisterMiddlewares(); err != nil {
		return nil, types.WrapError(err, "failed to register middlewares")
	}

	c.router = server.NewRouter(c.middlewares, loggerManager)

	handlers, err := api.New(c.products, c.inquiries, c.cache, c.limiters, loggerManager)
	if err != nil {
		return nil, types.WrapError(err, "failed to register api handlers")
	}
	handlers.Register(c.router)

	if _config.Health != nil && _config.Health.Enabled {
		c.health, err = health.NewManager(ctx, configManager, loggerManager, c.router)
		if err != nil {
			return nil, types.WrapError(err, "failed to register health manager")
		}
		c.registerCheckers()
	}

	if c.prometheus != nil {
		c.prometheus.RegisterRoutes(c.router)
	}

	if _config.Cron != nil && _config.Cron.Enabled {
		c.cron, err = cron.NewManager(ctx, configManager, loggerManager, c.metrics)
		if err != nil {
			return nil, types.WrapError(err, "failed to register cron manager")
		}
		if err := c.registerJobs(_config.Cron.Jobs); err != nil {
			return nil, types.WrapError(err, "failed to register cron jobs")
		}
	}

	c.http, err = server.NewHTTPServer(ctx, configManager, loggerManager, c.router)
	if err != nil {
		return nil, types.WrapError(err, "failed to register HTTP server")
	}

	loggerManager.Info("Components registered",
		zap.Strings("middlewares", c.middlewares.Names()),
		zap.Int("routes", len(c.router.GetAllRoutes())))

	return c, nil
}

type namedManager struct {
	name    string
	manager types.LifecycleManager
}

// backgroundManagers are started in parallel once the database is up.
func (c *components) backgroundManagers() []namedManager {
	managers := []namedManager{{"cache manager", c.cache}}

	if c.prometheus != nil {
		managers = append(managers, namedManager{"metrics manager", c.prometheus})
	}
	if c.store != nil {
		managers = append(managers, namedManager{"key-value store", c.store})
	}
	if !c.sweepsLimiters() {
		managers = append(managers, namedManager{"rate limiters", c.limiters})
	}

	return managers
}
