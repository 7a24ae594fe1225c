package service

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/saiset-co/catalog-service/types"
)

const (
	jobCacheCleanup   = "cache_cleanup"
	jobRateLimitSweep = "ratelimit_sweep"
	jobCatalogWarmup  = "catalog_warmup"
)

func (c *components) jobs() map[string]types.JobFunc {
	return map[string]types.JobFunc{
		jobCacheCleanup: func(ctx context.Context) error {
			removed := c.cache.Cleanup()
			c.logger.Debug("Cache cleanup", zap.Int("removed", removed))
			return nil
		},
		jobRateLimitSweep: func(ctx context.Context) error {
			removed := c.limiters.SweepAll()
			c.logger.Debug("Rate limit sweep", zap.Int("removed", removed))
			return nil
		},
		jobCatalogWarmup: func(ctx context.Context) error {
			return c.products.Warmup(ctx)
		},
	}
}

// registerJobs schedules every known job that has a spec in the config.
// Unknown names are reported and skipped.
func (c *components) registerJobs(specs map[string]string) error {
	known := c.jobs()

	names := make([]string, 0, len(specs))
	for name := range specs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		job, ok := known[name]
		if !ok {
			c.logger.Warn("Unknown cron job in config", zap.String("job_name", name))
			continue
		}
		if err := c.cron.Add(name, specs[name], job); err != nil {
			return err
		}
	}

	return nil
}

// sweepsLimiters reports whether cron owns the limiter sweep, in which case
// the limiters do not run their own tickers.
func (c *components) sweepsLimiters() bool {
	if c.cron == nil {
		return false
	}
	for _, info := range c.cron.Jobs() {
		if info.Name == jobRateLimitSweep {
			return true
		}
	}
	return false
}
