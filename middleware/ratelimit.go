package middleware

import (
	"strconv"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/saiset-co/catalog-service/ratelimit"
	"github.com/saiset-co/catalog-service/types"
	"github.com/saiset-co/catalog-service/utils"
)

const DefaultRateLimiter = "api"

// RateLimitMiddleware applies one named limiter to every request in the
// chain. Endpoints with their own limits call a ratelimit.Guard directly.
type RateLimitMiddleware struct {
	logger          types.Logger
	guard           ratelimit.Guard
	rateLimitConfig *RateLimitConfig
	weight          int
}

type RateLimitConfig struct {
	Limiter string `json:"limiter"`
}

func NewRateLimitMiddleware(config types.ConfigManager, logger types.Logger, limiters *ratelimit.Manager) (*RateLimitMiddleware, error) {
	item := middlewaresConfig(config).RateLimit

	var rateLimitConfig = &RateLimitConfig{
		Limiter: DefaultRateLimiter,
	}

	if params := itemParams(item); params != nil {
		if err := utils.UnmarshalConfig(params, rateLimitConfig); err != nil {
			logger.Error("Failed to unmarshal RateLimit middleware config", zap.Error(err))
		}
	}

	if limiters == nil {
		return nil, types.Errorf(types.ErrLimiterNotFound, "rate limit middleware needs limiter %q", rateLimitConfig.Limiter)
	}

	guard, err := limiters.Guard(rateLimitConfig.Limiter)
	if err != nil {
		return nil, err
	}

	return &RateLimitMiddleware{
		logger:          logger,
		guard:           guard,
		rateLimitConfig: rateLimitConfig,
		weight:          itemWeight(item, 40),
	}, nil
}

func (rl *RateLimitMiddleware) Name() string { return "rate_limit" }
func (rl *RateLimitMiddleware) Weight() int  { return rl.weight }

func (rl *RateLimitMiddleware) Handle(ctx *fasthttp.RequestCtx, next func(*fasthttp.RequestCtx), _ *types.RouteConfig) {
	if ctx.IsOptions() {
		next(ctx)
		return
	}

	result, err := rl.guard(ratelimit.FromRequestCtx(ctx))
	if err != nil {
		rl.logger.Warn("Rate limit exceeded",
			zap.String("limiter", rl.rateLimitConfig.Limiter),
			zap.String("remote_ip", ctx.RemoteIP().String()),
			zap.ByteString("path", ctx.Path()))

		utils.WriteError(ctx, err)
		return
	}

	ctx.Response.Header.Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	ctx.Response.Header.Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	ctx.Response.Header.Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetTime.Unix(), 10))

	next(ctx)
}
