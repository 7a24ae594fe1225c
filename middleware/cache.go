package middleware

import (
	"strconv"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/saiset-co/catalog-service/types"
	"github.com/saiset-co/catalog-service/utils"
)

// CacheMiddleware sets HTTP caching headers. Routes built WithCacheControl get
// a public max-age and a body ETag; other reads default to no-cache.
type CacheMiddleware struct {
	logger      types.Logger
	cacheConfig *CacheConfig
	weight      int
}

type CacheConfig struct {
	DefaultNoCache bool `json:"default_no_cache"`
}

func NewCacheMiddleware(config types.ConfigManager, logger types.Logger) *CacheMiddleware {
	item := middlewaresConfig(config).Cache

	var cacheConfig = &CacheConfig{
		DefaultNoCache: true,
	}

	if params := itemParams(item); params != nil {
		if err := utils.UnmarshalConfig(params, cacheConfig); err != nil {
			logger.Error("Failed to unmarshal Cache middleware config", zap.Error(err))
		}
	}

	return &CacheMiddleware{
		logger:      logger,
		cacheConfig: cacheConfig,
		weight:      itemWeight(item, 70),
	}
}

func (c *CacheMiddleware) Name() string { return "cache" }
func (c *CacheMiddleware) Weight() int  { return c.weight }

func (c *CacheMiddleware) Handle(ctx *fasthttp.RequestCtx, next func(*fasthttp.RequestCtx), config *types.RouteConfig) {
	next(ctx)

	if !ctx.IsGet() && !ctx.IsHead() {
		return
	}

	if len(ctx.Response.Header.Peek(fasthttp.HeaderCacheControl)) > 0 {
		return
	}

	if ctx.Response.StatusCode() != fasthttp.StatusOK {
		utils.SetNoCache(ctx)
		return
	}

	if config == nil || config.CacheControl <= 0 {
		if c.cacheConfig.DefaultNoCache {
			utils.SetNoCache(ctx)
		}
		return
	}

	ctx.Response.Header.Set(fasthttp.HeaderCacheControl,
		"public, max-age="+strconv.Itoa(int(config.CacheControl/time.Second)))

	if len(ctx.Response.Header.Peek(fasthttp.HeaderETag)) > 0 {
		return
	}

	etag := utils.ETag(ctx.Response.Body())
	ctx.Response.Header.Set(fasthttp.HeaderETag, etag)

	if string(ctx.Request.Header.Peek(fasthttp.HeaderIfNoneMatch)) == etag {
		ctx.SetStatusCode(fasthttp.StatusNotModified)
		ctx.ResetBody()
		c.logger.Debug("Conditional request matched", zap.ByteString("path", ctx.Path()))
	}
}
