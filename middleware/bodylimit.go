package middleware

import (
	"strconv"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/saiset-co/catalog-service/types"
	"github.com/saiset-co/catalog-service/utils"
)

const DefaultMaxBodySize = 1024 * 1024

type BodyLimitMiddleware struct {
	logger          types.Logger
	bodyLimitConfig *BodyLimitConfig
	weight          int
}

type BodyLimitConfig struct {
	MaxBodySize int64 `json:"max_body_size"`
}

func NewBodyLimitMiddleware(config types.ConfigManager, logger types.Logger) *BodyLimitMiddleware {
	item := middlewaresConfig(config).BodyLimit

	var bodyLimitConfig = &BodyLimitConfig{
		MaxBodySize: DefaultMaxBodySize,
	}

	if params := itemParams(item); params != nil {
		if err := utils.UnmarshalConfig(params, bodyLimitConfig); err != nil {
			logger.Error("Failed to unmarshal BodyLimit middleware config", zap.Error(err))
		}
	}

	if bodyLimitConfig.MaxBodySize <= 0 {
		bodyLimitConfig.MaxBodySize = DefaultMaxBodySize
	}

	return &BodyLimitMiddleware{
		logger:          logger,
		bodyLimitConfig: bodyLimitConfig,
		weight:          itemWeight(item, 30),
	}
}

func (bl *BodyLimitMiddleware) Name() string { return "body_limit" }
func (bl *BodyLimitMiddleware) Weight() int  { return bl.weight }

func (bl *BodyLimitMiddleware) Handle(ctx *fasthttp.RequestCtx, next func(*fasthttp.RequestCtx), _ *types.RouteConfig) {
	if ctx.IsGet() || ctx.IsHead() || ctx.IsOptions() {
		next(ctx)
		return
	}

	size := int64(ctx.Request.Header.ContentLength())
	if size <= 0 {
		size = int64(len(ctx.PostBody()))
	}

	if size > bl.bodyLimitConfig.MaxBodySize {
		bl.logger.Warn("Request body too large",
			zap.ByteString("path", ctx.Path()),
			zap.Int64("size", size),
			zap.Int64("max_size", bl.bodyLimitConfig.MaxBodySize))

		ctx.SetConnectionClose()
		utils.WriteJSON(ctx, fasthttp.StatusRequestEntityTooLarge, map[string]string{
			"error": "Request body exceeds maximum size of " + strconv.FormatInt(bl.bodyLimitConfig.MaxBodySize, 10) + " bytes",
			"code":  "BODY_TOO_LARGE",
		})
		return
	}

	next(ctx)
}
