package middleware

import (
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/saiset-co/catalog-service/types"
	"github.com/saiset-co/catalog-service/utils"
)

const (
	requestIDHeader    = "X-Request-ID"
	maxRequestIDLength = 128
)

// RequestIDMiddleware keeps a caller supplied X-Request-ID or assigns a new
// one, and echoes it on the response.
type RequestIDMiddleware struct {
	logger          types.Logger
	requestIDConfig *RequestIDConfig
	weight          int
}

type RequestIDConfig struct {
	TrustIncoming bool `json:"trust_incoming"`
}

func NewRequestIDMiddleware(config types.ConfigManager, logger types.Logger) *RequestIDMiddleware {
	item := middlewaresConfig(config).RequestID

	var requestIDConfig = &RequestIDConfig{
		TrustIncoming: true,
	}

	if params := itemParams(item); params != nil {
		if err := utils.UnmarshalConfig(params, requestIDConfig); err != nil {
			logger.Error("Failed to unmarshal RequestID middleware config", zap.Error(err))
		}
	}

	return &RequestIDMiddleware{
		logger:          logger,
		requestIDConfig: requestIDConfig,
		weight:          itemWeight(item, 3),
	}
}

func (m *RequestIDMiddleware) Name() string { return "request_id" }
func (m *RequestIDMiddleware) Weight() int  { return m.weight }

func (m *RequestIDMiddleware) Handle(ctx *fasthttp.RequestCtx, next func(*fasthttp.RequestCtx), _ *types.RouteConfig) {
	requestID := ""
	if m.requestIDConfig.TrustIncoming {
		requestID = string(ctx.Request.Header.Peek(requestIDHeader))
	}

	if requestID == "" || len(requestID) > maxRequestIDLength {
		requestID = uuid.NewString()
		ctx.Request.Header.Set(requestIDHeader, requestID)
	}

	ctx.SetUserValue(types.RequestIDKey, requestID)
	ctx.Response.Header.Set(requestIDHeader, requestID)

	next(ctx)
}
