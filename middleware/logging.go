package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/saiset-co/catalog-service/ratelimit"
	"github.com/saiset-co/catalog-service/types"
	"github.com/saiset-co/catalog-service/utils"
)

const maxLoggedBody = 1000

var sensitiveHeaders = map[string]bool{
	"authorization": true,
	"x-api-key":     true,
	"cookie":        true,
	"set-cookie":    true,
}

var durationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

type LoggingMiddleware struct {
	logger        types.Logger
	metrics       types.MetricsManager
	loggingConfig *LoggingConfig
	weight        int
}

type LoggingConfig struct {
	LogLevel   string `json:"log_level"`
	LogHeaders bool   `json:"log_headers"`
	LogBody    bool   `json:"log_body"`
}

func NewLoggingMiddleware(config types.ConfigManager, logger types.Logger, metrics types.MetricsManager) *LoggingMiddleware {
	item := middlewaresConfig(config).Logging

	var loggingConfig = &LoggingConfig{
		LogLevel: "info",
	}

	if params := itemParams(item); params != nil {
		if err := utils.UnmarshalConfig(params, loggingConfig); err != nil {
			logger.Error("Failed to unmarshal Logging middleware config", zap.Error(err))
		}
	}

	return &LoggingMiddleware{
		logger:        logger,
		metrics:       metrics,
		loggingConfig: loggingConfig,
		weight:        itemWeight(item, 5),
	}
}

func (l *LoggingMiddleware) Name() string { return "logging" }
func (l *LoggingMiddleware) Weight() int  { return l.weight }

func (l *LoggingMiddleware) Handle(ctx *fasthttp.RequestCtx, next func(*fasthttp.RequestCtx), _ *types.RouteConfig) {
	start := time.Now()

	l.logRequest(ctx)

	next(ctx)

	l.logResponse(ctx, time.Since(start))
	l.record(ctx, start)
}

func (l *LoggingMiddleware) logRequest(ctx *fasthttp.RequestCtx) {
	fields := []zap.Field{
		zap.String("method", string(ctx.Method())),
		zap.String("path", string(ctx.Path())),
		zap.String("remote_addr", ratelimit.Identity(ratelimit.FromRequestCtx(ctx))),
		zap.String("user_agent", string(ctx.UserAgent())),
	}

	if query := ctx.QueryArgs().QueryString(); len(query) > 0 {
		fields = append(fields, zap.String("query", string(query)))
	}

	if requestID := requestIDOf(ctx); requestID != "" {
		fields = append(fields, zap.String("request_id", requestID))
	}

	if l.loggingConfig.LogHeaders {
		fields = append(fields, zap.Any("headers", sanitizeHeaders(ctx)))
	}

	l.logWithLevel("Request started", fields...)
}

func (l *LoggingMiddleware) logResponse(ctx *fasthttp.RequestCtx, duration time.Duration) {
	status := ctx.Response.StatusCode()

	fields := []zap.Field{
		zap.String("method", string(ctx.Method())),
		zap.String("path", string(ctx.Path())),
		zap.Int("status", status),
		zap.Duration("duration", duration),
	}

	if requestID := requestIDOf(ctx); requestID != "" {
		fields = append(fields, zap.String("request_id", requestID))
	}

	if l.loggingConfig.LogBody {
		if body := ctx.Response.Body(); len(body) > maxLoggedBody {
			fields = append(fields,
				zap.String("response", string(body[:maxLoggedBody])+"..."),
				zap.Int("response_size", len(body)))
		} else if len(body) > 0 {
			fields = append(fields, zap.String("response", string(body)))
		}
	}

	switch {
	case status >= 500:
		l.logger.Error("Request completed", fields...)
	case status >= 400:
		l.logger.Warn("Request completed", fields...)
	default:
		l.logWithLevel("Request completed", fields...)
	}
}

func (l *LoggingMiddleware) record(ctx *fasthttp.RequestCtx, start time.Time) {
	if l.metrics == nil {
		return
	}

	method := string(ctx.Method())
	path := routeLabel(ctx)

	l.metrics.Counter("http_requests_total", map[string]string{
		"method": method,
		"path":   path,
		"status": strconv.Itoa(ctx.Response.StatusCode()),
	}).Inc()

	l.metrics.Histogram("http_request_duration_seconds", durationBuckets, map[string]string{
		"method": method,
		"path":   path,
	}).ObserveDuration(start)
}

func (l *LoggingMiddleware) logWithLevel(msg string, fields ...zap.Field) {
	switch l.loggingConfig.LogLevel {
	case "debug":
		l.logger.Debug(msg, fields...)
	case "warn":
		l.logger.Warn(msg, fields...)
	case "error":
		l.logger.Error(msg, fields...)
	default:
		l.logger.Info(msg, fields...)
	}
}

func sanitizeHeaders(ctx *fasthttp.RequestCtx) map[string]string {
	sanitized := make(map[string]string, 16)

	ctx.Request.Header.VisitAll(func(key, value []byte) {
		name := string(key)
		if sensitiveHeaders[strings.ToLower(name)] {
			sanitized[name] = "[REDACTED]"
			return
		}
		sanitized[name] = string(value)
	})

	return sanitized
}

// routeLabel is the matched route pattern, so ids in paths do not explode
// metric cardinality.
func routeLabel(ctx *fasthttp.RequestCtx) string {
	if pattern, ok := ctx.UserValue(types.RoutePatternKey).(string); ok && pattern != "" {
		return pattern
	}
	return "unmatched"
}

func requestIDOf(ctx *fasthttp.RequestCtx) string {
	if id, ok := ctx.UserValue(types.RequestIDKey).(string); ok {
		return id
	}
	return string(ctx.Request.Header.Peek("X-Request-ID"))
}
