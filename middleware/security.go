package middleware

import (
	"sort"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/saiset-co/catalog-service/types"
	"github.com/saiset-co/catalog-service/utils"
)

var defaultSecurityHeaders = map[string]string{
	"X-Frame-Options":           "DENY",
	"X-Content-Type-Options":    "nosniff",
	"Referrer-Policy":           "origin-when-cross-origin",
	"X-DNS-Prefetch-Control":    "on",
	"Strict-Transport-Security": "max-age=31536000; includeSubDomains",
	"Permissions-Policy":        "camera=(), microphone=(), geolocation=()",
	"Content-Security-Policy":   "default-src 'self'; img-src 'self' data: https:; style-src 'self' 'unsafe-inline'; frame-ancestors 'none'",
}

type SecurityMiddleware struct {
	headers [][2]string
	weight  int
}

// SecurityConfig overrides or adds response headers. An empty value removes
// a default header.
type SecurityConfig struct {
	Headers map[string]string `json:"headers"`
}

func NewSecurityMiddleware(config types.ConfigManager, logger types.Logger) *SecurityMiddleware {
	item := middlewaresConfig(config).Security

	securityConfig := &SecurityConfig{}
	if params := itemParams(item); params != nil {
		if err := utils.UnmarshalConfig(params, securityConfig); err != nil {
			logger.Error("Failed to unmarshal Security middleware config", zap.Error(err))
		}
	}

	merged := make(map[string]string, len(defaultSecurityHeaders)+len(securityConfig.Headers))
	for k, v := range defaultSecurityHeaders {
		merged[k] = v
	}
	for k, v := range securityConfig.Headers {
		if v == "" {
			delete(merged, k)
			continue
		}
		merged[k] = v
	}

	names := make([]string, 0, len(merged))
	for k := range merged {
		names = append(names, k)
	}
	sort.Strings(names)

	headers := make([][2]string, 0, len(names))
	for _, name := range names {
		headers = append(headers, [2]string{name, merged[name]})
	}

	return &SecurityMiddleware{
		headers: headers,
		weight:  itemWeight(item, 10),
	}
}

func (s *SecurityMiddleware) Name() string { return "security" }
func (s *SecurityMiddleware) Weight() int  { return s.weight }

func (s *SecurityMiddleware) Handle(ctx *fasthttp.RequestCtx, next func(*fasthttp.RequestCtx), _ *types.RouteConfig) {
	for _, h := range s.headers {
		ctx.Response.Header.Set(h[0], h[1])
	}

	next(ctx)
}
