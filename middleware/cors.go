package middleware

import (
	"strconv"
	"strings"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/saiset-co/catalog-service/types"
	"github.com/saiset-co/catalog-service/utils"
)

const (
	varyOrigin    = "Origin"
	varyPreflight = "Origin, Access-Control-Request-Method, Access-Control-Request-Headers"
)

type CORSMiddleware struct {
	logger types.Logger
	weight int
	policy corsPolicy
}

type CORSConfig struct {
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers"`
	ExposedHeaders   []string `json:"exposed_headers"`
	AllowCredentials bool     `json:"allow_credentials"`
	MaxAge           int      `json:"max_age"`
}

// corsPolicy is CORSConfig joined into ready-to-write header values.
type corsPolicy struct {
	allowsAll        bool
	origins          map[string]bool
	wildcardDomains  []string
	methods          string
	headers          string
	exposed          string
	maxAge           string
	allowCredentials bool
}

func NewCORSMiddleware(config types.ConfigManager, logger types.Logger) *CORSMiddleware {
	item := middlewaresConfig(config).CORS

	var corsConfig = &CORSConfig{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Request-ID"},
		MaxAge:         86400,
	}

	if params := itemParams(item); params != nil {
		if err := utils.UnmarshalConfig(params, corsConfig); err != nil {
			logger.Error("Failed to unmarshal CORS middleware config", zap.Error(err))
		}
	}

	return &CORSMiddleware{
		logger: logger,
		weight: itemWeight(item, 20),
		policy: compileCORSPolicy(corsConfig),
	}
}

func compileCORSPolicy(cfg *CORSConfig) corsPolicy {
	p := corsPolicy{
		origins:          make(map[string]bool, len(cfg.AllowedOrigins)),
		methods:          strings.Join(cfg.AllowedMethods, ", "),
		headers:          strings.Join(cfg.AllowedHeaders, ", "),
		exposed:          strings.Join(cfg.ExposedHeaders, ", "),
		maxAge:           strconv.Itoa(cfg.MaxAge),
		allowCredentials: cfg.AllowCredentials,
	}

	for _, origin := range cfg.AllowedOrigins {
		switch {
		case origin == "*":
			p.allowsAll = true
		case strings.HasPrefix(origin, "*."):
			p.wildcardDomains = append(p.wildcardDomains, strings.TrimPrefix(origin, "*."))
		default:
			p.origins[origin] = true
		}
	}

	return p
}

func (c *CORSMiddleware) Name() string { return "cors" }
func (c *CORSMiddleware) Weight() int  { return c.weight }

func (c *CORSMiddleware) Handle(ctx *fasthttp.RequestCtx, next func(*fasthttp.RequestCtx), _ *types.RouteConfig) {
	origin := string(ctx.Request.Header.Peek("Origin"))
	if origin == "" {
		next(ctx)
		return
	}

	if !c.policy.allows(origin) {
		c.logger.Warn("CORS request blocked",
			zap.String("origin", origin),
			zap.ByteString("method", ctx.Method()),
			zap.ByteString("path", ctx.Path()))

		utils.WriteJSON(ctx, fasthttp.StatusForbidden, map[string]string{
			"error": "Origin not allowed",
			"code":  "CORS_ERROR",
		})
		return
	}

	c.setAllowOrigin(ctx, origin)

	if ctx.IsOptions() && len(ctx.Request.Header.Peek("Access-Control-Request-Method")) > 0 {
		ctx.Response.Header.Set("Access-Control-Allow-Methods", c.policy.methods)
		ctx.Response.Header.Set("Access-Control-Allow-Headers", c.policy.headers)
		ctx.Response.Header.Set("Access-Control-Max-Age", c.policy.maxAge)
		ctx.Response.Header.Set("Vary", varyPreflight)
		ctx.SetStatusCode(fasthttp.StatusNoContent)
		ctx.ResetBody()
		return
	}

	if c.policy.exposed != "" {
		ctx.Response.Header.Set("Access-Control-Expose-Headers", c.policy.exposed)
	}
	addVary(ctx, varyOrigin)

	next(ctx)
}

func (c *CORSMiddleware) setAllowOrigin(ctx *fasthttp.RequestCtx, origin string) {
	// A wildcard cannot be combined with credentials, so the origin is echoed.
	if c.policy.allowsAll && !c.policy.allowCredentials {
		ctx.Response.Header.Set("Access-Control-Allow-Origin", "*")
	} else {
		ctx.Response.Header.Set("Access-Control-Allow-Origin", origin)
	}

	if c.policy.allowCredentials {
		ctx.Response.Header.Set("Access-Control-Allow-Credentials", "true")
	}
}

func (p corsPolicy) allows(origin string) bool {
	if p.allowsAll || p.origins[origin] {
		return true
	}

	host := origin
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}

	for _, domain := range p.wildcardDomains {
		if strings.HasSuffix(host, "."+domain) {
			return true
		}
	}

	return false
}
