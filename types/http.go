package types

import (
	"time"
)

// User value keys set on every routed request.
const (
	RoutePatternKey   = "route_pattern"
	RequestIDKey      = "request_id"
	RequestContextKey = "request_context"
)

type HTTPServer interface {
	LifecycleManager
	Address() string
}

type HTTPRouter interface {
	Add(method, path string, handler FastHTTPHandler, config *RouteConfig)
	Group(prefix string) GroupBuilder
	GET(path string, handler FastHTTPHandler) RouteBuilder
	POST(path string, handler FastHTTPHandler) RouteBuilder
	PUT(path string, handler FastHTTPHandler) RouteBuilder
	DELETE(path string, handler FastHTTPHandler) RouteBuilder
	GetAllRoutes() map[string]*RouteInfo
}

type RouteBuilder interface {
	WithCacheControl(ttl time.Duration) RouteBuilder
	WithMiddlewares(names ...string) RouteBuilder
	WithoutMiddlewares(names ...string) RouteBuilder
	WithTimeout(duration time.Duration) RouteBuilder
}

type GroupBuilder interface {
	WithMiddlewares(names ...string) GroupBuilder
	WithoutMiddlewares(names ...string) GroupBuilder
	WithTimeout(duration time.Duration) GroupBuilder
	Route(method, path string, handler FastHTTPHandler) RouteBuilder
	GET(path string, handler FastHTTPHandler) RouteBuilder
	POST(path string, handler FastHTTPHandler) RouteBuilder
	PUT(path string, handler FastHTTPHandler) RouteBuilder
	DELETE(path string, handler FastHTTPHandler) RouteBuilder
	Group(prefix string) GroupBuilder
}

type RouteConfig struct {
	CacheControl        time.Duration
	Middlewares         []string
	DisabledMiddlewares []string
	Timeout             time.Duration
}

// Enabled reports whether the named optional middleware should run for the route.
func (c *RouteConfig) Enabled(name string) bool {
	if c == nil {
		return false
	}
	for _, n := range c.DisabledMiddlewares {
		if n == name {
			return false
		}
	}
	for _, n := range c.Middlewares {
		if n == name {
			return true
		}
	}
	return false
}

// Disabled reports whether the route opted out of the named middleware.
func (c *RouteConfig) Disabled(name string) bool {
	if c == nil {
		return false
	}
	for _, n := range c.DisabledMiddlewares {
		if n == name {
			return true
		}
	}
	return false
}

type RouteInfo struct {
	Method  string
	Pattern string
	Handler FastHTTPHandler
	Config  *RouteConfig
}
