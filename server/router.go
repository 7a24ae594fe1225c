package server

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/saiset-co/catalog-service/types"
	"github.com/saiset-co/catalog-service/utils"
)

var methodIndex = map[string]uint8{
	fasthttp.MethodGet:     0,
	fasthttp.MethodPost:    1,
	fasthttp.MethodPut:     2,
	fasthttp.MethodDelete:  3,
	fasthttp.MethodPatch:   4,
	fasthttp.MethodHead:    5,
	fasthttp.MethodOptions: 6,
}

const methodCount = 7

type routeNode struct {
	staticChildren map[string]*routeNode
	paramChild     *routeNode
	paramName      string
	routes         [methodCount]*types.RouteInfo
}

func newRouteNode() *routeNode {
	return &routeNode{staticChildren: make(map[string]*routeNode)}
}

// Router matches static segments before {param} segments and hands the
// matched route to the middleware chain.
type Router struct {
	root        *routeNode
	middlewares types.MiddlewareManager
	logger      types.Logger
	mu          sync.RWMutex
}

func NewRouter(middlewares types.MiddlewareManager, logger types.Logger) *Router {
	return &Router{
		root:        newRouteNode(),
		middlewares: middlewares,
		logger:      logger,
	}
}

func (r *Router) Add(method, path string, handler types.FastHTTPHandler, config *types.RouteConfig) {
	r.add(method, path, handler, config)
}

func (r *Router) add(method, path string, handler types.FastHTTPHandler, config *types.RouteConfig) *types.RouteInfo {
	idx, ok := methodIndex[method]
	if !ok || handler == nil {
		return nil
	}
	if config == nil {
		config = &types.RouteConfig{}
	}

	pattern := normalizePath(path)
	info := &types.RouteInfo{
		Method:  method,
		Pattern: pattern,
		Handler: handler,
		Config:  config,
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	node := r.root
	for _, segment := range splitPath(pattern) {
		if name, isParam := paramName(segment); isParam {
			if node.paramChild == nil {
				node.paramChild = newRouteNode()
				node.paramChild.paramName = name
			}
			node = node.paramChild
			continue
		}

		child, exists := node.staticChildren[segment]
		if !exists {
			child = newRouteNode()
			node.staticChildren[segment] = child
		}
		node = child
	}

	node.routes[idx] = info
	return info
}

func (r *Router) Group(prefix string) types.GroupBuilder {
	return &GroupBuilder{
		router: r,
		prefix: strings.TrimSuffix(prefix, "/"),
		config: &types.RouteConfig{},
	}
}

func (r *Router) GET(path string, handler types.FastHTTPHandler) types.RouteBuilder {
	return r.route(fasthttp.MethodGet, path, handler)
}

func (r *Router) POST(path string, handler types.FastHTTPHandler) types.RouteBuilder {
	return r.route(fasthttp.MethodPost, path, handler)
}

func (r *Router) PUT(path string, handler types.FastHTTPHandler) types.RouteBuilder {
	return r.route(fasthttp.MethodPut, path, handler)
}

func (r *Router) DELETE(path string, handler types.FastHTTPHandler) types.RouteBuilder {
	return r.route(fasthttp.MethodDelete, path, handler)
}

func (r *Router) route(method, path string, handler types.FastHTTPHandler) *RouteBuilder {
	config := &types.RouteConfig{}
	r.add(method, path, handler, config)
	return &RouteBuilder{config: config}
}

// GetAllRoutes is keyed by "METHOD:pattern".
func (r *Router) GetAllRoutes() map[string]*types.RouteInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	routes := make(map[string]*types.RouteInfo)
	collectRoutes(r.root, routes)
	return routes
}

// Patterns lists registered routes as sorted "METHOD pattern" strings.
func (r *Router) Patterns() []string {
	routes := r.GetAllRoutes()

	patterns := make([]string, 0, len(routes))
	for _, info := range routes {
		patterns = append(patterns, info.Method+" "+info.Pattern)
	}
	sort.Strings(patterns)
	return patterns
}

func collectRoutes(node *routeNode, routes map[string]*types.RouteInfo) {
	for _, info := range node.routes {
		if info != nil {
			routes[info.Method+":"+info.Pattern] = info
		}
	}
	for _, child := range node.staticChildren {
		collectRoutes(child, routes)
	}
	if node.paramChild != nil {
		collectRoutes(node.paramChild, routes)
	}
}

// Handler is the fasthttp entry point.
func (r *Router) Handler(ctx *fasthttp.RequestCtx) {
	method := string(ctx.Method())
	idx, ok := methodIndex[method]
	if !ok {
		utils.WriteJSON(ctx, fasthttp.StatusMethodNotAllowed, map[string]string{
			"error": "Method not allowed",
			"code":  "METHOD_NOT_ALLOWED",
		})
		return
	}

	info, params, pathMatched := r.find(string(ctx.Path()), idx)
	if info == nil {
		switch {
		case method == fasthttp.MethodOptions:
			// Unrouted preflights still run the chain so CORS can answer them.
			r.execute(ctx, func(*fasthttp.RequestCtx) {
				ctx.SetStatusCode(fasthttp.StatusNoContent)
			}, nil)
		case pathMatched:
			utils.WriteJSON(ctx, fasthttp.StatusMethodNotAllowed, map[string]string{
				"error": "Method not allowed",
				"code":  "METHOD_NOT_ALLOWED",
			})
		default:
			utils.WriteError(ctx, types.NewAppError(types.KindNotFound, "Not found", types.ErrPathNotFound))
		}
		return
	}

	for name, value := range params {
		ctx.SetUserValue(name, value)
	}
	ctx.SetUserValue(types.RoutePatternKey, info.Pattern)

	r.execute(ctx, withTimeout(info.Handler, info.Config.Timeout), info.Config)
}

func (r *Router) execute(ctx *fasthttp.RequestCtx, handler types.FastHTTPHandler, config *types.RouteConfig) {
	if r.middlewares == nil {
		handler(ctx)
		return
	}
	r.middlewares.Execute(ctx, handler, config)
}

// withTimeout installs a deadline context that handlers pick up through
// utils.RequestContext.
func withTimeout(handler types.FastHTTPHandler, timeout time.Duration) types.FastHTTPHandler {
	if timeout <= 0 {
		return handler
	}

	return func(ctx *fasthttp.RequestCtx) {
		deadline, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		ctx.SetUserValue(types.RequestContextKey, deadline)
		handler(ctx)
		ctx.RemoveUserValue(types.RequestContextKey)
	}
}

func (r *Router) find(path string, idx uint8) (*types.RouteInfo, map[string]string, bool) {
	segments := splitPath(normalizePath(path))

	r.mu.RLock()
	defer r.mu.RUnlock()

	node := r.match(r.root, segments)
	if node == nil {
		return nil, nil, false
	}

	info := node.routes[idx]
	if info == nil {
		return nil, nil, true
	}

	return info, bindParams(info.Pattern, segments), true
}

func (r *Router) match(node *routeNode, segments []string) *routeNode {
	if len(segments) == 0 {
		for _, info := range node.routes {
			if info != nil {
				return node
			}
		}
		return nil
	}

	if child, ok := node.staticChildren[segments[0]]; ok {
		if found := r.match(child, segments[1:]); found != nil {
			return found
		}
	}

	if node.paramChild != nil {
		return r.match(node.paramChild, segments[1:])
	}

	return nil
}

func bindParams(pattern string, segments []string) map[string]string {
	var params map[string]string

	for i, segment := range splitPath(pattern) {
		name, isParam := paramName(segment)
		if !isParam || i >= len(segments) {
			continue
		}
		if params == nil {
			params = make(map[string]string, 2)
		}
		params[name] = segments[i]
	}

	return params
}

func paramName(segment string) (string, bool) {
	if len(segment) > 2 && segment[0] == '{' && segment[len(segment)-1] == '}' {
		return segment[1 : len(segment)-1], true
	}
	return "", false
}

func normalizePath(path string) string {
	if path == "" || path == "/" {
		return "/"
	}
	if path[0] != '/' {
		path = "/" + path
	}
	return strings.TrimSuffix(path, "/")
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}
