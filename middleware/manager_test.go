package middleware

import (
	"context"
	"net"
	"strings"
	"testing"

	"github.com/valyala/fasthttp"

	"github.com/saiset-co/catalog-service/config"
	"github.com/saiset-co/catalog-service/logger"
	"github.com/saiset-co/catalog-service/metrics"
	"github.com/saiset-co/catalog-service/ratelimit"
	"github.com/saiset-co/catalog-service/types"
)

type recordingMiddleware struct {
	name   string
	weight int
	calls  *[]string
}

func (r recordingMiddleware) Name() string { return r.name }
func (r recordingMiddleware) Weight() int  { return r.weight }

func (r recordingMiddleware) Handle(ctx *fasthttp.RequestCtx, next func(*fasthttp.RequestCtx), _ *types.RouteConfig) {
	*r.calls = append(*r.calls, r.name)
	next(ctx)
}

func testConfig(mutate func(cfg *types.ServiceConfig)) types.ConfigManager {
	cfg := config.NewLoader().Defaults()
	if mutate != nil {
		mutate(cfg)
	}
	return config.NewStatic(cfg)
}

func newRequestCtx(method, uri string) *fasthttp.RequestCtx {
	var req fasthttp.Request
	req.Header.SetMethod(method)
	req.SetRequestURI(uri)

	ctx := &fasthttp.RequestCtx{}
	ctx.Init(&req, &net.TCPAddr{IP: net.ParseIP("192.0.2.10"), Port: 40000}, nil)
	return ctx
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()

	m, err := NewManager(context.Background(), testConfig(nil), logger.NewNop(), metrics.NewNoop(), nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func TestManager_ExecutesByWeight(t *testing.T) {
	m := newTestManager(t)

	var calls []string
	for _, mw := range []recordingMiddleware{
		{name: "logging", weight: 5, calls: &calls},
		{name: "recovery", weight: 1, calls: &calls},
		{name: "auth", weight: 60, calls: &calls},
		{name: "cors", weight: 20, calls: &calls},
	} {
		if err := m.Register(mw); err != nil {
			t.Fatalf("Register(%s): %v", mw.name, err)
		}
	}
	if err := m.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	handler := func(ctx *fasthttp.RequestCtx) { calls = append(calls, "handler") }

	m.Execute(newRequestCtx("GET", "/"), handler, nil)
	if got := strings.Join(calls, ","); got != "recovery,logging,cors,handler" {
		t.Fatalf("default chain = %s", got)
	}

	calls = nil
	admin := &types.RouteConfig{Middlewares: []string{"auth"}, DisabledMiddlewares: []string{"cors"}}
	m.Execute(newRequestCtx("GET", "/"), handler, admin)
	if got := strings.Join(calls, ","); got != "recovery,logging,auth,handler" {
		t.Fatalf("admin chain = %s", got)
	}

	calls = nil
	m.Execute(newRequestCtx("GET", "/"), handler, &types.RouteConfig{DisabledMiddlewares: []string{"auth"}})
	if got := strings.Join(calls, ","); got != "recovery,logging,cors,handler" {
		t.Fatalf("disabling an opt-in middleware changed the chain: %s", got)
	}

	if got := strings.Join(m.Names(), ","); got != "recovery,logging,cors,auth" {
		t.Fatalf("Names() = %s", got)
	}
}

func TestManager_RejectsDuplicateWeightsAndLateRegistration(t *testing.T) {
	m := newTestManager(t)

	var calls []string
	_ = m.Register(recordingMiddleware{name: "a", weight: 10, calls: &calls})
	_ = m.Register(recordingMiddleware{name: "b", weight: 10, calls: &calls})

	if err := m.Finalize(); err == nil {
		t.Fatalf("expected duplicate weight error")
	}

	m = newTestManager(t)
	if err := m.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if err := m.Register(recordingMiddleware{name: "late", weight: 1, calls: &calls}); err == nil {
		t.Fatalf("expected error registering after finalization")
	}
}

func TestManager_RegisterMiddlewaresFromConfig(t *testing.T) {
	cfg := testConfig(nil)
	limiters, err := ratelimit.NewManager(context.Background(), cfg, logger.NewNop(), metrics.NewNoop())
	if err != nil {
		t.Fatalf("ratelimit.NewManager: %v", err)
	}

	m, err := NewManager(context.Background(), cfg, logger.NewNop(), metrics.NewNoop(), limiters)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if err := m.RegisterMiddlewares(); err != nil {
		t.Fatalf("RegisterMiddlewares: %v", err)
	}

	want := "recovery,request_id,logging,security,cors,body_limit,rate_limit,compression,auth,cache"
	if got := strings.Join(m.Names(), ","); got != want {
		t.Fatalf("Names() = %s, want %s", got, want)
	}
}

func TestManager_AuthRegisteredWhenMiddlewaresDisabled(t *testing.T) {
	cfg := testConfig(func(c *types.ServiceConfig) { c.Middlewares.Enabled = false })

	m, err := NewManager(context.Background(), cfg, logger.NewNop(), metrics.NewNoop(), nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if err := m.RegisterMiddlewares(); err != nil {
		t.Fatalf("RegisterMiddlewares: %v", err)
	}

	ctx := newRequestCtx("DELETE", "/api/cache")
	m.Execute(ctx, func(ctx *fasthttp.RequestCtx) { ctx.SetStatusCode(fasthttp.StatusOK) },
		&types.RouteConfig{Middlewares: []string{"auth"}})

	if ctx.Response.StatusCode() != fasthttp.StatusUnauthorized {
		t.Fatalf("admin route without token returned %d", ctx.Response.StatusCode())
	}
}
