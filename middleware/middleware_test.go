package middleware

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"github.com/valyala/fasthttp"
	"golang.org/x/crypto/bcrypt"

	"github.com/saiset-co/catalog-service/logger"
	"github.com/saiset-co/catalog-service/metrics"
	"github.com/saiset-co/catalog-service/ratelimit"
	"github.com/saiset-co/catalog-service/types"
)

func okHandler(body string) func(*fasthttp.RequestCtx) {
	return func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusOK)
		ctx.SetContentType("application/json")
		ctx.SetBodyString(body)
	}
}

func TestRecovery_ConvertsPanicTo500(t *testing.T) {
	mw := NewRecoveryMiddleware(testConfig(nil), logger.NewNop(), metrics.NewNoop())
	ctx := newRequestCtx("GET", "/api/products")

	mw.Handle(ctx, func(*fasthttp.RequestCtx) { panic("boom") }, nil)

	if ctx.Response.StatusCode() != fasthttp.StatusInternalServerError {
		t.Fatalf("status = %d", ctx.Response.StatusCode())
	}
	if !strings.Contains(string(ctx.Response.Body()), "Internal Server Error") {
		t.Fatalf("body = %s", ctx.Response.Body())
	}
}

func TestRequestID(t *testing.T) {
	mw := NewRequestIDMiddleware(testConfig(nil), logger.NewNop())

	ctx := newRequestCtx("GET", "/")
	var seen string
	mw.Handle(ctx, func(ctx *fasthttp.RequestCtx) { seen = requestIDOf(ctx) }, nil)

	if _, err := uuid.Parse(seen); err != nil {
		t.Fatalf("generated id %q is not a uuid", seen)
	}
	if got := string(ctx.Response.Header.Peek("X-Request-ID")); got != seen {
		t.Fatalf("response id = %q, want %q", got, seen)
	}

	ctx = newRequestCtx("GET", "/")
	ctx.Request.Header.Set("X-Request-ID", "abc-123")
	mw.Handle(ctx, func(*fasthttp.RequestCtx) {}, nil)
	if got := string(ctx.Response.Header.Peek("X-Request-ID")); got != "abc-123" {
		t.Fatalf("incoming id not kept, got %q", got)
	}
}

func TestSecurityHeaders(t *testing.T) {
	cfg := testConfig(func(c *types.ServiceConfig) {
		c.Middlewares.Security.Params = map[string]interface{}{
			"headers": map[string]interface{}{
				"X-DNS-Prefetch-Control": "",
				"X-Custom":               "1",
			},
		}
	})
	mw := NewSecurityMiddleware(cfg, logger.NewNop())

	ctx := newRequestCtx("GET", "/")
	mw.Handle(ctx, okHandler(`{}`), nil)

	h := &ctx.Response.Header
	if string(h.Peek("X-Frame-Options")) != "DENY" || string(h.Peek("X-Content-Type-Options")) != "nosniff" {
		t.Fatalf("default headers missing")
	}
	if string(h.Peek("Strict-Transport-Security")) != "max-age=31536000; includeSubDomains" {
		t.Fatalf("hsts = %q", h.Peek("Strict-Transport-Security"))
	}
	if len(h.Peek("X-DNS-Prefetch-Control")) != 0 || string(h.Peek("X-Custom")) != "1" {
		t.Fatalf("overrides not applied")
	}
}

func TestCORS(t *testing.T) {
	cfg := testConfig(func(c *types.ServiceConfig) {
		c.Middlewares.CORS.Params = map[string]interface{}{
			"allowed_origins": []string{"https://shop.example.com", "*.cases.io"},
		}
	})
	mw := NewCORSMiddleware(cfg, logger.NewNop())

	t.Run("allowed", func(t *testing.T) {
		ctx := newRequestCtx("GET", "/api/products")
		ctx.Request.Header.Set("Origin", "https://eu.cases.io")
		mw.Handle(ctx, okHandler(`{}`), nil)

		if got := string(ctx.Response.Header.Peek("Access-Control-Allow-Origin")); got != "https://eu.cases.io" {
			t.Fatalf("allow origin = %q", got)
		}
	})

	t.Run("blocked", func(t *testing.T) {
		ctx := newRequestCtx("GET", "/api/products")
		ctx.Request.Header.Set("Origin", "https://evil.example.org")
		called := false
		mw.Handle(ctx, func(*fasthttp.RequestCtx) { called = true }, nil)

		if called || ctx.Response.StatusCode() != fasthttp.StatusForbidden {
			t.Fatalf("blocked origin reached handler or got %d", ctx.Response.StatusCode())
		}
	})

	t.Run("preflight", func(t *testing.T) {
		ctx := newRequestCtx("OPTIONS", "/api/inquiries")
		ctx.Request.Header.Set("Origin", "https://shop.example.com")
		ctx.Request.Header.Set("Access-Control-Request-Method", "POST")
		mw.Handle(ctx, func(*fasthttp.RequestCtx) { t.Fatalf("preflight must not reach handler") }, nil)

		if ctx.Response.StatusCode() != fasthttp.StatusNoContent {
			t.Fatalf("status = %d", ctx.Response.StatusCode())
		}
		if !strings.Contains(string(ctx.Response.Header.Peek("Access-Control-Allow-Methods")), "POST") {
			t.Fatalf("methods header missing")
		}
	})
}

func TestBodyLimit(t *testing.T) {
	cfg := testConfig(func(c *types.ServiceConfig) {
		c.Middlewares.BodyLimit.Params = map[string]interface{}{"max_body_size": 16}
	})
	mw := NewBodyLimitMiddleware(cfg, logger.NewNop())

	ctx := newRequestCtx("POST", "/api/inquiries")
	ctx.Request.SetBodyString(strings.Repeat("x", 17))
	mw.Handle(ctx, func(*fasthttp.RequestCtx) { t.Fatalf("oversized body reached handler") }, nil)

	if ctx.Response.StatusCode() != fasthttp.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d", ctx.Response.StatusCode())
	}

	ctx = newRequestCtx("POST", "/api/inquiries")
	ctx.Request.SetBodyString("small")
	called := false
	mw.Handle(ctx, func(*fasthttp.RequestCtx) { called = true }, nil)
	if !called {
		t.Fatalf("small body rejected")
	}
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig(func(c *types.ServiceConfig) {
		c.RateLimit.Limiters = map[string]types.LimiterConfig{
			"api": {Window: time.Minute, MaxRequests: 2},
		}
	})

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	limiters, err := ratelimit.NewManager(context.Background(), cfg, logger.NewNop(), metrics.NewNoop(),
		ratelimit.WithClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("ratelimit.NewManager: %v", err)
	}

	mw, err := NewRateLimitMiddleware(cfg, logger.NewNop(), limiters)
	if err != nil {
		t.Fatalf("NewRateLimitMiddleware: %v", err)
	}

	for i := 0; i < 2; i++ {
		ctx := newRequestCtx("GET", "/api/products")
		mw.Handle(ctx, okHandler(`{}`), nil)
		if ctx.Response.StatusCode() != fasthttp.StatusOK {
			t.Fatalf("request %d: status %d", i+1, ctx.Response.StatusCode())
		}
		if want := []string{"1", "0"}[i]; string(ctx.Response.Header.Peek("X-RateLimit-Remaining")) != want {
			t.Fatalf("request %d: remaining = %s", i+1, ctx.Response.Header.Peek("X-RateLimit-Remaining"))
		}
	}

	ctx := newRequestCtx("GET", "/api/products")
	mw.Handle(ctx, func(*fasthttp.RequestCtx) { t.Fatalf("limited request reached handler") }, nil)

	if ctx.Response.StatusCode() != fasthttp.StatusTooManyRequests {
		t.Fatalf("status = %d", ctx.Response.StatusCode())
	}
	if got := string(ctx.Response.Header.Peek("Retry-After")); got != "60" {
		t.Fatalf("Retry-After = %q", got)
	}

	if _, err := NewRateLimitMiddleware(cfg, logger.NewNop(), nil); err == nil {
		t.Fatalf("expected error without limiters")
	}
}

func TestCompression(t *testing.T) {
	mw := NewCompressionMiddleware(testConfig(nil), logger.NewNop(), metrics.NewNoop())
	payload := `{"products":"` + strings.Repeat("nanuk protective case ", 200) + `"}`

	t.Run("gzip", func(t *testing.T) {
		ctx := newRequestCtx("GET", "/api/products")
		ctx.Request.Header.Set("Accept-Encoding", "gzip, deflate")
		mw.Handle(ctx, okHandler(payload), nil)

		if got := string(ctx.Response.Header.Peek("Content-Encoding")); got != "gzip" {
			t.Fatalf("Content-Encoding = %q", got)
		}

		r, err := gzip.NewReader(bytes.NewReader(ctx.Response.Body()))
		if err != nil {
			t.Fatalf("gzip reader: %v", err)
		}
		plain, err := io.ReadAll(r)
		if err != nil || string(plain) != payload {
			t.Fatalf("round trip mismatch (err %v)", err)
		}
		if !strings.Contains(string(ctx.Response.Header.Peek("Vary")), "Accept-Encoding") {
			t.Fatalf("Vary missing Accept-Encoding")
		}
	})

	t.Run("brotli preferred", func(t *testing.T) {
		ctx := newRequestCtx("GET", "/api/products")
		ctx.Request.Header.Set("Accept-Encoding", "gzip, br")
		mw.Handle(ctx, okHandler(payload), nil)

		if got := string(ctx.Response.Header.Peek("Content-Encoding")); got != "br" {
			t.Fatalf("Content-Encoding = %q", got)
		}
	})

	t.Run("below threshold", func(t *testing.T) {
		ctx := newRequestCtx("GET", "/api/products")
		ctx.Request.Header.Set("Accept-Encoding", "gzip")
		mw.Handle(ctx, okHandler(`{"ok":true}`), nil)

		if len(ctx.Response.Header.Peek("Content-Encoding")) != 0 {
			t.Fatalf("small body was compressed")
		}
	})
}

func TestAuth(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret-token"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}

	cfg := testConfig(func(c *types.ServiceConfig) { c.Admin.TokenHash = string(hash) })
	mw := NewAuthMiddleware(cfg, logger.NewNop(), metrics.NewNoop())

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid", "Bearer s3cret-token", fasthttp.StatusOK},
		{"wrong token", "Bearer nope", fasthttp.StatusUnauthorized},
		{"missing", "", fasthttp.StatusUnauthorized},
		{"basic scheme", "Basic czNjcmV0LXRva2Vu", fasthttp.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := newRequestCtx("DELETE", "/api/products/1")
			if tt.header != "" {
				ctx.Request.Header.Set("Authorization", tt.header)
			}
			mw.Handle(ctx, okHandler(`{}`), nil)

			if ctx.Response.StatusCode() != tt.want {
				t.Fatalf("status = %d, want %d", ctx.Response.StatusCode(), tt.want)
			}
		})
	}

	unconfigured := NewAuthMiddleware(testConfig(nil), logger.NewNop(), metrics.NewNoop())
	ctx := newRequestCtx("DELETE", "/api/cache")
	ctx.Request.Header.Set("Authorization", "Bearer s3cret-token")
	unconfigured.Handle(ctx, okHandler(`{}`), nil)
	if ctx.Response.StatusCode() != fasthttp.StatusUnauthorized {
		t.Fatalf("unconfigured auth let request through")
	}
}

func TestCacheHeaders(t *testing.T) {
	mw := NewCacheMiddleware(testConfig(nil), logger.NewNop())
	route := &types.RouteConfig{CacheControl: 5 * time.Minute}

	ctx := newRequestCtx("GET", "/api/categories")
	mw.Handle(ctx, okHandler(`["cases"]`), route)

	if got := string(ctx.Response.Header.Peek("Cache-Control")); got != "public, max-age=300" {
		t.Fatalf("Cache-Control = %q", got)
	}
	etag := string(ctx.Response.Header.Peek("ETag"))
	if etag == "" {
		t.Fatalf("ETag missing")
	}

	ctx = newRequestCtx("GET", "/api/categories")
	ctx.Request.Header.Set("If-None-Match", etag)
	mw.Handle(ctx, okHandler(`["cases"]`), route)
	if ctx.Response.StatusCode() != fasthttp.StatusNotModified || len(ctx.Response.Body()) != 0 {
		t.Fatalf("conditional GET = %d %q", ctx.Response.StatusCode(), ctx.Response.Body())
	}

	ctx = newRequestCtx("GET", "/api/inquiries")
	mw.Handle(ctx, okHandler(`[]`), nil)
	if !strings.HasPrefix(string(ctx.Response.Header.Peek("Cache-Control")), "no-cache") {
		t.Fatalf("uncached route Cache-Control = %q", ctx.Response.Header.Peek("Cache-Control"))
	}
}
