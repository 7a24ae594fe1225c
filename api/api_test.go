package api

import (
	"context"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/valyala/fasthttp"
	"golang.org/x/crypto/bcrypt"

	"github.com/saiset-co/catalog-service/cache"
	"github.com/saiset-co/catalog-service/catalog"
	"github.com/saiset-co/catalog-service/config"
	"github.com/saiset-co/catalog-service/database"
	"github.com/saiset-co/catalog-service/logger"
	"github.com/saiset-co/catalog-service/metrics"
	"github.com/saiset-co/catalog-service/middleware"
	"github.com/saiset-co/catalog-service/notify"
	"github.com/saiset-co/catalog-service/ratelimit"
	"github.com/saiset-co/catalog-service/server"
	"github.com/saiset-co/catalog-service/types"
	"github.com/saiset-co/catalog-service/utils"
)

const adminToken = "s3cret-admin-token"

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	router   *server.Router
	cache    *cache.MemoryCache
	products *catalog.ProductService
}

func newFixture(t *testing.T, overrides ...func(*types.ServiceConfig)) *fixture {
	t.Helper()

	log := logger.NewNop()
	ctx := context.Background()

	hash, err := bcrypt.GenerateFromPassword([]byte(adminToken), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}

	cfg := config.NewLoader().Defaults()
	cfg.Admin = &types.AdminConfig{TokenHash: string(hash)}
	cfg.RateLimit.Limiters = map[string]types.LimiterConfig{
		ratelimit.LimiterInquiry: {Window: 15 * time.Minute, MaxRequests: 2},
	}
	for _, override := range overrides {
		override(cfg)
	}
	cfgManager := config.NewStatic(cfg)

	db, err := database.NewCloverDB(ctx, log, &types.DatabaseConfig{Type: "clover", Path: filepath.Join(t.TempDir(), "db")})
	if err != nil {
		t.Fatalf("NewCloverDB: %v", err)
	}
	if err := db.Start(); err != nil {
		t.Fatalf("db.Start: %v", err)
	}
	t.Cleanup(func() { _ = db.Stop() })

	mem, err := cache.NewMemoryCache(ctx, log, &types.CacheConfig{Enabled: true, Type: "memory"})
	if err != nil {
		t.Fatalf("NewMemoryCache: %v", err)
	}

	validator := catalog.NewValidator()
	products := catalog.NewProductService(db, mem, nil, validator, log)
	inquiries := catalog.NewInquiryService(db, mem, notify.NewMailer(nil, log), validator, log)

	limiters, err := ratelimit.NewManager(ctx, cfgManager, log, metrics.NewNoop(),
		ratelimit.WithClock(func() time.Time { return fixedNow }))
	if err != nil {
		t.Fatalf("ratelimit.NewManager: %v", err)
	}

	chain, err := middleware.NewManager(ctx, cfgManager, log, metrics.NewNoop(), limiters)
	if err != nil {
		t.Fatalf("middleware.NewManager: %v", err)
	}
	if err := chain.RegisterMiddlewares(); err != nil {
		t.Fatalf("RegisterMiddlewares: %v", err)
	}

	handlers, err := New(products, inquiries, mem, limiters, log, WithClock(func() time.Time { return fixedNow }))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	router := server.NewRouter(chain, log)
	handlers.Register(router)

	return &fixture{router: router, cache: mem, products: products}
}

func (f *fixture) do(method, uri, body, token string) *fasthttp.RequestCtx {
	var req fasthttp.Request
	req.Header.SetMethod(method)
	req.SetRequestURI(uri)
	if body != "" {
		req.Header.SetContentType("application/json")
		req.SetBodyString(body)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	ctx := &fasthttp.RequestCtx{}
	ctx.Init(&req, &net.TCPAddr{IP: net.ParseIP("198.51.100.7"), Port: 52000}, nil)

	f.router.Handler(ctx)
	return ctx
}

func decode(t *testing.T, ctx *fasthttp.RequestCtx) map[string]interface{} {
	t.Helper()

	var out map[string]interface{}
	if err := utils.Unmarshal(ctx.Response.Body(), &out); err != nil {
		t.Fatalf("decode %q: %v", ctx.Response.Body(), err)
	}
	return out
}

const productBody = `{
	"name": "NANUK 905 Compact Case",
	"category": "Small Cases",
	"description": "Compact hard case for drones and cameras.",
	"images": ["/images/905.svg"],
	"specifications": {"Weight": "1.2 kg"},
	"features": ["Waterproof"]
}`

const inquiryBody = `{
	"name": "Jane Doe",
	"email": "jane@example.com",
	"country": "Norway",
	"message": "Please send a quote for 50 cases."
}`

func TestProducts_ListAndGet(t *testing.T) {
	f := newFixture(t)
	if _, err := f.products.Seed(context.Background()); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	ctx := f.do("GET", "/api/products?limit=2&sortOrder=desc", "", "")
	if ctx.Response.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("list status = %d: %s", ctx.Response.StatusCode(), ctx.Response.Body())
	}
	if got := string(ctx.Response.Header.Peek("Cache-Control")); got != "public, max-age=300" {
		t.Fatalf("Cache-Control = %q", got)
	}
	etag := string(ctx.Response.Header.Peek("ETag"))
	if etag == "" {
		t.Fatalf("missing ETag")
	}

	body := decode(t, ctx)
	if len(body["products"].([]interface{})) != 2 || body["success"] != true {
		t.Fatalf("list body = %v", body)
	}
	if pagination := body["pagination"].(map[string]interface{}); pagination["hasMore"] != true {
		t.Fatalf("pagination = %v", pagination)
	}

	ctx = f.do("GET", "/api/products/nanuk-910-protective-case", "", "")
	if ctx.Response.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("get status = %d: %s", ctx.Response.StatusCode(), ctx.Response.Body())
	}
	product := decode(t, ctx)["product"].(map[string]interface{})
	if product["slug"] != "nanuk-910-protective-case" {
		t.Fatalf("product = %v", product)
	}
	if got := string(ctx.Response.Header.Peek("Cache-Control")); got != "public, max-age=300" {
		t.Fatalf("product Cache-Control = %q", got)
	}

	ctx = f.do("GET", "/api/products/missing-product", "", "")
	if ctx.Response.StatusCode() != fasthttp.StatusNotFound {
		t.Fatalf("missing product status = %d", ctx.Response.StatusCode())
	}
	if got := string(ctx.Response.Header.Peek("Cache-Control")); !strings.HasPrefix(got, "no-cache") {
		t.Fatalf("error Cache-Control = %q", got)
	}

	ctx = f.do("GET", "/api/categories", "", "")
	categories := decode(t, ctx)["categories"].([]interface{})
	if len(categories) != 5 {
		t.Fatalf("categories = %v", categories)
	}
}

func TestProducts_AdminWrites(t *testing.T) {
	f := newFixture(t)

	ctx := f.do("POST", "/api/products", productBody, "")
	if ctx.Response.StatusCode() != fasthttp.StatusUnauthorized {
		t.Fatalf("unauthenticated create status = %d", ctx.Response.StatusCode())
	}

	ctx = f.do("POST", "/api/products", productBody, "wrong-token")
	if ctx.Response.StatusCode() != fasthttp.StatusUnauthorized {
		t.Fatalf("wrong token create status = %d", ctx.Response.StatusCode())
	}

	ctx = f.do("POST", "/api/products", productBody, adminToken)
	if ctx.Response.StatusCode() != fasthttp.StatusCreated {
		t.Fatalf("create status = %d: %s", ctx.Response.StatusCode(), ctx.Response.Body())
	}
	id := decode(t, ctx)["productId"].(string)

	ctx = f.do("POST", "/api/products", productBody, adminToken)
	if ctx.Response.StatusCode() != fasthttp.StatusConflict {
		t.Fatalf("duplicate create status = %d", ctx.Response.StatusCode())
	}

	ctx = f.do("POST", "/api/products", `{"name":"x"}`, adminToken)
	if ctx.Response.StatusCode() != fasthttp.StatusBadRequest {
		t.Fatalf("invalid create status = %d", ctx.Response.StatusCode())
	}
	if body := decode(t, ctx); body["error"] != "Validation failed" || len(body["details"].([]interface{})) == 0 {
		t.Fatalf("validation body = %v", body)
	}

	ctx = f.do("PUT", "/api/products/"+id, `{"name":"NANUK 906 Compact Case"}`, adminToken)
	if ctx.Response.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("update status = %d: %s", ctx.Response.StatusCode(), ctx.Response.Body())
	}
	if product := decode(t, ctx)["product"].(map[string]interface{}); product["slug"] != "nanuk-906-compact-case" {
		t.Fatalf("renamed product = %v", product)
	}

	ctx = f.do("DELETE", "/api/products/"+id, "", adminToken)
	if ctx.Response.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("delete status = %d", ctx.Response.StatusCode())
	}

	ctx = f.do("GET", "/api/products/"+id, "", "")
	if ctx.Response.StatusCode() != fasthttp.StatusNotFound {
		t.Fatalf("deleted product status = %d", ctx.Response.StatusCode())
	}
}

func TestInquiries_SubmitRateLimitAndList(t *testing.T) {
	f := newFixture(t)

	for i := 0; i < 2; i++ {
		ctx := f.do("POST", "/api/inquiries", inquiryBody, "")
		if ctx.Response.StatusCode() != fasthttp.StatusCreated {
			t.Fatalf("submit %d status = %d: %s", i, ctx.Response.StatusCode(), ctx.Response.Body())
		}
		body := decode(t, ctx)
		if body["message"] != "Inquiry submitted successfully (email notifications disabled)" || body["inquiryId"] == "" {
			t.Fatalf("submit body = %v", body)
		}
	}

	ctx := f.do("POST", "/api/inquiries", inquiryBody, "")
	if ctx.Response.StatusCode() != fasthttp.StatusTooManyRequests {
		t.Fatalf("third submit status = %d", ctx.Response.StatusCode())
	}
	if got := string(ctx.Response.Header.Peek("Retry-After")); got != "900" {
		t.Fatalf("Retry-After = %q", got)
	}
	if body := decode(t, ctx); body["error"] != "Rate limit exceeded. Try again in 900 seconds." {
		t.Fatalf("rate limit body = %v", body)
	}

	ctx = f.do("POST", "/api/contact", inquiryBody, "")
	if ctx.Response.StatusCode() != fasthttp.StatusCreated {
		t.Fatalf("contact uses its own limiter, status = %d", ctx.Response.StatusCode())
	}

	ctx = f.do("POST", "/api/contact", `{"name":"J","email":"bad"}`, "")
	if ctx.Response.StatusCode() != fasthttp.StatusBadRequest {
		t.Fatalf("invalid contact status = %d", ctx.Response.StatusCode())
	}

	ctx = f.do("GET", "/api/inquiries", "", "")
	if ctx.Response.StatusCode() != fasthttp.StatusUnauthorized {
		t.Fatalf("unauthenticated listing status = %d", ctx.Response.StatusCode())
	}

	ctx = f.do("GET", "/api/inquiries?status=new&limit=10", "", adminToken)
	if ctx.Response.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("listing status = %d: %s", ctx.Response.StatusCode(), ctx.Response.Body())
	}
	body := decode(t, ctx)
	if total := body["pagination"].(map[string]interface{})["total"]; total != float64(3) {
		t.Fatalf("total = %v", total)
	}
	first := body["inquiries"].([]interface{})[0].(map[string]interface{})
	if first["ipAddress"] != "198.51.100.7" {
		t.Fatalf("stored ip = %v", first["ipAddress"])
	}
}

func TestSubmissions_SkipGlobalAPILimiter(t *testing.T) {
	f := newFixture(t, func(cfg *types.ServiceConfig) {
		cfg.RateLimit.Limiters[ratelimit.LimiterAPI] = types.LimiterConfig{Window: time.Minute, MaxRequests: 1}
	})

	for i := 0; i < 2; i++ {
		ctx := f.do("POST", "/api/inquiries", inquiryBody, "")
		if ctx.Response.StatusCode() != fasthttp.StatusCreated {
			t.Fatalf("submit %d status = %d: %s", i, ctx.Response.StatusCode(), ctx.Response.Body())
		}
		if limit := ctx.Response.Header.Peek("X-RateLimit-Limit"); len(limit) != 0 {
			t.Fatalf("submission was charged to the api limiter too (limit %s)", limit)
		}
	}

	ctx := f.do("GET", "/api/products", "", "")
	if ctx.Response.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("first listing status = %d", ctx.Response.StatusCode())
	}
	if got := string(ctx.Response.Header.Peek("X-RateLimit-Remaining")); got != "0" {
		t.Fatalf("X-RateLimit-Remaining = %q", got)
	}

	ctx = f.do("GET", "/api/products", "", "")
	if ctx.Response.StatusCode() != fasthttp.StatusTooManyRequests {
		t.Fatalf("second listing status = %d", ctx.Response.StatusCode())
	}
}

func TestContact_Status(t *testing.T) {
	f := newFixture(t)

	ctx := f.do("GET", "/api/contact", "", "")
	body := decode(t, ctx)
	if body["message"] != "Contact API endpoint is working" || body["timestamp"] != "2026-03-01T12:00:00Z" {
		t.Fatalf("status body = %v", body)
	}
}

func TestCache_AdminClear(t *testing.T) {
	f := newFixture(t)

	f.cache.Set("products:{}", "a", types.DefaultTTL)
	f.cache.Set("products:{\"featured\":true}", "b", types.DefaultTTL)
	f.cache.Set("categories", "c", types.DefaultTTL)

	ctx := f.do("DELETE", "/api/cache", "", "")
	if ctx.Response.StatusCode() != fasthttp.StatusUnauthorized {
		t.Fatalf("unauthenticated clear status = %d", ctx.Response.StatusCode())
	}

	ctx = f.do("DELETE", "/api/cache?prefix=products:", "", adminToken)
	if removed := decode(t, ctx)["removed"]; removed != float64(2) {
		t.Fatalf("prefix removed = %v", removed)
	}
	if f.cache.Len() != 1 {
		t.Fatalf("cache len after prefix clear = %d", f.cache.Len())
	}

	ctx = f.do("DELETE", "/api/cache", "", adminToken)
	if removed := decode(t, ctx)["removed"]; removed != float64(1) {
		t.Fatalf("full clear removed = %v", removed)
	}
	if f.cache.Len() != 0 {
		t.Fatalf("cache not empty")
	}
}
