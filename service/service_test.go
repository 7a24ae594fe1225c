package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/saiset-co/catalog-service/cache"
	"github.com/saiset-co/catalog-service/catalog"
	"github.com/saiset-co/catalog-service/config"
	"github.com/saiset-co/catalog-service/kvstore"
	"github.com/saiset-co/catalog-service/types"
	"github.com/saiset-co/catalog-service/utils"
)

func testConfig(t *testing.T) *types.ServiceConfig {
	t.Helper()

	cfg := config.NewLoader().Defaults()
	cfg.Environment = "test"
	cfg.Logger.Level = "error"
	cfg.Server.HTTP.Host = "127.0.0.1"
	cfg.Server.HTTP.Port = 0
	cfg.Database.Path = filepath.Join(t.TempDir(), "catalog")
	cfg.Database.Seed = true
	return cfg
}

func TestService_StartServeStop(t *testing.T) {
	svc, err := New(context.Background(), config.NewStatic(testConfig(t)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	runErr := make(chan error, 1)
	go func() { runErr <- svc.Start() }()

	deadline := time.Now().Add(5 * time.Second)
	for !svc.IsRunning() {
		if time.Now().After(deadline) {
			t.Fatal("service did not reach running state")
		}
		time.Sleep(10 * time.Millisecond)
	}

	base := "http://" + svc.Address()

	status, body, err := fasthttp.Get(nil, base+"/api/health")
	if err != nil {
		t.Fatalf("GET /api/health: %v", err)
	}
	if status != fasthttp.StatusOK {
		t.Fatalf("health status = %d, body %s", status, body)
	}

	var report types.HealthReport
	if err := utils.Unmarshal(body, &report); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	for _, name := range []string{"database", "cache"} {
		if report.Checks[name].Status != types.StatusHealthy {
			t.Errorf("check %s = %+v", name, report.Checks[name])
		}
	}

	status, body, err = fasthttp.Get(nil, base+"/api/products?limit=50")
	if err != nil {
		t.Fatalf("GET /api/products: %v", err)
	}
	if status != fasthttp.StatusOK {
		t.Fatalf("products status = %d, body %s", status, body)
	}

	var list types.ProductList
	if err := utils.Unmarshal(body, &list); err != nil {
		t.Fatalf("decode products: %v", err)
	}
	if list.Pagination.Total != int64(len(catalog.SampleProducts)) {
		t.Errorf("total = %d, want %d", list.Pagination.Total, len(catalog.SampleProducts))
	}

	if err := svc.Start(); !types.IsError(err, types.ErrServiceIsRunning) {
		t.Errorf("second Start = %v, want ErrServiceIsRunning", err)
	}

	if err := svc.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	select {
	case <-svc.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("service did not stop")
	}

	select {
	case err := <-runErr:
		if err != nil {
			t.Fatalf("Start returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return")
	}

	if svc.IsRunning() {
		t.Error("service still reports running")
	}
	if err := svc.Stop(); !types.IsError(err, types.ErrServiceIsNotRunning) {
		t.Errorf("second Stop = %v, want ErrServiceIsNotRunning", err)
	}
}

func TestNewService_MissingConfig(t *testing.T) {
	if _, err := NewService(context.Background(), ""); !types.IsError(err, types.ErrConfigInvalidPath) {
		t.Errorf("empty path = %v", err)
	}
	if _, err := NewService(context.Background(), filepath.Join(t.TempDir(), "missing.yml")); err == nil {
		t.Error("missing file should fail")
	}
}

func TestBuildComponents_CronJobs(t *testing.T) {
	cfg := testConfig(t)
	cfg.Cron.Jobs = map[string]string{
		jobCacheCleanup:  "0 */10 * * * *",
		jobCatalogWarmup: "0 0 * * * *",
		"reindex":        "0 0 3 * * *",
	}

	c, err := buildComponents(context.Background(), config.NewStatic(cfg))
	if err != nil {
		t.Fatalf("buildComponents: %v", err)
	}

	var names []string
	for _, info := range c.cron.Jobs() {
		names = append(names, info.Name)
	}
	if len(names) != 2 {
		t.Fatalf("jobs = %v, want cache_cleanup and catalog_warmup", names)
	}
	if c.sweepsLimiters() {
		t.Error("limiter sweep is not scheduled")
	}

	var hasLimiters bool
	for _, m := range c.backgroundManagers() {
		if m.name == "rate limiters" {
			hasLimiters = true
		}
	}
	if !hasLimiters {
		t.Error("limiters must run their own sweep when cron does not")
	}

	if c.store != nil {
		t.Errorf("store = %v, want nil with persistence disabled", c.store)
	}
}

func TestBuildComponents_CronOwnsSweep(t *testing.T) {
	c, err := buildComponents(context.Background(), config.NewStatic(testConfig(t)))
	if err != nil {
		t.Fatalf("buildComponents: %v", err)
	}
	if !c.sweepsLimiters() {
		t.Fatal("default config schedules ratelimit_sweep")
	}
	for _, m := range c.backgroundManagers() {
		if m.name == "rate limiters" {
			t.Error("limiters are swept by cron and should not start tickers")
		}
	}
}

func TestCheckers(t *testing.T) {
	ctx := context.Background()

	check := cacheChecker(cache.NewNoopCache())(ctx)
	if check.Status != types.StatusHealthy || check.Message != "Cache disabled" {
		t.Errorf("noop cache check = %+v", check)
	}

	store := kvstore.NewMemoryStore()
	_ = store.Set("catalog:products", "[]")
	check = storeChecker(store)(ctx)
	if check.Status != types.StatusHealthy || check.Details["keys"] != 1 {
		t.Errorf("store check = %+v", check)
	}
}
