package metrics

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/saiset-co/catalog-service/config"
	"github.com/saiset-co/catalog-service/logger"
	"github.com/saiset-co/catalog-service/server"
	"github.com/saiset-co/catalog-service/types"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()

	cfg := config.NewStatic(&types.ServiceConfig{
		Metrics: &types.MetricsConfig{
			Enabled: true,
			Type:    "prometheus",
			Config:  map[string]interface{}{"enable_go_metrics": false},
		},
	})

	m, err := NewManager(context.Background(), cfg, logger.NewNop())
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func TestManager_NoopUntilStarted(t *testing.T) {
	m := newTestManager(t)

	c := m.Counter("requests_total", map[string]string{"result": "ok"})
	c.Inc()
	if c.Get() != 0 {
		t.Fatalf("counter recorded before start")
	}

	if err := m.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer m.Stop()

	c = m.Counter("requests_total", map[string]string{"result": "ok"})
	c.Inc()
	c.Add(2)
	if got := m.Counter("requests_total", map[string]string{"result": "ok"}).Get(); got != 3 {
		t.Fatalf("counter = %v, want 3", got)
	}
	if got := m.Counter("requests_total", map[string]string{"result": "error"}).Get(); got != 0 {
		t.Fatalf("other label set = %v, want 0", got)
	}
}

func TestPrometheus_GaugeAndHistogram(t *testing.T) {
	p, err := NewPrometheusMetrics(logger.NewNop(), &types.MetricsConfig{
		Config: map[string]interface{}{"enable_go_metrics": false},
	})
	if err != nil {
		t.Fatalf("new prometheus: %v", err)
	}

	g := p.Gauge("cache_entries", map[string]string{"backend": "memory"})
	g.Set(10)
	g.Dec()
	if g.Get() != 9 {
		t.Fatalf("gauge = %v, want 9", g.Get())
	}

	h := p.Histogram("op_seconds", []float64{0.1, 1}, map[string]string{"op": "get"})
	h.Observe(0.5)
	h.ObserveDuration(time.Now())
	if h.GetCount() != 2 {
		t.Fatalf("histogram count = %d, want 2", h.GetCount())
	}

	families, err := p.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	names := map[string]bool{}
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	if !names["catalog_cache_entries"] || !names["catalog_op_seconds"] {
		t.Fatalf("missing families: %v", names)
	}
}

func TestNewManager_Disabled(t *testing.T) {
	cfg := config.NewStatic(&types.ServiceConfig{Metrics: &types.MetricsConfig{Enabled: false}})

	if _, err := NewManager(context.Background(), cfg, logger.NewNop()); !errors.Is(err, types.ErrMetricsIsDisabled) {
		t.Fatalf("expected ErrMetricsIsDisabled, got %v", err)
	}
}

func TestPrometheus_RegisterRoutes(t *testing.T) {
	p, err := NewPrometheusMetrics(logger.NewNop(), &types.MetricsConfig{
		Config: map[string]interface{}{"enable_go_metrics": false},
	})
	if err != nil {
		t.Fatalf("new prometheus: %v", err)
	}
	p.Counter("requests_total", map[string]string{"route": "/api/products"}).Inc()

	router := server.NewRouter(nil, logger.NewNop())
	p.RegisterRoutes(router)

	if _, ok := router.GetAllRoutes()["GET:/metrics"]; !ok {
		t.Fatalf("metrics route not registered: %v", router.GetAllRoutes())
	}

	var ctx fasthttp.RequestCtx
	ctx.Request.Header.SetMethod(fasthttp.MethodGet)
	ctx.Request.SetRequestURI("/metrics")
	router.Handler(&ctx)

	if ctx.Response.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("GET /metrics = %d", ctx.Response.StatusCode())
	}
	if body := string(ctx.Response.Body()); !strings.Contains(body, "catalog_requests_total") {
		t.Fatalf("exposition missing counter:\n%s", body)
	}
}
