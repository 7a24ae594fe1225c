package health

import (
	"context"
	"testing"
	"time"

	"github.com/saiset-co/catalog-service/config"
	"github.com/saiset-co/catalog-service/logger"
	"github.com/saiset-co/catalog-service/types"
)

func newTestManager(t *testing.T, timeout time.Duration) *Manager {
	t.Helper()

	cfg := config.NewStatic(&types.ServiceConfig{
		Name:    "catalog-service",
		Version: "1.2.3",
		Server:  &types.ServerConfig{HTTP: &types.HTTPConfig{Host: "localhost", Port: 8080}},
		Health:  &types.HealthConfig{Enabled: true, Timeout: timeout},
	})

	m, err := NewManager(context.Background(), cfg, logger.NewNop(), nil)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func healthy(ctx context.Context) types.HealthCheck {
	return types.HealthCheck{Status: types.StatusHealthy}
}

func TestCheck_AllHealthy(t *testing.T) {
	m := newTestManager(t, time.Second)
	m.RegisterChecker("database", healthy)
	m.RegisterChecker("cache", healthy)

	report := m.Check(context.Background())

	if report.Status != types.StatusHealthy {
		t.Fatalf("status = %s", report.Status)
	}
	if report.Summary.Total != 2 || report.Summary.Healthy != 2 {
		t.Fatalf("summary = %+v", report.Summary)
	}
	if report.Checks["database"].Name != "database" {
		t.Fatalf("check name not set: %+v", report.Checks["database"])
	}
	if report.Service.Version != "1.2.3" {
		t.Fatalf("service info = %+v", report.Service)
	}
}

func TestCheck_UnhealthyPanicAndTimeout(t *testing.T) {
	m := newTestManager(t, 50*time.Millisecond)
	m.RegisterChecker("ok", healthy)
	m.RegisterChecker("panics", func(ctx context.Context) types.HealthCheck {
		panic("boom")
	})
	m.RegisterChecker("slow", func(ctx context.Context) types.HealthCheck {
		<-ctx.Done()
		time.Sleep(10 * time.Millisecond)
		return types.HealthCheck{Status: types.StatusHealthy}
	})

	report := m.Check(context.Background())

	if report.Status != types.StatusUnhealthy {
		t.Fatalf("status = %s, want unhealthy", report.Status)
	}
	if report.Checks["panics"].Status != types.StatusUnhealthy {
		t.Fatalf("panicking check = %+v", report.Checks["panics"])
	}
	if report.Checks["slow"].Status != types.StatusUnhealthy {
		t.Fatalf("slow check = %+v", report.Checks["slow"])
	}
	if report.Checks["ok"].Status != types.StatusHealthy {
		t.Fatalf("ok check = %+v", report.Checks["ok"])
	}
}

func TestCheck_UnknownDegradesStatus(t *testing.T) {
	m := newTestManager(t, time.Second)
	m.RegisterChecker("ok", healthy)
	m.RegisterChecker("kv", func(ctx context.Context) types.HealthCheck {
		return types.HealthCheck{Status: types.StatusUnknown, Message: "store not configured"}
	})

	if report := m.Check(context.Background()); report.Status != types.StatusUnknown {
		t.Fatalf("status = %s, want unknown", report.Status)
	}
}

func TestBuildInfoString(t *testing.T) {
	info := BuildInfo{Version: "1.0.0", Commit: "0123456789abcdef", GoVersion: "go1.24"}
	if got := info.String(); got != "1.0.0-0123456 (unknown, go1.24)" {
		t.Fatalf("got %q", got)
	}
}
