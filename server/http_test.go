package server

import (
	"context"
	"errors"
	"testing"

	"github.com/valyala/fasthttp"

	"github.com/saiset-co/catalog-service/config"
	"github.com/saiset-co/catalog-service/logger"
	"github.com/saiset-co/catalog-service/types"
)

func TestHTTPServer_StartServeStop(t *testing.T) {
	cfg := config.NewStatic(&types.ServiceConfig{
		Server: &types.ServerConfig{HTTP: &types.HTTPConfig{Host: "127.0.0.1", Port: 0, ShutdownTimeout: 2}},
	})

	r := NewRouter(nil, logger.NewNop())
	r.GET("/ping", writeBody("pong"))

	srv, err := NewHTTPServer(context.Background(), cfg, logger.NewNop(), r)
	if err != nil {
		t.Fatalf("NewHTTPServer: %v", err)
	}
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !srv.IsRunning() {
		t.Fatalf("server not running after Start")
	}
	if err := srv.Start(); !errors.Is(err, types.ErrServerAlreadyRunning) {
		t.Fatalf("second Start = %v", err)
	}

	status, body, err := fasthttp.Get(nil, "http://"+srv.Address()+"/ping")
	if err != nil {
		t.Fatalf("GET /ping: %v", err)
	}
	if status != fasthttp.StatusOK || string(body) != "pong" {
		t.Fatalf("GET /ping = %d %q", status, body)
	}

	if err := srv.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if srv.IsRunning() {
		t.Fatalf("server still running after Stop")
	}
	if err := srv.Stop(); !errors.Is(err, types.ErrServerNotRunning) {
		t.Fatalf("second Stop = %v", err)
	}
}

func TestHTTPServer_RequiresHTTPConfig(t *testing.T) {
	_, err := NewHTTPServer(context.Background(), config.NewStatic(&types.ServiceConfig{}), logger.NewNop(), nil)
	if !errors.Is(err, types.ErrConfigIsNil) {
		t.Fatalf("err = %v", err)
	}
}
