package server

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/valyala/fasthttp"
	"golang.org/x/crypto/acme"

	"github.com/saiset-co/catalog-service/config"
	"github.com/saiset-co/catalog-service/logger"
	"github.com/saiset-co/catalog-service/types"
)

// writeSelfSigned writes a localhost certificate valid for a day around now.
func writeSelfSigned(t *testing.T, now time.Time) (certFile, keyFile string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "localhost"},
		DNSNames:     []string{"localhost"},
		NotBefore:    now.Add(-12 * time.Hour),
		NotAfter:     now.Add(12 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("CreateCertificate: %v", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("MarshalECPrivateKey: %v", err)
	}

	dir := t.TempDir()
	certFile = filepath.Join(dir, "cert.pem")
	keyFile = filepath.Join(dir, "key.pem")

	if err := os.WriteFile(certFile, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(keyFile, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0600); err != nil {
		t.Fatal(err)
	}

	return certFile, keyFile
}

func TestHTTPServer_ServesTLS(t *testing.T) {
	certFile, keyFile := writeSelfSigned(t, time.Now())

	cfg := config.NewStatic(&types.ServiceConfig{
		Server: &types.ServerConfig{
			HTTP: &types.HTTPConfig{Host: "127.0.0.1", Port: 0, ShutdownTimeout: 2},
			TLS:  &types.TLSConfig{Enabled: true, CertFile: certFile, KeyFile: keyFile},
		},
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
	defer func() { _ = srv.Stop() }()

	client := &fasthttp.Client{TLSConfig: &tls.Config{InsecureSkipVerify: true}}
	status, body, err := client.Get(nil, "https://"+srv.Address()+"/ping")
	if err != nil {
		t.Fatalf("GET https /ping: %v", err)
	}
	if status != fasthttp.StatusOK || string(body) != "pong" {
		t.Fatalf("GET /ping = %d %q", status, body)
	}
}

func TestNewTLSConfig(t *testing.T) {
	now := time.Now()
	certFile, keyFile := writeSelfSigned(t, now)

	if cfg, err := newTLSConfig(nil, time.Now); cfg != nil || err != nil {
		t.Fatalf("nil config = %v, %v", cfg, err)
	}
	if cfg, err := newTLSConfig(&types.TLSConfig{CertFile: certFile, KeyFile: keyFile}, time.Now); cfg != nil || err != nil {
		t.Fatalf("disabled config = %v, %v", cfg, err)
	}

	_, err := newTLSConfig(&types.TLSConfig{Enabled: true}, time.Now)
	if !errors.Is(err, types.ErrTLSConfigInvalid) {
		t.Fatalf("missing files = %v", err)
	}

	expired := func() time.Time { return now.Add(48 * time.Hour) }
	_, err = newTLSConfig(&types.TLSConfig{Enabled: true, CertFile: certFile, KeyFile: keyFile}, expired)
	if !errors.Is(err, types.ErrTLSConfigInvalid) {
		t.Fatalf("expired certificate = %v", err)
	}

	_, err = newTLSConfig(&types.TLSConfig{Enabled: true, AutoCert: true}, time.Now)
	if !errors.Is(err, types.ErrTLSConfigInvalid) {
		t.Fatalf("auto_cert without domains = %v", err)
	}

	auto, err := newTLSConfig(&types.TLSConfig{
		Enabled:  true,
		AutoCert: true,
		Domains:  []string{"catalog.example.com"},
		CacheDir: filepath.Join(t.TempDir(), "certs"),
	}, time.Now)
	if err != nil {
		t.Fatalf("auto_cert: %v", err)
	}
	if auto.GetCertificate == nil || !slices.Contains(auto.NextProtos, acme.ALPNProto) {
		t.Fatalf("auto_cert config must answer TLS-ALPN challenges: %+v", auto.NextProtos)
	}
}
