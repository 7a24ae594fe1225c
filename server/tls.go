package server

import (
	"crypto/tls"
	"crypto/x509"
	"os"
	"time"

	"golang.org/x/crypto/acme"
	"golang.org/x/crypto/acme/autocert"

	"github.com/saiset-co/catalog-service/types"
)

const defaultCertCacheDir = "./certs"

var cipherSuites = []uint16{
	tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
	tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
	tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
}

// newTLSConfig returns nil when TLS is off. With auto_cert the certificates
// come from ACME via the TLS-ALPN challenge, so no port 80 listener is needed.
func newTLSConfig(config *types.TLSConfig, now func() time.Time) (*tls.Config, error) {
	if config == nil || !config.Enabled {
		return nil, nil
	}

	if config.AutoCert {
		return autocertConfig(config)
	}

	if config.CertFile == "" || config.KeyFile == "" {
		return nil, types.Errorf(types.ErrTLSConfigInvalid, "cert_file and key_file are required without auto_cert")
	}

	cert, err := tls.LoadX509KeyPair(config.CertFile, config.KeyFile)
	if err != nil {
		return nil, types.Errorf(types.ErrTLSConfigInvalid, "load key pair: %v", err)
	}

	if err := validateCertificate(cert, now()); err != nil {
		return nil, err
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
		CipherSuites: cipherSuites,
	}, nil
}

func autocertConfig(config *types.TLSConfig) (*tls.Config, error) {
	if len(config.Domains) == 0 {
		return nil, types.Errorf(types.ErrTLSConfigInvalid, "no domains specified for auto_cert")
	}

	cacheDir := config.CacheDir
	if cacheDir == "" {
		cacheDir = defaultCertCacheDir
	}
	if err := os.MkdirAll(cacheDir, 0700); err != nil {
		return nil, types.WrapError(err, "failed to create certificate cache directory")
	}

	manager := &autocert.Manager{
		Cache:      autocert.DirCache(cacheDir),
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(config.Domains...),
		Email:      config.Email,
	}
	if config.ACMEDirectory != "" {
		manager.Client = &acme.Client{DirectoryURL: config.ACMEDirectory}
	}

	tlsConfig := manager.TLSConfig()
	tlsConfig.MinVersion = tls.VersionTLS12
	tlsConfig.CipherSuites = cipherSuites

	return tlsConfig, nil
}

func validateCertificate(cert tls.Certificate, now time.Time) error {
	x509Cert, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return types.Errorf(types.ErrTLSConfigInvalid, "parse certificate: %v", err)
	}

	if now.Before(x509Cert.NotBefore) {
		return types.Errorf(types.ErrTLSConfigInvalid, "certificate not valid before %s", x509Cert.NotBefore)
	}
	if now.After(x509Cert.NotAfter) {
		return types.Errorf(types.ErrTLSConfigInvalid, "certificate expired at %s", x509Cert.NotAfter)
	}

	return nil
}
