// Package tls builds mutual TLS configurations for the forecaster's HTTP and
// gRPC listeners and for the client it uses to reach an external model server.
//
// Both sides require TLS 1.3 and verify the peer against a shared CA.
package tls

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
)

// Config holds certificate file paths. The same shape is used for servers
// and clients.
type Config struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
	CAFile   string `yaml:"ca_file"`
}

// Validate returns an error if TLS is enabled but a certificate file is
// missing or unreadable.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	return validateCertFiles(c.CertFile, c.KeyFile, c.CAFile)
}

// ServerConfig returns the server configuration for c, or nil when TLS is
// disabled.
func (c Config) ServerConfig() (*tls.Config, error) {
	if !c.Enabled {
		return nil, nil
	}
	return NewServerTLSConfig(c.CertFile, c.KeyFile, c.CAFile)
}

// ClientConfig returns the client configuration for c, or nil when TLS is
// disabled.
func (c Config) ClientConfig() (*tls.Config, error) {
	if !c.Enabled {
		return nil, nil
	}
	return NewClientTLSConfig(c.CertFile, c.KeyFile, c.CAFile)
}

// NewServerTLSConfig creates a server configuration that presents certFile
// and requires client certificates signed by caFile.
//
// The server certificate is loaded into the returned config so it can be
// used by listeners that do not take file paths (gRPC).
func NewServerTLSConfig(certFile, keyFile, caFile string) (*tls.Config, error) {
	if err := validateCertFiles(certFile, keyFile, caFile); err != nil {
		return nil, err
	}

	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("load server certificate: %w", err)
	}

	pool, err := loadCAPool(caFile)
	if err != nil {
		return nil, err
	}

	cfg := baseConfig()
	cfg.Certificates = []tls.Certificate{cert}
	cfg.ClientCAs = pool
	cfg.ClientAuth = tls.RequireAndVerifyClientCert
	return cfg, nil
}

// NewClientTLSConfig creates a client configuration that presents certFile
// and verifies the server against caFile.
func NewClientTLSConfig(certFile, keyFile, caFile string) (*tls.Config, error) {
	if err := validateCertFiles(certFile, keyFile, caFile); err != nil {
		return nil, err
	}

	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("load client certificate: %w", err)
	}

	pool, err := loadCAPool(caFile)
	if err != nil {
		return nil, err
	}

	cfg := baseConfig()
	cfg.Certificates = []tls.Certificate{cert}
	cfg.RootCAs = pool
	return cfg, nil
}

// TLS 1.3 cipher suites are not configurable in crypto/tls, so only the
// minimum version is pinned.
func baseConfig() *tls.Config {
	return &tls.Config{MinVersion: tls.VersionTLS13}
}

func loadCAPool(caFile string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("read CA certificate: %w", err)
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.New("failed to parse CA certificate")
	}
	return pool, nil
}

func validateCertFiles(certFile, keyFile, caFile string) error {
	files := []struct{ kind, path string }{
		{"certificate", certFile},
		{"key", keyFile},
		{"CA certificate", caFile},
	}

	for _, f := range files {
		if f.path == "" {
			return fmt.Errorf("tls enabled but %s file not specified", f.kind)
		}
		if _, err := os.Stat(f.path); err != nil {
			return fmt.Errorf("tls %s file %q: %w", f.kind, f.path, err)
		}
	}
	return nil
}
