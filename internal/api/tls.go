package api

import (
	"crypto/tls"
	"fmt"

	"github.com/AaronLay10/TitanMedia/internal/config"
)

const (
	EnvTLSCert = "TITAN_TLS_CERT"
	EnvTLSKey  = "TITAN_TLS_KEY"
)

// TLSConfig holds the certificate and key paths.
type TLSConfig struct {
	CertFile string
	KeyFile  string
}

var tlsConfig *TLSConfig

// InitTLS reads TITAN_TLS_CERT and TITAN_TLS_KEY (or their *_FILE forms).
// TLS is on only when both are set.
func InitTLS() error {
	tlsConfig = nil
	certFile, err := config.ResolveSecret(EnvTLSCert)
	if err != nil {
		return err
	}
	keyFile, err := config.ResolveSecret(EnvTLSKey)
	if err != nil {
		return err
	}
	if certFile != "" && keyFile != "" {
		tlsConfig = &TLSConfig{CertFile: certFile, KeyFile: keyFile}
	}
	return nil
}

// IsTLSEnabled returns true if TLS is configured.
func IsTLSEnabled() bool {
	return tlsConfig != nil && tlsConfig.CertFile != "" && tlsConfig.KeyFile != ""
}

// LoadTLSConfig loads the key pair. It returns nil when TLS is off.
func LoadTLSConfig() (*tls.Config, error) {
	if !IsTLSEnabled() {
		return nil, nil
	}
	cert, err := tls.LoadX509KeyPair(tlsConfig.CertFile, tlsConfig.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load TLS certificate: %w", err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}
