// Package tlscert provides the server's TLS certificate sources: operator
// supplied cert/key files, or a generated self-signed pair for local use.
package tlscert

import (
	"crypto/tls"
	"fmt"
	"log/slog"
)

// CertMode selects where the server certificate comes from.
type CertMode string

const (
	CertModeFile       CertMode = "file"
	CertModeSelfSigned CertMode = "selfsigned"
)

// Config holds certificate source settings. CertFile and KeyFile apply to
// file mode; the SelfSigned fields apply to selfsigned mode.
type Config struct {
	Mode CertMode

	CertFile string
	KeyFile  string

	SelfSignedCertDir string
	SelfSignedHosts   []string
}

// Manager hands the HTTP server its tls.Config and describes where the
// certificate came from.
type Manager interface {
	GetTLSConfig() (*tls.Config, error)
	Description() string
	Shutdown() error
}

// NewManager builds the manager for the configured certificate mode.
func NewManager(cfg Config, logger *slog.Logger) (Manager, error) {
	switch cfg.Mode {
	case CertModeFile:
		return newFileManager(cfg, logger)
	case CertModeSelfSigned:
		return newSelfSignedManager(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported TLS certificate mode: %s (valid modes: file, selfsigned)", cfg.Mode)
	}
}

// MinTLSVersion is the floor for every listener this package configures.
const MinTLSVersion = tls.VersionTLS13
