package tlscert

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"os"
)

type fileManager struct {
	cfg    Config
	logger *slog.Logger
}

func newFileManager(cfg Config, logger *slog.Logger) (Manager, error) {
	if cfg.CertFile == "" {
		return nil, fmt.Errorf("tls_cert_file is required when tls_cert_mode=file")
	}
	if cfg.KeyFile == "" {
		return nil, fmt.Errorf("tls_key_file is required when tls_cert_mode=file")
	}

	for name, path := range map[string]string{"certificate": cfg.CertFile, "key": cfg.KeyFile} {
		if err := checkRegularFile(path); err != nil {
			return nil, fmt.Errorf("invalid %s file: %w", name, err)
		}
	}
	if err := checkKeyFilePermissions(cfg.KeyFile); err != nil {
		return nil, fmt.Errorf("insecure key file permissions: %w", err)
	}

	// Load once up front so a broken pair fails startup, not the first
	// handshake.
	if _, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile); err != nil {
		return nil, fmt.Errorf("failed to load certificate: %w", err)
	}

	return &fileManager{cfg: cfg, logger: logger}, nil
}

func (m *fileManager) GetTLSConfig() (*tls.Config, error) {
	return &tls.Config{
		MinVersion: MinTLSVersion,
		// Reloading per handshake picks up rotated certificates without a
		// restart.
		GetCertificate: func(*tls.ClientHelloInfo) (*tls.Certificate, error) {
			cert, err := tls.LoadX509KeyPair(m.cfg.CertFile, m.cfg.KeyFile)
			if err != nil {
				m.logger.Error("failed to reload certificate",
					slog.String("cert_file", m.cfg.CertFile),
					slog.String("error", err.Error()))
				return nil, err
			}
			return &cert, nil
		},
	}, nil
}

func (m *fileManager) Description() string {
	return fmt.Sprintf("file-based (cert=%s, key=%s)", m.cfg.CertFile, m.cfg.KeyFile)
}

func (m *fileManager) Shutdown() error {
	return nil
}

func checkRegularFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("file not accessible: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("path is a directory, not a file")
	}
	if info.Size() == 0 {
		return fmt.Errorf("file is empty")
	}
	return nil
}

func checkKeyFilePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode&0077 != 0 {
		return fmt.Errorf("key file has insecure permissions %o (should be 0600 or 0400)", mode)
	}
	return nil
}
