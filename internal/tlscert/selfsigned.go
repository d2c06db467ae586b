package tlscert

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"log/slog"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"
)

const selfSignedValidity = 365 * 24 * time.Hour

type selfSignedManager struct {
	cfg      Config
	logger   *slog.Logger
	certPath string
	keyPath  string
}

func newSelfSignedManager(cfg Config, logger *slog.Logger) (Manager, error) {
	if len(cfg.SelfSignedHosts) == 0 {
		cfg.SelfSignedHosts = []string{"localhost", "127.0.0.1", "::1"}
	}

	if err := os.MkdirAll(cfg.SelfSignedCertDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create certificate directory: %w", err)
	}
	certPath := filepath.Join(cfg.SelfSignedCertDir, "server.crt")
	keyPath := filepath.Join(cfg.SelfSignedCertDir, "server.key")

	// Reuse an existing pair only while it is valid and still covers the
	// configured hosts.
	reusable := fileExists(certPath) && fileExists(keyPath)
	if reusable {
		ok, err := validateSelfSignedCert(certPath, keyPath, cfg.SelfSignedHosts)
		if err != nil {
			return nil, err
		}
		reusable = ok
	}

	if reusable {
		logger.Info("using existing self-signed certificate",
			slog.String("cert_path", certPath))
	} else {
		logger.Info("generating self-signed certificate",
			slog.String("cert_path", certPath),
			slog.String("key_path", keyPath),
			slog.Any("hosts", cfg.SelfSignedHosts))
		if err := generateSelfSignedCert(certPath, keyPath, cfg.SelfSignedHosts); err != nil {
			return nil, fmt.Errorf("failed to generate self-signed certificate: %w", err)
		}
		logger.Warn("self-signed certificate generated - not suitable for production",
			slog.String("cert_path", certPath))
	}

	return &selfSignedManager{
		cfg:      cfg,
		logger:   logger,
		certPath: certPath,
		keyPath:  keyPath,
	}, nil
}

func (m *selfSignedManager) GetTLSConfig() (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(m.certPath, m.keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load self-signed certificate: %w", err)
	}
	return &tls.Config{
		MinVersion:   MinTLSVersion,
		Certificates: []tls.Certificate{cert},
	}, nil
}

func (m *selfSignedManager) Description() string {
	return fmt.Sprintf("self-signed (cert=%s) - DEV ONLY", m.certPath)
}

func (m *selfSignedManager) Shutdown() error {
	return nil
}

func generateSelfSignedCert(certPath, keyPath string, hosts []string) error {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return fmt.Errorf("failed to generate key: %w", err)
	}

	serialNumber, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return fmt.Errorf("failed to generate serial number: %w", err)
	}

	now := time.Now()
	template := x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			Organization: []string{"Bifrost GraphQL (Self-Signed)"},
			CommonName:   "localhost",
		},
		// Back-dated slightly so clocks a few minutes apart still accept it.
		NotBefore:             now.Add(-5 * time.Minute),
		NotAfter:              now.Add(selfSignedValidity),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}
	for _, host := range hosts {
		if ip := net.ParseIP(host); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else {
			template.DNSNames = append(template.DNSNames, host)
		}
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return fmt.Errorf("failed to create certificate: %w", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return fmt.Errorf("failed to marshal private key: %w", err)
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})
	if err := os.WriteFile(certPath, certPEM, 0644); err != nil {
		return fmt.Errorf("failed to write certificate: %w", err)
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	if err := os.WriteFile(keyPath, keyPEM, 0600); err != nil {
		return fmt.Errorf("failed to write private key: %w", err)
	}
	return nil
}

// validateSelfSignedCert reports whether the stored pair is loadable, inside
// its validity window, and covers exactly the requested hosts.
func validateSelfSignedCert(certPath, keyPath string, hosts []string) (bool, error) {
	certPEM, err := os.ReadFile(certPath)
	if err != nil {
		return false, fmt.Errorf("failed to read self-signed certificate: %w", err)
	}
	block, _ := pem.Decode(certPEM)
	if block == nil || block.Type != "CERTIFICATE" {
		return false, fmt.Errorf("invalid certificate PEM in %s", certPath)
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return false, fmt.Errorf("failed to parse self-signed certificate: %w", err)
	}

	now := time.Now()
	if now.Before(cert.NotBefore) || now.After(cert.NotAfter) {
		return false, nil
	}
	if !hostsMatchCertificate(cert, hosts) {
		return false, nil
	}
	if _, err := tls.LoadX509KeyPair(certPath, keyPath); err != nil {
		return false, nil
	}
	return true, nil
}

func hostsMatchCertificate(cert *x509.Certificate, hosts []string) bool {
	wantDNS := make(map[string]struct{})
	wantIPs := make(map[string]struct{})
	for _, host := range hosts {
		if ip := net.ParseIP(host); ip != nil {
			wantIPs[ip.String()] = struct{}{}
		} else {
			wantDNS[host] = struct{}{}
		}
	}

	if len(cert.DNSNames) != len(wantDNS) || len(cert.IPAddresses) != len(wantIPs) {
		return false
	}
	for _, name := range cert.DNSNames {
		if _, ok := wantDNS[name]; !ok {
			return false
		}
	}
	for _, ip := range cert.IPAddresses {
		if _, ok := wantIPs[ip.String()]; !ok {
			return false
		}
	}
	return true
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
