package server

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"log"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/crypto/acme/autocert"
)

// TLSOptions selects how SetupTLS finds a certificate.
type TLSOptions struct {
	Domain       string // Let's Encrypt when set
	CertFile     string
	KeyFile      string
	CertDir      string   // self-signed pair and autocert cache live here
	Hosts        []string // extra SANs for the self-signed cert
	Organization string
}

// TLSResult holds the TLS config and optional autocert manager.
type TLSResult struct {
	Config      *tls.Config
	AutocertMgr *autocert.Manager // non-nil when using Let's Encrypt
}

const selfSignedLifetime = 365 * 24 * time.Hour

func certConfig(cert tls.Certificate) *tls.Config {
	return &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12}
}

// SetupTLS picks Let's Encrypt when a domain is configured, then an
// operator-supplied pair, then a self-signed pair kept in CertDir. The
// telnet TLS port and the web server share it.
func SetupTLS(opts TLSOptions) (*TLSResult, error) {
	switch {
	case opts.Domain != "":
		log.Printf("tls: using Let's Encrypt for domain %q", opts.Domain)
		cacheDir := filepath.Join(opts.CertDir, "autocert-cache")
		if err := os.MkdirAll(cacheDir, 0o700); err != nil {
			return nil, fmt.Errorf("creating autocert cache dir: %w", err)
		}
		m := &autocert.Manager{
			Prompt:     autocert.AcceptTOS,
			HostPolicy: autocert.HostWhitelist(opts.Domain),
			Cache:      autocert.DirCache(cacheDir),
		}
		return &TLSResult{Config: m.TLSConfig(), AutocertMgr: m}, nil

	case opts.CertFile != "" && opts.KeyFile != "":
		log.Printf("tls: loading cert %s, key %s", opts.CertFile, opts.KeyFile)
		cert, err := tls.LoadX509KeyPair(opts.CertFile, opts.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("loading TLS cert: %w", err)
		}
		return &TLSResult{Config: certConfig(cert)}, nil
	}

	cert, err := selfSigned(opts)
	if err != nil {
		return nil, err
	}
	return &TLSResult{Config: certConfig(cert)}, nil
}

// selfSigned loads the pair in CertDir, or writes a fresh one when it is
// missing or has expired.
func selfSigned(opts TLSOptions) (tls.Certificate, error) {
	if err := os.MkdirAll(opts.CertDir, 0o700); err != nil {
		return tls.Certificate{}, fmt.Errorf("creating cert dir: %w", err)
	}
	certPath := filepath.Join(opts.CertDir, "self-signed.crt")
	keyPath := filepath.Join(opts.CertDir, "self-signed.key")

	if cert, err := tls.LoadX509KeyPair(certPath, keyPath); err == nil {
		if leaf, err := x509.ParseCertificate(cert.Certificate[0]); err == nil && time.Now().Before(leaf.NotAfter) {
			log.Printf("tls: using self-signed cert in %s (expires %s)", opts.CertDir, leaf.NotAfter.Format("2006-01-02"))
			return cert, nil
		}
		log.Printf("tls: self-signed cert in %s has expired, replacing it", opts.CertDir)
	}

	certPEM, keyPEM, err := newSelfSignedPair(opts, time.Now())
	if err != nil {
		return tls.Certificate{}, err
	}
	if err := os.WriteFile(certPath, certPEM, 0o644); err != nil {
		return tls.Certificate{}, fmt.Errorf("writing cert: %w", err)
	}
	if err := os.WriteFile(keyPath, keyPEM, 0o600); err != nil {
		return tls.Certificate{}, fmt.Errorf("writing key: %w", err)
	}
	log.Printf("tls: self-signed cert written to %s", opts.CertDir)
	return tls.X509KeyPair(certPEM, keyPEM)
}

// newSelfSignedPair returns PEM-encoded cert and key valid from now.
func newSelfSignedPair(opts TLSOptions, now time.Time) (certPEM, keyPEM []byte, err error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("generating key: %w", err)
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, nil, fmt.Errorf("generating serial: %w", err)
	}

	org := opts.Organization
	if org == "" {
		org = "ChronicleMUSH"
	}
	tmpl := x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{Organization: []string{org}, CommonName: "localhost"},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(selfSignedLifetime),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1"), net.IPv6loopback},
		DNSNames:              []string{"localhost"},
	}
	for _, h := range opts.Hosts {
		if ip := net.ParseIP(h); ip != nil {
			tmpl.IPAddresses = append(tmpl.IPAddresses, ip)
		} else if h != "" {
			tmpl.DNSNames = append(tmpl.DNSNames, h)
		}
	}

	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &key.PublicKey, key)
	if err != nil {
		return nil, nil, fmt.Errorf("creating certificate: %w", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return nil, nil, fmt.Errorf("marshaling key: %w", err)
	}
	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	return certPEM, keyPEM, nil
}
