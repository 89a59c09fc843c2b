// Package credential loads the certificate and private key used to sign
// contract PDFs.
package credential

import (
	"context"
	"crypto"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"sync"

	"golang.org/x/crypto/pkcs12"

	"contractapi/internal/apperr"
	"contractapi/internal/config"
)

// Credential is a signing key with its certificate chain.
type Credential struct {
	Certificate *x509.Certificate
	Chain       []*x509.Certificate
	Signer      crypto.Signer
}

// Provider returns the configured credential, or nil when signing is disabled.
type Provider interface {
	Credential(ctx context.Context) (*Credential, error)
}

// None is a Provider with signing disabled.
type None struct{}

func (None) Credential(context.Context) (*Credential, error) { return nil, nil }

// FileProvider loads a PKCS#12 bundle or a PEM certificate/key pair once and
// caches the result. A configured but unreadable credential is an error, not
// a silent fallback to unsigned output.
type FileProvider struct {
	cfg config.SigningConfig

	once sync.Once
	cred *Credential
	err  error
}

func NewFileProvider(cfg config.SigningConfig) *FileProvider {
	return &FileProvider{cfg: cfg}
}

// Configured reports whether any credential source is set.
func (p *FileProvider) Configured() bool {
	return p.cfg.P12Path != "" || (p.cfg.CertPath != "" && p.cfg.KeyPath != "")
}

func (p *FileProvider) Credential(ctx context.Context) (*Credential, error) {
	if !p.Configured() {
		return nil, nil
	}
	p.once.Do(func() {
		if p.cfg.P12Path != "" {
			p.cred, p.err = loadPKCS12(p.cfg.P12Path, p.cfg.P12Password)
		} else {
			p.cred, p.err = loadPEM(p.cfg.CertPath, p.cfg.KeyPath)
		}
		if p.err != nil {
			p.err = apperr.DependencyUnavailable("signing credential", p.err)
		}
	})
	return p.cred, p.err
}

func loadPKCS12(path, password string) (*Credential, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read p12: %w", err)
	}
	key, cert, err := pkcs12.Decode(raw, password)
	if err != nil {
		return nil, fmt.Errorf("decode p12: %w", err)
	}
	signer, ok := key.(crypto.Signer)
	if !ok {
		return nil, errors.New("p12 private key cannot sign")
	}
	return &Credential{Certificate: cert, Signer: signer}, nil
}

func loadPEM(certPath, keyPath string) (*Credential, error) {
	pair, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("load pem pair: %w", err)
	}
	return FromTLS(pair)
}

// FromTLS converts a parsed key pair. The first certificate is the leaf; the
// rest become the chain.
func FromTLS(pair tls.Certificate) (*Credential, error) {
	if len(pair.Certificate) == 0 {
		return nil, errors.New("no certificate in pair")
	}
	signer, ok := pair.PrivateKey.(crypto.Signer)
	if !ok {
		return nil, errors.New("private key cannot sign")
	}
	certs := make([]*x509.Certificate, 0, len(pair.Certificate))
	for _, der := range pair.Certificate {
		c, err := x509.ParseCertificate(der)
		if err != nil {
			return nil, fmt.Errorf("parse certificate: %w", err)
		}
		certs = append(certs, c)
	}
	return &Credential{Certificate: certs[0], Chain: certs[1:], Signer: signer}, nil
}

// Static is a Provider around an already loaded credential.
type Static struct{ Cred *Credential }

func (s Static) Credential(context.Context) (*Credential, error) { return s.Cred, nil }
