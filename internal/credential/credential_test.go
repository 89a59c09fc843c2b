package credential

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contractapi/internal/apperr"
	"contractapi/internal/config"
)

func writePEMPair(t *testing.T) (certPath, keyPath string) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "Contract Signer"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	dir := t.TempDir()
	certPath = filepath.Join(dir, "cert.pem")
	keyPath = filepath.Join(dir, "key.pem")
	require.NoError(t, os.WriteFile(certPath, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600))
	require.NoError(t, os.WriteFile(keyPath, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0o600))
	return certPath, keyPath
}

func TestFileProvider_NotConfigured(t *testing.T) {
	p := NewFileProvider(config.SigningConfig{})
	assert.False(t, p.Configured())

	cred, err := p.Credential(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, cred)
}

func TestFileProvider_PEM(t *testing.T) {
	certPath, keyPath := writePEMPair(t)
	p := NewFileProvider(config.SigningConfig{CertPath: certPath, KeyPath: keyPath})

	cred, err := p.Credential(context.Background())
	require.NoError(t, err)
	require.NotNil(t, cred)
	assert.Equal(t, "Contract Signer", cred.Certificate.Subject.CommonName)
	assert.NotNil(t, cred.Signer)
	assert.Empty(t, cred.Chain)

	again, err := p.Credential(context.Background())
	require.NoError(t, err)
	assert.Same(t, cred, again)
}

func TestFileProvider_BrokenConfiguration(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.SigningConfig
	}{
		{name: "missing p12", cfg: config.SigningConfig{P12Path: filepath.Join(t.TempDir(), "nope.p12")}},
		{name: "garbage p12", cfg: config.SigningConfig{P12Path: writeFile(t, "bad.p12", "not pkcs12")}},
		{name: "missing pem", cfg: config.SigningConfig{CertPath: "/nonexistent/cert.pem", KeyPath: "/nonexistent/key.pem"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cred, err := NewFileProvider(tt.cfg).Credential(context.Background())
			assert.Nil(t, cred)
			assert.ErrorIs(t, err, apperr.ErrDependencyUnavailable)
		})
	}
}

func TestNoneAndStatic(t *testing.T) {
	cred, err := None{}.Credential(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, cred)

	want := &Credential{}
	got, err := Static{Cred: want}.Credential(context.Background())
	assert.NoError(t, err)
	assert.Same(t, want, got)
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}
