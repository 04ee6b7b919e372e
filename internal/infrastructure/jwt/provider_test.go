package jwtinfra

import (
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cropintel-api/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(t *testing.T) *Provider {
	t.Helper()
	p, err := NewEphemeralProvider(time.Hour, 5*time.Minute)
	require.NoError(t, err)
	return p
}

func TestSignVerify_RoundTrip(t *testing.T) {
	p := newTestProvider(t)

	tok, err := p.Sign("01HZX", "farmer_joe", "joe@example.com")
	require.NoError(t, err)

	claims, err := p.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "01HZX", claims.UserID)
	assert.Equal(t, "farmer_joe", claims.Handle)
	assert.Equal(t, "joe@example.com", claims.Email)
}

func TestVerify_RejectsOtherKey(t *testing.T) {
	a := newTestProvider(t)
	b := newTestProvider(t)

	tok, err := a.Sign("u", "h", "e@x.com")
	require.NoError(t, err)

	_, err = b.Verify(tok)
	assert.Error(t, err)
}

func TestVerify_RejectsExpired(t *testing.T) {
	p, err := NewEphemeralProvider(-time.Minute, time.Minute)
	require.NoError(t, err)
	tok, err := p.Sign("u", "h", "e@x.com")
	require.NoError(t, err)

	_, err = p.Verify(tok)
	assert.Error(t, err)
}

func TestReset_RoundTrip(t *testing.T) {
	p := newTestProvider(t)
	tok, err := p.SignReset("joe@example.com", 42, time.Now().Add(time.Minute))
	require.NoError(t, err)

	email, nonce, err := p.VerifyReset(tok)
	require.NoError(t, err)
	assert.Equal(t, "joe@example.com", email)
	assert.Equal(t, int64(42), nonce)
}

func TestReset_CappedByNotAfter(t *testing.T) {
	p := newTestProvider(t)
	tok, err := p.SignReset("joe@example.com", 1, time.Now().Add(-time.Second))
	require.NoError(t, err)

	_, _, err = p.VerifyReset(tok)
	assert.Error(t, err)
}

func TestAccessAndResetTokensAreNotInterchangeable(t *testing.T) {
	p := newTestProvider(t)

	access, err := p.Sign("u", "h", "e@x.com")
	require.NoError(t, err)
	_, _, err = p.VerifyReset(access)
	assert.Error(t, err)

	reset, err := p.SignReset("e@x.com", 1, time.Time{})
	require.NoError(t, err)
	_, err = p.Verify(reset)
	assert.Error(t, err)
}

func TestNewProvider_LoadsPEMFiles(t *testing.T) {
	src := newTestProvider(t)
	dir := t.TempDir()
	privPath := filepath.Join(dir, "private_key.pem")
	pubPath := filepath.Join(dir, "public_key.pem")

	privDER := x509.MarshalPKCS1PrivateKey(src.privateKey)
	require.NoError(t, os.WriteFile(privPath, pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: privDER}), 0o600))
	pubDER, err := x509.MarshalPKIXPublicKey(src.publicKey)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(pubPath, pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER}), 0o600))

	p, err := NewProvider(&config.Config{JWTPrivateKeyPath: privPath, JWTPublicKeyPath: pubPath, JWTExpiry: time.Hour})
	require.NoError(t, err)

	tok, err := src.Sign("u", "h", "e@x.com")
	require.NoError(t, err)
	_, err = p.Verify(tok)
	assert.NoError(t, err)
}

func TestNewProvider_MissingFile(t *testing.T) {
	_, err := NewProvider(&config.Config{JWTPrivateKeyPath: filepath.Join(t.TempDir(), "nope.pem")})
	assert.ErrorContains(t, err, "read private key")
}
