package jwtinfra

import (
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cropintel-api/internal/config"
	"github.com/golang-jwt/jwt/v5"
)

const purposePasswordReset = "password_reset"

// Claims holds the access token payload.
type Claims struct {
	UserID string `json:"user_id"`
	Handle string `json:"handle"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// ResetClaims authorizes a single password reset for Subject (the email).
// Nonce is the issuance time of the code that was verified, in nanoseconds.
type ResetClaims struct {
	Purpose string `json:"purpose"`
	Nonce   int64  `json:"nonce"`
	jwt.RegisteredClaims
}

// Provider signs and verifies RS256 JWTs.
type Provider struct {
	privateKey  *rsa.PrivateKey
	publicKey   *rsa.PublicKey
	expiry      time.Duration
	resetExpiry time.Duration
}

func NewProvider(cfg *config.Config) (*Provider, error) {
	privBytes, err := os.ReadFile(cfg.JWTPrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	privKey, err := jwt.ParseRSAPrivateKeyFromPEM(privBytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	pubBytes, err := os.ReadFile(cfg.JWTPublicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	pubKey, err := jwt.ParseRSAPublicKeyFromPEM(pubBytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}

	return &Provider{
		privateKey:  privKey,
		publicKey:   pubKey,
		expiry:      cfg.JWTExpiry,
		resetExpiry: cfg.ResetTokenExpiry,
	}, nil
}

// NewEphemeralProvider generates an in-memory key pair. Tokens it signs do not
// survive a restart; intended for local development and tests.
func NewEphemeralProvider(expiry, resetExpiry time.Duration) (*Provider, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return &Provider{privateKey: key, publicKey: &key.PublicKey, expiry: expiry, resetExpiry: resetExpiry}, nil
}

func (p *Provider) Sign(userID, handle, email string) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		Handle: handle,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(p.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	return token.SignedString(p.privateKey)
}

func (p *Provider) Verify(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	if err := p.parse(tokenStr, claims); err != nil {
		return nil, err
	}
	if claims.UserID == "" {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// SignReset issues a reset token for email bound to nonce. The token expires
// at notAfter or after the configured reset expiry, whichever is sooner.
func (p *Provider) SignReset(email string, nonce int64, notAfter time.Time) (string, error) {
	now := time.Now()
	exp := now.Add(p.resetExpiry)
	if !notAfter.IsZero() && notAfter.Before(exp) {
		exp = notAfter
	}
	claims := ResetClaims{
		Purpose: purposePasswordReset,
		Nonce:   nonce,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	return token.SignedString(p.privateKey)
}

// VerifyReset returns the email and nonce carried by a valid reset token.
func (p *Provider) VerifyReset(tokenStr string) (email string, nonce int64, err error) {
	claims := &ResetClaims{}
	if err := p.parse(tokenStr, claims); err != nil {
		return "", 0, err
	}
	if claims.Purpose != purposePasswordReset || claims.Subject == "" {
		return "", 0, errors.New("not a password reset token")
	}
	return claims.Subject, claims.Nonce, nil
}

func (p *Provider) parse(tokenStr string, claims jwt.Claims) error {
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return p.publicKey, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return err
	}
	if !token.Valid {
		return errors.New("invalid token")
	}
	return nil
}
