// Copyright 2025 The CampussGo Authors
// Licensed under the EUPL-1.2

// Package token issues and verifies the signed session tokens returned by
// login and OTP verification.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"codeberg.org/campussgo/campussgo/internal/models"
)

// DefaultValidity is the session token lifetime when none is configured.
const DefaultValidity = 7 * 24 * time.Hour

// ErrInvalidToken is returned when a token fails signature or claim checks.
var ErrInvalidToken = errors.New("invalid token")

// Claims carried by a session token.
type Claims struct {
	Email string      `json:"email"`
	Role  models.Role `json:"role"`
	jwt.RegisteredClaims
}

// Manager signs and parses session tokens with a shared HS256 secret.
type Manager struct {
	secret   []byte
	validity time.Duration
}

// NewManager creates a token manager. The secret is required; validity falls
// back to DefaultValidity when zero.
func NewManager(secret string, validity time.Duration) (*Manager, error) {
	if secret == "" {
		return nil, errors.New("JWT secret is required")
	}
	if validity <= 0 {
		validity = DefaultValidity
	}
	return &Manager{secret: []byte(secret), validity: validity}, nil
}

// Validity returns the configured token lifetime.
func (m *Manager) Validity() time.Duration {
	return m.validity
}

// Sign issues a session token for the user carrying {id, email, role}.
func (m *Manager) Sign(user models.PublicUser) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: user.Email,
		Role:  user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.validity)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies a token and returns its claims.
func (m *Manager) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
