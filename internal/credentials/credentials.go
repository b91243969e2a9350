// Copyright 2025 The CampussGo Authors
// Licensed under the EUPL-1.2

// Package credentials implements the one-way transforms and random secrets
// used by the authentication flow: slow salted password hashes, fast
// deterministic digests for short-lived challenges, and the OTP / reset-token
// issuers.
package credentials

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const (
	// PasswordCost is the bcrypt work factor for stored passwords.
	PasswordCost = 13
	// ResetTokenLength is the number of random bytes in a reset token.
	ResetTokenLength = 32
	// ChallengeTTL is how long an issued OTP or reset token stays valid.
	ChallengeTTL = 10 * time.Minute
)

var otpRange = big.NewInt(1000000)

// HashPassword returns the bcrypt hash of plaintext. The salt is randomized,
// so two calls with the same input produce different hashes that both verify.
func HashPassword(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), PasswordCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword reports whether plaintext matches the stored hash. A wrong
// password is a false return, never an error.
func VerifyPassword(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

// Digest computes the SHA-256 hex digest of a challenge secret. Unlike the
// password hash it is deterministic: a freshly supplied code can be compared
// against the stored value. OTPs and reset tokens are random high-entropy
// secrets, so the fast transform is sufficient.
func Digest(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// IssueOTP generates a 6-digit verification code. The plaintext is returned
// for one-time delivery and never persisted; callers store only the digest
// and expiry.
func IssueOTP() (plaintext, digest string, expiresAt time.Time, err error) {
	n, err := rand.Int(rand.Reader, otpRange)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("failed to generate OTP: %w", err)
	}
	plaintext = fmt.Sprintf("%06d", n.Int64())
	return plaintext, Digest(plaintext), time.Now().Add(ChallengeTTL), nil
}

// IssueResetToken generates a hex-encoded password-reset token.
func IssueResetToken() (plaintext, digest string, expiresAt time.Time, err error) {
	buf := make([]byte, ResetTokenLength)
	if _, err := rand.Read(buf); err != nil {
		return "", "", time.Time{}, fmt.Errorf("failed to generate reset token: %w", err)
	}
	plaintext = hex.EncodeToString(buf)
	return plaintext, Digest(plaintext), time.Now().Add(ChallengeTTL), nil
}
