// Copyright 2025 The CampussGo Authors
// Licensed under the EUPL-1.2

package models

import (
	"regexp"
	"time"
)

// Role is the access level assigned to a user account.
type Role string

const (
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
)

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleAdmin
}

// DefaultProfileImage is the placeholder key assigned to new accounts.
const DefaultProfileImage = "default.image.jpeg"

// emailPattern matches institutional addresses (@std.mans.edu.eg).
var emailPattern = regexp.MustCompile(`^[\w.-]+@std\.mans\.edu\.eg$`)

// ValidEmail reports whether the address belongs to the university domain.
func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// User is the persisted account record.
//
// The verification and reset challenge fields travel in pairs: either both
// digest and expiry are set, or both are NULL. All writes go through
// repository methods that preserve this.
type User struct { //nolint:govet // fieldalignment not critical for models
	ID                     int64      `db:"id" json:"id"`
	Name                   string     `db:"name" json:"name"`
	Email                  string     `db:"email" json:"email"`
	PasswordHash           string     `db:"password_hash" json:"-"`
	ProfileImage           string     `db:"profile_image" json:"profile_image"`
	Role                   Role       `db:"role" json:"role"`
	Active                 bool       `db:"active" json:"active"`
	IsVerified             bool       `db:"is_verified" json:"is_verified"`
	VerificationOTPHash    *string    `db:"verification_otp_hash" json:"-"`
	VerificationOTPExpires *time.Time `db:"verification_otp_expires" json:"-"`
	PasswordResetHash      *string    `db:"password_reset_hash" json:"-"`
	PasswordResetExpires   *time.Time `db:"password_reset_expires" json:"-"`
	CreatedAt              time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt              time.Time  `db:"updated_at" json:"updated_at"`
}

// PublicUser is the summary returned by login and token flows.
type PublicUser struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// Public returns the public summary of the user.
func (u *User) Public() PublicUser {
	return PublicUser{ID: u.ID, Email: u.Email, Role: u.Role}
}
