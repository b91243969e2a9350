// Copyright 2025 The CampussGo Authors
// Licensed under the EUPL-1.2

// Package auth implements the credential and challenge lifecycle: login,
// OTP email verification and password reset. It orchestrates the account
// store, the credential hashers and the notification sender; all
// collaborators are injected through the constructor.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"codeberg.org/campussgo/campussgo/internal/credentials"
	"codeberg.org/campussgo/campussgo/internal/models"
	"codeberg.org/campussgo/campussgo/internal/repository"
	"codeberg.org/campussgo/campussgo/internal/token"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrNotVerified           = errors.New("verify your email to get full access")
	ErrUserNotFound          = errors.New("user not found")
	ErrAlreadyVerified       = errors.New("email is already verified")
	ErrInvalidOrExpiredOTP   = errors.New("invalid or expired OTP")
	ErrInvalidOrExpiredToken = errors.New("token is invalid or has expired")
	ErrEmailExists           = errors.New("user with this email already exists")
	ErrInvalidEmail          = errors.New("must be a valid university email (@std.mans.edu.eg)")
	ErrWeakPassword          = errors.New("password must be at least 8 characters")
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

// deliveryTimeout bounds outbound notification sends.
const deliveryTimeout = 15 * time.Second

// dummyHash is used for constant-time login to prevent timing attacks
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("dummy-password-for-timing"), credentials.PasswordCost)

// Notifier delivers out-of-band codes and links. Failures after a committed
// state change are logged, never rolled back.
type Notifier interface {
	SendOTP(ctx context.Context, user *models.User, otp string) error
	SendResetLink(ctx context.Context, user *models.User, url string) error
	SendResetConfirmation(ctx context.Context, email string) error
}

// Service is the authentication flow.
type Service struct {
	repo     *repository.Repository
	tokens   *token.Manager
	notifier Notifier
	baseURL  string
}

// NewService creates the authentication service with explicit collaborators.
func NewService(repo *repository.Repository, tokens *token.Manager, notifier Notifier, baseURL string) *Service {
	return &Service{
		repo:     repo,
		tokens:   tokens,
		notifier: notifier,
		baseURL:  baseURL,
	}
}

// RegisterParams holds the parameters for account registration.
type RegisterParams struct {
	Name     string
	Email    string
	Password string
}

// Session is the result of a successful login or OTP verification.
type Session struct {
	AccessToken string            `json:"accessToken"`
	ExpiresIn   int64             `json:"expiresIn"`
	User        models.PublicUser `json:"user"`
}

// Register creates a new unverified account.
func (s *Service) Register(ctx context.Context, params RegisterParams) (*models.User, error) {
	if !models.ValidEmail(params.Email) {
		return nil, ErrInvalidEmail
	}
	if len(params.Password) < MinPasswordLength {
		return nil, ErrWeakPassword
	}

	exists, err := s.repo.EmailExists(ctx, params.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if exists {
		return nil, ErrEmailExists
	}

	passwordHash, err := credentials.HashPassword(params.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Name:         params.Name,
		Email:        params.Email,
		PasswordHash: passwordHash,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("register_success", "user_id", user.ID, "email", user.Email)
	return user, nil
}

// Login authenticates with email and password and issues a session token.
// Accounts that never completed OTP verification are rejected.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.repo.GetUserByEmailWithPassword(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Constant-time: always perform a bcrypt comparison so a missing
			// account is not distinguishable from a wrong password by timing.
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			slog.Warn("login_failed", "email", email, "reason", "user_not_found")
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if !credentials.VerifyPassword(password, user.PasswordHash) {
		slog.Warn("login_failed", "email", email, "reason", "invalid_password")
		return nil, ErrInvalidCredentials
	}

	if !user.IsVerified {
		slog.Warn("login_failed", "email", email, "reason", "not_verified")
		return nil, ErrNotVerified
	}

	session, err := s.newSession(user)
	if err != nil {
		return nil, err
	}

	slog.Info("login_success", "user_id", user.ID, "email", email)
	return session, nil
}

// SendVerificationEmail issues a fresh OTP challenge and delivers it. A new
// challenge always overwrites any outstanding one.
func (s *Service) SendVerificationEmail(ctx context.Context, email string) error {
	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to get user: %w", err)
	}
	if user.IsVerified {
		return ErrAlreadyVerified
	}

	otp, digest, expiresAt, err := credentials.IssueOTP()
	if err != nil {
		return err
	}
	if err := s.repo.SetVerificationChallenge(ctx, user.ID, digest, expiresAt); err != nil {
		return fmt.Errorf("failed to store verification challenge: %w", err)
	}

	s.deliver(ctx, "verification_otp", user.Email, func(ctx context.Context) error {
		return s.notifier.SendOTP(ctx, user, otp)
	})

	slog.Info("verification_otp_issued", "user_id", user.ID, "email", email)
	return nil
}

// VerifyOTP checks the supplied code against the outstanding challenge and,
// on success, atomically marks the account verified, clears the challenge
// and issues a session token. Wrong and expired codes produce the same error.
func (s *Service) VerifyOTP(ctx context.Context, email, otp string) (*Session, error) {
	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user.IsVerified {
		return nil, ErrAlreadyVerified
	}

	digest := credentials.Digest(otp)
	if user.VerificationOTPHash == nil || user.VerificationOTPExpires == nil ||
		*user.VerificationOTPHash != digest || !time.Now().Before(*user.VerificationOTPExpires) {
		slog.Warn("otp_verify_failed", "email", email)
		return nil, ErrInvalidOrExpiredOTP
	}

	ok, err := s.repo.MarkVerified(ctx, user.ID, digest)
	if err != nil {
		return nil, fmt.Errorf("failed to mark user verified: %w", err)
	}
	if !ok {
		// A concurrent request consumed the challenge first.
		return nil, ErrInvalidOrExpiredOTP
	}
	user.IsVerified = true

	session, err := s.newSession(user)
	if err != nil {
		return nil, err
	}

	slog.Info("email_verified", "user_id", user.ID, "email", email)
	return session, nil
}

// ForgetPassword issues a reset challenge and mails a reset link. A new
// challenge always invalidates the previous one.
func (s *Service) ForgetPassword(ctx context.Context, email string) error {
	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to get user: %w", err)
	}

	plaintext, digest, expiresAt, err := credentials.IssueResetToken()
	if err != nil {
		return err
	}
	if err := s.repo.SetResetChallenge(ctx, user.ID, digest, expiresAt); err != nil {
		return fmt.Errorf("failed to store reset challenge: %w", err)
	}

	url := fmt.Sprintf("%s/auth/reset-password/%s", s.baseURL, plaintext)
	s.deliver(ctx, "reset_link", user.Email, func(ctx context.Context) error {
		return s.notifier.SendResetLink(ctx, user, url)
	})

	slog.Info("reset_token_issued", "user_id", user.ID, "email", email)
	return nil
}

// ResetPassword consumes a reset token and writes the new password hash. The
// plaintext password never reaches the store; hashing happens here, before
// the conditional update that also clears the challenge fields.
func (s *Service) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	if len(newPassword) < MinPasswordLength {
		return ErrWeakPassword
	}

	digest := credentials.Digest(resetToken)
	user, err := s.repo.GetUserByResetDigest(ctx, digest, time.Now())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidOrExpiredToken
		}
		return fmt.Errorf("failed to look up reset challenge: %w", err)
	}

	passwordHash, err := credentials.HashPassword(newPassword)
	if err != nil {
		return err
	}

	ok, err := s.repo.CompleteReset(ctx, user.ID, passwordHash, digest)
	if err != nil {
		return fmt.Errorf("failed to reset password: %w", err)
	}
	if !ok {
		// Superseded by a newer challenge between lookup and update.
		return ErrInvalidOrExpiredToken
	}

	s.deliver(ctx, "reset_confirmation", user.Email, func(ctx context.Context) error {
		return s.notifier.SendResetConfirmation(ctx, user.Email)
	})

	slog.Info("password_reset", "user_id", user.ID, "email", user.Email)
	return nil
}

func (s *Service) newSession(user *models.User) (*Session, error) {
	signed, err := s.tokens.Sign(user.Public())
	if err != nil {
		return nil, err
	}
	return &Session{
		AccessToken: signed,
		ExpiresIn:   int64(s.tokens.Validity().Seconds()),
		User:        user.Public(),
	}, nil
}

// deliver runs a notification send with a bounded timeout, detached from
// request cancellation: the state change has already committed, so a failed
// or cancelled send is logged and never rolled back.
func (s *Service) deliver(ctx context.Context, kind, email string, send func(context.Context) error) {
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deliveryTimeout)
	defer cancel()

	if err := send(sendCtx); err != nil {
		slog.Error("notification_delivery_failed", "kind", kind, "email", email, "error", err)
	}
}
