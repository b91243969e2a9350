// Copyright 2025 The CampussGo Authors
// Licensed under the EUPL-1.2

package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"codeberg.org/campussgo/campussgo/internal/services/auth"
)

// AuthHandlers contains handlers for the authentication flow.
type AuthHandlers struct {
	auth *auth.Service
}

// NewAuth creates a new AuthHandlers instance.
func NewAuth(svc *auth.Service) *AuthHandlers {
	return &AuthHandlers{auth: svc}
}

// RegisterRequest is the request body for registration.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates a new unverified account.
func (h *AuthHandlers) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}
	if req.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}

	user, err := h.auth.Register(c.Request().Context(), auth.RegisterParams{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return err
	}

	return OK(c, http.StatusCreated,
		"Account created successfully! Please verify your email.",
		map[string]any{"user": user})
}

// LoginRequest is the request body for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates and returns a session token.
func (h *AuthHandlers) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}

	session, err := h.auth.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}

	return OK(c, http.StatusOK, "Login successful", session)
}

// EmailRequest carries a bare email address.
type EmailRequest struct {
	Email string `json:"email"`
}

// SendOTP issues and mails a fresh verification code.
func (h *AuthHandlers) SendOTP(c echo.Context) error {
	var req EmailRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}

	if err := h.auth.SendVerificationEmail(c.Request().Context(), req.Email); err != nil {
		return err
	}

	return OK(c, http.StatusOK,
		"Verification OTP sent successfully. Please check your email.", nil)
}

// VerifyOTPRequest is the request body for OTP verification.
type VerifyOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

// VerifyOTP checks the code and returns a session token on success.
func (h *AuthHandlers) VerifyOTP(c echo.Context) error {
	var req VerifyOTPRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}

	session, err := h.auth.VerifyOTP(c.Request().Context(), req.Email, req.OTP)
	if err != nil {
		return err
	}

	return OK(c, http.StatusOK, "Email verified successfully!", session)
}

// ForgetPassword issues a reset challenge and mails the reset link.
func (h *AuthHandlers) ForgetPassword(c echo.Context) error {
	var req EmailRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}

	if err := h.auth.ForgetPassword(c.Request().Context(), req.Email); err != nil {
		return err
	}

	return OK(c, http.StatusOK,
		"A password reset email has been sent to your email address. Please check your inbox.", nil)
}

// ResetPasswordRequest is the request body for the reset-password operation.
type ResetPasswordRequest struct {
	Password string `json:"password"`
}

// ResetPassword consumes the token from the URL and sets the new password.
func (h *AuthHandlers) ResetPassword(c echo.Context) error {
	var req ResetPasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}

	if err := h.auth.ResetPassword(c.Request().Context(), c.Param("token"), req.Password); err != nil {
		return err
	}

	return OK(c, http.StatusOK,
		"Your password has been reset successfully! You can now log in with your new password.", nil)
}
