// Copyright 2025 The CampussGo Authors
// Licensed under the EUPL-1.2

package server

import (
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/labstack/echo/v4"

	"codeberg.org/campussgo/campussgo/internal/services/auth"
	"codeberg.org/campussgo/campussgo/internal/services/users"
)

// errorResponse is the JSON body of a failed request.
type errorResponse struct { //nolint:govet // fieldalignment not critical
	Status  string `json:"status"`
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

// errorHandler maps service errors to client-facing responses. Named errors
// become 4xx with their stable message; anything unclassified is a 500 that
// carries a stack trace only when debug is enabled.
func errorHandler(debugMode bool) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, message := classify(err)

		if status == http.StatusInternalServerError {
			slog.Error("unhandled error", "error", err, "uri", c.Request().RequestURI)
		}

		resp := errorResponse{Status: "error", Message: message}
		if status == http.StatusInternalServerError && debugMode {
			resp.Stack = string(debug.Stack())
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		_ = c.JSON(status, resp)
	}
}

func classify(err error) (int, string) {
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		if msg, ok := httpErr.Message.(string); ok {
			return httpErr.Code, msg
		}
		return httpErr.Code, http.StatusText(httpErr.Code)
	}

	switch {
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrNotVerified):
		return http.StatusUnauthorized, err.Error()

	case errors.Is(err, auth.ErrUserNotFound),
		errors.Is(err, users.ErrNotFound):
		return http.StatusNotFound, err.Error()

	case errors.Is(err, auth.ErrEmailExists),
		errors.Is(err, users.ErrEmailExists):
		return http.StatusConflict, err.Error()

	case errors.Is(err, auth.ErrAlreadyVerified),
		errors.Is(err, auth.ErrInvalidOrExpiredOTP),
		errors.Is(err, auth.ErrInvalidOrExpiredToken),
		errors.Is(err, auth.ErrInvalidEmail),
		errors.Is(err, auth.ErrWeakPassword),
		errors.Is(err, users.ErrInvalidEmail),
		errors.Is(err, users.ErrWeakPassword),
		errors.Is(err, users.ErrInvalidRole),
		errors.Is(err, users.ErrInvalidImage):
		return http.StatusBadRequest, err.Error()
	}

	return http.StatusInternalServerError, err.Error()
}
