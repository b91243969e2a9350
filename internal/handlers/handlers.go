// Copyright 2025 The CampussGo Authors
// Licensed under the EUPL-1.2

// Package handlers contains the echo HTTP handlers. Handlers bind and
// validate requests, call services and shape the JSON envelope; error
// classification lives in the server's error handler.
package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Envelope is the response shape used across the API.
type Envelope struct { //nolint:govet // fieldalignment not critical
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Results *int64 `json:"results,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// OK responds with a success envelope.
func OK(c echo.Context, code int, message string, data any) error {
	return c.JSON(code, Envelope{Status: "success", Message: message, Data: data})
}

// Health reports service liveness.
func Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
