// Copyright 2025 The CampussGo Authors
// Licensed under the EUPL-1.2

package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"codeberg.org/campussgo/campussgo/internal/middleware"
	"codeberg.org/campussgo/campussgo/internal/models"
	"codeberg.org/campussgo/campussgo/internal/repository"
	"codeberg.org/campussgo/campussgo/internal/services/users"
)

// listFilterParams are the query parameters treated as column filters.
var listFilterParams = []string{"role", "active", "is_verified", "email", "name"}

// UserHandlers contains handlers for the user resource.
type UserHandlers struct {
	users *users.Service
}

// NewUsers creates a new UserHandlers instance.
func NewUsers(svc *users.Service) *UserHandlers {
	return &UserHandlers{users: svc}
}

// GetAll lists users with pagination, filtering, sorting and search.
func (h *UserHandlers) GetAll(c echo.Context) error {
	params := repository.ListParams{
		Sort:    c.QueryParam("sort"),
		Search:  c.QueryParam("search"),
		Filters: map[string]string{},
	}
	if page, err := strconv.Atoi(c.QueryParam("page")); err == nil {
		params.Page = page
	}
	if limit, err := strconv.Atoi(c.QueryParam("limit")); err == nil {
		params.Limit = limit
	}
	for _, name := range listFilterParams {
		if value := c.QueryParam(name); value != "" {
			params.Filters[name] = value
		}
	}

	list, count, err := h.users.List(c.Request().Context(), params)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, Envelope{
		Status:  "success",
		Message: fmt.Sprintf("%d user(s) found", count),
		Results: &count,
		Data:    list,
	})
}

// GetOne returns a single user.
func (h *UserHandlers) GetOne(c echo.Context) error {
	id, err := userID(c)
	if err != nil {
		return err
	}

	user, err := h.users.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}

	return OK(c, http.StatusOK, "", map[string]any{"user": user})
}

// CreateUserRequest is the request body for the admin create operation.
type CreateUserRequest struct {
	Name     string      `json:"name"`
	Email    string      `json:"email"`
	Password string      `json:"password"`
	Role     models.Role `json:"role"`
}

// Create adds a new user (admin only).
func (h *UserHandlers) Create(c echo.Context) error {
	var req CreateUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}
	if req.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}

	user, err := h.users.Create(c.Request().Context(), users.CreateParams{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		return err
	}

	return OK(c, http.StatusCreated, "New user created successfully!",
		map[string]any{"user": user})
}

// UpdateUserRequest is the request body for the admin update operation.
// Absent fields are left unchanged.
type UpdateUserRequest struct {
	Name     *string      `json:"name"`
	Email    *string      `json:"email"`
	Password *string      `json:"password"`
	Role     *models.Role `json:"role"`
	Active   *bool        `json:"active"`
}

// Update applies a partial update to a user (admin only).
func (h *UserHandlers) Update(c echo.Context) error {
	id, err := userID(c)
	if err != nil {
		return err
	}

	var req UpdateUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}

	user, err := h.users.Update(c.Request().Context(), id, users.UpdateParams{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
		Active:   req.Active,
	})
	if err != nil {
		return err
	}

	return OK(c, http.StatusOK, "User updated successfully!",
		map[string]any{"user": user})
}

// Delete removes a user (admin only).
func (h *UserHandlers) Delete(c echo.Context) error {
	id, err := userID(c)
	if err != nil {
		return err
	}

	if err := h.users.Delete(c.Request().Context(), id); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}

// UploadProfile stores a new profile image for the authenticated user.
func (h *UserHandlers) UploadProfile(c echo.Context) error {
	fileHeader, err := c.FormFile("profileImage")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "profileImage file is required")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to read uploaded file")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to read uploaded file")
	}

	key, err := h.users.UploadProfileImage(c.Request().Context(),
		middleware.UserID(c), fileHeader.Filename, data)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]any{
		"status":   "success",
		"message":  "Your profile image has been uploaded successfully",
		"imageUrl": key,
	})
}

func userID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid user id")
	}
	return id, nil
}
