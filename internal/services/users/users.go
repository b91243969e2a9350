// Copyright 2025 The CampussGo Authors
// Licensed under the EUPL-1.2

// Package users implements the role-gated CRUD operations over the user
// resource and the profile-image upload. Any write path that carries a
// password hashes it here, before the value reaches the repository.
package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"codeberg.org/campussgo/campussgo/internal/credentials"
	"codeberg.org/campussgo/campussgo/internal/models"
	"codeberg.org/campussgo/campussgo/internal/repository"
)

var (
	ErrNotFound     = errors.New("user was not found")
	ErrEmailExists  = errors.New("user with this email already exists")
	ErrInvalidEmail = errors.New("must be a valid university email (@std.mans.edu.eg)")
	ErrWeakPassword = errors.New("password must be at least 8 characters")
	ErrInvalidRole  = errors.New("invalid role")
	ErrInvalidImage = errors.New("file is not a valid image")
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

// ObjectStore stores uploaded profile images.
type ObjectStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
	Delete(ctx context.Context, key string) error
}

// Service implements user management.
type Service struct {
	repo  *repository.Repository
	store ObjectStore
}

// NewService creates the user service with explicit collaborators.
func NewService(repo *repository.Repository, store ObjectStore) *Service {
	return &Service{repo: repo, store: store}
}

// CreateParams holds the fields for an admin-created user.
type CreateParams struct {
	Name     string
	Email    string
	Password string
	Role     models.Role
}

// Create adds a new user. The password is hashed before it reaches the
// repository; a duplicate email is a conflict.
func (s *Service) Create(ctx context.Context, params CreateParams) (*models.User, error) {
	if !models.ValidEmail(params.Email) {
		return nil, ErrInvalidEmail
	}
	if len(params.Password) < MinPasswordLength {
		return nil, ErrWeakPassword
	}
	if params.Role != "" && !params.Role.Valid() {
		return nil, ErrInvalidRole
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
		Role:         params.Role,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("user_created", "user_id", user.ID, "email", user.Email, "role", user.Role)
	return user, nil
}

// Get retrieves a single user.
func (s *Service) Get(ctx context.Context, id int64) (*models.User, error) {
	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// List returns a filtered, sorted, paginated page of users with the total
// match count.
func (s *Service) List(ctx context.Context, params repository.ListParams) ([]models.User, int64, error) {
	return s.repo.ListUsers(ctx, params)
}

// UpdateParams holds the optional fields of a partial update.
type UpdateParams struct {
	Name     *string
	Email    *string
	Password *string
	Role     *models.Role
	Active   *bool
}

// Update applies a partial update. A password in the update is hashed here,
// so a plaintext write can never reach storage.
func (s *Service) Update(ctx context.Context, id int64, params UpdateParams) (*models.User, error) {
	update := repository.UserUpdate{
		Name:   params.Name,
		Role:   params.Role,
		Active: params.Active,
	}

	if params.Email != nil {
		if !models.ValidEmail(*params.Email) {
			return nil, ErrInvalidEmail
		}
		update.Email = params.Email
	}
	if params.Role != nil && !params.Role.Valid() {
		return nil, ErrInvalidRole
	}
	if params.Password != nil {
		if len(*params.Password) < MinPasswordLength {
			return nil, ErrWeakPassword
		}
		passwordHash, err := credentials.HashPassword(*params.Password)
		if err != nil {
			return nil, err
		}
		update.PasswordHash = &passwordHash
	}

	user, err := s.repo.UpdateUser(ctx, id, update)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	slog.Info("user_updated", "user_id", id)
	return user, nil
}

// Delete removes a user.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.DeleteUser(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete user: %w", err)
	}
	slog.Info("user_deleted", "user_id", id)
	return nil
}

// UploadProfileImage resizes the uploaded image, stores it in the object
// store and persists the new key. The previous image is deleted best-effort;
// the placeholder is never deleted.
func (s *Service) UploadProfileImage(ctx context.Context, userID int64, filename string, data []byte) (string, error) {
	user, err := s.Get(ctx, userID)
	if err != nil {
		return "", err
	}

	processed, err := processImage(data)
	if err != nil {
		return "", err
	}

	if user.ProfileImage != models.DefaultProfileImage {
		if err := s.store.Delete(ctx, user.ProfileImage); err != nil {
			slog.Warn("failed to delete previous profile image", "user_id", userID, "key", user.ProfileImage, "error", err)
		}
	}

	key := fmt.Sprintf("users/%s-%s", uuid.New(), filename)
	if err := s.store.Put(ctx, key, processed, "image/jpeg"); err != nil {
		return "", err
	}

	if err := s.repo.UpdateProfileImage(ctx, userID, key); err != nil {
		return "", fmt.Errorf("failed to persist profile image key: %w", err)
	}

	slog.Info("profile_image_uploaded", "user_id", userID, "key", key)
	return key, nil
}
