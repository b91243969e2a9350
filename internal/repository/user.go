// Copyright 2025 The CampussGo Authors
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"codeberg.org/campussgo/campussgo/internal/models"
)

// publicColumns excludes password_hash; it is the default read shape.
const publicColumns = `id, name, email, profile_image, role, active, is_verified,
	verification_otp_hash, verification_otp_expires,
	password_reset_hash, password_reset_expires, created_at, updated_at`

// CreateUser inserts a new user. The password hash must already be computed;
// the repository never accepts plaintext passwords.
func (r *Repository) CreateUser(ctx context.Context, user *models.User) error {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.Role == "" {
		user.Role = models.RoleStudent
	}
	if user.ProfileImage == "" {
		user.ProfileImage = models.DefaultProfileImage
	}
	user.Active = true

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (name, email, password_hash, profile_image, role, active, is_verified, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.Name, user.Email, user.PasswordHash, user.ProfileImage, user.Role,
		user.Active, user.IsVerified, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	user.ID = id
	return nil
}

// GetUserByID retrieves a user by ID without the password hash.
func (r *Repository) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user,
		`SELECT `+publicColumns+` FROM users WHERE id = ?`, id)
	if err != nil {
		return nil, wrapError(err)
	}
	return &user, nil
}

// GetUserByEmail retrieves a user by email without the password hash.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user,
		`SELECT `+publicColumns+` FROM users WHERE email = ?`, email)
	if err != nil {
		return nil, wrapError(err)
	}
	return &user, nil
}

// GetUserByEmailWithPassword retrieves a user including the password hash.
// Only the login path needs it.
func (r *Repository) GetUserByEmailWithPassword(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user,
		`SELECT password_hash, `+publicColumns+` FROM users WHERE email = ?`, email)
	if err != nil {
		return nil, wrapError(err)
	}
	return &user, nil
}

// EmailExists reports whether a user with the given email exists.
func (r *Repository) EmailExists(ctx context.Context, email string) (bool, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM users WHERE email = ?`, email)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// UserUpdate carries the fields an update may change. Nil fields are left
// untouched. Password updates arrive pre-hashed from the service layer.
type UserUpdate struct {
	Name         *string
	Email        *string
	PasswordHash *string
	Role         *models.Role
	Active       *bool
}

// UpdateUser applies a partial field update and returns the updated record.
func (r *Repository) UpdateUser(ctx context.Context, id int64, update UserUpdate) (*models.User, error) {
	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UTC()}

	if update.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *update.Name)
	}
	if update.Email != nil {
		sets = append(sets, "email = ?")
		args = append(args, *update.Email)
	}
	if update.PasswordHash != nil {
		sets = append(sets, "password_hash = ?")
		args = append(args, *update.PasswordHash)
	}
	if update.Role != nil {
		sets = append(sets, "role = ?")
		args = append(args, *update.Role)
	}
	if update.Active != nil {
		sets = append(sets, "active = ?")
		args = append(args, *update.Active)
	}

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE users SET %s WHERE id = ?`, strings.Join(sets, ", "))

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, ErrNotFound
	}

	return r.GetUserByID(ctx, id)
}

// UpdateProfileImage stores the object key of the user's profile image.
func (r *Repository) UpdateProfileImage(ctx context.Context, id int64, key string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET profile_image = ?, updated_at = ? WHERE id = ?`,
		key, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteUser deletes a user by ID.
func (r *Repository) DeleteUser(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountUsers returns the total number of users.
func (r *Repository) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM users`); err != nil {
		return 0, err
	}
	return count, nil
}
