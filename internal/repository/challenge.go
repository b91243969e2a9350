// Copyright 2025 The CampussGo Authors
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"time"

	"codeberg.org/campussgo/campussgo/internal/models"
)

// SetVerificationChallenge stores a fresh OTP digest and expiry, overwriting
// any outstanding challenge. Digest and expiry always change together.
func (r *Repository) SetVerificationChallenge(ctx context.Context, id int64, digest string, expiresAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET verification_otp_hash = ?, verification_otp_expires = ?, updated_at = ? WHERE id = ?`,
		digest, expiresAt.UTC(), time.Now().UTC(), id)
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

// MarkVerified flips is_verified and clears the OTP fields in one conditional
// update keyed on the stored digest. It reports whether the update applied;
// a concurrent verification that already consumed the challenge leaves
// nothing to match, so only one caller can win.
func (r *Repository) MarkVerified(ctx context.Context, id int64, digest string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users
		 SET is_verified = 1, verification_otp_hash = NULL, verification_otp_expires = NULL, updated_at = ?
		 WHERE id = ? AND is_verified = 0 AND verification_otp_hash = ?`,
		time.Now().UTC(), id, digest)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// SetResetChallenge stores a fresh reset-token digest and expiry, overwriting
// any outstanding challenge.
func (r *Repository) SetResetChallenge(ctx context.Context, id int64, digest string, expiresAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_reset_hash = ?, password_reset_expires = ?, updated_at = ? WHERE id = ?`,
		digest, expiresAt.UTC(), time.Now().UTC(), id)
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

// GetUserByResetDigest finds the user holding an unexpired reset challenge
// with the given digest.
func (r *Repository) GetUserByResetDigest(ctx context.Context, digest string, now time.Time) (*models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user,
		`SELECT `+publicColumns+` FROM users
		 WHERE password_reset_hash = ? AND password_reset_expires > ?`,
		digest, now.UTC())
	if err != nil {
		return nil, wrapError(err)
	}
	return &user, nil
}

// CompleteReset writes the new password hash and clears the reset fields in
// one conditional update keyed on the stored digest. If a newer challenge
// superseded this one the digest no longer matches and nothing is applied:
// whoever's token the store still holds wins.
func (r *Repository) CompleteReset(ctx context.Context, id int64, passwordHash, digest string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users
		 SET password_hash = ?, password_reset_hash = NULL, password_reset_expires = NULL, updated_at = ?
		 WHERE id = ? AND password_reset_hash = ?`,
		passwordHash, time.Now().UTC(), id, digest)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}
