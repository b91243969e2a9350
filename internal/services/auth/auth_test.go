// Copyright 2025 The CampussGo Authors
// Licensed under the EUPL-1.2

package auth_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/campussgo/campussgo/internal/credentials"
	"codeberg.org/campussgo/campussgo/internal/models"
	"codeberg.org/campussgo/campussgo/internal/repository"
	"codeberg.org/campussgo/campussgo/internal/services/auth"
	"codeberg.org/campussgo/campussgo/internal/testutil"
	"codeberg.org/campussgo/campussgo/internal/token"
)

const baseURL = "http://localhost:8080"

// fakeNotifier records delivered codes and links so tests can replay them.
type fakeNotifier struct {
	mu            sync.Mutex
	otps          map[string]string
	links         map[string]string
	confirmations []string
	fail          bool
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{
		otps:  make(map[string]string),
		links: make(map[string]string),
	}
}

func (f *fakeNotifier) SendOTP(_ context.Context, user *models.User, otp string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("smtp unreachable")
	}
	f.otps[user.Email] = otp
	return nil
}

func (f *fakeNotifier) SendResetLink(_ context.Context, user *models.User, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("smtp unreachable")
	}
	f.links[user.Email] = url
	return nil
}

func (f *fakeNotifier) SendResetConfirmation(_ context.Context, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("smtp unreachable")
	}
	f.confirmations = append(f.confirmations, email)
	return nil
}

func (f *fakeNotifier) otp(email string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.otps[email]
}

// resetToken extracts the plaintext token from the captured reset link.
func (f *fakeNotifier) resetToken(email string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return strings.TrimPrefix(f.links[email], baseURL+"/auth/reset-password/")
}

func newAuthService(t *testing.T) (*auth.Service, *repository.Repository, *fakeNotifier) {
	t.Helper()
	_, repo := testutil.NewTestDB(t)
	tokens, err := token.NewManager("test-secret", time.Hour)
	require.NoError(t, err)
	notifier := newFakeNotifier()
	return auth.NewService(repo, tokens, notifier, baseURL), repo, notifier
}

func TestRegister(t *testing.T) {
	svc, repo, _ := newAuthService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, auth.RegisterParams{
		Name:     "Ahmed",
		Email:    "ahmed@std.mans.edu.eg",
		Password: "password123",
	})

	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.Equal(t, models.RoleStudent, user.Role)
	assert.False(t, user.IsVerified)
	assert.NotEqual(t, "password123", user.PasswordHash)

	stored, err := repo.GetUserByEmailWithPassword(ctx, "ahmed@std.mans.edu.eg")
	require.NoError(t, err)
	assert.True(t, credentials.VerifyPassword("password123", stored.PasswordHash))
}

func TestRegister_InvalidEmail(t *testing.T) {
	svc, _, _ := newAuthService(t)

	_, err := svc.Register(context.Background(), auth.RegisterParams{
		Name:     "Ahmed",
		Email:    "ahmed@gmail.com",
		Password: "password123",
	})

	assert.ErrorIs(t, err, auth.ErrInvalidEmail)
}

func TestRegister_WeakPassword(t *testing.T) {
	svc, _, _ := newAuthService(t)

	_, err := svc.Register(context.Background(), auth.RegisterParams{
		Name:     "Ahmed",
		Email:    "ahmed@std.mans.edu.eg",
		Password: "short",
	})

	assert.ErrorIs(t, err, auth.ErrWeakPassword)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc, repo, _ := newAuthService(t)

	testutil.NewTestUser(t, repo, "ahmed@std.mans.edu.eg", "password123", false)

	_, err := svc.Register(context.Background(), auth.RegisterParams{
		Name:     "Ahmed",
		Email:    "ahmed@std.mans.edu.eg",
		Password: "password123",
	})

	assert.ErrorIs(t, err, auth.ErrEmailExists)
}

func TestLogin(t *testing.T) {
	svc, repo, _ := newAuthService(t)

	user := testutil.NewTestUser(t, repo, "ahmed@std.mans.edu.eg", "password123", true)

	session, err := svc.Login(context.Background(), "ahmed@std.mans.edu.eg", "password123")

	require.NoError(t, err)
	assert.NotEmpty(t, session.AccessToken)
	assert.EqualValues(t, 3600, session.ExpiresIn)
	assert.Equal(t, user.ID, session.User.ID)
	assert.Equal(t, user.Email, session.User.Email)
}

func TestLogin_WrongPassword(t *testing.T) {
	svc, repo, _ := newAuthService(t)

	testutil.NewTestUser(t, repo, "ahmed@std.mans.edu.eg", "password123", true)

	_, err := svc.Login(context.Background(), "ahmed@std.mans.edu.eg", "wrongpass")

	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestLogin_UnknownEmail(t *testing.T) {
	svc, _, _ := newAuthService(t)

	_, err := svc.Login(context.Background(), "nobody@std.mans.edu.eg", "password123")

	// Indistinguishable from a wrong password.
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestLogin_Unverified(t *testing.T) {
	svc, repo, _ := newAuthService(t)

	testutil.NewTestUser(t, repo, "ahmed@std.mans.edu.eg", "password123", false)

	_, err := svc.Login(context.Background(), "ahmed@std.mans.edu.eg", "password123")

	assert.ErrorIs(t, err, auth.ErrNotVerified)
}

func TestSendVerificationEmail(t *testing.T) {
	svc, repo, notifier := newAuthService(t)
	ctx := context.Background()

	user := testutil.NewTestUser(t, repo, "ahmed@std.mans.edu.eg", "password123", false)

	err := svc.SendVerificationEmail(ctx, user.Email)

	require.NoError(t, err)
	otp := notifier.otp(user.Email)
	assert.Len(t, otp, 6)

	// The store holds the digest, never the plaintext code.
	stored, err := repo.GetUserByEmail(ctx, user.Email)
	require.NoError(t, err)
	require.NotNil(t, stored.VerificationOTPHash)
	assert.Equal(t, credentials.Digest(otp), *stored.VerificationOTPHash)
	require.NotNil(t, stored.VerificationOTPExpires)
	assert.WithinDuration(t, time.Now().Add(credentials.ChallengeTTL), *stored.VerificationOTPExpires, time.Minute)
}

func TestSendVerificationEmail_UnknownEmail(t *testing.T) {
	svc, _, _ := newAuthService(t)

	err := svc.SendVerificationEmail(context.Background(), "nobody@std.mans.edu.eg")

	assert.ErrorIs(t, err, auth.ErrUserNotFound)
}

func TestSendVerificationEmail_AlreadyVerified(t *testing.T) {
	svc, repo, _ := newAuthService(t)

	user := testutil.NewTestUser(t, repo, "ahmed@std.mans.edu.eg", "password123", true)

	err := svc.SendVerificationEmail(context.Background(), user.Email)

	assert.ErrorIs(t, err, auth.ErrAlreadyVerified)
}

func TestSendVerificationEmail_DeliveryFailureDoesNotFail(t *testing.T) {
	svc, repo, notifier := newAuthService(t)
	ctx := context.Background()

	user := testutil.NewTestUser(t, repo, "ahmed@std.mans.edu.eg", "password123", false)
	notifier.fail = true

	err := svc.SendVerificationEmail(ctx, user.Email)

	// The challenge is committed even when the mail bounces.
	require.NoError(t, err)
	stored, err := repo.GetUserByEmail(ctx, user.Email)
	require.NoError(t, err)
	assert.NotNil(t, stored.VerificationOTPHash)
}

func TestVerifyOTP(t *testing.T) {
	svc, repo, notifier := newAuthService(t)
	ctx := context.Background()

	user := testutil.NewTestUser(t, repo, "ahmed@std.mans.edu.eg", "password123", false)
	require.NoError(t, svc.SendVerificationEmail(ctx, user.Email))

	session, err := svc.VerifyOTP(ctx, user.Email, notifier.otp(user.Email))

	require.NoError(t, err)
	assert.NotEmpty(t, session.AccessToken)

	stored, err := repo.GetUserByEmail(ctx, user.Email)
	require.NoError(t, err)
	assert.True(t, stored.IsVerified)
	assert.Nil(t, stored.VerificationOTPHash)
	assert.Nil(t, stored.VerificationOTPExpires)

	// The account can log in now.
	_, err = svc.Login(ctx, user.Email, "password123")
	assert.NoError(t, err)
}

func TestVerifyOTP_WrongCode(t *testing.T) {
	svc, repo, notifier := newAuthService(t)
	ctx := context.Background()

	user := testutil.NewTestUser(t, repo, "ahmed@std.mans.edu.eg", "password123", false)
	require.NoError(t, svc.SendVerificationEmail(ctx, user.Email))

	wrong := "000000"
	if notifier.otp(user.Email) == wrong {
		wrong = "000001"
	}
	_, err := svc.VerifyOTP(ctx, user.Email, wrong)

	assert.ErrorIs(t, err, auth.ErrInvalidOrExpiredOTP)
}

func TestVerifyOTP_Expired(t *testing.T) {
	svc, repo, _ := newAuthService(t)
	ctx := context.Background()

	user := testutil.NewTestUser(t, repo, "ahmed@std.mans.edu.eg", "password123", false)
	otp := "123456"
	require.NoError(t, repo.SetVerificationChallenge(ctx, user.ID, credentials.Digest(otp), time.Now().Add(-time.Second)))

	_, err := svc.VerifyOTP(ctx, user.Email, otp)

	assert.ErrorIs(t, err, auth.ErrInvalidOrExpiredOTP)
}

func TestVerifyOTP_ReissueInvalidatesPrevious(t *testing.T) {
	svc, repo, notifier := newAuthService(t)
	ctx := context.Background()

	user := testutil.NewTestUser(t, repo, "ahmed@std.mans.edu.eg", "password123", false)
	require.NoError(t, svc.SendVerificationEmail(ctx, user.Email))
	first := notifier.otp(user.Email)

	require.NoError(t, svc.SendVerificationEmail(ctx, user.Email))
	second := notifier.otp(user.Email)

	if first == second {
		t.Skip("collided OTPs, cannot distinguish challenges")
	}

	_, err := svc.VerifyOTP(ctx, user.Email, first)
	assert.ErrorIs(t, err, auth.ErrInvalidOrExpiredOTP)

	_, err = svc.VerifyOTP(ctx, user.Email, second)
	assert.NoError(t, err)
}

func TestVerifyOTP_AlreadyVerified(t *testing.T) {
	svc, repo, notifier := newAuthService(t)
	ctx := context.Background()

	user := testutil.NewTestUser(t, repo, "ahmed@std.mans.edu.eg", "password123", false)
	require.NoError(t, svc.SendVerificationEmail(ctx, user.Email))
	otp := notifier.otp(user.Email)

	_, err := svc.VerifyOTP(ctx, user.Email, otp)
	require.NoError(t, err)

	// Replaying the consumed code fails.
	_, err = svc.VerifyOTP(ctx, user.Email, otp)
	assert.ErrorIs(t, err, auth.ErrAlreadyVerified)
}

func TestForgetPassword(t *testing.T) {
	svc, repo, notifier := newAuthService(t)
	ctx := context.Background()

	user := testutil.NewTestUser(t, repo, "ahmed@std.mans.edu.eg", "password123", true)

	err := svc.ForgetPassword(ctx, user.Email)

	require.NoError(t, err)
	tok := notifier.resetToken(user.Email)
	assert.Len(t, tok, 64)

	stored, err := repo.GetUserByEmail(ctx, user.Email)
	require.NoError(t, err)
	require.NotNil(t, stored.PasswordResetHash)
	assert.Equal(t, credentials.Digest(tok), *stored.PasswordResetHash)
}

func TestForgetPassword_UnknownEmail(t *testing.T) {
	svc, _, _ := newAuthService(t)

	err := svc.ForgetPassword(context.Background(), "nobody@std.mans.edu.eg")

	assert.ErrorIs(t, err, auth.ErrUserNotFound)
}

func TestResetPassword(t *testing.T) {
	svc, repo, notifier := newAuthService(t)
	ctx := context.Background()

	user := testutil.NewTestUser(t, repo, "ahmed@std.mans.edu.eg", "password123", true)
	require.NoError(t, svc.ForgetPassword(ctx, user.Email))

	err := svc.ResetPassword(ctx, notifier.resetToken(user.Email), "newpassword456")

	require.NoError(t, err)
	assert.Contains(t, notifier.confirmations, user.Email)

	stored, err := repo.GetUserByEmail(ctx, user.Email)
	require.NoError(t, err)
	assert.Nil(t, stored.PasswordResetHash)
	assert.Nil(t, stored.PasswordResetExpires)

	// New password works, the old one does not.
	_, err = svc.Login(ctx, user.Email, "newpassword456")
	assert.NoError(t, err)
	_, err = svc.Login(ctx, user.Email, "password123")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestResetPassword_InvalidToken(t *testing.T) {
	svc, _, _ := newAuthService(t)

	err := svc.ResetPassword(context.Background(), strings.Repeat("ab", 32), "newpassword456")

	assert.ErrorIs(t, err, auth.ErrInvalidOrExpiredToken)
}

func TestResetPassword_Expired(t *testing.T) {
	svc, repo, _ := newAuthService(t)
	ctx := context.Background()

	user := testutil.NewTestUser(t, repo, "ahmed@std.mans.edu.eg", "password123", true)
	tok := strings.Repeat("cd", 32)
	require.NoError(t, repo.SetResetChallenge(ctx, user.ID, credentials.Digest(tok), time.Now().Add(-time.Second)))

	err := svc.ResetPassword(ctx, tok, "newpassword456")

	assert.ErrorIs(t, err, auth.ErrInvalidOrExpiredToken)

	// The password is untouched by a rejected reset.
	_, err = svc.Login(ctx, user.Email, "password123")
	assert.NoError(t, err)
}

func TestResetPassword_WeakPassword(t *testing.T) {
	svc, _, _ := newAuthService(t)

	err := svc.ResetPassword(context.Background(), strings.Repeat("ab", 32), "short")

	assert.ErrorIs(t, err, auth.ErrWeakPassword)
}

func TestResetPassword_SingleUse(t *testing.T) {
	svc, repo, notifier := newAuthService(t)
	ctx := context.Background()

	user := testutil.NewTestUser(t, repo, "ahmed@std.mans.edu.eg", "password123", true)
	require.NoError(t, svc.ForgetPassword(ctx, user.Email))
	tok := notifier.resetToken(user.Email)

	require.NoError(t, svc.ResetPassword(ctx, tok, "newpassword456"))

	err := svc.ResetPassword(ctx, tok, "anotherpass789")
	assert.ErrorIs(t, err, auth.ErrInvalidOrExpiredToken)
}

func TestResetPassword_ReissueInvalidatesPrevious(t *testing.T) {
	svc, repo, notifier := newAuthService(t)
	ctx := context.Background()

	user := testutil.NewTestUser(t, repo, "ahmed@std.mans.edu.eg", "password123", true)
	require.NoError(t, svc.ForgetPassword(ctx, user.Email))
	first := notifier.resetToken(user.Email)

	require.NoError(t, svc.ForgetPassword(ctx, user.Email))
	second := notifier.resetToken(user.Email)
	require.NotEqual(t, first, second)

	err := svc.ResetPassword(ctx, first, "newpassword456")
	assert.ErrorIs(t, err, auth.ErrInvalidOrExpiredToken)

	err = svc.ResetPassword(ctx, second, "newpassword456")
	assert.NoError(t, err)
}

func TestFullVerificationFlow(t *testing.T) {
	svc, _, notifier := newAuthService(t)
	ctx := context.Background()

	const email = "flow@std.mans.edu.eg"
	_, err := svc.Register(ctx, auth.RegisterParams{Name: "Flow", Email: email, Password: "password123"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, email, "password123")
	require.ErrorIs(t, err, auth.ErrNotVerified)

	require.NoError(t, svc.SendVerificationEmail(ctx, email))
	session, err := svc.VerifyOTP(ctx, email, notifier.otp(email))
	require.NoError(t, err)
	assert.NotEmpty(t, session.AccessToken)

	session, err = svc.Login(ctx, email, "password123")
	require.NoError(t, err)
	assert.Equal(t, email, session.User.Email)
}
