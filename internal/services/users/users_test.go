// Copyright 2025 The CampussGo Authors
// Licensed under the EUPL-1.2

package users_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/campussgo/campussgo/internal/credentials"
	"codeberg.org/campussgo/campussgo/internal/models"
	"codeberg.org/campussgo/campussgo/internal/repository"
	"codeberg.org/campussgo/campussgo/internal/services/users"
	"codeberg.org/campussgo/campussgo/internal/testutil"
)

// fakeStore is an in-memory object store.
type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string][]byte)}
}

func (f *fakeStore) Put(_ context.Context, key string, body []byte, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = body
	return nil
}

func (f *fakeStore) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	f.deleted = append(f.deleted, key)
	return nil
}

func newUserService(t *testing.T) (*users.Service, *repository.Repository, *fakeStore) {
	t.Helper()
	_, repo := testutil.NewTestDB(t)
	store := newFakeStore()
	return users.NewService(repo, store), repo, store
}

// pngBytes encodes a small solid-color PNG.
func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 20, 10))
	for y := range 10 {
		for x := range 20 {
			img.Set(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestCreate(t *testing.T) {
	svc, repo, _ := newUserService(t)
	ctx := context.Background()

	user, err := svc.Create(ctx, users.CreateParams{
		Name:     "Ahmed",
		Email:    "ahmed@std.mans.edu.eg",
		Password: "password123",
		Role:     models.RoleAdmin,
	})

	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, user.Role)

	stored, err := repo.GetUserByEmailWithPassword(ctx, user.Email)
	require.NoError(t, err)
	assert.True(t, credentials.VerifyPassword("password123", stored.PasswordHash))
}

func TestCreate_Validation(t *testing.T) {
	svc, repo, _ := newUserService(t)
	ctx := context.Background()

	testutil.NewTestUser(t, repo, "taken@std.mans.edu.eg", "password123", true)

	tests := []struct {
		name    string
		params  users.CreateParams
		wantErr error
	}{
		{"invalid email", users.CreateParams{Name: "A", Email: "a@gmail.com", Password: "password123"}, users.ErrInvalidEmail},
		{"weak password", users.CreateParams{Name: "A", Email: "a@std.mans.edu.eg", Password: "short"}, users.ErrWeakPassword},
		{"unknown role", users.CreateParams{Name: "A", Email: "a@std.mans.edu.eg", Password: "password123", Role: "superuser"}, users.ErrInvalidRole},
		{"duplicate email", users.CreateParams{Name: "A", Email: "taken@std.mans.edu.eg", Password: "password123"}, users.ErrEmailExists},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.params)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestGet_NotFound(t *testing.T) {
	svc, _, _ := newUserService(t)

	_, err := svc.Get(context.Background(), 999)

	assert.ErrorIs(t, err, users.ErrNotFound)
}

func TestUpdate(t *testing.T) {
	svc, repo, _ := newUserService(t)
	ctx := context.Background()

	created := testutil.NewTestUser(t, repo, "a@std.mans.edu.eg", "password123", true)

	name := "Renamed"
	password := "freshpassword1"
	user, err := svc.Update(ctx, created.ID, users.UpdateParams{
		Name:     &name,
		Password: &password,
	})

	require.NoError(t, err)
	assert.Equal(t, "Renamed", user.Name)

	stored, err := repo.GetUserByEmailWithPassword(ctx, created.Email)
	require.NoError(t, err)
	assert.True(t, credentials.VerifyPassword("freshpassword1", stored.PasswordHash))
}

func TestUpdate_Validation(t *testing.T) {
	svc, repo, _ := newUserService(t)
	ctx := context.Background()

	created := testutil.NewTestUser(t, repo, "a@std.mans.edu.eg", "password123", true)

	badEmail := "a@gmail.com"
	_, err := svc.Update(ctx, created.ID, users.UpdateParams{Email: &badEmail})
	assert.ErrorIs(t, err, users.ErrInvalidEmail)

	badRole := models.Role("superuser")
	_, err = svc.Update(ctx, created.ID, users.UpdateParams{Role: &badRole})
	assert.ErrorIs(t, err, users.ErrInvalidRole)

	weak := "short"
	_, err = svc.Update(ctx, created.ID, users.UpdateParams{Password: &weak})
	assert.ErrorIs(t, err, users.ErrWeakPassword)
}

func TestUpdate_NotFound(t *testing.T) {
	svc, _, _ := newUserService(t)

	name := "Nobody"
	_, err := svc.Update(context.Background(), 999, users.UpdateParams{Name: &name})

	assert.ErrorIs(t, err, users.ErrNotFound)
}

func TestDelete(t *testing.T) {
	svc, repo, _ := newUserService(t)
	ctx := context.Background()

	created := testutil.NewTestUser(t, repo, "a@std.mans.edu.eg", "password123", true)

	require.NoError(t, svc.Delete(ctx, created.ID))
	assert.ErrorIs(t, svc.Delete(ctx, created.ID), users.ErrNotFound)
}

func TestUploadProfileImage(t *testing.T) {
	svc, repo, store := newUserService(t)
	ctx := context.Background()

	created := testutil.NewTestUser(t, repo, "a@std.mans.edu.eg", "password123", true)

	key, err := svc.UploadProfileImage(ctx, created.ID, "avatar.png", pngBytes(t))

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "users/"))
	assert.True(t, strings.HasSuffix(key, "-avatar.png"))
	assert.Contains(t, store.objects, key)

	user, err := repo.GetUserByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, key, user.ProfileImage)
}

func TestUploadProfileImage_ReplacesPrevious(t *testing.T) {
	svc, repo, store := newUserService(t)
	ctx := context.Background()

	created := testutil.NewTestUser(t, repo, "a@std.mans.edu.eg", "password123", true)

	first, err := svc.UploadProfileImage(ctx, created.ID, "one.png", pngBytes(t))
	require.NoError(t, err)

	second, err := svc.UploadProfileImage(ctx, created.ID, "two.png", pngBytes(t))
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Contains(t, store.deleted, first)
	assert.NotContains(t, store.objects, first)
}

func TestUploadProfileImage_NeverDeletesPlaceholder(t *testing.T) {
	svc, repo, store := newUserService(t)
	ctx := context.Background()

	created := testutil.NewTestUser(t, repo, "a@std.mans.edu.eg", "password123", true)

	_, err := svc.UploadProfileImage(ctx, created.ID, "avatar.png", pngBytes(t))

	require.NoError(t, err)
	assert.NotContains(t, store.deleted, models.DefaultProfileImage)
}

func TestUploadProfileImage_InvalidImage(t *testing.T) {
	svc, repo, store := newUserService(t)
	ctx := context.Background()

	created := testutil.NewTestUser(t, repo, "a@std.mans.edu.eg", "password123", true)

	_, err := svc.UploadProfileImage(ctx, created.ID, "notes.txt", []byte("not an image"))

	assert.ErrorIs(t, err, users.ErrInvalidImage)
	assert.Empty(t, store.objects)
}

func TestUploadProfileImage_UnknownUser(t *testing.T) {
	svc, _, _ := newUserService(t)

	_, err := svc.UploadProfileImage(context.Background(), 999, "avatar.png", pngBytes(t))

	assert.ErrorIs(t, err, users.ErrNotFound)
}
