// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package testutil provides test helpers and fixtures.
package testutil

import (
	"context"
	"io"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"codeberg.org/oliverandrich/hookpanel/internal/database"
	"codeberg.org/oliverandrich/hookpanel/internal/models"
	"codeberg.org/oliverandrich/hookpanel/internal/repository"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"github.com/vinovest/sqlx"
	"golang.org/x/crypto/bcrypt"
)

// NewTestDB creates an in-memory SQLite database for tests.
// Returns both the database connection and the repository for convenience.
func NewTestDB(t *testing.T) (*sqlx.DB, *repository.Repository) {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db, repository.New(db)
}

// NewTestFileDB is NewTestDB backed by a file in a temporary directory, so
// connections contend for SQLite's locks the way they do in production.
func NewTestFileDB(t *testing.T) (*sqlx.DB, *repository.Repository) {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db, repository.New(db)
}

// PasswordResetCount returns how many reset tokens are stored for email.
func PasswordResetCount(t *testing.T, repo *repository.Repository, email string) int {
	t.Helper()
	var n int
	require.NoError(t, repo.DB().Get(&n, `SELECT count(*) FROM password_resets WHERE email = ?`, email))
	return n
}

// NewTestUser creates a user with a bcrypt hash of password.
func NewTestUser(t *testing.T, repo *repository.Repository, email, password string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	user, err := repo.CreateUser(context.Background(), email, string(hash))
	require.NoError(t, err)
	return user
}

// NewEchoContext creates an Echo context with a JSON content type.
func NewEchoContext(e *echo.Echo, method, path string, body io.Reader) (echo.Context, *httptest.ResponseRecorder) {
	return NewEchoContextWithHeaders(e, method, path, body, map[string]string{
		echo.HeaderContentType: echo.MIMEApplicationJSON,
	})
}

// NewEchoContextWithHeaders creates an Echo context with custom headers.
func NewEchoContextWithHeaders(e *echo.Echo, method, path string, body io.Reader, headers map[string]string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, body)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}
