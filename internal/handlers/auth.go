// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"codeberg.org/oliverandrich/hookpanel/internal/models"
	"codeberg.org/oliverandrich/hookpanel/internal/services/auth"
	"codeberg.org/oliverandrich/hookpanel/internal/services/reset"
	"github.com/labstack/echo/v4"
)

const (
	msgResetRequested = "If an account exists, you will receive a password reset email"
	msgResetDone      = "Password successfully reset"
)

// Accounts registers and authenticates users. *auth.Service satisfies it.
type Accounts interface {
	Register(ctx context.Context, email, password string) (*models.User, error)
	Login(ctx context.Context, email, password string) (*models.User, error)
}

// Resetter runs the password reset flow. *reset.Service satisfies it.
type Resetter interface {
	RequestReset(ctx context.Context, email string) error
	CompleteReset(ctx context.Context, token, password string) error
}

// AuthHandlers contains handlers for authentication.
type AuthHandlers struct {
	accounts Accounts
	resets   Resetter
}

// NewAuth creates a new AuthHandlers instance.
func NewAuth(accounts Accounts, resets Resetter) *AuthHandlers {
	return &AuthHandlers{accounts: accounts, resets: resets}
}

// Check handles GET /auth/check. Sessions are not implemented, so every
// caller is treated as authenticated.
func (h *AuthHandlers) Check(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

// CredentialsRequest is the body of register and login.
type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandlers) bindCredentials(c echo.Context) (CredentialsRequest, bool, error) {
	var req CredentialsRequest
	if !isJSON(c) {
		return req, false, errorJSON(c, http.StatusUnsupportedMediaType, msgUnsupportedMediaType)
	}
	if err := bindJSON(c, &req); err != nil {
		return req, false, errorJSON(c, http.StatusBadRequest, msgInvalidJSON)
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return req, false, errorJSON(c, http.StatusBadRequest, "Email and password are required")
	}
	return req, true, nil
}

// Register handles POST /auth/register.
func (h *AuthHandlers) Register(c echo.Context) error {
	req, ok, err := h.bindCredentials(c)
	if !ok {
		return err
	}

	user, err := h.accounts.Register(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		var pvErr *auth.PasswordValidationError
		switch {
		case errors.Is(err, auth.ErrInvalidEmail):
			return errorJSON(c, http.StatusBadRequest, "Invalid email address")
		case errors.Is(err, auth.ErrUserExists):
			return errorJSON(c, http.StatusConflict, "An account with this email already exists")
		case errors.As(err, &pvErr):
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: pvErr.Error(), Details: pvErr.Messages()})
		default:
			return internalError(c, "Error creating account", err)
		}
	}
	return c.JSON(http.StatusCreated, user)
}

// Login handles POST /auth/login.
func (h *AuthHandlers) Login(c echo.Context) error {
	req, ok, err := h.bindCredentials(c)
	if !ok {
		return err
	}

	user, err := h.accounts.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			return errorJSON(c, http.StatusUnauthorized, "Invalid email or password")
		}
		return internalError(c, "Error signing in", err)
	}
	return c.JSON(http.StatusOK, user)
}

// PasswordResetRequest is the body of POST /auth/password-reset/request.
type PasswordResetRequest struct {
	Email string `json:"email"`
}

// RequestPasswordReset answers identically whether or not the account exists.
func (h *AuthHandlers) RequestPasswordReset(c echo.Context) error {
	if !isJSON(c) {
		return errorJSON(c, http.StatusUnsupportedMediaType, msgUnsupportedMediaType)
	}

	var req PasswordResetRequest
	if err := bindJSON(c, &req); err != nil {
		return errorJSON(c, http.StatusBadRequest, msgInvalidJSON)
	}
	if strings.TrimSpace(req.Email) == "" {
		return errorJSON(c, http.StatusBadRequest, "Email is required")
	}

	if err := h.resets.RequestReset(c.Request().Context(), req.Email); err != nil {
		return internalError(c, "Error processing password reset request", err)
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: msgResetRequested})
}

// CompletePasswordResetRequest is the body of POST /auth/password-reset/reset.
type CompletePasswordResetRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// CompletePasswordReset redeems a reset token.
func (h *AuthHandlers) CompletePasswordReset(c echo.Context) error {
	if !isJSON(c) {
		return errorJSON(c, http.StatusUnsupportedMediaType, msgUnsupportedMediaType)
	}

	var req CompletePasswordResetRequest
	if err := bindJSON(c, &req); err != nil {
		return errorJSON(c, http.StatusBadRequest, msgInvalidJSON)
	}
	if strings.TrimSpace(req.Token) == "" || req.Password == "" {
		return errorJSON(c, http.StatusBadRequest, "Token and password are required")
	}

	err := h.resets.CompleteReset(c.Request().Context(), strings.TrimSpace(req.Token), req.Password)
	if err != nil {
		var pvErr *auth.PasswordValidationError
		switch {
		case errors.Is(err, reset.ErrInvalidToken):
			return errorJSON(c, http.StatusBadRequest, "Invalid or expired reset token")
		case errors.Is(err, reset.ErrTokenExpired):
			return errorJSON(c, http.StatusBadRequest, "Reset token has expired")
		case errors.As(err, &pvErr):
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: pvErr.Error(), Details: pvErr.Messages()})
		default:
			return internalError(c, "Error processing password reset", err)
		}
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: msgResetDone})
}
