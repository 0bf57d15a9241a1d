// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package auth implements account registration and login.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"codeberg.org/oliverandrich/hookpanel/internal/models"
	"codeberg.org/oliverandrich/hookpanel/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidEmail       = errors.New("invalid email format")
)

// dummyHash keeps login timing constant when the user does not exist.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("dummy-password-for-timing"), bcrypt.DefaultCost)

type Service struct {
	repo      *repository.Repository
	validator *PasswordValidator
	cost      int
}

// Option configures a Service.
type Option func(*Service)

// WithBcryptCost overrides bcrypt.DefaultCost. Tests use bcrypt.MinCost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		s.cost = cost
	}
}

func NewService(repo *repository.Repository, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		validator: DefaultPasswordValidator(),
		cost:      bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PasswordValidator returns the validator shared with the reset flow.
func (s *Service) PasswordValidator() *PasswordValidator {
	return s.validator
}

// HashPassword returns the bcrypt hash of password at the configured cost.
func (s *Service) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// Register creates a new user account.
func (s *Service) Register(ctx context.Context, email, password string) (*models.User, error) {
	email = NormalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrInvalidEmail
	}

	validation := s.validator.Validate(password, email)
	if !validation.Valid {
		return nil, &PasswordValidationError{Errors: validation.Errors}
	}

	exists, err := s.repo.UserExists(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if exists {
		return nil, ErrUserExists
	}

	hash, err := s.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.CreateUser(ctx, email, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("register_success", "user_id", user.ID, "email", email)
	return user, nil
}

// Login authenticates a user and returns the user if successful.
func (s *Service) Login(ctx context.Context, email, password string) (*models.User, error) {
	email = NormalizeEmail(email)
	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			slog.Warn("login_failed", "email", email, "reason", "user_not_found")
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		slog.Warn("login_failed", "email", email, "reason", "invalid_password")
		return nil, ErrInvalidCredentials
	}

	slog.Info("login_success", "user_id", user.ID, "email", email)
	return user, nil
}

// NormalizeEmail trims and lowercases an address so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
