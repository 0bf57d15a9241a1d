// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package reset issues and redeems single-use password reset tokens.
//
// A token moves from issued to either consumed or expired; both terminal
// states delete the stored record. Only the SHA-256 digest of a token is
// persisted, the plaintext leaves the process inside the reset email.
package reset

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"codeberg.org/oliverandrich/hookpanel/internal/metrics"
	"codeberg.org/oliverandrich/hookpanel/internal/models"
	"codeberg.org/oliverandrich/hookpanel/internal/repository"
	"codeberg.org/oliverandrich/hookpanel/internal/services/auth"
)

const (
	// TokenLength is the number of random bytes in a token.
	TokenLength = 32
	// DefaultTTL is how long a token stays redeemable.
	DefaultTTL = time.Hour
)

var (
	ErrInvalidToken = errors.New("invalid or expired reset token")
	ErrTokenExpired = errors.New("reset token has expired")
	ErrWeakPassword = errors.New("password does not meet requirements")
)

// Mailer delivers the reset link. *email.Service satisfies it.
type Mailer interface {
	SendPasswordReset(ctx context.Context, to, resetURL, validFor string) error
}

// Hasher turns a new password into its stored form.
type Hasher interface {
	HashPassword(password string) (string, error)
}

// Service runs the reset flow.
type Service struct {
	repo      *repository.Repository
	mailer    Mailer
	hasher    Hasher
	validator *auth.PasswordValidator
	metrics   *metrics.Metrics
	now       func() time.Time
	linkBase  string
	ttl       time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithTTL sets the token lifetime. Non-positive values keep DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithMailer sets the mail transport. Without one, tokens are issued but never delivered.
func WithMailer(m Mailer) Option {
	return func(s *Service) { s.mailer = m }
}

// WithMetrics records lifecycle transitions.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService builds a reset service. linkBase is the public origin that
// serves the reset form, without trailing slash.
func NewService(repo *repository.Repository, authSvc *auth.Service, linkBase string, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		hasher:    authSvc,
		validator: authSvc.PasswordValidator(),
		now:       time.Now,
		linkBase:  linkBase,
		ttl:       DefaultTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GenerateToken returns a new plaintext token and its storage hash.
func GenerateToken() (string, string, error) {
	b := make([]byte, TokenLength)
	if _, err := rand.Read(b); err != nil {
		return "", "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	token := hex.EncodeToString(b)
	return token, HashToken(token), nil
}

// HashToken computes the SHA-256 hex digest of a token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// ResetURL builds the link mailed to the user.
func (s *Service) ResetURL(token string) string {
	return s.linkBase + "/reset-password?token=" + url.QueryEscape(token)
}

// RequestReset issues a token for email if an account exists. Unknown
// addresses return nil without creating anything so callers can answer
// identically in both cases. Mail delivery errors are logged, not returned.
func (s *Service) RequestReset(ctx context.Context, email string) error {
	email = auth.NormalizeEmail(email)
	s.metrics.ResetEvent(metrics.ResetRequested, 1)

	exists, err := s.repo.UserExists(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to look up user: %w", err)
	}
	if !exists {
		s.metrics.ResetEvent(metrics.ResetUnknown, 1)
		slog.InfoContext(ctx, "password_reset_unknown_email")
		return nil
	}

	token, hash, err := GenerateToken()
	if err != nil {
		return err
	}
	now := s.now()
	record := &models.PasswordReset{
		TokenHash: hash,
		Email:     email,
		Expires:   now.Add(s.ttl).Unix(),
		Created:   now.Unix(),
	}
	if err := s.repo.CreatePasswordReset(ctx, record); err != nil {
		return fmt.Errorf("failed to store reset token: %w", err)
	}
	s.metrics.ResetEvent(metrics.ResetIssued, 1)

	link := s.ResetURL(token)
	if s.mailer == nil {
		slog.WarnContext(ctx, "password_reset_mail_disabled", "email", email)
		return nil
	}
	if err := s.mailer.SendPasswordReset(ctx, email, link, s.ttl.String()); err != nil {
		s.metrics.ResetEvent(metrics.ResetMailError, 1)
		slog.ErrorContext(ctx, "password_reset_mail_failed", "email", email, "error", err)
		return nil
	}

	slog.InfoContext(ctx, "password_reset_issued", "email", email, "expires_at", record.ExpiresAt())
	return nil
}

// CompleteReset redeems token and sets password. Unknown and expired tokens
// are rejected before the password is looked at, and an expired token is
// deleted on the spot. For a live token a weak password is rejected without
// consuming it, so the same link can be retried.
func (s *Service) CompleteReset(ctx context.Context, token, password string) error {
	hash := HashToken(token)

	pending, err := s.repo.GetPasswordReset(ctx, hash)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		s.metrics.ResetEvent(metrics.ResetInvalid, 1)
		return ErrInvalidToken
	case err != nil:
		return fmt.Errorf("failed to look up reset token: %w", err)
	}
	if pending.Expired(s.now()) {
		if err := s.repo.DeletePasswordReset(ctx, hash); err != nil {
			return fmt.Errorf("failed to delete expired reset token: %w", err)
		}
		return s.expired(ctx, pending)
	}

	validation := s.validator.Validate(password, pending.Email)
	if !validation.Valid {
		return fmt.Errorf("%w: %w", ErrWeakPassword, validation.Err())
	}

	passwordHash, err := s.hasher.HashPassword(password)
	if err != nil {
		return err
	}

	// The lookup above is advisory; the consume decides races and expiry.
	reset, err := s.repo.ConsumePasswordReset(ctx, hash, passwordHash, s.now())
	switch {
	case err == nil:
		s.metrics.ResetEvent(metrics.ResetConsumed, 1)
		slog.InfoContext(ctx, "password_reset_completed", "email", reset.Email)
		return nil
	case errors.Is(err, repository.ErrExpired):
		return s.expired(ctx, reset)
	case errors.Is(err, repository.ErrNotFound):
		s.metrics.ResetEvent(metrics.ResetInvalid, 1)
		return ErrInvalidToken
	default:
		return fmt.Errorf("failed to consume reset token: %w", err)
	}
}

func (s *Service) expired(ctx context.Context, reset *models.PasswordReset) error {
	s.metrics.ResetEvent(metrics.ResetExpired, 1)
	slog.InfoContext(ctx, "password_reset_expired", "email", reset.Email)
	return ErrTokenExpired
}

// PurgeExpired deletes tokens whose expiry has passed and returns how many were removed.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteExpiredPasswordResets(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to purge reset tokens: %w", err)
	}
	s.metrics.ResetEvent(metrics.ResetPurged, int(n))
	return n, nil
}
