// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package reset_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/url"
	"sync"
	"testing"
	"time"

	"codeberg.org/oliverandrich/hookpanel/internal/repository"
	"codeberg.org/oliverandrich/hookpanel/internal/services/auth"
	"codeberg.org/oliverandrich/hookpanel/internal/services/reset"
	"codeberg.org/oliverandrich/hookpanel/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vinovest/sqlx"
	"golang.org/x/crypto/bcrypt"
)

type sentMail struct {
	to       string
	url      string
	validFor string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *fakeMailer) SendPasswordReset(_ context.Context, to, resetURL, validFor string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{to: to, url: resetURL, validFor: validFor})
	return m.err
}

func (m *fakeMailer) last(t *testing.T) sentMail {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent)
	return m.sent[len(m.sent)-1]
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	repo   *repository.Repository
	svc    *reset.Service
	mailer *fakeMailer
	clock  *clock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	_, repo := testutil.NewTestDB(t)
	return newFixtureOn(t, repo)
}

func newFixtureOn(t *testing.T, repo *repository.Repository) *fixture {
	t.Helper()
	authSvc := auth.NewService(repo, auth.WithBcryptCost(bcrypt.MinCost))
	f := &fixture{
		repo:   repo,
		mailer: &fakeMailer{},
		clock:  &clock{now: time.Unix(1_700_000_000, 0)},
	}
	f.svc = reset.NewService(repo, authSvc, "https://panel.example.com",
		reset.WithMailer(f.mailer),
		reset.WithClock(f.clock.Now),
	)
	testutil.NewTestUser(t, repo, "owner@example.com", "old-password-123")
	return f
}

// issue requests a reset and returns the plaintext token from the mailed link.
func (f *fixture) issue(t *testing.T) string {
	t.Helper()
	require.NoError(t, f.svc.RequestReset(context.Background(), "owner@example.com"))
	link, err := url.Parse(f.mailer.last(t).url)
	require.NoError(t, err)
	token := link.Query().Get("token")
	require.NotEmpty(t, token)
	return token
}

func (f *fixture) assertPassword(t *testing.T, password string) {
	t.Helper()
	user, err := f.repo.GetUserByEmail(context.Background(), "owner@example.com")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)))
}

func TestGenerateToken(t *testing.T) {
	token, hash, err := reset.GenerateToken()

	require.NoError(t, err)
	assert.Len(t, token, 2*reset.TokenLength)
	assert.Equal(t, reset.HashToken(token), hash)
	assert.NotEqual(t, token, hash)

	other, _, err := reset.GenerateToken()
	require.NoError(t, err)
	assert.NotEqual(t, token, other)
}

func TestRequestReset_KnownEmail(t *testing.T) {
	f := newFixture(t)

	token := f.issue(t)

	mail := f.mailer.last(t)
	assert.Equal(t, "owner@example.com", mail.to)
	assert.Equal(t, "https://panel.example.com/reset-password?token="+token, mail.url)
	assert.Equal(t, "1h0m0s", mail.validFor)

	stored, err := f.repo.GetPasswordReset(context.Background(), reset.HashToken(token))
	require.NoError(t, err)
	assert.Equal(t, "owner@example.com", stored.Email)
	assert.Equal(t, f.clock.Now().Add(time.Hour).Unix(), stored.Expires)

	_, err = f.repo.GetPasswordReset(context.Background(), token)
	assert.ErrorIs(t, err, repository.ErrNotFound, "plaintext token must not be stored")
}

func TestRequestReset_UnknownEmail(t *testing.T) {
	f := newFixture(t)

	err := f.svc.RequestReset(context.Background(), "nobody@example.com")

	require.NoError(t, err)
	assert.Empty(t, f.mailer.sent)
	assert.Zero(t, testutil.PasswordResetCount(t, f.repo, "nobody@example.com"))
}

func TestRequestReset_CaseInsensitiveEmail(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.svc.RequestReset(context.Background(), "  OWNER@Example.com "))

	assert.Equal(t, "owner@example.com", f.mailer.last(t).to)
}

func TestRequestReset_MultipleTokensCoexist(t *testing.T) {
	f := newFixture(t)

	first := f.issue(t)
	second := f.issue(t)
	assert.NotEqual(t, first, second)

	assert.Equal(t, 2, testutil.PasswordResetCount(t, f.repo, "owner@example.com"))

	require.NoError(t, f.svc.CompleteReset(context.Background(), first, "first-new-password"))
	require.NoError(t, f.svc.CompleteReset(context.Background(), second, "second-new-password"))
	f.assertPassword(t, "second-new-password")
}

func TestRequestReset_MailFailureSwallowed(t *testing.T) {
	f := newFixture(t)
	f.mailer.err = errors.New("smtp down")

	err := f.svc.RequestReset(context.Background(), "owner@example.com")

	require.NoError(t, err)
	assert.Equal(t, 1, testutil.PasswordResetCount(t, f.repo, "owner@example.com"), "token is still issued")
}

func TestRequestReset_NoMailer(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	testutil.NewTestUser(t, repo, "owner@example.com", "old-password-123")
	svc := reset.NewService(repo, auth.NewService(repo, auth.WithBcryptCost(bcrypt.MinCost)), "https://panel.example.com")

	var logs bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	require.NoError(t, svc.RequestReset(context.Background(), "owner@example.com"))

	assert.Equal(t, 1, testutil.PasswordResetCount(t, repo, "owner@example.com"))
	assert.Contains(t, logs.String(), "password_reset_mail_disabled")
	assert.NotContains(t, logs.String(), "reset-password?token=", "reset link must not be logged")
}

func TestCompleteReset(t *testing.T) {
	f := newFixture(t)
	token := f.issue(t)

	err := f.svc.CompleteReset(context.Background(), token, "brand-new-password")

	require.NoError(t, err)
	f.assertPassword(t, "brand-new-password")
	_, err = f.repo.GetPasswordReset(context.Background(), reset.HashToken(token))
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestCompleteReset_SingleUse(t *testing.T) {
	f := newFixture(t)
	token := f.issue(t)

	require.NoError(t, f.svc.CompleteReset(context.Background(), token, "brand-new-password"))
	err := f.svc.CompleteReset(context.Background(), token, "another-password")

	assert.ErrorIs(t, err, reset.ErrInvalidToken)
	f.assertPassword(t, "brand-new-password")
}

func TestCompleteReset_UnknownToken(t *testing.T) {
	f := newFixture(t)

	err := f.svc.CompleteReset(context.Background(), "deadbeef", "brand-new-password")

	assert.ErrorIs(t, err, reset.ErrInvalidToken)
	f.assertPassword(t, "old-password-123")
}

func TestCompleteReset_Expired(t *testing.T) {
	f := newFixture(t)
	token := f.issue(t)

	f.clock.Advance(time.Hour + time.Second)
	err := f.svc.CompleteReset(context.Background(), token, "brand-new-password")

	assert.ErrorIs(t, err, reset.ErrTokenExpired)
	f.assertPassword(t, "old-password-123")

	err = f.svc.CompleteReset(context.Background(), token, "brand-new-password")
	assert.ErrorIs(t, err, reset.ErrInvalidToken, "expired token is deleted on first use")
}

func TestCompleteReset_ExpiredWithWeakPassword(t *testing.T) {
	f := newFixture(t)
	token := f.issue(t)

	f.clock.Advance(2 * time.Hour)
	err := f.svc.CompleteReset(context.Background(), token, "12345678")

	assert.ErrorIs(t, err, reset.ErrTokenExpired)
	assert.NotErrorIs(t, err, reset.ErrWeakPassword)
	_, err = f.repo.GetPasswordReset(context.Background(), reset.HashToken(token))
	assert.ErrorIs(t, err, repository.ErrNotFound, "expired token is deleted on first use")

	err = f.svc.CompleteReset(context.Background(), token, "brand-new-password")
	assert.ErrorIs(t, err, reset.ErrInvalidToken)
	f.assertPassword(t, "old-password-123")
}

func TestCompleteReset_UnknownTokenWithWeakPassword(t *testing.T) {
	f := newFixture(t)

	err := f.svc.CompleteReset(context.Background(), "deadbeef", "short")

	assert.ErrorIs(t, err, reset.ErrInvalidToken)
	assert.NotErrorIs(t, err, reset.ErrWeakPassword)
}

func TestCompleteReset_AtExpiryBoundary(t *testing.T) {
	f := newFixture(t)
	token := f.issue(t)

	f.clock.Advance(time.Hour)

	require.NoError(t, f.svc.CompleteReset(context.Background(), token, "brand-new-password"))
}

func TestCompleteReset_WeakPasswordKeepsToken(t *testing.T) {
	f := newFixture(t)
	token := f.issue(t)

	err := f.svc.CompleteReset(context.Background(), token, "short")

	require.ErrorIs(t, err, reset.ErrWeakPassword)
	var pvErr *auth.PasswordValidationError
	assert.ErrorAs(t, err, &pvErr)

	require.NoError(t, f.svc.CompleteReset(context.Background(), token, "brand-new-password"))
}

func TestCompleteReset_ConcurrentSingleWinner(t *testing.T) {
	tests := []struct {
		name string
		open func(*testing.T) (*sqlx.DB, *repository.Repository)
	}{
		{"memory", testutil.NewTestDB},
		{"file", testutil.NewTestFileDB},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, repo := tt.open(t)
			f := newFixtureOn(t, repo)
			token := f.issue(t)

			const workers = 6
			errs := make([]error, workers)
			var wg sync.WaitGroup
			for i := range workers {
				wg.Add(1)
				go func() {
					defer wg.Done()
					errs[i] = f.svc.CompleteReset(context.Background(), token, "brand-new-password")
				}()
			}
			wg.Wait()

			var wins int
			for _, err := range errs {
				if err == nil {
					wins++
					continue
				}
				assert.ErrorIs(t, err, reset.ErrInvalidToken)
			}
			assert.Equal(t, 1, wins)
			f.assertPassword(t, "brand-new-password")
		})
	}
}

func TestPurgeExpired(t *testing.T) {
	f := newFixture(t)
	f.issue(t)
	f.clock.Advance(30 * time.Minute)
	fresh := f.issue(t)

	f.clock.Advance(45 * time.Minute)
	n, err := f.svc.PurgeExpired(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	require.NoError(t, f.svc.CompleteReset(context.Background(), fresh, "brand-new-password"))
}

func TestWithTTL(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	testutil.NewTestUser(t, repo, "owner@example.com", "old-password-123")
	mailer := &fakeMailer{}
	svc := reset.NewService(repo, auth.NewService(repo, auth.WithBcryptCost(bcrypt.MinCost)), "https://panel.example.com",
		reset.WithMailer(mailer),
		reset.WithTTL(15*time.Minute),
	)

	require.NoError(t, svc.RequestReset(context.Background(), "owner@example.com"))

	assert.Equal(t, "15m0s", mailer.last(t).validFor)
}
