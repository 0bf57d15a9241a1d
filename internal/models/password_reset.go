// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import "time"

// PasswordReset is an issued, not yet consumed reset token.
// Rows are deleted on use or when found expired; they are never updated.
type PasswordReset struct { //nolint:govet // fieldalignment: readability over optimization
	TokenHash string `db:"token" json:"-"` // SHA256 of the emailed token
	Email     string `db:"email" json:"email"`
	Expires   int64  `db:"expires_at" json:"-"` // unix seconds
	Created   int64  `db:"created_at" json:"-"` // unix seconds
}

// ExpiresAt returns the expiry as a time.
func (p *PasswordReset) ExpiresAt() time.Time {
	return time.Unix(p.Expires, 0).UTC()
}

// CreatedAt returns the issuance time.
func (p *PasswordReset) CreatedAt() time.Time {
	return time.Unix(p.Created, 0).UTC()
}

// Expired reports whether the token is past its expiry at now.
func (p *PasswordReset) Expired(now time.Time) bool {
	return p.ExpiresAt().Before(now)
}
