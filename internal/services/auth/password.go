// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package auth

import (
	"bufio"
	_ "embed"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

//go:embed common_passwords.txt
var commonPasswordList string

var commonPasswords = loadCommonPasswords(commonPasswordList)

func loadCommonPasswords(list string) map[string]struct{} {
	set := make(map[string]struct{})
	scanner := bufio.NewScanner(strings.NewReader(list))
	for scanner.Scan() {
		if pw := strings.ToLower(strings.TrimSpace(scanner.Text())); pw != "" {
			set[pw] = struct{}{}
		}
	}
	return set
}

// PasswordValidator checks new passwords for registration and reset.
type PasswordValidator struct {
	MinLength            int
	CheckCommonPasswords bool
	CheckUserSimilarity  bool
}

// DefaultPasswordValidator matches the eight character minimum of the reset form.
func DefaultPasswordValidator() *PasswordValidator {
	return &PasswordValidator{
		MinLength:            8,
		CheckCommonPasswords: true,
		CheckUserSimilarity:  true,
	}
}

// ValidationError is a single failed password rule.
type ValidationError struct {
	Code    string
	Message string
}

func (e ValidationError) Error() string {
	return e.Message
}

// PasswordValidationError wraps every rule a password failed.
type PasswordValidationError struct {
	Errors []ValidationError
}

func (e *PasswordValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "password validation failed"
	}
	return e.Errors[0].Message
}

// Messages returns all error messages.
func (e *PasswordValidationError) Messages() []string {
	messages := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		messages[i] = err.Message
	}
	return messages
}

type ValidationResult struct {
	Valid  bool
	Errors []ValidationError
}

// Err returns nil for a valid result and a *PasswordValidationError otherwise.
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	return &PasswordValidationError{Errors: r.Errors}
}

// Validate checks password against the configured rules. userAttributes are
// values the password must not resemble, typically the account email.
func (v *PasswordValidator) Validate(password string, userAttributes ...string) ValidationResult {
	var errs []ValidationError

	if utf8.RuneCountInString(password) < v.MinLength {
		errs = append(errs, ValidationError{
			Code:    "min_length",
			Message: fmt.Sprintf("Password must be at least %d characters long.", v.MinLength),
		})
	}

	if isEntirelyNumeric(password) {
		errs = append(errs, ValidationError{
			Code:    "entirely_numeric",
			Message: "Password cannot be entirely numeric.",
		})
	}

	if v.CheckCommonPasswords && isCommonPassword(password) {
		errs = append(errs, ValidationError{
			Code:    "common_password",
			Message: "This password is too common.",
		})
	}

	if v.CheckUserSimilarity && isSimilarToUserAttributes(password, userAttributes) {
		errs = append(errs, ValidationError{
			Code:    "too_similar",
			Message: "Password is too similar to the email address.",
		})
	}

	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

func isEntirelyNumeric(password string) bool {
	if password == "" {
		return false
	}
	for _, r := range password {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func isCommonPassword(password string) bool {
	_, ok := commonPasswords[strings.ToLower(password)]
	return ok
}

// isSimilarToUserAttributes compares against each attribute and, for email
// addresses, against the local part alone.
func isSimilarToUserAttributes(password string, attributes []string) bool {
	pw := strings.ToLower(password)
	if pw == "" {
		return false
	}
	for _, attr := range attributes {
		candidates := []string{strings.ToLower(attr)}
		if local, _, ok := strings.Cut(candidates[0], "@"); ok {
			candidates = append(candidates, local)
		}
		for _, c := range candidates {
			if len(c) < 3 {
				continue
			}
			if strings.Contains(pw, c) || strings.Contains(c, pw) || similarity(pw, c) > 0.7 {
				return true
			}
		}
	}
	return false
}

// similarity is the longest common subsequence length over the longer input.
func similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
			} else {
				curr[j] = max(prev[j], curr[j-1])
			}
		}
		prev, curr = curr, prev
	}
	return float64(prev[len(b)]) / float64(max(len(a), len(b)))
}
