// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package config

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/urfave/cli/v3"
)

func TestIsLocalhost(t *testing.T) {
	tests := []struct {
		host     string
		expected bool
	}{
		{"", true},
		{"localhost", true},
		{"127.0.0.1", true},
		{"::1", true},
		{"app.localhost", true},
		{"example.com", false},
		{"192.168.1.1", false},
		{"localhost.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsLocalhost(tt.host))
		})
	}
}

func TestShouldUseTLS(t *testing.T) {
	tests := []struct {
		name     string
		mode     string
		host     string
		expected bool
	}{
		{"off mode", "off", "example.com", false},
		{"acme mode", "acme", "localhost", true},
		{"manual mode", "manual", "localhost", true},
		{"selfsigned mode", "selfsigned", "localhost", true},
		{"auto mode with localhost", "auto", "localhost", false},
		{"auto mode with remote host", "auto", "example.com", true},
		{"empty mode with remote host", "", "example.com", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, shouldUseTLS(tt.mode, tt.host))
		})
	}
}

func TestBuildBaseURL(t *testing.T) {
	tests := []struct {
		name     string
		cfg      *Config
		expected string
	}{
		{
			name: "localhost HTTP default port",
			cfg: &Config{
				Server: ServerConfig{Host: "localhost", Port: 80},
				TLS:    TLSConfig{Mode: "off"},
			},
			expected: "http://localhost",
		},
		{
			name: "localhost HTTP custom port",
			cfg: &Config{
				Server: ServerConfig{Host: "localhost", Port: 8080},
				TLS:    TLSConfig{Mode: "auto"},
			},
			expected: "http://localhost:8080",
		},
		{
			name: "remote host with manual TLS",
			cfg: &Config{
				Server: ServerConfig{Host: "example.com", Port: 8443},
				TLS:    TLSConfig{Mode: "manual"},
			},
			expected: "https://example.com:8443",
		},
		{
			name: "ACME mode forces port 443",
			cfg: &Config{
				Server: ServerConfig{Host: "example.com", Port: 8080},
				TLS:    TLSConfig{Mode: "acme"},
			},
			expected: "https://example.com",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, buildBaseURL(tt.cfg))
		})
	}
}

func TestApplyResetDefaults(t *testing.T) {
	t.Run("fills empty values", func(t *testing.T) {
		cfg := &Config{Server: ServerConfig{BaseURL: "http://localhost:8080"}}

		applyResetDefaults(cfg)

		assert.Equal(t, time.Hour, cfg.Reset.TokenTTL)
		assert.Equal(t, "http://localhost:8080", cfg.Reset.LinkBase)
	})

	t.Run("keeps explicit values and trims slash", func(t *testing.T) {
		cfg := &Config{
			Server: ServerConfig{BaseURL: "http://localhost:8080"},
			Reset:  ResetConfig{TokenTTL: 30 * time.Minute, LinkBase: "https://app.example.com/"},
		}

		applyResetDefaults(cfg)

		assert.Equal(t, 30*time.Minute, cfg.Reset.TokenTTL)
		assert.Equal(t, "https://app.example.com", cfg.Reset.LinkBase)
	})
}

func TestSMTPConfig_Enabled(t *testing.T) {
	assert.False(t, SMTPConfig{}.Enabled())
	assert.False(t, SMTPConfig{Host: "smtp.example.com"}.Enabled())
	assert.True(t, SMTPConfig{Host: "smtp.example.com", From: "noreply@example.com"}.Enabled())
}

func TestFlags(t *testing.T) {
	flags := Flags()

	flagNames := make(map[string]bool)
	for _, f := range flags {
		for _, name := range f.Names() {
			flagNames[name] = true
		}
	}

	for _, name := range []string{"host", "port", "log-level", "database-dsn", "tls-mode", "smtp-host", "upstream-base-url", "reset-token-ttl"} {
		assert.True(t, flagNames[name], "should have %s flag", name)
	}
}

func TestNewFromCLI(t *testing.T) {
	app := &cli.Command{
		Name:  "test",
		Flags: Flags(),
		Action: func(_ context.Context, cmd *cli.Command) error {
			cfg := NewFromCLI(cmd)

			assert.Equal(t, "localhost", cfg.Server.Host)
			assert.Equal(t, 8080, cfg.Server.Port)
			assert.Equal(t, "http://localhost:8080", cfg.Server.BaseURL)
			assert.Equal(t, "info", cfg.Log.Level)
			assert.Equal(t, "https://api.bigcommerce.com/stores", cfg.Upstream.BaseURL)
			assert.Zero(t, cfg.Upstream.Timeout)
			assert.Equal(t, time.Hour, cfg.Reset.TokenTTL)
			assert.Equal(t, "http://localhost:8080", cfg.Reset.LinkBase)
			assert.False(t, cfg.SMTP.Enabled())

			return nil
		},
	}

	err := app.Run(context.Background(), []string{"test"})
	assert.NoError(t, err)
}

func TestNewFromCLI_WithCustomValues(t *testing.T) {
	app := &cli.Command{
		Name:  "test",
		Flags: Flags(),
		Action: func(_ context.Context, cmd *cli.Command) error {
			cfg := NewFromCLI(cmd)

			assert.Equal(t, "0.0.0.0", cfg.Server.Host)
			assert.Equal(t, 9000, cfg.Server.Port)
			assert.Equal(t, "https://example.com", cfg.Server.BaseURL)
			assert.Equal(t, "http://upstream.test/stores", cfg.Upstream.BaseURL)
			assert.Equal(t, 5*time.Second, cfg.Upstream.Timeout)
			assert.Equal(t, "smtp.example.com", cfg.SMTP.Host)

			return nil
		},
	}

	args := []string{
		"test",
		"--host", "0.0.0.0",
		"--port", "9000",
		"--base-url", "https://example.com",
		"--upstream-base-url", "http://upstream.test/stores/",
		"--upstream-timeout", "5s",
		"--smtp-host", "smtp.example.com",
	}
	err := app.Run(context.Background(), args)
	assert.NoError(t, err)
}
