// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package email sends password reset mail over SMTP.
package email

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"

	"codeberg.org/oliverandrich/hookpanel/internal/config"
	"codeberg.org/oliverandrich/hookpanel/internal/i18n"
	"github.com/wneessen/go-mail"
)

var (
	ErrMissingHost = errors.New("SMTP host is required")
	ErrMissingFrom = errors.New("SMTP from address is required")
)

var resetHTML = template.Must(template.New("reset").Parse(`<!DOCTYPE html>
<html lang="{{.Lang}}">
<body>
<p>{{.Intro}}</p>
<p><a href="{{.ResetURL}}">{{.Action}}</a></p>
<p>{{.Footer}}</p>
</body>
</html>
`))

// Service sends mail through an SMTP relay.
type Service struct {
	cfg *config.SMTPConfig
}

func NewService(cfg *config.SMTPConfig) (*Service, error) {
	if cfg.Host == "" {
		return nil, ErrMissingHost
	}
	if cfg.From == "" {
		return nil, ErrMissingFrom
	}
	return &Service{cfg: cfg}, nil
}

// SendPasswordReset mails resetURL to the given address in the locale carried by ctx.
func (s *Service) SendPasswordReset(ctx context.Context, to, resetURL, validFor string) error {
	msg, err := s.PasswordResetMessage(ctx, to, resetURL, validFor)
	if err != nil {
		return err
	}
	return s.send(ctx, msg)
}

// PasswordResetMessage builds the multipart reset message without sending it.
func (s *Service) PasswordResetMessage(ctx context.Context, to, resetURL, validFor string) (*mail.Msg, error) {
	data := map[string]any{"ResetURL": resetURL, "ValidFor": validFor}

	var html bytes.Buffer
	err := resetHTML.Execute(&html, map[string]string{
		"Lang":     i18n.Locale(ctx),
		"ResetURL": resetURL,
		"Intro":    i18n.T(ctx, "password_reset_html_intro", nil),
		"Action":   i18n.T(ctx, "password_reset_html_action", nil),
		"Footer":   i18n.T(ctx, "password_reset_html_footer", data),
	})
	if err != nil {
		return nil, fmt.Errorf("rendering html body: %w", err)
	}

	msg, err := s.newMessage(to)
	if err != nil {
		return nil, err
	}
	msg.Subject(i18n.T(ctx, "password_reset_subject", nil))
	msg.SetBodyString(mail.TypeTextPlain, i18n.T(ctx, "password_reset_text", data))
	msg.AddAlternativeString(mail.TypeTextHTML, html.String())
	return msg, nil
}

func (s *Service) newMessage(to string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if s.cfg.FromName != "" {
		if err := msg.FromFormat(s.cfg.FromName, s.cfg.From); err != nil {
			return nil, fmt.Errorf("setting from address: %w", err)
		}
	} else if err := msg.From(s.cfg.From); err != nil {
		return nil, fmt.Errorf("setting from address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("setting to address: %w", err)
	}
	return msg, nil
}

func (s *Service) clientOptions() []mail.Option {
	opts := []mail.Option{mail.WithPort(s.cfg.Port)}

	if s.cfg.TLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
		// 465 is implicit TLS, everything else negotiates STARTTLS.
		if s.cfg.Port == 465 {
			opts = append(opts, mail.WithSSL())
		}
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}

	if s.cfg.Username != "" && s.cfg.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}
	return opts
}

func (s *Service) send(ctx context.Context, msg *mail.Msg) error {
	client, err := mail.NewClient(s.cfg.Host, s.clientOptions()...)
	if err != nil {
		return fmt.Errorf("creating mail client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("sending email: %w", err)
	}
	return nil
}
