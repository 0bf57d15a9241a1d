// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package i18n localizes outgoing email text.
package i18n

import (
	"context"
	"embed"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed translations/*.toml
var translationFS embed.FS

// Supported lists the languages with translation files, default first.
var Supported = []language.Tag{language.English, language.German}

var (
	bundle   *i18n.Bundle
	initOnce sync.Once
	initErr  error
)

type localizerContextKey struct{}

// Init loads the embedded translations. It is safe to call more than once.
func Init() error {
	initOnce.Do(func() {
		b := i18n.NewBundle(language.English)
		b.RegisterUnmarshalFunc("toml", toml.Unmarshal)
		for _, file := range []string{
			"translations/active.en.toml",
			"translations/active.de.toml",
		} {
			if _, err := b.LoadMessageFileFS(translationFS, file); err != nil {
				initErr = err
				return
			}
		}
		bundle = b
	})
	return initErr
}

// WithLocale stores a localizer for lang in ctx.
func WithLocale(ctx context.Context, lang language.Tag) context.Context {
	return context.WithValue(ctx, localizerContextKey{}, newLocalizer(lang.String()))
}

// T translates messageID, executing it as a template with data.
// Unknown IDs come back unchanged.
func T(ctx context.Context, messageID string, data map[string]any) string {
	msg, err := localizer(ctx).Localize(&i18n.LocalizeConfig{
		MessageID:    messageID,
		TemplateData: data,
	})
	if err != nil {
		return messageID
	}
	return msg
}

// Locale returns the language a message for ctx would be rendered in.
func Locale(ctx context.Context) string {
	_, tag, err := localizer(ctx).LocalizeWithTag(&i18n.LocalizeConfig{MessageID: "password_reset_subject"})
	if err != nil {
		return language.English.String()
	}
	return tag.String()
}

// MatchLanguage picks the best supported language for an Accept-Language header.
func MatchLanguage(acceptLanguage string) language.Tag {
	tag, _ := language.MatchStrings(language.NewMatcher(Supported), acceptLanguage)
	base, _ := tag.Base()
	return language.Make(base.String())
}

func localizer(ctx context.Context) *i18n.Localizer {
	if l, ok := ctx.Value(localizerContextKey{}).(*i18n.Localizer); ok {
		return l
	}
	return newLocalizer(language.English.String())
}

func newLocalizer(langs ...string) *i18n.Localizer {
	if bundle == nil {
		_ = Init()
	}
	return i18n.NewLocalizer(bundle, langs...)
}
