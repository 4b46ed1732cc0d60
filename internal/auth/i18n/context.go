package i18n

import (
	"context"

	"golang.org/x/text/language"
)

type ctxKey struct{}

// WithLanguage returns a context carrying the caller's language.
func WithLanguage(ctx context.Context, tag language.Tag) context.Context {
	return context.WithValue(ctx, ctxKey{}, tag)
}

// LanguageFrom returns the language stored by WithLanguage.
func LanguageFrom(ctx context.Context) (language.Tag, bool) {
	if ctx == nil {
		return language.Und, false
	}
	tag, ok := ctx.Value(ctxKey{}).(language.Tag)
	return tag, ok
}
