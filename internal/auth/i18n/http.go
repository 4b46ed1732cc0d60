package i18n

import (
	"net/http"
	"strings"

	"golang.org/x/text/language"
)

// LangParam is the query parameter that overrides Accept-Language.
const LangParam = "lang"

// ResolveTag determines the best supported language for r. An explicit
// lang query parameter wins over the Accept-Language header.
func (c *Catalog) ResolveTag(r *http.Request) language.Tag {
	if r == nil {
		return c.fallback
	}
	if v := strings.TrimSpace(r.URL.Query().Get(LangParam)); v != "" {
		if tag, ok := c.Parse(v); ok {
			return tag
		}
	}
	return c.Match(r.Header.Get("Accept-Language"))
}

// Middleware stores the resolved language in the request context and
// advertises it through Content-Language.
func (c *Catalog) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tag := c.ResolveTag(r)
		w.Header().Set("Content-Language", tag.String())
		next.ServeHTTP(w, r.WithContext(WithLanguage(r.Context(), tag)))
	})
}
