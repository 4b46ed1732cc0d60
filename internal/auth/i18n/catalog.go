// Package i18n resolves user-visible messages for the auth service.
//
// Messages live in embedded YAML files under locales/, one file per locale,
// and are registered with golang.org/x/text/message so format verbs are
// rendered with locale-aware printers.
package i18n

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
	"gopkg.in/yaml.v3"
)

// BaseLocale is the locale every other catalog falls back to.
const BaseLocale = "en-US"

//go:embed locales/*.yaml
var embeddedLocales embed.FS

type localeFile struct {
	Locale   string            `yaml:"locale"`
	Messages map[string]string `yaml:"messages"`
}

// Catalog holds the messages of every supported locale.
type Catalog struct {
	builder  *catalog.Builder
	matcher  language.Matcher
	tags     []language.Tag
	messages map[language.Tag]map[string]string
	fallback language.Tag
}

// LoadEmbedded loads the catalogs shipped with the binary. defaultLocale
// selects the language used when nothing better matches; an empty value
// means BaseLocale.
func LoadEmbedded(defaultLocale string) (*Catalog, error) {
	return LoadFromFS(embeddedLocales, defaultLocale)
}

// LoadFromFS loads every locales/*.yaml file found in fsys.
func LoadFromFS(fsys fs.FS, defaultLocale string) (*Catalog, error) {
	paths, err := fs.Glob(fsys, "locales/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("glob locale catalogs: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no locale catalogs found")
	}
	sort.Strings(paths)

	base := language.Make(BaseLocale)
	c := &Catalog{
		builder:  catalog.NewBuilder(catalog.Fallback(base)),
		messages: map[language.Tag]map[string]string{},
	}

	for _, p := range paths {
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", p, err)
		}
		var file localeFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse catalog %s: %w", p, err)
		}
		if err := c.add(p, file); err != nil {
			return nil, err
		}
	}

	if _, ok := c.messages[base]; !ok {
		return nil, fmt.Errorf("base locale %s is not defined in catalogs", BaseLocale)
	}

	c.fallback = base
	if strings.TrimSpace(defaultLocale) != "" {
		tag, err := language.Parse(defaultLocale)
		if err != nil {
			return nil, fmt.Errorf("parse default locale %q: %w", defaultLocale, err)
		}
		if _, ok := c.messages[tag]; !ok {
			return nil, fmt.Errorf("default locale %s has no catalog", tag)
		}
		c.fallback = tag
	}

	// The matcher treats its first tag as the default.
	c.tags = append(c.tags, c.fallback)
	for tag := range c.messages {
		if tag != c.fallback {
			c.tags = append(c.tags, tag)
		}
	}
	sort.Slice(c.tags[1:], func(i, j int) bool { return c.tags[i+1].String() < c.tags[j+1].String() })
	c.matcher = language.NewMatcher(c.tags)

	return c, nil
}

func (c *Catalog) add(p string, file localeFile) error {
	name := strings.TrimSuffix(path.Base(p), path.Ext(p))
	if file.Locale != name {
		return fmt.Errorf("catalog %s: locale %q must match file name %q", p, file.Locale, name)
	}
	tag, err := language.Parse(file.Locale)
	if err != nil {
		return fmt.Errorf("catalog %s: %w", p, err)
	}
	if file.Messages == nil {
		return fmt.Errorf("catalog %s: messages map is required", p)
	}
	if _, dup := c.messages[tag]; dup {
		return fmt.Errorf("catalog %s: locale %s defined twice", p, tag)
	}

	msgs := make(map[string]string, len(file.Messages))
	for key, value := range file.Messages {
		key = strings.TrimSpace(key)
		if key == "" {
			return fmt.Errorf("catalog %s: message key cannot be blank", p)
		}
		if err := c.builder.SetString(tag, key, value); err != nil {
			return fmt.Errorf("catalog %s: key %q: %w", p, key, err)
		}
		msgs[key] = value
	}
	c.messages[tag] = msgs
	return nil
}

// Supported returns the supported tags, default first.
func (c *Catalog) Supported() []language.Tag {
	return append([]language.Tag(nil), c.tags...)
}

// Default returns the tag used when no preference matches.
func (c *Catalog) Default() language.Tag { return c.fallback }

// Match picks the supported tag that best fits an Accept-Language header
// value. Garbage or empty input yields the default.
func (c *Catalog) Match(acceptLanguage string) language.Tag {
	accept := strings.TrimSpace(acceptLanguage)
	if accept == "" {
		return c.fallback
	}
	prefs, _, err := language.ParseAcceptLanguage(accept)
	if err != nil || len(prefs) == 0 {
		return c.fallback
	}
	_, idx, conf := c.matcher.Match(prefs...)
	if conf == language.No {
		return c.fallback
	}
	return c.tags[idx]
}

// Parse returns the supported tag for an explicit locale string such as a
// lang query parameter.
func (c *Catalog) Parse(value string) (language.Tag, bool) {
	tag, err := language.Parse(strings.TrimSpace(value))
	if err != nil {
		return c.fallback, false
	}
	_, idx, conf := c.matcher.Match(tag)
	if conf == language.No {
		return c.fallback, false
	}
	return c.tags[idx], true
}

// T renders key in the language carried by ctx. Keys missing from that
// locale fall back to the default locale, then to the key itself.
func (c *Catalog) T(ctx context.Context, key string, args ...any) string {
	tag := c.fallback
	if t, ok := LanguageFrom(ctx); ok {
		tag = t
	}
	return c.Sprintf(tag, key, args...)
}

// Sprintf renders key for an explicit tag.
func (c *Catalog) Sprintf(tag language.Tag, key string, args ...any) string {
	if _, ok := c.messages[tag][key]; !ok {
		tag = c.fallback
		if _, ok := c.messages[tag][key]; !ok {
			tag = language.Make(BaseLocale)
			if _, ok := c.messages[tag][key]; !ok {
				return key
			}
		}
	}
	return message.NewPrinter(tag, message.Catalog(c.builder)).Sprintf(key, args...)
}
