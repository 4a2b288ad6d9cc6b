// Package i18n holds the embedded message catalogs for error and notice
// keys and picks a locale per request.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"slices"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
	"gopkg.in/yaml.v3"
)

// LangParam is the query parameter that selects a language.
const LangParam = "lang"

// BaseLocale is the locale every key must exist in.
var BaseLocale = language.English

//go:embed locales/*.yaml
var embedded embed.FS

type catalogFile struct {
	Locale   string            `yaml:"locale"`
	Messages map[string]string `yaml:"messages"`
}

// Catalog is a loaded set of locales registered with x/text/message.
type Catalog struct {
	builder *catalog.Builder
	tags    []language.Tag
	matcher language.Matcher
	keys    map[language.Tag]map[string]struct{}
}

// Load reads the embedded catalogs.
func Load() (*Catalog, error) {
	return LoadFS(embedded)
}

// LoadFS reads locales/*.yaml from fsys.
// POST: BaseLocale is the first supported tag and the matcher's default
func LoadFS(fsys fs.FS) (*Catalog, error) {
	paths, err := fs.Glob(fsys, "locales/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("glob catalogs: %w", err)
	}
	c := &Catalog{
		builder: catalog.NewBuilder(catalog.Fallback(BaseLocale)),
		keys:    make(map[language.Tag]map[string]struct{}),
	}
	for _, path := range paths {
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", path, err)
		}
		var file catalogFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse catalog %s: %w", path, err)
		}
		tag, err := language.Parse(strings.TrimSpace(file.Locale))
		if err != nil {
			return nil, fmt.Errorf("catalog %s: locale %q: %w", path, file.Locale, err)
		}
		if _, dup := c.keys[tag]; dup {
			return nil, fmt.Errorf("catalog %s: locale %s defined twice", path, tag)
		}
		keys := make(map[string]struct{}, len(file.Messages))
		for key, msg := range file.Messages {
			if err := c.builder.SetString(tag, key, msg); err != nil {
				return nil, fmt.Errorf("catalog %s: key %s: %w", path, key, err)
			}
			keys[key] = struct{}{}
		}
		c.keys[tag] = keys
		c.tags = append(c.tags, tag)
	}
	if _, ok := c.keys[BaseLocale]; !ok {
		return nil, fmt.Errorf("base locale %s has no catalog", BaseLocale)
	}
	slices.SortFunc(c.tags, func(a, b language.Tag) int {
		switch {
		case a == BaseLocale:
			return -1
		case b == BaseLocale:
			return 1
		}
		return strings.Compare(a.String(), b.String())
	})
	c.matcher = language.NewMatcher(c.tags)
	return c, nil
}

// Supported returns the loaded locales, BaseLocale first.
func (c *Catalog) Supported() []language.Tag {
	return slices.Clone(c.tags)
}

// Has reports whether key is defined for tag.
func (c *Catalog) Has(tag language.Tag, key string) bool {
	_, ok := c.keys[tag][key]
	return ok
}

// Missing lists keys present in BaseLocale but absent from tag.
func (c *Catalog) Missing(tag language.Tag) []string {
	var out []string
	for key := range c.keys[BaseLocale] {
		if !c.Has(tag, key) {
			out = append(out, key)
		}
	}
	slices.Sort(out)
	return out
}

// Translate formats key for tag, falling back to BaseLocale and then to
// the key itself.
func (c *Catalog) Translate(tag language.Tag, key string, args ...any) string {
	if !c.Has(tag, key) {
		if !c.Has(BaseLocale, key) {
			return key
		}
		tag = BaseLocale
	}
	return message.NewPrinter(tag, message.Catalog(c.builder)).Sprintf(key, args...)
}

// Match returns the best supported tag for the given preferences.
func (c *Catalog) Match(prefs ...language.Tag) language.Tag {
	_, idx, _ := c.matcher.Match(prefs...)
	return c.tags[idx]
}

// Resolve picks the locale for r from the lang query parameter, then the
// Accept-Language header, then BaseLocale.
func (c *Catalog) Resolve(r *http.Request) language.Tag {
	if v := strings.TrimSpace(r.URL.Query().Get(LangParam)); v != "" {
		if tag, err := language.Parse(v); err == nil {
			return c.Match(tag)
		}
	}
	if accept := r.Header.Get("Accept-Language"); accept != "" {
		if tags, _, err := language.ParseAcceptLanguage(accept); err == nil && len(tags) > 0 {
			return c.Match(tags...)
		}
	}
	return BaseLocale
}
