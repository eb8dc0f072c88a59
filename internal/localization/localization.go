// Package localization loads the embedded translation bundles and
// resolves UI strings per locale, falling back to English and finally
// to the key itself so a missing translation never blanks the UI.
package localization

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

//go:embed locales/*.json
var localeFS embed.FS

// DefaultLocale is the fallback language.
const DefaultLocale = "en"

// Localizer holds the loaded translation tables. They are read-only
// after construction.
type Localizer struct {
	translations map[string]map[string]string
}

// NewLocalizer parses every embedded locale bundle. Bundle files are
// named by language tag, e.g. "en.json" or "zh-TW.json".
func NewLocalizer() (*Localizer, error) {
	l := &Localizer{translations: make(map[string]map[string]string)}

	entries, err := fs.ReadDir(localeFS, "locales")
	if err != nil {
		return nil, fmt.Errorf("read locale bundles: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		lang := strings.TrimSuffix(entry.Name(), ".json")
		data, err := localeFS.ReadFile("locales/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("read locale %s: %w", lang, err)
		}
		var table map[string]string
		if err := json.Unmarshal(data, &table); err != nil {
			return nil, fmt.Errorf("parse locale %s: %w", lang, err)
		}
		l.translations[lang] = table
	}
	if _, ok := l.translations[DefaultLocale]; !ok {
		return nil, fmt.Errorf("missing %s locale bundle", DefaultLocale)
	}
	return l, nil
}

// GetString returns the localized string for a key, falling back to
// English and then to the key itself.
func (l *Localizer) GetString(lang, key string) string {
	if table, ok := l.translations[lang]; ok {
		if value, ok := table[key]; ok {
			return value
		}
	}
	if lang != DefaultLocale {
		if table, ok := l.translations[DefaultLocale]; ok {
			if value, ok := table[key]; ok {
				return value
			}
		}
	}
	return key
}

// Locales lists the available language tags, sorted.
func (l *Localizer) Locales() []string {
	langs := make([]string, 0, len(l.translations))
	for lang := range l.translations {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}

// Has reports whether a locale bundle exists.
func (l *Localizer) Has(lang string) bool {
	_, ok := l.translations[lang]
	return ok
}
