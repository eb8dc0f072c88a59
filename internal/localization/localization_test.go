package localization

import "testing"

func TestGetStringFallsBack(t *testing.T) {
	loc, err := NewLocalizer()
	if err != nil {
		t.Fatalf("NewLocalizer: %v", err)
	}

	if got := loc.GetString("ja", "signIn"); got != "ログイン" {
		t.Fatalf("ja signIn = %q", got)
	}
	// unknown locale falls back to English
	if got := loc.GetString("fr", "signIn"); got != "Sign in" {
		t.Fatalf("fr signIn = %q", got)
	}
	// unknown key falls back to the key itself
	if got := loc.GetString("en", "noSuchKey"); got != "noSuchKey" {
		t.Fatalf("unknown key = %q", got)
	}
}

func TestAllLocalesCoverEnglishKeys(t *testing.T) {
	loc, err := NewLocalizer()
	if err != nil {
		t.Fatalf("NewLocalizer: %v", err)
	}

	en := loc.translations[DefaultLocale]
	if len(en) == 0 {
		t.Fatal("empty English bundle")
	}
	for _, lang := range loc.Locales() {
		table := loc.translations[lang]
		for key := range en {
			if _, ok := table[key]; !ok {
				t.Errorf("locale %s missing key %s", lang, key)
			}
		}
		for key := range table {
			if _, ok := en[key]; !ok {
				t.Errorf("locale %s has stray key %s", lang, key)
			}
		}
	}
}

func TestExpectedLocalesPresent(t *testing.T) {
	loc, err := NewLocalizer()
	if err != nil {
		t.Fatalf("NewLocalizer: %v", err)
	}
	for _, lang := range []string{"en", "zh-TW", "zh-CN", "ja"} {
		if !loc.Has(lang) {
			t.Errorf("missing locale %s", lang)
		}
	}
}
