package storage

import (
	"context"
	"testing"
)

func TestPrefLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	value, err := store.GetPref(ctx, PrefTheme)
	if err != nil {
		t.Fatalf("GetPref: %v", err)
	}
	if value != "" {
		t.Fatalf("expected empty value for unset pref, got %q", value)
	}

	if err := store.SetPref(ctx, PrefTheme, "dark"); err != nil {
		t.Fatalf("SetPref: %v", err)
	}
	value, err = store.GetPref(ctx, PrefTheme)
	if err != nil {
		t.Fatalf("GetPref: %v", err)
	}
	if value != "dark" {
		t.Fatalf("expected dark, got %q", value)
	}
}

func TestPrefOverwrite(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	if err := store.SetPref(ctx, PrefLocale, "en"); err != nil {
		t.Fatalf("SetPref: %v", err)
	}
	if err := store.SetPref(ctx, PrefLocale, "ja"); err != nil {
		t.Fatalf("SetPref overwrite: %v", err)
	}
	value, err := store.GetPref(ctx, PrefLocale)
	if err != nil {
		t.Fatalf("GetPref: %v", err)
	}
	if value != "ja" {
		t.Fatalf("expected ja, got %q", value)
	}
}

func TestPrefsAreIndependent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	if err := store.SetPref(ctx, PrefTheme, "light"); err != nil {
		t.Fatalf("SetPref theme: %v", err)
	}
	if err := store.SetPref(ctx, PrefLocale, "zh-TW"); err != nil {
		t.Fatalf("SetPref locale: %v", err)
	}
	theme, _ := store.GetPref(ctx, PrefTheme)
	locale, _ := store.GetPref(ctx, PrefLocale)
	if theme != "light" || locale != "zh-TW" {
		t.Fatalf("unexpected prefs: theme=%q locale=%q", theme, locale)
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := "sqlite://file:" + t.Name() + "?mode=memory&cache=shared"
	store, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
