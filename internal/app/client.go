package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"chatroom/internal"
	"chatroom/internal/localization"
	"chatroom/internal/storage"
)

// RunClient wires the backends together and launches the TUI. It blocks
// until the user exits.
func RunClient(cfg Config) error {
	if cfg.APIBaseURL == "" {
		return errors.New("API base URL is required")
	}
	if cfg.RealtimeURL == "" {
		return errors.New("realtime URL is required")
	}

	localizer, err := localization.NewLocalizer()
	if err != nil {
		return fmt.Errorf("load locales: %w", err)
	}

	prefs, locale, theme := openPrefs(cfg)
	if prefs != nil {
		defer prefs.Close()
	}

	var attachments *internal.AttachmentStore
	if cfg.StorageEndpoint != "" {
		attachments, err = internal.NewAttachmentStore(internal.AttachmentStoreConfig{
			Endpoint:  cfg.StorageEndpoint,
			AccessKey: cfg.StorageAccessKey,
			SecretKey: cfg.StorageSecretKey,
			Bucket:    cfg.StorageBucket,
			UseSSL:    cfg.StorageUseSSL,
		})
		if err != nil {
			return fmt.Errorf("attachment store: %w", err)
		}
	}

	api := internal.NewBackendClient(cfg.APIBaseURL)
	if cfg.AccessToken != "" {
		api.SetToken(cfg.AccessToken)
	}

	return internal.RunClient(internal.TUIConfig{
		API:         api,
		Attachments: attachments,
		Prefs:       prefs,
		Localizer:   localizer,
		RealtimeURL: cfg.RealtimeURL,
		Topic:       cfg.Topic,
		Locale:      locale,
		Theme:       theme,
	})
}

// openPrefs opens the local preference store and reads the persisted
// theme and locale. A broken store degrades to in-memory defaults
// rather than blocking the whole client.
func openPrefs(cfg Config) (*storage.Store, string, string) {
	locale := cfg.Locale
	theme := cfg.Theme

	if dir := filepath.Dir(cfg.PrefsPath); dir != "" && dir != "." {
		_ = os.MkdirAll(dir, 0o755)
	}
	prefs, err := storage.NewStore(cfg.PrefsPath)
	if err != nil {
		return nil, locale, theme
	}
	ctx := context.Background()
	if err := prefs.Migrate(ctx); err != nil {
		_ = prefs.Close()
		return nil, locale, theme
	}
	if saved, err := prefs.GetPref(ctx, storage.PrefLocale); err == nil && saved != "" {
		locale = saved
	}
	if saved, err := prefs.GetPref(ctx, storage.PrefTheme); err == nil && saved != "" {
		theme = saved
	}
	return prefs, locale, theme
}
