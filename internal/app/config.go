package app

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
)

// Config carries everything the client needs to reach its backends.
// Values come from CHATROOM_* environment variables with sensible
// defaults for local development.
type Config struct {
	// APIBaseURL is the managed backend's REST endpoint.
	APIBaseURL string

	// RealtimeURL is the websocket endpoint for the shared channel.
	RealtimeURL string

	// Topic is the realtime channel topic. One room, one topic.
	Topic string

	// PrefsPath is the local SQLite file holding theme and locale.
	PrefsPath string

	// AccessToken optionally resumes an existing session. When it is
	// set and still valid the client skips the sign-in form.
	AccessToken string

	// Locale and Theme are startup fallbacks used until the prefs
	// store has been read.
	Locale string
	Theme  string

	// Object store settings for attachments. Uploads are disabled when
	// the endpoint is empty.
	StorageEndpoint  string
	StorageAccessKey string
	StorageSecretKey string
	StorageBucket    string
	StorageUseSSL    bool
}

// Load builds the configuration from the environment.
func Load() Config {
	return Config{
		APIBaseURL:       envOr("CHATROOM_API_URL", "http://localhost:8000"),
		RealtimeURL:      envOr("CHATROOM_REALTIME_URL", "ws://localhost:8000/realtime"),
		Topic:            envOr("CHATROOM_TOPIC", "chatroom"),
		PrefsPath:        envOr("CHATROOM_PREFS_PATH", DefaultPrefsPath()),
		AccessToken:      os.Getenv("CHATROOM_ACCESS_TOKEN"),
		Locale:           os.Getenv("CHATROOM_LOCALE"),
		Theme:            os.Getenv("CHATROOM_THEME"),
		StorageEndpoint:  os.Getenv("CHATROOM_STORAGE_ENDPOINT"),
		StorageAccessKey: os.Getenv("CHATROOM_STORAGE_ACCESS_KEY"),
		StorageSecretKey: os.Getenv("CHATROOM_STORAGE_SECRET_KEY"),
		StorageBucket:    envOr("CHATROOM_STORAGE_BUCKET", "attachments"),
		StorageUseSSL:    envBool("CHATROOM_STORAGE_SSL"),
	}
}

// DefaultPrefsPath returns a per-user data path for the preferences
// SQLite file.
func DefaultPrefsPath() string {
	if env := os.Getenv("CHATROOM_DATA_DIR"); env != "" {
		return filepath.Join(env, "chatroom.db")
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "chatroom", "chatroom.db")
	}
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "Chatroom", "chatroom.db")
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, "Library", "Application Support", "Chatroom", "chatroom.db")
		}
		return filepath.Join(home, ".local", "share", "chatroom", "chatroom.db")
	}
	return filepath.Join(".", ".chatroom", "chatroom.db")
}

func envOr(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

func envBool(name string) bool {
	value, err := strconv.ParseBool(os.Getenv(name))
	return err == nil && value
}
