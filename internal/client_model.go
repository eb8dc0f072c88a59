package internal

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"chatroom/internal/localization"
	"chatroom/internal/storage"
)

type appMode int

const (
	modeAuth appMode = iota
	modeChat
	modeAttachPrompt
	modeSettings
)

// focus positions on the auth form, top to bottom
const (
	authFieldEmail = iota
	authFieldPassword
	authFieldUsername
	authFieldSubmit
)

// rows of the settings screen
const (
	settingRowUsername = iota
	settingRowColor
	settingRowTheme
	settingRowLanguage
	settingRowCount
)

// avatarPalette is the set of colors a user can pick for their name.
var avatarPalette = []string{
	"#3B82F6", // blue
	"#EF4444", // red
	"#10B981", // green
	"#8B5CF6", // purple
	"#EC4899", // pink
	"#F59E0B", // yellow
	"#6366F1", // indigo
}

// TUIModel is the whole client: one Elm-style state machine over the
// auth form, the chat screen and the settings overlay. Everything that
// blocks runs in a tea.Cmd; the model itself is only ever touched from
// the single Update loop.
type TUIModel struct {
	api         *BackendClient
	attachments *AttachmentStore
	prefs       *storage.Store
	loc         *localization.Localizer

	realtimeURL string
	topic       string

	locale string
	theme  string

	mode appMode
	user *User

	// sessionGen stamps every async result; anything tagged with an
	// older generation arrived for a session that is already gone.
	sessionGen int

	feed     *MessageFeed
	presence *PresenceTracker
	profiles map[string]Profile

	channel         *Channel
	isSubscribed    bool
	connectionError error

	// needsResync is set when the channel drops. The next successful
	// connect refetches the newest page so inserts delivered during
	// the outage are not lost.
	needsResync bool

	viewport  viewport.Model
	composer  textinput.Model
	spin      spinner.Model
	ready     bool
	width     int
	height    int
	uploading bool
	loading   bool

	emailInput    textinput.Model
	passwordInput textinput.Model
	usernameInput textinput.Model
	authFocus     int
	registering   bool
	authBusy      bool
	authErrKey    string

	// replyTo is the currently selected message, used both as the reply
	// target and as the delete target. A copy, not a live reference.
	replyTo *Message

	// lastTypingGen is the newest typing generation handed out, so a
	// send can stop the indicator without waiting out the timer.
	lastTypingGen int

	// attachment picker state
	browsePath  string
	browseItems []FileItem
	browseIndex int

	notice string

	settingsFocus  int
	settingsTheme  string
	settingsLocale int
	settingsColor  int
	settingsName   textinput.Model

	lastInputAt time.Time
}

// TUIConfig wires the model to its backends and restores the persisted
// preferences.
type TUIConfig struct {
	API         *BackendClient
	Attachments *AttachmentStore
	Prefs       *storage.Store
	Localizer   *localization.Localizer
	RealtimeURL string
	Topic       string
	Locale      string
	Theme       string
}

func NewTUIModel(cfg TUIConfig) *TUIModel {
	email := textinput.New()
	email.Placeholder = "you@example.com"
	email.Prompt = "> "
	email.CharLimit = 254
	email.Focus()

	password := textinput.New()
	password.Prompt = "> "
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'

	username := textinput.New()
	username.Prompt = "> "
	username.CharLimit = 30

	composer := textinput.New()
	composer.Prompt = "> "
	composer.CharLimit = 0

	settingsName := textinput.New()
	settingsName.Prompt = ""
	settingsName.CharLimit = 30

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	locale := cfg.Locale
	if locale == "" || !cfg.Localizer.Has(locale) {
		locale = localization.DefaultLocale
	}
	theme := cfg.Theme
	if theme != themeLight {
		theme = themeDark
	}

	model := &TUIModel{
		api:           cfg.API,
		attachments:   cfg.Attachments,
		prefs:         cfg.Prefs,
		loc:           cfg.Localizer,
		realtimeURL:   cfg.RealtimeURL,
		topic:         cfg.Topic,
		locale:        locale,
		theme:         theme,
		mode:          modeAuth,
		profiles:      make(map[string]Profile),
		emailInput:    email,
		passwordInput: password,
		usernameInput: username,
		composer:      composer,
		settingsName:  settingsName,
		spin:          spin,
	}
	model.feed = NewMessageFeed(model.cachedProfile)
	return model
}

func (model *TUIModel) Init() tea.Cmd {
	// a token installed at startup resumes the session without the
	// sign-in form, as long as it has not expired
	if session, ok := model.api.CurrentSession(); ok {
		model.authBusy = true
		return tea.Batch(textinput.Blink, model.restoreSessionCmd(session), model.spin.Tick)
	}
	return textinput.Blink
}

// t resolves a UI string in the active locale.
func (model *TUIModel) t(key string) string {
	return model.loc.GetString(model.locale, key)
}

// cachedProfile is the feed's resolver: a pure cache lookup. Misses are
// resolved asynchronously by resolveProfileCmd before the insert is
// applied, so by the time the feed asks the answer is usually here.
func (model *TUIModel) cachedProfile(userID string) (Profile, error) {
	if prof, ok := model.profiles[userID]; ok {
		return prof, nil
	}
	return Profile{}, ErrProfileNotFound
}

// selfAway mirrors the remote away rule onto the local user for the
// header status dot.
func (model *TUIModel) selfAway(now time.Time) bool {
	return !model.lastInputAt.IsZero() && now.Sub(model.lastInputAt) > awayAfter
}

func paletteIndex(color string) int {
	for i, c := range avatarPalette {
		if c == color {
			return i
		}
	}
	return 0
}
