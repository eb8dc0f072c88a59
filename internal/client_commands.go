package internal

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"chatroom/internal/storage"
)

const (
	reconnectDelay = 2 * time.Second
	noticeTTL      = 4 * time.Second
	awayTickEvery  = 15 * time.Second
)

// errKeyFor maps the client's error taxonomy onto localization keys for
// the transient notices and form errors.
func errKeyFor(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEmailInUse):
		return "emailInUse"
	case errors.Is(err, ErrDuplicateUsername):
		return "duplicateUsername"
	case errors.Is(err, ErrWeakPassword):
		return "weakPassword"
	case errors.Is(err, ErrInvalidEmail):
		return "invalidEmail"
	case errors.Is(err, ErrInvalidCredentials):
		return "incorrectCredentials"
	case errors.Is(err, ErrProfileNotFound):
		return "userNotFound"
	case errors.Is(err, ErrAttachmentTooLarge):
		return "fileTooBig"
	default:
		return "unknownError"
	}
}

func (model *TUIModel) signInCmd(email, password string) tea.Cmd {
	api := model.api
	return func() tea.Msg {
		session, err := api.SignIn(context.Background(), email, password)
		if err != nil {
			return authDoneMsg{errKey: errKeyFor(err)}
		}
		prof, err := api.ProfileByUserID(context.Background(), session.UserID)
		if err != nil {
			return authDoneMsg{errKey: errKeyFor(err)}
		}
		return authDoneMsg{user: &User{
			ID:          session.UserID,
			Email:       session.Email,
			Username:    prof.Username,
			AvatarColor: prof.AvatarColor,
		}}
	}
}

func (model *TUIModel) signUpCmd(email, password, username string) tea.Cmd {
	api := model.api
	return func() tea.Msg {
		session, err := api.SignUp(context.Background(), email, password)
		if err != nil {
			return authDoneMsg{errKey: errKeyFor(err)}
		}
		if err := api.CreateProfile(context.Background(), session.UserID, username, email); err != nil {
			return authDoneMsg{errKey: errKeyFor(err)}
		}
		return authDoneMsg{user: &User{
			ID:          session.UserID,
			Email:       session.Email,
			Username:    username,
			AvatarColor: defaultAvatarColor,
		}}
	}
}

// restoreSessionCmd finishes a session resumed from a held token: the
// profile is the only piece the token does not carry.
func (model *TUIModel) restoreSessionCmd(session Session) tea.Cmd {
	api := model.api
	return func() tea.Msg {
		prof, err := api.ProfileByUserID(context.Background(), session.UserID)
		if err != nil {
			return authDoneMsg{errKey: errKeyFor(err)}
		}
		return authDoneMsg{user: &User{
			ID:          session.UserID,
			Email:       session.Email,
			Username:    prof.Username,
			AvatarColor: prof.AvatarColor,
		}}
	}
}

func (model *TUIModel) signOutCmd() tea.Cmd {
	api := model.api
	return func() tea.Msg {
		_ = api.SignOut(context.Background())
		return signedOutMsg{}
	}
}

func (model *TUIModel) loadInitialCmd(gen int) tea.Cmd {
	api := model.api
	limit := model.feed.PageSize()
	return func() tea.Msg {
		page, err := api.MessagesBefore(context.Background(), time.Time{}, limit)
		return initialPageMsg{gen: gen, page: page, err: err}
	}
}

func (model *TUIModel) loadOlderCmd(gen int, cursor time.Time) tea.Cmd {
	api := model.api
	limit := model.feed.PageSize()
	return func() tea.Msg {
		page, err := api.MessagesBefore(context.Background(), cursor, limit)
		return olderPageMsg{gen: gen, page: page, err: err}
	}
}

func (model *TUIModel) connectCmd(gen int) tea.Cmd {
	baseURL := model.realtimeURL
	topic := model.topic
	presenceKey := model.user.Username
	token := model.api.Token()
	return func() tea.Msg {
		channel, err := DialChannel(baseURL, topic, presenceKey, token)
		if err != nil {
			return channelFailedMsg{gen: gen, err: err}
		}
		return channelConnectedMsg{gen: gen, channel: channel}
	}
}

func (model *TUIModel) readOnceCmd(gen int, channel *Channel) tea.Cmd {
	return func() tea.Msg {
		if channel == nil {
			return nil
		}
		event, err := channel.ReadOnce()
		if err != nil {
			return channelLostMsg{gen: gen, err: err}
		}
		return channelEventMsg{gen: gen, event: event}
	}
}

func (model *TUIModel) scheduleReconnect(gen int) tea.Cmd {
	return tea.Tick(reconnectDelay, func(time.Time) tea.Msg {
		return reconnectMsg{gen: gen}
	})
}

// resolveProfileCmd fetches the author snapshot for an insert event that
// arrived without one. The insert is applied when the lookup returns,
// with or without a profile.
func (model *TUIModel) resolveProfileCmd(gen int, message Message) tea.Cmd {
	api := model.api
	return func() tea.Msg {
		prof, err := api.ProfileByUserID(context.Background(), message.AuthorID)
		if err != nil {
			return profileResolvedMsg{gen: gen, message: message}
		}
		return profileResolvedMsg{gen: gen, message: message, profile: prof, ok: true}
	}
}

func (model *TUIModel) sendMessageCmd(out OutgoingMessage) tea.Cmd {
	api := model.api
	return func() tea.Msg {
		if err := api.InsertMessage(context.Background(), out); err != nil {
			return sendDoneMsg{errKey: "sendFailed"}
		}
		return sendDoneMsg{}
	}
}

func (model *TUIModel) deleteMessageCmd(id string) tea.Cmd {
	api := model.api
	return func() tea.Msg {
		if err := api.MarkDeleted(context.Background(), id); err != nil {
			return deleteDoneMsg{id: id, errKey: "deleteFailed"}
		}
		return deleteDoneMsg{id: id}
	}
}

func (model *TUIModel) uploadCmd(gen int, userID, path string) tea.Cmd {
	attachments := model.attachments
	return func() tea.Msg {
		if attachments == nil {
			return uploadDoneMsg{gen: gen, errKey: "uploadFailed"}
		}
		att, err := attachments.UploadFile(context.Background(), userID, path)
		if err != nil {
			key := errKeyFor(err)
			if key == "unknownError" {
				key = "uploadFailed"
			}
			return uploadDoneMsg{gen: gen, errKey: key}
		}
		return uploadDoneMsg{gen: gen, attachment: &att, name: att.Name}
	}
}

func (model *TUIModel) saveSettingsCmd(gen int, username, color, locale, theme string) tea.Cmd {
	api := model.api
	prefs := model.prefs
	userID := model.user.ID
	return func() tea.Msg {
		if err := api.UpdateProfile(context.Background(), userID, username, color); err != nil {
			key := errKeyFor(err)
			if key == "unknownError" {
				key = "settingsSaveFailed"
			}
			return settingsSavedMsg{gen: gen, errKey: key}
		}
		if prefs != nil {
			ctx := context.Background()
			if err := prefs.SetPref(ctx, storage.PrefTheme, theme); err != nil {
				return settingsSavedMsg{gen: gen, errKey: "settingsSaveFailed"}
			}
			if err := prefs.SetPref(ctx, storage.PrefLocale, locale); err != nil {
				return settingsSavedMsg{gen: gen, errKey: "settingsSaveFailed"}
			}
		}
		return settingsSavedMsg{gen: gen, username: username, color: color, locale: locale, theme: theme}
	}
}

func (model *TUIModel) typingExpireCmd(sessionGen, typingGen int) tea.Cmd {
	return tea.Tick(typingTimeout, func(time.Time) tea.Msg {
		return typingExpiredMsg{session: sessionGen, typing: typingGen}
	})
}

func (model *TUIModel) awayTickCmd() tea.Cmd {
	return tea.Tick(awayTickEvery, func(t time.Time) tea.Msg {
		return awayTickMsg(t)
	})
}

func (model *TUIModel) noticeExpireCmd() tea.Cmd {
	return tea.Tick(noticeTTL, func(time.Time) tea.Msg {
		return noticeExpiredMsg{}
	})
}

// trackPresence is the tracker's publish hook. Before the subscription
// is confirmed there is nowhere to publish to, which is fine: the
// announce after the subscribed event carries the current state.
func (model *TUIModel) trackPresence(payload PresencePayload) error {
	if model.channel == nil || !model.isSubscribed {
		return nil
	}
	return model.channel.Track(payload)
}

// RunClient starts the TUI event loop and blocks until exit.
func RunClient(cfg TUIConfig) error {
	program := tea.NewProgram(NewTUIModel(cfg), tea.WithAltScreen())
	_, err := program.Run()
	return err
}
