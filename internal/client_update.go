package internal

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

type (
	authDoneMsg struct {
		user   *User
		errKey string
	}
	signedOutMsg   struct{}
	initialPageMsg struct {
		gen  int
		page []Message
		err  error
	}
	olderPageMsg struct {
		gen  int
		page []Message
		err  error
	}
	channelConnectedMsg struct {
		gen     int
		channel *Channel
	}
	channelFailedMsg struct {
		gen int
		err error
	}
	channelEventMsg struct {
		gen   int
		event Event
	}
	channelLostMsg struct {
		gen int
		err error
	}
	profileResolvedMsg struct {
		gen     int
		message Message
		profile Profile
		ok      bool
	}
	sendDoneMsg   struct{ errKey string }
	deleteDoneMsg struct {
		id     string
		errKey string
	}
	uploadDoneMsg struct {
		gen        int
		attachment *Attachment
		name       string
		errKey     string
	}
	settingsSavedMsg struct {
		gen      int
		username string
		color    string
		locale   string
		theme    string
		errKey   string
	}
	typingExpiredMsg struct {
		session int
		typing  int
	}
	noticeExpiredMsg struct{}
	awayTickMsg      time.Time
	reconnectMsg     struct{ gen int }
)

func (model *TUIModel) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch typedMessage := message.(type) {
	case tea.WindowSizeMsg:
		model.width = typedMessage.Width
		model.height = typedMessage.Height
		viewportWidth, viewportHeight := model.feedViewportSize()
		if !model.ready {
			model.viewport = viewport.New(viewportWidth, viewportHeight)
			model.ready = true
		} else {
			model.viewport.Width = viewportWidth
			model.viewport.Height = viewportHeight
		}
		model.viewport.SetContent(model.renderFeed())
		model.viewport.GotoBottom()
		return model, nil

	case tea.KeyMsg:
		if typedMessage.Type == tea.KeyCtrlC {
			model.teardownChannel()
			return model, tea.Quit
		}
		switch model.mode {
		case modeAuth:
			return model.updateAuth(typedMessage)
		case modeChat:
			return model.updateChat(typedMessage)
		case modeAttachPrompt:
			return model.updateAttachPrompt(typedMessage)
		case modeSettings:
			return model.updateSettings(typedMessage)
		}
		return model, nil

	case spinner.TickMsg:
		if model.authBusy || model.uploading || model.loading || model.feed.Loading() {
			var cmd tea.Cmd
			model.spin, cmd = model.spin.Update(typedMessage)
			return model, cmd
		}
		return model, nil

	case authDoneMsg:
		model.authBusy = false
		if typedMessage.errKey != "" {
			model.authErrKey = typedMessage.errKey
			return model, nil
		}
		return model.startChat(typedMessage.user)

	case signedOutMsg:
		model.user = nil
		model.presence = nil
		model.feed = NewMessageFeed(model.cachedProfile)
		model.profiles = make(map[string]Profile)
		model.replyTo = nil
		model.notice = ""
		model.mode = modeAuth
		model.registering = false
		model.authErrKey = ""
		model.authFocus = authFieldEmail
		model.composer.Blur()
		model.passwordInput.SetValue("")
		model.emailInput.Focus()
		return model, nil

	case initialPageMsg:
		if typedMessage.gen != model.sessionGen {
			return model, nil
		}
		model.loading = false
		if typedMessage.err != nil {
			return model, model.showNotice("loadFailed")
		}
		model.feed.LoadInitial(typedMessage.page)
		model.cachePageAuthors(typedMessage.page)
		model.viewport.SetContent(model.renderFeed())
		model.viewport.GotoBottom()
		return model, nil

	case olderPageMsg:
		if typedMessage.gen != model.sessionGen {
			return model, nil
		}
		if typedMessage.err != nil {
			model.feed.FinishLoadOlder(nil, typedMessage.err)
			return model, model.showNotice("loadFailed")
		}
		model.feed.SyncViewport(model.viewport.YOffset, model.viewport.Height, model.viewport.TotalLineCount())
		added := model.feed.FinishLoadOlder(typedMessage.page, nil)
		if added > 0 {
			model.cachePageAuthors(typedMessage.page)
			model.viewport.SetContent(model.renderFeed())
			model.viewport.SetYOffset(model.feed.ReconcilePrepend(model.viewport.TotalLineCount()))
		}
		return model, nil

	case channelConnectedMsg:
		if typedMessage.gen != model.sessionGen {
			_ = typedMessage.channel.Close()
			return model, nil
		}
		model.channel = typedMessage.channel
		model.connectionError = nil
		readCmd := model.readOnceCmd(typedMessage.gen, model.channel)
		if model.needsResync {
			// the channel was down; refetch the newest page so the
			// window stays anchored at the most recent message
			model.needsResync = false
			model.loading = true
			return model, tea.Batch(readCmd, model.loadInitialCmd(typedMessage.gen), model.spin.Tick)
		}
		return model, readCmd

	case channelFailedMsg:
		if typedMessage.gen != model.sessionGen {
			return model, nil
		}
		model.connectionError = typedMessage.err
		return model, model.scheduleReconnect(typedMessage.gen)

	case channelLostMsg:
		if typedMessage.gen != model.sessionGen {
			return model, nil
		}
		model.channel = nil
		model.isSubscribed = false
		model.connectionError = typedMessage.err
		model.needsResync = true
		return model, model.scheduleReconnect(typedMessage.gen)

	case reconnectMsg:
		if typedMessage.gen != model.sessionGen || model.channel != nil || model.user == nil {
			return model, nil
		}
		return model, model.connectCmd(typedMessage.gen)

	case channelEventMsg:
		if typedMessage.gen != model.sessionGen {
			return model, nil
		}
		return model.handleChannelEvent(typedMessage.gen, typedMessage.event)

	case profileResolvedMsg:
		if typedMessage.gen != model.sessionGen {
			return model, nil
		}
		if typedMessage.ok {
			model.profiles[typedMessage.message.AuthorID] = typedMessage.profile
		}
		model.applyInsert(typedMessage.message)
		return model, nil

	case sendDoneMsg:
		if typedMessage.errKey != "" {
			return model, model.showNotice(typedMessage.errKey)
		}
		return model, nil

	case deleteDoneMsg:
		if typedMessage.errKey != "" {
			return model, model.showNotice(typedMessage.errKey)
		}
		if model.feed.ApplyUpdate(Message{ID: typedMessage.id, IsDeleted: true}) {
			model.refreshFeedKeepingOffset()
		}
		if model.replyTo != nil && model.replyTo.ID == typedMessage.id {
			model.replyTo = nil
		}
		return model, nil

	case uploadDoneMsg:
		if typedMessage.gen != model.sessionGen {
			return model, nil
		}
		model.uploading = false
		if typedMessage.errKey != "" {
			return model, model.showNotice(typedMessage.errKey)
		}
		out, ok := NewOutgoing("[File] "+typedMessage.name, model.replyTo, typedMessage.attachment)
		if !ok {
			return model, nil
		}
		model.replyTo = nil
		return model, model.sendMessageCmd(out)

	case settingsSavedMsg:
		if typedMessage.gen != model.sessionGen {
			return model, nil
		}
		if typedMessage.errKey != "" {
			return model, model.showNotice(typedMessage.errKey)
		}
		model.applySavedSettings(typedMessage)
		return model, model.showNotice("settingsSaved")

	case typingExpiredMsg:
		if typedMessage.session != model.sessionGen || model.presence == nil {
			return model, nil
		}
		_ = model.presence.TypingExpired(typedMessage.typing, time.Now())
		return model, nil

	case awayTickMsg:
		if model.user == nil {
			return model, nil
		}
		// statuses recompute in View; the tick only forces a redraw
		return model, model.awayTickCmd()

	case noticeExpiredMsg:
		model.notice = ""
		return model, nil
	}
	return model, nil
}

func (model *TUIModel) updateAuth(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.Type {
	case tea.KeyTab:
		if model.authFocus == authFieldSubmit {
			model.registering = !model.registering
			model.authErrKey = ""
			return model, model.setAuthFocus(authFieldEmail)
		}
		return model, model.setAuthFocus(model.nextAuthField(model.authFocus, 1))
	case tea.KeyShiftTab, tea.KeyUp:
		return model, model.setAuthFocus(model.nextAuthField(model.authFocus, -1))
	case tea.KeyDown:
		return model, model.setAuthFocus(model.nextAuthField(model.authFocus, 1))
	case tea.KeyEnter:
		if model.authFocus != authFieldSubmit {
			return model, model.setAuthFocus(model.nextAuthField(model.authFocus, 1))
		}
		return model.submitAuth()
	case tea.KeyEsc:
		model.authErrKey = ""
		return model, nil
	}

	var cmd tea.Cmd
	switch model.authFocus {
	case authFieldEmail:
		model.emailInput, cmd = model.emailInput.Update(key)
	case authFieldPassword:
		model.passwordInput, cmd = model.passwordInput.Update(key)
	case authFieldUsername:
		model.usernameInput, cmd = model.usernameInput.Update(key)
	}
	return model, cmd
}

// nextAuthField steps through the form, skipping the username row when
// the form is in sign-in mode.
func (model *TUIModel) nextAuthField(current, direction int) int {
	next := current
	for {
		next = (next + direction + authFieldSubmit + 1) % (authFieldSubmit + 1)
		if next == authFieldUsername && !model.registering {
			continue
		}
		return next
	}
}

func (model *TUIModel) setAuthFocus(field int) tea.Cmd {
	model.authFocus = field
	model.emailInput.Blur()
	model.passwordInput.Blur()
	model.usernameInput.Blur()
	switch field {
	case authFieldEmail:
		return model.emailInput.Focus()
	case authFieldPassword:
		return model.passwordInput.Focus()
	case authFieldUsername:
		return model.usernameInput.Focus()
	}
	return nil
}

func (model *TUIModel) submitAuth() (tea.Model, tea.Cmd) {
	if model.authBusy {
		return model, nil
	}
	email := strings.TrimSpace(model.emailInput.Value())
	password := model.passwordInput.Value()
	username := strings.TrimSpace(model.usernameInput.Value())

	switch {
	case email == "" || !strings.Contains(email, "@"):
		model.authErrKey = "invalidEmail"
		return model, nil
	case len(password) < 6:
		model.authErrKey = "weakPassword"
		return model, nil
	}
	if model.registering {
		switch {
		case utf8.RuneCountInString(username) < 3:
			model.authErrKey = "usernameTooShort"
			return model, nil
		case utf8.RuneCountInString(username) > 30:
			model.authErrKey = "usernameTooLong"
			return model, nil
		}
	}

	model.authErrKey = ""
	model.authBusy = true
	if model.registering {
		return model, tea.Batch(model.signUpCmd(email, password, username), model.spin.Tick)
	}
	return model, tea.Batch(model.signInCmd(email, password), model.spin.Tick)
}

func (model *TUIModel) updateChat(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	now := time.Now()
	model.lastInputAt = now

	switch key.Type {
	case tea.KeyEsc:
		if model.replyTo != nil {
			model.replyTo = nil
			model.refreshFeedKeepingOffset()
			return model, nil
		}
		model.notice = ""
		return model, nil

	case tea.KeyEnter:
		return model.submitComposer(now)

	case tea.KeyUp, tea.KeyDown, tea.KeyPgUp, tea.KeyPgDown, tea.KeyHome, tea.KeyEnd:
		var cmd tea.Cmd
		model.viewport, cmd = model.viewport.Update(key)
		model.feed.SyncViewport(model.viewport.YOffset, model.viewport.Height, model.viewport.TotalLineCount())
		if model.feed.ShouldLoadOlder() {
			// no cursor means an empty window; arming a fetch there
			// would latch history closed before anything is loaded
			if cursor, ok := model.feed.OldestCursor(); ok && model.feed.BeginLoadOlder() {
				return model, tea.Batch(cmd, model.loadOlderCmd(model.sessionGen, cursor), model.spin.Tick)
			}
		}
		return model, cmd

	case tea.KeyCtrlR:
		model.cycleReplyTarget()
		return model, nil

	case tea.KeyCtrlD:
		return model.requestDelete()

	case tea.KeyCtrlO:
		model.openAttachBrowser(getDefaultBrowsePath())
		return model, nil

	case tea.KeyCtrlS:
		model.openSettings()
		return model, nil

	case tea.KeyCtrlL:
		model.teardownChannel()
		model.sessionGen++
		return model, model.signOutCmd()
	}

	var inputCmd tea.Cmd
	model.composer, inputCmd = model.composer.Update(key)

	var presenceCmd tea.Cmd
	if model.presence != nil {
		switch key.Type {
		case tea.KeyRunes, tea.KeySpace, tea.KeyBackspace:
			gen, _ := model.presence.SetTyping(now)
			model.lastTypingGen = gen
			presenceCmd = model.typingExpireCmd(model.sessionGen, gen)
		default:
			_ = model.presence.Activity(now)
		}
	}
	return model, tea.Batch(inputCmd, presenceCmd)
}

func (model *TUIModel) submitComposer(now time.Time) (tea.Model, tea.Cmd) {
	trimmed := strings.TrimSpace(model.composer.Value())
	if strings.HasPrefix(trimmed, "/") {
		if lower := strings.ToLower(trimmed); lower == "/quit" || lower == "/exit" {
			model.teardownChannel()
			return model, tea.Quit
		}
		return model, nil
	}

	out, ok := NewOutgoing(trimmed, model.replyTo, nil)
	if !ok || model.user == nil {
		return model, nil
	}
	model.composer.SetValue("")
	model.replyTo = nil
	model.refreshFeedKeepingOffset()
	if model.presence != nil {
		_ = model.presence.TypingExpired(model.lastTypingGen, now)
	}
	return model, model.sendMessageCmd(out)
}

// cycleReplyTarget walks the loaded messages newest to oldest, skipping
// deleted rows, and wraps around. The position is recomputed from the
// selected ID each time; prepended history shifts indexes under us.
func (model *TUIModel) cycleReplyTarget() {
	messages := model.feed.Messages()
	if len(messages) == 0 {
		return
	}
	start := len(messages) - 1
	if model.replyTo != nil {
		for i := range messages {
			if messages[i].ID == model.replyTo.ID {
				start = i - 1
				break
			}
		}
	}
	for offset := 0; offset < len(messages); offset++ {
		idx := start - offset
		for idx < 0 {
			idx += len(messages)
		}
		if messages[idx].IsDeleted {
			continue
		}
		selected := messages[idx]
		model.replyTo = &selected
		model.refreshFeedKeepingOffset()
		return
	}
}

func (model *TUIModel) requestDelete() (tea.Model, tea.Cmd) {
	if model.replyTo == nil || model.user == nil {
		return model, nil
	}
	target := model.replyTo.ID
	switch err := model.feed.AuthorizeDelete(target, model.user.ID); err {
	case nil:
		model.replyTo = nil
		model.refreshFeedKeepingOffset()
		return model, model.deleteMessageCmd(target)
	case ErrNotMessageOwner:
		return model, model.showNotice("cannotDeleteOthers")
	default:
		return model, nil
	}
}

// openAttachBrowser enters the attachment picker rooted at path. A
// directory that cannot be read surfaces as a notice and leaves the
// chat untouched.
func (model *TUIModel) openAttachBrowser(path string) {
	items, err := browseDirectory(path)
	if err != nil {
		model.notice = model.t("uploadFailed")
		return
	}
	model.browsePath = path
	model.browseItems = items
	model.browseIndex = 0
	model.composer.Blur()
	model.mode = modeAttachPrompt
}

func (model *TUIModel) updateAttachPrompt(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.Type {
	case tea.KeyEsc:
		model.closeAttachBrowser()
		return model, nil
	case tea.KeyUp:
		if model.browseIndex > 0 {
			model.browseIndex--
		}
		return model, nil
	case tea.KeyDown:
		if model.browseIndex < len(model.browseItems)-1 {
			model.browseIndex++
		}
		return model, nil
	case tea.KeyBackspace:
		model.openAttachBrowser(parentDir(model.browsePath))
		return model, nil
	case tea.KeyEnter:
		if len(model.browseItems) == 0 {
			return model, nil
		}
		selected := model.browseItems[model.browseIndex]
		if selected.IsDir {
			model.openAttachBrowser(selected.Path)
			return model, nil
		}
		model.closeAttachBrowser()
		model.uploading = true
		return model, tea.Batch(model.uploadCmd(model.sessionGen, model.user.ID, selected.Path), model.spin.Tick)
	}
	return model, nil
}

func (model *TUIModel) closeAttachBrowser() {
	model.browseItems = nil
	model.composer.Focus()
	model.mode = modeChat
}

func (model *TUIModel) openSettings() {
	model.settingsName.SetValue(model.user.Username)
	model.settingsColor = paletteIndex(model.user.AvatarColor)
	model.settingsTheme = model.theme
	model.settingsLocale = localeIndex(model.loc.Locales(), model.locale)
	model.settingsFocus = settingRowUsername
	model.settingsName.Focus()
	model.composer.Blur()
	model.mode = modeSettings
}

func (model *TUIModel) updateSettings(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	locales := model.loc.Locales()
	switch key.Type {
	case tea.KeyEsc:
		model.closeSettings()
		return model, nil
	case tea.KeyUp, tea.KeyShiftTab:
		model.settingsFocus = (model.settingsFocus + settingRowCount - 1) % settingRowCount
		model.focusSettingsRow()
		return model, nil
	case tea.KeyDown, tea.KeyTab:
		model.settingsFocus = (model.settingsFocus + 1) % settingRowCount
		model.focusSettingsRow()
		return model, nil
	case tea.KeyLeft, tea.KeyRight:
		step := 1
		if key.Type == tea.KeyLeft {
			step = -1
		}
		switch model.settingsFocus {
		case settingRowColor:
			model.settingsColor = (model.settingsColor + step + len(avatarPalette)) % len(avatarPalette)
		case settingRowTheme:
			if model.settingsTheme == themeDark {
				model.settingsTheme = themeLight
			} else {
				model.settingsTheme = themeDark
			}
		case settingRowLanguage:
			model.settingsLocale = (model.settingsLocale + step + len(locales)) % len(locales)
		}
		return model, nil
	case tea.KeyEnter:
		return model.submitSettings(locales)
	}
	if model.settingsFocus == settingRowUsername {
		var cmd tea.Cmd
		model.settingsName, cmd = model.settingsName.Update(key)
		return model, cmd
	}
	return model, nil
}

func (model *TUIModel) focusSettingsRow() {
	if model.settingsFocus == settingRowUsername {
		model.settingsName.Focus()
	} else {
		model.settingsName.Blur()
	}
}

func (model *TUIModel) closeSettings() {
	model.settingsName.Blur()
	model.composer.Focus()
	model.mode = modeChat
}

func (model *TUIModel) submitSettings(locales []string) (tea.Model, tea.Cmd) {
	username := strings.TrimSpace(model.settingsName.Value())
	switch {
	case utf8.RuneCountInString(username) < 3:
		return model, model.showNotice("usernameTooShort")
	case utf8.RuneCountInString(username) > 30:
		return model, model.showNotice("usernameTooLong")
	}
	color := avatarPalette[model.settingsColor]
	locale := locales[model.settingsLocale]
	return model, tea.Batch(
		model.saveSettingsCmd(model.sessionGen, username, color, locale, model.settingsTheme),
		model.spin.Tick,
	)
}

func (model *TUIModel) applySavedSettings(saved settingsSavedMsg) {
	model.user.Username = saved.username
	model.user.AvatarColor = saved.color
	model.profiles[model.user.ID] = Profile{
		UserID:      model.user.ID,
		Username:    saved.username,
		AvatarColor: saved.color,
	}
	model.locale = saved.locale
	model.theme = saved.theme
	model.composer.Placeholder = model.t("sendMessage")
	if model.presence != nil {
		_ = model.presence.UpdateIdentity(saved.username, saved.color, time.Now())
	}
	model.refreshFeedKeepingOffset()
	model.closeSettings()
}

func (model *TUIModel) startChat(user *User) (tea.Model, tea.Cmd) {
	model.user = user
	model.profiles = map[string]Profile{
		user.ID: {UserID: user.ID, Username: user.Username, AvatarColor: user.AvatarColor},
	}
	model.sessionGen++
	gen := model.sessionGen

	model.feed = NewMessageFeed(model.cachedProfile)
	model.presence = NewPresenceTracker(user.Username, user.AvatarColor, model.trackPresence)
	model.lastTypingGen = 0
	model.replyTo = nil
	model.notice = ""
	model.isSubscribed = false
	model.connectionError = nil
	model.needsResync = false
	model.loading = true
	model.lastInputAt = time.Now()

	model.mode = modeChat
	model.emailInput.Blur()
	model.passwordInput.Blur()
	model.usernameInput.Blur()
	model.passwordInput.SetValue("")
	model.composer.SetValue("")
	model.composer.Placeholder = model.t("sendMessage")
	model.composer.Prompt = "> "
	focusCmd := model.composer.Focus()

	return model, tea.Batch(
		focusCmd,
		model.loadInitialCmd(gen),
		model.connectCmd(gen),
		model.awayTickCmd(),
		model.spin.Tick,
	)
}

func (model *TUIModel) handleChannelEvent(gen int, event Event) (tea.Model, tea.Cmd) {
	readNext := model.readOnceCmd(gen, model.channel)
	now := time.Now()

	switch event.Type {
	case EventSubscribed:
		model.isSubscribed = true
		if model.presence != nil {
			_ = model.presence.AnnounceSelf(now)
		}
	case EventInsert:
		if event.Message == nil {
			break
		}
		incoming := *event.Message
		if incoming.Author.Username == "" {
			if _, cached := model.profiles[incoming.AuthorID]; !cached {
				return model, tea.Batch(readNext, model.resolveProfileCmd(gen, incoming))
			}
		}
		model.applyInsert(incoming)
	case EventUpdate:
		if event.Message != nil && model.feed.ApplyUpdate(*event.Message) {
			model.refreshFeedKeepingOffset()
			if model.replyTo != nil && model.replyTo.ID == event.Message.ID {
				model.replyTo = nil
			}
		}
	case EventPresence:
		if model.presence != nil {
			model.presence.ApplySync(event.State)
		}
	}
	return model, readNext
}

// applyInsert runs a live insert through the feed and follows the
// bottom only when the reader was already there before the insert.
func (model *TUIModel) applyInsert(incoming Message) {
	model.feed.SyncViewport(model.viewport.YOffset, model.viewport.Height, model.viewport.TotalLineCount())
	if !model.feed.ApplyInsert(incoming) {
		return
	}
	if incoming.Author.Username != "" {
		model.profiles[incoming.AuthorID] = incoming.Author
	}
	offset := model.viewport.YOffset
	model.viewport.SetContent(model.renderFeed())
	if model.feed.NearBottom() {
		model.viewport.GotoBottom()
	} else {
		model.viewport.SetYOffset(offset)
	}
}

func (model *TUIModel) refreshFeedKeepingOffset() {
	if !model.ready {
		return
	}
	offset := model.viewport.YOffset
	atBottom := model.viewport.AtBottom()
	model.viewport.SetContent(model.renderFeed())
	if atBottom {
		model.viewport.GotoBottom()
	} else {
		model.viewport.SetYOffset(offset)
	}
}

func (model *TUIModel) cachePageAuthors(page []Message) {
	for _, msg := range page {
		if msg.Author.Username != "" {
			model.profiles[msg.AuthorID] = msg.Author
		}
	}
}

func (model *TUIModel) showNotice(key string) tea.Cmd {
	model.notice = model.t(key)
	return model.noticeExpireCmd()
}

func (model *TUIModel) teardownChannel() {
	if model.channel != nil {
		_ = model.channel.Close()
		model.channel = nil
	}
	model.isSubscribed = false
}

func localeIndex(locales []string, locale string) int {
	for i, lang := range locales {
		if lang == locale {
			return i
		}
	}
	return 0
}
