package internal

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

const (
	themeDark  = "dark"
	themeLight = "light"
)

const sidebarWidth = 24

// styleSet is one theme's worth of styles. Two fixed palettes; avatar
// colors come from the profiles, not the theme.
type styleSet struct {
	appTitle   lipgloss.Style
	header     lipgloss.Style
	hint       lipgloss.Style
	label      lipgloss.Style
	focused    lipgloss.Style
	errorText  lipgloss.Style
	notice     lipgloss.Style
	connected  lipgloss.Style
	connecting lipgloss.Style
	timestamp  lipgloss.Style
	body       lipgloss.Style
	deleted    lipgloss.Style
	replyRef   lipgloss.Style
	attachment lipgloss.Style
	selected   lipgloss.Style
	feedBox    lipgloss.Style
	sidebarBox lipgloss.Style
	inputBox   lipgloss.Style
	typing     lipgloss.Style
	awayName   lipgloss.Style
	formBox    lipgloss.Style
}

var darkStyles = styleSet{
	appTitle:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("213")).Padding(0, 1),
	header:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("213")).BorderStyle(lipgloss.NormalBorder()).BorderBottom(true).BorderForeground(lipgloss.Color("63")).Padding(0, 1),
	hint:       lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
	label:      lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
	focused:    lipgloss.NewStyle().Foreground(lipgloss.Color("213")).Bold(true),
	errorText:  lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
	notice:     lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Italic(true),
	connected:  lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),
	connecting: lipgloss.NewStyle().Foreground(lipgloss.Color("178")).Italic(true),
	timestamp:  lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
	body:       lipgloss.NewStyle().Foreground(lipgloss.Color("253")),
	deleted:    lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Italic(true),
	replyRef:   lipgloss.NewStyle().Foreground(lipgloss.Color("110")),
	attachment: lipgloss.NewStyle().Foreground(lipgloss.Color("81")).Underline(true),
	selected:   lipgloss.NewStyle().Foreground(lipgloss.Color("213")).Bold(true),
	feedBox:    lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("60")).Padding(0, 1),
	sidebarBox: lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("60")).Padding(0, 1).Width(sidebarWidth),
	inputBox:   lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("63")).Padding(0, 1),
	typing:     lipgloss.NewStyle().Foreground(lipgloss.Color("110")).Italic(true),
	awayName:   lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
	formBox:    lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("63")).Padding(1, 2).MarginTop(1),
}

var lightStyles = styleSet{
	appTitle:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("55")).Padding(0, 1),
	header:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("55")).BorderStyle(lipgloss.NormalBorder()).BorderBottom(true).BorderForeground(lipgloss.Color("103")).Padding(0, 1),
	hint:       lipgloss.NewStyle().Foreground(lipgloss.Color("102")),
	label:      lipgloss.NewStyle().Foreground(lipgloss.Color("236")),
	focused:    lipgloss.NewStyle().Foreground(lipgloss.Color("55")).Bold(true),
	errorText:  lipgloss.NewStyle().Foreground(lipgloss.Color("124")).Bold(true),
	notice:     lipgloss.NewStyle().Foreground(lipgloss.Color("130")).Italic(true),
	connected:  lipgloss.NewStyle().Foreground(lipgloss.Color("28")).Bold(true),
	connecting: lipgloss.NewStyle().Foreground(lipgloss.Color("94")).Italic(true),
	timestamp:  lipgloss.NewStyle().Foreground(lipgloss.Color("102")),
	body:       lipgloss.NewStyle().Foreground(lipgloss.Color("235")),
	deleted:    lipgloss.NewStyle().Foreground(lipgloss.Color("145")).Italic(true),
	replyRef:   lipgloss.NewStyle().Foreground(lipgloss.Color("61")),
	attachment: lipgloss.NewStyle().Foreground(lipgloss.Color("26")).Underline(true),
	selected:   lipgloss.NewStyle().Foreground(lipgloss.Color("55")).Bold(true),
	feedBox:    lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("145")).Padding(0, 1),
	sidebarBox: lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("145")).Padding(0, 1).Width(sidebarWidth),
	inputBox:   lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("103")).Padding(0, 1),
	typing:     lipgloss.NewStyle().Foreground(lipgloss.Color("61")).Italic(true),
	awayName:   lipgloss.NewStyle().Foreground(lipgloss.Color("145")),
	formBox:    lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("103")).Padding(1, 2).MarginTop(1),
}

func (model *TUIModel) styles() styleSet {
	if model.theme == themeLight {
		return lightStyles
	}
	return darkStyles
}

func (model TUIModel) View() string {
	switch model.mode {
	case modeAuth:
		return model.renderAuthView()
	case modeSettings:
		return model.renderSettingsView()
	case modeAttachPrompt:
		return model.renderAttachPromptView()
	default:
		return model.renderChatView()
	}
}

func (model TUIModel) renderAuthView() string {
	st := model.styles()
	title := st.appTitle.Render(model.t("appTitle"))
	subtitle := model.t("signIn")
	if model.registering {
		subtitle = model.t("signUp")
	}

	rows := []string{
		model.renderAuthField(authFieldEmail, model.t("email"), model.emailInput.View()),
		model.renderAuthField(authFieldPassword, model.t("password"), model.passwordInput.View()),
	}
	if model.registering {
		rows = append(rows, model.renderAuthField(authFieldUsername, model.t("username"), model.usernameInput.View()))
	}
	button := "[ " + subtitle + " ]"
	if model.authFocus == authFieldSubmit {
		button = st.focused.Render("➤ " + button)
	} else {
		button = st.label.Render("  " + button)
	}
	rows = append(rows, "", button)

	sections := []string{
		title,
		st.hint.Render(subtitle),
		st.formBox.Render(lipgloss.JoinVertical(lipgloss.Left, rows...)),
	}
	if model.authBusy {
		sections = append(sections, st.connecting.Render(model.spin.View()+model.t("connecting")))
	}
	if model.authErrKey != "" {
		sections = append(sections, st.errorText.Render(model.t(model.authErrKey)))
	}
	hintKey := "needAccount"
	if model.registering {
		hintKey = "haveAccount"
	}
	sections = append(sections, st.hint.Render(model.t(hintKey)))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (model TUIModel) renderAuthField(field int, label, input string) string {
	st := model.styles()
	marker := "  "
	labelStyle := st.label
	if model.authFocus == field {
		marker = "➤ "
		labelStyle = st.focused
	}
	return lipgloss.JoinVertical(lipgloss.Left, labelStyle.Render(marker+label), "  "+input)
}

func (model TUIModel) renderChatView() string {
	st := model.styles()
	now := time.Now()

	header := st.header.Render(model.renderHeaderLine(now))

	feedView := model.viewport.View()
	if model.loading {
		feedView = model.spin.View() + " " + st.connecting.Render(model.t("connecting"))
	} else if model.feed.Len() == 0 {
		feedView = st.hint.Render(model.t("noMessages"))
	}
	feedBox := st.feedBox.Render(feedView)
	sidebar := st.sidebarBox.Render(model.renderSidebar(now))
	body := lipgloss.JoinHorizontal(lipgloss.Top, feedBox, sidebar)

	sections := []string{header, body}

	if model.feed.Loading() {
		sections = append(sections, st.connecting.Render(model.spin.View()+" "+model.t("loadingMore")))
	}
	if line := model.renderTypingLine(); line != "" {
		sections = append(sections, st.typing.Render(line))
	}
	if model.replyTo != nil {
		excerpt := messageExcerpt(model.replyTo.Content, 48)
		sections = append(sections, st.replyRef.Render(fmt.Sprintf("↳ %s @%s: %s", model.t("replyingTo"), model.replyTo.Author.Username, excerpt)))
	}
	if model.uploading {
		sections = append(sections, st.connecting.Render(model.spin.View()+" "+model.t("attachFile")))
	}
	if model.notice != "" {
		sections = append(sections, st.notice.Render(model.notice))
	}

	sections = append(sections, st.inputBox.Render(model.composer.View()))
	sections = append(sections, st.hint.Render("Enter send • ↑/↓ scroll • Ctrl+R reply • Ctrl+D delete • Ctrl+O attach • Ctrl+S settings • Ctrl+L logout • Ctrl+C quit"))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (model TUIModel) renderHeaderLine(now time.Time) string {
	st := model.styles()
	segments := []string{model.t("appTitle")}
	if model.user != nil {
		self := model.user.Username
		if model.selfAway(now) {
			self += " (" + model.t("away") + ")"
		}
		segments = append(segments, lipgloss.NewStyle().Foreground(lipgloss.Color(model.user.AvatarColor)).Render("● ")+self)
	}
	switch {
	case model.connectionError != nil:
		segments = append(segments, st.errorText.Render(model.t("connectionError")))
	case model.isSubscribed:
		segments = append(segments, st.connected.Render(model.t("connected")))
	default:
		segments = append(segments, st.connecting.Render(model.t("connecting")))
	}
	return strings.Join(segments, "  ┃  ")
}

func (model TUIModel) renderSidebar(now time.Time) string {
	st := model.styles()
	if model.presence == nil {
		return st.hint.Render(model.t("onlineUsers"))
	}
	users := model.presence.OnlineUsers(now)
	lines := []string{st.focused.Render(fmt.Sprintf("%s (%d)", model.t("onlineUsers"), len(users)+1))}

	// the local user first
	if model.user != nil {
		lines = append(lines, model.renderPresenceLine(model.user.Username, selfStatus(model.selfAway(now)), model.user.AvatarColor))
	}
	for _, user := range users {
		lines = append(lines, model.renderPresenceLine(user.Username, user.Status, user.AvatarColor))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func selfStatus(away bool) string {
	if away {
		return StatusAway
	}
	return StatusOnline
}

func (model TUIModel) renderPresenceLine(username, status, avatarColor string) string {
	st := model.styles()
	nameStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(avatarColor))
	switch status {
	case StatusAway:
		return st.awayName.Render("○ " + username + " · " + model.t("away"))
	case StatusTyping:
		return nameStyle.Render("● "+username) + st.typing.Render(" ✎")
	default:
		return nameStyle.Render("● " + username)
	}
}

func (model TUIModel) renderTypingLine() string {
	if model.presence == nil {
		return ""
	}
	names := model.presence.TypingUsernames()
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0] + " " + model.t("typing")
	default:
		return strings.Join(names, ", ") + " " + model.t("areTyping")
	}
}

// renderFeed produces the viewport content: every loaded message, one
// block each, wrapped to the viewport width.
func (model *TUIModel) renderFeed() string {
	st := model.styles()
	width := model.viewport.Width
	if width <= 0 {
		width = 80
	}
	wrap := lipgloss.NewStyle().Width(width)

	var blocks []string
	for _, msg := range model.feed.Messages() {
		blocks = append(blocks, wrap.Render(model.renderMessage(msg, st)))
	}
	return strings.Join(blocks, "\n")
}

func (model *TUIModel) renderMessage(msg Message, st styleSet) string {
	timestamp := st.timestamp.Render("[" + msg.CreatedAt.Local().Format("15:04") + "]")

	if msg.IsDeleted {
		return timestamp + " " + st.deleted.Render(model.t("deletedMessage"))
	}

	prefix := ""
	if model.replyTo != nil && model.replyTo.ID == msg.ID {
		prefix = st.selected.Render("➤ ")
	}

	author := msg.Author.Username
	color := msg.Author.AvatarColor
	if color == "" {
		color = defaultAvatarColor
	}
	name := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(color)).Render(author)

	var lines []string
	if msg.ReplyTo != nil {
		lines = append(lines, st.replyRef.Render(fmt.Sprintf("  ↳ %s: %s", msg.ReplyTo.AuthorName, messageExcerpt(msg.ReplyTo.Content, 48))))
	}
	lines = append(lines, prefix+timestamp+" "+name+": "+st.body.Render(msg.Content))
	if msg.Attachment != nil {
		marker := "📎"
		if isImageAttachment(msg.Attachment.Name) {
			marker = "🖼"
		}
		lines = append(lines, "  "+marker+" "+st.attachment.Render(msg.Attachment.Name)+" "+model.styles().hint.Render(msg.Attachment.URL))
	}
	return strings.Join(lines, "\n")
}

func (model TUIModel) renderAttachPromptView() string {
	st := model.styles()

	// keep the list inside the window, centered on the selection
	const maxRows = 14
	start := 0
	if model.browseIndex >= maxRows {
		start = model.browseIndex - maxRows + 1
	}
	end := start + maxRows
	if end > len(model.browseItems) {
		end = len(model.browseItems)
	}

	var rows []string
	for i := start; i < end; i++ {
		item := model.browseItems[i]
		line := "  "
		if i == model.browseIndex {
			line = st.focused.Render("➤ ")
		}
		if item.IsDir {
			line += st.label.Render("📁 " + item.Name + "/")
		} else {
			line += st.body.Render(item.Name) + " " + st.hint.Render(formatFileSize(item.Size))
		}
		rows = append(rows, line)
	}
	if len(rows) == 0 {
		rows = append(rows, st.hint.Render(model.t("noMessages")))
	}

	sections := []string{
		st.appTitle.Render(model.t("attachFile")),
		st.hint.Render(model.t("attachPrompt")),
		st.label.Render(model.browsePath),
		st.formBox.Render(lipgloss.JoinVertical(lipgloss.Left, rows...)),
		st.hint.Render("↑/↓ select • Enter open/upload • Backspace parent • Esc " + model.t("cancel")),
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (model TUIModel) renderSettingsView() string {
	st := model.styles()
	locales := model.loc.Locales()

	rows := []string{
		model.renderSettingsRow(settingRowUsername, model.t("username"), model.settingsName.View()),
		model.renderSettingsRow(settingRowColor, model.t("avatarColor"), model.renderPalette()),
		model.renderSettingsRow(settingRowTheme, model.t("theme"), model.renderThemeChoice()),
		model.renderSettingsRow(settingRowLanguage, model.t("language"), locales[model.settingsLocale]),
	}

	sections := []string{
		st.appTitle.Render(model.t("settings")),
		st.formBox.Render(lipgloss.JoinVertical(lipgloss.Left, rows...)),
	}
	if model.notice != "" {
		sections = append(sections, st.notice.Render(model.notice))
	}
	sections = append(sections, st.hint.Render("↑/↓ row • ←/→ change • Enter "+model.t("save")+" • Esc "+model.t("cancel")))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (model TUIModel) renderSettingsRow(row int, label, value string) string {
	st := model.styles()
	marker := "  "
	labelStyle := st.label
	if model.settingsFocus == row {
		marker = "➤ "
		labelStyle = st.focused
	}
	return labelStyle.Render(marker+label+": ") + value
}

func (model TUIModel) renderPalette() string {
	var swatches []string
	for i, color := range avatarPalette {
		swatch := lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render("██")
		if i == model.settingsColor {
			swatch = "[" + swatch + "]"
		} else {
			swatch = " " + swatch + " "
		}
		swatches = append(swatches, swatch)
	}
	return strings.Join(swatches, "")
}

func (model TUIModel) renderThemeChoice() string {
	if model.settingsTheme == themeLight {
		return model.t("light")
	}
	return model.t("dark")
}

// feedViewportSize derives the message viewport's dimensions from the
// terminal size, leaving room for the sidebar and the fixed chrome.
func (model *TUIModel) feedViewportSize() (int, int) {
	width := model.width - sidebarWidth - 6
	if width < 20 {
		width = 20
	}
	height := model.height - 9
	if height < 3 {
		height = 3
	}
	return width, height
}

func messageExcerpt(content string, max int) string {
	content = strings.ReplaceAll(content, "\n", " ")
	runes := []rune(content)
	if len(runes) <= max {
		return content
	}
	return string(runes[:max]) + "…"
}
