package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"pktcloud/internal/cloud"
	"pktcloud/internal/logging"
)

// field identifies a text input on the dialog.
type field int

const (
	fieldUsername field = iota
	fieldPassword
	fieldConfirm
	fieldImportURL
	fieldSetName
	fieldDescription
)

// replyMsg carries a response body back into the event loop.
type replyMsg struct {
	id   string
	body string
	err  error
}

// SettingsChangedMsg reports that the settings file was rewritten elsewhere.
type SettingsChangedMsg struct{}

// DialogModel is the bubbletea front end of cloud.Dialog. Requests run as
// tea.Cmds; their replies come back as messages so the dialog is only ever
// touched from Update.
type DialogModel struct {
	ctx    context.Context
	dialog *cloud.Dialog
	doer   cloud.Doer
	styles Styles
	keys   keyMap
	help   help.Model

	username    textinput.Model
	password    textinput.Model
	confirm     textinput.Model
	importURL   textinput.Model
	setName     textinput.Model
	description textinput.Model
	remember    bool
	makePublic  bool
	focus       field

	table    table.Model
	rows     []cloud.Row
	sortCol  cloud.SortColumn
	sortDesc bool

	// notices are shown one at a time, oldest first.
	notices []cloud.Notification
	width   int
	height  int
}

// NewDialogModel builds the terminal dialog around an opened cloud.Dialog.
func NewDialogModel(ctx context.Context, d *cloud.Dialog, doer cloud.Doer) DialogModel {
	newInput := func(placeholder string, limit int) textinput.Model {
		ti := textinput.New()
		ti.Placeholder = placeholder
		ti.CharLimit = limit
		ti.Width = 40
		return ti
	}

	m := DialogModel{
		ctx:         ctx,
		dialog:      d,
		doer:        doer,
		styles:      DefaultStyles(),
		keys:        defaultKeyMap(),
		help:        help.New(),
		username:    newInput("username", 64),
		password:    newInput("password", 128),
		confirm:     newInput("confirm password", 128),
		importURL:   newInput("https://cloud.packetsender.com/...", 512),
		setName:     newInput("packet set name", 128),
		description: newInput("public description", 1024),
	}
	m.password.EchoMode = textinput.EchoPassword
	m.confirm.EchoMode = textinput.EchoPassword

	m.table = table.New(
		table.WithColumns([]table.Column{
			{Title: "Description", Width: 48},
			{Title: "Packets", Width: 10},
		}),
		table.WithFocused(true),
		table.WithHeight(12),
	)

	m.loadCredentials()
	m.setFocus(fieldUsername)
	return m
}

// Init starts the cursor blinking.
func (m DialogModel) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages.
func (m DialogModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case replyMsg:
		return m.handleReply(msg)

	case SettingsChangedMsg:
		if m.dialog.State() != cloud.Pending {
			m.syncCredentials()
		}
		m.dialog.ReloadCredentials()
		m.loadCredentials()
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.ForceQuit) {
			return m, tea.Quit
		}
		if len(m.notices) > 0 {
			// The notification is modal.
			if key.Matches(msg, m.keys.Dismiss) {
				m.notices = m.notices[1:]
			}
			return m, nil
		}

		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.LoginPage):
			return m.showView(cloud.ViewLogin)
		case key.Matches(msg, m.keys.ResultsPage):
			return m.showView(cloud.ViewResults)
		case key.Matches(msg, m.keys.SharePage):
			return m.showView(cloud.ViewShare)
		}

		switch m.dialog.View() {
		case cloud.ViewResults:
			return m.updateResults(msg)
		case cloud.ViewShare:
			return m.updateShare(msg)
		default:
			return m.updateLogin(msg)
		}
	}

	var cmd tea.Cmd
	if in := m.input(m.focus); in != nil {
		*in, cmd = in.Update(msg)
	}
	return m, cmd
}

func (m DialogModel) showView(v cloud.View) (tea.Model, tea.Cmd) {
	switch v {
	case cloud.ViewResults:
		if len(m.dialog.Sets()) == 0 {
			return m, nil
		}
	case cloud.ViewShare:
		if err := m.dialog.RefreshLocalCount(m.ctx); err != nil {
			logging.UIDebug("%v", err)
		}
	}
	m.dialog.SetView(v)

	switch v {
	case cloud.ViewLogin:
		return m, m.setFocus(fieldUsername)
	case cloud.ViewShare:
		return m, m.setFocus(fieldSetName)
	}
	m.setFocus(-1)
	return m, nil
}

func (m DialogModel) updateLogin(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	pending := m.dialog.State() == cloud.Pending

	switch {
	case key.Matches(msg, m.keys.Next):
		return m, m.cycleFocus(m.loginFields(), 1)
	case key.Matches(msg, m.keys.Prev):
		return m, m.cycleFocus(m.loginFields(), -1)
	case key.Matches(msg, m.keys.ToggleCreate):
		if pending {
			return m, nil
		}
		m.syncCredentials()
		m.dialog.ToggleCreateMode()
		m.loadCredentials()
		if m.focus == fieldConfirm {
			return m, m.setFocus(fieldPassword)
		}
		return m, nil
	case key.Matches(msg, m.keys.ToggleRemember):
		if !pending {
			m.remember = !m.remember
		}
		return m, nil
	case key.Matches(msg, m.keys.Submit):
		if m.focus == fieldImportURL {
			req, err := m.dialog.SubmitImportKey(m.importURL.Value())
			return m.submit(req, err)
		}
		if pending {
			return m, nil
		}
		m.syncCredentials()
		req, err := m.dialog.SubmitLogin()
		return m.submit(req, err)
	}

	var cmd tea.Cmd
	if in := m.input(m.focus); in != nil {
		*in, cmd = in.Update(msg)
	}
	return m, cmd
}

func (m DialogModel) updateResults(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Sort):
		if m.sortCol == cloud.SortByDescription {
			m.sortCol = cloud.SortByCount
		} else {
			m.sortCol = cloud.SortByDescription
		}
		m.refreshTable()
		return m, nil
	case key.Matches(msg, m.keys.Reverse):
		m.sortDesc = !m.sortDesc
		m.refreshTable()
		return m, nil
	case key.Matches(msg, m.keys.Import):
		idx := m.table.Cursor()
		selected := idx >= 0 && idx < len(m.rows)
		tag := -1
		if selected {
			tag = m.rows[idx].Tag
		}
		res, err := m.dialog.ImportSelected(m.ctx, tag, selected)
		switch {
		case err != nil:
			m.notify(cloud.Notification{Title: "Error", Text: err.Error(), IsError: true})
		case res != nil:
			m.notify(cloud.Notification{
				Title: "Success",
				Text:  fmt.Sprintf("Imported %s packets from %q", humanize.Comma(int64(res.Merged)), res.Description),
			})
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m DialogModel) updateShare(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Next):
		return m, m.cycleFocus(m.shareFields(), 1)
	case key.Matches(msg, m.keys.Prev):
		return m, m.cycleFocus(m.shareFields(), -1)
	case key.Matches(msg, m.keys.TogglePublic):
		if m.dialog.State() == cloud.Pending {
			return m, nil
		}
		m.makePublic = !m.makePublic
		if !m.makePublic && m.focus == fieldDescription {
			return m, m.setFocus(fieldSetName)
		}
		return m, nil
	case key.Matches(msg, m.keys.Submit):
		if m.dialog.State() == cloud.Pending {
			return m, nil
		}
		m.syncCredentials()
		req, err := m.dialog.SubmitUpload(m.ctx, cloud.Upload{
			SetName:     m.setName.Value(),
			Public:      m.makePublic,
			Description: m.description.Value(),
		})
		return m.submit(req, err)
	}

	var cmd tea.Cmd
	if in := m.input(m.focus); in != nil {
		*in, cmd = in.Update(msg)
	}
	return m, cmd
}

// submit turns a dialog submission into a send command, or shows why it was refused.
func (m DialogModel) submit(req *cloud.Request, err error) (tea.Model, tea.Cmd) {
	if err == nil {
		return m, m.send(req)
	}
	if errors.Is(err, cloud.ErrBusy) {
		return m, nil
	}

	var verr *cloud.ValidationError
	switch {
	case errors.As(err, &verr):
		m.notify(cloud.Notification{Title: verr.Title, Text: verr.Message, IsError: true})
		return m, m.setFocus(focusFor(verr.Field))
	case errors.Is(err, cloud.ErrNoKey):
		m.notify(cloud.Notification{Title: "Error", Text: "Could not find a key in that link.", IsError: true})
		return m, m.setFocus(fieldImportURL)
	default:
		m.notify(cloud.Notification{Title: "Error", Text: err.Error(), IsError: true})
		return m, nil
	}
}

func (m DialogModel) send(req *cloud.Request) tea.Cmd {
	ctx, doer := m.ctx, m.doer
	return func() tea.Msg {
		body, err := doer.Do(ctx, req)
		return replyMsg{id: req.ID, body: body, err: err}
	}
}

func (m DialogModel) handleReply(msg replyMsg) (tea.Model, tea.Cmd) {
	pending := m.dialog.PendingRequest()
	if pending == nil || pending.ID != msg.id {
		logging.UIDebug("dropping stale reply %s", msg.id)
		return m, nil
	}

	out := m.dialog.HandleReply(msg.body, msg.err)
	m.notify(out.Notification)

	var cmd tea.Cmd
	switch m.dialog.View() {
	case cloud.ViewResults:
		m.table.SetCursor(0)
		m.refreshTable()
		m.setFocus(-1)
	case cloud.ViewLogin:
		m.loadCredentials()
	}
	if out.FollowUp != nil {
		cmd = m.send(out.FollowUp)
	}
	return m, cmd
}

// notify queues n behind any notification still waiting to be dismissed.
func (m *DialogModel) notify(n cloud.Notification) {
	m.notices = append(m.notices, n)
}

// notice returns the notification on screen, or nil.
func (m DialogModel) notice() *cloud.Notification {
	if len(m.notices) == 0 {
		return nil
	}
	return &m.notices[0]
}

func (m *DialogModel) refreshTable() {
	m.rows = m.dialog.Rows()
	cloud.SortRows(m.rows, m.sortCol, m.sortDesc)

	rows := make([]table.Row, len(m.rows))
	for i, r := range m.rows {
		rows[i] = table.Row{r.Description, humanize.Comma(int64(r.Count))}
	}
	m.table.SetRows(rows)
}

// syncCredentials copies the form into the dialog.
func (m *DialogModel) syncCredentials() {
	m.dialog.SetCredentials(cloud.Credentials{
		Username: m.username.Value(),
		Password: m.password.Value(),
		Confirm:  m.confirm.Value(),
		Remember: m.remember,
	})
}

// loadCredentials copies the dialog's credentials into the form.
func (m *DialogModel) loadCredentials() {
	c := m.dialog.Credentials()
	m.username.SetValue(c.Username)
	m.password.SetValue(c.Password)
	m.confirm.SetValue(c.Confirm)
	m.remember = c.Remember
}

func (m *DialogModel) loginFields() []field {
	if m.dialog.CreateMode() {
		return []field{fieldUsername, fieldPassword, fieldConfirm, fieldImportURL}
	}
	return []field{fieldUsername, fieldPassword, fieldImportURL}
}

func (m *DialogModel) shareFields() []field {
	if m.makePublic {
		return []field{fieldSetName, fieldDescription}
	}
	return []field{fieldSetName}
}

func (m *DialogModel) cycleFocus(fields []field, step int) tea.Cmd {
	idx := 0
	for i, f := range fields {
		if f == m.focus {
			idx = (i + step + len(fields)) % len(fields)
			break
		}
	}
	return m.setFocus(fields[idx])
}

// setFocus focuses f and blurs every other input. A negative field blurs all.
func (m *DialogModel) setFocus(f field) tea.Cmd {
	for _, other := range []field{fieldUsername, fieldPassword, fieldConfirm, fieldImportURL, fieldSetName, fieldDescription} {
		m.input(other).Blur()
	}
	m.focus = f
	if in := m.input(f); in != nil {
		return in.Focus()
	}
	return nil
}

func (m *DialogModel) input(f field) *textinput.Model {
	switch f {
	case fieldUsername:
		return &m.username
	case fieldPassword:
		return &m.password
	case fieldConfirm:
		return &m.confirm
	case fieldImportURL:
		return &m.importURL
	case fieldSetName:
		return &m.setName
	case fieldDescription:
		return &m.description
	}
	return nil
}

func focusFor(f cloud.Field) field {
	switch f {
	case cloud.FieldPassword:
		return fieldPassword
	case cloud.FieldConfirm:
		return fieldConfirm
	case cloud.FieldSetName:
		return fieldSetName
	case cloud.FieldDescription:
		return fieldDescription
	}
	return fieldUsername
}

// View renders the dialog.
func (m DialogModel) View() string {
	var body string
	if n := m.notice(); n != nil {
		body = m.renderNotice(*n)
	} else {
		switch m.dialog.View() {
		case cloud.ViewResults:
			body = m.renderResults()
		case cloud.ViewShare:
			body = m.renderShare()
		default:
			body = m.renderLogin()
		}
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		m.styles.Content.Render(body),
		m.styles.Footer.Render(m.footer()),
	)
}

func (m DialogModel) renderHeader() string {
	tabs := []struct {
		view  cloud.View
		label string
	}{
		{cloud.ViewLogin, "F1 Login"},
		{cloud.ViewResults, "F2 Results"},
		{cloud.ViewShare, "F3 Share"},
	}

	parts := []string{m.styles.Header.Render("Packet Sender Cloud")}
	for _, t := range tabs {
		if t.view == cloud.ViewResults && len(m.dialog.Sets()) == 0 {
			continue
		}
		style := m.styles.Tab
		if t.view == m.dialog.View() {
			style = m.styles.ActiveTab
		}
		parts = append(parts, style.Render(t.label))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m DialogModel) renderLogin() string {
	var sb strings.Builder

	title, action, other := "Login", "Login", "ctrl+n: Create a new account."
	if m.dialog.CreateMode() {
		title, action, other = "Sign-up", "Sign-up", "ctrl+n: Login instead."
	}
	sb.WriteString(m.styles.Title.Render(title) + "\n")
	sb.WriteString(m.row("Username", m.username.View()))
	sb.WriteString(m.row("Password", m.password.View()))
	if m.dialog.CreateMode() {
		sb.WriteString(m.row("Confirm", m.confirm.View()))
	}
	sb.WriteString(m.row("", checkbox(m.remember)+" Remember login (ctrl+r)"))
	sb.WriteString("\n" + m.button(action) + "  " + m.styles.Muted.Render(other) + "\n\n")

	sb.WriteString(m.styles.Title.Render("Import shared packets") + "\n")
	sb.WriteString(m.row("Share link", m.importURL.View()))
	sb.WriteString(m.styles.Muted.Render("enter on the link field fetches the set"))
	return sb.String()
}

func (m DialogModel) renderResults() string {
	var sb strings.Builder
	sb.WriteString(m.styles.Title.Render("Cloud packet sets") + "\n")
	sb.WriteString(m.table.View() + "\n\n")

	order := "description"
	if m.sortCol == cloud.SortByCount {
		order = "packet count"
	}
	if m.sortDesc {
		order += ", descending"
	}
	sb.WriteString(m.styles.Muted.Render("Sorted by " + order))
	return sb.String()
}

func (m DialogModel) renderShare() string {
	var sb strings.Builder
	sb.WriteString(m.styles.Title.Render("Save packets to the cloud") + "\n")
	sb.WriteString(m.styles.Body.Render(shareBlurb(m.dialog.LocalPacketCount())) + "\n\n")
	sb.WriteString(m.row("Set name", m.setName.View()))
	sb.WriteString(m.row("", checkbox(m.makePublic)+" Make public (ctrl+p)"))
	if m.makePublic {
		sb.WriteString(m.row("Description", m.description.View()))
	}
	sb.WriteString("\n" + m.button("Save to cloud"))
	return sb.String()
}

func (m DialogModel) renderNotice(n cloud.Notification) string {
	title := m.styles.Success.Render(n.Title)
	if n.IsError {
		title = m.styles.Error.Render(n.Title)
	}
	if len(m.notices) > 1 {
		title += m.styles.Muted.Render(fmt.Sprintf("  (1 of %d)", len(m.notices)))
	}
	box := m.styles.Modal.Render(title + "\n\n" + m.styles.Body.Render(n.Text))
	if m.width > 0 && m.height > 4 {
		return lipgloss.Place(m.width-4, m.height-4, lipgloss.Center, lipgloss.Center, box)
	}
	return box
}

func (m DialogModel) footer() string {
	if m.dialog.State() == cloud.Pending {
		return "Talking to the cloud..."
	}
	if len(m.notices) > 0 {
		return m.help.View(bindingHelp{m.keys.Dismiss})
	}
	switch m.dialog.View() {
	case cloud.ViewResults:
		return m.help.View(m.keys.resultsHelp())
	case cloud.ViewShare:
		return m.help.View(m.keys.shareHelp())
	}
	return m.help.View(m.keys.loginHelp())
}

func (m DialogModel) row(label, value string) string {
	return m.styles.Label.Render(label) + value + "\n"
}

func (m DialogModel) button(label string) string {
	if m.dialog.State() == cloud.Pending {
		return m.styles.ButtonDisabled.Render(label)
	}
	return m.styles.Button.Render(label)
}

func checkbox(on bool) string {
	if on {
		return "[x]"
	}
	return "[ ]"
}

func shareBlurb(n int) string {
	if n == 1 {
		return "Saving 1 packet to the cloud."
	}
	return fmt.Sprintf("Saving %s packets to the cloud.", humanize.Comma(int64(n)))
}
