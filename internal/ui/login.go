// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/birrwire-tui/internal/api"
	"github.com/jeranaias/birrwire-tui/internal/ui/styles"
)

// =============================================================================
// LOGIN SCREEN
// =============================================================================

const (
	loginFieldEmail = iota
	loginFieldPassword
	loginFieldTOTP
)

// LoggedInMsg is emitted once authentication fully succeeds, including the
// local TOTP check when the device is enrolled.
type LoggedInMsg struct {
	Token string
	Role  string
}

// loginDoneMsg carries the backend's answer to a login attempt.
type loginDoneMsg struct {
	result *api.LoginResult
	err    error
}

// LoginModel is the sign-in form: email, password, and a TOTP code field
// when the device is enrolled for MFA.
type LoginModel struct {
	client     *api.Client
	theme      *styles.Theme
	totpSecret string

	inputs []textinput.Model
	focus  int
	busy   bool
	errMsg string
	notice string

	width int
}

// NewLoginModel builds the sign-in form. A non-empty totpSecret enables
// the code field.
func NewLoginModel(client *api.Client, theme *styles.Theme, totpSecret string) *LoginModel {
	email := textinput.New()
	email.Placeholder = "agent@example.com"
	email.Prompt = ""
	email.CharLimit = 254
	email.Width = 40
	email.Focus()

	password := textinput.New()
	password.Placeholder = "password"
	password.Prompt = ""
	password.CharLimit = 128
	password.Width = 40
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '*'

	inputs := []textinput.Model{email, password}
	if totpSecret != "" {
		code := textinput.New()
		code.Placeholder = "6-digit code"
		code.Prompt = ""
		code.CharLimit = 6
		code.Width = 40
		inputs = append(inputs, code)
	}

	return &LoginModel{
		client:     client,
		theme:      theme,
		totpSecret: totpSecret,
		inputs:     inputs,
	}
}

// SetNotice shows a one-time banner above the form, e.g. after an idle
// logout. It is cleared on the next successful login.
func (m *LoginModel) SetNotice(notice string) {
	m.notice = notice
}

// SetWidth propagates the terminal width.
func (m *LoginModel) SetWidth(w int) {
	m.width = w
}

// Init starts the cursor blink.
func (m *LoginModel) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles form navigation and submission.
func (m *LoginModel) Update(msg tea.Msg) (*LoginModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.busy {
			return m, nil
		}
		switch msg.String() {
		case "tab", "down":
			m.setFocus((m.focus + 1) % len(m.inputs))
			return m, textinput.Blink
		case "shift+tab", "up":
			m.setFocus((m.focus + len(m.inputs) - 1) % len(m.inputs))
			return m, textinput.Blink
		case "enter":
			if m.focus < len(m.inputs)-1 {
				m.setFocus(m.focus + 1)
				return m, textinput.Blink
			}
			return m, m.submit()
		}

	case loginDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.errMsg = loginErrorMessage(msg.err)
			return m, nil
		}
		m.notice = ""
		m.errMsg = ""
		result := msg.result
		return m, func() tea.Msg {
			return LoggedInMsg{Token: result.Token, Role: result.Role}
		}
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m *LoginModel) setFocus(i int) {
	m.inputs[m.focus].Blur()
	m.focus = i
	m.inputs[m.focus].Focus()
}

// submit validates locally and fires the login call. The TOTP check runs
// before any network traffic; a bad code never reaches the backend.
func (m *LoginModel) submit() tea.Cmd {
	email := strings.TrimSpace(m.inputs[loginFieldEmail].Value())
	password := m.inputs[loginFieldPassword].Value()

	if email == "" || password == "" {
		m.errMsg = "Email and password are required"
		return nil
	}
	if m.totpSecret != "" {
		code := strings.TrimSpace(m.inputs[loginFieldTOTP].Value())
		if err := api.VerifyTOTP(m.totpSecret, code); err != nil {
			m.errMsg = "Authentication code not accepted"
			return nil
		}
	}

	m.busy = true
	m.errMsg = ""
	client := m.client
	return func() tea.Msg {
		result, err := client.Login(context.Background(), email, password)
		return loginDoneMsg{result: result, err: err}
	}
}

// loginErrorMessage maps login failures to operator-facing text.
func loginErrorMessage(err error) string {
	var reqErr *api.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.Status == 401 || reqErr.Status == 422 {
			return "Email or password not recognized"
		}
		return reqErr.UserMessage()
	}
	return "Could not reach the server. Check your connection and try again."
}

// View renders the sign-in form.
func (m *LoginModel) View() string {
	labels := []string{"Email", "Password"}
	if m.totpSecret != "" {
		labels = append(labels, "Authentication code")
	}

	var parts []string
	parts = append(parts, m.theme.HeaderBrand.Render("birrwire")+
		m.theme.Hint.Render("  back-office console"))
	parts = append(parts, "")

	if m.notice != "" {
		parts = append(parts, styles.RenderWarning(m.notice), "")
	}

	for i, in := range m.inputs {
		parts = append(parts, m.theme.Label.Render(labels[i]))
		field := m.theme.FieldBlurred
		if i == m.focus {
			field = m.theme.FieldFocused
		}
		parts = append(parts, field.Render(in.View()))
	}

	parts = append(parts, "")
	switch {
	case m.busy:
		parts = append(parts, m.theme.Hint.Render("Signing in..."))
	case m.errMsg != "":
		parts = append(parts, styles.RenderError(m.errMsg))
	default:
		parts = append(parts, m.theme.Hint.Render("enter: sign in  •  tab: next field"))
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}
