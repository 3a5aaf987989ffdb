// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ui is the terminal front end: screen routing, the idle-timeout
// overlay, and the per-screen models. Every keystroke anywhere in the
// app counts as session activity.
package ui

import (
	"context"
	"log"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/birrwire-tui/internal/api"
	"github.com/jeranaias/birrwire-tui/internal/config"
	"github.com/jeranaias/birrwire-tui/internal/credstore"
	"github.com/jeranaias/birrwire-tui/internal/session"
	"github.com/jeranaias/birrwire-tui/internal/ui/styles"
)

// =============================================================================
// SCREENS
// =============================================================================

// Screen identifies the active view.
type Screen int

const (
	// ScreenLogin is the unauthenticated sign-in form.
	ScreenLogin Screen = iota
	// ScreenTransfers is the authenticated landing view.
	ScreenTransfers
	// ScreenWizard is the two-step transfer form.
	ScreenWizard
	// ScreenHelp is the built-in guide.
	ScreenHelp
)

// AuthMissingMsg is sent from the API client's auth-missing hook: a
// request found no stored token, so the operator must sign in again.
type AuthMissingMsg struct{}

// logoutSessionsDoneMsg carries the result of a remote logout request.
type logoutSessionsDoneMsg struct {
	err error
}

// =============================================================================
// APP MODEL
// =============================================================================

// App is the root Bubble Tea model.
type App struct {
	cfg    *config.Config
	theme  *styles.Theme
	client *api.Client
	store  *credstore.Store

	guard *session.Guard
	role  string

	screen     Screen
	prevScreen Screen
	login      *LoginModel
	transfers  *TransfersModel
	wizard     *WizardModel
	help       *HelpModel
	overlay    TimeoutOverlay

	width  int
	height int
}

// NewApp wires the root model. When a token survives from a previous run
// the app starts signed in; the backend will reject the token with a 401
// if it has expired server-side.
func NewApp(cfg *config.Config, theme *styles.Theme, client *api.Client, store *credstore.Store) *App {
	a := &App{
		cfg:    cfg,
		theme:  theme,
		client: client,
		store:  store,
		screen: ScreenLogin,
		help:   NewHelpModel(theme),
	}
	a.login = NewLoginModel(client, theme, a.totpSecret())

	if _, err := store.ReadToken(); err == nil {
		role, _ := store.ReadRole()
		a.startSession(role)
	}
	return a
}

func (a *App) totpSecret() string {
	if !a.cfg.Session.MFAEnabled {
		return ""
	}
	secret, err := a.store.ReadTOTPSecret()
	if err != nil {
		return ""
	}
	return secret
}

// startSession builds the guard and the landing screen after
// authentication.
func (a *App) startSession(role string) {
	a.role = role
	a.guard = session.NewGuard(a.cfg.Session.IdleTimeout(), a.cfg.Session.WarningBefore(), a.store)
	a.transfers = NewTransfersModel(a.client, a.theme)
	a.transfers.SetWidth(a.width)
	a.screen = ScreenTransfers
}

// endSession tears the authenticated state down and returns to login.
func (a *App) endSession(notice string) {
	if a.guard != nil {
		a.guard.Stop()
		a.guard = nil
	}
	a.wizard = nil
	a.transfers = nil
	a.overlay.Hide()
	a.login = NewLoginModel(a.client, a.theme, a.totpSecret())
	a.login.SetWidth(a.width)
	if notice != "" {
		a.login.SetNotice(notice)
	}
	a.screen = ScreenLogin
}

// Init starts the active screen and, when already signed in, the session
// tick loop.
func (a *App) Init() tea.Cmd {
	if a.screen == ScreenTransfers {
		return tea.Batch(a.transfers.Init(), session.TickCmd())
	}
	return a.login.Init()
}

// =============================================================================
// UPDATE
// =============================================================================

// Update is the top-level message router.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = msg.Width, msg.Height
		a.overlay.SetSize(msg.Width, msg.Height)
		a.login.SetWidth(msg.Width)
		a.help.SetWidth(msg.Width)
		if a.transfers != nil {
			a.transfers.SetWidth(msg.Width)
		}
		if a.wizard != nil {
			a.wizard.SetWidth(msg.Width)
		}
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)

	case session.TickMsg:
		if a.guard == nil {
			return a, nil
		}
		if a.overlay.Visible() {
			a.overlay.UpdateTime(a.guard.Remaining())
		}
		return a, a.guard.HandleTick()

	case session.WarningMsg:
		a.overlay.Show(msg.Remaining)
		return a, nil

	case session.ExpiredMsg:
		// The guard already cleared the stored credentials.
		a.endSession("Your session expired after a period of inactivity. Please sign in again.")
		return a, nil

	case AuthMissingMsg:
		a.endSession("Please sign in to continue.")
		return a, nil

	case LoggedInMsg:
		return a, a.completeLogin(msg)

	case WizardDoneMsg:
		a.wizard = nil
		a.screen = ScreenTransfers
		if a.transfers == nil {
			return a, nil
		}
		if msg.Submitted {
			a.transfers.SetNotice("Transfer submitted")
			return a, a.transfers.Init()
		}
		return a, nil

	case logoutSessionsDoneMsg:
		if a.transfers != nil {
			if msg.err != nil {
				a.transfers.SetNotice("Could not sign out other devices")
			} else {
				a.transfers.SetNotice("Signed out of other devices")
			}
		}
		return a, nil
	}

	return a.routeToScreen(msg)
}

// completeLogin persists the credentials and enters the main screen.
func (a *App) completeLogin(msg LoggedInMsg) tea.Cmd {
	if err := a.store.SaveToken(msg.Token); err != nil {
		log.Printf("CRED_SAVE_FAILED | %v", err)
	}
	if err := a.store.SaveRole(msg.Role); err != nil {
		log.Printf("CRED_SAVE_FAILED | %v", err)
	}
	a.startSession(msg.Role)
	return tea.Batch(a.transfers.Init(), session.TickCmd())
}

// handleKey applies the global bindings, then routes to the screen. Any
// key while signed in counts as activity and resets the idle clock.
func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		if a.guard != nil {
			a.guard.Stop()
		}
		return a, tea.Quit
	}

	if a.guard != nil {
		a.guard.Touch()
		if a.overlay.Visible() {
			// The keystroke's whole job was extending the session.
			a.overlay.Hide()
			return a, nil
		}
	}

	switch a.screen {
	case ScreenTransfers:
		switch msg.String() {
		case "n":
			a.wizard = NewWizardModel(a.client, a.theme, a.cfg.Transfer.ExchangeRate, a.cfg.Transfer.RedirectDelay())
			a.wizard.SetWidth(a.width)
			a.screen = ScreenWizard
			return a, a.wizard.Init()
		case "?":
			a.prevScreen = a.screen
			a.screen = ScreenHelp
			return a, nil
		case "ctrl+o":
			client := a.client
			return a, func() tea.Msg {
				return logoutSessionsDoneMsg{err: client.LogoutOtherSessions(context.Background())}
			}
		case "ctrl+l":
			if err := a.store.Clear(); err != nil {
				log.Printf("CRED_CLEAR_FAILED | %v", err)
			}
			a.endSession("Signed out.")
			return a, nil
		}

	case ScreenHelp:
		if msg.String() == "esc" || msg.String() == "?" {
			a.screen = a.prevScreen
			return a, nil
		}
		return a, nil
	}

	return a.routeToScreen(msg)
}

// routeToScreen forwards a message to the active screen's model.
func (a *App) routeToScreen(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch a.screen {
	case ScreenLogin:
		a.login, cmd = a.login.Update(msg)
	case ScreenTransfers:
		if a.transfers != nil {
			a.transfers, cmd = a.transfers.Update(msg)
		}
	case ScreenWizard:
		if a.wizard != nil {
			a.wizard, cmd = a.wizard.Update(msg)
		}
	case ScreenHelp:
		a.help, cmd = a.help.Update(msg)
	}
	return a, cmd
}

// =============================================================================
// VIEW
// =============================================================================

// View renders the active screen, with the timeout overlay on top when
// armed.
func (a *App) View() string {
	if a.overlay.Visible() {
		return a.overlay.View()
	}

	switch a.screen {
	case ScreenLogin:
		return a.login.View()
	case ScreenTransfers:
		if a.transfers != nil {
			return a.transfers.View()
		}
		return ""
	case ScreenWizard:
		if a.wizard != nil {
			return a.wizard.View()
		}
		return ""
	case ScreenHelp:
		return a.help.View()
	}
	return ""
}
