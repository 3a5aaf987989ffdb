// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/birrwire-tui/internal/ui/styles"
)

// =============================================================================
// HELP SCREEN
// =============================================================================

const helpMarkdown = `# birrwire console

Back-office console for USD to ETB transfers.

## Transfers

- **n** starts a new transfer. Enter the USD amount first; the ETB
  equivalent updates as you type using the configured rate.
- On the second step, type a few letters of the sender or receiver name
  and pick the customer from the suggestions. Only a picked entry can be
  submitted.
- Choose the payout bank with the arrow keys and enter the account
  number, then submit.
- A rejected submission keeps everything you entered. Fix the flagged
  field and submit again.

## Session

Your session signs out automatically after a period of inactivity. A
countdown appears shortly before; press any key to stay signed in.

## Keys

| Key | Action |
| --- | ------ |
| n | New transfer |
| r | Refresh the transfer list |
| ctrl+o | Sign out of other devices |
| ctrl+l | Sign out |
| ? | This screen |
| esc | Back / cancel |
`

// HelpModel renders the built-in user guide.
type HelpModel struct {
	theme    *styles.Theme
	rendered string
	width    int
}

// NewHelpModel builds the help screen.
func NewHelpModel(theme *styles.Theme) *HelpModel {
	return &HelpModel{theme: theme}
}

// SetWidth re-renders the guide at the new wrap width.
func (m *HelpModel) SetWidth(w int) {
	if w == m.width && m.rendered != "" {
		return
	}
	m.width = w
	m.rendered = renderMarkdown(helpMarkdown, w)
}

// Update is a no-op; key handling lives in the app router.
func (m *HelpModel) Update(tea.Msg) (*HelpModel, tea.Cmd) {
	return m, nil
}

// View returns the rendered guide.
func (m *HelpModel) View() string {
	if m.rendered == "" {
		m.rendered = renderMarkdown(helpMarkdown, 80)
	}
	return m.rendered + "\n" + m.theme.Hint.Render("esc: back")
}

// renderMarkdown runs glamour with the terminal's detected style. On any
// renderer failure the raw markdown is still readable, so show that.
func renderMarkdown(md string, width int) string {
	wrap := width - 2
	if wrap < 40 {
		wrap = 40
	}
	if wrap > 100 {
		wrap = 100
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(wrap),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}
