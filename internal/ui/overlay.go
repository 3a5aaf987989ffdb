// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/birrwire-tui/internal/ui/styles"
)

// =============================================================================
// IDLE TIMEOUT OVERLAY
// =============================================================================

// TimeoutOverlay displays a countdown when the session is about to expire.
// Any key press while it is visible counts as activity and dismisses it.
type TimeoutOverlay struct {
	visible   bool
	remaining time.Duration

	width  int
	height int
}

// SetSize sets the overlay dimensions.
func (o *TimeoutOverlay) SetSize(width, height int) {
	o.width = width
	o.height = height
}

// Show displays the overlay with the given time remaining.
func (o *TimeoutOverlay) Show(remaining time.Duration) {
	o.visible = true
	o.remaining = remaining
}

// Hide hides the overlay.
func (o *TimeoutOverlay) Hide() {
	o.visible = false
}

// UpdateTime updates the countdown.
func (o *TimeoutOverlay) UpdateTime(remaining time.Duration) {
	o.remaining = remaining
}

// Visible reports whether the overlay is currently shown.
func (o *TimeoutOverlay) Visible() bool {
	return o.visible
}

// View renders the warning box centered on the screen.
func (o *TimeoutOverlay) View() string {
	if !o.visible {
		return ""
	}

	width := o.width
	if width == 0 {
		width = 60
	}
	height := o.height
	if height == 0 {
		height = 24
	}

	maxWidth := width - 8
	if maxWidth < 40 {
		maxWidth = 40
	}
	if maxWidth > 60 {
		maxWidth = 60
	}

	timeStyle := lipgloss.NewStyle().
		Foreground(styles.Amber).
		Bold(true)
	msgStyle := lipgloss.NewStyle().
		Foreground(styles.TextPrimary).
		Width(maxWidth - 4).
		Align(lipgloss.Center)
	hintStyle := lipgloss.NewStyle().
		Foreground(styles.TextSecondary).
		Italic(true).
		Align(lipgloss.Center)

	parts := []string{
		styles.RenderWarning("Session Timeout Warning"),
		"",
		msgStyle.Render("You will be signed out in " + timeStyle.Render(formatCountdown(o.remaining))),
		"",
		hintStyle.Render("Press any key to stay signed in"),
	}
	content := lipgloss.JoinVertical(lipgloss.Center, parts...)

	box := lipgloss.NewStyle().
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(styles.Amber).
		Padding(1, 3).
		Width(maxWidth).
		Align(lipgloss.Center).
		Render(content)

	return lipgloss.Place(
		width, height,
		lipgloss.Center, lipgloss.Center,
		box,
		lipgloss.WithWhitespaceBackground(styles.SurfaceDim),
	)
}

// formatCountdown formats a duration as M:SS for display.
func formatCountdown(d time.Duration) string {
	if d < 0 {
		return "0:00"
	}
	totalSecs := int(d.Seconds())
	return fmt.Sprintf("%d:%02d", totalSecs/60, totalSecs%60)
}
