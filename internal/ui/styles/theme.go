// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds the styled components for the application. It is built once
// at startup against the detected terminal capability and shared by every
// screen.
type Theme struct {
	IsDark       bool
	HasTrueColor bool
	ColorProfile termenv.Profile

	// Screen chrome
	Header      lipgloss.Style
	HeaderBrand lipgloss.Style
	StatusBar   lipgloss.Style
	Hint        lipgloss.Style

	// Forms
	Label        lipgloss.Style
	FieldFocused lipgloss.Style
	FieldBlurred lipgloss.Style
	FieldError   lipgloss.Style
	Derived      lipgloss.Style

	// Lists and tables
	ListItem     lipgloss.Style
	ListSelected lipgloss.Style
	TableHeader  lipgloss.Style
	TableRow     lipgloss.Style

	// Notices
	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
}

// NewTheme probes the terminal and builds the shared style set. The "auto"
// mode follows the detected background; "dark" and "light" force it.
func NewTheme(mode string) *Theme {
	profile := termenv.ColorProfile()
	isDark := termenv.HasDarkBackground()
	switch mode {
	case "dark":
		isDark = true
	case "light":
		isDark = false
	}
	lipgloss.SetHasDarkBackground(isDark)

	fieldBase := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Padding(0, 1)

	return &Theme{
		IsDark:       isDark,
		HasTrueColor: profile == termenv.TrueColor,
		ColorProfile: profile,

		Header: lipgloss.NewStyle().
			Background(SurfaceDim).
			Foreground(TextPrimary).
			Padding(0, 1),
		HeaderBrand: lipgloss.NewStyle().
			Foreground(Emerald).
			Bold(true),
		StatusBar: lipgloss.NewStyle().
			Background(SurfaceDim).
			Foreground(TextSecondary).
			Padding(0, 1),
		Hint: lipgloss.NewStyle().
			Foreground(TextMuted),

		Label: lipgloss.NewStyle().
			Foreground(TextSecondary).
			Bold(true),
		FieldFocused: fieldBase.
			BorderForeground(FocusRing),
		FieldBlurred: fieldBase.
			BorderForeground(Overlay),
		FieldError: lipgloss.NewStyle().
			Foreground(Rose),
		Derived: lipgloss.NewStyle().
			Foreground(Cyan).
			Bold(true),

		ListItem: lipgloss.NewStyle().
			Foreground(TextPrimary).
			Padding(0, 1),
		ListSelected: lipgloss.NewStyle().
			Foreground(TextPrimary).
			Background(SelectionBg).
			Bold(true).
			Padding(0, 1),
		TableHeader: lipgloss.NewStyle().
			Foreground(TextSecondary).
			Bold(true).
			Underline(true),
		TableRow: lipgloss.NewStyle().
			Foreground(TextPrimary),

		Success: lipgloss.NewStyle().Foreground(Emerald).Bold(true),
		Error:   lipgloss.NewStyle().Foreground(Rose).Bold(true),
		Warning: lipgloss.NewStyle().Foreground(Amber).Bold(true),
	}
}
