// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/birrwire-tui/internal/api"
	"github.com/jeranaias/birrwire-tui/internal/ui/styles"
	"github.com/jeranaias/birrwire-tui/internal/util"
)

// =============================================================================
// TRANSFER LIST
// =============================================================================

// Column widths for the read-only transfer table.
const (
	colRef      = 12
	colParty    = 18
	colAmount   = 12
	colStatus   = 10
	colDate     = 16
	maxListRows = 20
)

// transfersLoadedMsg carries the fetched transfer list.
type transfersLoadedMsg struct {
	records []api.TransferRecord
	err     error
}

// TransfersModel is the read-only recent transfers screen, the landing
// view after sign-in.
type TransfersModel struct {
	client *api.Client
	theme  *styles.Theme

	records []api.TransferRecord
	loading bool
	errMsg  string
	notice  string

	spin  spinner.Model
	width int
}

// NewTransfersModel builds the transfer list screen.
func NewTransfersModel(client *api.Client, theme *styles.Theme) *TransfersModel {
	sp := spinner.New()
	sp.Spinner = spinner.Spinner{
		Frames: []string{"|", "/", "-", "\\"},
		FPS:    time.Second / 10,
	}
	return &TransfersModel{
		client:  client,
		theme:   theme,
		loading: true,
		spin:    sp,
	}
}

// SetWidth propagates the terminal width.
func (m *TransfersModel) SetWidth(w int) { m.width = w }

// SetNotice shows a one-time status line above the table.
func (m *TransfersModel) SetNotice(notice string) { m.notice = notice }

// Init kicks off the first fetch.
func (m *TransfersModel) Init() tea.Cmd {
	return tea.Batch(m.Refresh(), m.spin.Tick)
}

// Refresh reloads the transfer list.
func (m *TransfersModel) Refresh() tea.Cmd {
	m.loading = true
	m.errMsg = ""
	client := m.client
	return func() tea.Msg {
		records, err := client.FetchTransfers(context.Background())
		return transfersLoadedMsg{records: records, err: err}
	}
}

// Update handles list messages.
func (m *TransfersModel) Update(msg tea.Msg) (*TransfersModel, tea.Cmd) {
	switch msg := msg.(type) {
	case transfersLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.errMsg = "Could not load transfers"
			return m, nil
		}
		m.records = msg.records
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if msg.String() == "r" && !m.loading {
			return m, tea.Batch(m.Refresh(), m.spin.Tick)
		}
	}
	return m, nil
}

// View renders the table.
func (m *TransfersModel) View() string {
	parts := []string{
		m.theme.HeaderBrand.Render("Recent Transfers"),
		"",
	}

	if m.notice != "" {
		parts = append(parts, styles.RenderSuccess(m.notice), "")
	}

	switch {
	case m.loading:
		parts = append(parts, m.theme.Hint.Render(m.spin.View()+" Loading transfers..."))
	case m.errMsg != "":
		parts = append(parts, styles.RenderError(m.errMsg),
			m.theme.Hint.Render("Press r to retry"))
	case len(m.records) == 0:
		parts = append(parts, m.theme.Hint.Render("No transfers yet. Press n to create one."))
	default:
		parts = append(parts, m.viewTable()...)
	}

	parts = append(parts, "",
		m.theme.Hint.Render("n: new transfer  •  r: refresh  •  ?: help  •  ctrl+l: sign out"))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m *TransfersModel) viewTable() []string {
	header := util.PadCell("REF", colRef) +
		util.PadCell("SENDER", colParty) +
		util.PadCell("RECEIVER", colParty) +
		util.PadCell("USD", colAmount) +
		util.PadCell("ETB", colAmount) +
		util.PadCell("STATUS", colStatus) +
		util.PadCell("DATE", colDate)

	rows := []string{m.theme.TableHeader.Render(header)}
	for i, rec := range m.records {
		if i >= maxListRows {
			break
		}
		line := util.PadCell(util.TruncateWidth(rec.ReferenceID, colRef-1), colRef) +
			util.PadCell(util.TruncateWidth(rec.SenderName, colParty-1), colParty) +
			util.PadCell(util.TruncateWidth(rec.ReceiverName, colParty-1), colParty) +
			util.PadCell(util.FormatAmount(rec.AmountUSD), colAmount) +
			util.PadCell(util.FormatAmount(rec.AmountETB), colAmount) +
			util.PadCell(rec.Status, colStatus) +
			util.PadCell(rec.CreatedAt.Format("2006-01-02 15:04"), colDate)
		rows = append(rows, m.theme.TableRow.Render(line))
	}
	return rows
}
