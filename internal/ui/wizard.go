// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/birrwire-tui/internal/api"
	"github.com/jeranaias/birrwire-tui/internal/directory"
	"github.com/jeranaias/birrwire-tui/internal/transfer"
	"github.com/jeranaias/birrwire-tui/internal/ui/styles"
	"github.com/jeranaias/birrwire-tui/internal/util"
)

// =============================================================================
// TRANSFER WIZARD
// =============================================================================

// wizardField identifies the focused control on the party/bank step.
type wizardField int

const (
	fieldSender wizardField = iota
	fieldReceiver
	fieldBank
	fieldAccount
	fieldSubmit
)

// maxSuggestions caps the dropdown under a party field.
const maxSuggestions = 5

// WizardDoneMsg tells the app the wizard finished and the transfer list
// should be shown again. Sent after the post-success redirect delay, or
// immediately when the operator cancels.
type WizardDoneMsg struct {
	Submitted bool
}

// Messages carrying async results back into the wizard. Each is tagged
// with the wizard instance id; results for a dead instance are dropped on
// arrival so they can never touch a newer draft.
type partiesLoadedMsg struct {
	wizardID string
	cache    *directory.Cache
	err      error
}

type banksLoadedMsg struct {
	wizardID string
	banks    []api.Bank
	err      error
}

type submitDoneMsg struct {
	wizardID string
	err      error
}

type redirectMsg struct {
	wizardID string
}

// WizardModel drives one transfer from amount entry to submission. A new
// instance is created for every transfer; nothing is shared between runs.
type WizardModel struct {
	client *api.Client
	theme  *styles.Theme
	draft  *transfer.Draft

	redirectDelay time.Duration

	// Amount step.
	amountInput textinput.Model

	// Party/bank step inputs.
	senderInput   textinput.Model
	receiverInput textinput.Model
	accountInput  textinput.Model
	focus         wizardField

	// Suggestion dropdown for the focused party field.
	suggestions []directory.Party
	suggestIdx  int

	// Bank picker.
	banks   []api.Bank
	bankIdx int

	// Reference data. Both fetches start when the step mounts and land
	// independently; submission stays disabled until both are in.
	cache         *directory.Cache
	partiesLoaded bool
	banksLoaded   bool
	loadErr       string

	spin      spinner.Model
	fieldErrs map[string]string

	width int
}

// NewWizardModel starts a fresh wizard pinned to the given exchange rate.
func NewWizardModel(client *api.Client, theme *styles.Theme, exchangeRate float64, redirectDelay time.Duration) *WizardModel {
	amount := textinput.New()
	amount.Placeholder = "0.00"
	amount.Prompt = "$ "
	amount.CharLimit = 12
	amount.Width = 20
	amount.Focus()

	sender := textinput.New()
	sender.Placeholder = "Start typing a name..."
	sender.Prompt = ""
	sender.CharLimit = 100
	sender.Width = 36

	receiver := textinput.New()
	receiver.Placeholder = "Start typing a name..."
	receiver.Prompt = ""
	receiver.CharLimit = 100
	receiver.Width = 36

	account := textinput.New()
	account.Placeholder = "Account number"
	account.Prompt = ""
	account.CharLimit = 34
	account.Width = 36

	sp := spinner.New()
	sp.Spinner = spinner.Spinner{
		Frames: []string{"|", "/", "-", "\\"},
		FPS:    time.Second / 10,
	}

	return &WizardModel{
		client:        client,
		theme:         theme,
		draft:         transfer.NewDraft(exchangeRate),
		redirectDelay: redirectDelay,
		amountInput:   amount,
		senderInput:   sender,
		receiverInput: receiver,
		accountInput:  account,
		spin:          sp,
		fieldErrs:     make(map[string]string),
	}
}

// ID exposes the wizard instance id for message tagging.
func (m *WizardModel) ID() string { return m.draft.ID() }

// SetWidth propagates the terminal width.
func (m *WizardModel) SetWidth(w int) { m.width = w }

// Init starts the cursor blink.
func (m *WizardModel) Init() tea.Cmd {
	return textinput.Blink
}

// =============================================================================
// COMMANDS
// =============================================================================

// loadPartiesCmd fetches the customer directory for this instance.
func (m *WizardModel) loadPartiesCmd() tea.Cmd {
	client, id := m.client, m.draft.ID()
	return func() tea.Msg {
		cache, err := directory.Load(context.Background(), client)
		return partiesLoadedMsg{wizardID: id, cache: cache, err: err}
	}
}

// loadBanksCmd fetches the payout bank list for this instance.
func (m *WizardModel) loadBanksCmd() tea.Cmd {
	client, id := m.client, m.draft.ID()
	return func() tea.Msg {
		banks, err := client.FetchBanks(context.Background())
		return banksLoadedMsg{wizardID: id, banks: banks, err: err}
	}
}

// submitCmd sends the built request to the backend.
func (m *WizardModel) submitCmd(req *api.TransferRequest) tea.Cmd {
	client, id := m.client, m.draft.ID()
	return func() tea.Msg {
		err := client.CreateTransfer(context.Background(), req)
		return submitDoneMsg{wizardID: id, err: err}
	}
}

// redirectCmd schedules the return to the transfer list after success.
func (m *WizardModel) redirectCmd() tea.Cmd {
	id := m.draft.ID()
	return tea.Tick(m.redirectDelay, func(time.Time) tea.Msg {
		return redirectMsg{wizardID: id}
	})
}

// =============================================================================
// UPDATE
// =============================================================================

// Update handles one message. Async results tagged with a different
// wizard id are discarded without side effects.
func (m *WizardModel) Update(msg tea.Msg) (*WizardModel, tea.Cmd) {
	switch msg := msg.(type) {
	case partiesLoadedMsg:
		if msg.wizardID != m.draft.ID() {
			return m, nil
		}
		if msg.err != nil {
			m.loadErr = "Could not load the customer directory"
			return m, nil
		}
		m.cache = msg.cache
		m.partiesLoaded = true
		return m, nil

	case banksLoadedMsg:
		if msg.wizardID != m.draft.ID() {
			return m, nil
		}
		if msg.err != nil {
			m.loadErr = "Could not load the bank list"
			return m, nil
		}
		m.banks = msg.banks
		m.banksLoaded = true
		return m, nil

	case submitDoneMsg:
		if msg.wizardID != m.draft.ID() {
			return m, nil
		}
		if msg.err != nil {
			m.draft.FailSubmit(msg.err)
			return m, nil
		}
		m.draft.CompleteSubmit()
		return m, m.redirectCmd()

	case redirectMsg:
		if msg.wizardID != m.draft.ID() {
			return m, nil
		}
		return m, func() tea.Msg { return WizardDoneMsg{Submitted: true} }

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m *WizardModel) handleKey(msg tea.KeyMsg) (*WizardModel, tea.Cmd) {
	if msg.String() == "esc" && m.draft.Step() != transfer.StepSubmitting {
		return m, func() tea.Msg { return WizardDoneMsg{Submitted: false} }
	}

	switch m.draft.Step() {
	case transfer.StepAmountEntry:
		return m.handleAmountKey(msg)
	case transfer.StepPartyAndBank, transfer.StepFailed:
		return m.handleDetailKey(msg)
	case transfer.StepSubmitting, transfer.StepSucceeded:
		// Submission in flight or done: keys are ignored until the
		// redirect fires. Re-entry is impossible by construction.
		return m, nil
	}
	return m, nil
}

// --- amount step ---

func (m *WizardModel) handleAmountKey(msg tea.KeyMsg) (*WizardModel, tea.Cmd) {
	if msg.String() == "enter" {
		m.draft.SetAmountInput(m.amountInput.Value())
		if err := m.draft.BeginPartyAndBank(); err != nil {
			m.fieldErrs["amount"] = validationMessage(err)
			return m, nil
		}
		delete(m.fieldErrs, "amount")
		m.focus = fieldSender
		m.senderInput.Focus()
		// Both reference fetches start here and resolve in either order.
		return m, tea.Batch(m.loadPartiesCmd(), m.loadBanksCmd(), m.spin.Tick, textinput.Blink)
	}

	var cmd tea.Cmd
	m.amountInput, cmd = m.amountInput.Update(msg)
	m.draft.SetAmountInput(m.amountInput.Value())
	return m, cmd
}

// --- party/bank step ---

func (m *WizardModel) handleDetailKey(msg tea.KeyMsg) (*WizardModel, tea.Cmd) {
	key := msg.String()

	switch key {
	case "tab":
		m.moveFocus(1)
		return m, textinput.Blink
	case "shift+tab":
		m.moveFocus(-1)
		return m, textinput.Blink
	}

	switch m.focus {
	case fieldSender, fieldReceiver:
		return m.handlePartyKey(msg)
	case fieldBank:
		return m.handleBankKey(key)
	case fieldAccount:
		if key == "enter" {
			m.moveFocus(1)
			return m, nil
		}
		var cmd tea.Cmd
		m.accountInput, cmd = m.accountInput.Update(msg)
		m.draft.SetAccountNumber(m.accountInput.Value())
		return m, cmd
	case fieldSubmit:
		if key == "enter" {
			return m.beginSubmit()
		}
	}
	return m, nil
}

// handlePartyKey routes keys for the sender/receiver name fields, which
// own the suggestion dropdown while focused.
func (m *WizardModel) handlePartyKey(msg tea.KeyMsg) (*WizardModel, tea.Cmd) {
	input, setParty, clearParty := m.partyBindings()

	switch msg.String() {
	case "up":
		if m.suggestIdx > 0 {
			m.suggestIdx--
		}
		return m, nil
	case "down":
		if m.suggestIdx < len(m.suggestions)-1 {
			m.suggestIdx++
		}
		return m, nil
	case "enter":
		if len(m.suggestions) > 0 {
			pick := m.suggestions[m.suggestIdx]
			input.SetValue(pick.DisplayName)
			setParty(pick)
			m.suggestions = nil
			m.suggestIdx = 0
			m.moveFocus(1)
			return m, nil
		}
		// No suggestion picked: try an exact resolve of the typed text.
		if m.cache != nil {
			if p, ok := m.cache.Resolve(input.Value()); ok {
				setParty(p)
				m.moveFocus(1)
				return m, nil
			}
		}
		return m, nil
	}

	var cmd tea.Cmd
	*input, cmd = input.Update(msg)

	// Editing invalidates any earlier pick. The id is only ever set from
	// an explicit resolution, never from raw text.
	clearParty()
	m.refreshSuggestions(input.Value())
	return m, cmd
}

// partyBindings returns the input and draft hooks for the focused party
// field.
func (m *WizardModel) partyBindings() (*textinput.Model, func(directory.Party), func()) {
	if m.focus == fieldSender {
		return &m.senderInput,
			func(p directory.Party) { m.draft.SetSender(p); delete(m.fieldErrs, "sender") },
			m.draft.ClearSender
	}
	return &m.receiverInput,
		func(p directory.Party) { m.draft.SetReceiver(p); delete(m.fieldErrs, "receiver") },
		m.draft.ClearReceiver
}

func (m *WizardModel) refreshSuggestions(input string) {
	if m.cache == nil {
		m.suggestions = nil
		m.suggestIdx = 0
		return
	}
	s := m.cache.Suggest(input)
	if len(s) > maxSuggestions {
		s = s[:maxSuggestions]
	}
	m.suggestions = s
	if m.suggestIdx >= len(s) {
		m.suggestIdx = 0
	}
}

func (m *WizardModel) handleBankKey(key string) (*WizardModel, tea.Cmd) {
	switch key {
	case "up":
		if m.bankIdx > 0 {
			m.bankIdx--
		}
	case "down":
		if m.bankIdx < len(m.banks)-1 {
			m.bankIdx++
		}
	case "enter":
		if len(m.banks) > 0 {
			m.draft.SetBank(m.banks[m.bankIdx])
			delete(m.fieldErrs, "bank")
			m.moveFocus(1)
		}
	}
	return m, nil
}

func (m *WizardModel) moveFocus(delta int) {
	m.senderInput.Blur()
	m.receiverInput.Blur()
	m.accountInput.Blur()
	m.suggestions = nil
	m.suggestIdx = 0

	next := int(m.focus) + delta
	if next < int(fieldSender) {
		next = int(fieldSubmit)
	}
	if next > int(fieldSubmit) {
		next = int(fieldSender)
	}
	m.focus = wizardField(next)

	switch m.focus {
	case fieldSender:
		m.senderInput.Focus()
		m.refreshSuggestions(m.senderInput.Value())
	case fieldReceiver:
		m.receiverInput.Focus()
		m.refreshSuggestions(m.receiverInput.Value())
	case fieldAccount:
		m.accountInput.Focus()
	}
}

// beginSubmit runs validation and fires the create call. Both reference
// fetches must have landed first.
func (m *WizardModel) beginSubmit() (*WizardModel, tea.Cmd) {
	if !m.partiesLoaded || !m.banksLoaded {
		return m, nil
	}
	req, err := m.draft.BeginSubmit()
	if err != nil {
		if verr, ok := err.(*transfer.ValidationError); ok {
			m.fieldErrs[verr.Field] = verr.Message
		}
		return m, nil
	}
	m.fieldErrs = make(map[string]string)
	return m, tea.Batch(m.submitCmd(req), m.spin.Tick)
}

// validationMessage unwraps a field validation error for display.
func validationMessage(err error) string {
	if verr, ok := err.(*transfer.ValidationError); ok {
		return verr.Message
	}
	return err.Error()
}

// =============================================================================
// VIEW
// =============================================================================

// View renders the wizard for its current step.
func (m *WizardModel) View() string {
	switch m.draft.Step() {
	case transfer.StepAmountEntry:
		return m.viewAmount()
	case transfer.StepSubmitting:
		return lipgloss.JoinVertical(lipgloss.Left,
			m.theme.HeaderBrand.Render("New Transfer"),
			"",
			m.spin.View()+" Submitting transfer...",
		)
	case transfer.StepSucceeded:
		return lipgloss.JoinVertical(lipgloss.Left,
			m.theme.HeaderBrand.Render("New Transfer"),
			"",
			styles.RenderSuccess("Transfer submitted"),
			m.theme.Hint.Render("Reference "+m.draft.ID()),
			"",
			m.theme.Hint.Render("Returning to the transfer list..."),
		)
	default:
		return m.viewDetails()
	}
}

func (m *WizardModel) viewAmount() string {
	parts := []string{
		m.theme.HeaderBrand.Render("New Transfer") + m.theme.Hint.Render("  step 1 of 2"),
		"",
		m.theme.Label.Render("Amount (USD)"),
		m.theme.FieldFocused.Render(m.amountInput.View()),
	}

	if m.draft.AmountUSD() > 0 {
		parts = append(parts,
			m.theme.Derived.Render("= "+m.draft.FormattedAmountETB()+" ETB")+
				m.theme.Hint.Render("  @ "+util.FormatAmount(m.draft.ExchangeRate())))
	}
	if errMsg, ok := m.fieldErrs["amount"]; ok {
		parts = append(parts, m.theme.FieldError.Render(errMsg))
	}
	parts = append(parts, "", m.theme.Hint.Render("enter: continue  •  esc: cancel"))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m *WizardModel) viewDetails() string {
	parts := []string{
		m.theme.HeaderBrand.Render("New Transfer") + m.theme.Hint.Render("  step 2 of 2"),
		m.theme.Hint.Render(m.draft.AmountInput() + " USD = " + m.draft.FormattedAmountETB() + " ETB"),
		"",
	}

	if m.loadErr != "" {
		parts = append(parts, styles.RenderError(m.loadErr), "")
	}

	parts = append(parts, m.viewPartyField("Sender", fieldSender, &m.senderInput, "sender")...)
	parts = append(parts, m.viewPartyField("Receiver", fieldReceiver, &m.receiverInput, "receiver")...)
	parts = append(parts, m.viewBankField()...)

	parts = append(parts, m.theme.Label.Render("Account number"))
	accountStyle := m.theme.FieldBlurred
	if m.focus == fieldAccount {
		accountStyle = m.theme.FieldFocused
	}
	parts = append(parts, accountStyle.Render(m.accountInput.View()))
	if errMsg, ok := m.fieldErrs["account_number"]; ok {
		parts = append(parts, m.theme.FieldError.Render(errMsg))
	}
	parts = append(parts, "")

	if m.draft.Step() == transfer.StepFailed {
		parts = append(parts, styles.RenderError(m.draft.FailureMessage()), "")
	}

	parts = append(parts, m.viewSubmitRow())
	parts = append(parts, "", m.theme.Hint.Render("tab: next field  •  esc: cancel"))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m *WizardModel) viewPartyField(label string, field wizardField, input *textinput.Model, errKey string) []string {
	parts := []string{m.theme.Label.Render(label)}

	if !m.partiesLoaded && m.loadErr == "" {
		parts = append(parts, m.theme.Hint.Render(m.spin.View()+" Loading customer directory..."))
		return append(parts, "")
	}

	style := m.theme.FieldBlurred
	if m.focus == field {
		style = m.theme.FieldFocused
	}
	parts = append(parts, style.Render(input.View()))

	if m.focus == field {
		for i, p := range m.suggestions {
			item := m.theme.ListItem
			if i == m.suggestIdx {
				item = m.theme.ListSelected
			}
			parts = append(parts, item.Render(p.DisplayName))
		}
	}
	if errMsg, ok := m.fieldErrs[errKey]; ok {
		parts = append(parts, m.theme.FieldError.Render(errMsg))
	}
	return append(parts, "")
}

func (m *WizardModel) viewBankField() []string {
	parts := []string{m.theme.Label.Render("Bank")}

	if !m.banksLoaded && m.loadErr == "" {
		parts = append(parts, m.theme.Hint.Render(m.spin.View()+" Loading banks..."))
		return append(parts, "")
	}

	if m.focus == fieldBank {
		for i, b := range m.banks {
			item := m.theme.ListItem
			if i == m.bankIdx {
				item = m.theme.ListSelected
			}
			parts = append(parts, item.Render(b.Name))
		}
	} else if m.draft.BankName() != "" {
		parts = append(parts, m.theme.ListItem.Render(m.draft.BankName()))
	} else {
		parts = append(parts, m.theme.Hint.Render("(choose with tab, then arrows)"))
	}
	if errMsg, ok := m.fieldErrs["bank"]; ok {
		parts = append(parts, m.theme.FieldError.Render(errMsg))
	}
	return append(parts, "")
}

func (m *WizardModel) viewSubmitRow() string {
	if !m.partiesLoaded || !m.banksLoaded {
		return m.theme.Hint.Render(m.spin.View() + " Waiting for reference data...")
	}
	label := "[ Submit transfer ]"
	if m.focus == fieldSubmit {
		return m.theme.ListSelected.Render(label)
	}
	return m.theme.ListItem.Render(label)
}
