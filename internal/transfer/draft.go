// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package transfer holds the two-step transfer submission workflow.
//
// A Draft is created empty when the wizard opens, filled across the amount
// and party/bank steps, and submitted exactly once. Validation runs before
// any network call: an invalid draft never reaches the wire, and a failed
// submission keeps every entered value so the operator can correct and
// resubmit. The state machine is single-threaded: it lives inside one UI
// event loop and is never shared between wizard instances.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/jeranaias/birrwire-tui/internal/api"
	"github.com/jeranaias/birrwire-tui/internal/directory"
	"github.com/jeranaias/birrwire-tui/internal/util"
)

// =============================================================================
// STEPS
// =============================================================================

// Step is the wizard's position in the workflow.
type Step int

const (
	// StepAmountEntry is the first form page: USD amount.
	StepAmountEntry Step = iota
	// StepPartyAndBank is the second form page: parties, bank, account.
	StepPartyAndBank
	// StepSubmitting means the create call is in flight.
	StepSubmitting
	// StepSucceeded is terminal; the draft is spent.
	StepSucceeded
	// StepFailed means the last submission was rejected; the draft is
	// intact and may be corrected and resubmitted.
	StepFailed
)

// String returns a readable step name.
func (s Step) String() string {
	switch s {
	case StepAmountEntry:
		return "AMOUNT_ENTRY"
	case StepPartyAndBank:
		return "PARTY_AND_BANK"
	case StepSubmitting:
		return "SUBMITTING"
	case StepSucceeded:
		return "SUCCEEDED"
	case StepFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// =============================================================================
// ERRORS
// =============================================================================

// ValidationError is a local precondition failure. It blocks the step
// transition, is surfaced next to the offending field, and never causes a
// network call.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Sentinel errors for illegal transitions.
var (
	// ErrSubmissionInFlight rejects re-entrant submission attempts.
	ErrSubmissionInFlight = errors.New("submission already in flight")
	// ErrDraftSpent rejects any use of a draft that already succeeded.
	ErrDraftSpent = errors.New("draft already submitted successfully")
	// ErrWrongStep rejects operations out of order.
	ErrWrongStep = errors.New("operation not valid in current step")
)

// genericFailureMessage is shown when the backend sent no usable message.
const genericFailureMessage = "Transfer could not be submitted. Please try again."

// =============================================================================
// DRAFT
// =============================================================================

// Draft is one in-progress transfer.
type Draft struct {
	id   string
	step Step

	// Amount step. The raw input survives for redisplay; the parsed value
	// is the source of truth. ETB math stays unrounded until projection.
	amountInput  string
	amountUSD    float64
	exchangeRate float64

	// Party/bank step. Parties only ever arrive via directory resolution,
	// never from raw text.
	sender      directory.Party
	senderSet   bool
	receiver    directory.Party
	receiverSet bool

	bankID        int64
	bankName      string
	bankSet       bool
	accountNumber string

	failureMessage string
}

// NewDraft creates an empty draft using the configured USD→ETB rate. The
// rate is pinned at creation; a config reload affects the next wizard, not
// an open one.
func NewDraft(exchangeRate float64) *Draft {
	return &Draft{
		id:           uuid.NewString(),
		step:         StepAmountEntry,
		exchangeRate: exchangeRate,
	}
}

// ID identifies this wizard instance. Async results are tagged with it so
// responses arriving after the instance is gone are discarded, never
// applied to a newer draft.
func (d *Draft) ID() string { return d.id }

// Step returns the current workflow step.
func (d *Draft) Step() Step { return d.step }

// ExchangeRate returns the pinned USD→ETB rate.
func (d *Draft) ExchangeRate() float64 { return d.exchangeRate }

// FailureMessage returns the message from the last failed submission.
func (d *Draft) FailureMessage() string { return d.failureMessage }

// =============================================================================
// AMOUNT STEP
// =============================================================================

// SetAmountInput records the operator's USD amount input. Parsing is
// lenient here; validation happens at the step transition.
func (d *Draft) SetAmountInput(input string) {
	d.amountInput = strings.TrimSpace(input)
	v, err := strconv.ParseFloat(d.amountInput, 64)
	if err != nil {
		d.amountUSD = 0
		return
	}
	d.amountUSD = v
}

// AmountInput returns the raw amount text for redisplay.
func (d *Draft) AmountInput() string { return d.amountInput }

// AmountUSD returns the parsed USD amount.
func (d *Draft) AmountUSD() float64 { return d.amountUSD }

// AmountETB returns the unrounded ETB equivalent. Rounding happens only at
// display and wire projection, so re-renders cannot compound error.
func (d *Draft) AmountETB() float64 {
	return d.amountUSD * d.exchangeRate
}

// FormattedAmountETB renders the ETB equivalent with two decimals.
func (d *Draft) FormattedAmountETB() string {
	return util.FormatAmount(d.AmountETB())
}

// validateAmount gates the first step transition.
func (d *Draft) validateAmount() *ValidationError {
	if d.amountInput == "" {
		return &ValidationError{Field: "amount", Message: "Amount is required"}
	}
	if d.amountUSD <= 0 {
		return &ValidationError{Field: "amount", Message: "Amount must be greater than zero"}
	}
	return nil
}

// BeginPartyAndBank advances AmountEntry → PartyAndBank. The amount and
// its ETB equivalent carry forward as part of the draft.
func (d *Draft) BeginPartyAndBank() error {
	switch d.step {
	case StepAmountEntry:
	case StepSucceeded:
		return ErrDraftSpent
	default:
		return ErrWrongStep
	}
	if verr := d.validateAmount(); verr != nil {
		return verr
	}
	d.step = StepPartyAndBank
	return nil
}

// =============================================================================
// PARTY AND BANK STEP
// =============================================================================

// SetSender records a sender resolved through the directory cache.
func (d *Draft) SetSender(p directory.Party) {
	d.sender = p
	d.senderSet = true
}

// ClearSender drops the resolved sender, e.g. when the operator edits the
// name field after picking a suggestion.
func (d *Draft) ClearSender() { d.senderSet = false }

// SetReceiver records a receiver resolved through the directory cache.
func (d *Draft) SetReceiver(p directory.Party) {
	d.receiver = p
	d.receiverSet = true
}

// ClearReceiver drops the resolved receiver.
func (d *Draft) ClearReceiver() { d.receiverSet = false }

// Sender returns the resolved sender, if set.
func (d *Draft) Sender() (directory.Party, bool) { return d.sender, d.senderSet }

// Receiver returns the resolved receiver, if set.
func (d *Draft) Receiver() (directory.Party, bool) { return d.receiver, d.receiverSet }

// SetBank records the chosen payout bank.
func (d *Draft) SetBank(b api.Bank) {
	d.bankID = b.ID
	d.bankName = b.Name
	d.bankSet = true
}

// BankName returns the chosen bank's name for display.
func (d *Draft) BankName() string { return d.bankName }

// SetAccountNumber records the payout account number.
func (d *Draft) SetAccountNumber(n string) {
	d.accountNumber = strings.TrimSpace(n)
}

// AccountNumber returns the entered account number.
func (d *Draft) AccountNumber() string { return d.accountNumber }

// Validate checks the whole draft. The first failing field is returned;
// nothing defaults silently.
func (d *Draft) Validate() error {
	if verr := d.validateAmount(); verr != nil {
		return verr
	}
	if !d.senderSet {
		return &ValidationError{Field: "sender", Message: "Select a sender from the suggestions"}
	}
	if !d.receiverSet {
		return &ValidationError{Field: "receiver", Message: "Select a receiver from the suggestions"}
	}
	if !d.bankSet {
		return &ValidationError{Field: "bank", Message: "Choose a bank"}
	}
	if d.accountNumber == "" {
		return &ValidationError{Field: "account_number", Message: "Account number is required"}
	}
	return nil
}

// =============================================================================
// SUBMISSION
// =============================================================================

// Submitter commits a transfer. Implemented by the API client.
type Submitter interface {
	CreateTransfer(ctx context.Context, req *api.TransferRequest) error
}

// buildRequest projects the validated draft onto the wire shape. The only
// rounding in the workflow happens here and in display formatting.
func (d *Draft) buildRequest() *api.TransferRequest {
	return &api.TransferRequest{
		ReferenceID:   d.id,
		SenderID:      d.sender.ID,
		ReceiverID:    d.receiver.ID,
		BankID:        d.bankID,
		AccountNumber: d.accountNumber,
		AmountUSD:     util.RoundMoney(d.amountUSD),
		AmountETB:     util.RoundMoney(d.AmountETB()),
		ExchangeRate:  d.exchangeRate,
		Currency:      "ETB",
	}
}

// BeginSubmit validates and transitions into Submitting. A draft already
// in flight or already spent is rejected without touching the network.
func (d *Draft) BeginSubmit() (*api.TransferRequest, error) {
	switch d.step {
	case StepSubmitting:
		return nil, ErrSubmissionInFlight
	case StepSucceeded:
		return nil, ErrDraftSpent
	case StepPartyAndBank, StepFailed:
	default:
		return nil, ErrWrongStep
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	d.step = StepSubmitting
	d.failureMessage = ""
	return d.buildRequest(), nil
}

// CompleteSubmit marks the submission successful. The draft is spent and
// cannot be resubmitted.
func (d *Draft) CompleteSubmit() {
	if d.step != StepSubmitting {
		return
	}
	d.step = StepSucceeded
}

// FailSubmit records a rejected submission. Entered values are preserved
// so the operator can correct and try again.
func (d *Draft) FailSubmit(err error) {
	if d.step != StepSubmitting {
		return
	}
	d.step = StepFailed
	d.failureMessage = failureMessageFrom(err)
}

// Submit runs the full submission round-trip synchronously. The TUI
// drives the three phases itself from a command; this form exists for
// non-interactive callers and tests.
func (d *Draft) Submit(ctx context.Context, s Submitter) error {
	req, err := d.BeginSubmit()
	if err != nil {
		return err
	}
	if err := s.CreateTransfer(ctx, req); err != nil {
		d.FailSubmit(err)
		return err
	}
	d.CompleteSubmit()
	return nil
}

// failureMessageFrom extracts the operator-facing message: the
// collaborator's error body when present, a generic line otherwise.
func failureMessageFrom(err error) string {
	var reqErr *api.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.UserMessage()
	}
	return genericFailureMessage
}
