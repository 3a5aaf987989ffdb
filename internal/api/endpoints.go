// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// =============================================================================
// WIRE TYPES
// =============================================================================

// User is a customer directory entry as returned by GET /users.
type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Status    string `json:"status,omitempty"`
}

// Bank is a payout bank as returned by the bank-list endpoint.
type Bank struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// TransferRequest is the flattened, validated projection of a transfer
// draft sent to POST /transfers. Amounts carry two decimals; the ETB
// amount is computed client-side from the configured rate.
type TransferRequest struct {
	ReferenceID   string  `json:"reference_id"`
	SenderID      int64   `json:"sender_id"`
	ReceiverID    int64   `json:"receiver_id"`
	BankID        int64   `json:"bank_id"`
	AccountNumber string  `json:"account_number"`
	AmountUSD     float64 `json:"amount_usd"`
	AmountETB     float64 `json:"amount_etb"`
	ExchangeRate  float64 `json:"exchange_rate"`
	Currency      string  `json:"currency"`
}

// TransferRecord is a committed transfer as returned by GET /transfers.
type TransferRecord struct {
	ID            int64     `json:"id"`
	ReferenceID   string    `json:"reference_id"`
	SenderName    string    `json:"sender_name"`
	ReceiverName  string    `json:"receiver_name"`
	BankName      string    `json:"bank_name"`
	AccountNumber string    `json:"account_number"`
	AmountUSD     float64   `json:"amount_usd"`
	AmountETB     float64   `json:"amount_etb"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

// =============================================================================
// AUTH
// =============================================================================

// loginResponse tolerates both token field spellings the backend has used.
type loginResponse struct {
	Token       string `json:"token"`
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
}

// LoginResult is a successful authentication.
type LoginResult struct {
	Token string
	Role  string
}

// Login authenticates with email and password. It is the one call that
// runs without a stored token.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	body := map[string]string{"email": email, "password": password}

	var resp loginResponse
	if err := c.doUnauthenticated(ctx, http.MethodPost, "/login", body, &resp); err != nil {
		return nil, err
	}

	token := resp.Token
	if token == "" {
		token = resp.AccessToken
	}
	if token == "" {
		return nil, errors.New("login response carried no token")
	}
	return &LoginResult{Token: token, Role: resp.Role}, nil
}

// LogoutOtherSessions invalidates the account's sessions on other devices.
func (c *Client) LogoutOtherSessions(ctx context.Context) error {
	return c.Do(ctx, http.MethodPost, "/user/logout-sessions", nil, nil)
}

// =============================================================================
// DIRECTORY / BANKS
// =============================================================================

// FetchParties retrieves the full active customer directory. Called once
// per wizard instance; the result feeds the party directory cache.
func (c *Client) FetchParties(ctx context.Context) ([]User, error) {
	var resp struct {
		Users []User `json:"users"`
	}
	if err := c.Do(ctx, http.MethodGet, "/users", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Users, nil
}

// FetchBanks retrieves the available payout banks. The route shape is the
// collaborator's; it doubles as the "new transfer" bootstrap endpoint.
func (c *Client) FetchBanks(ctx context.Context) ([]Bank, error) {
	var resp struct {
		Banks []Bank `json:"banks"`
	}
	if err := c.Do(ctx, http.MethodGet, "/transfers/create", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Banks, nil
}

// =============================================================================
// TRANSFERS
// =============================================================================

// CreateTransfer commits a transfer. Non-2xx responses surface as
// *RequestError with the backend's message when it sent one.
func (c *Client) CreateTransfer(ctx context.Context, req *TransferRequest) error {
	return c.Do(ctx, http.MethodPost, "/transfers", req, nil)
}

// FetchTransfers retrieves recent transfers for the list screen.
func (c *Client) FetchTransfers(ctx context.Context) ([]TransferRecord, error) {
	var resp struct {
		Transfers []TransferRecord `json:"transfers"`
	}
	if err := c.Do(ctx, http.MethodGet, "/transfers", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Transfers, nil
}
