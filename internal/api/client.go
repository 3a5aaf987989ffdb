// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api is the single choke point for calls to the back-office REST
// API.
//
// Every authenticated call flows through Client.Do, which injects the
// bearer token from the credential store, normalizes error responses, and
// triggers the forced-logout hook when no token is present. The client is
// deliberately thin: no retries, no backoff, no resilience layer. A
// failed call is surfaced to the caller and to the operator.
package api

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout is the transport-level request timeout. The client
	// adds no timeout enforcement beyond this.
	DefaultTimeout = 30 * time.Second

	// MaxResponseSize caps response bodies read into memory.
	MaxResponseSize = 10 * 1024 * 1024

	// defaultRatePerSec smooths request bursts from list screens.
	defaultRatePerSec = 10
)

// sharedHTTPClient pools connections across all API calls.
var sharedHTTPClient = &http.Client{
	Transport: &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	},
	Timeout: DefaultTimeout,
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrNoToken indicates no session token is available. Fatal to the current
// action: the auth-missing hook has already routed the operator to the
// login screen, and the caller must not retry.
var ErrNoToken = errors.New("no session token available")

// RequestError is a non-2xx response from the collaborator API. The
// Message is lifted from a {"message": ...} error body when one is
// present; business interpretation of the body is left to the caller.
type RequestError struct {
	Status     int
	StatusText string
	Message    string
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("request failed (HTTP %d %s): %s", e.Status, e.StatusText, e.Message)
	}
	return fmt.Sprintf("request failed (HTTP %d %s)", e.Status, e.StatusText)
}

// UserMessage returns the text to surface to the operator.
func (e *RequestError) UserMessage() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("Request failed (HTTP %d %s)", e.Status, e.StatusText)
}

// errorBody is the collaborator's error envelope.
type errorBody struct {
	Message string `json:"message"`
}

// =============================================================================
// CLIENT
// =============================================================================

// TokenSource yields the current session token. Implemented by the
// credential store.
type TokenSource interface {
	ReadToken() (string, error)
}

// Client is the authenticated request client.
type Client struct {
	baseURL string
	tokens  TokenSource
	limiter *rate.Limiter

	// onAuthMissing is invoked when a call is attempted with no token;
	// the UI uses it to surface the blocking notice and drop to login.
	onAuthMissing func()

	// httpClient is swappable for tests; defaults to the shared pooled
	// client.
	httpClient *http.Client
}

// NewClient creates a client rooted at baseURL.
func NewClient(baseURL string, tokens TokenSource) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		tokens:     tokens,
		limiter:    rate.NewLimiter(rate.Limit(defaultRatePerSec), defaultRatePerSec),
		httpClient: sharedHTTPClient,
	}
}

// WithRateLimit sets the outbound requests-per-second cap.
func (c *Client) WithRateLimit(perSec float64) *Client {
	if perSec > 0 {
		burst := int(perSec)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSec), burst)
	}
	return c
}

// WithHTTPClient sets a custom HTTP client. Test hook.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// SetAuthMissingHook registers the forced-logout side effect.
func (c *Client) SetAuthMissingHook(fn func()) {
	c.onAuthMissing = fn
}

// BaseURL returns the configured API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// =============================================================================
// REQUESTS
// =============================================================================

// Do performs an authenticated call. body is JSON-marshaled when non-nil;
// a 2xx response is unmarshaled into out when out is non-nil.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	return c.DoWithHeaders(ctx, method, path, nil, body, out)
}

// DoWithHeaders performs an authenticated call with extra headers merged
// over the defaults. Caller-supplied headers win.
func (c *Client) DoWithHeaders(ctx context.Context, method, path string, headers map[string]string, body, out any) error {
	token, err := c.tokens.ReadToken()
	if err != nil || token == "" {
		// Precondition failed: no network call happens.
		if c.onAuthMissing != nil {
			c.onAuthMissing()
		}
		return ErrNoToken
	}
	return c.send(ctx, method, path, token, headers, body, out)
}

// doUnauthenticated is for the login endpoint, which has no token yet.
func (c *Client) doUnauthenticated(ctx context.Context, method, path string, body, out any) error {
	return c.send(ctx, method, path, "", nil, body, out)
}

func (c *Client) send(ctx context.Context, method, path, token string, headers map[string]string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	// Defaults first, caller overrides after.
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	logRequest(req, token)

	start := time.Now()
	resp, err := c.httpClient.Do(req)

	// Drop the header reference immediately so it cannot leak into logs.
	req.Header.Del("Authorization")

	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	logResponse(resp, time.Since(start))

	data, err := readResponse(resp)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		reqErr := &RequestError{
			Status:     resp.StatusCode,
			StatusText: http.StatusText(resp.StatusCode),
		}
		var eb errorBody
		if json.Unmarshal(data, &eb) == nil && eb.Message != "" {
			reqErr.Message = eb.Message
		}
		return reqErr
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return nil
}

// readResponse reads the body with a size cap.
func readResponse(resp *http.Response) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(data)) == MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return data, nil
}

// =============================================================================
// LOGGING
// =============================================================================

// logRequest logs method and path only. Headers and bodies carry
// credentials and customer data and never reach the log; the token appears
// only as a fingerprint.
func logRequest(req *http.Request, token string) {
	log.Printf("API Request: %s %s token=%s", req.Method, req.URL.Path, tokenFingerprint(token))
}

func logResponse(resp *http.Response, duration time.Duration) {
	log.Printf("API Response: %d %s (%v)", resp.StatusCode, http.StatusText(resp.StatusCode), duration)
}

// tokenFingerprint returns a short SHA-256 fingerprint for log
// correlation without exposing any token fragment.
func tokenFingerprint(token string) string {
	if token == "" {
		return "none"
	}
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:4])
}
