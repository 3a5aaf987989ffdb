// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// staticTokens is a TokenSource with a fixed token.
type staticTokens struct {
	token string
	err   error
}

func (s staticTokens) ReadToken() (string, error) { return s.token, s.err }

func newTestClient(t *testing.T, handler http.Handler, tokens TokenSource) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL, tokens).WithHTTPClient(srv.Client())
	return c, srv
}

func TestClient_InjectsBearerToken(t *testing.T) {
	var gotAuth, gotContentType string
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		w.Write([]byte(`{}`))
	}), staticTokens{token: "tok_abc"})

	err := c.Do(context.Background(), http.MethodGet, "/users", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok_abc", gotAuth)
	assert.Equal(t, "application/json", gotContentType)
}

func TestClient_CallerHeadersWin(t *testing.T) {
	var gotContentType string
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		w.Write([]byte(`{}`))
	}), staticTokens{token: "tok"})

	headers := map[string]string{"Content-Type": "application/pdf"}
	err := c.DoWithHeaders(context.Background(), http.MethodGet, "/export", headers, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", gotContentType)
}

func TestClient_NoTokenBlocksNetworkCall(t *testing.T) {
	var calls int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}), staticTokens{token: ""})

	var hookFired bool
	c.SetAuthMissingHook(func() { hookFired = true })

	err := c.Do(context.Background(), http.MethodGet, "/users", nil, nil)
	assert.ErrorIs(t, err, ErrNoToken)
	assert.True(t, hookFired, "auth-missing hook should fire")
	assert.Zero(t, atomic.LoadInt32(&calls), "no network call should be made without a token")
}

func TestClient_NonSuccessBecomesRequestError(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"message": "Account number invalid"}`))
	}), staticTokens{token: "tok"})

	err := c.Do(context.Background(), http.MethodPost, "/transfers", map[string]int{"x": 1}, nil)

	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, http.StatusUnprocessableEntity, reqErr.Status)
	assert.Equal(t, "Account number invalid", reqErr.Message)
	assert.Equal(t, "Account number invalid", reqErr.UserMessage())
}

func TestClient_NonSuccessWithoutBodyMessage(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`upstream exploded`))
	}), staticTokens{token: "tok"})

	err := c.Do(context.Background(), http.MethodGet, "/users", nil, nil)

	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, http.StatusBadGateway, reqErr.Status)
	assert.Empty(t, reqErr.Message)
	assert.Contains(t, reqErr.UserMessage(), "502")
}

func TestClient_Login(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"token field", `{"token": "tok_1", "role": "agent"}`},
		{"access_token field", `{"access_token": "tok_1", "role": "agent"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotAuth string
			c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotAuth = r.Header.Get("Authorization")
				assert.Equal(t, "/login", r.URL.Path)
				w.Write([]byte(tt.body))
			}), staticTokens{token: ""})

			res, err := c.Login(context.Background(), "agent@example.com", "hunter2")
			require.NoError(t, err)
			assert.Equal(t, "tok_1", res.Token)
			assert.Equal(t, "agent", res.Role)
			assert.Empty(t, gotAuth, "login must not send a bearer token")
		})
	}
}

func TestClient_LoginWithoutToken(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "ok"}`))
	}), staticTokens{token: ""})

	_, err := c.Login(context.Background(), "a@b.c", "pw")
	assert.Error(t, err)
}

func TestClient_FetchPartiesAndBanks(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/users":
			w.Write([]byte(`{"users": [{"id": 7, "first_name": "John", "last_name": "Doe"}]}`))
		case "/transfers/create":
			w.Write([]byte(`{"banks": [{"id": 3, "name": "Awash Bank"}]}`))
		default:
			http.NotFound(w, r)
		}
	}), staticTokens{token: "tok"})

	users, err := c.FetchParties(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, int64(7), users[0].ID)
	assert.Equal(t, "John", users[0].FirstName)

	banks, err := c.FetchBanks(context.Background())
	require.NoError(t, err)
	require.Len(t, banks, 1)
	assert.Equal(t, "Awash Bank", banks[0].Name)
}

func TestVerifyTOTP(t *testing.T) {
	secret, _, err := EnrollTOTP("agent@example.com")
	require.NoError(t, err)

	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)

	assert.NoError(t, VerifyTOTP(secret, code))
	assert.ErrorIs(t, VerifyTOTP(secret, "000000"), ErrMFAFailed)
	assert.Error(t, VerifyTOTP("", "123456"))
}
