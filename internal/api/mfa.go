// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"errors"
	"fmt"

	"github.com/pquerna/otp/totp"
)

// ErrMFAFailed indicates the supplied TOTP code did not verify.
var ErrMFAFailed = errors.New("verification code rejected")

// VerifyTOTP checks a 6-digit code against the enrolled secret. The check
// is local to the device; the secret never goes over the wire.
func VerifyTOTP(secret, code string) error {
	if secret == "" {
		return errors.New("no TOTP secret enrolled")
	}
	if !totp.Validate(code, secret) {
		return ErrMFAFailed
	}
	return nil
}

// EnrollTOTP generates a fresh TOTP secret for this device. The returned
// URL is the otpauth:// enrollment string for the operator's
// authenticator app.
func EnrollTOTP(accountEmail string) (secret, url string, err error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      "birrwire",
		AccountName: accountEmail,
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to generate TOTP secret: %w", err)
	}
	return key.Secret(), key.URL(), nil
}
