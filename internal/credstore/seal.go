// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package credstore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"os"

	"golang.org/x/crypto/pbkdf2"

	"github.com/jeranaias/birrwire-tui/internal/util"
)

const (
	// nonceSize is the AES-GCM nonce size (96 bits).
	nonceSize = 12
	// keySize is the AES-256 key size.
	keySize = 32
	// saltSize is the key-derivation salt size.
	saltSize = 32
	// pbkdf2Iterations follows the OWASP recommendation for PBKDF2-SHA-256.
	pbkdf2Iterations = 600_000

	// masterKeySize is the random master secret written to disk.
	masterKeySize = 32
)

// sealedPrefix marks a sealed value: sealed:base64(salt|nonce|ciphertext).
const sealedPrefix = "sealed:"

// sealer provides at-rest sealing for the token and TOTP secret. The
// master secret lives in a 0600 file next to the database; the per-value
// key is derived from it with PBKDF2 and a fresh salt per seal.
type sealer struct {
	master []byte
}

// newSealer loads the master secret, generating one on first use.
func newSealer(keyPath string) (*sealer, error) {
	if data, err := os.ReadFile(keyPath); err == nil {
		if len(data) != masterKeySize {
			return nil, fmt.Errorf("master key file has wrong size %d", len(data))
		}
		return &sealer{master: data}, nil
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read master key: %w", err)
	}

	master := make([]byte, masterKeySize)
	if _, err := rand.Read(master); err != nil {
		return nil, fmt.Errorf("cryptographic random generation failed: %w", err)
	}
	if err := util.AtomicWriteFile(keyPath, master, 0600); err != nil {
		return nil, fmt.Errorf("failed to persist master key: %w", err)
	}
	return &sealer{master: master}, nil
}

// seal encrypts plaintext to the sealed:... on-disk form.
func (s *sealer) seal(plaintext string) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	gcm, err := s.cipherFor(salt)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nil, nonce, []byte(plaintext), nil)

	blob := make([]byte, 0, saltSize+nonceSize+len(ciphertext))
	blob = append(blob, salt...)
	blob = append(blob, nonce...)
	blob = append(blob, ciphertext...)

	return sealedPrefix + base64.StdEncoding.EncodeToString(blob), nil
}

// unseal reverses seal. Tampered or truncated values fail authentication.
func (s *sealer) unseal(value string) (string, error) {
	if len(value) <= len(sealedPrefix) || value[:len(sealedPrefix)] != sealedPrefix {
		return "", errors.New("value is not sealed")
	}

	blob, err := base64.StdEncoding.DecodeString(value[len(sealedPrefix):])
	if err != nil {
		return "", fmt.Errorf("corrupt sealed value: %w", err)
	}
	if len(blob) < saltSize+nonceSize {
		return "", errors.New("sealed value too short")
	}

	salt := blob[:saltSize]
	nonce := blob[saltSize : saltSize+nonceSize]
	ciphertext := blob[saltSize+nonceSize:]

	gcm, err := s.cipherFor(salt)
	if err != nil {
		return "", err
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("failed to unseal value: %w", err)
	}
	return string(plaintext), nil
}

func (s *sealer) cipherFor(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key(s.master, salt, pbkdf2Iterations, keySize, sha256.New)
	defer zeroBytes(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// zeroBytes zeros key material after use.
func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
