// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package gatewayapi

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/wardenhq/warden/lib/codec"
)

// ErrUnauthorized is the single verification failure. Missing MAC,
// malformed MAC, and wrong MAC are indistinguishable by design — the
// caller learns nothing about which part of the check failed.
var ErrUnauthorized = errors.New("unauthorized")

// minimumSecretLength rejects secrets too short to be worth having.
const minimumSecretLength = 32

// SignCommand computes the hex-encoded HMAC-SHA256 over the
// deterministic CBOR encoding of cmd.
func SignCommand(secret []byte, cmd Command) (string, error) {
	if len(secret) == 0 {
		return "", fmt.Errorf("gatewayapi: secret is empty")
	}
	encoded, err := codec.Marshal(cmd)
	if err != nil {
		return "", fmt.Errorf("gatewayapi: encoding command for MAC: %w", err)
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(encoded)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// VerifyCommand checks the request MAC against the shared secret.
// Every failure mode returns ErrUnauthorized; nothing about the
// failure is distinguishable to the caller.
func VerifyCommand(secret []byte, request Request) error {
	if len(secret) == 0 || request.MAC == "" {
		return ErrUnauthorized
	}

	received, err := hex.DecodeString(request.MAC)
	if err != nil {
		return ErrUnauthorized
	}

	encoded, err := codec.Marshal(request.Command)
	if err != nil {
		return ErrUnauthorized
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write(encoded)
	expected := mac.Sum(nil)

	if subtle.ConstantTimeCompare(expected, received) != 1 {
		return ErrUnauthorized
	}
	return nil
}

// LoadSecret reads the shared secret from path, trimming a trailing
// newline. The file must not be group- or world-readable, and the
// secret must clear a minimum length.
func LoadSecret(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("gatewayapi: stat secret file: %w", err)
	}
	if mode := info.Mode().Perm(); mode&0077 != 0 {
		return nil, fmt.Errorf("gatewayapi: secret file %s has permissions %04o, want 0600 or stricter", path, mode)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("gatewayapi: reading secret file: %w", err)
	}
	secret := []byte(strings.TrimRight(string(data), "\n"))
	if len(secret) < minimumSecretLength {
		return nil, fmt.Errorf("gatewayapi: secret in %s is %d bytes, want at least %d", path, len(secret), minimumSecretLength)
	}
	return secret, nil
}

// SecretFingerprint returns a short BLAKE3 digest of the secret for
// audit logs. The fingerprint identifies which secret a gateway or
// client loaded without ever logging the secret itself.
func SecretFingerprint(secret []byte) string {
	sum := blake3.Sum256(secret)
	return hex.EncodeToString(sum[:8])
}
