// Package token issues and verifies compact signed tokens of the form
// base64url(json payload) "." base64url(HMAC-SHA256 signature).
package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

var (
	ErrInvalidToken     = errors.New("invalid token format")
	ErrSignatureInvalid = errors.New("signature mismatch")
	ErrExpired          = errors.New("token expired")
	ErrEmptySecret      = errors.New("token secret is empty")
)

// Expirer is implemented by payloads that carry an expiry. Parse rejects
// such payloads once the expiry has passed.
type Expirer interface {
	ExpiresAt() time.Time
}

// Generate signs payload with secret.
func Generate[T any](payload T, secret string) (string, error) {
	if secret == "" {
		return "", ErrEmptySecret
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return encode(data) + "." + encode(sign(data, secret)), nil
}

// Parse verifies the signature and decodes the payload.
func Parse[T any](tok, secret string) (T, error) {
	var payload T
	if secret == "" {
		return payload, ErrEmptySecret
	}

	body, sig, ok := strings.Cut(tok, ".")
	if !ok || body == "" || sig == "" {
		return payload, ErrInvalidToken
	}
	data, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		return payload, errors.Join(ErrInvalidToken, err)
	}
	gotSig, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return payload, errors.Join(ErrInvalidToken, err)
	}
	if !hmac.Equal(gotSig, sign(data, secret)) {
		return payload, ErrSignatureInvalid
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return payload, errors.Join(ErrInvalidToken, err)
	}
	if exp, ok := any(payload).(Expirer); ok && !exp.ExpiresAt().IsZero() && time.Now().After(exp.ExpiresAt()) {
		return payload, ErrExpired
	}
	return payload, nil
}

func sign(data []byte, secret string) []byte {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(data)
	return h.Sum(nil)
}

func encode(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}
