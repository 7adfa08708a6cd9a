package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nwaqas/finfortress/pkg/crypto"
)

var (
	// ErrStateExpired signals the popup sat on the consent screen past the state lifetime.
	ErrStateExpired = errors.New("sso state: expired")
	// ErrStateInvalid covers tampered, truncated, or foreign state tokens.
	ErrStateInvalid = errors.New("sso state: invalid")
)

// StateCodec encodes and decodes the state round-tripped through the external
// issuer. The payload is sealed, so the callback can trust the nonce, PKCE
// verifier, and device binding it carries.
type StateCodec struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// StatePayload captures data required to validate the callback and resume the
// login flow on the device that opened the popup.
type StatePayload struct {
	DeviceID  string    `json:"d"`
	ReturnURL string    `json:"r"`
	Nonce     string    `json:"n"`
	PKCE      string    `json:"k"`
	IssuedAt  time.Time `json:"iat"`
}

// NewStateCodec constructs a StateCodec using the provided symmetric key and lifetime.
func NewStateCodec(key []byte, ttl time.Duration, now func() time.Time) (*StateCodec, error) {
	length := len(key)
	if length != 16 && length != 24 && length != 32 {
		return nil, fmt.Errorf("sso state: key must be 16, 24, or 32 bytes, got %d", length)
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if now == nil {
		now = time.Now
	}
	return &StateCodec{key: key, ttl: ttl, now: now}, nil
}

// Encode seals the supplied payload into a compact state string.
func (c *StateCodec) Encode(payload StatePayload) (string, error) {
	if strings.TrimSpace(payload.DeviceID) == "" {
		return "", errors.New("sso state: device id is required")
	}
	payload.IssuedAt = c.now().UTC()

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("sso state: marshal payload: %w", err)
	}

	encoded, err := crypto.Encrypt(raw, c.key)
	if err != nil {
		return "", fmt.Errorf("sso state: encrypt payload: %w", err)
	}

	return encoded, nil
}

// Decode opens the state string back into a payload while enforcing expiry.
func (c *StateCodec) Decode(token string) (StatePayload, error) {
	var payload StatePayload
	if strings.TrimSpace(token) == "" {
		return payload, ErrStateInvalid
	}

	raw, err := crypto.Decrypt(token, c.key)
	if err != nil {
		return payload, ErrStateInvalid
	}

	if err := json.Unmarshal(raw, &payload); err != nil {
		return payload, ErrStateInvalid
	}

	if payload.DeviceID == "" || payload.IssuedAt.IsZero() {
		return payload, ErrStateInvalid
	}

	if c.now().UTC().After(payload.IssuedAt.Add(c.ttl)) {
		return payload, ErrStateExpired
	}

	return payload, nil
}
