package auth

import (
	"crypto/sha256"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func stateKey() []byte {
	sum := sha256.Sum256([]byte("state-test-secret"))
	return sum[:]
}

func TestStateCodecRoundTrip(t *testing.T) {
	codec, err := NewStateCodec(stateKey(), 10*time.Minute, nil)
	require.NoError(t, err)

	token, err := codec.Encode(StatePayload{
		DeviceID:  "dev-a",
		ReturnURL: "/app",
		Nonce:     "nonce-1",
		PKCE:      "verifier-1",
	})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	payload, err := codec.Decode(token)
	require.NoError(t, err)
	require.Equal(t, "dev-a", payload.DeviceID)
	require.Equal(t, "/app", payload.ReturnURL)
	require.Equal(t, "nonce-1", payload.Nonce)
	require.Equal(t, "verifier-1", payload.PKCE)
	require.False(t, payload.IssuedAt.IsZero())
}

func TestStateCodecRequiresDevice(t *testing.T) {
	codec, err := NewStateCodec(stateKey(), time.Minute, nil)
	require.NoError(t, err)

	_, err = codec.Encode(StatePayload{Nonce: "n"})
	require.Error(t, err)
}

func TestStateCodecRejectsTampering(t *testing.T) {
	codec, err := NewStateCodec(stateKey(), time.Minute, nil)
	require.NoError(t, err)

	token, err := codec.Encode(StatePayload{DeviceID: "dev-a", Nonce: "n", PKCE: "k"})
	require.NoError(t, err)

	_, err = codec.Decode(token[:len(token)-4] + "AAAA")
	require.ErrorIs(t, err, ErrStateInvalid)

	_, err = codec.Decode("")
	require.ErrorIs(t, err, ErrStateInvalid)
}

func TestStateCodecExpires(t *testing.T) {
	current := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
	now := func() time.Time { return current }

	codec, err := NewStateCodec(stateKey(), 5*time.Minute, now)
	require.NoError(t, err)

	token, err := codec.Encode(StatePayload{DeviceID: "dev-a", Nonce: "n", PKCE: "k"})
	require.NoError(t, err)

	current = current.Add(6 * time.Minute)
	_, err = codec.Decode(token)
	require.ErrorIs(t, err, ErrStateExpired)
}

func TestStateCodecRejectsShortKey(t *testing.T) {
	_, err := NewStateCodec([]byte("short"), time.Minute, nil)
	require.Error(t, err)
}

func TestGeneratePKCE(t *testing.T) {
	a, err := GeneratePKCE()
	require.NoError(t, err)
	require.NotEmpty(t, a.Verifier)
	require.NotEmpty(t, a.Challenge)
	require.NotEqual(t, a.Verifier, a.Challenge)

	b, err := GeneratePKCE()
	require.NoError(t, err)
	require.NotEqual(t, a.Verifier, b.Verifier)
}
