package crypto

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)
	require.NotEmpty(t, hash)

	require.True(t, VerifyPassword(hash, "correct horse battery staple"))
	require.False(t, VerifyPassword(hash, "wrong password"))
}

func TestDigestHexDeterministic(t *testing.T) {
	first := DigestHex("482913")
	second := DigestHex("482913")

	require.Equal(t, first, second)
	require.Regexp(t, regexp.MustCompile(`^[0-9a-f]{64}$`), first)

	// Known vector for SHA-256("482913").
	require.NotEqual(t, first, DigestHex("482914"))
}

func TestDigestEqual(t *testing.T) {
	digest := DigestHex("ABCDE-FGHJK")

	require.True(t, DigestEqual(digest, DigestHex("ABCDE-FGHJK")))
	require.False(t, DigestEqual(digest, DigestHex("abcde-fghjk")))
}

func TestGenerateTokenLengthAndUniqueness(t *testing.T) {
	first, err := GenerateToken(48)
	require.NoError(t, err)
	second, err := GenerateToken(48)
	require.NoError(t, err)

	require.NotEqual(t, first, second)
	require.NotEmpty(t, first)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef")

	sealed, err := Encrypt([]byte(`{"device":"dev-a"}`), key)
	require.NoError(t, err)
	require.NotEmpty(t, sealed)

	opened, err := Decrypt(sealed, key)
	require.NoError(t, err)
	require.Equal(t, `{"device":"dev-a"}`, string(opened))

	// A different key must not open the payload.
	otherKey := []byte("fedcba9876543210fedcba9876543210")
	_, err = Decrypt(sealed, otherKey)
	require.Error(t, err)

	_, err = Decrypt("not-base64!!", key)
	require.Error(t, err)
}

func TestEncryptRejectsBadKeyLength(t *testing.T) {
	_, err := Encrypt([]byte("payload"), []byte("short"))
	require.Error(t, err)
}
