package mfa

import (
	"regexp"
	"testing"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
)

const testSecret = "JBSWY3DPEHPK3PXP"

func codeAt(t *testing.T, secret string, at time.Time) string {
	t.Helper()
	code, err := totp.GenerateCodeCustom(secret, at, totp.ValidateOpts{
		Period:    30,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	require.NoError(t, err)
	return code
}

func TestGenerateSecret(t *testing.T) {
	svc := NewService()

	secret, err := svc.GenerateSecret()
	require.NoError(t, err)
	require.Len(t, secret, 32) // 20 bytes, base32 without padding
	require.Regexp(t, `^[A-Z2-7]+$`, secret)

	other, err := svc.GenerateSecret()
	require.NoError(t, err)
	require.NotEqual(t, secret, other)
}

func TestValidateCodeAcceptsOneStepOfDrift(t *testing.T) {
	svc := NewService()
	at := time.Date(2025, 4, 10, 9, 30, 0, 0, time.UTC)

	for _, offset := range []int{-1, 0, 1} {
		code := codeAt(t, testSecret, at.Add(time.Duration(offset)*30*time.Second))
		ok, err := svc.ValidateCodeAt(testSecret, code, at)
		require.NoError(t, err)
		require.True(t, ok, "offset %d should validate", offset)
	}
}

func TestValidateCodeRejectsTwoStepsOfDrift(t *testing.T) {
	svc := NewService()
	at := time.Date(2025, 4, 10, 9, 30, 0, 0, time.UTC)

	for _, offset := range []int{-2, 2} {
		code := codeAt(t, testSecret, at.Add(time.Duration(offset)*30*time.Second))
		ok, err := svc.ValidateCodeAt(testSecret, code, at)
		require.NoError(t, err)
		require.False(t, ok, "offset %d should not validate", offset)
	}
}

func TestValidateCodeRejectsGarbage(t *testing.T) {
	svc := NewService()

	ok, err := svc.ValidateCodeAt(testSecret, "000000", time.Date(2025, 4, 10, 9, 30, 0, 0, time.UTC))
	require.NoError(t, err)
	require.False(t, ok)

	_, err = svc.ValidateCodeAt("", "123456", time.Now())
	require.Error(t, err)
}

func TestProvisioningURI(t *testing.T) {
	svc := NewService(WithIssuer("FinFortress"))

	uri, err := svc.ProvisioningURI(testSecret, "nadia@example.com")
	require.NoError(t, err)
	require.Contains(t, uri, "otpauth://totp/")
	require.Contains(t, uri, "FinFortress")
	require.Contains(t, uri, "secret="+testSecret)
	require.Contains(t, uri, "algorithm=SHA1")
	require.Contains(t, uri, "digits=6")
	require.Contains(t, uri, "period=30")
}

func TestQRCodePNG(t *testing.T) {
	svc := NewService(WithQRCodeSize(128))

	uri, err := svc.ProvisioningURI(testSecret, "nadia@example.com")
	require.NoError(t, err)

	png, err := svc.QRCodePNG(uri)
	require.NoError(t, err)
	require.NotEmpty(t, png)
	require.Equal(t, []byte{0x89, 'P', 'N', 'G'}, png[:4])
}

func TestGenerateRecoveryCodes(t *testing.T) {
	svc := NewService()

	codes, err := svc.GenerateRecoveryCodes()
	require.NoError(t, err)
	require.Len(t, codes, 10)

	pattern := regexp.MustCompile(`^[A-HJ-NP-Z2-9]{5}-[A-HJ-NP-Z2-9]{5}$`)
	seen := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		require.Regexp(t, pattern, code)
		require.NotContains(t, code, "I")
		require.NotContains(t, code, "O")
		require.NotContains(t, code, "0")
		require.NotContains(t, code, "1")
		seen[code] = struct{}{}
	}
	require.Len(t, seen, 10)
}

func TestRecoveryCodeHashingIsCaseInsensitive(t *testing.T) {
	require.Equal(t, HashRecoveryCode("abcde-fghjk"), HashRecoveryCode("ABCDE-FGHJK"))
	require.Equal(t, HashRecoveryCode("  ABCDE-FGHJK  "), HashRecoveryCode("ABCDE-FGHJK"))
	require.Regexp(t, `^[0-9a-f]{64}$`, HashRecoveryCode("ABCDE-FGHJK"))
}
