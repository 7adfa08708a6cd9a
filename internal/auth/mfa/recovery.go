package mfa

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/nwaqas/finfortress/pkg/crypto"
)

// Alphabet excludes characters that are easy to misread: I, O, 0, 1.
const recoveryAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const recoveryChunkLen = 5

// GenerateRecoveryCodes produces a batch of single-use codes in the form
// XXXXX-XXXXX.
func (s *Service) GenerateRecoveryCodes() ([]string, error) {
	codes := make([]string, s.recoveryCodes)
	for i := range codes {
		code, err := generateRecoveryCode()
		if err != nil {
			return nil, fmt.Errorf("totp: generate recovery code: %w", err)
		}
		codes[i] = code
	}
	return codes, nil
}

// NormalizeRecoveryCode upper-cases and trims user input so codes compare
// regardless of how they were typed.
func NormalizeRecoveryCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// HashRecoveryCode digests a normalized code for storage and comparison.
// Plaintext codes are shown once at generation time and never kept.
func HashRecoveryCode(code string) string {
	return crypto.DigestHex(NormalizeRecoveryCode(code))
}

func generateRecoveryCode() (string, error) {
	first, err := randomChunk(recoveryChunkLen)
	if err != nil {
		return "", err
	}
	second, err := randomChunk(recoveryChunkLen)
	if err != nil {
		return "", err
	}
	return first + "-" + second, nil
}

func randomChunk(length int) (string, error) {
	max := big.NewInt(int64(len(recoveryAlphabet)))
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(recoveryAlphabet[n.Int64()])
	}
	return b.String(), nil
}
