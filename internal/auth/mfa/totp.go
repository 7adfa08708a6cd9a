package mfa

import (
	cryptoRand "crypto/rand"
	"encoding/base32"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/skip2/go-qrcode"
)

const (
	defaultIssuer            = "FinFortress"
	defaultRecoveryCodeCount = 10
	defaultQRCodeSize        = 256

	secretBytes = 20
	codeDigits  = otp.DigitsSix
	codePeriod  = 30
	codeSkew    = 1
)

// Option allows customising the TOTP service.
type Option func(*Service)

// WithIssuer overrides the issuer string encoded in provisioning URIs.
func WithIssuer(issuer string) Option {
	return func(s *Service) {
		if strings.TrimSpace(issuer) != "" {
			s.issuer = issuer
		}
	}
}

// WithRecoveryCodeCount overrides the number of recovery codes per batch.
func WithRecoveryCodeCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.recoveryCodes = count
		}
	}
}

// WithQRCodeSize controls the pixel size of generated QR codes.
func WithQRCodeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.qrCodeSize = size
		}
	}
}

// WithClock injects a custom clock, primarily for testing.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.now = clock
		}
	}
}

// Service generates authenticator secrets, validates codes, and renders
// QR provisioning images. It holds no persistent state: secrets live in
// the user's security profile.
type Service struct {
	issuer        string
	recoveryCodes int
	qrCodeSize    int
	now           func() time.Time
}

// NewService constructs a TOTP service.
func NewService(opts ...Option) *Service {
	service := &Service{
		issuer:        defaultIssuer,
		recoveryCodes: defaultRecoveryCodeCount,
		qrCodeSize:    defaultQRCodeSize,
		now:           time.Now,
	}

	for _, opt := range opts {
		opt(service)
	}

	return service
}

// GenerateSecret returns a fresh base32 secret without padding.
func (s *Service) GenerateSecret() (string, error) {
	buf := make([]byte, secretBytes)
	if _, err := cryptoRand.Read(buf); err != nil {
		return "", fmt.Errorf("totp: generate secret: %w", err)
	}
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(buf), nil
}

// ProvisioningURI builds the otpauth:// URI an authenticator app scans.
func (s *Service) ProvisioningURI(secret, accountName string) (string, error) {
	secret = strings.TrimSpace(secret)
	accountName = strings.TrimSpace(accountName)
	if secret == "" || accountName == "" {
		return "", errors.New("totp: secret and account name are required")
	}

	query := url.Values{}
	query.Set("secret", secret)
	query.Set("issuer", s.issuer)
	query.Set("algorithm", "SHA1")
	query.Set("digits", "6")
	query.Set("period", "30")

	u := url.URL{
		Scheme:   "otpauth",
		Host:     "totp",
		Path:     "/" + s.issuer + ":" + accountName,
		RawQuery: query.Encode(),
	}
	return u.String(), nil
}

// ValidateCode checks a six digit code against the secret, accepting one
// period of clock drift on either side.
func (s *Service) ValidateCode(secret, code string) (bool, error) {
	return s.ValidateCodeAt(secret, code, s.now())
}

// ValidateCodeAt is ValidateCode against an explicit instant.
func (s *Service) ValidateCodeAt(secret, code string, at time.Time) (bool, error) {
	secret = strings.TrimSpace(secret)
	code = strings.TrimSpace(code)
	if secret == "" || code == "" {
		return false, errors.New("totp: secret and code are required")
	}

	return totp.ValidateCustom(code, secret, at, totp.ValidateOpts{
		Period:    codePeriod,
		Skew:      codeSkew,
		Digits:    codeDigits,
		Algorithm: otp.AlgorithmSHA1,
	})
}

// QRCodePNG renders the provisioning URI as a PNG image.
func (s *Service) QRCodePNG(uri string) ([]byte, error) {
	if strings.TrimSpace(uri) == "" {
		return nil, errors.New("totp: uri is required")
	}
	return qrcode.Encode(uri, qrcode.Medium, s.qrCodeSize)
}
