package providers

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/nwaqas/finfortress/internal/models"
	"github.com/nwaqas/finfortress/pkg/crypto"
)

var (
	// ErrInvalidCredentials is returned when the supplied email/password pair is invalid.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrAccountDisabled signals that the user has been deactivated.
	ErrAccountDisabled = errors.New("auth: account disabled")
	// ErrEmailTaken is returned when registering an email that already has an account.
	ErrEmailTaken = errors.New("auth: email already registered")
)

// LocalConfig defines tunable behaviour for the local provider.
type LocalConfig struct {
	MinPasswordLength int
	Clock             func() time.Time
}

// AuthenticateInput contains the credentials and client metadata for a login attempt.
type AuthenticateInput struct {
	Email     string
	Password  string
	IPAddress string
}

// RegisterInput captures the details required to register a new account.
type RegisterInput struct {
	Email       string
	Password    string
	DisplayName string
	Currency    string
}

// LocalProvider implements email/password authentication. Brute-force
// protection is handled by rate limiting at the transport layer, not by
// account lockout.
type LocalProvider struct {
	db          *gorm.DB
	clock       func() time.Time
	minPassword int
}

// NewLocalProvider builds a provider with sane defaults.
func NewLocalProvider(db *gorm.DB, cfg LocalConfig) (*LocalProvider, error) {
	if db == nil {
		return nil, errors.New("local provider: db is required")
	}

	minLen := cfg.MinPasswordLength
	if minLen <= 0 {
		minLen = 8
	}

	clock := time.Now
	if cfg.Clock != nil {
		clock = cfg.Clock
	}

	return &LocalProvider{
		db:          db,
		clock:       clock,
		minPassword: minLen,
	}, nil
}

// Authenticate verifies the supplied credentials and returns the user.
func (p *LocalProvider) Authenticate(input AuthenticateInput) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" || input.Password == "" {
		return nil, ErrInvalidCredentials
	}

	var user models.User
	err := p.db.Where("LOWER(email) = ?", email).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// Burn a hash comparison so unknown emails cost the same as
		// known ones.
		crypto.VerifyPassword("$2a$10$7EqJtq98hPqEX7fNZaFWoOhi5B0xN6NvQpn7cDxXF1Yy1R6dxWHy2", input.Password)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("local provider: query user: %w", err)
	}

	if !user.IsActive {
		return nil, ErrAccountDisabled
	}

	// Accounts provisioned through an external issuer carry a random
	// placeholder password and must sign in through that issuer.
	if provider := strings.ToLower(strings.TrimSpace(user.AuthProvider)); provider != "" && provider != "local" {
		return nil, ErrInvalidCredentials
	}

	if !crypto.VerifyPassword(user.Password, input.Password) {
		return nil, ErrInvalidCredentials
	}

	now := p.clock()
	updates := map[string]any{
		"last_login_at": &now,
		"last_login_ip": strings.TrimSpace(input.IPAddress),
	}
	if err := p.db.Model(&user).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("local provider: update login metadata: %w", err)
	}
	user.LastLoginAt = &now
	user.LastLoginIP = strings.TrimSpace(input.IPAddress)

	return &user, nil
}

// Register creates a new account with a hashed password.
func (p *LocalProvider) Register(input RegisterInput) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" {
		return nil, errors.New("local provider: email is required")
	}
	if len(input.Password) < p.minPassword {
		return nil, fmt.Errorf("local provider: password must be at least %d characters", p.minPassword)
	}

	var count int64
	if err := p.db.Model(&models.User{}).Where("LOWER(email) = ?", email).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("local provider: check email: %w", err)
	}
	if count > 0 {
		return nil, ErrEmailTaken
	}

	hashed, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("local provider: hash password: %w", err)
	}

	user := models.User{
		Email:       email,
		Password:    hashed,
		DisplayName: strings.TrimSpace(input.DisplayName),
		IsActive:    true,
	}
	if c := strings.ToUpper(strings.TrimSpace(input.Currency)); c != "" {
		user.Currency = c
	}

	if err := p.db.Create(&user).Error; err != nil {
		return nil, fmt.Errorf("local provider: create user: %w", err)
	}

	return &user, nil
}

// ChangePassword verifies the current password before storing a new one.
func (p *LocalProvider) ChangePassword(userID, current, next string) error {
	if len(next) < p.minPassword {
		return fmt.Errorf("local provider: password must be at least %d characters", p.minPassword)
	}

	var user models.User
	if err := p.db.Take(&user, "id = ?", userID).Error; err != nil {
		return fmt.Errorf("local provider: load user: %w", err)
	}

	if !crypto.VerifyPassword(user.Password, current) {
		return ErrInvalidCredentials
	}

	hashed, err := crypto.HashPassword(next)
	if err != nil {
		return fmt.Errorf("local provider: hash password: %w", err)
	}

	return p.db.Model(&user).Update("password", hashed).Error
}
