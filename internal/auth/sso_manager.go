package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/nwaqas/finfortress/internal/auth/providers"
	"github.com/nwaqas/finfortress/internal/models"
	"github.com/nwaqas/finfortress/pkg/crypto"
)

var (
	// ErrSSOEmailRequired indicates the issuer did not supply a verified email address.
	ErrSSOEmailRequired = errors.New("sso manager: verified email is required")
	// ErrSSOUserNotFound is returned when the identity maps to no account and provisioning is disabled.
	ErrSSOUserNotFound = errors.New("sso manager: user not found")
	// ErrSSOUserDisabled signals that the mapped account is inactive.
	ErrSSOUserDisabled = errors.New("sso manager: user disabled")
	// ErrSSOProviderMismatch is returned when the email belongs to a password account.
	ErrSSOProviderMismatch = errors.New("sso manager: account uses a different sign-in method")
)

const ssoProvider = "oidc"

// SSOConfig exposes tunable behaviour for the SSOManager.
type SSOConfig struct {
	// AutoProvision creates an account for unknown verified emails.
	AutoProvision bool
	Clock         func() time.Time
}

// SSOManager maps identities returned by the external issuer to local users
// and issues sessions for them.
type SSOManager struct {
	db            *gorm.DB
	sessions      *SessionService
	autoProvision bool
	clock         func() time.Time
}

// NewSSOManager constructs an SSOManager.
func NewSSOManager(db *gorm.DB, sessions *SessionService, cfg SSOConfig) (*SSOManager, error) {
	if db == nil {
		return nil, errors.New("sso manager: db is required")
	}
	if sessions == nil {
		return nil, errors.New("sso manager: session service is required")
	}

	clock := time.Now
	if cfg.Clock != nil {
		clock = cfg.Clock
	}

	return &SSOManager{
		db:            db,
		sessions:      sessions,
		autoProvision: cfg.AutoProvision,
		clock:         clock,
	}, nil
}

// Resolve maps the identity to a local user and issues a token pair bound to
// the supplied session metadata.
func (m *SSOManager) Resolve(ctx context.Context, identity providers.Identity, meta SessionMetadata) (TokenPair, *models.User, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	user, err := m.LinkIdentity(ctx, identity)
	if err != nil {
		return TokenPair{}, nil, err
	}
	if !user.IsActive {
		return TokenPair{}, nil, ErrSSOUserDisabled
	}

	tokens, _, err := m.sessions.CreateSession(user.ID, meta)
	if err != nil {
		return TokenPair{}, nil, fmt.Errorf("sso manager: create session: %w", err)
	}

	now := m.clock()
	lastIP := strings.TrimSpace(meta.IPAddress)
	update := map[string]any{
		"last_login_at": now,
		"last_login_ip": lastIP,
	}
	if err := m.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", user.ID).Updates(update).Error; err == nil {
		user.LastLoginAt = &now
		user.LastLoginIP = lastIP
	}

	return tokens, user, nil
}

// LinkIdentity associates an external identity with a user account,
// provisioning one when allowed.
func (m *SSOManager) LinkIdentity(ctx context.Context, identity providers.Identity) (*models.User, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	email := strings.ToLower(strings.TrimSpace(identity.Email))
	if email == "" || !identity.EmailVerified {
		return nil, ErrSSOEmailRequired
	}

	subject := strings.TrimSpace(identity.Subject)

	var user models.User
	err := m.db.WithContext(ctx).Where("LOWER(email) = ?", email).Take(&user).Error
	switch {
	case err == nil:
		existing := strings.ToLower(strings.TrimSpace(user.AuthProvider))
		if existing != "" && existing != ssoProvider {
			return nil, ErrSSOProviderMismatch
		}

		updates := map[string]any{}
		if user.AuthProvider != ssoProvider {
			updates["auth_provider"] = ssoProvider
		}
		if subject != "" && strings.TrimSpace(user.AuthSubject) != subject {
			updates["auth_subject"] = subject
		}
		if name := strings.TrimSpace(identity.DisplayName); name != "" && name != user.DisplayName {
			updates["display_name"] = name
		}

		if len(updates) > 0 {
			if err := m.db.WithContext(ctx).Model(&user).Updates(updates).Error; err != nil {
				return nil, fmt.Errorf("sso manager: update user: %w", err)
			}
			if err := m.db.WithContext(ctx).Take(&user, "id = ?", user.ID).Error; err != nil {
				return nil, fmt.Errorf("sso manager: reload user: %w", err)
			}
		}

		return &user, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		if !m.autoProvision {
			return nil, ErrSSOUserNotFound
		}
		return m.provisionUser(ctx, identity, email)
	default:
		return nil, fmt.Errorf("sso manager: find user: %w", err)
	}
}

func (m *SSOManager) provisionUser(ctx context.Context, identity providers.Identity, email string) (*models.User, error) {
	// The placeholder password can never be presented: local login rejects
	// externally provisioned accounts before comparing hashes.
	placeholder, err := crypto.GenerateToken(32)
	if err != nil {
		return nil, fmt.Errorf("sso manager: generate placeholder: %w", err)
	}
	hashed, err := crypto.HashPassword(placeholder)
	if err != nil {
		return nil, fmt.Errorf("sso manager: hash placeholder: %w", err)
	}

	user := models.User{
		Email:        email,
		Password:     hashed,
		DisplayName:  strings.TrimSpace(identity.DisplayName),
		IsActive:     true,
		AuthProvider: ssoProvider,
		AuthSubject:  strings.TrimSpace(identity.Subject),
	}

	if err := m.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, fmt.Errorf("sso manager: create user: %w", err)
	}

	return &user, nil
}
