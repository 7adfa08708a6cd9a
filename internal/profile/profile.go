package profile

import (
	"errors"
	"strings"
	"time"
)

// SecurityProfile is the canonical per-user security document. It is the
// source of truth for second-factor state across devices; unlock grants
// are merely device-local caches derived from it.
type SecurityProfile struct {
	UserID      string `bson:"_id" json:"user_id"`
	Email       string `bson:"email" json:"email"`
	DisplayName string `bson:"displayName" json:"display_name"`

	PinHash string `bson:"pinHash,omitempty" json:"-"`

	TwoFactorEnabled bool   `bson:"twoFactorEnabled" json:"two_factor_enabled"`
	TOTPSecret       string `bson:"totpSecret,omitempty" json:"-"`

	RecoveryCodeHashes     []string `bson:"recoveryCodeHashes,omitempty" json:"-"`
	UsedRecoveryCodeHashes []string `bson:"usedRecoveryCodeHashes,omitempty" json:"-"`

	UpdatedAt time.Time `bson:"updatedAt" json:"updated_at"`
}

// Patch carries a partial profile update. Nil fields are left untouched
// so concurrent writers only overwrite what they actually changed.
type Patch struct {
	Email            *string
	DisplayName      *string
	PinHash          *string
	TwoFactorEnabled *bool
	TOTPSecret       *string

	// RecoveryCodeHashes replaces the full batch (regeneration).
	RecoveryCodeHashes []string
	// ResetUsedCodes clears consumption state alongside a new batch.
	ResetUsedCodes bool
}

// Validate enforces the document invariants.
func (p *SecurityProfile) Validate() error {
	if strings.TrimSpace(p.UserID) == "" {
		return errors.New("profile: user id is required")
	}

	if p.TwoFactorEnabled {
		if strings.TrimSpace(p.PinHash) == "" {
			return errors.New("profile: two-factor enabled without a pin")
		}
		if strings.TrimSpace(p.TOTPSecret) == "" {
			return errors.New("profile: two-factor enabled without an authenticator secret")
		}
		if len(p.RecoveryCodeHashes) == 0 {
			return errors.New("profile: two-factor enabled without recovery codes")
		}
	}

	known := make(map[string]struct{}, len(p.RecoveryCodeHashes))
	for _, h := range p.RecoveryCodeHashes {
		known[h] = struct{}{}
	}
	for _, h := range p.UsedRecoveryCodeHashes {
		if _, ok := known[h]; !ok {
			return errors.New("profile: used recovery code not in the issued batch")
		}
	}

	return nil
}

// HasRecoveryCode reports whether the digest belongs to the issued batch.
func (p *SecurityProfile) HasRecoveryCode(digest string) bool {
	for _, h := range p.RecoveryCodeHashes {
		if h == digest {
			return true
		}
	}
	return false
}

// RecoveryCodeUsed reports whether the digest has already been consumed.
func (p *SecurityProfile) RecoveryCodeUsed(digest string) bool {
	for _, h := range p.UsedRecoveryCodeHashes {
		if h == digest {
			return true
		}
	}
	return false
}

// RemainingRecoveryCodes counts codes still available for use.
func (p *SecurityProfile) RemainingRecoveryCodes() int {
	return len(p.RecoveryCodeHashes) - len(p.UsedRecoveryCodeHashes)
}
