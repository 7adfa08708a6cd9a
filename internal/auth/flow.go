package auth

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nwaqas/finfortress/internal/auth/mfa"
	"github.com/nwaqas/finfortress/internal/auth/unlock"
	"github.com/nwaqas/finfortress/internal/profile"
	"github.com/nwaqas/finfortress/pkg/crypto"
	apperrors "github.com/nwaqas/finfortress/pkg/errors"
	"github.com/nwaqas/finfortress/pkg/logger"
	"github.com/nwaqas/finfortress/pkg/metrics"
)

// UnlockState describes where a device sits in the unlock flow.
type UnlockState string

const (
	// StateUnlocked means the device holds a live grant.
	StateUnlocked UnlockState = "unlocked"
	// StateEnrollmentRequired means the account has no second factor yet.
	StateEnrollmentRequired UnlockState = "enrollment_required"
	// StateChallengeRequired means the device must verify PIN plus a
	// second factor.
	StateChallengeRequired UnlockState = "challenge_required"
)

var sixDigits = regexp.MustCompile(`^\d{6}$`)

// FlowStatus is returned after resolving a device against a profile.
type FlowStatus struct {
	State      UnlockState              `json:"state"`
	Profile    *profile.SecurityProfile `json:"profile"`
	Grant      *unlock.Grant            `json:"grant,omitempty"`
	PinEnabled bool                     `json:"pin_enabled"`
}

// EnrollmentTicket holds the material a user needs to register an
// authenticator app. The secret is shown once; only its enabled form is
// ever persisted.
type EnrollmentTicket struct {
	Secret string `json:"secret"`
	URI    string `json:"uri"`
	QRPNG  []byte `json:"qr_png"`
}

// EnrollmentResult is returned once the first valid code confirms the
// pending secret. RecoveryCodes are plaintext and never shown again.
type EnrollmentResult struct {
	RecoveryCodes []string      `json:"recovery_codes"`
	Grant         *unlock.Grant `json:"grant"`
}

// FlowOption customises the flow service.
type FlowOption func(*FlowService)

// WithFlowClock injects a custom clock, primarily for testing.
func WithFlowClock(clock func() time.Time) FlowOption {
	return func(s *FlowService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// FlowService drives the unlock state machine: profile resolution,
// authenticator enrollment, and the PIN-plus-second-factor challenge.
// Transitions for a given user are serialized.
type FlowService struct {
	profiles profile.Store
	totp     *mfa.Service
	grants   *unlock.Tracker

	now func() time.Time
	log *zap.Logger

	mu       sync.Mutex
	userLock map[string]*sync.Mutex
	pending  map[string]string   // userID -> unconfirmed TOTP secret
	issued   map[string][]string // userID -> plaintext codes awaiting one-time download
}

// NewFlowService constructs the unlock flow service.
func NewFlowService(profiles profile.Store, totp *mfa.Service, grants *unlock.Tracker, opts ...FlowOption) (*FlowService, error) {
	if profiles == nil {
		return nil, errors.New("auth: profile store is required")
	}
	if totp == nil {
		return nil, errors.New("auth: totp service is required")
	}
	if grants == nil {
		return nil, errors.New("auth: unlock tracker is required")
	}

	s := &FlowService{
		profiles: profiles,
		totp:     totp,
		grants:   grants,
		now:      time.Now,
		log:      logger.WithModule("auth.flow"),
		userLock: make(map[string]*sync.Mutex),
		pending:  make(map[string]string),
		issued:   make(map[string][]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *FlowService) lockUser(userID string) func() {
	s.mu.Lock()
	l, ok := s.userLock[userID]
	if !ok {
		l = &sync.Mutex{}
		s.userLock[userID] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Resolve loads (or creates) the user's security profile and decides
// what the device must do next. A profile load failure blocks the flow
// outright: there is no unlock without a readable profile.
func (s *FlowService) Resolve(ctx context.Context, seed profile.SecurityProfile, deviceID string) (*FlowStatus, error) {
	doc, err := s.profiles.LoadOrCreate(ctx, seed)
	if err != nil {
		s.log.Error("profile resolution failed", zap.String("user_id", seed.UserID), zap.Error(err))
		return nil, apperrors.ErrProfileUnavailable.WithInternal(err)
	}

	status := &FlowStatus{Profile: doc, PinEnabled: doc.PinHash != ""}

	if !doc.TwoFactorEnabled {
		status.State = StateEnrollmentRequired
		return status, nil
	}

	ok, grant, err := s.grants.Check(ctx, doc.UserID, deviceID)
	if err != nil {
		// A broken grant cache never bypasses the challenge.
		s.log.Warn("grant check failed, forcing challenge", zap.String("user_id", doc.UserID), zap.Error(err))
		status.State = StateChallengeRequired
		return status, nil
	}
	if ok {
		status.State = StateUnlocked
		status.Grant = grant
		return status, nil
	}

	status.State = StateChallengeRequired
	return status, nil
}

// SetPin digests and stores a six digit security PIN on the profile.
func (s *FlowService) SetPin(ctx context.Context, userID, pin string) error {
	pin = strings.TrimSpace(pin)
	if !sixDigits.MatchString(pin) {
		return apperrors.NewBadRequest("PIN must be exactly six digits")
	}

	unlockUser := s.lockUser(userID)
	defer unlockUser()

	digest := crypto.DigestHex(pin)
	if _, err := s.profiles.Apply(ctx, userID, profile.Patch{PinHash: &digest}); err != nil {
		return apperrors.ErrProfileUnavailable.WithInternal(err)
	}
	return nil
}

// StartEnrollment provisions a fresh secret for the authenticator app.
// The secret stays pending in memory until a valid code confirms it.
func (s *FlowService) StartEnrollment(ctx context.Context, userID, accountName string) (*EnrollmentTicket, error) {
	doc, err := s.profiles.Load(ctx, userID)
	if err != nil {
		return nil, apperrors.ErrProfileUnavailable.WithInternal(err)
	}
	if doc.TwoFactorEnabled {
		return nil, apperrors.New("auth.already_enrolled", "Two-factor authentication is already enabled", 409)
	}

	secret, err := s.totp.GenerateSecret()
	if err != nil {
		return nil, apperrors.ErrInternalServer.WithInternal(err)
	}

	uri, err := s.totp.ProvisioningURI(secret, accountName)
	if err != nil {
		return nil, apperrors.ErrInternalServer.WithInternal(err)
	}

	png, err := s.totp.QRCodePNG(uri)
	if err != nil {
		return nil, apperrors.ErrInternalServer.WithInternal(err)
	}

	unlockUser := s.lockUser(userID)
	s.pending[userID] = secret
	unlockUser()

	return &EnrollmentTicket{Secret: secret, URI: uri, QRPNG: png}, nil
}

// PendingTicket re-derives the provisioning material for an enrollment that
// was started but not yet confirmed, so the QR image can be fetched again
// without rotating the secret.
func (s *FlowService) PendingTicket(userID, accountName string) (*EnrollmentTicket, error) {
	unlockUser := s.lockUser(userID)
	secret, ok := s.pending[userID]
	unlockUser()
	if !ok {
		return nil, apperrors.New("auth.no_enrollment", "No enrollment in progress", 409)
	}

	uri, err := s.totp.ProvisioningURI(secret, accountName)
	if err != nil {
		return nil, apperrors.ErrInternalServer.WithInternal(err)
	}
	png, err := s.totp.QRCodePNG(uri)
	if err != nil {
		return nil, apperrors.ErrInternalServer.WithInternal(err)
	}

	return &EnrollmentTicket{Secret: secret, URI: uri, QRPNG: png}, nil
}

// CancelEnrollment abandons a pending enrollment. The confirmed profile,
// if any, is untouched.
func (s *FlowService) CancelEnrollment(userID string) error {
	unlockUser := s.lockUser(userID)
	defer unlockUser()

	if _, ok := s.pending[userID]; !ok {
		return apperrors.New("auth.no_enrollment", "No enrollment in progress", 409)
	}
	delete(s.pending, userID)
	return nil
}

// TakeRecoveryCodes hands out the plaintext recovery batch exactly once,
// straight after enrollment or regeneration. Later calls find nothing: only
// digests are kept.
func (s *FlowService) TakeRecoveryCodes(userID string) ([]string, bool) {
	unlockUser := s.lockUser(userID)
	defer unlockUser()

	codes, ok := s.issued[userID]
	if ok {
		delete(s.issued, userID)
	}
	return codes, ok
}

// ConfirmEnrollment checks the first code from the authenticator app
// against the pending secret. On success the profile flips to enabled
// with a fresh recovery batch, and the device is unlocked. If the
// profile write fails nothing is enabled and no grant is issued.
func (s *FlowService) ConfirmEnrollment(ctx context.Context, userID, deviceID, code string) (*EnrollmentResult, error) {
	unlockUser := s.lockUser(userID)
	defer unlockUser()

	secret, ok := s.pending[userID]
	if !ok {
		return nil, apperrors.New("auth.no_enrollment", "No enrollment in progress", 409)
	}

	doc, err := s.profiles.Load(ctx, userID)
	if err != nil {
		return nil, apperrors.ErrProfileUnavailable.WithInternal(err)
	}
	// The PIN is the first unlock factor; enabling codes without one
	// would leave the challenge with a single factor.
	if doc.PinHash == "" {
		return nil, apperrors.New("auth.pin_required", "Set a PIN before enabling two-factor authentication", 409)
	}

	valid, err := s.totp.ValidateCodeAt(secret, code, s.now())
	if err != nil {
		return nil, apperrors.NewBadRequest("Code is required")
	}
	if !valid {
		metrics.RecordChallenge("totp", false)
		return nil, apperrors.ErrCodeInvalid
	}

	codes, err := s.totp.GenerateRecoveryCodes()
	if err != nil {
		return nil, apperrors.ErrInternalServer.WithInternal(err)
	}

	hashes := make([]string, len(codes))
	for i, c := range codes {
		hashes[i] = mfa.HashRecoveryCode(c)
	}

	enabled := true
	if _, err := s.profiles.Apply(ctx, userID, profile.Patch{
		TwoFactorEnabled:   &enabled,
		TOTPSecret:         &secret,
		RecoveryCodeHashes: hashes,
		ResetUsedCodes:     true,
	}); err != nil {
		s.log.Error("enrollment persist failed", zap.String("user_id", userID), zap.Error(err))
		return nil, apperrors.ErrProfileUnavailable.WithInternal(err)
	}

	delete(s.pending, userID)
	s.issued[userID] = append([]string(nil), codes...)
	metrics.EnrollmentsCompleted.Inc()

	grant, err := s.grants.Issue(ctx, userID, deviceID)
	if err != nil {
		// Enrollment stuck; the next visit goes through the challenge.
		s.log.Warn("grant issue failed after enrollment", zap.String("user_id", userID), zap.Error(err))
		return &EnrollmentResult{RecoveryCodes: codes}, nil
	}
	metrics.UnlockGrantsIssued.Inc()

	return &EnrollmentResult{RecoveryCodes: codes, Grant: grant}, nil
}

// VerifyChallenge runs the unlock challenge: the PIN gates everything,
// then the second input is treated as an authenticator code when it is
// exactly six digits and as a recovery code otherwise.
func (s *FlowService) VerifyChallenge(ctx context.Context, userID, deviceID, pin, second string) (*unlock.Grant, error) {
	unlockUser := s.lockUser(userID)
	defer unlockUser()

	doc, err := s.profiles.Load(ctx, userID)
	if err != nil {
		return nil, apperrors.ErrProfileUnavailable.WithInternal(err)
	}
	if !doc.TwoFactorEnabled {
		return nil, apperrors.New("auth.not_enrolled", "Two-factor authentication is not enabled", 409)
	}

	// PIN first: a wrong PIN fails before any code is inspected. An
	// enabled profile always carries a PIN hash, so an empty hash can
	// never match and the challenge fails closed.
	if !crypto.DigestEqual(doc.PinHash, crypto.DigestHex(strings.TrimSpace(pin))) {
		metrics.RecordChallenge("pin", false)
		return nil, apperrors.ErrPinMismatch
	}

	second = strings.TrimSpace(second)
	if second == "" {
		return nil, apperrors.NewBadRequest("A verification code is required")
	}

	if sixDigits.MatchString(second) {
		valid, err := s.totp.ValidateCodeAt(doc.TOTPSecret, second, s.now())
		if err != nil || !valid {
			metrics.RecordChallenge("totp", false)
			return nil, apperrors.ErrCodeInvalid
		}
		metrics.RecordChallenge("totp", true)
	} else {
		if err := s.consumeRecoveryCode(ctx, doc, second); err != nil {
			return nil, err
		}
		metrics.RecordChallenge("recovery", true)
		metrics.RecoveryCodesConsumed.Inc()
	}

	grant, err := s.grants.Issue(ctx, userID, deviceID)
	if err != nil {
		s.log.Error("grant issue failed", zap.String("user_id", userID), zap.Error(err))
		return nil, apperrors.ErrInternalServer.WithInternal(err)
	}
	metrics.UnlockGrantsIssued.Inc()

	return grant, nil
}

func (s *FlowService) consumeRecoveryCode(ctx context.Context, doc *profile.SecurityProfile, code string) error {
	digest := mfa.HashRecoveryCode(code)

	consumed, err := s.profiles.ConsumeRecoveryCode(ctx, doc.UserID, digest)
	if err != nil {
		// Persistence failure must not hand out an unlock.
		s.log.Error("recovery code consume failed", zap.String("user_id", doc.UserID), zap.Error(err))
		return apperrors.ErrProfileUnavailable.WithInternal(err)
	}
	if consumed {
		return nil
	}

	metrics.RecordChallenge("recovery", false)
	if doc.HasRecoveryCode(digest) {
		return apperrors.ErrRecoveryCodeUsed
	}
	return apperrors.ErrRecoveryCodeInvalid
}

// RegenerateRecoveryCodes issues a fresh batch after a valid
// authenticator code, invalidating all previous codes.
func (s *FlowService) RegenerateRecoveryCodes(ctx context.Context, userID, code string) ([]string, error) {
	unlockUser := s.lockUser(userID)
	defer unlockUser()

	doc, err := s.profiles.Load(ctx, userID)
	if err != nil {
		return nil, apperrors.ErrProfileUnavailable.WithInternal(err)
	}
	if !doc.TwoFactorEnabled {
		return nil, apperrors.New("auth.not_enrolled", "Two-factor authentication is not enabled", 409)
	}

	valid, err := s.totp.ValidateCodeAt(doc.TOTPSecret, code, s.now())
	if err != nil || !valid {
		metrics.RecordChallenge("totp", false)
		return nil, apperrors.ErrCodeInvalid
	}

	codes, err := s.totp.GenerateRecoveryCodes()
	if err != nil {
		return nil, apperrors.ErrInternalServer.WithInternal(err)
	}

	hashes := make([]string, len(codes))
	for i, c := range codes {
		hashes[i] = mfa.HashRecoveryCode(c)
	}

	if _, err := s.profiles.Apply(ctx, userID, profile.Patch{
		RecoveryCodeHashes: hashes,
		ResetUsedCodes:     true,
	}); err != nil {
		return nil, apperrors.ErrProfileUnavailable.WithInternal(err)
	}

	s.issued[userID] = append([]string(nil), codes...)

	return codes, nil
}

// Lock drops the user's unlock grant on the device.
func (s *FlowService) Lock(ctx context.Context, userID, deviceID string) error {
	return s.grants.Clear(ctx, userID, deviceID)
}
