package unlock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nwaqas/finfortress/internal/cache"
)

// DefaultTTL is how long a device stays unlocked after a successful
// second-factor verification.
const DefaultTTL = 12 * time.Hour

// Grant records that a device passed verification. It is a convenience
// cache, not a credential: clearing it only forces a re-challenge.
type Grant struct {
	UserID    string    `json:"user_id"`
	DeviceID  string    `json:"device_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Option customises the tracker.
type Option func(*Tracker)

// WithTTL overrides the unlock window.
func WithTTL(ttl time.Duration) Option {
	return func(t *Tracker) {
		if ttl > 0 {
			t.ttl = ttl
		}
	}
}

// WithClock injects a custom clock, primarily for testing.
func WithClock(clock func() time.Time) Option {
	return func(t *Tracker) {
		if clock != nil {
			t.now = clock
		}
	}
}

// Tracker issues and checks device-scoped unlock grants backed by the
// shared cache store.
type Tracker struct {
	store cache.Store
	ttl   time.Duration
	now   func() time.Time
}

// NewTracker constructs a tracker.
func NewTracker(store cache.Store, opts ...Option) (*Tracker, error) {
	if store == nil {
		return nil, errors.New("unlock: store is required")
	}

	t := &Tracker{
		store: store,
		ttl:   DefaultTTL,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Keys carry the user so a device identifier shared between accounts
// cannot clobber another user's grant.
func grantKey(userID, deviceID string) string {
	return "unlock:" + userID + ":" + deviceID
}

// Issue records an unlock grant for the device, valid for the tracker TTL.
func (t *Tracker) Issue(ctx context.Context, userID, deviceID string) (*Grant, error) {
	userID = strings.TrimSpace(userID)
	deviceID = strings.TrimSpace(deviceID)
	if userID == "" || deviceID == "" {
		return nil, errors.New("unlock: user id and device id are required")
	}

	grant := Grant{
		UserID:    userID,
		DeviceID:  deviceID,
		ExpiresAt: t.now().Add(t.ttl),
	}

	payload, err := json.Marshal(grant)
	if err != nil {
		return nil, fmt.Errorf("unlock: marshal grant: %w", err)
	}

	if err := t.store.Set(ctx, grantKey(userID, deviceID), payload, t.ttl); err != nil {
		return nil, fmt.Errorf("unlock: store grant: %w", err)
	}

	return &grant, nil
}

// Check reports whether the device currently holds a live grant for the
// user. An expired or mismatched grant is treated as absent.
func (t *Tracker) Check(ctx context.Context, userID, deviceID string) (bool, *Grant, error) {
	payload, ok, err := t.store.Get(ctx, grantKey(userID, deviceID))
	if err != nil {
		return false, nil, fmt.Errorf("unlock: load grant: %w", err)
	}
	if !ok {
		return false, nil, nil
	}

	var grant Grant
	if err := json.Unmarshal(payload, &grant); err != nil {
		// A corrupt record cannot vouch for anything.
		_ = t.store.Delete(ctx, grantKey(userID, deviceID))
		return false, nil, nil
	}

	if grant.UserID != userID || !t.now().Before(grant.ExpiresAt) {
		return false, nil, nil
	}

	return true, &grant, nil
}

// Clear drops the device's grant for the user, forcing a fresh challenge.
func (t *Tracker) Clear(ctx context.Context, userID, deviceID string) error {
	return t.store.Delete(ctx, grantKey(userID, deviceID))
}
