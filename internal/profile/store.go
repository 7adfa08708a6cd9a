package profile

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no profile document exists for a user.
var ErrNotFound = errors.New("profile: not found")

// Store persists security profiles. Implementations must make
// ConsumeRecoveryCode atomic: two devices racing on the same code may
// see at most one winner.
type Store interface {
	// LoadOrCreate fetches the user's profile, creating a minimal
	// document from the seed when none exists yet.
	LoadOrCreate(ctx context.Context, seed SecurityProfile) (*SecurityProfile, error)

	// Load fetches an existing profile or returns ErrNotFound.
	Load(ctx context.Context, userID string) (*SecurityProfile, error)

	// Apply merges a partial update into the stored document, bumping
	// the server-side timestamp. Unset patch fields are preserved.
	Apply(ctx context.Context, userID string, patch Patch) (*SecurityProfile, error)

	// ConsumeRecoveryCode marks a code digest as used if and only if it
	// belongs to the issued batch and has not been consumed. Returns
	// false when another device already used it or the digest is unknown.
	ConsumeRecoveryCode(ctx context.Context, userID, digest string) (bool, error)
}
