package profile

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-process Store for development and tests. It
// honours the same merge and consumption semantics as the Mongo store.
type MemoryStore struct {
	mu   sync.Mutex
	docs map[string]*SecurityProfile
	now  func() time.Time
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs: make(map[string]*SecurityProfile),
		now:  time.Now,
	}
}

func (s *MemoryStore) LoadOrCreate(_ context.Context, seed SecurityProfile) (*SecurityProfile, error) {
	if strings.TrimSpace(seed.UserID) == "" {
		return nil, errors.New("profile: user id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[seed.UserID]
	if !ok {
		doc = &SecurityProfile{
			UserID:           seed.UserID,
			Email:            seed.Email,
			DisplayName:      seed.DisplayName,
			PinHash:          seed.PinHash,
			TwoFactorEnabled: seed.TwoFactorEnabled,
		}
		s.docs[seed.UserID] = doc
	}
	doc.UpdatedAt = s.now()

	cpy := cloneProfile(doc)
	return &cpy, nil
}

func (s *MemoryStore) Load(_ context.Context, userID string) (*SecurityProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[userID]
	if !ok {
		return nil, ErrNotFound
	}
	cpy := cloneProfile(doc)
	return &cpy, nil
}

func (s *MemoryStore) Apply(_ context.Context, userID string, patch Patch) (*SecurityProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[userID]
	if !ok {
		return nil, ErrNotFound
	}

	if patch.Email != nil {
		doc.Email = *patch.Email
	}
	if patch.DisplayName != nil {
		doc.DisplayName = *patch.DisplayName
	}
	if patch.PinHash != nil {
		doc.PinHash = *patch.PinHash
	}
	if patch.TwoFactorEnabled != nil {
		doc.TwoFactorEnabled = *patch.TwoFactorEnabled
	}
	if patch.TOTPSecret != nil {
		doc.TOTPSecret = *patch.TOTPSecret
	}
	if patch.RecoveryCodeHashes != nil {
		doc.RecoveryCodeHashes = append([]string(nil), patch.RecoveryCodeHashes...)
	}
	if patch.ResetUsedCodes {
		doc.UsedRecoveryCodeHashes = nil
	}
	doc.UpdatedAt = s.now()

	cpy := cloneProfile(doc)
	return &cpy, nil
}

func (s *MemoryStore) ConsumeRecoveryCode(_ context.Context, userID, digest string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[userID]
	if !ok {
		return false, nil
	}
	if !doc.HasRecoveryCode(digest) || doc.RecoveryCodeUsed(digest) {
		return false, nil
	}

	doc.UsedRecoveryCodeHashes = append(doc.UsedRecoveryCodeHashes, digest)
	doc.UpdatedAt = s.now()
	return true, nil
}

func cloneProfile(doc *SecurityProfile) SecurityProfile {
	cpy := *doc
	cpy.RecoveryCodeHashes = append([]string(nil), doc.RecoveryCodeHashes...)
	cpy.UsedRecoveryCodeHashes = append([]string(nil), doc.UsedRecoveryCodeHashes...)
	return cpy
}
