package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is a local account. Two-factor material lives in the security
// profile document store, not in this table.
type User struct {
	ID          string `gorm:"primaryKey;type:uuid" json:"id"`
	Email       string `gorm:"uniqueIndex;not null" json:"email"`
	Password    string `gorm:"not null" json:"-"`
	DisplayName string `json:"display_name"`

	Currency string `gorm:"default:PKR" json:"currency"`

	// AuthProvider records which identity source owns the account; an
	// account created through the OIDC popup cannot later be signed into
	// with a password.
	AuthProvider string `gorm:"default:local" json:"auth_provider"`
	AuthSubject  string `gorm:"index" json:"-"`

	IsActive bool `gorm:"default:true" json:"is_active"`

	Sessions []Session `gorm:"foreignKey:UserID" json:"-"`

	LastLoginAt *time.Time `json:"last_login_at"`
	LastLoginIP string     `json:"last_login_ip"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate ensures a UUID is present before persisting.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// ShortID returns the first six characters of the user ID, used when
// composing transaction codes.
func (u *User) ShortID() string {
	if len(u.ID) < 6 {
		return u.ID
	}
	return u.ID[:6]
}
