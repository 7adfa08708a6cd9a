package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Asset holds a tracked holding such as gold, a vehicle, or property.
type Asset struct {
	BaseModel

	UserID string `gorm:"type:uuid;not null;index" json:"user_id"`
	User   *User  `gorm:"foreignKey:UserID" json:"-"`

	Name     string `gorm:"not null" json:"name"`
	Category string `gorm:"index" json:"category"`

	PurchaseValue decimal.Decimal `gorm:"type:decimal(18,2)" json:"purchase_value"`
	CurrentValue  decimal.Decimal `gorm:"type:decimal(18,2)" json:"current_value"`
	Currency      string          `gorm:"default:PKR" json:"currency"`

	AcquiredAt *time.Time `json:"acquired_at"`
	Note       string     `json:"note"`

	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Appreciation returns the gain or loss since purchase.
func (a *Asset) Appreciation() decimal.Decimal {
	return a.CurrentValue.Sub(a.PurchaseValue)
}
