package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// BudgetFund is a monthly envelope with a planned cap per spending head.
type BudgetFund struct {
	BaseModel

	UserID string `gorm:"type:uuid;not null;uniqueIndex:idx_fund_user_name" json:"user_id"`
	User   *User  `gorm:"foreignKey:UserID" json:"-"`

	Name string `gorm:"not null;uniqueIndex:idx_fund_user_name" json:"name"`
	Head string `gorm:"index" json:"head"`

	MonthlyCap decimal.Decimal `gorm:"type:decimal(18,2)" json:"monthly_cap"`
	Currency   string          `gorm:"default:PKR" json:"currency"`

	Archived bool `gorm:"default:false" json:"archived"`

	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
