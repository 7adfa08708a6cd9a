package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Loan directions.
const (
	LoanGiven = "given"
	LoanTaken = "taken"
)

// Loan records money lent to or borrowed from a counterparty.
type Loan struct {
	BaseModel

	UserID string `gorm:"type:uuid;not null;index" json:"user_id"`
	User   *User  `gorm:"foreignKey:UserID" json:"-"`

	Counterparty string `gorm:"not null" json:"counterparty"`
	Direction    string `gorm:"not null;index" json:"direction"`

	Principal decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"principal"`
	Repaid    decimal.Decimal `gorm:"type:decimal(18,2)" json:"repaid"`
	Currency  string          `gorm:"default:PKR" json:"currency"`

	IssuedAt time.Time  `json:"issued_at"`
	DueAt    *time.Time `json:"due_at"`
	SettledAt *time.Time `json:"settled_at"`

	Note string `json:"note"`

	Payments []LoanPayment `gorm:"foreignKey:LoanID" json:"payments,omitempty"`

	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Outstanding returns the remaining balance on the loan.
func (l *Loan) Outstanding() decimal.Decimal {
	return l.Principal.Sub(l.Repaid)
}

// LoanPayment is a single repayment against a loan.
type LoanPayment struct {
	BaseModel

	LoanID string `gorm:"type:uuid;not null;index" json:"loan_id"`
	Loan   *Loan  `gorm:"foreignKey:LoanID" json:"-"`

	Amount decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"amount"`
	PaidAt time.Time       `gorm:"not null" json:"paid_at"`
	Note   string          `json:"note"`
}
