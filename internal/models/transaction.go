package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Flow types and their balance impact.
const (
	FlowIncome                = "income"
	FlowExpense               = "expense"
	FlowLoanGiven             = "loan_given"
	FlowLoanTaken             = "loan_taken"
	FlowLoanRepaymentPaid     = "loan_repayment_paid"
	FlowLoanRepaymentReceived = "loan_repayment_received"
	FlowAssetPurchase         = "asset_purchase"
	FlowAssetSale             = "asset_sale"
	FlowTransferIn            = "transfer_in"
	FlowTransferOut           = "transfer_out"
	FlowAdjustment            = "adjustment"
)

// Transaction is a single ledger entry. Codes are unique per user and
// follow the TXN-YYMM-<uid6>-<seq> pattern.
type Transaction struct {
	BaseModel

	UserID string `gorm:"type:uuid;not null;index:idx_tx_user_occurred" json:"user_id"`
	User   *User  `gorm:"foreignKey:UserID" json:"-"`

	Code     string `gorm:"uniqueIndex;not null" json:"code"`
	FlowType string `gorm:"not null;index" json:"flow_type"`
	Head     string `gorm:"index" json:"head"`
	Account  string `json:"account"`

	Amount   decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"amount"`
	Currency string          `gorm:"default:PKR" json:"currency"`

	Note       string    `json:"note"`
	OccurredAt time.Time `gorm:"not null;index:idx_tx_user_occurred" json:"occurred_at"`

	// AuditTrail accumulates change records: {action, note, at_ms, at_iso, before, after}.
	AuditTrail datatypes.JSON `json:"audit_trail,omitempty"`

	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Impact returns the signed balance effect of a flow type: +1 for
// inflows, -1 for outflows, 0 for neutral movements.
func Impact(flowType string) int {
	switch flowType {
	case FlowIncome, FlowLoanTaken, FlowLoanRepaymentReceived, FlowAssetSale, FlowTransferIn:
		return 1
	case FlowExpense, FlowLoanGiven, FlowLoanRepaymentPaid, FlowAssetPurchase, FlowTransferOut:
		return -1
	default:
		return 0
	}
}

// SignedAmount applies the flow impact to the transaction amount.
func (t *Transaction) SignedAmount() decimal.Decimal {
	switch Impact(t.FlowType) {
	case 1:
		return t.Amount
	case -1:
		return t.Amount.Neg()
	default:
		return decimal.Zero
	}
}
