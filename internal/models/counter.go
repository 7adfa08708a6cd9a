package models

// TransactionCounter allocates monotonically increasing sequence numbers
// for transaction codes. One row per user and YYMM period, bumped inside
// the same database transaction that inserts the ledger entry.
type TransactionCounter struct {
	UserID string `gorm:"primaryKey;type:uuid" json:"user_id"`
	Period string `gorm:"primaryKey;size:4" json:"period"`
	Seq    int64  `gorm:"not null;default:0" json:"seq"`
}

// TableName keeps the historical table name.
func (TransactionCounter) TableName() string {
	return "transaction_counters"
}
