package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestImpact(t *testing.T) {
	require.Equal(t, 1, Impact(FlowIncome))
	require.Equal(t, 1, Impact(FlowLoanTaken))
	require.Equal(t, 1, Impact(FlowLoanRepaymentReceived))
	require.Equal(t, 1, Impact(FlowAssetSale))
	require.Equal(t, 1, Impact(FlowTransferIn))
	require.Equal(t, -1, Impact(FlowExpense))
	require.Equal(t, -1, Impact(FlowLoanGiven))
	require.Equal(t, -1, Impact(FlowLoanRepaymentPaid))
	require.Equal(t, -1, Impact(FlowAssetPurchase))
	require.Equal(t, -1, Impact(FlowTransferOut))
	require.Equal(t, 0, Impact(FlowAdjustment))
	require.Equal(t, 0, Impact("unknown"))
}

func TestTransactionSignedAmount(t *testing.T) {
	amount := decimal.NewFromInt(2500)

	tx := Transaction{FlowType: FlowExpense, Amount: amount}
	require.True(t, tx.SignedAmount().Equal(amount.Neg()))

	tx.FlowType = FlowIncome
	require.True(t, tx.SignedAmount().Equal(amount))

	tx.FlowType = FlowAdjustment
	require.True(t, tx.SignedAmount().IsZero())
}

func TestUserShortID(t *testing.T) {
	u := User{ID: "a1b2c3d4-0000-0000-0000-000000000000"}
	require.Equal(t, "a1b2c3", u.ShortID())

	short := User{ID: "ab"}
	require.Equal(t, "ab", short.ShortID())
}

func TestSessionActive(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	s := Session{ExpiresAt: now.Add(time.Hour)}
	require.True(t, s.Active(now))
	require.False(t, s.Active(now.Add(2*time.Hour)))

	revoked := now
	s.RevokedAt = &revoked
	require.False(t, s.Active(now))
}

func TestLoanOutstanding(t *testing.T) {
	l := Loan{
		Principal: decimal.NewFromInt(50000),
		Repaid:    decimal.NewFromInt(12500),
	}
	require.True(t, l.Outstanding().Equal(decimal.NewFromInt(37500)))
}
