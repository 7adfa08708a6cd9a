package services

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/nwaqas/finfortress/internal/database/testutil"
	"github.com/nwaqas/finfortress/internal/models"
)

func newLoanFixture(t *testing.T) (*LoanService, *models.User) {
	t.Helper()

	db := testutil.MustOpenTestDB(t)
	user := models.User{Email: "nadia@example.com", Password: "x"}
	require.NoError(t, db.Create(&user).Error)

	svc, err := NewLoanService(db)
	require.NoError(t, err)
	return svc, &user
}

func TestCreateLoanValidation(t *testing.T) {
	svc, user := newLoanFixture(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, user.ID, CreateLoanInput{Direction: models.LoanGiven, Principal: decimal.NewFromInt(100)})
	require.Error(t, err, "counterparty required")

	_, err = svc.Create(ctx, user.ID, CreateLoanInput{Counterparty: "Ali", Direction: "sideways", Principal: decimal.NewFromInt(100)})
	require.Error(t, err, "direction must be given or taken")

	_, err = svc.Create(ctx, user.ID, CreateLoanInput{Counterparty: "Ali", Direction: models.LoanGiven, Principal: decimal.Zero})
	require.Error(t, err, "principal must be positive")
}

func TestRecordPaymentSettlesLoan(t *testing.T) {
	svc, user := newLoanFixture(t)
	ctx := context.Background()

	loan, err := svc.Create(ctx, user.ID, CreateLoanInput{
		Counterparty: "Ali",
		Direction:    models.LoanGiven,
		Principal:    decimal.NewFromInt(50000),
	})
	require.NoError(t, err)

	loan, err = svc.RecordPayment(ctx, user.ID, loan.ID, decimal.NewFromInt(20000), "first installment")
	require.NoError(t, err)
	require.True(t, loan.Outstanding().Equal(decimal.NewFromInt(30000)))
	require.Nil(t, loan.SettledAt)

	loan, err = svc.RecordPayment(ctx, user.ID, loan.ID, decimal.NewFromInt(30000), "final")
	require.NoError(t, err)
	require.True(t, loan.Outstanding().IsZero())
	require.NotNil(t, loan.SettledAt)

	// Nothing more can be paid against a settled loan.
	_, err = svc.RecordPayment(ctx, user.ID, loan.ID, decimal.NewFromInt(1), "")
	require.ErrorIs(t, err, ErrLoanSettled)
}

func TestRecordPaymentRejectsOverpayment(t *testing.T) {
	svc, user := newLoanFixture(t)
	ctx := context.Background()

	loan, err := svc.Create(ctx, user.ID, CreateLoanInput{
		Counterparty: "Ali",
		Direction:    models.LoanTaken,
		Principal:    decimal.NewFromInt(1000),
	})
	require.NoError(t, err)

	_, err = svc.RecordPayment(ctx, user.ID, loan.ID, decimal.NewFromInt(1001), "")
	require.ErrorIs(t, err, ErrOverpayment)
}

func TestLoanGetIncludesPayments(t *testing.T) {
	svc, user := newLoanFixture(t)
	ctx := context.Background()

	loan, err := svc.Create(ctx, user.ID, CreateLoanInput{
		Counterparty: "Ali",
		Direction:    models.LoanGiven,
		Principal:    decimal.NewFromInt(5000),
	})
	require.NoError(t, err)

	_, err = svc.RecordPayment(ctx, user.ID, loan.ID, decimal.NewFromInt(2000), "partial")
	require.NoError(t, err)

	got, err := svc.Get(ctx, user.ID, loan.ID)
	require.NoError(t, err)
	require.Len(t, got.Payments, 1)
	require.Equal(t, "partial", got.Payments[0].Note)
}

func TestLoanSummary(t *testing.T) {
	svc, user := newLoanFixture(t)
	ctx := context.Background()

	given, err := svc.Create(ctx, user.ID, CreateLoanInput{
		Counterparty: "Ali", Direction: models.LoanGiven, Principal: decimal.NewFromInt(50000),
	})
	require.NoError(t, err)
	_, err = svc.Create(ctx, user.ID, CreateLoanInput{
		Counterparty: "Bank", Direction: models.LoanTaken, Principal: decimal.NewFromInt(200000),
	})
	require.NoError(t, err)

	_, err = svc.RecordPayment(ctx, user.ID, given.ID, decimal.NewFromInt(10000), "")
	require.NoError(t, err)

	summary, err := svc.Summary(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, 2, summary.OpenCount)
	require.True(t, summary.OutstandingGiven.Equal(decimal.NewFromInt(40000)))
	require.True(t, summary.OutstandingTaken.Equal(decimal.NewFromInt(200000)))
}

func TestLoanClockInjection(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	user := models.User{Email: "a@b.c", Password: "x"}
	require.NoError(t, db.Create(&user).Error)

	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, err := NewLoanService(db, WithLoanClock(func() time.Time { return fixed }))
	require.NoError(t, err)

	loan, err := svc.Create(context.Background(), user.ID, CreateLoanInput{
		Counterparty: "Ali", Direction: models.LoanGiven, Principal: decimal.NewFromInt(100),
	})
	require.NoError(t, err)
	require.True(t, loan.IssuedAt.Equal(fixed))
}
