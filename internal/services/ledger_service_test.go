package services

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/nwaqas/finfortress/internal/auditctx"
	"github.com/nwaqas/finfortress/internal/database/testutil"
	"github.com/nwaqas/finfortress/internal/models"
)

func newLedgerFixture(t *testing.T) (*LedgerService, *models.User, *gorm.DB) {
	t.Helper()

	db := testutil.MustOpenTestDB(t)
	user := models.User{Email: "nadia@example.com", Password: "x", Currency: "PKR"}
	require.NoError(t, db.Create(&user).Error)

	svc, err := NewLedgerService(db)
	require.NoError(t, err)
	return svc, &user, db
}

func TestRecordAllocatesSequentialCodes(t *testing.T) {
	svc, user, _ := newLedgerFixture(t)
	ctx := context.Background()

	occurred := time.Date(2025, 4, 15, 10, 0, 0, 0, time.UTC)

	for i := 1; i <= 3; i++ {
		entry, err := svc.Record(ctx, user, RecordInput{
			FlowType:   models.FlowExpense,
			Head:       "Food & Groceries",
			Account:    "Meezan Bank",
			Amount:     decimal.NewFromInt(1500),
			OccurredAt: occurred,
		})
		require.NoError(t, err)
		require.Equal(t, fmt.Sprintf("TXN-2504-%s-%07d", user.ShortID(), i), entry.Code)
		require.Equal(t, "PKR", entry.Currency, "falls back to the user currency")
	}
}

func TestRecordCounterIsScopedToMonth(t *testing.T) {
	svc, user, _ := newLedgerFixture(t)
	ctx := context.Background()

	april := time.Date(2025, 4, 15, 0, 0, 0, 0, time.UTC)
	may := time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC)

	first, err := svc.Record(ctx, user, RecordInput{FlowType: models.FlowIncome, Amount: decimal.NewFromInt(100), OccurredAt: april})
	require.NoError(t, err)
	second, err := svc.Record(ctx, user, RecordInput{FlowType: models.FlowIncome, Amount: decimal.NewFromInt(100), OccurredAt: may})
	require.NoError(t, err)

	require.Contains(t, first.Code, "TXN-2504-")
	require.Contains(t, second.Code, "TXN-2505-")
	require.True(t, len(second.Code) > 7)
	require.Equal(t, "0000001", second.Code[len(second.Code)-7:], "a new month restarts the sequence")
}

func TestRecordRejectsInvalidInput(t *testing.T) {
	svc, user, _ := newLedgerFixture(t)
	ctx := context.Background()

	_, err := svc.Record(ctx, user, RecordInput{FlowType: "bogus", Amount: decimal.NewFromInt(10)})
	require.ErrorIs(t, err, ErrInvalidFlowType)

	_, err = svc.Record(ctx, user, RecordInput{FlowType: models.FlowExpense, Amount: decimal.Zero})
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = svc.Record(ctx, user, RecordInput{FlowType: models.FlowExpense, Amount: decimal.NewFromInt(-5)})
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestListFilters(t *testing.T) {
	svc, user, _ := newLedgerFixture(t)
	ctx := context.Background()

	april := time.Date(2025, 4, 15, 0, 0, 0, 0, time.UTC)
	may := time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC)

	_, err := svc.Record(ctx, user, RecordInput{FlowType: models.FlowExpense, Head: "Medical", Amount: decimal.NewFromInt(200), OccurredAt: april})
	require.NoError(t, err)
	_, err = svc.Record(ctx, user, RecordInput{FlowType: models.FlowIncome, Head: "Salary", Amount: decimal.NewFromInt(90000), OccurredAt: april})
	require.NoError(t, err)
	_, err = svc.Record(ctx, user, RecordInput{FlowType: models.FlowExpense, Head: "Travel", Amount: decimal.NewFromInt(500), OccurredAt: may})
	require.NoError(t, err)

	entries, total, err := svc.List(ctx, user.ID, ListOptions{Month: "2025-04"})
	require.NoError(t, err)
	require.EqualValues(t, 2, total)
	require.Len(t, entries, 2)

	entries, total, err = svc.List(ctx, user.ID, ListOptions{FlowType: models.FlowExpense})
	require.NoError(t, err)
	require.EqualValues(t, 2, total)

	entries, total, err = svc.List(ctx, user.ID, ListOptions{Head: "Salary"})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Equal(t, "Salary", entries[0].Head)

	_, _, err = svc.List(ctx, user.ID, ListOptions{Month: "April"})
	require.Error(t, err)
}

func TestListIsScopedToUser(t *testing.T) {
	svc, user, db := newLedgerFixture(t)
	ctx := context.Background()

	other := models.User{Email: "other@example.com", Password: "x"}
	require.NoError(t, db.Create(&other).Error)

	_, err := svc.Record(ctx, user, RecordInput{FlowType: models.FlowIncome, Amount: decimal.NewFromInt(100)})
	require.NoError(t, err)

	_, total, err := svc.List(ctx, other.ID, ListOptions{})
	require.NoError(t, err)
	require.EqualValues(t, 0, total)
}

func TestUpdateAppendsAuditEntry(t *testing.T) {
	svc, user, _ := newLedgerFixture(t)
	ctx := context.Background()

	entry, err := svc.Record(ctx, user, RecordInput{
		FlowType: models.FlowExpense,
		Head:     "Medical",
		Amount:   decimal.NewFromInt(200),
	})
	require.NoError(t, err)

	amount := decimal.NewFromInt(350)
	updated, err := svc.Update(ctx, user.ID, entry.ID, UpdateInput{
		Amount:     &amount,
		ChangeNote: "corrected pharmacy bill",
	})
	require.NoError(t, err)
	require.True(t, updated.Amount.Equal(amount))

	var trail []AuditEntry
	require.NoError(t, json.Unmarshal(updated.AuditTrail, &trail))
	require.Len(t, trail, 1)
	require.Equal(t, "updated", trail[0].Action)
	require.Equal(t, "corrected pharmacy bill", trail[0].Note)
	require.Equal(t, "200", trail[0].Before["amount"])
	require.Equal(t, "350", trail[0].After["amount"])
	require.NotZero(t, trail[0].AtMs)
}

func TestDeleteIsSoftAndAudited(t *testing.T) {
	svc, user, db := newLedgerFixture(t)
	ctx := context.Background()

	entry, err := svc.Record(ctx, user, RecordInput{FlowType: models.FlowExpense, Amount: decimal.NewFromInt(200)})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, user.ID, entry.ID, "duplicate entry"))

	_, err = svc.Get(ctx, user.ID, entry.ID)
	require.ErrorIs(t, err, ErrTransactionNotFound)

	// The row survives with its audit trail intact.
	var raw models.Transaction
	require.NoError(t, db.Unscoped().Take(&raw, "id = ?", entry.ID).Error)
	require.True(t, raw.DeletedAt.Valid)

	var trail []AuditEntry
	require.NoError(t, json.Unmarshal(raw.AuditTrail, &trail))
	require.Len(t, trail, 1)
	require.Equal(t, "deleted", trail[0].Action)
	require.Equal(t, "duplicate entry", trail[0].Note)
}

func TestImportIsAtomic(t *testing.T) {
	svc, user, db := newLedgerFixture(t)
	ctx := context.Background()

	occurred := time.Date(2025, 4, 10, 12, 0, 0, 0, time.UTC)

	rows := []RecordInput{
		{FlowType: models.FlowIncome, Head: "Salary", Account: "HBL Bank", Amount: decimal.NewFromInt(150000), OccurredAt: occurred},
		{FlowType: models.FlowExpense, Head: "Rent", Account: "HBL Bank", Amount: decimal.NewFromInt(40000), OccurredAt: occurred},
		{FlowType: models.FlowExpense, Head: "Food & Groceries", Account: "Cash", Amount: decimal.NewFromInt(9000), OccurredAt: occurred.AddDate(0, 0, 1)},
	}

	entries, err := svc.Import(ctx, user, rows)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, fmt.Sprintf("TXN-2504-%s-0000001", user.ShortID()), entries[0].Code)
	require.Equal(t, fmt.Sprintf("TXN-2504-%s-0000003", user.ShortID()), entries[2].Code)

	var count int64
	require.NoError(t, db.Model(&models.Transaction{}).Where("user_id = ?", user.ID).Count(&count).Error)
	require.EqualValues(t, 3, count)
}

func TestImportRejectsWholeBatchOnBadRow(t *testing.T) {
	svc, user, db := newLedgerFixture(t)
	ctx := context.Background()

	rows := []RecordInput{
		{FlowType: models.FlowIncome, Head: "Salary", Account: "HBL Bank", Amount: decimal.NewFromInt(150000)},
		{FlowType: "gift", Head: "Eidi", Account: "Cash", Amount: decimal.NewFromInt(5000)},
	}

	_, err := svc.Import(ctx, user, rows)
	require.ErrorIs(t, err, ErrInvalidFlowType)

	var count int64
	require.NoError(t, db.Model(&models.Transaction{}).Where("user_id = ?", user.ID).Count(&count).Error)
	require.Zero(t, count, "nothing is written when any row is invalid")

	_, err = svc.Import(ctx, user, nil)
	require.Error(t, err)
}

func TestAuditRecordsActor(t *testing.T) {
	svc, user, _ := newLedgerFixture(t)

	entry, err := svc.Record(context.Background(), user, RecordInput{
		FlowType: models.FlowExpense,
		Head:     "Utilities",
		Account:  "Cash",
		Amount:   decimal.NewFromInt(3200),
	})
	require.NoError(t, err)

	ctx := auditctx.WithActor(context.Background(), auditctx.Actor{
		UserID:    user.ID,
		DeviceID:  "device-7",
		IPAddress: "203.0.113.9",
	})

	newNote := "meter correction"
	updated, err := svc.Update(ctx, user.ID, entry.ID, UpdateInput{Note: &newNote, ChangeNote: "typo"})
	require.NoError(t, err)

	var trail []AuditEntry
	require.NoError(t, json.Unmarshal(updated.AuditTrail, &trail))
	require.Len(t, trail, 1)
	require.Equal(t, "updated", trail[0].Action)
	require.Equal(t, "device-7", trail[0].Device)
	require.Equal(t, "203.0.113.9", trail[0].IP)
}
