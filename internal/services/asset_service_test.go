package services

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/nwaqas/finfortress/internal/database/testutil"
	"github.com/nwaqas/finfortress/internal/models"
)

func newAssetFixture(t *testing.T) (*AssetService, *models.User) {
	t.Helper()

	db := testutil.MustOpenTestDB(t)
	user := models.User{Email: "owner@example.com", Password: "x"}
	require.NoError(t, db.Create(&user).Error)

	svc, err := NewAssetService(db)
	require.NoError(t, err)
	return svc, &user
}

func TestAssetCreateAndGet(t *testing.T) {
	svc, user := newAssetFixture(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, user.ID, AssetInput{
		Name:          "Defence Plot",
		Category:      "Property",
		PurchaseValue: decimal.NewFromInt(5000000),
		CurrentValue:  decimal.NewFromInt(6200000),
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	fetched, err := svc.Get(ctx, user.ID, created.ID)
	require.NoError(t, err)
	require.Equal(t, "Defence Plot", fetched.Name)
	require.Equal(t, "PKR", fetched.Currency)
	require.True(t, fetched.Appreciation().Equal(decimal.NewFromInt(1200000)))
}

func TestAssetCreateRejectsEmptyName(t *testing.T) {
	svc, user := newAssetFixture(t)

	_, err := svc.Create(context.Background(), user.ID, AssetInput{Category: "Gold"})
	require.Error(t, err)
}

func TestAssetUpdateRevaluation(t *testing.T) {
	svc, user := newAssetFixture(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, user.ID, AssetInput{
		Name:          "Gold Bars",
		Category:      "Gold",
		PurchaseValue: decimal.NewFromInt(300000),
		CurrentValue:  decimal.NewFromInt(300000),
	})
	require.NoError(t, err)

	revalued := decimal.NewFromInt(365000)
	updated, err := svc.Update(ctx, user.ID, created.ID, UpdateAssetInput{CurrentValue: &revalued})
	require.NoError(t, err)
	require.True(t, updated.CurrentValue.Equal(revalued))
	require.True(t, updated.PurchaseValue.Equal(decimal.NewFromInt(300000)))
}

func TestAssetScopedToOwner(t *testing.T) {
	svc, user := newAssetFixture(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, user.ID, AssetInput{
		Name:          "Corolla",
		Category:      "Vehicle",
		PurchaseValue: decimal.NewFromInt(4000000),
		CurrentValue:  decimal.NewFromInt(3500000),
	})
	require.NoError(t, err)

	_, err = svc.Get(ctx, "someone-else", created.ID)
	require.ErrorIs(t, err, ErrAssetNotFound)

	require.ErrorIs(t, svc.Delete(ctx, "someone-else", created.ID), ErrAssetNotFound)
}

func TestAssetSummaryGroupsByCategory(t *testing.T) {
	svc, user := newAssetFixture(t)
	ctx := context.Background()

	for _, in := range []AssetInput{
		{Name: "Gold Bars", Category: "Gold", PurchaseValue: decimal.NewFromInt(300000), CurrentValue: decimal.NewFromInt(350000)},
		{Name: "Gold Coins", Category: "Gold", PurchaseValue: decimal.NewFromInt(100000), CurrentValue: decimal.NewFromInt(110000)},
		{Name: "Corolla", Category: "Vehicle", PurchaseValue: decimal.NewFromInt(4000000), CurrentValue: decimal.NewFromInt(3500000)},
	} {
		_, err := svc.Create(ctx, user.ID, in)
		require.NoError(t, err)
	}

	summary, err := svc.Summary(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, 3, summary.Count)
	require.True(t, summary.TotalValue.Equal(decimal.NewFromInt(3960000)))
	require.True(t, summary.TotalGain.Equal(decimal.NewFromInt(-440000)))
	require.True(t, summary.ByCategory["Gold"].Equal(decimal.NewFromInt(460000)))
	require.True(t, summary.ByCategory["Vehicle"].Equal(decimal.NewFromInt(3500000)))
}
