package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestWalletApplyEarning(t *testing.T) {
	t.Parallel()

	w := NewWallet("user-1")

	w.ApplyEarning(CategoryAd, decimal.RequireFromString("0.006"))
	w.ApplyEarning(CategoryWatch, decimal.RequireFromString("0.002"))
	w.ApplyEarning(CategoryReferral, decimal.RequireFromString("0.05"))

	require.True(t, w.TotalBalance.Equal(decimal.RequireFromString("0.058")))
	require.True(t, w.AvailableBalance.Equal(w.TotalBalance))
	require.True(t, w.PendingBalance.IsZero())

	// balance split invariant
	require.True(t, w.TotalBalance.Equal(w.AvailableBalance.Add(w.PendingBalance)))

	// subtotals always reconcile with lifetime earnings
	require.True(t, w.CategorySum().Equal(w.TotalEarned))
	require.True(t, w.AdEarnings.Equal(decimal.RequireFromString("0.006")))
	require.True(t, w.WatchEarnings.Equal(decimal.RequireFromString("0.002")))
	require.True(t, w.ReferralEarnings.Equal(decimal.RequireFromString("0.05")))
}

func TestWalletCanWithdraw(t *testing.T) {
	t.Parallel()

	w := NewWallet("user-1")
	w.ApplyEarning(CategoryAd, decimal.RequireFromString("5.00"))

	require.True(t, w.CanWithdraw(decimal.RequireFromString("5.00")))
	require.True(t, w.CanWithdraw(decimal.RequireFromString("0.01")))
	require.False(t, w.CanWithdraw(decimal.RequireFromString("5.01")))
	require.False(t, w.CanWithdraw(decimal.Zero))
	require.False(t, w.CanWithdraw(decimal.RequireFromString("-1")))
}

func TestEarningCategoryColumn(t *testing.T) {
	t.Parallel()

	for _, c := range []EarningCategory{
		CategoryAd, CategoryBonus, CategoryWatch,
		CategoryCreate, CategoryReferral, CategoryStreak,
	} {
		require.NotEmpty(t, c.Column(), "category %s", c)
	}

	require.Empty(t, EarningCategory("bogus").Column())
}
