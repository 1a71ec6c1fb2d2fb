package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestTypeForSubType(t *testing.T) {
	t.Parallel()

	cases := map[TransactionSubType]struct {
		txType   TransactionType
		category EarningCategory
	}{
		SubTypeAdRevenue:       {TransactionTypeEarning, CategoryAd},
		SubTypeWatch:           {TransactionTypeEarning, CategoryWatch},
		SubTypeCreate:          {TransactionTypeEarning, CategoryCreate},
		SubTypeReferralSignup:  {TransactionTypeReferral, CategoryReferral},
		SubTypeReferralRevenue: {TransactionTypeReferral, CategoryReferral},
		SubTypeWelcomeBonus:    {TransactionTypeBonus, CategoryBonus},
		SubTypeDailyStreak:     {TransactionTypeBonus, CategoryStreak},
		SubTypeLikeBonus:       {TransactionTypeBonus, CategoryBonus},
		SubTypeShareBonus:      {TransactionTypeBonus, CategoryBonus},
	}

	for st, want := range cases {
		txType, err := TypeForSubType(st)
		require.NoError(t, err)
		require.Equal(t, want.txType, txType)

		category, err := CategoryForSubType(st)
		require.NoError(t, err)
		require.Equal(t, want.category, category)
	}
}

func TestTypeForSubTypeUnknown(t *testing.T) {
	t.Parallel()

	_, err := TypeForSubType("mystery")
	require.ErrorIs(t, err, ErrUnknownSubType)

	_, err = CategoryForSubType("mystery")
	require.ErrorIs(t, err, ErrUnknownSubType)
}

func TestLedgerTransactionCreateValidate(t *testing.T) {
	t.Parallel()

	valid := &LedgerTransactionCreate{
		Ref:     "TXN-1",
		UserID:  "user-1",
		Type:    TransactionTypeEarning,
		SubType: SubTypeAdRevenue,
		Amount:  decimal.RequireFromString("0.01"),
		Status:  StatusCompleted,
	}
	require.NoError(t, valid.Validate())

	noUser := *valid
	noUser.UserID = ""
	require.Error(t, noUser.Validate())

	zeroAmount := *valid
	zeroAmount.Amount = decimal.Zero
	require.Error(t, zeroAmount.Validate())

	badSubType := *valid
	badSubType.SubType = "mystery"
	require.ErrorIs(t, badSubType.Validate(), ErrUnknownSubType)

	// withdrawals are not earnings; their sub type is not in the earning map
	withdrawal := *valid
	withdrawal.Type = TransactionTypeWithdrawal
	withdrawal.SubType = SubTypeWithdrawal
	require.NoError(t, withdrawal.Validate())
}

func TestLedgerTransactionCreateCascadePending(t *testing.T) {
	t.Parallel()

	// a completed ad revenue earning owes a referral cascade and must be
	// born visible to the repair job
	adRevenue := &LedgerTransactionCreate{
		SubType: SubTypeAdRevenue,
		Status:  StatusCompleted,
	}
	require.True(t, adRevenue.CascadePending())

	watch := &LedgerTransactionCreate{
		SubType: SubTypeWatch,
		Status:  StatusCompleted,
	}
	require.False(t, watch.CascadePending())

	withdrawal := &LedgerTransactionCreate{
		Type:    TransactionTypeWithdrawal,
		SubType: SubTypeWithdrawal,
		Status:  StatusPending,
	}
	require.False(t, withdrawal.CascadePending())
}
