package repository

import (
	"testing"

	"monetize-service/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func cascadeAward(referrerID string) *domain.ReferralAward {
	return &domain.ReferralAward{
		Earning: &domain.ReferralEarning{
			RelationshipID: 1,
			ReferrerID:     referrerID,
			RefereeID:      "user-c",
			SourceTxnID:    42,
			Amount:         decimal.RequireFromString("0.05"),
		},
	}
}

func TestAwardSurvives(t *testing.T) {
	t.Parallel()

	paid := &domain.DistributionResult{
		Transactions: []*domain.LedgerTransaction{
			{ID: 7, UserID: "user-b", SubType: domain.SubTypeReferralRevenue},
		},
	}

	t.Run("referrer credit committed", func(t *testing.T) {
		t.Parallel()
		require.True(t, awardSurvives(paid, cascadeAward("user-b")))
	})

	t.Run("referrer skipped by cap or missing wallet", func(t *testing.T) {
		t.Parallel()

		// the party was dropped, so no ledger row backs the share; recording
		// the award would claim revenue that never moved
		skipped := &domain.DistributionResult{SkippedUsers: []string{"user-b"}}
		require.False(t, awardSurvives(skipped, cascadeAward("user-b")))
	})

	t.Run("no award attached", func(t *testing.T) {
		t.Parallel()
		require.False(t, awardSurvives(paid, nil))
	})
}
