package service

import (
	"testing"
	"time"

	"monetize-service/internal/config"
	"monetize-service/internal/domain"
	xerrors "monetize-service/pkg/xerrors"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func testMonetizationConfig() config.MonetizationConfig {
	return config.MonetizationConfig{
		MinViewDuration:    30,
		MinViewPercentage:  0.7,
		CreatorShare:       decimal.RequireFromString("0.60"),
		ViewerShare:        decimal.RequireFromString("0.20"),
		MinPayoutAmount:    decimal.RequireFromString("0.001"),
		ReferrerBonus:      decimal.RequireFromString("0.05"),
		MinRevenueForBonus: decimal.RequireFromString("0.01"),
		StreakBaseBonus:    decimal.RequireFromString("1.00"),
	}
}

func newTestCalculator(t *testing.T) *RevenueCalculator {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	return NewRevenueCalculator(testMonetizationConfig(), clock)
}

func validEvent() *domain.AdRevenueEvent {
	return &domain.AdRevenueEvent{
		ReelID:        "reel-1",
		ViewerID:      "viewer-1",
		CreatorID:     "creator-1",
		Revenue:       decimal.RequireFromString("0.01"),
		ViewDuration:  40,
		VideoDuration: 50,
		ImpressionID:  "imp-1",
	}
}

func TestDistributeSplit(t *testing.T) {
	t.Parallel()
	calc := newTestCalculator(t)

	dist, err := calc.Distribute(validEvent(), "DST-1")
	require.NoError(t, err)

	// 40s of 50s with revenue 0.01: creator 0.006, viewer 0.002, app 0.002
	require.True(t, dist.Creator.Amount.Equal(decimal.RequireFromString("0.006")),
		"creator got %s", dist.Creator.Amount)
	require.True(t, dist.Viewer.Amount.Equal(decimal.RequireFromString("0.002")),
		"viewer got %s", dist.Viewer.Amount)
	require.True(t, dist.App.Amount.Equal(decimal.RequireFromString("0.002")),
		"app got %s", dist.App.Amount)

	require.Equal(t, "creator-1", dist.Creator.UserID)
	require.Equal(t, "viewer-1", dist.Viewer.UserID)
	require.Equal(t, domain.DistributionCompleted, dist.Status)
	require.NotNil(t, dist.CompletedAt)
}

func TestDistributeConservation(t *testing.T) {
	t.Parallel()
	calc := newTestCalculator(t)

	// sub-cent and awkward values must still sum exactly
	revenues := []string{"0.01", "0.013", "1.00", "0.007", "123.456789", "0.002"}
	for _, rev := range revenues {
		event := validEvent()
		event.Revenue = decimal.RequireFromString(rev)

		dist, err := calc.Distribute(event, "DST-x")
		require.NoError(t, err, "revenue %s", rev)
		require.True(t, dist.IsConserved(),
			"revenue %s: %s + %s + %s != %s", rev,
			dist.Creator.Amount, dist.Viewer.Amount, dist.App.Amount, dist.TotalRevenue)
	}
}

func TestEligibilityOrder(t *testing.T) {
	t.Parallel()
	calc := newTestCalculator(t)

	t.Run("view too short", func(t *testing.T) {
		t.Parallel()
		event := validEvent()
		event.ViewDuration = 29
		require.ErrorIs(t, calc.CheckEligibility(event), xerrors.ErrViewTooShort)
	})

	t.Run("view percentage too small", func(t *testing.T) {
		t.Parallel()
		event := validEvent()
		event.ViewDuration = 35
		event.VideoDuration = 100 // 35% watched
		require.ErrorIs(t, calc.CheckEligibility(event), xerrors.ErrViewTooSmallShare)
	})

	t.Run("duration checked before percentage", func(t *testing.T) {
		t.Parallel()
		event := validEvent()
		event.ViewDuration = 10
		event.VideoDuration = 100 // fails both; first rule wins
		require.ErrorIs(t, calc.CheckEligibility(event), xerrors.ErrViewTooShort)
	})

	t.Run("no revenue", func(t *testing.T) {
		t.Parallel()
		event := validEvent()
		event.Revenue = decimal.Zero
		require.ErrorIs(t, calc.CheckEligibility(event), xerrors.ErrNoAdRevenue)
	})

	t.Run("eligible", func(t *testing.T) {
		t.Parallel()
		require.NoError(t, calc.CheckEligibility(validEvent()))
	})
}

func TestDistributeAmountTooSmall(t *testing.T) {
	t.Parallel()
	calc := newTestCalculator(t)

	event := validEvent()
	event.Revenue = decimal.RequireFromString("0.001") // paid shares sum 0.0008

	_, err := calc.Distribute(event, "DST-x")
	require.ErrorIs(t, err, xerrors.ErrAmountTooSmall)
}

func TestCascadeAmount(t *testing.T) {
	t.Parallel()
	calc := newTestCalculator(t)

	require.True(t, calc.CascadeAmount(decimal.RequireFromString("1.00")).
		Equal(decimal.RequireFromString("0.05")))

	// below the trigger threshold no cascade fires
	require.True(t, calc.CascadeAmount(decimal.RequireFromString("0.009")).IsZero())
}

func TestStreakBonus(t *testing.T) {
	t.Parallel()
	calc := newTestCalculator(t)

	require.True(t, calc.StreakBonus(2).Equal(decimal.RequireFromString("2.00")))
	require.True(t, calc.StreakBonus(1).Equal(decimal.RequireFromString("1.00")))
	require.True(t, calc.StreakBonus(0).IsZero())
}
