package domain

import (
	"testing"
	"time"

	xerrors "monetize-service/pkg/xerrors"

	"github.com/stretchr/testify/require"
)

func TestReferralCodeUsable(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	t.Run("active code is usable", func(t *testing.T) {
		t.Parallel()

		c := &ReferralCode{Status: CodeStatusActive}
		require.NoError(t, c.Usable(now))
	})

	t.Run("exhausted status", func(t *testing.T) {
		t.Parallel()

		c := &ReferralCode{Status: CodeStatusExhausted}
		require.ErrorIs(t, c.Usable(now), xerrors.ErrCodeExhausted)
	})

	t.Run("use ceiling reached", func(t *testing.T) {
		t.Parallel()

		max := 10
		c := &ReferralCode{Status: CodeStatusActive, TotalUses: 10, MaxUses: &max}
		require.ErrorIs(t, c.Usable(now), xerrors.ErrCodeExhausted)
	})

	t.Run("expiry passed", func(t *testing.T) {
		t.Parallel()

		expired := now.Add(-time.Hour)
		c := &ReferralCode{Status: CodeStatusActive, ExpiresAt: &expired}
		require.ErrorIs(t, c.Usable(now), xerrors.ErrCodeExpired)
	})
}

func TestWithinTrackingWindow(t *testing.T) {
	t.Parallel()

	signup := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	rel := &ReferralRelationship{SignupDate: signup}
	window := 90 * 24 * time.Hour

	require.True(t, rel.WithinTrackingWindow(signup.AddDate(0, 0, 2), window))
	require.True(t, rel.WithinTrackingWindow(signup.Add(window), window))
	require.False(t, rel.WithinTrackingWindow(signup.Add(window+time.Second), window))
}
