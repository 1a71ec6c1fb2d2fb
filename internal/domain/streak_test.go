package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDailyStreakAdvance(t *testing.T) {
	t.Parallel()

	day := func(n int) time.Time {
		return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC).AddDate(0, 0, n)
	}

	t.Run("first check-in starts at one", func(t *testing.T) {
		t.Parallel()

		s := NewDailyStreak("user-1")
		res := s.Advance(day(0), 5)

		require.Equal(t, 1, res.StreakCount)
		require.Equal(t, 1, res.BonusMultiplier)
		require.False(t, res.StreakBroken)
		require.False(t, res.AlreadyCheckedIn)
		require.Equal(t, 1, s.CurrentStreak)
		require.Equal(t, 1, s.MaxStreak)
	})

	t.Run("same day repeat is a no-op with zero bonus", func(t *testing.T) {
		t.Parallel()

		s := NewDailyStreak("user-1")
		s.Advance(day(0), 5)

		res := s.Advance(day(0).Add(3*time.Hour), 5)

		require.True(t, res.AlreadyCheckedIn)
		require.Equal(t, 0, res.BonusMultiplier)
		require.Equal(t, 1, res.StreakCount)
		require.Equal(t, 1, s.CurrentStreak)
	})

	t.Run("day seven multiplier steps to two", func(t *testing.T) {
		t.Parallel()

		s := NewDailyStreak("user-1")
		var res CheckInResult
		for i := 0; i < 7; i++ {
			res = s.Advance(day(i), 5)
		}

		require.Equal(t, 7, res.StreakCount)
		require.Equal(t, 2, res.BonusMultiplier)
		require.NotNil(t, res.MilestoneReached)
		require.Equal(t, 7, *res.MilestoneReached)
	})

	t.Run("milestone recorded once", func(t *testing.T) {
		t.Parallel()

		s := NewDailyStreak("user-1")
		for i := 0; i < 7; i++ {
			s.Advance(day(i), 5)
		}
		firstRecorded := s.Milestones[7]

		// same-day repeat must not touch the recorded milestone
		res := s.Advance(day(6).Add(time.Hour), 5)
		require.True(t, res.AlreadyCheckedIn)
		require.Equal(t, firstRecorded, s.Milestones[7])
		require.Len(t, s.Milestones, 1)
	})

	t.Run("gap resets current streak but never max", func(t *testing.T) {
		t.Parallel()

		s := NewDailyStreak("user-1")
		for i := 0; i < 10; i++ {
			s.Advance(day(i), 5)
		}
		require.Equal(t, 10, s.MaxStreak)

		res := s.Advance(day(13), 5)

		require.True(t, res.StreakBroken)
		require.Equal(t, 1, res.StreakCount)
		require.Equal(t, 1, res.BonusMultiplier)
		require.Equal(t, 1, s.CurrentStreak)
		require.Equal(t, 10, s.MaxStreak)
	})

	t.Run("max streak is non-decreasing across any sequence", func(t *testing.T) {
		t.Parallel()

		s := NewDailyStreak("user-1")
		checkIns := []int{0, 1, 2, 5, 6, 7, 8, 20, 21, 22, 23}
		prevMax := 0
		for _, d := range checkIns {
			s.Advance(day(d), 5)
			require.GreaterOrEqual(t, s.MaxStreak, prevMax)
			prevMax = s.MaxStreak
		}
	})
}

func TestBonusMultiplier(t *testing.T) {
	t.Parallel()

	cases := []struct {
		streak int
		cap    int
		want   int
	}{
		{1, 5, 1},
		{6, 5, 1},
		{7, 5, 2},
		{13, 5, 2},
		{14, 5, 3},
		{28, 5, 5},
		{100, 5, 5}, // capped
		{700, 3, 3},
	}

	for _, tc := range cases {
		require.Equal(t, tc.want, BonusMultiplier(tc.streak, tc.cap),
			"streak=%d cap=%d", tc.streak, tc.cap)
	}
}

func TestDateOnly(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("UTC+5", 5*3600)
	ts := time.Date(2025, 6, 2, 1, 30, 0, 0, loc) // June 1st 20:30 UTC

	got := DateOnly(ts)
	require.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), got)
}
