package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Milestone streak lengths recorded when first reached
var StreakMilestones = []int{7, 14, 30, 60, 100}

// DailyStreak is one user's consecutive-day check-in state
type DailyStreak struct {
	UserID         string            `json:"user_id"`
	CurrentStreak  int               `json:"current_streak"`
	MaxStreak      int               `json:"max_streak"`
	LastStreakDate *time.Time        `json:"last_streak_date,omitempty"` // date-only, UTC
	StreakRewards  decimal.Decimal   `json:"streak_rewards"`
	Milestones     map[int]time.Time `json:"milestones"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// CheckInResult reports the outcome of one daily check-in
type CheckInResult struct {
	StreakCount      int  `json:"streak_count"`
	BonusMultiplier  int  `json:"bonus_multiplier"`
	StreakBroken     bool `json:"streak_broken"`
	AlreadyCheckedIn bool `json:"already_checked_in"`
	MilestoneReached *int `json:"milestone_reached,omitempty"`
}

// DateOnly truncates a time to its UTC calendar date
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Advance runs the daily transition for a check-in at the given time.
// Same day: no-op with zero bonus. Next day: streak increments. A gap of
// more than one day resets the streak to 1 and pays only the floor bonus.
// The bonus multiplier steps up every 7 consecutive days, capped.
func (s *DailyStreak) Advance(now time.Time, capMultiplier int) CheckInResult {
	today := DateOnly(now)

	if s.LastStreakDate != nil {
		last := DateOnly(*s.LastStreakDate)
		daysSince := int(today.Sub(last).Hours() / 24)

		switch {
		case daysSince == 0:
			return CheckInResult{
				StreakCount:      s.CurrentStreak,
				BonusMultiplier:  0,
				AlreadyCheckedIn: true,
			}
		case daysSince == 1:
			s.CurrentStreak++
		default:
			s.CurrentStreak = 1
			s.LastStreakDate = &today
			s.UpdatedAt = now

			if s.CurrentStreak > s.MaxStreak {
				s.MaxStreak = s.CurrentStreak
			}

			return CheckInResult{
				StreakCount:      1,
				BonusMultiplier:  1,
				StreakBroken:     true,
				MilestoneReached: s.recordMilestone(today),
			}
		}
	} else {
		s.CurrentStreak = 1
	}

	s.LastStreakDate = &today
	s.UpdatedAt = now

	if s.CurrentStreak > s.MaxStreak {
		s.MaxStreak = s.CurrentStreak
	}

	return CheckInResult{
		StreakCount:      s.CurrentStreak,
		BonusMultiplier:  BonusMultiplier(s.CurrentStreak, capMultiplier),
		MilestoneReached: s.recordMilestone(today),
	}
}

// BonusMultiplier computes the stepped streak bonus: min(1 + n/7, cap)
func BonusMultiplier(streak, capMultiplier int) int {
	m := 1 + streak/7
	if m > capMultiplier {
		return capMultiplier
	}
	return m
}

// recordMilestone stores the first date a milestone length is reached.
// Re-running the same day never overwrites an existing timestamp.
func (s *DailyStreak) recordMilestone(today time.Time) *int {
	for _, m := range StreakMilestones {
		if s.CurrentStreak == m {
			if s.Milestones == nil {
				s.Milestones = make(map[int]time.Time)
			}
			if _, exists := s.Milestones[m]; !exists {
				s.Milestones[m] = today
				reached := m
				return &reached
			}
		}
	}
	return nil
}

// NewDailyStreak creates an empty streak record for a user
func NewDailyStreak(userID string) *DailyStreak {
	return &DailyStreak{
		UserID:        userID,
		StreakRewards: decimal.Zero,
		Milestones:    make(map[int]time.Time),
	}
}
