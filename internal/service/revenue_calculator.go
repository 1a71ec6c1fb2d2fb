package service

import (
	"time"

	"monetize-service/internal/config"
	"monetize-service/internal/domain"
	xerrors "monetize-service/pkg/xerrors"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
)

// RevenueCalculator computes the three-way split of an ad revenue event.
// Pure with respect to its injected configuration: no database reads, no
// ambient state. Duplicate-impression and account-existence checks belong
// to the caller.
type RevenueCalculator struct {
	cfg   config.MonetizationConfig
	clock clockwork.Clock
}

func NewRevenueCalculator(cfg config.MonetizationConfig, clock clockwork.Clock) *RevenueCalculator {
	return &RevenueCalculator{cfg: cfg, clock: clock}
}

// CheckEligibility runs the view-quality rules in order, first failure wins
func (c *RevenueCalculator) CheckEligibility(event *domain.AdRevenueEvent) error {
	if err := event.Validate(); err != nil {
		return err
	}
	if event.ViewDuration < c.cfg.MinViewDuration {
		return xerrors.ErrViewTooShort
	}
	if event.ViewPercentage() < c.cfg.MinViewPercentage {
		return xerrors.ErrViewTooSmallShare
	}
	if !event.Revenue.IsPositive() {
		return xerrors.ErrNoAdRevenue
	}
	return nil
}

// Distribute computes the split for an eligible event. The creator and
// viewer shares come from their percentages; the app share is the exact
// remainder, never its own percentage, so the three always sum to the
// reported revenue with no rounding drift.
func (c *RevenueCalculator) Distribute(event *domain.AdRevenueEvent, ref string) (*domain.RevenueDistribution, error) {
	if err := c.CheckEligibility(event); err != nil {
		return nil, err
	}

	creatorAmount := event.Revenue.Mul(c.cfg.CreatorShare)
	viewerAmount := event.Revenue.Mul(c.cfg.ViewerShare)
	appAmount := event.Revenue.Sub(creatorAmount).Sub(viewerAmount)

	if creatorAmount.Add(viewerAmount).LessThan(c.cfg.MinPayoutAmount) {
		return nil, xerrors.ErrAmountTooSmall
	}

	now := c.clock.Now()
	return &domain.RevenueDistribution{
		Ref:          ref,
		TotalRevenue: event.Revenue,
		Creator: domain.Share{
			UserID:     event.CreatorID,
			Amount:     creatorAmount,
			Percentage: c.cfg.CreatorShare,
		},
		Viewer: domain.Share{
			UserID:     event.ViewerID,
			Amount:     viewerAmount,
			Percentage: c.cfg.ViewerShare,
		},
		App: domain.Share{
			Amount:     appAmount,
			Percentage: appPercentage(c.cfg.CreatorShare, c.cfg.ViewerShare),
		},
		Status:      domain.DistributionCompleted,
		CreatedAt:   now,
		CompletedAt: timePtr(now),
	}, nil
}

// CascadeAmount computes the referrer's one-hop share of a referee earning.
// Returns zero when the earning is below the minimum that triggers a cascade.
func (c *RevenueCalculator) CascadeAmount(earning decimal.Decimal) decimal.Decimal {
	if earning.LessThan(c.cfg.MinRevenueForBonus) {
		return decimal.Zero
	}
	return earning.Mul(c.cfg.ReferrerBonus)
}

// StreakBonus computes the bonus payout for a check-in multiplier
func (c *RevenueCalculator) StreakBonus(multiplier int) decimal.Decimal {
	if multiplier <= 0 {
		return decimal.Zero
	}
	return c.cfg.StreakBaseBonus.Mul(decimal.NewFromInt(int64(multiplier)))
}

func appPercentage(creatorShare, viewerShare decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(1).Sub(creatorShare).Sub(viewerShare)
}

func timePtr(t time.Time) *time.Time {
	return &t
}
