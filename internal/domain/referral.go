package domain

import (
	"time"

	xerrors "monetize-service/pkg/xerrors"

	"github.com/shopspring/decimal"
)

// ReferralCodeStatus represents the code lifecycle:
// unissued → active → (exhausted | expired)
type ReferralCodeStatus string

const (
	CodeStatusActive    ReferralCodeStatus = "active"
	CodeStatusExhausted ReferralCodeStatus = "exhausted"
	CodeStatusExpired   ReferralCodeStatus = "expired"
)

// ReferralCode is one user's invite code. One active code per user.
type ReferralCode struct {
	ID        int64              `json:"id"`
	UserID    string             `json:"user_id"`
	Code      string             `json:"code"`
	Status    ReferralCodeStatus `json:"status"`
	TotalUses int                `json:"total_uses"`
	MaxUses   *int               `json:"max_uses,omitempty"`
	ExpiresAt *time.Time         `json:"expires_at,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
}

// Usable reports whether the code still accepts signups at the given time
func (c *ReferralCode) Usable(now time.Time) error {
	if c.Status == CodeStatusExhausted {
		return xerrors.ErrCodeExhausted
	}
	if c.Status == CodeStatusExpired {
		return xerrors.ErrCodeExpired
	}
	if c.ExpiresAt != nil && now.After(*c.ExpiresAt) {
		return xerrors.ErrCodeExpired
	}
	if c.MaxUses != nil && c.TotalUses >= *c.MaxUses {
		return xerrors.ErrCodeExhausted
	}
	return nil
}

// ReferralStatus represents relationship state
type ReferralStatus string

const (
	ReferralActive   ReferralStatus = "active"
	ReferralInactive ReferralStatus = "inactive"
	ReferralExpired  ReferralStatus = "expired"
)

// ReferralRelationship links a referee to the single user who referred them.
// A referee has at most one relationship ever; the first code applied wins.
type ReferralRelationship struct {
	ID                 int64           `json:"id"`
	ReferrerID         string          `json:"referrer_id"`
	RefereeID          string          `json:"referee_id"`
	ReferralCode       string          `json:"referral_code"`
	RefereeEmail       string          `json:"referee_email,omitempty"`
	SignupDate         time.Time       `json:"signup_date"`
	Status             ReferralStatus  `json:"status"`
	TotalRevenueShared decimal.Decimal `json:"total_revenue_shared"`
	LastRevenueShare   *time.Time      `json:"last_revenue_share,omitempty"`
	BonusPaid          bool            `json:"bonus_paid"`
}

// WithinTrackingWindow reports whether cascades may still fire
func (r *ReferralRelationship) WithinTrackingWindow(now time.Time, trackingDuration time.Duration) bool {
	return now.Sub(r.SignupDate) <= trackingDuration
}

// ReferralEarning records one cascade payment to a referrer
type ReferralEarning struct {
	ID             int64           `json:"id"`
	RelationshipID int64           `json:"relationship_id"`
	ReferrerID     string          `json:"referrer_id"`
	RefereeID      string          `json:"referee_id"`
	SourceTxnID    int64           `json:"source_txn_id"` // referee's triggering earning
	Amount         decimal.Decimal `json:"amount"`
	CreatedAt      time.Time       `json:"created_at"`
}
