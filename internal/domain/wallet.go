package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wallet represents the per-user balance aggregate.
// Invariant: TotalBalance = AvailableBalance + PendingBalance, AvailableBalance >= 0.
type Wallet struct {
	UserID           string          `json:"user_id"`
	TotalBalance     decimal.Decimal `json:"total_balance"`
	AvailableBalance decimal.Decimal `json:"available_balance"`
	PendingBalance   decimal.Decimal `json:"pending_balance"`
	TotalEarned      decimal.Decimal `json:"total_earned"`
	TotalWithdrawn   decimal.Decimal `json:"total_withdrawn"`

	AdEarnings       decimal.Decimal `json:"ad_earnings"`
	BonusEarnings    decimal.Decimal `json:"bonus_earnings"`
	WatchEarnings    decimal.Decimal `json:"watch_earnings"`
	CreateEarnings   decimal.Decimal `json:"create_earnings"`
	ReferralEarnings decimal.Decimal `json:"referral_earnings"`
	StreakEarnings   decimal.Decimal `json:"streak_earnings"`

	Version     int64     `json:"version"`
	LastUpdated time.Time `json:"last_updated"`
}

// EarningCategory selects which wallet subtotal an earning credits.
// A closed set: resolving an unknown sub type fails at request-build time,
// never as a silent no-op during the balance update.
type EarningCategory string

const (
	CategoryAd       EarningCategory = "ad"
	CategoryBonus    EarningCategory = "bonus"
	CategoryWatch    EarningCategory = "watch"
	CategoryCreate   EarningCategory = "create"
	CategoryReferral EarningCategory = "referral"
	CategoryStreak   EarningCategory = "streak"
)

// Column returns the wallets column holding the category subtotal.
func (c EarningCategory) Column() string {
	switch c {
	case CategoryAd:
		return "ad_earnings"
	case CategoryBonus:
		return "bonus_earnings"
	case CategoryWatch:
		return "watch_earnings"
	case CategoryCreate:
		return "create_earnings"
	case CategoryReferral:
		return "referral_earnings"
	case CategoryStreak:
		return "streak_earnings"
	}
	return ""
}

// SubtotalFor returns the wallet's current subtotal for a category.
func (w *Wallet) SubtotalFor(c EarningCategory) decimal.Decimal {
	switch c {
	case CategoryAd:
		return w.AdEarnings
	case CategoryBonus:
		return w.BonusEarnings
	case CategoryWatch:
		return w.WatchEarnings
	case CategoryCreate:
		return w.CreateEarnings
	case CategoryReferral:
		return w.ReferralEarnings
	case CategoryStreak:
		return w.StreakEarnings
	}
	return decimal.Zero
}

// ApplyEarning credits an earning to the wallet in memory.
// Mirrors the SQL applied by the wallet repository inside the commit
// transaction; kept here so the invariants are testable without a database.
func (w *Wallet) ApplyEarning(c EarningCategory, amount decimal.Decimal) {
	w.TotalBalance = w.TotalBalance.Add(amount)
	w.AvailableBalance = w.AvailableBalance.Add(amount)
	w.TotalEarned = w.TotalEarned.Add(amount)

	switch c {
	case CategoryAd:
		w.AdEarnings = w.AdEarnings.Add(amount)
	case CategoryBonus:
		w.BonusEarnings = w.BonusEarnings.Add(amount)
	case CategoryWatch:
		w.WatchEarnings = w.WatchEarnings.Add(amount)
	case CategoryCreate:
		w.CreateEarnings = w.CreateEarnings.Add(amount)
	case CategoryReferral:
		w.ReferralEarnings = w.ReferralEarnings.Add(amount)
	case CategoryStreak:
		w.StreakEarnings = w.StreakEarnings.Add(amount)
	}
}

// CategorySum returns the sum of all category subtotals.
// Must always equal TotalEarned.
func (w *Wallet) CategorySum() decimal.Decimal {
	return w.AdEarnings.
		Add(w.BonusEarnings).
		Add(w.WatchEarnings).
		Add(w.CreateEarnings).
		Add(w.ReferralEarnings).
		Add(w.StreakEarnings)
}

// CanWithdraw reports whether the available balance covers a withdrawal
func (w *Wallet) CanWithdraw(amount decimal.Decimal) bool {
	return amount.IsPositive() && w.AvailableBalance.GreaterThanOrEqual(amount)
}

// NewWallet creates a zero-valued wallet for a new user account
func NewWallet(userID string) *Wallet {
	return &Wallet{
		UserID:           userID,
		TotalBalance:     decimal.Zero,
		AvailableBalance: decimal.Zero,
		PendingBalance:   decimal.Zero,
		TotalEarned:      decimal.Zero,
		TotalWithdrawn:   decimal.Zero,
		AdEarnings:       decimal.Zero,
		BonusEarnings:    decimal.Zero,
		WatchEarnings:    decimal.Zero,
		CreateEarnings:   decimal.Zero,
		ReferralEarnings: decimal.Zero,
		StreakEarnings:   decimal.Zero,
		LastUpdated:      time.Now(),
	}
}
