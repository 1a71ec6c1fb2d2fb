package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType represents the type of ledger transaction
type TransactionType string

const (
	TransactionTypeEarning    TransactionType = "earning"
	TransactionTypeBonus      TransactionType = "bonus"
	TransactionTypeWithdrawal TransactionType = "withdrawal"
	TransactionTypeReferral   TransactionType = "referral"
)

// TransactionSubType represents the earning category of a transaction
type TransactionSubType string

const (
	SubTypeWatch           TransactionSubType = "watch"
	SubTypeCreate          TransactionSubType = "create"
	SubTypeAdRevenue       TransactionSubType = "ad_revenue"
	SubTypeReferralSignup  TransactionSubType = "referral_signup"
	SubTypeWelcomeBonus    TransactionSubType = "welcome_bonus"
	SubTypeReferralRevenue TransactionSubType = "referral_revenue"
	SubTypeDailyStreak     TransactionSubType = "daily_streak"
	SubTypeLikeBonus       TransactionSubType = "like_bonus"
	SubTypeShareBonus      TransactionSubType = "share_bonus"
	SubTypeWithdrawal      TransactionSubType = "withdrawal"
)

// TransactionStatus represents transaction lifecycle state
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusCompleted TransactionStatus = "completed"
	StatusFailed    TransactionStatus = "failed"
)

var (
	ErrUnknownSubType = errors.New("unrecognized transaction sub type")
)

// typeBySubType is the closed mapping from earning sub type to transaction
// type and wallet category. Building a request with a sub type missing here
// fails immediately instead of silently skipping a wallet subtotal.
var typeBySubType = map[TransactionSubType]struct {
	txType   TransactionType
	category EarningCategory
}{
	SubTypeWatch:           {TransactionTypeEarning, CategoryWatch},
	SubTypeCreate:          {TransactionTypeEarning, CategoryCreate},
	SubTypeAdRevenue:       {TransactionTypeEarning, CategoryAd},
	SubTypeReferralSignup:  {TransactionTypeReferral, CategoryReferral},
	SubTypeWelcomeBonus:    {TransactionTypeBonus, CategoryBonus},
	SubTypeReferralRevenue: {TransactionTypeReferral, CategoryReferral},
	SubTypeDailyStreak:     {TransactionTypeBonus, CategoryStreak},
	SubTypeLikeBonus:       {TransactionTypeBonus, CategoryBonus},
	SubTypeShareBonus:      {TransactionTypeBonus, CategoryBonus},
}

// TypeForSubType resolves the transaction type for an earning sub type
func TypeForSubType(st TransactionSubType) (TransactionType, error) {
	m, ok := typeBySubType[st]
	if !ok {
		return "", ErrUnknownSubType
	}
	return m.txType, nil
}

// CategoryForSubType resolves the wallet category for an earning sub type
func CategoryForSubType(st TransactionSubType) (EarningCategory, error) {
	m, ok := typeBySubType[st]
	if !ok {
		return "", ErrUnknownSubType
	}
	return m.category, nil
}

// LedgerTransaction is one append-only balance-affecting record.
// Once completed, only the status of a withdrawal may change (pending → completed).
type LedgerTransaction struct {
	ID          int64              `json:"id"`
	Ref         string             `json:"ref"`
	UserID      string             `json:"user_id"`
	Type        TransactionType    `json:"type"`
	SubType     TransactionSubType `json:"sub_type"`
	Amount      decimal.Decimal    `json:"amount"`
	Description string             `json:"description"`
	ReelID      *string            `json:"reel_id,omitempty"`
	EventID     *string            `json:"event_id,omitempty"` // originating monetized event
	Status      TransactionStatus  `json:"status"`

	// Cascade bookkeeping: false on a completed ad_revenue earning means the
	// referral share still needs to be paid by the repair job.
	ReferralProcessed bool `json:"referral_processed"`

	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}

// LedgerTransactionCreate represents data needed to append a ledger row
type LedgerTransactionCreate struct {
	Ref         string
	UserID      string
	Type        TransactionType
	SubType     TransactionSubType
	Amount      decimal.Decimal
	Description string
	ReelID      *string
	EventID     *string
	Status      TransactionStatus
}

// CascadePending reports whether this row still owes a referral cascade.
// Ad revenue earnings insert with the repair flag down and it only comes up
// once the referrer's share has been paid or ruled out, so a crash between
// the primary commit and the cascade leaves a row the repair job can see.
func (c *LedgerTransactionCreate) CascadePending() bool {
	return c.SubType == SubTypeAdRevenue && c.Status == StatusCompleted
}

// Validate checks the create request before it reaches the database
func (c *LedgerTransactionCreate) Validate() error {
	if c.UserID == "" {
		return errors.New("user_id is required")
	}
	if !c.Amount.IsPositive() {
		return errors.New("amount must be positive")
	}
	if c.Type == TransactionTypeWithdrawal {
		return nil
	}
	if _, err := TypeForSubType(c.SubType); err != nil {
		return err
	}
	return nil
}

// TransactionFilter represents filter criteria for ledger queries
type TransactionFilter struct {
	UserID    string
	Type      *TransactionType
	SubType   *TransactionSubType
	Status    *TransactionStatus
	StartDate *time.Time
	EndDate   *time.Time
	Limit     int
	Offset    int
}
