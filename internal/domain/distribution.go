package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// PartyAllocation is one wallet credit inside a distribution commit
type PartyAllocation struct {
	UserID      string
	Amount      decimal.Decimal
	SubType     TransactionSubType
	Description string

	// SkipIfMissing: when the party's wallet does not exist the share is
	// dropped and logged instead of failing the whole commit, so one absent
	// counter-party wallet never blocks legitimate earners.
	SkipIfMissing bool

	// SkipIfCapped: when this party's daily category cap is already reached
	// the share is dropped instead of failing the whole commit. Single-party
	// requests leave this false so the caller sees ErrCapExceeded.
	SkipIfCapped bool
}

// AdSettlement couples the impression dedup row and its distribution record
// to the commit, so the unique-index check and the payout are one atomic step
type AdSettlement struct {
	Event        *AdRevenueEvent
	Distribution *RevenueDistribution
}

// ReferralAward attaches a cascade payment record to the commit. The source
// transaction is the referee's already-committed earning, so the unique
// source_txn_id index makes cascade retries exactly-once.
type ReferralAward struct {
	Earning *ReferralEarning
}

// ReferralEnrollment attaches a new referrer/referee relationship to the
// commit, alongside the signup bonus pair. The unique referee index rejects
// a second enrollment in the same step that would have paid it.
type ReferralEnrollment struct {
	Relationship *ReferralRelationship
	CodeID       int64
}

// DistributionRequest is the input to the atomic commit primitive: all
// ledger rows and wallet updates for one distribution succeed or none do.
type DistributionRequest struct {
	Description string
	ReelID      *string
	EventID     *string

	Parties []*PartyAllocation

	// Optional attachments written inside the same transaction
	Settlement *AdSettlement
	Referral   *ReferralAward
	Enrollment *ReferralEnrollment
}

// Validate checks the request before any database work
func (r *DistributionRequest) Validate() error {
	// an enrollment with both signup bonuses configured to zero is the one
	// legitimate party-less commit
	if len(r.Parties) == 0 && r.Enrollment == nil {
		return errors.New("at least one party allocation required")
	}

	for _, p := range r.Parties {
		if p.UserID == "" {
			return errors.New("user_id required for all allocations")
		}
		if !p.Amount.IsPositive() {
			return errors.New("allocation amount must be positive")
		}
		if _, err := CategoryForSubType(p.SubType); err != nil {
			return err
		}
	}

	return nil
}

// TotalAmount returns the sum of all party allocations
func (r *DistributionRequest) TotalAmount() decimal.Decimal {
	total := decimal.Zero
	for _, p := range r.Parties {
		total = total.Add(p.Amount)
	}
	return total
}

// DistributionResult is the outcome of a committed distribution
type DistributionResult struct {
	Transactions []*LedgerTransaction `json:"transactions"`
	SkippedUsers []string             `json:"skipped_users,omitempty"`
	CommittedAt  time.Time            `json:"committed_at"`
}

// TransactionFor returns the committed ledger row for a user, if any
func (res *DistributionResult) TransactionFor(userID string) *LedgerTransaction {
	for _, txn := range res.Transactions {
		if txn.UserID == userID {
			return txn
		}
	}
	return nil
}
