package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"monetize-service/internal/domain"
	"monetize-service/pkg/utils"
	xerrors "monetize-service/pkg/xerrors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
)

// DistributionRepository is the atomic commit primitive: every balance
// mutation in the service funnels through one of its three entry points, so
// a ledger row and its wallet update can never be observed apart.
type DistributionRepository interface {
	Commit(ctx context.Context, req *domain.DistributionRequest) (*domain.DistributionResult, error)
	RequestWithdrawal(ctx context.Context, userID string, amount decimal.Decimal, description string) (*domain.LedgerTransaction, error)
	SettleWithdrawal(ctx context.Context, txn *domain.LedgerTransaction) error

	// CommitCheckIn runs the daily streak transition and its bonus payment
	// under the streak row's lock, so two same-day check-ins serialize and
	// the second one observes the first's date and pays nothing.
	CommitCheckIn(ctx context.Context, userID string, capMultiplier int, bonusFor func(multiplier int) decimal.Decimal) (*domain.CheckInResult, *domain.LedgerTransaction, error)
}

type distributionRepo struct {
	db           *pgxpool.Pool
	walletRepo   WalletRepository
	ledgerRepo   LedgerRepository
	adRepo       AdRevenueRepository
	referralRepo ReferralRepository
	streakRepo   StreakRepository
	caps         map[domain.TransactionSubType]decimal.Decimal
	refGen       *utils.CodeGenerator
	clock        clockwork.Clock
}

func NewDistributionRepo(
	db *pgxpool.Pool,
	walletRepo WalletRepository,
	ledgerRepo LedgerRepository,
	adRepo AdRevenueRepository,
	referralRepo ReferralRepository,
	streakRepo StreakRepository,
	caps map[domain.TransactionSubType]decimal.Decimal,
	refGen *utils.CodeGenerator,
	clock clockwork.Clock,
) DistributionRepository {
	return &distributionRepo{
		db:           db,
		walletRepo:   walletRepo,
		ledgerRepo:   ledgerRepo,
		adRepo:       adRepo,
		referralRepo: referralRepo,
		streakRepo:   streakRepo,
		caps:         caps,
		refGen:       refGen,
		clock:        clock,
	}
}

// ===============================
// Distribution commit
// ===============================

// Commit executes one distribution atomically:
//  1. write the settlement rows, if attached (the unique impression index
//     rejects a racing duplicate here, before any money moves)
//  2. lock all party wallets in sorted user order (deadlock-free)
//  3. enforce daily caps against the locked read set
//  4. append ledger rows and credit wallets
//  5. write the referral / enrollment / streak attachments
//
// Any failure rolls the whole transaction back.
func (r *distributionRepo) Commit(ctx context.Context, req *domain.DistributionRequest) (*domain.DistributionResult, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid distribution request: %w", err)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if req.Settlement != nil {
		if err := r.writeSettlement(ctx, tx, req.Settlement); err != nil {
			return nil, err
		}
	}

	if req.Enrollment != nil {
		if err := r.writeEnrollment(ctx, tx, req.Enrollment); err != nil {
			return nil, err
		}
	}

	parties, skipped, err := r.lockWallets(ctx, tx, req.Parties)
	if err != nil {
		return nil, err
	}

	parties, capSkipped, err := r.enforceCaps(ctx, tx, parties)
	if err != nil {
		return nil, err
	}
	skipped = append(skipped, capSkipped...)

	result := &domain.DistributionResult{SkippedUsers: skipped}
	for _, p := range parties {
		txn, err := r.creditParty(ctx, tx, req, p)
		if err != nil {
			return nil, err
		}
		result.Transactions = append(result.Transactions, txn)
	}

	// The award bookkeeping only exists when the referrer's credit actually
	// committed; a skipped party (missing wallet, reached cap) forfeits the
	// share and must not be recorded as paid.
	if awardSurvives(result, req.Referral) {
		if err := r.writeReferralAward(ctx, tx, req.Referral); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit distribution: %w", err)
	}

	result.CommittedAt = r.clock.Now()
	return result, nil
}

func (r *distributionRepo) writeSettlement(ctx context.Context, tx pgx.Tx, s *domain.AdSettlement) error {
	if err := r.adRepo.CreateEvent(ctx, tx, s.Event); err != nil {
		return err
	}

	if s.Distribution != nil {
		s.Distribution.AdRevenueEventID = s.Event.ID
		if err := r.adRepo.CreateDistribution(ctx, tx, s.Distribution); err != nil {
			return err
		}
	}

	return nil
}

func (r *distributionRepo) writeEnrollment(ctx context.Context, tx pgx.Tx, e *domain.ReferralEnrollment) error {
	if err := r.referralRepo.CreateRelationship(ctx, tx, e.Relationship); err != nil {
		return err
	}
	return r.referralRepo.IncrementCodeUse(ctx, tx, e.CodeID)
}

// awardSurvives reports whether the cascade award may be written: the
// referrer must hold a committed ledger row in this distribution, otherwise
// the relationship totals would claim a share no ledger row backs.
func awardSurvives(result *domain.DistributionResult, award *domain.ReferralAward) bool {
	if award == nil {
		return false
	}
	return result.TransactionFor(award.Earning.ReferrerID) != nil
}

func (r *distributionRepo) writeReferralAward(ctx context.Context, tx pgx.Tx, award *domain.ReferralAward) error {
	if err := r.referralRepo.CreateEarning(ctx, tx, award.Earning); err != nil {
		return err
	}
	return r.referralRepo.RecordRevenueShare(ctx, tx, award.Earning.RelationshipID, award.Earning.Amount)
}

// lockWallets locks each distinct party wallet in sorted user order. Parties
// whose wallet is missing are dropped when every allocation for that user
// allows it, otherwise the commit fails.
func (r *distributionRepo) lockWallets(ctx context.Context, tx pgx.Tx, parties []*domain.PartyAllocation) ([]*domain.PartyAllocation, []string, error) {
	byUser := make(map[string][]*domain.PartyAllocation)
	users := make([]string, 0, len(parties))
	for _, p := range parties {
		if _, seen := byUser[p.UserID]; !seen {
			users = append(users, p.UserID)
		}
		byUser[p.UserID] = append(byUser[p.UserID], p)
	}
	sort.Strings(users)

	var kept []*domain.PartyAllocation
	var skipped []string
	for _, userID := range users {
		_, err := r.walletRepo.GetByUserIDWithLock(ctx, tx, userID)
		if err != nil {
			if errors.Is(err, xerrors.ErrWalletNotFound) && allSkippable(byUser[userID]) {
				skipped = append(skipped, userID)
				continue
			}
			return nil, nil, err
		}
		kept = append(kept, byUser[userID]...)
	}

	// Preserve the caller's allocation order for the result
	sort.SliceStable(kept, func(i, j int) bool {
		return allocationIndex(parties, kept[i]) < allocationIndex(parties, kept[j])
	})

	return kept, skipped, nil
}

func allSkippable(allocations []*domain.PartyAllocation) bool {
	for _, p := range allocations {
		if !p.SkipIfMissing {
			return false
		}
	}
	return true
}

func allocationIndex(parties []*domain.PartyAllocation, target *domain.PartyAllocation) int {
	for i, p := range parties {
		if p == target {
			return i
		}
	}
	return len(parties)
}

// enforceCaps checks each allocation against the day's category cap on the
// commit transaction's own read set. Wallet rows are already locked, so two
// concurrent commits for one user cannot both squeeze under the cap.
func (r *distributionRepo) enforceCaps(ctx context.Context, tx pgx.Tx, parties []*domain.PartyAllocation) ([]*domain.PartyAllocation, []string, error) {
	dayStart := domain.DateOnly(r.clock.Now())

	var kept []*domain.PartyAllocation
	var skipped []string
	for _, p := range parties {
		limit, hasCap := r.caps[p.SubType]
		if !hasCap {
			kept = append(kept, p)
			continue
		}

		earnedToday, err := r.ledgerRepo.SumCompletedSinceTx(ctx, tx, p.UserID, p.SubType, dayStart)
		if err != nil {
			return nil, nil, err
		}

		if earnedToday.Add(p.Amount).GreaterThan(limit) {
			if p.SkipIfCapped {
				skipped = append(skipped, p.UserID)
				continue
			}
			return nil, nil, fmt.Errorf("daily %s cap reached for user %s: %w", p.SubType, p.UserID, xerrors.ErrCapExceeded)
		}

		kept = append(kept, p)
	}

	return kept, skipped, nil
}

func (r *distributionRepo) creditParty(ctx context.Context, tx pgx.Tx, req *domain.DistributionRequest, p *domain.PartyAllocation) (*domain.LedgerTransaction, error) {
	txType, err := domain.TypeForSubType(p.SubType)
	if err != nil {
		return nil, err
	}
	category, err := domain.CategoryForSubType(p.SubType)
	if err != nil {
		return nil, err
	}

	description := p.Description
	if description == "" {
		description = req.Description
	}

	txn, err := r.ledgerRepo.Create(ctx, tx, &domain.LedgerTransactionCreate{
		Ref:         r.refGen.GenerateTransactionRef(),
		UserID:      p.UserID,
		Type:        txType,
		SubType:     p.SubType,
		Amount:      p.Amount,
		Description: description,
		ReelID:      req.ReelID,
		EventID:     req.EventID,
		Status:      domain.StatusCompleted,
	})
	if err != nil {
		return nil, err
	}

	if err := r.walletRepo.ApplyEarning(ctx, tx, p.UserID, category, p.Amount); err != nil {
		return nil, err
	}

	return txn, nil
}

// ===============================
// Daily streak check-in
// ===============================

// CommitCheckIn advances the user's streak state machine and pays the
// resulting bonus atomically. A same-day repeat is a committed no-op.
func (r *distributionRepo) CommitCheckIn(ctx context.Context, userID string, capMultiplier int, bonusFor func(multiplier int) decimal.Decimal) (*domain.CheckInResult, *domain.LedgerTransaction, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	streak, err := r.streakRepo.GetWithLock(ctx, tx, userID)
	if err != nil {
		return nil, nil, err
	}

	result := streak.Advance(r.clock.Now(), capMultiplier)
	if result.AlreadyCheckedIn {
		return &result, nil, nil
	}

	var bonusTxn *domain.LedgerTransaction
	bonus := bonusFor(result.BonusMultiplier)
	if bonus.IsPositive() {
		if _, err := r.walletRepo.GetByUserIDWithLock(ctx, tx, userID); err != nil {
			return nil, nil, err
		}

		bonusTxn, err = r.ledgerRepo.Create(ctx, tx, &domain.LedgerTransactionCreate{
			Ref:         r.refGen.GenerateTransactionRef(),
			UserID:      userID,
			Type:        domain.TransactionTypeBonus,
			SubType:     domain.SubTypeDailyStreak,
			Amount:      bonus,
			Description: fmt.Sprintf("Daily streak bonus, day %d", result.StreakCount),
			Status:      domain.StatusCompleted,
		})
		if err != nil {
			return nil, nil, err
		}

		if err := r.walletRepo.ApplyEarning(ctx, tx, userID, domain.CategoryStreak, bonus); err != nil {
			return nil, nil, err
		}

		streak.StreakRewards = streak.StreakRewards.Add(bonus)
	}

	if err := r.streakRepo.Save(ctx, tx, streak); err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to commit check-in: %w", err)
	}

	return &result, bonusTxn, nil
}

// ===============================
// Withdrawal lifecycle
// ===============================

// RequestWithdrawal moves funds available → pending and appends the pending
// withdrawal row in one transaction. Settlement happens later in batch.
func (r *distributionRepo) RequestWithdrawal(ctx context.Context, userID string, amount decimal.Decimal, description string) (*domain.LedgerTransaction, error) {
	if !amount.IsPositive() {
		return nil, errors.New("withdrawal amount must be positive")
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := r.walletRepo.GetByUserIDWithLock(ctx, tx, userID); err != nil {
		return nil, err
	}

	if err := r.walletRepo.ReserveWithdrawal(ctx, tx, userID, amount); err != nil {
		return nil, err
	}

	txn, err := r.ledgerRepo.Create(ctx, tx, &domain.LedgerTransactionCreate{
		Ref:         r.refGen.GenerateTransactionRef(),
		UserID:      userID,
		Type:        domain.TransactionTypeWithdrawal,
		SubType:     domain.SubTypeWithdrawal,
		Amount:      amount,
		Description: description,
		Status:      domain.StatusPending,
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit withdrawal request: %w", err)
	}

	return txn, nil
}

// SettleWithdrawal finalizes one pending withdrawal: pending funds leave the
// wallet and the ledger row flips to completed, atomically. Already-settled
// rows surface ErrNotFound and the caller treats them as done.
func (r *distributionRepo) SettleWithdrawal(ctx context.Context, txn *domain.LedgerTransaction) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := r.walletRepo.GetByUserIDWithLock(ctx, tx, txn.UserID); err != nil {
		return err
	}

	if err := r.ledgerRepo.MarkWithdrawalCompleted(ctx, tx, txn.ID); err != nil {
		return err
	}

	if err := r.walletRepo.SettleWithdrawal(ctx, tx, txn.UserID, txn.Amount); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit withdrawal settlement: %w", err)
	}

	return nil
}
