package usecase

import (
	"context"
	"fmt"

	"monetize-service/internal/config"
	"monetize-service/internal/domain"
	publisher "monetize-service/internal/pub"
	"monetize-service/internal/repository"
	xerrors "monetize-service/pkg/xerrors"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// BonusUsecase pays client-reported engagement bonuses (create, like, share).
// Reported amounts are clamped server-side: anything over the configured
// per-category limit is rejected, and daily caps apply at commit.
type BonusUsecase struct {
	distRepo repository.DistributionRepository
	walletUC *WalletUsecase
	events   *publisher.EarningEventPublisher
	cfg      config.MonetizationConfig
	log      *logrus.Logger
}

// NewBonusUsecase initializes a new BonusUsecase
func NewBonusUsecase(
	distRepo repository.DistributionRepository,
	walletUC *WalletUsecase,
	events *publisher.EarningEventPublisher,
	cfg config.MonetizationConfig,
	log *logrus.Logger,
) *BonusUsecase {
	return &BonusUsecase{
		distRepo: distRepo,
		walletUC: walletUC,
		events:   events,
		cfg:      cfg,
		log:      log,
	}
}

// AwardEngagementBonus credits one engagement earning to a user
func (uc *BonusUsecase) AwardEngagementBonus(ctx context.Context, userID string, subType domain.TransactionSubType, amount decimal.Decimal, reelID *string) (*domain.LedgerTransaction, error) {
	limit, ok := uc.cfg.BonusLimits[subType]
	if !ok {
		return nil, domain.ErrUnknownSubType
	}
	if !amount.IsPositive() {
		return nil, xerrors.ErrAmountTooSmall
	}
	if amount.GreaterThan(limit) {
		return nil, xerrors.ErrBonusOverLimit
	}

	if _, err := uc.walletUC.GetOrCreateWallet(ctx, userID); err != nil {
		return nil, err
	}

	result, err := uc.distRepo.Commit(ctx, &domain.DistributionRequest{
		Description: fmt.Sprintf("%s bonus", subType),
		ReelID:      reelID,
		Parties: []*domain.PartyAllocation{
			{
				UserID:  userID,
				Amount:  amount,
				SubType: subType,
			},
		},
	})
	if err != nil {
		return nil, err
	}

	txn := result.TransactionFor(userID)
	uc.walletUC.InvalidateWallet(ctx, userID)

	if txn != nil {
		if err := uc.events.PublishEarningCredited(ctx, txn); err != nil {
			uc.log.WithError(err).WithField("ref", txn.Ref).Warn("failed to publish bonus event")
		}
	}

	return txn, nil
}
