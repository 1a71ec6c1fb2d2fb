package usecase

import (
	"context"
	"fmt"

	"monetize-service/internal/config"
	"monetize-service/internal/domain"
	publisher "monetize-service/internal/pub"
	"monetize-service/internal/repository"
	"monetize-service/internal/service"
	"monetize-service/pkg/utils"
	xerrors "monetize-service/pkg/xerrors"

	"github.com/sirupsen/logrus"
)

// RevenueUsecase orchestrates ad revenue settlement end to end: eligibility,
// idempotency, directory checks, the atomic three-way split, and the
// one-hop referral cascade.
type RevenueUsecase struct {
	calc       *service.RevenueCalculator
	adRepo     repository.AdRevenueRepository
	distRepo   repository.DistributionRepository
	walletUC   *WalletUsecase
	referralUC *ReferralUsecase
	userDir    service.UserDirectory
	contentDir service.ContentDirectory
	codeGen    *utils.CodeGenerator
	events     *publisher.EarningEventPublisher
	analytics  *publisher.AnalyticsPublisher
	cfg        config.MonetizationConfig
	log        *logrus.Logger
}

// NewRevenueUsecase initializes a new RevenueUsecase
func NewRevenueUsecase(
	calc *service.RevenueCalculator,
	adRepo repository.AdRevenueRepository,
	distRepo repository.DistributionRepository,
	walletUC *WalletUsecase,
	referralUC *ReferralUsecase,
	userDir service.UserDirectory,
	contentDir service.ContentDirectory,
	codeGen *utils.CodeGenerator,
	events *publisher.EarningEventPublisher,
	analytics *publisher.AnalyticsPublisher,
	cfg config.MonetizationConfig,
	log *logrus.Logger,
) *RevenueUsecase {
	return &RevenueUsecase{
		calc:       calc,
		adRepo:     adRepo,
		distRepo:   distRepo,
		walletUC:   walletUC,
		referralUC: referralUC,
		userDir:    userDir,
		contentDir: contentDir,
		codeGen:    codeGen,
		events:     events,
		analytics:  analytics,
		cfg:        cfg,
		log:        log,
	}
}

// SubmitAdRevenueEvent settles one qualifying ad impression. On success the
// returned distribution is already committed: ledger rows written, wallets
// credited, the impression recorded as settled. Any rejection leaves no
// partial state behind.
func (uc *RevenueUsecase) SubmitAdRevenueEvent(ctx context.Context, event *domain.AdRevenueEvent) (*domain.RevenueDistribution, error) {
	if err := uc.calc.CheckEligibility(event); err != nil {
		return nil, err
	}

	settled, err := uc.adRepo.HasSettled(ctx, event.ReelID, event.ViewerID, event.ImpressionID)
	if err != nil {
		return nil, err
	}
	if settled {
		return nil, xerrors.ErrDuplicateEvent
	}

	if event.CreatorID == "" {
		creatorID, err := uc.contentDir.CreatorOf(ctx, event.ReelID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve reel creator: %w", err)
		}
		event.CreatorID = creatorID
	}

	for _, userID := range []string{event.CreatorID, event.ViewerID} {
		exists, err := uc.userDir.UserExists(ctx, userID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, fmt.Errorf("account %s: %w", userID, xerrors.ErrNotFound)
		}
		if _, err := uc.walletUC.GetOrCreateWallet(ctx, userID); err != nil {
			return nil, err
		}
	}

	dist, err := uc.calc.Distribute(event, uc.codeGen.GenerateDistributionRef())
	if err != nil {
		return nil, err
	}

	event.IsValidView = true
	event.Settled = true

	eventID := uc.codeGen.GenerateEventID()
	result, err := uc.distRepo.Commit(ctx, &domain.DistributionRequest{
		Description: fmt.Sprintf("Ad revenue split for reel %s", event.ReelID),
		ReelID:      &event.ReelID,
		EventID:     &eventID,
		Settlement: &domain.AdSettlement{
			Event:        event,
			Distribution: dist,
		},
		Parties: []*domain.PartyAllocation{
			{
				UserID:      event.CreatorID,
				Amount:      dist.Creator.Amount,
				SubType:     domain.SubTypeAdRevenue,
				Description: fmt.Sprintf("Creator share of ad revenue on reel %s", event.ReelID),
			},
			{
				UserID:      event.ViewerID,
				Amount:      dist.Viewer.Amount,
				SubType:     domain.SubTypeWatch,
				Description: fmt.Sprintf("Viewer share of ad revenue on reel %s", event.ReelID),
			},
		},
	})
	if err != nil {
		return nil, err
	}

	uc.walletUC.InvalidateWallet(ctx, event.CreatorID)
	uc.walletUC.InvalidateWallet(ctx, event.ViewerID)

	uc.runCascade(ctx, result.TransactionFor(event.CreatorID))

	for _, txn := range result.Transactions {
		if err := uc.events.PublishEarningCredited(ctx, txn); err != nil {
			uc.log.WithError(err).WithField("ref", txn.Ref).Warn("failed to publish earning event")
		}
	}

	if err := uc.analytics.PublishDistributionSettled(ctx, event.ReelID, dist); err != nil {
		uc.log.WithError(err).WithField("ref", dist.Ref).Warn("failed to publish analytics event")
	}

	return dist, nil
}

// runCascade pays the creator's referrer their one-hop share. A cascade
// failure never unwinds the primary payment: the earning committed with its
// repair flag down, so the repair job retries until the cascade resolves.
func (uc *RevenueUsecase) runCascade(ctx context.Context, creatorTxn *domain.LedgerTransaction) {
	if creatorTxn == nil {
		return
	}

	if err := uc.referralUC.ProcessRevenueShare(ctx, creatorTxn); err != nil {
		uc.log.WithError(err).WithField("txn_id", creatorTxn.ID).Warn("referral cascade failed, repair job will retry")
	}
}

// GetDistribution returns a settled distribution by reference
func (uc *RevenueUsecase) GetDistribution(ctx context.Context, ref string) (*domain.RevenueDistribution, error) {
	return uc.adRepo.GetDistributionByRef(ctx, ref)
}
