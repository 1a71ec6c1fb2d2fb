package usecase

import (
	"context"

	"monetize-service/internal/config"
	"monetize-service/internal/domain"
	publisher "monetize-service/internal/pub"
	"monetize-service/internal/repository"
	"monetize-service/internal/service"
	xerrors "monetize-service/pkg/xerrors"

	"github.com/sirupsen/logrus"
)

type StreakUsecase struct {
	streakRepo repository.StreakRepository
	distRepo   repository.DistributionRepository
	walletUC   *WalletUsecase
	calc       *service.RevenueCalculator
	events     *publisher.EarningEventPublisher
	cfg        config.MonetizationConfig
	log        *logrus.Logger
}

// NewStreakUsecase initializes a new StreakUsecase
func NewStreakUsecase(
	streakRepo repository.StreakRepository,
	distRepo repository.DistributionRepository,
	walletUC *WalletUsecase,
	calc *service.RevenueCalculator,
	events *publisher.EarningEventPublisher,
	cfg config.MonetizationConfig,
	log *logrus.Logger,
) *StreakUsecase {
	return &StreakUsecase{
		streakRepo: streakRepo,
		distRepo:   distRepo,
		walletUC:   walletUC,
		calc:       calc,
		events:     events,
		cfg:        cfg,
		log:        log,
	}
}

// CheckIn runs one daily check-in: advances the streak, pays the bonus and
// publishes the credit. A same-day repeat returns the current state with a
// zero bonus and no writes.
func (uc *StreakUsecase) CheckIn(ctx context.Context, userID string) (*domain.CheckInResult, error) {
	if _, err := uc.walletUC.GetOrCreateWallet(ctx, userID); err != nil {
		return nil, err
	}

	result, bonusTxn, err := uc.distRepo.CommitCheckIn(ctx, userID, uc.cfg.StreakCapMultiplier, uc.calc.StreakBonus)
	if err != nil {
		return nil, err
	}

	if bonusTxn != nil {
		uc.walletUC.InvalidateWallet(ctx, userID)
		if err := uc.events.PublishEarningCredited(ctx, bonusTxn); err != nil {
			uc.log.WithError(err).WithField("ref", bonusTxn.Ref).Warn("failed to publish streak bonus event")
		}
	}

	return result, nil
}

// GetStreak returns the user's streak state; a user who never checked in
// gets an empty record instead of an error
func (uc *StreakUsecase) GetStreak(ctx context.Context, userID string) (*domain.DailyStreak, error) {
	streak, err := uc.streakRepo.Get(ctx, userID)
	if err != nil {
		if err == xerrors.ErrNotFound {
			return domain.NewDailyStreak(userID), nil
		}
		return nil, err
	}
	return streak, nil
}
