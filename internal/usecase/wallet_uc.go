package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"monetize-service/internal/config"
	"monetize-service/internal/domain"
	publisher "monetize-service/internal/pub"
	"monetize-service/internal/repository"
	xerrors "monetize-service/pkg/xerrors"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const walletCacheTTL = 1 * time.Minute

type WalletUsecase struct {
	walletRepo  repository.WalletRepository
	ledgerRepo  repository.LedgerRepository
	distRepo    repository.DistributionRepository
	redisClient *redis.Client
	events      *publisher.EarningEventPublisher
	cfg         config.MonetizationConfig
	clock       clockwork.Clock
	log         *logrus.Logger
}

// NewWalletUsecase initializes a new WalletUsecase
func NewWalletUsecase(
	walletRepo repository.WalletRepository,
	ledgerRepo repository.LedgerRepository,
	distRepo repository.DistributionRepository,
	redisClient *redis.Client,
	events *publisher.EarningEventPublisher,
	cfg config.MonetizationConfig,
	clock clockwork.Clock,
	log *logrus.Logger,
) *WalletUsecase {
	return &WalletUsecase{
		walletRepo:  walletRepo,
		ledgerRepo:  ledgerRepo,
		distRepo:    distRepo,
		redisClient: redisClient,
		events:      events,
		cfg:         cfg,
		clock:       clock,
		log:         log,
	}
}

func walletCacheKey(userID string) string {
	return "wallet:" + userID
}

// GetOrCreateWallet returns the user's wallet, creating an empty one on
// first touch
func (uc *WalletUsecase) GetOrCreateWallet(ctx context.Context, userID string) (*domain.Wallet, error) {
	wallet, err := uc.GetWallet(ctx, userID)
	if err == nil {
		return wallet, nil
	}
	if err != xerrors.ErrWalletNotFound {
		return nil, err
	}
	return uc.walletRepo.Create(ctx, userID)
}

// GetWallet fetches a wallet with a short Redis read-through cache
func (uc *WalletUsecase) GetWallet(ctx context.Context, userID string) (*domain.Wallet, error) {
	cacheKey := walletCacheKey(userID)

	// --- Check Redis cache first ---
	if val, err := uc.redisClient.Get(ctx, cacheKey).Result(); err == nil {
		var wallet domain.Wallet
		if jsonErr := json.Unmarshal([]byte(val), &wallet); jsonErr == nil {
			return &wallet, nil
		}
	}

	wallet, err := uc.walletRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	// --- Cache result in Redis ---
	if data, err := json.Marshal(wallet); err == nil {
		_ = uc.redisClient.Set(ctx, cacheKey, data, walletCacheTTL).Err()
	}

	return wallet, nil
}

// InvalidateWallet drops the cached wallet after any balance change
func (uc *WalletUsecase) InvalidateWallet(ctx context.Context, userID string) {
	if err := uc.redisClient.Del(ctx, walletCacheKey(userID)).Err(); err != nil {
		uc.log.WithError(err).WithField("user_id", userID).Warn("failed to invalidate wallet cache")
	}
}

// GetTransactions lists a user's ledger history with filters
func (uc *WalletUsecase) GetTransactions(ctx context.Context, filter *domain.TransactionFilter) ([]*domain.LedgerTransaction, error) {
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 50
	}
	return uc.ledgerRepo.ListByUser(ctx, filter)
}

// GetDailySummary returns today's per-category earning totals
func (uc *WalletUsecase) GetDailySummary(ctx context.Context, userID string) (map[domain.TransactionSubType]decimal.Decimal, error) {
	dayStart := domain.DateOnly(uc.clock.Now())
	return uc.ledgerRepo.DailySummary(ctx, userID, dayStart)
}

// RequestWithdrawal reserves available funds and appends a pending
// withdrawal. Settlement happens later via the scheduled batch.
func (uc *WalletUsecase) RequestWithdrawal(ctx context.Context, userID string, amount decimal.Decimal) (*domain.LedgerTransaction, error) {
	if amount.LessThan(uc.cfg.MinPayoutAmount) {
		return nil, xerrors.ErrAmountTooSmall
	}

	txn, err := uc.distRepo.RequestWithdrawal(ctx, userID, amount,
		fmt.Sprintf("Withdrawal request of %s", amount.String()))
	if err != nil {
		return nil, err
	}

	uc.InvalidateWallet(ctx, userID)

	if err := uc.events.PublishWithdrawalRequested(ctx, txn); err != nil {
		uc.log.WithError(err).WithField("ref", txn.Ref).Warn("failed to publish withdrawal event")
	}

	return txn, nil
}
