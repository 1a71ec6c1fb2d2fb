package usecase

import (
	"context"
	"errors"
	"fmt"

	"monetize-service/internal/config"
	"monetize-service/internal/domain"
	publisher "monetize-service/internal/pub"
	"monetize-service/internal/repository"
	"monetize-service/internal/service"
	"monetize-service/pkg/utils"
	xerrors "monetize-service/pkg/xerrors"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type ReferralUsecase struct {
	referralRepo repository.ReferralRepository
	ledgerRepo   repository.LedgerRepository
	distRepo     repository.DistributionRepository
	walletUC     *WalletUsecase
	calc         *service.RevenueCalculator
	codeGen      *utils.CodeGenerator
	events       *publisher.EarningEventPublisher
	cfg          config.MonetizationConfig
	clock        clockwork.Clock
	log          *logrus.Logger
}

// NewReferralUsecase initializes a new ReferralUsecase
func NewReferralUsecase(
	referralRepo repository.ReferralRepository,
	ledgerRepo repository.LedgerRepository,
	distRepo repository.DistributionRepository,
	walletUC *WalletUsecase,
	calc *service.RevenueCalculator,
	codeGen *utils.CodeGenerator,
	events *publisher.EarningEventPublisher,
	cfg config.MonetizationConfig,
	clock clockwork.Clock,
	log *logrus.Logger,
) *ReferralUsecase {
	return &ReferralUsecase{
		referralRepo: referralRepo,
		ledgerRepo:   ledgerRepo,
		distRepo:     distRepo,
		walletUC:     walletUC,
		calc:         calc,
		codeGen:      codeGen,
		events:       events,
		cfg:          cfg,
		clock:        clock,
		log:          log,
	}
}

// ===============================
// Code lifecycle
// ===============================

// GetOrCreateCode returns the user's referral code, generating one on first
// request. Generation retries on the rare code collision.
func (uc *ReferralUsecase) GetOrCreateCode(ctx context.Context, userID string) (*domain.ReferralCode, error) {
	code, err := uc.referralRepo.GetCodeByUser(ctx, userID)
	if err == nil {
		return code, nil
	}
	if !errors.Is(err, xerrors.ErrCodeNotFound) {
		return nil, err
	}

	for attempt := 0; attempt < uc.cfg.CodeMaxAttempts; attempt++ {
		code = &domain.ReferralCode{
			UserID: userID,
			Code:   uc.codeGen.GenerateReferralCode(),
			Status: domain.CodeStatusActive,
		}
		err = uc.referralRepo.CreateCode(ctx, code)
		if err == nil {
			return code, nil
		}
		if !errors.Is(err, xerrors.ErrReferralCodeTaken) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("could not generate a unique referral code: %w", xerrors.ErrReferralCodeTaken)
}

// CreateCustomCode registers a user-chosen code. One code per user, ever.
func (uc *ReferralUsecase) CreateCustomCode(ctx context.Context, userID, rawCode string) (*domain.ReferralCode, error) {
	normalized := utils.NormalizeReferralCode(rawCode)
	if !utils.ValidateReferralCode(normalized) {
		return nil, xerrors.ErrInvalidCodeFormat
	}

	if _, err := uc.referralRepo.GetCodeByUser(ctx, userID); err == nil {
		return nil, errors.New("user already has a referral code")
	} else if !errors.Is(err, xerrors.ErrCodeNotFound) {
		return nil, err
	}

	code := &domain.ReferralCode{
		UserID: userID,
		Code:   normalized,
		Status: domain.CodeStatusActive,
	}
	if err := uc.referralRepo.CreateCode(ctx, code); err != nil {
		return nil, err
	}

	return code, nil
}

// ShareLink builds the user's invite URL from their code
func (uc *ReferralUsecase) ShareLink(ctx context.Context, userID string) (string, error) {
	code, err := uc.GetOrCreateCode(ctx, userID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s?code=%s", uc.cfg.ShareLinkBase, code.Code), nil
}

// ===============================
// Enrollment
// ===============================

// ApplyReferralCode links a new referee to the code's owner and pays the
// signup bonus pair in one atomic step. A referee can ever be linked once;
// the first applied code wins.
func (uc *ReferralUsecase) ApplyReferralCode(ctx context.Context, refereeID, rawCode, refereeEmail string) (*domain.ReferralRelationship, error) {
	normalized := utils.NormalizeReferralCode(rawCode)
	if !utils.ValidateReferralCode(normalized) {
		return nil, xerrors.ErrInvalidCodeFormat
	}

	code, err := uc.referralRepo.GetCodeByCode(ctx, normalized)
	if err != nil {
		return nil, err
	}
	if code.UserID == refereeID {
		return nil, xerrors.ErrSelfReferral
	}

	now := uc.clock.Now()
	if err := code.Usable(now); err != nil {
		// Persist the deadline transition so later reads see the code as
		// expired without re-deriving it from expires_at
		if errors.Is(err, xerrors.ErrCodeExpired) && code.Status == domain.CodeStatusActive {
			if uerr := uc.referralRepo.UpdateCodeStatus(ctx, code.ID, domain.CodeStatusExpired); uerr != nil {
				uc.log.WithError(uerr).WithField("code_id", code.ID).Warn("failed to expire referral code")
			}
		}
		return nil, err
	}

	// Fast path; the unique referee index still guards the race
	if _, err := uc.referralRepo.GetRelationshipByReferee(ctx, refereeID); err == nil {
		return nil, xerrors.ErrAlreadyReferred
	} else if !errors.Is(err, xerrors.ErrNotFound) {
		return nil, err
	}

	if _, err := uc.walletUC.GetOrCreateWallet(ctx, refereeID); err != nil {
		return nil, err
	}
	if _, err := uc.walletUC.GetOrCreateWallet(ctx, code.UserID); err != nil {
		return nil, err
	}

	payBonus := uc.cfg.SignupBonusReferrer.IsPositive() || uc.cfg.SignupBonusReferee.IsPositive()
	rel := &domain.ReferralRelationship{
		ReferrerID:   code.UserID,
		RefereeID:    refereeID,
		ReferralCode: code.Code,
		RefereeEmail: refereeEmail,
		SignupDate:   now,
		Status:       domain.ReferralActive,
		BonusPaid:    payBonus,
	}

	req := &domain.DistributionRequest{
		Description: fmt.Sprintf("Referral signup via code %s", code.Code),
		Enrollment: &domain.ReferralEnrollment{
			Relationship: rel,
			CodeID:       code.ID,
		},
	}
	if uc.cfg.SignupBonusReferrer.IsPositive() {
		req.Parties = append(req.Parties, &domain.PartyAllocation{
			UserID:      code.UserID,
			Amount:      uc.cfg.SignupBonusReferrer,
			SubType:     domain.SubTypeReferralSignup,
			Description: fmt.Sprintf("Signup bonus for referring %s", refereeID),
		})
	}
	if uc.cfg.SignupBonusReferee.IsPositive() {
		req.Parties = append(req.Parties, &domain.PartyAllocation{
			UserID:      refereeID,
			Amount:      uc.cfg.SignupBonusReferee,
			SubType:     domain.SubTypeWelcomeBonus,
			Description: "Welcome bonus",
		})
	}

	result, err := uc.distRepo.Commit(ctx, req)
	if err != nil {
		return nil, err
	}

	uc.walletUC.InvalidateWallet(ctx, refereeID)
	uc.walletUC.InvalidateWallet(ctx, code.UserID)

	for _, txn := range result.Transactions {
		if err := uc.events.PublishEarningCredited(ctx, txn); err != nil {
			uc.log.WithError(err).WithField("ref", txn.Ref).Warn("failed to publish signup bonus event")
		}
	}

	return rel, nil
}

// GetRelationship returns the referee's relationship, if any
func (uc *ReferralUsecase) GetRelationship(ctx context.Context, refereeID string) (*domain.ReferralRelationship, error) {
	return uc.referralRepo.GetRelationshipByReferee(ctx, refereeID)
}

// ===============================
// Revenue cascade
// ===============================

// ProcessRevenueShare pays the one-hop referral share for a committed ad
// revenue earning. Exactly one hop: only the earner's direct referrer is
// paid, never the referrer's referrer. Safe to re-run for the same earning;
// the unique source transaction index makes the cascade exactly-once.
//
// Ad revenue earnings commit with their repair flag down. The flag only
// comes up here, after the cascade has been paid or ruled out, so a crash
// anywhere in between leaves a row the repair job will pick up.
func (uc *ReferralUsecase) ProcessRevenueShare(ctx context.Context, txn *domain.LedgerTransaction) error {
	if txn.SubType != domain.SubTypeAdRevenue {
		return nil
	}

	if err := uc.payCascade(ctx, txn); err != nil {
		return err
	}

	if !txn.ReferralProcessed {
		if err := uc.ledgerRepo.MarkReferralProcessed(ctx, txn.ID); err != nil {
			// the repair job retries; the duplicate guard keeps it single-pay
			return err
		}
		txn.ReferralProcessed = true
	}

	return nil
}

func (uc *ReferralUsecase) payCascade(ctx context.Context, txn *domain.LedgerTransaction) error {
	rel, err := uc.referralRepo.GetRelationshipByReferee(ctx, txn.UserID)
	if err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			return nil
		}
		return err
	}
	if rel.Status != domain.ReferralActive {
		return nil
	}

	now := uc.clock.Now()
	if !rel.WithinTrackingWindow(now, uc.cfg.TrackingDuration) {
		if err := uc.referralRepo.MarkExpired(ctx, rel.ID); err != nil {
			uc.log.WithError(err).WithField("relationship_id", rel.ID).Warn("failed to expire relationship")
		}
		return nil
	}

	amount := uc.calc.CascadeAmount(txn.Amount)
	if !amount.IsPositive() {
		return nil
	}

	sharePct := uc.cfg.ReferrerBonus.Mul(decimal.NewFromInt(100)).InexactFloat64()
	result, err := uc.distRepo.Commit(ctx, &domain.DistributionRequest{
		Description: fmt.Sprintf("Referral share of %s earning by %s", txn.Amount.String(), txn.UserID),
		ReelID:      txn.ReelID,
		EventID:     txn.EventID,
		Referral: &domain.ReferralAward{
			Earning: &domain.ReferralEarning{
				RelationshipID: rel.ID,
				ReferrerID:     rel.ReferrerID,
				RefereeID:      rel.RefereeID,
				SourceTxnID:    txn.ID,
				Amount:         amount,
			},
		},
		Parties: []*domain.PartyAllocation{
			{
				UserID:        rel.ReferrerID,
				Amount:        amount,
				SubType:       domain.SubTypeReferralRevenue,
				Description:   fmt.Sprintf("%g%% share of referee %s ad earnings", sharePct, rel.RefereeID),
				SkipIfMissing: true,
				SkipIfCapped:  true,
			},
		},
	})
	if err != nil {
		if errors.Is(err, xerrors.ErrDuplicateEvent) {
			// already cascaded by an earlier attempt
			return nil
		}
		return err
	}

	uc.walletUC.InvalidateWallet(ctx, rel.ReferrerID)
	if cascadeTxn := result.TransactionFor(rel.ReferrerID); cascadeTxn != nil {
		if err := uc.events.PublishEarningCredited(ctx, cascadeTxn); err != nil {
			uc.log.WithError(err).WithField("ref", cascadeTxn.Ref).Warn("failed to publish cascade event")
		}
	}

	return nil
}

// RepairUnprocessed retries cascades that failed after their primary earning
// committed. Each record repairs independently; one failure never aborts the
// rest of the page.
func (uc *ReferralUsecase) RepairUnprocessed(ctx context.Context, pageSize int) (int, error) {
	pending, err := uc.ledgerRepo.ListUnprocessedReferrals(ctx, pageSize)
	if err != nil {
		return 0, err
	}

	repaired := 0
	for _, txn := range pending {
		if err := uc.ProcessRevenueShare(ctx, txn); err != nil {
			uc.log.WithError(err).WithField("txn_id", txn.ID).Warn("referral repair failed")
			continue
		}
		repaired++
	}

	return repaired, nil
}
