package usecase

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"monetize-service/internal/config"
	"monetize-service/internal/domain"
	publisher "monetize-service/internal/pub"
	"monetize-service/internal/repository"
	"monetize-service/internal/service"
	"monetize-service/pkg/id"
	"monetize-service/pkg/utils"
	xerrors "monetize-service/pkg/xerrors"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

// ===============================
// Mocks
// ===============================

// Embedding the interface makes any call outside the stubbed set panic,
// which is exactly what a test wants from an unexpected interaction.

type mockDistRepo struct {
	repository.DistributionRepository
	commits  []*domain.DistributionRequest
	commitFn func(req *domain.DistributionRequest) (*domain.DistributionResult, error)
}

func (m *mockDistRepo) Commit(_ context.Context, req *domain.DistributionRequest) (*domain.DistributionResult, error) {
	m.commits = append(m.commits, req)
	if m.commitFn != nil {
		return m.commitFn(req)
	}

	result := &domain.DistributionResult{CommittedAt: time.Now()}
	for i, p := range req.Parties {
		result.Transactions = append(result.Transactions, &domain.LedgerTransaction{
			ID:      int64(1000 + i),
			Ref:     "TXN-test",
			UserID:  p.UserID,
			SubType: p.SubType,
			Amount:  p.Amount,
			Status:  domain.StatusCompleted,
		})
	}
	return result, nil
}

type mockReferralRepo struct {
	repository.ReferralRepository
	relationships map[string]*domain.ReferralRelationship
	codesByValue  map[string]*domain.ReferralCode
	codesByUser   map[string]*domain.ReferralCode
	expired       []int64
	codeStatuses  map[int64]domain.ReferralCodeStatus
}

func (m *mockReferralRepo) GetRelationshipByReferee(_ context.Context, refereeID string) (*domain.ReferralRelationship, error) {
	rel, ok := m.relationships[refereeID]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	return rel, nil
}

func (m *mockReferralRepo) GetCodeByCode(_ context.Context, code string) (*domain.ReferralCode, error) {
	c, ok := m.codesByValue[code]
	if !ok {
		return nil, xerrors.ErrCodeNotFound
	}
	return c, nil
}

func (m *mockReferralRepo) GetCodeByUser(_ context.Context, userID string) (*domain.ReferralCode, error) {
	c, ok := m.codesByUser[userID]
	if !ok {
		return nil, xerrors.ErrCodeNotFound
	}
	return c, nil
}

func (m *mockReferralRepo) MarkExpired(_ context.Context, relationshipID int64) error {
	m.expired = append(m.expired, relationshipID)
	return nil
}

func (m *mockReferralRepo) UpdateCodeStatus(_ context.Context, codeID int64, status domain.ReferralCodeStatus) error {
	m.codeStatuses[codeID] = status
	return nil
}

type mockLedgerRepo struct {
	repository.LedgerRepository
	unprocessed []*domain.LedgerTransaction
	processed   []int64
}

func (m *mockLedgerRepo) MarkReferralProcessed(_ context.Context, id int64) error {
	m.processed = append(m.processed, id)
	return nil
}

func (m *mockLedgerRepo) ListUnprocessedReferrals(_ context.Context, limit int) ([]*domain.LedgerTransaction, error) {
	if len(m.unprocessed) > limit {
		return m.unprocessed[:limit], nil
	}
	return m.unprocessed, nil
}

type mockWalletRepo struct {
	repository.WalletRepository
}

func (m *mockWalletRepo) GetByUserID(_ context.Context, userID string) (*domain.Wallet, error) {
	return domain.NewWallet(userID), nil
}

func (m *mockWalletRepo) Create(_ context.Context, userID string) (*domain.Wallet, error) {
	return domain.NewWallet(userID), nil
}

// ===============================
// Fixture
// ===============================

type referralFixture struct {
	uc       *ReferralUsecase
	dist     *mockDistRepo
	referral *mockReferralRepo
	ledger   *mockLedgerRepo
	clock    *clockwork.FakeClock
}

func newReferralFixture(t *testing.T) *referralFixture {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	// unreachable on purpose: cache and event publishing degrade gracefully
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	events := publisher.NewEarningEventPublisher(rdb)

	cfg := config.MonetizationConfig{
		ReferrerBonus:       decimal.RequireFromString("0.05"),
		MinRevenueForBonus:  decimal.RequireFromString("0.01"),
		TrackingDuration:    90 * 24 * time.Hour,
		SignupBonusReferrer: decimal.RequireFromString("1.00"),
		SignupBonusReferee:  decimal.RequireFromString("0.50"),
		CodeMaxAttempts:     5,
		ShareLinkBase:       "https://reels.example.com/invite",
		MinPayoutAmount:     decimal.RequireFromString("0.001"),
	}

	clock := clockwork.NewFakeClockAt(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	calc := service.NewRevenueCalculator(cfg, clock)

	sf, err := id.NewSnowflake(1)
	require.NoError(t, err)
	codeGen := utils.NewCodeGenerator(sf)

	dist := &mockDistRepo{}
	referralRepo := &mockReferralRepo{
		relationships: map[string]*domain.ReferralRelationship{},
		codesByValue:  map[string]*domain.ReferralCode{},
		codesByUser:   map[string]*domain.ReferralCode{},
		codeStatuses:  map[int64]domain.ReferralCodeStatus{},
	}
	ledgerRepo := &mockLedgerRepo{}
	walletRepo := &mockWalletRepo{}

	walletUC := NewWalletUsecase(walletRepo, nil, dist, rdb, events, cfg, clock, logger)
	uc := NewReferralUsecase(referralRepo, ledgerRepo, dist, walletUC, calc, codeGen, events, cfg, clock, logger)

	return &referralFixture{uc: uc, dist: dist, referral: referralRepo, ledger: ledgerRepo, clock: clock}
}

func adEarning(userID string, amount string, id int64) *domain.LedgerTransaction {
	return &domain.LedgerTransaction{
		ID:      id,
		Ref:     "TXN-src",
		UserID:  userID,
		Type:    domain.TransactionTypeEarning,
		SubType: domain.SubTypeAdRevenue,
		Amount:  decimal.RequireFromString(amount),
		Status:  domain.StatusCompleted,
	}
}

// ===============================
// Cascade
// ===============================

func TestProcessRevenueShareSingleHop(t *testing.T) {
	t.Parallel()
	f := newReferralFixture(t)

	// A referred B, B referred C: an earning by C pays B and only B
	f.referral.relationships["user-b"] = &domain.ReferralRelationship{
		ID: 1, ReferrerID: "user-a", RefereeID: "user-b",
		SignupDate: f.clock.Now().AddDate(0, 0, -2), Status: domain.ReferralActive,
	}
	f.referral.relationships["user-c"] = &domain.ReferralRelationship{
		ID: 2, ReferrerID: "user-b", RefereeID: "user-c",
		SignupDate: f.clock.Now().AddDate(0, 0, -2), Status: domain.ReferralActive,
	}

	err := f.uc.ProcessRevenueShare(context.Background(), adEarning("user-c", "1.00", 42))
	require.NoError(t, err)

	require.Len(t, f.dist.commits, 1)
	req := f.dist.commits[0]

	require.Len(t, req.Parties, 1)
	require.Equal(t, "user-b", req.Parties[0].UserID)
	require.Equal(t, domain.SubTypeReferralRevenue, req.Parties[0].SubType)
	require.True(t, req.Parties[0].Amount.Equal(decimal.RequireFromString("0.05")))
	require.Equal(t, "5% share of referee user-c ad earnings", req.Parties[0].Description)

	require.NotNil(t, req.Referral)
	require.Equal(t, int64(42), req.Referral.Earning.SourceTxnID)
	require.Equal(t, int64(2), req.Referral.Earning.RelationshipID)
	require.Equal(t, "user-b", req.Referral.Earning.ReferrerID)

	// the repair flag comes up only once the cascade resolved
	require.Equal(t, []int64{42}, f.ledger.processed)

	// B's cascade payment is a referral_revenue transaction; feeding it back
	// through the cascade must not pay A
	bTxn := &domain.LedgerTransaction{
		ID: 43, UserID: "user-b",
		Type: domain.TransactionTypeReferral, SubType: domain.SubTypeReferralRevenue,
		Amount: decimal.RequireFromString("0.05"), Status: domain.StatusCompleted,
	}
	require.NoError(t, f.uc.ProcessRevenueShare(context.Background(), bTxn))
	require.Len(t, f.dist.commits, 1, "second hop must not fire")
}

func TestProcessRevenueShareNoRelationship(t *testing.T) {
	t.Parallel()
	f := newReferralFixture(t)

	err := f.uc.ProcessRevenueShare(context.Background(), adEarning("user-x", "1.00", 7))
	require.NoError(t, err)
	require.Empty(t, f.dist.commits)

	// ruled out is resolved: the repair job must not rescan this earning
	require.Equal(t, []int64{7}, f.ledger.processed)
}

func TestProcessRevenueShareExpiredWindow(t *testing.T) {
	t.Parallel()
	f := newReferralFixture(t)

	f.referral.relationships["user-c"] = &domain.ReferralRelationship{
		ID: 9, ReferrerID: "user-b", RefereeID: "user-c",
		SignupDate: f.clock.Now().AddDate(0, 0, -120), Status: domain.ReferralActive,
	}

	err := f.uc.ProcessRevenueShare(context.Background(), adEarning("user-c", "1.00", 8))
	require.NoError(t, err)
	require.Empty(t, f.dist.commits)
	require.Equal(t, []int64{9}, f.referral.expired)
	require.Equal(t, []int64{8}, f.ledger.processed)
}

func TestProcessRevenueShareBelowMinimum(t *testing.T) {
	t.Parallel()
	f := newReferralFixture(t)

	f.referral.relationships["user-c"] = &domain.ReferralRelationship{
		ID: 3, ReferrerID: "user-b", RefereeID: "user-c",
		SignupDate: f.clock.Now().AddDate(0, 0, -1), Status: domain.ReferralActive,
	}

	err := f.uc.ProcessRevenueShare(context.Background(), adEarning("user-c", "0.005", 11))
	require.NoError(t, err)
	require.Empty(t, f.dist.commits)
	require.Equal(t, []int64{11}, f.ledger.processed)
}

func TestProcessRevenueShareDuplicateIsDone(t *testing.T) {
	t.Parallel()
	f := newReferralFixture(t)

	f.referral.relationships["user-c"] = &domain.ReferralRelationship{
		ID: 4, ReferrerID: "user-b", RefereeID: "user-c",
		SignupDate: f.clock.Now().AddDate(0, 0, -1), Status: domain.ReferralActive,
	}
	f.dist.commitFn = func(*domain.DistributionRequest) (*domain.DistributionResult, error) {
		return nil, xerrors.ErrDuplicateEvent
	}

	err := f.uc.ProcessRevenueShare(context.Background(), adEarning("user-c", "1.00", 12))
	require.NoError(t, err, "an already-paid cascade is success, not failure")
	require.Equal(t, []int64{12}, f.ledger.processed)
}

func TestProcessRevenueShareKeepsFlagOnFailure(t *testing.T) {
	t.Parallel()
	f := newReferralFixture(t)

	f.referral.relationships["user-c"] = &domain.ReferralRelationship{
		ID: 5, ReferrerID: "user-b", RefereeID: "user-c",
		SignupDate: f.clock.Now().AddDate(0, 0, -1), Status: domain.ReferralActive,
	}
	f.dist.commitFn = func(*domain.DistributionRequest) (*domain.DistributionResult, error) {
		return nil, errors.New("connection reset")
	}

	err := f.uc.ProcessRevenueShare(context.Background(), adEarning("user-c", "1.00", 14))
	require.Error(t, err)

	// unresolved: the earning stays visible to the repair job
	require.Empty(t, f.ledger.processed)
}

func TestRepairUnprocessed(t *testing.T) {
	t.Parallel()
	f := newReferralFixture(t)

	f.referral.relationships["user-c"] = &domain.ReferralRelationship{
		ID: 6, ReferrerID: "user-b", RefereeID: "user-c",
		SignupDate: f.clock.Now().AddDate(0, 0, -1), Status: domain.ReferralActive,
	}
	f.ledger.unprocessed = []*domain.LedgerTransaction{
		adEarning("user-c", "1.00", 21),
		adEarning("user-c", "1.00", 22),
	}
	f.dist.commitFn = func(req *domain.DistributionRequest) (*domain.DistributionResult, error) {
		if req.Referral.Earning.SourceTxnID == 22 {
			return nil, errors.New("connection reset")
		}
		result := &domain.DistributionResult{}
		for _, p := range req.Parties {
			result.Transactions = append(result.Transactions, &domain.LedgerTransaction{
				UserID: p.UserID, SubType: p.SubType, Amount: p.Amount,
			})
		}
		return result, nil
	}

	repaired, err := f.uc.RepairUnprocessed(context.Background(), 100)
	require.NoError(t, err)
	require.Equal(t, 1, repaired)
	require.Equal(t, []int64{21}, f.ledger.processed)
}

func TestProcessRevenueShareIgnoresOtherSubTypes(t *testing.T) {
	t.Parallel()
	f := newReferralFixture(t)

	txn := adEarning("user-c", "1.00", 13)
	txn.SubType = domain.SubTypeWatch

	require.NoError(t, f.uc.ProcessRevenueShare(context.Background(), txn))
	require.Empty(t, f.dist.commits)
}

// ===============================
// Enrollment
// ===============================

func TestApplyReferralCode(t *testing.T) {
	t.Parallel()

	newCode := func() *domain.ReferralCode {
		return &domain.ReferralCode{
			ID: 5, UserID: "user-a", Code: "FRIENDA7",
			Status: domain.CodeStatusActive,
		}
	}

	t.Run("success pays the signup bonus pair atomically", func(t *testing.T) {
		t.Parallel()
		f := newReferralFixture(t)
		f.referral.codesByValue["FRIENDA7"] = newCode()

		rel, err := f.uc.ApplyReferralCode(context.Background(), "user-b", "frienda7", "b@example.com")
		require.NoError(t, err)
		require.Equal(t, "user-a", rel.ReferrerID)
		require.Equal(t, "user-b", rel.RefereeID)
		require.Equal(t, "b@example.com", rel.RefereeEmail)
		require.True(t, rel.BonusPaid)

		require.Len(t, f.dist.commits, 1)
		req := f.dist.commits[0]

		require.NotNil(t, req.Enrollment)
		require.Equal(t, int64(5), req.Enrollment.CodeID)

		require.Len(t, req.Parties, 2)
		require.Equal(t, "user-a", req.Parties[0].UserID)
		require.Equal(t, domain.SubTypeReferralSignup, req.Parties[0].SubType)
		require.True(t, req.Parties[0].Amount.Equal(decimal.RequireFromString("1.00")))
		require.Equal(t, "user-b", req.Parties[1].UserID)
		require.Equal(t, domain.SubTypeWelcomeBonus, req.Parties[1].SubType)
		require.True(t, req.Parties[1].Amount.Equal(decimal.RequireFromString("0.50")))
	})

	t.Run("self referral rejected", func(t *testing.T) {
		t.Parallel()
		f := newReferralFixture(t)
		f.referral.codesByValue["FRIENDA7"] = newCode()

		_, err := f.uc.ApplyReferralCode(context.Background(), "user-a", "FRIENDA7", "")
		require.ErrorIs(t, err, xerrors.ErrSelfReferral)
		require.Empty(t, f.dist.commits)
	})

	t.Run("second code rejected", func(t *testing.T) {
		t.Parallel()
		f := newReferralFixture(t)
		f.referral.codesByValue["FRIENDA7"] = newCode()
		f.referral.relationships["user-b"] = &domain.ReferralRelationship{
			ID: 1, ReferrerID: "user-z", RefereeID: "user-b",
		}

		_, err := f.uc.ApplyReferralCode(context.Background(), "user-b", "FRIENDA7", "")
		require.ErrorIs(t, err, xerrors.ErrAlreadyReferred)
		require.Empty(t, f.dist.commits)
	})

	t.Run("invalid format rejected", func(t *testing.T) {
		t.Parallel()
		f := newReferralFixture(t)

		_, err := f.uc.ApplyReferralCode(context.Background(), "user-b", "no spaces!", "")
		require.ErrorIs(t, err, xerrors.ErrInvalidCodeFormat)
	})

	t.Run("unknown code rejected", func(t *testing.T) {
		t.Parallel()
		f := newReferralFixture(t)

		_, err := f.uc.ApplyReferralCode(context.Background(), "user-b", "MISSING1", "")
		require.ErrorIs(t, err, xerrors.ErrCodeNotFound)
	})

	t.Run("exhausted code rejected", func(t *testing.T) {
		t.Parallel()
		f := newReferralFixture(t)
		code := newCode()
		max := 3
		code.MaxUses = &max
		code.TotalUses = 3
		f.referral.codesByValue["FRIENDA7"] = code

		_, err := f.uc.ApplyReferralCode(context.Background(), "user-b", "FRIENDA7", "")
		require.ErrorIs(t, err, xerrors.ErrCodeExhausted)
		require.Empty(t, f.dist.commits)
	})

	t.Run("past-deadline code rejected and transitioned", func(t *testing.T) {
		t.Parallel()
		f := newReferralFixture(t)
		code := newCode()
		expiry := f.clock.Now().Add(-time.Hour)
		code.ExpiresAt = &expiry
		f.referral.codesByValue["FRIENDA7"] = code

		_, err := f.uc.ApplyReferralCode(context.Background(), "user-b", "FRIENDA7", "")
		require.ErrorIs(t, err, xerrors.ErrCodeExpired)
		require.Empty(t, f.dist.commits)
		require.Equal(t, domain.CodeStatusExpired, f.referral.codeStatuses[5])
	})
}

func TestShareLink(t *testing.T) {
	t.Parallel()
	f := newReferralFixture(t)
	f.referral.codesByUser["user-a"] = &domain.ReferralCode{
		UserID: "user-a", Code: "FRIENDA7", Status: domain.CodeStatusActive,
	}

	link, err := f.uc.ShareLink(context.Background(), "user-a")
	require.NoError(t, err)
	require.Equal(t, "https://reels.example.com/invite?code=FRIENDA7", link)
}
