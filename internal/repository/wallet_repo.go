package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"monetize-service/internal/domain"
	xerrors "monetize-service/pkg/xerrors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type WalletRepository interface {
	// Basic CRUD
	Create(ctx context.Context, userID string) (*domain.Wallet, error)
	GetByUserID(ctx context.Context, userID string) (*domain.Wallet, error)
	GetByUserIDWithLock(ctx context.Context, tx pgx.Tx, userID string) (*domain.Wallet, error)

	// Balance mutations: only ever called from inside a distribution commit
	// or withdrawal transaction, never ad hoc.
	ApplyEarning(ctx context.Context, tx pgx.Tx, userID string, category domain.EarningCategory, amount decimal.Decimal) error
	ReserveWithdrawal(ctx context.Context, tx pgx.Tx, userID string, amount decimal.Decimal) error
	SettleWithdrawal(ctx context.Context, tx pgx.Tx, userID string, amount decimal.Decimal) error
}

type walletRepo struct {
	db *pgxpool.Pool
}

func NewWalletRepo(db *pgxpool.Pool) WalletRepository {
	return &walletRepo{db: db}
}

const walletColumns = `
	user_id,
	total_balance,
	available_balance,
	pending_balance,
	total_earned,
	total_withdrawn,
	ad_earnings,
	bonus_earnings,
	watch_earnings,
	create_earnings,
	referral_earnings,
	streak_earnings,
	version,
	last_updated
`

func scanWallet(row pgx.Row) (*domain.Wallet, error) {
	var w domain.Wallet
	err := row.Scan(
		&w.UserID,
		&w.TotalBalance,
		&w.AvailableBalance,
		&w.PendingBalance,
		&w.TotalEarned,
		&w.TotalWithdrawn,
		&w.AdEarnings,
		&w.BonusEarnings,
		&w.WatchEarnings,
		&w.CreateEarnings,
		&w.ReferralEarnings,
		&w.StreakEarnings,
		&w.Version,
		&w.LastUpdated,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xerrors.ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to scan wallet: %w", err)
	}
	return &w, nil
}

// Create inserts a zero-valued wallet for a new user (idempotent)
func (r *walletRepo) Create(ctx context.Context, userID string) (*domain.Wallet, error) {
	_, err := r.db.Exec(ctx, `
		INSERT INTO wallets (user_id, last_updated)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO NOTHING
	`, userID, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to create wallet: %w", err)
	}

	return r.GetByUserID(ctx, userID)
}

// GetByUserID fetches a wallet (read-only, no lock)
func (r *walletRepo) GetByUserID(ctx context.Context, userID string) (*domain.Wallet, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+walletColumns+`
		FROM wallets
		WHERE user_id = $1
	`, userID)

	return scanWallet(row)
}

// GetByUserIDWithLock fetches a wallet with pessimistic lock (SELECT FOR UPDATE).
// Concurrent distributions touching the same wallet serialize here.
func (r *walletRepo) GetByUserIDWithLock(ctx context.Context, tx pgx.Tx, userID string) (*domain.Wallet, error) {
	if tx == nil {
		return nil, errors.New("transaction cannot be nil for locked query")
	}

	row := tx.QueryRow(ctx, `
		SELECT `+walletColumns+`
		FROM wallets
		WHERE user_id = $1
		FOR UPDATE
	`, userID)

	return scanWallet(row)
}

// ApplyEarning credits an earning amount to the wallet and the category
// subtotal. The category column comes from the closed EarningCategory enum,
// never from a caller-supplied string.
func (r *walletRepo) ApplyEarning(ctx context.Context, tx pgx.Tx, userID string, category domain.EarningCategory, amount decimal.Decimal) error {
	if tx == nil {
		return errors.New("transaction cannot be nil")
	}
	if !amount.IsPositive() {
		return errors.New("earning amount must be positive")
	}

	column := category.Column()
	if column == "" {
		return domain.ErrUnknownSubType
	}

	query := fmt.Sprintf(`
		UPDATE wallets
		SET
			total_balance = total_balance + $1,
			available_balance = available_balance + $1,
			total_earned = total_earned + $1,
			%s = %s + $1,
			version = version + 1,
			last_updated = $2
		WHERE user_id = $3
	`, column, column)

	cmdTag, err := tx.Exec(ctx, query, amount, time.Now(), userID)
	if err != nil {
		return fmt.Errorf("failed to apply earning: %w", err)
	}

	if cmdTag.RowsAffected() == 0 {
		return xerrors.ErrWalletNotFound
	}

	return nil
}

// ReserveWithdrawal moves funds available → pending for a withdrawal request.
// The wallet must already be locked by the caller; the guard on
// available_balance rejects the request before any mutation is visible.
func (r *walletRepo) ReserveWithdrawal(ctx context.Context, tx pgx.Tx, userID string, amount decimal.Decimal) error {
	if tx == nil {
		return errors.New("transaction cannot be nil")
	}

	var newAvailable decimal.Decimal
	err := tx.QueryRow(ctx, `
		UPDATE wallets
		SET
			available_balance = available_balance - $1,
			pending_balance = pending_balance + $1,
			version = version + 1,
			last_updated = $2
		WHERE user_id = $3 AND available_balance >= $1
		RETURNING available_balance
	`, amount, time.Now(), userID).Scan(&newAvailable)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return xerrors.ErrInsufficientFunds
		}
		return fmt.Errorf("failed to reserve withdrawal: %w", err)
	}

	return nil
}

// SettleWithdrawal finalizes a pending withdrawal: pending funds leave the
// wallet and the lifetime withdrawn counter advances.
func (r *walletRepo) SettleWithdrawal(ctx context.Context, tx pgx.Tx, userID string, amount decimal.Decimal) error {
	if tx == nil {
		return errors.New("transaction cannot be nil")
	}

	cmdTag, err := tx.Exec(ctx, `
		UPDATE wallets
		SET
			total_balance = total_balance - $1,
			pending_balance = pending_balance - $1,
			total_withdrawn = total_withdrawn + $1,
			version = version + 1,
			last_updated = $2
		WHERE user_id = $3 AND pending_balance >= $1
	`, amount, time.Now(), userID)

	if err != nil {
		return fmt.Errorf("failed to settle withdrawal: %w", err)
	}

	if cmdTag.RowsAffected() == 0 {
		return xerrors.ErrWalletNotFound
	}

	return nil
}
