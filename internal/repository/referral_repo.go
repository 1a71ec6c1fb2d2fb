package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"monetize-service/internal/domain"
	xerrors "monetize-service/pkg/xerrors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type ReferralRepository interface {
	// Codes
	GetCodeByUser(ctx context.Context, userID string) (*domain.ReferralCode, error)
	GetCodeByCode(ctx context.Context, code string) (*domain.ReferralCode, error)
	CreateCode(ctx context.Context, code *domain.ReferralCode) error
	IncrementCodeUse(ctx context.Context, tx pgx.Tx, codeID int64) error
	UpdateCodeStatus(ctx context.Context, codeID int64, status domain.ReferralCodeStatus) error

	// Relationships
	GetRelationshipByReferee(ctx context.Context, refereeID string) (*domain.ReferralRelationship, error)
	CreateRelationship(ctx context.Context, tx pgx.Tx, rel *domain.ReferralRelationship) error
	MarkExpired(ctx context.Context, relationshipID int64) error
	RecordRevenueShare(ctx context.Context, tx pgx.Tx, relationshipID int64, amount decimal.Decimal) error

	// Cascade earnings
	CreateEarning(ctx context.Context, tx pgx.Tx, earning *domain.ReferralEarning) error
}

type referralRepo struct {
	db *pgxpool.Pool
}

func NewReferralRepo(db *pgxpool.Pool) ReferralRepository {
	return &referralRepo{db: db}
}

const codeColumns = `id, user_id, code, status, total_uses, max_uses, expires_at, created_at`

func scanCode(row pgx.Row) (*domain.ReferralCode, error) {
	var c domain.ReferralCode
	err := row.Scan(&c.ID, &c.UserID, &c.Code, &c.Status, &c.TotalUses, &c.MaxUses, &c.ExpiresAt, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xerrors.ErrCodeNotFound
		}
		return nil, fmt.Errorf("failed to scan referral code: %w", err)
	}
	return &c, nil
}

// GetCodeByUser retrieves a user's referral code
func (r *referralRepo) GetCodeByUser(ctx context.Context, userID string) (*domain.ReferralCode, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+codeColumns+`
		FROM referral_codes
		WHERE user_id = $1
	`, userID)
	return scanCode(row)
}

// GetCodeByCode retrieves a referral code by its value
func (r *referralRepo) GetCodeByCode(ctx context.Context, code string) (*domain.ReferralCode, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+codeColumns+`
		FROM referral_codes
		WHERE code = $1
	`, code)
	return scanCode(row)
}

// CreateCode inserts a new referral code. A unique violation on the code
// value surfaces as ErrReferralCodeTaken so generation can retry.
func (r *referralRepo) CreateCode(ctx context.Context, code *domain.ReferralCode) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO referral_codes (user_id, code, status, max_uses, expires_at, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id
	`, code.UserID, code.Code, code.Status, code.MaxUses, code.ExpiresAt, time.Now()).Scan(&code.ID)

	if err != nil {
		if xerrors.ParsePGErrorCode(err) == "23505" {
			return xerrors.ErrReferralCodeTaken
		}
		return fmt.Errorf("failed to create referral code: %w", err)
	}

	return nil
}

// IncrementCodeUse bumps total_uses and marks the code exhausted when it
// reaches its ceiling
func (r *referralRepo) IncrementCodeUse(ctx context.Context, tx pgx.Tx, codeID int64) error {
	if tx == nil {
		return errors.New("transaction cannot be nil")
	}

	cmdTag, err := tx.Exec(ctx, `
		UPDATE referral_codes
		SET total_uses = total_uses + 1,
		    status = CASE
		        WHEN max_uses IS NOT NULL AND total_uses + 1 >= max_uses THEN 'exhausted'
		        ELSE status
		    END
		WHERE id = $1
	`, codeID)

	if err != nil {
		return fmt.Errorf("failed to increment code use: %w", err)
	}

	if cmdTag.RowsAffected() == 0 {
		return xerrors.ErrCodeNotFound
	}

	return nil
}

// UpdateCodeStatus transitions a code's lifecycle state
func (r *referralRepo) UpdateCodeStatus(ctx context.Context, codeID int64, status domain.ReferralCodeStatus) error {
	_, err := r.db.Exec(ctx, `
		UPDATE referral_codes SET status = $1 WHERE id = $2
	`, status, codeID)
	if err != nil {
		return fmt.Errorf("failed to update code status: %w", err)
	}
	return nil
}

const relationshipColumns = `
	id, referrer_id, referee_id, referral_code, referee_email, signup_date,
	status, total_revenue_shared, last_revenue_share, bonus_paid
`

func scanRelationship(row pgx.Row) (*domain.ReferralRelationship, error) {
	var rel domain.ReferralRelationship
	err := row.Scan(
		&rel.ID, &rel.ReferrerID, &rel.RefereeID, &rel.ReferralCode,
		&rel.RefereeEmail, &rel.SignupDate, &rel.Status,
		&rel.TotalRevenueShared, &rel.LastRevenueShare, &rel.BonusPaid,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan referral relationship: %w", err)
	}
	return &rel, nil
}

// GetRelationshipByReferee retrieves the single relationship for a referee
func (r *referralRepo) GetRelationshipByReferee(ctx context.Context, refereeID string) (*domain.ReferralRelationship, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+relationshipColumns+`
		FROM referral_relationships
		WHERE referee_id = $1
	`, refereeID)
	return scanRelationship(row)
}

// CreateRelationship inserts the referee's one-and-only relationship.
// The unique referee_id index enforces first-code-wins: a second apply
// surfaces as ErrAlreadyReferred.
func (r *referralRepo) CreateRelationship(ctx context.Context, tx pgx.Tx, rel *domain.ReferralRelationship) error {
	if tx == nil {
		return errors.New("transaction cannot be nil")
	}

	err := tx.QueryRow(ctx, `
		INSERT INTO referral_relationships
			(referrer_id, referee_id, referral_code, referee_email, signup_date, status, total_revenue_shared, bonus_paid)
		VALUES ($1,$2,$3,$4,$5,$6,0,$7)
		RETURNING id
	`, rel.ReferrerID, rel.RefereeID, rel.ReferralCode, rel.RefereeEmail,
		rel.SignupDate, rel.Status, rel.BonusPaid).Scan(&rel.ID)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return xerrors.ErrAlreadyReferred
		}
		return fmt.Errorf("failed to create referral relationship: %w", err)
	}

	return nil
}

// MarkExpired transitions a relationship past its tracking window
func (r *referralRepo) MarkExpired(ctx context.Context, relationshipID int64) error {
	_, err := r.db.Exec(ctx, `
		UPDATE referral_relationships SET status = $1 WHERE id = $2
	`, domain.ReferralExpired, relationshipID)
	if err != nil {
		return fmt.Errorf("failed to mark relationship expired: %w", err)
	}
	return nil
}

// RecordRevenueShare bumps the relationship's running cascade total
func (r *referralRepo) RecordRevenueShare(ctx context.Context, tx pgx.Tx, relationshipID int64, amount decimal.Decimal) error {
	if tx == nil {
		return errors.New("transaction cannot be nil")
	}

	_, err := tx.Exec(ctx, `
		UPDATE referral_relationships
		SET total_revenue_shared = total_revenue_shared + $1,
		    last_revenue_share = $2
		WHERE id = $3
	`, amount, time.Now(), relationshipID)
	if err != nil {
		return fmt.Errorf("failed to record revenue share: %w", err)
	}
	return nil
}

// CreateEarning appends one cascade payment record. The unique
// source_txn_id index guarantees at most one cascade per triggering earning.
func (r *referralRepo) CreateEarning(ctx context.Context, tx pgx.Tx, earning *domain.ReferralEarning) error {
	if tx == nil {
		return errors.New("transaction cannot be nil")
	}

	err := tx.QueryRow(ctx, `
		INSERT INTO referral_earnings
			(relationship_id, referrer_id, referee_id, source_txn_id, amount, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id
	`, earning.RelationshipID, earning.ReferrerID, earning.RefereeID,
		earning.SourceTxnID, earning.Amount, time.Now()).Scan(&earning.ID)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return xerrors.ErrDuplicateEvent
		}
		return fmt.Errorf("failed to create referral earning: %w", err)
	}

	return nil
}
