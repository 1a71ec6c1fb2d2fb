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

type LedgerRepository interface {
	// Append-only writes, always inside a distribution/withdrawal transaction
	Create(ctx context.Context, tx pgx.Tx, create *domain.LedgerTransactionCreate) (*domain.LedgerTransaction, error)

	// Reads
	ListByUser(ctx context.Context, filter *domain.TransactionFilter) ([]*domain.LedgerTransaction, error)

	// Daily cap support. The Tx variant runs on the commit transaction's own
	// read set so the cap check and the write share one atomic scope.
	SumCompletedSinceTx(ctx context.Context, tx pgx.Tx, userID string, subType domain.TransactionSubType, since time.Time) (decimal.Decimal, error)
	DailySummary(ctx context.Context, userID string, since time.Time) (map[domain.TransactionSubType]decimal.Decimal, error)

	// Withdrawal lifecycle
	ListPendingWithdrawals(ctx context.Context, olderThan time.Time, limit int) ([]*domain.LedgerTransaction, error)
	MarkWithdrawalCompleted(ctx context.Context, tx pgx.Tx, id int64) error

	// Referral cascade bookkeeping. Ad revenue earnings are created with
	// referral_processed = FALSE; clearing the flag is the last step of a
	// successful (or ruled-out) cascade.
	MarkReferralProcessed(ctx context.Context, id int64) error
	ListUnprocessedReferrals(ctx context.Context, limit int) ([]*domain.LedgerTransaction, error)
}

type ledgerRepo struct {
	db *pgxpool.Pool
}

func NewLedgerRepo(db *pgxpool.Pool) LedgerRepository {
	return &ledgerRepo{db: db}
}

const ledgerColumns = `
	id, ref, user_id, type, sub_type, amount, description,
	reel_id, event_id, status, referral_processed, created_at, processed_at
`

func scanLedgerTransaction(row pgx.Row) (*domain.LedgerTransaction, error) {
	var t domain.LedgerTransaction
	err := row.Scan(
		&t.ID,
		&t.Ref,
		&t.UserID,
		&t.Type,
		&t.SubType,
		&t.Amount,
		&t.Description,
		&t.ReelID,
		&t.EventID,
		&t.Status,
		&t.ReferralProcessed,
		&t.CreatedAt,
		&t.ProcessedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan ledger transaction: %w", err)
	}
	return &t, nil
}

// Create appends one ledger transaction inside a transaction
func (r *ledgerRepo) Create(ctx context.Context, tx pgx.Tx, create *domain.LedgerTransactionCreate) (*domain.LedgerTransaction, error) {
	if tx == nil {
		return nil, errors.New("transaction cannot be nil")
	}

	if err := create.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	var processedAt *time.Time
	if create.Status == domain.StatusCompleted {
		processedAt = &now
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO ledger_transactions
			(ref, user_id, type, sub_type, amount, description, reel_id, event_id, status, referral_processed, created_at, processed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING `+ledgerColumns+`
	`, create.Ref, create.UserID, create.Type, create.SubType, create.Amount,
		create.Description, create.ReelID, create.EventID, create.Status,
		!create.CascadePending(), now, processedAt)

	return scanLedgerTransaction(row)
}

// ListByUser retrieves ledger transactions for a user with filters
func (r *ledgerRepo) ListByUser(ctx context.Context, filter *domain.TransactionFilter) ([]*domain.LedgerTransaction, error) {
	query := `
		SELECT ` + ledgerColumns + `
		FROM ledger_transactions
		WHERE user_id = $1
	`
	args := []interface{}{filter.UserID}
	argPos := 2

	if filter.Type != nil {
		query += fmt.Sprintf(" AND type = $%d", argPos)
		args = append(args, *filter.Type)
		argPos++
	}
	if filter.SubType != nil {
		query += fmt.Sprintf(" AND sub_type = $%d", argPos)
		args = append(args, *filter.SubType)
		argPos++
	}
	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argPos)
		args = append(args, *filter.Status)
		argPos++
	}
	if filter.StartDate != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argPos)
		args = append(args, *filter.StartDate)
		argPos++
	}
	if filter.EndDate != nil {
		query += fmt.Sprintf(" AND created_at < $%d", argPos)
		args = append(args, *filter.EndDate)
		argPos++
	}

	query += " ORDER BY created_at DESC"
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	return collectTransactions(rows)
}

func collectTransactions(rows pgx.Rows) ([]*domain.LedgerTransaction, error) {
	var txns []*domain.LedgerTransaction
	for rows.Next() {
		txn, err := scanLedgerTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transaction rows: %w", err)
	}
	return txns, nil
}

// SumCompletedSinceTx sums completed same-category earnings on the commit
// transaction. Wallet rows are already locked when this runs, so two
// concurrent distributions for the same user cannot both pass the cap.
func (r *ledgerRepo) SumCompletedSinceTx(ctx context.Context, tx pgx.Tx, userID string, subType domain.TransactionSubType, since time.Time) (decimal.Decimal, error) {
	if tx == nil {
		return decimal.Zero, errors.New("transaction cannot be nil")
	}

	var sum decimal.Decimal
	err := tx.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM ledger_transactions
		WHERE user_id = $1 AND sub_type = $2 AND status = $3 AND created_at >= $4
	`, userID, subType, domain.StatusCompleted, since).Scan(&sum)

	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum daily earnings: %w", err)
	}

	return sum, nil
}

// DailySummary returns per-category completed earning totals since a cutoff
func (r *ledgerRepo) DailySummary(ctx context.Context, userID string, since time.Time) (map[domain.TransactionSubType]decimal.Decimal, error) {
	rows, err := r.db.Query(ctx, `
		SELECT sub_type, COALESCE(SUM(amount), 0)
		FROM ledger_transactions
		WHERE user_id = $1 AND status = $2 AND created_at >= $3 AND type != $4
		GROUP BY sub_type
	`, userID, domain.StatusCompleted, since, domain.TransactionTypeWithdrawal)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily summary: %w", err)
	}
	defer rows.Close()

	summary := make(map[domain.TransactionSubType]decimal.Decimal)
	for rows.Next() {
		var subType domain.TransactionSubType
		var sum decimal.Decimal
		if err := rows.Scan(&subType, &sum); err != nil {
			return nil, fmt.Errorf("failed to scan summary row: %w", err)
		}
		summary[subType] = sum
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating summary rows: %w", err)
	}

	return summary, nil
}

// ListPendingWithdrawals returns pending withdrawals older than a cutoff,
// oldest first, bounded for batch processing
func (r *ledgerRepo) ListPendingWithdrawals(ctx context.Context, olderThan time.Time, limit int) ([]*domain.LedgerTransaction, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+ledgerColumns+`
		FROM ledger_transactions
		WHERE type = $1 AND status = $2 AND created_at < $3
		ORDER BY created_at ASC
		LIMIT $4
	`, domain.TransactionTypeWithdrawal, domain.StatusPending, olderThan, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending withdrawals: %w", err)
	}
	defer rows.Close()

	return collectTransactions(rows)
}

// MarkWithdrawalCompleted transitions a pending withdrawal to completed.
// The status guard makes re-running a batch after partial failure a no-op
// for already-settled rows.
func (r *ledgerRepo) MarkWithdrawalCompleted(ctx context.Context, tx pgx.Tx, id int64) error {
	if tx == nil {
		return errors.New("transaction cannot be nil")
	}

	cmdTag, err := tx.Exec(ctx, `
		UPDATE ledger_transactions
		SET status = $1, processed_at = $2
		WHERE id = $3 AND type = $4 AND status = $5
	`, domain.StatusCompleted, time.Now(), id, domain.TransactionTypeWithdrawal, domain.StatusPending)

	if err != nil {
		return fmt.Errorf("failed to mark withdrawal completed: %w", err)
	}

	if cmdTag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}

	return nil
}

// MarkReferralProcessed clears the repair flag once the cascade has been
// paid or ruled out
func (r *ledgerRepo) MarkReferralProcessed(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, `
		UPDATE ledger_transactions
		SET referral_processed = TRUE
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("failed to mark referral processed: %w", err)
	}
	return nil
}

// ListUnprocessedReferrals returns ad revenue earnings whose cascade has not
// completed yet, oldest first
func (r *ledgerRepo) ListUnprocessedReferrals(ctx context.Context, limit int) ([]*domain.LedgerTransaction, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+ledgerColumns+`
		FROM ledger_transactions
		WHERE referral_processed = FALSE AND sub_type = $1 AND status = $2
		ORDER BY created_at ASC
		LIMIT $3
	`, domain.SubTypeAdRevenue, domain.StatusCompleted, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list unprocessed referrals: %w", err)
	}
	defer rows.Close()

	return collectTransactions(rows)
}
