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
)

type AdRevenueRepository interface {
	// Idempotency guard fast path: settled events only
	HasSettled(ctx context.Context, reelID, viewerID, impressionID string) (bool, error)

	// Settlement writes, always inside the distribution commit transaction.
	// The unique (reel_id, viewer_id, impression_id) index is the dedup key;
	// writing it here means a racing retry conflicts instead of double-paying.
	CreateEvent(ctx context.Context, tx pgx.Tx, event *domain.AdRevenueEvent) error
	CreateDistribution(ctx context.Context, tx pgx.Tx, dist *domain.RevenueDistribution) error

	// Reads
	GetDistributionByRef(ctx context.Context, ref string) (*domain.RevenueDistribution, error)

	// Retention cleanup. Only the distribution analytics records are
	// prunable: ad_revenue_events carry the impression dedup key and are
	// retained indefinitely, like the ledger, so a replay after any amount
	// of time still conflicts instead of double-paying.
	DeleteDistributionsOlderThan(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

type adRevenueRepo struct {
	db *pgxpool.Pool
}

func NewAdRevenueRepo(db *pgxpool.Pool) AdRevenueRepository {
	return &adRevenueRepo{db: db}
}

// HasSettled checks whether a distribution already settled this impression
func (r *adRevenueRepo) HasSettled(ctx context.Context, reelID, viewerID, impressionID string) (bool, error) {
	var settled bool
	err := r.db.QueryRow(ctx, `
		SELECT settled
		FROM ad_revenue_events
		WHERE reel_id = $1 AND viewer_id = $2 AND impression_id = $3
	`, reelID, viewerID, impressionID).Scan(&settled)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check settlement: %w", err)
	}

	return settled, nil
}

// CreateEvent inserts a settled ad revenue event inside a transaction
func (r *adRevenueRepo) CreateEvent(ctx context.Context, tx pgx.Tx, event *domain.AdRevenueEvent) error {
	if tx == nil {
		return errors.New("transaction cannot be nil")
	}

	err := tx.QueryRow(ctx, `
		INSERT INTO ad_revenue_events
			(reel_id, viewer_id, creator_id, ad_provider, ad_type, revenue, cpm,
			 view_duration, video_duration, impression_id, is_valid_view, settled, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING id
	`, event.ReelID, event.ViewerID, event.CreatorID, event.AdProvider, event.AdType,
		event.Revenue, event.CPM, event.ViewDuration, event.VideoDuration,
		event.ImpressionID, event.IsValidView, event.Settled, time.Now()).Scan(&event.ID)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return xerrors.ErrDuplicateEvent
		}
		return fmt.Errorf("failed to create ad revenue event: %w", err)
	}

	return nil
}

// CreateDistribution inserts a revenue distribution inside a transaction
func (r *adRevenueRepo) CreateDistribution(ctx context.Context, tx pgx.Tx, dist *domain.RevenueDistribution) error {
	if tx == nil {
		return errors.New("transaction cannot be nil")
	}

	err := tx.QueryRow(ctx, `
		INSERT INTO revenue_distributions
			(ref, ad_revenue_event_id, total_revenue,
			 creator_id, creator_amount, creator_pct,
			 viewer_id, viewer_amount, viewer_pct,
			 app_amount, app_pct,
			 status, created_at, completed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		RETURNING id
	`, dist.Ref, dist.AdRevenueEventID, dist.TotalRevenue,
		dist.Creator.UserID, dist.Creator.Amount, dist.Creator.Percentage,
		dist.Viewer.UserID, dist.Viewer.Amount, dist.Viewer.Percentage,
		dist.App.Amount, dist.App.Percentage,
		dist.Status, time.Now(), dist.CompletedAt).Scan(&dist.ID)

	if err != nil {
		return fmt.Errorf("failed to create revenue distribution: %w", err)
	}

	return nil
}

// GetDistributionByRef retrieves a distribution by its reference
func (r *adRevenueRepo) GetDistributionByRef(ctx context.Context, ref string) (*domain.RevenueDistribution, error) {
	var d domain.RevenueDistribution
	err := r.db.QueryRow(ctx, `
		SELECT id, ref, ad_revenue_event_id, total_revenue,
		       creator_id, creator_amount, creator_pct,
		       viewer_id, viewer_amount, viewer_pct,
		       app_amount, app_pct,
		       status, created_at, completed_at
		FROM revenue_distributions
		WHERE ref = $1
	`, ref).Scan(
		&d.ID, &d.Ref, &d.AdRevenueEventID, &d.TotalRevenue,
		&d.Creator.UserID, &d.Creator.Amount, &d.Creator.Percentage,
		&d.Viewer.UserID, &d.Viewer.Amount, &d.Viewer.Percentage,
		&d.App.Amount, &d.App.Percentage,
		&d.Status, &d.CreatedAt, &d.CompletedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get distribution: %w", err)
	}

	return &d, nil
}

// DeleteDistributionsOlderThan prunes distribution records past the
// retention window. The referenced ad_revenue_events rows stay: they are the
// impression dedup key and outlive any retention policy.
func (r *adRevenueRepo) DeleteDistributionsOlderThan(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	cmdTag, err := r.db.Exec(ctx, `
		DELETE FROM revenue_distributions
		WHERE id IN (
			SELECT id FROM revenue_distributions
			WHERE created_at < $1
			ORDER BY created_at ASC
			LIMIT $2
		)
	`, cutoff, limit)

	if err != nil {
		return 0, fmt.Errorf("failed to prune revenue distributions: %w", err)
	}

	return cmdTag.RowsAffected(), nil
}
