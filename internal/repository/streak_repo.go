package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"monetize-service/internal/domain"
	xerrors "monetize-service/pkg/xerrors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type StreakRepository interface {
	Get(ctx context.Context, userID string) (*domain.DailyStreak, error)

	// GetWithLock fetches the streak row FOR UPDATE, inserting an empty row
	// first if the user has never checked in. Two same-day check-ins
	// serialize here, so the second sees the first's date and no-ops.
	GetWithLock(ctx context.Context, tx pgx.Tx, userID string) (*domain.DailyStreak, error)
	Save(ctx context.Context, tx pgx.Tx, streak *domain.DailyStreak) error
}

type streakRepo struct {
	db *pgxpool.Pool
}

func NewStreakRepo(db *pgxpool.Pool) StreakRepository {
	return &streakRepo{db: db}
}

const streakColumns = `
	user_id, current_streak, max_streak, last_streak_date,
	streak_rewards, milestones, updated_at
`

func scanStreak(row pgx.Row) (*domain.DailyStreak, error) {
	var s domain.DailyStreak
	var milestonesRaw []byte
	err := row.Scan(
		&s.UserID, &s.CurrentStreak, &s.MaxStreak, &s.LastStreakDate,
		&s.StreakRewards, &milestonesRaw, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan streak: %w", err)
	}

	s.Milestones, err = unmarshalMilestones(milestonesRaw)
	if err != nil {
		return nil, err
	}

	return &s, nil
}

// Get fetches a user's streak state (read-only)
func (r *streakRepo) Get(ctx context.Context, userID string) (*domain.DailyStreak, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+streakColumns+`
		FROM daily_streaks
		WHERE user_id = $1
	`, userID)
	return scanStreak(row)
}

// GetWithLock fetches a user's streak state with a pessimistic lock
func (r *streakRepo) GetWithLock(ctx context.Context, tx pgx.Tx, userID string) (*domain.DailyStreak, error) {
	if tx == nil {
		return nil, errors.New("transaction cannot be nil for locked query")
	}

	_, err := tx.Exec(ctx, `
		INSERT INTO daily_streaks (user_id, updated_at)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO NOTHING
	`, userID, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to ensure streak row: %w", err)
	}

	row := tx.QueryRow(ctx, `
		SELECT `+streakColumns+`
		FROM daily_streaks
		WHERE user_id = $1
		FOR UPDATE
	`, userID)
	return scanStreak(row)
}

// Save writes back the full streak state inside a transaction
func (r *streakRepo) Save(ctx context.Context, tx pgx.Tx, streak *domain.DailyStreak) error {
	if tx == nil {
		return errors.New("transaction cannot be nil")
	}

	milestonesRaw, err := marshalMilestones(streak.Milestones)
	if err != nil {
		return err
	}

	cmdTag, err := tx.Exec(ctx, `
		UPDATE daily_streaks
		SET current_streak = $1,
		    max_streak = $2,
		    last_streak_date = $3,
		    streak_rewards = $4,
		    milestones = $5,
		    updated_at = $6
		WHERE user_id = $7
	`, streak.CurrentStreak, streak.MaxStreak, streak.LastStreakDate,
		streak.StreakRewards, milestonesRaw, time.Now(), streak.UserID)

	if err != nil {
		return fmt.Errorf("failed to save streak: %w", err)
	}

	if cmdTag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}

	return nil
}

// JSONB object keys are strings, so milestone lengths round-trip via strconv

func marshalMilestones(m map[int]time.Time) ([]byte, error) {
	out := make(map[string]time.Time, len(m))
	for k, v := range m {
		out[strconv.Itoa(k)] = v
	}
	raw, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal milestones: %w", err)
	}
	return raw, nil
}

func unmarshalMilestones(raw []byte) (map[int]time.Time, error) {
	if len(raw) == 0 {
		return make(map[int]time.Time), nil
	}

	var in map[string]time.Time
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, fmt.Errorf("failed to unmarshal milestones: %w", err)
	}

	out := make(map[int]time.Time, len(in))
	for k, v := range in {
		n, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("invalid milestone key %q: %w", k, err)
		}
		out[n] = v
	}
	return out, nil
}
