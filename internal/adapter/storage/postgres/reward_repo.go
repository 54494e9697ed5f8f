package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"glotrade-wallet/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

const rewardColumns = `owner_id, currency, next_reward_date, total_rewards_earned, last_reward_amount,
	last_reward_at, last_outcome, created_at, updated_at`

// RewardStateRepo implements ports.RewardStateRepository.
type RewardStateRepo struct {
	pool Pool
}

// NewRewardStateRepo creates a new RewardStateRepo.
func NewRewardStateRepo(pool Pool) *RewardStateRepo {
	return &RewardStateRepo{pool: pool}
}

// Enroll adds an unscheduled state row for key unless one exists.
func (r *RewardStateRepo) Enroll(ctx context.Context, key domain.WalletKey, at time.Time) error {
	query := `INSERT INTO reward_states (owner_id, currency, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (owner_id, currency) DO NOTHING`

	if _, err := r.pool.Exec(ctx, query, key.OwnerID, key.Currency, at); err != nil {
		return classify(fmt.Errorf("enroll reward state: %w", err))
	}
	return nil
}

// Get returns nil, nil when key is not enrolled.
func (r *RewardStateRepo) Get(ctx context.Context, key domain.WalletKey) (*domain.RewardState, error) {
	query := `SELECT ` + rewardColumns + ` FROM reward_states WHERE owner_id = $1 AND currency = $2`

	st, err := scanRewardState(r.pool.QueryRow(ctx, query, key.OwnerID, key.Currency))
	if err != nil {
		return nil, classify(fmt.Errorf("get reward state: %w", err))
	}
	return st, nil
}

// ListEnrolled returns every state ordered by owner then currency.
func (r *RewardStateRepo) ListEnrolled(ctx context.Context) ([]domain.RewardState, error) {
	query := `SELECT ` + rewardColumns + ` FROM reward_states ORDER BY owner_id, currency`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, classify(fmt.Errorf("list reward states: %w", err))
	}
	defer rows.Close()

	var states []domain.RewardState
	for rows.Next() {
		st, err := scanRewardState(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reward state row: %w", err)
		}
		states = append(states, *st)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(fmt.Errorf("iterate reward state rows: %w", err))
	}
	return states, nil
}

// Save overwrites the schedule and statistics of an enrolled state.
func (r *RewardStateRepo) Save(ctx context.Context, st *domain.RewardState) error {
	query := `UPDATE reward_states
		SET next_reward_date = $1, total_rewards_earned = $2, last_reward_amount = $3,
			last_reward_at = $4, last_outcome = $5, updated_at = $6
		WHERE owner_id = $7 AND currency = $8`

	tag, err := r.pool.Exec(ctx, query,
		st.NextRewardDate, st.TotalRewardsEarned, st.LastRewardAmount,
		st.LastRewardAt, st.LastOutcome, st.UpdatedAt,
		st.OwnerID, st.Currency,
	)
	if err != nil {
		return classify(fmt.Errorf("save reward state: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("save reward state: %s not enrolled", st.Key())
	}
	return nil
}

func scanRewardState(row pgx.Row) (*domain.RewardState, error) {
	st := &domain.RewardState{}
	err := row.Scan(
		&st.OwnerID, &st.Currency, &st.NextRewardDate, &st.TotalRewardsEarned, &st.LastRewardAmount,
		&st.LastRewardAt, &st.LastOutcome, &st.CreatedAt, &st.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return st, nil
}
