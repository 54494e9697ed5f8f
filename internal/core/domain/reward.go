package domain

import (
	"fmt"
	"time"
)

// RewardOutcome is the result of the last processed reward period.
type RewardOutcome string

const (
	RewardOutcomeNone        RewardOutcome = ""
	RewardOutcomeInitialized RewardOutcome = "initialized"
	RewardOutcomePaid        RewardOutcome = "paid"
	RewardOutcomeSkipped     RewardOutcome = "skipped"
	RewardOutcomeFailed      RewardOutcome = "failed"
)

// RewardState is the per-account schedule of the distributor reward job.
// A nil NextRewardDate means the account was enrolled but never scheduled.
type RewardState struct {
	OwnerID            string        `json:"owner_id"`
	Currency           Currency      `json:"currency"`
	NextRewardDate     *time.Time    `json:"next_reward_date,omitempty"`
	TotalRewardsEarned int64         `json:"total_rewards_earned"`
	LastRewardAmount   int64         `json:"last_reward_amount"`
	LastRewardAt       *time.Time    `json:"last_reward_at,omitempty"`
	LastOutcome        RewardOutcome `json:"last_outcome,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

func (s *RewardState) Key() WalletKey {
	return WalletKey{OwnerID: s.OwnerID, Currency: s.Currency}
}

// IsDue reports whether the scheduled period has started.
func (s *RewardState) IsDue(now time.Time) bool {
	return s.NextRewardDate != nil && !s.NextRewardDate.After(now)
}

// NextRewardAfter advances next by whole intervals until it is strictly
// after now. Missed periods are dropped, not accumulated.
func NextRewardAfter(next time.Time, interval time.Duration, now time.Time) time.Time {
	if interval <= 0 || next.After(now) {
		return next
	}
	periods := now.Sub(next)/interval + 1
	return next.Add(periods * interval)
}

// RewardIdempotencyKey ties a reward credit to one wallet and period.
func RewardIdempotencyKey(key WalletKey, periodStart time.Time) string {
	return fmt.Sprintf("reward:%s:%s:%d", key.OwnerID, key.Currency, periodStart.UTC().Unix())
}

// RewardTickSummary reports what one processor tick did.
type RewardTickSummary struct {
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
	Scanned       int       `json:"scanned"`
	Initialized   int       `json:"initialized"`
	Paid          int       `json:"paid"`
	Skipped       int       `json:"skipped"`
	Failed        int       `json:"failed"`
	NotDue        int       `json:"not_due"`
	TotalCredited int64     `json:"total_credited"`
}
