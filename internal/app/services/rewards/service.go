// Package rewards pays task rewards and game results and sells storage
// capacity. Reward computation itself lives in the chat adapter; this service
// only moves tokens and enforces the one-time and funding rules.
package rewards

import (
	"context"
	"fmt"
	"strings"

	"github.com/OneWorld-Network/ledger_layer/internal/app/domain/account"
	"github.com/OneWorld-Network/ledger_layer/internal/app/domain/ledger"
	"github.com/OneWorld-Network/ledger_layer/internal/app/domain/reward"
	"github.com/OneWorld-Network/ledger_layer/internal/app/storage"
	"github.com/OneWorld-Network/ledger_layer/pkg/logger"
)

// Config carries the reward table and storage pricing.
type Config struct {
	// TaskRewards maps task names to their one-time reward amount.
	TaskRewards map[string]int64

	// StorageUnitCost is the token price of one storage unit.
	StorageUnitCost int64
}

// Service applies task, game and storage purchases to the ledger.
type Service struct {
	rewards storage.RewardStore
	ledger  storage.LedgerStore
	cfg     Config
	log     *logger.Logger
}

// New constructs a rewards service.
func New(rewards storage.RewardStore, ledgerStore storage.LedgerStore, cfg Config, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("rewards")
	}
	return &Service{
		rewards: rewards,
		ledger:  ledgerStore,
		cfg:     cfg,
		log:     log,
	}
}

// ClaimTask pays the configured one-time reward for a task. A repeat claim
// fails with ErrConflict; an unknown task with ErrNotFound.
func (s *Service) ClaimTask(ctx context.Context, userID int64, task string) (reward.TaskClaim, error) {
	task = strings.TrimSpace(task)
	amount, ok := s.cfg.TaskRewards[task]
	if !ok {
		return reward.TaskClaim{}, fmt.Errorf("task %s: %w", task, storage.ErrNotFound)
	}

	claim, err := s.rewards.ClaimTask(ctx, userID, task, amount)
	if err != nil {
		return reward.TaskClaim{}, err
	}
	s.log.WithField("user_id", userID).Infof("task %s claimed for %d", task, amount)
	return claim, nil
}

// ListTaskClaims returns a user's claimed tasks, newest first.
func (s *Service) ListTaskClaims(ctx context.Context, userID int64) ([]reward.TaskClaim, error) {
	return s.rewards.ListTaskClaims(ctx, userID)
}

// PlaceWager debits a wager into the treasury up front. A short balance fails
// with ErrInsufficientBalance and moves nothing.
func (s *Service) PlaceWager(ctx context.Context, userID int64, game string, wager int64) error {
	if wager <= 0 {
		return fmt.Errorf("wager must be positive")
	}
	return s.ledger.Transfer(ctx, userID, account.TreasuryUserID, wager, ledger.ReasonWagerLoss, ledger.ReasonWagerLoss)
}

// AwardGame pays a game result from the treasury.
func (s *Service) AwardGame(ctx context.Context, userID int64, game string, payout int64) error {
	if payout <= 0 {
		return fmt.Errorf("payout must be positive")
	}
	reason := ledger.GameReason(strings.TrimSpace(game))
	if err := s.ledger.Transfer(ctx, account.TreasuryUserID, userID, payout, reason, reason); err != nil {
		return err
	}
	s.log.WithField("user_id", userID).Infof("game %s paid out %d", game, payout)
	return nil
}

// BuyStorage sells units of storage capacity at the configured unit price.
func (s *Service) BuyStorage(ctx context.Context, userID, units int64) (reward.Storage, error) {
	if units <= 0 {
		return reward.Storage{}, fmt.Errorf("units must be positive")
	}
	st, err := s.rewards.AddStorage(ctx, userID, units, units*s.cfg.StorageUnitCost)
	if err != nil {
		return reward.Storage{}, err
	}
	s.log.WithField("user_id", userID).Infof("storage raised to %d units", st.Capacity)
	return st, nil
}

// GetStorage returns a user's purchased capacity.
func (s *Service) GetStorage(ctx context.Context, userID int64) (reward.Storage, error) {
	return s.rewards.GetStorage(ctx, userID)
}
