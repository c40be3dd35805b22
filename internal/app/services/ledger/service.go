// Package ledger exposes balance, history and supply queries plus the
// operator adjustment escape hatch.
package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/OneWorld-Network/ledger_layer/internal/app/domain/ledger"
	"github.com/OneWorld-Network/ledger_layer/internal/app/storage"
	"github.com/OneWorld-Network/ledger_layer/pkg/logger"
)

// Service answers read queries over the transaction log and applies manual
// operator adjustments.
type Service struct {
	store storage.LedgerStore
	log   *logger.Logger
}

// New constructs a ledger service.
func New(store storage.LedgerStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("ledger")
	}
	return &Service{store: store, log: log}
}

// Balance returns a user's current balance.
func (s *Service) Balance(ctx context.Context, userID int64) (int64, error) {
	return s.store.Balance(ctx, userID)
}

// History returns a user's ledger entries, newest first.
func (s *Service) History(ctx context.Context, userID int64, limit int) ([]ledger.Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.store.Entries(ctx, userID, limit)
}

// Supply reports total, treasury and circulating balances.
func (s *Service) Supply(ctx context.Context) (ledger.Supply, error) {
	return s.store.Supply(ctx)
}

// Adjust applies a manual signed correction to one account. Reserved for the
// operator surface; every call is expected to be audited by the caller.
func (s *Service) Adjust(ctx context.Context, userID, amount int64, note string) (int64, error) {
	if amount == 0 {
		return 0, fmt.Errorf("amount must be non-zero")
	}
	reason := ledger.ReasonAdjust
	if note = strings.TrimSpace(note); note != "" {
		reason = reason + ":" + note
	}

	balance, err := s.store.Adjust(ctx, userID, amount, reason)
	if err != nil {
		return 0, err
	}
	s.log.WithField("user_id", userID).Infof("manual adjustment of %d applied, balance now %d", amount, balance)
	return balance, nil
}
