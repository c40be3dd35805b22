// Package deposit accepts deposit claims and reconciles them against the
// chain. Submitting is cheap and synchronous; verification and crediting
// happen asynchronously in the reconciler.
package deposit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/OneWorld-Network/ledger_layer/internal/app/domain/deposit"
	"github.com/OneWorld-Network/ledger_layer/internal/app/storage"
	"github.com/OneWorld-Network/ledger_layer/pkg/logger"
)

// Service records deposit claims.
type Service struct {
	claims storage.ClaimStore
	log    *logger.Logger
}

// New constructs a deposit service.
func New(claims storage.ClaimStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("deposit")
	}
	return &Service{claims: claims, log: log}
}

// Submit records a pending claim for an external transaction hash and returns
// immediately; the reconciler verifies and credits it later. Re-submitting a
// hash the same user already claimed returns the existing claim unchanged.
func (s *Service) Submit(ctx context.Context, userID int64, ref string) (deposit.Claim, error) {
	ref = strings.ToLower(strings.TrimSpace(ref))
	if !validTxRef(ref) {
		return deposit.Claim{}, fmt.Errorf("transaction hash must be 0x followed by 64 hex digits")
	}

	claim, err := s.claims.CreateClaim(ctx, deposit.Claim{Ref: ref, UserID: userID})
	if errors.Is(err, storage.ErrConflict) {
		existing, getErr := s.claims.GetClaim(ctx, ref)
		if getErr == nil && existing.UserID == userID {
			return existing, nil
		}
		return deposit.Claim{}, err
	}
	if err != nil {
		return deposit.Claim{}, err
	}

	s.log.WithField("user_id", userID).Infof("deposit claim %s submitted", ref)
	return claim, nil
}

// Get returns one claim by transaction hash.
func (s *Service) Get(ctx context.Context, ref string) (deposit.Claim, error) {
	return s.claims.GetClaim(ctx, strings.ToLower(strings.TrimSpace(ref)))
}

// List returns claims for one user, or all claims when userID is negative.
func (s *Service) List(ctx context.Context, userID int64) ([]deposit.Claim, error) {
	return s.claims.ListClaims(ctx, userID)
}

func validTxRef(ref string) bool {
	if len(ref) != 66 || !strings.HasPrefix(ref, "0x") {
		return false
	}
	for _, c := range ref[2:] {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		default:
			return false
		}
	}
	return true
}
