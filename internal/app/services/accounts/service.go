// Package accounts manages account registration, the welcome airdrop and the
// referral program.
package accounts

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/OneWorld-Network/ledger_layer/internal/app/domain/account"
	"github.com/OneWorld-Network/ledger_layer/internal/app/domain/ledger"
	"github.com/OneWorld-Network/ledger_layer/internal/app/storage"
	"github.com/OneWorld-Network/ledger_layer/pkg/logger"
)

const (
	refCodeLength   = 6
	refCodeCharset  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	refCodeAttempts = 5
)

// Config carries the economic parameters of registration and referrals.
type Config struct {
	// InitialAirdrop is paid from the treasury to every new account while
	// treasury funds last.
	InitialAirdrop int64

	// ReferralBonus is paid from the treasury to both sides of a claimed
	// referral.
	ReferralBonus int64

	// ReferralBatchSize pays the referrer one extra bonus on every Nth
	// successful referral. Zero disables the batch bonus.
	ReferralBatchSize int64
}

// Service registers accounts and runs the referral program.
type Service struct {
	accounts storage.AccountStore
	ledger   storage.LedgerStore
	cfg      Config
	log      *logger.Logger
}

// New constructs an accounts service.
func New(accounts storage.AccountStore, ledgerStore storage.LedgerStore, cfg Config, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("accounts")
	}
	return &Service{
		accounts: accounts,
		ledger:   ledgerStore,
		cfg:      cfg,
		log:      log,
	}
}

// Ensure returns the account for userID, creating it on first contact. The
// returned bool reports whether the account was created by this call. New
// accounts receive a unique referral code and the welcome airdrop; when the
// treasury cannot cover the airdrop the account is still created and the
// airdrop is skipped.
func (s *Service) Ensure(ctx context.Context, userID int64, hints account.ProfileHints) (account.Account, bool, error) {
	if userID <= 0 {
		return account.Account{}, false, fmt.Errorf("user id must be positive")
	}

	acct, err := s.accounts.GetAccount(ctx, userID)
	if err == nil {
		if hints.Username != "" || hints.Language != "" {
			if updated, err := s.accounts.UpdateProfile(ctx, userID, hints); err == nil {
				acct = updated
			}
		}
		return acct, false, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return account.Account{}, false, err
	}

	acct, err = s.createWithRefCode(ctx, account.Account{
		UserID:   userID,
		Username: hints.Username,
		Language: hints.Language,
	})
	if errors.Is(err, storage.ErrConflict) {
		// Lost a concurrent registration race; the other writer won.
		existing, getErr := s.accounts.GetAccount(ctx, userID)
		if getErr == nil {
			return existing, false, nil
		}
		return account.Account{}, false, err
	}
	if err != nil {
		return account.Account{}, false, err
	}

	if s.cfg.InitialAirdrop > 0 {
		err := s.ledger.Transfer(ctx, account.TreasuryUserID, userID, s.cfg.InitialAirdrop, ledger.ReasonAirdropOut, ledger.ReasonAirdrop)
		switch {
		case errors.Is(err, storage.ErrInsufficientBalance):
			s.log.WithField("user_id", userID).Warn("treasury exhausted, airdrop skipped")
		case err != nil:
			return account.Account{}, false, err
		default:
			acct.Balance = s.cfg.InitialAirdrop
		}
	}

	s.log.WithField("user_id", userID).Info("account registered")
	return acct, true, nil
}

// Get returns an existing account.
func (s *Service) Get(ctx context.Context, userID int64) (account.Account, error) {
	return s.accounts.GetAccount(ctx, userID)
}

// List returns all accounts, treasury included.
func (s *Service) List(ctx context.Context) ([]account.Account, error) {
	return s.accounts.ListAccounts(ctx)
}

// ClaimReferral attributes userID to the owner of code and pays the referral
// bonus to both sides. Attribution is one-time; a second claim fails with
// ErrConflict no matter which code it names. The store applies attribution
// and bonuses in one atomic unit, skipping bonuses the treasury cannot
// cover while the attribution still sticks.
func (s *Service) ClaimReferral(ctx context.Context, userID int64, code string) (account.Account, error) {
	referrer, err := s.accounts.GetAccountByRefCode(ctx, code)
	if err != nil {
		return account.Account{}, err
	}
	if referrer.UserID == userID {
		return account.Account{}, fmt.Errorf("own referral code: %w", storage.ErrInvalidState)
	}

	count, err := s.accounts.AttributeReferral(ctx, userID, referrer.UserID, s.cfg.ReferralBonus, s.cfg.ReferralBatchSize)
	if err != nil {
		return account.Account{}, err
	}

	s.log.WithField("user_id", referrer.UserID).Infof("referral claimed, %d total", count)
	return referrer, nil
}

// Supply reports total, treasury and circulating balances.
func (s *Service) Supply(ctx context.Context) (ledger.Supply, error) {
	return s.ledger.Supply(ctx)
}

func (s *Service) createWithRefCode(ctx context.Context, acct account.Account) (account.Account, error) {
	var lastErr error
	for attempt := 0; attempt < refCodeAttempts; attempt++ {
		code, err := newRefCode()
		if err != nil {
			return account.Account{}, err
		}
		acct.RefCode = code

		created, err := s.accounts.CreateAccount(ctx, acct)
		if err == nil {
			return created, nil
		}
		if !errors.Is(err, storage.ErrConflict) {
			return account.Account{}, err
		}
		// The conflict may be the user itself, not the code.
		if _, getErr := s.accounts.GetAccount(ctx, acct.UserID); getErr == nil {
			return account.Account{}, err
		}
		lastErr = err
	}
	return account.Account{}, fmt.Errorf("referral code generation exhausted after %d attempts: %w", refCodeAttempts, lastErr)
}

func newRefCode() (string, error) {
	buf := make([]byte, refCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = refCodeCharset[int(b)%len(refCodeCharset)]
	}
	return string(buf), nil
}
