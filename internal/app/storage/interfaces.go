// Package storage defines the persistence interfaces consumed by the
// services. Implementations live in the memory and postgres subpackages and
// must return the sentinel errors declared in errors.go.
package storage

import (
	"context"

	"github.com/OneWorld-Network/ledger_layer/internal/app/domain/account"
	"github.com/OneWorld-Network/ledger_layer/internal/app/domain/deposit"
	"github.com/OneWorld-Network/ledger_layer/internal/app/domain/ledger"
	"github.com/OneWorld-Network/ledger_layer/internal/app/domain/presale"
	"github.com/OneWorld-Network/ledger_layer/internal/app/domain/reward"
)

// AccountStore persists accounts and the referral graph.
type AccountStore interface {
	// EnsureTreasury creates the treasury account holding totalSupply if it
	// does not exist yet and returns it. Idempotent across restarts.
	EnsureTreasury(ctx context.Context, totalSupply int64) (account.Account, error)

	// CreateAccount inserts a new account with a zero balance. Returns
	// ErrConflict when the user ID or referral code is already taken.
	CreateAccount(ctx context.Context, acct account.Account) (account.Account, error)

	GetAccount(ctx context.Context, userID int64) (account.Account, error)
	GetAccountByRefCode(ctx context.Context, code string) (account.Account, error)
	UpdateProfile(ctx context.Context, userID int64, hints account.ProfileHints) (account.Account, error)
	ListAccounts(ctx context.Context) ([]account.Account, error)

	// AttributeReferral records who referred userID and pays bonus from the
	// treasury to both sides in the same atomic unit; every batchSize-th
	// successful referral pays the referrer one extra bonus. Bonuses the
	// treasury cannot cover are skipped, the attribution sticks regardless.
	// Returns the referrer's new referral count, ErrConflict if a referrer
	// is already set and ErrInvalidState for self-referral.
	AttributeReferral(ctx context.Context, userID, referrerID, bonus, batchSize int64) (int64, error)
}

// LedgerStore is the append-only transaction log plus the balances derived
// from it. Every mutation writes entries and adjusts balances in one atomic
// step; a failed call leaves nothing behind.
type LedgerStore interface {
	// Adjust applies a signed delta to one balance and records an entry.
	// Debits that would take the balance below zero fail with
	// ErrInsufficientBalance.
	Adjust(ctx context.Context, userID, amount int64, reason string) (int64, error)

	// Transfer moves amount from one account to another, recording a
	// negative entry tagged reasonOut on the sender and a positive entry
	// tagged reasonIn on the receiver. Amount must be positive.
	Transfer(ctx context.Context, fromUserID, toUserID, amount int64, reasonOut, reasonIn string) error

	Balance(ctx context.Context, userID int64) (int64, error)

	// Entries returns a user's entries newest first, at most limit of them.
	Entries(ctx context.Context, userID int64, limit int) ([]ledger.Entry, error)

	// Supply aggregates all balances into total, treasury and circulating.
	Supply(ctx context.Context) (ledger.Supply, error)
}

// OrderStore persists presale orders.
type OrderStore interface {
	CreateOrder(ctx context.Context, order presale.Order) (presale.Order, error)
	GetOrder(ctx context.Context, id string) (presale.Order, error)

	// ListOrders returns orders for one user, or every order when userID is
	// negative. Newest first.
	ListOrders(ctx context.Context, userID int64) ([]presale.Order, error)

	// ReleaseOrder flips a booked order to released and credits the buyer
	// from the treasury in the same transaction. Returns ErrInvalidState
	// when the order is already released.
	ReleaseOrder(ctx context.Context, id string) (presale.Order, error)
}

// ClaimStore persists deposit claims keyed by external transaction reference.
type ClaimStore interface {
	// CreateClaim inserts a pending claim. Returns ErrConflict when the
	// reference was already submitted, regardless of its current status.
	CreateClaim(ctx context.Context, claim deposit.Claim) (deposit.Claim, error)

	GetClaim(ctx context.Context, ref string) (deposit.Claim, error)
	ListClaims(ctx context.Context, userID int64) ([]deposit.Claim, error)
	ListPendingClaims(ctx context.Context) ([]deposit.Claim, error)

	// RejectClaim moves a pending claim to rejected with a diagnostic note.
	// Returns ErrInvalidState when the claim is not pending.
	RejectClaim(ctx context.Context, ref, note string) (deposit.Claim, error)

	// ConfirmClaim atomically moves a pending claim to credited, credits the
	// claimant with net and the treasury with fee, and records both ledger
	// entries. Returns ErrInvalidState when the claim is not pending, which
	// makes crediting at-most-once even under concurrent reconcilers.
	ConfirmClaim(ctx context.Context, ref string, net, fee int64) (deposit.Claim, error)
}

// RewardStore persists one-time task claims and storage capacity.
type RewardStore interface {
	// ClaimTask records a task claim and pays amount from the treasury in
	// one transaction. Returns ErrConflict when the user already claimed
	// the task.
	ClaimTask(ctx context.Context, userID int64, task string, amount int64) (reward.TaskClaim, error)

	ListTaskClaims(ctx context.Context, userID int64) ([]reward.TaskClaim, error)

	// AddStorage debits cost into the treasury and raises the user's
	// capacity by the given units in one transaction.
	AddStorage(ctx context.Context, userID, units, cost int64) (reward.Storage, error)

	GetStorage(ctx context.Context, userID int64) (reward.Storage, error)
}
