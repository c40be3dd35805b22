// Package deposit defines pending deposit claims and the chain observer
// contract used to verify them.
package deposit

import (
	"context"
	"math/big"
	"time"
)

// Status is the lifecycle state of a claim. Credited and rejected are
// terminal; pending claims are re-evaluated on every reconciliation pass.
type Status string

const (
	StatusPending  Status = "pending"
	StatusCredited Status = "credited"
	StatusRejected Status = "rejected"
)

// Claim is a user-submitted assertion that an external deposit transaction
// exists and should be credited. Claims are keyed by the external transaction
// reference, which makes crediting at-most-once by construction.
type Claim struct {
	Ref            string
	UserID         int64
	Status         Status
	Note           string
	CreditedAmount int64
	FeeAmount      int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ChainTransaction is the subset of an on-chain transaction the reconciler
// needs: destination and transferred native value in the chain's smallest
// unit (wei).
type ChainTransaction struct {
	Ref   string
	To    string
	Value *big.Int
}

// ChainReceipt reports mined execution status for a transaction.
type ChainReceipt struct {
	Ref     string
	Success bool
}

// Observer is the read-only facade over the external blockchain. The second
// return value reports whether the object exists yet; a non-nil error is a
// transient condition and callers retry later with no state change.
type Observer interface {
	TransactionByRef(ctx context.Context, ref string) (ChainTransaction, bool, error)
	ReceiptByRef(ctx context.Context, ref string) (ChainReceipt, bool, error)
}
