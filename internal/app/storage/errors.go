package storage

import "errors"

// Shared error taxonomy. Both store implementations return these sentinels so
// services and HTTP handlers can classify failures without knowing the
// backend.
var (
	// ErrNotFound reports a missing account, order, claim or referral code.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState reports an operation that is not valid for the
	// record's current lifecycle state, e.g. releasing a released order.
	ErrInvalidState = errors.New("invalid state")

	// ErrInsufficientBalance reports a debit exceeding available funds. The
	// failed operation leaves no partial write behind.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrConflict reports a concurrent mutation that invalidated an expected
	// precondition, e.g. a duplicate referral claim.
	ErrConflict = errors.New("conflict")
)
