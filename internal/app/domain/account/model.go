package account

import "time"

// TreasuryUserID is the reserved external identifier of the treasury account.
// The treasury holds unissued supply and collected fees.
const TreasuryUserID int64 = 0

// Account represents a chat user's ledger account. Balances are kept in the
// smallest token denomination and are denormalised from the transaction log
// for fast reads; the log remains the audit trail.
type Account struct {
	ID         string
	UserID     int64
	Username   string
	Language   string
	Balance    int64
	RefCode    string // empty for the treasury
	ReferredBy int64  // 0 = no referrer recorded
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// IsTreasury reports whether the account is the reserved treasury account.
func (a Account) IsTreasury() bool { return a.UserID == TreasuryUserID }

// ProfileHints carries optional profile data supplied by the chat layer when
// an account is first seen.
type ProfileHints struct {
	Username string
	Language string
}
