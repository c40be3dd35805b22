// Package ledger defines the append-only transaction log model.
package ledger

import (
	"math/big"
	"time"
)

// Entry is one append-only transaction log record. The sum of all entry
// amounts for a user equals that user's stored balance at all times.
type Entry struct {
	ID        string
	UserID    int64
	Amount    int64
	Reason    string
	CreatedAt time.Time
}

// Fixed reason vocabulary. Deposit reasons carry the external transaction
// reference as a suffix, see DepositConfirmedReason.
const (
	ReasonGenesis          = "genesis"
	ReasonAirdrop          = "airdrop"
	ReasonAirdropOut       = "airdrop_out"
	ReasonAdjust           = "adjust"
	ReasonBuyStorage       = "buy_storage"
	ReasonBuyStorageIn     = "buy_storage_in"
	ReasonReferralBonus    = "referral_bonus"
	ReasonReferralBonusOut = "referral_bonus_out"
	ReasonPresaleRelease   = "presale_release"
	ReasonPresaleOut       = "presale_release_out"
	ReasonWagerLoss        = "wager_loss"
)

// DepositConfirmedReason tags the claimant's credit for a verified deposit.
func DepositConfirmedReason(ref string) string { return "deposit_confirmed:" + ref }

// DepositFeeReason tags the treasury's fee credit for a verified deposit.
func DepositFeeReason(ref string) string { return "deposit_fee:" + ref }

// TaskReason tags a one-time task reward.
func TaskReason(task string) string { return "task:" + task }

// TaskReasonOut tags the treasury debit backing a task reward.
func TaskReasonOut(task string) string { return "task_out:" + task }

// GameReason tags a game payout or loss.
func GameReason(game string) string { return "game_" + game }

// Supply is an aggregate view over all balances.
type Supply struct {
	Total       int64
	Treasury    int64
	Circulating int64
}

// DisplayValue converts an integer ledger amount to a display fraction at the
// given rate. Fractions exist only at presentation time; the ledger itself
// never stores them.
func DisplayValue(amount int64, rate int64) *big.Rat {
	if rate == 0 {
		rate = 1
	}
	return new(big.Rat).SetFrac64(amount, rate)
}
