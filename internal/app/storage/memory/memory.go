package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/OneWorld-Network/ledger_layer/internal/app/domain/account"
	"github.com/OneWorld-Network/ledger_layer/internal/app/domain/deposit"
	"github.com/OneWorld-Network/ledger_layer/internal/app/domain/ledger"
	"github.com/OneWorld-Network/ledger_layer/internal/app/domain/presale"
	"github.com/OneWorld-Network/ledger_layer/internal/app/domain/reward"
	"github.com/OneWorld-Network/ledger_layer/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local development.
type Store struct {
	mu            sync.RWMutex
	nextID        int64
	accounts      map[int64]account.Account
	accountsByRef map[string]int64
	entries       map[int64][]ledger.Entry
	orders        map[string]presale.Order
	orderSeq      []string
	claims        map[string]deposit.Claim
	claimSeq      []string
	taskClaims    map[int64][]reward.TaskClaim
	taskClaimed   map[string]bool
	storageCaps   map[int64]reward.Storage
}

var _ storage.AccountStore = (*Store)(nil)
var _ storage.LedgerStore = (*Store)(nil)
var _ storage.OrderStore = (*Store)(nil)
var _ storage.ClaimStore = (*Store)(nil)
var _ storage.RewardStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextID:        1,
		accounts:      make(map[int64]account.Account),
		accountsByRef: make(map[string]int64),
		entries:       make(map[int64][]ledger.Entry),
		orders:        make(map[string]presale.Order),
		claims:        make(map[string]deposit.Claim),
		taskClaims:    make(map[int64][]reward.TaskClaim),
		taskClaimed:   make(map[string]bool),
		storageCaps:   make(map[int64]reward.Storage),
	}
}

func (s *Store) nextIDLocked() string {
	id := s.nextID
	s.nextID++
	return fmt.Sprintf("%d", id)
}

// adjustLocked applies a signed delta to one balance and appends the matching
// ledger entry. Callers hold the write lock.
func (s *Store) adjustLocked(userID, amount int64, reason string) (int64, error) {
	acct, ok := s.accounts[userID]
	if !ok {
		return 0, fmt.Errorf("account %d: %w", userID, storage.ErrNotFound)
	}
	if acct.Balance+amount < 0 {
		return 0, fmt.Errorf("account %d balance %d, delta %d: %w", userID, acct.Balance, amount, storage.ErrInsufficientBalance)
	}

	acct.Balance += amount
	acct.UpdatedAt = time.Now().UTC()
	s.accounts[userID] = acct
	s.entries[userID] = append(s.entries[userID], ledger.Entry{
		ID:        s.nextIDLocked(),
		UserID:    userID,
		Amount:    amount,
		Reason:    reason,
		CreatedAt: acct.UpdatedAt,
	})
	return acct.Balance, nil
}

func (s *Store) transferLocked(fromUserID, toUserID, amount int64, reasonOut, reasonIn string) error {
	if amount <= 0 {
		return fmt.Errorf("transfer amount %d: %w", amount, storage.ErrInvalidState)
	}
	if _, ok := s.accounts[toUserID]; !ok {
		return fmt.Errorf("account %d: %w", toUserID, storage.ErrNotFound)
	}
	if _, err := s.adjustLocked(fromUserID, -amount, reasonOut); err != nil {
		return err
	}
	if _, err := s.adjustLocked(toUserID, amount, reasonIn); err != nil {
		return err
	}
	return nil
}

// AccountStore implementation -------------------------------------------------

func (s *Store) EnsureTreasury(_ context.Context, totalSupply int64) (account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if acct, ok := s.accounts[account.TreasuryUserID]; ok {
		return acct, nil
	}

	now := time.Now().UTC()
	acct := account.Account{
		ID:        s.nextIDLocked(),
		UserID:    account.TreasuryUserID,
		Username:  "treasury",
		Balance:   totalSupply,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.accounts[acct.UserID] = acct
	s.entries[acct.UserID] = append(s.entries[acct.UserID], ledger.Entry{
		ID:        s.nextIDLocked(),
		UserID:    acct.UserID,
		Amount:    totalSupply,
		Reason:    ledger.ReasonGenesis,
		CreatedAt: now,
	})
	return acct, nil
}

func (s *Store) CreateAccount(_ context.Context, acct account.Account) (account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[acct.UserID]; exists {
		return account.Account{}, fmt.Errorf("account %d already exists: %w", acct.UserID, storage.ErrConflict)
	}
	if acct.RefCode != "" {
		if _, taken := s.accountsByRef[acct.RefCode]; taken {
			return account.Account{}, fmt.Errorf("referral code %s already taken: %w", acct.RefCode, storage.ErrConflict)
		}
	}

	if acct.ID == "" {
		acct.ID = s.nextIDLocked()
	}
	now := time.Now().UTC()
	acct.Balance = 0
	acct.CreatedAt = now
	acct.UpdatedAt = now

	s.accounts[acct.UserID] = acct
	if acct.RefCode != "" {
		s.accountsByRef[acct.RefCode] = acct.UserID
	}
	return acct, nil
}

func (s *Store) GetAccount(_ context.Context, userID int64) (account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, ok := s.accounts[userID]
	if !ok {
		return account.Account{}, fmt.Errorf("account %d: %w", userID, storage.ErrNotFound)
	}
	return acct, nil
}

func (s *Store) GetAccountByRefCode(_ context.Context, code string) (account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userID, ok := s.accountsByRef[code]
	if !ok {
		return account.Account{}, fmt.Errorf("referral code %s: %w", code, storage.ErrNotFound)
	}
	return s.accounts[userID], nil
}

func (s *Store) UpdateProfile(_ context.Context, userID int64, hints account.ProfileHints) (account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[userID]
	if !ok {
		return account.Account{}, fmt.Errorf("account %d: %w", userID, storage.ErrNotFound)
	}
	if hints.Username != "" {
		acct.Username = hints.Username
	}
	if hints.Language != "" {
		acct.Language = hints.Language
	}
	acct.UpdatedAt = time.Now().UTC()
	s.accounts[userID] = acct
	return acct, nil
}

func (s *Store) ListAccounts(_ context.Context) ([]account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]account.Account, 0, len(s.accounts))
	for _, acct := range s.accounts {
		out = append(out, acct)
	}
	sortAccounts(out)
	return out, nil
}

func (s *Store) AttributeReferral(_ context.Context, userID, referrerID, bonus, batchSize int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if userID == referrerID {
		return 0, fmt.Errorf("self referral: %w", storage.ErrInvalidState)
	}
	acct, ok := s.accounts[userID]
	if !ok {
		return 0, fmt.Errorf("account %d: %w", userID, storage.ErrNotFound)
	}
	if _, ok := s.accounts[referrerID]; !ok {
		return 0, fmt.Errorf("account %d: %w", referrerID, storage.ErrNotFound)
	}
	if acct.ReferredBy != 0 {
		return 0, fmt.Errorf("referrer already set for %d: %w", userID, storage.ErrConflict)
	}

	acct.ReferredBy = referrerID
	acct.UpdatedAt = time.Now().UTC()
	s.accounts[userID] = acct

	var count int64
	for _, a := range s.accounts {
		if a.ReferredBy == referrerID {
			count++
		}
	}

	if bonus > 0 {
		for _, to := range []int64{userID, referrerID} {
			if err := s.payReferralBonusLocked(to, bonus); err != nil {
				return 0, err
			}
		}
		if batchSize > 0 && count%batchSize == 0 {
			if err := s.payReferralBonusLocked(referrerID, bonus); err != nil {
				return 0, err
			}
		}
	}
	return count, nil
}

// payReferralBonusLocked pays one bonus from the treasury, silently skipping
// it when the treasury cannot cover it.
func (s *Store) payReferralBonusLocked(to, bonus int64) error {
	err := s.transferLocked(account.TreasuryUserID, to, bonus, ledger.ReasonReferralBonusOut, ledger.ReasonReferralBonus)
	if errors.Is(err, storage.ErrInsufficientBalance) {
		return nil
	}
	return err
}

// LedgerStore implementation --------------------------------------------------

func (s *Store) Adjust(_ context.Context, userID, amount int64, reason string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.adjustLocked(userID, amount, reason)
}

func (s *Store) Transfer(_ context.Context, fromUserID, toUserID, amount int64, reasonOut, reasonIn string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transferLocked(fromUserID, toUserID, amount, reasonOut, reasonIn)
}

func (s *Store) Balance(_ context.Context, userID int64) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, ok := s.accounts[userID]
	if !ok {
		return 0, fmt.Errorf("account %d: %w", userID, storage.ErrNotFound)
	}
	return acct.Balance, nil
}

func (s *Store) Entries(_ context.Context, userID int64, limit int) ([]ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.accounts[userID]; !ok {
		return nil, fmt.Errorf("account %d: %w", userID, storage.ErrNotFound)
	}

	all := s.entries[userID]
	if limit <= 0 || limit > len(all) {
		limit = len(all)
	}
	out := make([]ledger.Entry, 0, limit)
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

func (s *Store) Supply(_ context.Context) (ledger.Supply, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var supply ledger.Supply
	for _, acct := range s.accounts {
		supply.Total += acct.Balance
		if acct.UserID == account.TreasuryUserID {
			supply.Treasury = acct.Balance
		}
	}
	supply.Circulating = supply.Total - supply.Treasury
	return supply, nil
}

// OrderStore implementation ---------------------------------------------------

func (s *Store) CreateOrder(_ context.Context, order presale.Order) (presale.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[order.UserID]; !ok {
		return presale.Order{}, fmt.Errorf("account %d: %w", order.UserID, storage.ErrNotFound)
	}

	if order.ID == "" {
		order.ID = s.nextIDLocked()
	} else if _, exists := s.orders[order.ID]; exists {
		return presale.Order{}, fmt.Errorf("order %s already exists: %w", order.ID, storage.ErrConflict)
	}

	order.Status = presale.StatusBooked
	order.CreatedAt = time.Now().UTC()
	order.ReleasedAt = time.Time{}

	s.orders[order.ID] = order
	s.orderSeq = append(s.orderSeq, order.ID)
	return order, nil
}

func (s *Store) GetOrder(_ context.Context, id string) (presale.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.orders[id]
	if !ok {
		return presale.Order{}, fmt.Errorf("order %s: %w", id, storage.ErrNotFound)
	}
	return order, nil
}

func (s *Store) ListOrders(_ context.Context, userID int64) ([]presale.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]presale.Order, 0, len(s.orderSeq))
	for i := len(s.orderSeq) - 1; i >= 0; i-- {
		order := s.orders[s.orderSeq[i]]
		if userID >= 0 && order.UserID != userID {
			continue
		}
		out = append(out, order)
	}
	return out, nil
}

func (s *Store) ReleaseOrder(_ context.Context, id string) (presale.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[id]
	if !ok {
		return presale.Order{}, fmt.Errorf("order %s: %w", id, storage.ErrNotFound)
	}
	if order.Status != presale.StatusBooked {
		return presale.Order{}, fmt.Errorf("order %s is %s: %w", id, order.Status, storage.ErrInvalidState)
	}

	if err := s.transferLocked(account.TreasuryUserID, order.UserID, order.Amount, ledger.ReasonPresaleOut, ledger.ReasonPresaleRelease); err != nil {
		return presale.Order{}, err
	}

	order.Status = presale.StatusReleased
	order.ReleasedAt = time.Now().UTC()
	s.orders[id] = order
	return order, nil
}

// ClaimStore implementation ---------------------------------------------------

func (s *Store) CreateClaim(_ context.Context, claim deposit.Claim) (deposit.Claim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.claims[claim.Ref]; exists {
		return deposit.Claim{}, fmt.Errorf("claim %s already exists: %w", claim.Ref, storage.ErrConflict)
	}
	if _, ok := s.accounts[claim.UserID]; !ok {
		return deposit.Claim{}, fmt.Errorf("account %d: %w", claim.UserID, storage.ErrNotFound)
	}

	now := time.Now().UTC()
	claim.Status = deposit.StatusPending
	claim.Note = ""
	claim.CreditedAmount = 0
	claim.FeeAmount = 0
	claim.CreatedAt = now
	claim.UpdatedAt = now

	s.claims[claim.Ref] = claim
	s.claimSeq = append(s.claimSeq, claim.Ref)
	return claim, nil
}

func (s *Store) GetClaim(_ context.Context, ref string) (deposit.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	claim, ok := s.claims[ref]
	if !ok {
		return deposit.Claim{}, fmt.Errorf("claim %s: %w", ref, storage.ErrNotFound)
	}
	return claim, nil
}

func (s *Store) ListClaims(_ context.Context, userID int64) ([]deposit.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]deposit.Claim, 0, len(s.claimSeq))
	for i := len(s.claimSeq) - 1; i >= 0; i-- {
		claim := s.claims[s.claimSeq[i]]
		if userID >= 0 && claim.UserID != userID {
			continue
		}
		out = append(out, claim)
	}
	return out, nil
}

func (s *Store) ListPendingClaims(_ context.Context) ([]deposit.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]deposit.Claim, 0)
	for _, ref := range s.claimSeq {
		if claim := s.claims[ref]; claim.Status == deposit.StatusPending {
			out = append(out, claim)
		}
	}
	return out, nil
}

func (s *Store) RejectClaim(_ context.Context, ref, note string) (deposit.Claim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	claim, ok := s.claims[ref]
	if !ok {
		return deposit.Claim{}, fmt.Errorf("claim %s: %w", ref, storage.ErrNotFound)
	}
	if claim.Status != deposit.StatusPending {
		return deposit.Claim{}, fmt.Errorf("claim %s is %s: %w", ref, claim.Status, storage.ErrInvalidState)
	}

	claim.Status = deposit.StatusRejected
	claim.Note = note
	claim.UpdatedAt = time.Now().UTC()
	s.claims[ref] = claim
	return claim, nil
}

func (s *Store) ConfirmClaim(_ context.Context, ref string, net, fee int64) (deposit.Claim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	claim, ok := s.claims[ref]
	if !ok {
		return deposit.Claim{}, fmt.Errorf("claim %s: %w", ref, storage.ErrNotFound)
	}
	if claim.Status != deposit.StatusPending {
		return deposit.Claim{}, fmt.Errorf("claim %s is %s: %w", ref, claim.Status, storage.ErrInvalidState)
	}
	if net <= 0 || fee < 0 {
		return deposit.Claim{}, fmt.Errorf("credit %d fee %d: %w", net, fee, storage.ErrInvalidState)
	}

	// Both credits are additions, so account existence is the only way they
	// can fail. Checking up front keeps the confirm all-or-nothing.
	if fee > 0 {
		if _, ok := s.accounts[account.TreasuryUserID]; !ok {
			return deposit.Claim{}, fmt.Errorf("account %d: %w", account.TreasuryUserID, storage.ErrNotFound)
		}
	}
	if _, err := s.adjustLocked(claim.UserID, net, ledger.DepositConfirmedReason(ref)); err != nil {
		return deposit.Claim{}, err
	}
	if fee > 0 {
		if _, err := s.adjustLocked(account.TreasuryUserID, fee, ledger.DepositFeeReason(ref)); err != nil {
			return deposit.Claim{}, err
		}
	}

	claim.Status = deposit.StatusCredited
	claim.CreditedAmount = net
	claim.FeeAmount = fee
	claim.UpdatedAt = time.Now().UTC()
	s.claims[ref] = claim
	return claim, nil
}

// RewardStore implementation --------------------------------------------------

func (s *Store) ClaimTask(_ context.Context, userID int64, task string, amount int64) (reward.TaskClaim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := fmt.Sprintf("%d:%s", userID, task)
	if s.taskClaimed[key] {
		return reward.TaskClaim{}, fmt.Errorf("task %s already claimed by %d: %w", task, userID, storage.ErrConflict)
	}

	if err := s.transferLocked(account.TreasuryUserID, userID, amount, ledger.TaskReasonOut(task), ledger.TaskReason(task)); err != nil {
		return reward.TaskClaim{}, err
	}

	claim := reward.TaskClaim{
		ID:        s.nextIDLocked(),
		UserID:    userID,
		Task:      task,
		Amount:    amount,
		CreatedAt: time.Now().UTC(),
	}
	s.taskClaimed[key] = true
	s.taskClaims[userID] = append(s.taskClaims[userID], claim)
	return claim, nil
}

func (s *Store) ListTaskClaims(_ context.Context, userID int64) ([]reward.TaskClaim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.taskClaims[userID]
	out := make([]reward.TaskClaim, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

func (s *Store) AddStorage(_ context.Context, userID, units, cost int64) (reward.Storage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if units <= 0 || cost < 0 {
		return reward.Storage{}, fmt.Errorf("units %d cost %d: %w", units, cost, storage.ErrInvalidState)
	}
	if cost > 0 {
		if err := s.transferLocked(userID, account.TreasuryUserID, cost, ledger.ReasonBuyStorage, ledger.ReasonBuyStorageIn); err != nil {
			return reward.Storage{}, err
		}
	} else if _, ok := s.accounts[userID]; !ok {
		return reward.Storage{}, fmt.Errorf("account %d: %w", userID, storage.ErrNotFound)
	}

	st := s.storageCaps[userID]
	st.UserID = userID
	st.Capacity += units
	st.UpdatedAt = time.Now().UTC()
	s.storageCaps[userID] = st
	return st, nil
}

func (s *Store) GetStorage(_ context.Context, userID int64) (reward.Storage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.accounts[userID]; !ok {
		return reward.Storage{}, fmt.Errorf("account %d: %w", userID, storage.ErrNotFound)
	}
	st, ok := s.storageCaps[userID]
	if !ok {
		return reward.Storage{UserID: userID}, nil
	}
	return st, nil
}

func sortAccounts(accounts []account.Account) {
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].UserID < accounts[j].UserID })
}
