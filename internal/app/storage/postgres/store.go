// Package postgres implements the storage interfaces backed by PostgreSQL.
// Every fused operation runs inside a single transaction so a failure leaves
// the ledger untouched.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/OneWorld-Network/ledger_layer/internal/app/domain/account"
	"github.com/OneWorld-Network/ledger_layer/internal/app/domain/deposit"
	"github.com/OneWorld-Network/ledger_layer/internal/app/domain/ledger"
	"github.com/OneWorld-Network/ledger_layer/internal/app/domain/presale"
	"github.com/OneWorld-Network/ledger_layer/internal/app/domain/reward"
	"github.com/OneWorld-Network/ledger_layer/internal/app/storage"
)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ storage.AccountStore = (*Store)(nil)
var _ storage.LedgerStore = (*Store)(nil)
var _ storage.OrderStore = (*Store)(nil)
var _ storage.ClaimStore = (*Store)(nil)
var _ storage.RewardStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// adjustTx applies a signed delta to one balance and appends the matching
// ledger entry, all inside the caller's transaction. The balance guard lives
// in the WHERE clause so concurrent debits cannot overdraw.
func adjustTx(ctx context.Context, tx *sql.Tx, userID, amount int64, reason string) (int64, error) {
	var balance int64
	err := tx.QueryRowContext(ctx, `
		UPDATE accounts
		SET balance = balance + $2, updated_at = NOW()
		WHERE user_id = $1 AND balance + $2 >= 0
		RETURNING balance
	`, userID, amount).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE user_id = $1)`, userID).Scan(&exists); err != nil {
			return 0, err
		}
		if !exists {
			return 0, fmt.Errorf("account %d: %w", userID, storage.ErrNotFound)
		}
		return 0, fmt.Errorf("account %d, delta %d: %w", userID, amount, storage.ErrInsufficientBalance)
	}
	if err != nil {
		return 0, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO ledger_entries (id, user_id, amount, reason, created_at)
		VALUES ($1, $2, $3, $4, NOW())
	`, uuid.NewString(), userID, amount, reason)
	if err != nil {
		return 0, err
	}
	return balance, nil
}

func transferTx(ctx context.Context, tx *sql.Tx, fromUserID, toUserID, amount int64, reasonOut, reasonIn string) error {
	if amount <= 0 {
		return fmt.Errorf("transfer amount %d: %w", amount, storage.ErrInvalidState)
	}
	if _, err := adjustTx(ctx, tx, fromUserID, -amount, reasonOut); err != nil {
		return err
	}
	if _, err := adjustTx(ctx, tx, toUserID, amount, reasonIn); err != nil {
		return err
	}
	return nil
}

// --- AccountStore -----------------------------------------------------------

func (s *Store) EnsureTreasury(ctx context.Context, totalSupply int64) (account.Account, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			INSERT INTO accounts (id, user_id, username, language, balance, ref_code, referred_by, created_at, updated_at)
			VALUES ($1, $2, 'treasury', '', $3, NULL, 0, NOW(), NOW())
			ON CONFLICT (user_id) DO NOTHING
		`, uuid.NewString(), account.TreasuryUserID, totalSupply)
		if err != nil {
			return err
		}
		inserted, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if inserted == 0 {
			return nil
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO ledger_entries (id, user_id, amount, reason, created_at)
			VALUES ($1, $2, $3, $4, NOW())
		`, uuid.NewString(), account.TreasuryUserID, totalSupply, ledger.ReasonGenesis)
		return err
	})
	if err != nil {
		return account.Account{}, err
	}
	return s.GetAccount(ctx, account.TreasuryUserID)
}

func (s *Store) CreateAccount(ctx context.Context, acct account.Account) (account.Account, error) {
	if acct.ID == "" {
		acct.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	acct.Balance = 0
	acct.CreatedAt = now
	acct.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (id, user_id, username, language, balance, ref_code, referred_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 0, NULLIF($5, ''), $6, $7, $8)
	`, acct.ID, acct.UserID, acct.Username, acct.Language, acct.RefCode, acct.ReferredBy, acct.CreatedAt, acct.UpdatedAt)
	if isUniqueViolation(err) {
		return account.Account{}, fmt.Errorf("account %d: %w", acct.UserID, storage.ErrConflict)
	}
	if err != nil {
		return account.Account{}, err
	}
	return acct, nil
}

const accountColumns = `id, user_id, username, language, balance, COALESCE(ref_code, ''), referred_by, created_at, updated_at`

func scanAccount(row interface{ Scan(...any) error }) (account.Account, error) {
	var acct account.Account
	err := row.Scan(&acct.ID, &acct.UserID, &acct.Username, &acct.Language, &acct.Balance, &acct.RefCode, &acct.ReferredBy, &acct.CreatedAt, &acct.UpdatedAt)
	return acct, err
}

func (s *Store) GetAccount(ctx context.Context, userID int64) (account.Account, error) {
	acct, err := scanAccount(s.db.QueryRowContext(ctx, `
		SELECT `+accountColumns+` FROM accounts WHERE user_id = $1
	`, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return account.Account{}, fmt.Errorf("account %d: %w", userID, storage.ErrNotFound)
	}
	return acct, err
}

func (s *Store) GetAccountByRefCode(ctx context.Context, code string) (account.Account, error) {
	acct, err := scanAccount(s.db.QueryRowContext(ctx, `
		SELECT `+accountColumns+` FROM accounts WHERE ref_code = $1
	`, code))
	if errors.Is(err, sql.ErrNoRows) {
		return account.Account{}, fmt.Errorf("referral code %s: %w", code, storage.ErrNotFound)
	}
	return acct, err
}

func (s *Store) UpdateProfile(ctx context.Context, userID int64, hints account.ProfileHints) (account.Account, error) {
	acct, err := scanAccount(s.db.QueryRowContext(ctx, `
		UPDATE accounts
		SET username = COALESCE(NULLIF($2, ''), username),
		    language = COALESCE(NULLIF($3, ''), language),
		    updated_at = NOW()
		WHERE user_id = $1
		RETURNING `+accountColumns+`
	`, userID, hints.Username, hints.Language))
	if errors.Is(err, sql.ErrNoRows) {
		return account.Account{}, fmt.Errorf("account %d: %w", userID, storage.ErrNotFound)
	}
	return acct, err
}

func (s *Store) ListAccounts(ctx context.Context) ([]account.Account, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+accountColumns+` FROM accounts ORDER BY user_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []account.Account
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, acct)
	}
	return out, rows.Err()
}

func (s *Store) AttributeReferral(ctx context.Context, userID, referrerID, bonus, batchSize int64) (int64, error) {
	if userID == referrerID {
		return 0, fmt.Errorf("self referral: %w", storage.ErrInvalidState)
	}

	var count int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var referrerExists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE user_id = $1)`, referrerID).Scan(&referrerExists); err != nil {
			return err
		}
		if !referrerExists {
			return fmt.Errorf("account %d: %w", referrerID, storage.ErrNotFound)
		}

		result, err := tx.ExecContext(ctx, `
			UPDATE accounts SET referred_by = $2, updated_at = NOW()
			WHERE user_id = $1 AND referred_by = 0
		`, userID, referrerID)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			var exists bool
			if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE user_id = $1)`, userID).Scan(&exists); err != nil {
				return err
			}
			if !exists {
				return fmt.Errorf("account %d: %w", userID, storage.ErrNotFound)
			}
			return fmt.Errorf("referrer already set for %d: %w", userID, storage.ErrConflict)
		}

		if err := tx.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM accounts WHERE referred_by = $1
		`, referrerID).Scan(&count); err != nil {
			return err
		}

		if bonus > 0 {
			if err := payReferralBonusTx(ctx, tx, userID, bonus); err != nil {
				return err
			}
			if err := payReferralBonusTx(ctx, tx, referrerID, bonus); err != nil {
				return err
			}
			if batchSize > 0 && count%batchSize == 0 {
				if err := payReferralBonusTx(ctx, tx, referrerID, bonus); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// payReferralBonusTx pays one bonus from the treasury inside the caller's
// transaction. A short treasury skips the bonus without failing the
// attribution; the guarded update leaves no partial write behind.
func payReferralBonusTx(ctx context.Context, tx *sql.Tx, to, bonus int64) error {
	err := transferTx(ctx, tx, account.TreasuryUserID, to, bonus, ledger.ReasonReferralBonusOut, ledger.ReasonReferralBonus)
	if errors.Is(err, storage.ErrInsufficientBalance) {
		return nil
	}
	return err
}

// --- LedgerStore ------------------------------------------------------------

func (s *Store) Adjust(ctx context.Context, userID, amount int64, reason string) (int64, error) {
	var balance int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		balance, err = adjustTx(ctx, tx, userID, amount, reason)
		return err
	})
	return balance, err
}

func (s *Store) Transfer(ctx context.Context, fromUserID, toUserID, amount int64, reasonOut, reasonIn string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return transferTx(ctx, tx, fromUserID, toUserID, amount, reasonOut, reasonIn)
	})
}

func (s *Store) Balance(ctx context.Context, userID int64) (int64, error) {
	var balance int64
	err := s.db.QueryRowContext(ctx, `
		SELECT balance FROM accounts WHERE user_id = $1
	`, userID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("account %d: %w", userID, storage.ErrNotFound)
	}
	return balance, err
}

func (s *Store) Entries(ctx context.Context, userID int64, limit int) ([]ledger.Entry, error) {
	if _, err := s.Balance(ctx, userID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, amount, reason, created_at
		FROM ledger_entries
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.Entry
	for rows.Next() {
		var entry ledger.Entry
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.Amount, &entry.Reason, &entry.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func (s *Store) Supply(ctx context.Context) (ledger.Supply, error) {
	var supply ledger.Supply
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(balance), 0),
		       COALESCE(SUM(balance) FILTER (WHERE user_id = $1), 0)
		FROM accounts
	`, account.TreasuryUserID).Scan(&supply.Total, &supply.Treasury)
	if err != nil {
		return ledger.Supply{}, err
	}
	supply.Circulating = supply.Total - supply.Treasury
	return supply, nil
}

// --- OrderStore -------------------------------------------------------------

func (s *Store) CreateOrder(ctx context.Context, order presale.Order) (presale.Order, error) {
	if _, err := s.GetAccount(ctx, order.UserID); err != nil {
		return presale.Order{}, err
	}

	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	order.Status = presale.StatusBooked
	order.CreatedAt = time.Now().UTC()
	order.ReleasedAt = time.Time{}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO presale_orders (id, user_id, amount, cost, status, created_at, released_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULL)
	`, order.ID, order.UserID, order.Amount, order.Cost, order.Status, order.CreatedAt)
	if isUniqueViolation(err) {
		return presale.Order{}, fmt.Errorf("order %s: %w", order.ID, storage.ErrConflict)
	}
	if err != nil {
		return presale.Order{}, err
	}
	return order, nil
}

func scanOrder(row interface{ Scan(...any) error }) (presale.Order, error) {
	var order presale.Order
	var releasedAt sql.NullTime
	err := row.Scan(&order.ID, &order.UserID, &order.Amount, &order.Cost, &order.Status, &order.CreatedAt, &releasedAt)
	if releasedAt.Valid {
		order.ReleasedAt = releasedAt.Time
	}
	return order, err
}

func (s *Store) GetOrder(ctx context.Context, id string) (presale.Order, error) {
	order, err := scanOrder(s.db.QueryRowContext(ctx, `
		SELECT id, user_id, amount, cost, status, created_at, released_at
		FROM presale_orders WHERE id = $1
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return presale.Order{}, fmt.Errorf("order %s: %w", id, storage.ErrNotFound)
	}
	return order, err
}

func (s *Store) ListOrders(ctx context.Context, userID int64) ([]presale.Order, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, amount, cost, status, created_at, released_at
		FROM presale_orders
		WHERE $1 < 0 OR user_id = $1
		ORDER BY created_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []presale.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, order)
	}
	return out, rows.Err()
}

func (s *Store) ReleaseOrder(ctx context.Context, id string) (presale.Order, error) {
	var order presale.Order
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		order, err = scanOrder(tx.QueryRowContext(ctx, `
			UPDATE presale_orders
			SET status = $2, released_at = NOW()
			WHERE id = $1 AND status = $3
			RETURNING id, user_id, amount, cost, status, created_at, released_at
		`, id, presale.StatusReleased, presale.StatusBooked))
		if errors.Is(err, sql.ErrNoRows) {
			existing, getErr := s.GetOrder(ctx, id)
			if getErr != nil {
				return getErr
			}
			return fmt.Errorf("order %s is %s: %w", id, existing.Status, storage.ErrInvalidState)
		}
		if err != nil {
			return err
		}
		return transferTx(ctx, tx, account.TreasuryUserID, order.UserID, order.Amount, ledger.ReasonPresaleOut, ledger.ReasonPresaleRelease)
	})
	if err != nil {
		return presale.Order{}, err
	}
	return order, nil
}

// --- ClaimStore -------------------------------------------------------------

func (s *Store) CreateClaim(ctx context.Context, claim deposit.Claim) (deposit.Claim, error) {
	if _, err := s.GetAccount(ctx, claim.UserID); err != nil {
		return deposit.Claim{}, err
	}

	now := time.Now().UTC()
	claim.Status = deposit.StatusPending
	claim.Note = ""
	claim.CreditedAmount = 0
	claim.FeeAmount = 0
	claim.CreatedAt = now
	claim.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO deposit_claims (ref, user_id, status, note, credited_amount, fee_amount, created_at, updated_at)
		VALUES ($1, $2, $3, '', 0, 0, $4, $5)
	`, claim.Ref, claim.UserID, claim.Status, claim.CreatedAt, claim.UpdatedAt)
	if isUniqueViolation(err) {
		return deposit.Claim{}, fmt.Errorf("claim %s: %w", claim.Ref, storage.ErrConflict)
	}
	if err != nil {
		return deposit.Claim{}, err
	}
	return claim, nil
}

const claimColumns = `ref, user_id, status, note, credited_amount, fee_amount, created_at, updated_at`

func scanClaim(row interface{ Scan(...any) error }) (deposit.Claim, error) {
	var claim deposit.Claim
	err := row.Scan(&claim.Ref, &claim.UserID, &claim.Status, &claim.Note, &claim.CreditedAmount, &claim.FeeAmount, &claim.CreatedAt, &claim.UpdatedAt)
	return claim, err
}

func (s *Store) GetClaim(ctx context.Context, ref string) (deposit.Claim, error) {
	claim, err := scanClaim(s.db.QueryRowContext(ctx, `
		SELECT `+claimColumns+` FROM deposit_claims WHERE ref = $1
	`, ref))
	if errors.Is(err, sql.ErrNoRows) {
		return deposit.Claim{}, fmt.Errorf("claim %s: %w", ref, storage.ErrNotFound)
	}
	return claim, err
}

func (s *Store) listClaims(ctx context.Context, query string, args ...any) ([]deposit.Claim, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []deposit.Claim
	for rows.Next() {
		claim, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, claim)
	}
	return out, rows.Err()
}

func (s *Store) ListClaims(ctx context.Context, userID int64) ([]deposit.Claim, error) {
	return s.listClaims(ctx, `
		SELECT `+claimColumns+` FROM deposit_claims
		WHERE $1 < 0 OR user_id = $1
		ORDER BY created_at DESC, ref DESC
	`, userID)
}

func (s *Store) ListPendingClaims(ctx context.Context) ([]deposit.Claim, error) {
	return s.listClaims(ctx, `
		SELECT `+claimColumns+` FROM deposit_claims
		WHERE status = $1
		ORDER BY created_at ASC
	`, deposit.StatusPending)
}

func (s *Store) RejectClaim(ctx context.Context, ref, note string) (deposit.Claim, error) {
	claim, err := scanClaim(s.db.QueryRowContext(ctx, `
		UPDATE deposit_claims
		SET status = $2, note = $3, updated_at = NOW()
		WHERE ref = $1 AND status = $4
		RETURNING `+claimColumns+`
	`, ref, deposit.StatusRejected, note, deposit.StatusPending))
	if errors.Is(err, sql.ErrNoRows) {
		existing, getErr := s.GetClaim(ctx, ref)
		if getErr != nil {
			return deposit.Claim{}, getErr
		}
		return deposit.Claim{}, fmt.Errorf("claim %s is %s: %w", ref, existing.Status, storage.ErrInvalidState)
	}
	return claim, err
}

func (s *Store) ConfirmClaim(ctx context.Context, ref string, net, fee int64) (deposit.Claim, error) {
	if net <= 0 || fee < 0 {
		return deposit.Claim{}, fmt.Errorf("credit %d fee %d: %w", net, fee, storage.ErrInvalidState)
	}

	var claim deposit.Claim
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		claim, err = scanClaim(tx.QueryRowContext(ctx, `
			UPDATE deposit_claims
			SET status = $2, credited_amount = $3, fee_amount = $4, updated_at = NOW()
			WHERE ref = $1 AND status = $5
			RETURNING `+claimColumns+`
		`, ref, deposit.StatusCredited, net, fee, deposit.StatusPending))
		if errors.Is(err, sql.ErrNoRows) {
			existing, getErr := s.GetClaim(ctx, ref)
			if getErr != nil {
				return getErr
			}
			return fmt.Errorf("claim %s is %s: %w", ref, existing.Status, storage.ErrInvalidState)
		}
		if err != nil {
			return err
		}
		if _, err := adjustTx(ctx, tx, claim.UserID, net, ledger.DepositConfirmedReason(ref)); err != nil {
			return err
		}
		if fee > 0 {
			if _, err := adjustTx(ctx, tx, account.TreasuryUserID, fee, ledger.DepositFeeReason(ref)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return deposit.Claim{}, err
	}
	return claim, nil
}

// --- RewardStore ------------------------------------------------------------

func (s *Store) ClaimTask(ctx context.Context, userID int64, task string, amount int64) (reward.TaskClaim, error) {
	claim := reward.TaskClaim{
		ID:        uuid.NewString(),
		UserID:    userID,
		Task:      task,
		Amount:    amount,
		CreatedAt: time.Now().UTC(),
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO task_claims (id, user_id, task, amount, created_at)
			VALUES ($1, $2, $3, $4, $5)
		`, claim.ID, claim.UserID, claim.Task, claim.Amount, claim.CreatedAt)
		if isUniqueViolation(err) {
			return fmt.Errorf("task %s already claimed by %d: %w", task, userID, storage.ErrConflict)
		}
		if err != nil {
			return err
		}
		return transferTx(ctx, tx, account.TreasuryUserID, userID, amount, ledger.TaskReasonOut(task), ledger.TaskReason(task))
	})
	if err != nil {
		return reward.TaskClaim{}, err
	}
	return claim, nil
}

func (s *Store) ListTaskClaims(ctx context.Context, userID int64) ([]reward.TaskClaim, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, task, amount, created_at
		FROM task_claims
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []reward.TaskClaim
	for rows.Next() {
		var claim reward.TaskClaim
		if err := rows.Scan(&claim.ID, &claim.UserID, &claim.Task, &claim.Amount, &claim.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, claim)
	}
	return out, rows.Err()
}

func (s *Store) AddStorage(ctx context.Context, userID, units, cost int64) (reward.Storage, error) {
	if units <= 0 || cost < 0 {
		return reward.Storage{}, fmt.Errorf("units %d cost %d: %w", units, cost, storage.ErrInvalidState)
	}

	var st reward.Storage
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if cost > 0 {
			if err := transferTx(ctx, tx, userID, account.TreasuryUserID, cost, ledger.ReasonBuyStorage, ledger.ReasonBuyStorageIn); err != nil {
				return err
			}
		} else if _, err := s.GetAccount(ctx, userID); err != nil {
			return err
		}
		return tx.QueryRowContext(ctx, `
			INSERT INTO storage_caps (user_id, capacity, updated_at)
			VALUES ($1, $2, NOW())
			ON CONFLICT (user_id) DO UPDATE
			SET capacity = storage_caps.capacity + EXCLUDED.capacity, updated_at = NOW()
			RETURNING user_id, capacity, updated_at
		`, userID, units).Scan(&st.UserID, &st.Capacity, &st.UpdatedAt)
	})
	if err != nil {
		return reward.Storage{}, err
	}
	return st, nil
}

func (s *Store) GetStorage(ctx context.Context, userID int64) (reward.Storage, error) {
	if _, err := s.GetAccount(ctx, userID); err != nil {
		return reward.Storage{}, err
	}

	var st reward.Storage
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, capacity, updated_at FROM storage_caps WHERE user_id = $1
	`, userID).Scan(&st.UserID, &st.Capacity, &st.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return reward.Storage{UserID: userID}, nil
	}
	return st, err
}
