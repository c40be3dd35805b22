package postgres

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"

	"github.com/OneWorld-Network/ledger_layer/internal/app/domain/account"
	"github.com/OneWorld-Network/ledger_layer/internal/app/domain/deposit"
	"github.com/OneWorld-Network/ledger_layer/internal/app/domain/ledger"
	"github.com/OneWorld-Network/ledger_layer/internal/app/storage"
)

func TestStoreIntegration(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping postgres integration test")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	store := New(db)
	ctx := context.Background()

	if _, err := store.EnsureTreasury(ctx, 1_000_000); err != nil {
		t.Fatalf("ensure treasury: %v", err)
	}

	userID := time.Now().UnixNano()
	if _, err := store.CreateAccount(ctx, account.Account{UserID: userID}); err != nil {
		t.Fatalf("create account: %v", err)
	}

	if err := store.Transfer(ctx, account.TreasuryUserID, userID, 1000, ledger.ReasonAirdropOut, ledger.ReasonAirdrop); err != nil {
		t.Fatalf("airdrop transfer: %v", err)
	}
	balance, err := store.Balance(ctx, userID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 1000 {
		t.Fatalf("expected balance 1000, got %d", balance)
	}

	if _, err := store.Adjust(ctx, userID, -2000, ledger.ReasonAdjust); !errors.Is(err, storage.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	ref := "it-" + time.Now().UTC().Format("20060102150405.000000000")
	if _, err := store.CreateClaim(ctx, deposit.Claim{Ref: ref, UserID: userID}); err != nil {
		t.Fatalf("create claim: %v", err)
	}
	claim, err := store.ConfirmClaim(ctx, ref, 475, 25)
	if err != nil {
		t.Fatalf("confirm claim: %v", err)
	}
	if claim.Status != deposit.StatusCredited {
		t.Fatalf("expected credited claim, got %s", claim.Status)
	}
	if _, err := store.ConfirmClaim(ctx, ref, 475, 25); !errors.Is(err, storage.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState on second confirm, got %v", err)
	}

	entries, err := store.Entries(ctx, userID, 5)
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Reason != ledger.DepositConfirmedReason(ref) {
		t.Fatalf("unexpected newest entry %+v", entries[0])
	}
}
