package deposit

import (
	"context"
	"errors"
	"math"
	"math/big"
	"strings"
	"testing"

	"github.com/OneWorld-Network/ledger_layer/internal/app/domain/account"
	"github.com/OneWorld-Network/ledger_layer/internal/app/domain/deposit"
	"github.com/OneWorld-Network/ledger_layer/internal/app/domain/ledger"
	"github.com/OneWorld-Network/ledger_layer/internal/app/storage/memory"
)

const treasuryAddress = "0x00000000000000000000000000000000000000aa"

type fakeObserver struct {
	txs      map[string]deposit.ChainTransaction
	receipts map[string]deposit.ChainReceipt
	err      error
}

func (f *fakeObserver) TransactionByRef(_ context.Context, ref string) (deposit.ChainTransaction, bool, error) {
	if f.err != nil {
		return deposit.ChainTransaction{}, false, f.err
	}
	tx, ok := f.txs[ref]
	return tx, ok, nil
}

func (f *fakeObserver) ReceiptByRef(_ context.Context, ref string) (deposit.ChainReceipt, bool, error) {
	if f.err != nil {
		return deposit.ChainReceipt{}, false, f.err
	}
	receipt, ok := f.receipts[ref]
	return receipt, ok, nil
}

func newReconcilerFixture(t *testing.T, observer *fakeObserver) (*Reconciler, *memory.Store) {
	t.Helper()
	store := memory.New()
	ctx := context.Background()
	if _, err := store.EnsureTreasury(ctx, 1_000_000); err != nil {
		t.Fatalf("ensure treasury: %v", err)
	}
	if _, err := store.CreateAccount(ctx, account.Account{UserID: 7}); err != nil {
		t.Fatalf("create account: %v", err)
	}
	if err := store.Transfer(ctx, account.TreasuryUserID, 7, 1000, ledger.ReasonAirdropOut, ledger.ReasonAirdrop); err != nil {
		t.Fatalf("airdrop: %v", err)
	}

	r := NewReconciler(store, observer, ReconcilerConfig{
		TreasuryAddress: treasuryAddress,
		RatePerNative:   10000,
		FeePercent:      5,
	}, nil)
	return r, store
}

// wei for a 0.05 native coin deposit: at 10000 tokens per coin this grosses
// 500 tokens, split 475 net / 25 fee at a 5% fee.
var depositWei = new(big.Int).Mul(big.NewInt(5), new(big.Int).Exp(big.NewInt(10), big.NewInt(16), nil))

func pendingRef(t *testing.T, store *memory.Store, ref string) deposit.Claim {
	t.Helper()
	claim, err := store.CreateClaim(context.Background(), deposit.Claim{Ref: ref, UserID: 7})
	if err != nil {
		t.Fatalf("create claim: %v", err)
	}
	return claim
}

func testTxRef(suffix string) string {
	return "0x" + strings.Repeat("0", 64-len(suffix)) + suffix
}

func TestReconcileCreditsVerifiedDeposit(t *testing.T) {
	ref := testTxRef("1")
	observer := &fakeObserver{
		txs:      map[string]deposit.ChainTransaction{ref: {Ref: ref, To: treasuryAddress, Value: depositWei}},
		receipts: map[string]deposit.ChainReceipt{ref: {Ref: ref, Success: true}},
	}
	r, store := newReconcilerFixture(t, observer)
	pendingRef(t, store, ref)
	ctx := context.Background()

	r.RunOnce(ctx)

	claim, err := store.GetClaim(ctx, ref)
	if err != nil {
		t.Fatalf("get claim: %v", err)
	}
	if claim.Status != deposit.StatusCredited || claim.CreditedAmount != 475 || claim.FeeAmount != 25 {
		t.Fatalf("unexpected claim %+v", claim)
	}

	balance, _ := store.Balance(ctx, 7)
	if balance != 1475 {
		t.Fatalf("expected balance 1475, got %d", balance)
	}
	supply, _ := store.Supply(ctx)
	if supply.Total != 1_000_500 {
		t.Fatalf("expected total supply grown by 500, got %d", supply.Total)
	}
	if supply.Treasury != 1_000_000-1000+25 {
		t.Fatalf("unexpected treasury balance %d", supply.Treasury)
	}
}

func TestReconcileIsAtMostOnce(t *testing.T) {
	ref := testTxRef("1")
	observer := &fakeObserver{
		txs:      map[string]deposit.ChainTransaction{ref: {Ref: ref, To: treasuryAddress, Value: depositWei}},
		receipts: map[string]deposit.ChainReceipt{ref: {Ref: ref, Success: true}},
	}
	r, store := newReconcilerFixture(t, observer)
	pendingRef(t, store, ref)
	ctx := context.Background()

	r.RunOnce(ctx)
	r.RunOnce(ctx)

	balance, _ := store.Balance(ctx, 7)
	if balance != 1475 {
		t.Fatalf("second pass re-credited, balance %d", balance)
	}
}

func TestReconcileRejectsWrongRecipient(t *testing.T) {
	ref := testTxRef("1")
	observer := &fakeObserver{
		txs: map[string]deposit.ChainTransaction{ref: {Ref: ref, To: "0x00000000000000000000000000000000000000bb", Value: depositWei}},
	}
	r, store := newReconcilerFixture(t, observer)
	pendingRef(t, store, ref)
	ctx := context.Background()

	r.RunOnce(ctx)

	claim, _ := store.GetClaim(ctx, ref)
	if claim.Status != deposit.StatusRejected {
		t.Fatalf("expected rejected claim, got %s", claim.Status)
	}
	balance, _ := store.Balance(ctx, 7)
	if balance != 1000 {
		t.Fatalf("rejected claim credited balance %d", balance)
	}
}

func TestReconcileWithoutTreasuryAddressCreditsAnyRecipient(t *testing.T) {
	ref := testTxRef("1")
	observer := &fakeObserver{
		txs:      map[string]deposit.ChainTransaction{ref: {Ref: ref, To: "0x00000000000000000000000000000000000000bb", Value: depositWei}},
		receipts: map[string]deposit.ChainReceipt{ref: {Ref: ref, Success: true}},
	}
	r, store := newReconcilerFixture(t, observer)
	r.cfg.TreasuryAddress = ""
	pendingRef(t, store, ref)
	ctx := context.Background()

	r.RunOnce(ctx)

	claim, _ := store.GetClaim(ctx, ref)
	if claim.Status != deposit.StatusCredited {
		t.Fatalf("expected credited claim without configured treasury address, got %s (%s)", claim.Status, claim.Note)
	}
	balance, _ := store.Balance(ctx, 7)
	if balance != 1475 {
		t.Fatalf("expected balance 1475, got %d", balance)
	}
}

func TestReconcileRejectsFailedExecution(t *testing.T) {
	ref := testTxRef("1")
	observer := &fakeObserver{
		txs:      map[string]deposit.ChainTransaction{ref: {Ref: ref, To: treasuryAddress, Value: depositWei}},
		receipts: map[string]deposit.ChainReceipt{ref: {Ref: ref, Success: false}},
	}
	r, store := newReconcilerFixture(t, observer)
	pendingRef(t, store, ref)
	ctx := context.Background()

	r.RunOnce(ctx)

	claim, _ := store.GetClaim(ctx, ref)
	if claim.Status != deposit.StatusRejected {
		t.Fatalf("expected rejected claim, got %s", claim.Status)
	}
}

func TestReconcileLeavesUnknownTxPending(t *testing.T) {
	ref := testTxRef("1")
	r, store := newReconcilerFixture(t, &fakeObserver{})
	pendingRef(t, store, ref)
	ctx := context.Background()

	r.RunOnce(ctx)

	claim, _ := store.GetClaim(ctx, ref)
	if claim.Status != deposit.StatusPending {
		t.Fatalf("expected pending claim, got %s", claim.Status)
	}
}

func TestReconcileLeavesUnminedTxPending(t *testing.T) {
	ref := testTxRef("1")
	observer := &fakeObserver{
		txs: map[string]deposit.ChainTransaction{ref: {Ref: ref, To: treasuryAddress, Value: depositWei}},
	}
	r, store := newReconcilerFixture(t, observer)
	pendingRef(t, store, ref)
	ctx := context.Background()

	r.RunOnce(ctx)

	claim, _ := store.GetClaim(ctx, ref)
	if claim.Status != deposit.StatusPending {
		t.Fatalf("expected pending claim, got %s", claim.Status)
	}
}

func TestReconcileSurvivesTransientErrors(t *testing.T) {
	ref := testTxRef("1")
	observer := &fakeObserver{err: errors.New("connection refused")}
	r, store := newReconcilerFixture(t, observer)
	pendingRef(t, store, ref)
	ctx := context.Background()

	r.RunOnce(ctx)

	claim, _ := store.GetClaim(ctx, ref)
	if claim.Status != deposit.StatusPending {
		t.Fatalf("expected pending claim after transient error, got %s", claim.Status)
	}

	// The chain recovers; the same pending claim settles on the next pass.
	observer.err = nil
	observer.txs = map[string]deposit.ChainTransaction{ref: {Ref: ref, To: treasuryAddress, Value: depositWei}}
	observer.receipts = map[string]deposit.ChainReceipt{ref: {Ref: ref, Success: true}}
	r.RunOnce(ctx)

	claim, _ = store.GetClaim(ctx, ref)
	if claim.Status != deposit.StatusCredited {
		t.Fatalf("expected credited claim after recovery, got %s", claim.Status)
	}
}

func TestReconcileLeavesDustPending(t *testing.T) {
	ref := testTxRef("1")
	observer := &fakeObserver{
		txs:      map[string]deposit.ChainTransaction{ref: {Ref: ref, To: treasuryAddress, Value: big.NewInt(1)}},
		receipts: map[string]deposit.ChainReceipt{ref: {Ref: ref, Success: true}},
	}
	r, store := newReconcilerFixture(t, observer)
	pendingRef(t, store, ref)
	ctx := context.Background()

	r.RunOnce(ctx)

	claim, _ := store.GetClaim(ctx, ref)
	if claim.Status != deposit.StatusPending {
		t.Fatalf("expected dust deposit to stay pending, got %s", claim.Status)
	}
}

func TestConvertFloorsAtEveryStep(t *testing.T) {
	r := NewReconciler(nil, nil, ReconcilerConfig{RatePerNative: 10000, FeePercent: 5}, nil)

	net, fee, ok := r.convert(depositWei)
	if !ok || net != 475 || fee != 25 {
		t.Fatalf("expected 475/25, got %d/%d ok=%v", net, fee, ok)
	}

	// 0.00011 native * 10000 = 1.1 tokens, floored to 1; 5% fee floors to 0.
	small, _ := new(big.Int).SetString("110000000000000", 10)
	net, fee, ok = r.convert(small)
	if !ok || net != 1 || fee != 0 {
		t.Fatalf("expected 1/0, got %d/%d ok=%v", net, fee, ok)
	}

	if _, _, ok := r.convert(big.NewInt(0)); ok {
		t.Fatal("zero value must not convert")
	}
	if _, _, ok := r.convert(nil); ok {
		t.Fatal("nil value must not convert")
	}
}

func TestConvertNearInt64Cap(t *testing.T) {
	r := NewReconciler(nil, nil, ReconcilerConfig{RatePerNative: 10000, FeePercent: 5}, nil)

	// A gross just under the int64 cap; 10000 per native divides 1e18, so
	// the wei value below converts back to exactly this gross.
	gross := int64(math.MaxInt64 - 7)
	valueWei := new(big.Int).Mul(big.NewInt(gross), weiPerNative)
	valueWei.Div(valueWei, big.NewInt(10000))

	wantFee := gross/100*5 + gross%100*5/100
	net, fee, ok := r.convert(valueWei)
	if !ok {
		t.Fatal("expected conversion near the cap to succeed")
	}
	if fee != wantFee || net != gross-wantFee {
		t.Fatalf("expected %d/%d, got %d/%d", gross-wantFee, wantFee, net, fee)
	}

	// One native more than the cap converts to nothing rather than wrapping.
	over := new(big.Int).Add(new(big.Int).Mul(big.NewInt(math.MaxInt64), weiPerNative), weiPerNative)
	if _, _, ok := r.convert(over); ok {
		t.Fatal("gross beyond int64 must not convert")
	}
}
