package deposit

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/OneWorld-Network/ledger_layer/internal/app/domain/deposit"
	"github.com/OneWorld-Network/ledger_layer/internal/app/metrics"
	"github.com/OneWorld-Network/ledger_layer/internal/app/storage"
	"github.com/OneWorld-Network/ledger_layer/internal/app/system"
	"github.com/OneWorld-Network/ledger_layer/pkg/logger"
)

// weiPerNative converts the chain's smallest unit to whole native coins.
var weiPerNative = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// ReconcilerConfig carries the verification and conversion parameters.
type ReconcilerConfig struct {
	// Schedule is a cron expression for reconciliation passes.
	Schedule string

	// TreasuryAddress is the only accepted deposit destination.
	TreasuryAddress string

	// RatePerNative is the number of tokens credited per whole native coin.
	RatePerNative int64

	// FeePercent is the platform cut taken from the gross credit.
	FeePercent int64
}

// Reconciler periodically verifies pending claims against the chain and
// settles them. It never blocks claim submission and holds no ledger state
// while talking to the chain; all crediting goes through the store's
// conditional confirm, which keeps settlement at-most-once even when passes
// overlap across processes.
type Reconciler struct {
	claims   storage.ClaimStore
	observer deposit.Observer
	cfg      ReconcilerConfig
	log      *logger.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	cancel  context.CancelFunc
	running bool
}

var _ system.Service = (*Reconciler)(nil)

// NewReconciler constructs a reconciler.
func NewReconciler(claims storage.ClaimStore, observer deposit.Observer, cfg ReconcilerConfig, log *logger.Logger) *Reconciler {
	if log == nil {
		log = logger.NewDefault("deposit-reconciler")
	}
	if cfg.Schedule == "" {
		cfg.Schedule = "@every 30s"
	}
	if cfg.RatePerNative <= 0 {
		cfg.RatePerNative = 1
	}
	return &Reconciler{
		claims:   claims,
		observer: observer,
		cfg:      cfg,
		log:      log,
	}
}

func (r *Reconciler) Name() string { return "deposit-reconciler" }

// Start schedules reconciliation passes. A pass that overruns its slot
// suppresses the next one instead of stacking up.
func (r *Reconciler) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return nil
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(r.cfg.Schedule, func() { r.RunOnce(runCtx) }); err != nil {
		cancel()
		return err
	}
	c.Start()

	r.cron = c
	r.cancel = cancel
	r.running = true

	r.log.Infof("deposit reconciler started, schedule %q", r.cfg.Schedule)
	return nil
}

// Stop halts the schedule and waits for an in-flight pass to finish.
func (r *Reconciler) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	c := r.cron
	cancel := r.cancel
	r.cron = nil
	r.cancel = nil
	r.running = false
	r.mu.Unlock()

	if cancel != nil {
		defer cancel()
	}
	select {
	case <-c.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce executes a single reconciliation pass over all pending claims.
// Per-claim failures are logged and never abort the pass.
func (r *Reconciler) RunOnce(ctx context.Context) {
	start := time.Now()
	defer func() { metrics.RecordReconcilerPass(time.Since(start)) }()

	pending, err := r.claims.ListPendingClaims(ctx)
	if err != nil {
		r.log.WithError(err).Error("listing pending claims failed")
		return
	}

	for _, claim := range pending {
		if ctx.Err() != nil {
			return
		}
		outcome := r.reconcile(ctx, claim)
		metrics.RecordClaimOutcome(outcome)
	}
}

func (r *Reconciler) reconcile(ctx context.Context, claim deposit.Claim) string {
	log := r.log.WithField("ref", claim.Ref)

	tx, found, err := r.observer.TransactionByRef(ctx, claim.Ref)
	if err != nil {
		log.WithError(err).Warn("chain lookup failed, will retry")
		return "transient"
	}
	if !found {
		return "pending"
	}

	// An empty treasury address disables destination verification.
	if r.cfg.TreasuryAddress != "" && !strings.EqualFold(tx.To, r.cfg.TreasuryAddress) {
		return r.reject(ctx, claim.Ref, "recipient is not the treasury address")
	}

	receipt, found, err := r.observer.ReceiptByRef(ctx, claim.Ref)
	if err != nil {
		log.WithError(err).Warn("receipt lookup failed, will retry")
		return "transient"
	}
	if !found {
		// Mined but no receipt yet; check again next pass.
		return "pending"
	}
	if !receipt.Success {
		return r.reject(ctx, claim.Ref, "transaction execution failed")
	}

	net, fee, ok := r.convert(tx.Value)
	if !ok {
		log.Warnf("deposit of %s wei converts to nothing, leaving pending", tx.Value)
		return "pending"
	}

	confirmed, err := r.claims.ConfirmClaim(ctx, claim.Ref, net, fee)
	if err != nil {
		// ErrInvalidState means another pass settled it first.
		if !errors.Is(err, storage.ErrInvalidState) {
			log.WithError(err).Error("crediting claim failed")
			return "transient"
		}
		return "pending"
	}

	metrics.RecordDepositCredited(net, fee)
	log.WithField("user_id", confirmed.UserID).Infof("deposit credited: %d net, %d fee", net, fee)
	return "credited"
}

func (r *Reconciler) reject(ctx context.Context, ref, note string) string {
	if _, err := r.claims.RejectClaim(ctx, ref, note); err != nil {
		r.log.WithError(err).WithField("ref", ref).Error("rejecting claim failed")
		return "transient"
	}
	r.log.WithField("ref", ref).Warnf("deposit rejected: %s", note)
	return "rejected"
}

// convert turns a wei value into net credit and fee token amounts, flooring
// at every step. ok is false when nothing would be credited.
func (r *Reconciler) convert(valueWei *big.Int) (net, fee int64, ok bool) {
	if valueWei == nil || valueWei.Sign() <= 0 {
		return 0, 0, false
	}

	gross := new(big.Int).Mul(valueWei, big.NewInt(r.cfg.RatePerNative))
	gross.Div(gross, weiPerNative)
	if !gross.IsInt64() {
		return 0, 0, false
	}

	// The fee stays in big.Int until the end; gross near the int64 cap
	// would overflow the intermediate product otherwise.
	feeBig := new(big.Int).Mul(gross, big.NewInt(r.cfg.FeePercent))
	feeBig.Div(feeBig, big.NewInt(100))
	netBig := new(big.Int).Sub(gross, feeBig)
	if netBig.Sign() <= 0 {
		return 0, 0, false
	}
	return netBig.Int64(), feeBig.Int64(), true
}
