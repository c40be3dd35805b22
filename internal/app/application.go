package app

import (
	"context"
	"fmt"

	"github.com/OneWorld-Network/ledger_layer/internal/app/domain/deposit"
	accountssvc "github.com/OneWorld-Network/ledger_layer/internal/app/services/accounts"
	depositsvc "github.com/OneWorld-Network/ledger_layer/internal/app/services/deposit"
	ledgersvc "github.com/OneWorld-Network/ledger_layer/internal/app/services/ledger"
	presalesvc "github.com/OneWorld-Network/ledger_layer/internal/app/services/presale"
	rewardssvc "github.com/OneWorld-Network/ledger_layer/internal/app/services/rewards"
	"github.com/OneWorld-Network/ledger_layer/internal/app/storage"
	"github.com/OneWorld-Network/ledger_layer/internal/app/storage/memory"
	"github.com/OneWorld-Network/ledger_layer/internal/app/system"
	"github.com/OneWorld-Network/ledger_layer/internal/config"
	"github.com/OneWorld-Network/ledger_layer/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Accounts storage.AccountStore
	Ledger   storage.LedgerStore
	Orders   storage.OrderStore
	Claims   storage.ClaimStore
	Rewards  storage.RewardStore
}

// Application ties the domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Accounts *accountssvc.Service
	Ledger   *ledgersvc.Service
	Presale  *presalesvc.Service
	Deposits *depositsvc.Service
	Rewards  *rewardssvc.Service
}

// New builds a fully initialised application with the provided stores. A nil
// observer disables the deposit reconciler; claims then stay pending until a
// chain connection is configured.
func New(cfg *config.Config, stores Stores, observer deposit.Observer, log *logger.Logger) (*Application, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = logger.NewDefault("app")
	}

	mem := memory.New()
	if stores.Accounts == nil {
		stores.Accounts = mem
	}
	if stores.Ledger == nil {
		stores.Ledger = mem
	}
	if stores.Orders == nil {
		stores.Orders = mem
	}
	if stores.Claims == nil {
		stores.Claims = mem
	}
	if stores.Rewards == nil {
		stores.Rewards = mem
	}

	manager := system.NewManager()

	acctService := accountssvc.New(stores.Accounts, stores.Ledger, accountssvc.Config{
		InitialAirdrop:    cfg.Economy.InitialAirdrop,
		ReferralBonus:     cfg.Economy.ReferralBonus,
		ReferralBatchSize: cfg.Economy.ReferralBatchSize,
	}, log)
	ledgerService := ledgersvc.New(stores.Ledger, log)
	presaleService := presalesvc.New(stores.Orders, log)
	depositService := depositsvc.New(stores.Claims, log)
	rewardsService := rewardssvc.New(stores.Rewards, stores.Ledger, rewardssvc.Config{
		TaskRewards:     cfg.Economy.TaskRewards,
		StorageUnitCost: cfg.Economy.StorageUnitCost,
	}, log)

	for _, name := range []string{"accounts", "ledger", "presale", "deposits", "rewards"} {
		if err := manager.Register(system.NoopService{ServiceName: name}); err != nil {
			return nil, fmt.Errorf("register %s service: %w", name, err)
		}
	}

	if observer != nil {
		reconciler := depositsvc.NewReconciler(stores.Claims, observer, depositsvc.ReconcilerConfig{
			Schedule:        cfg.Chain.Schedule,
			TreasuryAddress: cfg.Chain.TreasuryAddress,
			RatePerNative:   cfg.Economy.RatePerNative,
			FeePercent:      cfg.Economy.FeePercent,
		}, log)
		if err := manager.Register(reconciler); err != nil {
			return nil, fmt.Errorf("register %s: %w", reconciler.Name(), err)
		}
	} else {
		log.Warn("chain RPC not configured; deposit reconciler disabled")
	}

	return &Application{
		manager:  manager,
		log:      log,
		Accounts: acctService,
		Ledger:   ledgerService,
		Presale:  presaleService,
		Deposits: depositService,
		Rewards:  rewardsService,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
