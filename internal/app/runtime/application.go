// Package runtime assembles the process: configuration, storage, services
// and the HTTP server.
package runtime

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	_ "github.com/lib/pq"

	app "github.com/OneWorld-Network/ledger_layer/internal/app"
	"github.com/OneWorld-Network/ledger_layer/internal/app/domain/deposit"
	"github.com/OneWorld-Network/ledger_layer/internal/app/httpapi"
	"github.com/OneWorld-Network/ledger_layer/internal/app/metrics"
	"github.com/OneWorld-Network/ledger_layer/internal/app/storage/memory"
	"github.com/OneWorld-Network/ledger_layer/internal/app/storage/postgres"
	"github.com/OneWorld-Network/ledger_layer/internal/chain"
	"github.com/OneWorld-Network/ledger_layer/internal/config"
	"github.com/OneWorld-Network/ledger_layer/pkg/logger"
)

// Application wires core dependencies and manages the process lifecycle.
type Application struct {
	cfg        *config.Config
	log        *logger.Logger
	app        *app.Application
	httpServer *http.Server
	db         *sql.DB
}

// NewApplication constructs a fully wired application from configuration.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := logger.New(logger.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		FilePrefix: cfg.Logging.FilePrefix,
	})

	stores, db, err := buildStores(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("configure stores: %w", err)
	}

	bootCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := stores.Accounts.EnsureTreasury(bootCtx, cfg.Economy.TotalSupply); err != nil {
		return nil, fmt.Errorf("bootstrap treasury: %w", err)
	}

	var observer deposit.Observer
	if cfg.Chain.RPCURL != "" {
		client, err := chain.NewClient(chain.Config{
			RPCURL:  cfg.Chain.RPCURL,
			Timeout: time.Duration(cfg.Chain.TimeoutSeconds) * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("configure chain client: %w", err)
		}
		observer = client
	}

	application, err := app.New(cfg, stores, observer, log)
	if err != nil {
		return nil, fmt.Errorf("build application: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/", httpapi.NewHandler(application, cfg, log))

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           metrics.InstrumentHandler(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &Application{
		cfg:        cfg,
		log:        log,
		app:        application,
		httpServer: httpServer,
		db:         db,
	}, nil
}

// Run starts the services and the HTTP server, then blocks until the context
// is cancelled or the server fails.
func (a *Application) Run(ctx context.Context) error {
	if err := a.app.Start(ctx); err != nil {
		return fmt.Errorf("start services: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Infof("HTTP server listening on %s", a.httpServer.Addr)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown stops the services and the HTTP server gracefully.
func (a *Application) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := a.app.Stop(shutdownCtx); err != nil {
		a.log.WithError(err).Warn("error stopping services")
	}
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.WithError(err).Warn("error closing database connection")
		}
	}
	return nil
}

// buildStores opens PostgreSQL when a DSN is configured and falls back to the
// in-memory store otherwise. The fallback keeps local development and tests
// free of infrastructure, at the cost of durability.
func buildStores(cfg *config.Config, log *logger.Logger) (app.Stores, *sql.DB, error) {
	if cfg.Database.DSN == "" {
		log.Warn("DATABASE_DSN not set; using volatile in-memory store")
		mem := memory.New()
		return app.Stores{Accounts: mem, Ledger: mem, Orders: mem, Claims: mem, Rewards: mem}, nil, nil
	}

	db, err := openDatabase(cfg.Database)
	if err != nil {
		return app.Stores{}, nil, err
	}
	if err := postgres.Migrate(db); err != nil {
		db.Close()
		return app.Stores{}, nil, fmt.Errorf("apply migrations: %w", err)
	}

	store := postgres.New(db)
	return app.Stores{Accounts: store, Ledger: store, Orders: store, Claims: store, Rewards: store}, db, nil
}

func openDatabase(cfg config.DatabaseConfig) (*sql.DB, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = "postgres"
	}

	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
