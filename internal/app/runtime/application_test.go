package runtime

import (
	"testing"

	"github.com/OneWorld-Network/ledger_layer/internal/config"
	"github.com/OneWorld-Network/ledger_layer/pkg/logger"
)

func TestBuildStoresMemoryFallback(t *testing.T) {
	cfg := config.Default()
	cfg.Database.DSN = ""

	stores, db, err := buildStores(cfg, logger.NewDefault("test"))
	if err != nil {
		t.Fatalf("build stores: %v", err)
	}
	if db != nil {
		t.Fatal("expected no database handle for memory store")
	}
	if stores.Accounts == nil || stores.Ledger == nil || stores.Orders == nil || stores.Claims == nil || stores.Rewards == nil {
		t.Fatal("expected every store to be wired")
	}
}

func TestOpenDatabaseRejectsBadDriver(t *testing.T) {
	_, err := openDatabase(config.DatabaseConfig{Driver: "no-such-driver", DSN: "x"})
	if err == nil {
		t.Fatal("expected error for unregistered driver")
	}
}
