// Command ledgerd runs the point-credit ledger service: the HTTP API, the
// deposit reconciler and the backing store, driven by environment
// configuration.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/OneWorld-Network/ledger_layer/internal/app/runtime"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := runtime.NewApplication()
	if err != nil {
		log.Fatalf("failed to initialise application: %v", err)
	}

	if err := app.Run(ctx); err != nil {
		log.Fatalf("application error: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := app.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
