// Command server runs the LifeHub sync backend HTTP server.
//
// It serves the offline-sync API (batch processing, conflict resolution,
// status polling) plus health probes, and shuts down gracefully on SIGINT
// or SIGTERM.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/lifehub-app/backend/internal/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx); err != nil {
		log.Fatalf("server: %v", err)
	}
}
