package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/BlitzCraftHQ/nftconomy-cardano-api-sub001/app/warmer"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app, err := warmer.Initialize(ctx)
	if err != nil {
		panic(err)
	}

	// Immediate pass before cron
	go app.WarmOnce(ctx)

	// Start cron scheduler
	app.StartCron()

	// Setup server
	app.SetupServer()

	// Start server
	app.Start(ctx)
}
