package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/almacen/inventory_backend/config"
	"github.com/almacen/inventory_backend/models"
)

func main() {
	status := flag.Bool("status", false, "List pending migrations without applying them")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := config.ConnectDatabaseWithRetry(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect database: %v\n", err)
		os.Exit(1)
	}

	if *status {
		pending, err := models.PendingMigrations(ctx, db, models.Migrations)
		if err != nil {
			fmt.Fprintf(os.Stderr, "read migrations: %v\n", err)
			os.Exit(1)
		}
		if len(pending) == 0 {
			fmt.Println("schema is up to date")
			return
		}
		for _, m := range pending {
			fmt.Printf("pending %d %s\n", m.Version, m.Name)
		}
		return
	}

	applied, err := models.MigrateTable(ctx, db, config.GetLogger())
	if err != nil {
		fmt.Fprintf(os.Stderr, "migrate failed after %v: %v\n", applied, err)
		os.Exit(1)
	}
	fmt.Printf("applied %d migration(s) %v\n", len(applied), applied)
}
