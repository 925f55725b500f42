package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/almacen/inventory_backend/config"
	"github.com/almacen/inventory_backend/models"
)

// stock-audit prints every stock rule violation as JSON and exits 1 when there is any,
// so it can gate a deploy or back a cron alert.
func main() {
	ctx := context.Background()
	db, err := config.ConnectDatabaseWithRetry(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect database: %v\n", err)
		os.Exit(2)
	}
	store := models.NewStore(db, models.WithLogger(config.GetLogger()))

	violations, err := store.AuditStock(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "audit failed: %v\n", err)
		os.Exit(2)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(violations); err != nil {
		fmt.Fprintf(os.Stderr, "encode: %v\n", err)
		os.Exit(2)
	}
	if len(violations) > 0 {
		fmt.Fprintf(os.Stderr, "%d stock violation(s) found\n", len(violations))
		os.Exit(1)
	}
}
