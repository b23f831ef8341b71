package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jafarshop/storefront/internal/config"
	"github.com/jafarshop/storefront/internal/domain"
	"github.com/jafarshop/storefront/internal/inventory"
	"github.com/jafarshop/storefront/internal/repository/postgres"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: go run cmd/adjust-stock/main.go <product-id> <delta> [kind] [reason]")
		fmt.Println("Example: go run cmd/adjust-stock/main.go 3f1c... -2 DAMAGED \"broken in transit\"")
		os.Exit(1)
	}

	productID, err := uuid.Parse(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid product id: %v\n", err)
		os.Exit(1)
	}
	delta, err := strconv.Atoi(os.Args[2])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid delta: %v\n", err)
		os.Exit(1)
	}

	kind := domain.MovementKindManualAdjustment
	if len(os.Args) > 3 {
		kind = domain.MovementKind(os.Args[3])
	}
	var meta inventory.Metadata
	if len(os.Args) > 4 {
		reason := os.Args[4]
		meta.Reason = &reason
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	// Connect to database
	db, err := postgres.NewConnection(cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	ledger := inventory.NewLedger(postgres.NewStore(db, cfg.Database.LockTimeout, logger), logger)

	product, err := ledger.AdjustStock(context.Background(), productID, delta, kind, meta)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to adjust stock: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Stock adjusted\n\n")
	fmt.Printf("Product: %s (%s)\n", product.Name, product.ID.String())
	fmt.Printf("Change:  %+d (%s)\n", delta, kind)
	fmt.Printf("Stock:   %d\n", product.Stock)
}
