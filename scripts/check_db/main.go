package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"vouchers/internal/config"
	"vouchers/internal/database"

	"github.com/ilyakaznacheev/cleanenv"
)

type settings struct {
	Database config.DatabaseConfig
	Voucher  config.VoucherConfig
}

// Connects with the DB_* environment, creates the voucher tables when
// missing and reports the row counts.
func main() {
	var cfg settings
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Unable to read environment: %v\n", err)
		os.Exit(1)
	}

	logger := config.NewLogger(config.LoggerConfig{Level: "info", Format: "console"})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	tables := database.Tables{
		Schema:     cfg.Voucher.Schema,
		Voucher:    cfg.Voucher.VoucherTable,
		Redemption: cfg.Voucher.RedemptionTable,
	}
	if err := database.Migrate(ctx, pool, tables, logger); err != nil {
		fmt.Fprintf(os.Stderr, "Migration failed: %v\n", err)
		os.Exit(1)
	}

	var dbName string
	var vouchers, redemptions int
	err = pool.QueryRow(ctx, fmt.Sprintf(
		`SELECT current_database(), (SELECT COUNT(*) FROM %s), (SELECT COUNT(*) FROM %s)`,
		tables.VoucherIdent(), tables.RedemptionIdent(),
	)).Scan(&dbName, &vouchers, &redemptions)
	if err != nil {
		fmt.Fprintf(os.Stderr, "QueryRow failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Connected to database: %s (vouchers=%d, redemptions=%d)\n", dbName, vouchers, redemptions)
}
