package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Tables names the voucher and redemption tables inside a schema.
type Tables struct {
	Schema     string
	Voucher    string
	Redemption string
}

// DefaultTables returns the default table layout.
func DefaultTables() Tables {
	return Tables{
		Schema:     "public",
		Voucher:    "vouchers",
		Redemption: "voucher_redemptions",
	}
}

// VoucherIdent returns the quoted, schema-qualified voucher table name.
func (t Tables) VoucherIdent() string {
	return pgx.Identifier{t.Schema, t.Voucher}.Sanitize()
}

// RedemptionIdent returns the quoted, schema-qualified redemption table name.
func (t Tables) RedemptionIdent() string {
	return pgx.Identifier{t.Schema, t.Redemption}.Sanitize()
}

// Migrate creates the voucher schema if it does not exist yet.
func Migrate(ctx context.Context, pool *pgxpool.Pool, tables Tables, logger zerolog.Logger) error {
	vouchers := tables.VoucherIdent()
	redemptions := tables.RedemptionIdent()
	index := pgx.Identifier{"idx_" + tables.Redemption + "_voucher_user"}.Sanitize()
	userIndex := pgx.Identifier{"idx_" + tables.Redemption + "_user"}.Sanitize()

	schema := fmt.Sprintf(`
		CREATE SCHEMA IF NOT EXISTS %[1]s;

		CREATE TABLE IF NOT EXISTS %[2]s (
			code TEXT PRIMARY KEY,
			model_type TEXT,
			model_id TEXT,
			data JSONB,
			starts_at TIMESTAMPTZ,
			expires_at TIMESTAMPTZ,
			quantity INTEGER CHECK (quantity IS NULL OR quantity >= 0),
			quantity_left INTEGER,
			type TEXT NOT NULL DEFAULT 'total',
			value TEXT,
			user_id TEXT,
			quantity_per_user INTEGER CHECK (quantity_per_user IS NULL OR quantity_per_user >= 1),
			conditions JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CHECK ((quantity IS NULL) = (quantity_left IS NULL)),
			CHECK (quantity_left IS NULL OR (quantity_left >= 0 AND quantity_left <= quantity))
		);

		CREATE TABLE IF NOT EXISTS %[3]s (
			id UUID PRIMARY KEY,
			voucher_code TEXT NOT NULL REFERENCES %[2]s(code),
			user_id TEXT NOT NULL,
			relation TEXT NOT NULL,
			redeemed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS %[4]s ON %[3]s(voucher_code, user_id);
		CREATE INDEX IF NOT EXISTS %[5]s ON %[3]s(user_id, relation);
	`, pgx.Identifier{tables.Schema}.Sanitize(), vouchers, redemptions, index, userIndex)

	if _, err := pool.Exec(ctx, schema); err != nil {
		logger.Error().Err(err).Str("schema", tables.Schema).Msg("failed to migrate voucher schema")
		return fmt.Errorf("failed to migrate voucher schema: %w", err)
	}

	logger.Info().
		Str("vouchers", vouchers).
		Str("redemptions", redemptions).
		Msg("voucher schema ready")

	return nil
}
