package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"vouchers/internal/database"
	"vouchers/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const voucherColumns = `code, model_type, model_id, data, starts_at, expires_at, quantity, quantity_left,
		type, value, user_id, quantity_per_user, conditions, created_at`

// voucherRepository implements the VoucherRepository interface using PostgreSQL.
type voucherRepository struct {
	pool        *pgxpool.Pool
	vouchers    string
	redemptions string
	logger      zerolog.Logger
}

// NewVoucherRepository creates a new PostgreSQL-backed voucher repository.
func NewVoucherRepository(pool *pgxpool.Pool, tables database.Tables, logger zerolog.Logger) VoucherRepository {
	return &voucherRepository{
		pool:        pool,
		vouchers:    tables.VoucherIdent(),
		redemptions: tables.RedemptionIdent(),
		logger:      logger.With().Str("repository", "voucher").Logger(),
	}
}

func (r *voucherRepository) querier(q Querier) Querier {
	if q == nil {
		return r.pool
	}
	return q
}

// BeginTx starts a new database transaction.
func (r *voucherRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to begin transaction")
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx, nil
}

// FindByCode retrieves a voucher by its code.
func (r *voucherRepository) FindByCode(ctx context.Context, code string) (*model.Voucher, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE code = $1`, voucherColumns, r.vouchers)
	return r.findOne(ctx, r.pool, query, code)
}

// FindByCodeForUpdate retrieves a voucher and locks its row for the rest of q.
func (r *voucherRepository) FindByCodeForUpdate(ctx context.Context, q Querier, code string) (*model.Voucher, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE code = $1 FOR UPDATE`, voucherColumns, r.vouchers)
	return r.findOne(ctx, r.querier(q), query, code)
}

func (r *voucherRepository) findOne(ctx context.Context, q Querier, query, code string) (*model.Voucher, error) {
	v, err := scanVoucher(q.QueryRow(ctx, query, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Str("voucher_code", code).Msg("voucher not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Str("voucher_code", code).Msg("failed to query voucher")
		return nil, fmt.Errorf("failed to query voucher: %w", err)
	}
	return v, nil
}

// CodeExists reports whether a voucher with the code is stored.
func (r *voucherRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE code = $1)`, r.vouchers)

	var exists bool
	if err := r.pool.QueryRow(ctx, query, code).Scan(&exists); err != nil {
		r.logger.Error().Err(err).Str("voucher_code", code).Msg("failed to check voucher code")
		return false, fmt.Errorf("failed to check voucher code: %w", err)
	}
	return exists, nil
}

// Create inserts a new voucher.
func (r *voucherRepository) Create(ctx context.Context, v *model.Voucher) error {
	data, err := marshalJSON(v.Data)
	if err != nil {
		return fmt.Errorf("failed to encode voucher data: %w", err)
	}

	var modelType, modelID *string
	if v.Owner != nil {
		modelType, modelID = &v.Owner.Type, &v.Owner.ID
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, r.vouchers, voucherColumns)

	_, err = r.pool.Exec(ctx, query,
		v.Code, modelType, modelID, data, v.StartsAt, v.ExpiresAt, v.Quantity, v.QuantityLeft,
		v.Type, v.Value, v.UserID, v.QuantityPerUser, nullableJSON(v.Conditions), v.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			r.logger.Warn().Str("voucher_code", v.Code).Msg("voucher code collision on insert")
			return ErrDuplicateCode
		}
		r.logger.Error().Err(err).Str("voucher_code", v.Code).Msg("failed to create voucher")
		return fmt.Errorf("failed to create voucher: %w", err)
	}

	r.logger.Debug().Str("voucher_code", v.Code).Msg("voucher created successfully")

	return nil
}

// CountUserRedemptions counts redemptions of a voucher by a user.
func (r *voucherRepository) CountUserRedemptions(ctx context.Context, q Querier, code, userID string) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE voucher_code = $1 AND user_id = $2`, r.redemptions)

	var count int
	if err := r.querier(q).QueryRow(ctx, query, code, userID).Scan(&count); err != nil {
		r.logger.Error().
			Err(err).
			Str("voucher_code", code).
			Str("user_id", userID).
			Msg("failed to count redemptions")
		return 0, fmt.Errorf("failed to count redemptions: %w", err)
	}
	return count, nil
}

// InsertRedemption records a redemption.
func (r *voucherRepository) InsertRedemption(ctx context.Context, q Querier, red *model.Redemption) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, voucher_code, user_id, relation, redeemed_at)
		VALUES ($1, $2, $3, $4, $5)
	`, r.redemptions)

	_, err := r.querier(q).Exec(ctx, query, red.ID, red.VoucherCode, red.UserID, red.Relation, red.RedeemedAt)
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("voucher_code", red.VoucherCode).
			Str("user_id", red.UserID).
			Msg("failed to insert redemption")
		return fmt.Errorf("failed to insert redemption: %w", err)
	}

	return nil
}

// DecrementQuantity decrements quantity_left by one if it is above zero.
func (r *voucherRepository) DecrementQuantity(ctx context.Context, q Querier, code string) (bool, error) {
	query := fmt.Sprintf(`
		UPDATE %s
		SET quantity_left = quantity_left - 1
		WHERE code = $1 AND quantity_left > 0
	`, r.vouchers)

	tag, err := r.querier(q).Exec(ctx, query, code)
	if err != nil {
		r.logger.Error().Err(err).Str("voucher_code", code).Msg("failed to decrement voucher quantity")
		return false, fmt.Errorf("failed to decrement voucher quantity: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// ListUserRedemptions lists a user's redemptions for a relation, newest first.
func (r *voucherRepository) ListUserRedemptions(ctx context.Context, userID, relation string, limit, offset int) ([]model.Redemption, error) {
	query := fmt.Sprintf(`
		SELECT id, voucher_code, user_id, relation, redeemed_at
		FROM %s
		WHERE user_id = $1 AND relation = $2
		ORDER BY redeemed_at DESC, id
		LIMIT $3 OFFSET $4
	`, r.redemptions)

	rows, err := r.pool.Query(ctx, query, userID, relation, limit, offset)
	if err != nil {
		r.logger.Error().Err(err).Str("user_id", userID).Msg("failed to query redemptions")
		return nil, fmt.Errorf("failed to query redemptions: %w", err)
	}

	redemptions, err := pgx.CollectRows(rows, pgx.RowToStructByName[model.Redemption])
	if err != nil {
		r.logger.Error().Err(err).Str("user_id", userID).Msg("failed to scan redemptions")
		return nil, fmt.Errorf("failed to scan redemptions: %w", err)
	}

	return redemptions, nil
}

func scanVoucher(row pgx.Row) (*model.Voucher, error) {
	var (
		v                  model.Voucher
		modelType, modelID *string
		data, conditions   []byte
	)

	err := row.Scan(
		&v.Code,
		&modelType,
		&modelID,
		&data,
		&v.StartsAt,
		&v.ExpiresAt,
		&v.Quantity,
		&v.QuantityLeft,
		&v.Type,
		&v.Value,
		&v.UserID,
		&v.QuantityPerUser,
		&conditions,
		&v.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if modelType != nil && modelID != nil {
		v.Owner = &model.OwnerRef{Type: *modelType, ID: *modelID}
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &v.Data); err != nil {
			return nil, fmt.Errorf("failed to decode voucher data: %w", err)
		}
	}
	if len(conditions) > 0 {
		v.Conditions = json.RawMessage(conditions)
	}

	return &v, nil
}

func marshalJSON(m map[string]any) ([]byte, error) {
	if len(m) == 0 {
		return nil, nil
	}
	return json.Marshal(m)
}

func nullableJSON(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return nil
	}
	return raw
}
