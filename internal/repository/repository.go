package repository

import (
	"context"

	"vouchers/internal/model"

	"github.com/jackc/pgx/v5"
)

// VoucherRepository defines the interface for voucher and redemption data access.
//
// Methods taking a Querier run on it when non-nil (a pgx.Tx for the atomic
// redemption unit) and on the connection pool otherwise.
type VoucherRepository interface {
	// BeginTx starts a new database transaction.
	BeginTx(ctx context.Context) (pgx.Tx, error)

	// FindByCode retrieves a voucher by its code. Returns nil when missing.
	FindByCode(ctx context.Context, code string) (*model.Voucher, error)

	// FindByCodeForUpdate retrieves a voucher and locks its row until q ends.
	FindByCodeForUpdate(ctx context.Context, q Querier, code string) (*model.Voucher, error)

	// CodeExists reports whether a voucher with the code is stored.
	CodeExists(ctx context.Context, code string) (bool, error)

	// Create inserts a new voucher. Returns ErrDuplicateCode on a code collision.
	Create(ctx context.Context, voucher *model.Voucher) error

	// CountUserRedemptions counts redemptions of a voucher by a user.
	CountUserRedemptions(ctx context.Context, q Querier, code, userID string) (int, error)

	// InsertRedemption records a redemption.
	InsertRedemption(ctx context.Context, q Querier, redemption *model.Redemption) error

	// DecrementQuantity decrements quantity_left by one if it is above zero.
	// Returns false when nothing was left to decrement.
	DecrementQuantity(ctx context.Context, q Querier, code string) (bool, error)

	// ListUserRedemptions lists a user's redemptions for a relation, newest first.
	ListUserRedemptions(ctx context.Context, userID, relation string, limit, offset int) ([]model.Redemption, error)
}
