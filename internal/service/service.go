package service

import (
	"context"

	"vouchers/internal/model"

	"github.com/jackc/pgx/v5"
)

// Redeemer identifies whoever redeems a voucher.
type Redeemer interface {
	RedeemerID() string
}

// RedemptionAttacher is implemented by redeemers that want the stored
// redemption handed back after a successful redeem.
type RedemptionAttacher interface {
	AttachRedemption(redemption model.Redemption)
}

// RedeemOptions controls how a redemption is executed.
type RedeemOptions struct {
	// UseAtomicUnit runs constrained redemptions in their own transaction.
	// When false the caller owns atomicity and statements run on Tx, or on
	// the pool when Tx is nil.
	UseAtomicUnit bool
	Tx            pgx.Tx
	// Extra is passed to the condition evaluator.
	Extra map[string]any
}

// DefaultRedeemOptions returns options that run redemptions in their own transaction.
func DefaultRedeemOptions() RedeemOptions {
	return RedeemOptions{UseAtomicUnit: true}
}

// VoucherService defines the voucher lifecycle operations.
type VoucherService interface {
	// Generate returns amount unused codes without storing anything.
	Generate(ctx context.Context, amount int) ([]string, error)

	// Create stores amount vouchers sharing params, each with a fresh code.
	Create(ctx context.Context, params model.CreateVoucherParams, amount int) ([]model.Voucher, error)

	// FindByCode retrieves a voucher. A missing code is model.ErrVoucherInvalid.
	FindByCode(ctx context.Context, code string) (*model.Voucher, error)

	// Check validates the time window, stock and conditions of a voucher.
	Check(ctx context.Context, voucher *model.Voucher, user Redeemer, extra map[string]any) (*model.Voucher, error)

	// CheckByCode looks the voucher up and runs Check.
	CheckByCode(ctx context.Context, code string, user Redeemer, extra map[string]any) (*model.Voucher, error)

	// CheckForRedeem runs Check plus the per-user checks. Advisory only.
	CheckForRedeem(ctx context.Context, user Redeemer, voucher *model.Voucher, extra map[string]any) (*model.Voucher, error)

	// CheckForRedeemByCode looks the voucher up and runs CheckForRedeem.
	CheckForRedeemByCode(ctx context.Context, user Redeemer, code string, extra map[string]any) (*model.Voucher, error)

	// RedeemVoucher consumes one use of voucher for user.
	RedeemVoucher(ctx context.Context, user Redeemer, voucher *model.Voucher, opts RedeemOptions) (*model.Voucher, error)

	// RedeemCode looks the voucher up and runs RedeemVoucher.
	RedeemCode(ctx context.Context, user Redeemer, code string, opts RedeemOptions) (*model.Voucher, error)

	// ListUserRedemptions lists the redemptions of user, newest first.
	ListUserRedemptions(ctx context.Context, user Redeemer, limit, offset int) ([]model.Redemption, error)
}
