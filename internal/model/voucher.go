package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// DefaultVoucherType is the classification assigned when none is given.
const DefaultVoucherType = "total"

// OwnerRef scopes a voucher to an arbitrary entity (type + id).
type OwnerRef struct {
	Type string `json:"type" db:"model_type"`
	ID   string `json:"id" db:"model_id"`
}

// Voucher represents a redeemable code.
// QuantityLeft is the only field mutated after creation.
type Voucher struct {
	Code            string          `json:"code" db:"code"`
	Owner           *OwnerRef       `json:"owner,omitempty"`
	Data            map[string]any  `json:"data,omitempty" db:"data"`
	StartsAt        *time.Time      `json:"startsAt,omitempty" db:"starts_at"`
	ExpiresAt       *time.Time      `json:"expiresAt,omitempty" db:"expires_at"`
	Quantity        *int            `json:"quantity,omitempty" db:"quantity"`
	QuantityLeft    *int            `json:"quantityLeft,omitempty" db:"quantity_left"`
	Type            string          `json:"type" db:"type"`
	Value           *string         `json:"value,omitempty" db:"value"`
	UserID          *string         `json:"userId,omitempty" db:"user_id"`
	QuantityPerUser *int            `json:"quantityPerUser,omitempty" db:"quantity_per_user"`
	Conditions      json.RawMessage `json:"conditions,omitempty" db:"conditions"`
	CreatedAt       time.Time       `json:"createdAt" db:"created_at"`
}

// HasLimitedQuantity reports whether the voucher has a total redemption allowance.
func (v *Voucher) HasLimitedQuantity() bool {
	return v.Quantity != nil
}

// IsSoldOut reports whether a limited voucher has no uses left.
func (v *Voucher) IsSoldOut() bool {
	return v.Quantity != nil && (v.QuantityLeft == nil || *v.QuantityLeft <= 0)
}

// IsNotStarted reports whether the validity window has not opened at now.
func (v *Voucher) IsNotStarted(now time.Time) bool {
	return v.StartsAt != nil && now.Before(*v.StartsAt)
}

// IsExpired reports whether the validity window has closed at now.
func (v *Voucher) IsExpired(now time.Time) bool {
	return v.ExpiresAt != nil && !now.Before(*v.ExpiresAt)
}

// IsConstrained reports whether redemption must go through the atomic unit.
func (v *Voucher) IsConstrained() bool {
	return v.Quantity != nil || v.QuantityPerUser != nil
}

// Redemption records that a user consumed one use of a voucher.
type Redemption struct {
	ID          uuid.UUID `json:"id" db:"id"`
	UserID      string    `json:"userId" db:"user_id"`
	VoucherCode string    `json:"voucherCode" db:"voucher_code"`
	Relation    string    `json:"relation" db:"relation"`
	RedeemedAt  time.Time `json:"redeemedAt" db:"redeemed_at"`
}

// CreateVoucherParams holds the fields shared by every voucher of a Create call.
//
// A nil QuantityPerUser means a user may redeem the voucher any number of
// times, within Quantity. Set it to 1 for one redemption per user.
type CreateVoucherParams struct {
	Owner           *OwnerRef       `json:"owner,omitempty"`
	Data            map[string]any  `json:"data,omitempty"`
	StartsAt        *time.Time      `json:"startsAt,omitempty"`
	ExpiresAt       *time.Time      `json:"expiresAt,omitempty"`
	Quantity        *int            `json:"quantity,omitempty" validate:"omitempty,gte=1"`
	Type            string          `json:"type,omitempty"`
	Value           *string         `json:"value,omitempty"`
	UserID          *string         `json:"userId,omitempty"`
	QuantityPerUser *int            `json:"quantityPerUser,omitempty" validate:"omitempty,gte=1"`
	Conditions      json.RawMessage `json:"conditions,omitempty"`
}
