package model

// User is the redeemer identity carried by API requests.
type User struct {
	ID string `json:"id"`
}

// RedeemerID returns the user id.
func (u User) RedeemerID() string { return u.ID }

// CreateVouchersRequest represents the request payload for creating vouchers.
type CreateVouchersRequest struct {
	Amount int `json:"amount" validate:"gte=0,lte=1000"`
	CreateVoucherParams
}

// GenerateCodesRequest represents the request payload for generating codes only.
type GenerateCodesRequest struct {
	Amount int `json:"amount" validate:"required,gte=1,lte=1000"`
}

// CheckRequest represents the request payload for checking a voucher.
// When UserID is set, the per-user checks run as well.
type CheckRequest struct {
	UserID string         `json:"userId,omitempty" validate:"omitempty,max=255"`
	Extra  map[string]any `json:"extra,omitempty"`
}

// RedeemRequest represents the request payload for redeeming a voucher.
type RedeemRequest struct {
	UserID string         `json:"userId" validate:"required,max=255"`
	Extra  map[string]any `json:"extra,omitempty"`
}

// VouchersResponse wraps a list of vouchers.
type VouchersResponse struct {
	Vouchers []Voucher `json:"vouchers"`
}

// CodesResponse wraps a list of generated codes.
type CodesResponse struct {
	Codes []string `json:"codes"`
}

// RedemptionsResponse wraps a list of redemptions.
type RedemptionsResponse struct {
	Redemptions []Redemption `json:"redemptions"`
}

// CheckResponse reports a passed check.
type CheckResponse struct {
	Valid   bool     `json:"valid"`
	Voucher *Voucher `json:"voucher"`
}

// RedeemResponse carries the redeemed voucher and the stored redemption.
type RedeemResponse struct {
	Voucher    *Voucher    `json:"voucher"`
	Redemption *Redemption `json:"redemption,omitempty"`
}
