package model

import "fmt"

// ErrorResponse represents a standardised error response.
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
}

// Standard error codes for API responses
const (
	ErrCodeInvalidJSON         = "INVALID_JSON"
	ErrCodeValidation          = "VALIDATION_FAILED"
	ErrCodeUnauthorised        = "UNAUTHORIZED"
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeInternalError       = "INTERNAL_ERROR"
	ErrCodeVoucherInvalid      = "VOUCHER_INVALID"
	ErrCodeVoucherNotStarted   = "VOUCHER_NOT_STARTED"
	ErrCodeVoucherExpired      = "VOUCHER_EXPIRED"
	ErrCodeVoucherSoldOut      = "VOUCHER_SOLD_OUT"
	ErrCodeConditionFails      = "VOUCHER_CONDITION_FAILS"
	ErrCodeNotForThatUser      = "VOUCHER_NOT_FOR_THAT_USER"
	ErrCodeAlreadyRedeemed     = "VOUCHER_ALREADY_REDEEMED"
	ErrCodeGenerationExhausted = "CODE_GENERATION_EXHAUSTED"
	ErrCodeInvalidParams       = "INVALID_VOUCHER_PARAMS"
)

// Domain errors for business logic
type DomainError struct {
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Voucher outcomes. These are expected results of validation and redemption,
// not defects; callers branch on them with errors.Is.
var (
	ErrVoucherInvalid      = NewDomainError(ErrCodeVoucherInvalid, "The voucher code is invalid.")
	ErrVoucherNotStarted   = NewDomainError(ErrCodeVoucherNotStarted, "The voucher is not started yet.")
	ErrVoucherExpired      = NewDomainError(ErrCodeVoucherExpired, "The voucher is expired.")
	ErrVoucherSoldOut      = NewDomainError(ErrCodeVoucherSoldOut, "The voucher is sold out.")
	ErrConditionFails      = NewDomainError(ErrCodeConditionFails, "The voucher conditions are not met.")
	ErrNotForThatUser      = NewDomainError(ErrCodeNotForThatUser, "The voucher is not for that user.")
	ErrAlreadyRedeemed     = NewDomainError(ErrCodeAlreadyRedeemed, "The voucher was already redeemed.")
	ErrGenerationExhausted = NewDomainError(ErrCodeGenerationExhausted, "No unused voucher code could be generated.")
	ErrInvalidParams       = NewDomainError(ErrCodeInvalidParams, "Invalid voucher parameters.")
)

// VoucherError carries the voucher a business outcome refers to.
// It unwraps to one of the voucher DomainError sentinels.
type VoucherError struct {
	Err    *DomainError
	Code   string // voucher code
	UserID string // associated user, set for ErrNotForThatUser
	Reason string // evaluator reason, set for ErrConditionFails
}

func (e *VoucherError) Error() string {
	msg := e.Err.Message
	if e.Code != "" {
		msg = fmt.Sprintf("%s (code=%s)", msg, e.Code)
	}
	if e.Reason != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Reason)
	}
	return msg
}

func (e *VoucherError) Unwrap() error { return e.Err }

// NewVoucherError creates a VoucherError for the given outcome and voucher code.
func NewVoucherError(kind *DomainError, code string) *VoucherError {
	return &VoucherError{Err: kind, Code: code}
}
