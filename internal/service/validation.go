package service

import (
	"context"
	"errors"
	"fmt"

	"vouchers/internal/model"
	"vouchers/internal/repository"
)

// ErrNoRedeemer is returned when an operation needs a user and none was given.
var ErrNoRedeemer = fmt.Errorf("%w: redeemer is required", model.ErrInvalidParams)

// Check validates the time window, stock and conditions of a voucher.
func (s *voucherService) Check(ctx context.Context, voucher *model.Voucher, user Redeemer, extra map[string]any) (*model.Voucher, error) {
	err := s.check(ctx, voucher, user, extra)
	s.metrics.Check(err)
	if err != nil {
		return nil, err
	}
	return voucher, nil
}

// CheckByCode looks the voucher up and runs Check.
func (s *voucherService) CheckByCode(ctx context.Context, code string, user Redeemer, extra map[string]any) (*model.Voucher, error) {
	voucher, err := s.FindByCode(ctx, code)
	if err != nil {
		s.metrics.Check(err)
		return nil, err
	}
	return s.Check(ctx, voucher, user, extra)
}

// CheckForRedeem runs Check plus the per-user checks. Counts are read without
// a lock, so a passing result does not guarantee the redemption will succeed.
func (s *voucherService) CheckForRedeem(ctx context.Context, user Redeemer, voucher *model.Voucher, extra map[string]any) (*model.Voucher, error) {
	err := s.checkForRedeem(ctx, nil, user, voucher, extra)
	s.metrics.Check(err)
	if err != nil {
		return nil, err
	}
	return voucher, nil
}

// CheckForRedeemByCode looks the voucher up and runs CheckForRedeem.
func (s *voucherService) CheckForRedeemByCode(ctx context.Context, user Redeemer, code string, extra map[string]any) (*model.Voucher, error) {
	voucher, err := s.FindByCode(ctx, code)
	if err != nil {
		s.metrics.Check(err)
		return nil, err
	}
	return s.CheckForRedeem(ctx, user, voucher, extra)
}

// check runs the ordered validation steps, stopping at the first failure:
// not started, expired, sold out, conditions.
func (s *voucherService) check(ctx context.Context, voucher *model.Voucher, user Redeemer, extra map[string]any) error {
	if voucher == nil {
		return model.NewVoucherError(model.ErrVoucherInvalid, "")
	}

	now := s.now()
	switch {
	case voucher.IsNotStarted(now):
		return s.reject(model.ErrVoucherNotStarted, voucher.Code)
	case voucher.IsExpired(now):
		return s.reject(model.ErrVoucherExpired, voucher.Code)
	case voucher.IsSoldOut():
		return s.reject(model.ErrVoucherSoldOut, voucher.Code)
	}

	verdict, err := s.conditions.Evaluate(ctx, voucher, user, extra)
	if err != nil {
		s.logger.Error().Err(err).Str("voucher_code", voucher.Code).Msg("failed to evaluate voucher conditions")
		return fmt.Errorf("failed to evaluate voucher conditions: %w", err)
	}
	if !verdict.Passed {
		verr := model.NewVoucherError(model.ErrConditionFails, voucher.Code)
		verr.Reason = verdict.Reason
		s.logger.Debug().Str("voucher_code", voucher.Code).Str("reason", verdict.Reason).Msg("voucher conditions not met")
		return verr
	}

	return nil
}

// checkForRedeem runs check, then the user binding and per-user cap, reading
// counts through q.
func (s *voucherService) checkForRedeem(ctx context.Context, q repository.Querier, user Redeemer, voucher *model.Voucher, extra map[string]any) error {
	if user == nil || user.RedeemerID() == "" {
		return ErrNoRedeemer
	}
	if err := s.check(ctx, voucher, user, extra); err != nil {
		return err
	}

	userID := user.RedeemerID()

	if voucher.UserID != nil && *voucher.UserID != userID {
		verr := model.NewVoucherError(model.ErrNotForThatUser, voucher.Code)
		verr.UserID = *voucher.UserID
		s.logger.Debug().Str("voucher_code", voucher.Code).Str("user_id", userID).Msg("voucher bound to another user")
		return verr
	}

	if voucher.QuantityPerUser != nil {
		count, err := s.repo.CountUserRedemptions(ctx, q, voucher.Code, userID)
		if err != nil {
			return fmt.Errorf("failed to count redemptions: %w", err)
		}
		if count >= *voucher.QuantityPerUser {
			return s.reject(model.ErrAlreadyRedeemed, voucher.Code)
		}
	}

	return nil
}

func (s *voucherService) reject(kind *model.DomainError, code string) error {
	s.logger.Debug().Str("voucher_code", code).Str("outcome", kind.Code).Msg("voucher rejected")
	return model.NewVoucherError(kind, code)
}

// IsRejection reports whether err is a business outcome or invalid input
// rather than an infrastructure failure.
func IsRejection(err error) bool {
	var de *model.DomainError
	return errors.As(err, &de)
}
