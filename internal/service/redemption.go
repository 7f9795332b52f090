package service

import (
	"context"
	"fmt"
	"time"

	"vouchers/internal/event"
	"vouchers/internal/model"
	"vouchers/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// RedeemCode looks the voucher up and runs RedeemVoucher.
func (s *voucherService) RedeemCode(ctx context.Context, user Redeemer, code string, opts RedeemOptions) (*model.Voucher, error) {
	voucher, err := s.FindByCode(ctx, code)
	if err != nil {
		s.metrics.Redemption(err)
		return nil, err
	}
	return s.RedeemVoucher(ctx, user, voucher, opts)
}

// RedeemVoucher consumes one use of voucher for user. Constrained vouchers are
// re-read under a row lock so that quantity and per-user caps hold under
// concurrent redemptions. The returned voucher reflects the decrement.
func (s *voucherService) RedeemVoucher(ctx context.Context, user Redeemer, voucher *model.Voucher, opts RedeemOptions) (*model.Voucher, error) {
	redeemed, redemption, err := s.redeem(ctx, user, voucher, opts)
	s.metrics.Redemption(err)
	if err != nil {
		if IsRejection(err) {
			s.logger.Debug().Err(err).Msg("redemption rejected")
		} else {
			s.logger.Error().Err(err).Msg("redemption failed")
		}
		return nil, err
	}

	s.logger.Info().
		Str("voucher_code", redeemed.Code).
		Str("user_id", redemption.UserID).
		Msg("voucher redeemed successfully")

	s.afterRedeem(ctx, user, redeemed, redemption)

	return redeemed, nil
}

func (s *voucherService) redeem(ctx context.Context, user Redeemer, voucher *model.Voucher, opts RedeemOptions) (*model.Voucher, *model.Redemption, error) {
	var q repository.Querier
	if !opts.UseAtomicUnit && opts.Tx != nil {
		q = opts.Tx
	}

	// Fast rejection without a lock.
	if err := s.checkForRedeem(ctx, q, user, voucher, opts.Extra); err != nil {
		return nil, nil, err
	}

	redemption := &model.Redemption{
		ID:          uuid.New(),
		UserID:      user.RedeemerID(),
		VoucherCode: voucher.Code,
		Relation:    s.relation,
		RedeemedAt:  s.now().UTC(),
	}

	if !voucher.IsConstrained() {
		if err := s.repo.InsertRedemption(ctx, q, redemption); err != nil {
			return nil, nil, fmt.Errorf("failed to redeem voucher: %w", err)
		}
		return voucher, redemption, nil
	}

	if !opts.UseAtomicUnit {
		redeemed, err := s.consume(ctx, q, redemption)
		if err != nil {
			return nil, nil, err
		}
		return redeemed, redemption, nil
	}

	redeemed, err := s.consumeInTx(ctx, redemption)
	if err != nil {
		return nil, nil, err
	}
	return redeemed, redemption, nil
}

// consumeInTx runs consume in its own transaction.
func (s *voucherService) consumeInTx(ctx context.Context, redemption *model.Redemption) (redeemed *model.Voucher, err error) {
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to redeem voucher: %w", err)
	}

	// Ensure transaction is rolled back on error, even after ctx is cancelled
	defer func() {
		if err != nil {
			if rbErr := rollback(ctx, tx); rbErr != nil {
				s.logger.Error().Err(rbErr).Str("voucher_code", redemption.VoucherCode).Msg("failed to rollback transaction")
			}
		}
	}()

	redeemed, err = s.consume(ctx, tx, redemption)
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit redemption: %w", err)
	}

	return redeemed, nil
}

// consume re-reads the voucher under a row lock, enforces stock and the
// per-user cap against that state, decrements the stock and records the
// redemption. A lost decrement is reported as sold out.
func (s *voucherService) consume(ctx context.Context, q repository.Querier, redemption *model.Redemption) (*model.Voucher, error) {
	code := redemption.VoucherCode

	locked, err := s.repo.FindByCodeForUpdate(ctx, q, code)
	if err != nil {
		return nil, fmt.Errorf("failed to lock voucher: %w", err)
	}
	if locked == nil {
		return nil, model.NewVoucherError(model.ErrVoucherInvalid, code)
	}

	if locked.IsSoldOut() {
		return nil, s.reject(model.ErrVoucherSoldOut, code)
	}

	if locked.QuantityPerUser != nil {
		count, err := s.repo.CountUserRedemptions(ctx, q, code, redemption.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to count redemptions: %w", err)
		}
		if count >= *locked.QuantityPerUser {
			return nil, s.reject(model.ErrAlreadyRedeemed, code)
		}
	}

	if locked.HasLimitedQuantity() {
		ok, err := s.repo.DecrementQuantity(ctx, q, code)
		if err != nil {
			return nil, fmt.Errorf("failed to decrement voucher quantity: %w", err)
		}
		if !ok {
			return nil, s.reject(model.ErrVoucherSoldOut, code)
		}
		left := *locked.QuantityLeft - 1
		locked.QuantityLeft = &left
	}

	if err := s.repo.InsertRedemption(ctx, q, redemption); err != nil {
		return nil, fmt.Errorf("failed to redeem voucher: %w", err)
	}

	return locked, nil
}

// afterRedeem hands the redemption to the redeemer and publishes the event.
// Neither can undo the redemption. The publish runs on its own bounded context;
// the caller waits for it only while its own context is live.
func (s *voucherService) afterRedeem(ctx context.Context, user Redeemer, voucher *model.Voucher, redemption *model.Redemption) {
	if attacher, ok := user.(RedemptionAttacher); ok {
		attacher.AttachRedemption(*redemption)
	}

	e := event.Event{
		Name:        event.VoucherRedeemed,
		UserID:      redemption.UserID,
		VoucherCode: voucher.Code,
		Relation:    redemption.Relation,
		OccurredAt:  redemption.RedeemedAt,
		Voucher:     voucher,
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTTL)
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer cancel()

		if err := s.notifier.Publish(pubCtx, e); err != nil {
			s.logger.Warn().
				Err(err).
				Str("voucher_code", voucher.Code).
				Str("user_id", redemption.UserID).
				Msg("failed to publish redemption event")
		}
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Debug().
			Str("voucher_code", voucher.Code).
			Str("user_id", redemption.UserID).
			Msg("caller left before redemption event was published")
	}
}

const rollbackTimeout = 5 * time.Second

func rollback(ctx context.Context, tx pgx.Tx) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
	defer cancel()
	return tx.Rollback(ctx)
}
