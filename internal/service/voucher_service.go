package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vouchers/internal/codegen"
	"vouchers/internal/event"
	"vouchers/internal/metrics"
	"vouchers/internal/model"
	"vouchers/internal/repository"

	"github.com/rs/zerolog"
)

const (
	// DefaultRedeemRelation names the redemption relation when none is configured.
	DefaultRedeemRelation = "vouchers"

	// DefaultPublishTimeout bounds the redemption event publish.
	DefaultPublishTimeout = 5 * time.Second

	defaultListLimit = 50
	maxListLimit     = 500
)

// Options configures a voucher service.
type Options struct {
	// RedeemRelation is stored on every redemption the service records.
	RedeemRelation string
	// Now overrides the clock.
	Now func() time.Time
	// PublishTimeout bounds each redemption event publish. Zero means
	// DefaultPublishTimeout.
	PublishTimeout time.Duration
}

// voucherService implements VoucherService.
type voucherService struct {
	repo       repository.VoucherRepository
	generator  *codegen.UniqueGenerator
	conditions ConditionEvaluator
	notifier   event.Notifier
	metrics    *metrics.Metrics
	relation   string
	now        func() time.Time
	publishTTL time.Duration
	logger     zerolog.Logger
}

// NewVoucherService creates a new voucher service. A nil evaluator accepts
// every voucher, a nil notifier discards events and nil metrics record nothing.
func NewVoucherService(
	repo repository.VoucherRepository,
	generator *codegen.UniqueGenerator,
	conditions ConditionEvaluator,
	notifier event.Notifier,
	m *metrics.Metrics,
	opts Options,
	logger zerolog.Logger,
) VoucherService {
	if conditions == nil {
		conditions = AllowAll
	}
	if notifier == nil {
		notifier = event.Nop
	}
	if opts.RedeemRelation == "" {
		opts.RedeemRelation = DefaultRedeemRelation
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = DefaultPublishTimeout
	}

	return &voucherService{
		repo:       repo,
		generator:  generator,
		conditions: conditions,
		notifier:   notifier,
		metrics:    m,
		relation:   opts.RedeemRelation,
		now:        opts.Now,
		publishTTL: opts.PublishTimeout,
		logger:     logger.With().Str("service", "voucher").Logger(),
	}
}

// Generate returns amount unused codes without storing anything.
func (s *voucherService) Generate(ctx context.Context, amount int) ([]string, error) {
	if amount < 1 {
		return nil, fmt.Errorf("%w: amount must be at least 1", model.ErrInvalidParams)
	}

	codes, err := s.generator.GenerateN(ctx, amount)
	if err != nil {
		s.logger.Error().Err(err).Int("amount", amount).Msg("failed to generate codes")
		return nil, err
	}

	return codes, nil
}

// Create stores amount vouchers sharing params. An amount of zero creates one.
func (s *voucherService) Create(ctx context.Context, params model.CreateVoucherParams, amount int) ([]model.Voucher, error) {
	if err := validateParams(params); err != nil {
		s.logger.Warn().Err(err).Msg("invalid voucher parameters")
		return nil, err
	}
	if amount < 1 {
		amount = 1
	}

	codes, err := s.generator.GenerateN(ctx, amount)
	if err != nil {
		s.logger.Error().Err(err).Int("amount", amount).Msg("failed to generate codes")
		return nil, err
	}

	now := s.now().UTC().Truncate(time.Microsecond)
	vouchers := make([]model.Voucher, 0, amount)

	for _, code := range codes {
		v := newVoucher(code, params, now)

		err := s.repo.Create(ctx, v)
		if errors.Is(err, repository.ErrDuplicateCode) {
			// Another writer took the code between the check and the insert.
			s.metrics.CodeCollision()
			if v.Code, err = s.generator.GenerateUnique(ctx); err != nil {
				return nil, err
			}
			err = s.repo.Create(ctx, v)
		}
		if err != nil {
			s.logger.Error().Err(err).Str("voucher_code", v.Code).Msg("failed to create voucher")
			return nil, fmt.Errorf("failed to create voucher: %w", err)
		}

		s.metrics.VoucherCreated()
		vouchers = append(vouchers, *v)
	}

	s.logger.Info().Int("amount", len(vouchers)).Msg("vouchers created successfully")

	return vouchers, nil
}

// FindByCode retrieves a voucher. A missing code is model.ErrVoucherInvalid.
func (s *voucherService) FindByCode(ctx context.Context, code string) (*model.Voucher, error) {
	v, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		s.logger.Error().Err(err).Str("voucher_code", code).Msg("failed to get voucher")
		return nil, fmt.Errorf("failed to get voucher: %w", err)
	}
	if v == nil {
		s.logger.Debug().Str("voucher_code", code).Msg("voucher not found")
		return nil, model.NewVoucherError(model.ErrVoucherInvalid, code)
	}
	return v, nil
}

// ListUserRedemptions lists the redemptions of user, newest first.
func (s *voucherService) ListUserRedemptions(ctx context.Context, user Redeemer, limit, offset int) ([]model.Redemption, error) {
	if user == nil || user.RedeemerID() == "" {
		return nil, ErrNoRedeemer
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	redemptions, err := s.repo.ListUserRedemptions(ctx, user.RedeemerID(), s.relation, limit, offset)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", user.RedeemerID()).Msg("failed to list redemptions")
		return nil, fmt.Errorf("failed to list redemptions: %w", err)
	}

	return redemptions, nil
}

func newVoucher(code string, params model.CreateVoucherParams, now time.Time) *model.Voucher {
	v := &model.Voucher{
		Code:            code,
		Owner:           params.Owner,
		Data:            params.Data,
		StartsAt:        params.StartsAt,
		ExpiresAt:       params.ExpiresAt,
		Type:            params.Type,
		Value:           params.Value,
		UserID:          params.UserID,
		QuantityPerUser: params.QuantityPerUser,
		Conditions:      params.Conditions,
		CreatedAt:       now,
	}
	if v.Type == "" {
		v.Type = model.DefaultVoucherType
	}
	if params.Quantity != nil {
		quantity, left := *params.Quantity, *params.Quantity
		v.Quantity, v.QuantityLeft = &quantity, &left
	}
	return v
}

func validateParams(params model.CreateVoucherParams) error {
	if params.Quantity != nil && *params.Quantity < 1 {
		return fmt.Errorf("%w: quantity must be at least 1", model.ErrInvalidParams)
	}
	if params.QuantityPerUser != nil && *params.QuantityPerUser < 1 {
		return fmt.Errorf("%w: quantity per user must be at least 1", model.ErrInvalidParams)
	}
	if params.StartsAt != nil && params.ExpiresAt != nil && !params.StartsAt.Before(*params.ExpiresAt) {
		return fmt.Errorf("%w: starts at must be before expires at", model.ErrInvalidParams)
	}
	if params.Owner != nil && (params.Owner.Type == "" || params.Owner.ID == "") {
		return fmt.Errorf("%w: owner needs both type and id", model.ErrInvalidParams)
	}
	if params.UserID != nil && *params.UserID == "" {
		return fmt.Errorf("%w: user id must not be empty", model.ErrInvalidParams)
	}
	return nil
}
