package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"vouchers/internal/codegen"
	"vouchers/internal/event"
	"vouchers/internal/model"
	"vouchers/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func intPtr(i int) *int              { return &i }
func strPtr(s string) *string        { return &s }
func timePtr(t time.Time) *time.Time { return &t }

func newTestService(repo *MockVoucherRepository, conditions ConditionEvaluator, notifier event.Notifier) VoucherService {
	gen := codegen.NewUniqueGenerator(&sequenceGenerator{}, repo, 4, zerolog.Nop())
	return NewVoucherService(repo, gen, conditions, notifier, nil, Options{
		Now: func() time.Time { return fixedNow },
	}, zerolog.Nop())
}

func TestVoucherService_Generate(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockVoucherRepository)
	mockRepo.On("CodeExists", ctx, mock.AnythingOfType("string")).Return(false, nil)

	service := newTestService(mockRepo, nil, nil)

	codes, err := service.Generate(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"CODE0001", "CODE0002", "CODE0003"}, codes)
	mockRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestVoucherService_Generate_InvalidAmount(t *testing.T) {
	service := newTestService(new(MockVoucherRepository), nil, nil)

	_, err := service.Generate(context.Background(), 0)
	assert.ErrorIs(t, err, model.ErrInvalidParams)
}

func TestVoucherService_Generate_SkipsStoredCodes(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockVoucherRepository)
	mockRepo.On("CodeExists", ctx, "CODE0001").Return(true, nil)
	mockRepo.On("CodeExists", ctx, "CODE0002").Return(false, nil)

	service := newTestService(mockRepo, nil, nil)

	codes, err := service.Generate(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"CODE0002"}, codes)
}

func TestVoucherService_Create(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockVoucherRepository)
	mockRepo.On("CodeExists", ctx, mock.AnythingOfType("string")).Return(false, nil)
	mockRepo.On("Create", ctx, mock.AnythingOfType("*model.Voucher")).Return(nil)

	service := newTestService(mockRepo, nil, nil)

	params := model.CreateVoucherParams{
		Owner:           &model.OwnerRef{Type: "campaign", ID: "7"},
		Quantity:        intPtr(5),
		QuantityPerUser: intPtr(1),
		Value:           strPtr("15"),
		ExpiresAt:       timePtr(fixedNow.Add(24 * time.Hour)),
	}

	vouchers, err := service.Create(ctx, params, 2)
	require.NoError(t, err)
	require.Len(t, vouchers, 2)

	assert.NotEqual(t, vouchers[0].Code, vouchers[1].Code)
	for _, v := range vouchers {
		assert.Equal(t, model.DefaultVoucherType, v.Type)
		assert.Equal(t, 5, *v.Quantity)
		assert.Equal(t, 5, *v.QuantityLeft)
		assert.Equal(t, 1, *v.QuantityPerUser)
		assert.Equal(t, fixedNow, v.CreatedAt)
		assert.Equal(t, "campaign", v.Owner.Type)
	}

	// Each voucher owns its counters
	*vouchers[0].QuantityLeft = 4
	assert.Equal(t, 5, *vouchers[1].QuantityLeft)

	mockRepo.AssertNumberOfCalls(t, "Create", 2)
}

func TestVoucherService_Create_ZeroAmountCreatesOne(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockVoucherRepository)
	mockRepo.On("CodeExists", ctx, mock.AnythingOfType("string")).Return(false, nil)
	mockRepo.On("Create", ctx, mock.AnythingOfType("*model.Voucher")).Return(nil)

	service := newTestService(mockRepo, nil, nil)

	vouchers, err := service.Create(ctx, model.CreateVoucherParams{Type: "percent"}, 0)
	require.NoError(t, err)
	require.Len(t, vouchers, 1)
	assert.Equal(t, "percent", vouchers[0].Type)
	assert.Nil(t, vouchers[0].Quantity)
	assert.Nil(t, vouchers[0].QuantityLeft)
	assert.Nil(t, vouchers[0].QuantityPerUser, "per-user cap is unlimited unless set")
}

func TestVoucherService_Create_RetriesInsertRace(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockVoucherRepository)
	mockRepo.On("CodeExists", ctx, mock.AnythingOfType("string")).Return(false, nil)
	mockRepo.On("Create", ctx, mock.MatchedBy(func(v *model.Voucher) bool {
		return v.Code == "CODE0001"
	})).Return(repository.ErrDuplicateCode).Once()
	mockRepo.On("Create", ctx, mock.MatchedBy(func(v *model.Voucher) bool {
		return v.Code == "CODE0002"
	})).Return(nil).Once()

	service := newTestService(mockRepo, nil, nil)

	vouchers, err := service.Create(ctx, model.CreateVoucherParams{}, 1)
	require.NoError(t, err)
	require.Len(t, vouchers, 1)
	assert.Equal(t, "CODE0002", vouchers[0].Code)
	mockRepo.AssertExpectations(t)
}

func TestVoucherService_Create_StoreError(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockVoucherRepository)
	mockRepo.On("CodeExists", ctx, mock.AnythingOfType("string")).Return(false, nil)
	mockRepo.On("Create", ctx, mock.AnythingOfType("*model.Voucher")).Return(errors.New("connection refused"))

	service := newTestService(mockRepo, nil, nil)

	_, err := service.Create(ctx, model.CreateVoucherParams{}, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create voucher")
	assert.False(t, IsRejection(err))
}

func TestVoucherService_Create_InvalidParams(t *testing.T) {
	tests := []struct {
		name   string
		params model.CreateVoucherParams
	}{
		{name: "zero quantity", params: model.CreateVoucherParams{Quantity: intPtr(0)}},
		{name: "zero quantity per user", params: model.CreateVoucherParams{QuantityPerUser: intPtr(0)}},
		{name: "window inverted", params: model.CreateVoucherParams{
			StartsAt:  timePtr(fixedNow.Add(time.Hour)),
			ExpiresAt: timePtr(fixedNow),
		}},
		{name: "owner without id", params: model.CreateVoucherParams{Owner: &model.OwnerRef{Type: "campaign"}}},
		{name: "empty user id", params: model.CreateVoucherParams{UserID: strPtr("")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockVoucherRepository)
			service := newTestService(mockRepo, nil, nil)

			_, err := service.Create(context.Background(), tt.params, 1)
			assert.ErrorIs(t, err, model.ErrInvalidParams)
			mockRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

func TestVoucherService_Create_Exhausted(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockVoucherRepository)
	mockRepo.On("CodeExists", ctx, mock.AnythingOfType("string")).Return(true, nil)

	service := newTestService(mockRepo, nil, nil)

	_, err := service.Create(ctx, model.CreateVoucherParams{}, 1)
	assert.ErrorIs(t, err, model.ErrGenerationExhausted)
	mockRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestVoucherService_FindByCode(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockVoucherRepository)
	mockRepo.On("FindByCode", ctx, "HELLO").Return(&model.Voucher{Code: "HELLO"}, nil)
	mockRepo.On("FindByCode", ctx, "MISSING").Return(nil, nil)
	mockRepo.On("FindByCode", ctx, "BROKEN").Return(nil, errors.New("timeout"))

	service := newTestService(mockRepo, nil, nil)

	v, err := service.FindByCode(ctx, "HELLO")
	require.NoError(t, err)
	assert.Equal(t, "HELLO", v.Code)

	_, err = service.FindByCode(ctx, "MISSING")
	assert.ErrorIs(t, err, model.ErrVoucherInvalid)

	var verr *model.VoucherError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "MISSING", verr.Code)

	_, err = service.FindByCode(ctx, "BROKEN")
	require.Error(t, err)
	assert.NotErrorIs(t, err, model.ErrVoucherInvalid)
}

func TestVoucherService_ListUserRedemptions(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockVoucherRepository)

	redemptions := []model.Redemption{{UserID: "u1", VoucherCode: "A", Relation: "vouchers"}}
	mockRepo.On("ListUserRedemptions", ctx, "u1", "vouchers", 50, 0).Return(redemptions, nil)
	mockRepo.On("ListUserRedemptions", ctx, "u1", "vouchers", 500, 10).Return([]model.Redemption{}, nil)

	service := newTestService(mockRepo, nil, nil)

	list, err := service.ListUserRedemptions(ctx, model.User{ID: "u1"}, 0, -1)
	require.NoError(t, err)
	assert.Equal(t, redemptions, list)

	list, err = service.ListUserRedemptions(ctx, model.User{ID: "u1"}, 10000, 10)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = service.ListUserRedemptions(ctx, model.User{}, 10, 0)
	assert.ErrorIs(t, err, ErrNoRedeemer)

	mockRepo.AssertExpectations(t)
}
