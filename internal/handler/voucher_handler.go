package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"vouchers/internal/model"
	"vouchers/internal/retry"
	"vouchers/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/rs/zerolog"
)

const defaultRedemptionsLimit = 20

// VoucherHandler handles voucher-related HTTP requests.
type VoucherHandler struct {
	service service.VoucherService
	retry   retry.Policy
	logger  zerolog.Logger
}

// NewVoucherHandler creates a new voucher handler. Redemptions failing for a
// transient store reason are retried according to policy.
func NewVoucherHandler(service service.VoucherService, policy retry.Policy, logger zerolog.Logger) *VoucherHandler {
	return &VoucherHandler{
		service: service,
		retry:   policy,
		logger:  logger.With().Str("handler", "voucher").Logger(),
	}
}

// redeemer collects the redemption handed back by the service.
type redeemer struct {
	model.User
	redemption *model.Redemption
}

func (u *redeemer) AttachRedemption(r model.Redemption) {
	u.redemption = &r
}

// Create handles POST /api/vouchers requests.
func (h *VoucherHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CreateVouchersRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidJSON, "invalid request body", h.logger)
		return
	}
	if err := validateRequest(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, err.Error(), h.logger)
		return
	}

	vouchers, err := h.service.Create(r.Context(), req.CreateVoucherParams, req.Amount)
	if err != nil {
		writeServiceError(w, r, err, "failed to create vouchers", h.logger)
		return
	}

	writeJSON(w, r, http.StatusCreated, model.VouchersResponse{Vouchers: vouchers})
}

// Generate handles POST /api/vouchers/generate requests.
func (h *VoucherHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req model.GenerateCodesRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidJSON, "invalid request body", h.logger)
		return
	}
	if err := validateRequest(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, err.Error(), h.logger)
		return
	}

	codes, err := h.service.Generate(r.Context(), req.Amount)
	if err != nil {
		writeServiceError(w, r, err, "failed to generate codes", h.logger)
		return
	}

	writeJSON(w, r, http.StatusOK, model.CodesResponse{Codes: codes})
}

// GetByCode handles GET /api/vouchers/{code} requests.
func (h *VoucherHandler) GetByCode(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	voucher, err := h.service.FindByCode(r.Context(), code)
	if err != nil {
		writeServiceError(w, r, err, "failed to retrieve voucher", h.logger)
		return
	}

	writeJSON(w, r, http.StatusOK, voucher)
}

// Check handles POST /api/vouchers/{code}/check requests. The body is
// optional; with a userId the per-user checks run as well.
func (h *VoucherHandler) Check(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	var req model.CheckRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidJSON, "invalid request body", h.logger)
		return
	}
	if err := validateRequest(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, err.Error(), h.logger)
		return
	}

	var (
		voucher *model.Voucher
		err     error
	)
	if req.UserID != "" {
		voucher, err = h.service.CheckForRedeemByCode(r.Context(), model.User{ID: req.UserID}, code, req.Extra)
	} else {
		voucher, err = h.service.CheckByCode(r.Context(), code, nil, req.Extra)
	}
	if err != nil {
		writeServiceError(w, r, err, "failed to check voucher", h.logger)
		return
	}

	writeJSON(w, r, http.StatusOK, model.CheckResponse{Valid: true, Voucher: voucher})
}

// Redeem handles POST /api/vouchers/{code}/redeem requests.
func (h *VoucherHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	var req model.RedeemRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidJSON, "invalid request body", h.logger)
		return
	}
	if err := validateRequest(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, err.Error(), h.logger)
		return
	}

	user := &redeemer{User: model.User{ID: req.UserID}}
	opts := service.DefaultRedeemOptions()
	opts.Extra = req.Extra

	var voucher *model.Voucher
	err := retry.Do(r.Context(), h.retry, h.logger, func(ctx context.Context) error {
		var err error
		voucher, err = h.service.RedeemCode(ctx, user, code, opts)
		return err
	})
	if err != nil {
		writeServiceError(w, r, err, "failed to redeem voucher", h.logger)
		return
	}

	writeJSON(w, r, http.StatusOK, model.RedeemResponse{Voucher: voucher, Redemption: user.redemption})
}

// ListUserRedemptions handles GET /api/users/{userID}/redemptions requests with pagination.
func (h *VoucherHandler) ListUserRedemptions(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	limit, ok := h.queryInt(w, r, "limit", defaultRedemptionsLimit)
	if !ok {
		return
	}
	offset, ok := h.queryInt(w, r, "offset", 0)
	if !ok {
		return
	}

	redemptions, err := h.service.ListUserRedemptions(r.Context(), model.User{ID: userID}, limit, offset)
	if err != nil {
		writeServiceError(w, r, err, "failed to retrieve redemptions", h.logger)
		return
	}

	writeJSON(w, r, http.StatusOK, model.RedemptionsResponse{Redemptions: redemptions})
}

func (h *VoucherHandler) queryInt(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, "invalid "+name+" parameter", h.logger)
		return 0, false
	}
	return n, true
}
