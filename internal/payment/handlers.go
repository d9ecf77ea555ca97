package payment

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/hmngo/backend-vietcart/internal/common"
	"github.com/hmngo/backend-vietcart/internal/obs"
	"github.com/hmngo/backend-vietcart/internal/order"
)

// Handler exposes the payment intent and status endpoints.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

type intentRequest struct {
	OrderRef string `json:"orderRef" validate:"required,max=64"`
	Gateway  string `json:"gateway" validate:"required,oneof=vnpay momo zalopay"`
	Locale   string `json:"locale" validate:"omitempty,oneof=vn en"`
}

type intentResponse struct {
	OrderRef    string `json:"orderRef"`
	Gateway     string `json:"gateway"`
	RedirectURL string `json:"redirectUrl"`
	ExpiresAt   string `json:"expiresAt"`
}

// CreateIntent handles POST /payments/intent.
func (h Handler) CreateIntent(w http.ResponseWriter, r *http.Request) {
	var req intentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(req); err != nil {
			common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION_FAILED", "invalid intent request", validationDetails(err))
			return
		}
	}
	intent, err := h.Svc.CreateIntent(r.Context(), req.OrderRef, req.Gateway, req.Locale, common.ClientIP(r))
	if err != nil {
		if obs.PaymentIntentTotal != nil {
			obs.PaymentIntentTotal.WithLabelValues(req.Gateway, "error").Inc()
		}
		writeServiceError(w, err)
		return
	}
	if obs.PaymentIntentTotal != nil {
		obs.PaymentIntentTotal.WithLabelValues(intent.Gateway, "issued").Inc()
	}
	common.JSON(w, http.StatusCreated, intentResponse{
		OrderRef:    intent.OrderRef,
		Gateway:     intent.Gateway,
		RedirectURL: intent.RedirectURL,
		ExpiresAt:   intent.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// Status handles GET /payments/{orderRef}/status.
func (h Handler) Status(w http.ResponseWriter, r *http.Request) {
	orderRef := chi.URLParam(r, "orderRef")
	if orderRef == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "order reference required", nil)
		return
	}
	public, detail, err := h.Svc.Status(r.Context(), orderRef)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "ORDER_NOT_FOUND", "order not found", nil)
			return
		}
		writeServiceError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]string{
		"orderRef":      orderRef,
		"status":        public,
		"paymentStatus": string(detail),
	})
}

func writeServiceError(w http.ResponseWriter, err error) {
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		common.JSONError(w, appErr.HTTPStatus, appErr.Code, appErr.Message, appErr.Details)
		return
	}
	common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
}

func validationDetails(err error) any {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	return fields
}
