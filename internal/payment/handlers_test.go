package payment_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/hmngo/backend-vietcart/internal/order"
	"github.com/hmngo/backend-vietcart/internal/payment"
)

func newHandlerRouter(svc *payment.Service) http.Handler {
	h := payment.Handler{Svc: svc, Validate: validator.New()}
	r := chi.NewRouter()
	r.Post("/api/v1/payments/intent", h.CreateIntent)
	r.Get("/api/v1/payments/{orderRef}/status", h.Status)
	return r
}

func TestCreateIntentEndpoint(t *testing.T) {
	orders := newMemOrders("ORD-1")
	orders.set("ORD-1", order.PaymentInitiated)
	router := newHandlerRouter(newIntentService(orders, newMemIntents(), &memScheduler{}))

	body := `{"orderRef":"ORD-1","gateway":"vnpay","locale":"vn"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/intent", strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, "ORD-1", resp["orderRef"])
	require.Equal(t, "vnpay", resp["gateway"])
	require.Contains(t, resp["redirectUrl"], "vnp_SecureHash=")
}

func TestCreateIntentEndpointValidation(t *testing.T) {
	router := newHandlerRouter(newIntentService(newMemOrders(), newMemIntents(), &memScheduler{}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/intent", strings.NewReader(`{"orderRef":"","gateway":"stripe"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/payments/intent", strings.NewReader(`{`))
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCreateIntentEndpointErrorEnvelope(t *testing.T) {
	router := newHandlerRouter(newIntentService(newMemOrders(), newMemIntents(), &memScheduler{}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/intent", strings.NewReader(`{"orderRef":"ORD-404","gateway":"vnpay"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusNotFound, rr.Code)
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &envelope))
	require.Equal(t, "ORDER_NOT_FOUND", envelope.Error.Code)
}

func TestStatusEndpoint(t *testing.T) {
	orders := newMemOrders("ORD-1")
	orders.set("ORD-1", order.PaymentSettled)
	router := newHandlerRouter(newIntentService(orders, newMemIntents(), &memScheduler{}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/ORD-1/status", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, "success", resp["status"])
	require.Equal(t, "SETTLED", resp["paymentStatus"])

	req = httptest.NewRequest(http.MethodGet, "/api/v1/payments/ORD-404/status", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNotFound, rr.Code)
}
