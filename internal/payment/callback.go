package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hmngo/backend-vietcart/internal/common"
	"github.com/hmngo/backend-vietcart/internal/obs"
	"github.com/hmngo/backend-vietcart/internal/order"
	"github.com/hmngo/backend-vietcart/internal/signing"
)

type replayStore interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// CallbackRecorder persists the audit trail of inbound callbacks.
type CallbackRecorder interface {
	RecordCallback(ctx context.Context, cb Callback) error
}

// CallbackHandler processes gateway returns and IPN requests: verify the
// signature, translate the vendor code, apply the outcome exactly once.
type CallbackHandler struct {
	Gateways      map[string]Gateway
	Orders        OrderStore
	Applier       Applier
	Recorder      CallbackRecorder
	Replay        replayStore
	ReplayTTL     time.Duration
	StatusPageURL string
	Logger        zerolog.Logger
}

// HandleIPN processes a server-to-server callback and answers with the
// vendor's expected acknowledgement body. The response never discloses why
// a signature was rejected.
func (h CallbackHandler) HandleIPN(w http.ResponseWriter, r *http.Request) {
	gw, params, ok := h.decode(w, r)
	if !ok {
		return
	}
	outcome := "error"
	defer func() {
		if obs.PaymentCallbackTotal != nil {
			obs.PaymentCallbackTotal.WithLabelValues(gw.Name(), "ipn", outcome).Inc()
		}
	}()

	result := gw.VerifyCallback(params)
	if !result.Valid {
		h.record(r.Context(), gw, "ipn", params, result, false)
		h.Logger.Warn().Str("gateway", gw.Name()).Str("order_ref", result.OrderRef).Msg("callback signature rejected")
		outcome = "invalid_signature"
		gw.Ack(w, AckInvalidSignature)
		return
	}
	replayKey, dup := h.claimReplay(r.Context(), gw.Name(), params)
	if dup {
		h.record(r.Context(), gw, "ipn", params, result, false)
		outcome = "replay"
		gw.Ack(w, AckOK)
		return
	}
	ord, err := h.Orders.FindByReference(r.Context(), result.OrderRef)
	if err != nil {
		h.record(r.Context(), gw, "ipn", params, result, false)
		if errors.Is(err, order.ErrNotFound) {
			outcome = "order_not_found"
			gw.Ack(w, AckOrderNotFound)
			return
		}
		h.releaseReplay(r.Context(), replayKey)
		gw.Ack(w, AckError)
		return
	}
	if result.Amount > 0 && result.Amount != ord.Amount {
		h.record(r.Context(), gw, "ipn", params, result, false)
		h.Logger.Warn().Str("gateway", gw.Name()).Str("order_ref", result.OrderRef).
			Int64("expected", ord.Amount).Int64("got", result.Amount).Msg("callback amount mismatch")
		outcome = "amount_mismatch"
		gw.Ack(w, AckError)
		return
	}
	res, err := h.Applier.Apply(r.Context(), result.OrderRef, result.Outcome, callbackMeta(gw, result))
	if err != nil {
		h.record(r.Context(), gw, "ipn", params, result, false)
		h.releaseReplay(r.Context(), replayKey)
		gw.Ack(w, AckError)
		return
	}
	h.record(r.Context(), gw, "ipn", params, result, res.Applied)
	if res.Applied {
		outcome = string(result.Outcome)
	} else {
		outcome = "stale"
	}
	gw.Ack(w, AckOK)
}

// HandleReturn processes the shopper's browser redirect and forwards them to
// the storefront status page with a canonical status, never a vendor code.
func (h CallbackHandler) HandleReturn(w http.ResponseWriter, r *http.Request) {
	gw, params, ok := h.decode(w, r)
	if !ok {
		return
	}
	outcome := "error"
	defer func() {
		if obs.PaymentCallbackTotal != nil {
			obs.PaymentCallbackTotal.WithLabelValues(gw.Name(), "return", outcome).Inc()
		}
	}()

	result := gw.VerifyCallback(params)
	if !result.Valid {
		h.record(r.Context(), gw, "return", params, result, false)
		h.Logger.Warn().Str("gateway", gw.Name()).Str("order_ref", result.OrderRef).Msg("return signature rejected")
		outcome = "invalid_signature"
		h.redirect(w, r, result.OrderRef, "failed")
		return
	}
	ord, err := h.Orders.FindByReference(r.Context(), result.OrderRef)
	if err != nil {
		h.record(r.Context(), gw, "return", params, result, false)
		outcome = "order_not_found"
		h.redirect(w, r, result.OrderRef, "failed")
		return
	}
	if result.Amount > 0 && result.Amount != ord.Amount {
		h.record(r.Context(), gw, "return", params, result, false)
		outcome = "amount_mismatch"
		h.redirect(w, r, result.OrderRef, "failed")
		return
	}
	res, err := h.Applier.Apply(r.Context(), result.OrderRef, result.Outcome, callbackMeta(gw, result))
	if err != nil {
		h.record(r.Context(), gw, "return", params, result, false)
		h.redirect(w, r, result.OrderRef, "pending")
		return
	}
	h.record(r.Context(), gw, "return", params, result, res.Applied)
	if res.Applied {
		outcome = string(result.Outcome)
	} else {
		outcome = "stale"
	}
	h.redirect(w, r, result.OrderRef, res.Status.Public())
}

func (h CallbackHandler) decode(w http.ResponseWriter, r *http.Request) (Gateway, map[string]string, bool) {
	name := strings.ToLower(strings.TrimSpace(chi.URLParam(r, "gateway")))
	gw, ok := h.Gateways[name]
	if !ok {
		common.JSONError(w, http.StatusNotFound, "GATEWAY_NOT_SUPPORTED", "unknown gateway", nil)
		return nil, nil, false
	}
	params, err := flattenParams(r)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "unable to read payload", nil)
		return nil, nil, false
	}
	return gw, params, true
}

// flattenParams folds the query string, form body or JSON body into the flat
// string map that gateways verify against.
func flattenParams(r *http.Request) (map[string]string, error) {
	params := make(map[string]string)
	contentType := r.Header.Get("Content-Type")
	if r.Method == http.MethodPost && strings.Contains(contentType, "application/json") {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, err
		}
		var raw map[string]json.RawMessage
		if err := json.Unmarshal(body, &raw); err != nil {
			return nil, err
		}
		for key, value := range raw {
			var s string
			if err := json.Unmarshal(value, &s); err == nil {
				params[key] = s
				continue
			}
			params[key] = strings.Trim(string(value), `"`)
		}
	} else {
		if err := r.ParseForm(); err != nil {
			return nil, err
		}
		for key, values := range r.Form {
			if len(values) > 0 {
				params[key] = values[0]
			}
		}
	}
	for key := range r.URL.Query() {
		if _, ok := params[key]; !ok {
			params[key] = r.URL.Query().Get(key)
		}
	}
	return params, nil
}

// claimReplay dedupes byte-identical IPN deliveries. It returns the claimed
// key so an error ack can release the claim and keep the vendor's retry
// eligible. A false result on store errors fails open on the guard only; the
// CAS transition stays the real idempotency boundary.
func (h CallbackHandler) claimReplay(ctx context.Context, gateway string, params map[string]string) (string, bool) {
	if h.Replay == nil || h.ReplayTTL <= 0 {
		return "", false
	}
	key := fmt.Sprintf("paycb:%s:%s", gateway, common.Sha256Hex(signing.SortedQuery(params)))
	ok, err := h.Replay.SetNX(ctx, key, "1", h.ReplayTTL).Result()
	if err != nil {
		return "", false
	}
	return key, !ok
}

func (h CallbackHandler) releaseReplay(ctx context.Context, key string) {
	if h.Replay == nil || key == "" {
		return
	}
	if err := h.Replay.Del(ctx, key).Err(); err != nil {
		h.Logger.Error().Err(err).Str("key", key).Msg("release replay claim")
	}
}

func (h CallbackHandler) record(ctx context.Context, gw Gateway, transport string, params map[string]string, result CallbackResult, applied bool) {
	if h.Recorder == nil {
		return
	}
	cb := Callback{
		OrderRef:     result.OrderRef,
		Gateway:      gw.Name(),
		Transport:    transport,
		RawParams:    params,
		SigSupplied:  suppliedSignature(params),
		SigValid:     result.Valid,
		VendorCode:   result.VendorCode,
		VendorTxnRef: result.VendorTxnRef,
		Outcome:      string(result.Outcome),
		Applied:      applied,
	}
	if err := h.Recorder.RecordCallback(ctx, cb); err != nil {
		h.Logger.Error().Err(err).Str("gateway", gw.Name()).Str("order_ref", result.OrderRef).Msg("record callback")
	}
}

// suppliedSignature pulls the vendor's signature field out of the raw
// parameters for the audit row.
func suppliedSignature(params map[string]string) string {
	for _, key := range []string{"vnp_SecureHash", "signature", "mac", "checksum"} {
		if value := params[key]; value != "" {
			return value
		}
	}
	return ""
}

func (h CallbackHandler) redirect(w http.ResponseWriter, r *http.Request, orderRef, status string) {
	target := strings.TrimRight(h.StatusPageURL, "/")
	q := url.Values{}
	q.Set("orderRef", orderRef)
	q.Set("status", status)
	http.Redirect(w, r, target+"?"+q.Encode(), http.StatusFound)
}

func callbackMeta(gw Gateway, result CallbackResult) map[string]string {
	return map[string]string{
		"gateway":      gw.Name(),
		"vendorCode":   result.VendorCode,
		"vendorTxnRef": result.VendorTxnRef,
	}
}
