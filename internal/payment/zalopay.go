package payment

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/hmngo/backend-vietcart/internal/signing"
)

// ZaloPay implements the Gateway interface for the ZaloPay wallet flow.
// Create requests are signed with Key1 over pipe-joined mac data; inbound
// callbacks and returns are verified with Key2.
type ZaloPay struct {
	AppID       string
	Key1        string
	Key2        string
	PayHost     string
	AppUser     string
	ReturnURL   string
	CallbackURL string
}

// ZaloPay requires app_trans_id to carry a yymmdd date prefix.
const zaloTransDateFormat = "060102"

// Name identifies the gateway in routes, logs and metrics.
func (g ZaloPay) Name() string { return "zalopay" }

// BuildPaymentURL signs the order mac data with Key1 and assembles the
// deterministic pay URL without calling the gateway.
func (g ZaloPay) BuildPaymentURL(req URLRequest) (URLResponse, error) {
	if err := validateURLRequest(req); err != nil {
		return URLResponse{}, err
	}
	if strings.TrimSpace(g.Key1) == "" || strings.TrimSpace(g.AppID) == "" {
		return URLResponse{}, errors.New("zalopay: merchant credentials not configured")
	}
	appUser := strings.TrimSpace(g.AppUser)
	if appUser == "" {
		appUser = "vietcart"
	}
	appTransID := fmt.Sprintf("%s_%s", req.CreatedAt.Format(zaloTransDateFormat), req.OrderRef)
	appTime := strconv.FormatInt(req.CreatedAt.UnixMilli(), 10)
	amount := strconv.FormatInt(req.Amount, 10)
	embedData := "{}"
	item := "[]"

	macData := strings.Join([]string{g.AppID, appTransID, appUser, amount, appTime, embedData, item}, "|")
	mac := signing.SignSHA256(g.Key1, macData)

	q := url.Values{}
	q.Set("app_id", g.AppID)
	q.Set("app_trans_id", appTransID)
	q.Set("app_user", appUser)
	q.Set("app_time", appTime)
	q.Set("amount", amount)
	q.Set("embed_data", embedData)
	q.Set("item", item)
	q.Set("description", req.Description)
	q.Set("callback_url", g.CallbackURL)
	q.Set("redirect_url", g.ReturnURL)
	q.Set("mac", mac)
	return URLResponse{
		Gateway:     g.Name(),
		RedirectURL: fmt.Sprintf("%s/v2/gateway/pay?%s", strings.TrimRight(g.PayHost, "/"), q.Encode()),
		ExpiresAt:   req.ExpiresAt,
	}, nil
}

// VerifyCallback handles both transports: the server-to-server callback
// carries a JSON payload in "data" with its mac, the browser return carries
// flat query parameters with a pipe-joined checksum. Both use Key2.
func (g ZaloPay) VerifyCallback(params map[string]string) CallbackResult {
	if _, ok := params["data"]; ok {
		return g.verifyServerCallback(params)
	}
	return g.verifyBrowserReturn(params)
}

type zaloCallbackData struct {
	AppID      json.Number `json:"app_id"`
	AppTransID string      `json:"app_trans_id"`
	AppUser    string      `json:"app_user"`
	Amount     int64       `json:"amount"`
	ZpTransID  json.Number `json:"zp_trans_id"`
}

func (g ZaloPay) verifyServerCallback(params map[string]string) CallbackResult {
	result := CallbackResult{Params: params}
	data := params["data"]
	computed := signing.SignSHA256(g.Key2, data)
	if !signing.Equal(params["mac"], computed) {
		result.Err = errors.New("zalopay: callback mac mismatch")
		return result
	}
	var payload zaloCallbackData
	if err := json.Unmarshal([]byte(data), &payload); err != nil {
		result.Err = fmt.Errorf("zalopay: malformed callback data: %w", err)
		return result
	}
	result.Valid = true
	result.OrderRef = stripZaloTransPrefix(payload.AppTransID)
	result.Amount = payload.Amount
	result.VendorTxnRef = payload.ZpTransID.String()
	// The server callback is only fired for completed transactions.
	result.VendorCode = "1"
	result.Outcome = OutcomeSuccess
	return result
}

// Checksum field order mandated by the ZaloPay return contract.
var zaloReturnKeys = []string{"appid", "apptransid", "pmcid", "bankcode", "amount", "discountamount", "status"}

func (g ZaloPay) verifyBrowserReturn(params map[string]string) CallbackResult {
	result := CallbackResult{Params: params, OrderRef: stripZaloTransPrefix(params["apptransid"])}
	parts := make([]string, 0, len(zaloReturnKeys))
	for _, key := range zaloReturnKeys {
		parts = append(parts, params[key])
	}
	computed := signing.SignSHA256(g.Key2, strings.Join(parts, "|"))
	if !signing.Equal(params["checksum"], computed) {
		result.Err = errors.New("zalopay: return checksum mismatch")
		return result
	}
	result.Valid = true
	result.VendorCode = params["status"]
	if raw := params["amount"]; raw != "" {
		if amount, err := strconv.ParseInt(raw, 10, 64); err == nil {
			result.Amount = amount
		}
	}
	result.Outcome = zaloOutcome(result.VendorCode)
	return result
}

func zaloOutcome(status string) Outcome {
	switch status {
	case "1":
		return OutcomeSuccess
	case "3":
		return OutcomePending
	case "-49":
		return OutcomeRejected
	default:
		return OutcomeFailed
	}
}

func stripZaloTransPrefix(appTransID string) string {
	if idx := strings.Index(appTransID, "_"); idx >= 0 {
		return appTransID[idx+1:]
	}
	return appTransID
}

// Ack answers a server callback in the shape ZaloPay expects.
func (g ZaloPay) Ack(w http.ResponseWriter, status AckStatus) {
	body := map[string]any{"return_code": 1, "return_message": "success"}
	switch status {
	case AckInvalidSignature:
		body = map[string]any{"return_code": -1, "return_message": "mac not equal"}
	case AckOrderNotFound:
		body = map[string]any{"return_code": 0, "return_message": "order not found"}
	case AckError:
		body = map[string]any{"return_code": 0, "return_message": "error"}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(body)
}

var _ Gateway = ZaloPay{}
