package payment

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/hmngo/backend-vietcart/internal/signing"
)

// VNPay implements the Gateway interface for the VNPay redirect flow.
// Field names, the amount scale and the date format are contractual wire
// format; changing any of them invalidates the signature on VNPay's side.
type VNPay struct {
	TmnCode    string
	HashSecret string
	BaseURL    string
	ReturnURL  string
}

const (
	vnpVersion    = "2.1.0"
	vnpCommand    = "pay"
	vnpCurrency   = "VND"
	vnpDateFormat = "20060102150405"

	// VNPay expresses amounts multiplied by 100 regardless of currency.
	vnpAmountScale = 100
)

// Name identifies the gateway in routes, logs and metrics.
func (g VNPay) Name() string { return "vnpay" }

// BuildPaymentURL assembles, canonicalizes and signs the redirect URL.
// The percent-encoded sorted query doubles as the transport query string,
// so the signed bytes and the sent bytes are identical.
func (g VNPay) BuildPaymentURL(req URLRequest) (URLResponse, error) {
	if err := validateURLRequest(req); err != nil {
		return URLResponse{}, err
	}
	if strings.TrimSpace(g.HashSecret) == "" || strings.TrimSpace(g.TmnCode) == "" {
		return URLResponse{}, errors.New("vnpay: merchant credentials not configured")
	}
	locale := strings.TrimSpace(req.Locale)
	if locale == "" {
		locale = "vn"
	}
	ip := strings.TrimSpace(req.ClientIP)
	if ip == "" {
		ip = "127.0.0.1"
	}
	params := map[string]string{
		"vnp_Version":    vnpVersion,
		"vnp_Command":    vnpCommand,
		"vnp_TmnCode":    g.TmnCode,
		"vnp_Amount":     strconv.FormatInt(req.Amount*vnpAmountScale, 10),
		"vnp_CurrCode":   vnpCurrency,
		"vnp_TxnRef":     req.OrderRef,
		"vnp_OrderInfo":  req.Description,
		"vnp_OrderType":  "other",
		"vnp_Locale":     locale,
		"vnp_ReturnUrl":  g.ReturnURL,
		"vnp_IpAddr":     ip,
		"vnp_CreateDate": req.CreatedAt.Format(vnpDateFormat),
	}
	if !req.ExpiresAt.IsZero() {
		params["vnp_ExpireDate"] = req.ExpiresAt.Format(vnpDateFormat)
	}
	canonical := signing.SortedQueryEscaped(params)
	sig := signing.SignSHA512(g.HashSecret, canonical)
	return URLResponse{
		Gateway:     g.Name(),
		RedirectURL: fmt.Sprintf("%s?%s&vnp_SecureHash=%s", strings.TrimRight(g.BaseURL, "/"), canonical, sig),
		ExpiresAt:   req.ExpiresAt,
	}, nil
}

// VerifyCallback re-derives the signature over the inbound parameters and
// translates the vendor result code. Both browser returns and IPN requests
// carry the same field set.
func (g VNPay) VerifyCallback(params map[string]string) CallbackResult {
	result := CallbackResult{Params: params, OrderRef: params["vnp_TxnRef"]}
	supplied := params["vnp_SecureHash"]
	canonical := signing.SortedQueryEscaped(params, "vnp_SecureHash", "vnp_SecureHashType")
	computed := signing.SignSHA512(g.HashSecret, canonical)
	if !signing.Equal(supplied, computed) {
		result.Err = errors.New("vnpay: signature mismatch")
		return result
	}
	result.Valid = true
	result.VendorCode = params["vnp_ResponseCode"]
	result.VendorTxnRef = params["vnp_TransactionNo"]
	if raw := params["vnp_Amount"]; raw != "" {
		if scaled, err := strconv.ParseInt(raw, 10, 64); err == nil {
			result.Amount = scaled / vnpAmountScale
		}
	}
	result.Outcome = vnpayOutcome(result.VendorCode, params["vnp_TransactionStatus"])
	return result
}

// vnpayOutcome maps vnp_ResponseCode (and the transaction status on success)
// onto the canonical outcome. Unknown codes are failures, never successes.
func vnpayOutcome(responseCode, txnStatus string) Outcome {
	switch responseCode {
	case "00":
		if txnStatus == "" || txnStatus == "00" {
			return OutcomeSuccess
		}
		return OutcomeFailed
	case "07":
		// Amount deducted but flagged as suspicious; held until VNPay confirms.
		return OutcomePending
	case "24":
		return OutcomeRejected
	case "09", "10", "11", "12", "13", "51", "65", "75", "79":
		return OutcomeFailed
	default:
		return OutcomeFailed
	}
}

// Ack writes the acknowledgement body the VNPay IPN contract expects.
func (g VNPay) Ack(w http.ResponseWriter, status AckStatus) {
	body := map[string]string{"RspCode": "00", "Message": "Confirm Success"}
	switch status {
	case AckInvalidSignature:
		body = map[string]string{"RspCode": "97", "Message": "Invalid signature"}
	case AckOrderNotFound:
		body = map[string]string{"RspCode": "01", "Message": "Order not found"}
	case AckError:
		body = map[string]string{"RspCode": "99", "Message": "Unknown error"}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(body)
}

func validateURLRequest(req URLRequest) error {
	if strings.TrimSpace(req.OrderRef) == "" {
		return errors.New("payment: order reference is required")
	}
	if req.Amount <= 0 {
		return fmt.Errorf("payment: amount must be a positive number of minor units, got %d", req.Amount)
	}
	return nil
}

var _ Gateway = VNPay{}
