package payment_test

import (
	"encoding/json"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hmngo/backend-vietcart/internal/payment"
	"github.com/hmngo/backend-vietcart/internal/signing"
)

var zaloTestGateway = payment.ZaloPay{
	AppID:       "2553",
	Key1:        "PcY4iZIKFCIdgZvA6ueMcMHHUbRLYjPL",
	Key2:        "kLtgPl8HHhfvMuDHPwKfgfsY4Ydm9eIz",
	PayHost:     "https://sb-openapi.zalopay.vn",
	AppUser:     "vietcart",
	ReturnURL:   "https://shop.vietcart.vn/api/v1/payments/return/zalopay",
	CallbackURL: "https://shop.vietcart.vn/api/v1/webhooks/payment/zalopay",
}

func zaloMac(data string) string {
	return signing.SignSHA256(zaloTestGateway.Key2, data)
}

func TestZaloPayBuildPaymentURL(t *testing.T) {
	created := time.Date(2024, 3, 15, 10, 30, 45, 0, time.UTC)
	resp, err := zaloTestGateway.BuildPaymentURL(payment.URLRequest{
		OrderRef:    "ORD-2024-0042",
		Amount:      250000,
		Description: "VietCart order ORD-2024-0042",
		CreatedAt:   created,
	})
	require.NoError(t, err)

	parsed, err := url.Parse(resp.RedirectURL)
	require.NoError(t, err)
	q := parsed.Query()

	require.Equal(t, "240315_ORD-2024-0042", q.Get("app_trans_id"))
	require.Equal(t, "250000", q.Get("amount"))
	require.Equal(t, "2553", q.Get("app_id"))

	macData := strings.Join([]string{
		q.Get("app_id"), q.Get("app_trans_id"), q.Get("app_user"),
		q.Get("amount"), q.Get("app_time"), q.Get("embed_data"), q.Get("item"),
	}, "|")
	require.Equal(t, signing.SignSHA256(zaloTestGateway.Key1, macData), q.Get("mac"))
}

func TestZaloPayServerCallback(t *testing.T) {
	data, err := json.Marshal(map[string]any{
		"app_id":       2553,
		"app_trans_id": "240315_ORD-2024-0042",
		"app_user":     "vietcart",
		"amount":       250000,
		"zp_trans_id":  240315000000123,
	})
	require.NoError(t, err)

	params := map[string]string{
		"data": string(data),
		"mac":  signing.SignSHA256(zaloTestGateway.Key2, string(data)),
	}
	result := zaloTestGateway.VerifyCallback(params)
	require.True(t, result.Valid)
	require.Equal(t, "ORD-2024-0042", result.OrderRef)
	require.Equal(t, int64(250000), result.Amount)
	require.Equal(t, "240315000000123", result.VendorTxnRef)
	require.Equal(t, payment.OutcomeSuccess, result.Outcome)
}

func TestZaloPayServerCallbackRejectsBadMac(t *testing.T) {
	params := map[string]string{
		"data": `{"app_trans_id":"240315_ORD-2024-0042","amount":250000}`,
		"mac":  "deadbeef",
	}
	result := zaloTestGateway.VerifyCallback(params)
	require.False(t, result.Valid)
	require.Error(t, result.Err)
}

func TestZaloPayServerCallbackRejectsMalformedData(t *testing.T) {
	data := "not-json"
	params := map[string]string{
		"data": data,
		"mac":  signing.SignSHA256(zaloTestGateway.Key2, data),
	}
	result := zaloTestGateway.VerifyCallback(params)
	require.False(t, result.Valid)
	require.Error(t, result.Err)
}

func signZaloReturn(params map[string]string) map[string]string {
	parts := []string{
		params["appid"], params["apptransid"], params["pmcid"], params["bankcode"],
		params["amount"], params["discountamount"], params["status"],
	}
	signed := make(map[string]string, len(params)+1)
	for key, value := range params {
		signed[key] = value
	}
	signed["checksum"] = signing.SignSHA256(zaloTestGateway.Key2, strings.Join(parts, "|"))
	return signed
}

func TestZaloPayBrowserReturn(t *testing.T) {
	params := signZaloReturn(map[string]string{
		"appid":          "2553",
		"apptransid":     "240315_ORD-2024-0042",
		"pmcid":          "38",
		"bankcode":       "",
		"amount":         "250000",
		"discountamount": "0",
		"status":         "1",
	})
	result := zaloTestGateway.VerifyCallback(params)
	require.True(t, result.Valid)
	require.Equal(t, "ORD-2024-0042", result.OrderRef)
	require.Equal(t, int64(250000), result.Amount)
	require.Equal(t, payment.OutcomeSuccess, result.Outcome)
}

func TestZaloPayBrowserReturnOutcomes(t *testing.T) {
	cases := []struct {
		status string
		want   payment.Outcome
	}{
		{"1", payment.OutcomeSuccess},
		{"3", payment.OutcomePending},
		{"-49", payment.OutcomeRejected},
		{"-2", payment.OutcomeFailed},
	}
	for _, tc := range cases {
		params := signZaloReturn(map[string]string{
			"appid":          "2553",
			"apptransid":     "240315_ORD-9",
			"pmcid":          "38",
			"bankcode":       "",
			"amount":         "1000",
			"discountamount": "0",
			"status":         tc.status,
		})
		result := zaloTestGateway.VerifyCallback(params)
		require.True(t, result.Valid, "status %s", tc.status)
		require.Equal(t, tc.want, result.Outcome, "status %s", tc.status)
	}
}

func TestZaloPayBrowserReturnRejectsTamper(t *testing.T) {
	params := signZaloReturn(map[string]string{
		"appid":          "2553",
		"apptransid":     "240315_ORD-2024-0042",
		"pmcid":          "38",
		"bankcode":       "",
		"amount":         "250000",
		"discountamount": "0",
		"status":         "-49",
	})
	params["status"] = "1"
	result := zaloTestGateway.VerifyCallback(params)
	require.False(t, result.Valid)
	require.Error(t, result.Err)
}
