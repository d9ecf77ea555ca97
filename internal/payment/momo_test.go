package payment_test

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hmngo/backend-vietcart/internal/payment"
	"github.com/hmngo/backend-vietcart/internal/signing"
)

var momoTestGateway = payment.MoMo{
	PartnerCode: "MOMOVCART",
	AccessKey:   "F8BBA842ECF85",
	SecretKey:   "K951B6PE1waDMi640xX08PD3vg6EkVlz",
	PayHost:     "https://test-payment.momo.vn",
	ReturnURL:   "https://shop.vietcart.vn/api/v1/payments/return/momo",
	IPNURL:      "https://shop.vietcart.vn/api/v1/webhooks/payment/momo",
}

var momoCallbackOrder = []string{
	"accessKey", "amount", "extraData", "message", "orderId", "orderInfo",
	"orderType", "partnerCode", "payType", "requestId", "responseTime",
	"resultCode", "transId",
}

func signMoMoCallback(params map[string]string) map[string]string {
	withKey := make(map[string]string, len(params)+1)
	for key, value := range params {
		withKey[key] = value
	}
	withKey["accessKey"] = momoTestGateway.AccessKey
	raw := signing.OrderedQuery(momoCallbackOrder, withKey)

	signed := make(map[string]string, len(params)+1)
	for key, value := range params {
		signed[key] = value
	}
	signed["signature"] = signing.SignSHA256(momoTestGateway.SecretKey, raw)
	return signed
}

func TestMoMoBuildPaymentURL(t *testing.T) {
	created := time.Date(2024, 3, 15, 10, 30, 45, 0, time.UTC)
	resp, err := momoTestGateway.BuildPaymentURL(payment.URLRequest{
		OrderRef:    "ORD-2024-0042",
		Amount:      99000,
		Description: "VietCart order ORD-2024-0042",
		CreatedAt:   created,
		ExpiresAt:   created.Add(15 * time.Minute),
	})
	require.NoError(t, err)

	parsed, err := url.Parse(resp.RedirectURL)
	require.NoError(t, err)
	require.Equal(t, "/v2/gateway/pay", parsed.Path)

	q := parsed.Query()
	require.Equal(t, "99000", q.Get("amount"))
	require.Equal(t, "ORD-2024-0042", q.Get("orderId"))
	require.Equal(t, "captureWallet", q.Get("requestType"))
	require.Equal(t, "MOMOVCART", q.Get("partnerCode"))

	params := map[string]string{}
	for key := range q {
		params[key] = q.Get(key)
	}
	raw := signing.OrderedQuery([]string{
		"accessKey", "amount", "extraData", "ipnUrl", "orderId", "orderInfo",
		"partnerCode", "redirectUrl", "requestId", "requestType",
	}, params)
	require.Equal(t, signing.SignSHA256(momoTestGateway.SecretKey, raw), q.Get("signature"))
}

func TestMoMoVerifyCallback(t *testing.T) {
	params := signMoMoCallback(map[string]string{
		"partnerCode":  "MOMOVCART",
		"orderId":      "ORD-2024-0042",
		"requestId":    "ORD-2024-0042-1710498645000",
		"amount":       "99000",
		"orderInfo":    "VietCart order ORD-2024-0042",
		"orderType":    "momo_wallet",
		"transId":      "4088878653",
		"resultCode":   "0",
		"message":      "Successful.",
		"payType":      "qr",
		"responseTime": "1710498700000",
		"extraData":    "",
	})

	result := momoTestGateway.VerifyCallback(params)
	require.True(t, result.Valid)
	require.Equal(t, "ORD-2024-0042", result.OrderRef)
	require.Equal(t, int64(99000), result.Amount)
	require.Equal(t, "4088878653", result.VendorTxnRef)
	require.Equal(t, payment.OutcomeSuccess, result.Outcome)
}

func TestMoMoVerifyCallbackRejectsTamper(t *testing.T) {
	params := signMoMoCallback(map[string]string{
		"orderId":    "ORD-2024-0042",
		"amount":     "99000",
		"resultCode": "0",
		"transId":    "4088878653",
	})
	params["resultCode"] = "1003"

	result := momoTestGateway.VerifyCallback(params)
	require.False(t, result.Valid)
	require.Error(t, result.Err)
}

func TestMoMoResultCode99NeedsTransID(t *testing.T) {
	base := map[string]string{
		"orderId":    "ORD-2024-0042",
		"amount":     "99000",
		"resultCode": "99",
	}

	withTransID := make(map[string]string, len(base)+1)
	for k, v := range base {
		withTransID[k] = v
	}
	withTransID["transId"] = "4088878653"
	result := momoTestGateway.VerifyCallback(signMoMoCallback(withTransID))
	require.True(t, result.Valid)
	require.Equal(t, payment.OutcomeSuccess, result.Outcome)

	result = momoTestGateway.VerifyCallback(signMoMoCallback(base))
	require.True(t, result.Valid)
	require.Equal(t, payment.OutcomeFailed, result.Outcome)

	malformed := make(map[string]string, len(base)+1)
	for k, v := range base {
		malformed[k] = v
	}
	malformed["transId"] = "not-a-number"
	result = momoTestGateway.VerifyCallback(signMoMoCallback(malformed))
	require.True(t, result.Valid)
	require.Equal(t, payment.OutcomeFailed, result.Outcome)

	zero := make(map[string]string, len(base)+1)
	for k, v := range base {
		zero[k] = v
	}
	zero["transId"] = "0"
	result = momoTestGateway.VerifyCallback(signMoMoCallback(zero))
	require.True(t, result.Valid)
	require.Equal(t, payment.OutcomeFailed, result.Outcome)
}

func TestMoMoOutcomeMapping(t *testing.T) {
	cases := []struct {
		code string
		want payment.Outcome
	}{
		{"0", payment.OutcomeSuccess},
		{"9000", payment.OutcomePending},
		{"1000", payment.OutcomePending},
		{"7002", payment.OutcomePending},
		{"1003", payment.OutcomeRejected},
		{"1006", payment.OutcomeRejected},
		{"42", payment.OutcomeFailed},
	}
	for _, tc := range cases {
		params := signMoMoCallback(map[string]string{
			"orderId":    "ORD-9",
			"resultCode": tc.code,
		})
		result := momoTestGateway.VerifyCallback(params)
		require.True(t, result.Valid, "code %s", tc.code)
		require.Equal(t, tc.want, result.Outcome, "code %s", tc.code)
	}
}
