package payment

import (
	"net/http"
	"time"
)

// Outcome is the gateway-agnostic result derived from a vendor result code.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomePending  Outcome = "pending"
	OutcomeFailed   Outcome = "failed"
	OutcomeRejected Outcome = "rejected"
)

// URLRequest captures the information required to build a redirect URL.
// Amounts are in the currency's minor units before any gateway scaling.
type URLRequest struct {
	OrderRef    string
	Amount      int64
	Description string
	ClientIP    string
	Locale      string
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// URLResponse is the assembled redirect target for the shopper's browser.
type URLResponse struct {
	Gateway     string
	RedirectURL string
	ExpiresAt   time.Time
}

// CallbackResult is the normalised view of an inbound return/IPN request
// after signature verification and result-code translation.
type CallbackResult struct {
	Valid        bool
	OrderRef     string
	Amount       int64
	VendorCode   string
	VendorTxnRef string
	Outcome      Outcome
	Params       map[string]string
	Err          error
}

// AckStatus selects the vendor-facing acknowledgement body for IPN requests.
type AckStatus int

const (
	AckOK AckStatus = iota
	AckInvalidSignature
	AckOrderNotFound
	AckError
)

// Gateway abstracts one upstream payment gateway. BuildPaymentURL and
// VerifyCallback are pure functions; persistence happens in the callers.
type Gateway interface {
	Name() string
	BuildPaymentURL(req URLRequest) (URLResponse, error)
	VerifyCallback(params map[string]string) CallbackResult
	Ack(w http.ResponseWriter, status AckStatus)
}
