// Package order exposes the payment-status slice of the storefront's orders.
// Everything else on an order (items, shipping, totals) belongs to the
// storefront and is never touched here.
package order

import "strings"

// PaymentStatus is the persisted payment state of an order.
type PaymentStatus string

const (
	PaymentInitiated           PaymentStatus = "INITIATED"
	PaymentAwaitingCallback    PaymentStatus = "AWAITING_CALLBACK"
	PaymentPendingConfirmation PaymentStatus = "PENDING_CONFIRMATION"
	PaymentSettled             PaymentStatus = "SETTLED"
	PaymentRejected            PaymentStatus = "REJECTED"
	PaymentExpired             PaymentStatus = "EXPIRED"
)

// Terminal reports whether the status absorbs further callbacks.
func (s PaymentStatus) Terminal() bool {
	switch s {
	case PaymentSettled, PaymentRejected, PaymentExpired:
		return true
	}
	return false
}

// Public maps the persisted status onto the three canonical labels surfaced
// to the storefront. Raw vendor diagnostics never leave the server.
func (s PaymentStatus) Public() string {
	switch s {
	case PaymentSettled:
		return "success"
	case PaymentRejected, PaymentExpired:
		return "failed"
	default:
		return "pending"
	}
}

// ParsePaymentStatus normalises a stored status value.
func ParsePaymentStatus(value string) (PaymentStatus, bool) {
	switch PaymentStatus(strings.ToUpper(strings.TrimSpace(value))) {
	case PaymentInitiated:
		return PaymentInitiated, true
	case PaymentAwaitingCallback:
		return PaymentAwaitingCallback, true
	case PaymentPendingConfirmation:
		return PaymentPendingConfirmation, true
	case PaymentSettled:
		return PaymentSettled, true
	case PaymentRejected:
		return PaymentRejected, true
	case PaymentExpired:
		return PaymentExpired, true
	}
	return "", false
}
