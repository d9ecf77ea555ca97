package payment

import (
	"context"
	"errors"

	"github.com/hmngo/backend-vietcart/internal/events"
	"github.com/hmngo/backend-vietcart/internal/obs"
	"github.com/hmngo/backend-vietcart/internal/order"
)

// OrderStore is the slice of the order store the applier depends on.
type OrderStore interface {
	FindByReference(ctx context.Context, reference string) (order.Order, error)
	CompareAndSetPaymentStatus(ctx context.Context, reference string, expected, next order.PaymentStatus) (bool, error)
}

// ApplyResult reports the order's payment status after an outcome was
// offered, and whether this delivery caused the transition.
type ApplyResult struct {
	Status  order.PaymentStatus
	Applied bool
}

// Applier transitions an order's payment status exactly once per conclusive
// outcome. Duplicate and late callbacks are absorbed: they observe the
// existing status without reapplying side effects.
type Applier struct {
	Orders OrderStore
	Events *events.Bus
}

// Apply offers the canonical outcome to the order identified by reference.
// The transition is an optimistic compare-and-set on the persisted status;
// a losing writer re-reads and yields to the concurrent winner.
func (a Applier) Apply(ctx context.Context, reference string, outcome Outcome, meta map[string]string) (ApplyResult, error) {
	if a.Orders == nil {
		return ApplyResult{}, errors.New("payment: order store not configured")
	}
	const maxAttempts = 3
	var current order.PaymentStatus
	for attempt := 0; attempt < maxAttempts; attempt++ {
		ord, err := a.Orders.FindByReference(ctx, reference)
		if err != nil {
			return ApplyResult{}, err
		}
		current = ord.PaymentStatus
		if current.Terminal() {
			return ApplyResult{Status: current}, nil
		}
		next, ok := nextPaymentStatus(current, outcome)
		if !ok {
			return ApplyResult{Status: current}, nil
		}
		won, err := a.Orders.CompareAndSetPaymentStatus(ctx, reference, current, next)
		if err != nil {
			return ApplyResult{}, err
		}
		if won {
			if obs.PaymentTransitionTotal != nil {
				obs.PaymentTransitionTotal.WithLabelValues(string(current), string(next)).Inc()
			}
			a.emit(ctx, reference, next, meta)
			return ApplyResult{Status: next, Applied: true}, nil
		}
	}
	return ApplyResult{Status: current}, nil
}

// nextPaymentStatus encodes the transition table. PENDING_CONFIRMATION can
// only move forward to SETTLED or REJECTED, never back; a repeated pending
// outcome is a no-op.
func nextPaymentStatus(current order.PaymentStatus, outcome Outcome) (order.PaymentStatus, bool) {
	switch current {
	case order.PaymentInitiated, order.PaymentAwaitingCallback:
		switch outcome {
		case OutcomeSuccess:
			return order.PaymentSettled, true
		case OutcomePending:
			return order.PaymentPendingConfirmation, true
		case OutcomeFailed, OutcomeRejected:
			return order.PaymentRejected, true
		}
	case order.PaymentPendingConfirmation:
		switch outcome {
		case OutcomeSuccess:
			return order.PaymentSettled, true
		case OutcomeFailed, OutcomeRejected:
			return order.PaymentRejected, true
		}
	}
	return "", false
}

func (a Applier) emit(ctx context.Context, reference string, status order.PaymentStatus, meta map[string]string) {
	if a.Events == nil {
		return
	}
	topic := ""
	switch status {
	case order.PaymentSettled:
		topic = events.TopicPaymentSettled
	case order.PaymentPendingConfirmation:
		topic = events.TopicPaymentPending
	case order.PaymentRejected:
		topic = events.TopicPaymentRejected
	case order.PaymentExpired:
		topic = events.TopicPaymentExpired
	}
	if topic == "" {
		return
	}
	payload := map[string]string{"orderRef": reference, "status": string(status)}
	for key, value := range meta {
		payload[key] = value
	}
	_, _ = a.Events.Emit(ctx, topic, reference, payload)
}
