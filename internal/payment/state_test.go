package payment_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hmngo/backend-vietcart/internal/order"
	"github.com/hmngo/backend-vietcart/internal/payment"
)

// memOrders is an in-memory order store with the same compare-and-set
// semantics as the SQL implementation.
type memOrders struct {
	mu     sync.Mutex
	orders map[string]order.Order
}

func newMemOrders(refs ...string) *memOrders {
	m := &memOrders{orders: map[string]order.Order{}}
	for _, ref := range refs {
		m.orders[ref] = order.Order{
			Reference:     ref,
			Amount:        150000,
			Currency:      "VND",
			PaymentStatus: order.PaymentAwaitingCallback,
		}
	}
	return m
}

func (m *memOrders) FindByReference(_ context.Context, reference string) (order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ord, ok := m.orders[reference]
	if !ok {
		return order.Order{}, order.ErrNotFound
	}
	return ord, nil
}

func (m *memOrders) CompareAndSetPaymentStatus(_ context.Context, reference string, expected, next order.PaymentStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ord, ok := m.orders[reference]
	if !ok || ord.PaymentStatus != expected {
		return false, nil
	}
	ord.PaymentStatus = next
	m.orders[reference] = ord
	return true, nil
}

func (m *memOrders) status(reference string) order.PaymentStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders[reference].PaymentStatus
}

func (m *memOrders) set(reference string, status order.PaymentStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ord := m.orders[reference]
	ord.PaymentStatus = status
	m.orders[reference] = ord
}

func TestApplySuccessSettles(t *testing.T) {
	orders := newMemOrders("ORD-1")
	applier := payment.Applier{Orders: orders}

	res, err := applier.Apply(context.Background(), "ORD-1", payment.OutcomeSuccess, nil)
	require.NoError(t, err)
	require.True(t, res.Applied)
	require.Equal(t, order.PaymentSettled, res.Status)
	require.Equal(t, order.PaymentSettled, orders.status("ORD-1"))
}

func TestApplyDuplicateIsAbsorbed(t *testing.T) {
	orders := newMemOrders("ORD-1")
	applier := payment.Applier{Orders: orders}

	first, err := applier.Apply(context.Background(), "ORD-1", payment.OutcomeSuccess, nil)
	require.NoError(t, err)
	require.True(t, first.Applied)

	second, err := applier.Apply(context.Background(), "ORD-1", payment.OutcomeSuccess, nil)
	require.NoError(t, err)
	require.False(t, second.Applied)
	require.Equal(t, order.PaymentSettled, second.Status)
}

func TestApplyLateFailureCannotUndoSettlement(t *testing.T) {
	orders := newMemOrders("ORD-1")
	applier := payment.Applier{Orders: orders}

	_, err := applier.Apply(context.Background(), "ORD-1", payment.OutcomeSuccess, nil)
	require.NoError(t, err)

	res, err := applier.Apply(context.Background(), "ORD-1", payment.OutcomeFailed, nil)
	require.NoError(t, err)
	require.False(t, res.Applied)
	require.Equal(t, order.PaymentSettled, orders.status("ORD-1"))
}

func TestApplyPendingThenSuccess(t *testing.T) {
	orders := newMemOrders("ORD-1")
	applier := payment.Applier{Orders: orders}

	res, err := applier.Apply(context.Background(), "ORD-1", payment.OutcomePending, nil)
	require.NoError(t, err)
	require.True(t, res.Applied)
	require.Equal(t, order.PaymentPendingConfirmation, res.Status)

	repeat, err := applier.Apply(context.Background(), "ORD-1", payment.OutcomePending, nil)
	require.NoError(t, err)
	require.False(t, repeat.Applied)

	confirm, err := applier.Apply(context.Background(), "ORD-1", payment.OutcomeSuccess, nil)
	require.NoError(t, err)
	require.True(t, confirm.Applied)
	require.Equal(t, order.PaymentSettled, confirm.Status)
}

func TestApplyFromInitiatedAcceptsOutcome(t *testing.T) {
	// An intent persisted right before a crash can leave the order at
	// INITIATED. The callback still carries a valid signature for a real
	// transaction, so the outcome is applied from there too.
	orders := newMemOrders("ORD-1")
	orders.set("ORD-1", order.PaymentInitiated)
	applier := payment.Applier{Orders: orders}

	res, err := applier.Apply(context.Background(), "ORD-1", payment.OutcomeSuccess, nil)
	require.NoError(t, err)
	require.True(t, res.Applied)
	require.Equal(t, order.PaymentSettled, orders.status("ORD-1"))
}

func TestApplyRejectedOutcome(t *testing.T) {
	orders := newMemOrders("ORD-1")
	applier := payment.Applier{Orders: orders}

	res, err := applier.Apply(context.Background(), "ORD-1", payment.OutcomeRejected, nil)
	require.NoError(t, err)
	require.True(t, res.Applied)
	require.Equal(t, order.PaymentRejected, res.Status)
}

func TestApplyExpiredOrderAbsorbsLateCallback(t *testing.T) {
	orders := newMemOrders("ORD-1")
	orders.set("ORD-1", order.PaymentExpired)
	applier := payment.Applier{Orders: orders}

	res, err := applier.Apply(context.Background(), "ORD-1", payment.OutcomeSuccess, nil)
	require.NoError(t, err)
	require.False(t, res.Applied)
	require.Equal(t, order.PaymentExpired, res.Status)
}

func TestApplyUnknownOrder(t *testing.T) {
	applier := payment.Applier{Orders: newMemOrders()}
	_, err := applier.Apply(context.Background(), "ORD-404", payment.OutcomeSuccess, nil)
	require.ErrorIs(t, err, order.ErrNotFound)
}

func TestApplyConcurrentDeliveriesTransitionOnce(t *testing.T) {
	orders := newMemOrders("ORD-1")
	applier := payment.Applier{Orders: orders}

	const deliveries = 16
	results := make(chan payment.ApplyResult, deliveries)
	var wg sync.WaitGroup
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := applier.Apply(context.Background(), "ORD-1", payment.OutcomeSuccess, nil)
			require.NoError(t, err)
			results <- res
		}()
	}
	wg.Wait()
	close(results)

	applied := 0
	for res := range results {
		require.Equal(t, order.PaymentSettled, res.Status)
		if res.Applied {
			applied++
		}
	}
	require.Equal(t, 1, applied)
	require.Equal(t, order.PaymentSettled, orders.status("ORD-1"))
}
