package payment

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/hmngo/backend-vietcart/internal/events"
	"github.com/hmngo/backend-vietcart/internal/obs"
	"github.com/hmngo/backend-vietcart/internal/order"
)

// TypePaymentExpire is the task type for one-shot intent expiry.
const TypePaymentExpire = "payment:expire"

type expirePayload struct {
	OrderRef string `json:"orderRef"`
}

// AsynqScheduler schedules expiry tasks on the payments queue. The task ID
// is derived from the order reference so rescheduling the same order is a
// no-op while the first task is still pending.
type AsynqScheduler struct {
	Client *asynq.Client
}

func (s AsynqScheduler) ScheduleExpiry(ctx context.Context, orderRef string, at time.Time) error {
	if s.Client == nil {
		return errors.New("payment: asynq client not configured")
	}
	payload, err := json.Marshal(expirePayload{OrderRef: orderRef})
	if err != nil {
		return err
	}
	task := asynq.NewTask(TypePaymentExpire, payload)
	_, err = s.Client.EnqueueContext(ctx, task,
		asynq.ProcessAt(at),
		asynq.Queue("payments"),
		asynq.TaskID("payment:expire:"+orderRef),
		asynq.MaxRetry(3),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

// ExpiryWorker moves an order whose callback never arrived to EXPIRED. The
// compare-and-set only fires while the order still awaits a callback, so a
// late but on-time callback always beats the timer.
type ExpiryWorker struct {
	Orders OrderStore
	Events *events.Bus
	Logger zerolog.Logger
}

func (wk ExpiryWorker) HandleExpire(ctx context.Context, t *asynq.Task) error {
	var p expirePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return err
	}
	applied, err := wk.Orders.CompareAndSetPaymentStatus(ctx, p.OrderRef, order.PaymentAwaitingCallback, order.PaymentExpired)
	if err != nil {
		return err
	}
	if !applied {
		return nil
	}
	if obs.PaymentExpiredTotal != nil {
		obs.PaymentExpiredTotal.Inc()
	}
	wk.Logger.Info().Str("order_ref", p.OrderRef).Msg("payment intent expired")
	if wk.Events != nil {
		_, _ = wk.Events.Emit(ctx, events.TopicPaymentExpired, p.OrderRef, map[string]string{
			"orderRef": p.OrderRef,
			"status":   string(order.PaymentExpired),
			"reason":   "callback window elapsed",
		})
	}
	return nil
}
