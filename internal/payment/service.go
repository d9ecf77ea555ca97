package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hmngo/backend-vietcart/internal/common"
	"github.com/hmngo/backend-vietcart/internal/lock"
	"github.com/hmngo/backend-vietcart/internal/order"
)

// IntentStore is the persistence slice used when issuing redirect URLs.
type IntentStore interface {
	CreateIntent(ctx context.Context, in Intent) (Intent, error)
	LatestIntentByOrder(ctx context.Context, orderRef string) (Intent, error)
}

// ExpiryScheduler schedules the one-shot task that expires an intent whose
// callback never arrived.
type ExpiryScheduler interface {
	ScheduleExpiry(ctx context.Context, orderRef string, at time.Time) error
}

// Service issues redirect URLs and reports consolidated payment status.
type Service struct {
	Orders    OrderStore
	Intents   IntentStore
	Gateways  map[string]Gateway
	Locker    *lock.Locker
	Expiry    ExpiryScheduler
	IntentTTL time.Duration
	Currency  string
}

// CreateIntent validates the order, builds a signed redirect URL for the
// requested gateway and persists the intent. A live intent for the same
// gateway is reused instead of issuing a second URL. The per-order lock
// keeps a double-clicked checkout from racing itself.
func (s *Service) CreateIntent(ctx context.Context, orderRef, gatewayName, locale, clientIP string) (Intent, error) {
	var zero Intent
	if s == nil || s.Orders == nil || s.Intents == nil {
		return zero, errors.New("payment: service not configured")
	}
	gw, ok := s.Gateways[strings.ToLower(strings.TrimSpace(gatewayName))]
	if !ok {
		return zero, common.NewAppError("GATEWAY_NOT_SUPPORTED", "unknown payment gateway", http.StatusBadRequest, nil)
	}
	ord, err := s.Orders.FindByReference(ctx, orderRef)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			return zero, common.NewAppError("ORDER_NOT_FOUND", "order not found", http.StatusNotFound, err)
		}
		return zero, err
	}
	if ord.PaymentStatus == order.PaymentSettled {
		return zero, common.NewAppError("ORDER_ALREADY_PAID", "order is already settled", http.StatusConflict, nil)
	}
	if ord.PaymentStatus.Terminal() {
		return zero, common.NewAppError("ORDER_NOT_PAYABLE", fmt.Sprintf("order payment is %s", ord.PaymentStatus), http.StatusConflict, nil)
	}
	if ord.Amount <= 0 {
		return zero, common.NewAppError("INVALID_AMOUNT", "order amount must be positive", http.StatusUnprocessableEntity, nil)
	}

	ttl := s.IntentTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	var intent Intent
	create := func(ctx context.Context) error {
		existing, err := s.Intents.LatestIntentByOrder(ctx, orderRef)
		if err == nil && existing.Gateway == gw.Name() && existing.ExpiresAt.After(time.Now()) {
			intent = existing
			return nil
		}
		if err != nil && !errors.Is(err, ErrNoIntent) {
			return err
		}
		now := time.Now()
		resp, err := gw.BuildPaymentURL(URLRequest{
			OrderRef:    orderRef,
			Amount:      ord.Amount,
			Description: fmt.Sprintf("VietCart order %s", orderRef),
			ClientIP:    clientIP,
			Locale:      locale,
			CreatedAt:   now,
			ExpiresAt:   now.Add(ttl),
		})
		if err != nil {
			return err
		}
		intent, err = s.Intents.CreateIntent(ctx, Intent{
			OrderRef:    orderRef,
			Gateway:     gw.Name(),
			Amount:      ord.Amount,
			Currency:    s.Currency,
			Description: fmt.Sprintf("VietCart order %s", orderRef),
			RedirectURL: resp.RedirectURL,
			ExpiresAt:   resp.ExpiresAt,
		})
		if err != nil {
			return err
		}
		// The redirect URL is out: the order now awaits the gateway's verdict.
		if _, err := s.Orders.CompareAndSetPaymentStatus(ctx, orderRef, order.PaymentInitiated, order.PaymentAwaitingCallback); err != nil {
			return err
		}
		if s.Expiry != nil {
			if err := s.Expiry.ScheduleExpiry(ctx, orderRef, intent.ExpiresAt); err != nil {
				return err
			}
		}
		return nil
	}

	if s.Locker != nil {
		err = s.Locker.WithLock(ctx, "payment:intent:"+orderRef, 10*time.Second, create)
	} else {
		err = create(ctx)
	}
	if err != nil {
		return zero, err
	}
	return intent, nil
}

// Status reports the canonical public status for an order.
func (s *Service) Status(ctx context.Context, orderRef string) (string, order.PaymentStatus, error) {
	if s == nil || s.Orders == nil {
		return "", "", errors.New("payment: service not configured")
	}
	ord, err := s.Orders.FindByReference(ctx, orderRef)
	if err != nil {
		return "", "", err
	}
	return ord.PaymentStatus.Public(), ord.PaymentStatus, nil
}
