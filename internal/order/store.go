package order

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when no order matches the given reference.
var ErrNotFound = errors.New("order: not found")

// Order is the payment-relevant projection of a storefront order.
type Order struct {
	ID            pgtype.UUID
	Reference     string
	Amount        int64
	Currency      string
	PaymentStatus PaymentStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Store reads and conditionally updates the order payment-status slice.
type Store struct {
	Pool *pgxpool.Pool
}

// FindByReference loads the order identified by its external reference.
func (s *Store) FindByReference(ctx context.Context, reference string) (Order, error) {
	var zero Order
	if s == nil || s.Pool == nil {
		return zero, errors.New("order: store not configured")
	}
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return zero, ErrNotFound
	}
	const q = `SELECT id, reference, amount, currency, payment_status, created_at, updated_at
FROM orders WHERE reference = $1`
	var (
		o      Order
		status string
	)
	err := s.Pool.QueryRow(ctx, q, reference).Scan(
		&o.ID, &o.Reference, &o.Amount, &o.Currency, &status, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return zero, ErrNotFound
		}
		return zero, err
	}
	parsed, ok := ParsePaymentStatus(status)
	if !ok {
		parsed = PaymentInitiated
	}
	o.PaymentStatus = parsed
	return o, nil
}

// CompareAndSetPaymentStatus atomically moves the order from expected to next.
// It returns false when the stored status no longer matches expected, which
// means a concurrent callback already won the transition.
func (s *Store) CompareAndSetPaymentStatus(ctx context.Context, reference string, expected, next PaymentStatus) (bool, error) {
	if s == nil || s.Pool == nil {
		return false, errors.New("order: store not configured")
	}
	const q = `UPDATE orders SET payment_status = $3, updated_at = now()
WHERE reference = $1 AND payment_status = $2`
	tag, err := s.Pool.Exec(ctx, q, reference, string(expected), string(next))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
