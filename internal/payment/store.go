package payment

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNoIntent is returned when an order has no payment intent yet.
var ErrNoIntent = errors.New("payment: intent not found")

// Intent is a persisted payment intent: one row per issued redirect URL.
type Intent struct {
	ID          string
	OrderRef    string
	Gateway     string
	Amount      int64
	Currency    string
	Description string
	RedirectURL string
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// Callback is the audit record of one inbound return/IPN request. Every
// callback is recorded, including invalid and duplicate ones.
type Callback struct {
	OrderRef     string
	Gateway      string
	Transport    string
	RawParams    map[string]string
	SigSupplied  string
	SigValid     bool
	VendorCode   string
	VendorTxnRef string
	Outcome      string
	Applied      bool
}

// Store persists payment intents and callback audit records.
type Store struct {
	Pool *pgxpool.Pool
}

// CreateIntent inserts a new intent and returns the stored row.
func (s *Store) CreateIntent(ctx context.Context, in Intent) (Intent, error) {
	if s == nil || s.Pool == nil {
		return Intent{}, errors.New("payment: store not configured")
	}
	const q = `INSERT INTO payment_intents (order_ref, gateway, amount, currency, description, redirect_url, expires_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, created_at`
	err := s.Pool.QueryRow(ctx, q,
		in.OrderRef, in.Gateway, in.Amount, in.Currency, in.Description, in.RedirectURL, in.ExpiresAt,
	).Scan(&in.ID, &in.CreatedAt)
	if err != nil {
		return Intent{}, err
	}
	return in, nil
}

// LatestIntentByOrder returns the most recent intent for the order.
func (s *Store) LatestIntentByOrder(ctx context.Context, orderRef string) (Intent, error) {
	if s == nil || s.Pool == nil {
		return Intent{}, errors.New("payment: store not configured")
	}
	const q = `SELECT id, order_ref, gateway, amount, currency, description, redirect_url, created_at, expires_at
FROM payment_intents WHERE order_ref = $1 ORDER BY created_at DESC LIMIT 1`
	var in Intent
	err := s.Pool.QueryRow(ctx, q, orderRef).Scan(
		&in.ID, &in.OrderRef, &in.Gateway, &in.Amount, &in.Currency,
		&in.Description, &in.RedirectURL, &in.CreatedAt, &in.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Intent{}, ErrNoIntent
		}
		return Intent{}, err
	}
	return in, nil
}

// RecordCallback appends one audit row. Raw parameters are stored as JSONB
// with the signature fields included, exactly as received.
func (s *Store) RecordCallback(ctx context.Context, cb Callback) error {
	if s == nil || s.Pool == nil {
		return errors.New("payment: store not configured")
	}
	raw, err := json.Marshal(cb.RawParams)
	if err != nil {
		return err
	}
	const q = `INSERT INTO payment_callbacks
(order_ref, gateway, transport, raw_params, signature_supplied, signature_valid, vendor_code, vendor_txn_ref, outcome, applied)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err = s.Pool.Exec(ctx, q,
		cb.OrderRef, cb.Gateway, cb.Transport, raw, cb.SigSupplied, cb.SigValid,
		cb.VendorCode, cb.VendorTxnRef, cb.Outcome, cb.Applied,
	)
	return err
}
