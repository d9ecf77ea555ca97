package events

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PgStore persists domain events in the domain_events table.
type PgStore struct {
	Pool *pgxpool.Pool
}

// InsertDomainEvent appends one event and returns the stored row.
func (s *PgStore) InsertDomainEvent(ctx context.Context, topic, aggregateRef string, payload []byte) (Event, error) {
	if s == nil || s.Pool == nil {
		return Event{}, errors.New("events: pool not configured")
	}
	const q = `INSERT INTO domain_events (topic, aggregate_ref, payload)
VALUES ($1, $2, $3)
RETURNING id, topic, aggregate_ref, payload, occurred_at`
	var ev Event
	err := s.Pool.QueryRow(ctx, q, topic, aggregateRef, payload).Scan(
		&ev.ID, &ev.Topic, &ev.AggregateRef, &ev.Payload, &ev.OccurredAt,
	)
	if err != nil {
		return Event{}, err
	}
	return ev, nil
}

var _ EventStore = (*PgStore)(nil)
