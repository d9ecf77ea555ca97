package events

import (
	"context"

	"github.com/rs/zerolog"
)

// LogNotifier mirrors emitted events into the structured log.
type LogNotifier struct {
	Logger zerolog.Logger
}

// Notify writes one log line per event. Payloads are already free of
// secrets; raw signing material is never part of an event payload.
func (n LogNotifier) Notify(_ context.Context, event Event) error {
	n.Logger.Info().
		Str("topic", event.Topic).
		Str("aggregate_ref", event.AggregateRef).
		RawJSON("payload", event.Payload).
		Msg("domain_event")
	return nil
}

var _ Notifier = LogNotifier{}
