package relay

import (
	"context"

	"tiny-backspace/internal/core"
)

// Relay delivers a session's events to live subscribers as they are
// appended, in store arrival order, with no polling.
//
// Every subscriber receives the full stream independently. Past events are
// never replayed; a subscriber wanting history backfills from the store
// first. The stream carries no implicit termination: producers signal
// completion by convention with a terminal event type, and the subscriber
// decides when to stop listening. Cancelling the context releases the
// subscription and closes the channel without affecting other subscribers.
type Relay interface {
	Subscribe(ctx context.Context, sessionID string) (<-chan core.Event, error)
	Close() error
}
