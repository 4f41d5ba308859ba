package eventstore

import (
	"context"

	"tiny-backspace/internal/core"
)

// Store defines the append-only, session-indexed telemetry log.
//
// Append is the only mutating operation: events are never updated, deleted
// or deduplicated. Listing a session that has no events returns an empty
// slice, not an error.
type Store interface {
	Append(ctx context.Context, typ, message, sessionID string, data map[string]interface{}) (core.Event, error)
	ListBySession(ctx context.Context, sessionID string, limit int) ([]core.Event, error)
	ListRecent(ctx context.Context, limit int) ([]core.Event, error)
	Close() error
}

// SessionChannel names the pub/sub channel a store publishes a session's
// appends on. The relay subscribes to the same channel, so any store
// instance's append reaches any relay instance.
func SessionChannel(sessionID string) string {
	return "events:session:" + sessionID
}
