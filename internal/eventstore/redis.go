package eventstore

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"tiny-backspace/internal/core"
)

const (
	sessionKeyPrefix = "events:log:"
	recentKey        = "events:recent"

	// DefaultRecentCap bounds the global newest-first feed. Per-session
	// logs are never trimmed; retention there is an operational concern.
	DefaultRecentCap = 1000
)

// RedisStore implements Store on Redis lists. Each session's events live in
// their own list so reads cost only the matching events, and every append
// also feeds a capped global list plus the session's pub/sub channel in one
// transaction.
type RedisStore struct {
	mu        sync.Mutex
	client    *redis.Client
	options   *redis.Options
	logger    *log.Logger
	recentCap int64
}

// NewRedisStore returns a new RedisStore with the given options.
func NewRedisStore(opts *redis.Options, logger *log.Logger) *RedisStore {
	if logger == nil {
		logger = log.Default()
	}
	return &RedisStore{
		client:    redis.NewClient(opts),
		options:   opts,
		logger:    logger,
		recentCap: DefaultRecentCap,
	}
}

// ensureConnection pings Redis and reconnects if needed.
func (s *RedisStore) ensureConnection(ctx context.Context) {
	if err := s.client.Ping(ctx).Err(); err != nil {
		s.logger.Println("eventstore reconnecting to Redis", err)
		s.client = redis.NewClient(s.options)
	}
}

// Append assigns the id and timestamp, persists the event and publishes it
// to the session channel atomically. It never blocks on the presence of
// subscribers and never validates session existence: the write path is
// permissive so losing telemetry can never block or corrupt the primary
// task.
func (s *RedisStore) Append(ctx context.Context, typ, message, sessionID string, data map[string]interface{}) (core.Event, error) {
	if err := core.ValidateFields(typ, message, sessionID); err != nil {
		return core.Event{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureConnection(ctx)

	ev := core.Event{
		ID:        uuid.NewString(),
		Type:      typ,
		Message:   message,
		SessionID: sessionID,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return core.Event{}, err
	}

	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, sessionKeyPrefix+sessionID, payload)
	pipe.LPush(ctx, recentKey, payload)
	pipe.LTrim(ctx, recentKey, 0, s.recentCap-1)
	pipe.Publish(ctx, SessionChannel(sessionID), payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return core.Event{}, &UnavailableError{Op: "append", Err: err}
	}
	return ev, nil
}

// ListBySession returns a session's events in ascending arrival order. A
// positive limit keeps only the most recent events, still ascending. An
// unknown session yields an empty slice.
func (s *RedisStore) ListBySession(ctx context.Context, sessionID string, limit int) ([]core.Event, error) {
	s.ensureConnection(ctx)
	start := int64(0)
	if limit > 0 {
		start = int64(-limit)
	}
	raw, err := s.client.LRange(ctx, sessionKeyPrefix+sessionID, start, -1).Result()
	if err != nil {
		return nil, &UnavailableError{Op: "listBySession", Err: err}
	}
	return s.decode(raw), nil
}

// ListRecent returns the newest events across all sessions, newest first.
func (s *RedisStore) ListRecent(ctx context.Context, limit int) ([]core.Event, error) {
	s.ensureConnection(ctx)
	if limit <= 0 || int64(limit) > s.recentCap {
		limit = int(s.recentCap)
	}
	raw, err := s.client.LRange(ctx, recentKey, 0, int64(limit)-1).Result()
	if err != nil {
		return nil, &UnavailableError{Op: "listRecent", Err: err}
	}
	return s.decode(raw), nil
}

func (s *RedisStore) decode(raw []string) []core.Event {
	events := make([]core.Event, 0, len(raw))
	for _, item := range raw {
		var ev core.Event
		if err := json.Unmarshal([]byte(item), &ev); err != nil {
			s.logger.Println("eventstore skipping undecodable record", err)
			continue
		}
		events = append(events, ev)
	}
	return events
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

var _ Store = (*RedisStore)(nil)
