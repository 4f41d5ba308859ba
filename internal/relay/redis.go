package relay

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"tiny-backspace/internal/core"
	"tiny-backspace/internal/eventstore"
)

// RedisRelay implements Relay over Redis Pub/Sub. Each subscriber gets its
// own PubSub connection, so Redis fans out every append to all of them and
// a slow subscriber never holds up the others.
type RedisRelay struct {
	mu      sync.Mutex
	client  *redis.Client
	options *redis.Options
	subs    map[*redis.PubSub]struct{}
	done    chan struct{}
	logger  *log.Logger
}

// NewRedisRelay creates a new Redis-backed relay using the given options.
func NewRedisRelay(opts *redis.Options, logger *log.Logger) *RedisRelay {
	if logger == nil {
		logger = log.Default()
	}
	return &RedisRelay{
		client:  redis.NewClient(opts),
		options: opts,
		subs:    make(map[*redis.PubSub]struct{}),
		done:    make(chan struct{}),
		logger:  logger,
	}
}

// ensureConnection pings the server and reconnects if necessary.
func (r *RedisRelay) ensureConnection(ctx context.Context) {
	if err := r.client.Ping(ctx).Err(); err != nil {
		r.logger.Println("relay reconnecting to Redis", err)
		r.client = redis.NewClient(r.options)
	}
}

// Subscribe starts a live stream of the session's events. By the time it
// returns, the subscription is active: any append that happens afterwards
// will be delivered, in arrival order.
func (r *RedisRelay) Subscribe(ctx context.Context, sessionID string) (<-chan core.Event, error) {
	r.mu.Lock()
	r.ensureConnection(ctx)
	ps := r.client.Subscribe(ctx, eventstore.SessionChannel(sessionID))
	r.subs[ps] = struct{}{}
	r.mu.Unlock()

	// Consume the subscription ack so an append racing with Subscribe is
	// never missed.
	if _, err := ps.Receive(ctx); err != nil {
		r.drop(ps)
		return nil, err
	}

	ch := make(chan core.Event, 100)
	go r.forward(ctx, ps, ch)
	return ch, nil
}

func (r *RedisRelay) forward(ctx context.Context, ps *redis.PubSub, ch chan core.Event) {
	defer close(ch)
	defer r.drop(ps)
	for {
		msg, err := ps.ReceiveMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || r.closed() || errors.Is(err, redis.ErrClosed) {
				return
			}
			r.logger.Println("relay receive error", err)
			time.Sleep(time.Second)
			continue
		}
		var ev core.Event
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			r.logger.Println("relay skipping undecodable event", err)
			continue
		}
		select {
		case ch <- ev:
		case <-ctx.Done():
			return
		case <-r.done:
			return
		}
	}
}

func (r *RedisRelay) drop(ps *redis.PubSub) {
	r.mu.Lock()
	delete(r.subs, ps)
	r.mu.Unlock()
	_ = ps.Close()
}

func (r *RedisRelay) closed() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// Close terminates all subscriptions and closes the client.
func (r *RedisRelay) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	select {
	case <-r.done:
	default:
		close(r.done)
	}
	for ps := range r.subs {
		_ = ps.Close()
	}
	r.subs = make(map[*redis.PubSub]struct{})
	return r.client.Close()
}

var _ Relay = (*RedisRelay)(nil)
