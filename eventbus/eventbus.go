// Package eventbus publishes compile diagnostics and runtime task/channel
// lifecycle events over Redis pub/sub, so an out-of-process observer (the
// out-of-scope SDK or MCP server) can watch a running program without
// coupling to the compiler or runtime directly.
//
// Modeled on the teacher's features/stream/pulse/clients/pulse.Client: the
// same Options-with-required-Redis-field-plus-New(opts) shape and a typed
// Stream/handle split. Pulse itself (goa.design/pulse) is not used here —
// DESIGN.md records why — so this talks to go-redis's native pub/sub
// commands directly rather than through Pulse's consumer-group streams.
package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Kind names a lifecycle event published to the bus (SPEC_FULL.md §3,
// "Event bus task/channel lifecycle feed").
type Kind string

const (
	KindSpawn     Kind = "spawn"
	KindDone      Kind = "done"
	KindCancelled Kind = "cancelled"
	KindChanSend  Kind = "chan.send"
	KindChanRecv  Kind = "chan.recv"
	KindChanClose Kind = "chan.close"
	KindDiagnostic Kind = "diagnostic"
)

// Event is one published message, keyed by run ID so a single bus can carry
// traffic for many concurrently executing programs.
type Event struct {
	RunID     string    `json:"run_id"`
	Kind      Kind      `json:"kind"`
	Subject   string    `json:"subject,omitempty"` // task or channel id, when applicable
	Message   string    `json:"message,omitempty"` // diagnostic text, when Kind == KindDiagnostic
	Timestamp time.Time `json:"timestamp"`
}

// Options configures the Bus implementation.
type Options struct {
	// Redis is the Redis connection used to back pub/sub. Required.
	Redis *redis.Client
	// Channel is the pub/sub channel name. Defaults to "pluto.events".
	Channel string
	// PublishTimeout bounds individual Publish calls. Zero means no timeout.
	PublishTimeout time.Duration
}

const defaultChannel = "pluto.events"

// Bus publishes and subscribes to lifecycle events.
type Bus interface {
	Publish(ctx context.Context, e Event) error
	// Subscribe returns a channel of decoded events and a close function.
	// The returned channel is closed once the subscription's Close is
	// called or ctx is done.
	Subscribe(ctx context.Context) (<-chan Event, func() error, error)
	Close() error
}

type bus struct {
	redis   *redis.Client
	channel string
	timeout time.Duration
}

// New constructs a Bus backed by the provided Redis connection.
func New(opts Options) (Bus, error) {
	if opts.Redis == nil {
		return nil, errors.New("redis client is required")
	}
	ch := opts.Channel
	if ch == "" {
		ch = defaultChannel
	}
	return &bus{redis: opts.Redis, channel: ch, timeout: opts.PublishTimeout}, nil
}

func (b *bus) Publish(ctx context.Context, e Event) error {
	if e.RunID == "" {
		return errors.New("run id is required")
	}
	if e.Kind == "" {
		return errors.New("event kind is required")
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return b.redis.Publish(ctx, b.channel, payload).Err()
}

func (b *bus) Subscribe(ctx context.Context) (<-chan Event, func() error, error) {
	sub := b.redis.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, err
	}

	out := make(chan Event, 64)
	raw := sub.Channel()
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-raw:
				if !ok {
					return
				}
				var e Event
				if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
					continue
				}
				select {
				case out <- e:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, sub.Close, nil
}

func (b *bus) Close() error { return nil }
