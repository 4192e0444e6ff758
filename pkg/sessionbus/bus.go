/**
 * @description
 * This package implements the cross-process session address bus on top of
 * Redis pub/sub. A webhook may land on any process in the cluster; publishing
 * the purchase event on a shared channel lets whichever process currently
 * hosts the buyer's live session pick it up and deliver it.
 *
 * Semantics are deliberately thin: at-least-once across the cluster, at most
 * one local delivery attempt per subscribed process, nothing persisted. A
 * session that reconnects after the publish reconciles against the durable
 * store instead; the bus is a low-latency shortcut, not the system of record.
 *
 * The Event payload is this package's own wire type rather than an internal
 * model, so the realtime runtime hosting the sessions can import the bus and
 * implement a Registry without reaching into this module's internals.
 *
 * @dependencies
 * - context, encoding/json: Standard Go libraries.
 * - github.com/redis/go-redis/v9: Redis client with pub/sub support.
 */
package sessionbus

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultChannel = "relay:orders"

// Event is the purchase notice carried over the bus. Kind holds the
// notification kind the relay classified ("order_paid" and so on).
type Event struct {
	Kind    string `json:"kind"`
	RawType string `json:"raw_type,omitempty"`

	UserID         string `json:"user_id,omitempty"`
	ExternalUserID string `json:"external_user_id,omitempty"`
	Email          string `json:"email,omitempty"`

	OrderID        string   `json:"order_id,omitempty"`
	Amount         string   `json:"amount,omitempty"`
	Currency       string   `json:"currency,omitempty"`
	SKUs           []string `json:"skus,omitempty"`
	SubscriptionID string   `json:"subscription_id,omitempty"`
	PlanID         string   `json:"plan_id,omitempty"`

	ReceivedAt time.Time `json:"received_at"`
}

// Delivery is one message received off the bus: the session-or-user key the
// event is addressed to, plus the event itself.
type Delivery struct {
	Key   string `json:"key"`
	Event Event  `json:"event"`
}

// Bus publishes and subscribes purchase events keyed by session identifier.
type Bus struct {
	client  redis.UniversalClient
	channel string
}

// NewBus creates a Bus over the given Redis client. An empty channel name
// falls back to the default.
func NewBus(client redis.UniversalClient, channel string) *Bus {
	channel = strings.TrimSpace(channel)
	if channel == "" {
		channel = defaultChannel
	}
	return &Bus{client: client, channel: channel}
}

// Publish sends the event addressed to key. Fire-and-forget: a publish with
// zero subscribers is not an error, it just means no process hosts the
// session right now.
func (b *Bus) Publish(ctx context.Context, key string, event Event) error {
	payload, err := json.Marshal(Delivery{Key: key, Event: event})
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel, payload).Err()
}

// Subscribe returns a stream of deliveries for this process and a stop
// function. The stream closes when ctx is done or stop is called. Messages
// that fail to decode are logged and dropped.
func (b *Bus) Subscribe(ctx context.Context) (<-chan Delivery, func()) {
	sub := b.client.Subscribe(ctx, b.channel)
	out := make(chan Delivery)

	go func() {
		defer close(out)
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var d Delivery
				if err := json.Unmarshal([]byte(msg.Payload), &d); err != nil {
					log.Printf("level=warn component=session_bus msg=\"dropping undecodable message\" channel=%s err=%v", b.channel, err)
					continue
				}
				select {
				case out <- d:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	stop := func() {
		_ = sub.Close()
	}
	return out, stop
}
