package sessionbus

import (
	"context"
	"sync"
	"testing"
	"time"
)

type busStub struct {
	deliveries chan Delivery
	stopped    bool
}

func (b *busStub) Subscribe(ctx context.Context) (<-chan Delivery, func()) {
	return b.deliveries, func() { b.stopped = true }
}

type registryStub struct {
	mu       sync.Mutex
	hosted   map[string]bool
	received []Delivery
}

func (r *registryStub) Deliver(key string, event Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.hosted[key] {
		return false
	}
	r.received = append(r.received, Delivery{Key: key, Event: event})
	return true
}

func TestRelay_DeliversToHostedSessionsOnly(t *testing.T) {
	bus := &busStub{deliveries: make(chan Delivery)}
	registry := &registryStub{hosted: map[string]bool{"u1": true}}
	relay := NewRelay(bus, registry)

	done := make(chan struct{})
	go func() {
		relay.Run(context.Background())
		close(done)
	}()

	bus.deliveries <- Delivery{Key: "u1", Event: Event{Kind: "order_paid", OrderID: "o1"}}
	// Not hosted on this process; must be dropped silently.
	bus.deliveries <- Delivery{Key: "u2", Event: Event{Kind: "order_paid", OrderID: "o2"}}
	close(bus.deliveries)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not finish after stream close")
	}

	registry.mu.Lock()
	defer registry.mu.Unlock()
	if len(registry.received) != 1 {
		t.Fatalf("expected exactly one local delivery, got %d", len(registry.received))
	}
	if registry.received[0].Key != "u1" || registry.received[0].Event.OrderID != "o1" {
		t.Fatalf("unexpected delivery: %+v", registry.received[0])
	}
	if !bus.stopped {
		t.Fatal("expected relay to release the subscription")
	}
}

func TestRelay_RunsAgainstRealBus(t *testing.T) {
	bus := newTestBus(t, "")
	registry := &registryStub{hosted: map[string]bool{"sess-1": true}}
	relay := NewRelay(bus, registry)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go relay.Run(ctx)

	event := Event{Kind: "order_paid", OrderID: "o7", SKUs: []string{"s1"}}

	deadline := time.After(5 * time.Second)
	for {
		if err := bus.Publish(context.Background(), "sess-1", event); err != nil {
			t.Fatalf("publish failed: %v", err)
		}
		registry.mu.Lock()
		n := len(registry.received)
		registry.mu.Unlock()
		if n > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for relayed delivery")
		case <-time.After(100 * time.Millisecond):
		}
	}

	registry.mu.Lock()
	defer registry.mu.Unlock()
	if registry.received[0].Event.OrderID != "o7" {
		t.Fatalf("unexpected relayed event: %+v", registry.received[0].Event)
	}
}
