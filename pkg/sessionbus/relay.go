/**
 * @description
 * This file bridges the session address bus to a process-local session
 * registry. The realtime runtime that owns live connections implements
 * Registry and runs one Relay loop per process; a published purchase notice
 * is delivered to the live connection only on the process whose registry
 * holds the target session, and silently dropped everywhere else.
 *
 * @dependencies
 * - context, log: Standard Go libraries.
 */
package sessionbus

import (
	"context"
	"log"
)

// Registry resolves a session-or-user key to a locally hosted live
// connection. Deliver returns false when no local session matches the key.
type Registry interface {
	Deliver(key string, event Event) bool
}

// Subscriber yields the cross-process delivery stream. Implemented by Bus.
type Subscriber interface {
	Subscribe(ctx context.Context) (<-chan Delivery, func())
}

// Relay forwards bus deliveries to the local registry.
type Relay struct {
	bus      Subscriber
	registry Registry
}

// NewRelay creates a relay between the bus and the local registry.
func NewRelay(bus Subscriber, registry Registry) *Relay {
	return &Relay{bus: bus, registry: registry}
}

// Run consumes the bus stream until ctx is done. Intended to be launched as
// a goroutine by the runtime that owns the session registry.
func (r *Relay) Run(ctx context.Context) {
	deliveries, stop := r.bus.Subscribe(ctx)
	defer stop()

	for delivery := range deliveries {
		if r.registry.Deliver(delivery.Key, delivery.Event) {
			log.Printf("level=info component=session_relay msg=\"delivered purchase notice\" key=%s order_id=%s", delivery.Key, delivery.Event.OrderID)
			continue
		}
		// Not hosted here; some other process owns the session, or the
		// buyer is offline and will reconcile from the store on reconnect.
	}
}
