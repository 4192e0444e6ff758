/**
 * @description
 * This file defines the `Repository` interface, the contract for all durable
 * state the relay touches: the idempotency ledger for webhook notifications
 * and the business records written by fulfillment. Keeping this behind an
 * interface decouples the dispatcher and fulfillment logic from PostgreSQL
 * and makes both trivially testable with stubs.
 *
 * @dependencies
 * - context: Standard Go library.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"errors"

	"github.com/questforge/payment-relay-service/internal/domain"
)

// ErrUnavailable wraps infrastructure failures that a provider retry can
// reasonably be expected to resolve.
var ErrUnavailable = errors.New("store unavailable")

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// Idempotency ledger. MarkNotificationProcessed atomically claims the
	// (kind, referenceID) pair and reports whether this call was the first
	// to do so. UnmarkNotificationProcessed releases a claim so a provider
	// retry can re-run a handler that failed retryably.
	MarkNotificationProcessed(ctx context.Context, kind domain.EventKind, referenceID string) (bool, error)
	UnmarkNotificationProcessed(ctx context.Context, kind domain.EventKind, referenceID string) error

	// Business records.
	SaveOrder(ctx context.Context, order domain.Order) error
	MarkOrderCanceled(ctx context.Context, orderID string) error
	SaveSubscriptionEvent(ctx context.Context, sub domain.SubscriptionRecord) error
	SaveRefund(ctx context.Context, refund domain.Refund) error

	// Reconnect reconciliation: the durable state a session queries after
	// (re)connecting, since bus deliveries are not persisted.
	ListRecentOrdersForUser(ctx context.Context, externalUserID string, limit int) ([]domain.Order, error)
}
