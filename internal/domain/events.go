/**
 * @description
 * This file defines the classified business events the relay produces from
 * verified Xsolla webhook notifications. The kind enumeration is closed:
 * adding a provider notification type means adding a constant here and a case
 * to the classifier, never silent fallthrough.
 */
package domain

import "time"

// EventKind is the closed set of business events the relay understands.
type EventKind string

const (
	EventUserValidation       EventKind = "user_validation"
	EventOrderPaid            EventKind = "order_paid"
	EventOrderCanceled        EventKind = "order_canceled"
	EventSubscriptionCreated  EventKind = "create_subscription"
	EventSubscriptionUpdated  EventKind = "update_subscription"
	EventSubscriptionCanceled EventKind = "cancel_subscription"
	EventRefund               EventKind = "refund"

	// EventUnknown covers provider-added notification types we have not
	// enumerated yet. Accepted and logged, never treated as an error.
	EventUnknown EventKind = "unknown"
)

// ClassifiedEvent is the canonical record extracted from a verified
// notification. Immutable once produced by the classifier.
type ClassifiedEvent struct {
	Kind EventKind `json:"kind"`

	// RawType preserves the provider's notification_type for unknown kinds.
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

	// UserAccepted carries the synchronous user_validation decision. Only
	// meaningful when Kind is EventUserValidation.
	UserAccepted bool `json:"user_accepted,omitempty"`

	ReceivedAt time.Time `json:"received_at"`
}

// ReferenceID returns the idempotency key for the event: the provider-assigned
// order or subscription id. Empty for kinds that carry neither, which the
// dispatcher treats as "no idempotency barrier".
func (e ClassifiedEvent) ReferenceID() string {
	if e.OrderID != "" {
		return e.OrderID
	}
	return e.SubscriptionID
}

// DeliveryKey returns the stable buyer identifier used to address the live
// session on the bus. Xsolla reports the game's own user id as external_id on
// order notifications and as id elsewhere.
func (e ClassifiedEvent) DeliveryKey() string {
	if e.ExternalUserID != "" {
		return e.ExternalUserID
	}
	return e.UserID
}
