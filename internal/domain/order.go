/**
 * @description
 * This file defines the business records the fulfillment layer persists once
 * a webhook notification has been verified and classified. These are the
 * durable side of the relay: a reconnecting game session reconciles against
 * these rows rather than relying on the live session bus.
 */
package domain

import "time"

// OrderStatus values follow the order lifecycle reported by Xsolla.
const (
	OrderStatusPaid     = "paid"
	OrderStatusCanceled = "canceled"
	OrderStatusRefunded = "refunded"
)

// Order is a paid (or later canceled/refunded) one-time purchase.
type Order struct {
	OrderID        string    `json:"order_id"`
	ExternalUserID string    `json:"external_user_id"`
	Amount         string    `json:"amount"`
	Currency       string    `json:"currency"`
	SKUs           []string  `json:"skus"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// SubscriptionRecord tracks the latest lifecycle state of a buyer's
// subscription as reported by the provider.
type SubscriptionRecord struct {
	SubscriptionID string    `json:"subscription_id"`
	ExternalUserID string    `json:"external_user_id"`
	PlanID         string    `json:"plan_id"`
	Status         string    `json:"status"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Refund records a provider-initiated refund against an order.
type Refund struct {
	OrderID        string    `json:"order_id"`
	ExternalUserID string    `json:"external_user_id"`
	Amount         string    `json:"amount"`
	Currency       string    `json:"currency"`
	CreatedAt      time.Time `json:"created_at"`
}
