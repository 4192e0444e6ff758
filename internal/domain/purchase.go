/**
 * @description
 * This file defines the domain models for the outbound payment-token flow. A
 * PurchaseIntent captures everything the Xsolla token API needs to open a
 * Pay Station session for a buyer, and a ProviderToken is the normalized
 * result handed back to the client.
 *
 * @dependencies
 * - encoding/json: For carrying provider fields we do not model explicitly.
 */
package domain

import "encoding/json"

// PurchaseKind distinguishes the two token-request shapes Xsolla exposes.
type PurchaseKind string

const (
	PurchaseOneTimeItem  PurchaseKind = "one_time_item"
	PurchaseSubscription PurchaseKind = "subscription"
)

// PurchaseIntent is created per token request and discarded once the call
// completes. It is never persisted by this service.
type PurchaseIntent struct {
	UserID  string       `json:"userId"`
	Name    string       `json:"name"`
	Email   string       `json:"email"`
	Country string       `json:"country"`
	Kind    PurchaseKind `json:"purchaseType"`

	// SKU applies to one_time_item intents, PlanID to subscriptions.
	SKU      string `json:"sku,omitempty"`
	Quantity int    `json:"quantity,omitempty"`
	PlanID   string `json:"planId,omitempty"`

	// Sandbox selects Xsolla's test processing path. Derived from the
	// service environment, not from client input.
	Sandbox bool `json:"-"`
}

// ProviderToken is the transient result of a token request. Fields carries
// the raw provider response so the client receives every token attribute
// Xsolla returned, alongside the sandbox flag it was issued under. Status is
// the provider's own success status, mirrored back to the client.
type ProviderToken struct {
	Status    int
	Sandbox   bool
	RequestID string
	Fields    json.RawMessage
}
