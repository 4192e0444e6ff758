/**
 * @description
 * This file contains the wire-format structs for inbound Xsolla webhook
 * payloads. Only the fields the relay actually reads are modeled; everything
 * else passes through untouched. These structs must only ever be populated
 * from a payload whose signature has already been verified.
 *
 * @dependencies
 * - encoding/json: Webhook bodies are JSON.
 */
package domain

import "encoding/json"

// WebhookPayload is the envelope common to all Xsolla notification types.
type WebhookPayload struct {
	NotificationType string              `json:"notification_type"`
	User             WebhookUser         `json:"user"`
	Order            WebhookOrder        `json:"order"`
	Items            []WebhookItem       `json:"items"`
	Subscription     WebhookSubscription `json:"subscription"`
}

// WebhookUser identifies the buyer. Order notifications carry the game's own
// user id in external_id; validation and subscription notifications use id.
type WebhookUser struct {
	ID         string `json:"id"`
	ExternalID string `json:"external_id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	Country    string `json:"country"`
}

// WebhookOrder carries the provider-assigned order id and charge details.
// Xsolla serializes amounts as decimal strings.
type WebhookOrder struct {
	ID       string `json:"id"`
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

type WebhookItem struct {
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
}

type WebhookSubscription struct {
	SubscriptionID string `json:"subscription_id"`
	PlanID         string `json:"plan_id"`
	Status         string `json:"status"`
}

// UnmarshalJSON tolerates Xsolla sending order ids and amounts as either
// strings or numbers across API versions.
func (o *WebhookOrder) UnmarshalJSON(data []byte) error {
	type alias struct {
		ID       any    `json:"id"`
		Amount   any    `json:"amount"`
		Currency string `json:"currency"`
	}
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	o.ID = coerceString(a.ID)
	o.Amount = coerceString(a.Amount)
	o.Currency = a.Currency
	return nil
}

func (s *WebhookSubscription) UnmarshalJSON(data []byte) error {
	type alias struct {
		SubscriptionID any    `json:"subscription_id"`
		PlanID         any    `json:"plan_id"`
		Status         string `json:"status"`
	}
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	s.SubscriptionID = coerceString(a.SubscriptionID)
	s.PlanID = coerceString(a.PlanID)
	s.Status = a.Status
	return nil
}
