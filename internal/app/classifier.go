/**
 * @description
 * This file maps verified Xsolla webhook payloads onto the closed set of
 * business event kinds and extracts the canonical event record. Unknown
 * notification types are classified as EventUnknown rather than rejected, so
 * provider-added types do not break the relay.
 *
 * For user_validation the classifier also computes the accept/reject decision
 * synchronously, since the webhook handler needs it to shape the HTTP
 * response.
 */
package app

import (
	"strings"
	"time"

	"github.com/questforge/payment-relay-service/internal/domain"
)

// reservedTestAccountMarker flags Xsolla test accounts that must never pass
// user validation.
const reservedTestAccountMarker = "test_"

// Classifier turns webhook payloads into classified events.
type Classifier struct{}

// NewClassifier creates a Classifier.
func NewClassifier() *Classifier {
	return &Classifier{}
}

// Classify maps the payload's notification_type to an event kind and extracts
// the fields that kind carries. It performs no validation beyond the
// user_validation decision.
func (c *Classifier) Classify(payload domain.WebhookPayload, receivedAt time.Time) domain.ClassifiedEvent {
	event := domain.ClassifiedEvent{
		UserID:         payload.User.ID,
		ExternalUserID: payload.User.ExternalID,
		Email:          payload.User.Email,
		ReceivedAt:     receivedAt,
	}

	switch payload.NotificationType {
	case string(domain.EventUserValidation):
		event.Kind = domain.EventUserValidation
		event.UserAccepted = !strings.Contains(payload.User.ID, reservedTestAccountMarker)

	case string(domain.EventOrderPaid):
		event.Kind = domain.EventOrderPaid
		event.OrderID = payload.Order.ID
		event.Amount = payload.Order.Amount
		event.Currency = payload.Order.Currency
		for _, item := range payload.Items {
			if item.SKU != "" {
				event.SKUs = append(event.SKUs, item.SKU)
			}
		}

	case string(domain.EventOrderCanceled):
		event.Kind = domain.EventOrderCanceled
		event.OrderID = payload.Order.ID

	case string(domain.EventSubscriptionCreated):
		event.Kind = domain.EventSubscriptionCreated
		event.SubscriptionID = payload.Subscription.SubscriptionID
		event.PlanID = payload.Subscription.PlanID

	case string(domain.EventSubscriptionUpdated):
		event.Kind = domain.EventSubscriptionUpdated
		event.SubscriptionID = payload.Subscription.SubscriptionID
		event.PlanID = payload.Subscription.PlanID

	case string(domain.EventSubscriptionCanceled):
		event.Kind = domain.EventSubscriptionCanceled
		event.SubscriptionID = payload.Subscription.SubscriptionID
		event.PlanID = payload.Subscription.PlanID

	case string(domain.EventRefund):
		event.Kind = domain.EventRefund
		event.OrderID = payload.Order.ID
		event.Amount = payload.Order.Amount
		event.Currency = payload.Order.Currency

	default:
		event.Kind = domain.EventUnknown
		event.RawType = payload.NotificationType
	}

	return event
}
