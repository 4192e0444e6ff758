package app

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/questforge/payment-relay-service/internal/domain"
)

func mustPayload(t *testing.T, raw string) domain.WebhookPayload {
	t.Helper()
	var p domain.WebhookPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		t.Fatalf("failed to parse payload: %v", err)
	}
	return p
}

func TestClassify_OrderPaid(t *testing.T) {
	payload := mustPayload(t, `{
		"notification_type": "order_paid",
		"order": {"id": "o1", "amount": "9.99", "currency": "USD"},
		"user": {"external_id": "u1"},
		"items": [{"sku": "s1"}, {"sku": "s2"}]
	}`)

	event := NewClassifier().Classify(payload, time.Now())

	if event.Kind != domain.EventOrderPaid {
		t.Fatalf("expected order_paid, got %s", event.Kind)
	}
	if event.OrderID != "o1" || event.Amount != "9.99" || event.Currency != "USD" {
		t.Fatalf("unexpected order fields: %+v", event)
	}
	if len(event.SKUs) != 2 || event.SKUs[0] != "s1" || event.SKUs[1] != "s2" {
		t.Fatalf("unexpected skus: %v", event.SKUs)
	}
	if event.ReferenceID() != "o1" {
		t.Fatalf("expected order id as idempotency key, got %q", event.ReferenceID())
	}
	if event.DeliveryKey() != "u1" {
		t.Fatalf("expected external_id as delivery key, got %q", event.DeliveryKey())
	}
}

func TestClassify_NumericOrderID(t *testing.T) {
	payload := mustPayload(t, `{
		"notification_type": "order_paid",
		"order": {"id": 12345, "amount": "1.00", "currency": "EUR"},
		"user": {"external_id": "u1"}
	}`)

	event := NewClassifier().Classify(payload, time.Now())
	if event.OrderID != "12345" {
		t.Fatalf("expected numeric order id coerced to string, got %q", event.OrderID)
	}
}

func TestClassify_SubscriptionLifecycle(t *testing.T) {
	cases := []struct {
		notificationType string
		want             domain.EventKind
	}{
		{"create_subscription", domain.EventSubscriptionCreated},
		{"update_subscription", domain.EventSubscriptionUpdated},
		{"cancel_subscription", domain.EventSubscriptionCanceled},
	}

	for _, tc := range cases {
		t.Run(tc.notificationType, func(t *testing.T) {
			payload := mustPayload(t, `{
				"notification_type": "`+tc.notificationType+`",
				"user": {"id": "u9"},
				"subscription": {"subscription_id": "sub-42", "plan_id": "72qb7Cu9"}
			}`)

			event := NewClassifier().Classify(payload, time.Now())
			if event.Kind != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, event.Kind)
			}
			if event.SubscriptionID != "sub-42" || event.PlanID != "72qb7Cu9" {
				t.Fatalf("unexpected subscription fields: %+v", event)
			}
			if event.ReferenceID() != "sub-42" {
				t.Fatalf("expected subscription id as idempotency key, got %q", event.ReferenceID())
			}
		})
	}
}

func TestClassify_UserValidationDecision(t *testing.T) {
	cases := []struct {
		name     string
		userID   string
		accepted bool
	}{
		{"regular user", "player-1", true},
		{"reserved test prefix", "test_abc", false},
		{"marker inside id", "eu_test_account", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			payload := mustPayload(t, `{"notification_type":"user_validation","user":{"id":"`+tc.userID+`"}}`)
			event := NewClassifier().Classify(payload, time.Now())

			if event.Kind != domain.EventUserValidation {
				t.Fatalf("expected user_validation, got %s", event.Kind)
			}
			if event.UserAccepted != tc.accepted {
				t.Fatalf("expected accepted=%t for %q", tc.accepted, tc.userID)
			}
		})
	}
}

func TestClassify_UnknownTypePreserved(t *testing.T) {
	payload := mustPayload(t, `{"notification_type":"partial_refund","user":{"id":"u1"}}`)
	event := NewClassifier().Classify(payload, time.Now())

	if event.Kind != domain.EventUnknown {
		t.Fatalf("expected unknown kind, got %s", event.Kind)
	}
	if event.RawType != "partial_refund" {
		t.Fatalf("expected raw type preserved, got %q", event.RawType)
	}
}

func TestClassify_Refund(t *testing.T) {
	payload := mustPayload(t, `{
		"notification_type": "refund",
		"order": {"id": "o7", "amount": "4.99", "currency": "USD"},
		"user": {"external_id": "u7"}
	}`)
	event := NewClassifier().Classify(payload, time.Now())

	if event.Kind != domain.EventRefund {
		t.Fatalf("expected refund, got %s", event.Kind)
	}
	if event.OrderID != "o7" || event.Amount != "4.99" {
		t.Fatalf("unexpected refund fields: %+v", event)
	}
}
