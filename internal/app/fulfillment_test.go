package app

import (
	"context"
	"errors"
	"testing"

	"github.com/questforge/payment-relay-service/internal/domain"
	"github.com/questforge/payment-relay-service/internal/store"
	"github.com/questforge/payment-relay-service/pkg/rabbitmq"
	"github.com/questforge/payment-relay-service/pkg/sessionbus"
)

type fulfillmentRepoStub struct {
	store.Repository

	savedOrders   []domain.Order
	canceledIDs   []string
	savedSubs     []domain.SubscriptionRecord
	savedRefunds  []domain.Refund
	saveOrderErr  error
	saveRefundErr error
}

func (s *fulfillmentRepoStub) SaveOrder(ctx context.Context, order domain.Order) error {
	if s.saveOrderErr != nil {
		return s.saveOrderErr
	}
	s.savedOrders = append(s.savedOrders, order)
	return nil
}

func (s *fulfillmentRepoStub) MarkOrderCanceled(ctx context.Context, orderID string) error {
	s.canceledIDs = append(s.canceledIDs, orderID)
	return nil
}

func (s *fulfillmentRepoStub) SaveSubscriptionEvent(ctx context.Context, sub domain.SubscriptionRecord) error {
	s.savedSubs = append(s.savedSubs, sub)
	return nil
}

func (s *fulfillmentRepoStub) SaveRefund(ctx context.Context, refund domain.Refund) error {
	if s.saveRefundErr != nil {
		return s.saveRefundErr
	}
	s.savedRefunds = append(s.savedRefunds, refund)
	return nil
}

type producerStub struct {
	published []struct {
		exchange, routingKey string
		body                 interface{}
	}
	err error
}

func (p *producerStub) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, struct {
		exchange, routingKey string
		body                 interface{}
	}{exchange, routingKey, body})
	return nil
}

func (p *producerStub) Close() {}

type sessionPubStub struct {
	keys   []string
	events []sessionbus.Event
	err    error
}

func (s *sessionPubStub) Publish(ctx context.Context, key string, event sessionbus.Event) error {
	if s.err != nil {
		return s.err
	}
	s.keys = append(s.keys, key)
	s.events = append(s.events, event)
	return nil
}

func orderPaidEvent() domain.ClassifiedEvent {
	return domain.ClassifiedEvent{
		Kind:           domain.EventOrderPaid,
		ExternalUserID: "u1",
		OrderID:        "o1",
		Amount:         "9.99",
		Currency:       "USD",
		SKUs:           []string{"s1"},
	}
}

func TestHandle_OrderPaidPersistsPublishesAndNotifies(t *testing.T) {
	repo := &fulfillmentRepoStub{}
	producer := &producerStub{}
	sessions := &sessionPubStub{}
	f := NewFulfillment(repo, producer, sessions, "payment_events")

	if err := f.Handle(context.Background(), orderPaidEvent()); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	if len(repo.savedOrders) != 1 || repo.savedOrders[0].OrderID != "o1" || repo.savedOrders[0].Status != domain.OrderStatusPaid {
		t.Fatalf("expected paid order persisted, got %+v", repo.savedOrders)
	}
	if len(producer.published) != 1 || producer.published[0].routingKey != RouteOrderPaid {
		t.Fatalf("expected one internal event on %s, got %+v", RouteOrderPaid, producer.published)
	}
	if len(sessions.keys) != 1 || sessions.keys[0] != "u1" {
		t.Fatalf("expected session notice addressed to u1, got %v", sessions.keys)
	}
	notice := sessions.events[0]
	if notice.Kind != string(domain.EventOrderPaid) || notice.OrderID != "o1" || len(notice.SKUs) != 1 {
		t.Fatalf("expected classified event mapped onto the bus wire format, got %+v", notice)
	}
}

func TestHandle_SessionBusFailureIsBestEffort(t *testing.T) {
	repo := &fulfillmentRepoStub{}
	producer := &producerStub{}
	sessions := &sessionPubStub{err: errors.New("redis down")}
	f := NewFulfillment(repo, producer, sessions, "payment_events")

	if err := f.Handle(context.Background(), orderPaidEvent()); err != nil {
		t.Fatalf("session bus outage must not fail the handler, got %v", err)
	}
	if len(repo.savedOrders) != 1 {
		t.Fatal("expected order still persisted")
	}
}

func TestHandle_BrokerOutageIsRetryable(t *testing.T) {
	repo := &fulfillmentRepoStub{}
	producer := &producerStub{err: errors.Join(rabbitmq.ErrPublishFailed, errors.New("connection reset"))}
	f := NewFulfillment(repo, producer, &sessionPubStub{}, "payment_events")

	err := f.Handle(context.Background(), orderPaidEvent())
	if err == nil {
		t.Fatal("expected broker outage to surface")
	}
	if !errors.Is(err, ErrRetryable) {
		t.Fatalf("expected broker outage classified retryable, got %v", err)
	}
}

func TestHandle_StoreOutagePropagates(t *testing.T) {
	repo := &fulfillmentRepoStub{saveOrderErr: errors.New("store unavailable: save order")}
	f := NewFulfillment(repo, &producerStub{}, &sessionPubStub{}, "payment_events")

	if err := f.Handle(context.Background(), orderPaidEvent()); err == nil {
		t.Fatal("expected store failure to propagate to the dispatcher")
	}
}

func TestHandle_SubscriptionLifecycle(t *testing.T) {
	cases := []struct {
		kind       domain.EventKind
		wantStatus string
		wantRoute  string
	}{
		{domain.EventSubscriptionCreated, "created", RouteSubscriptionCreated},
		{domain.EventSubscriptionUpdated, "updated", RouteSubscriptionUpdated},
		{domain.EventSubscriptionCanceled, "canceled", RouteSubscriptionCanceled},
	}

	for _, tc := range cases {
		t.Run(string(tc.kind), func(t *testing.T) {
			repo := &fulfillmentRepoStub{}
			producer := &producerStub{}
			f := NewFulfillment(repo, producer, &sessionPubStub{}, "payment_events")

			event := domain.ClassifiedEvent{
				Kind:           tc.kind,
				UserID:         "u3",
				SubscriptionID: "sub-1",
				PlanID:         "plan-1",
			}
			if err := f.Handle(context.Background(), event); err != nil {
				t.Fatalf("expected nil error, got %v", err)
			}
			if len(repo.savedSubs) != 1 || repo.savedSubs[0].Status != tc.wantStatus {
				t.Fatalf("expected subscription persisted with status %s, got %+v", tc.wantStatus, repo.savedSubs)
			}
			if len(producer.published) != 1 || producer.published[0].routingKey != tc.wantRoute {
				t.Fatalf("expected internal event on %s, got %+v", tc.wantRoute, producer.published)
			}
		})
	}
}

func TestHandle_RefundAndCancel(t *testing.T) {
	repo := &fulfillmentRepoStub{}
	producer := &producerStub{}
	f := NewFulfillment(repo, producer, &sessionPubStub{}, "payment_events")

	refund := domain.ClassifiedEvent{Kind: domain.EventRefund, ExternalUserID: "u1", OrderID: "o9", Amount: "4.99", Currency: "USD"}
	if err := f.Handle(context.Background(), refund); err != nil {
		t.Fatalf("refund: %v", err)
	}
	if len(repo.savedRefunds) != 1 || repo.savedRefunds[0].OrderID != "o9" {
		t.Fatalf("expected refund persisted, got %+v", repo.savedRefunds)
	}

	cancel := domain.ClassifiedEvent{Kind: domain.EventOrderCanceled, UserID: "u1", OrderID: "o9"}
	if err := f.Handle(context.Background(), cancel); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if len(repo.canceledIDs) != 1 || repo.canceledIDs[0] != "o9" {
		t.Fatalf("expected order canceled, got %v", repo.canceledIDs)
	}
}

func TestHandle_UnroutableKind(t *testing.T) {
	f := NewFulfillment(&fulfillmentRepoStub{}, &producerStub{}, &sessionPubStub{}, "payment_events")

	err := f.Handle(context.Background(), domain.ClassifiedEvent{Kind: domain.EventUserValidation})
	if err == nil {
		t.Fatal("expected error for kinds that never reach fulfillment")
	}
	if errors.Is(err, ErrRetryable) {
		t.Fatal("misrouted kinds are fatal, not retryable")
	}
}
