/**
 * @description
 * This file contains the fulfillment layer: the business-effect side of the
 * relay. For each applied notification it persists the durable record,
 * publishes an internal event for downstream services over RabbitMQ, and for
 * paid orders pushes a live notice onto the session address bus so the
 * buyer's connected game session hears about the purchase immediately.
 *
 * Failure classification matters here: store and broker outages surface as
 * retryable errors (the dispatcher answers 500 and Xsolla redelivers), while
 * the session bus is strictly best-effort because a reconnecting session
 * reconciles from the store anyway.
 *
 * @dependencies
 * - context, errors, fmt, log: Standard Go libraries.
 * - internal/domain, internal/store: Models and persistence.
 * - pkg/rabbitmq, pkg/sessionbus: Broker and session address bus.
 */
package app

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/questforge/payment-relay-service/internal/domain"
	"github.com/questforge/payment-relay-service/internal/store"
	"github.com/questforge/payment-relay-service/pkg/rabbitmq"
	"github.com/questforge/payment-relay-service/pkg/sessionbus"
)

// Routing keys on the payment events exchange.
const (
	RouteOrderPaid            = "payment.order.paid"
	RouteOrderCanceled        = "payment.order.canceled"
	RouteSubscriptionCreated  = "payment.subscription.created"
	RouteSubscriptionUpdated  = "payment.subscription.updated"
	RouteSubscriptionCanceled = "payment.subscription.canceled"
	RouteRefund               = "payment.refund"
)

// SessionPublisher publishes an event addressed to a live session key.
// Implemented by sessionbus.Bus.
type SessionPublisher interface {
	Publish(ctx context.Context, key string, event sessionbus.Event) error
}

// Fulfillment applies classified events: durable record, internal event,
// live session notice.
type Fulfillment struct {
	repo       store.Repository
	producer   rabbitmq.Publisher
	sessionBus SessionPublisher
	exchange   string
}

// NewFulfillment creates the fulfillment handler. exchange names the RabbitMQ
// topic exchange internal payment events are published to.
func NewFulfillment(repo store.Repository, producer rabbitmq.Publisher, sessionBus SessionPublisher, exchange string) *Fulfillment {
	if exchange == "" {
		exchange = "payment_events"
	}
	return &Fulfillment{
		repo:       repo,
		producer:   producer,
		sessionBus: sessionBus,
		exchange:   exchange,
	}
}

// Handle applies the business effect for one classified event.
func (f *Fulfillment) Handle(ctx context.Context, event domain.ClassifiedEvent) error {
	switch event.Kind {
	case domain.EventOrderPaid:
		return f.handleOrderPaid(ctx, event)
	case domain.EventOrderCanceled:
		return f.handleOrderCanceled(ctx, event)
	case domain.EventSubscriptionCreated:
		return f.handleSubscription(ctx, event, "created", RouteSubscriptionCreated)
	case domain.EventSubscriptionUpdated:
		return f.handleSubscription(ctx, event, "updated", RouteSubscriptionUpdated)
	case domain.EventSubscriptionCanceled:
		return f.handleSubscription(ctx, event, "canceled", RouteSubscriptionCanceled)
	case domain.EventRefund:
		return f.handleRefund(ctx, event)
	default:
		// user_validation and unknown kinds never reach fulfillment.
		return fmt.Errorf("no fulfillment handler for event kind %q", event.Kind)
	}
}

func (f *Fulfillment) handleOrderPaid(ctx context.Context, event domain.ClassifiedEvent) error {
	order := domain.Order{
		OrderID:        event.OrderID,
		ExternalUserID: event.DeliveryKey(),
		Amount:         event.Amount,
		Currency:       event.Currency,
		SKUs:           event.SKUs,
		Status:         domain.OrderStatusPaid,
	}
	if err := f.repo.SaveOrder(ctx, order); err != nil {
		return err
	}
	if err := f.publishInternal(ctx, RouteOrderPaid, event); err != nil {
		return err
	}
	f.notifySession(ctx, event)
	log.Printf("level=info component=fulfillment msg=\"order applied\" order_id=%s user=%s amount=%s %s skus=%v",
		event.OrderID, event.DeliveryKey(), event.Amount, event.Currency, event.SKUs)
	return nil
}

func (f *Fulfillment) handleOrderCanceled(ctx context.Context, event domain.ClassifiedEvent) error {
	if err := f.repo.MarkOrderCanceled(ctx, event.OrderID); err != nil {
		return err
	}
	return f.publishInternal(ctx, RouteOrderCanceled, event)
}

func (f *Fulfillment) handleSubscription(ctx context.Context, event domain.ClassifiedEvent, status, route string) error {
	sub := domain.SubscriptionRecord{
		SubscriptionID: event.SubscriptionID,
		ExternalUserID: event.DeliveryKey(),
		PlanID:         event.PlanID,
		Status:         status,
	}
	if err := f.repo.SaveSubscriptionEvent(ctx, sub); err != nil {
		return err
	}
	return f.publishInternal(ctx, route, event)
}

func (f *Fulfillment) handleRefund(ctx context.Context, event domain.ClassifiedEvent) error {
	refund := domain.Refund{
		OrderID:        event.OrderID,
		ExternalUserID: event.DeliveryKey(),
		Amount:         event.Amount,
		Currency:       event.Currency,
	}
	if err := f.repo.SaveRefund(ctx, refund); err != nil {
		return err
	}
	return f.publishInternal(ctx, RouteRefund, event)
}

// publishInternal hands the event to downstream consumers. Broker outages are
// retryable: the redelivered webhook will publish again.
func (f *Fulfillment) publishInternal(ctx context.Context, routingKey string, event domain.ClassifiedEvent) error {
	if f.producer == nil {
		return nil
	}
	if err := f.producer.Publish(ctx, f.exchange, routingKey, event); err != nil {
		if errors.Is(err, rabbitmq.ErrPublishFailed) {
			return errors.Join(ErrRetryable, err)
		}
		return err
	}
	return nil
}

// notifySession is fire-and-forget: the live notice is a latency shortcut,
// the durable store is what a reconnecting session consults.
func (f *Fulfillment) notifySession(ctx context.Context, event domain.ClassifiedEvent) {
	if f.sessionBus == nil {
		return
	}
	key := event.DeliveryKey()
	if key == "" {
		return
	}
	if err := f.sessionBus.Publish(ctx, key, busEvent(event)); err != nil {
		log.Printf("level=warn component=fulfillment msg=\"session notice publish failed\" key=%s order_id=%s err=%v", key, event.OrderID, err)
	}
}

// busEvent maps a classified event onto the bus wire format.
func busEvent(event domain.ClassifiedEvent) sessionbus.Event {
	return sessionbus.Event{
		Kind:           string(event.Kind),
		RawType:        event.RawType,
		UserID:         event.UserID,
		ExternalUserID: event.ExternalUserID,
		Email:          event.Email,
		OrderID:        event.OrderID,
		Amount:         event.Amount,
		Currency:       event.Currency,
		SKUs:           event.SKUs,
		SubscriptionID: event.SubscriptionID,
		PlanID:         event.PlanID,
		ReceivedAt:     event.ReceivedAt,
	}
}
