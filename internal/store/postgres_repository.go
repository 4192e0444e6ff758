/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository`
 * interface. The idempotency ledger relies on a unique constraint over
 * (notification_kind, reference_id): a conditional insert is the single
 * atomic check-and-mark, so two concurrent deliveries of the same
 * notification can never both observe "not yet applied".
 *
 * @dependencies
 * - context, time, errors: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/questforge/payment-relay-service/internal/domain"
)

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// MarkNotificationProcessed claims the idempotency key for a notification.
// Returns true when this delivery is the first to apply, false on a duplicate.
func (r *PostgresRepository) MarkNotificationProcessed(ctx context.Context, kind domain.EventKind, referenceID string) (bool, error) {
	query := `
		INSERT INTO processed_notifications (notification_kind, reference_id, processed_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (notification_kind, reference_id) DO NOTHING
	`
	tag, err := r.db.Exec(ctx, query, string(kind), referenceID)
	if err != nil {
		return false, fmt.Errorf("%w: mark notification processed: %v", ErrUnavailable, err)
	}
	return tag.RowsAffected() == 1, nil
}

// UnmarkNotificationProcessed releases a previously claimed idempotency key.
// Used when a handler fails retryably, so the provider's redelivery is not
// short-circuited as a duplicate.
func (r *PostgresRepository) UnmarkNotificationProcessed(ctx context.Context, kind domain.EventKind, referenceID string) error {
	query := `DELETE FROM processed_notifications WHERE notification_kind = $1 AND reference_id = $2`
	if _, err := r.db.Exec(ctx, query, string(kind), referenceID); err != nil {
		return fmt.Errorf("%w: unmark notification processed: %v", ErrUnavailable, err)
	}
	return nil
}

// SaveOrder upserts a paid order. A replayed paid notification for an order
// that was since canceled must not resurrect it, hence the status guard.
func (r *PostgresRepository) SaveOrder(ctx context.Context, order domain.Order) error {
	query := `
		INSERT INTO orders (order_id, external_user_id, amount, currency, skus, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		ON CONFLICT (order_id) DO UPDATE
		SET amount = EXCLUDED.amount,
		    currency = EXCLUDED.currency,
		    skus = EXCLUDED.skus,
		    updated_at = NOW()
		WHERE orders.status = $6
	`
	if _, err := r.db.Exec(ctx, query,
		order.OrderID, order.ExternalUserID, order.Amount, order.Currency, order.SKUs, order.Status); err != nil {
		return fmt.Errorf("%w: save order %s: %v", ErrUnavailable, order.OrderID, err)
	}
	return nil
}

// MarkOrderCanceled flips an order to canceled. Unknown orders are recorded as
// a bare canceled row so a cancel arriving before its paid notification is not
// lost.
func (r *PostgresRepository) MarkOrderCanceled(ctx context.Context, orderID string) error {
	query := `
		INSERT INTO orders (order_id, status, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (order_id) DO UPDATE
		SET status = $2, updated_at = NOW()
	`
	if _, err := r.db.Exec(ctx, query, orderID, domain.OrderStatusCanceled); err != nil {
		return fmt.Errorf("%w: mark order canceled %s: %v", ErrUnavailable, orderID, err)
	}
	return nil
}

// SaveSubscriptionEvent upserts the latest subscription lifecycle state.
func (r *PostgresRepository) SaveSubscriptionEvent(ctx context.Context, sub domain.SubscriptionRecord) error {
	query := `
		INSERT INTO subscriptions (subscription_id, external_user_id, plan_id, status, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (subscription_id) DO UPDATE
		SET external_user_id = COALESCE(NULLIF(EXCLUDED.external_user_id, ''), subscriptions.external_user_id),
		    plan_id = COALESCE(NULLIF(EXCLUDED.plan_id, ''), subscriptions.plan_id),
		    status = EXCLUDED.status,
		    updated_at = NOW()
	`
	if _, err := r.db.Exec(ctx, query, sub.SubscriptionID, sub.ExternalUserID, sub.PlanID, sub.Status); err != nil {
		return fmt.Errorf("%w: save subscription %s: %v", ErrUnavailable, sub.SubscriptionID, err)
	}
	return nil
}

// SaveRefund records a refund and flips the underlying order's status.
func (r *PostgresRepository) SaveRefund(ctx context.Context, refund domain.Refund) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("%w: begin refund tx: %v", ErrUnavailable, err)
	}
	defer tx.Rollback(ctx)

	insert := `
		INSERT INTO refunds (order_id, external_user_id, amount, currency, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (order_id) DO NOTHING
	`
	if _, err := tx.Exec(ctx, insert, refund.OrderID, refund.ExternalUserID, refund.Amount, refund.Currency); err != nil {
		return fmt.Errorf("%w: save refund %s: %v", ErrUnavailable, refund.OrderID, err)
	}

	update := `UPDATE orders SET status = $2, updated_at = NOW() WHERE order_id = $1`
	if _, err := tx.Exec(ctx, update, refund.OrderID, domain.OrderStatusRefunded); err != nil {
		return fmt.Errorf("%w: mark order refunded %s: %v", ErrUnavailable, refund.OrderID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit refund %s: %v", ErrUnavailable, refund.OrderID, err)
	}
	return nil
}

// ListRecentOrdersForUser returns the newest orders for a buyer, used by a
// reconnecting session to reconcile purchases it may have missed live.
func (r *PostgresRepository) ListRecentOrdersForUser(ctx context.Context, externalUserID string, limit int) ([]domain.Order, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT order_id, external_user_id, COALESCE(amount, ''), COALESCE(currency, ''), COALESCE(skus, '{}'), status, created_at, updated_at
		FROM orders
		WHERE external_user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, externalUserID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list orders for %s: %v", ErrUnavailable, externalUserID, err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		var o domain.Order
		var createdAt, updatedAt time.Time
		if err := rows.Scan(&o.OrderID, &o.ExternalUserID, &o.Amount, &o.Currency, &o.SKUs, &o.Status, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		o.CreatedAt = createdAt
		o.UpdatedAt = updatedAt
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}
