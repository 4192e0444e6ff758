/**
 * @description
 * This file contains the EventDispatcher: the state machine that takes a raw
 * webhook delivery through Received -> Verified -> Classified and into a
 * terminal Accepted or Rejected state, producing the HTTP acknowledgment the
 * provider sees.
 *
 * Acceptance (204) tells Xsolla not to retry; it does not promise the
 * downstream business action succeeded. Handlers still run synchronously
 * before the response is written, and their failures are classified
 * explicitly: retryable failures answer 500 so the provider's retry machinery
 * redelivers, fatal failures are logged and acknowledged because retrying
 * them cannot succeed.
 *
 * @dependencies
 * - context, encoding/json, errors, log, time: Standard Go libraries.
 * - internal/domain, internal/store: Event model and idempotency ledger.
 */
package app

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/questforge/payment-relay-service/internal/domain"
	"github.com/questforge/payment-relay-service/internal/store"
)

// ErrRetryable marks handler failures that a provider redelivery can resolve.
// Wrap with fmt.Errorf("...: %w", ErrRetryable) or errors.Join.
var ErrRetryable = errors.New("retryable handler failure")

// Error codes surfaced to the provider and to clients.
const (
	CodeInvalidSignature = "INVALID_SIGNATURE"
	CodeInvalidUser      = "INVALID_USER"
	CodeInternalError    = "INTERNAL_SERVER_ERROR"
)

// Outcome is the HTTP acknowledgment for one webhook delivery. A nil Body
// means an empty response.
type Outcome struct {
	Status int
	Body   any
}

// ErrorBody is the structured error envelope returned on rejections.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

// EventHandler applies the business effect of a classified event. Implemented
// by Fulfillment; stubbed in tests.
type EventHandler interface {
	Handle(ctx context.Context, event domain.ClassifiedEvent) error
}

// IdempotencyStore is the durable check-and-mark ledger the dispatcher
// consults before invoking a handler.
type IdempotencyStore interface {
	MarkNotificationProcessed(ctx context.Context, kind domain.EventKind, referenceID string) (bool, error)
	UnmarkNotificationProcessed(ctx context.Context, kind domain.EventKind, referenceID string) error
}

// Dispatcher routes classified events to their handler with idempotency
// enforcement and decides the acknowledgment status.
type Dispatcher struct {
	verifier   *SignatureVerifier
	classifier *Classifier
	idem       IdempotencyStore
	handler    EventHandler
}

// NewDispatcher wires the dispatcher from its collaborators.
func NewDispatcher(verifier *SignatureVerifier, classifier *Classifier, idem IdempotencyStore, handler EventHandler) *Dispatcher {
	return &Dispatcher{
		verifier:   verifier,
		classifier: classifier,
		idem:       idem,
		handler:    handler,
	}
}

// Dispatch processes one raw webhook delivery end to end and returns the
// acknowledgment to send. rawBody must be the exact bytes read off the wire.
func (d *Dispatcher) Dispatch(ctx context.Context, rawBody []byte, signatureHeader string) Outcome {
	// Received -> Verified. Nothing in the payload is trusted before this.
	if !d.verifier.Verify(rawBody, signatureHeader) {
		log.Printf("level=warn component=dispatcher msg=\"rejected webhook with invalid signature\"")
		return Outcome{Status: http.StatusUnauthorized, Body: ErrorBody{ErrorDetail{Code: CodeInvalidSignature}}}
	}

	// Verified -> Classified.
	var payload domain.WebhookPayload
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		log.Printf("level=error component=dispatcher msg=\"verified payload failed to parse\" err=%v", err)
		return Outcome{Status: http.StatusInternalServerError, Body: ErrorBody{ErrorDetail{Code: CodeInternalError, Message: err.Error()}}}
	}
	event := d.classifier.Classify(payload, time.Now().UTC())

	switch event.Kind {
	case domain.EventUserValidation:
		// The decision shapes the response and nothing else: rejection is
		// deliberately not recorded in the idempotency ledger so a corrected
		// account can be re-validated.
		if !event.UserAccepted {
			log.Printf("level=info component=dispatcher msg=\"rejected user validation\" user_id=%s", event.UserID)
			return Outcome{Status: http.StatusBadRequest, Body: ErrorBody{ErrorDetail{Code: CodeInvalidUser}}}
		}
		return Outcome{Status: http.StatusNoContent}

	case domain.EventUnknown:
		// Forward compatibility: acknowledge so the provider stops retrying.
		log.Printf("level=info component=dispatcher msg=\"accepted unknown notification type\" raw_type=%s", event.RawType)
		return Outcome{Status: http.StatusNoContent}
	}

	// Idempotency barrier: a single atomic check-and-mark keyed by
	// (kind, reference id) guards against provider retries racing each other.
	refID := event.ReferenceID()
	if refID != "" {
		first, err := d.idem.MarkNotificationProcessed(ctx, event.Kind, refID)
		if err != nil {
			log.Printf("level=error component=dispatcher msg=\"idempotency store unavailable\" kind=%s reference_id=%s err=%v", event.Kind, refID, err)
			return Outcome{Status: http.StatusInternalServerError, Body: ErrorBody{ErrorDetail{Code: CodeInternalError, Message: "idempotency store unavailable"}}}
		}
		if !first {
			log.Printf("level=info component=dispatcher msg=\"duplicate notification skipped\" kind=%s reference_id=%s", event.Kind, refID)
			return Outcome{Status: http.StatusNoContent}
		}
	}

	// Classified -> Accepted|Rejected. The handler runs to completion before
	// any response is written.
	if err := d.handler.Handle(ctx, event); err != nil {
		if d.isRetryable(err) {
			// Release the idempotency claim so the redelivery is not
			// swallowed as a duplicate.
			if refID != "" {
				if unmarkErr := d.idem.UnmarkNotificationProcessed(ctx, event.Kind, refID); unmarkErr != nil {
					log.Printf("level=error component=dispatcher msg=\"failed to release idempotency claim\" kind=%s reference_id=%s err=%v", event.Kind, refID, unmarkErr)
				}
			}
			log.Printf("level=warn component=dispatcher msg=\"retryable handler failure; requesting redelivery\" kind=%s reference_id=%s err=%v", event.Kind, refID, err)
			return Outcome{Status: http.StatusInternalServerError, Body: ErrorBody{ErrorDetail{Code: CodeInternalError, Message: "event processing failed"}}}
		}
		log.Printf("level=error component=dispatcher msg=\"fatal handler failure; acknowledging to stop retries\" kind=%s reference_id=%s err=%v", event.Kind, refID, err)
		return Outcome{Status: http.StatusNoContent}
	}

	return Outcome{Status: http.StatusNoContent}
}

// isRetryable classifies a handler failure. The policy is explicit: only
// infrastructure outages (store, broker) justify asking the provider to
// redeliver.
func (d *Dispatcher) isRetryable(err error) bool {
	return errors.Is(err, ErrRetryable) || errors.Is(err, store.ErrUnavailable)
}
