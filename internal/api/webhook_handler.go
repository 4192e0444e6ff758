/**
 * @description
 * This file contains the HTTP handler for inbound Xsolla webhooks. It is the
 * single untrusted entry point of the relay: the raw body is read in full
 * first, handed byte-for-byte to the dispatcher for signature verification,
 * and only then parsed. Any JSON middleware in front of this handler would
 * invalidate the signature, so it reads the body itself.
 *
 * @dependencies
 * - context, encoding/json, io, net/http: Standard Go libraries.
 * - internal/app: The event dispatcher.
 */
package api

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/questforge/payment-relay-service/internal/app"
)

// webhookBodyLimit caps inbound notification bodies. Xsolla payloads are
// small; anything larger is hostile.
const webhookBodyLimit = 100 << 10

// WebhookHandler processes incoming webhooks from Xsolla.
type WebhookHandler struct {
	dispatcher *app.Dispatcher
}

// NewWebhookHandler creates a new handler for the webhook endpoint.
func NewWebhookHandler(dispatcher *app.Dispatcher) *WebhookHandler {
	return &WebhookHandler{dispatcher: dispatcher}
}

// ServeHTTP implements the http.Handler interface.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, webhookBodyLimit))
	if err != nil {
		log.Printf("level=warn component=webhook msg=\"failed to read webhook body\" err=%v", err)
		http.Error(w, "Cannot read request body", http.StatusBadRequest)
		return
	}

	// Once the body is in hand the provider expects a definite outcome, so
	// processing continues even if the sender drops the connection.
	ctx := context.WithoutCancel(r.Context())

	outcome := h.dispatcher.Dispatch(ctx, body, r.Header.Get("Authorization"))

	if outcome.Body == nil {
		w.WriteHeader(outcome.Status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(outcome.Status)
	json.NewEncoder(w).Encode(outcome.Body)
}
