/**
 * @description
 * This file contains the HTTP handlers for the client-facing endpoints of the
 * payment relay: requesting a payment token, looking up an invoice, and the
 * reconnect reconciliation read over recent orders. Handlers parse requests,
 * call the gateway or repository, and mirror provider outcomes back to the
 * caller per the relay's error contract.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: Error envelope, models, persistence.
 * - pkg/xsollaclient: The outbound provider gateway.
 */
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/questforge/payment-relay-service/internal/app"
	"github.com/questforge/payment-relay-service/internal/domain"
	"github.com/questforge/payment-relay-service/internal/store"
	"github.com/questforge/payment-relay-service/pkg/xsollaclient"
)

// TokenGateway is the slice of the Xsolla client the handlers need.
type TokenGateway interface {
	CreatePaymentToken(ctx context.Context, intent domain.PurchaseIntent) (*domain.ProviderToken, error)
	GetInvoice(ctx context.Context, invoiceID string) (json.RawMessage, int, error)
}

// RelayHandlers holds the collaborators the client-facing handlers use.
type RelayHandlers struct {
	gateway TokenGateway
	repo    store.Repository
	sandbox bool
}

// NewRelayHandlers creates a new instance of RelayHandlers. sandbox selects
// the provider's test processing path for every issued token.
func NewRelayHandlers(gateway TokenGateway, repo store.Repository, sandbox bool) *RelayHandlers {
	return &RelayHandlers{gateway: gateway, repo: repo, sandbox: sandbox}
}

type tokenRequest struct {
	UserID       string `json:"userId"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Country      string `json:"country"`
	PurchaseType string `json:"purchaseType"`
	SKU          string `json:"sku"`
	Quantity     int    `json:"quantity"`
	PlanID       string `json:"planId"`
}

// CreateTokenHandler requests a one-time payment token from Xsolla on behalf
// of the buyer and relays the provider's response.
func (h *RelayHandlers) CreateTokenHandler(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 100<<10)).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "request body is not valid JSON")
		return
	}

	kind, ok := normalizePurchaseKind(req.PurchaseType)
	if !ok {
		h.writeError(w, http.StatusBadRequest, "INVALID_PURCHASE_KIND", "purchaseType must be one_time_item or subscription")
		return
	}

	intent := domain.PurchaseIntent{
		UserID:   req.UserID,
		Name:     req.Name,
		Email:    req.Email,
		Country:  req.Country,
		Kind:     kind,
		SKU:      req.SKU,
		Quantity: req.Quantity,
		PlanID:   req.PlanID,
		Sandbox:  h.sandbox,
	}

	// The gateway call is cancellable: if the buyer abandons the request
	// there is no point finishing the round trip.
	token, err := h.gateway.CreatePaymentToken(r.Context(), intent)
	if err != nil {
		h.writeGatewayError(w, err)
		return
	}

	// Merge the sandbox flag into the provider's token fields so the client
	// knows which processing path the token targets.
	body := map[string]any{}
	if len(token.Fields) > 0 {
		if err := json.Unmarshal(token.Fields, &body); err != nil {
			log.Printf("level=error component=api msg=\"provider token response is not a JSON object\" err=%v", err)
			h.writeError(w, http.StatusInternalServerError, app.CodeInternalError, "Failed to create payment token")
			return
		}
	}
	body["sandbox"] = token.Sandbox

	// Mirror the provider's own success status.
	status := token.Status
	if status == 0 {
		status = http.StatusOK
	}
	h.writeJSON(w, status, body)
}

// InvoiceHandler proxies the provider's transaction detail report, mirroring
// its status code.
func (h *RelayHandlers) InvoiceHandler(w http.ResponseWriter, r *http.Request) {
	invoiceID := chi.URLParam(r, "invoiceID")
	if invoiceID == "" {
		h.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "invoice id is required")
		return
	}

	payload, status, err := h.gateway.GetInvoice(r.Context(), invoiceID)
	if err != nil {
		h.writeGatewayError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(payload)
}

// RecentOrdersHandler returns the newest persisted orders for a buyer. A
// session that reconnects after missing a live purchase notice calls this to
// reconcile.
func (h *RelayHandlers) RecentOrdersHandler(w http.ResponseWriter, r *http.Request) {
	externalUserID := chi.URLParam(r, "externalUserID")
	if externalUserID == "" {
		h.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "user id is required")
		return
	}

	orders, err := h.repo.ListRecentOrdersForUser(r.Context(), externalUserID, 20)
	if err != nil {
		log.Printf("level=error component=api msg=\"recent orders lookup failed\" user=%s err=%v", externalUserID, err)
		h.writeError(w, http.StatusInternalServerError, app.CodeInternalError, "Failed to list orders")
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

func normalizePurchaseKind(purchaseType string) (domain.PurchaseKind, bool) {
	switch strings.TrimSpace(purchaseType) {
	// Older game clients send "virtualItem"; keep accepting it.
	case string(domain.PurchaseOneTimeItem), "virtualItem":
		return domain.PurchaseOneTimeItem, true
	case string(domain.PurchaseSubscription):
		return domain.PurchaseSubscription, true
	default:
		return "", false
	}
}

// writeGatewayError mirrors a provider failure to the caller: the provider's
// own status and message for structured rejections, 502 for network-level
// unavailability, 500 for anything unexpected.
func (h *RelayHandlers) writeGatewayError(w http.ResponseWriter, err error) {
	var gw *xsollaclient.GatewayError
	if errors.As(err, &gw) {
		if gw.Unavailable {
			h.writeError(w, http.StatusBadGateway, "GATEWAY_UNAVAILABLE", "payment provider is unreachable")
			return
		}
		code := gw.Code
		if code == "" {
			code = "GATEWAY_REJECTED"
		}
		h.writeError(w, gw.Status, code, gw.Message)
		return
	}

	log.Printf("level=error component=api msg=\"unexpected gateway failure\" err=%v", err)
	h.writeError(w, http.StatusInternalServerError, app.CodeInternalError, "Failed to create payment token")
}

func (h *RelayHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing structured JSON error responses.
func (h *RelayHandlers) writeError(w http.ResponseWriter, status int, code, message string) {
	h.writeJSON(w, status, app.ErrorBody{Error: app.ErrorDetail{Code: code, Message: message}})
}
