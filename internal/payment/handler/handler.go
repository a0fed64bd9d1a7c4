package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/tair/payment-reconciler/internal/payment/domain"
	"github.com/tair/payment-reconciler/internal/payment/gateway"
	"github.com/tair/payment-reconciler/internal/payment/usecase/command"
	"github.com/tair/payment-reconciler/internal/payment/usecase/query"
	"github.com/tair/payment-reconciler/internal/payment/verifier"
	"github.com/tair/payment-reconciler/pkg/logger"
)

// maxWebhookBody caps inbound notification size
const maxWebhookBody = 1 << 20

// HealthCheck reports whether a backing dependency is reachable
type HealthCheck func(ctx context.Context) error

// PaymentHandler handles HTTP requests for payments using CQRS pattern
type PaymentHandler struct {
	// Command handlers
	reconcileHandler *command.ReconcileEventHandler
	checkoutHandler  *command.CreateCheckoutSessionHandler

	// Query handlers
	entitlementHandler *query.GetEntitlementHandler
	sessionHandler     *query.GetPaymentBySessionHandler

	verifier *verifier.StripeVerifier
	auth     *JWTAuthenticator
	breaker  *gateway.CircuitBreaker
	limiter  *RateLimiter
}

// NewPaymentHandlerWithDI creates a new payment handler using dependency injection
func NewPaymentHandlerWithDI(
	reconcileHandler *command.ReconcileEventHandler,
	checkoutHandler *command.CreateCheckoutSessionHandler,
	entitlementHandler *query.GetEntitlementHandler,
	sessionHandler *query.GetPaymentBySessionHandler,
	eventVerifier *verifier.StripeVerifier,
	auth *JWTAuthenticator,
	breaker *gateway.CircuitBreaker,
) *PaymentHandler {
	return &PaymentHandler{
		reconcileHandler:   reconcileHandler,
		checkoutHandler:    checkoutHandler,
		entitlementHandler: entitlementHandler,
		sessionHandler:     sessionHandler,
		verifier:           eventVerifier,
		auth:               auth,
		breaker:            breaker,
	}
}

type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// WebhookAck is the body the gateway expects on success
type WebhookAck struct {
	Received bool `json:"received"`
}

// HandleWebhook handles POST /api/v1/payment/webhook
func (h *PaymentHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// signature covers the exact bytes, so the body is never decoded before verification
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		logger.Warn(ctx).Err(err).Msg("Failed to read webhook body")
		respondJSON(w, http.StatusBadRequest, Response{
			Success: false,
			Error:   "Invalid request body",
		})
		return
	}

	event, err := h.verifier.Verify(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		logger.Warn(ctx).
			Err(err).
			Str("remote_addr", r.RemoteAddr).
			Msg("Rejected unverifiable webhook")
		respondJSON(w, http.StatusBadRequest, Response{
			Success: false,
			Error:   "Webhook signature verification failed",
		})
		return
	}

	outcome, err := h.reconcileHandler.Handle(ctx, event)
	if err != nil && domain.IsRetryable(err) {
		respondJSON(w, http.StatusInternalServerError, Response{
			Success: false,
			Error:   "Failed to handle webhook event",
		})
		return
	}

	logger.Debug(ctx).
		Str("event_id", event.ID).
		Str("event_type", event.RawType).
		Str("outcome", string(outcome)).
		Msg("Webhook acknowledged")

	respondJSON(w, http.StatusOK, WebhookAck{Received: true})
}

// CreateCheckoutSession handles POST /api/v1/payment/create-checkout-session
func (h *PaymentHandler) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		respondJSON(w, http.StatusUnauthorized, Response{
			Success: false,
			Error:   "User not found in context",
		})
		return
	}

	cmd := command.CreateCheckoutSessionCommand{
		UserID: user.ID,
		Email:  user.Email,
	}

	session, err := h.checkoutHandler.Handle(r.Context(), cmd)
	if err != nil {
		logger.Error(r.Context()).Err(err).Str("user_id", user.ID).Msg("Failed to create checkout session")
		status := http.StatusInternalServerError
		if errors.Is(err, gateway.ErrCircuitOpen) {
			status = http.StatusServiceUnavailable
		}
		respondJSON(w, status, Response{
			Success: false,
			Error:   "Failed to create Stripe Checkout session",
		})
		return
	}

	respondJSON(w, http.StatusCreated, Response{
		Success: true,
		Message: "Checkout session created",
		Data:    session,
	})
}

// GetMyEntitlement handles GET /api/v1/payment/me
func (h *PaymentHandler) GetMyEntitlement(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		respondJSON(w, http.StatusUnauthorized, Response{
			Success: false,
			Error:   "User not found in context",
		})
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	q := query.GetEntitlementQuery{
		UserID: user.ID,
		Limit:  limit,
		Offset: offset,
	}

	entitlement, err := h.entitlementHandler.Handle(r.Context(), q)
	if err != nil {
		logger.Error(r.Context()).Err(err).Msg("Failed to get entitlement")
		respondJSON(w, http.StatusInternalServerError, Response{
			Success: false,
			Error:   "Failed to get payments",
		})
		return
	}

	respondJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    entitlement,
	})
}

// GetPaymentBySession handles GET /api/v1/payment/sessions/{sessionId}
func (h *PaymentHandler) GetPaymentBySession(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		respondJSON(w, http.StatusUnauthorized, Response{
			Success: false,
			Error:   "User not found in context",
		})
		return
	}

	q := query.GetPaymentBySessionQuery{
		SessionID: mux.Vars(r)["sessionId"],
		UserID:    user.ID,
	}

	payment, err := h.sessionHandler.Handle(r.Context(), q)
	if errors.Is(err, domain.ErrPaymentNotFound) {
		respondJSON(w, http.StatusNotFound, Response{
			Success: false,
			Error:   "Payment not found",
		})
		return
	}
	if err != nil {
		logger.Error(r.Context()).Err(err).Msg("Failed to get payment")
		respondJSON(w, http.StatusInternalServerError, Response{
			Success: false,
			Error:   "Failed to get payment",
		})
		return
	}

	respondJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    payment,
	})
}

// GetMiddlewareConfig returns middleware configuration
func (h *PaymentHandler) GetMiddlewareConfig() MiddlewareConfig {
	return DefaultMiddlewareConfig(h.auth, h.limiter)
}

// UseCheckoutRateLimiter limits checkout creation per user. Call before RegisterRoutes.
func (h *PaymentHandler) UseCheckoutRateLimiter(limiter *RateLimiter) {
	h.limiter = limiter
}

// RegisterRoutes registers all payment routes
func (h *PaymentHandler) RegisterRoutes(router *mux.Router) {
	middlewareConfig := h.GetMiddlewareConfig()
	authenticated := middlewareConfig.GetAuthMiddleware()
	limited := middlewareConfig.GetRateLimitMiddleware()

	api := router.PathPrefix("/api/v1/payment").Subrouter()

	// Gateway callback, authenticated by signature
	api.HandleFunc("/webhook", h.HandleWebhook).Methods("POST")

	// Authenticated user routes
	api.HandleFunc("/create-checkout-session", authenticated(limited(h.CreateCheckoutSession))).Methods("POST")
	api.HandleFunc("/me", authenticated(h.GetMyEntitlement)).Methods("GET")
	api.HandleFunc("/sessions/{sessionId}", authenticated(h.GetPaymentBySession)).Methods("GET")
}

// RegisterHealthCheck registers health check endpoint. A nil check means the
// store has no external dependency.
func (h *PaymentHandler) RegisterHealthCheck(router *mux.Router, check HealthCheck) {
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				respondJSON(w, http.StatusServiceUnavailable, Response{
					Success: false,
					Error:   "Database unavailable",
				})
				return
			}
		}

		var data interface{}
		if h.breaker != nil {
			data = map[string]interface{}{"gateway": h.breaker.Stats()}
		}

		respondJSON(w, http.StatusOK, Response{
			Success: true,
			Message: "Payment service is healthy",
			Data:    data,
		})
	}).Methods("GET")
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
