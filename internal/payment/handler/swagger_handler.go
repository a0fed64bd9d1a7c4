package handler

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterSwaggerDocs registers Swagger documentation routes
// @Summary Swagger documentation
// @Description Swagger API documentation
// @Tags Swagger
// @Success 200 {string} string "Swagger UI"
// @Router /swagger/ [get]
func RegisterSwaggerDocs(router *mux.Router, swaggerHandler http.Handler) {
	router.PathPrefix("/swagger/").Handler(swaggerHandler)
}

// HandleWebhook godoc
// @Summary Receive a Stripe webhook
// @Description Verifies the Stripe-Signature header over the raw body and reconciles checkout session events
// @Tags Webhooks
// @Accept json
// @Produce json
// @Param Stripe-Signature header string true "Stripe signature header (t=...,v1=...)"
// @Success 200 {object} object{received=bool}
// @Failure 400 {object} object{success=bool,error=string}
// @Failure 500 {object} object{success=bool,error=string}
// @Router /api/v1/payment/webhook [post]
func (h *PaymentHandler) HandleWebhookDoc() {}

// CreateCheckoutSession godoc
// @Summary Create a checkout session
// @Description Start a Stripe hosted checkout for the configured fee (Authenticated users)
// @Tags Payments
// @Security BearerAuth
// @Produce json
// @Success 201 {object} object{success=bool,message=string,data=object{session_id=string,url=string}}
// @Failure 401 {object} object{success=bool,error=string}
// @Failure 500 {object} object{success=bool,error=string}
// @Failure 503 {object} object{success=bool,error=string}
// @Router /api/v1/payment/create-checkout-session [post]
func (h *PaymentHandler) CreateCheckoutSessionDoc() {}

// GetMyEntitlement godoc
// @Summary Get my entitlement
// @Description Get the paid status and payments of the authenticated user
// @Tags Payments
// @Security BearerAuth
// @Produce json
// @Param limit query int false "Limit"
// @Param offset query int false "Offset"
// @Success 200 {object} object{success=bool,data=object{user_id=string,email=string,status=string,payment_ids=array,payments=array}}
// @Failure 401 {object} object{success=bool,error=string}
// @Failure 500 {object} object{success=bool,error=string}
// @Router /api/v1/payment/me [get]
func (h *PaymentHandler) GetMyEntitlementDoc() {}

// GetPaymentBySession godoc
// @Summary Get payment by checkout session
// @Description Get the ledger entry for one of the caller's checkout sessions
// @Tags Payments
// @Security BearerAuth
// @Produce json
// @Param sessionId path string true "Checkout session ID"
// @Success 200 {object} object{success=bool,data=object}
// @Failure 401 {object} object{success=bool,error=string}
// @Failure 404 {object} object{success=bool,error=string}
// @Router /api/v1/payment/sessions/{sessionId} [get]
func (h *PaymentHandler) GetPaymentBySessionDoc() {}

// HealthCheck godoc
// @Summary Health check
// @Description Check service health, database connectivity and gateway circuit state
// @Tags Health
// @Produce json
// @Success 200 {object} object{success=bool,message=string,data=object}
// @Failure 503 {object} object{success=bool,error=string}
// @Router /health [get]
func (h *PaymentHandler) HealthCheckDoc() {}
