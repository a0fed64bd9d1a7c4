package main

// @title Payment Reconciliation Service API
// @version 1.0
// @description Stripe checkout, webhook reconciliation and user entitlement service with full observability stack (Prometheus, Jaeger)
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.email support@example.com

// @license.name MIT

// @host localhost:8083
// @BasePath /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// @tag.name Webhooks
// @tag.description Gateway notification endpoint

// @tag.name Payments
// @tag.description Checkout and entitlement endpoints

// @tag.name Health
// @tag.description Health check endpoints
