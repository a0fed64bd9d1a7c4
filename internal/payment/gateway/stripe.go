package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tair/payment-reconciler/internal/config"
	"github.com/tair/payment-reconciler/internal/payment/domain"
	"github.com/tair/payment-reconciler/pkg/logger"
)

// metadataUserID is the checkout metadata key carrying the paying user's id
const metadataUserID = "userId"

// StripeGateway talks to the Stripe REST API
type StripeGateway struct {
	api       *client.API
	cfg       config.StripeConfig
	breaker   *CircuitBreaker
	onFailure func(op string)
	retries   int64
}

// Option customizes a StripeGateway
type Option func(*StripeGateway)

// WithBreaker replaces the default circuit breaker
func WithBreaker(cb *CircuitBreaker) Option {
	return func(g *StripeGateway) { g.breaker = cb }
}

// WithMaxNetworkRetries sets how often the SDK retries a failed request
func WithMaxNetworkRetries(n int64) Option {
	return func(g *StripeGateway) { g.retries = n }
}

// WithFailureHook is called once per failed gateway call
func WithFailureHook(fn func(op string)) Option {
	return func(g *StripeGateway) { g.onFailure = fn }
}

// NewStripeGateway builds a client for the configured account. APIBaseURL
// points the client at a different host, which tests use for a fake API.
func NewStripeGateway(cfg config.StripeConfig, opts ...Option) *StripeGateway {
	g := &StripeGateway{
		cfg:     cfg,
		breaker: NewCircuitBreaker("stripe", 5, 30*time.Second),
		retries: 2,
	}
	for _, opt := range opts {
		opt(g)
	}

	backendConfig := &stripe.BackendConfig{
		HTTPClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		MaxNetworkRetries: stripe.Int64(g.retries),
	}
	if cfg.APIBaseURL != "" {
		backendConfig.URL = stripe.String(cfg.APIBaseURL)
	}
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, backendConfig)

	g.api = &client.API{}
	g.api.Init(cfg.SecretKey, &stripe.Backends{
		API:     backend,
		Connect: backend,
		Uploads: backend,
	})

	logger.Logger.Info().
		Str("api_base", backendURL(cfg.APIBaseURL)).
		Int64("max_network_retries", g.retries).
		Msg("Stripe gateway initialized")

	return g
}

// Breaker exposes the circuit breaker for health reporting
func (g *StripeGateway) Breaker() *CircuitBreaker {
	return g.breaker
}

// FetchSession re-reads a checkout session. Event payloads are never trusted
// for amounts or attribution.
func (g *StripeGateway) FetchSession(ctx context.Context, sessionID string) (*domain.SessionDetails, error) {
	ctx, span := otel.Tracer("stripe-gateway").Start(ctx, "stripe.checkout_sessions.get",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("checkout.session_id", sessionID)),
	)
	defer span.End()

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	var sess *stripe.CheckoutSession
	err := g.breaker.Call(func() error {
		var err error
		sess, err = g.api.CheckoutSessions.Get(sessionID, params)
		return err
	}, countsAsOutage)
	if err != nil {
		g.fail(span, "fetch_session", err)
		if status, ok := rejectedLookup(err); ok {
			return nil, &domain.DataIntegrityError{
				SessionID: sessionID,
				Reason:    fmt.Sprintf("gateway rejected session lookup (%d)", status),
			}
		}
		return nil, fmt.Errorf("failed to fetch checkout session %s: %w", sessionID, err)
	}

	details := &domain.SessionDetails{
		SessionID:     sess.ID,
		AmountTotal:   sess.AmountTotal,
		PayerEmail:    sess.CustomerEmail,
		UserID:        sess.Metadata[metadataUserID],
		PaymentStatus: string(sess.PaymentStatus),
	}
	if sess.CustomerDetails != nil && sess.CustomerDetails.Email != "" {
		details.PayerEmail = sess.CustomerDetails.Email
	}
	if details.SessionID == "" {
		details.SessionID = sessionID
	}

	span.SetAttributes(
		attribute.Int64("checkout.amount_total", details.AmountTotal),
		attribute.String("checkout.payment_status", details.PaymentStatus),
	)
	return details, nil
}

// CreateCheckoutSession starts a single-item hosted checkout for the user
func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, userID, email string) (*domain.CheckoutSession, error) {
	ctx, span := otel.Tracer("stripe-gateway").Start(ctx, "stripe.checkout_sessions.create",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	params := &stripe.CheckoutSessionParams{
		Mode:          stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:    stripe.String(g.cfg.SuccessURL),
		CancelURL:     stripe.String(g.cfg.CancelURL),
		CustomerEmail: stripe.String(email),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(g.cfg.Currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(g.cfg.FeeName),
					},
					UnitAmount: stripe.Int64(g.cfg.FeeAmount),
				},
				Quantity: stripe.Int64(1),
			},
		},
		Metadata: map[string]string{metadataUserID: userID},
	}
	params.Context = ctx

	var sess *stripe.CheckoutSession
	err := g.breaker.Call(func() error {
		var err error
		sess, err = g.api.CheckoutSessions.New(params)
		return err
	}, countsAsOutage)
	if err != nil {
		g.fail(span, "create_session", err)
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	span.SetAttributes(attribute.String("checkout.session_id", sess.ID))
	logger.Info(ctx).
		Str("user_id", userID).
		Str("session_id", sess.ID).
		Msg("Checkout session created")

	return &domain.CheckoutSession{SessionID: sess.ID, URL: sess.URL}, nil
}

func (g *StripeGateway) fail(span trace.Span, op string, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, op+" failed")
	if g.onFailure != nil {
		g.onFailure(op)
	}
}

// countsAsOutage keeps client errors such as an unknown session id from
// tripping the breaker.
func countsAsOutage(err error) bool {
	var serr *stripe.Error
	if errors.As(err, &serr) {
		return serr.HTTPStatusCode >= 500 || serr.HTTPStatusCode == http.StatusTooManyRequests
	}
	return !errors.Is(err, context.Canceled)
}

// rejectedLookup reports a session the gateway will never return, such as an
// unknown id. Auth and throttling failures stay retryable.
func rejectedLookup(err error) (int, bool) {
	var serr *stripe.Error
	if !errors.As(err, &serr) {
		return 0, false
	}
	switch serr.HTTPStatusCode {
	case http.StatusBadRequest, http.StatusNotFound:
		return serr.HTTPStatusCode, true
	}
	return 0, false
}

func backendURL(override string) string {
	if override != "" {
		return override
	}
	return stripe.APIURL
}
