package handler

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tair/payment-reconciler/internal/config"
	"github.com/tair/payment-reconciler/internal/payment/gateway"
	"github.com/tair/payment-reconciler/internal/payment/repository/inmemory"
	"github.com/tair/payment-reconciler/internal/payment/usecase/command"
	"github.com/tair/payment-reconciler/internal/payment/usecase/query"
	"github.com/tair/payment-reconciler/internal/payment/verifier"
	userdomain "github.com/tair/payment-reconciler/internal/user/domain"
)

const webhookSecret = "whsec_handler_test"

type testEnv struct {
	router *mux.Router
	store  *inmemory.Store
	key    *rsa.PrivateKey

	mu       sync.Mutex
	sessions map[string]string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		store: inmemory.NewStore(),
		sessions: map[string]string{
			"sess_123":   `{"id":"sess_123","object":"checkout.session","amount_total":5000,"customer_details":{"email":"a@b.com"},"metadata":{"userId":"u1"},"payment_status":"paid"}`,
			"sess_456":   `{"id":"sess_456","object":"checkout.session","amount_total":5000,"customer_details":{"email":"bob@b.com"},"metadata":{"userId":"u2"},"payment_status":"unpaid"}`,
			"sess_mixed": `{"id":"sess_mixed","object":"checkout.session","amount_total":5000,"customer_details":{"email":"bob@b.com"},"metadata":{"userId":"u1"},"payment_status":"paid"}`,
		},
	}
	require.NoError(t, env.store.AddUser(userdomain.User{ID: "u1", Username: "ada", Email: "a@b.com", PhoneNumber: "1"}))
	require.NoError(t, env.store.AddUser(userdomain.User{ID: "u2", Username: "bob", Email: "bob@b.com", PhoneNumber: "2"}))

	stripeAPI := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodPost && r.URL.Path == "/v1/checkout/sessions" {
			w.Write([]byte(`{"id":"sess_new","object":"checkout.session","url":"https://checkout.stripe.com/c/pay/sess_new"}`))
			return
		}
		id := strings.TrimPrefix(r.URL.Path, "/v1/checkout/sessions/")
		if id == "sess_outage" {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error":{"type":"api_error","message":"Stripe is down"}}`))
			return
		}
		env.mu.Lock()
		body, ok := env.sessions[id]
		env.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"No such checkout.session"}}`))
			return
		}
		w.Write([]byte(body))
	}))
	t.Cleanup(stripeAPI.Close)

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	env.key = key
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	publicPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})

	auth, err := NewJWTAuthenticator(string(publicPEM), env.store)
	require.NoError(t, err)

	gw := gateway.NewStripeGateway(config.StripeConfig{
		SecretKey:  "sk_test_123",
		APIBaseURL: stripeAPI.URL,
		SuccessURL: "https://example.com/success",
		CancelURL:  "https://example.com/cancel",
		FeeName:    "Premium access",
		FeeAmount:  5000,
		Currency:   "usd",
	}, gateway.WithMaxNetworkRetries(0))

	h := NewPaymentHandlerWithDI(
		command.NewReconcileEventHandler(env.store, env.store, env.store, gw),
		command.NewCreateCheckoutSessionHandler(gw),
		query.NewGetEntitlementHandler(env.store, env.store),
		query.NewGetPaymentBySessionHandler(env.store),
		verifier.NewStripeVerifier(webhookSecret, time.Minute),
		auth,
		gw.Breaker(),
	)

	env.router = mux.NewRouter()
	RegisterMiddlewares(env.router, h.GetMiddlewareConfig())
	h.RegisterRoutes(env.router)
	h.RegisterHealthCheck(env.router, nil)
	return env
}

func (e *testEnv) token(t *testing.T, key *rsa.PrivateKey, userID, email string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := tok.SignedString(key)
	require.NoError(t, err)
	return signed
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func webhookRequest(eventType, sessionID, secret string) *http.Request {
	payload := []byte(fmt.Sprintf(`{"id":"evt_%s_%s","object":"event","type":%q,"data":{"object":{"id":%q,"object":"checkout.session"}}}`,
		sessionID, strings.ReplaceAll(eventType, ".", "_"), eventType, sessionID))
	return signedWebhookRequest(payload, secret)
}

func signedWebhookRequest(payload []byte, secret string) *http.Request {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("%d.", ts)))
	mac.Write(payload)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payment/webhook", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Stripe-Signature", fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil))))
	return req
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestWebhook_SessionCompleted(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(webhookRequest("checkout.session.completed", "sess_123", webhookSecret))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"received":true}`, rec.Body.String())

	payment, err := env.store.FindBySessionID(context.Background(), "sess_123")
	require.NoError(t, err)
	assert.Equal(t, int64(5000), payment.Amount)

	user, err := env.store.FindByID(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, user.IsPaid())

	// redelivery is acknowledged without a second record
	rec = env.do(webhookRequest("checkout.session.completed", "sess_123", webhookSecret))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, env.store.Payments(), 1)
}

func TestWebhook_AsyncPaymentFailed(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(webhookRequest("checkout.session.async_payment_failed", "sess_456", webhookSecret))
	require.Equal(t, http.StatusOK, rec.Code)

	payment, err := env.store.FindBySessionID(context.Background(), "sess_456")
	require.NoError(t, err)
	assert.Equal(t, "failed", string(payment.Status))

	user, err := env.store.FindByID(context.Background(), "u2")
	require.NoError(t, err)
	assert.False(t, user.IsPaid())
}

func TestWebhook_BadSignatureIsRejected(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(webhookRequest("checkout.session.completed", "sess_123", "whsec_wrong"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, decode(t, rec)["success"])

	req := webhookRequest("checkout.session.completed", "sess_123", webhookSecret)
	req.Header.Del("Stripe-Signature")
	rec = env.do(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Empty(t, env.store.Payments())
}

func TestWebhook_IntegrityViolationIsAcknowledged(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(webhookRequest("checkout.session.completed", "sess_mixed", webhookSecret))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"received":true}`, rec.Body.String())
	assert.Empty(t, env.store.Payments())
}

func TestWebhook_GatewayOutageAsksForRetry(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(webhookRequest("checkout.session.completed", "sess_outage", webhookSecret))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, env.store.Payments())
}

func TestWebhook_UnknownSessionIsAcknowledged(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(webhookRequest("checkout.session.completed", "sess_unknown", webhookSecret))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"received":true}`, rec.Body.String())
	assert.Empty(t, env.store.Payments())
}

func TestWebhook_UnhandledTypesAreAcknowledged(t *testing.T) {
	env := newTestEnv(t)

	for _, eventType := range []string{"payment_intent.succeeded", "payment_intent.payment_failed", "invoice.paid"} {
		rec := env.do(webhookRequest(eventType, "sess_123", webhookSecret))
		assert.Equal(t, http.StatusOK, rec.Code, eventType)
	}

	// events whose object carries no id
	for _, eventType := range []string{"balance.available", "payment_intent.succeeded"} {
		payload := []byte(fmt.Sprintf(`{"id":"evt_noid","object":"event","type":%q,"data":{"object":{"object":"balance"}}}`, eventType))
		rec := env.do(signedWebhookRequest(payload, webhookSecret))
		assert.Equal(t, http.StatusOK, rec.Code, eventType)
		assert.JSONEq(t, `{"received":true}`, rec.Body.String())
	}
	assert.Empty(t, env.store.Payments())
}

func TestCreateCheckoutSession(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payment/create-checkout-session", nil)
	req.Header.Set("Authorization", "Bearer "+env.token(t, env.key, "u1", "a@b.com"))
	rec := env.do(req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decode(t, rec)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "sess_new", data["session_id"])
	assert.Equal(t, "https://checkout.stripe.com/c/pay/sess_new", data["url"])
}

func TestCreateCheckoutSession_Unauthorized(t *testing.T) {
	env := newTestEnv(t)
	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic abc"},
		{"garbage token", "Bearer not.a.token"},
		{"foreign signing key", "Bearer " + env.token(t, otherKey, "u1", "a@b.com")},
		{"unknown email", "Bearer " + env.token(t, env.key, "u9", "ghost@b.com")},
		{"subject mismatch", "Bearer " + env.token(t, env.key, "u2", "a@b.com")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/payment/create-checkout-session", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := env.do(req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestGetMyEntitlement(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusOK, env.do(webhookRequest("checkout.session.completed", "sess_123", webhookSecret)).Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payment/me", nil)
	req.Header.Set("Authorization", "Bearer "+env.token(t, env.key, "u1", "a@b.com"))
	rec := env.do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	data := decode(t, rec)["data"].(map[string]interface{})
	assert.Equal(t, "paid", data["status"])
	assert.Len(t, data["payments"], 1)
}

func TestGetPaymentBySession(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusOK, env.do(webhookRequest("checkout.session.completed", "sess_123", webhookSecret)).Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payment/sessions/sess_123", nil)
	req.Header.Set("Authorization", "Bearer "+env.token(t, env.key, "u1", "a@b.com"))
	rec := env.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	data := decode(t, rec)["data"].(map[string]interface{})
	assert.Equal(t, "sess_123", data["session_id"])

	req = httptest.NewRequest(http.MethodGet, "/api/v1/payment/sessions/sess_123", nil)
	req.Header.Set("Authorization", "Bearer "+env.token(t, env.key, "u2", "bob@b.com"))
	assert.Equal(t, http.StatusNotFound, env.do(req).Code)
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	data := decode(t, rec)["data"].(map[string]interface{})
	gw := data["gateway"].(map[string]interface{})
	assert.Equal(t, "closed", gw["state"])

	router := mux.NewRouter()
	(&PaymentHandler{}).RegisterHealthCheck(router, func(ctx context.Context) error {
		return errors.New("db down")
	})
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAuthenticator_NoKeyConfigured(t *testing.T) {
	auth, err := NewJWTAuthenticator("", inmemory.NewStore())
	require.NoError(t, err)

	_, err = auth.Authenticate(context.Background(), "anything")
	assert.Error(t, err)

	_, err = NewJWTAuthenticator("not a pem", inmemory.NewStore())
	assert.Error(t, err)
}
