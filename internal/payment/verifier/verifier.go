package verifier

import (
	"errors"
	"time"

	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/tair/payment-reconciler/internal/payment/domain"
)

// StripeVerifier authenticates Stripe webhook deliveries
type StripeVerifier struct {
	secret    string
	tolerance time.Duration
}

// NewStripeVerifier creates a verifier bound to the endpoint signing secret.
// A zero tolerance falls back to Stripe's default of five minutes.
func NewStripeVerifier(secret string, tolerance time.Duration) *StripeVerifier {
	if tolerance <= 0 {
		tolerance = webhook.DefaultTolerance
	}
	return &StripeVerifier{secret: secret, tolerance: tolerance}
}

// Verify checks the v1 signature over the byte-exact body and decodes the event.
func (v *StripeVerifier) Verify(payload []byte, signatureHeader string) (domain.VerifiedEvent, error) {
	if signatureHeader == "" {
		return domain.VerifiedEvent{}, &domain.VerificationError{Reason: "missing signature header"}
	}
	if v.secret == "" {
		return domain.VerifiedEvent{}, &domain.VerificationError{Reason: "no signing secret configured"}
	}

	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, v.secret, webhook.ConstructEventOptions{
		Tolerance:                v.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return domain.VerifiedEvent{}, &domain.VerificationError{Reason: classify(err), Err: err}
	}

	if event.Type == "" {
		return domain.VerifiedEvent{}, &domain.VerificationError{Reason: "event has no type"}
	}

	eventType := domain.ParseEventType(string(event.Type))

	var referenceID string
	if event.Data != nil {
		referenceID, _ = event.Data.Object["id"].(string)
	}
	// Only session events are reconciled by reference; others are acknowledged as they are
	if referenceID == "" && eventType.IsSessionEvent() {
		return domain.VerifiedEvent{}, &domain.VerificationError{Reason: "event has no object reference"}
	}

	return domain.VerifiedEvent{
		ID:          event.ID,
		Type:        eventType,
		RawType:     string(event.Type),
		ReferenceID: referenceID,
	}, nil
}

func classify(err error) string {
	switch {
	case errors.Is(err, webhook.ErrNotSigned):
		return "missing signature header"
	case errors.Is(err, webhook.ErrInvalidHeader):
		return "malformed signature header"
	case errors.Is(err, webhook.ErrTooOld):
		return "timestamp outside tolerance"
	case errors.Is(err, webhook.ErrNoValidSignature):
		return "signature mismatch"
	default:
		return "malformed payload"
	}
}
