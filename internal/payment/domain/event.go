package domain

// EventType is the closed set of gateway notifications the service understands
type EventType string

// Event types
const (
	EventSessionCompleted          EventType = "checkout.session.completed"
	EventSessionAsyncPaymentFailed EventType = "checkout.session.async_payment_failed"
	EventPaymentSucceeded          EventType = "payment_intent.succeeded"
	EventPaymentFailed             EventType = "payment_intent.payment_failed"
	EventUnknown                   EventType = "unknown"
)

// ParseEventType maps a raw gateway type onto the closed set
func ParseEventType(raw string) EventType {
	switch t := EventType(raw); t {
	case EventSessionCompleted, EventSessionAsyncPaymentFailed, EventPaymentSucceeded, EventPaymentFailed:
		return t
	default:
		return EventUnknown
	}
}

// IsSessionEvent reports whether the event carries a checkout session to reconcile
func (t EventType) IsSessionEvent() bool {
	return t == EventSessionCompleted || t == EventSessionAsyncPaymentFailed
}

// VerifiedEvent is a gateway notification whose signature has been checked
type VerifiedEvent struct {
	ID          string
	Type        EventType
	RawType     string
	ReferenceID string
}

// SessionDetails is the authoritative view of a checkout session, fetched from the gateway
type SessionDetails struct {
	SessionID     string
	AmountTotal   int64
	PayerEmail    string
	UserID        string
	PaymentStatus string
}

// CheckoutSession is what the gateway returns when a checkout is started
type CheckoutSession struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

// Outcome is the acknowledged result of reconciling one event
type Outcome string

// Outcomes
const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeRejected  Outcome = "rejected"
	OutcomeError     Outcome = "error"
)
