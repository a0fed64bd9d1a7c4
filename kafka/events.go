package kafka

import "time"

// PaymentReconciledEvent is emitted after a ledger write commits
type PaymentReconciledEvent struct {
	EventID         string    `json:"event_id"`
	EventType       string    `json:"event_type"`
	WebhookEventID  string    `json:"webhook_event_id"`
	PaymentID       string    `json:"payment_id"`
	SessionID       string    `json:"session_id"`
	UserID          string    `json:"user_id"`
	Amount          int64     `json:"amount"`
	Status          string    `json:"status"`
	EntitlementPaid bool      `json:"entitlement_paid"`
	Timestamp       time.Time `json:"timestamp"`
}

// Event types
const (
	EventTypePaymentReconciled = "payment.reconciled"
)

// Kafka topics
const (
	TopicPaymentReconciled = "payment-reconciled"
)
