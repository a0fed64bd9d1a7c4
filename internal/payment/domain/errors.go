package domain

import (
	"errors"
	"fmt"
)

var (
	ErrPaymentNotFound  = errors.New("payment not found")
	ErrDuplicateSession = errors.New("payment already recorded for session")
)

// VerificationError means the notification is forged or malformed. Permanent.
type VerificationError struct {
	Reason string
	Err    error
}

func (e *VerificationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("webhook verification failed: %s: %v", e.Reason, e.Err)
	}
	return "webhook verification failed: " + e.Reason
}

func (e *VerificationError) Unwrap() error { return e.Err }

// DataIntegrityError means the event cannot be attributed to a user. It is
// acknowledged to the gateway and surfaced to operators.
type DataIntegrityError struct {
	SessionID string
	Reason    string
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("data integrity violation for session %s: %s", e.SessionID, e.Reason)
}

// ReconciliationError is an internal failure; the gateway should redeliver.
type ReconciliationError struct {
	Op        string
	SessionID string
	Err       error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("reconcile %s (session %s): %v", e.Op, e.SessionID, e.Err)
}

func (e *ReconciliationError) Unwrap() error { return e.Err }

// IsRetryable reports whether the gateway should redeliver after err
func IsRetryable(err error) bool {
	var rerr *ReconciliationError
	return errors.As(err, &rerr)
}
