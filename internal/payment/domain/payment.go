package domain

import (
	"context"
	"time"

	"github.com/tair/payment-reconciler/pkg/database"
)

// PaymentStatus is the ledger state of one checkout attempt
type PaymentStatus string

// Payment statuses
const (
	StatusPending   PaymentStatus = "pending"
	StatusSucceeded PaymentStatus = "succeeded"
	StatusFailed    PaymentStatus = "failed"
)

// IsTerminal reports whether the status may be written by reconciliation
func (s PaymentStatus) IsTerminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// PaymentRecord is one ledger entry, written once per gateway session and never updated
type PaymentRecord struct {
	ID        string        `json:"id" gorm:"type:varchar(36);primaryKey"`
	UserID    string        `json:"user_id" gorm:"type:varchar(64);not null;index"`
	SessionID string        `json:"session_id" gorm:"type:varchar(255);not null;uniqueIndex"`
	Amount    int64         `json:"amount" gorm:"not null;check:chk_payments_amount,amount >= 0"`
	Status    PaymentStatus `json:"status" gorm:"type:varchar(16);not null"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// TableName specifies the table name
func (PaymentRecord) TableName() string {
	return "payments"
}

// PaymentRepository is the payment ledger store
type PaymentRepository interface {
	// FindBySessionID returns ErrPaymentNotFound when the session was never recorded.
	FindBySessionID(ctx context.Context, sessionID string) (*PaymentRecord, error)
	// Insert returns ErrDuplicateSession when a record for the session already exists.
	Insert(ctx context.Context, tx database.Tx, payment *PaymentRecord) error
	FindByUserID(ctx context.Context, userID string, limit, offset int) ([]PaymentRecord, error)
}
