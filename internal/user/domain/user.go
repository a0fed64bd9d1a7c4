package domain

import (
	"context"
	"errors"
	"time"

	"github.com/tair/payment-reconciler/pkg/database"
)

// Entitlement statuses
const (
	StatusNotPaid = "not_paid"
	StatusPaid    = "paid"
)

var ErrUserNotFound = errors.New("user not found")

// User is the entitlement-relevant view of an account. Registration owns the
// identity columns; reconciliation only touches Status and Payments.
type User struct {
	ID          string        `json:"id" gorm:"type:varchar(64);primaryKey"`
	Username    string        `json:"username" gorm:"not null"`
	Email       string        `json:"email" gorm:"uniqueIndex;not null"`
	PhoneNumber string        `json:"phone_number" gorm:"uniqueIndex;not null"`
	Status      string        `json:"status" gorm:"type:varchar(16);not null;default:'not_paid'"`
	Payments    []UserPayment `json:"payments" gorm:"foreignKey:UserID"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// TableName specifies the table name
func (User) TableName() string {
	return "users"
}

// IsPaid reports whether the user holds the paid entitlement
func (u *User) IsPaid() bool {
	return u.Status == StatusPaid
}

// PaymentIDs returns the attributed payment ids in append order
func (u *User) PaymentIDs() []string {
	ids := make([]string, 0, len(u.Payments))
	for _, p := range u.Payments {
		ids = append(ids, p.PaymentID)
	}
	return ids
}

// UserPayment links a succeeded payment to its owner. Append-only.
type UserPayment struct {
	Seq       uint64    `json:"-" gorm:"primaryKey;autoIncrement"`
	UserID    string    `json:"-" gorm:"type:varchar(64);not null;index"`
	PaymentID string    `json:"payment_id" gorm:"type:varchar(36);not null;uniqueIndex"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name
func (UserPayment) TableName() string {
	return "user_payments"
}

// EntitlementRepository is the user entitlement store
type EntitlementRepository interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id string) (*User, error)
	// UpdateStatusAndAppendPayment marks the user paid and appends paymentID to
	// its payments in one store operation.
	UpdateStatusAndAppendPayment(ctx context.Context, tx database.Tx, userID, paymentID string) error
}
