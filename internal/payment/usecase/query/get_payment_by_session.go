package query

import (
	"context"
	"fmt"

	"github.com/tair/payment-reconciler/internal/payment/domain"
)

// GetPaymentBySessionQuery represents the query to get a payment by checkout session
type GetPaymentBySessionQuery struct {
	SessionID string
	UserID    string // the caller; records owned by others are reported as not found
}

// GetPaymentBySessionHandler handles get payment by session query
type GetPaymentBySessionHandler struct {
	repo domain.PaymentRepository
}

// NewGetPaymentBySessionHandler creates a new get payment by session handler
func NewGetPaymentBySessionHandler(repo domain.PaymentRepository) *GetPaymentBySessionHandler {
	return &GetPaymentBySessionHandler{repo: repo}
}

// Handle executes the get payment by session query
func (h *GetPaymentBySessionHandler) Handle(ctx context.Context, query GetPaymentBySessionQuery) (*domain.PaymentRecord, error) {
	if query.SessionID == "" {
		return nil, fmt.Errorf("session_id is required")
	}

	payment, err := h.repo.FindBySessionID(ctx, query.SessionID)
	if err != nil {
		return nil, err
	}

	if payment.UserID != query.UserID {
		return nil, domain.ErrPaymentNotFound
	}

	return payment, nil
}
