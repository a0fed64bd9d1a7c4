package query

import (
	"context"
	"fmt"

	"github.com/tair/payment-reconciler/internal/payment/domain"
	userdomain "github.com/tair/payment-reconciler/internal/user/domain"
)

// GetEntitlementQuery represents the query for a user's entitlement and payments
type GetEntitlementQuery struct {
	UserID string
	Limit  int
	Offset int
}

// Entitlement is the caller-facing view of a user's paid status
type Entitlement struct {
	UserID     string                 `json:"user_id"`
	Email      string                 `json:"email"`
	Status     string                 `json:"status"`
	PaymentIDs []string               `json:"payment_ids"`
	Payments   []domain.PaymentRecord `json:"payments"`
}

// GetEntitlementHandler handles get entitlement query
type GetEntitlementHandler struct {
	users    userdomain.EntitlementRepository
	payments domain.PaymentRepository
}

// NewGetEntitlementHandler creates a new get entitlement handler
func NewGetEntitlementHandler(users userdomain.EntitlementRepository, payments domain.PaymentRepository) *GetEntitlementHandler {
	return &GetEntitlementHandler{users: users, payments: payments}
}

// Handle executes the get entitlement query
func (h *GetEntitlementHandler) Handle(ctx context.Context, query GetEntitlementQuery) (*Entitlement, error) {
	if query.UserID == "" {
		return nil, fmt.Errorf("user_id is required")
	}

	if query.Limit <= 0 {
		query.Limit = 10
	}

	if query.Limit > 100 {
		query.Limit = 100
	}

	if query.Offset < 0 {
		query.Offset = 0
	}

	user, err := h.users.FindByID(ctx, query.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	payments, err := h.payments.FindByUserID(ctx, query.UserID, query.Limit, query.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get user payments: %w", err)
	}
	if payments == nil {
		payments = []domain.PaymentRecord{}
	}

	return &Entitlement{
		UserID:     user.ID,
		Email:      user.Email,
		Status:     user.Status,
		PaymentIDs: user.PaymentIDs(),
		Payments:   payments,
	}, nil
}
