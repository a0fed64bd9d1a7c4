package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/tair/payment-reconciler/internal/payment/domain"
)

// ErrInvalidCheckoutRequest is returned when the caller identity is incomplete
var ErrInvalidCheckoutRequest = errors.New("invalid checkout request")

// CheckoutCreator opens a hosted checkout at the gateway
type CheckoutCreator interface {
	CreateCheckoutSession(ctx context.Context, userID, email string) (*domain.CheckoutSession, error)
}

// CreateCheckoutSessionCommand represents the command to start a checkout
type CreateCheckoutSessionCommand struct {
	UserID string
	Email  string
}

// CreateCheckoutSessionHandler handles create checkout session command
type CreateCheckoutSessionHandler struct {
	gateway CheckoutCreator
}

// NewCreateCheckoutSessionHandler creates a new create checkout session handler
func NewCreateCheckoutSessionHandler(gateway CheckoutCreator) *CreateCheckoutSessionHandler {
	return &CreateCheckoutSessionHandler{gateway: gateway}
}

// Handle executes the create checkout session command. The user id travels
// in the session metadata and the email pre-fills the payer, which is what
// the reconciliation cross-check later compares.
func (h *CreateCheckoutSessionHandler) Handle(ctx context.Context, cmd CreateCheckoutSessionCommand) (*domain.CheckoutSession, error) {
	if cmd.UserID == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidCheckoutRequest)
	}
	if cmd.Email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrInvalidCheckoutRequest)
	}

	session, err := h.gateway.CreateCheckoutSession(ctx, cmd.UserID, cmd.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	return session, nil
}
