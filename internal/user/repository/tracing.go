package repository

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tair/payment-reconciler/internal/user/domain"
	"github.com/tair/payment-reconciler/pkg/database"
)

var tracer = otel.Tracer("user-repository")

// TracingUserRepository wraps an entitlement store with spans
type TracingUserRepository struct {
	next domain.EntitlementRepository
}

// NewTracingUserRepository creates a new repository with tracing
func NewTracingUserRepository(next domain.EntitlementRepository) *TracingUserRepository {
	return &TracingUserRepository{next: next}
}

// FindByID with tracing
func (r *TracingUserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "repository.FindByID",
		trace.WithAttributes(
			attribute.String("user.id", id),
		),
	)
	defer span.End()

	user, err := r.next.FindByID(ctx, id)
	if err != nil {
		addDBErrorToSpan(span, err)
		return nil, err
	}

	span.SetAttributes(attribute.String("user.status", user.Status))
	return user, nil
}

// FindByEmail with tracing
func (r *TracingUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "repository.FindByEmail")
	defer span.End()

	user, err := r.next.FindByEmail(ctx, email)
	if err != nil {
		addDBErrorToSpan(span, err)
		return nil, err
	}

	span.SetAttributes(
		attribute.String("user.id", user.ID),
		attribute.String("user.status", user.Status),
	)
	return user, nil
}

// UpdateStatusAndAppendPayment with tracing
func (r *TracingUserRepository) UpdateStatusAndAppendPayment(ctx context.Context, tx database.Tx, userID, paymentID string) error {
	ctx, span := tracer.Start(ctx, "repository.UpdateStatusAndAppendPayment",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("payment.id", paymentID),
		),
	)
	defer span.End()

	if err := r.next.UpdateStatusAndAppendPayment(ctx, tx, userID, paymentID); err != nil {
		addDBErrorToSpan(span, err)
		return err
	}
	return nil
}

func addDBErrorToSpan(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
