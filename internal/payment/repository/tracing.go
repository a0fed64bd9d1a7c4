package repository

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tair/payment-reconciler/internal/payment/domain"
	"github.com/tair/payment-reconciler/pkg/database"
)

var tracer = otel.Tracer("payment-repository")

// TracingPaymentRepository wraps a payment ledger with spans
type TracingPaymentRepository struct {
	next domain.PaymentRepository
}

// NewTracingPaymentRepository creates a new repository with tracing
func NewTracingPaymentRepository(next domain.PaymentRepository) *TracingPaymentRepository {
	return &TracingPaymentRepository{next: next}
}

// FindBySessionID with tracing
func (r *TracingPaymentRepository) FindBySessionID(ctx context.Context, sessionID string) (*domain.PaymentRecord, error) {
	ctx, span := tracer.Start(ctx, "repository.FindBySessionID",
		trace.WithAttributes(
			attribute.String("payment.session_id", sessionID),
		),
	)
	defer span.End()

	payment, err := r.next.FindBySessionID(ctx, sessionID)
	if err != nil {
		// a miss is the normal first-delivery path
		if !errors.Is(err, domain.ErrPaymentNotFound) {
			recordError(span, err)
		}
		return nil, err
	}

	span.SetAttributes(attribute.String("payment.id", payment.ID))
	return payment, nil
}

// Insert with tracing
func (r *TracingPaymentRepository) Insert(ctx context.Context, tx database.Tx, payment *domain.PaymentRecord) error {
	ctx, span := tracer.Start(ctx, "repository.Insert",
		trace.WithAttributes(
			attribute.String("payment.session_id", payment.SessionID),
			attribute.String("payment.status", string(payment.Status)),
			attribute.Int64("payment.amount", payment.Amount),
		),
	)
	defer span.End()

	if err := r.next.Insert(ctx, tx, payment); err != nil {
		recordError(span, err)
		return err
	}

	span.SetAttributes(attribute.String("payment.id", payment.ID))
	return nil
}

// FindByUserID with tracing
func (r *TracingPaymentRepository) FindByUserID(ctx context.Context, userID string, limit, offset int) ([]domain.PaymentRecord, error) {
	ctx, span := tracer.Start(ctx, "repository.FindByUserID",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Int("query.limit", limit),
			attribute.Int("query.offset", offset),
		),
	)
	defer span.End()

	payments, err := r.next.FindByUserID(ctx, userID, limit, offset)
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("result.count", len(payments)))
	return payments, nil
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
