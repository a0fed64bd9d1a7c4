package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tair/payment-reconciler/internal/payment/domain"
	"github.com/tair/payment-reconciler/internal/payment/metrics"
	userdomain "github.com/tair/payment-reconciler/internal/user/domain"
	"github.com/tair/payment-reconciler/kafka"
	"github.com/tair/payment-reconciler/pkg/database"
	"github.com/tair/payment-reconciler/pkg/logger"
)

// DefaultReconcileTimeout bounds the detail fetch and the transaction of one event
const DefaultReconcileTimeout = 10 * time.Second

// SessionFetcher re-reads authoritative session details from the gateway
type SessionFetcher interface {
	FetchSession(ctx context.Context, sessionID string) (*domain.SessionDetails, error)
}

// EventPublisher announces committed ledger writes
type EventPublisher interface {
	PublishPaymentReconciled(ctx context.Context, event kafka.PaymentReconciledEvent) error
}

// ProcessedEventCache short-circuits redelivered webhook event ids
type ProcessedEventCache interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, eventID string, outcome string) error
}

// ReconcileEventHandler turns verified gateway events into ledger and
// entitlement writes
type ReconcileEventHandler struct {
	payments  domain.PaymentRepository
	users     userdomain.EntitlementRepository
	txManager database.TxManager
	fetcher   SessionFetcher

	publisher EventPublisher
	cache     ProcessedEventCache
	metrics   *metrics.Metrics
	timeout   time.Duration
}

// ReconcileOption configures optional collaborators
type ReconcileOption func(*ReconcileEventHandler)

// WithPublisher publishes a payment.reconciled message after each commit
func WithPublisher(p EventPublisher) ReconcileOption {
	return func(h *ReconcileEventHandler) { h.publisher = p }
}

// WithEventCache enables the processed-event fast path
func WithEventCache(c ProcessedEventCache) ReconcileOption {
	return func(h *ReconcileEventHandler) { h.cache = c }
}

// WithMetrics records outcomes and anomalies
func WithMetrics(m *metrics.Metrics) ReconcileOption {
	return func(h *ReconcileEventHandler) { h.metrics = m }
}

// WithTimeout overrides DefaultReconcileTimeout
func WithTimeout(d time.Duration) ReconcileOption {
	return func(h *ReconcileEventHandler) {
		if d > 0 {
			h.timeout = d
		}
	}
}

// NewReconcileEventHandler creates a new reconcile event handler
func NewReconcileEventHandler(
	payments domain.PaymentRepository,
	users userdomain.EntitlementRepository,
	txManager database.TxManager,
	fetcher SessionFetcher,
	opts ...ReconcileOption,
) *ReconcileEventHandler {
	h := &ReconcileEventHandler{
		payments:  payments,
		users:     users,
		txManager: txManager,
		fetcher:   fetcher,
		timeout:   DefaultReconcileTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle reconciles one verified event.
//
// The returned outcome is always set. A *domain.DataIntegrityError comes back
// with OutcomeRejected and must still be acknowledged to the gateway; only a
// *domain.ReconciliationError asks for redelivery.
func (h *ReconcileEventHandler) Handle(ctx context.Context, event domain.VerifiedEvent) (domain.Outcome, error) {
	start := time.Now()

	ctx, span := otel.Tracer("reconcile-engine").Start(ctx, "reconcile.event",
		trace.WithAttributes(
			attribute.String("webhook.event_id", event.ID),
			attribute.String("webhook.event_type", event.RawType),
			attribute.String("checkout.session_id", event.ReferenceID),
		),
	)
	defer span.End()

	outcome, err := h.handle(ctx, event)

	span.SetAttributes(attribute.String("reconcile.outcome", string(outcome)))
	if err != nil {
		span.RecordError(err)
		if domain.IsRetryable(err) {
			span.SetStatus(codes.Error, err.Error())
		}
	}
	if h.metrics != nil {
		h.metrics.ObserveEvent(string(event.Type), outcome, time.Since(start))
	}

	return outcome, err
}

func (h *ReconcileEventHandler) handle(ctx context.Context, event domain.VerifiedEvent) (domain.Outcome, error) {
	var status domain.PaymentStatus
	switch event.Type {
	case domain.EventSessionCompleted:
		status = domain.StatusSucceeded
	case domain.EventSessionAsyncPaymentFailed:
		status = domain.StatusFailed
	case domain.EventPaymentSucceeded, domain.EventPaymentFailed:
		// session events are authoritative for the same outcome
		logger.Info(ctx).
			Str("event_id", event.ID).
			Str("event_type", event.RawType).
			Str("reference_id", event.ReferenceID).
			Msg("Payment intent notification acknowledged")
		return domain.OutcomeIgnored, nil
	default:
		logger.Debug(ctx).
			Str("event_id", event.ID).
			Str("event_type", event.RawType).
			Msg("Unhandled webhook event type")
		return domain.OutcomeIgnored, nil
	}

	if h.seen(ctx, event.ID) {
		logger.Info(ctx).
			Str("event_id", event.ID).
			Str("event_type", event.RawType).
			Str("session_id", event.ReferenceID).
			Msg("Webhook event already processed")
		return domain.OutcomeDuplicate, nil
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	details, err := h.fetcher.FetchSession(ctx, event.ReferenceID)
	if err != nil {
		var integrityErr *domain.DataIntegrityError
		if errors.As(err, &integrityErr) {
			h.reject(ctx, event, &domain.SessionDetails{SessionID: event.ReferenceID}, integrityErr)
			return domain.OutcomeRejected, integrityErr
		}
		return h.internalFailure(ctx, event, "fetch_session", event.ReferenceID, err)
	}
	sessionID := details.SessionID
	if sessionID == "" {
		sessionID = event.ReferenceID
	}

	user, err := h.crossCheck(ctx, sessionID, details)
	if err != nil {
		var integrityErr *domain.DataIntegrityError
		if errors.As(err, &integrityErr) {
			h.reject(ctx, event, details, integrityErr)
			return domain.OutcomeRejected, integrityErr
		}
		return h.internalFailure(ctx, event, "find_user", sessionID, err)
	}

	existing, err := h.payments.FindBySessionID(ctx, sessionID)
	switch {
	case err == nil:
		logger.Info(ctx).
			Str("event_id", event.ID).
			Str("event_type", event.RawType).
			Str("session_id", sessionID).
			Str("payment_id", existing.ID).
			Msg("Duplicate delivery, payment already recorded")
		h.markProcessed(ctx, event.ID, domain.OutcomeDuplicate)
		return domain.OutcomeDuplicate, nil
	case !errors.Is(err, domain.ErrPaymentNotFound):
		return h.internalFailure(ctx, event, "find_payment", sessionID, err)
	}

	record := &domain.PaymentRecord{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		SessionID: sessionID,
		Amount:    details.AmountTotal,
		Status:    status,
	}

	err = h.txManager.WithinTransaction(ctx, func(ctx context.Context, tx database.Tx) error {
		if err := h.payments.Insert(ctx, tx, record); err != nil {
			return err
		}
		if status != domain.StatusSucceeded {
			return nil
		}
		return h.users.UpdateStatusAndAppendPayment(ctx, tx, user.ID, record.ID)
	})
	if err != nil {
		// a concurrent delivery won the unique index
		if errors.Is(err, domain.ErrDuplicateSession) || database.IsUniqueViolation(err) {
			logger.Info(ctx).
				Str("event_id", event.ID).
				Str("event_type", event.RawType).
				Str("session_id", sessionID).
				Msg("Concurrent delivery lost the insert race, treated as duplicate")
			h.markProcessed(ctx, event.ID, domain.OutcomeDuplicate)
			return domain.OutcomeDuplicate, nil
		}
		return h.internalFailure(ctx, event, "transaction", sessionID, err)
	}

	outcome := domain.OutcomeSucceeded
	if status == domain.StatusFailed {
		outcome = domain.OutcomeFailed
	}

	logger.Info(ctx).
		Str("event_id", event.ID).
		Str("event_type", event.RawType).
		Str("session_id", sessionID).
		Str("user_id", user.ID).
		Str("payment_id", record.ID).
		Int64("amount", record.Amount).
		Str("outcome", string(outcome)).
		Msg("Payment event reconciled")

	h.publish(ctx, event, record)
	h.markProcessed(ctx, event.ID, outcome)

	return outcome, nil
}

// crossCheck resolves the payer email to a user and requires it to be the
// user the checkout was opened for.
func (h *ReconcileEventHandler) crossCheck(ctx context.Context, sessionID string, details *domain.SessionDetails) (*userdomain.User, error) {
	if details.PayerEmail == "" {
		return nil, &domain.DataIntegrityError{SessionID: sessionID, Reason: "session has no payer email"}
	}
	if details.UserID == "" {
		return nil, &domain.DataIntegrityError{SessionID: sessionID, Reason: "session has no userId metadata"}
	}
	if details.AmountTotal < 0 {
		return nil, &domain.DataIntegrityError{SessionID: sessionID, Reason: fmt.Sprintf("negative amount %d", details.AmountTotal)}
	}

	user, err := h.users.FindByEmail(ctx, details.PayerEmail)
	if errors.Is(err, userdomain.ErrUserNotFound) {
		return nil, &domain.DataIntegrityError{SessionID: sessionID, Reason: "no user registered for payer email"}
	}
	if err != nil {
		return nil, err
	}
	if user.ID != details.UserID {
		return nil, &domain.DataIntegrityError{SessionID: sessionID, Reason: "payer email and metadata userId belong to different users"}
	}
	return user, nil
}

func (h *ReconcileEventHandler) reject(ctx context.Context, event domain.VerifiedEvent, details *domain.SessionDetails, err *domain.DataIntegrityError) {
	logger.Error(ctx).
		Str("event_id", event.ID).
		Str("event_type", event.RawType).
		Str("session_id", err.SessionID).
		Str("payer_email", logger.MaskEmail(details.PayerEmail)).
		Str("metadata_user_id", details.UserID).
		Str("reason", err.Reason).
		Msg("Payment event rejected: data integrity violation")

	if h.metrics != nil {
		h.metrics.IntegrityAnomaly(string(event.Type), err.Reason)
	}
}

func (h *ReconcileEventHandler) internalFailure(ctx context.Context, event domain.VerifiedEvent, op, sessionID string, err error) (domain.Outcome, error) {
	if errors.Is(err, context.DeadlineExceeded) {
		op += ": timeout"
	}
	rerr := &domain.ReconciliationError{Op: op, SessionID: sessionID, Err: err}

	logger.Error(ctx).
		Err(err).
		Str("event_id", event.ID).
		Str("event_type", event.RawType).
		Str("session_id", sessionID).
		Str("op", op).
		Msg("Payment event reconciliation failed")

	return domain.OutcomeError, rerr
}

func (h *ReconcileEventHandler) seen(ctx context.Context, eventID string) bool {
	if h.cache == nil || eventID == "" {
		return false
	}
	seen, err := h.cache.Seen(ctx, eventID)
	if err != nil {
		logger.Warn(ctx).Err(err).Str("event_id", eventID).Msg("Event cache lookup failed")
		return false
	}
	return seen
}

func (h *ReconcileEventHandler) markProcessed(ctx context.Context, eventID string, outcome domain.Outcome) {
	if h.cache == nil || eventID == "" {
		return
	}
	if err := h.cache.MarkProcessed(ctx, eventID, string(outcome)); err != nil {
		logger.Warn(ctx).Err(err).Str("event_id", eventID).Msg("Failed to mark event processed")
	}
}

// publish never fails the reconciliation; the ledger row is already committed
func (h *ReconcileEventHandler) publish(ctx context.Context, event domain.VerifiedEvent, record *domain.PaymentRecord) {
	if h.publisher == nil {
		return
	}
	err := h.publisher.PublishPaymentReconciled(ctx, kafka.PaymentReconciledEvent{
		WebhookEventID:  event.ID,
		PaymentID:       record.ID,
		SessionID:       record.SessionID,
		UserID:          record.UserID,
		Amount:          record.Amount,
		Status:          string(record.Status),
		EntitlementPaid: record.Status == domain.StatusSucceeded,
	})
	if err != nil {
		logger.Error(ctx).
			Err(err).
			Str("session_id", record.SessionID).
			Str("payment_id", record.ID).
			Msg("Failed to publish payment reconciled event")
	}
}
