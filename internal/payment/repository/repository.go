package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tair/payment-reconciler/internal/payment/domain"
	"github.com/tair/payment-reconciler/pkg/database"
)

// GormPaymentRepository implements domain.PaymentRepository using GORM
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewGormPaymentRepository creates a new GORM payment ledger
func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// AutoMigrate runs database migrations
func (r *GormPaymentRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&domain.PaymentRecord{})
}

// FindBySessionID retrieves the ledger entry for a gateway session
func (r *GormPaymentRepository) FindBySessionID(ctx context.Context, sessionID string) (*domain.PaymentRecord, error) {
	var payment domain.PaymentRecord
	err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to find payment: %w", err)
	}
	return &payment, nil
}

// Insert writes a new ledger entry inside tx
func (r *GormPaymentRepository) Insert(ctx context.Context, tx database.Tx, payment *domain.PaymentRecord) error {
	db, err := database.UnwrapGorm(tx)
	if err != nil {
		return err
	}
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}

	if err := db.WithContext(ctx).Create(payment).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateSession, payment.SessionID)
		}
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	return nil
}

// FindByUserID lists a user's ledger entries, newest first
func (r *GormPaymentRepository) FindByUserID(ctx context.Context, userID string, limit, offset int) ([]domain.PaymentRecord, error) {
	var payments []domain.PaymentRecord
	query := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC")

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	if err := query.Find(&payments).Error; err != nil {
		return nil, fmt.Errorf("failed to find payments: %w", err)
	}
	return payments, nil
}
