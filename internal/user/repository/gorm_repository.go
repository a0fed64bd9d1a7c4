package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/tair/payment-reconciler/internal/user/domain"
	"github.com/tair/payment-reconciler/pkg/database"
)

// GormUserRepository implements domain.EntitlementRepository using GORM
type GormUserRepository struct {
	db *gorm.DB
}

// NewGormUserRepository creates a new GORM user repository
func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

// FindByID retrieves a user and its payments by ID
func (r *GormUserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	return r.findOne(ctx, "id = ?", id)
}

// FindByEmail retrieves a user and its payments by email
func (r *GormUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, "email = ?", email)
}

func (r *GormUserRepository) findOne(ctx context.Context, cond string, arg string) (*domain.User, error) {
	var user domain.User
	err := r.db.WithContext(ctx).
		Preload("Payments", func(db *gorm.DB) *gorm.DB { return db.Order("seq ASC") }).
		Where(cond, arg).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return &user, nil
}

// UpdateStatusAndAppendPayment marks the user paid and links the payment, inside tx
func (r *GormUserRepository) UpdateStatusAndAppendPayment(ctx context.Context, tx database.Tx, userID, paymentID string) error {
	db, err := database.UnwrapGorm(tx)
	if err != nil {
		return err
	}
	db = db.WithContext(ctx)

	result := db.Model(&domain.User{}).Where("id = ?", userID).Update("status", domain.StatusPaid)
	if result.Error != nil {
		return fmt.Errorf("failed to update user status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrUserNotFound
	}

	link := &domain.UserPayment{UserID: userID, PaymentID: paymentID}
	if err := db.Create(link).Error; err != nil {
		return fmt.Errorf("failed to append user payment: %w", err)
	}
	return nil
}

// AutoMigrate runs database migrations
func (r *GormUserRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&domain.User{}, &domain.UserPayment{})
}
