package database

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// ErrForeignTx is returned when a store receives a transaction opened by another driver.
var ErrForeignTx = errors.New("transaction was not opened by this store")

// Tx is one open unit of work shared by every store that takes part in it.
// Implementations commit or roll back as a whole.
type Tx interface {
	Driver() string
}

// TxManager opens transactions. fn runs inside the transaction; a nil return
// commits, a non-nil return or a panic rolls back.
type TxManager interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// GormTx carries the transactional *gorm.DB handle
type GormTx struct {
	DB *gorm.DB
}

// Driver implements Tx
func (GormTx) Driver() string { return "gorm" }

// GormTxManager implements TxManager on top of gorm.DB.Transaction
type GormTxManager struct {
	db *gorm.DB
}

// NewGormTxManager creates a new GORM transaction manager
func NewGormTxManager(db *gorm.DB) *GormTxManager {
	return &GormTxManager{db: db}
}

// WithinTransaction implements TxManager
func (m *GormTxManager) WithinTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, GormTx{DB: tx})
	})
}

// UnwrapGorm returns the *gorm.DB bound to tx
func UnwrapGorm(tx Tx) (*gorm.DB, error) {
	gtx, ok := tx.(GormTx)
	if !ok || gtx.DB == nil {
		return nil, fmt.Errorf("%w: got %T", ErrForeignTx, tx)
	}
	return gtx.DB, nil
}
