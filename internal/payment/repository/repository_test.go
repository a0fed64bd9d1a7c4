package repository_test

import (
	"context"
	"errors"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tair/payment-reconciler/internal/payment/domain"
	"github.com/tair/payment-reconciler/internal/payment/repository"
	userdomain "github.com/tair/payment-reconciler/internal/user/domain"
	userrepo "github.com/tair/payment-reconciler/internal/user/repository"
	"github.com/tair/payment-reconciler/pkg/database"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// one connection keeps the in-memory database shared
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, repository.NewGormPaymentRepository(db).AutoMigrate())
	require.NoError(t, userrepo.NewGormUserRepository(db).AutoMigrate())

	require.NoError(t, db.Create(&userdomain.User{
		ID:          "u1",
		Username:    "ada",
		Email:       "a@b.com",
		PhoneNumber: "+2340000000001",
	}).Error)

	return db
}

func TestGormRepositories_SuccessWriteCommits(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	payments := repository.NewTracingPaymentRepository(repository.NewGormPaymentRepository(db))
	users := userrepo.NewTracingUserRepository(userrepo.NewGormUserRepository(db))
	txm := database.NewGormTxManager(db)

	record := &domain.PaymentRecord{UserID: "u1", SessionID: "sess_123", Amount: 5000, Status: domain.StatusSucceeded}
	err := txm.WithinTransaction(ctx, func(ctx context.Context, tx database.Tx) error {
		if err := payments.Insert(ctx, tx, record); err != nil {
			return err
		}
		return users.UpdateStatusAndAppendPayment(ctx, tx, "u1", record.ID)
	})
	require.NoError(t, err)

	got, err := payments.FindBySessionID(ctx, "sess_123")
	require.NoError(t, err)
	assert.Equal(t, record.ID, got.ID)
	assert.Equal(t, int64(5000), got.Amount)
	assert.Equal(t, domain.StatusSucceeded, got.Status)

	user, err := users.FindByEmail(ctx, "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, userdomain.StatusPaid, user.Status)
	assert.Equal(t, []string{record.ID}, user.PaymentIDs())
}

func TestGormRepositories_RollbackLeavesNoTrace(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	payments := repository.NewGormPaymentRepository(db)
	users := userrepo.NewGormUserRepository(db)
	txm := database.NewGormTxManager(db)

	err := txm.WithinTransaction(ctx, func(ctx context.Context, tx database.Tx) error {
		record := &domain.PaymentRecord{UserID: "u1", SessionID: "sess_123", Amount: 5000, Status: domain.StatusSucceeded}
		if err := payments.Insert(ctx, tx, record); err != nil {
			return err
		}
		// unknown user aborts the whole unit
		return users.UpdateStatusAndAppendPayment(ctx, tx, "ghost", record.ID)
	})
	require.ErrorIs(t, err, userdomain.ErrUserNotFound)

	_, err = payments.FindBySessionID(ctx, "sess_123")
	assert.ErrorIs(t, err, domain.ErrPaymentNotFound)

	user, err := users.FindByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, userdomain.StatusNotPaid, user.Status)
	assert.Empty(t, user.Payments)
}

func TestGormPaymentRepository_DuplicateSession(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	payments := repository.NewGormPaymentRepository(db)
	txm := database.NewGormTxManager(db)

	insert := func() error {
		return txm.WithinTransaction(ctx, func(ctx context.Context, tx database.Tx) error {
			return payments.Insert(ctx, tx, &domain.PaymentRecord{UserID: "u1", SessionID: "sess_456", Status: domain.StatusFailed})
		})
	}

	require.NoError(t, insert())
	err := insert()
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrDuplicateSession), "got %v", err)

	var count int64
	require.NoError(t, db.Model(&domain.PaymentRecord{}).Where("session_id = ?", "sess_456").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestGormPaymentRepository_FindByUserID(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	payments := repository.NewGormPaymentRepository(db)
	txm := database.NewGormTxManager(db)

	for _, sess := range []string{"sess_1", "sess_2", "sess_3"} {
		sess := sess
		require.NoError(t, txm.WithinTransaction(ctx, func(ctx context.Context, tx database.Tx) error {
			return payments.Insert(ctx, tx, &domain.PaymentRecord{UserID: "u1", SessionID: sess, Status: domain.StatusFailed})
		}))
	}

	all, err := payments.FindByUserID(ctx, "u1", 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	page, err := payments.FindByUserID(ctx, "u1", 2, 0)
	require.NoError(t, err)
	assert.Len(t, page, 2)

	none, err := payments.FindByUserID(ctx, "u2", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGormRepositories_RejectForeignTx(t *testing.T) {
	db := setupTestDB(t)
	payments := repository.NewGormPaymentRepository(db)

	err := payments.Insert(context.Background(), fakeTx{}, &domain.PaymentRecord{SessionID: "sess_1"})
	assert.ErrorIs(t, err, database.ErrForeignTx)
}

type fakeTx struct{}

func (fakeTx) Driver() string { return "fake" }
