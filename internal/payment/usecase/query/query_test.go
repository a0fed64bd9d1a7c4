package query_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tair/payment-reconciler/internal/payment/domain"
	"github.com/tair/payment-reconciler/internal/payment/repository/inmemory"
	"github.com/tair/payment-reconciler/internal/payment/usecase/query"
	userdomain "github.com/tair/payment-reconciler/internal/user/domain"
	"github.com/tair/payment-reconciler/pkg/database"
)

func seed(t *testing.T) *inmemory.Store {
	t.Helper()
	store := inmemory.NewStore()
	require.NoError(t, store.AddUser(userdomain.User{ID: "u1", Email: "a@b.com", PhoneNumber: "1"}))
	require.NoError(t, store.AddUser(userdomain.User{ID: "u2", Email: "bob@b.com", PhoneNumber: "2"}))

	ctx := context.Background()
	require.NoError(t, store.WithinTransaction(ctx, func(ctx context.Context, tx database.Tx) error {
		p := &domain.PaymentRecord{UserID: "u1", SessionID: "sess_123", Amount: 5000, Status: domain.StatusSucceeded}
		if err := store.Insert(ctx, tx, p); err != nil {
			return err
		}
		return store.UpdateStatusAndAppendPayment(ctx, tx, "u1", p.ID)
	}))
	return store
}

func TestGetEntitlement(t *testing.T) {
	store := seed(t)
	h := query.NewGetEntitlementHandler(store, store)

	got, err := h.Handle(context.Background(), query.GetEntitlementQuery{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, userdomain.StatusPaid, got.Status)
	assert.Len(t, got.PaymentIDs, 1)
	require.Len(t, got.Payments, 1)
	assert.Equal(t, "sess_123", got.Payments[0].SessionID)

	got, err = h.Handle(context.Background(), query.GetEntitlementQuery{UserID: "u2", Limit: 1000})
	require.NoError(t, err)
	assert.Equal(t, userdomain.StatusNotPaid, got.Status)
	assert.NotNil(t, got.Payments)
	assert.Empty(t, got.Payments)
}

func TestGetEntitlement_Errors(t *testing.T) {
	store := seed(t)
	h := query.NewGetEntitlementHandler(store, store)

	_, err := h.Handle(context.Background(), query.GetEntitlementQuery{})
	assert.Error(t, err)

	_, err = h.Handle(context.Background(), query.GetEntitlementQuery{UserID: "ghost"})
	assert.ErrorIs(t, err, userdomain.ErrUserNotFound)
}

func TestGetPaymentBySession(t *testing.T) {
	store := seed(t)
	h := query.NewGetPaymentBySessionHandler(store)
	ctx := context.Background()

	p, err := h.Handle(ctx, query.GetPaymentBySessionQuery{SessionID: "sess_123", UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, int64(5000), p.Amount)

	_, err = h.Handle(ctx, query.GetPaymentBySessionQuery{SessionID: "sess_123", UserID: "u2"})
	assert.ErrorIs(t, err, domain.ErrPaymentNotFound)

	_, err = h.Handle(ctx, query.GetPaymentBySessionQuery{SessionID: "sess_missing", UserID: "u1"})
	assert.ErrorIs(t, err, domain.ErrPaymentNotFound)

	_, err = h.Handle(ctx, query.GetPaymentBySessionQuery{UserID: "u1"})
	assert.Error(t, err)
}
