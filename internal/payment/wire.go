//go:build wireinject
// +build wireinject

package payment

import (
	"github.com/google/wire"
	"gorm.io/gorm"

	"github.com/tair/payment-reconciler/internal/config"
	"github.com/tair/payment-reconciler/internal/payment/domain"
	"github.com/tair/payment-reconciler/internal/payment/gateway"
	"github.com/tair/payment-reconciler/internal/payment/handler"
	"github.com/tair/payment-reconciler/internal/payment/repository/inmemory"
	"github.com/tair/payment-reconciler/internal/payment/usecase/command"
	userdomain "github.com/tair/payment-reconciler/internal/user/domain"
	"github.com/tair/payment-reconciler/pkg/database"
)

// Wire sets
var GormStoreSet = wire.NewSet(
	ProvidePaymentRepository,
	ProvideEntitlementRepository,
	ProvideTxManager,
)

var MemoryStoreSet = wire.NewSet(
	wire.Bind(new(domain.PaymentRepository), new(*inmemory.Store)),
	wire.Bind(new(userdomain.EntitlementRepository), new(*inmemory.Store)),
	wire.Bind(new(database.TxManager), new(*inmemory.Store)),
)

var GatewaySet = wire.NewSet(
	ProvideMetrics,
	ProvideStripeGateway,
	ProvideCircuitBreaker,
	wire.Bind(new(command.SessionFetcher), new(*gateway.StripeGateway)),
	wire.Bind(new(command.CheckoutCreator), new(*gateway.StripeGateway)),
)

var CommandHandlerSet = wire.NewSet(
	ProvideReconcileEventHandler,
	ProvideCreateCheckoutSessionHandler,
)

var QueryHandlerSet = wire.NewSet(
	ProvideGetEntitlementHandler,
	ProvideGetPaymentBySessionHandler,
)

var HTTPSet = wire.NewSet(
	ProvideVerifier,
	ProvideJWTAuthenticator,
	handler.NewPaymentHandlerWithDI,
)

var AllHandlersSet = wire.NewSet(
	GatewaySet,
	CommandHandlerSet,
	QueryHandlerSet,
	HTTPSet,
)

// InitializeHandler wires the HTTP handler over the gorm stores
func InitializeHandler(db *gorm.DB, cfg *config.Config, extras Extras) (*handler.PaymentHandler, error) {
	wire.Build(
		GormStoreSet,
		AllHandlersSet,
	)
	return nil, nil
}

// InitializeMemoryHandler wires the HTTP handler over a process-local store
func InitializeMemoryHandler(store *inmemory.Store, cfg *config.Config, extras Extras) (*handler.PaymentHandler, error) {
	wire.Build(
		MemoryStoreSet,
		AllHandlersSet,
	)
	return nil, nil
}

// InitializeReconciler wires the reconciliation engine alone for offline replays
func InitializeReconciler(db *gorm.DB, cfg *config.Config, extras Extras) (*command.ReconcileEventHandler, error) {
	wire.Build(
		GormStoreSet,
		GatewaySet,
		ProvideReconcileEventHandler,
	)
	return nil, nil
}
