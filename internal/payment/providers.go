package payment

import (
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/tair/payment-reconciler/internal/config"
	"github.com/tair/payment-reconciler/internal/payment/domain"
	"github.com/tair/payment-reconciler/internal/payment/gateway"
	"github.com/tair/payment-reconciler/internal/payment/handler"
	"github.com/tair/payment-reconciler/internal/payment/metrics"
	"github.com/tair/payment-reconciler/internal/payment/repository"
	"github.com/tair/payment-reconciler/internal/payment/usecase/command"
	"github.com/tair/payment-reconciler/internal/payment/usecase/query"
	"github.com/tair/payment-reconciler/internal/payment/verifier"
	userdomain "github.com/tair/payment-reconciler/internal/user/domain"
	userrepository "github.com/tair/payment-reconciler/internal/user/repository"
	"github.com/tair/payment-reconciler/pkg/database"
)

// Extras carries optional collaborators. Nil fields are left out.
type Extras struct {
	Publisher command.EventPublisher
	Cache     command.ProcessedEventCache
	Registry  prometheus.Registerer
}

// Migrate creates the ledger and entitlement tables
func Migrate(db *gorm.DB) error {
	if err := repository.NewGormPaymentRepository(db).AutoMigrate(); err != nil {
		return err
	}
	return userrepository.NewGormUserRepository(db).AutoMigrate()
}

// ProvidePaymentRepository provides the traced payment ledger
func ProvidePaymentRepository(db *gorm.DB) domain.PaymentRepository {
	return repository.NewTracingPaymentRepository(repository.NewGormPaymentRepository(db))
}

// ProvideEntitlementRepository provides the traced entitlement store
func ProvideEntitlementRepository(db *gorm.DB) userdomain.EntitlementRepository {
	return userrepository.NewTracingUserRepository(userrepository.NewGormUserRepository(db))
}

func ProvideTxManager(db *gorm.DB) database.TxManager {
	return database.NewGormTxManager(db)
}

func ProvideMetrics(extras Extras) *metrics.Metrics {
	return metrics.NewMetrics(extras.Registry)
}

// ProvideStripeGateway builds the gateway client and reports its failures
// and breaker transitions to metrics
func ProvideStripeGateway(cfg *config.Config, m *metrics.Metrics) *gateway.StripeGateway {
	gw := gateway.NewStripeGateway(cfg.Stripe, gateway.WithFailureHook(m.GatewayFailure))
	gw.Breaker().OnStateChange(func(name string, _, to gateway.CircuitState) {
		m.CircuitOpen(name, to == gateway.StateOpen)
	})
	return gw
}

func ProvideCircuitBreaker(gw *gateway.StripeGateway) *gateway.CircuitBreaker {
	return gw.Breaker()
}

// Command Handlers Providers
func ProvideReconcileEventHandler(
	payments domain.PaymentRepository,
	users userdomain.EntitlementRepository,
	txManager database.TxManager,
	fetcher command.SessionFetcher,
	m *metrics.Metrics,
	cfg *config.Config,
	extras Extras,
) *command.ReconcileEventHandler {
	opts := []command.ReconcileOption{
		command.WithMetrics(m),
		command.WithTimeout(cfg.ReconcileTimeout),
	}
	if extras.Publisher != nil {
		opts = append(opts, command.WithPublisher(extras.Publisher))
	}
	if extras.Cache != nil {
		opts = append(opts, command.WithEventCache(extras.Cache))
	}
	return command.NewReconcileEventHandler(payments, users, txManager, fetcher, opts...)
}

func ProvideCreateCheckoutSessionHandler(creator command.CheckoutCreator) *command.CreateCheckoutSessionHandler {
	return command.NewCreateCheckoutSessionHandler(creator)
}

// Query Handlers Providers
func ProvideGetEntitlementHandler(users userdomain.EntitlementRepository, payments domain.PaymentRepository) *query.GetEntitlementHandler {
	return query.NewGetEntitlementHandler(users, payments)
}

func ProvideGetPaymentBySessionHandler(payments domain.PaymentRepository) *query.GetPaymentBySessionHandler {
	return query.NewGetPaymentBySessionHandler(payments)
}

// HTTP Providers
func ProvideVerifier(cfg *config.Config) *verifier.StripeVerifier {
	return verifier.NewStripeVerifier(cfg.Stripe.WebhookSecret, cfg.Stripe.WebhookTolerance)
}

func ProvideJWTAuthenticator(cfg *config.Config, users userdomain.EntitlementRepository) (*handler.JWTAuthenticator, error) {
	return handler.NewJWTAuthenticator(cfg.Auth.JWTPublicKey, users)
}
