package handler

import (
	"net/http"

	"github.com/gorilla/mux"
)

// MiddlewareConfig holds middleware configuration
type MiddlewareConfig struct {
	EnableLogging bool
	EnableTracing bool
	Auth          *JWTAuthenticator
	RateLimiter   *RateLimiter // nil disables checkout rate limiting
}

// DefaultMiddlewareConfig returns default middleware configuration
func DefaultMiddlewareConfig(auth *JWTAuthenticator, limiter *RateLimiter) MiddlewareConfig {
	return MiddlewareConfig{
		EnableLogging: true,
		EnableTracing: true,
		Auth:          auth,
		RateLimiter:   limiter,
	}
}

// RegisterMiddlewares registers all middlewares to the router
func RegisterMiddlewares(router *mux.Router, config MiddlewareConfig) {
	// Tracing first so request logs carry the trace id
	if config.EnableTracing {
		router.Use(func(next http.Handler) http.Handler {
			return TracingMiddleware("http-request", next)
		})
	}

	if config.EnableLogging {
		router.Use(LoggingMiddleware)
	}
}

// GetAuthMiddleware returns the bearer token middleware
func (config MiddlewareConfig) GetAuthMiddleware() func(http.HandlerFunc) http.HandlerFunc {
	return AuthMiddleware(config.Auth)
}

// GetRateLimitMiddleware returns the checkout rate limiter, or a pass-through
// when none is configured
func (config MiddlewareConfig) GetRateLimitMiddleware() func(http.HandlerFunc) http.HandlerFunc {
	if config.RateLimiter == nil {
		return func(next http.HandlerFunc) http.HandlerFunc { return next }
	}
	return config.RateLimiter.Middleware
}
