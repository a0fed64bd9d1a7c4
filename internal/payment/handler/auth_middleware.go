package handler

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	userdomain "github.com/tair/payment-reconciler/internal/user/domain"
	"github.com/tair/payment-reconciler/pkg/logger"
)

type contextKey string

const userKey contextKey = "user"

// Claims are issued by the identity service at login
type Claims struct {
	UserID string `json:"_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// JWTAuthenticator validates RS256 bearer tokens and loads the caller
type JWTAuthenticator struct {
	publicKey *rsa.PublicKey
	users     userdomain.EntitlementRepository
}

// NewJWTAuthenticator parses the PEM encoded public key
func NewJWTAuthenticator(publicKeyPEM string, users userdomain.EntitlementRepository) (*JWTAuthenticator, error) {
	if publicKeyPEM == "" {
		return &JWTAuthenticator{users: users}, nil
	}
	key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(publicKeyPEM))
	if err != nil {
		return nil, fmt.Errorf("failed to parse JWT public key: %w", err)
	}
	return &JWTAuthenticator{publicKey: key, users: users}, nil
}

// Authenticate resolves a raw token to the stored user
func (a *JWTAuthenticator) Authenticate(ctx context.Context, tokenString string) (*userdomain.User, error) {
	if a.publicKey == nil {
		return nil, errors.New("no JWT public key configured")
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return a.publicKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if claims.Email == "" {
		return nil, errors.New("token carries no email")
	}

	user, err := a.users.FindByEmail(ctx, claims.Email)
	if err != nil {
		return nil, err
	}
	if claims.UserID != "" && claims.UserID != user.ID {
		return nil, errors.New("token subject does not match user")
	}
	return user, nil
}

// AuthMiddleware validates the bearer token and puts the user in the context
func AuthMiddleware(auth *JWTAuthenticator) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				respondJSON(w, http.StatusUnauthorized, Response{
					Success: false,
					Error:   "Authorization header required",
				})
				return
			}

			// Extract token from "Bearer <token>"
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				respondJSON(w, http.StatusUnauthorized, Response{
					Success: false,
					Error:   "Invalid authorization header format",
				})
				return
			}

			user, err := auth.Authenticate(r.Context(), parts[1])
			if err != nil {
				logger.Warn(r.Context()).Err(err).Msg("Bearer token rejected")
				respondJSON(w, http.StatusUnauthorized, Response{
					Success: false,
					Error:   "Invalid token",
				})
				return
			}

			ctx := context.WithValue(r.Context(), userKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		}
	}
}

// UserFromContext returns the user stored by AuthMiddleware
func UserFromContext(ctx context.Context) (*userdomain.User, bool) {
	user, ok := ctx.Value(userKey).(*userdomain.User)
	return user, ok && user != nil
}
