package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type ownerIDKey struct{}

// GetOwnerID returns the authenticated owner ID from ctx, or uuid.Nil.
func GetOwnerID(ctx context.Context) uuid.UUID {
	id, ok := ctx.Value(ownerIDKey{}).(uuid.UUID)
	if !ok {
		return uuid.Nil
	}
	return id
}

// WithOwnerID stores an owner ID in ctx. Exposed for tests that bypass the
// auth middleware.
func WithOwnerID(ctx context.Context, ownerID uuid.UUID) context.Context {
	return context.WithValue(ctx, ownerIDKey{}, ownerID)
}

// RequireAuth validates a bearer JWT (HS256) and resolves the owner scope from
// its subject claim. Session bootstrap lives elsewhere; this middleware only
// establishes who the receipts belong to.
func RequireAuth(signingKey []byte, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const bearerPrefix = "Bearer "
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, bearerPrefix) {
				writeAuthError(w, "missing bearer token")
				return
			}

			tokenString := strings.TrimPrefix(authHeader, bearerPrefix)
			parsed, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrTokenUnverifiable
				}
				return signingKey, nil
			})
			if err != nil || !parsed.Valid {
				if errors.Is(err, jwt.ErrTokenExpired) {
					writeAuthError(w, "token has expired")
					return
				}
				logger.WarnContext(r.Context(), "token validation failed", "error", err)
				writeAuthError(w, "invalid token")
				return
			}

			subject, err := parsed.Claims.GetSubject()
			if err != nil {
				writeAuthError(w, "invalid token")
				return
			}
			ownerID, err := uuid.Parse(subject)
			if err != nil {
				writeAuthError(w, "invalid token subject")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithOwnerID(r.Context(), ownerID)))
		})
	}
}

func writeAuthError(w http.ResponseWriter, desc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = fmt.Fprintf(w, `{"error":"unauthorized","error_description":"%s"}`, desc)
}
