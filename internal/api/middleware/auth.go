package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/Togather-Foundation/rsvp/internal/api/problem"
	"github.com/Togather-Foundation/rsvp/internal/auth"
)

// TokenValidator checks a bearer token and returns its claims.
// *auth.JWTManager satisfies it.
type TokenValidator interface {
	Validate(token string) (*auth.Claims, error)
}

type contextKeyAuth string

const (
	userIDKey contextKeyAuth = "userID"
	claimsKey contextKeyAuth = "claims"
)

// RequireAuth rejects requests without a valid bearer token and stores the
// token subject as the acting user id. Identity never comes from the body.
func RequireAuth(validator TokenValidator, env string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if validator == nil {
				problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, "Unauthorized", problem.ErrUnauthorized, env)
				return
			}

			header := strings.TrimSpace(r.Header.Get("Authorization"))
			if header == "" {
				problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, "Missing authorization header", auth.ErrMissingToken, env,
					problem.WithDetail("a bearer token is required"))
				return
			}

			token, err := auth.TokenFromHeader(header)
			if err != nil || token == "" {
				problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, "Invalid authorization format", auth.ErrMissingToken, env,
					problem.WithDetail("expected: Authorization: Bearer <token>"))
				return
			}

			claims, err := validator.Validate(token)
			if err != nil {
				problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, "Invalid token", err, env,
					problem.WithDetail("token is invalid or expired"))
				return
			}

			ctx := ContextWithClaims(r.Context(), claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ContextWithClaims stores claims and their subject in ctx.
func ContextWithClaims(ctx context.Context, claims *auth.Claims) context.Context {
	if claims == nil {
		return ctx
	}
	ctx = context.WithValue(ctx, claimsKey, claims)
	return context.WithValue(ctx, userIDKey, claims.Subject)
}

// UserIDFromContext returns the authenticated user id, or "" for anonymous
// requests.
func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(userIDKey).(string); ok {
		return id
	}
	return ""
}

func Claims(r *http.Request) *auth.Claims {
	if r == nil {
		return nil
	}
	if claims, ok := r.Context().Value(claimsKey).(*auth.Claims); ok {
		return claims
	}
	return nil
}
