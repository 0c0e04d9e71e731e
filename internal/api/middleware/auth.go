package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/windforecast/windforecast/internal/api/models"
	"github.com/windforecast/windforecast/internal/auth"
)

type operatorIDKey struct{}

// OperatorVerifier validates operator bearer tokens.
type OperatorVerifier interface {
	ValidateOperatorToken(token string) (*auth.OperatorClaims, error)
}

// OperatorAuth requires a valid operator bearer token. A nil verifier leaves
// the wrapped routes open.
func OperatorAuth(verifier OperatorVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if verifier == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeUnauthorized(w, r, "missing authorization header")
				return
			}

			const bearerPrefix = "Bearer "
			if len(authHeader) < len(bearerPrefix) ||
				!strings.EqualFold(authHeader[:len(bearerPrefix)], bearerPrefix) {
				writeUnauthorized(w, r, "invalid authorization header format")
				return
			}

			tokenString := strings.TrimSpace(authHeader[len(bearerPrefix):])
			if tokenString == "" {
				writeUnauthorized(w, r, "missing bearer token")
				return
			}

			claims, err := verifier.ValidateOperatorToken(tokenString)
			if err != nil {
				switch {
				case errors.Is(err, auth.ErrOperatorTokenExpired):
					writeUnauthorized(w, r, "operator token has expired")
				case errors.Is(err, auth.ErrInvalidOperatorToken):
					writeUnauthorized(w, r, "invalid operator token")
				default:
					writeUnauthorized(w, r, "authentication failed")
				}
				return
			}

			ctx := context.WithValue(r.Context(), operatorIDKey{}, claims.OperatorID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// writeUnauthorized lives here rather than in response to avoid an import cycle.
func writeUnauthorized(w http.ResponseWriter, r *http.Request, detail string) {
	models.NewProblem(models.KindUnauthorized, GetRequestID(r.Context()), detail).At(r.URL.Path).Write(w)
}

// GetOperatorID returns the authenticated operator, or "" when the request
// was not authenticated.
func GetOperatorID(ctx context.Context) string {
	if id, ok := ctx.Value(operatorIDKey{}).(string); ok {
		return id
	}
	return ""
}
