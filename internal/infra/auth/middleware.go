package auth

import (
	"context"
	"net/http"

	"go.uber.org/zap"
)

// TokenValidator: то, что нужно middleware для проверки Bearer токена
type TokenValidator interface {
	VerifyToken(tokenStr string) (*Claims, error)
}

type ctxKey string

const claimsKey ctxKey = "claims"

// NewMiddleware отвечает 401 в формате бэкенда, если токен отсутствует или невалиден.
func NewMiddleware(v TokenValidator, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeUnauthorized(w, "UNAUTHORIZED")
				return
			}

			claims, err := v.VerifyToken(authHeader)
			if err != nil {
				logger.Warn("auth failure", zap.String("path", r.URL.Path), zap.Error(err))
				writeUnauthorized(w, "TOKEN_EXPIRED")
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*Claims)
	return c, ok
}

func writeUnauthorized(w http.ResponseWriter, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"success":false,"error":{"code":"` + code + `"},"message":"Unauthorized"}`))
}
