package middleware

import (
	"context"
	"net/http"
	"strings"
)

type bearerKey struct{}

// AuthBearer кладёт в контекст токен из заголовка Authorization: Bearer <token>.
// Проверку токена выполняет обработчик.
func AuthBearer() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const prefix = "bearer "

			auth := r.Header.Get("Authorization")
			if len(auth) > len(prefix) && strings.EqualFold(auth[:len(prefix)], prefix) {
				if token := strings.TrimSpace(auth[len(prefix):]); token != "" {
					r = r.WithContext(context.WithValue(r.Context(), bearerKey{}, token))
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// BearerToken возвращает токен, извлечённый AuthBearer, или "".
func BearerToken(ctx context.Context) string {
	tok, _ := ctx.Value(bearerKey{}).(string)
	return tok
}
