package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

// Observer принимает длительность обработанного запроса (см. metrics.Metrics).
type Observer interface {
	ObserveHTTP(method, route, status string, seconds float64)
}

// Metrics измеряет длительность запроса. Метка route: шаблон chi
// (/api/users/me), а не сырой путь; запросы мимо роутов идут как "unmatched".
func Metrics(obs Observer) Middleware {
	return func(next http.Handler) http.Handler {
		if obs == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := newStatusWriter(w)
			start := time.Now()
			next.ServeHTTP(sw, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if p := rctx.RoutePattern(); p != "" {
					route = p
				}
			}

			obs.ObserveHTTP(r.Method, route, strconv.Itoa(sw.code()), time.Since(start).Seconds())
		})
	}
}
